package config

import (
	"context"
	"fmt"

	"DocLayout/database/postgres"
	layoutHandler "DocLayout/internal/api/layout/handler"
	layoutRepository "DocLayout/internal/api/layout/repository"
	layoutService "DocLayout/internal/api/layout/service"
	"DocLayout/internal/middleware"
	"DocLayout/pkg/detector"
	"DocLayout/pkg/redis"
	"DocLayout/pkg/s3"
	"DocLayout/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine      *fiber.App
	db          *sqlx.DB
	log         *logrus.Logger
	cfg         AppConfig
	middleware  middleware.Middleware
	validator   *validator.Validate
	utils       utils.IUtils
	handlers    []handler
	detector    detector.Detector
	redisServer redis.IRedis
	s3Client    s3.ItfS3
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	if server.middleware == nil {
		server.middleware = middleware.New(server.log)
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}
	if server.utils == nil {
		server.utils = utils.New()
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithAppConfig(cfg AppConfig) ServerOption {
	return func(s *Server) error {
		s.cfg = cfg
		return nil
	}
}

func WithDetector(det detector.Detector) ServerOption {
	return func(s *Server) error {
		s.detector = det
		return nil
	}
}

// WithDatabase is a no-op unless DB_HOST is configured.
func WithDatabase() ServerOption {
	return func(s *Server) error {
		if !s.cfg.DatabaseEnabled() {
			return nil
		}

		db, err := postgres.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() error {
	var repo layoutRepository.Repository
	if s.db != nil {
		repo = layoutRepository.New(s.db, s.log)
		if err := repo.EnsureSchema(context.Background()); err != nil {
			return fmt.Errorf("failed to prepare prediction history: %w", err)
		}
	}

	layoutServices := layoutService.NewLayoutService(s.log, layoutService.Config{
		UploadFolder: s.cfg.UploadFolder,
		OutputFolder: s.cfg.OutputFolder,
		UseGPU:       s.cfg.UseGPU,
		CacheTTL:     s.cfg.CacheTTL,
	}, s.detector, repo, s.redisServer, s.s3Client, s.utils)
	layoutHandlers := layoutHandler.New(s.log, s.validator, s.middleware, layoutServices, s.utils, s.cfg.RequestTimeout, repo != nil)

	s.handlers = append(s.handlers, layoutHandlers)
	return nil
}

func (s *Server) mount() {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())

	for _, h := range s.handlers {
		h.Start(s.engine)
	}
}

func (s *Server) Run() error {
	s.mount()

	port := s.cfg.Port
	if port == "" {
		port = "5000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown drains in-flight requests and releases every backing client.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.engine.ShutdownWithContext(ctx)

	if s.redisServer != nil {
		if cerr := s.redisServer.Close(); cerr != nil {
			s.log.Warnf("Failed to close Redis client: %v", cerr)
		}
	}
	if s.db != nil {
		if cerr := s.db.Close(); cerr != nil {
			s.log.Warnf("Failed to close database: %v", cerr)
		}
	}
	if cerr := s.detector.Close(); cerr != nil {
		s.log.Warnf("Failed to release detector: %v", cerr)
	}

	return err
}
