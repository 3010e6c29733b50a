package layoutHandler

import (
	"time"

	layoutService "DocLayout/internal/api/layout/service"
	"DocLayout/internal/middleware"
	"DocLayout/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type LayoutHandler struct {
	log            *logrus.Logger
	validator      *validator.Validate
	middleware     middleware.Middleware
	layoutService  layoutService.ILayoutService
	utils          utils.IUtils
	requestTimeout time.Duration
	historyEnabled bool
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ls layoutService.ILayoutService,
	utils utils.IUtils,
	requestTimeout time.Duration,
	historyEnabled bool,
) *LayoutHandler {
	return &LayoutHandler{
		log:            log,
		validator:      validator,
		middleware:     middleware,
		layoutService:  ls,
		utils:          utils,
		requestTimeout: requestTimeout,
		historyEnabled: historyEnabled,
	}
}

func (h *LayoutHandler) Start(srv fiber.Router) {
	srv.Get("/health", h.Health)
	srv.Post("/predict", h.Predict)

	v2 := srv.Group("/v2")
	v2.Post("/predict", h.PredictAndPersist)

	if h.historyEnabled {
		srv.Get("/predictions", h.ListPredictions)
		srv.Get("/predictions/:id", h.GetPrediction)
	}
}
