package layoutService

import (
	"context"
	"mime/multipart"
	"time"

	"DocLayout/internal/api/layout"
	layoutRepository "DocLayout/internal/api/layout/repository"
	"DocLayout/internal/entity"
	"DocLayout/pkg/detector"
	"DocLayout/pkg/redis"
	"DocLayout/pkg/s3"
	"DocLayout/pkg/utils"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type ILayoutService interface {
	Health() layout.HealthResponse
	Predict(ctx context.Context, file *multipart.FileHeader, req layout.PredictRequest) (layout.PredictResponse, error)
	PredictAndPersist(ctx context.Context, file *multipart.FileHeader, req layout.PredictRequest) (layout.PersistedPredictResponse, error)
	ListPredictions(ctx context.Context, req layout.ListPredictionsRequest) (layout.ListPredictionsResponse, error)
	GetPrediction(ctx context.Context, id string) (entity.Prediction, error)
}

type Config struct {
	UploadFolder string
	OutputFolder string
	UseGPU       bool
	CacheTTL     time.Duration
}

type layoutService struct {
	log      *logrus.Logger
	cfg      Config
	detector detector.Detector
	repo     layoutRepository.Repository
	cache    redis.IRedis
	s3       s3.ItfS3
	utils    utils.IUtils
}

// NewLayoutService wires the detector with the optional history, cache and
// artifact stores; any of repo, cache and s3 may be nil.
func NewLayoutService(
	log *logrus.Logger,
	cfg Config,
	det detector.Detector,
	repo layoutRepository.Repository,
	cache redis.IRedis,
	s3Client s3.ItfS3,
	utils utils.IUtils,
) ILayoutService {
	return &layoutService{
		log:      log,
		cfg:      cfg,
		detector: det,
		repo:     repo,
		cache:    cache,
		s3:       s3Client,
		utils:    utils,
	}
}
