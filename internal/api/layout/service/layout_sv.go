package layoutService

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"DocLayout/internal/api/layout"
	"DocLayout/internal/entity"
	contextPkg "DocLayout/pkg/context"
	"DocLayout/pkg/detector"
	"DocLayout/pkg/log"
	"DocLayout/pkg/redis"
	"DocLayout/pkg/s3"
)

const (
	defaultPage  = 1
	defaultLimit = 20
)

func (s *layoutService) Health() layout.HealthResponse {
	return layout.HealthResponse{
		Status:     "healthy",
		GPUEnabled: s.cfg.UseGPU,
	}
}

func (s *layoutService) Predict(ctx context.Context, file *multipart.FileHeader, req layout.PredictRequest) (layout.PredictResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	filePath, storedName, err := s.saveUpload(file)
	if err != nil {
		return layout.PredictResponse{}, err
	}
	defer s.removeUpload(requestID, filePath)

	s.log.WithFields(log.Fields{
		log.RequestIDKey: requestID,
	}).Infof("File saved at: %s", filePath)

	opts := predictOptions(req)

	cacheKey := ""
	if s.cache != nil {
		start := time.Now()
		cacheKey, err = s.cacheKey(filePath, opts)
		if err != nil {
			s.log.WithFields(log.Fields{
				log.RequestIDKey: requestID,
				"error":          err.Error(),
			}).Warn("Failed to hash upload, skipping cache")
		} else if results, ok := s.cachedResults(ctx, cacheKey, filePath); ok {
			s.log.WithFields(log.Fields{
				log.RequestIDKey: requestID,
				"cache_key":      cacheKey,
			}).Info("Serving prediction from cache")
			return layout.PredictResponse{
				Message:       layout.MessagePredictionSuccessful,
				InferenceTime: time.Since(start).Seconds(),
				Device:        s.detector.Device(),
				Results:       results,
			}, nil
		}
	}

	pages, inferenceTime, err := s.runInference(ctx, requestID, filePath, opts)
	if err != nil {
		return layout.PredictResponse{}, err
	}

	results := make([]layout.PageData, 0, len(pages))
	for i, page := range pages {
		results = append(results, layout.PageData{
			PageIndex: i,
			Data:      page.JSON(),
		})
	}

	if cacheKey != "" {
		s.storeResults(ctx, requestID, cacheKey, pages)
	}

	s.recordPrediction(ctx, entity.Prediction{
		RequestID:        requestID,
		Variant:          entity.PredictionVariantInMemory,
		OriginalFilename: file.Filename,
		StoredFilename:   storedName,
		PageCount:        len(pages),
		BoxCount:         countBoxes(pages),
		InferenceTime:    inferenceTime,
	})

	return layout.PredictResponse{
		Message:       layout.MessagePredictionSuccessful,
		InferenceTime: inferenceTime,
		Device:        s.detector.Device(),
		Results:       results,
	}, nil
}

func (s *layoutService) PredictAndPersist(ctx context.Context, file *multipart.FileHeader, req layout.PredictRequest) (layout.PersistedPredictResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	filePath, storedName, err := s.saveUpload(file)
	if err != nil {
		return layout.PersistedPredictResponse{}, err
	}
	defer s.removeUpload(requestID, filePath)

	s.log.WithFields(log.Fields{
		log.RequestIDKey: requestID,
	}).Infof("File saved at: %s", filePath)

	outputID := s.utils.NewOutputID()
	outputDir := filepath.Join(s.cfg.OutputFolder, outputID)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return layout.PersistedPredictResponse{}, fmt.Errorf("create output directory: %w", err)
	}

	pages, inferenceTime, err := s.runInference(ctx, requestID, filePath, predictOptions(req))
	if err != nil {
		return layout.PersistedPredictResponse{}, err
	}

	results := make([]layout.PersistedResult, 0, len(pages))
	for idx, page := range pages {
		imgPath := filepath.Join(outputDir, fmt.Sprintf("output_%d.jpg", idx))
		if err := page.SaveToImg(imgPath); err != nil {
			return layout.PersistedPredictResponse{}, fmt.Errorf("save annotated image: %w", err)
		}

		jsonPath := filepath.Join(outputDir, fmt.Sprintf("output_%d.json", idx))
		if err := page.SaveToJSON(jsonPath); err != nil {
			return layout.PersistedPredictResponse{}, fmt.Errorf("save result json: %w", err)
		}

		result := layout.PersistedResult{
			Idx:      idx,
			ImgPath:  imgPath,
			JSONPath: jsonPath,
			Data:     s.persistedData(requestID, jsonPath, page),
		}

		if s.s3 != nil {
			result.ImgURL = s.mirror(ctx, requestID, outputID, imgPath, "image/jpeg")
			result.JSONURL = s.mirror(ctx, requestID, outputID, jsonPath, "application/json")
		}

		results = append(results, result)
	}

	s.recordPrediction(ctx, entity.Prediction{
		RequestID:        requestID,
		Variant:          entity.PredictionVariantPersisted,
		OriginalFilename: file.Filename,
		StoredFilename:   storedName,
		PageCount:        len(pages),
		BoxCount:         countBoxes(pages),
		InferenceTime:    inferenceTime,
		OutputDirectory:  outputDir,
	})

	return layout.PersistedPredictResponse{
		Message:         layout.MessagePredictionSuccessful,
		InferenceTime:   inferenceTime,
		Device:          s.detector.Device(),
		OutputDirectory: outputDir,
		Results:         results,
	}, nil
}

func (s *layoutService) ListPredictions(ctx context.Context, req layout.ListPredictionsRequest) (layout.ListPredictionsResponse, error) {
	page, limit := req.Page, req.Limit
	if page <= 0 {
		page = defaultPage
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	if s.repo == nil {
		return layout.ListPredictionsResponse{}, layout.ErrHistoryDisabled
	}

	client, err := s.repo.NewClient(false)
	if err != nil {
		return layout.ListPredictionsResponse{}, err
	}

	predictions, err := client.Prediction.ListPredictions(ctx, limit, (page-1)*limit)
	if err != nil {
		return layout.ListPredictionsResponse{}, err
	}

	return layout.ListPredictionsResponse{
		Page:        page,
		Limit:       limit,
		Predictions: predictions,
	}, nil
}

func (s *layoutService) GetPrediction(ctx context.Context, id string) (entity.Prediction, error) {
	if s.repo == nil {
		return entity.Prediction{}, layout.ErrHistoryDisabled
	}

	client, err := s.repo.NewClient(false)
	if err != nil {
		return entity.Prediction{}, err
	}

	return client.Prediction.GetPredictionByID(ctx, id)
}

func (s *layoutService) runInference(ctx context.Context, requestID string, filePath string, opts detector.PredictOptions) ([]detector.PageResult, float64, error) {
	s.log.WithFields(log.Fields{
		log.RequestIDKey: requestID,
		"model":          s.detector.ModelName(),
	}).Infof("Starting prediction on %s", s.detector.Device())

	start := time.Now()
	pages, err := s.detector.Predict(ctx, filePath, opts)
	inferenceTime := time.Since(start).Seconds()
	if err != nil {
		s.log.WithFields(log.Fields{
			log.RequestIDKey: requestID,
			"error":          err.Error(),
		}).Error("Error during prediction")
		return nil, 0, err
	}

	s.log.WithFields(log.Fields{
		log.RequestIDKey: requestID,
		"pages":          len(pages),
	}).Infof("Prediction completed in %.4f seconds", inferenceTime)

	return pages, inferenceTime, nil
}

func (s *layoutService) saveUpload(file *multipart.FileHeader) (string, string, error) {
	storedName := s.utils.NewUploadName(file.Filename)
	filePath := filepath.Join(s.cfg.UploadFolder, storedName)

	src, err := file.Open()
	if err != nil {
		return "", "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filePath)
	if err != nil {
		return "", "", fmt.Errorf("create upload file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(filePath)
		return "", "", fmt.Errorf("write upload file: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(filePath)
		return "", "", fmt.Errorf("write upload file: %w", err)
	}

	return filePath, storedName, nil
}

func (s *layoutService) removeUpload(requestID string, filePath string) {
	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.WithFields(log.Fields{
			log.RequestIDKey: requestID,
			"path":           filePath,
			"error":          err.Error(),
		}).Warn("Failed to remove uploaded file")
	}
}

func (s *layoutService) cacheKey(filePath string, opts detector.PredictOptions) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sum, err := s.utils.HashContent(f)
	if err != nil {
		return "", err
	}

	threshold := "default"
	if opts.Threshold != nil {
		threshold = strconv.FormatFloat(*opts.Threshold, 'f', -1, 64)
	}

	return fmt.Sprintf("%s:%s:%s:%t", sum, s.detector.ModelName(), threshold, opts.LayoutNMS), nil
}

// cachedResults serves an earlier run of the same bytes, pointing input_path
// at the current upload.
func (s *layoutService) cachedResults(ctx context.Context, key string, inputPath string) ([]layout.PageData, bool) {
	data, err := s.cache.GetPrediction(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.log.WithFields(log.Fields{
				log.RequestIDKey: contextPkg.GetRequestID(ctx),
				"error":          err.Error(),
			}).Warn("Prediction cache lookup failed")
		}
		return nil, false
	}

	var cached []detector.ResultJSON
	if err := json.Unmarshal(data, &cached); err != nil {
		if derr := s.cache.DeletePrediction(ctx, key); derr != nil {
			s.log.WithFields(log.Fields{
				log.RequestIDKey: contextPkg.GetRequestID(ctx),
				"error":          derr.Error(),
			}).Warn("Failed to evict corrupt cache entry")
		}
		return nil, false
	}

	results := make([]layout.PageData, 0, len(cached))
	for i, res := range cached {
		res.Res.InputPath = inputPath
		results = append(results, layout.PageData{
			PageIndex: i,
			Data:      res,
		})
	}
	return results, true
}

func (s *layoutService) storeResults(ctx context.Context, requestID string, key string, pages []detector.PageResult) {
	cached := make([]detector.ResultJSON, 0, len(pages))
	for _, page := range pages {
		cached = append(cached, page.JSON())
	}

	data, err := json.Marshal(cached)
	if err == nil {
		err = s.cache.SetPrediction(ctx, key, data, s.cfg.CacheTTL)
	}
	if err != nil {
		s.log.WithFields(log.Fields{
			log.RequestIDKey: requestID,
			"error":          err.Error(),
		}).Warn("Failed to cache prediction")
	}
}

func (s *layoutService) mirror(ctx context.Context, requestID string, outputID string, filePath string, contentType string) string {
	location, err := s.s3.UploadFile(ctx, s3.ObjectKey(outputID, filePath), filePath, contentType)
	if err != nil {
		s.log.WithFields(log.Fields{
			log.RequestIDKey: requestID,
			"path":           filePath,
			"error":          err.Error(),
		}).Warn("Failed to mirror artifact")
		return ""
	}
	return location
}

// recordPrediction never fails the request; history is best effort.
func (s *layoutService) recordPrediction(ctx context.Context, prediction entity.Prediction) {
	if s.repo == nil {
		return
	}

	id, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		s.log.WithFields(log.Fields{
			log.RequestIDKey: prediction.RequestID,
			"error":          err.Error(),
		}).Warn("Failed to generate prediction id")
		return
	}

	prediction.ID = id
	prediction.ModelName = s.detector.ModelName()
	prediction.Device = s.detector.Device()
	prediction.CreatedAt = time.Now()

	client, err := s.repo.NewClient(false)
	if err == nil {
		err = client.Prediction.CreatePrediction(ctx, prediction)
	}
	if err != nil {
		s.log.WithFields(log.Fields{
			log.RequestIDKey: prediction.RequestID,
			"error":          err.Error(),
		}).Warn("Failed to record prediction")
	}
}

func predictOptions(req layout.PredictRequest) detector.PredictOptions {
	opts := detector.DefaultPredictOptions()
	opts.Threshold = req.Threshold
	if req.LayoutNMS != nil {
		opts.LayoutNMS = *req.LayoutNMS
	}
	return opts
}
