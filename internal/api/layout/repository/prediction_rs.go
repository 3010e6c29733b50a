package layoutRepository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"DocLayout/internal/api/layout"
	"DocLayout/internal/entity"
	contextPkg "DocLayout/pkg/context"
	"DocLayout/pkg/log"

	"github.com/jmoiron/sqlx"
)

type PredictionDB struct {
	ID               sql.NullString  `db:"id"`
	RequestID        sql.NullString  `db:"request_id"`
	Variant          sql.NullInt16   `db:"variant"`
	OriginalFilename sql.NullString  `db:"original_filename"`
	StoredFilename   sql.NullString  `db:"stored_filename"`
	ModelName        sql.NullString  `db:"model_name"`
	Device           sql.NullString  `db:"device"`
	PageCount        sql.NullInt64   `db:"page_count"`
	BoxCount         sql.NullInt64   `db:"box_count"`
	InferenceTime    sql.NullFloat64 `db:"inference_time"`
	OutputDirectory  sql.NullString  `db:"output_directory"`
	CreatedAt        time.Time       `db:"created_at"`
}

func (r *predictionRepository) CreatePrediction(c context.Context, prediction entity.Prediction) error {
	requestID := contextPkg.GetRequestID(c)

	createdAt := prediction.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	argsKV := map[string]interface{}{
		"id":                prediction.ID,
		"request_id":        prediction.RequestID,
		"variant":           prediction.Variant.Value(),
		"original_filename": prediction.OriginalFilename,
		"stored_filename":   prediction.StoredFilename,
		"model_name":        prediction.ModelName,
		"device":            prediction.Device,
		"page_count":        prediction.PageCount,
		"box_count":         prediction.BoxCount,
		"inference_time":    prediction.InferenceTime,
		"output_directory":  sql.NullString{String: prediction.OutputDirectory, Valid: prediction.OutputDirectory != ""},
		"created_at":        createdAt,
	}

	query, args, err := sqlx.Named(queryCreatePrediction, argsKV)
	if err != nil {
		r.log.WithFields(log.Fields{
			log.RequestIDKey: requestID,
			"error":          err.Error(),
		}).Error("Failed to build SQL query for CreatePrediction")
		return err
	}
	query = r.q.Rebind(query)

	if _, err = r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(log.Fields{
			log.RequestIDKey: requestID,
			"error":          err.Error(),
		}).Error("Database error when creating prediction")
		return err
	}

	return nil
}

func (r *predictionRepository) GetPredictionByID(c context.Context, id string) (entity.Prediction, error) {
	requestID := contextPkg.GetRequestID(c)
	var row PredictionDB

	query, args, err := sqlx.Named(queryGetPredictionByID, map[string]interface{}{"id": id})
	if err != nil {
		r.log.WithFields(log.Fields{
			log.RequestIDKey: requestID,
			"error":          err.Error(),
		}).Error("GetPredictionByID named query preparation err")
		return entity.Prediction{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(c, query, args...).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(log.Fields{
				log.RequestIDKey: requestID,
				"id":             id,
			}).Warn("GetPredictionByID no rows found")
			return entity.Prediction{}, layout.ErrPredictionNotFound
		}
		r.log.WithFields(log.Fields{
			log.RequestIDKey: requestID,
			"error":          err.Error(),
		}).Error("GetPredictionByID execution err")
		return entity.Prediction{}, err
	}

	return r.makePrediction(row), nil
}

func (r *predictionRepository) ListPredictions(c context.Context, limit int, offset int) ([]entity.Prediction, error) {
	requestID := contextPkg.GetRequestID(c)
	var rows []PredictionDB

	query, args, err := sqlx.Named(queryListPredictions, map[string]interface{}{
		"limit":  limit,
		"offset": offset,
	})
	if err != nil {
		r.log.WithFields(log.Fields{
			log.RequestIDKey: requestID,
			"error":          err.Error(),
		}).Error("ListPredictions named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	if err := r.q.SelectContext(c, &rows, query, args...); err != nil {
		r.log.WithFields(log.Fields{
			log.RequestIDKey: requestID,
			"error":          err.Error(),
		}).Error("ListPredictions execution err")
		return nil, err
	}

	result := make([]entity.Prediction, 0, len(rows))
	for _, row := range rows {
		result = append(result, r.makePrediction(row))
	}

	return result, nil
}

func (r *predictionRepository) makePrediction(row PredictionDB) entity.Prediction {
	return entity.Prediction{
		ID:               row.ID.String,
		RequestID:        row.RequestID.String,
		Variant:          entity.PredictionVariant(row.Variant.Int16),
		OriginalFilename: row.OriginalFilename.String,
		StoredFilename:   row.StoredFilename.String,
		ModelName:        row.ModelName.String,
		Device:           row.Device.String,
		PageCount:        int(row.PageCount.Int64),
		BoxCount:         int(row.BoxCount.Int64),
		InferenceTime:    row.InferenceTime.Float64,
		OutputDirectory:  row.OutputDirectory.String,
		CreatedAt:        row.CreatedAt,
	}
}
