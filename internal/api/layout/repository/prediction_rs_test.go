package layoutRepository

import (
	"context"
	"database/sql"
	"io"
	"regexp"
	"testing"
	"time"

	"DocLayout/internal/api/layout"
	"DocLayout/internal/entity"
	contextPkg "DocLayout/pkg/context"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var predictionColumns = []string{
	"id", "request_id", "variant", "original_filename", "stored_filename", "model_name",
	"device", "page_count", "box_count", "inference_time", "output_directory", "created_at",
}

func newMockClient(t *testing.T, tx bool) (Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	if tx {
		mock.ExpectBegin()
	}
	client, err := New(sqlx.NewDb(db, "postgres"), logger).NewClient(tx)
	require.NoError(t, err)
	return client, mock
}

func testCtx() context.Context {
	return contextPkg.WithRequestID(context.Background(), "req-1")
}

func TestCreatePrediction(t *testing.T) {
	client, mock := newMockClient(t, true)

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO predictions")).
		WithArgs("01HX", "req-1", sqlmock.AnyArg(), "scan.pdf", "uuid_scan.pdf", "PP-DocLayout-L",
			"CPU", 2, 7, 0.25, "output/abc", created).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := client.Prediction.CreatePrediction(testCtx(), entity.Prediction{
		ID:               "01HX",
		RequestID:        "req-1",
		Variant:          entity.PredictionVariantPersisted,
		OriginalFilename: "scan.pdf",
		StoredFilename:   "uuid_scan.pdf",
		ModelName:        "PP-DocLayout-L",
		Device:           "CPU",
		PageCount:        2,
		BoxCount:         7,
		InferenceTime:    0.25,
		OutputDirectory:  "output/abc",
		CreatedAt:        created,
	})
	require.NoError(t, err)
	require.NoError(t, client.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPredictionByID(t *testing.T) {
	client, mock := newMockClient(t, false)

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM predictions")).
		WithArgs("01HX").
		WillReturnRows(sqlmock.NewRows(predictionColumns).
			AddRow("01HX", "req-1", 1, "a.png", "u_a.png", "PP-DocLayout-L", "GPU", 1, 3, 0.1, nil, created))

	p, err := client.Prediction.GetPredictionByID(testCtx(), "01HX")
	require.NoError(t, err)

	assert.Equal(t, entity.PredictionVariantInMemory, p.Variant)
	assert.Equal(t, "GPU", p.Device)
	assert.Equal(t, 3, p.BoxCount)
	assert.Empty(t, p.OutputDirectory)
	assert.Equal(t, created, p.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPredictionByIDNotFound(t *testing.T) {
	client, mock := newMockClient(t, false)

	mock.ExpectQuery(regexp.QuoteMeta("FROM predictions")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := client.Prediction.GetPredictionByID(testCtx(), "missing")
	assert.ErrorIs(t, err, layout.ErrPredictionNotFound)
}

func TestListPredictions(t *testing.T) {
	client, mock := newMockClient(t, false)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WithArgs(10, 20).
		WillReturnRows(sqlmock.NewRows(predictionColumns).
			AddRow("b", "r2", 2, "b.pdf", "u_b.pdf", "PP-DocLayout-L", "CPU", 3, 9, 1.5, "output/b", now).
			AddRow("a", "r1", 1, "a.png", "u_a.png", "PP-DocLayout-L", "CPU", 1, 2, 0.2, nil, now))

	list, err := client.Prediction.ListPredictions(testCtx(), 10, 20)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "output/b", list[0].OutputDirectory)
	assert.Equal(t, entity.PredictionVariantInMemory, list[1].Variant)
	assert.NoError(t, mock.ExpectationsWereMet())
}
