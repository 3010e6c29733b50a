package layoutRepository

const (
	querySchema = `
		CREATE TABLE IF NOT EXISTS predictions (
			id                VARCHAR(26) PRIMARY KEY,
			request_id        VARCHAR(64) NOT NULL,
			variant           SMALLINT NOT NULL,
			original_filename TEXT NOT NULL,
			stored_filename   TEXT NOT NULL,
			model_name        VARCHAR(64) NOT NULL,
			device            VARCHAR(8) NOT NULL,
			page_count        INTEGER NOT NULL,
			box_count         INTEGER NOT NULL,
			inference_time    DOUBLE PRECISION NOT NULL,
			output_directory  TEXT,
			created_at        TIMESTAMPTZ NOT NULL
		)
	`

	queryCreatePrediction = `
		INSERT INTO predictions (
			id,
			request_id,
			variant,
			original_filename,
			stored_filename,
			model_name,
			device,
			page_count,
			box_count,
			inference_time,
			output_directory,
			created_at
		) VALUES (
			:id,
			:request_id,
			:variant,
			:original_filename,
			:stored_filename,
			:model_name,
			:device,
			:page_count,
			:box_count,
			:inference_time,
			:output_directory,
			:created_at
		)
	`

	queryGetPredictionByID = `
		SELECT
			id,
			request_id,
			variant,
			original_filename,
			stored_filename,
			model_name,
			device,
			page_count,
			box_count,
			inference_time,
			output_directory,
			created_at
		FROM predictions
		WHERE id = :id
	`

	queryListPredictions = `
		SELECT
			id,
			request_id,
			variant,
			original_filename,
			stored_filename,
			model_name,
			device,
			page_count,
			box_count,
			inference_time,
			output_directory,
			created_at
		FROM predictions
		ORDER BY created_at DESC
		LIMIT :limit OFFSET :offset
	`
)
