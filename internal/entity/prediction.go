package entity

import (
	"strconv"
	"time"
)

type Prediction struct {
	ID               string            `db:"id" json:"id"`
	RequestID        string            `db:"request_id" json:"request_id"`
	Variant          PredictionVariant `db:"variant" json:"variant"`
	OriginalFilename string            `db:"original_filename" json:"original_filename"`
	StoredFilename   string            `db:"stored_filename" json:"stored_filename"`
	ModelName        string            `db:"model_name" json:"model_name"`
	Device           string            `db:"device" json:"device"`
	PageCount        int               `db:"page_count" json:"page_count"`
	BoxCount         int               `db:"box_count" json:"box_count"`
	InferenceTime    float64           `db:"inference_time" json:"inference_time"`
	OutputDirectory  string            `db:"output_directory" json:"output_directory,omitempty"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
}

type PredictionVariant uint8

const (
	PredictionVariantUnknown   PredictionVariant = 0
	PredictionVariantInMemory  PredictionVariant = 1
	PredictionVariantPersisted PredictionVariant = 2
)

var PredictionVariantMap = map[PredictionVariant]string{
	PredictionVariantInMemory:  "in_memory",
	PredictionVariantPersisted: "persisted",
}

func (v PredictionVariant) String() string {
	return PredictionVariantMap[v]
}

func (v PredictionVariant) Value() uint8 {
	return uint8(v)
}

func (v PredictionVariant) MarshalJSON() ([]byte, error) {
	name, ok := PredictionVariantMap[v]
	if !ok {
		name = "unknown"
	}
	return []byte(strconv.Quote(name)), nil
}
