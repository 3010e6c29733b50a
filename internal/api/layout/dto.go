package layout

import "DocLayout/internal/entity"

const MessagePredictionSuccessful = "Prediction successful"

type PredictRequest struct {
	Threshold *float64 `validate:"omitempty,gte=0,lte=1"`
	LayoutNMS *bool
}

type HealthResponse struct {
	Status     string `json:"status"`
	GPUEnabled bool   `json:"gpu_enabled"`
}

type PageData struct {
	PageIndex int         `json:"page_index"`
	Data      interface{} `json:"data"`
}

type PredictResponse struct {
	Message       string     `json:"message"`
	InferenceTime float64    `json:"inference_time"`
	Device        string     `json:"device"`
	Results       []PageData `json:"results"`
}

type PersistedResult struct {
	Idx      int         `json:"idx"`
	ImgPath  string      `json:"img_path"`
	JSONPath string      `json:"json_path"`
	Data     interface{} `json:"data"`
	ImgURL   string      `json:"img_url,omitempty"`
	JSONURL  string      `json:"json_url,omitempty"`
}

type PersistedPredictResponse struct {
	Message         string            `json:"message"`
	InferenceTime   float64           `json:"inference_time"`
	Device          string            `json:"device"`
	OutputDirectory string            `json:"output_directory"`
	Results         []PersistedResult `json:"results"`
}

type ListPredictionsRequest struct {
	Page  int `query:"page" validate:"omitempty,min=1"`
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

type ListPredictionsResponse struct {
	Page        int                 `json:"page"`
	Limit       int                 `json:"limit"`
	Predictions []entity.Prediction `json:"predictions"`
}
