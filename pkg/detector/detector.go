package detector

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	BackendONNX    = "onnx"
	BackendPaddleX = "paddlex"
	BackendWS      = "ws"

	DefaultModelName = "PP-DocLayout-L"
	DefaultThreshold = 0.5
	DefaultInputSize = 640
)

var (
	ErrUnknownBackend  = errors.New("unknown detector backend")
	ErrNoPageImage     = errors.New("no page image available for visualization")
	ErrUnreadableImage = errors.New("input image could not be decoded")
)

// DocLayoutLabels are the PP-DocLayout-L classes indexed by cls_id.
var DocLayoutLabels = []string{
	"paragraph_title",
	"image",
	"text",
	"number",
	"abstract",
	"content",
	"figure_title",
	"formula",
	"table",
	"table_title",
	"reference",
	"doc_title",
	"footnote",
	"header",
	"algorithm",
	"footer",
	"seal",
	"chart_title",
	"chart",
	"formula_number",
	"header_image",
	"footer_image",
	"aside_text",
}

type Detector interface {
	Predict(ctx context.Context, inputPath string, opts PredictOptions) ([]PageResult, error)
	ModelName() string
	Device() string
	Close() error
}

type PredictOptions struct {
	BatchSize int
	LayoutNMS bool
	Threshold *float64
}

func DefaultPredictOptions() PredictOptions {
	return PredictOptions{
		BatchSize: 1,
		LayoutNMS: true,
	}
}

func (o PredictOptions) threshold() float64 {
	if o.Threshold == nil {
		return DefaultThreshold
	}
	return *o.Threshold
}

type Config struct {
	Backend        string
	ModelName      string
	UseGPU         bool
	ModelPath      string
	LibraryPath    string
	InputSize      int
	PDFDPI         int
	ServiceURL     string
	WSURL          string
	RequestTimeout time.Duration
}

func New(cfg Config, log *logrus.Logger) (Detector, error) {
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModelName
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = DefaultInputSize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}

	log.WithFields(logrus.Fields{
		"backend": cfg.Backend,
		"model":   cfg.ModelName,
		"device":  deviceName(cfg.UseGPU),
	}).Info("Loading layout model")

	switch cfg.Backend {
	case BackendONNX, "":
		return newONNXDetector(cfg, log)
	case BackendPaddleX:
		return newPaddleXDetector(cfg, log)
	case BackendWS:
		return newWSDetector(cfg, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

func deviceName(useGPU bool) string {
	if useGPU {
		return "GPU"
	}
	return "CPU"
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
