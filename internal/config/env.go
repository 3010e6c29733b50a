package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"DocLayout/pkg/detector"

	"github.com/go-playground/validator/v10"
)

type AppConfig struct {
	Port           string `validate:"required,numeric"`
	Env            string
	UseGPU         bool
	UploadFolder   string `validate:"required"`
	OutputFolder   string `validate:"required"`
	MaxUploadMB    int    `validate:"gte=1"`
	RequestTimeout time.Duration
	CacheTTL       time.Duration
	Detector       detector.Config
	DatabaseHost   string
}

type detectorEnv struct {
	Backend     string `validate:"oneof=onnx paddlex ws"`
	ModelName   string `validate:"required"`
	ModelPath   string `validate:"required_if=Backend onnx"`
	InputSize   int    `validate:"gte=32"`
	PDFDPI      int    `validate:"gte=0,lte=1200"`
	ServiceURL  string `validate:"required_if=Backend paddlex,omitempty,url"`
	WSURL       string `validate:"required_if=Backend ws,omitempty,url"`
	LibraryPath string
}

// LoadAppConfig reads the process environment; .env is merged in by main
// beforehand.
func LoadAppConfig(v *validator.Validate) (AppConfig, error) {
	cfg := AppConfig{
		Port:           envString("APP_PORT", "5000"),
		Env:            envString("APP_ENV", "development"),
		UseGPU:         strings.EqualFold(os.Getenv("USE_GPU"), "true"),
		UploadFolder:   envString("UPLOAD_FOLDER", "./uploads"),
		OutputFolder:   envString("OUTPUT_FOLDER", "./output"),
		MaxUploadMB:    envInt("MAX_UPLOAD_MB", 50),
		RequestTimeout: time.Duration(envInt("REQUEST_TIMEOUT_SECONDS", 300)) * time.Second,
		CacheTTL:       time.Duration(envInt("PREDICT_CACHE_TTL", 3600)) * time.Second,
		DatabaseHost:   os.Getenv("DB_HOST"),
	}

	det := detectorEnv{
		Backend:     envString("DETECTOR_BACKEND", detector.BackendONNX),
		ModelName:   envString("MODEL_NAME", detector.DefaultModelName),
		ModelPath:   os.Getenv("ONNX_MODEL_PATH"),
		LibraryPath: os.Getenv("ONNX_LIBRARY_PATH"),
		InputSize:   envInt("ONNX_INPUT_SIZE", detector.DefaultInputSize),
		PDFDPI:      envInt("PDF_DPI", 0),
		ServiceURL:  os.Getenv("LAYOUT_SERVICE_URL"),
		WSURL:       os.Getenv("LAYOUT_WS_URL"),
	}

	if err := v.Struct(cfg); err != nil {
		return AppConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := v.Struct(det); err != nil {
		return AppConfig{}, fmt.Errorf("invalid detector configuration: %w", err)
	}

	cfg.Detector = detector.Config{
		Backend:        det.Backend,
		ModelName:      det.ModelName,
		UseGPU:         cfg.UseGPU,
		ModelPath:      det.ModelPath,
		LibraryPath:    det.LibraryPath,
		InputSize:      det.InputSize,
		PDFDPI:         det.PDFDPI,
		ServiceURL:     det.ServiceURL,
		WSURL:          det.WSURL,
		RequestTimeout: cfg.RequestTimeout,
	}

	return cfg, nil
}

func (c AppConfig) DatabaseEnabled() bool {
	return c.DatabaseHost != ""
}

// EnsureDirectories creates the upload and output roots.
func (c AppConfig) EnsureDirectories() error {
	for _, dir := range []string{c.UploadFolder, c.OutputFolder} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func envString(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
