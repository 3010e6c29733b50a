package detector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// paddlexDetector forwards inference to a PaddleX style serving endpoint.
type paddlexDetector struct {
	client *http.Client
	cfg    Config
	log    *logrus.Logger
}

func newPaddleXDetector(cfg Config, log *logrus.Logger) (Detector, error) {
	if cfg.ServiceURL == "" {
		return nil, fmt.Errorf("paddlex backend requires LAYOUT_SERVICE_URL")
	}

	d := &paddlexDetector{
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cfg: cfg,
		log: log,
	}

	if err := d.CheckHealth(context.Background()); err != nil {
		log.Warnf("Layout service not available: %v", err)
	}

	return d, nil
}

func (d *paddlexDetector) ModelName() string {
	return d.cfg.ModelName
}

func (d *paddlexDetector) Device() string {
	return deviceName(d.cfg.UseGPU)
}

func (d *paddlexDetector) Predict(ctx context.Context, inputPath string, opts PredictOptions) ([]PageResult, error) {
	payload, err := newRemoteRequest(inputPath, d.cfg.ModelName, opts)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.ServiceURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRemoteInference, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var envelope remoteEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	d.log.WithFields(logrus.Fields{
		"log_id": envelope.LogID,
		"pages":  resultCount(&envelope),
	}).Debug("Received response from layout service")

	return envelope.pages(inputPath, DocLayoutLabels)
}

func (d *paddlexDetector) CheckHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL(d.cfg.ServiceURL), nil)
	if err != nil {
		return err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("layout service unhealthy: %d", resp.StatusCode)
	}
	return nil
}

func (d *paddlexDetector) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

// healthURL maps http://host:8080/layout-detection to http://host:8080/health.
func healthURL(serviceURL string) string {
	rest := serviceURL
	scheme := ""
	if idx := strings.Index(rest, "://"); idx >= 0 {
		scheme = rest[:idx+3]
		rest = rest[idx+3:]
	}
	if idx := strings.Index(rest, "/"); idx >= 0 {
		rest = rest[:idx]
	}
	return scheme + rest + "/health"
}

func resultCount(e *remoteEnvelope) int {
	if e.Result == nil {
		return 0
	}
	return len(e.Result.LayoutResults)
}
