package detector

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"os"
)

const (
	fileTypePDF   = 0
	fileTypeImage = 1
)

var ErrRemoteInference = errors.New("remote inference failed")

type remoteRequest struct {
	File      string   `json:"file"`
	FileType  int      `json:"fileType"`
	Model     string   `json:"model,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	LayoutNMS bool     `json:"layoutNms"`
	Visualize bool     `json:"visualize"`
}

type remoteEnvelope struct {
	LogID     string        `json:"logId"`
	ErrorCode int           `json:"errorCode"`
	ErrorMsg  string        `json:"errorMsg"`
	Result    *remoteResult `json:"result"`
}

type remoteResult struct {
	LayoutResults []remotePage `json:"layoutResults"`
}

type remotePage struct {
	Boxes  []Box  `json:"boxes"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Image  string `json:"image,omitempty"`
}

func newRemoteRequest(inputPath string, model string, opts PredictOptions) (remoteRequest, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return remoteRequest{}, fmt.Errorf("read input: %w", err)
	}

	fileType := fileTypeImage
	if isPDF(inputPath) {
		fileType = fileTypePDF
	}

	return remoteRequest{
		File:      base64.StdEncoding.EncodeToString(data),
		FileType:  fileType,
		Model:     model,
		Threshold: opts.Threshold,
		LayoutNMS: opts.LayoutNMS,
		Visualize: true,
	}, nil
}

// pages converts a decoded envelope into page results. Remote services return
// visualizations as base64 JPEG; when one is missing the page image is decoded
// locally for single images, and PDF pages are drawn on a blank canvas.
func (e *remoteEnvelope) pages(inputPath string, labels []string) ([]PageResult, error) {
	if e.ErrorCode != 0 {
		return nil, fmt.Errorf("%w: code %d: %s (log id %s)", ErrRemoteInference, e.ErrorCode, e.ErrorMsg, e.LogID)
	}
	if e.Result == nil {
		return nil, fmt.Errorf("%w: empty result", ErrRemoteInference)
	}

	pdfInput := isPDF(inputPath)
	results := make([]PageResult, 0, len(e.Result.LayoutResults))

	for i, p := range e.Result.LayoutResults {
		for j := range p.Boxes {
			if p.Boxes[j].Label == "" && p.Boxes[j].ClsID >= 0 && p.Boxes[j].ClsID < len(labels) {
				p.Boxes[j].Label = labels[p.Boxes[j].ClsID]
			}
		}

		res := PageResult{
			InputPath: inputPath,
			Width:     p.Width,
			Height:    p.Height,
			Boxes:     p.Boxes,
		}
		if pdfInput {
			idx := i
			res.PageIndex = &idx
		}

		if p.Image != "" {
			visual, err := base64.StdEncoding.DecodeString(p.Image)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid visualization on page %d", ErrRemoteInference, i)
			}
			res.Visual = visual
		} else if !pdfInput {
			if img, err := loadImage(inputPath); err == nil {
				res.Page = img
				if res.Width == 0 || res.Height == 0 {
					res.Width, res.Height = img.Bounds().Dx(), img.Bounds().Dy()
				}
			}
		}

		if res.Width == 0 && len(res.Visual) > 0 {
			if cfg, _, err := image.DecodeConfig(bytes.NewReader(res.Visual)); err == nil {
				res.Width, res.Height = cfg.Width, cfg.Height
			}
		}
		if len(res.Visual) == 0 && res.Page == nil {
			res.Page = blankPage(res.Width, res.Height, res.Boxes)
		}

		results = append(results, res)
	}

	return results, nil
}
