package detector

import (
	"context"
	"fmt"
	"image"
	"os"

	"DocLayout/pkg/pdf"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	onnxInputNames  = []string{"im_shape", "image", "scale_factor"}
	onnxOutputNames = []string{"fetch_name_0"}
)

type onnxDetector struct {
	session  *ort.DynamicAdvancedSession
	cfg      Config
	labels   []string
	renderer pdf.IRenderer
	log      *logrus.Logger
}

type pageInput struct {
	img   image.Image
	index *int
}

func newONNXDetector(cfg Config, log *logrus.Logger) (Detector, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("onnx backend requires a model path")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if cfg.UseGPU {
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			ort.DestroyEnvironment()
			return nil, fmt.Errorf("failed to create CUDA options: %w", err)
		}
		defer cudaOptions.Destroy()

		if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
			ort.DestroyEnvironment()
			return nil, fmt.Errorf("failed to enable CUDA execution provider: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, onnxInputNames, onnxOutputNames, options)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	log.WithFields(logrus.Fields{
		"model_path": cfg.ModelPath,
		"input_size": cfg.InputSize,
	}).Info("Model loaded successfully")

	return &onnxDetector{
		session:  session,
		cfg:      cfg,
		labels:   DocLayoutLabels,
		renderer: pdf.NewRenderer(cfg.PDFDPI),
		log:      log,
	}, nil
}

func (d *onnxDetector) ModelName() string {
	return d.cfg.ModelName
}

func (d *onnxDetector) Device() string {
	return deviceName(d.cfg.UseGPU)
}

func (d *onnxDetector) Predict(ctx context.Context, inputPath string, opts PredictOptions) ([]PageResult, error) {
	pages, cleanup, err := d.loadPages(ctx, inputPath)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	results := make([]PageResult, 0, len(pages))
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bounds := page.img.Bounds()
		raw, err := d.run(page.img)
		if err != nil {
			return nil, err
		}

		results = append(results, PageResult{
			InputPath: inputPath,
			PageIndex: page.index,
			Width:     bounds.Dx(),
			Height:    bounds.Dy(),
			Boxes:     postprocess(raw, bounds.Dx(), bounds.Dy(), opts),
			Page:      page.img,
		})
	}

	return results, nil
}

func (d *onnxDetector) loadPages(ctx context.Context, inputPath string) ([]pageInput, func(), error) {
	noop := func() {}

	if !isPDF(inputPath) {
		img, err := loadImage(inputPath)
		if err != nil {
			return nil, noop, err
		}
		return []pageInput{{img: img}}, noop, nil
	}

	workDir, err := os.MkdirTemp("", "doclayout-pdf-*")
	if err != nil {
		return nil, noop, fmt.Errorf("create render dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(workDir); err != nil {
			d.log.WithError(err).Warn("Failed to remove PDF render directory")
		}
	}

	paths, err := d.renderer.Render(ctx, inputPath, workDir)
	if err != nil {
		cleanup()
		return nil, noop, err
	}

	pages := make([]pageInput, 0, len(paths))
	for i, p := range paths {
		img, err := loadImage(p)
		if err != nil {
			cleanup()
			return nil, noop, err
		}
		idx := i
		pages = append(pages, pageInput{img: img, index: &idx})
	}

	return pages, cleanup, nil
}

func (d *onnxDetector) run(img image.Image) ([]Box, error) {
	size := d.cfg.InputSize
	bounds := img.Bounds()
	scale := scaleFactor(bounds.Dx(), bounds.Dy(), size)

	imShape, err := ort.NewTensor(ort.NewShape(1, 2), []float32{float32(size), float32(size)})
	if err != nil {
		return nil, fmt.Errorf("failed to create im_shape tensor: %w", err)
	}
	defer imShape.Destroy()

	imageTensor, err := ort.NewTensor(ort.NewShape(1, 3, int64(size), int64(size)), preprocess(img, size))
	if err != nil {
		return nil, fmt.Errorf("failed to create image tensor: %w", err)
	}
	defer imageTensor.Destroy()

	scaleTensor, err := ort.NewTensor(ort.NewShape(1, 2), scale[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create scale_factor tensor: %w", err)
	}
	defer scaleTensor.Destroy()

	outputs := []ort.ArbitraryTensor{nil}
	if err := d.session.Run([]ort.ArbitraryTensor{imShape, imageTensor, scaleTensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	detections, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected detection output type %T", outputs[0])
	}

	shape := detections.GetShape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("unexpected detection output shape %v", shape)
	}

	return decodeRows(detections.GetData(), int(shape[0]), int(shape[1]), d.labels), nil
}

func (d *onnxDetector) Close() error {
	if d.session != nil {
		if err := d.session.Destroy(); err != nil {
			return err
		}
	}
	return ort.DestroyEnvironment()
}
