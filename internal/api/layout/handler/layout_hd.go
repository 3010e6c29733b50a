package layoutHandler

import (
	"context"
	"fmt"
	"mime/multipart"
	"strconv"

	"DocLayout/internal/api/layout"
	contextPkg "DocLayout/pkg/context"
	"DocLayout/pkg/handlerUtil"
	"DocLayout/pkg/log"

	"github.com/gofiber/fiber/v2"
)

func (h *LayoutHandler) Health(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, h.layoutService.Health())
}

func (h *LayoutHandler) Predict(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	file, req, err := h.parseUpload(ctx)
	if err != nil {
		return h.handleUploadError(ctx, errHandler, requestID, err)
	}

	h.log.WithFields(log.Fields{
		log.RequestIDKey: requestID,
		"path":           ctx.Path(),
		"file_name":      file.Filename,
		"file_size":      file.Size,
	}).Debug("Processing layout prediction request")

	resp, err := h.layoutService.Predict(c, file, req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "predict")
	}

	h.log.WithFields(log.Fields{
		log.RequestIDKey: requestID,
		"path":           ctx.Path(),
		"pages":          len(resp.Results),
		"inference_time": resp.InferenceTime,
	}).Info("Layout prediction successful")
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, resp)
}

func (h *LayoutHandler) PredictAndPersist(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	file, req, err := h.parseUpload(ctx)
	if err != nil {
		return h.handleUploadError(ctx, errHandler, requestID, err)
	}

	h.log.WithFields(log.Fields{
		log.RequestIDKey: requestID,
		"path":           ctx.Path(),
		"file_name":      file.Filename,
		"file_size":      file.Size,
	}).Debug("Processing persisted layout prediction request")

	resp, err := h.layoutService.PredictAndPersist(c, file, req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "predict_and_persist")
	}

	h.log.WithFields(log.Fields{
		log.RequestIDKey:   requestID,
		"path":             ctx.Path(),
		"pages":            len(resp.Results),
		"output_directory": resp.OutputDirectory,
	}).Info("Layout prediction persisted")
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, resp)
}

func (h *LayoutHandler) ListPredictions(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req layout.ListPredictionsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	resp, err := h.layoutService.ListPredictions(c, req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "list_predictions")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, resp)
}

func (h *LayoutHandler) GetPrediction(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	prediction, err := h.layoutService.GetPrediction(c, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_prediction")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, prediction)
}

type validationError struct {
	err error
}

func (e validationError) Error() string {
	return e.err.Error()
}

func (h *LayoutHandler) handleUploadError(ctx *fiber.Ctx, errHandler *handlerUtil.ErrorHandler, requestID string, err error) error {
	if vErr, ok := err.(validationError); ok {
		return errHandler.HandleValidationError(ctx, requestID, vErr.err, ctx.Path())
	}
	return errHandler.Handle(ctx, requestID, err, ctx.Path(), "validate_upload")
}

// parseUpload checks the upload in the order clients rely on: the part must
// exist, carry a filename and use an allowed extension before any optional
// field is looked at.
func (h *LayoutHandler) parseUpload(ctx *fiber.Ctx) (*multipart.FileHeader, layout.PredictRequest, error) {
	var req layout.PredictRequest

	form, err := ctx.MultipartForm()
	if err != nil {
		return nil, req, layout.ErrNoFilePart
	}

	files := form.File["file"]
	if len(files) == 0 {
		// parts without a filename are decoded as plain values
		if _, ok := form.Value["file"]; ok {
			return nil, req, layout.ErrNoFileSelected
		}
		return nil, req, layout.ErrNoFilePart
	}

	file := files[0]
	if file.Filename == "" {
		return nil, req, layout.ErrNoFileSelected
	}

	if !h.utils.AllowedFile(file.Filename) {
		return nil, req, layout.ErrFileTypeNotAllowed
	}

	if raw := firstValue(form, "threshold"); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, req, validationError{fmt.Errorf("threshold must be a number")}
		}
		req.Threshold = &threshold
	}

	if raw := firstValue(form, "layout_nms"); raw != "" {
		nms, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, req, validationError{fmt.Errorf("layout_nms must be a boolean")}
		}
		req.LayoutNMS = &nms
	}

	if err := h.validator.Struct(req); err != nil {
		return nil, req, validationError{err}
	}

	return file, req, nil
}

func firstValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}
