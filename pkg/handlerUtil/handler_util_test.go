package handlerUtil

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"DocLayout/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func call(t *testing.T, fn func(c *fiber.Ctx, h *ErrorHandler) error) (int, string) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	h := New(logger)

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return fn(c, h) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestHandleDomainError(t *testing.T) {
	sentinel := response.NewError(http.StatusBadRequest, "No file selected")
	status, body := call(t, func(c *fiber.Ctx, h *ErrorHandler) error {
		return h.Handle(c, "rid", fmt.Errorf("validate: %w", sentinel), "/predict", "validate")
	})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"error":"No file selected"}`, body)
}

func TestHandleUnexpectedError(t *testing.T) {
	status, body := call(t, func(c *fiber.Ctx, h *ErrorHandler) error {
		return h.Handle(c, "rid", errors.New("model exploded"), "/predict", "predict")
	})

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.JSONEq(t, `{"error":"model exploded"}`, body)
}

func TestHandleValidationError(t *testing.T) {
	status, body := call(t, func(c *fiber.Ctx, h *ErrorHandler) error {
		return h.HandleValidationError(c, "rid", errors.New("threshold must be <= 1"), "/predict")
	})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"error":"Validation failed: threshold must be <= 1","code":"VALIDATION_ERROR"}`, body)
}

func TestHandleSuccessWithoutBody(t *testing.T) {
	status, body := call(t, func(c *fiber.Ctx, h *ErrorHandler) error {
		return h.HandleSuccess(c, http.StatusNoContent, nil)
	})

	assert.Equal(t, http.StatusNoContent, status)
	assert.Empty(t, body)
}
