package layout

import (
	"net/http"
	"strings"

	"DocLayout/pkg/response"
	"DocLayout/pkg/utils"
)

var (
	ErrNoFilePart         = response.NewError(http.StatusBadRequest, "No file part in the request")
	ErrNoFileSelected     = response.NewError(http.StatusBadRequest, "No file selected")
	ErrFileTypeNotAllowed = response.NewError(http.StatusBadRequest, "File type not allowed. Allowed types: "+strings.Join(utils.AllowedExtensions, ", "))
	ErrPredictionNotFound = response.NewError(http.StatusNotFound, "prediction not found")
	ErrHistoryDisabled    = response.NewError(http.StatusNotFound, "prediction history is not enabled")
	ErrConvertResult      = response.NewError(http.StatusInternalServerError, "Failed to convert result to JSON-serializable format")
)
