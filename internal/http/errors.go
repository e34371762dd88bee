package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/target/mmk-autoapply/internal/errors"
)

const genericInternalMessage = "The request could not be completed."

var statusByCode = map[apperrors.ErrorCode]int{
	apperrors.ErrCodeNotFound:     http.StatusNotFound,
	apperrors.ErrCodeConflict:     http.StatusConflict,
	apperrors.ErrCodeForeignKey:   http.StatusConflict,
	apperrors.ErrCodeValidation:   http.StatusBadRequest,
	apperrors.ErrCodeUnauthorized: http.StatusUnauthorized,
	apperrors.ErrCodeForbidden:    http.StatusForbidden,
	apperrors.ErrCodeTimeout:      http.StatusGatewayTimeout,
	apperrors.ErrCodeCanceled:     http.StatusServiceUnavailable,
	apperrors.ErrCodeInternal:     http.StatusInternalServerError,
}

// writeServiceError maps a service error to a JSON response. Internal errors
// are logged with their cause and reach the client only as a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	mapped := apperrors.FromDomain(err)

	var appErr *apperrors.AppError
	if !errors.As(mapped, &appErr) {
		appErr = &apperrors.AppError{Code: apperrors.ErrCodeInternal, Cause: err}
	}

	status, ok := statusByCode[appErr.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	message := appErr.Message
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"code", string(appErr.Code),
			"error", err,
		)
		if appErr.Code == apperrors.ErrCodeInternal || message == "" {
			message = genericInternalMessage
		}
	}

	WriteError(w, ErrorParams{
		Code:    status,
		ErrCode: string(appErr.Code),
		Err:     errors.New(message),
		Field:   appErr.Field,
	})
}
