package apperror

import (
	"fmt"

	"portfolio-rag/config"
	"portfolio-rag/pkg/apperror/status"
	"portfolio-rag/pkg/logger"

	"github.com/gofiber/fiber/v3"
)

// ErrorResponse is the standardized HTTP error payload
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
	Data      any    `json:"data,omitempty"`
}

type FiberSuccessMessage struct {
	Code       status.SuccessCode `json:"code"`
	Message    string             `json:"message"`
	TrackingID string             `json:"tracking_id"`
	Data       any                `json:"data"`
}

func formatCode(code status.ErrorCode) string {
	return fmt.Sprintf("RAG-%d", code)
}

// WriteError logs a structured warning and returns a standardized JSON error
func WriteError(module config.Module, c fiber.Ctx, httpStatus int, code string, message string, data any) error {
	logger.For(module).WithFields(map[string]interface{}{
		"status_code":   httpStatus,
		"error_code":    code,
		"error_message": message,
		"http_method":   c.Method(),
		"path":          c.Path(),
		"ip":            c.IP(),
	}).Warnf("http error")

	return c.Status(httpStatus).JSON(ErrorResponse{
		Error:     message,
		ErrorCode: code,
		Data:      data,
	})
}

func BadRequest(module config.Module, c fiber.Ctx, code status.ErrorCode, message string) error {
	return WriteError(module, c, fiber.StatusBadRequest, formatCode(code), message, nil)
}

func InternalError(module config.Module, c fiber.Ctx, err error) error {
	return WriteError(module, c, fiber.StatusInternalServerError, formatCode(status.ErrorCodeInternal), err.Error(), nil)
}

// Fail classifies err through CodeOf and attaches data (e.g. a run summary).
func Fail(module config.Module, c fiber.Ctx, err error, data any) error {
	code, httpStatus := CodeOf(err)
	return WriteError(module, c, httpStatus, formatCode(code), err.Error(), data)
}

func Success(module config.Module, c fiber.Ctx, response FiberSuccessMessage) error {
	httpStatus := fiber.StatusOK
	if response.Code == status.Accepted {
		httpStatus = fiber.StatusAccepted
	}
	return c.Status(httpStatus).JSON(response)
}
