// Package errors define la taxonomía de errores HTTP del servicio.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// AppError define la estructura estándar para errores de la aplicación.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"` // No se serializa, usado para el header
	Err        error  `json:"-"` // Error original (causa), útil para logs, no se expone al cliente
}

// Error implementa la interfaz error.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap permite acceder al error original.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail agrega detalles adicionales al error.
// Devuelve una COPIA para no mutar las variables globales base.
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause agrega el error original (causa). Devuelve una COPIA.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// FromError intenta convertir un error genérico en un AppError.
// Si no lo es, devuelve un error interno genérico conservando la causa.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternalServerError.WithCause(err)
}

// errorResponse estructura interna para la serialización JSON.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// WriteError escribe una respuesta HTTP basada en el error proporcionado.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	resp := errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// =================================================================================
// LISTA DE ERRORES PREDEFINIDOS
// =================================================================================

var (
	// 400
	ErrBadRequest = &AppError{HTTPStatus: http.StatusBadRequest, Code: "bad_request", Message: "Invalid request"}

	// 401 — credencial ausente o inválida de cualquier tipo (session, key,
	// token de un solo uso). Deliberadamente no específico.
	ErrUnauthorized = &AppError{HTTPStatus: http.StatusUnauthorized, Code: "unauthorized", Message: "Invalid credentials"}

	// 403 — identidad válida, ownership/rol insuficiente.
	ErrForbidden = &AppError{HTTPStatus: http.StatusForbidden, Code: "forbidden", Message: "Access denied"}

	// 404
	ErrNotFound = &AppError{HTTPStatus: http.StatusNotFound, Code: "not_found", Message: "Resource not found"}

	// 405
	ErrMethodNotAllowed = &AppError{HTTPStatus: http.StatusMethodNotAllowed, Code: "method_not_allowed", Message: "Method not allowed"}

	// 409 — colisión que agotó reintentos, o registro duplicado.
	ErrConflict = &AppError{HTTPStatus: http.StatusConflict, Code: "conflict", Message: "Conflict"}

	// 429
	ErrTooManyRequests = &AppError{HTTPStatus: http.StatusTooManyRequests, Code: "rate_limited", Message: "Too many requests"}

	// 500 — fallas de infraestructura/programación, nunca credenciales.
	ErrInternalServerError = &AppError{HTTPStatus: http.StatusInternalServerError, Code: "internal_error", Message: "Internal server error"}
)
