package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Тексты ошибок, на которые завязаны клиенты.
const (
	MsgItemsRequired  = "Items are required"
	MsgInternalError  = "Internal server error"
	MsgSomethingWrong = "Something went wrong!"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Error string `json:"error"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет ответ 200.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

// InternalError логирует err и отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, MsgInternalError)
}
