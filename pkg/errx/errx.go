// Package errx 定义了带 HTTP 状态码与安全提示信息的应用错误。
package errx

import (
	"errors"
	"fmt"
	"net/http"
)

// SystemErrorMessage 是内部错误时对外展示的兜底信息。
const SystemErrorMessage = "internal server error"

// AppError 包装底层错误，并携带 HTTP 状态码与可以直接返回给用户的信息。
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap 使 errors.Is / errors.As 可以穿透到底层错误。
func (e *AppError) Unwrap() error {
	return e.Err
}

// New 创建一个新的 AppError。
func New(err error, status int, message string) *AppError {
	return &AppError{Err: err, Status: status, Message: message}
}

// StatusOf 返回错误链上第一个 AppError 的状态码与信息；没有时返回 500。
func StatusOf(err error) (int, string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status, appErr.Message
	}
	return http.StatusInternalServerError, SystemErrorMessage
}
