package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/frogteam/frogteam/types"
	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies; questions may carry whole files.
const maxBodyBytes = 4 << 20

// =============================================================================
// 📦 通用响应结构
// =============================================================================

// Response 统一 API 响应结构
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo 错误信息结构
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// WriteJSON 写入 JSON 响应
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess 写入成功响应
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: w.Header().Get("X-Request-ID"),
	})
}

// WriteError maps err onto a status code and writes the error envelope.
// Errors that are not *types.Error become INTERNAL_ERROR.
func WriteError(w http.ResponseWriter, err error, logger *zap.Logger) {
	apiErr, ok := types.AsError(err)
	if !ok {
		apiErr = types.NewError(types.ErrInternalError, err.Error()).WithCause(err)
	}
	status := apiErr.HTTPStatus
	if status == 0 {
		status = StatusFor(apiErr.Code)
	}

	if logger != nil {
		log := logger.Warn
		if status >= http.StatusInternalServerError {
			log = logger.Error
		}
		log("API error",
			zap.String("code", string(apiErr.Code)),
			zap.String("message", apiErr.Message),
			zap.Int("status", status),
			zap.Error(apiErr.Cause),
		)
	}

	WriteJSON(w, status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      string(apiErr.Code),
			Message:   apiErr.Message,
			Retryable: apiErr.Retryable,
		},
		Timestamp: time.Now(),
		RequestID: w.Header().Get("X-Request-ID"),
	})
}

// WriteErrorMessage 写入简单错误消息
func WriteErrorMessage(w http.ResponseWriter, code types.ErrorCode, message string, logger *zap.Logger) {
	WriteError(w, types.NewError(code, message), logger)
}

// StatusFor 错误码到 HTTP 状态码映射
func StatusFor(code types.ErrorCode) int {
	switch code {
	case types.ErrInvalidRequest:
		return http.StatusBadRequest
	case types.ErrUnauthorized:
		return http.StatusUnauthorized
	case types.ErrNotFound:
		return http.StatusNotFound
	case types.ErrAmbiguous:
		return http.StatusConflict
	case types.ErrConfigurationMissing:
		return http.StatusUnprocessableEntity
	case types.ErrQueueFull, types.ErrRateLimited:
		return http.StatusTooManyRequests
	case types.ErrModelInvocationFailure, types.ErrUnknownTool:
		return http.StatusBadGateway
	case types.ErrQueueClosed:
		return http.StatusServiceUnavailable
	case types.ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSONBody 解码 JSON 请求体, 失败时已写入错误响应
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) error {
	if r.Body == nil || r.Body == http.NoBody {
		err := types.NewError(types.ErrInvalidRequest, "request body is empty")
		WriteError(w, err, logger)
		return err
	}
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		msg := "invalid JSON body"
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			msg = "request body too large"
		}
		apiErr := types.NewError(types.ErrInvalidRequest, msg).WithCause(err)
		WriteError(w, apiErr, logger)
		return apiErr
	}
	return nil
}

// ResponseWriter 包装 http.ResponseWriter 以捕获状态码
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Written    bool
}

// NewResponseWriter 创建新的 ResponseWriter
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (rw *ResponseWriter) WriteHeader(code int) {
	if !rw.Written {
		rw.StatusCode = code
		rw.Written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer; the
// websocket upgrade needs its Hijacker.
func (rw *ResponseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
