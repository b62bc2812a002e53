// Package response 统一响应信封 {statusCode, message?, data?}
package response

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/gin-blog/pkg/logger"
)

// MsgInternalError 500 统一对外文案，不暴露内部细节
const MsgInternalError = "Internal server error"

// Response 统一响应结构
type Response struct {
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
}

// JSON 按给定状态码写出信封
func JSON(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{StatusCode: status, Message: message, Data: data})
}

func Success(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, "", data)
}

func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	JSON(c, http.StatusOK, message, data)
}

func Created(c *gin.Context, message string, data interface{}) {
	JSON(c, http.StatusCreated, message, data)
}

func BadRequest(c *gin.Context, message string) {
	JSON(c, http.StatusBadRequest, message, nil)
}

func BadRequestWithData(c *gin.Context, message string, data interface{}) {
	JSON(c, http.StatusBadRequest, message, data)
}

func NotFound(c *gin.Context, message string) {
	JSON(c, http.StatusNotFound, message, nil)
}

func Unauthorized(c *gin.Context, message string) {
	JSON(c, http.StatusUnauthorized, message, nil)
}

func TooManyRequests(c *gin.Context) {
	JSON(c, http.StatusTooManyRequests, "Too many requests", nil)
}

// InternalError 记录完整错误（日志 + Sentry），对客户端只返回通用文案
func InternalError(c *gin.Context, err error) {
	logger.Error("api error",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Any("params", c.Params),
		zap.String("query", c.Request.URL.RawQuery),
		zap.Error(err),
	)
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		hub.CaptureException(err)
	} else if sentry.CurrentHub().Client() != nil {
		sentry.CaptureException(err)
	}
	JSON(c, http.StatusInternalServerError, MsgInternalError, nil)
}
