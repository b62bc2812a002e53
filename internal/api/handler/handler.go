package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/gin-blog/internal/service"
	"github.com/d60-Lab/gin-blog/pkg/response"
)

// Handler HTTP 适配层：解析请求、调用一次服务、输出信封
type Handler struct {
	postService    service.PostService
	identifierSalt string
}

func New(postService service.PostService, identifierSalt string) *Handler {
	return &Handler{postService: postService, identifierSalt: identifierSalt}
}

// fail 服务错误到 HTTP 状态码的唯一映射点
func (h *Handler) fail(c *gin.Context, err error) {
	msg := service.MessageOf(err)
	switch service.KindOf(err) {
	case service.KindInvalidInput:
		response.BadRequest(c, msg)
	case service.KindValidation:
		response.BadRequestWithData(c, msg, validationDetail(err))
	case service.KindInvalidIdentifier, service.KindNotFound:
		response.NotFound(c, msg)
	default:
		response.InternalError(c, err)
	}
}

func validationDetail(err error) string {
	if inner := errors.Unwrap(err); inner != nil {
		return inner.Error()
	}
	return ""
}
