package handler

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/d60-Lab/gin-blog/internal/api/middleware"
	"github.com/d60-Lab/gin-blog/internal/service"
	"github.com/d60-Lab/gin-blog/pkg/response"
)

const anonymousUser = "anonymous"

type createPostRequest struct {
	Title   string   `json:"title" binding:"required"`
	Content string   `json:"content" binding:"required"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags" binding:"required"`
}

type updatePostRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

type likeRequest struct {
	UserIdentifier string `json:"userIdentifier"`
}

// bindOptionalJSON 空 body 视为未提供
func bindOptionalJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// CreatePost 创建文章
// @Summary 创建文章
// @Tags 文章
// @Accept json
// @Produce json
// @Param request body createPostRequest true "文章内容"
// @Success 201 {object} response.Response{data=model.Post}
// @Failure 400 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/posts [post]
func (h *Handler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) || errors.Is(err, io.EOF) {
			response.BadRequest(c, "Missing required fields: title, content, tags")
			return
		}
		response.BadRequest(c, "Invalid request body")
		return
	}
	post, err := h.postService.CreatePost(c.Request.Context(), service.CreatePostInput{
		Title:   req.Title,
		Content: req.Content,
		Summary: req.Summary,
		Tags:    req.Tags,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, "Post created successfully", post)
}

// ListPosts 分页查询文章
// @Summary 文章列表
// @Tags 文章
// @Produce json
// @Param tags query string false "逗号分隔的标签，任一命中"
// @Param search query string false "全文检索"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=service.PostPage}
// @Failure 400 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/posts [get]
func (h *Handler) ListPosts(c *gin.Context) {
	page, ok := positiveQuery(c, "page")
	if !ok {
		response.BadRequest(c, "page and limit must be positive integers")
		return
	}
	limit, ok := positiveQuery(c, "limit")
	if !ok {
		response.BadRequest(c, "page and limit must be positive integers")
		return
	}

	var tags []string
	if raw := c.Query("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}

	res, err := h.postService.ListPosts(c.Request.Context(), service.ListFilter{
		Tags:   tags,
		Search: c.Query("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, res)
}

// positiveQuery 缺省返回 0；出现但不是正整数返回 false
func positiveQuery(c *gin.Context, key string) (int, bool) {
	raw, present := c.GetQuery(key)
	if !present || raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// GetAllTags 全部标签
// @Summary 标签列表（字典序、去重）
// @Tags 文章
// @Produce json
// @Success 200 {object} response.Response{data=[]string}
// @Failure 500 {object} response.Response
// @Router /api/posts/tags [get]
func (h *Handler) GetAllTags(c *gin.Context) {
	tags, err := h.postService.GetAllTags(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, tags)
}

// GetPost 文章详情
// @Summary 文章详情
// @Tags 文章
// @Produce json
// @Param id path string true "文章ID"
// @Success 200 {object} response.Response{data=model.Post}
// @Failure 404 {object} response.Response
// @Router /api/posts/{id} [get]
func (h *Handler) GetPost(c *gin.Context) {
	post, err := h.postService.GetPostByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, post)
}

// UpdatePost 部分更新，空字段视为未提供
// @Summary 更新文章
// @Tags 文章
// @Accept json
// @Produce json
// @Param id path string true "文章ID"
// @Param request body updatePostRequest true "需要修改的字段"
// @Success 200 {object} response.Response{data=model.Post}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/posts/{id} [put]
func (h *Handler) UpdatePost(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, "No valid id found")
		return
	}
	var req updatePostRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	in := service.UpdatePostInput{Title: req.Title, Content: req.Content, Summary: req.Summary, Tags: req.Tags}
	if in.IsEmpty() {
		response.BadRequest(c, "No valid fields to update")
		return
	}
	post, err := h.postService.UpdatePost(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "Post updated successfully", post)
}

// DeletePost 删除文章
// @Summary 删除文章
// @Tags 文章
// @Produce json
// @Param id path string true "文章ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/posts/{id} [delete]
func (h *Handler) DeletePost(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, "No valid id found")
		return
	}
	if err := h.postService.DeletePost(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "Post deleted successfully"})
}

// LikePost 点赞/取消点赞
// @Summary 切换点赞状态
// @Tags 文章
// @Accept json
// @Produce json
// @Param id path string true "文章ID"
// @Param request body likeRequest false "可选的用户标识"
// @Success 200 {object} response.Response{data=service.LikeResult}
// @Failure 404 {object} response.Response
// @Router /api/posts/{id}/like [post]
func (h *Handler) LikePost(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, "No valid id found")
		return
	}
	var req likeRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	res, err := h.postService.LikePost(c.Request.Context(), id, h.resolveUser(c, req.UserIdentifier))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, res)
}

// resolveUser token 主体 > 请求体 > 客户端 IP > anonymous
func (h *Handler) resolveUser(c *gin.Context, explicit string) string {
	if sub := c.GetString(middleware.CtxUserID); sub != "" {
		return sub
	}
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	if ip := c.ClientIP(); ip != "" {
		if h.identifierSalt != "" {
			return middleware.HashIdentifier(h.identifierSalt, ip)
		}
		return ip
	}
	return anonymousUser
}

// ListActivity 文章变更流水
// @Summary 文章变更流水
// @Tags 文章
// @Produce json
// @Param id path string true "文章ID"
// @Param limit query int false "条数（最多100）" default(100)
// @Success 200 {object} response.Response{data=[]model.ActivityLog}
// @Failure 404 {object} response.Response
// @Router /api/posts/{id}/activity [get]
func (h *Handler) ListActivity(c *gin.Context) {
	limit, ok := positiveQuery(c, "limit")
	if !ok {
		response.BadRequest(c, "limit must be a positive integer")
		return
	}
	entries, err := h.postService.ListActivity(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, entries)
}
