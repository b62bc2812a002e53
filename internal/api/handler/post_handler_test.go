package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/gin-blog/internal/api/middleware"
	"github.com/d60-Lab/gin-blog/internal/model"
	"github.com/d60-Lab/gin-blog/internal/service"
)

func init() { gin.SetMode(gin.TestMode) }

// fakeService 记录调用参数并返回预设错误
type fakeService struct {
	err        error
	lastFilter service.ListFilter
	lastUser   string
	lastUpdate service.UpdatePostInput
	calls      int
}

func (f *fakeService) CreatePost(ctx context.Context, in service.CreatePostInput) (*model.Post, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &model.Post{ID: "p1", Title: in.Title, Content: in.Content, Tags: in.Tags, LikedBy: []string{}}, nil
}

func (f *fakeService) ListPosts(ctx context.Context, filter service.ListFilter) (*service.PostPage, error) {
	f.calls++
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return &service.PostPage{Posts: []*model.Post{}, Pagination: service.Pagination{Page: 1, Limit: 10}}, nil
}

func (f *fakeService) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &model.Post{ID: id}, nil
}

func (f *fakeService) UpdatePost(ctx context.Context, id string, in service.UpdatePostInput) (*model.Post, error) {
	f.calls++
	f.lastUpdate = in
	if f.err != nil {
		return nil, f.err
	}
	return &model.Post{ID: id, Title: in.Title}, nil
}

func (f *fakeService) DeletePost(ctx context.Context, id string) error {
	f.calls++
	return f.err
}

func (f *fakeService) LikePost(ctx context.Context, id, user string) (*service.LikeResult, error) {
	f.calls++
	f.lastUser = user
	if f.err != nil {
		return nil, f.err
	}
	return &service.LikeResult{Likes: 1, HasLiked: true}, nil
}

func (f *fakeService) GetAllTags(ctx context.Context) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []string{"a", "b"}, nil
}

func (f *fakeService) ListActivity(ctx context.Context, id string, limit int) ([]*model.ActivityLog, error) {
	f.calls++
	return []*model.ActivityLog{}, f.err
}

func newEngine(svc service.PostService, salt string) *gin.Engine {
	h := New(svc, salt)
	r := gin.New()
	r.Use(middleware.BearerIdentity(""))
	r.GET("/health", h.Health)
	g := r.Group("/api/posts")
	g.POST("", h.CreatePost)
	g.GET("", h.ListPosts)
	g.GET("/tags", h.GetAllTags)
	g.GET("/:id", h.GetPost)
	g.PUT("/:id", h.UpdatePost)
	g.DELETE("/:id", h.DeletePost)
	g.POST("/:id/like", h.LikePost)
	g.GET("/:id/activity", h.ListActivity)
	return r
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = "203.0.113.7:5555"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestCreatePost_MissingFields(t *testing.T) {
	svc := &fakeService{}
	r := newEngine(svc, "")

	for _, body := range []string{``, `{}`, `{"title":"t","content":"c"}`, `{"title":"","content":"c","tags":[]}`} {
		w, env := do(t, r, http.MethodPost, "/api/posts", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "Missing required fields: title, content, tags", env.Message)
	}
	w, env := do(t, r, http.MethodPost, "/api/posts", `{"title":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", env.Message)
	assert.Zero(t, svc.calls, "service must not be called")
}

func TestCreatePost_Created(t *testing.T) {
	r := newEngine(&fakeService{}, "")
	w, env := do(t, r, http.MethodPost, "/api/posts", `{"title":"t","content":"c","tags":[]}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 201, env.StatusCode)
	assert.Equal(t, "Post created successfully", env.Message)
}

func TestErrorKindMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"invalid id", &service.Error{Kind: service.KindInvalidIdentifier, Message: "Invalid post ID"}, http.StatusNotFound, "Invalid post ID"},
		{"not found", &service.Error{Kind: service.KindNotFound, Message: "Post not found"}, http.StatusNotFound, "Post not found"},
		{"validation", &service.Error{Kind: service.KindValidation, Message: "Failed to update post", Err: errors.New("summary too long")}, http.StatusBadRequest, "Failed to update post"},
		{"storage", &service.Error{Kind: service.KindStorage, Message: "Failed to fetch post", Err: errors.New("dial tcp 10.1.1.1")}, http.StatusInternalServerError, "Internal server error"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(&fakeService{err: tt.err}, "")
			w, env := do(t, r, http.MethodPut, "/api/posts/x", `{"title":"new"}`)
			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, tt.code, env.StatusCode)
			assert.Equal(t, tt.message, env.Message)
			assert.NotContains(t, w.Body.String(), "10.1.1.1")
		})
	}
}

func TestValidationDetailForwarded(t *testing.T) {
	err := &service.Error{Kind: service.KindValidation, Message: "Failed to create post", Err: errors.New("Key: 'Post.Summary' Error:Field validation for 'Summary' failed on the 'max' tag")}
	r := newEngine(&fakeService{err: err}, "")
	_, env := do(t, r, http.MethodPost, "/api/posts", `{"title":"t","content":"c","tags":["x"]}`)
	assert.Contains(t, string(env.Data), "Summary")
}

func TestListPosts_QueryParsing(t *testing.T) {
	svc := &fakeService{}
	r := newEngine(svc, "")

	w, _ := do(t, r, http.MethodGet, "/api/posts?tags=Go,tech&search=hello&page=2&limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.ListFilter{Tags: []string{"Go", "tech"}, Search: "hello", Page: 2, Limit: 5}, svc.lastFilter)

	w, _ = do(t, r, http.MethodGet, "/api/posts", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.ListFilter{}, svc.lastFilter)

	for _, q := range []string{"page=0", "page=abc", "limit=-3"} {
		w, env := do(t, r, http.MethodGet, "/api/posts?"+q, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.Equal(t, "page and limit must be positive integers", env.Message)
	}
}

func TestListPosts_StorageFailure(t *testing.T) {
	r := newEngine(&fakeService{err: &service.Error{Kind: service.KindStorage, Message: "Failed to fetch posts"}}, "")
	w, env := do(t, r, http.MethodGet, "/api/posts", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", env.Message)
}

func TestUpdatePost_NoValidFields(t *testing.T) {
	svc := &fakeService{}
	r := newEngine(svc, "")
	for _, body := range []string{``, `{}`, `{"title":"","summary":""}`} {
		w, env := do(t, r, http.MethodPut, "/api/posts/x", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "No valid fields to update", env.Message)
	}
	assert.Zero(t, svc.calls)

	w, env := do(t, r, http.MethodPut, "/api/posts/x", `{"tags":[]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Post updated successfully", env.Message)
	assert.NotNil(t, svc.lastUpdate.Tags)
}

func TestDeletePost_Ack(t *testing.T) {
	r := newEngine(&fakeService{}, "")
	w, env := do(t, r, http.MethodDelete, "/api/posts/x", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Post deleted successfully"}`, string(env.Data))
}

func TestLikePost_IdentifierResolution(t *testing.T) {
	svc := &fakeService{}
	r := newEngine(svc, "")

	w, env := do(t, r, http.MethodPost, "/api/posts/x/like", `{"userIdentifier":"u1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", svc.lastUser)
	assert.JSONEq(t, `{"likes":1,"hasLiked":true}`, string(env.Data))

	do(t, r, http.MethodPost, "/api/posts/x/like", "")
	assert.Equal(t, "203.0.113.7", svc.lastUser)

	hashed := &fakeService{}
	do(t, newEngine(hashed, "salt"), http.MethodPost, "/api/posts/x/like", "")
	assert.Equal(t, middleware.HashIdentifier("salt", "203.0.113.7"), hashed.lastUser)
}

func TestLikePost_TokenSubjectWins(t *testing.T) {
	svc := &fakeService{}
	h := New(svc, "")
	r := gin.New()
	r.POST("/api/posts/:id/like", func(c *gin.Context) { c.Set(middleware.CtxUserID, "alice") }, h.LikePost)

	do(t, r, http.MethodPost, "/api/posts/x/like", `{"userIdentifier":"u1"}`)
	assert.Equal(t, "alice", svc.lastUser)
}

func TestHealth(t *testing.T) {
	r := newEngine(&fakeService{}, "")
	w, _ := do(t, r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}
