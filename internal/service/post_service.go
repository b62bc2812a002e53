package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/gin-blog/internal/model"
	"github.com/d60-Lab/gin-blog/internal/repository"
	"github.com/d60-Lab/gin-blog/pkg/logger"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10

	MaxActivityLimit = 100

	// (page-1)*limit 的上限，防止溢出成负偏移
	maxOffset = math.MaxInt32
)

// PostCache 读缓存，失败只记日志不影响主流程。
// 回填前先取版本号，Set 时版本已变（期间有失效）则放弃写入。
type PostCache interface {
	GetPost(ctx context.Context, id string) (*model.Post, bool, error)
	PostVersion(ctx context.Context, id string) (int64, error)
	SetPost(ctx context.Context, post *model.Post, version int64) error
	DeletePost(ctx context.Context, id string) error
	GetTags(ctx context.Context) ([]string, bool, error)
	TagsVersion(ctx context.Context) (int64, error)
	SetTags(ctx context.Context, tags []string, version int64) error
	DeleteTags(ctx context.Context) error
}

type CreatePostInput struct {
	Title   string
	Content string
	Summary string
	Tags    []string
}

// UpdatePostInput 空字符串视为未提供；Tags 为 nil 视为未提供，空切片会清空标签
type UpdatePostInput struct {
	Title   string
	Content string
	Summary string
	Tags    []string
}

func (in UpdatePostInput) IsEmpty() bool {
	return in.Title == "" && in.Content == "" && in.Summary == "" && in.Tags == nil
}

// ListFilter Page/Limit 为 0 时取默认值
type ListFilter struct {
	Tags   []string
	Search string
	Page   int
	Limit  int
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type PostPage struct {
	Posts      []*model.Post `json:"posts"`
	Pagination Pagination    `json:"pagination"`
}

type LikeResult struct {
	Likes    int64 `json:"likes"`
	HasLiked bool  `json:"hasLiked"`
}

// Options 可选项
type Options struct {
	MaxLimit int // 0 表示不限制
	Now      func() time.Time
}

// PostService 文章查询/变更服务
type PostService interface {
	CreatePost(ctx context.Context, in CreatePostInput) (*model.Post, error)
	ListPosts(ctx context.Context, filter ListFilter) (*PostPage, error)
	GetPostByID(ctx context.Context, id string) (*model.Post, error)
	UpdatePost(ctx context.Context, id string, in UpdatePostInput) (*model.Post, error)
	DeletePost(ctx context.Context, id string) error
	LikePost(ctx context.Context, id, userIdentifier string) (*LikeResult, error)
	GetAllTags(ctx context.Context) ([]string, error)
	ListActivity(ctx context.Context, id string, limit int) ([]*model.ActivityLog, error)
}

type postService struct {
	repo         repository.PostRepository
	activityRepo repository.ActivityRepository
	recorder     *ActivityRecorder
	cache        PostCache
	maxLimit     int
	now          func() time.Time
}

// NewPostService recorder 与 cache 可为 nil
func NewPostService(repo repository.PostRepository, activityRepo repository.ActivityRepository, recorder *ActivityRecorder, cache PostCache, opts Options) PostService {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &postService{
		repo:         repo,
		activityRepo: activityRepo,
		recorder:     recorder,
		cache:        cache,
		maxLimit:     opts.MaxLimit,
		now:          now,
	}
}

// parseID 校验并规范化 id，不合法时不访问存储
func parseID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", newError(KindInvalidIdentifier, "Invalid post ID", err)
	}
	return u.String(), nil
}

func isValidation(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}

func (s *postService) CreatePost(ctx context.Context, in CreatePostInput) (*model.Post, error) {
	now := s.now()
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	post := &model.Post{
		ID:        uuid.New().String(),
		Title:     in.Title,
		Content:   in.Content,
		Summary:   in.Summary,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, post); err != nil {
		if isValidation(err) {
			return nil, newError(KindValidation, "Failed to create post", err)
		}
		return nil, newError(KindStorage, "Failed to create post", err)
	}
	s.invalidateTags(ctx)
	s.recorder.Record(model.ActionCreate, post.ID, "")
	return post, nil
}

func (s *postService) ListPosts(ctx context.Context, filter ListFilter) (*PostPage, error) {
	page, limit := filter.Page, filter.Limit
	if page == 0 {
		page = DefaultPage
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if page < 0 || limit < 0 {
		return nil, newError(KindInvalidInput, "page and limit must be positive integers", nil)
	}
	if s.maxLimit > 0 && limit > s.maxLimit {
		limit = s.maxLimit
	}
	if page-1 > maxOffset/limit {
		return nil, newError(KindInvalidInput, "page is out of range", nil)
	}

	tags := make([]string, 0, len(filter.Tags))
	for _, t := range filter.Tags {
		if t = model.NormalizeTag(t); t != "" {
			tags = append(tags, t)
		}
	}

	posts, total, err := s.repo.List(ctx, repository.PostFilter{
		Tags:   tags,
		Search: filter.Search,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return nil, newError(KindStorage, "Failed to fetch posts", err)
	}
	if posts == nil {
		posts = []*model.Post{}
	}
	return &PostPage{
		Posts: posts,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(limit))),
		},
	}, nil
}

func (s *postService) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}
	var (
		version  int64
		backfill bool
	)
	if s.cache != nil {
		if p, ok, err := s.cache.GetPost(ctx, id); err != nil {
			logger.Warn("post cache get failed", zap.String("id", id), zap.Error(err))
		} else if ok {
			return p, nil
		}
		// 版本号必须在读存储之前取
		if version, err = s.cache.PostVersion(ctx, id); err != nil {
			logger.Warn("post cache version failed", zap.String("id", id), zap.Error(err))
		} else {
			backfill = true
		}
	}

	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, "Post not found", nil)
		}
		return nil, newError(KindStorage, "Failed to fetch post", err)
	}
	if backfill {
		if err := s.cache.SetPost(ctx, post, version); err != nil {
			logger.Warn("post cache set failed", zap.String("id", id), zap.Error(err))
		}
	}
	return post, nil
}

func (s *postService) UpdatePost(ctx context.Context, id string, in UpdatePostInput) (*model.Post, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if in.IsEmpty() {
		return nil, newError(KindInvalidInput, "No valid fields to update", nil)
	}

	changes := repository.PostChanges{UpdatedAt: s.now()}
	if in.Title != "" {
		changes.Title = &in.Title
	}
	if in.Content != "" {
		changes.Content = &in.Content
	}
	if in.Summary != "" {
		changes.Summary = &in.Summary
	}
	if in.Tags != nil {
		tags := in.Tags
		changes.Tags = &tags
	}

	post, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, newError(KindNotFound, "Post not found", nil)
		case isValidation(err):
			return nil, newError(KindValidation, "Failed to update post", err)
		default:
			return nil, newError(KindStorage, "Failed to update post", err)
		}
	}
	s.invalidatePost(ctx, id)
	if changes.Tags != nil {
		s.invalidateTags(ctx)
	}
	s.recorder.Record(model.ActionUpdate, id, "")
	return post, nil
}

func (s *postService) DeletePost(ctx context.Context, id string) error {
	id, err := parseID(id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newError(KindNotFound, "Post not found", nil)
		}
		return newError(KindStorage, "Failed to delete post", err)
	}
	s.invalidatePost(ctx, id)
	s.invalidateTags(ctx)
	s.recorder.Record(model.ActionDelete, id, "")
	return nil
}

func (s *postService) LikePost(ctx context.Context, id, userIdentifier string) (*LikeResult, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if userIdentifier == "" {
		return nil, newError(KindInvalidInput, "user identifier is required", nil)
	}

	likes, liked, err := s.repo.ToggleLike(ctx, id, userIdentifier, s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, "Post not found", nil)
		}
		return nil, newError(KindStorage, "Failed to update like status", err)
	}
	s.invalidatePost(ctx, id)
	action := model.ActionLike
	if !liked {
		action = model.ActionUnlike
	}
	s.recorder.Record(action, id, userIdentifier)
	return &LikeResult{Likes: likes, HasLiked: liked}, nil
}

func (s *postService) GetAllTags(ctx context.Context) ([]string, error) {
	var (
		version  int64
		backfill bool
	)
	if s.cache != nil {
		if tags, ok, err := s.cache.GetTags(ctx); err != nil {
			logger.Warn("tag cache get failed", zap.Error(err))
		} else if ok {
			return tags, nil
		}
		var err error
		if version, err = s.cache.TagsVersion(ctx); err != nil {
			logger.Warn("tag cache version failed", zap.Error(err))
		} else {
			backfill = true
		}
	}
	tags, err := s.repo.DistinctTags(ctx)
	if err != nil {
		return nil, newError(KindStorage, "Failed to fetch tags", err)
	}
	if backfill {
		if err := s.cache.SetTags(ctx, tags, version); err != nil {
			logger.Warn("tag cache set failed", zap.Error(err))
		}
	}
	return tags, nil
}

func (s *postService) ListActivity(ctx context.Context, id string, limit int) ([]*model.ActivityLog, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > MaxActivityLimit {
		limit = MaxActivityLimit
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, "Post not found", nil)
		}
		return nil, newError(KindStorage, "Failed to fetch activity", err)
	}
	entries, err := s.activityRepo.ListByPost(ctx, id, limit)
	if err != nil {
		return nil, newError(KindStorage, "Failed to fetch activity", err)
	}
	if entries == nil {
		entries = []*model.ActivityLog{}
	}
	return entries, nil
}

func (s *postService) invalidatePost(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePost(ctx, id); err != nil {
		logger.Warn("post cache invalidate failed", zap.String("id", id), zap.Error(err))
	}
}

func (s *postService) invalidateTags(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteTags(ctx); err != nil {
		logger.Warn("tag cache invalidate failed", zap.Error(err))
	}
}
