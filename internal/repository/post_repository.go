package repository

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/gin-blog/internal/model"
)

// PostFilter 列表查询条件
type PostFilter struct {
	Tags   []string // 任一命中即可（OR）
	Search string   // 与 Tags 取 AND
	Offset int
	Limit  int
}

// PostChanges 部分更新，nil 表示不修改
type PostChanges struct {
	Title     *string
	Content   *string
	Summary   *string
	Tags      *[]string
	UpdatedAt time.Time
}

// PostRepository 文章仓储接口
type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	Update(ctx context.Context, id string, changes PostChanges) (*model.Post, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter PostFilter) ([]*model.Post, int64, error)
	// ToggleLike 单事务内切换 (post, user) 点赞状态，likes 由 post_likes 重新计数
	ToggleLike(ctx context.Context, id, user string, now time.Time) (likes int64, liked bool, err error)
	DistinctTags(ctx context.Context) ([]string, error)
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository { return &postRepository{db: db} }

func withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("TagRows", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Preload("LikeRows", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC") })
}

func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	post.TagRows = model.TagRowsOf(post.ID, post.Tags)
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return err
	}
	post.Hydrate()
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	return r.get(r.db.WithContext(ctx), id)
}

func (r *postRepository) get(tx *gorm.DB, id string) (*model.Post, error) {
	var post model.Post
	if err := withRelations(tx).Where("id = ?", id).First(&post).Error; err != nil {
		return nil, err
	}
	post.Hydrate()
	return &post, nil
}

func (r *postRepository) Update(ctx context.Context, id string, changes PostChanges) (*model.Post, error) {
	var updated *model.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post model.Post
		if err := tx.Where("id = ?", id).First(&post).Error; err != nil {
			return err
		}
		if changes.Title != nil {
			post.Title = *changes.Title
		}
		if changes.Content != nil {
			post.Content = *changes.Content
		}
		if changes.Summary != nil {
			post.Summary = *changes.Summary
		}
		post.UpdatedAt = changes.UpdatedAt
		// 只写可编辑列，避免覆盖并发的 likes
		if err := tx.Model(&post).Select("title", "content", "summary", "updated_at").Updates(&post).Error; err != nil {
			return err
		}
		if changes.Tags != nil {
			if err := tx.Where("post_id = ?", id).Delete(&model.PostTag{}).Error; err != nil {
				return err
			}
			if rows := model.TagRowsOf(id, *changes.Tags); len(rows) > 0 {
				if err := tx.Create(&rows).Error; err != nil {
					return err
				}
			}
		}
		p, err := r.get(tx, id)
		if err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先删子表，posts 上有外键约束
		if err := tx.Where("post_id = ?", id).Delete(&model.PostTag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&model.PostLike{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *postRepository) List(ctx context.Context, filter PostFilter) ([]*model.Post, int64, error) {
	// gorm 链式语句不可复用，count 与 find 各自构建
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&model.Post{})
		if len(filter.Tags) > 0 {
			q = q.Where("id IN (?)", r.db.Model(&model.PostTag{}).Select("post_id").Where("tag IN ?", filter.Tags))
		}
		if s := strings.TrimSpace(filter.Search); s != "" {
			q = r.applySearch(q, s)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []*model.Post
	err := withRelations(base()).
		Order("created_at DESC").Order("id DESC").
		Offset(filter.Offset).Limit(filter.Limit).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	for _, p := range posts {
		p.Hydrate()
	}
	return posts, total, nil
}

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// searchTerms 拆词、小写、去掉符号
func searchTerms(search string) []string {
	var terms []string
	seen := make(map[string]struct{})
	for _, f := range strings.Fields(strings.ToLower(search)) {
		for _, t := range nonWord.Split(f, -1) {
			if t == "" {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			terms = append(terms, t)
		}
	}
	return terms
}

// applySearch 任一词命中 title/content/tags。postgres 使用全文索引，其余方言退化为 LIKE。
func (r *postRepository) applySearch(q *gorm.DB, search string) *gorm.DB {
	terms := searchTerms(search)
	if len(terms) == 0 {
		return q.Where("1 = 0")
	}
	tagHit := r.db.Model(&model.PostTag{}).Select("post_id").Where("tag IN ?", terms)

	if r.db.Dialector.Name() == "postgres" {
		return q.Where(
			"(to_tsvector('english', coalesce(title, '') || ' ' || coalesce(content, '')) @@ to_tsquery('english', ?) OR id IN (?))",
			strings.Join(terms, " | "), tagHit,
		)
	}

	var (
		parts []string
		args  []interface{}
	)
	for _, t := range terms {
		like := "%" + escapeLike(t) + "%"
		parts = append(parts, `LOWER(title) LIKE ? ESCAPE '\' OR LOWER(content) LIKE ? ESCAPE '\'`)
		args = append(args, like, like)
	}
	parts = append(parts, "id IN (?)")
	args = append(args, tagHit)
	return q.Where("("+strings.Join(parts, " OR ")+")", args...)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *postRepository) ToggleLike(ctx context.Context, id, user string, now time.Time) (int64, bool, error) {
	var (
		likes int64
		liked bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lookup := tx.Model(&model.Post{}).Select("id").Where("id = ?", id)
		if tx.Dialector.Name() == "postgres" {
			// 行锁保证后续计数语句看到已提交的并发写入
			lookup = lookup.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var found model.Post
		if err := lookup.First(&found).Error; err != nil {
			return err
		}

		res := tx.Where("post_id = ? AND user_identifier = ?", id, user).Delete(&model.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			like := &model.PostLike{PostID: id, UserIdentifier: user, CreatedAt: now}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(like).Error; err != nil {
				return err
			}
			liked = true
		}

		if err := tx.Model(&model.Post{}).Where("id = ?", id).UpdateColumns(map[string]interface{}{
			"likes":      gorm.Expr("(SELECT COUNT(*) FROM post_likes WHERE post_likes.post_id = ?)", id),
			"updated_at": now,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&model.Post{}).Select("likes").Where("id = ?", id).Scan(&likes).Error
	})
	if err != nil {
		return 0, false, err
	}
	return likes, liked, nil
}

func (r *postRepository) DistinctTags(ctx context.Context) ([]string, error) {
	var tags []string
	if err := r.db.WithContext(ctx).Model(&model.PostTag{}).Distinct("tag").Pluck("tag", &tags).Error; err != nil {
		return nil, err
	}
	// 不依赖数据库 collation
	sort.Strings(tags)
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}
