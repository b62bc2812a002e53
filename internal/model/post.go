package model

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var validate = validator.New()

// Post 文章主体
type Post struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title     string    `gorm:"type:text;not null" json:"title" validate:"required"`
	Content   string    `gorm:"type:text;not null" json:"content" validate:"required"`
	Summary   string    `gorm:"type:varchar(300)" json:"summary" validate:"max=300"`
	Author    string    `gorm:"type:varchar(255)" json:"author"`
	Likes     int64     `gorm:"not null;default:0" json:"likes" validate:"gte=0"`
	CreatedAt time.Time `gorm:"index:idx_posts_created" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// 以下由关联表回填
	Tags    []string `gorm:"-" json:"tags"`
	LikedBy []string `gorm:"-" json:"likedBy"`

	TagRows  []PostTag  `gorm:"foreignKey:PostID" json:"-"`
	LikeRows []PostLike `gorm:"foreignKey:PostID" json:"-"`
}

func (Post) TableName() string { return "posts" }

// BeforeSave 相当于 schema 校验：title 去空白，必填字段与 summary 长度
func (p *Post) BeforeSave(tx *gorm.DB) error {
	p.Title = strings.TrimSpace(p.Title)
	p.Author = strings.TrimSpace(p.Author)
	return validate.Struct(p)
}

// Hydrate 将关联行展开为 Tags / LikedBy
func (p *Post) Hydrate() {
	p.Tags = make([]string, 0, len(p.TagRows))
	for _, t := range p.TagRows {
		p.Tags = append(p.Tags, t.Tag)
	}
	p.LikedBy = make([]string, 0, len(p.LikeRows))
	for _, l := range p.LikeRows {
		p.LikedBy = append(p.LikedBy, l.UserIdentifier)
	}
}

// PostTag 文章标签，Position 保留插入顺序
type PostTag struct {
	PostID   string `gorm:"primaryKey;type:varchar(36)"`
	Position int    `gorm:"primaryKey;autoIncrement:false"`
	Tag      string `gorm:"type:text;not null;index:idx_post_tags_tag"`
}

func (PostTag) TableName() string { return "post_tags" }

// BeforeSave 标签统一小写
func (t *PostTag) BeforeSave(tx *gorm.DB) error {
	t.Tag = NormalizeTag(t.Tag)
	return nil
}

// NormalizeTag 去空白并转小写
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// TagRowsOf 按顺序构造标签行
func TagRowsOf(postID string, tags []string) []PostTag {
	rows := make([]PostTag, 0, len(tags))
	for i, tag := range tags {
		rows = append(rows, PostTag{PostID: postID, Position: i, Tag: NormalizeTag(tag)})
	}
	return rows
}

// PostLike 点赞关系（post, user）
type PostLike struct {
	PostID         string    `gorm:"primaryKey;type:varchar(36)"`
	UserIdentifier string    `gorm:"primaryKey;type:varchar(255)"`
	CreatedAt      time.Time
}

func (PostLike) TableName() string { return "post_likes" }
