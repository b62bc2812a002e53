package model

import "time"

// 活动类型
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionLike   = "like"
	ActionUnlike = "unlike"
)

// ActivityLog 文章变更流水（异步落库）
type ActivityLog struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Action    string    `gorm:"type:varchar(16);not null" json:"action"`
	PostID    string    `gorm:"type:varchar(36);index:idx_activity_post;not null" json:"postId"`
	Actor     string    `gorm:"type:varchar(255)" json:"actor,omitempty"`
	CreatedAt time.Time `gorm:"index:idx_activity_post" json:"createdAt"`
}

func (ActivityLog) TableName() string { return "activity_logs" }
