package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/gin-blog/internal/model"
)

type ActivityRepository interface {
	Create(ctx context.Context, entry *model.ActivityLog) error
	ListByPost(ctx context.Context, postID string, limit int) ([]*model.ActivityLog, error)
}

type activityRepository struct{ db *gorm.DB }

func NewActivityRepository(db *gorm.DB) ActivityRepository { return &activityRepository{db: db} }

func (r *activityRepository) Create(ctx context.Context, entry *model.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *activityRepository) ListByPost(ctx context.Context, postID string, limit int) ([]*model.ActivityLog, error) {
	var res []*model.ActivityLog
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at DESC").
		Limit(limit).
		Find(&res).Error
	return res, err
}
