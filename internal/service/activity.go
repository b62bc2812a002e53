package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/gin-blog/internal/model"
	"github.com/d60-Lab/gin-blog/internal/repository"
	"github.com/d60-Lab/gin-blog/pkg/logger"
)

type activityJob struct {
	action string
	postID string
	actor  string
	at     time.Time
}

// ActivityRecorder 本地异步落库的文章变更流水
type ActivityRecorder struct {
	repo repository.ActivityRepository
	ch   chan activityJob
}

func NewActivityRecorder(repo repository.ActivityRepository, queueSize int) *ActivityRecorder {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &ActivityRecorder{repo: repo, ch: make(chan activityJob, queueSize)}
}

// Start 启动 workers；返回的停止函数会先排空队列，受 ctx 超时约束
func (r *ActivityRecorder) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 2
	}
	stopCh := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case job := <-r.ch:
					r.persist(job)
				case <-stopCh:
					for {
						select {
						case job := <-r.ch:
							r.persist(job)
						default:
							return
						}
					}
				}
			}
		}()
	}

	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() { close(stopCh) })
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *ActivityRecorder) persist(job activityJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entry := &model.ActivityLog{Action: job.action, PostID: job.postID, Actor: job.actor, CreatedAt: job.at}
	if err := r.repo.Create(ctx, entry); err != nil {
		logger.Warn("activity persist failed",
			zap.String("action", job.action), zap.String("post", job.postID), zap.Error(err))
	}
}

// Record 非阻塞入队，队列满时丢弃
func (r *ActivityRecorder) Record(action, postID, actor string) {
	if r == nil {
		return
	}
	select {
	case r.ch <- activityJob{action: action, postID: postID, actor: actor, at: time.Now().UTC()}:
	default:
		logger.Warn("activity queue full, drop", zap.String("action", action), zap.String("post", postID))
	}
}

// QueueLen 返回当前队列长度（采样值）。
func (r *ActivityRecorder) QueueLen() int { return len(r.ch) }
