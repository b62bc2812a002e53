package repository

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/d60-Lab/gin-blog/internal/model"
)

func setupBenchDB(b *testing.B) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		b.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		b.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&model.Post{}, &model.PostTag{}, &model.PostLike{}); err != nil {
		b.Fatalf("migrate: %v", err)
	}
	b.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func seedBenchPosts(b *testing.B, repo PostRepository, n int) []*model.Post {
	ctx := context.Background()
	tags := []string{"go", "db", "web", "cache", "ops"}
	posts := make([]*model.Post, n)
	for i := range posts {
		ts := base.Add(time.Duration(i) * time.Second)
		posts[i] = &model.Post{
			ID:        uuid.New().String(),
			Title:     fmt.Sprintf("post %04d about %s", i, tags[i%len(tags)]),
			Content:   "benchmark body",
			Tags:      []string{tags[i%len(tags)], tags[(i+1)%len(tags)]},
			CreatedAt: ts,
			UpdatedAt: ts,
		}
		if err := repo.Create(ctx, posts[i]); err != nil {
			b.Fatalf("seed posts: %v", err)
		}
	}
	return posts
}

func BenchmarkToggleLike(b *testing.B) {
	repo := NewPostRepository(setupBenchDB(b))
	posts := seedBenchPosts(b, repo, 100)
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := posts[rnd.Intn(len(posts))]
		user := fmt.Sprintf("u%03d", rnd.Intn(500))
		if _, _, err := repo.ToggleLike(ctx, p.ID, user, base); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkList(b *testing.B) {
	repo := NewPostRepository(setupBenchDB(b))
	seedBenchPosts(b, repo, 2000)
	ctx := context.Background()

	b.ResetTimer()
	b.Run("Page", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _, _ = repo.List(ctx, PostFilter{Offset: 100, Limit: 20})
		}
	})

	b.Run("Tags", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _, _ = repo.List(ctx, PostFilter{Tags: []string{"cache"}, Limit: 20})
		}
	})

	b.Run("Search", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _, _ = repo.List(ctx, PostFilter{Search: "about web", Limit: 20})
		}
	})
}
