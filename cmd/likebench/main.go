package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/d60-Lab/gin-blog/config"
	"github.com/d60-Lab/gin-blog/internal/repository"
	"github.com/d60-Lab/gin-blog/internal/service"
	"github.com/d60-Lab/gin-blog/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}

// 用法：WORKERS=8 N=500 SHARED=16 go run ./cmd/likebench
// 存储沿用 config.Load，可通过 BLOG_DATABASE_DRIVER / BLOG_DATABASE_DSN 切到 sqlite
func main() {
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	defer database.Close(db)

	WORKERS := envInt("WORKERS", 8) // 并发 worker
	N := envInt("N", 500)           // 每个 worker 的切换次数
	SHARED := envInt("SHARED", 16)  // 所有 worker 共用的用户池

	svc := service.NewPostService(repository.NewPostRepository(db), repository.NewActivityRepository(db), nil, nil, service.Options{})
	ctx := context.Background()

	post := must(svc.CreatePost(ctx, service.CreatePostInput{
		Title:   fmt.Sprintf("likebench %d", time.Now().UnixNano()),
		Content: "benchmark target",
		Tags:    []string{"bench"},
	}))

	recs := make(chan time.Duration, WORKERS*N)
	var failures atomic.Int64
	done := make(chan struct{}, WORKERS)

	t0 := time.Now()
	for w := 0; w < WORKERS; w++ {
		go func(w int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < N; i++ {
				// 偶数次使用私有用户，奇数次与其它 worker 争抢同一批用户
				user := fmt.Sprintf("w%d-u%d", w, i%32)
				if i%2 == 1 {
					user = fmt.Sprintf("shared-%d", i%SHARED)
				}
				st := time.Now()
				if _, err := svc.LikePost(ctx, post.ID, user); err != nil {
					failures.Add(1)
					continue
				}
				recs <- time.Since(st)
			}
		}(w)
	}
	for w := 0; w < WORKERS; w++ {
		<-done
	}
	close(recs)
	total := time.Since(t0)

	lat := make([]time.Duration, 0, WORKERS*N)
	for d := range recs {
		lat = append(lat, d)
	}

	final := must(svc.GetPostByID(ctx, post.ID))
	ops := len(lat)

	fmt.Printf("driver=%s WORKERS=%d N=%d SHARED=%d\n", cfg.Database.Driver, WORKERS, N, SHARED)
	if ops > 0 {
		fmt.Printf("toggle total: %v, ops=%d, failures=%d, throughput=%.0f ops/s\n",
			total, ops, failures.Load(), float64(ops)/total.Seconds())
		fmt.Printf("toggle latency p50=%v p95=%v p99=%v\n", pct(lat, 0.50), pct(lat, 0.95), pct(lat, 0.99))
	}
	fmt.Printf("likes=%d likedBy=%d\n", final.Likes, len(final.LikedBy))
	if final.Likes != int64(len(final.LikedBy)) {
		fmt.Println("INVARIANT VIOLATED: likes != |likedBy|")
		os.Exit(1)
	}
	fmt.Println("invariant ok: likes == |likedBy|")
}
