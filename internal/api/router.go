package api

import (
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/gin-blog/config"
	_ "github.com/d60-Lab/gin-blog/docs"
	"github.com/d60-Lab/gin-blog/internal/api/handler"
	"github.com/d60-Lab/gin-blog/internal/api/middleware"
	"github.com/d60-Lab/gin-blog/internal/service"
)

// NewRouter 组装中间件与路由
func NewRouter(cfg *config.Config, postService service.PostService) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(middleware.Recovery())
	if cfg.Sentry.DSN != "" {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	if cfg.Tracing.Endpoint != "" {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(middleware.RequestLogger())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	h := handler.New(postService, cfg.Likes.IdentifierSalt)

	r.GET("/health", h.Health)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	limited := middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	posts := r.Group("/api/posts", middleware.BearerIdentity(cfg.Auth.JWTSecret))
	{
		posts.POST("", limited, h.CreatePost)
		posts.GET("", h.ListPosts)
		posts.GET("/tags", h.GetAllTags)
		posts.GET("/:id", h.GetPost)
		posts.PUT("/:id", limited, h.UpdatePost)
		posts.DELETE("/:id", limited, h.DeletePost)
		posts.POST("/:id/like", limited, h.LikePost)
		posts.GET("/:id/activity", h.ListActivity)
	}
	return r
}
