package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Metrics())

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")

	social := api.Group("/oauth")
	social.GET("/:provider/url", h.OAuthURL)
	social.POST("/:provider/callback", RateLimit(h.Redis, h.RateLimitPerMin), h.OAuthCallback)

	authed := api.Group("/auth", AuthGate(h.Tokens, h.Users))
	authed.GET("/me", h.Me)

	return r
}
