package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chefmate/auth-service/internal/identity"
	"github.com/chefmate/auth-service/internal/log"
	"github.com/chefmate/auth-service/internal/metrics"
	"github.com/chefmate/auth-service/internal/oauth"
	"github.com/chefmate/auth-service/internal/queue"
	"github.com/chefmate/auth-service/internal/repo"
	"github.com/chefmate/auth-service/internal/security"
)

// Pinger is what the health endpoint needs from a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Users           identity.UserRepository
	Reconciler      *identity.Reconciler
	Tokens          *security.TokenService
	Providers       map[string]*oauth.Client
	Redis           *repo.Redis
	RateLimitPerMin int
	Events          queue.Publisher
	DB              Pinger // nil when health checks are not wanted (tests)
}

func NewHandler(
	users identity.UserRepository,
	tokens *security.TokenService,
	providers map[string]*oauth.Client,
	rds *repo.Redis,
	rlPerMin int,
	pub queue.Publisher,
	db Pinger,
) *Handler {
	return &Handler{
		Users:           users,
		Reconciler:      identity.NewReconciler(users),
		Tokens:          tokens,
		Providers:       providers,
		Redis:           rds,
		RateLimitPerMin: rlPerMin,
		Events:          pub,
		DB:              db,
	}
}

// OAuthURL godoc
// @Summary Provider authorize URL
// @Tags oauth
// @Produce json
// @Param provider path string true "google or kakao"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/oauth/{provider}/url [get]
func (h *Handler) OAuthURL(c *gin.Context) {
	client, ok := h.Providers[c.Param("provider")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"oauth_url": client.AuthorizeURL()})
}

type callbackReq struct {
	Code string `json:"code"`
}

type callbackResp struct {
	Token   string `json:"token"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

// OAuthCallback godoc
// @Summary Exchange an authorization code for a session token
// @Tags oauth
// @Accept json
// @Produce json
// @Param provider path string true "google or kakao"
// @Param payload body callbackReq true "authorization code"
// @Success 200 {object} callbackResp
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /api/oauth/{provider}/callback [post]
func (h *Handler) OAuthCallback(c *gin.Context) {
	providerName := c.Param("provider")
	client, ok := h.Providers[providerName]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	}

	var in callbackReq
	if err := c.ShouldBindJSON(&in); err != nil || in.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing authorization code"})
		return
	}

	ctx := c.Request.Context()
	l := log.WithDD(ctx, log.L, zap.String("provider", providerName))

	var (
		profile *oauth.NormalizedProfile
		perr    error
	)
	WithSpan(ctx, "oauth.resolve_profile", func(ctx context.Context) {
		profile, perr = client.ResolveProfile(ctx, in.Code)
	})
	if perr != nil {
		h.failLogin(c, l, providerName, perr)
		return
	}

	user, created, err := h.Reconciler.Reconcile(ctx, profile)
	if err != nil {
		metrics.SocialLogins.WithLabelValues(providerName, "error").Inc()
		l.Error("reconcile failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	token, err := h.Tokens.Issue(user.ID.Hex(), user.Username)
	if err != nil {
		metrics.SocialLogins.WithLabelValues(providerName, "error").Inc()
		l.Error("token issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	metrics.SocialLogins.WithLabelValues(providerName, "success").Inc()
	reqID := c.GetString(requestIDKey)
	if created {
		go h.Events.Publish(ctx, queue.Exchange, queue.KeyUserRegistered,
			queue.UserRegistered{UserID: user.ID, Username: user.Username, Email: user.Email, Provider: user.Provider},
			reqID)
	}
	go h.Events.Publish(ctx, queue.Exchange, queue.KeyUserLoggedIn,
		queue.UserLoggedIn{UserID: user.ID, Username: user.Username, Provider: user.Provider},
		reqID)

	c.JSON(http.StatusOK, callbackResp{
		Token:   token,
		Message: "login successful",
		Action:  "redirect_to_dashboard",
	})
}

// failLogin maps provider-protocol failures onto client guidance: a rejected
// code means the flow must be restarted, everything else is "try again".
func (h *Handler) failLogin(c *gin.Context, l *zap.Logger, provider string, err error) {
	switch {
	case errors.Is(err, oauth.ErrCodeInvalid):
		metrics.SocialLogins.WithLabelValues(provider, "code_invalid").Inc()
		l.Warn("authorization code rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":  "authorization code is invalid or expired",
			"action": "redirect_to_login",
		})
	case errors.Is(err, oauth.ErrMalformedResponse):
		metrics.SocialLogins.WithLabelValues(provider, "malformed").Inc()
		l.Error("provider returned malformed response", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "provider returned an unexpected response"})
	default:
		metrics.SocialLogins.WithLabelValues(provider, "unavailable").Inc()
		l.Error("provider unavailable", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "login provider is unavailable"})
	}
}

// Me godoc
// @Summary Current user
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Router /api/auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	u, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":            u.ID,
		"username":      u.Username,
		"email":         u.Email,
		"provider":      u.Provider,
		"profile_image": u.ProfileImage,
		"created_at":    u.CreatedAt,
	})
}

func (h *Handler) Healthz(c *gin.Context) {
	if h.DB != nil {
		if err := h.DB.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
