package handlers

import (
	"context"
	"time"

	"chronolink/auth"
	"chronolink/cache"
	"chronolink/database"
	"chronolink/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const dbTimeout = 10 * time.Second

type Handler struct {
	DB     *database.DB
	Tokens *auth.TokenManager
	Cache  *cache.Store
}

func New(db *database.DB, tokens *auth.TokenManager, store *cache.Store) *Handler {
	return &Handler{DB: db, Tokens: tokens, Cache: store}
}

func dbCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), dbTimeout)
}

// ok writes a success envelope; every 2xx body carries success: true.
func ok(c *gin.Context, status int, payload gin.H) {
	payload["success"] = true
	c.JSON(status, payload)
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

// serverError logs the cause and returns a generic message; details stay
// out of the response.
func serverError(c *gin.Context, err error, message string) {
	log.Error().Err(err).Str("path", c.FullPath()).Msg(message)
	fail(c, 500, message)
}

type pagination struct {
	Page  int64 `json:"page"`
	Limit int64 `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// postView decorates a post with its derived counters for serialization.
type postView struct {
	models.Post
	LikeCount    int `json:"likeCount"`
	CommentCount int `json:"commentCount"`
}

func viewOf(p models.Post) postView {
	return postView{Post: p, LikeCount: p.LikeCount(), CommentCount: p.CommentCount()}
}

func viewsOf(posts []models.Post) []postView {
	return lo.Map(posts, func(p models.Post, _ int) postView {
		return viewOf(p)
	})
}
