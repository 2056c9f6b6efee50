package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"chronolink/auth"
	"chronolink/database"
	"chronolink/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ContextUser is the gin context key holding the authenticated *models.User.
const ContextUser = "currentUser"

type Auth struct {
	db     *database.DB
	tokens *auth.TokenManager
}

func NewAuth(db *database.DB, tokens *auth.TokenManager) *Auth {
	return &Auth{db: db, tokens: tokens}
}

// RequireAuth validates the bearer token and resolves the subject into a
// request-scoped user, so downstream handlers never re-fetch the caller.
func (a *Auth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		// CORS preflight never carries credentials.
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "No authorization token provided"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Authorization header format should be: Bearer <token>"})
			c.Abort()
			return
		}

		claims, err := a.tokens.Parse(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
			c.Abort()
			return
		}

		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
			c.Abort()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		var user models.User
		if err := a.db.Users.FindOne(ctx, bson.M{"_id": userID, "isActive": true}).Decode(&user); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "User no longer exists"})
			c.Abort()
			return
		}

		c.Set(ContextUser, &user)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"message": "Admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user set by RequireAuth, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
