package handlers

import (
	"context"
	"net/http"
	"regexp"
	"strconv"

	"chronolink/middleware"
	"chronolink/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const searchLimit = 20

var publicUserProjection = bson.M{
	"username":       1,
	"generation":     1,
	"profilePicture": 1,
	"bio":            1,
	"achievements":   1,
}

func (h *Handler) ListUsers(c *gin.Context) {
	page, _ := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "10"), 10, 64)
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	filter := bson.M{"isActive": true}
	if generation := c.Query("generation"); generation != "" {
		filter["generation"] = generation
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	opts := options.Find().
		SetProjection(publicUserProjection).
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := h.DB.Users.Find(ctx, filter, opts)
	if err != nil {
		serverError(c, err, "Server error getting users")
		return
	}
	defer cursor.Close(ctx)

	users := []models.PublicUser{}
	if err := cursor.All(ctx, &users); err != nil {
		serverError(c, err, "Server error getting users")
		return
	}

	total, err := h.DB.Users.CountDocuments(ctx, filter)
	if err != nil {
		serverError(c, err, "Server error getting users")
		return
	}

	ok(c, http.StatusOK, gin.H{
		"users": users,
		"pagination": pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: models.Pages(total, limit),
		},
	})
}

func (h *Handler) SearchUsers(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		fail(c, http.StatusBadRequest, "Search query is required")
		return
	}

	// Literal substring match; the query is not a user-supplied regex.
	filter := bson.M{
		"username": primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"},
		"isActive": true,
	}
	if generation := c.Query("generation"); generation != "" {
		filter["generation"] = generation
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	opts := options.Find().SetProjection(publicUserProjection).SetLimit(searchLimit)
	cursor, err := h.DB.Users.Find(ctx, filter, opts)
	if err != nil {
		serverError(c, err, "Server error searching users")
		return
	}
	defer cursor.Close(ctx)

	users := []models.PublicUser{}
	if err := cursor.All(ctx, &users); err != nil {
		serverError(c, err, "Server error searching users")
		return
	}

	ok(c, http.StatusOK, gin.H{"users": users, "query": q})
}

func (h *Handler) GetUser(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, "User not found")
		return
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	var user models.User
	err = h.DB.Users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		serverError(c, err, "Server error getting user")
		return
	}

	// Live count, not a stored counter.
	postCount, err := h.DB.Posts.CountDocuments(ctx, bson.M{"author": id, "isActive": true})
	if err != nil {
		serverError(c, err, "Server error getting user")
		return
	}

	followers, err := h.lookupUsernames(c, user.Followers)
	if err != nil {
		serverError(c, err, "Server error getting user")
		return
	}
	following, err := h.lookupUsernames(c, user.Following)
	if err != nil {
		serverError(c, err, "Server error getting user")
		return
	}

	ok(c, http.StatusOK, gin.H{
		"user": gin.H{
			"id":             user.ID.Hex(),
			"username":       user.Username,
			"generation":     user.Generation,
			"profilePicture": user.ProfilePicture,
			"bio":            user.Bio,
			"achievements":   user.Achievements,
			"createdAt":      user.CreatedAt,
			"followers":      followers,
			"following":      following,
			"postCount":      postCount,
		},
	})
}

func (h *Handler) loadTarget(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var target models.User
	if err := h.DB.Users.FindOne(ctx, bson.M{"_id": id}).Decode(&target); err != nil {
		return nil, err
	}
	return &target, nil
}

func (h *Handler) FollowUser(c *gin.Context) {
	caller := middleware.CurrentUser(c)

	targetID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, "User not found")
		return
	}

	if targetID == caller.ID {
		fail(c, http.StatusBadRequest, "Cannot follow yourself")
		return
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if _, err := h.loadTarget(ctx, targetID); err != nil {
		if err == mongo.ErrNoDocuments {
			fail(c, http.StatusNotFound, "User not found")
			return
		}
		serverError(c, err, "Server error following user")
		return
	}

	if caller.IsFollowing(targetID) {
		fail(c, http.StatusBadRequest, "Already following this user")
		return
	}

	// Both edge halves land together or not at all.
	err = h.DB.MirroredWrite(ctx,
		func(ctx context.Context) error {
			_, err := h.DB.Users.UpdateOne(ctx, bson.M{"_id": caller.ID},
				bson.M{"$addToSet": bson.M{"following": targetID}})
			return err
		},
		func(ctx context.Context) error {
			_, err := h.DB.Users.UpdateOne(ctx, bson.M{"_id": targetID},
				bson.M{"$addToSet": bson.M{"followers": caller.ID}})
			return err
		},
		func(ctx context.Context) error {
			_, err := h.DB.Users.UpdateOne(ctx, bson.M{"_id": caller.ID},
				bson.M{"$pull": bson.M{"following": targetID}})
			return err
		},
	)
	if err != nil {
		serverError(c, err, "Server error following user")
		return
	}

	ok(c, http.StatusOK, gin.H{"message": "User followed successfully"})
}

func (h *Handler) UnfollowUser(c *gin.Context) {
	caller := middleware.CurrentUser(c)

	targetID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, "User not found")
		return
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if _, err := h.loadTarget(ctx, targetID); err != nil {
		if err == mongo.ErrNoDocuments {
			fail(c, http.StatusNotFound, "User not found")
			return
		}
		serverError(c, err, "Server error unfollowing user")
		return
	}

	if !caller.IsFollowing(targetID) {
		fail(c, http.StatusBadRequest, "Not following this user")
		return
	}

	err = h.DB.MirroredWrite(ctx,
		func(ctx context.Context) error {
			_, err := h.DB.Users.UpdateOne(ctx, bson.M{"_id": caller.ID},
				bson.M{"$pull": bson.M{"following": targetID}})
			return err
		},
		func(ctx context.Context) error {
			_, err := h.DB.Users.UpdateOne(ctx, bson.M{"_id": targetID},
				bson.M{"$pull": bson.M{"followers": caller.ID}})
			return err
		},
		func(ctx context.Context) error {
			_, err := h.DB.Users.UpdateOne(ctx, bson.M{"_id": caller.ID},
				bson.M{"$addToSet": bson.M{"following": targetID}})
			return err
		},
	)
	if err != nil {
		serverError(c, err, "Server error unfollowing user")
		return
	}

	ok(c, http.StatusOK, gin.H{"message": "User unfollowed successfully"})
}

func (h *Handler) listReferencedUsers(c *gin.Context, ids []primitive.ObjectID) ([]models.PublicUser, error) {
	ctx, cancel := dbCtx(c)
	defer cancel()

	opts := options.Find().SetProjection(publicUserProjection)
	cursor, err := h.DB.Users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.PublicUser{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (h *Handler) GetFollowers(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, "User not found")
		return
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	user, err := h.loadTarget(ctx, id)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			fail(c, http.StatusNotFound, "User not found")
			return
		}
		serverError(c, err, "Server error getting followers")
		return
	}

	followers, err := h.listReferencedUsers(c, user.Followers)
	if err != nil {
		serverError(c, err, "Server error getting followers")
		return
	}

	ok(c, http.StatusOK, gin.H{"followers": followers})
}

func (h *Handler) GetFollowing(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, "User not found")
		return
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	user, err := h.loadTarget(ctx, id)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			fail(c, http.StatusNotFound, "User not found")
			return
		}
		serverError(c, err, "Server error getting following")
		return
	}

	following, err := h.listReferencedUsers(c, user.Following)
	if err != nil {
		serverError(c, err, "Server error getting following")
		return
	}

	ok(c, http.StatusOK, gin.H{"following": following})
}
