package handlers

import (
	"net/http"

	"chronolink/auth"
	"chronolink/middleware"
	"chronolink/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type RegisterRequest struct {
	Username   string   `json:"username" binding:"required,min=3,max=30"`
	Password   string   `json:"password" binding:"required,min=6"`
	Generation string   `json:"generation" binding:"required"`
	Interests  []string `json:"interests"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	generation, err := models.ParseGeneration(req.Generation)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	count, err := h.DB.Users.CountDocuments(ctx, bson.M{"username": req.Username})
	if err != nil {
		serverError(c, err, "Server error during registration")
		return
	}
	if count > 0 {
		fail(c, http.StatusConflict, "Username already exists")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		serverError(c, err, "Server error during registration")
		return
	}

	user := models.NewUser(req.Username, hashed, generation, req.Interests)
	if _, err := h.DB.Users.InsertOne(ctx, user); err != nil {
		// The unique index closes the check-then-insert race.
		if mongo.IsDuplicateKeyError(err) {
			fail(c, http.StatusConflict, "Username already exists")
			return
		}
		serverError(c, err, "Server error during registration")
		return
	}

	token, err := h.Tokens.Generate(user.ID.Hex())
	if err != nil {
		serverError(c, err, "Server error during registration")
		return
	}

	ok(c, http.StatusCreated, gin.H{
		"token": token,
		"user": gin.H{
			"id":         user.ID.Hex(),
			"username":   user.Username,
			"role":       user.Role,
			"generation": user.Generation,
			"interests":  user.Interests,
		},
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	// Same response for unknown username and wrong password, so usernames
	// cannot be enumerated through this endpoint.
	var user models.User
	err := h.DB.Users.FindOne(ctx, bson.M{"username": req.Username}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		serverError(c, err, "Server error during login")
		return
	}

	if !auth.CheckPassword(user.Password, req.Password) {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.Tokens.Generate(user.ID.Hex())
	if err != nil {
		serverError(c, err, "Server error during login")
		return
	}

	ok(c, http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":             user.ID.Hex(),
			"username":       user.Username,
			"role":           user.Role,
			"generation":     user.Generation,
			"interests":      user.Interests,
			"profilePicture": user.ProfilePicture,
			"bio":            user.Bio,
			"achievements":   user.Achievements,
		},
	})
}

// usernameRef is the projection used when populating follower/following
// references on the profile.
type usernameRef struct {
	ID       interface{} `bson:"_id" json:"id"`
	Username string      `bson:"username" json:"username"`
}

func (h *Handler) lookupUsernames(c *gin.Context, ids interface{}) ([]usernameRef, error) {
	ctx, cancel := dbCtx(c)
	defer cancel()

	opts := options.Find().SetProjection(bson.M{"username": 1})
	cursor, err := h.DB.Users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	refs := []usernameRef{}
	if err := cursor.All(ctx, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

func (h *Handler) GetProfile(c *gin.Context) {
	user := middleware.CurrentUser(c)

	followers, err := h.lookupUsernames(c, user.Followers)
	if err != nil {
		serverError(c, err, "Server error getting profile")
		return
	}
	following, err := h.lookupUsernames(c, user.Following)
	if err != nil {
		serverError(c, err, "Server error getting profile")
		return
	}

	ok(c, http.StatusOK, gin.H{
		"user": gin.H{
			"id":             user.ID.Hex(),
			"username":       user.Username,
			"role":           user.Role,
			"generation":     user.Generation,
			"bio":            user.Bio,
			"interests":      user.Interests,
			"achievements":   user.Achievements,
			"profilePicture": user.ProfilePicture,
			"followers":      followers,
			"following":      following,
			"createdAt":      user.CreatedAt,
		},
	})
}

type UpdateProfileRequest struct {
	Bio            *string   `json:"bio"`
	Interests      *[]string `json:"interests"`
	ProfilePicture *string   `json:"profilePicture"`
	Achievements   *[]string `json:"achievements"`
}

// UpdateProfile applies partial-update semantics: only keys present in the
// body are written.
func (h *Handler) UpdateProfile(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	set := bson.M{}
	if req.Bio != nil {
		set["bio"] = *req.Bio
	}
	if req.Interests != nil {
		set["interests"] = *req.Interests
	}
	if req.ProfilePicture != nil {
		set["profilePicture"] = *req.ProfilePicture
	}
	if req.Achievements != nil {
		set["achievements"] = *req.Achievements
	}

	if len(set) == 0 {
		ok(c, http.StatusOK, gin.H{"user": profileSubset(user)})
		return
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.User
	err := h.DB.Users.FindOneAndUpdate(ctx, bson.M{"_id": user.ID}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		serverError(c, err, "Server error updating profile")
		return
	}

	ok(c, http.StatusOK, gin.H{"user": profileSubset(&updated)})
}

func profileSubset(u *models.User) gin.H {
	return gin.H{
		"id":             u.ID.Hex(),
		"username":       u.Username,
		"generation":     u.Generation,
		"bio":            u.Bio,
		"interests":      u.Interests,
		"achievements":   u.Achievements,
		"profilePicture": u.ProfilePicture,
	}
}
