package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"chronolink/cache"
	"chronolink/middleware"
	"chronolink/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	feedLimit        = 20
	featuredLimit    = 10
	recommendLimit   = 10
	connectionLimit  = 5
	listingCacheTTL  = time.Minute
	keyFeatured      = "posts:featured"
	keyGenConnection = "posts:generation-connection"
)

// findPostsWithAuthor runs the shared listing pipeline: match, sort,
// paginate, then populate authorInfo via $lookup (the Mongo equivalent of
// the original's populate).
func (h *Handler) findPostsWithAuthor(ctx context.Context, filter bson.M, sort bson.D, skip, limit int64) ([]models.Post, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: filter}},
		bson.D{{Key: "$sort", Value: sort}},
	}
	if skip > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: skip}})
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "users"},
			{Key: "localField", Value: "author"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "authorInfo"},
		}}},
		bson.D{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$authorInfo"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
	)

	cursor, err := h.DB.Posts.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func newestFirst() bson.D {
	return bson.D{{Key: "createdAt", Value: -1}}
}

func (h *Handler) ListPosts(c *gin.Context) {
	page, _ := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "10"), 10, 64)
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	filter := bson.M{"isActive": true}
	if category := c.Query("category"); category != "" {
		filter["category"] = category
	}
	if generation := c.Query("generation"); generation != "" {
		filter["generation"] = generation
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	posts, err := h.findPostsWithAuthor(ctx, filter, newestFirst(), (page-1)*limit, limit)
	if err != nil {
		serverError(c, err, "Server error getting posts")
		return
	}

	total, err := h.DB.Posts.CountDocuments(ctx, filter)
	if err != nil {
		serverError(c, err, "Server error getting posts")
		return
	}

	ok(c, http.StatusOK, gin.H{
		"posts": viewsOf(posts),
		"pagination": pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: models.Pages(total, limit),
		},
	})
}

func (h *Handler) GetPost(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, "Post not found")
		return
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	// Every successful read counts as a view; $inc keeps it atomic under
	// concurrent reads.
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var post models.Post
	err = h.DB.Posts.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "isActive": true},
		bson.M{"$inc": bson.M{"views": 1}},
		opts,
	).Decode(&post)
	if err == mongo.ErrNoDocuments {
		fail(c, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		serverError(c, err, "Server error getting post")
		return
	}

	var author models.User
	if err := h.DB.Users.FindOne(ctx, bson.M{"_id": post.Author}).Decode(&author); err == nil {
		pub := author.Public()
		post.AuthorInfo = &pub
	}

	ok(c, http.StatusOK, gin.H{"post": viewOf(post)})
}

type CreatePostRequest struct {
	Title       string `json:"title" binding:"required"`
	Content     string `json:"content" binding:"required"`
	Category    string `json:"category" binding:"required"`
	MediaType   string `json:"mediaType"`
	MediaURL    string `json:"mediaUrl"`
	MediaBase64 string `json:"mediaBase64"`
}

func (h *Handler) CreatePost(c *gin.Context) {
	caller := middleware.CurrentUser(c)

	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	category, err := models.ParseCategory(req.Category)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	mediaType, err := models.ParseMediaType(req.MediaType)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	post, err := models.NewPost(req.Title, req.Content, category, mediaType, req.MediaURL, req.MediaBase64, caller)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if _, err := h.DB.Posts.InsertOne(ctx, post); err != nil {
		serverError(c, err, "Server error creating post")
		return
	}

	h.Cache.Invalidate(ctx, cache.TagPosts)

	pub := caller.Public()
	post.AuthorInfo = &pub
	ok(c, http.StatusCreated, gin.H{"post": viewOf(*post)})
}

type UpdatePostRequest struct {
	Title       *string `json:"title"`
	Content     *string `json:"content"`
	Category    *string `json:"category"`
	MediaType   *string `json:"mediaType"`
	MediaURL    *string `json:"mediaUrl"`
	MediaBase64 *string `json:"mediaBase64"`
	IsFeatured  *bool   `json:"isFeatured"`
}

func (h *Handler) UpdatePost(c *gin.Context) {
	caller := middleware.CurrentUser(c)

	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, "Post not found")
		return
	}

	var req UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	var post models.Post
	err = h.DB.Posts.FindOne(ctx, bson.M{"_id": id, "isActive": true}).Decode(&post)
	if err == mongo.ErrNoDocuments {
		fail(c, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		serverError(c, err, "Server error updating post")
		return
	}

	if post.Author != caller.ID && !caller.IsAdmin() {
		fail(c, http.StatusForbidden, "Not authorized to update this post")
		return
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if req.Title != nil {
		title := *req.Title
		if title == "" {
			fail(c, http.StatusBadRequest, models.ErrTitleRequired.Error())
			return
		}
		if utf8.RuneCountInString(title) > models.MaxTitleLen {
			fail(c, http.StatusBadRequest, models.ErrTitleTooLong.Error())
			return
		}
		set["title"] = title
	}
	if req.Content != nil {
		content := *req.Content
		if content == "" {
			fail(c, http.StatusBadRequest, models.ErrContentRequired.Error())
			return
		}
		if utf8.RuneCountInString(content) > models.MaxContentLen {
			fail(c, http.StatusBadRequest, models.ErrContentTooLong.Error())
			return
		}
		set["content"] = content
	}
	if req.Category != nil {
		category, err := models.ParseCategory(*req.Category)
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		set["category"] = category
	}
	if req.MediaType != nil {
		mediaType, err := models.ParseMediaType(*req.MediaType)
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		set["mediaType"] = mediaType
	}
	if req.MediaURL != nil {
		set["mediaUrl"] = *req.MediaURL
	}
	if req.MediaBase64 != nil {
		set["mediaBase64"] = *req.MediaBase64
	}
	// Only admins may feature a post; for everyone else the field is
	// silently ignored.
	if req.IsFeatured != nil && caller.IsAdmin() {
		set["isFeatured"] = *req.IsFeatured
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Post
	if err := h.DB.Posts.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		serverError(c, err, "Server error updating post")
		return
	}

	h.Cache.Invalidate(ctx, cache.TagPosts)

	var author models.User
	if err := h.DB.Users.FindOne(ctx, bson.M{"_id": updated.Author}).Decode(&author); err == nil {
		pub := author.Public()
		updated.AuthorInfo = &pub
	}

	ok(c, http.StatusOK, gin.H{"post": viewOf(updated)})
}

// DeletePost soft-deletes: the document keeps its likes, comments and view
// history but disappears from every read path.
func (h *Handler) DeletePost(c *gin.Context) {
	caller := middleware.CurrentUser(c)

	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, "Post not found")
		return
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	var post models.Post
	err = h.DB.Posts.FindOne(ctx, bson.M{"_id": id, "isActive": true}).Decode(&post)
	if err == mongo.ErrNoDocuments {
		fail(c, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		serverError(c, err, "Server error deleting post")
		return
	}

	if post.Author != caller.ID && !caller.IsAdmin() {
		fail(c, http.StatusForbidden, "Not authorized to delete this post")
		return
	}

	_, err = h.DB.Posts.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"isActive":  false,
		"updatedAt": time.Now().UTC(),
	}})
	if err != nil {
		serverError(c, err, "Server error deleting post")
		return
	}

	h.Cache.Invalidate(ctx, cache.TagPosts)
	ok(c, http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

// ToggleLike flips the caller's like with two conditional updates keyed on
// likes.user membership, so concurrent toggles cannot double-insert.
func (h *Handler) ToggleLike(c *gin.Context) {
	caller := middleware.CurrentUser(c)

	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, "Post not found")
		return
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	removeLike := func() (models.Post, error) {
		var post models.Post
		err := h.DB.Posts.FindOneAndUpdate(ctx,
			bson.M{"_id": id, "isActive": true, "likes.user": caller.ID},
			bson.M{"$pull": bson.M{"likes": bson.M{"user": caller.ID}}},
			opts,
		).Decode(&post)
		return post, err
	}

	// Already liked: remove.
	post, err := removeLike()
	if err == nil {
		ok(c, http.StatusOK, gin.H{"likes": post.LikeCount(), "isLiked": false})
		return
	}
	if err != mongo.ErrNoDocuments {
		serverError(c, err, "Server error liking post")
		return
	}

	// Not liked yet: add, guarded against a concurrent duplicate.
	err = h.DB.Posts.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "isActive": true, "likes.user": bson.M{"$ne": caller.ID}},
		bson.M{"$push": bson.M{"likes": bson.M{"user": caller.ID, "createdAt": time.Now().UTC()}}},
		opts,
	).Decode(&post)
	if err == mongo.ErrNoDocuments {
		// Both guarded updates missing can mean the post is gone, or a
		// concurrent toggle slipped a like in between them. Retry the
		// removal before concluding the post does not exist.
		post, err = removeLike()
		if err == nil {
			ok(c, http.StatusOK, gin.H{"likes": post.LikeCount(), "isLiked": false})
			return
		}
		if err == mongo.ErrNoDocuments {
			fail(c, http.StatusNotFound, "Post not found")
			return
		}
		serverError(c, err, "Server error liking post")
		return
	}
	if err != nil {
		serverError(c, err, "Server error liking post")
		return
	}

	ok(c, http.StatusOK, gin.H{"likes": post.LikeCount(), "isLiked": true})
}

type AddCommentRequest struct {
	Text string `json:"text"`
}

func (h *Handler) AddComment(c *gin.Context) {
	caller := middleware.CurrentUser(c)

	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, "Post not found")
		return
	}

	var req AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := models.NewComment(caller.ID, req.Text)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var post models.Post
	err = h.DB.Posts.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "isActive": true},
		bson.M{"$push": bson.M{"comments": comment}},
		opts,
	).Decode(&post)
	if err == mongo.ErrNoDocuments {
		fail(c, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		serverError(c, err, "Server error adding comment")
		return
	}

	ok(c, http.StatusOK, gin.H{"comments": post.Comments, "commentCount": post.CommentCount()})
}

// GetFeed returns the newest posts from the caller and everyone they
// follow, capped at 20.
func (h *Handler) GetFeed(c *gin.Context) {
	caller := middleware.CurrentUser(c)

	authors := append([]primitive.ObjectID{caller.ID}, caller.Following...)

	ctx, cancel := dbCtx(c)
	defer cancel()

	posts, err := h.findPostsWithAuthor(ctx, bson.M{
		"author":   bson.M{"$in": authors},
		"isActive": true,
	}, newestFirst(), 0, feedLimit)
	if err != nil {
		serverError(c, err, "Server error getting feed")
		return
	}

	ok(c, http.StatusOK, gin.H{"posts": viewsOf(posts)})
}

func (h *Handler) GetFeaturedPosts(c *gin.Context) {
	ctx, cancel := dbCtx(c)
	defer cancel()

	if cached, err := h.Cache.Get(ctx, keyFeatured, new([]models.Post)); err == nil {
		ok(c, http.StatusOK, gin.H{"posts": viewsOf(*cached.(*[]models.Post))})
		return
	}

	posts, err := h.findPostsWithAuthor(ctx, bson.M{
		"isFeatured": true,
		"isActive":   true,
	}, newestFirst(), 0, featuredLimit)
	if err != nil {
		serverError(c, err, "Server error getting featured posts")
		return
	}

	h.Cache.Set(ctx, keyFeatured, posts, listingCacheTTL, cache.TagPosts)
	ok(c, http.StatusOK, gin.H{"posts": viewsOf(posts)})
}

// GetGenerationConnection interleaves the five newest active posts of each
// generation for the discovery view.
func (h *Handler) GetGenerationConnection(c *gin.Context) {
	ctx, cancel := dbCtx(c)
	defer cancel()

	if cached, err := h.Cache.Get(ctx, keyGenConnection, new([]models.Post)); err == nil {
		ok(c, http.StatusOK, gin.H{"posts": viewsOf(*cached.(*[]models.Post))})
		return
	}

	older, err := h.findPostsWithAuthor(ctx, bson.M{
		"generation": models.GenerationOlder,
		"isActive":   true,
	}, newestFirst(), 0, connectionLimit)
	if err != nil {
		serverError(c, err, "Server error getting generation connection posts")
		return
	}

	younger, err := h.findPostsWithAuthor(ctx, bson.M{
		"generation": models.GenerationYounger,
		"isActive":   true,
	}, newestFirst(), 0, connectionLimit)
	if err != nil {
		serverError(c, err, "Server error getting generation connection posts")
		return
	}

	merged := models.InterleaveByGeneration(older, younger)
	h.Cache.Set(ctx, keyGenConnection, merged, listingCacheTTL, cache.TagPosts)
	ok(c, http.StatusOK, gin.H{"posts": viewsOf(merged)})
}

// GetRecommendations is a static category filter: the user's interests (or
// a fixed default set), most-liked first. No learned component.
func (h *Handler) GetRecommendations(c *gin.Context) {
	ctx, cancel := dbCtx(c)
	defer cancel()

	var categories []string
	var excludeAuthor *primitive.ObjectID

	// basedOn keys on whether the userId resolved, not on whether that
	// user has interests; an interest-less user still falls back to the
	// default categories below.
	basedOn := "popular_categories"
	if userIDStr := c.Query("userId"); userIDStr != "" {
		if userID, err := primitive.ObjectIDFromHex(userIDStr); err == nil {
			var user models.User
			if err := h.DB.Users.FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err == nil {
				basedOn = "user_interests"
				categories = user.Interests
				excludeAuthor = &userID
			}
		}
	}

	if len(categories) == 0 {
		for _, cat := range models.DefaultRecommendationCategories {
			categories = append(categories, string(cat))
		}
	}

	match := bson.M{
		"isActive": true,
		"category": bson.M{"$in": categories},
	}
	if excludeAuthor != nil {
		match["author"] = bson.M{"$ne": *excludeAuthor}
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$addFields", Value: bson.D{{Key: "likeTotal", Value: bson.D{{Key: "$size", Value: "$likes"}}}}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "likeTotal", Value: -1}, {Key: "createdAt", Value: -1}}}},
		bson.D{{Key: "$limit", Value: recommendLimit}},
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "users"},
			{Key: "localField", Value: "author"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "authorInfo"},
		}}},
		bson.D{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$authorInfo"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
	}

	cursor, err := h.DB.Posts.Aggregate(ctx, pipeline)
	if err != nil {
		serverError(c, err, "Server error getting recommendations")
		return
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		serverError(c, err, "Server error getting recommendations")
		return
	}

	ok(c, http.StatusOK, gin.H{"posts": viewsOf(posts), "basedOn": basedOn})
}
