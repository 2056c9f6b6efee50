package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"chronolink/auth"
	"chronolink/cache"
	"chronolink/database"
	"chronolink/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
)

// Integration tests run against a real deployment and are skipped unless
// MONGODB_URI is set, e.g.
//
//	MONGODB_URI=mongodb://localhost:27017 go test ./handlers/

func liveHandler(t *testing.T) (*Handler, *database.DB) {
	t.Helper()

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, uri, "chronolink_test")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		db.Users.Drop(context.Background())
		db.Posts.Drop(context.Background())
		db.Disconnect()
	})

	if err := db.Users.Drop(ctx); err != nil {
		t.Fatalf("drop users: %v", err)
	}
	if err := db.Posts.Drop(ctx); err != nil {
		t.Fatalf("drop posts: %v", err)
	}
	if err := db.EnsureIndexes(ctx); err != nil {
		t.Fatalf("indexes: %v", err)
	}

	store, err := cache.New()
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	return New(db, auth.NewTokenManager("test-secret", time.Hour), store), db
}

func insertUser(t *testing.T, db *database.DB, username string, generation models.Generation) *models.User {
	t.Helper()
	user := models.NewUser(username, "hash", generation, nil)
	if _, err := db.Users.InsertOne(context.Background(), user); err != nil {
		t.Fatalf("insert user %s: %v", username, err)
	}
	return user
}

func insertPost(t *testing.T, db *database.DB, title string, author *models.User) *models.Post {
	t.Helper()
	post, err := models.NewPost(title, "content", models.CategoryHeritage, models.MediaText, "", "", author)
	if err != nil {
		t.Fatalf("NewPost: %v", err)
	}
	if _, err := db.Posts.InsertOne(context.Background(), post); err != nil {
		t.Fatalf("insert post: %v", err)
	}
	return post
}

func reloadUser(t *testing.T, db *database.DB, id any) *models.User {
	t.Helper()
	var user models.User
	if err := db.Users.FindOne(context.Background(), bson.M{"_id": id}).Decode(&user); err != nil {
		t.Fatalf("reload user: %v", err)
	}
	return &user
}

func TestRegisterTwiceConflicts(t *testing.T) {
	h, _ := liveHandler(t)

	register := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = jsonRequest(http.MethodPost, "/api/auth/register", gin.H{
			"username":   "grandpa_john",
			"password":   "password123",
			"generation": "older",
		})
		h.Register(c)
		return w
	}

	if w := register(); w.Code != http.StatusCreated {
		t.Fatalf("first register = %d, want 201: %s", w.Code, w.Body.String())
	}
	if w := register(); w.Code != http.StatusConflict {
		t.Errorf("second register = %d, want 409", w.Code)
	}
}

func TestToggleLikeRoundTrip(t *testing.T) {
	h, db := liveHandler(t)

	caller := insertUser(t, db, "young_maya", models.GenerationYounger)
	post := insertPost(t, db, "Letters", caller)

	toggle := func() map[string]any {
		w := httptest.NewRecorder()
		c, _ := authedContext(w, caller)
		c.Params = gin.Params{{Key: "id", Value: post.ID.Hex()}}
		c.Request = httptest.NewRequest(http.MethodPost, "/api/posts/"+post.ID.Hex()+"/like", nil)
		h.ToggleLike(c)
		if w.Code != http.StatusOK {
			t.Fatalf("toggle status = %d: %s", w.Code, w.Body.String())
		}
		return decodeBody(t, w)
	}

	body := toggle()
	if body["isLiked"] != true || body["likes"] != float64(1) {
		t.Errorf("first toggle = %v/%v, want liked with 1 like", body["isLiked"], body["likes"])
	}

	body = toggle()
	if body["isLiked"] != false || body["likes"] != float64(0) {
		t.Errorf("second toggle = %v/%v, want unliked with 0 likes", body["isLiked"], body["likes"])
	}

	var stored models.Post
	if err := db.Posts.FindOne(context.Background(), bson.M{"_id": post.ID}).Decode(&stored); err != nil {
		t.Fatalf("reload post: %v", err)
	}
	if len(stored.Likes) != 0 {
		t.Errorf("stored likes = %d, want 0 after the round trip", len(stored.Likes))
	}
}

func TestFollowUnfollowRestoresBothLists(t *testing.T) {
	h, db := liveHandler(t)

	caller := insertUser(t, db, "young_maya", models.GenerationYounger)
	target := insertUser(t, db, "grandpa_john", models.GenerationOlder)

	followReq := func(user *models.User, method string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		c, _ := authedContext(w, user)
		c.Params = gin.Params{{Key: "id", Value: target.ID.Hex()}}
		c.Request = httptest.NewRequest(method, "/api/users/"+target.ID.Hex()+"/follow", nil)
		if method == http.MethodPost {
			h.FollowUser(c)
		} else {
			h.UnfollowUser(c)
		}
		return w
	}

	if w := followReq(caller, http.MethodPost); w.Code != http.StatusOK {
		t.Fatalf("follow = %d: %s", w.Code, w.Body.String())
	}

	followed := reloadUser(t, db, caller.ID)
	followedTarget := reloadUser(t, db, target.ID)
	if !followed.IsFollowing(target.ID) {
		t.Error("caller's following list is missing the target")
	}
	if len(followedTarget.Followers) != 1 || followedTarget.Followers[0] != caller.ID {
		t.Errorf("target followers = %v, want just the caller", followedTarget.Followers)
	}

	if w := followReq(followed, http.MethodDelete); w.Code != http.StatusOK {
		t.Fatalf("unfollow = %d: %s", w.Code, w.Body.String())
	}

	restored := reloadUser(t, db, caller.ID)
	restoredTarget := reloadUser(t, db, target.ID)
	if len(restored.Following) != 0 || len(restoredTarget.Followers) != 0 {
		t.Errorf("lists after unfollow = %v / %v, want both empty",
			restored.Following, restoredTarget.Followers)
	}
}

func TestGetPostIncrementsViewsPerRead(t *testing.T) {
	h, db := liveHandler(t)

	author := insertUser(t, db, "grandpa_john", models.GenerationOlder)
	post := insertPost(t, db, "Letters", author)

	read := func() float64 {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "id", Value: post.ID.Hex()}}
		c.Request = httptest.NewRequest(http.MethodGet, "/api/posts/"+post.ID.Hex(), nil)
		h.GetPost(c)
		if w.Code != http.StatusOK {
			t.Fatalf("read status = %d: %s", w.Code, w.Body.String())
		}
		return decodeBody(t, w)["post"].(map[string]any)["views"].(float64)
	}

	if views := read(); views != 1 {
		t.Errorf("views after first read = %v, want 1", views)
	}
	if views := read(); views != 2 {
		t.Errorf("views after second read = %v, want 2", views)
	}

	var stored models.Post
	if err := db.Posts.FindOne(context.Background(), bson.M{"_id": post.ID}).Decode(&stored); err != nil {
		t.Fatalf("reload post: %v", err)
	}
	if stored.Views != 2 {
		t.Errorf("stored views = %d, want 2", stored.Views)
	}
}

func TestUpdatePostNonAuthorForbidden(t *testing.T) {
	h, db := liveHandler(t)

	author := insertUser(t, db, "grandpa_john", models.GenerationOlder)
	intruder := insertUser(t, db, "young_maya", models.GenerationYounger)
	post := insertPost(t, db, "Letters", author)

	w := httptest.NewRecorder()
	c, _ := authedContext(w, intruder)
	c.Params = gin.Params{{Key: "id", Value: post.ID.Hex()}}
	c.Request = jsonRequest(http.MethodPut, "/api/posts/"+post.ID.Hex(), gin.H{"title": "Hijacked"})
	h.UpdatePost(c)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}

	var stored models.Post
	if err := db.Posts.FindOne(context.Background(), bson.M{"_id": post.ID}).Decode(&stored); err != nil {
		t.Fatalf("reload post: %v", err)
	}
	if stored.Title != "Letters" {
		t.Errorf("title = %q, the rejected update must not change fields", stored.Title)
	}
}

func TestListPostsReturnsFinalPartialPage(t *testing.T) {
	h, db := liveHandler(t)

	author := insertUser(t, db, "grandpa_john", models.GenerationOlder)
	for i := 0; i < 25; i++ {
		insertPost(t, db, "Letters "+string(rune('A'+i)), author)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/posts?page=3&limit=10", nil)
	h.ListPosts(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if posts := body["posts"].([]any); len(posts) != 5 {
		t.Errorf("posts on page 3 = %d, want 5", len(posts))
	}
	pg := body["pagination"].(map[string]any)
	if pg["total"] != float64(25) || pg["pages"] != float64(3) {
		t.Errorf("pagination = %v, want total 25 over 3 pages", pg)
	}
}
