package models

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Category string

const (
	CategorySpirituality Category = "Spirituality"
	CategoryLiterature   Category = "Literature"
	CategoryArt          Category = "Art"
	CategoryHeritage     Category = "Heritage"
	CategoryInspiration  Category = "Inspiration"
	CategoryTechnology   Category = "Technology"
	CategoryMusic        Category = "Music"
	CategoryHistory      Category = "History"
)

var Categories = []Category{
	CategorySpirituality, CategoryLiterature, CategoryArt, CategoryHeritage,
	CategoryInspiration, CategoryTechnology, CategoryMusic, CategoryHistory,
}

// DefaultRecommendationCategories is the fallback filter used when the
// requesting user is unknown or has no interests.
var DefaultRecommendationCategories = []Category{
	CategorySpirituality, CategoryLiterature, CategoryArt, CategoryHeritage, CategoryInspiration,
}

var ErrInvalidCategory = errors.New("unknown post category")

func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if Category(s) == c {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}

type MediaType string

const (
	MediaText  MediaType = "text"
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

var ErrInvalidMediaType = errors.New("mediaType must be 'text', 'image' or 'video'")

func ParseMediaType(s string) (MediaType, error) {
	if s == "" {
		return MediaText, nil
	}
	switch MediaType(s) {
	case MediaText, MediaImage, MediaVideo:
		return MediaType(s), nil
	}
	return "", ErrInvalidMediaType
}

// Length caps count characters, not bytes, so multibyte text is not
// penalized.
const (
	MaxTitleLen   = 100
	MaxContentLen = 2000
	MaxCommentLen = 500
)

var (
	ErrTitleRequired   = errors.New("title is required")
	ErrTitleTooLong    = errors.New("title cannot exceed 100 characters")
	ErrContentRequired = errors.New("content is required")
	ErrContentTooLong  = errors.New("content cannot exceed 2000 characters")
	ErrCommentRequired = errors.New("comment text is required")
	ErrCommentTooLong  = errors.New("comment cannot exceed 500 characters")
)

type Like struct {
	User      primitive.ObjectID `bson:"user" json:"user"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type Comment struct {
	User      primitive.ObjectID `bson:"user" json:"user"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

func NewComment(user primitive.ObjectID, text string) (Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, ErrCommentRequired
	}
	if utf8.RuneCountInString(text) > MaxCommentLen {
		return Comment{}, ErrCommentTooLong
	}
	return Comment{User: user, Text: text, CreatedAt: time.Now().UTC()}, nil
}

type Post struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Content     string             `bson:"content" json:"content"`
	MediaType   MediaType          `bson:"mediaType" json:"mediaType"`
	MediaURL    string             `bson:"mediaUrl" json:"mediaUrl"`
	MediaBase64 string             `bson:"mediaBase64,omitempty" json:"mediaBase64,omitempty"`
	Category    Category           `bson:"category" json:"category"`
	Generation  Generation         `bson:"generation" json:"generation"`
	Author      primitive.ObjectID `bson:"author" json:"author"`
	Likes       []Like             `bson:"likes" json:"likes"`
	Comments    []Comment          `bson:"comments" json:"comments"`
	IsFeatured  bool               `bson:"isFeatured" json:"isFeatured"`
	IsActive    bool               `bson:"isActive" json:"isActive"`
	Views       int64              `bson:"views" json:"views"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`

	// Populated from the users collection in responses, never stored.
	AuthorInfo *PublicUser `bson:"authorInfo,omitempty" json:"authorInfo,omitempty"`
}

func (p *Post) LikeCount() int    { return len(p.Likes) }
func (p *Post) CommentCount() int { return len(p.Comments) }

// LikedBy reports whether the given user has liked the post.
func (p *Post) LikedBy(id primitive.ObjectID) bool {
	for _, l := range p.Likes {
		if l.User == id {
			return true
		}
	}
	return false
}

// NewPost validates field constraints up front so bad input surfaces as a
// typed error instead of a store-level rejection. Generation is stamped
// from the author, never taken from the request.
func NewPost(title, content string, category Category, mediaType MediaType, mediaURL, mediaBase64 string, author *User) (*Post, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return nil, ErrTitleTooLong
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrContentRequired
	}
	if utf8.RuneCountInString(content) > MaxContentLen {
		return nil, ErrContentTooLong
	}

	now := time.Now().UTC()
	return &Post{
		ID:          primitive.NewObjectID(),
		Title:       title,
		Content:     content,
		MediaType:   mediaType,
		MediaURL:    mediaURL,
		MediaBase64: mediaBase64,
		Category:    category,
		Generation:  author.Generation,
		Author:      author.ID,
		Likes:       []Like{},
		Comments:    []Comment{},
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
