package posts

import (
	"errors"
	"time"
)

// Store path of the public replica, and the prefix of per-author owned
// replicas. Both replicas hold the same serialized post shape; the public
// one is authoritative for interaction data, the owned one for content.
const (
	PublicPath      = "all-posts"
	ownedPathPrefix = "my-posts"
)

func OwnedPath(userID string) string {
	return ownedPathPrefix + "/" + userID
}

var (
	ErrUnauthenticated = errors.New("user not authenticated")
	ErrForbidden       = errors.New("not the post author")
	ErrNotFound        = errors.New("post not found")
	ErrMalformedRecord = errors.New("malformed post record")
)

// Author is the stub captured into a post at creation time. It is never
// re-resolved against the user directory afterwards.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

type Comment struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Author    Author    `json:"author"`
	PostID    string    `json:"postId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Post struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Excerpt  string   `json:"excerpt"`
	Author   Author   `json:"author"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`

	// Likes and Dislikes always equal the lengths of LikedBy and DislikedBy.
	// A user id appears in at most one of the two sets.
	Likes      int      `json:"likes"`
	Dislikes   int      `json:"dislikes"`
	LikedBy    []string `json:"likedBy"`
	DislikedBy []string `json:"dislikedBy"`

	Comments []*Comment `json:"comments"`

	ImageURL    string    `json:"imageUrl,omitempty"`
	IsPublished bool      `json:"isPublished"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type InteractionKind string

const (
	Like    InteractionKind = "like"
	Dislike InteractionKind = "dislike"
)

type CreateRequest struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Excerpt     string   `json:"excerpt"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	ImageURL    string   `json:"imageUrl"`
	IsPublished bool     `json:"isPublished"`
}

// UpdateRequest carries a partial field set; nil means "leave unchanged".
type UpdateRequest struct {
	Title       *string   `json:"title"`
	Content     *string   `json:"content"`
	Excerpt     *string   `json:"excerpt"`
	Category    *string   `json:"category"`
	Tags        *[]string `json:"tags"`
	ImageURL    *string   `json:"imageUrl"`
	IsPublished *bool     `json:"isPublished"`
}

func contains(set []string, id string) bool {
	for _, member := range set {
		if member == id {
			return true
		}
	}

	return false
}

func remove(set []string, id string) []string {
	result := make([]string, 0, len(set))
	for _, member := range set {
		if member != id {
			result = append(result, member)
		}
	}

	return result
}
