package posts

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire shape shared by both replicas. Timestamps travel as RFC3339Nano
// strings so the store's records stay sortable as plain text.
type rawPost struct {
	Title       string       `json:"title"`
	Content     string       `json:"content"`
	Excerpt     string       `json:"excerpt"`
	Author      *Author      `json:"author"`
	Category    string       `json:"category"`
	Tags        []string     `json:"tags"`
	Likes       int          `json:"likes"`
	Dislikes    int          `json:"dislikes"`
	LikedBy     []string     `json:"likedBy"`
	DislikedBy  []string     `json:"dislikedBy"`
	Comments    []rawComment `json:"comments"`
	ImageURL    string       `json:"imageUrl,omitempty"`
	IsPublished bool         `json:"isPublished"`
	CreatedAt   string       `json:"createdAt"`
	UpdatedAt   string       `json:"updatedAt"`
}

type rawComment struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Author    Author `json:"author"`
	PostID    string `json:"postId"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// DecodePost turns a raw store document into a Post. Absent collections
// become empty containers and the derived counters are recomputed from the
// sets. Missing required scalars make the record malformed; the caller is
// expected to skip such an entry without aborting its siblings.
func DecodePost(id string, data json.RawMessage) (*Post, error) {
	raw := &rawPost{}
	if err := json.Unmarshal(data, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	if raw.Title == "" || raw.Content == "" || raw.Author == nil || raw.Author.ID == "" {
		return nil, fmt.Errorf("%w: missing required field", ErrMalformedRecord)
	}

	createdAt, err := decodeTime(raw.CreatedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := decodeTime(raw.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p := &Post{
		ID:          id,
		Title:       raw.Title,
		Content:     raw.Content,
		Excerpt:     raw.Excerpt,
		Author:      *raw.Author,
		Category:    raw.Category,
		Tags:        raw.Tags,
		LikedBy:     raw.LikedBy,
		DislikedBy:  raw.DislikedBy,
		ImageURL:    raw.ImageURL,
		IsPublished: raw.IsPublished,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}

	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.LikedBy == nil {
		p.LikedBy = []string{}
	}
	if p.DislikedBy == nil {
		p.DislikedBy = []string{}
	}

	p.Likes = len(p.LikedBy)
	p.Dislikes = len(p.DislikedBy)

	p.Comments = make([]*Comment, 0, len(raw.Comments))
	for _, rc := range raw.Comments {
		c, err := decodeComment(rc)
		if err != nil {
			return nil, err
		}
		p.Comments = append(p.Comments, c)
	}

	return p, nil
}

// EncodePost is the inverse of DecodePost.
func EncodePost(p *Post) (json.RawMessage, error) {
	author := p.Author
	raw := &rawPost{
		Title:       p.Title,
		Content:     p.Content,
		Excerpt:     p.Excerpt,
		Author:      &author,
		Category:    p.Category,
		Tags:        emptyIfNil(p.Tags),
		Likes:       len(p.LikedBy),
		Dislikes:    len(p.DislikedBy),
		LikedBy:     emptyIfNil(p.LikedBy),
		DislikedBy:  emptyIfNil(p.DislikedBy),
		Comments:    encodeComments(p.Comments),
		ImageURL:    p.ImageURL,
		IsPublished: p.IsPublished,
		CreatedAt:   encodeTime(p.CreatedAt),
		UpdatedAt:   encodeTime(p.UpdatedAt),
	}

	return json.Marshal(raw)
}

func decodeComment(rc rawComment) (*Comment, error) {
	createdAt, err := decodeTime(rc.CreatedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := decodeTime(rc.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &Comment{
		ID:        rc.ID,
		Content:   rc.Content,
		Author:    rc.Author,
		PostID:    rc.PostID,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func encodeComments(comments []*Comment) []rawComment {
	result := make([]rawComment, 0, len(comments))
	for _, c := range comments {
		result = append(result, rawComment{
			ID:        c.ID,
			Content:   c.Content,
			Author:    c.Author,
			PostID:    c.PostID,
			CreatedAt: encodeTime(c.CreatedAt),
			UpdatedAt: encodeTime(c.UpdatedAt),
		})
	}

	return result
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformedRecord, s)
	}

	return t.UTC(), nil
}

func emptyIfNil(set []string) []string {
	if set == nil {
		return []string{}
	}

	return set
}
