package posts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"blogclone/pkg/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service implements the post lifecycle (create/update/publish/delete) and
// the interaction engine (like/dislike toggles, comments) on top of the two
// replicas. Writes to the public replica during an interaction are primary:
// their failure surfaces to the caller. The echo into the author's owned
// replica is secondary: its failure is logged and swallowed, because the
// owned view re-derives interaction data from the public replica on read.
type Service struct {
	store  store.Store
	logger *zap.SugaredLogger
}

func NewService(st store.Store, logger *zap.SugaredLogger) *Service {
	return &Service{store: st, logger: logger}
}

func (s *Service) Create(ctx context.Context, actor *Author, req *CreateRequest) (*Post, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}

	now := time.Now().UTC()
	p := &Post{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Content:     req.Content,
		Excerpt:     req.Excerpt,
		Author:      *actor,
		Category:    req.Category,
		Tags:        emptyIfNil(req.Tags),
		LikedBy:     []string{},
		DislikedBy:  []string{},
		Comments:    []*Comment{},
		ImageURL:    req.ImageURL,
		IsPublished: req.IsPublished,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	doc, err := EncodePost(p)
	if err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, OwnedPath(actor.ID), p.ID, doc); err != nil {
		return nil, fmt.Errorf("write owned replica: %w", err)
	}

	if p.IsPublished {
		if err := s.store.Put(ctx, PublicPath, p.ID, doc); err != nil {
			return nil, fmt.Errorf("write public replica: %w", err)
		}
	}

	return p, nil
}

func (s *Service) Update(ctx context.Context, actor *Author, id string, req *UpdateRequest) (*Post, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}

	p, err := s.getOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.Content != nil {
		p.Content = *req.Content
	}
	if req.Excerpt != nil {
		p.Excerpt = *req.Excerpt
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.Tags != nil {
		p.Tags = emptyIfNil(*req.Tags)
	}
	if req.ImageURL != nil {
		p.ImageURL = *req.ImageURL
	}
	if req.IsPublished != nil {
		p.IsPublished = *req.IsPublished
	}
	p.UpdatedAt = time.Now().UTC()

	doc, err := EncodePost(p)
	if err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, OwnedPath(actor.ID), id, doc); err != nil {
		return nil, fmt.Errorf("write owned replica: %w", err)
	}

	if p.IsPublished {
		if err := s.store.Put(ctx, PublicPath, id, doc); err != nil {
			return nil, fmt.Errorf("write public replica: %w", err)
		}
	} else {
		if err := s.store.Delete(ctx, PublicPath, id); err != nil {
			return nil, fmt.Errorf("unpublish from public replica: %w", err)
		}
	}

	return p, nil
}

func (s *Service) Publish(ctx context.Context, actor *Author, id string) (*Post, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}

	p, err := s.getOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	p.IsPublished = true
	p.UpdatedAt = time.Now().UTC()

	err = s.store.Patch(ctx, OwnedPath(actor.ID), id, map[string]interface{}{
		"isPublished": true,
		"updatedAt":   encodeTime(p.UpdatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("write owned replica: %w", err)
	}

	doc, err := EncodePost(p)
	if err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, PublicPath, id, doc); err != nil {
		return nil, fmt.Errorf("write public replica: %w", err)
	}

	return p, nil
}

// Delete removes the post from both replicas. Absence anywhere is not an
// error, so repeated deletes are no-ops.
func (s *Service) Delete(ctx context.Context, actor *Author, id string) error {
	if actor == nil {
		return ErrUnauthenticated
	}

	if _, err := s.getOwned(ctx, actor, id); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	if err := s.store.Delete(ctx, OwnedPath(actor.ID), id); err != nil {
		return fmt.Errorf("delete from owned replica: %w", err)
	}

	if err := s.store.Delete(ctx, PublicPath, id); err != nil {
		return fmt.Errorf("delete from public replica: %w", err)
	}

	return nil
}

// GetByID reads the public replica first and falls back to the caller's
// owned replica, so authors can open their own drafts.
func (s *Service) GetByID(ctx context.Context, actor *Author, id string) (*Post, error) {
	doc, err := s.store.Get(ctx, PublicPath, id)
	if err == nil {
		return DecodePost(id, doc)
	}
	if !errors.Is(err, store.ErrNoDocument) {
		return nil, fmt.Errorf("read public replica: %w", err)
	}

	if actor == nil {
		return nil, ErrNotFound
	}

	doc, err = s.store.Get(ctx, OwnedPath(actor.ID), id)
	if errors.Is(err, store.ErrNoDocument) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read owned replica: %w", err)
	}

	return DecodePost(id, doc)
}

// ListPublished is the one-shot counterpart of the public live stream:
// every published post, newest first. Malformed entries are skipped.
func (s *Service) ListPublished(ctx context.Context) ([]*Post, error) {
	snap, err := s.store.List(ctx, PublicPath)
	if err != nil {
		return nil, fmt.Errorf("read public replica: %w", err)
	}

	result := make([]*Post, 0, len(snap))
	for key, doc := range snap {
		p, err := DecodePost(key, doc)
		if err != nil {
			s.logger.Warnf("skip public post %v: %v", key, err)
			continue
		}
		if !p.IsPublished {
			continue
		}
		result = append(result, p)
	}

	SortNewestFirst(result)
	return result, nil
}

func (s *Service) Toggle(ctx context.Context, actor *Author, id string, kind InteractionKind) (*Post, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}

	p, err := s.getPublic(ctx, id)
	if err != nil {
		return nil, err
	}

	switch kind {
	case Like:
		if contains(p.LikedBy, actor.ID) {
			p.LikedBy = remove(p.LikedBy, actor.ID)
		} else {
			p.LikedBy = append(p.LikedBy, actor.ID)
			p.DislikedBy = remove(p.DislikedBy, actor.ID)
		}
	case Dislike:
		if contains(p.DislikedBy, actor.ID) {
			p.DislikedBy = remove(p.DislikedBy, actor.ID)
		} else {
			p.DislikedBy = append(p.DislikedBy, actor.ID)
			p.LikedBy = remove(p.LikedBy, actor.ID)
		}
	default:
		return nil, fmt.Errorf("unknown interaction kind %q", kind)
	}

	p.Likes = len(p.LikedBy)
	p.Dislikes = len(p.DislikedBy)
	p.UpdatedAt = time.Now().UTC()

	fields := map[string]interface{}{
		"likes":      p.Likes,
		"dislikes":   p.Dislikes,
		"likedBy":    p.LikedBy,
		"dislikedBy": p.DislikedBy,
		"updatedAt":  encodeTime(p.UpdatedAt),
	}

	if err := s.store.Patch(ctx, PublicPath, id, fields); err != nil {
		return nil, fmt.Errorf("write public replica: %w", err)
	}

	s.mirrorToOwned(ctx, p.Author.ID, id, fields)

	return p, nil
}

// AddComment appends a comment to the public record. Text that is empty
// after trimming is a no-op; prior comments are never reordered or touched.
func (s *Service) AddComment(ctx context.Context, actor *Author, id, text string) (*Post, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}

	p, err := s.getPublic(ctx, id)
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return p, nil
	}

	now := time.Now().UTC()
	p.Comments = append(p.Comments, &Comment{
		ID:        uuid.New().String(),
		Content:   text,
		Author:    *actor,
		PostID:    id,
		CreatedAt: now,
		UpdatedAt: now,
	})
	p.UpdatedAt = now

	fields := map[string]interface{}{
		"comments":  encodeComments(p.Comments),
		"updatedAt": encodeTime(p.UpdatedAt),
	}

	if err := s.store.Patch(ctx, PublicPath, id, fields); err != nil {
		return nil, fmt.Errorf("write public replica: %w", err)
	}

	s.mirrorToOwned(ctx, p.Author.ID, id, fields)

	return p, nil
}

// mirrorToOwned is the secondary write: the public replica already holds the
// authoritative state, so a failed echo is only logged.
func (s *Service) mirrorToOwned(ctx context.Context, authorID, id string, fields map[string]interface{}) {
	if err := s.store.Patch(ctx, OwnedPath(authorID), id, fields); err != nil {
		s.logger.Warnf("mirror post %v to owned replica of %v: %v", id, authorID, err)
	}
}

func (s *Service) getPublic(ctx context.Context, id string) (*Post, error) {
	doc, err := s.store.Get(ctx, PublicPath, id)
	if errors.Is(err, store.ErrNoDocument) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read public replica: %w", err)
	}

	return DecodePost(id, doc)
}

// getOwned loads the caller's owned record. When the record is missing but
// the post exists publicly under another author, the distinction between
// "not yours" and "does not exist" matters to the caller.
func (s *Service) getOwned(ctx context.Context, actor *Author, id string) (*Post, error) {
	doc, err := s.store.Get(ctx, OwnedPath(actor.ID), id)
	if err == nil {
		p, derr := DecodePost(id, doc)
		if derr != nil {
			return nil, derr
		}
		if p.Author.ID != actor.ID {
			return nil, ErrForbidden
		}
		return p, nil
	}
	if !errors.Is(err, store.ErrNoDocument) {
		return nil, fmt.Errorf("read owned replica: %w", err)
	}

	public, perr := s.getPublic(ctx, id)
	if perr == nil && public.Author.ID != actor.ID {
		return nil, ErrForbidden
	}

	return nil, ErrNotFound
}

// SortNewestFirst orders posts descending by creation time, ties broken by
// id to keep snapshots stable.
func SortNewestFirst(result []*Post) {
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
}
