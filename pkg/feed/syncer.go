package feed

import (
	"context"
	"fmt"
	"sync"

	"blogclone/pkg/posts"
	"blogclone/pkg/store"

	"go.uber.org/zap"
)

// Syncer is the live read surface of one signed-in user: two continuously
// refreshed sequences, "all published posts" and "the user's own posts",
// backed by store subscriptions on the two replicas. One Syncer is built per
// sign-in and torn down on sign-out; nothing here is process-global.
type Syncer struct {
	store  store.Store
	user   *posts.Author
	logger *zap.SugaredLogger

	public chan []*posts.Post
	owned  chan []*posts.Post

	mu           sync.Mutex
	cancelPublic func()
	cancelOwned  func()
}

func NewSyncer(st store.Store, user *posts.Author, logger *zap.SugaredLogger) *Syncer {
	return &Syncer{
		store:  st,
		user:   user,
		logger: logger,
		public: make(chan []*posts.Post, 1),
		owned:  make(chan []*posts.Post, 1),
	}
}

// Public emits the published posts, newest first. Only the latest snapshot
// is retained for a slow consumer.
func (s *Syncer) Public() <-chan []*posts.Post {
	return s.public
}

// Owned emits the user's posts (drafts included), newest first, with
// interaction data of published entries overlaid from the public replica.
func (s *Syncer) Owned() <-chan []*posts.Post {
	return s.owned
}

func (s *Syncer) Start(ctx context.Context) error {
	publicSnaps, cancelPublic, err := s.store.Watch(ctx, posts.PublicPath)
	if err != nil {
		return fmt.Errorf("watch public replica: %w", err)
	}

	ownedSnaps, cancelOwned, err := s.store.Watch(ctx, posts.OwnedPath(s.user.ID))
	if err != nil {
		cancelPublic()
		return fmt.Errorf("watch owned replica: %w", err)
	}

	s.mu.Lock()
	s.cancelPublic = cancelPublic
	s.cancelOwned = cancelOwned
	s.mu.Unlock()

	go s.pump(ctx, publicSnaps, s.public, s.decodePublic)
	go s.pump(ctx, ownedSnaps, s.owned, s.decodeOwned)

	return nil
}

// Stop cancels both subscriptions. Each pump then publishes a final empty
// sequence, which is the sign-out state consumers render.
func (s *Syncer) Stop() {
	s.mu.Lock()
	cancelPublic, cancelOwned := s.cancelPublic, s.cancelOwned
	s.cancelPublic, s.cancelOwned = nil, nil
	s.mu.Unlock()

	if cancelPublic != nil {
		cancelPublic()
	}
	if cancelOwned != nil {
		cancelOwned()
	}
}

func (s *Syncer) pump(ctx context.Context, in <-chan store.Snapshot, out chan []*posts.Post,
	decode func(context.Context, store.Snapshot) []*posts.Post) {
	for snap := range in {
		offer(out, decode(ctx, snap))
	}

	offer(out, []*posts.Post{})
}

func (s *Syncer) decodePublic(ctx context.Context, snap store.Snapshot) []*posts.Post {
	result := make([]*posts.Post, 0, len(snap))
	for key, doc := range snap {
		p, err := posts.DecodePost(key, doc)
		if err != nil {
			s.logger.Warnf("skip public post %v: %v", key, err)
			continue
		}
		if !p.IsPublished {
			continue
		}
		result = append(result, p)
	}

	posts.SortNewestFirst(result)
	return result
}

func (s *Syncer) decodeOwned(ctx context.Context, snap store.Snapshot) []*posts.Post {
	result := make([]*posts.Post, 0, len(snap))
	for key, doc := range snap {
		p, err := posts.DecodePost(key, doc)
		if err != nil {
			s.logger.Warnf("skip owned post %v: %v", key, err)
			continue
		}
		if p.IsPublished {
			s.readRepair(ctx, p)
		}
		result = append(result, p)
	}

	posts.SortNewestFirst(result)
	return result
}

// readRepair overlays the owned copy's cached interaction fields with the
// authoritative public record, without writing anything back. A failed
// public lookup leaves the stale local counters in place; the owned view
// must stay available even when the public replica is not.
func (s *Syncer) readRepair(ctx context.Context, p *posts.Post) {
	doc, err := s.store.Get(ctx, posts.PublicPath, p.ID)
	if err != nil {
		s.logger.Warnf("read-repair post %v: %v", p.ID, err)
		return
	}

	public, err := posts.DecodePost(p.ID, doc)
	if err != nil {
		s.logger.Warnf("read-repair post %v: %v", p.ID, err)
		return
	}

	p.Likes = public.Likes
	p.Dislikes = public.Dislikes
	p.LikedBy = public.LikedBy
	p.DislikedBy = public.DislikedBy
	p.Comments = public.Comments
}

func offer(out chan []*posts.Post, snap []*posts.Post) {
	for {
		select {
		case out <- snap:
			return
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}
