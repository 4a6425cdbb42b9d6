package feed

import (
	"context"
	"testing"
	"time"

	"blogclone/pkg/posts"
	"blogclone/pkg/store"

	"go.uber.org/zap"
)

var owner = &posts.Author{ID: "user-owner", Username: "owner"}

func encode(t *testing.T, p *posts.Post) []byte {
	t.Helper()

	doc, err := posts.EncodePost(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return doc
}

func makePost(id string, author *posts.Author, published bool, createdAt time.Time) *posts.Post {
	return &posts.Post{
		ID:          id,
		Title:       "title " + id,
		Content:     "content " + id,
		Author:      *author,
		IsPublished: published,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func recvPosts(t *testing.T, ch <-chan []*posts.Post) []*posts.Post {
	t.Helper()

	select {
	case snap := <-ch:
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for posts")
		return nil
	}
}

func startSyncer(t *testing.T, st store.Store, user *posts.Author) *Syncer {
	t.Helper()

	s := NewSyncer(st, user, zap.NewNop().Sugar())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(s.Stop)

	return s
}

func TestPublicStreamFiltersAndSorts(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()

	base := time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)
	older := makePost("p-older", owner, true, base)
	newer := makePost("p-newer", owner, true, base.Add(time.Hour))
	draft := makePost("p-draft", owner, false, base.Add(2*time.Hour))

	st.Put(ctx, posts.PublicPath, older.ID, encode(t, older))
	st.Put(ctx, posts.PublicPath, newer.ID, encode(t, newer))
	// an unpublished record in the public path must be filtered, not trusted
	st.Put(ctx, posts.PublicPath, draft.ID, encode(t, draft))

	s := startSyncer(t, st, owner)

	snap := recvPosts(t, s.Public())
	if len(snap) != 2 {
		t.Fatalf("expected 2 posts, but was %v", len(snap))
	}
	if snap[0].ID != newer.ID || snap[1].ID != older.ID {
		t.Fatalf("expected newest first, but was %v, %v", snap[0].ID, snap[1].ID)
	}
}

func TestPublicStreamSkipsMalformed(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()

	good := makePost("p-good", owner, true, time.Now().UTC())
	st.Put(ctx, posts.PublicPath, good.ID, encode(t, good))
	st.Put(ctx, posts.PublicPath, "p-bad", []byte(`{"title":""}`))

	s := startSyncer(t, st, owner)

	snap := recvPosts(t, s.Public())
	if len(snap) != 1 || snap[0].ID != good.ID {
		t.Fatalf("expected only the valid post, but was %+v", snap)
	}
}

func TestOwnedStreamReadRepair(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()

	created := time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)

	// owned copy carries stale counters
	ownedCopy := makePost("p-1", owner, true, created)
	st.Put(ctx, posts.OwnedPath(owner.ID), ownedCopy.ID, encode(t, ownedCopy))

	// public copy is ahead: one like, one comment
	publicCopy := makePost("p-1", owner, true, created)
	publicCopy.LikedBy = []string{"user-fan"}
	publicCopy.Likes = 1
	publicCopy.Comments = []*posts.Comment{{
		ID: "c-1", Content: "nice", Author: posts.Author{ID: "user-fan", Username: "fan"},
		PostID: "p-1", CreatedAt: created, UpdatedAt: created,
	}}
	st.Put(ctx, posts.PublicPath, publicCopy.ID, encode(t, publicCopy))

	s := startSyncer(t, st, owner)

	snap := recvPosts(t, s.Owned())
	if len(snap) != 1 {
		t.Fatalf("expected 1 post, but was %v", len(snap))
	}

	got := snap[0]
	if got.Likes != 1 || len(got.LikedBy) != 1 || got.LikedBy[0] != "user-fan" {
		t.Errorf("interaction fields not overlaid: %+v", got)
	}
	if len(got.Comments) != 1 || got.Comments[0].Content != "nice" {
		t.Errorf("comments not overlaid: %+v", got.Comments)
	}
}

func TestOwnedStreamKeepsDrafts(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()

	draft := makePost("p-draft", owner, false, time.Now().UTC())
	st.Put(ctx, posts.OwnedPath(owner.ID), draft.ID, encode(t, draft))

	s := startSyncer(t, st, owner)

	snap := recvPosts(t, s.Owned())
	if len(snap) != 1 || snap[0].ID != draft.ID {
		t.Fatalf("expected the draft, but was %+v", snap)
	}
}

func TestOwnedStreamStaleFallback(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()

	// published owned record whose public counterpart is gone: the stale
	// local counters must survive
	orphan := makePost("p-orphan", owner, true, time.Now().UTC())
	orphan.LikedBy = []string{"user-old-fan"}
	orphan.Likes = 1
	st.Put(ctx, posts.OwnedPath(owner.ID), orphan.ID, encode(t, orphan))

	s := startSyncer(t, st, owner)

	snap := recvPosts(t, s.Owned())
	if len(snap) != 1 {
		t.Fatalf("expected 1 post, but was %v", len(snap))
	}
	if snap[0].Likes != 1 || len(snap[0].LikedBy) != 1 {
		t.Errorf("stale counters lost: %+v", snap[0])
	}
}

func TestLiveUpdateReachesPublicStream(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()

	s := startSyncer(t, st, owner)

	snap := recvPosts(t, s.Public())
	if len(snap) != 0 {
		t.Fatalf("expected empty initial snapshot, but was %+v", snap)
	}

	p := makePost("p-live", owner, true, time.Now().UTC())
	st.Put(ctx, posts.PublicPath, p.ID, encode(t, p))

	snap = recvPosts(t, s.Public())
	if len(snap) != 1 || snap[0].ID != p.ID {
		t.Fatalf("expected the new post, but was %+v", snap)
	}
}

func TestStopEmitsEmptySequences(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()

	p := makePost("p-1", owner, true, time.Now().UTC())
	st.Put(ctx, posts.PublicPath, p.ID, encode(t, p))
	st.Put(ctx, posts.OwnedPath(owner.ID), p.ID, encode(t, p))

	s := startSyncer(t, st, owner)
	s.Stop()

	waitEmpty(t, s.Public())
	waitEmpty(t, s.Owned())

	// Stop twice is safe
	s.Stop()
}

// waitEmpty receives until the empty (signed-out) sequence arrives.
func waitEmpty(t *testing.T, ch <-chan []*posts.Post) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-ch:
			if len(snap) == 0 {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for the signed-out empty state")
		}
	}
}
