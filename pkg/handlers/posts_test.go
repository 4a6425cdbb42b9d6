package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"blogclone/pkg/posts"
	"blogclone/pkg/session"
	"blogclone/pkg/store"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

var alice = &session.User{ID: "user-alice", Username: "alice"}
var bob = &session.User{ID: "user-bob", Username: "bob"}

func newPostHandler() *PostHandler {
	svc := posts.NewService(store.NewMemStore(), zap.NewNop().Sugar())
	return &PostHandler{Svc: svc, Logger: zap.NewNop().Sugar()}
}

func newRequest(method, target string, body interface{}, u *session.User, vars map[string]string) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	r := httptest.NewRequest(method, target, &buf)
	if u != nil {
		sess := &session.Session{User: u}
		r = r.WithContext(context.WithValue(r.Context(), session.SessionKey, sess))
	}
	if vars != nil {
		r = mux.SetURLVars(r, vars)
	}

	return r
}

func decodePostResponse(t *testing.T, w *httptest.ResponseRecorder) *posts.Post {
	t.Helper()

	body, err := ioutil.ReadAll(w.Body)
	if err != nil {
		t.Fatalf("unexpected error while reading response body: %s", err.Error())
	}

	p := &posts.Post{}
	if err := json.Unmarshal(body, p); err != nil {
		t.Fatalf("unexpected error while decoding response: %s", err.Error())
	}

	return p
}

func createPost(t *testing.T, h *PostHandler, u *session.User, published bool) *posts.Post {
	t.Helper()

	body := map[string]interface{}{
		"title":       "Go concurrency patterns",
		"content":     "Channels orchestrate; mutexes serialize.",
		"category":    "programming",
		"isPublished": published,
	}

	w := httptest.NewRecorder()
	h.Create(w, newRequest(http.MethodPost, "/api/posts", body, u, nil))

	if w.Code != http.StatusCreated {
		t.Fatalf("wrong status code: %d, but expected %d", w.Code, http.StatusCreated)
	}

	return decodePostResponse(t, w)
}

func TestCreateRequiresSession(t *testing.T) {
	h := newPostHandler()

	body := map[string]interface{}{"title": "t", "content": "long enough", "category": "c"}
	w := httptest.NewRecorder()
	h.Create(w, newRequest(http.MethodPost, "/api/posts", body, nil, nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong status code: %d, but expected %d", w.Code, http.StatusUnauthorized)
	}
}

func TestCreateValidation(t *testing.T) {
	h := newPostHandler()

	cases := []map[string]interface{}{
		{"content": "long enough", "category": "c"},                                    // no title
		{"title": "t", "category": "c"},                                                // no content
		{"title": "t", "content": "abc", "category": "c"},                              // content too short
		{"title": "t", "content": "long enough"},                                       // no category
		{"title": " padded ", "content": "long enough", "category": "c"},               // whitespace title
		{"title": "t", "content": "long enough", "category": "c", "imageUrl": "nope!"}, // bad url
	}

	for i, body := range cases {
		w := httptest.NewRecorder()
		h.Create(w, newRequest(http.MethodPost, "/api/posts", body, alice, nil))

		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("case %d: wrong status code: %d, but expected %d", i, w.Code, http.StatusUnprocessableEntity)
		}
	}
}

func TestDraftIsInvisibleInFeed(t *testing.T) {
	h := newPostHandler()
	createPost(t, h, alice, false)

	w := httptest.NewRecorder()
	h.GetAll(w, newRequest(http.MethodGet, "/api/posts/", nil, nil, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("wrong status code: %d, but expected %d", w.Code, http.StatusOK)
	}

	var feed []*posts.Post
	if err := json.NewDecoder(w.Body).Decode(&feed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(feed) != 0 {
		t.Errorf("expected empty feed, but was %v posts", len(feed))
	}
}

func TestPublishedPostIsVisible(t *testing.T) {
	h := newPostHandler()
	created := createPost(t, h, alice, true)

	w := httptest.NewRecorder()
	h.GetByID(w, newRequest(http.MethodGet, "/api/post/"+created.ID, nil, nil, map[string]string{"id": created.ID}))

	if w.Code != http.StatusOK {
		t.Fatalf("wrong status code: %d, but expected %d", w.Code, http.StatusOK)
	}

	got := decodePostResponse(t, w)
	if got.ID != created.ID || got.Title != created.Title {
		t.Errorf("expected %v but was %v", created, got)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	h := newPostHandler()

	w := httptest.NewRecorder()
	h.GetByID(w, newRequest(http.MethodGet, "/api/post/nope", nil, nil, map[string]string{"id": "nope"}))

	if w.Code != http.StatusNotFound {
		t.Fatalf("wrong status code: %d, but expected %d", w.Code, http.StatusNotFound)
	}
}

func TestUpdateForeignPostForbidden(t *testing.T) {
	h := newPostHandler()
	created := createPost(t, h, alice, true)

	body := map[string]interface{}{"title": "hijacked"}
	w := httptest.NewRecorder()
	h.Update(w, newRequest(http.MethodPut, "/api/post/"+created.ID, body, bob, map[string]string{"id": created.ID}))

	if w.Code != http.StatusForbidden {
		t.Fatalf("wrong status code: %d, but expected %d", w.Code, http.StatusForbidden)
	}
}

func TestLikeToggle(t *testing.T) {
	h := newPostHandler()
	created := createPost(t, h, alice, true)
	vars := map[string]string{"id": created.ID}

	w := httptest.NewRecorder()
	h.Like(w, newRequest(http.MethodPost, "/api/post/"+created.ID+"/like", nil, bob, vars))

	if w.Code != http.StatusOK {
		t.Fatalf("wrong status code: %d, but expected %d", w.Code, http.StatusOK)
	}

	got := decodePostResponse(t, w)
	if got.Likes != 1 || len(got.LikedBy) != 1 || got.LikedBy[0] != bob.ID {
		t.Fatalf("expected single like from %v, but was %+v", bob.ID, got)
	}

	// same user again: the like is withdrawn
	w = httptest.NewRecorder()
	h.Like(w, newRequest(http.MethodPost, "/api/post/"+created.ID+"/like", nil, bob, vars))

	got = decodePostResponse(t, w)
	if got.Likes != 0 || len(got.LikedBy) != 0 {
		t.Fatalf("expected like withdrawn, but was %+v", got)
	}
}

func TestDislikeDisplacesLike(t *testing.T) {
	h := newPostHandler()
	created := createPost(t, h, alice, true)
	vars := map[string]string{"id": created.ID}

	w := httptest.NewRecorder()
	h.Like(w, newRequest(http.MethodPost, "/like", nil, bob, vars))

	w = httptest.NewRecorder()
	h.Dislike(w, newRequest(http.MethodPost, "/dislike", nil, bob, vars))

	got := decodePostResponse(t, w)
	if got.Likes != 0 || got.Dislikes != 1 || len(got.DislikedBy) != 1 {
		t.Fatalf("expected like displaced by dislike, but was %+v", got)
	}
}

func TestAddComment(t *testing.T) {
	h := newPostHandler()
	created := createPost(t, h, alice, true)
	vars := map[string]string{"id": created.ID}

	body := map[string]string{"comment": "great write-up"}
	w := httptest.NewRecorder()
	h.AddComment(w, newRequest(http.MethodPost, "/comments", body, bob, vars))

	if w.Code != http.StatusCreated {
		t.Fatalf("wrong status code: %d, but expected %d", w.Code, http.StatusCreated)
	}

	got := decodePostResponse(t, w)
	if len(got.Comments) != 1 || got.Comments[0].Content != "great write-up" {
		t.Fatalf("expected one comment, but was %+v", got.Comments)
	}
	if got.Comments[0].Author.ID != bob.ID {
		t.Errorf("expected comment author %v, but was %v", bob.ID, got.Comments[0].Author.ID)
	}
}

func TestDeleteHidesPost(t *testing.T) {
	h := newPostHandler()
	created := createPost(t, h, alice, true)
	vars := map[string]string{"id": created.ID}

	w := httptest.NewRecorder()
	h.Delete(w, newRequest(http.MethodDelete, "/api/post/"+created.ID, nil, alice, vars))

	if w.Code != http.StatusOK {
		t.Fatalf("wrong status code: %d, but expected %d", w.Code, http.StatusOK)
	}

	w = httptest.NewRecorder()
	h.GetByID(w, newRequest(http.MethodGet, "/api/post/"+created.ID, nil, nil, vars))

	if w.Code != http.StatusNotFound {
		t.Fatalf("wrong status code: %d, but expected %d", w.Code, http.StatusNotFound)
	}
}

func TestPublishDraft(t *testing.T) {
	h := newPostHandler()
	created := createPost(t, h, alice, false)
	vars := map[string]string{"id": created.ID}

	w := httptest.NewRecorder()
	h.Publish(w, newRequest(http.MethodPost, "/publish", nil, alice, vars))

	if w.Code != http.StatusOK {
		t.Fatalf("wrong status code: %d, but expected %d", w.Code, http.StatusOK)
	}

	// now everyone can read it
	w = httptest.NewRecorder()
	h.GetByID(w, newRequest(http.MethodGet, "/api/post/"+created.ID, nil, nil, vars))

	if w.Code != http.StatusOK {
		t.Fatalf("wrong status code: %d, but expected %d", w.Code, http.StatusOK)
	}

	got := decodePostResponse(t, w)
	if !got.IsPublished {
		t.Error("expected post to be published")
	}
}
