package handlers

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"blogclone/pkg/posts"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type PostHandler struct {
	Svc    PostsService
	Logger *zap.SugaredLogger
}

type PostsService interface {
	Create(ctx context.Context, actor *posts.Author, req *posts.CreateRequest) (*posts.Post, error)
	Update(ctx context.Context, actor *posts.Author, id string, req *posts.UpdateRequest) (*posts.Post, error)
	Publish(ctx context.Context, actor *posts.Author, id string) (*posts.Post, error)
	Delete(ctx context.Context, actor *posts.Author, id string) error
	GetByID(ctx context.Context, actor *posts.Author, id string) (*posts.Post, error)
	ListPublished(ctx context.Context) ([]*posts.Post, error)
	Toggle(ctx context.Context, actor *posts.Author, id string, kind posts.InteractionKind) (*posts.Post, error)
	AddComment(ctx context.Context, actor *posts.Author, id, text string) (*posts.Post, error)
}

type CreatePostReq struct {
	Title       *string  `json:"title"`
	Content     *string  `json:"content"`
	Excerpt     *string  `json:"excerpt"`
	Category    *string  `json:"category"`
	Tags        []string `json:"tags"`
	ImageURL    *string  `json:"imageUrl"`
	IsPublished bool     `json:"isPublished"`
}

func (p *CreatePostReq) validate() []*CustomError {
	title := &Validator{value: p.Title, location: "body", field: "title"}
	titleErr := func() *CustomError {
		err := title.Required()
		if err != nil {
			return err
		}
		err = title.Empty()
		if err != nil {
			return err
		}
		err = title.MaxLength(100)
		if err != nil {
			return err
		}
		return title.Custom(func(value string) bool {
			return strings.TrimSpace(value) == value
		}, "cannot start or end with whitespace")
	}()

	content := &Validator{value: p.Content, location: "body", field: "content"}
	contentErr := func() *CustomError {
		err := content.Required()
		if err != nil {
			return err
		}
		return content.MinLength(4)
	}()

	category := &Validator{value: p.Category, location: "body", field: "category"}
	categoryErr := func() *CustomError {
		err := category.Required()
		if err != nil {
			return err
		}
		return category.Empty()
	}()

	var imageErr *CustomError
	if p.ImageURL != nil && *p.ImageURL != "" {
		image := &Validator{value: p.ImageURL, location: "body", field: "imageUrl"}
		imageErr = image.URL()
	}

	return mergeErrors(titleErr, contentErr, categoryErr, imageErr)
}

type CommentReq struct {
	Comment *string `json:"comment"`
}

func (h *PostHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	published, err := h.Svc.ListPublished(ctx)
	if err != nil {
		writeDomainError(w, h.Logger, err)
		return
	}

	writeJSON(w, h.Logger, published, http.StatusOK)
}

func (h *PostHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	post, err := h.Svc.GetByID(ctx, actorFromRequest(r), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, h.Logger, err)
		return
	}

	writeJSON(w, h.Logger, post, http.StatusOK)
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		WriteResponse(w, "bad request", http.StatusBadRequest)
		return
	}

	var req CreatePostReq
	err = json.Unmarshal(body, &req)
	if err != nil {
		WriteResponse(w, "bad request", http.StatusBadRequest)
		return
	}

	validationErrors := req.validate()
	if len(validationErrors) > 0 {
		writeErrorsResponse(w, validationErrors, http.StatusUnprocessableEntity)
		return
	}

	createReq := &posts.CreateRequest{
		Title:       *req.Title,
		Content:     *req.Content,
		Category:    *req.Category,
		Tags:        req.Tags,
		IsPublished: req.IsPublished,
	}
	if req.Excerpt != nil {
		createReq.Excerpt = *req.Excerpt
	}
	if req.ImageURL != nil {
		createReq.ImageURL = *req.ImageURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	post, err := h.Svc.Create(ctx, actorFromRequest(r), createReq)
	if err != nil {
		writeDomainError(w, h.Logger, err)
		return
	}

	writeJSON(w, h.Logger, post, http.StatusCreated)
}

func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		WriteResponse(w, "bad request", http.StatusBadRequest)
		return
	}

	var req posts.UpdateRequest
	err = json.Unmarshal(body, &req)
	if err != nil {
		WriteResponse(w, "bad request", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	post, err := h.Svc.Update(ctx, actorFromRequest(r), mux.Vars(r)["id"], &req)
	if err != nil {
		writeDomainError(w, h.Logger, err)
		return
	}

	writeJSON(w, h.Logger, post, http.StatusOK)
}

func (h *PostHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	post, err := h.Svc.Publish(ctx, actorFromRequest(r), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, h.Logger, err)
		return
	}

	writeJSON(w, h.Logger, post, http.StatusOK)
}

func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := h.Svc.Delete(ctx, actorFromRequest(r), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, h.Logger, err)
		return
	}

	WriteResponse(w, "success", http.StatusOK)
}

func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, posts.Like)
}

func (h *PostHandler) Dislike(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, posts.Dislike)
}

func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		WriteResponse(w, "bad request", http.StatusBadRequest)
		return
	}

	var req CommentReq
	err = json.Unmarshal(body, &req)
	if err != nil || req.Comment == nil {
		WriteResponse(w, "bad request", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	post, err := h.Svc.AddComment(ctx, actorFromRequest(r), mux.Vars(r)["id"], *req.Comment)
	if err != nil {
		writeDomainError(w, h.Logger, err)
		return
	}

	writeJSON(w, h.Logger, post, http.StatusCreated)
}

func (h *PostHandler) toggle(w http.ResponseWriter, r *http.Request, kind posts.InteractionKind) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	post, err := h.Svc.Toggle(ctx, actorFromRequest(r), mux.Vars(r)["id"], kind)
	if err != nil {
		writeDomainError(w, h.Logger, err)
		return
	}

	writeJSON(w, h.Logger, post, http.StatusOK)
}
