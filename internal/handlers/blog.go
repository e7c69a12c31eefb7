package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/authblog/apiserver/internal/services"
	"github.com/authblog/apiserver/internal/store"
	"github.com/authblog/apiserver/types"
)

// BlogHandler provides HTTP handlers for blog posts.
type BlogHandler struct {
	blogService *services.BlogService
}

// NewBlogHandler constructs a handler with the provided service.
func NewBlogHandler(blogService *services.BlogService) *BlogHandler {
	return &BlogHandler{blogService: blogService}
}

// BlogRouter registers blog routes on the given router. Listing is public;
// every mutating route sits behind the auth middleware.
func BlogRouter(r chi.Router, blogService *services.BlogService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewBlogHandler(blogService)

	r.Get("/", handler.ListBlogs)
	r.With(authMiddleware).Post("/", handler.CreateBlog)
	r.Route("/{blogID}", func(r chi.Router) {
		r.With(authMiddleware).Patch("/", handler.UpdateBlog)
		r.With(authMiddleware).Delete("/", handler.DeleteBlog)
	})
}

func (h *BlogHandler) ListBlogs(w http.ResponseWriter, r *http.Request) {
	blogs, err := h.blogService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch blogs")
		return
	}

	writeJSON(w, http.StatusCreated, BlogListResponse{
		Message: "Fetched blogs successfully",
		Blogs:   blogs,
	})
}

func (h *BlogHandler) CreateBlog(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req BlogCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	created, err := h.blogService.Create(r.Context(), types.Blog{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		UserID:      claims.UserID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create blog")
		return
	}

	writeJSON(w, http.StatusCreated, BlogCreateResponse{
		Message: "Blog created successfully",
		NewBlog: created,
	})
}

func (h *BlogHandler) UpdateBlog(w http.ResponseWriter, r *http.Request) {
	id, err := parseBlogID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req BlogUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Title == nil && req.Description == nil {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title cannot be empty")
		return
	}

	updated, err := h.blogService.Update(r.Context(), id, claims.UserID, req.Title, req.Description)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "blog not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update blog")
		return
	}

	writeJSON(w, http.StatusCreated, BlogUpdateResponse{
		Message: "Blog updated!",
		Blog:    updated,
	})
}

func (h *BlogHandler) DeleteBlog(w http.ResponseWriter, r *http.Request) {
	id, err := parseBlogID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.blogService.Delete(r.Context(), id, claims.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "blog not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete blog")
		return
	}

	writeJSON(w, http.StatusCreated, BlogDeleteResponse{Message: "Blog deleted!"})
}

type BlogCreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type BlogUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type BlogListResponse struct {
	Message string                 `json:"message"`
	Blogs   []types.BlogWithAuthor `json:"blogs"`
}

type BlogCreateResponse struct {
	Message string     `json:"message"`
	NewBlog types.Blog `json:"newBlog"`
}

type BlogUpdateResponse struct {
	Message string     `json:"message"`
	Blog    types.Blog `json:"blog"`
}

type BlogDeleteResponse struct {
	Message string `json:"message"`
}

// parseBlogID validates the path identifier before any database access.
func parseBlogID(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "blogID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", errors.New("invalid blog id")
	}
	return id.String(), nil
}
