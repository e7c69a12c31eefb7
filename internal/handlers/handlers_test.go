package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/authblog/apiserver/internal/services"
	"github.com/authblog/apiserver/internal/store"
	"github.com/authblog/apiserver/types"
)

const testSecret = "test-signing-secret"

// fakeUserRepo is an in-memory services.UserRepository.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]types.User // keyed by id
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]types.User)}
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	now := time.Now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	f.users[user.ID] = user
	return user, nil
}

// fakeBlogRepo is an in-memory services.BlogRepository that mirrors the
// ownership-scoped conditional semantics of the real store.
type fakeBlogRepo struct {
	mu    sync.Mutex
	users *fakeUserRepo
	blogs map[string]types.Blog
	order []string
}

func newFakeBlogRepo(users *fakeUserRepo) *fakeBlogRepo {
	return &fakeBlogRepo{users: users, blogs: make(map[string]types.Blog)}
}

func (f *fakeBlogRepo) List(ctx context.Context) ([]types.BlogWithAuthor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.BlogWithAuthor, 0, len(f.order))
	for _, id := range f.order {
		blog := f.blogs[id]
		owner, err := f.users.GetByID(ctx, blog.UserID)
		if err != nil {
			return nil, err
		}
		out = append(out, types.BlogWithAuthor{
			Blog:   blog,
			Author: types.BlogAuthor{ID: owner.ID, Email: owner.Email},
		})
	}
	return out, nil
}

func (f *fakeBlogRepo) Create(ctx context.Context, blog types.Blog) (types.Blog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	blog.ID = uuid.NewString()
	blog.CreatedAt = now
	blog.UpdatedAt = now
	f.blogs[blog.ID] = blog
	f.order = append(f.order, blog.ID)
	return blog, nil
}

func (f *fakeBlogRepo) Update(ctx context.Context, id, userID string, title, description *string) (types.Blog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	blog, ok := f.blogs[id]
	if !ok || blog.UserID != userID {
		return types.Blog{}, store.ErrNotFound
	}
	if title != nil {
		blog.Title = *title
	}
	if description != nil {
		blog.Description = *description
	}
	blog.UpdatedAt = time.Now()
	f.blogs[id] = blog
	return blog, nil
}

func (f *fakeBlogRepo) Delete(ctx context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	blog, ok := f.blogs[id]
	if !ok || blog.UserID != userID {
		return store.ErrNotFound
	}
	delete(f.blogs, id)
	for i, ordered := range f.order {
		if ordered == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

// newTestRouter assembles the real route tree over fake repositories.
func newTestRouter() *chi.Mux {
	users := newFakeUserRepo()
	blogs := newFakeBlogRepo(users)

	userService := services.NewUserService(users)
	blogService := services.NewBlogService(blogs, nil)

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, userService, testSecret)
	})
	router.Route("/blogs", func(r chi.Router) {
		BlogRouter(r, blogService, RequireAuth(testSecret))
	})
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func registerAndLogin(t *testing.T, router http.Handler, email, password string) (types.User, string) {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	registered := decodeBody[RegisterResponse](t, rec)

	rec = doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decodeBody[LoginResponse](t, rec)
	require.NotEmpty(t, login.Token)

	return registered.User, login.Token
}
