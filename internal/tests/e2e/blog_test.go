//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/authblog/apiserver/config"
	"github.com/authblog/apiserver/internal/db"
	"github.com/authblog/apiserver/internal/server"
)

const serverPort = 18080

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestBlogLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	suffix := time.Now().UnixNano()

	ownerEmail := fmt.Sprintf("owner_%d@example.com", suffix)
	ownerID, ownerToken := registerAndLogin(t, baseURL, ownerEmail, "testpass123!")

	blog, err := createBlog(t, baseURL, ownerToken, "Hi")
	if err != nil {
		t.Fatalf("create blog: %v", err)
	}
	if blog.UserID != ownerID {
		t.Fatalf("blog owner %q, want %q", blog.UserID, ownerID)
	}

	if err := expectBlogListed(t, baseURL, blog.ID, ownerEmail); err != nil {
		t.Fatalf("list blogs: %v", err)
	}

	intruderEmail := fmt.Sprintf("intruder_%d@example.com", suffix)
	_, intruderToken := registerAndLogin(t, baseURL, intruderEmail, "testpass123!")

	if status := patchBlog(t, baseURL, intruderToken, blog.ID, "Hijacked"); status != http.StatusNotFound {
		t.Fatalf("non-owner patch status %d, want 404", status)
	}

	if status := patchBlog(t, baseURL, ownerToken, blog.ID, "Hello"); status != http.StatusCreated {
		t.Fatalf("owner patch status %d, want 201", status)
	}

	if status := deleteBlog(t, baseURL, ownerToken, blog.ID); status != http.StatusCreated {
		t.Fatalf("owner delete status %d, want 201", status)
	}

	if status := patchBlog(t, baseURL, ownerToken, blog.ID, "Gone"); status != http.StatusNotFound {
		t.Fatalf("patch after delete status %d, want 404", status)
	}
}

type blogResponse struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	UserID string `json:"user_id"`
}

func registerAndLogin(t *testing.T, baseURL, email, password string) (string, string) {
	t.Helper()

	payload := map[string]string{"email": email, "password": password}

	var registered struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if status, err := postJSON(baseURL+"/auth/register", "", payload, &registered); err != nil || status != http.StatusCreated {
		t.Fatalf("register status %d err %v", status, err)
	}

	var login struct {
		Token string `json:"token"`
	}
	if status, err := postJSON(baseURL+"/auth/login", "", payload, &login); err != nil || status != http.StatusOK {
		t.Fatalf("login status %d err %v", status, err)
	}
	if login.Token == "" {
		t.Fatalf("missing token in login response")
	}

	return registered.User.ID, login.Token
}

func createBlog(t *testing.T, baseURL, token, title string) (blogResponse, error) {
	t.Helper()

	var created struct {
		NewBlog blogResponse `json:"newBlog"`
	}
	status, err := postJSON(baseURL+"/blogs", token, map[string]string{
		"title":       title,
		"description": "e2e post",
		"category":    "testing",
	}, &created)
	if err != nil {
		return blogResponse{}, err
	}
	if status != http.StatusCreated {
		return blogResponse{}, fmt.Errorf("create blog status %d", status)
	}
	return created.NewBlog, nil
}

func expectBlogListed(t *testing.T, baseURL, blogID, ownerEmail string) error {
	t.Helper()

	resp, err := http.Get(baseURL + "/blogs")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("list status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var list struct {
		Blogs []struct {
			ID   string `json:"id"`
			User struct {
				Email string `json:"email"`
			} `json:"user"`
		} `json:"blogs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return err
	}
	for _, blog := range list.Blogs {
		if blog.ID == blogID {
			if blog.User.Email != ownerEmail {
				return fmt.Errorf("owner email %q, want %q", blog.User.Email, ownerEmail)
			}
			return nil
		}
	}
	return fmt.Errorf("blog %s not in listing", blogID)
}

func patchBlog(t *testing.T, baseURL, token, id, title string) int {
	t.Helper()
	status, err := doJSON(http.MethodPatch, fmt.Sprintf("%s/blogs/%s", baseURL, id), token, map[string]string{"title": title})
	if err != nil {
		t.Fatalf("patch blog: %v", err)
	}
	return status
}

func deleteBlog(t *testing.T, baseURL, token, id string) int {
	t.Helper()
	status, err := doJSON(http.MethodDelete, fmt.Sprintf("%s/blogs/%s", baseURL, id), token, nil)
	if err != nil {
		t.Fatalf("delete blog: %v", err)
	}
	return status
}

func postJSON(url, token string, payload, out any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func doJSON(method, url, token string, payload any) (int, error) {
	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found")
		}
		dir = parent
	}
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	cmd := exec.CommandContext(ctx, "docker", append([]string{"compose"}, args...)...)
	cmd.Dir = root
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	deadline := time.Now().Add(60 * time.Second)

	for time.Now().Before(deadline) {
		conn, err := sql.Open("postgres", db.DSN(cfg))
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err = conn.PingContext(pingCtx)
			cancel()
			_ = conn.Close()
			if err == nil {
				return nil
			}
		}
		time.Sleep(time.Second)
	}
	return errors.New("timed out waiting for postgres")
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")

	migrator, err := migrate.New(migrationsURL, db.DSN(cfg))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func startServer(ctx context.Context) (*server.Server, error) {
	if err := os.Setenv("SERVER_PORT", fmt.Sprint(serverPort)); err != nil {
		return nil, err
	}
	if os.Getenv("JWT_SECRET") == "" {
		if err := os.Setenv("JWT_SECRET", "e2e-test-secret"); err != nil {
			return nil, err
		}
	}

	srv, err := server.New(ctx, config.LoadConfig())
	if err != nil {
		return nil, err
	}
	go func() {
		_ = srv.Start()
	}()
	return srv, nil
}

func waitForHealth(ctx context.Context, url string) error {
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return errors.New("timed out waiting for health endpoint")
}
