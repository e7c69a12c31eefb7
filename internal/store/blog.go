package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/authblog/apiserver/types"
	"github.com/google/uuid"
)

// BlogRepository handles persistence for blog posts.
type BlogRepository struct {
	db *sql.DB
}

func NewBlogRepository(db *sql.DB) *BlogRepository {
	return &BlogRepository{db: db}
}

// List returns all blog posts with each owner's public identity joined in.
func (r *BlogRepository) List(ctx context.Context) ([]types.BlogWithAuthor, error) {
	const query = `
		SELECT b.id, b.title, b.description, b.category, b.user_id, b.created_at, b.updated_at,
			u.id, u.email
		FROM blogs b
		JOIN users u ON u.id = b.user_id
		ORDER BY b.created_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blogs := make([]types.BlogWithAuthor, 0)
	for rows.Next() {
		var blog types.BlogWithAuthor
		if err := rows.Scan(
			&blog.ID,
			&blog.Title,
			&blog.Description,
			&blog.Category,
			&blog.UserID,
			&blog.CreatedAt,
			&blog.UpdatedAt,
			&blog.Author.ID,
			&blog.Author.Email,
		); err != nil {
			return nil, err
		}
		blogs = append(blogs, blog)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return blogs, nil
}

func (r *BlogRepository) Create(ctx context.Context, blog types.Blog) (types.Blog, error) {
	now := time.Now()
	blog.ID = uuid.NewString()
	blog.CreatedAt = now
	blog.UpdatedAt = now

	const query = `
		INSERT INTO blogs (id, title, description, category, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		blog.ID,
		blog.Title,
		blog.Description,
		blog.Category,
		blog.UserID,
		blog.CreatedAt,
		blog.UpdatedAt,
	); err != nil {
		return types.Blog{}, err
	}
	return blog, nil
}

// Update applies the supplied fields to the post identified by id, but only
// when it is owned by userID. The match and the write happen in one
// statement; a zero-row result means missing or not owned, reported
// uniformly as ErrNotFound.
func (r *BlogRepository) Update(ctx context.Context, id, userID string, title, description *string) (types.Blog, error) {
	const query = `
		UPDATE blogs
		SET title = COALESCE($1, title),
			description = COALESCE($2, description),
			updated_at = $3
		WHERE id = $4 AND user_id = $5
		RETURNING id, title, description, category, user_id, created_at, updated_at`
	var blog types.Blog
	err := r.db.QueryRowContext(
		ctx,
		query,
		title,
		description,
		time.Now(),
		id,
		userID,
	).Scan(
		&blog.ID,
		&blog.Title,
		&blog.Description,
		&blog.Category,
		&blog.UserID,
		&blog.CreatedAt,
		&blog.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Blog{}, ErrNotFound
		}
		return types.Blog{}, err
	}
	return blog, nil
}

// Delete removes the post identified by id when owned by userID, with the
// same single-statement ownership scoping as Update.
func (r *BlogRepository) Delete(ctx context.Context, id, userID string) error {
	const query = `DELETE FROM blogs WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
