package types

import "time"

// Blog represents a blog post owned by a single user.
type Blog struct {
	// ID is the unique identifier of the blog post.
	ID string `json:"id" db:"id"`

	// Title is the human-readable title of the post. Required.
	Title string `json:"title" db:"title"`

	// Description contains the body of the post.
	Description string `json:"description" db:"description"`

	// Category is a free-form label used for grouping posts.
	Category string `json:"category" db:"category"`

	// UserID references the owning user. Every mutation of a post is
	// scoped to this owner.
	UserID string `json:"user_id" db:"user_id"`

	// CreatedAt is the timestamp at which the post was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the post.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// BlogAuthor is the owner summary joined into list responses.
type BlogAuthor struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// BlogWithAuthor is a blog post with its owner's public identity resolved.
type BlogWithAuthor struct {
	Blog
	Author BlogAuthor `json:"user"`
}
