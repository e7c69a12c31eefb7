package services

import (
	"context"
	"encoding/json"

	"github.com/authblog/apiserver/types"
	"github.com/rs/zerolog/log"
)

// Blog lifecycle event names published to the event channel.
const (
	EventBlogCreated = "blog.created"
	EventBlogUpdated = "blog.updated"
	EventBlogDeleted = "blog.deleted"
)

const eventChannel = "blog-events"

// BlogRepository defines persistence operations for blog posts.
type BlogRepository interface {
	List(ctx context.Context) ([]types.BlogWithAuthor, error)
	Create(ctx context.Context, blog types.Blog) (types.Blog, error)
	Update(ctx context.Context, id, userID string, title, description *string) (types.Blog, error)
	Delete(ctx context.Context, id, userID string) error
}

// EventPublisher sends lifecycle events to a message broker.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// BlogService encapsulates blog use-cases. When a publisher is configured,
// mutations emit best-effort lifecycle events; publish failures never fail
// the originating request.
type BlogService struct {
	repo      BlogRepository
	publisher EventPublisher
}

func NewBlogService(repo BlogRepository, publisher EventPublisher) *BlogService {
	return &BlogService{repo: repo, publisher: publisher}
}

func (s *BlogService) List(ctx context.Context) ([]types.BlogWithAuthor, error) {
	return s.repo.List(ctx)
}

func (s *BlogService) Create(ctx context.Context, blog types.Blog) (types.Blog, error) {
	created, err := s.repo.Create(ctx, blog)
	if err != nil {
		return types.Blog{}, err
	}
	s.publishEvent(ctx, EventBlogCreated, created)
	return created, nil
}

func (s *BlogService) Update(ctx context.Context, id, userID string, title, description *string) (types.Blog, error) {
	updated, err := s.repo.Update(ctx, id, userID, title, description)
	if err != nil {
		return types.Blog{}, err
	}
	s.publishEvent(ctx, EventBlogUpdated, updated)
	return updated, nil
}

func (s *BlogService) Delete(ctx context.Context, id, userID string) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return err
	}
	s.publishEvent(ctx, EventBlogDeleted, types.Blog{ID: id, UserID: userID})
	return nil
}

func (s *BlogService) publishEvent(ctx context.Context, event string, blog types.Blog) {
	if s.publisher == nil {
		return
	}
	data, err := json.Marshal(blog)
	if err != nil {
		log.Warn().Err(err).Str("event", event).Msg("failed to encode blog event")
		return
	}
	if _, err := s.publisher.Publish(ctx, eventChannel, data, map[string]string{"event": event}); err != nil {
		log.Warn().Err(err).Str("event", event).Str("blog_id", blog.ID).Msg("failed to publish blog event")
	}
}
