// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/inkpost/inkpost/internal/metrics"
	"github.com/inkpost/inkpost/internal/model"
	"github.com/inkpost/inkpost/internal/policy"
	"github.com/inkpost/inkpost/internal/repository"
)

// Store is the persistence contract the content service depends on.
// Both repository engines satisfy it.
type Store interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)

	CreatePost(ctx context.Context, post *model.Post) error
	GetPostByID(ctx context.Context, id string) (*model.Post, error)
	PublishPost(ctx context.Context, id string) error
	DeletePost(ctx context.Context, id string) error
	ListPosts(ctx context.Context, filter model.PostFilter) ([]*model.Post, error)
}

// ContentService implements the draft/publish lifecycle and the read queries.
// It keeps no state between calls.
type ContentService struct {
	store   Store
	metrics metrics.Recorder
}

// NewContentService creates a new ContentService.
func NewContentService(store Store, recorder metrics.Recorder) *ContentService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ContentService{
		store:   store,
		metrics: recorder,
	}
}

// SignupInput defines input for registering a user.
type SignupInput struct {
	Name  *string `json:"name" validate:"omitnil,text"`
	Email string  `json:"email" validate:"required,text,email,max=320"`
}

// Signup registers a new user. No authentication is required.
func (s *ContentService) Signup(ctx context.Context, input SignupInput) (*model.User, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	user := &model.User{
		Email: input.Email,
		Name:  input.Name,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.IncUserSignedUp()
	return user, nil
}

// CreateDraftInput defines input for creating a draft.
type CreateDraftInput struct {
	Title       string  `json:"title" validate:"required,notblank,text"`
	Content     *string `json:"content" validate:"omitnil,text"`
	AuthorEmail string  `json:"author_email" validate:"required,text"`
}

// CreateDraft creates an unpublished post owned by the user with AuthorEmail.
// When AuthorEmail is empty the principal's email is used.
//
// The principal is not required to match the author.
func (s *ContentService) CreateDraft(ctx context.Context, principal *model.Principal, input CreateDraftInput) (*model.Post, error) {
	if input.AuthorEmail == "" && principal != nil {
		input.AuthorEmail = principal.Email
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	author, err := s.store.GetUserByEmail(ctx, input.AuthorEmail)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to resolve author: %w", err)
	}

	post := &model.Post{
		Title:     input.Title,
		Content:   input.Content,
		Published: false,
		AuthorID:  author.ID,
	}
	if err := s.store.CreatePost(ctx, post); err != nil {
		if errors.Is(err, repository.ErrAuthorNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	post.Author = &model.PostAuthor{Name: author.Name, Email: author.Email}

	s.metrics.IncPostCreated()
	return post, nil
}

// Publish marks a post as published. Publishing a published post is a no-op.
func (s *ContentService) Publish(ctx context.Context, principal *model.Principal, postID string) (*model.Post, error) {
	if _, err := s.authorize(ctx, principal, postID); err != nil {
		return nil, err
	}

	if err := s.store.PublishPost(ctx, postID); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to publish post: %w", err)
	}

	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	s.metrics.IncPostPublished()
	return post, nil
}

// DeletePost removes a post in either state and returns it as it was
// before deletion.
func (s *ContentService) DeletePost(ctx context.Context, principal *model.Principal, postID string) (*model.Post, error) {
	post, err := s.authorize(ctx, principal, postID)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeletePost(ctx, postID); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to delete post: %w", err)
	}

	s.metrics.IncPostDeleted()
	return post, nil
}

// GetPost returns a post with its author attached.
// A missing post yields (nil, nil).
func (s *ContentService) GetPost(ctx context.Context, postID string) (*model.Post, error) {
	post, err := s.loadPost(ctx, postID)
	if errors.Is(err, ErrPostNotFound) {
		return nil, nil
	}
	return post, err
}

// ListFeed returns every published post, newest first.
func (s *ContentService) ListFeed(ctx context.Context) ([]*model.Post, error) {
	return s.listPosts(ctx, model.PublishedPosts())
}

// ListDrafts returns the principal's unpublished posts.
// Anonymous callers get an empty list.
func (s *ContentService) ListDrafts(ctx context.Context, principal *model.Principal) ([]*model.Post, error) {
	if principal == nil {
		return []*model.Post{}, nil
	}
	return s.listPosts(ctx, model.DraftsBy(principal.ID))
}

// SearchPosts returns posts whose title or content contains query.
// The match is case-sensitive and includes drafts. An empty query matches everything.
func (s *ContentService) SearchPosts(ctx context.Context, query string) ([]*model.Post, error) {
	if !storableText(query) {
		return nil, &ValidationError{Fields: map[string]string{"search_string": textMessage}}
	}
	return s.listPosts(ctx, model.Matching(query))
}

// ListUsers returns every user ordered by email.
func (s *ContentService) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if users == nil {
		users = []*model.User{}
	}
	return users, nil
}

// authorize loads the post and applies the ownership policy.
func (s *ContentService) authorize(ctx context.Context, principal *model.Principal, postID string) (*model.Post, error) {
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	if !policy.CanMutate(principal, post) {
		s.metrics.IncAuthorizationDenied()
		if principal == nil {
			return nil, ErrUnauthenticated
		}
		return nil, ErrNotOwner
	}

	return post, nil
}

func (s *ContentService) loadPost(ctx context.Context, postID string) (*model.Post, error) {
	// No stored id contains bytes PostgreSQL cannot compare.
	if !storableText(postID) {
		return nil, ErrPostNotFound
	}
	post, err := s.store.GetPostByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

func (s *ContentService) listPosts(ctx context.Context, filter model.PostFilter) ([]*model.Post, error) {
	posts, err := s.store.ListPosts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	if posts == nil {
		posts = []*model.Post{}
	}
	return posts, nil
}
