package dto

import (
	"time"

	"github.com/inkpost/inkpost/internal/model"
)

// CreateDraftRequest is the body of POST /api/v1/posts.
// AuthorEmail defaults to the caller's email when omitted.
type CreateDraftRequest struct {
	Title       string  `json:"title"`
	Content     *string `json:"content,omitempty"`
	AuthorEmail string  `json:"author_email,omitempty"`
}

// PostResponse represents a post in API responses.
type PostResponse struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	Content   *string             `json:"content"`
	Published bool                `json:"published"`
	CreatedAt time.Time           `json:"created_at"`
	AuthorID  string              `json:"author_id"`
	Author    *PostAuthorResponse `json:"author"`
}

// PostAuthorResponse is the author view attached to a post.
type PostAuthorResponse struct {
	Name  *string `json:"name"`
	Email string  `json:"email"`
}

// ToPostResponse converts a model.Post. A nil post yields nil.
func ToPostResponse(post *model.Post) *PostResponse {
	if post == nil {
		return nil
	}

	resp := &PostResponse{
		ID:        post.ID,
		Title:     post.Title,
		Content:   post.Content,
		Published: post.Published,
		CreatedAt: post.CreatedAt,
		AuthorID:  post.AuthorID,
	}
	if post.Author != nil {
		resp.Author = &PostAuthorResponse{Name: post.Author.Name, Email: post.Author.Email}
	}
	return resp
}

// ToPostListResponse converts a list of posts. The result is never nil.
func ToPostListResponse(posts []*model.Post) []*PostResponse {
	out := make([]*PostResponse, 0, len(posts))
	for _, post := range posts {
		out = append(out, ToPostResponse(post))
	}
	return out
}
