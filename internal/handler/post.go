package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkpost/inkpost/internal/auth"
	"github.com/inkpost/inkpost/internal/handler/dto"
	"github.com/inkpost/inkpost/internal/service"
)

// CreateDraft handles POST /api/v1/posts.
func (h *ContentHandler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateDraftRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	principal := auth.PrincipalFromContext(r.Context())
	post, err := h.service.CreateDraft(r.Context(), principal, service.CreateDraftInput{
		Title:       req.Title,
		Content:     req.Content,
		AuthorEmail: req.AuthorEmail,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("post_created",
		"post_id", post.ID,
		"author_id", post.AuthorID,
	)

	writeData(w, http.StatusCreated, dto.ToPostResponse(post))
}

// GetPost handles GET /api/v1/posts/{postId}.
// A missing post yields {"data": null} rather than 404.
func (h *ContentHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.GetPost(r.Context(), chi.URLParam(r, "postId"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, dto.ToPostResponse(post))
}

// Publish handles PUT /api/v1/posts/{postId}/publish.
func (h *ContentHandler) Publish(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	post, err := h.service.Publish(r.Context(), principal, chi.URLParam(r, "postId"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("post_published",
		"post_id", post.ID,
		"user_id", principal.ID,
	)

	writeData(w, http.StatusOK, dto.ToPostResponse(post))
}

// DeletePost handles DELETE /api/v1/posts/{postId}.
// The response carries the post as it was before deletion.
func (h *ContentHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	post, err := h.service.DeletePost(r.Context(), principal, chi.URLParam(r, "postId"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("post_deleted",
		"post_id", post.ID,
		"user_id", principal.ID,
	)

	writeData(w, http.StatusOK, dto.ToPostResponse(post))
}

// Feed handles GET /api/v1/feed.
func (h *ContentHandler) Feed(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListFeed(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, dto.ToPostListResponse(posts))
}

// Drafts handles GET /api/v1/drafts. Anonymous callers get an empty list.
func (h *ContentHandler) Drafts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListDrafts(r.Context(), auth.PrincipalFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, dto.ToPostListResponse(posts))
}

// SearchPosts handles GET /api/v1/posts?search_string=.
func (h *ContentHandler) SearchPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.SearchPosts(r.Context(), r.URL.Query().Get("search_string"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, dto.ToPostListResponse(posts))
}
