package handler

import (
	"net/http"

	"github.com/inkpost/inkpost/internal/handler/dto"
	"github.com/inkpost/inkpost/internal/service"
)

// Signup handles POST /api/v1/users.
func (h *ContentHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.Signup(r.Context(), service.SignupInput{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("user_signed_up", "user_id", user.ID)

	writeData(w, http.StatusCreated, dto.ToUserResponse(user))
}

// ListUsers handles GET /api/v1/users.
func (h *ContentHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, dto.ToUserListResponse(users))
}
