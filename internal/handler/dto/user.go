package dto

import "github.com/inkpost/inkpost/internal/model"

// SignupRequest is the body of POST /api/v1/users.
type SignupRequest struct {
	Name  *string `json:"name,omitempty"`
	Email string  `json:"email"`
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name"`
	Image *string `json:"image"`
}

// ToUserResponse converts a model.User.
func ToUserResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Image: user.Image,
	}
}

// ToUserListResponse converts a list of users. The result is never nil.
func ToUserListResponse(users []*model.User) []*UserResponse {
	out := make([]*UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, ToUserResponse(user))
	}
	return out
}
