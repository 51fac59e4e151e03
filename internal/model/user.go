// Package model defines domain entities for the application.
package model

import "time"

// User is an author account. Email is the stable external identity.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	Image     *string   `json:"image"`
	CreatedAt time.Time `json:"-"`
}

// Principal is the resolved identity of a caller.
// A nil *Principal means the call is anonymous.
type Principal struct {
	ID    string
	Email string
	Name  *string
	Image *string
}

// PrincipalFromUser builds a Principal for an authenticated user.
func PrincipalFromUser(u *User) *Principal {
	if u == nil {
		return nil
	}
	return &Principal{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Image: u.Image,
	}
}
