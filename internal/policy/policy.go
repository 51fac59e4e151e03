// Package policy holds the authorization rules for post mutations.
package policy

import "github.com/inkpost/inkpost/internal/model"

// CanMutate reports whether principal may publish or delete post.
// Only the post's owner may mutate it; anonymous callers never may.
// A post without an attached author view is never mutable.
func CanMutate(principal *model.Principal, post *model.Post) bool {
	if principal == nil || post == nil || principal.Email == "" {
		return false
	}
	owner := post.OwnerEmail()
	return owner != "" && principal.Email == owner
}
