package model

import "time"

// Post is a piece of authored content.
//
// Author is the joined view of the owning user. It is optional so that reads
// tolerate a missing author row instead of dereferencing nil.
type Post struct {
	ID        string
	Title     string
	Content   *string
	Published bool
	CreatedAt time.Time
	AuthorID  string
	Author    *PostAuthor
}

// PostAuthor is the public author view attached to query results.
type PostAuthor struct {
	Name  *string
	Email string
}

// OwnerEmail returns the email of the attached author, or "" if none is attached.
func (p *Post) OwnerEmail() string {
	if p.Author == nil {
		return ""
	}
	return p.Author.Email
}

// PostFilter selects posts for listing. Zero-valued fields are not applied.
type PostFilter struct {
	Published *bool
	AuthorID  string
	// Search matches posts whose title or content contains the string.
	Search *string
}

// PublishedPosts selects the public feed.
func PublishedPosts() PostFilter {
	published := true
	return PostFilter{Published: &published}
}

// DraftsBy selects the unpublished posts of one author.
func DraftsBy(authorID string) PostFilter {
	published := false
	return PostFilter{Published: &published, AuthorID: authorID}
}

// Matching selects posts whose title or content contains query.
// An empty query selects every post.
func Matching(query string) PostFilter {
	if query == "" {
		return PostFilter{}
	}
	return PostFilter{Search: &query}
}
