package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/inkpost/inkpost/internal/model"
)

// postColumns selects a post joined with its author's public fields.
// The join is LEFT so a missing author surfaces as a nil author view.
const postColumns = `
		SELECT p.id, p.title, p.content, p.published, p.created_at, p.author_id, u.name, u.email
		FROM posts p
		LEFT JOIN users u ON u.id = p.author_id
`

// CreatePost inserts a new post into the database.
// The ID and creation time are assigned here when unset.
func (r *Repository) CreatePost(ctx context.Context, post *model.Post) error {
	assignPostDefaults(post)

	query := `
		INSERT INTO posts (id, title, content, published, created_at, author_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		post.ID,
		post.Title,
		post.Content,
		post.Published,
		post.CreatedAt,
		post.AuthorID,
	)

	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrAuthorNotFound
		}
		return fmt.Errorf("failed to create post: %w", err)
	}

	return nil
}

// GetPostByID retrieves a post by its ID with the author attached.
func (r *Repository) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	query := postColumns + ` WHERE p.id = $1`

	post, err := scanPost(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to get post by ID: %w", err)
	}

	return post, nil
}

// PublishPost sets the published flag. Publishing twice is a no-op.
func (r *Repository) PublishPost(ctx context.Context, id string) error {
	query := `
		UPDATE posts
		SET published = TRUE
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to publish post: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrPostNotFound
	}

	return nil
}

// DeletePost permanently removes a post.
func (r *Repository) DeletePost(ctx context.Context, id string) error {
	query := `DELETE FROM posts WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrPostNotFound
	}

	return nil
}

// ListPosts retrieves posts matching filter, newest first.
func (r *Repository) ListPosts(ctx context.Context, filter model.PostFilter) ([]*model.Post, error) {
	query := postColumns + ` WHERE TRUE`
	args := []any{}

	if filter.Published != nil {
		args = append(args, *filter.Published)
		query += fmt.Sprintf(" AND p.published = $%d", len(args))
	}

	if filter.AuthorID != "" {
		args = append(args, filter.AuthorID)
		query += fmt.Sprintf(" AND p.author_id = $%d", len(args))
	}

	if filter.Search != nil {
		args = append(args, *filter.Search)
		n := len(args)
		query += fmt.Sprintf(" AND (strpos(p.title, $%d) > 0 OR strpos(COALESCE(p.content, ''), $%d) > 0)", n, n)
	}

	query += " ORDER BY p.created_at DESC, p.id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]*model.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}

	return posts, nil
}

// scanPost scans a joined row into a Post model.
func scanPost(row pgx.Row) (*model.Post, error) {
	var (
		post        model.Post
		authorName  *string
		authorEmail *string
	)
	err := row.Scan(
		&post.ID,
		&post.Title,
		&post.Content,
		&post.Published,
		&post.CreatedAt,
		&post.AuthorID,
		&authorName,
		&authorEmail,
	)
	if err != nil {
		return nil, err
	}

	post.CreatedAt = post.CreatedAt.UTC()
	attachAuthor(&post, authorName, authorEmail)
	return &post, nil
}
