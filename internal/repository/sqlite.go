package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/inkpost/inkpost/internal/model"
	"github.com/inkpost/inkpost/migrations"
)

// SQLite implements the storage contract on an embedded SQLite database.
// Intended for local development and tests.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if _, err := db.ExecContext(ctx, migrations.SQLiteSchema()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Ping checks database connectivity.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLite) Close() {
	_ = s.db.Close()
}

// CreateUser inserts a new user.
func (s *SQLite) CreateUser(ctx context.Context, user *model.User) error {
	assignUserDefaults(user)

	query := `INSERT INTO users (id, email, name, image, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query, user.ID, user.Email, user.Name, user.Image, user.CreatedAt)
	if err != nil {
		if isSQLiteConstraint(err, sqlite3.ErrConstraintUnique) || isSQLiteConstraint(err, sqlite3.ErrConstraintPrimaryKey) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by their ID.
func (s *SQLite) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT id, email, name, image, created_at FROM users WHERE id = ?`
	return s.getUser(ctx, query, id)
}

// GetUserByEmail retrieves a user by their email address.
func (s *SQLite) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT id, email, name, image, created_at FROM users WHERE email = ?`
	return s.getUser(ctx, query, email)
}

func (s *SQLite) getUser(ctx context.Context, query string, arg string) (*model.User, error) {
	user, err := scanSQLiteUser(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetOrCreateUser gets a user by email or creates one if not found.
func (s *SQLite) GetOrCreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	existing, err := s.GetUserByEmail(ctx, user.Email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	if err := s.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return s.GetUserByEmail(ctx, user.Email)
		}
		return nil, err
	}

	return user, nil
}

// ListUsers returns every user ordered by email.
func (s *SQLite) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, email, name, image, created_at FROM users ORDER BY email ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*model.User, 0)
	for rows.Next() {
		user, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// CreatePost inserts a new post.
func (s *SQLite) CreatePost(ctx context.Context, post *model.Post) error {
	assignPostDefaults(post)

	query := `
		INSERT INTO posts (id, title, content, published, created_at, author_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		post.ID,
		post.Title,
		post.Content,
		post.Published,
		post.CreatedAt,
		post.AuthorID,
	)
	if err != nil {
		if isSQLiteConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return ErrAuthorNotFound
		}
		return fmt.Errorf("failed to create post: %w", err)
	}

	return nil
}

// GetPostByID retrieves a post by its ID with the author attached.
func (s *SQLite) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	post, err := scanSQLitePost(s.db.QueryRowContext(ctx, postColumns+` WHERE p.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to get post by ID: %w", err)
	}
	return post, nil
}

// PublishPost sets the published flag. Publishing twice is a no-op.
func (s *SQLite) PublishPost(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE posts SET published = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to publish post: %w", err)
	}
	return requireAffected(result, ErrPostNotFound)
}

// DeletePost permanently removes a post.
func (s *SQLite) DeletePost(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return requireAffected(result, ErrPostNotFound)
}

// ListPosts retrieves posts matching filter, newest first.
func (s *SQLite) ListPosts(ctx context.Context, filter model.PostFilter) ([]*model.Post, error) {
	query := postColumns + ` WHERE 1 = 1`
	args := []any{}

	if filter.Published != nil {
		query += " AND p.published = ?"
		args = append(args, *filter.Published)
	}

	if filter.AuthorID != "" {
		query += " AND p.author_id = ?"
		args = append(args, filter.AuthorID)
	}

	if filter.Search != nil {
		// instr is case-sensitive, unlike LIKE.
		query += " AND (instr(p.title, ?) > 0 OR instr(COALESCE(p.content, ''), ?) > 0)"
		args = append(args, *filter.Search, *filter.Search)
	}

	query += " ORDER BY p.created_at DESC, p.id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]*model.Post, 0)
	for rows.Next() {
		post, err := scanSQLitePost(rows)
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

// CreateAPIKey inserts a new API key.
func (s *SQLite) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	if key.ID == "" {
		key.ID = newID()
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = now()
	}

	query := `
		INSERT INTO api_keys (id, user_id, key_hash, key_prefix, name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query, key.ID, key.UserID, key.KeyHash, key.KeyPrefix, key.Name, key.CreatedAt)
	if err != nil {
		if isSQLiteConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create API key: %w", err)
	}

	return nil
}

// GetAPIKeysByPrefix retrieves all active API keys matching a prefix.
func (s *SQLite) GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error) {
	query := `
		SELECT id, user_id, key_hash, key_prefix, name, revoked_at, last_used_at, created_at
		FROM api_keys
		WHERE key_prefix = ? AND revoked_at IS NULL
	`

	rows, err := s.db.QueryContext(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get API keys by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*model.APIKey
	for rows.Next() {
		var key model.APIKey
		if err := rows.Scan(
			&key.ID,
			&key.UserID,
			&key.KeyHash,
			&key.KeyPrefix,
			&key.Name,
			&key.RevokedAt,
			&key.LastUsedAt,
			&key.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan API key: %w", err)
		}
		keys = append(keys, &key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating API keys: %w", err)
	}

	return keys, nil
}

// UpdateAPIKeyLastUsed records that a key was just used.
func (s *SQLite) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = ? WHERE id = ?`, now(), id); err != nil {
		return fmt.Errorf("failed to update API key last used: %w", err)
	}
	return nil
}

// RevokeAPIKey marks a key as revoked.
func (s *SQLite) RevokeAPIKey(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`, now(), id)
	if err != nil {
		return fmt.Errorf("failed to revoke API key: %w", err)
	}
	return requireAffected(result, ErrAPIKeyNotFound)
}

// scanSQLiteUser scans a single row into a User model.
func scanSQLiteUser(row interface{ Scan(dest ...any) error }) (*model.User, error) {
	var user model.User
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Image, &user.CreatedAt); err != nil {
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

// scanSQLitePost scans a joined row into a Post model.
func scanSQLitePost(row interface{ Scan(dest ...any) error }) (*model.Post, error) {
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

// requireAffected returns notFound when the statement touched no rows.
func requireAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

// isSQLiteConstraint checks for a specific SQLite constraint violation.
func isSQLiteConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == code
}
