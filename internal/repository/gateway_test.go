package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/inkpost/inkpost/internal/model"
	"github.com/inkpost/inkpost/internal/testutil"
)

// runGatewayContract exercises the storage contract against one engine.
func runGatewayContract(t *testing.T, newGateway func(t *testing.T) Gateway) {
	t.Run("CreateUserAssignsIDAndRejectsDuplicateEmail", func(t *testing.T) {
		ctx := context.Background()
		gw := newGateway(t)

		user := testutil.NewTestUser(t, "alice")
		if err := gw.CreateUser(ctx, user); err != nil {
			t.Fatalf("create user: %v", err)
		}
		if user.ID == "" {
			t.Fatal("expected gateway to assign user ID")
		}
		if user.CreatedAt.IsZero() {
			t.Fatal("expected gateway to assign created_at")
		}

		dup := &model.User{Email: user.Email}
		if err := gw.CreateUser(ctx, dup); !errors.Is(err, ErrEmailExists) {
			t.Fatalf("expected ErrEmailExists, got %v", err)
		}

		users, err := gw.ListUsers(ctx)
		if err != nil {
			t.Fatalf("list users: %v", err)
		}
		if len(users) != 1 {
			t.Fatalf("expected 1 user, got %d", len(users))
		}
	})

	t.Run("UserLookups", func(t *testing.T) {
		ctx := context.Background()
		gw := newGateway(t)

		user := testutil.NewTestUser(t, "bob")
		if err := gw.CreateUser(ctx, user); err != nil {
			t.Fatalf("create user: %v", err)
		}

		byEmail, err := gw.GetUserByEmail(ctx, user.Email)
		if err != nil {
			t.Fatalf("get by email: %v", err)
		}
		if byEmail.ID != user.ID {
			t.Errorf("get by email returned ID %s, want %s", byEmail.ID, user.ID)
		}
		if byEmail.Name == nil || *byEmail.Name != "bob" {
			t.Errorf("expected name bob, got %v", byEmail.Name)
		}

		byID, err := gw.GetUserByID(ctx, user.ID)
		if err != nil {
			t.Fatalf("get by ID: %v", err)
		}
		if byID.Email != user.Email {
			t.Errorf("get by ID returned email %s, want %s", byID.Email, user.Email)
		}

		if _, err := gw.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
		if _, err := gw.GetUserByID(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("GetOrCreateUserIsIdempotent", func(t *testing.T) {
		ctx := context.Background()
		gw := newGateway(t)

		email := testutil.UniqueEmail("carol")
		first, err := gw.GetOrCreateUser(ctx, &model.User{Email: email})
		if err != nil {
			t.Fatalf("first get-or-create: %v", err)
		}
		second, err := gw.GetOrCreateUser(ctx, &model.User{Email: email})
		if err != nil {
			t.Fatalf("second get-or-create: %v", err)
		}
		if first.ID != second.ID {
			t.Errorf("expected same user, got %s and %s", first.ID, second.ID)
		}
	})

	t.Run("PostLifecycle", func(t *testing.T) {
		ctx := context.Background()
		gw := newGateway(t)
		author := mustCreateUser(t, gw, "dave")

		post := testutil.NewTestPost(t, author.ID, "First")
		if err := gw.CreatePost(ctx, post); err != nil {
			t.Fatalf("create post: %v", err)
		}
		if post.ID == "" || post.CreatedAt.IsZero() {
			t.Fatal("expected gateway to assign ID and created_at")
		}

		loaded, err := gw.GetPostByID(ctx, post.ID)
		if err != nil {
			t.Fatalf("get post: %v", err)
		}
		if loaded.Published {
			t.Error("expected new post to be unpublished")
		}
		if loaded.Author == nil || loaded.Author.Email != author.Email {
			t.Fatalf("expected author %s attached, got %+v", author.Email, loaded.Author)
		}
		if !loaded.CreatedAt.Equal(post.CreatedAt) {
			t.Errorf("created_at changed on read: %v vs %v", post.CreatedAt, loaded.CreatedAt)
		}

		if err := gw.PublishPost(ctx, post.ID); err != nil {
			t.Fatalf("publish: %v", err)
		}
		if err := gw.PublishPost(ctx, post.ID); err != nil {
			t.Fatalf("second publish: %v", err)
		}

		published, err := gw.GetPostByID(ctx, post.ID)
		if err != nil {
			t.Fatalf("get published post: %v", err)
		}
		if !published.Published {
			t.Error("expected post to be published")
		}
		if !published.CreatedAt.Equal(post.CreatedAt) {
			t.Errorf("created_at changed on publish: %v vs %v", post.CreatedAt, published.CreatedAt)
		}

		if err := gw.DeletePost(ctx, post.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := gw.GetPostByID(ctx, post.ID); !errors.Is(err, ErrPostNotFound) {
			t.Errorf("expected ErrPostNotFound after delete, got %v", err)
		}
		if err := gw.DeletePost(ctx, post.ID); !errors.Is(err, ErrPostNotFound) {
			t.Errorf("expected ErrPostNotFound on second delete, got %v", err)
		}
		if err := gw.PublishPost(ctx, post.ID); !errors.Is(err, ErrPostNotFound) {
			t.Errorf("expected ErrPostNotFound publishing deleted post, got %v", err)
		}
	})

	t.Run("CreatePostRequiresAuthor", func(t *testing.T) {
		ctx := context.Background()
		gw := newGateway(t)

		post := testutil.NewTestPost(t, "no-such-user", "Orphan")
		if err := gw.CreatePost(ctx, post); !errors.Is(err, ErrAuthorNotFound) {
			t.Fatalf("expected ErrAuthorNotFound, got %v", err)
		}
	})

	t.Run("ListPostsFilters", func(t *testing.T) {
		ctx := context.Background()
		gw := newGateway(t)
		alice := mustCreateUser(t, gw, "alice")
		bob := mustCreateUser(t, gw, "bob")

		aliceDraft := mustCreatePost(t, gw, alice.ID, "Alice draft", "about Go")
		alicePub := mustCreatePost(t, gw, alice.ID, "Alice published", "about Rust")
		bobDraft := mustCreatePost(t, gw, bob.ID, "Bob draft", "nothing")
		bobPub := mustCreatePost(t, gw, bob.ID, "Go tips", "")

		for _, id := range []string{alicePub.ID, bobPub.ID} {
			if err := gw.PublishPost(ctx, id); err != nil {
				t.Fatalf("publish %s: %v", id, err)
			}
		}

		feed, err := gw.ListPosts(ctx, model.PublishedPosts())
		if err != nil {
			t.Fatalf("list feed: %v", err)
		}
		assertPostIDs(t, "feed", feed, bobPub.ID, alicePub.ID)

		drafts, err := gw.ListPosts(ctx, model.DraftsBy(alice.ID))
		if err != nil {
			t.Fatalf("list drafts: %v", err)
		}
		assertPostIDs(t, "alice drafts", drafts, aliceDraft.ID)

		bobDrafts, err := gw.ListPosts(ctx, model.DraftsBy(bob.ID))
		if err != nil {
			t.Fatalf("list bob drafts: %v", err)
		}
		assertPostIDs(t, "bob drafts", bobDrafts, bobDraft.ID)

		search, err := gw.ListPosts(ctx, model.Matching("Go"))
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		assertPostIDs(t, "search Go", search, bobPub.ID, aliceDraft.ID)

		lower, err := gw.ListPosts(ctx, model.Matching("go"))
		if err != nil {
			t.Fatalf("search lower: %v", err)
		}
		assertPostIDs(t, "search go", lower)

		all, err := gw.ListPosts(ctx, model.Matching(""))
		if err != nil {
			t.Fatalf("search all: %v", err)
		}
		assertPostIDs(t, "search empty", all, bobPub.ID, bobDraft.ID, alicePub.ID, aliceDraft.ID)

		for _, p := range all {
			if p.Author == nil {
				t.Errorf("post %s has no author attached", p.ID)
			}
		}
	})

	t.Run("APIKeys", func(t *testing.T) {
		ctx := context.Background()
		gw := newGateway(t)
		owner := mustCreateUser(t, gw, "erin")

		key := &model.APIKey{
			UserID:    owner.ID,
			KeyHash:   "hash",
			KeyPrefix: "abc123",
			Name:      "laptop",
		}
		if err := gw.CreateAPIKey(ctx, key); err != nil {
			t.Fatalf("create key: %v", err)
		}

		keys, err := gw.GetAPIKeysByPrefix(ctx, "abc123")
		if err != nil {
			t.Fatalf("get by prefix: %v", err)
		}
		if len(keys) != 1 || keys[0].UserID != owner.ID {
			t.Fatalf("expected one key for %s, got %+v", owner.ID, keys)
		}

		if err := gw.UpdateAPIKeyLastUsed(ctx, key.ID); err != nil {
			t.Fatalf("update last used: %v", err)
		}

		if err := gw.RevokeAPIKey(ctx, key.ID); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		if err := gw.RevokeAPIKey(ctx, key.ID); !errors.Is(err, ErrAPIKeyNotFound) {
			t.Errorf("expected ErrAPIKeyNotFound on second revoke, got %v", err)
		}

		keys, err = gw.GetAPIKeysByPrefix(ctx, "abc123")
		if err != nil {
			t.Fatalf("get by prefix after revoke: %v", err)
		}
		if len(keys) != 0 {
			t.Errorf("expected revoked key to be excluded, got %d", len(keys))
		}
	})
}

func mustCreateUser(t *testing.T, gw Gateway, prefix string) *model.User {
	t.Helper()
	user := testutil.NewTestUser(t, prefix)
	if err := gw.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", prefix, err)
	}
	return user
}

func mustCreatePost(t *testing.T, gw Gateway, authorID, title, content string) *model.Post {
	t.Helper()
	post := &model.Post{Title: title, AuthorID: authorID}
	if content != "" {
		post.Content = &content
	}
	if err := gw.CreatePost(context.Background(), post); err != nil {
		t.Fatalf("create post %s: %v", title, err)
	}
	return post
}

func assertPostIDs(t *testing.T, label string, posts []*model.Post, want ...string) {
	t.Helper()
	if len(posts) != len(want) {
		got := make([]string, len(posts))
		for i, p := range posts {
			got[i] = p.Title
		}
		t.Fatalf("%s: expected %d posts, got %d (%v)", label, len(want), len(posts), got)
	}
	for i, p := range posts {
		if p.ID != want[i] {
			t.Errorf("%s: position %d is %s (%s), want %s", label, i, p.ID, p.Title, want[i])
		}
	}
}
