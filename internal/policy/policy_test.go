package policy

import (
	"testing"

	"github.com/inkpost/inkpost/internal/model"
)

func TestCanMutate(t *testing.T) {
	alicePost := &model.Post{
		ID:       "p1",
		AuthorID: "u-alice",
		Author:   &model.PostAuthor{Email: "alice@example.com"},
	}
	orphan := &model.Post{ID: "p2", AuthorID: "u-gone"}

	testCases := []struct {
		name      string
		principal *model.Principal
		post      *model.Post
		want      bool
	}{
		{
			name:      "owner",
			principal: &model.Principal{ID: "u-alice", Email: "alice@example.com"},
			post:      alicePost,
			want:      true,
		},
		{
			name:      "other user",
			principal: &model.Principal{ID: "u-bob", Email: "bob@example.com"},
			post:      alicePost,
			want:      false,
		},
		{
			name:      "anonymous",
			principal: nil,
			post:      alicePost,
			want:      false,
		},
		{
			name:      "post without author view",
			principal: &model.Principal{ID: "u-alice", Email: "alice@example.com"},
			post:      orphan,
			want:      false,
		},
		{
			name:      "principal without email",
			principal: &model.Principal{ID: "u-alice"},
			post:      &model.Post{ID: "p3", Author: &model.PostAuthor{Email: ""}},
			want:      false,
		},
		{
			name:      "nil post",
			principal: &model.Principal{ID: "u-alice", Email: "alice@example.com"},
			post:      nil,
			want:      false,
		},
		{
			name:      "email match is exact",
			principal: &model.Principal{ID: "u-alice", Email: "Alice@example.com"},
			post:      alicePost,
			want:      false,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := CanMutate(tc.principal, tc.post); got != tc.want {
				t.Errorf("CanMutate() = %v, want %v", got, tc.want)
			}
		})
	}
}
