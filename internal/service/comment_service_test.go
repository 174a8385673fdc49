package service

import (
	"context"
	"strings"
	"testing"

	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentService_UpdateComment(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")
	ctx := context.Background()
	alice := env.seedUser(t, "Alice", models.RoleAuthor)
	bob := env.seedUser(t, "Bob", models.RoleAuthor)
	admin := env.seedUser(t, "Root", models.RoleAdmin)
	post := env.seedPost(t, alice, "Post", true)

	comment, err := env.posts.AddComment(ctx, bob, post.ID.Hex(), "original")
	require.NoError(t, err)

	tests := []struct {
		name    string
		actor   *models.Actor
		content string
		code    string
	}{
		{"post author is not the comment owner", alice, "edited", models.CodeForbidden},
		{"anonymous", nil, "edited", models.CodeUnauthenticated},
		{"blank content", bob, "  ", models.CodeValidation},
		{"too long", bob, strings.Repeat("x", models.MaxCommentLength+1), models.CodeValidation},
	}
	for _, tt := range tests {
		_, err := env.comments.UpdateComment(ctx, tt.actor, comment.ID.Hex(), UpdateCommentInput{Content: tt.content})
		assertCode(t, err, tt.code)
	}

	updated, err := env.comments.UpdateComment(ctx, bob, comment.ID.Hex(), UpdateCommentInput{Content: " edited "})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)
	require.NotNil(t, updated.User)
	assert.Equal(t, "Bob", updated.User.Name)

	moderated, err := env.comments.UpdateComment(ctx, admin, comment.ID.Hex(), UpdateCommentInput{Content: "[removed]"})
	require.NoError(t, err)
	assert.Equal(t, "[removed]", moderated.Content)
}

func TestCommentService_DeleteComment_Authorization(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")
	ctx := context.Background()
	alice := env.seedUser(t, "Alice", models.RoleAuthor)
	bob := env.seedUser(t, "Bob", models.RoleAuthor)
	admin := env.seedUser(t, "Root", models.RoleAdmin)
	post := env.seedPost(t, alice, "Post", true)

	comment, err := env.posts.AddComment(ctx, bob, post.ID.Hex(), "hello")
	require.NoError(t, err)

	assertCode(t, env.comments.DeleteComment(ctx, alice, comment.ID.Hex()), models.CodeForbidden)
	assertCode(t, env.comments.DeleteComment(ctx, admin, "zzz"), models.CodeInvalidID)
	require.NoError(t, env.comments.DeleteComment(ctx, admin, comment.ID.Hex()))
	assertCode(t, env.comments.DeleteComment(ctx, admin, comment.ID.Hex()), models.CodeNotFound)
}

func TestCommentService_ListAll(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")
	ctx := context.Background()
	alice := env.seedUser(t, "Alice", models.RoleAuthor)
	admin := env.seedUser(t, "Root", models.RoleAdmin)
	live := env.seedPost(t, alice, "Live", true)
	draft := env.seedPost(t, alice, "Draft", false)

	_, err := env.posts.AddComment(ctx, alice, live.ID.Hex(), "older")
	require.NoError(t, err)
	_, err = env.posts.AddComment(ctx, alice, draft.ID.Hex(), "on a draft")
	require.NoError(t, err)
	_, err = env.posts.AddComment(ctx, alice, live.ID.Hex(), "newer")
	require.NoError(t, err)

	_, err = env.comments.ListAll(ctx, alice)
	assertCode(t, err, models.CodeForbidden)

	all, err := env.comments.ListAll(ctx, admin)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "newer", all[0].Content)
	assert.Equal(t, "older", all[1].Content)
	assert.Equal(t, "Live", all[0].PostTitle)
}
