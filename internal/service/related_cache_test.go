package service

import (
	"context"
	"testing"

	"inkwell/internal/cache"
	"inkwell/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Not parallel: the cache client is package-global.
func withRelatedCache(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })
	return mr
}

func relatedTitles(t *testing.T, env *testEnv, id string) []string {
	t.Helper()
	related, err := env.posts.RelatedPosts(context.Background(), id)
	require.NoError(t, err)
	titles := make([]string, 0, len(related))
	for _, p := range related {
		titles = append(titles, p.Title)
	}
	return titles
}

func TestRelatedPosts_CacheInvalidation(t *testing.T) {
	mr := withRelatedCache(t)
	env := newTestEnv(t, "")
	ctx := context.Background()
	alice := env.seedUser(t, "Alice", models.RoleAuthor)
	admin := env.seedUser(t, "Root", models.RoleAdmin)

	source := env.seedPost(t, alice, "Source", true, "Tech")
	deleted := env.seedPost(t, alice, "Sibling", true, "Tech")
	unpublished := env.seedPost(t, alice, "Sibling2", true, "Tech")

	assert.ElementsMatch(t, []string{"Sibling", "Sibling2"}, relatedTitles(t, env, source.ID.Hex()))
	assert.True(t, mr.Exists(cache.RelatedPostsKey(source.ID.Hex())))

	// Served from the cache until something invalidates it.
	env.seedPost(t, alice, "Late sibling", true, "Tech")
	assert.ElementsMatch(t, []string{"Sibling", "Sibling2"}, relatedTitles(t, env, source.ID.Hex()))

	t.Run("delete of another post", func(t *testing.T) {
		require.NoError(t, env.posts.DeletePost(ctx, alice, deleted.ID.Hex()))
		assert.False(t, mr.Exists(cache.RelatedPostsKey(source.ID.Hex())))
		assert.ElementsMatch(t, []string{"Sibling2", "Late sibling"}, relatedTitles(t, env, source.ID.Hex()))
	})

	t.Run("unpublish of another post", func(t *testing.T) {
		_, err := env.posts.UpdatePost(ctx, alice, unpublished.ID.Hex(), UpdatePostInput{IsPublished: boolPtr(false)})
		require.NoError(t, err)
		assert.Equal(t, []string{"Late sibling"}, relatedTitles(t, env, source.ID.Hex()))
	})

	t.Run("taxonomy delete", func(t *testing.T) {
		tech := env.store.post(source.ID).Categories[0]
		require.NoError(t, env.categories.Delete(ctx, admin, tech.Hex()))
		assert.Empty(t, relatedTitles(t, env, source.ID.Hex()))
	})
}

func TestRelatedPosts_UserDeleteInvalidates(t *testing.T) {
	mr := withRelatedCache(t)
	env := newTestEnv(t, "")
	ctx := context.Background()
	alice := env.seedUser(t, "Alice", models.RoleAuthor)
	bob := env.seedUser(t, "Bob", models.RoleAuthor)

	source := env.seedPost(t, alice, "Source", true, "Tech")
	env.seedPost(t, bob, "By Bob", true, "Tech")
	assert.Equal(t, []string{"By Bob"}, relatedTitles(t, env, source.ID.Hex()))

	require.NoError(t, env.users.DeleteUser(ctx, bob, bob.ID.Hex()))
	assert.False(t, mr.Exists(cache.RelatedPostsKey(source.ID.Hex())))
	assert.Empty(t, relatedTitles(t, env, source.ID.Hex()))
}
