package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inkwell/internal/observability"
)

const (
	RelatedPostsKeyPrefix = "post:%s:related"
	TaxonomyListKeyPrefix = "taxonomy:%s:list"
	RevokedTokenPrefix    = "blacklist:%s"

	relatedPostsPattern = "post:*:related"
	scanBatch           = 100
)

const (
	RelatedPostsTTL = 5 * time.Minute
	TaxonomyListTTL = 10 * time.Minute
)

func RelatedPostsKey(postID string) string {
	return fmt.Sprintf(RelatedPostsKeyPrefix, postID)
}

// TaxonomyListKey is keyed by kind ("category" or "tag").
func TaxonomyListKey(kind string) string {
	return fmt.Sprintf(TaxonomyListKeyPrefix, strings.ToLower(kind))
}

func RevokedTokenKey(jti string) string {
	return fmt.Sprintf(RevokedTokenPrefix, jti)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidateAllRelatedPosts drops every cached related-posts list. Any post
// can appear in another post's list, so a delete, an unpublish or a taxonomy
// change makes all of them suspect.
func InvalidateAllRelatedPosts(ctx context.Context) {
	if client == nil {
		return
	}
	ctx, span := observability.GetTraceLayer().TraceRedisOperation(ctx, "invalidate_related")
	defer span.End()

	var keys []string
	iter := client.Scan(ctx, 0, relatedPostsPattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == scanBatch {
			client.Del(ctx, keys...)
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		observability.GlobalLogger.WarnContext(ctx, "related posts invalidation incomplete", "error", err.Error())
	}
	if len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateTaxonomy(ctx context.Context, kind string) {
	Invalidate(ctx, TaxonomyListKey(kind))
}

// RevokeToken blacklists a token id until the token would have expired anyway.
func RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if client == nil || jti == "" {
		return nil
	}
	if ttl <= 0 {
		return nil
	}
	ctx, span := observability.GetTraceLayer().TraceRedisOperation(ctx, "revoke_token")
	defer span.End()
	err := client.Set(ctx, RevokedTokenKey(jti), "1", ttl).Err()
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// IsTokenRevoked reports whether the token id has been blacklisted.
// Without Redis nothing is ever revoked.
func IsTokenRevoked(ctx context.Context, jti string) bool {
	if client == nil || jti == "" {
		return false
	}
	ctx, span := observability.GetTraceLayer().TraceRedisOperation(ctx, "is_token_revoked")
	defer span.End()
	n, err := client.Exists(ctx, RevokedTokenKey(jti)).Result()
	if err != nil {
		span.RecordError(err)
	}
	return err == nil && n > 0
}
