package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/ports"
)

func sampleArtifact(t *testing.T, links []string) domain.Artifact {
	t.Helper()
	a, err := domain.NewArtifact(domain.ArtifactURLs, links, time.Date(2026, 10, 19, 0, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	return a.WithFailures(1)
}

func exerciseStore(t *testing.T, s ports.PipelineStore) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, domain.KeyArticleURLs)
	require.ErrorIs(t, err, ErrNotFound)

	in := sampleArtifact(t, []string{"https://news.example/a", "https://news.example/b"})
	require.NoError(t, s.Put(ctx, domain.KeyArticleURLs, in))

	out, err := s.Get(ctx, domain.KeyArticleURLs)
	require.NoError(t, err)
	assert.Equal(t, in.Payload, out.Payload, "payload must round-trip byte for byte")
	assert.Equal(t, in.Kind, out.Kind)
	assert.True(t, out.Degraded)
	assert.Equal(t, 1, out.Failures)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))

	// Same key overwrites.
	replaced := sampleArtifact(t, []string{"https://news.example/c"})
	require.NoError(t, s.Put(ctx, domain.KeyArticleURLs, replaced))
	out, err = s.Get(ctx, domain.KeyArticleURLs)
	require.NoError(t, err)
	assert.Equal(t, replaced.Payload, out.Payload)

	for _, k := range []string{"recommendations/final/2", "recommendations/final/1", "recommendations/opinion/1"} {
		a, err := domain.NewArtifact(domain.ArtifactRecommendation, k, time.Now())
		require.NoError(t, err)
		require.NoError(t, s.Put(ctx, k, a))
	}
	listed, err := s.List(ctx, "recommendations/final/")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	var first string
	require.NoError(t, listed[0].Decode(domain.ArtifactRecommendation, &first))
	assert.Equal(t, "recommendations/final/1", first)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	exerciseStore(t, NewMemory())
}

func TestBadgerStore(t *testing.T) {
	t.Parallel()

	s, err := OpenBadger(BadgerOptions{InMemory: true})
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestBadgerStoreSurvivesReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenBadger(BadgerOptions{Path: dir})
	require.NoError(t, err)
	in := sampleArtifact(t, []string{"https://news.example/durable"})
	require.NoError(t, s.Put(ctx, domain.KeyArticleURLs, in))
	require.NoError(t, s.Close())

	s, err = OpenBadger(BadgerOptions{Path: dir})
	require.NoError(t, err)
	defer s.Close()
	out, err := s.Get(ctx, domain.KeyArticleURLs)
	require.NoError(t, err)
	assert.Equal(t, in.Payload, out.Payload)
}

func TestRedisStore(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedis(client, "marketadvisor:")
	defer s.Close()

	exerciseStore(t, s)
	assert.True(t, mr.Exists("marketadvisor:"+domain.KeyArticleURLs))
}

func TestDialRedisFailsWithoutServer(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := DialRedis(ctx, "127.0.0.1:1", "", 0, "")
	require.Error(t, err)
}
