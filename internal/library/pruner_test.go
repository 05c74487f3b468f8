package library

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPruner_Prune(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	store.now = func() time.Time { return now.Add(-3 * time.Hour) }
	old, err := store.AddBook(ctx, "Old", []ChapterInput{{Content: "a"}})
	require.NoError(t, err)
	store.now = func() time.Time { return now }
	_, err = store.AddBook(ctx, "Fresh", []ChapterInput{{Content: "b"}})
	require.NoError(t, err)

	var mu sync.Mutex
	var forgotten []string
	p := NewPruner(store, time.Hour, cron.New(), func(id string) {
		mu.Lock()
		forgotten = append(forgotten, id)
		mu.Unlock()
	})
	p.now = func() time.Time { return now }

	n, err := p.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{old.ID}, forgotten)

	n, err = p.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPruner_Schedule(t *testing.T) {
	c := cron.New()
	p := NewPruner(NewMemoryStore(), time.Hour, c, nil)

	require.NoError(t, p.Schedule(context.Background(), "@every 1h"))
	assert.Len(t, c.Entries(), 1)

	assert.Error(t, p.Schedule(context.Background(), "not a cron"))
	assert.Len(t, c.Entries(), 1)
}
