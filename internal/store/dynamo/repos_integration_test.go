//go:build integration

package dynamo_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/store/dynamo"
	"github.com/uteshop/uteshop-api/internal/testutil/containers"
)

func TestDynamoRepos(t *testing.T) {
	ddb := containers.NewDynamoContainer(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("notifications", func(t *testing.T) {
		repo := dynamo.NewNotificationRepo(ddb.Client.DB)
		for i := 1; i <= 30; i++ {
			require.NoError(t, repo.Create(ctx, core.Notification{
				ID:        fmt.Sprintf("n%02d", i),
				Recipient: "u1",
				Title:     "hello",
				Type:      core.NotifyNormal,
				CreatedAt: now.Add(time.Duration(i) * time.Minute),
			}))
		}
		err := repo.Create(ctx, core.Notification{ID: "n01", Recipient: "u1"})
		assert.ErrorIs(t, err, core.ErrConflict)

		page, total, err := repo.List(ctx, "u1", false, core.Page{Page: 2, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(30), total)
		require.Len(t, page, 10)
		assert.Equal(t, "n20", page[0].ID)

		assert.ErrorIs(t, repo.MarkRead(ctx, "u2", "n01"), core.ErrNotificationNotFound)
		require.NoError(t, repo.MarkRead(ctx, "u1", "n01"))

		unread, err := repo.CountUnread(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(29), unread)

		marked, err := repo.MarkAllRead(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(29), marked)

		deleted, err := repo.DeleteRead(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(30), deleted)

		_, total, err = repo.List(ctx, "u1", false, core.Page{Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("viewed products", func(t *testing.T) {
		repo := dynamo.NewViewedRepo(ddb.Client.DB)
		require.NoError(t, repo.Record(ctx, "u1", "p1", now))
		require.NoError(t, repo.Record(ctx, "u1", "p2", now.Add(time.Minute)))
		require.NoError(t, repo.Record(ctx, "u1", "p1", now.Add(2*time.Minute)))
		require.NoError(t, repo.Record(ctx, "u2", "p3", now))

		views, err := repo.List(ctx, "u1", 20)
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, "p1", views[0].ProductID)
		assert.True(t, views[0].ViewedAt.Equal(now.Add(2*time.Minute)))

		require.NoError(t, repo.Remove(ctx, "u1", "p1"))
		require.NoError(t, repo.Clear(ctx, "u1"))
		views, err = repo.List(ctx, "u1", 0)
		require.NoError(t, err)
		assert.Empty(t, views)

		other, err := repo.List(ctx, "u2", 20)
		require.NoError(t, err)
		assert.Len(t, other, 1)
	})
}
