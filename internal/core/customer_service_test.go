package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uteshop/uteshop-api/internal/core"
)

func TestCustomerService(t *testing.T) {
	h := newHarness(t)
	svc := core.NewCustomerService(h.store.Users, h.store.Orders, h.opts()...)
	an := h.customer("Nguyễn An", 0)
	h.customer("Trần Bình", 0)
	p := h.product("ao", 100_000, 10)
	h.deliveredOrder(an, p, 2)

	admin := core.User{ID: "admin-1", Name: "Admin", Email: "admin@uteshop.vn", Role: core.RoleAdmin, IsActive: true, CreatedAt: h.now}
	require.NoError(t, h.store.Users.Create(h.ctx, admin))

	t.Run("list summarizes spend", func(t *testing.T) {
		res, err := svc.List(h.ctx, "nguyen", core.Page{})
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		assert.Equal(t, an.ID, res.Items[0].ID)
		assert.EqualValues(t, 1, res.Items[0].TotalOrders)
		assert.EqualValues(t, 230_000, res.Items[0].TotalSpent)
	})

	t.Run("admins are hidden", func(t *testing.T) {
		_, err := svc.Get(h.ctx, admin.ID)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("deactivate", func(t *testing.T) {
		u, err := svc.SetActive(h.ctx, an.ID, false)
		require.NoError(t, err)
		assert.False(t, u.IsActive)

		st, err := svc.Stats(h.ctx)
		require.NoError(t, err)
		assert.Equal(t, core.CustomerStats{Total: 2, Active: 1, Inactive: 1}, st)
	})

	t.Run("orders", func(t *testing.T) {
		res, err := svc.Orders(h.ctx, an.ID, core.Page{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, res.Total)
	})
}

func TestNotificationService(t *testing.T) {
	h := newHarness(t)
	events := &eventLog{}
	svc := core.NewNotificationService(h.store.Notifications, events, nil, h.opts()...)
	u := h.customer("An", 0)

	n, err := svc.Notify(h.ctx, core.NotificationInput{Recipient: u.ID, Title: " Xin chào ", Message: "Chào mừng"})
	require.NoError(t, err)
	assert.Equal(t, core.NotifyNormal, n.Type)
	assert.Equal(t, "Xin chào", n.Title)
	assert.Equal(t, []core.EventType{core.EventNotificationCreated}, events.types())

	_, err = svc.Notify(h.ctx, core.NotificationInput{Recipient: u.ID, Title: "x", Message: "y", Type: "spam"})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = svc.Notify(h.ctx, core.NotificationInput{Recipient: u.ID, Title: "Hai", Message: "Tin thứ hai"})
	require.NoError(t, err)

	count, err := svc.UnreadCount(h.ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	assert.ErrorIs(t, svc.MarkRead(h.ctx, "someone-else", n.ID), core.ErrNotFound)
	require.NoError(t, svc.MarkRead(h.ctx, u.ID, n.ID))

	unread, err := svc.List(h.ctx, u.ID, true, core.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread.Total)

	removed, err := svc.DeleteRead(h.ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	marked, err := svc.MarkAllRead(h.ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, marked)
}
