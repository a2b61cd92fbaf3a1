package dynamo

import (
	"sort"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uteshop/uteshop-api/internal/core"
)

func TestTimeLayoutSortsChronologically(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	times := []time.Time{
		base.Add(1500 * time.Millisecond),
		base,
		base.Add(time.Second),
		base.Add(10 * time.Nanosecond),
	}
	keys := make([]string, len(times))
	for i, tm := range times {
		keys[i] = formatTime(tm)
	}
	sort.Strings(keys)

	assert.Equal(t, []string{
		formatTime(base),
		formatTime(base.Add(10 * time.Nanosecond)),
		formatTime(base.Add(time.Second)),
		formatTime(base.Add(1500 * time.Millisecond)),
	}, keys)

	local := base.In(time.FixedZone("ICT", 7*3600))
	assert.Equal(t, formatTime(base), formatTime(local))
	assert.True(t, parseTime(formatTime(local)).Equal(base))
}

func TestNotificationItemRoundTrip(t *testing.T) {
	n := core.Notification{
		ID:        "019a0000-0000-7000-8000-000000000001",
		Recipient: "u1",
		Title:     "Đơn hàng đã giao",
		Message:   "Vui lòng xác nhận",
		OrderID:   "o1",
		Type:      core.NotifyOrderDeliveryConfirmation,
		Actions:   []core.NotificationAction{{Label: "Xác nhận", Action: "confirm_received"}},
		CreatedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}

	av, err := attributevalue.MarshalMap(notificationItemFromCore(n))
	require.NoError(t, err)
	assert.NotContains(t, av, "link")

	var item NotificationItem
	require.NoError(t, attributevalue.UnmarshalMap(av, &item))
	assert.Equal(t, n, item.ToCore())
}

func TestViewedItemToCore(t *testing.T) {
	at := time.Date(2026, 3, 10, 9, 0, 0, 123, time.UTC)
	v := ViewedItem{UserID: "u1", ProductID: "p1", ViewedAt: formatTime(at)}.ToCore()
	assert.Equal(t, core.ViewedProduct{UserID: "u1", ProductID: "p1", ViewedAt: at}, v)
}
