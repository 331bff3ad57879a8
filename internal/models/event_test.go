package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventType(t *testing.T) {
	et, err := ParseEventType("order.completed")
	require.NoError(t, err)
	assert.Equal(t, OrderCompleted, et)

	// Case and surrounding whitespace are tolerated.
	et, err = ParseEventType("  Temperature.Alert ")
	require.NoError(t, err)
	assert.Equal(t, TemperatureAlert, et)

	_, err = ParseEventType("order.exploded")
	assert.Error(t, err)

	_, err = ParseEventType("")
	assert.Error(t, err)
}

func TestWebhookSubscribed(t *testing.T) {
	wh := Webhook{Events: []string{"order.completed", "task.completed"}}
	assert.True(t, wh.Subscribed("order.completed"))
	assert.False(t, wh.Subscribed("order.cancelled"))

	empty := Webhook{}
	assert.False(t, empty.Subscribed("order.completed"))
}
