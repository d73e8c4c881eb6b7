package oss

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHubBroadcastOrder(t *testing.T) {
	hub := NewHub[int]()

	var got []string
	hub.Add(func(v int) { got = append(got, "a") })
	sub := hub.Add(func(v int) { got = append(got, "b") })
	hub.Add(func(v int) { got = append(got, "c") })

	hub.Broadcast(1)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	sub.Unsubscribe()
	sub.Unsubscribe()
	got = nil
	hub.Broadcast(2)
	assert.Equal(t, []string{"a", "c"}, got)
	assert.Equal(t, 2, hub.Len())
}

func TestHubReentrantHandler(t *testing.T) {
	hub := NewHub[int]()

	calls := 0
	var sub *Subscription
	sub = hub.Add(func(v int) {
		calls++
		// Removing itself and broadcasting again from inside a handler must not deadlock.
		sub.Unsubscribe()
		if v == 0 {
			hub.Broadcast(1)
		}
	})

	hub.Broadcast(0)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, hub.Len())
}

func TestHubRemovalDuringBroadcast(t *testing.T) {
	hub := NewHub[int]()
	group := &SubscriptionGroup{}

	var got []string
	group.Add(hub.Add(func(int) {
		got = append(got, "a")
		group.Close()
	}))
	group.Add(hub.Add(func(int) { got = append(got, "b") }))
	hub.Add(func(int) {
		got = append(got, "c")
		hub.Add(func(int) { got = append(got, "late") })
	})

	hub.Broadcast(1)
	assert.Equal(t, []string{"a", "c"}, got)
	assert.Equal(t, 2, hub.Len())
}

func TestSubscriptionGroupClose(t *testing.T) {
	hub := NewHub[string]()
	group := &SubscriptionGroup{}

	count := 0
	group.Add(hub.Add(func(string) { count++ }))
	group.Add(hub.Add(func(string) { count++ }))
	assert.Equal(t, 2, group.Len())

	hub.Broadcast("x")
	assert.Equal(t, 2, count)

	group.Close()
	group.Close()
	hub.Broadcast("y")
	assert.Equal(t, 2, count)
	assert.Equal(t, 0, hub.Len())

	// Late additions are released immediately.
	group.Add(hub.Add(func(string) { count++ }))
	assert.Equal(t, 0, hub.Len())
}

func TestTickQueue(t *testing.T) {
	q := NewTickQueue()

	var order []int
	q.ExecuteNextTick(func() {
		order = append(order, 1)
		q.ExecuteNextTick(func() { order = append(order, 3) })
	})
	q.ExecuteNextTick(func() { order = append(order, 2) })
	q.ExecuteNextTick(nil)

	assert.Equal(t, 2, q.Pending())
	assert.Equal(t, 2, q.Tick())
	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, 1, q.Pending())

	assert.Equal(t, 1, q.Drain(10))
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, q.Drain(10))
}
