package dhcpeloop_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdguardTeam/dhcp4c/internal/dhcpeloop"
)

func TestLoop_addTimer_duplicateKeyReplaces(t *testing.T) {
	t.Parallel()

	base := time.Unix(1000, 0)
	l := dhcpeloop.New(func() time.Time { return base })

	var fired string
	key := dhcpeloop.TimerKey{Queue: 1, Name: "retransmit"}

	l.AddTimer(key, base.Add(10*time.Second), func(time.Time) { fired = "first" })
	l.AddTimer(key, base.Add(5*time.Second), func(time.Time) { fired = "second" })

	require.Equal(t, 1, l.Len())

	when, ok := l.NextDeadline()
	require.True(t, ok)
	assert.Equal(t, base.Add(5*time.Second), when)

	l.FireDue(base.Add(5 * time.Second))
	assert.Equal(t, "second", fired)
}

func TestLoop_fireDue_chronologicalThenInsertionOrder(t *testing.T) {
	t.Parallel()

	base := time.Unix(2000, 0)
	l := dhcpeloop.New(func() time.Time { return base })

	var order []string
	l.AddTimer(dhcpeloop.TimerKey{Queue: 1, Name: "b"}, base, func(time.Time) { order = append(order, "b") })
	l.AddTimer(dhcpeloop.TimerKey{Queue: 1, Name: "a"}, base, func(time.Time) { order = append(order, "a") })
	l.AddTimer(dhcpeloop.TimerKey{Queue: 1, Name: "c"}, base.Add(time.Second), func(time.Time) { order = append(order, "c") })

	fired := l.FireDue(base)
	assert.Equal(t, 2, fired)
	assert.Equal(t, []string{"b", "a"}, order)
	assert.Equal(t, 1, l.Len())
}

func TestLoop_removeTimer(t *testing.T) {
	t.Parallel()

	base := time.Unix(3000, 0)
	l := dhcpeloop.New(func() time.Time { return base })

	key := dhcpeloop.TimerKey{Queue: 1, Name: "expire"}
	l.AddTimer(key, base, func(time.Time) { t.Fatal("must not fire") })

	assert.True(t, l.RemoveTimer(key))
	assert.False(t, l.RemoveTimer(key))
	assert.Equal(t, 0, l.FireDue(base))
}

// TestLoop_removeQueueExceptKeepsExpiry covers spec.md §4.4's use case:
// clearing every timer for an interface except the expiry timer.
func TestLoop_removeQueueExceptKeepsExpiry(t *testing.T) {
	t.Parallel()

	base := time.Unix(4000, 0)
	l := dhcpeloop.New(func() time.Time { return base })

	const iface = 1
	l.AddTimer(dhcpeloop.TimerKey{Queue: iface, Name: "t1"}, base, func(time.Time) {})
	l.AddTimer(dhcpeloop.TimerKey{Queue: iface, Name: "t2"}, base, func(time.Time) {})
	l.AddTimer(dhcpeloop.TimerKey{Queue: iface, Name: "expire"}, base, func(time.Time) {})

	removed := l.RemoveQueueExcept(iface, "expire")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, l.Len())

	_, ok := l.NextDeadline()
	require.True(t, ok)
}

func TestLoop_run_timerFires(t *testing.T) {
	t.Parallel()

	l := dhcpeloop.New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	l.AddTimer(dhcpeloop.TimerKey{Queue: 1, Name: "x"}, time.Now().Add(10*time.Millisecond), func(time.Time) {
		close(done)
		cancel()
	})

	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx, make(chan dhcpeloop.ReadinessEvent)) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
	<-errc
}

func TestLoop_run_processesOneReadinessEventThenRechecksTimers(t *testing.T) {
	t.Parallel()

	l := dhcpeloop.New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan dhcpeloop.ReadinessEvent, 1)
	got := make(chan string, 2)

	l.AddTimer(dhcpeloop.TimerKey{Queue: 1, Name: "t"}, time.Now().Add(5*time.Millisecond), func(time.Time) {
		got <- "timer"
	})
	events <- dhcpeloop.ReadinessEvent{Source: "sock", Recv: func(time.Time) { got <- "readiness" }}

	go func() { _ = l.Run(ctx, events) }()

	first := <-got
	second := <-got
	assert.ElementsMatch(t, []string{"timer", "readiness"}, []string{first, second})
}
