package dbpool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRendezvous_NoConsumerTimesOut(t *testing.T) {
	r := newRendezvous()
	start := time.Now()
	outcome := r.Offer(context.Background(), offer{index: 1}, 30*time.Millisecond)
	assert.Equal(t, TimedOut, outcome)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestRendezvous_TransfersToWaitingConsumer(t *testing.T) {
	r := newRendezvous()
	taken := make(chan offer, 1)

	go func() {
		item, outcome := r.Take(context.Background(), time.Second)
		require.Equal(t, Transferred, outcome)
		taken <- item
	}()

	time.Sleep(20 * time.Millisecond) // give Take a head start, not required for correctness
	outcome := r.Offer(context.Background(), offer{index: 7}, time.Second)
	assert.Equal(t, Transferred, outcome)

	select {
	case item := <-taken:
		assert.Equal(t, 7, item.index)
	case <-time.After(time.Second):
		t.Fatal("consumer never received the offer")
	}
}

func TestRendezvous_NeverQueues(t *testing.T) {
	r := newRendezvous()

	// Two offers with no consumer: both must time out independently;
	// neither should be silently buffered and handed to a later Take.
	o1 := r.Offer(context.Background(), offer{index: 1}, 20*time.Millisecond)
	o2 := r.Offer(context.Background(), offer{index: 2}, 20*time.Millisecond)
	assert.Equal(t, TimedOut, o1)
	assert.Equal(t, TimedOut, o2)

	_, outcome := r.Take(context.Background(), 20*time.Millisecond)
	assert.Equal(t, TimedOut, outcome, "no stale offer should still be sitting in the channel")
}

func TestRendezvous_OfferInterruptedByContext(t *testing.T) {
	r := newRendezvous()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := r.Offer(ctx, offer{index: 1}, time.Second)
	assert.Equal(t, Interrupted, outcome)
}

func TestRendezvous_TakeInterruptedByContext(t *testing.T) {
	r := newRendezvous()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, outcome := r.Take(ctx, time.Second)
	assert.Equal(t, Interrupted, outcome)
}

func TestRendezvous_ZeroTimeoutWaitsForever(t *testing.T) {
	r := newRendezvous()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	outcome := r.Offer(ctx, offer{index: 1}, 0)
	assert.Equal(t, Interrupted, outcome, "a zero timeout waits forever, so only ctx can end the wait")
}
