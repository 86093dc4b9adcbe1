package report

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
)

func reportWith(status constants.Status) domain.ExecutionReport {
	return domain.ExecutionReport{ExecutionID: 7, Status: status}
}

func TestSubscribeUnknownStream(t *testing.T) {
	t.Parallel()

	_, err := NewBroker().Subscribe(1)
	require.ErrorIs(t, err, errors.ErrReportStreamNotFound)
}

func TestSubscribeReplaysLatest(t *testing.T) {
	t.Parallel()

	b := NewBroker()
	b.Open(7)
	b.Publish(7, reportWith(constants.StatusRunning))
	b.Publish(7, reportWith(constants.StatusPaused))

	sub, err := b.Subscribe(7)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	snap := <-sub.C
	assert.Equal(t, constants.StatusPaused, snap.Report.Status)
	assert.False(t, snap.Terminal)
}

func TestCloseDeliversTerminalAndRemovesStream(t *testing.T) {
	t.Parallel()

	b := NewBroker()
	b.Open(7)
	sub, err := b.Subscribe(7)
	require.NoError(t, err)

	b.Publish(7, reportWith(constants.StatusRunning))
	b.Publish(7, reportWith(constants.StatusRunning))
	b.Close(7, reportWith(constants.StatusSuccess))

	var last Snapshot
	for snap := range sub.C {
		last = snap
	}
	assert.True(t, last.Terminal)
	assert.Equal(t, constants.StatusSuccess, last.Report.Status)

	_, err = b.Subscribe(7)
	require.ErrorIs(t, err, errors.ErrReportStreamNotFound)
	assert.Empty(t, b.Live())

	sub.Unsubscribe()
}

func TestPublishOnUnknownOrClosedStream(t *testing.T) {
	t.Parallel()

	b := NewBroker()
	b.Publish(3, reportWith(constants.StatusRunning))
	b.Close(3, reportWith(constants.StatusSuccess))
	assert.Empty(t, b.Live(), "publish never opens a stream")

	b.Open(7)
	b.Close(7, reportWith(constants.StatusSuccess))
	b.Publish(7, reportWith(constants.StatusRunning))

	assert.Empty(t, b.Live())
	_, err := b.Subscribe(7)
	require.ErrorIs(t, err, errors.ErrReportStreamNotFound)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()

	b := NewBroker()
	b.Open(1)
	b.Open(2)
	assert.Equal(t, []int64{1, 2}, b.Live())

	sub, err := b.Subscribe(1)
	require.NoError(t, err)
	sub.Unsubscribe()
	sub.Unsubscribe()

	_, open := <-sub.C
	assert.False(t, open)

	b.Publish(1, reportWith(constants.StatusRunning))
}

func TestConcurrentPublishers(t *testing.T) {
	t.Parallel()

	b := NewBroker()
	b.Open(7)
	sub, err := b.Subscribe(7)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Publish(7, reportWith(constants.StatusRunning))
			}
		}()
	}
	wg.Wait()
	b.Close(7, reportWith(constants.StatusFailure))

	done := make(chan Snapshot)
	go func() {
		var last Snapshot
		for snap := range sub.C {
			last = snap
		}
		done <- last
	}()

	select {
	case last := <-done:
		assert.True(t, last.Terminal)
		assert.Equal(t, constants.StatusFailure, last.Report.Status)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
}
