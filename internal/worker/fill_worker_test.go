package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibkr-relay/internal/gateway/sim"
	"github.com/ibkr-relay/internal/models"
	"github.com/ibkr-relay/internal/repository"
	"github.com/ibkr-relay/internal/service"
	"github.com/ibkr-relay/internal/worker"
)

func TestFillWorkerReconcilesFills(t *testing.T) {
	journal := repository.NewMemoryJournal()
	gw := sim.New()
	signals := service.NewSignalService(journal, gw, nil)

	opened, err := signals.OpenPosition(context.Background(), service.OpenRequest{
		Symbol: "EUR/USD", Side: models.SideBuy, Quantity: 1000,
	})
	require.NoError(t, err)

	w := worker.NewFillWorker(signals, gw.Events())
	go w.Start()
	defer w.Stop()

	gw.Fill(opened.Trade.EntryOrderID, 1.2345)

	require.Eventually(t, func() bool {
		active, err := journal.ActiveTrade("EURUSD")
		return err == nil && active.EntryPrice != nil && *active.EntryPrice == 1.2345
	}, 2*time.Second, 10*time.Millisecond, "entry fill never reached the journal")
}

func TestFillWorkerIgnoresUnknownOrders(t *testing.T) {
	journal := repository.NewMemoryJournal()
	gw := sim.New()
	signals := service.NewSignalService(journal, gw, nil)

	opened, err := signals.OpenPosition(context.Background(), service.OpenRequest{
		Symbol: "EUR/USD", Side: models.SideBuy, Quantity: 1000,
	})
	require.NoError(t, err)

	w := worker.NewFillWorker(signals, gw.Events())
	go w.Start()
	defer w.Stop()

	gw.Fill("not-ours", 9.99)
	gw.Fill(opened.Trade.EntryOrderID, 1.10)

	// The second fill landing proves the first was consumed without effect.
	require.Eventually(t, func() bool {
		active, err := journal.ActiveTrade("EURUSD")
		return err == nil && active.EntryPrice != nil
	}, 2*time.Second, 10*time.Millisecond)

	active, err := journal.ActiveTrade("EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 1.10, *active.EntryPrice)
	assert.False(t, active.Closed)
}

func TestFillWorkerStopsWhenStreamCloses(t *testing.T) {
	journal := repository.NewMemoryJournal()
	gw := sim.New()
	signals := service.NewSignalService(journal, gw, nil)

	w := worker.NewFillWorker(signals, gw.Events())
	done := make(chan struct{})
	go func() {
		w.Start()
		close(done)
	}()

	require.NoError(t, gw.Close())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after the event stream closed")
	}
}

func TestFillWorkerStop(t *testing.T) {
	journal := repository.NewMemoryJournal()
	gw := sim.New()
	signals := service.NewSignalService(journal, gw, nil)

	w := worker.NewFillWorker(signals, gw.Events())
	go w.Start()

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
