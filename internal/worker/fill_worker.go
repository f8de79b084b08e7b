package worker

import (
	"log"

	"github.com/ibkr-relay/internal/gateway"
	"github.com/ibkr-relay/internal/metrics"
	"github.com/ibkr-relay/internal/service"
)

// FillWorker is the fill reconciler: a standing consumer of the gateway
// event stream that projects fill notifications onto the trade journal. It
// makes no trading decisions of its own.
type FillWorker struct {
	signals  *service.SignalService
	events   <-chan gateway.Event
	stopChan chan struct{}
	done     chan struct{}
}

// NewFillWorker creates a new FillWorker
func NewFillWorker(signals *service.SignalService, events <-chan gateway.Event) *FillWorker {
	return &FillWorker{
		signals:  signals,
		events:   events,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start consumes events until the stream closes or Stop is called. Events
// are handled one at a time, preserving delivery order per order id.
func (w *FillWorker) Start() {
	log.Printf("fill worker started")
	defer close(w.done)

	for {
		select {
		case ev, ok := <-w.events:
			if !ok {
				log.Printf("fill worker: event stream closed")
				return
			}
			w.handle(ev)
		case <-w.stopChan:
			log.Printf("fill worker stopped")
			return
		}
	}
}

// Stop stops the worker and waits for the in-flight event to finish
func (w *FillWorker) Stop() {
	close(w.stopChan)
	<-w.done
}

func (w *FillWorker) handle(ev gateway.Event) {
	switch ev.Type {
	case gateway.EventFill:
		log.Printf("fill worker: fill for order %s at %v", ev.OrderID, ev.Price)
		result, err := w.signals.ApplyFill(ev.OrderID, ev.Price)
		if err != nil {
			log.Printf("fill worker: failed to reconcile order %s: %v", ev.OrderID, err)
			return
		}
		log.Printf("fill worker: order %s reconciled as %s", ev.OrderID, result)

	case gateway.EventConnected:
		log.Printf("fill worker: gateway connected")
		metrics.GatewayConnected.Set(1)

	case gateway.EventDisconnected:
		log.Printf("fill worker: gateway disconnected")
		metrics.GatewayConnected.Set(0)
	}
}
