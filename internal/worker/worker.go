package worker

import (
	"context"

	"github.com/QODOHUB/ayami-storefront/internal/broker"
	"github.com/QODOHUB/ayami-storefront/internal/service"
	"github.com/QODOHUB/ayami-storefront/internal/util"
)

// ReconciliationWorker consumes submission-failed events and replays
// them against the POS until the order is accepted.
type ReconciliationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	reconciler   *service.Reconciler
}

// NewReconciliationWorker creates a new reconciliation worker
func NewReconciliationWorker(
	consumer *broker.Consumer,
	reconciler *service.Reconciler,
) *ReconciliationWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnSubmissionFailed(reconciler.HandleSubmissionFailed)

	return &ReconciliationWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		reconciler:   reconciler,
	}
}

// Start starts the worker
func (w *ReconciliationWorker) Start(ctx context.Context) error {
	util.GetLogger().Info("Starting reconciliation worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ReconciliationWorker) Stop() error {
	util.GetLogger().Info("Stopping reconciliation worker")
	return w.consumer.Close()
}
