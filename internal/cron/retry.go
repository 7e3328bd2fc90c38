package cron

import (
	"context"
	"log"
	"time"

	"github.com/nzahrani/offercast/internal/metrics"
	"github.com/nzahrani/offercast/internal/storage"
)

// maxAttempts caps retries per delivery; beyond it the row is left failed
// for manual inspection.
const maxAttempts = 5

// Sender matches the notification service.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// Retrier re-sends failed deliveries from the outbox.
type Retrier struct {
	store storage.Storage
	send  Sender
	batch int
}

func NewRetrier(store storage.Storage, send Sender, batch int) *Retrier {
	if batch <= 0 {
		batch = 50
	}
	return &Retrier{store: store, send: send, batch: batch}
}

// Run retries up to one batch of failed deliveries and reports how many
// were attempted. The first storage error aborts the run; send errors
// only mark their row and continue.
func (r *Retrier) Run(ctx context.Context) (int, error) {
	failed, err := r.store.ListFailedDeliveries(ctx, r.batch)
	if err != nil {
		return 0, err
	}

	attempted := 0
	for i := range failed {
		d := failed[i]
		if d.Attempts >= maxAttempts {
			continue
		}

		sub, err := r.store.GetSubscriber(ctx, d.SubscriberID)
		if err != nil {
			return attempted, err
		}
		if sub == nil || !sub.IsActive {
			// Recipient is gone; stop retrying this row.
			d.Status = storage.DeliverySkipped
			d.Error = "subscriber missing or inactive"
			if err := r.store.UpdateDelivery(ctx, &d); err != nil {
				return attempted, err
			}
			continue
		}

		attempted++
		d.Attempts++
		d.AttemptedAt = time.Now()

		if sendErr := r.send.Send(ctx, sub.Phone, d.Body); sendErr != nil {
			d.Status = storage.DeliveryFailed
			d.Error = sendErr.Error()
			metrics.MessagesSentTotal.WithLabelValues("failed").Inc()
			log.Printf("cron: retry delivery %d to subscriber %d failed: %v", d.ID, d.SubscriberID, sendErr)
		} else {
			d.Status = storage.DeliverySent
			d.Error = ""
			metrics.MessagesSentTotal.WithLabelValues("sent").Inc()
		}
		if err := r.store.UpdateDelivery(ctx, &d); err != nil {
			return attempted, err
		}
	}
	return attempted, nil
}
