package distribution

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nzahrani/offercast/internal/metrics"
	"github.com/nzahrani/offercast/internal/pricing"
	"github.com/nzahrani/offercast/internal/storage"
)

const (
	defaultWorkers     = 4
	defaultSendTimeout = 20 * time.Second
)

// Sender delivers one composed message to one contact identifier.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// SubscriberSource provides the active subscriber set with preferences and
// device fees preloaded.
type SubscriberSource interface {
	ListActiveSubscribers(ctx context.Context) ([]storage.Subscriber, error)
}

// DeliveryLog records dispatch attempts (the outbox). May be nil when
// distribution runs without persistence.
type DeliveryLog interface {
	CreateDelivery(ctx context.Context, d *storage.Delivery) error
}

// Engine fans a committed offer batch out to subscribers: filter per
// preference, price per subscriber, compose, dispatch. Subscribers are
// fully independent during a run; one failure never affects another.
type Engine struct {
	pricer      *pricing.Engine
	sender      Sender
	deliveries  DeliveryLog
	workers     int
	sendTimeout time.Duration
}

func NewEngine(pricer *pricing.Engine, sender Sender, deliveries DeliveryLog) *Engine {
	return &Engine{
		pricer:      pricer,
		sender:      sender,
		deliveries:  deliveries,
		workers:     defaultWorkers,
		sendTimeout: defaultSendTimeout,
	}
}

// WithWorkers bounds the fan-out pool.
func (e *Engine) WithWorkers(n int) *Engine {
	if n > 0 {
		e.workers = n
	}
	return e
}

// WithSendTimeout bounds each transport call.
func (e *Engine) WithSendTimeout(d time.Duration) *Engine {
	if d > 0 {
		e.sendTimeout = d
	}
	return e
}

// DistributeToAll fetches every active subscriber and distributes to them.
func (e *Engine) DistributeToAll(ctx context.Context, subs SubscriberSource, offers []storage.Offer, supplier storage.Supplier) (Report, error) {
	subscribers, err := subs.ListActiveSubscribers(ctx)
	if err != nil {
		return Report{}, err
	}
	return e.Distribute(ctx, offers, supplier, subscribers), nil
}

// Distribute processes each subscriber independently over a bounded worker
// pool and collects one outcome per subscriber. Delivery order across
// subscribers is not defined.
func (e *Engine) Distribute(ctx context.Context, offers []storage.Offer, supplier storage.Supplier, subscribers []storage.Subscriber) Report {
	started := time.Now()
	report := Report{StartedAt: started, Supplier: supplier.Code}
	if len(offers) == 0 || len(subscribers) == 0 {
		report.FinishedAt = time.Now()
		return report
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := range subscribers {
		sub := subscribers[i]
		g.Go(func() error {
			outcome := e.processSubscriber(gctx, offers, supplier, sub)
			mu.Lock()
			report.Outcomes = append(report.Outcomes, outcome)
			mu.Unlock()
			// Outcomes are isolated per subscriber; never propagate an
			// error that would cancel the sibling sends.
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = time.Now()
	metrics.DistributionDurationSeconds.Observe(report.FinishedAt.Sub(started).Seconds())
	return report
}

func (e *Engine) processSubscriber(ctx context.Context, offers []storage.Offer, supplier storage.Supplier, sub storage.Subscriber) Outcome {
	outcome := Outcome{SubscriberID: sub.ID, SubscriberName: sub.Name}

	filtered := NewFilter(sub.Preference).Apply(offers)
	if len(filtered) == 0 {
		outcome.Status = StatusSkipped
		outcome.Reason = "no offers matched preferences"
		metrics.SubscribersSkippedTotal.Inc()
		return outcome
	}
	outcome.Offers = len(filtered)

	items := make([]PricedOffer, 0, len(filtered))
	for _, offer := range filtered {
		item := PricedOffer{Offer: offer}
		quote, err := e.pricer.Price(ctx, offer, sub)
		switch {
		case err == nil:
			item.Quote = quote
		case errors.Is(err, pricing.ErrNoTargetCurrency):
			// Subscriber-level misconfiguration: nothing can be priced.
			outcome.Status = StatusFailed
			outcome.Reason = err.Error()
			return outcome
		default:
			// Hard per-offer pricing failure: the offer is still listed,
			// with an explicit marker instead of a price.
			item.PriceUnavailable = true
			log.Printf("distribution: subscriber %d offer %s: %v", sub.ID, offer.Code, err)
			var notFound *pricing.RateNotFoundError
			if errors.As(err, &notFound) {
				metrics.PricingErrorsTotal.WithLabelValues(notFound.From + "->" + notFound.To).Inc()
			}
		}
		items = append(items, item)
	}

	body := ComposeMessage(sub.Name, supplier, items)

	sendCtx, cancel := context.WithTimeout(ctx, e.sendTimeout)
	err := e.sender.Send(sendCtx, sub.Phone, body)
	cancel()

	delivery := storage.Delivery{
		SubscriberID: sub.ID,
		SupplierID:   supplier.ID,
		Body:         body,
		Attempts:     1,
		AttemptedAt:  time.Now(),
	}
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Reason = err.Error()
		delivery.Status = storage.DeliveryFailed
		delivery.Error = err.Error()
		metrics.MessagesSentTotal.WithLabelValues("failed").Inc()
		log.Printf("distribution: send to subscriber %d failed: %v", sub.ID, err)
	} else {
		outcome.Status = StatusSent
		delivery.Status = storage.DeliverySent
		metrics.MessagesSentTotal.WithLabelValues("sent").Inc()
	}

	if e.deliveries != nil {
		if dbErr := e.deliveries.CreateDelivery(ctx, &delivery); dbErr != nil {
			log.Printf("distribution: record delivery for subscriber %d: %v", sub.ID, dbErr)
		}
	}

	return outcome
}
