package subscription

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Start launches the Publisher Loop: a single goroutine draining the
// bounded queue and handing each notification to sink.Deliver. When
// limiter is non-nil, delivery is throttled to protect a slow downstream
// transport from an unbounded fan-out burst; a notification that can't
// get a token before ctx is done is dropped rather than held, so the loop
// itself never backs up (spec.md §4.7 "Publisher Loop"). A transport that
// reports the session is gone (a failed Deliver) triggers unsubscribeAll
// for that session, the self-healing teardown spec.md §4.7/§5 describe for
// a dead transport handle.
func (r *Registry) Start(ctx context.Context, limiter *rate.Limiter) {
	r.wg.Add(1)
	go r.run(ctx, limiter)
}

// Stop signals the loop to drain and exit, then waits for it to finish.
func (r *Registry) Stop() {
	close(r.stop)
	r.wg.Wait()
}

func (r *Registry) run(ctx context.Context, limiter *rate.Limiter) {
	defer r.wg.Done()
	for {
		select {
		case <-r.stop:
			r.drainRemaining(ctx, limiter)
			return
		case n := <-r.queue:
			r.deliver(ctx, limiter, n)
		}
	}
}

func (r *Registry) drainRemaining(ctx context.Context, limiter *rate.Limiter) {
	for {
		select {
		case n := <-r.queue:
			r.deliver(ctx, limiter, n)
		default:
			return
		}
	}
}

func (r *Registry) deliver(ctx context.Context, limiter *rate.Limiter, n Notification) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			r.dropped.Add(1)
			r.logger.Warn("dropping notification: rate limiter wait aborted",
				zap.String("subscription_id", n.SubscriptionID), zap.Error(err))
			return
		}
	}
	if err := r.sink.Deliver(n); err != nil {
		removed := r.UnsubscribeAll(n.Session)
		r.logger.Warn("notification delivery failed, unsubscribing session",
			zap.String("subscription_id", n.SubscriptionID),
			zap.String("path", n.Path.Dotted()),
			zap.Int("subscriptions_removed", removed),
			zap.Error(err))
	}
}
