package webhook

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/matchpay/internal/app/repository"
	"github.com/fatflowers/matchpay/internal/app/service/webhook_log"
	"github.com/fatflowers/matchpay/internal/models"
	"github.com/fatflowers/matchpay/internal/platform/redis/inflight"
	"github.com/fatflowers/matchpay/internal/platform/stripe/stripe_client"
	"github.com/fatflowers/matchpay/pkg/apperr"
	"github.com/fatflowers/matchpay/pkg/logctx"
	"github.com/fatflowers/matchpay/pkg/metrics"
)

// Outcome of a delivery that was accepted.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
)

// Verifier authenticates a raw delivery.
type Verifier interface {
	ConstructEvent(payload []byte, signature string) (*stripe_client.Event, error)
}

var (
	errInFlight = errors.New("event is being processed by another worker")
	// errRecorded rolls back a transaction that lost the ledger race.
	errRecorded = errors.New("event already recorded")
)

// Gate verifies deliveries and applies each event id at most once.
type Gate struct {
	verifier   Verifier
	repo       repository.Repository
	router     *Router
	locker     inflight.Locker
	deliveries *webhook_log.Service
	log        *zap.SugaredLogger
}

func NewGate(verifier Verifier, repo repository.Repository, router *Router, locker inflight.Locker, deliveries *webhook_log.Service, log *zap.SugaredLogger) *Gate {
	if locker == nil {
		locker = inflight.Noop{}
	}
	return &Gate{verifier: verifier, repo: repo, router: router, locker: locker, deliveries: deliveries, log: log}
}

// Handle processes one delivery. Errors are apperr values: InvalidArgument
// for a bad signature, Internal for everything the gateway should retry.
func (g *Gate) Handle(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	log := logctx.FromCtx(ctx, g.log)
	evt, err := g.verifier.ConstructEvent(payload, signature)
	if err != nil {
		if errors.Is(err, stripe_client.ErrWebhookSecretMissing) {
			log.Errorw("webhook_secret_missing")
			metrics.ObserveWebhook("", "misconfigured")
			return "", apperr.Internal(err)
		}
		log.Warnw("webhook_signature_invalid", "err", err)
		metrics.ObserveWebhook("", "invalid_signature")
		return "", apperr.InvalidArgument("invalid signature")
	}

	start := time.Now()
	log = log.With("event_id", evt.ID, "event_type", evt.Type)
	ctx = logctx.WithLogger(ctx, log)
	var delivery *webhook_log.Delivery
	if g.deliveries != nil {
		delivery = g.deliveries.Begin(ctx, evt.ID, evt.Type, payload)
	}

	outcome, result, err := g.process(ctx, evt)
	metrics.ObserveProcess("webhook", evt.Type, start)
	switch {
	case err != nil:
		log.Errorw("webhook_handle_failed", "err", err)
		metrics.ObserveWebhook(evt.Type, "error")
		delivery.Finish(models.WebhookDeliveryLogStatusHandleFailed, map[string]string{"error": err.Error()})
		return "", apperr.Internal(err)
	case outcome == OutcomeDuplicate:
		log.Infow("webhook_duplicate")
		metrics.ObserveWebhook(evt.Type, string(OutcomeDuplicate))
		delivery.Finish(models.WebhookDeliveryLogStatusDuplicate, nil)
	default:
		log.Infow("webhook_processed", "result", result)
		metrics.ObserveWebhook(evt.Type, string(result))
		delivery.Finish(models.WebhookDeliveryLogStatusHandled, map[string]string{"result": string(result)})
	}
	return outcome, nil
}

func (g *Gate) process(ctx context.Context, evt *stripe_client.Event) (Outcome, Result, error) {
	done, err := g.repo.IsEventProcessed(ctx, evt.ID)
	if err != nil {
		return "", "", err
	}
	if done {
		return OutcomeDuplicate, "", nil
	}

	release, err := g.locker.Acquire(ctx, evt.ID)
	switch {
	case errors.Is(err, inflight.ErrHeld):
		return "", "", errInFlight
	case err != nil:
		// the ledger still decides; the lock only spares duplicate work
		logctx.FromCtx(ctx, g.log).Warnw("webhook_inflight_lock_unavailable", "err", err)
	default:
		defer release()
	}

	parsed, err := ParseEvent(evt.Type, evt.Raw)
	if err != nil {
		return "", "", err
	}

	var result Result
	err = g.repo.Transaction(ctx, func(tx repository.Repository) error {
		done, err := tx.IsEventProcessed(ctx, evt.ID)
		if err != nil {
			return err
		}
		if done {
			return errRecorded
		}
		if result, err = g.router.Dispatch(ctx, tx, parsed); err != nil {
			return err
		}
		err = tx.RecordProcessedEvent(ctx, &models.ProcessedWebhookEvent{
			EventID:     evt.ID,
			EventType:   evt.Type,
			ProcessedAt: time.Now(),
		})
		if errors.Is(err, repository.ErrDuplicate) {
			return errRecorded
		}
		return err
	})
	if errors.Is(err, errRecorded) {
		return OutcomeDuplicate, "", nil
	}
	if err != nil {
		return "", "", err
	}
	return OutcomeProcessed, result, nil
}
