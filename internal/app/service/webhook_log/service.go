package webhook_log

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/matchpay/internal/app/repository"
	"github.com/fatflowers/matchpay/internal/models"
	"github.com/fatflowers/matchpay/pkg/logctx"
	"github.com/fatflowers/matchpay/pkg/tool"
)

// Service persists webhook delivery logs off the request path.
type Service struct {
	repo repository.Repository
	log  *zap.SugaredLogger
	wg   sync.WaitGroup
}

func New(lc fx.Lifecycle, repo repository.Repository, log *zap.SugaredLogger) *Service {
	s := NewService(repo, log)
	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		s.Wait()
		return nil
	}})
	return s
}

func NewService(repo repository.Repository, log *zap.SugaredLogger) *Service {
	return &Service{repo: repo, log: log}
}

// Delivery is one logged webhook delivery. Writes for the same delivery are
// applied in call order.
type Delivery struct {
	svc   *Service
	ctx   context.Context
	rec   models.WebhookDeliveryLog
	prev  chan struct{}
	mu    sync.Mutex
	ended bool
}

// Begin records a received delivery asynchronously.
func (s *Service) Begin(ctx context.Context, eventID, eventType string, payload []byte) *Delivery {
	d := &Delivery{
		svc: s,
		ctx: context.WithoutCancel(ctx),
		rec: models.WebhookDeliveryLog{
			ID:        tool.GenerateUUIDV7(),
			EventID:   eventID,
			EventType: eventType,
			TraceID:   logctx.TraceID(ctx),
			Data:      datatypes.JSON(payload),
			Status:    models.WebhookDeliveryLogStatusReceived,
		},
	}
	d.save(d.rec)
	return d
}

// Finish records the final status of the delivery. Only the first call counts.
func (d *Delivery) Finish(status models.WebhookDeliveryLogStatus, result any) {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.ended {
		d.mu.Unlock()
		return
	}
	d.ended = true
	d.mu.Unlock()

	rec := d.rec
	rec.Status = status
	if result != nil {
		if b, err := json.Marshal(result); err == nil {
			j := datatypes.JSON(b)
			rec.Result = &j
		}
	}
	d.save(rec)
}

func (d *Delivery) save(rec models.WebhookDeliveryLog) {
	d.mu.Lock()
	wait := d.prev
	done := make(chan struct{})
	d.prev = done
	d.mu.Unlock()

	s := d.svc
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		if wait != nil {
			<-wait
		}
		if err := s.repo.SaveWebhookDeliveryLog(d.ctx, &rec); err != nil {
			logctx.FromCtx(d.ctx, s.log).Errorf("failed to save webhook delivery log: %v", err)
		}
	}()
}

// Wait blocks until every pending write has finished.
func (s *Service) Wait() { s.wg.Wait() }

var Module = fx.Options(
	fx.Provide(New),
)
