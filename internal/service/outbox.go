package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"Food_Share/internal/metrics"
	"Food_Share/internal/model"
	"Food_Share/internal/pkg"
	"Food_Share/internal/repository/mysql"

	"github.com/sirupsen/logrus"
)

// Sender delivers one outbox event somewhere outside the database.
type Sender func(ctx context.Context, ev *model.OutboxEvent) error

// Sink is one named delivery target. Its position in the relayer's sink
// list is its bit in OutboxEvent.Delivered, so the order must stay stable
// across restarts.
type Sink struct {
	Name string
	Send Sender
}

const maxSinks = 32

// OutboxRelayer drains the outbox table on a fixed interval. Each event is
// retried only against the sinks that have not accepted it yet.
type OutboxRelayer struct {
	repo      *mysql.OutboxRepository
	sinks     []Sink
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
	batchSize int
	maxRetry  int
	interval  time.Duration
}

type RelayerOptions struct {
	BatchSize int
	MaxRetry  int
	Interval  time.Duration
}

func NewOutboxRelayer(repo *mysql.OutboxRepository, sinks []Sink, m *metrics.Metrics, log logrus.FieldLogger, opts RelayerOptions) *OutboxRelayer {
	if len(sinks) > maxSinks {
		panic(fmt.Sprintf("outbox relayer supports at most %d sinks, got %d", maxSinks, len(sinks)))
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.MaxRetry <= 0 {
		opts.MaxRetry = 10
	}
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	return &OutboxRelayer{
		repo:      repo,
		sinks:     sinks,
		metrics:   m,
		log:       log,
		batchSize: opts.BatchSize,
		maxRetry:  opts.MaxRetry,
		interval:  opts.Interval,
	}
}

// Run blocks until ctx is cancelled.
func (r *OutboxRelayer) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.drainOnce(ctx)
		}
	}
}

// drainOnce hands one batch to the sinks and returns how many events every
// sink has now accepted.
func (r *OutboxRelayer) drainOnce(ctx context.Context) int {
	rows, err := r.repo.ListDeliverable(ctx, r.batchSize, r.maxRetry)
	if err != nil {
		r.log.WithError(err).Error("outbox query failed")
		return 0
	}
	sent := 0
	for i := range rows {
		ev := &rows[i]
		delivered, err := r.deliver(ctx, ev)
		if err != nil {
			r.metrics.OutboxDelivered(false)
			r.log.WithError(err).WithFields(logrus.Fields{
				"event_id": ev.ID,
				"event":    ev.EventType,
				"retry":    ev.Retry + 1,
			}).Warn("outbox delivery failed")
			if err = r.repo.MarkFailed(ctx, ev.ID, delivered); err != nil {
				r.log.WithError(err).WithField("event_id", ev.ID).Error("outbox mark failed")
			}
			continue
		}
		r.metrics.OutboxDelivered(true)
		if err = r.repo.MarkSent(ctx, ev.ID); err != nil {
			r.log.WithError(err).WithField("event_id", ev.ID).Error("outbox mark sent")
			continue
		}
		sent++
	}
	return sent
}

// deliver sends ev to every sink whose bit is still clear and returns the
// updated mask with the joined sink errors.
func (r *OutboxRelayer) deliver(ctx context.Context, ev *model.OutboxEvent) (uint32, error) {
	mask := ev.Delivered
	var errs []error
	for i, s := range r.sinks {
		bit := uint32(1) << i
		if mask&bit != 0 {
			continue
		}
		if err := s.Send(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		mask |= bit
	}
	return mask, errors.Join(errs...)
}

// KafkaSender publishes the raw payload keyed by post so events for one
// post stay ordered within a partition.
func KafkaSender(p *pkg.EventPublisher) Sender {
	return func(ctx context.Context, ev *model.OutboxEvent) error {
		return p.Publish(ctx, pkg.EventMessage{
			Key:   fmt.Sprintf("%s:%d", ev.PostKind, ev.PostID),
			Value: []byte(ev.Payload),
			Headers: map[string]string{
				"event_type": ev.EventType,
				"event_id":   strconv.FormatUint(ev.ID, 10),
			},
		})
	}
}

// LogSender is used when no broker or mail relay is configured.
func LogSender(log logrus.FieldLogger) Sender {
	return func(_ context.Context, ev *model.OutboxEvent) error {
		log.WithFields(logrus.Fields{
			"event_id": ev.ID,
			"event":    ev.EventType,
			"payload":  ev.Payload,
		}).Info("lifecycle event")
		return nil
	}
}

type Mailer interface {
	Send(to, subject, htmlBody string) error
}

// MailSender notifies the donor of a new request and the receiver of a
// decision. Other events are ignored.
func MailSender(mailer Mailer, store *mysql.Store) Sender {
	return func(ctx context.Context, ev *model.OutboxEvent) error {
		if ev.EventType != model.EventRequestCreated && ev.EventType != model.EventRequestResolved {
			return nil
		}
		var p model.EventPayload
		if err := json.Unmarshal([]byte(ev.Payload), &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		req, err := store.Requests.FindByID(ctx, p.RequestID)
		if err != nil {
			return fmt.Errorf("load request %d: %w", p.RequestID, err)
		}
		post, err := store.Posts.Find(ctx, req.Target)
		label := req.Target.String()
		if err == nil {
			label = post.Label()
		}
		receiver, err := store.Users.FindByID(ctx, req.ReceiverID)
		if err != nil {
			return fmt.Errorf("load receiver: %w", err)
		}

		if ev.EventType == model.EventRequestResolved {
			return mailer.Send(receiver.Email, "Your request was "+string(p.Status),
				pkg.RequestResolvedHTML(receiver.Name, label, string(p.Status)))
		}
		donor, err := store.Users.FindByID(ctx, p.DonorID)
		if err != nil {
			return fmt.Errorf("load donor: %w", err)
		}
		return mailer.Send(donor.Email, "New request for "+label,
			pkg.NewRequestHTML(donor.Name, label, receiver.Name, req.Message))
	}
}
