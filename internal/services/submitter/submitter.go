// Package submitter executes SubmissionRequested messages taken off Kafka.
package submitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/CustomsBox/internal/broker/messages"
	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/BearBump/CustomsBox/internal/services/customs"
)

type Registry interface {
	Submit(ctx context.Context, t models.WebserviceType, req customs.SubmitRequest) customs.Result
}

type Resubmitter interface {
	Resubmit(ctx context.Context, transactionID string) customs.Result
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

const defaultRateLimitPerMinute = 60

type Submitter struct {
	registry Registry
	resubmit Resubmitter
	rl       RateLimiter

	rateLimitPerMinute int64
	throttleWait       time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	startedAtUnixNano int64
	lastMessageNano   atomic.Int64
	totalReceived     atomic.Int64
	totalSucceeded    atomic.Int64
	totalFailed       atomic.Int64
	totalSkipped      atomic.Int64
	totalThrottled    atomic.Int64
	lastErrorMu       sync.Mutex
	lastError         string
}

// New wires the worker. rl may be nil to disable throttling.
func New(registry Registry, resubmit Resubmitter, rl RateLimiter) *Submitter {
	return &Submitter{
		registry:           registry,
		resubmit:           resubmit,
		rl:                 rl,
		rateLimitPerMinute: defaultRateLimitPerMinute,
		throttleWait:       time.Second,
		now:                func() time.Time { return time.Now().UTC() },
		sleep:              sleepCtx,
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func (s *Submitter) WithRateLimit(perMinute int) *Submitter {
	if perMinute > 0 {
		s.rateLimitPerMinute = int64(perMinute)
	}
	return s
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastMessageAt  *time.Time `json:"lastMessageAt,omitempty"`
	TotalReceived  int64      `json:"totalReceived"`
	TotalSucceeded int64      `json:"totalSucceeded"`
	TotalFailed    int64      `json:"totalFailed"`
	TotalSkipped   int64      `json:"totalSkipped"`
	TotalThrottled int64      `json:"totalThrottled"`
	LastError      string     `json:"lastError,omitempty"`
}

func (s *Submitter) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalReceived:  s.totalReceived.Load(),
		TotalSucceeded: s.totalSucceeded.Load(),
		TotalFailed:    s.totalFailed.Load(),
		TotalSkipped:   s.totalSkipped.Load(),
		TotalThrottled: s.totalThrottled.Load(),
	}
	if n := s.lastMessageNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastMessageAt = &t
	}
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}

func (s *Submitter) setLastError(msg string) {
	s.lastErrorMu.Lock()
	s.lastError = msg
	s.lastErrorMu.Unlock()
}

// Handle processes one message. Undecodable or unroutable messages are logged and
// skipped so they do not block the partition; only a cancelled context is returned
// as an error, leaving the message uncommitted.
func (s *Submitter) Handle(ctx context.Context, _key, value []byte) error {
	s.totalReceived.Add(1)
	s.lastMessageNano.Store(s.now().UnixNano())

	var m messages.SubmissionRequested
	if err := json.Unmarshal(value, &m); err != nil {
		s.skip("decode submission", "err", err)
		return nil
	}
	log := slog.With("request_id", m.RequestID, "webservice_type", m.WebserviceType)

	t, err := models.ParseWebserviceType(m.WebserviceType)
	if err != nil && m.ResubmitTransactionID == "" {
		s.skip("unroutable submission", "request_id", m.RequestID, "err", err)
		return nil
	}

	if err := s.throttle(ctx, log, t); err != nil {
		return err
	}

	var res customs.Result
	if m.ResubmitTransactionID != "" {
		log.Info("resubmitting", "transaction_id", m.ResubmitTransactionID)
		res = s.resubmit.Resubmit(ctx, m.ResubmitTransactionID)
	} else {
		res = s.registry.Submit(ctx, t, customs.SubmitRequest{UserID: m.UserID, Shipment: m.Shipment, Tracks: m.Tracks})
	}

	if res.Success {
		s.totalSucceeded.Add(1)
		log.Info("queued submission done", "transaction_id", res.TransactionID)
		return nil
	}
	s.totalFailed.Add(1)
	s.setLastError(fmt.Sprintf("%s: %v", res.ErrorCode, res.Errors))
	log.Warn("queued submission failed", "transaction_id", res.TransactionID, "error_code", res.ErrorCode, "errors", res.Errors)
	return nil
}

func (s *Submitter) skip(msg string, args ...any) {
	s.totalSkipped.Add(1)
	s.setLastError(msg)
	slog.Error(msg, args...)
}

// throttle waits until the per-minute budget of the target authority has room.
func (s *Submitter) throttle(ctx context.Context, log *slog.Logger, t models.WebserviceType) error {
	if s.rl == nil || s.rateLimitPerMinute <= 0 {
		return nil
	}
	target := "any"
	if t.Valid() {
		target = string(t.Country())
	}
	for {
		key := fmt.Sprintf("rl:soap:%s:%s", target, s.now().Format("200601021504"))
		allowed, n, err := s.rl.Allow(ctx, key, s.rateLimitPerMinute, 70*time.Second)
		if err != nil {
			// redis trouble should not stop submissions
			log.Warn("rate limiter unavailable", "err", err)
			return nil
		}
		if allowed {
			return nil
		}
		s.totalThrottled.Add(1)
		log.Warn("rate limit exceeded", "target", target, "count", n)
		if err := s.sleep(ctx, s.throttleWait); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
