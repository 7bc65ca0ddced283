package services

import (
	"context"
	"encoding/hex"
	"errors"
	"net/url"
	"sync"
	"time"
	"unicode/utf8"

	apperrors "cart-monitor-service/common/errors"
	"cart-monitor-service/common/logger"
	"cart-monitor-service/config"
	"cart-monitor-service/database"
	"cart-monitor-service/decoder"
	"cart-monitor-service/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PassState is the stage a monitoring pass is in.
type PassState string

const (
	StateIdle         PassState = "IDLE"
	StateScanning     PassState = "SCANNING"
	StateEvaluating   PassState = "EVALUATING"
	StateDecoding     PassState = "DECODING"
	StateEnriching    PassState = "ENRICHING"
	StatePublishing   PassState = "PUBLISHING"
	StateAccumulating PassState = "ACCUMULATING"
	StateDone         PassState = "DONE"
	StateError        PassState = "ERROR"
)

// CartScanner walks the cart keyspace. An empty pattern selects the
// scanner's configured one.
type CartScanner interface {
	Scan(ctx context.Context, pattern string, fn func(models.CacheEntry) error) error
	LoadFields(ctx context.Context, entry *models.CacheEntry) error
}

type CartEnricher interface {
	Enrich(ctx context.Context, items []models.CartItem) ([]models.CartItem, int)
}

type CartPublisher interface {
	Publish(ctx context.Context, record models.CartRecord) models.PublishOutcome
}

// PassObserver receives the summary of every finished pass.
type PassObserver interface {
	ObservePass(stats PassStats)
}

// PassStats summarizes one monitoring pass.
type PassStats struct {
	PassID          string        `json:"pass_id"`
	State           PassState     `json:"state"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
	Scanned         int           `json:"scanned"`
	Abandoned       int           `json:"abandoned"`
	Published       int           `json:"published"`
	PublishFailures int           `json:"publish_failures"`
	DecodeFailures  int           `json:"decode_failures"`
	EmptyCarts      int           `json:"empty_carts"`
	EnrichFailures  int           `json:"enrich_failures"`
	Cancelled       bool          `json:"cancelled"`
	Error           string        `json:"error,omitempty"`
}

// PassReport is the full outcome of a pass. Outcomes[i] belongs to Records[i].
type PassReport struct {
	Records  []models.CartRecord
	Outcomes []models.PublishOutcome
	Stats    PassStats
}

type MonitorDeps struct {
	Scanner   CartScanner
	Decoder   decoder.CartDecoder
	Enricher  CartEnricher
	Publisher CartPublisher
	Observers []PassObserver
}

// MonitorService runs abandoned cart detection passes. Passes are
// serialized; a caller arriving during a pass waits for it to finish.
type MonitorService struct {
	deps      MonitorDeps
	threshold int64
	log       *zap.Logger

	running chan struct{}

	mu   sync.RWMutex
	last *PassStats
}

func NewMonitorService(cfg *config.Config, deps MonitorDeps, log *zap.Logger) *MonitorService {
	log = log.With(zap.String("component", "monitor"))
	log.Info("Cart monitor configured",
		zap.String("cache", redactURL(cfg.RedisURL)),
		zap.String("catalog", cfg.CatalogURL),
		zap.String("destination", cfg.BusDestination),
		zap.Int64("threshold_seconds", cfg.AbandonedThresholdSeconds),
	)
	return &MonitorService{
		deps:      deps,
		threshold: cfg.AbandonedThresholdSeconds,
		log:       log,
		running:   make(chan struct{}, 1),
	}
}

// MonitorCarts runs one pass and returns every cart classified as abandoned.
// It fails only when the cache could not be scanned.
func (s *MonitorService) MonitorCarts(ctx context.Context) (*models.MonitorResult, error) {
	report, err := s.RunPass(ctx)
	if err != nil {
		return nil, err
	}
	return &models.MonitorResult{AbandonedCarts: report.Records}, nil
}

// LastPass returns the summary of the most recent finished pass.
func (s *MonitorService) LastPass() (PassStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return PassStats{}, false
	}
	return *s.last, true
}

// RunPass scans the keyspace once. A cancelled pass returns the records
// accumulated so far and no error.
func (s *MonitorService) RunPass(ctx context.Context) (*PassReport, error) {
	select {
	case s.running <- struct{}{}:
		defer func() { <-s.running }()
	case <-ctx.Done():
		return &PassReport{Records: []models.CartRecord{}, Stats: PassStats{State: StateDone, Cancelled: true}}, nil
	}

	p := &pass{
		svc:    s,
		report: &PassReport{Records: []models.CartRecord{}},
		state:  StateIdle,
	}
	p.report.Stats.PassID = uuid.NewString()
	p.report.Stats.StartedAt = time.Now()
	ctx = logger.WithPassID(ctx, p.report.Stats.PassID)
	p.log = logger.For(ctx, s.log)

	p.transition(StateScanning)
	err := s.deps.Scanner.Scan(ctx, "", func(entry models.CacheEntry) error {
		return p.visit(ctx, entry)
	})
	return p.finish(ctx, err)
}

func (s *MonitorService) record(stats PassStats) {
	s.mu.Lock()
	s.last = &stats
	s.mu.Unlock()

	for _, o := range s.deps.Observers {
		o.ObservePass(stats)
	}
}

// pass holds the state of a single run.
type pass struct {
	svc    *MonitorService
	report *PassReport
	state  PassState
	log    *zap.Logger
}

func (p *pass) transition(to PassState) {
	p.log.Debug("Pass state change", zap.String("from", string(p.state)), zap.String("to", string(to)))
	p.state = to
}

func (p *pass) visit(ctx context.Context, entry models.CacheEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stats := &p.report.Stats
	stats.Scanned++

	p.transition(StateEvaluating)
	defer p.transition(StateScanning)
	if !IsAbandoned(entry, p.svc.threshold) {
		return nil
	}
	stats.Abandoned++

	log := p.log.With(zap.String("key", entry.Key), zap.Int64("idle_seconds", entry.IdleSeconds))

	p.transition(StateDecoding)
	if err := p.svc.deps.Scanner.LoadFields(ctx, &entry); err != nil {
		if errors.Is(err, database.ErrEntryVanished) {
			log.Info("Cart disappeared before it could be read")
			stats.Abandoned--
			return nil
		}
		return err
	}

	result := p.svc.deps.Decoder.Decode(entry.Payload())
	switch r := result.(type) {
	case decoder.Failed:
		stats.DecodeFailures++
		log.Warn("Failed to decode cart payload", zap.Error(r.Err), zap.Int("payload_len", len(r.Raw)))
	case decoder.Empty:
		stats.EmptyCarts++
	case decoder.Decoded:
	}

	p.transition(StateEnriching)
	items, failures := p.svc.deps.Enricher.Enrich(ctx, result.Items())
	stats.EnrichFailures += failures

	userID := entry.UserID()
	if !utf8.ValidString(userID) {
		log.Warn("Cart key is not valid UTF-8, replacing invalid bytes in user id",
			zap.String("key_hex", hex.EncodeToString([]byte(entry.Key))))
	}
	// The returned record must match the published event byte for byte.
	record := models.CartRecord{
		UserID:          userID,
		IdleTimeSeconds: entry.IdleSeconds,
		Items:           items,
	}.Normalized()

	// Nothing is published once the caller has given up.
	if err := ctx.Err(); err != nil {
		return err
	}

	p.transition(StatePublishing)
	outcome := p.svc.deps.Publisher.Publish(ctx, record)
	if !outcome.Success && ctx.Err() != nil {
		return ctx.Err()
	}
	if outcome.Success {
		stats.Published++
	} else {
		stats.PublishFailures++
	}

	p.transition(StateAccumulating)
	p.report.Records = append(p.report.Records, record)
	p.report.Outcomes = append(p.report.Outcomes, outcome)
	return nil
}

func (p *pass) finish(ctx context.Context, err error) (*PassReport, error) {
	stats := &p.report.Stats
	stats.Duration = time.Since(stats.StartedAt)

	switch {
	case err == nil:
		p.transition(StateDone)
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		stats.Cancelled = true
		p.transition(StateDone)
	default:
		stats.Error = err.Error()
		p.transition(StateError)
	}
	stats.State = p.state

	fields := []zap.Field{
		zap.String("state", string(stats.State)),
		zap.Int("scanned", stats.Scanned),
		zap.Int("abandoned", stats.Abandoned),
		zap.Int("published", stats.Published),
		zap.Int("publish_failures", stats.PublishFailures),
		zap.Int("decode_failures", stats.DecodeFailures),
		zap.Int("enrich_failures", stats.EnrichFailures),
		zap.Bool("cancelled", stats.Cancelled),
		zap.Duration("duration", stats.Duration),
	}
	p.svc.record(*stats)

	if stats.State == StateError {
		p.log.Error("Monitoring pass failed", append(fields, zap.Error(err))...)
		if errors.Is(err, database.ErrCacheUnavailable) {
			return p.report, apperrors.CacheUnavailable(err)
		}
		return p.report, apperrors.Internal(err)
	}
	p.log.Info("Monitoring pass completed", fields...)
	return p.report, nil
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid url"
	}
	return u.Redacted()
}
