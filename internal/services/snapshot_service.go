package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"admybrand-insights/backend-go/internal/config"
	"admybrand-insights/backend-go/internal/models"
	"admybrand-insights/backend-go/internal/telemetry"
)

const (
	TriggerInitial = "initial"
	TriggerAuto    = "auto"
	TriggerManual  = "manual"
)

// SnapshotState is what readers see: the snapshot plus refresh status.
type SnapshotState struct {
	Snapshot    models.MarketSnapshot
	Meta        models.SnapshotMeta
	Refreshing  bool
	LastRefresh time.Time
}

// RefreshOutcome describes a manual refresh attempt.
type RefreshOutcome struct {
	Accepted bool
	Retry    time.Duration
	Err      error
}

type SnapshotService struct {
	cfg   config.Config
	src   MarketSource
	cache Cache
	gate  *RefreshGate
	log   *zap.Logger
	now   func() time.Time

	mu          sync.Mutex
	snap        models.MarketSnapshot
	source      string
	lastErr     string
	lastRefresh time.Time
	inflight    int
	nextSeq     uint64
	appliedSeq  uint64
	subs        map[chan models.MarketSnapshot]struct{}
}

func NewSnapshotService(cfg config.Config, src MarketSource, cache Cache, gate *RefreshGate, log *zap.Logger) *SnapshotService {
	if gate == nil {
		gate = NewRefreshGate(cfg.ManualRefreshCooldown)
	}
	return &SnapshotService{
		cfg:    cfg,
		src:    src,
		cache:  cache,
		gate:   gate,
		log:    log,
		now:    time.Now,
		source: "empty",
		subs:   make(map[chan models.MarketSnapshot]struct{}),
	}
}

func (s *SnapshotService) Gate() *RefreshGate {
	return s.gate
}

// Run restores the last good snapshot, loads once and then refreshes on
// every tick until ctx is done.
func (s *SnapshotService) Run(ctx context.Context) {
	s.Restore(ctx)
	_ = s.Refresh(ctx, TriggerInitial)

	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Refresh(ctx, TriggerAuto)
		}
	}
}

// Restore loads the persisted snapshot when nothing has been fetched yet.
func (s *SnapshotService) Restore(ctx context.Context) bool {
	var snap models.MarketSnapshot
	if !getCached(ctx, s.cache, keyLastGoodSnapshot, &snap) || snap.Empty() {
		return false
	}
	snap.Seq = 0

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.snap.Empty() {
		return false
	}
	s.snap = snap
	s.source = "cache"
	if t, err := time.Parse(time.RFC3339, snap.FetchedAt); err == nil {
		s.lastRefresh = t
	}
	telemetry.SnapshotCoins.Set(float64(len(snap.Coins)))
	s.log.Info("restored last good snapshot", zap.String("fetchedAt", snap.FetchedAt), zap.Int("coins", len(snap.Coins)))
	return true
}

// Refresh fetches coins and history in parallel. A result is applied only
// if no later-issued refresh has been applied already; failures keep the
// current snapshot.
func (s *SnapshotService) Refresh(ctx context.Context, trigger string) error {
	s.mu.Lock()
	s.nextSeq++
	seq := s.nextSeq
	s.inflight++
	s.mu.Unlock()

	var (
		coins   CoinsResult
		history models.HistorySeries
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := s.src.Coins(gctx, s.cfg.Market.CoinLimit)
		if err != nil {
			return err
		}
		coins = res
		return nil
	})
	g.Go(func() error {
		series, err := s.src.History(gctx, s.cfg.Market.HistoryAssetID, s.cfg.Market.HistoryPeriod)
		if err != nil {
			s.log.Warn("history fetch failed", zap.String("asset", s.cfg.Market.HistoryAssetID), zap.Error(err))
		}
		history = series
		return nil
	})
	err := g.Wait()

	s.mu.Lock()
	s.inflight--
	if err != nil {
		s.lastErr = err.Error()
		s.mu.Unlock()
		telemetry.Refreshes.WithLabelValues(trigger, "error").Inc()
		s.log.Warn("market refresh failed", zap.String("trigger", trigger), zap.Uint64("seq", seq), zap.Error(err))
		return err
	}
	if seq <= s.appliedSeq {
		s.mu.Unlock()
		telemetry.StaleDiscards.Inc()
		telemetry.Refreshes.WithLabelValues(trigger, "stale").Inc()
		s.log.Debug("discarding stale refresh", zap.Uint64("seq", seq))
		return nil
	}

	now := s.now().UTC()
	if history.Points == nil {
		history.Points = []models.HistoryPoint{}
	}
	snap := models.MarketSnapshot{
		Seq:       seq,
		FetchedAt: now.Format(time.RFC3339),
		Coins:     coins.Coins,
		Stats:     coins.Stats,
		History:   history,
	}
	s.snap = snap
	s.appliedSeq = seq
	s.source = "live"
	s.lastErr = ""
	s.lastRefresh = now
	for ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
	s.mu.Unlock()

	telemetry.Refreshes.WithLabelValues(trigger, "ok").Inc()
	telemetry.SnapshotCoins.Set(float64(len(snap.Coins)))
	setCached(ctx, s.cache, keyLastGoodSnapshot, snap, s.cfg.CacheTTLSnapshot)
	s.log.Debug("market snapshot applied", zap.String("trigger", trigger), zap.Uint64("seq", seq), zap.Int("coins", len(snap.Coins)))
	return nil
}

// RefreshNow is the manual refresh control.
func (s *SnapshotService) RefreshNow(ctx context.Context) RefreshOutcome {
	ok, wait := s.gate.Allow()
	if !ok {
		telemetry.Refreshes.WithLabelValues(TriggerManual, "throttled").Inc()
		return RefreshOutcome{Retry: wait}
	}
	return RefreshOutcome{Accepted: true, Err: s.Refresh(ctx, TriggerManual)}
}

func (s *SnapshotService) Current() SnapshotState {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta := models.SnapshotMeta{Source: s.source, Err: s.lastErr}
	if !s.snap.Empty() {
		meta.FetchedAt = s.snap.FetchedAt
		age := s.now().Sub(s.lastRefresh)
		meta.Stale = s.lastErr != "" || s.source == "cache" || age > 2*s.cfg.RefreshInterval
		telemetry.SnapshotAge.Set(age.Seconds())
	}
	return SnapshotState{
		Snapshot:    s.snap,
		Meta:        meta,
		Refreshing:  s.inflight > 0,
		LastRefresh: s.lastRefresh,
	}
}

// Subscribe delivers every applied snapshot, starting with the current one.
// Slow readers miss intermediate values rather than block refreshes.
func (s *SnapshotService) Subscribe(ctx context.Context) (<-chan models.MarketSnapshot, func()) {
	ch := make(chan models.MarketSnapshot, 1)
	var once sync.Once

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	if !s.snap.Empty() {
		ch <- s.snap
	}
	s.mu.Unlock()

	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			close(ch)
			s.mu.Unlock()
		})
	}

	go func() {
		<-ctx.Done()
		unsubscribe()
	}()

	return ch, unsubscribe
}

func (s *SnapshotService) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
