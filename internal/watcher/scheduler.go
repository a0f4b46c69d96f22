package watcher

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mohamedkhairy/coin-alerts/internal/alerts"
	"github.com/mohamedkhairy/coin-alerts/internal/models"
	"github.com/mohamedkhairy/coin-alerts/internal/pricing"
	"github.com/mohamedkhairy/coin-alerts/pkg/logger"
)

// Broadcaster delivers price snapshots and trigger events to subscribers.
// Delivery is best-effort: a disconnected subscriber misses events.
type Broadcaster interface {
	// BroadcastSnapshot fans out a price snapshot to all subscribers
	BroadcastSnapshot(snapshot *models.PriceSnapshot)

	// BroadcastTrigger fans out a trigger event to all subscribers
	BroadcastTrigger(event *models.TriggerEvent)
}

// SchedulerConfig holds configuration for the scheduler
type SchedulerConfig struct {
	PollInterval time.Duration // period between cycles
	FetchTimeout time.Duration // bound on one upstream fetch, < PollInterval
	CacheTTL     time.Duration // freshness window for cached prices
	WatchAssets  []string      // assets fetched even without a matching alert
}

// Scheduler drives the evaluation cycle at a fixed period: load enabled
// alerts, resolve prices through the cache, evaluate, broadcast, and apply
// per-alert side effects.
//
// Cycles are serialized: the loop goroutine runs one cycle at a time, so a
// slow fetch delays the next cycle rather than overlapping it. The only
// concurrent activity is alert submission (store writes) and per-subscriber
// delivery inside the Broadcaster.
type Scheduler struct {
	config      SchedulerConfig
	store       alerts.Store
	cache       pricing.PriceCache
	fetcher     pricing.Fetcher
	broadcaster Broadcaster
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.RWMutex
	running     bool
	stats       SchedulerStats
}

// SchedulerStats holds statistics about the scheduler
type SchedulerStats struct {
	CyclesRun     int64
	CycleErrors   int64
	AlertsFired   int64
	LastCycleTime time.Duration
	LastCycleAt   time.Time
	mu            sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(
	config SchedulerConfig,
	store alerts.Store,
	cache pricing.PriceCache,
	fetcher pricing.Fetcher,
	broadcaster Broadcaster,
) *Scheduler {
	if store == nil {
		panic("store cannot be nil")
	}
	if cache == nil {
		panic("cache cannot be nil")
	}
	if fetcher == nil {
		panic("fetcher cannot be nil")
	}
	if broadcaster == nil {
		panic("broadcaster cannot be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		config:      config,
		store:       store,
		cache:       cache,
		fetcher:     fetcher,
		broadcaster: broadcaster,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the scheduler loop
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.mu.Unlock()

	logger.Info("Starting watcher scheduler",
		logger.Duration("poll_interval", s.config.PollInterval),
		logger.Duration("cache_ttl", s.config.CacheTTL),
		logger.Duration("fetch_timeout", s.config.FetchTimeout),
		logger.Int("watch_assets", len(s.config.WatchAssets)),
	)

	s.wg.Add(1)
	go s.run()

	return nil
}

// Stop stops the scheduler and waits for an in-flight cycle to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	logger.Info("Stopping watcher scheduler")
	s.cancel()
	s.wg.Wait()
	logger.Info("Watcher scheduler stopped")
}

// IsRunning returns whether the scheduler loop is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// GetStats returns current scheduler statistics
func (s *Scheduler) GetStats() SchedulerStats {
	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()

	return SchedulerStats{
		CyclesRun:     s.stats.CyclesRun,
		CycleErrors:   s.stats.CycleErrors,
		AlertsFired:   s.stats.AlertsFired,
		LastCycleTime: s.stats.LastCycleTime,
		LastCycleAt:   s.stats.LastCycleAt,
	}
}

// run is the scheduler loop. Cycles execute on this goroutine only; ticks
// that arrive while a cycle is in flight coalesce, so cycles never overlap.
func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	// Run an initial cycle immediately
	s.RunCycle()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.RunCycle()
		}
	}
}

// RunCycle performs a single evaluation cycle (exported for testing)
func (s *Scheduler) RunCycle() {
	startTime := time.Now()

	err := s.runCycle(s.ctx)

	cycleTime := time.Since(startTime)
	cycleDuration.Observe(cycleTime.Seconds())
	s.recordCycle(cycleTime, err)

	if err != nil {
		// The cycle is abandoned, never the process; the next tick retries
		cyclesTotal.WithLabelValues("error").Inc()
		logger.Error("Watcher cycle failed",
			logger.ErrorField(err),
			logger.Duration("cycle_time", cycleTime),
		)
	}
}

// runCycle executes one fetch -> evaluate -> broadcast -> side-effect pass
func (s *Scheduler) runCycle(ctx context.Context) error {
	// 1. Load the current enabled alerts; a rule created mid-cycle is picked
	// up on the next tick (read-at-cycle-start semantics)
	enabled, err := s.store.ListAlerts(ctx, alerts.Filter{EnabledOnly: true})
	if err != nil {
		return fmt.Errorf("failed to list enabled alerts: %w", err)
	}

	// 2. Derive the distinct asset set referenced by alerts, merged with the
	// configured watch set
	assetIDs := s.collectAssetIDs(enabled)
	if len(assetIDs) == 0 {
		cyclesTotal.WithLabelValues("skipped").Inc()
		logger.Debug("No assets to watch, skipping cycle")
		return nil
	}

	// 3. Resolve prices: cache first, upstream for the rest
	snapshot, err := s.resolvePrices(ctx, assetIDs)
	if err != nil {
		return err
	}

	// 4. Evaluate alerts against the snapshot
	fired := alerts.Evaluate(snapshot, enabled)

	// 5. The snapshot goes out before any trigger derived from it
	s.broadcaster.BroadcastSnapshot(snapshot)

	// 6. Apply side effects alert by alert so a late store failure only
	// affects alerts not yet processed this cycle
	for _, f := range fired {
		event := f.Event()
		s.broadcaster.BroadcastTrigger(event)
		alertsTriggered.Inc()
		s.recordAlertFired()

		logger.Info("Alert triggered",
			logger.String("alert_id", f.Alert.ID),
			logger.String("asset_id", event.Coin),
			logger.Float64("price", f.Price),
			logger.Float64("threshold", f.Alert.Threshold),
			logger.String("message", event.Message),
		)

		if err := s.store.AppendHistory(ctx, f.Alert.ID, f.Price); err != nil {
			return fmt.Errorf("failed to append history for alert %s: %w", f.Alert.ID, err)
		}
		if err := s.store.SetEnabled(ctx, f.Alert.ID, false); err != nil {
			return fmt.Errorf("failed to disable alert %s: %w", f.Alert.ID, err)
		}
	}

	cyclesTotal.WithLabelValues("ok").Inc()
	return nil
}

// collectAssetIDs returns the sorted distinct normalized asset ids referenced
// by the given alerts plus the configured watch set
func (s *Scheduler) collectAssetIDs(enabled []*models.Alert) []string {
	seen := make(map[string]bool)
	for _, alert := range enabled {
		id := models.NormalizeAssetID(alert.AssetID)
		if id != "" {
			seen[id] = true
		}
	}
	for _, asset := range s.config.WatchAssets {
		id := models.NormalizeAssetID(asset)
		if id != "" {
			seen[id] = true
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// resolvePrices builds the cycle snapshot from fresh cache entries plus an
// upstream fetch for whatever the cache could not serve
func (s *Scheduler) resolvePrices(ctx context.Context, assetIDs []string) (*models.PriceSnapshot, error) {
	snapshot := models.NewPriceSnapshot(time.Now())

	cached, err := s.cache.Get(ctx, assetIDs)
	if err != nil {
		// Cache unavailable is a total miss, not a cycle failure
		logger.Warn("Price cache unavailable, fetching everything upstream",
			logger.ErrorField(err),
		)
		cached = models.NewPriceSnapshot(snapshot.CapturedAt)
	}

	missing := make([]string, 0, len(assetIDs))
	for _, id := range assetIDs {
		if price, ok := cached.Prices[id]; ok {
			snapshot.Prices[id] = price
			cacheLookups.WithLabelValues("hit").Inc()
		} else {
			missing = append(missing, id)
			cacheLookups.WithLabelValues("miss").Inc()
		}
	}

	if len(missing) == 0 {
		return snapshot, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
	fetched, err := s.fetcher.Fetch(fetchCtx, missing)
	cancel()
	if err != nil {
		upstreamFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	upstreamFetches.WithLabelValues("ok").Inc()

	for id, price := range fetched.Prices {
		snapshot.Prices[id] = price
	}

	// Write-back is best effort; a cache failure never fails the cycle
	if err := s.cache.Put(ctx, fetched, s.config.CacheTTL); err != nil {
		logger.Warn("Failed to write prices to cache",
			logger.ErrorField(err),
		)
	}

	return snapshot, nil
}

// recordCycle updates scheduler statistics after a cycle
func (s *Scheduler) recordCycle(cycleTime time.Duration, err error) {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()

	s.stats.CyclesRun++
	s.stats.LastCycleTime = cycleTime
	s.stats.LastCycleAt = time.Now()
	if err != nil {
		s.stats.CycleErrors++
	}
}

// recordAlertFired updates the fired-alert counter
func (s *Scheduler) recordAlertFired() {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()
	s.stats.AlertsFired++
}
