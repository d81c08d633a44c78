package pipeline

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/internal/adapters/config"
	"github.com/selivandex/whale-monitor/internal/classify"
	"github.com/selivandex/whale-monitor/internal/dedup"
	"github.com/selivandex/whale-monitor/internal/labels"
	"github.com/selivandex/whale-monitor/internal/perspective"
	"github.com/selivandex/whale-monitor/internal/pricing"
	"github.com/selivandex/whale-monitor/internal/registry"
	"github.com/selivandex/whale-monitor/internal/sink"
	"github.com/selivandex/whale-monitor/pkg/logger"
	"github.com/selivandex/whale-monitor/pkg/models"
)

const (
	seenKeyCap = 100_000
	seenKeyTTL = 10 * time.Minute
)

// seqRaw tags a transfer with its fan-in sequence number. The parallel
// stages may finish out of order; the router uses the sequence to restore
// emit order before records reach their shard.
type seqRaw struct {
	seq uint64
	raw *models.RawTransfer
}

type seqEnriched struct {
	seq      uint64
	transfer *models.EnrichedTransfer
}

type classifiedTransfer struct {
	seq      uint64
	transfer *models.EnrichedTransfer
	verdict  models.Classification
}

// Pipeline is the staged worker topology: fan-in, dispatch, enrichment,
// classification, sharded perspective/dedup, sink. Queues are bounded;
// every stage converts failures into tagged events, logged drops or
// dead-letter entries, never into upstream errors.
type Pipeline struct {
	cfg      *config.Config
	labels   *labels.Provider
	prices   *pricing.Resolver
	engine   *classify.Engine
	sink     *sink.Sink
	registry *registry.Registry
	lookback dedup.Lookback
	audit    *sink.AuditLog

	fanIn      chan *models.RawTransfer
	intake     chan seqRaw
	enriched   chan seqEnriched
	classified chan *classifiedTransfer
	shards     []chan *models.WhaleRecord
	dedups     []*dedup.Suppressor

	// seen is touched only by the dispatcher goroutine
	seen *expirable.LRU[string, struct{}]

	counters Counters
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New assembles the pipeline; audit may be nil
func New(
	cfg *config.Config,
	labelProvider *labels.Provider,
	prices *pricing.Resolver,
	engine *classify.Engine,
	snk *sink.Sink,
	reg *registry.Registry,
	lookback dedup.Lookback,
	audit *sink.AuditLog,
) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		labels:     labelProvider,
		prices:     prices,
		engine:     engine,
		sink:       snk,
		registry:   reg,
		lookback:   lookback,
		audit:      audit,
		fanIn:      make(chan *models.RawTransfer, cfg.Pipeline.FanInQueueSize),
		intake:     make(chan seqRaw, cfg.Pipeline.EnrichedQueueSize),
		enriched:   make(chan seqEnriched, cfg.Pipeline.EnrichedQueueSize),
		classified: make(chan *classifiedTransfer, cfg.Pipeline.ClassifiedQueueSize),
		seen:       expirable.NewLRU[string, struct{}](seenKeyCap, nil, seenKeyTTL),
	}

	p.shards = make([]chan *models.WhaleRecord, cfg.Pipeline.DedupShards)
	p.dedups = make([]*dedup.Suppressor, cfg.Pipeline.DedupShards)
	for i := range p.shards {
		p.shards[i] = make(chan *models.WhaleRecord, cfg.Pipeline.StoredQueueSize)
		p.dedups[i] = dedup.NewSuppressor(&cfg.Dedup, lookback, p.onSuppression)
	}
	return p
}

// Emit is the sources' entry point into the fan-in queue. A full queue
// blocks the source unless a drop budget allows evicting the oldest
// queued transfer.
func (p *Pipeline) Emit(ctx context.Context, t *models.RawTransfer) error {
	select {
	case p.fanIn <- t:
		p.counters.Received.Add(1)
		return nil
	default:
	}

	if budget := p.cfg.Sources.DropBudget; budget > 0 && p.counters.Dropped.Load() < int64(budget) {
		select {
		case old, ok := <-p.fanIn:
			if ok {
				p.counters.Dropped.Add(1)
				logger.Warn("fan-in queue full, dropped oldest transfer",
					zap.String("tx_hash", old.TxHash),
					zap.String("source_id", old.SourceID),
				)
			}
		default:
		}
	}

	select {
	case p.fanIn <- t:
		p.counters.Received.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches all stage workers
func (p *Pipeline) Start(ctx context.Context) {
	var dispatchWG, enrichWG, classifyWG, routeWG sync.WaitGroup

	// A single dispatcher owns the seen-set and the sequence counter
	dispatchWG.Add(1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer dispatchWG.Done()
		p.dispatchWorker(ctx)
	}()

	for i := 0; i < p.cfg.Pipeline.EnrichWorkers; i++ {
		enrichWG.Add(1)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer enrichWG.Done()
			p.enrichWorker(ctx)
		}()
	}

	for i := 0; i < p.cfg.Pipeline.ClassifyWorkers; i++ {
		classifyWG.Add(1)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer classifyWG.Done()
			p.classifyWorker(ctx)
		}()
	}

	// Routing is a single goroutine; it re-sequences the classify output
	// so shard order matches emit order
	routeWG.Add(1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer routeWG.Done()
		p.routeWorker(ctx)
	}()

	for i := range p.shards {
		p.wg.Add(1)
		go func(shard int) {
			defer p.wg.Done()
			p.shardWorker(ctx, shard)
		}(i)
	}

	// Cascade channel closes downstream as each stage drains
	go func() {
		dispatchWG.Wait()
		close(p.intake)
	}()
	go func() {
		enrichWG.Wait()
		close(p.enriched)
	}()
	go func() {
		classifyWG.Wait()
		close(p.classified)
	}()
	go func() {
		routeWG.Wait()
		for _, ch := range p.shards {
			close(ch)
		}
	}()

	logger.Info("🚀 Pipeline started",
		zap.Int("enrich_workers", p.cfg.Pipeline.EnrichWorkers),
		zap.Int("classify_workers", p.cfg.Pipeline.ClassifyWorkers),
		zap.Int("dedup_shards", p.cfg.Pipeline.DedupShards),
	)
}

// Stop closes the intake and waits for the stages to drain, bounded by
// the configured drain timeout
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.fanIn)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("✅ Pipeline drained")
	case <-time.After(p.cfg.Pipeline.DrainTimeout):
		logger.Warn("⚠️ Pipeline drain timeout",
			zap.Duration("timeout", p.cfg.Pipeline.DrainTimeout),
		)
	}
}

// Counters exposes the per-stage tallies
func (p *Pipeline) Counters() *Counters {
	return &p.counters
}

// dispatchWorker settles exact duplicates on event identity and assigns
// each surviving transfer its fan-in sequence number
func (p *Pipeline) dispatchWorker(ctx context.Context) {
	var seq uint64
	for raw := range p.fanIn {
		if _, dup := p.seen.Get(raw.Key()); dup {
			p.counters.Duplicates.Add(1)
			continue
		}
		p.seen.Add(raw.Key(), struct{}{})

		select {
		case p.intake <- seqRaw{seq: seq, raw: raw}:
			seq++
		case <-ctx.Done():
			return
		}
	}
}

// enrichWorker attaches labels and USD valuation to raw transfers
func (p *Pipeline) enrichWorker(ctx context.Context) {
	for sr := range p.intake {
		e := p.enrich(ctx, sr.raw)
		p.counters.Enriched.Add(1)

		select {
		case p.enriched <- seqEnriched{seq: sr.seq, transfer: e}:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pipeline) enrich(ctx context.Context, raw *models.RawTransfer) *models.EnrichedTransfer {
	e := &models.EnrichedTransfer{RawTransfer: *raw}

	e.FromLabel = p.labels.Lookup(ctx, raw.FromAddr, raw.Chain)
	e.ToLabel = p.labels.Lookup(ctx, raw.ToAddr, raw.Chain)

	// A source-reported USD amount doubles as a price observation
	if raw.NativeValue.IsPositive() && raw.Amount.IsPositive() {
		p.prices.Observe(raw.Symbol, raw.BlockTime, raw.NativeValue.Div(raw.Amount))
	}

	if price, ok := p.prices.Price(ctx, raw.Symbol, raw.BlockTime); ok {
		e.USDValue = raw.Amount.Mul(price)
	} else if raw.NativeValue.IsPositive() {
		e.USDValue = raw.NativeValue
		e.AddTag("source_reported_usd")
	} else {
		e.PriceMissing = true
		e.AddTag("price_missing")
	}

	return e
}

// classifyWorker runs the classification engine. Skip verdicts are
// forwarded, not dropped: the router needs every sequence number to
// restore order.
func (p *Pipeline) classifyWorker(ctx context.Context) {
	for se := range p.enriched {
		verdict := p.engine.Classify(ctx, se.transfer)
		p.counters.Classified.Add(1)

		select {
		case p.classified <- &classifiedTransfer{seq: se.seq, transfer: se.transfer, verdict: verdict}:
		case <-ctx.Done():
			return
		}
	}
}

// routeWorker restores fan-in order, applies the whale perspective and
// routes records to their shard. Re-sequencing here keeps per-whale
// block-time order intact even when a slow receipt lookup lets a later
// event overtake an earlier one in the classify pool.
func (p *Pipeline) routeWorker(ctx context.Context) {
	pending := make(map[uint64]*classifiedTransfer)
	var next uint64

	for ct := range p.classified {
		pending[ct.seq] = ct
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			if !p.route(ctx, ready) {
				return
			}
		}
	}
}

func (p *Pipeline) route(ctx context.Context, ct *classifiedTransfer) bool {
	if ct.verdict.Skip {
		p.counters.Skipped.Add(1)
		logger.Debug("internal exchange move dropped",
			zap.String("tx_hash", ct.transfer.TxHash),
		)
		return true
	}

	rec, ok := perspective.Transform(ct.transfer, &ct.verdict, time.Now().UTC())
	if !ok {
		p.counters.Skipped.Add(1)
		return true
	}

	shard := p.shardFor(rec.WhaleAddress)
	select {
	case p.shards[shard] <- rec:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Pipeline) shardFor(whaleAddress string) int {
	h := fnv.New32a()
	h.Write([]byte(whaleAddress))
	return int(h.Sum32() % uint32(len(p.shards)))
}

// shardWorker runs dedup and the sink for one shard. Single goroutine per
// shard gives read-after-write for the dedup lookback.
func (p *Pipeline) shardWorker(ctx context.Context, shard int) {
	sup := p.dedups[shard]

	for rec := range p.shards[shard] {
		res := sup.Check(ctx, rec)

		switch res.Decision {
		case dedup.DecisionSuppress:
			p.counters.Suppressed.Add(1)
			continue
		case dedup.DecisionReplace:
			p.counters.Suppressed.Add(1)
			rec = res.Merged
		}

		if err := p.sink.Store(ctx, rec); err != nil {
			// Already dead-lettered by the sink
			p.counters.Errors.Add(1)
			continue
		}
		p.counters.Stored.Add(1)

		sup.Remember(rec)
		p.registry.Observe(rec.WhaleAddress, rec.Classification, rec.USDValue, rec.TokenSymbol, rec.BlockTime)
	}
}

func (p *Pipeline) onSuppression(ev *models.SuppressionEvent) {
	if p.audit != nil {
		p.audit.RecordSuppression(ev)
	}
}
