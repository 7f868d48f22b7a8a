package classify

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"bond-arena/internal/config"
	"bond-arena/internal/game"
	"bond-arena/internal/game/spatial"
)

// Dispatcher runs identifications on a small worker pool so the simulation
// never waits for the network. Submit is non-blocking; finished records are
// pushed onto a lock-free queue that a single presentation goroutine drains.
//
// A job is never cancelled once accepted: if the classifier fails, times out
// or is rate limited past the deadline, the record is filled from the
// fallback table instead.
type Dispatcher struct {
	primary  Classifier
	fallback Classifier
	cache    *Cache
	limiter  *rate.Limiter
	timeout  time.Duration
	workers  int

	mu      sync.RWMutex // guards jobs against send-after-close
	jobs    chan job
	closed  bool
	wg      sync.WaitGroup
	started atomic.Bool

	results  *spatial.LockFreeQueue[Record]
	observer func(Record)

	submitted atomic.Uint64
	rejected  atomic.Uint64 // queue full at Submit
	completed atomic.Uint64
	fallbacks atomic.Uint64
	lost      atomic.Uint64 // result queue full
}

type job struct {
	molecule game.Molecule
	tick     uint64
	formedAt time.Time
}

// NewDispatcher creates a dispatcher around primary. A nil primary uses the
// fallback for everything.
func NewDispatcher(cfg config.ClassifierConfig, primary Classifier) *Dispatcher {
	def := config.DefaultClassifier()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	fallback := NewFallbackClassifier()
	if primary == nil {
		primary = fallback
	}

	return &Dispatcher{
		primary:  primary,
		fallback: fallback,
		cache:    NewCache(cfg.CacheTTL),
		limiter:  rate.NewLimiter(limit, max(1, cfg.Workers)),
		timeout:  cfg.Timeout,
		workers:  cfg.Workers,
		jobs:     make(chan job, cfg.QueueSize),
		results:  spatial.NewLockFreeQueue[Record](cfg.QueueSize * 2),
	}
}

// SetObserver registers fn to be called by workers for every finished record
// (metrics). Call before Start.
func (d *Dispatcher) SetObserver(fn func(Record)) {
	d.observer = fn
}

// Start launches the workers.
func (d *Dispatcher) Start() {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	log.Printf("🔬 Classifier dispatcher started (%d workers, live=%v)", d.workers, d.primary.Available())
}

// Stop refuses new work and waits for accepted jobs to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
}

// Submit queues m for identification. It never blocks and reports whether the
// job was accepted. Cached formulas complete immediately.
func (d *Dispatcher) Submit(m game.Molecule, tick uint64) bool {
	j := job{molecule: m, tick: tick, formedAt: time.Now()}

	if id, ok := d.cache.Get(m.Formula); ok {
		d.submitted.Add(1)
		d.finish(j, id, true, false)
		return true
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.rejected.Add(1)
		return false
	}
	select {
	case d.jobs <- j:
		d.submitted.Add(1)
		return true
	default:
		d.rejected.Add(1)
		return false
	}
}

// Drain returns up to maxItems finished records, oldest first.
// Only one goroutine may drain.
func (d *Dispatcher) Drain(maxItems int) []Record {
	return d.results.Drain(maxItems)
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.process(j)
	}
}

func (d *Dispatcher) process(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	comp := j.molecule.Composition
	if d.primary.Available() {
		if err := d.limiter.Wait(ctx); err == nil {
			id, err := d.primary.Identify(ctx, comp)
			if err == nil {
				d.cache.Set(id)
				d.finish(j, id, false, false)
				return
			}
			log.Printf("⚠️ Identification of %s failed, using fallback: %v", j.molecule.Formula, err)
		}
	}

	id, _ := d.fallback.Identify(ctx, comp)
	d.finish(j, id, false, d.primary.Available())
}

func (d *Dispatcher) finish(j job, id *Identification, cached, fellBack bool) {
	rec := Record{
		Formula:     j.molecule.Formula,
		Composition: j.molecule.Composition,
		Points:      j.molecule.Points,
		Tick:        j.tick,
		Name:        id.Name,
		Fact:        id.Fact,
		Source:      id.Source,
		Cached:      cached,
		Fallback:    fellBack,
		Latency:     time.Since(j.formedAt),
		FormedAt:    j.formedAt,
	}

	d.completed.Add(1)
	if fellBack {
		d.fallbacks.Add(1)
	}
	if !d.results.TryPush(rec) {
		d.lost.Add(1)
	}
	if d.observer != nil {
		d.observer(rec)
	}
}

// DispatcherStats holds dispatcher counters.
type DispatcherStats struct {
	Live      bool       `json:"live"`
	Submitted uint64     `json:"submitted"`
	Rejected  uint64     `json:"rejected"`
	Completed uint64     `json:"completed"`
	Fallbacks uint64     `json:"fallbacks"`
	Lost      uint64     `json:"lost"`
	Queued    int        `json:"queued"`
	Ready     int        `json:"ready"`
	Cache     CacheStats `json:"cache"`
}

// Stats returns dispatcher counters.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Live:      d.primary.Available(),
		Submitted: d.submitted.Load(),
		Rejected:  d.rejected.Load(),
		Completed: d.completed.Load(),
		Fallbacks: d.fallbacks.Load(),
		Lost:      d.lost.Load(),
		Queued:    len(d.jobs),
		Ready:     d.results.Len(),
		Cache:     d.cache.Stats(),
	}
}
