// Package ftl implements a page-mapped flash translation layer over a
// simulated NAND array: logical to physical translation, erase block
// lifecycle, and copy-forward garbage collection.
//
// An Engine is a synchronous state machine and is not safe for concurrent use.
package ftl

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/dustin/go-humanize"
)

type Option func(*Engine)

// WithLogger sets the logger used for capacity, rotation and GC events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

type Engine struct {
	cfg         Config
	geo         geometry
	logicalSize int64

	arena *Arena
	l2p   *L2P
	free  *FreeQueue
	full  *FullQueue

	hostOpen BlockID
	gcOpen   BlockID
	sealSeq  uint64

	stats  Stats
	logger *slog.Logger

	// failed is the first invariant violation; once set the engine is unusable.
	failed error
}

// New builds an engine whose logical space withholds overprovisionPercent of
// the physical pages as spare area. Blocks 0 and 1 start open for host and GC
// writes; every other block starts in the free queue.
func New(cfg Config, overprovisionPercent float64, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if math.IsNaN(overprovisionPercent) || overprovisionPercent < 0 || overprovisionPercent >= 100 {
		return nil, fmt.Errorf("overprovisioning must be in [0, 100), got %v", overprovisionPercent)
	}

	totalPages := cfg.TotalPages()
	spare := int64(math.Floor(float64(totalPages) * overprovisionPercent / 100))
	logicalSize := totalPages - spare
	if logicalSize <= 0 {
		return nil, fmt.Errorf("overprovisioning %v%% leaves no logical pages out of %d", overprovisionPercent, totalPages)
	}

	numBlocks := cfg.TotalBlocks()
	e := &Engine{
		cfg:         cfg,
		geo:         geometry{pagesPerBlock: cfg.PagesPerBlock},
		logicalSize: logicalSize,
		arena:       NewArena(numBlocks, cfg.PagesPerBlock),
		l2p:         NewL2P(logicalSize),
		free:        NewFreeQueue(numBlocks),
		full:        NewFullQueue(numBlocks, cfg.VictimPolicy),
		hostOpen:    0,
		gcOpen:      1,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, id := range []BlockID{e.hostOpen, e.gcOpen} {
		b, err := e.arena.Block(id)
		if err != nil {
			return nil, err
		}
		if err := b.open(); err != nil {
			return nil, err
		}
	}
	for id := 2; id < numBlocks; id++ {
		if err := e.free.Push(BlockID(id)); err != nil {
			return nil, err
		}
	}

	pageSize := uint64(cfg.PageSize)
	e.logger.Info("ftl engine created",
		"blocks", numBlocks,
		"pages_per_block", cfg.PagesPerBlock,
		"physical_pages", totalPages,
		"spare_pages", spare,
		"physical_capacity", humanize.IBytes(uint64(totalPages)*pageSize),
		"user_capacity", humanize.IBytes(uint64(logicalSize)*pageSize),
		"free_threshold", cfg.FreeBlockThreshold,
		"victim_policy", cfg.VictimPolicy.String())
	return e, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

// LogicalSize is the number of addressable logical pages.
func (e *Engine) LogicalSize() int64 {
	return e.logicalSize
}

// MaxLogicalAddress is the highest LBA accepted by Write.
func (e *Engine) MaxLogicalAddress() LBA {
	return LBA(e.logicalSize - 1)
}

// Err returns the invariant violation that stopped the engine, if any.
func (e *Engine) Err() error {
	return e.failed
}

// Write programs one logical page. Out of range addresses are rejected with
// ErrOutOfRange and leave the engine untouched. Any other error is fatal.
func (e *Engine) Write(lba LBA) error {
	if e.failed != nil {
		return e.failed
	}
	if lba < 0 || int64(lba) >= e.logicalSize {
		return fmt.Errorf("%w: lba %d not in [0, %d)", ErrOutOfRange, lba, e.logicalSize)
	}
	if err := e.write(lba); err != nil {
		return e.fail(err)
	}
	return nil
}

// WriteSequential writes count consecutive pages starting at start. The whole
// run must fit below LogicalSize; otherwise nothing is written.
func (e *Engine) WriteSequential(start LBA, count int64) error {
	if e.failed != nil {
		return e.failed
	}
	if start < 0 || int64(start) >= e.logicalSize {
		return fmt.Errorf("%w: lba %d not in [0, %d)", ErrOutOfRange, start, e.logicalSize)
	}
	if count < 0 {
		return fmt.Errorf("negative page count %d", count)
	}
	if count > e.logicalSize-int64(start) {
		return fmt.Errorf("%w: %d pages from lba %d run past %d", ErrOutOfRange, count, start, e.logicalSize)
	}
	for i := int64(0); i < count; i++ {
		if err := e.write(start + LBA(i)); err != nil {
			return e.fail(err)
		}
	}
	return nil
}

func (e *Engine) fail(err error) error {
	e.failed = err
	e.logger.Error("ftl engine stopped", "error", err)
	return err
}

func (e *Engine) write(lba LBA) error {
	host, err := e.arena.Block(e.hostOpen)
	if err != nil {
		return err
	}
	if host.State() == StateWritten {
		if err := e.rotate(&e.hostOpen, e.gcOpen); err != nil {
			return fmt.Errorf("rotate host block: %w", err)
		}
		e.stats.HostRotations++
	}

	if err := e.replenish(); err != nil {
		return err
	}

	if old, ok := e.l2p.Lookup(lba); ok {
		if err := e.invalidate(lba, old); err != nil {
			return err
		}
	}

	p, err := e.program(e.hostOpen, lba)
	if err != nil {
		return err
	}
	e.l2p.set(lba, p)
	e.stats.HostWrites++
	return nil
}

// invalidate drops the page lba currently maps to at p.
func (e *Engine) invalidate(lba LBA, p PPA) error {
	id, offset := e.geo.decompose(p)
	b, err := e.arena.Block(id)
	if err != nil {
		return err
	}
	if err := b.invalidate(offset, lba); err != nil {
		return fmt.Errorf("invalidate lba %d at ppa %d: %w", lba, p, err)
	}
	e.full.Update(b)
	return nil
}

// program appends lba to the open block id and returns its new address.
func (e *Engine) program(id BlockID, lba LBA) (PPA, error) {
	b, err := e.arena.Block(id)
	if err != nil {
		return 0, err
	}
	offset, err := b.program(lba)
	if err != nil {
		return 0, err
	}
	return e.geo.compose(id, offset), nil
}

// rotate queues the written block in *slot as full and replaces it with the
// next erased block. The new block may not be any of the ids in busy.
func (e *Engine) rotate(slot *BlockID, busy ...BlockID) error {
	old, err := e.arena.Block(*slot)
	if err != nil {
		return err
	}
	e.sealSeq++
	old.sealSeq = e.sealSeq
	if err := e.full.Push(old); err != nil {
		return err
	}

	id, ok := e.free.Pop()
	if !ok {
		return fmt.Errorf("%w: replacing block %d", ErrFreePoolExhausted, old.id)
	}
	for _, other := range busy {
		if id == other {
			return fmt.Errorf("%w: free block %d is already in use", ErrOpenBlockCollision, id)
		}
	}
	b, err := e.arena.Block(id)
	if err != nil {
		return err
	}
	if err := b.open(); err != nil {
		return err
	}
	*slot = id
	if e.hostOpen == e.gcOpen {
		return fmt.Errorf("%w: host and gc both open on block %d", ErrOpenBlockCollision, id)
	}
	e.logger.Debug("rotated open block", "full", old.id, "open", id, "free", e.free.Len())
	return nil
}
