package ftl

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Lookup resolves lba to its physical page, if it has been written.
func (e *Engine) Lookup(lba LBA) (PPA, bool, error) {
	if lba < 0 || int64(lba) >= e.logicalSize {
		return UnmappedPPA, false, fmt.Errorf("%w: lba %d not in [0, %d)", ErrOutOfRange, lba, e.logicalSize)
	}
	p, ok := e.l2p.Lookup(lba)
	return p, ok, nil
}

// Locate splits a physical page address into its block and page offset.
func (e *Engine) Locate(p PPA) (BlockID, int, error) {
	if err := e.checkPPA(p); err != nil {
		return 0, 0, err
	}
	id, offset := e.geo.decompose(p)
	return id, offset, nil
}

func (e *Engine) checkPPA(p PPA) error {
	if p < 0 || int64(p) >= e.cfg.TotalPages() {
		return fmt.Errorf("%w: ppa %d not in [0, %d)", ErrBadAddress, p, e.cfg.TotalPages())
	}
	return nil
}

func (e *Engine) BlockInfo(id BlockID) (BlockInfo, error) {
	b, err := e.arena.Block(id)
	if err != nil {
		return BlockInfo{}, err
	}
	return b.info(), nil
}

// ReverseLookup returns the logical address stored at p, or Unmapped.
func (e *Engine) ReverseLookup(p PPA) (LBA, error) {
	if err := e.checkPPA(p); err != nil {
		return Unmapped, err
	}
	id, offset := e.geo.decompose(p)
	b, err := e.arena.Block(id)
	if err != nil {
		return Unmapped, err
	}
	return b.LBAAt(offset), nil
}

func (e *Engine) HostOpenBlock() BlockID { return e.hostOpen }
func (e *Engine) GCOpenBlock() BlockID   { return e.gcOpen }
func (e *Engine) FreeBlocks() int        { return e.free.Len() }
func (e *Engine) FullBlocks() int        { return e.full.Len() }

// Digest fingerprints the translation table. Two engines fed the same
// configuration and write sequence produce the same digest.
func (e *Engine) Digest() uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, p := range e.l2p.entries {
		binary.LittleEndian.PutUint64(buf[:], uint64(p))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

// Verify audits every structural invariant of the engine: per-block
// bookkeeping, that each block is in exactly one of free, full, host open or
// GC open, and that the L2P table and reverse maps agree in both directions.
func (e *Engine) Verify() error {
	if e.hostOpen == e.gcOpen {
		return fmt.Errorf("%w: host and gc both open on block %d", ErrOpenBlockCollision, e.hostOpen)
	}

	seen := make([]int, e.arena.Len())
	e.free.Ascend(func(id BlockID) bool {
		seen[id]++
		return true
	})
	e.full.Ascend(func(id BlockID) bool {
		seen[id]++
		return true
	})
	seen[e.hostOpen]++
	seen[e.gcOpen]++

	for i := range e.arena.blocks {
		b := &e.arena.blocks[i]
		if err := b.check(); err != nil {
			return err
		}
		if seen[i] != 1 {
			return fmt.Errorf("%w: block %d is held by %d owners", ErrBlockState, i, seen[i])
		}
		switch {
		case e.free.Contains(b.id):
			if b.state != StateErased {
				return fmt.Errorf("%w: free block %d is %v", ErrBlockState, b.id, b.state)
			}
		case e.full.Contains(b.id):
			if b.state != StateWritten {
				return fmt.Errorf("%w: full block %d is %v", ErrBlockState, b.id, b.state)
			}
		default: // host or gc open
			if b.state == StateErased {
				return fmt.Errorf("%w: open slot holds erased block %d", ErrBlockState, b.id)
			}
		}
		for offset := 0; offset < b.cursor; offset++ {
			lba := b.reverse[offset]
			if lba == Unmapped {
				continue
			}
			if lba < 0 || int64(lba) >= e.logicalSize {
				return fmt.Errorf("%w: block %d offset %d holds out of range lba %d", ErrInconsistentMapping, b.id, offset, lba)
			}
			if p, ok := e.l2p.Lookup(lba); !ok || p != e.geo.compose(b.id, offset) {
				return fmt.Errorf("%w: block %d offset %d holds lba %d which maps to %d", ErrInconsistentMapping, b.id, offset, lba, p)
			}
		}
	}

	for i, p := range e.l2p.entries {
		if p == UnmappedPPA {
			continue
		}
		id, offset := e.geo.decompose(p)
		b, err := e.arena.Block(id)
		if err != nil {
			return err
		}
		if b.reverse[offset] != LBA(i) {
			return fmt.Errorf("%w: lba %d maps to block %d offset %d holding %d", ErrInconsistentMapping, i, id, offset, b.reverse[offset])
		}
	}

	if e.free.Len() < e.cfg.FreeBlockThreshold {
		return fmt.Errorf("%w: %d free blocks, threshold %d", ErrFreePoolExhausted, e.free.Len(), e.cfg.FreeBlockThreshold)
	}
	return nil
}
