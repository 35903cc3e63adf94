package ftl

import "fmt"

// replenish runs garbage collection until the free queue holds at least the
// configured threshold. A cycle reclaims at most one block, and one that had
// to open a fresh GC block gains nothing, so progress is only measured over
// consecutive cycles. More fruitless cycles in a row than there are blocks
// means every candidate is full of live data and the pool cannot recover.
func (e *Engine) replenish() error {
	stalled := 0
	for e.free.Len() < e.cfg.FreeBlockThreshold {
		before := e.free.Len()
		if err := e.collect(); err != nil {
			return fmt.Errorf("garbage collect: %w", err)
		}
		if e.free.Len() > before {
			stalled = 0
			continue
		}
		stalled++
		if stalled > e.arena.Len() {
			return fmt.Errorf("%w: %d cycles without reclaiming a block, free %d of %d",
				ErrGCStalled, stalled, e.free.Len(), e.cfg.FreeBlockThreshold)
		}
	}
	return nil
}

// collect runs one GC cycle: pick a victim, copy its live pages forward into
// the GC open block, erase it and return it to the free queue.
func (e *Engine) collect() error {
	victimID, ok := e.full.Pop()
	if !ok {
		return ErrNoVictim
	}
	if victimID == e.hostOpen || victimID == e.gcOpen {
		return fmt.Errorf("%w: victim %d is open", ErrOpenBlockCollision, victimID)
	}
	victim, err := e.arena.Block(victimID)
	if err != nil {
		return err
	}
	if victim.State() != StateWritten {
		return fmt.Errorf("%w: victim %d in state %v", ErrBlockState, victimID, victim.State())
	}
	e.stats.GCCycles++

	moved := 0
	if victim.ValidCount() == 0 {
		e.stats.EmptyVictims++
	} else {
		moved, err = e.copyForward(victimID)
		if err != nil {
			return err
		}
	}

	if err := victim.erase(); err != nil {
		return err
	}
	if err := e.free.Push(victimID); err != nil {
		return err
	}
	e.stats.Erases++
	e.logger.Debug("collected block",
		"victim", victimID,
		"moved", moved,
		"erase_count", victim.EraseCount(),
		"free", e.free.Len(),
		"full", e.full.Len())
	return nil
}

// copyForward relocates every live page of the victim into the GC open block,
// rotating the GC block as it fills.
func (e *Engine) copyForward(victimID BlockID) (int, error) {
	moved := 0
	for offset := 0; offset < e.cfg.PagesPerBlock; offset++ {
		gc, err := e.arena.Block(e.gcOpen)
		if err != nil {
			return moved, err
		}
		victim, err := e.arena.Block(victimID)
		if err != nil {
			return moved, err
		}
		lba := victim.LBAAt(offset)
		if lba == Unmapped {
			continue
		}
		if gc.State() == StateWritten {
			if err := e.rotate(&e.gcOpen, e.hostOpen, victimID); err != nil {
				return moved, fmt.Errorf("rotate gc block: %w", err)
			}
			e.stats.GCRotations++
		}

		victim, gc, err = e.arena.Pair(victimID, e.gcOpen)
		if err != nil {
			return moved, err
		}
		old := e.geo.compose(victimID, offset)
		if cur, ok := e.l2p.Lookup(lba); !ok || cur != old {
			return moved, fmt.Errorf("%w: lba %d maps to %d, victim holds it at %d", ErrInconsistentMapping, lba, cur, old)
		}
		newOffset, err := gc.program(lba)
		if err != nil {
			return moved, err
		}
		if err := victim.invalidate(offset, lba); err != nil {
			return moved, err
		}
		e.l2p.set(lba, e.geo.compose(e.gcOpen, newOffset))
		e.stats.GCWrites++
		moved++
	}
	victim, err := e.arena.Block(victimID)
	if err != nil {
		return moved, err
	}
	if victim.ValidCount() != 0 {
		return moved, fmt.Errorf("%w: victim %d kept %d valid pages after copy forward", ErrLiveErase, victimID, victim.ValidCount())
	}
	return moved, nil
}
