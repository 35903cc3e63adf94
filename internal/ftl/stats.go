package ftl

// Stats counts engine activity since construction.
type Stats struct {
	HostWrites    uint64 // pages written by the host
	GCWrites      uint64 // pages copied forward by garbage collection
	GCCycles      uint64
	EmptyVictims  uint64 // victims erased without copying anything
	Erases        uint64
	HostRotations uint64
	GCRotations   uint64
}

// WriteAmplification is the ratio of physical page programs to host writes.
func (s Stats) WriteAmplification() float64 {
	if s.HostWrites == 0 {
		return 0
	}
	return float64(s.HostWrites+s.GCWrites) / float64(s.HostWrites)
}

func (e *Engine) Stats() Stats {
	return e.stats
}
