package ftl

import (
	"fmt"
	"strings"
)

// VictimPolicy selects which full block garbage collection reclaims next.
type VictimPolicy int

const (
	// VictimFIFO reclaims the oldest filled block first.
	VictimFIFO VictimPolicy = iota
	// VictimGreedy reclaims the block with the fewest valid pages, oldest first on ties.
	VictimGreedy
)

func (p VictimPolicy) String() string {
	switch p {
	case VictimFIFO:
		return "fifo"
	case VictimGreedy:
		return "greedy"
	default:
		return fmt.Sprintf("VictimPolicy(%d)", int(p))
	}
}

// ParseVictimPolicy parses the String form of a VictimPolicy.
func ParseVictimPolicy(s string) (VictimPolicy, error) {
	switch strings.ToLower(s) {
	case "fifo":
		return VictimFIFO, nil
	case "greedy":
		return VictimGreedy, nil
	}
	return 0, fmt.Errorf("unknown victim policy %q", s)
}

// Config describes the simulated NAND topology and the GC tuning of an Engine.
type Config struct {
	Channels       int
	Dies           int // per channel
	Planes         int // per die
	BlocksPerPlane int
	PagesPerBlock  int
	PageSize       int // bytes, only used for capacity reporting

	// FreeBlockThreshold is the minimum number of erased blocks kept in the free
	// queue after every host write.
	FreeBlockThreshold int
	VictimPolicy       VictimPolicy
}

func DefaultConfig() Config {
	return Config{
		Channels:           1,
		Dies:               4,
		Planes:             4,
		BlocksPerPlane:     4096,
		PagesPerBlock:      2048,
		PageSize:           4096,
		FreeBlockThreshold: 3,
		VictimPolicy:       VictimFIFO,
	}
}

// TotalBlocks is the number of erase blocks across the flattened topology.
func (c Config) TotalBlocks() int {
	return c.Channels * c.Dies * c.Planes * c.BlocksPerPlane
}

func (c Config) TotalPages() int64 {
	return int64(c.TotalBlocks()) * int64(c.PagesPerBlock)
}

// Capacity is the physical capacity in bytes.
func (c Config) Capacity() uint64 {
	return uint64(c.TotalPages()) * uint64(c.PageSize)
}

func (c Config) Validate() error {
	fields := []struct {
		name string
		val  int
	}{
		{"channels", c.Channels},
		{"dies", c.Dies},
		{"planes", c.Planes},
		{"blocks per plane", c.BlocksPerPlane},
		{"pages per block", c.PagesPerBlock},
		{"page size", c.PageSize},
	}
	for _, f := range fields {
		if f.val <= 0 {
			return fmt.Errorf("invalid config: %s must be positive, got %d", f.name, f.val)
		}
	}
	if c.FreeBlockThreshold < 1 {
		return fmt.Errorf("invalid config: free block threshold must be at least 1, got %d", c.FreeBlockThreshold)
	}
	// host open, gc open and at least one block that can fill up and be collected
	if need := c.FreeBlockThreshold + 3; c.TotalBlocks() < need {
		return fmt.Errorf("invalid config: %d blocks is too few for a free block threshold of %d (need %d)", c.TotalBlocks(), c.FreeBlockThreshold, need)
	}
	switch c.VictimPolicy {
	case VictimFIFO, VictimGreedy:
	default:
		return fmt.Errorf("invalid config: unknown victim policy %v", c.VictimPolicy)
	}
	return nil
}
