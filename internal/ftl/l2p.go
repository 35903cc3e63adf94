package ftl

// LBA is a logical page address.
type LBA int64

// PPA is a physical page address: blockID*pagesPerBlock + offset.
type PPA int64

// Unmapped marks an L2P entry or reverse map slot with no live page.
const (
	Unmapped    LBA = -1
	UnmappedPPA PPA = -1
)

// geometry converts between physical page addresses and (block, offset).
type geometry struct {
	pagesPerBlock int
}

func (g geometry) compose(id BlockID, offset int) PPA {
	return PPA(int64(id)*int64(g.pagesPerBlock) + int64(offset))
}

func (g geometry) decompose(p PPA) (BlockID, int) {
	ppb := int64(g.pagesPerBlock)
	return BlockID(int64(p) / ppb), int(int64(p) % ppb)
}

// L2P is the logical to physical translation table.
type L2P struct {
	entries []PPA
}

func NewL2P(logicalSize int64) *L2P {
	entries := make([]PPA, logicalSize)
	for i := range entries {
		entries[i] = UnmappedPPA
	}
	return &L2P{entries: entries}
}

func (t *L2P) Len() int64 {
	return int64(len(t.entries))
}

func (t *L2P) Lookup(lba LBA) (PPA, bool) {
	p := t.entries[lba]
	return p, p != UnmappedPPA
}

func (t *L2P) set(lba LBA, p PPA) {
	t.entries[lba] = p
}
