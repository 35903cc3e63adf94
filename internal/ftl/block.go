package ftl

import "fmt"

type BlockID int

// BlockState is the erase-block lifecycle: Erased -> Open -> Written -> Erased.
type BlockState uint8

const (
	StateErased BlockState = iota
	StateOpen
	StateWritten
)

func (s BlockState) String() string {
	switch s {
	case StateErased:
		return "erased"
	case StateOpen:
		return "open"
	case StateWritten:
		return "written"
	default:
		return fmt.Sprintf("BlockState(%d)", uint8(s))
	}
}

// Block is a single erase block. Blocks live in an Arena and are referred to
// everywhere else by BlockID.
type Block struct {
	id         BlockID
	state      BlockState
	cursor     int // next page offset to program
	valid      int
	reverse    []LBA // page offset -> logical address, Unmapped when not live
	eraseCount uint64
	sealSeq    uint64 // order in which the block became full, for victim selection
}

func newBlock(id BlockID, pagesPerBlock int) Block {
	reverse := make([]LBA, pagesPerBlock)
	for i := range reverse {
		reverse[i] = Unmapped
	}
	return Block{id: id, reverse: reverse}
}

func (b *Block) ID() BlockID          { return b.id }
func (b *Block) State() BlockState    { return b.state }
func (b *Block) Cursor() int          { return b.cursor }
func (b *Block) ValidCount() int      { return b.valid }
func (b *Block) EraseCount() uint64   { return b.eraseCount }
func (b *Block) PagesPerBlock() int   { return len(b.reverse) }
func (b *Block) Full() bool           { return b.cursor == len(b.reverse) }
func (b *Block) LBAAt(offset int) LBA { return b.reverse[offset] }

func (b *Block) open() error {
	if b.state != StateErased {
		return fmt.Errorf("%w: open block %d in state %v", ErrBlockState, b.id, b.state)
	}
	b.state = StateOpen
	return nil
}

// program appends lba at the cursor and returns the page offset it landed on.
func (b *Block) program(lba LBA) (int, error) {
	if b.state != StateOpen {
		return 0, fmt.Errorf("%w: program block %d in state %v", ErrBlockState, b.id, b.state)
	}
	offset := b.cursor
	if b.reverse[offset] != Unmapped {
		return 0, fmt.Errorf("%w: block %d offset %d already holds lba %d", ErrReverseMapMismatch, b.id, offset, b.reverse[offset])
	}
	b.reverse[offset] = lba
	b.cursor++
	b.valid++
	if b.cursor == len(b.reverse) {
		b.state = StateWritten
	}
	return offset, nil
}

// invalidate drops the live page at offset, which must currently hold lba.
func (b *Block) invalidate(offset int, lba LBA) error {
	if b.state == StateErased {
		return fmt.Errorf("%w: invalidate page in erased block %d", ErrBlockState, b.id)
	}
	if offset < 0 || offset >= b.cursor || b.reverse[offset] != lba {
		got := Unmapped
		if offset >= 0 && offset < len(b.reverse) {
			got = b.reverse[offset]
		}
		return fmt.Errorf("%w: block %d offset %d holds lba %d, expected %d", ErrReverseMapMismatch, b.id, offset, got, lba)
	}
	b.reverse[offset] = Unmapped
	b.valid--
	return nil
}

func (b *Block) erase() error {
	if b.state != StateWritten {
		return fmt.Errorf("%w: erase block %d in state %v", ErrBlockState, b.id, b.state)
	}
	if b.valid != 0 {
		return fmt.Errorf("%w: block %d has %d valid pages", ErrLiveErase, b.id, b.valid)
	}
	for offset, lba := range b.reverse {
		if lba != Unmapped {
			return fmt.Errorf("%w: block %d offset %d still maps lba %d", ErrLiveErase, b.id, offset, lba)
		}
	}
	b.cursor = 0
	b.state = StateErased
	b.eraseCount++
	return nil
}

// check audits the block's own bookkeeping.
func (b *Block) check() error {
	live := 0
	for offset, lba := range b.reverse {
		if lba == Unmapped {
			continue
		}
		if offset >= b.cursor {
			return fmt.Errorf("%w: block %d maps lba %d at offset %d beyond cursor %d", ErrReverseMapMismatch, b.id, lba, offset, b.cursor)
		}
		live++
	}
	if live != b.valid {
		return fmt.Errorf("%w: block %d valid count %d, reverse map holds %d", ErrReverseMapMismatch, b.id, b.valid, live)
	}
	switch {
	case b.state == StateErased && b.cursor != 0,
		b.state == StateOpen && b.Full(),
		b.state == StateWritten && !b.Full():
		return fmt.Errorf("%w: block %d in state %v with cursor %d", ErrBlockState, b.id, b.state, b.cursor)
	}
	return nil
}

// BlockInfo is a read-only snapshot of a block.
type BlockInfo struct {
	ID         BlockID
	State      BlockState
	Cursor     int
	ValidCount int
	EraseCount uint64
}

func (b *Block) info() BlockInfo {
	return BlockInfo{
		ID:         b.id,
		State:      b.state,
		Cursor:     b.cursor,
		ValidCount: b.valid,
		EraseCount: b.eraseCount,
	}
}
