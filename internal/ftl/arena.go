package ftl

import "fmt"

// Arena owns every Block. It is sized once and never grows or shrinks.
type Arena struct {
	blocks []Block
}

func NewArena(numBlocks, pagesPerBlock int) *Arena {
	a := &Arena{blocks: make([]Block, numBlocks)}
	for i := range a.blocks {
		a.blocks[i] = newBlock(BlockID(i), pagesPerBlock)
	}
	return a
}

func (a *Arena) Len() int {
	return len(a.blocks)
}

// Block returns the block with the given id.
func (a *Arena) Block(id BlockID) (*Block, error) {
	if id < 0 || int(id) >= len(a.blocks) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrBlockRange, id, len(a.blocks))
	}
	return &a.blocks[id], nil
}

// Pair returns two distinct blocks for simultaneous mutation. Asking for the
// same id twice is an ErrOpenBlockCollision: the caller would otherwise read
// and program one block through two handles.
func (a *Arena) Pair(x, y BlockID) (*Block, *Block, error) {
	if x == y {
		return nil, nil, fmt.Errorf("%w: block %d requested twice", ErrOpenBlockCollision, x)
	}
	bx, err := a.Block(x)
	if err != nil {
		return nil, nil, err
	}
	by, err := a.Block(y)
	if err != nil {
		return nil, nil, err
	}
	return bx, by, nil
}
