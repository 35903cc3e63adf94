package ftl

import "errors"

var (
	// ErrOutOfRange is returned for logical addresses outside [0, LogicalSize).
	// It is the only error a caller can recover from.
	ErrOutOfRange = errors.New("logical address out of range")

	// ErrBadAddress is returned by introspection calls handed a physical
	// address outside the array, UnmappedPPA included.
	ErrBadAddress = errors.New("physical address out of range")

	// ErrInvariant matches every *InvariantError.
	ErrInvariant = &InvariantError{}

	ErrBlockState          = &InvariantError{"illegal block state transition"}
	ErrLiveErase           = &InvariantError{"erase of block with valid pages"}
	ErrFreePoolExhausted   = &InvariantError{"free block pool exhausted"}
	ErrOpenBlockCollision  = &InvariantError{"open block collision"}
	ErrReverseMapMismatch  = &InvariantError{"reverse map mismatch"}
	ErrNoVictim            = &InvariantError{"no full block to collect"}
	ErrGCStalled           = &InvariantError{"garbage collection made no progress"}
	ErrBlockRange          = &InvariantError{"block id out of range"}
	ErrInconsistentMapping = &InvariantError{"inconsistent address mapping"}
)

// InvariantError reports a violated engine invariant. These are never
// recoverable: the engine refuses further writes once one has been returned.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	if e.Msg == "" {
		return "ftl invariant violated"
	}
	return "ftl invariant violated: " + e.Msg
}

func (e *InvariantError) Is(target error) bool {
	targetErr, ok := target.(*InvariantError)
	if !ok {
		return false
	}
	return targetErr.Msg == "" || e.Msg == targetErr.Msg
}

// IsFatal reports whether err stems from an invariant violation.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvariant)
}
