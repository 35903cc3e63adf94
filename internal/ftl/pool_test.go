package ftl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreeQueue_FIFO(t *testing.T) {
	t.Parallel()
	q := NewFreeQueue(4)
	for _, id := range []BlockID{2, 0, 3} {
		require.NoError(t, q.Push(id))
	}
	assert.Equal(t, 3, q.Len())
	assert.True(t, q.Contains(0))
	assert.False(t, q.Contains(1))
	assert.ErrorIs(t, q.Push(0), ErrBlockState)

	id, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, BlockID(2), id)

	// wrap around the ring
	require.NoError(t, q.Push(1))
	require.NoError(t, q.Push(2))

	var order []BlockID
	q.Ascend(func(id BlockID) bool {
		order = append(order, id)
		return true
	})
	assert.Equal(t, []BlockID{0, 3, 1, 2}, order)

	for _, want := range order {
		id, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, want, id)
	}
	_, ok = q.Pop()
	assert.False(t, ok)
}

// sealed returns a written block with the given number of valid pages.
func sealed(t *testing.T, id BlockID, pages, valid int, seq uint64) *Block {
	t.Helper()
	b := newBlock(id, pages)
	require.NoError(t, b.open())
	for i := 0; i < pages; i++ {
		_, err := b.program(LBA(int(id)*pages + i))
		require.NoError(t, err)
	}
	for i := valid; i < pages; i++ {
		require.NoError(t, b.invalidate(i, LBA(int(id)*pages+i)))
	}
	b.sealSeq = seq
	return &b
}

func TestFullQueue_Policies(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name   string
		policy VictimPolicy
		want   []BlockID
	}{
		{name: "fifo", policy: VictimFIFO, want: []BlockID{0, 1, 2, 3}},
		{name: "greedy", policy: VictimGreedy, want: []BlockID{2, 0, 3, 1}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q := NewFullQueue(4, tc.policy)
			require.NoError(t, q.Push(sealed(t, 0, 4, 2, 1)))
			require.NoError(t, q.Push(sealed(t, 1, 4, 4, 2)))
			require.NoError(t, q.Push(sealed(t, 2, 4, 0, 3)))
			require.NoError(t, q.Push(sealed(t, 3, 4, 2, 4)))
			assert.Equal(t, 4, q.Len())

			next, ok := q.Peek()
			require.True(t, ok)
			assert.Equal(t, tc.want[0], next)

			var got []BlockID
			for q.Len() > 0 {
				id, ok := q.Pop()
				require.True(t, ok)
				assert.False(t, q.Contains(id))
				got = append(got, id)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFullQueue_GreedyUpdate(t *testing.T) {
	t.Parallel()
	q := NewFullQueue(3, VictimGreedy)
	b0 := sealed(t, 0, 4, 1, 1)
	b1 := sealed(t, 1, 4, 3, 2)
	require.NoError(t, q.Push(b0))
	require.NoError(t, q.Push(b1))

	// Invalidating pages in b1 moves it ahead of b0.
	require.NoError(t, b1.invalidate(0, 4))
	q.Update(b1)
	require.NoError(t, b1.invalidate(1, 5))
	require.NoError(t, b1.invalidate(2, 6))
	q.Update(b1)
	assert.Equal(t, 2, q.Len())

	id, _ := q.Pop()
	assert.Equal(t, BlockID(1), id)
	id, _ = q.Pop()
	assert.Equal(t, BlockID(0), id)
}

func TestFullQueue_RejectsUnsealed(t *testing.T) {
	t.Parallel()
	q := NewFullQueue(2, VictimFIFO)
	b := newBlock(0, 4)
	assert.ErrorIs(t, q.Push(&b), ErrBlockState)

	s := sealed(t, 1, 2, 2, 1)
	require.NoError(t, q.Push(s))
	assert.ErrorIs(t, q.Push(s), ErrBlockState)
}
