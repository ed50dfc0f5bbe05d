package fanout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCoversRangeExactlyOnce(t *testing.T) {
	t.Parallel()

	for length := 0; length <= 40; length++ {
		for workers := 1; workers <= 9; workers++ {
			parts, err := Split(length, workers)
			require.NoError(t, err)

			if length == 0 {
				assert.Empty(t, parts, "L=0 W=%d", workers)
				continue
			}
			require.Len(t, parts, workers, "L=%d W=%d", length, workers)

			seen := make([]int, length)
			next := 0
			for i, p := range parts {
				assert.Equal(t, i, p.Index)
				assert.Equal(t, next, p.Start, "partitions must be contiguous")
				for j := p.Start; j < p.End; j++ {
					seen[j]++
				}
				next = p.End
			}
			assert.Equal(t, length, next)
			for idx, n := range seen {
				assert.Equal(t, 1, n, "L=%d W=%d index %d", length, workers, idx)
			}
		}
	}
}

func TestSplitEvenAndRemainder(t *testing.T) {
	t.Parallel()

	parts, err := Split(8, 4)
	require.NoError(t, err)
	for _, p := range parts {
		assert.Equal(t, 2, p.Len())
	}

	parts, err = Split(10, 4)
	require.NoError(t, err)
	lens := []int{}
	for _, p := range parts {
		lens = append(lens, p.Len())
	}
	assert.Equal(t, []int{2, 2, 2, 4}, lens)

	parts, err = Split(3, 4)
	require.NoError(t, err)
	assert.Equal(t, Partition{Index: 3, Start: 0, End: 3}, parts[3])
}

func TestSplitRejectsNonPositiveWorkers(t *testing.T) {
	t.Parallel()

	_, err := Split(5, 0)
	require.ErrorIs(t, err, ErrInvalidWorkerCount)
}

func TestChunkCopies(t *testing.T) {
	t.Parallel()

	items := []string{"a", "b", "c", "d"}
	got := Chunk(items, Partition{Start: 1, End: 3})
	assert.Equal(t, []string{"b", "c"}, got)

	got[0] = "z"
	assert.Equal(t, "b", items[1])
}
