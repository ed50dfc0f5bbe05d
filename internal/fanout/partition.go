// Package fanout splits ordered work across concurrent workers and merges
// their independent results.
package fanout

import (
	"errors"
	"fmt"
)

// ErrInvalidWorkerCount is returned when fewer than one worker is requested.
var ErrInvalidWorkerCount = errors.New("worker count must be at least 1")

// Partition is the half-open range [Start, End) of an ordered collection
// assigned to worker Index.
type Partition struct {
	Index int
	Start int
	End   int
}

// Len returns the number of items covered.
func (p Partition) Len() int {
	return p.End - p.Start
}

func (p Partition) String() string {
	return fmt.Sprintf("#%d[%d:%d)", p.Index, p.Start, p.End)
}

// Split divides length items into exactly workers contiguous partitions of
// floor(length/workers) items; the last partition absorbs the remainder.
// An empty collection yields no partitions.
func Split(length, workers int) ([]Partition, error) {
	if workers < 1 {
		return nil, ErrInvalidWorkerCount
	}
	if length <= 0 {
		return nil, nil
	}

	chunk := length / workers
	parts := make([]Partition, workers)
	for i := range workers {
		end := (i + 1) * chunk
		if i == workers-1 {
			end = length
		}
		parts[i] = Partition{Index: i, Start: i * chunk, End: end}
	}
	return parts, nil
}

// Chunk returns a copy of the items covered by p.
func Chunk[T any](items []T, p Partition) []T {
	out := make([]T, p.Len())
	copy(out, items[p.Start:p.End])
	return out
}
