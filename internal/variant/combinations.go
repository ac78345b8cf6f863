package variant

import "fmt"

// MaxPositions bounds the number of positions whose power set is enumerated.
// 2^20 variants of a 20 nt guide is already ~20 MB of search strings.
const MaxPositions = 20

// ErrTooManyPositions is returned when a power set would exceed MaxPositions.
type ErrTooManyPositions struct {
	N int
}

func (e *ErrTooManyPositions) Error() string {
	return fmt.Sprintf("%d positions exceed the enumeration limit of %d", e.N, MaxPositions)
}

// subsets calls fn for every non-empty subset of items, smallest subsets
// first and lexicographic by index within a size. The slice passed to fn is
// reused between calls.
func subsets(items []int, fn func(subset []int)) error {
	n := len(items)
	if n > MaxPositions {
		return &ErrTooManyPositions{N: n}
	}

	idx := make([]int, n)
	buf := make([]int, n)
	for r := 1; r <= n; r++ {
		for i := 0; i < r; i++ {
			idx[i] = i
		}
		for {
			for i := 0; i < r; i++ {
				buf[i] = items[idx[i]]
			}
			fn(buf[:r])

			// Advance to the next combination of size r.
			i := r - 1
			for i >= 0 && idx[i] == i+n-r {
				i--
			}
			if i < 0 {
				break
			}
			idx[i]++
			for j := i + 1; j < r; j++ {
				idx[j] = idx[j-1] + 1
			}
		}
	}
	return nil
}
