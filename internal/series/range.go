package series

import "fmt"

// Batch is an inclusive range of row indexes.
type Batch struct {
	From int
	To   int
}

// SplitBatches splits n rows into consecutive batches of at most size rows.
func SplitBatches(n, size int) ([]Batch, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if n < 0 {
		return nil, fmt.Errorf("row count must be >= 0")
	}

	batches := make([]Batch, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size - 1
		if end >= n {
			end = n - 1
		}
		batches = append(batches, Batch{From: start, To: end})
	}
	return batches, nil
}
