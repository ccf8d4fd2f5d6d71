package contactimport

// Partition splits items into consecutive groups of at most size elements.
// Group i holds items[size*i : size*(i+1)]. The groups share the backing array
// of items and must not be appended to.
func Partition[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}

	groups := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		groups = append(groups, items[start:end:end])
	}
	return groups
}
