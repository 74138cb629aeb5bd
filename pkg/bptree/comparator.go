package bptree

// Comparator orders keys of type K: negative if a < b, zero if equal,
// positive if a > b. This is the generic stand-in for the
// <Key, Value, Comparator> template parameters of a C++ B+Tree.
type Comparator[K any] func(a, b K) int

// IntComparator orders plain integer keys.
func IntComparator(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
