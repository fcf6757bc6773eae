package alac

// resize returns s with length n, reusing the backing array when it is
// large enough. Contents are not preserved when a new array is allocated.
func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}

// link fills dst with read-only views of the first n samples of each
// channel and returns it. No samples are copied.
func link(dst, channels [][]int32, n int) [][]int32 {
	dst = dst[:0]
	for _, ch := range channels {
		dst = append(dst, ch[:n:n])
	}
	return dst
}
