// Package fallback implements the try-local-then-remote-then-default
// control flow shared by the header resolution stages.
package fallback

// First runs each producer in order and returns the first non-zero
// result. When every producer misses, the zero value is returned.
func First[T comparable](producers ...func() T) T {
	var zero T
	for _, produce := range producers {
		if v := produce(); v != zero {
			return v
		}
	}
	return zero
}
