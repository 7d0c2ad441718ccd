package util

// Map applies f to each element of slice and returns the results in order.
func Map[T any, R any](slice []T, f func(T) R) []R {
	result := make([]R, len(slice))
	for i, v := range slice {
		result[i] = f(v)
	}
	return result
}

// Filter returns the elements of slice for which keep returns true, preserving order.
func Filter[T any](slice []T, keep func(T) bool) []T {
	var result []T
	for _, v := range slice {
		if keep(v) {
			result = append(result, v)
		}
	}
	return result
}

// Last returns the final n elements of slice, or all of it when shorter. n <= 0 yields nil.
func Last[T any](slice []T, n int) []T {
	if n <= 0 {
		return nil
	}
	if len(slice) > n {
		return slice[len(slice)-n:]
	}
	return slice
}
