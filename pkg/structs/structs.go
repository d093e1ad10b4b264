// Package structs small generic helpers
package structs

// Ref returns a pointer to the given value
func Ref[T any](v T) *T {
	return &v
}

// Keys returns the keys of the map in unspecified order
func Keys[K comparable, V any](in map[K]V) []K {
	out := make([]K, 0, len(in))
	for k := range in {
		out = append(out, k)
	}
	return out
}
