package utils

// Value dereferences v, yielding the zero value for a nil pointer. Session
// snapshots expose the user as a pointer; callers that only print fields
// use this instead of a nil check.
func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}
