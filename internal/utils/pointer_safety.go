package utils

func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

func Ptr[T any](v T) *T {
	return &v
}

// PtrIfNotEmpty returns nil for an empty string so optional fields stay unset.
func PtrIfNotEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
