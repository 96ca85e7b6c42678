package utils

import "strings"

func Ptr[T any](v T) *T {
	return &v
}

// StringOrNil trims s and maps an empty result to nil, for optional text columns.
func StringOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
