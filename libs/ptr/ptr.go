// Package ptr provides helpers to take the address of literal values, used
// heavily when building AWS API inputs.
package ptr

import "time"

func String(s string) *string { return &s }

func Bool(b bool) *bool { return &b }

func Int64(i int64) *int64 { return &i }

func Float64(f float64) *float64 { return &f }

func Time(t time.Time) *time.Time { return &t }

// StringValue returns the value pointed to or "" for nil.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// BoolValue returns the value pointed to or false for nil.
func BoolValue(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}
