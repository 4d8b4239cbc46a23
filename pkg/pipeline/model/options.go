package model

import (
	"context"
	"math/rand"
	"reflect"
)

// Options is the free-form configuration of a job. Values are either scalars or,
// for a batch, lists aligned with the image list.
type Options map[string]any

// Results accumulates the partial results of regular steps within one job.
type Results map[string]any

// IsList reports whether v is list-valued, that is a slice or an array.
// Byte slices are treated as scalars.
func IsList(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	k := reflect.TypeOf(v).Kind()

	return k == reflect.Slice || k == reflect.Array
}

// ListLen returns the length of a list-valued option, or -1 for a scalar.
func ListLen(v any) int {
	if !IsList(v) {
		return -1
	}

	return reflect.ValueOf(v).Len()
}

// ListIndex returns element i of a list-valued option.
func ListIndex(v any, i int) any {
	return reflect.ValueOf(v).Index(i).Interface()
}

// String returns the string value of key, or "" when absent or not a string.
func (o Options) String(key string) string {
	if v, ok := o[key].(string); ok {
		return v
	}

	return ""
}

// Float returns the numeric value of key.
func (o Options) Float(key string) (float64, bool) {
	switch n := o[key].(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	}

	return 0, false
}

// Int returns the integer value of key.
func (o Options) Int(key string) (int, bool) {
	f, ok := o.Float(key)
	if !ok {
		return 0, false
	}

	return int(f), true
}

type randKey struct{}

// WithRand returns a copy of ctx carrying the job's private random generator.
func WithRand(ctx context.Context, rnd *rand.Rand) context.Context {
	return context.WithValue(ctx, randKey{}, rnd)
}

// RandFrom returns the job's random generator, or a fixed-seed one when the context has none.
func RandFrom(ctx context.Context) *rand.Rand {
	if rnd, ok := ctx.Value(randKey{}).(*rand.Rand); ok {
		return rnd
	}

	return rand.New(rand.NewSource(1)) //nolint:gosec
}
