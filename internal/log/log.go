// Package log defines the logger used across the service.
package log

import "context"

// Kv is a helper type for structured logging key-value pairs.
type Kv = map[string]any

// Logger is the interface the service uses to log.
type Logger interface {
	Infof(format string, args ...any)
	Warningf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
	WithValues(values Kv) Logger
	WithCtxValues(ctx context.Context) Logger
	SetValuesOnCtx(parent context.Context, values Kv) context.Context
}

type contextKey int

const contextLogValuesKey contextKey = iota

// CtxWithValues returns a copy of parent with the log values added, the ones
// already on the context are kept unless overwritten.
func CtxWithValues(parent context.Context, kv Kv) context.Context {
	current := ValuesFromCtx(parent)
	values := make(Kv, len(current)+len(kv))
	for k, v := range current {
		values[k] = v
	}
	for k, v := range kv {
		values[k] = v
	}

	return context.WithValue(parent, contextLogValuesKey, values)
}

// ValuesFromCtx returns the log values stored on the context.
func ValuesFromCtx(ctx context.Context) Kv {
	v, ok := ctx.Value(contextLogValuesKey).(Kv)
	if !ok {
		return Kv{}
	}
	return v
}

// Noop logger doesn't log anything.
const Noop = noop(0)

type noop int

func (n noop) Infof(format string, args ...any)    {}
func (n noop) Warningf(format string, args ...any) {}
func (n noop) Errorf(format string, args ...any)   {}
func (n noop) Debugf(format string, args ...any)   {}
func (n noop) WithValues(_ Kv) Logger              { return n }
func (n noop) WithCtxValues(_ context.Context) Logger {
	return n
}
func (n noop) SetValuesOnCtx(parent context.Context, values Kv) context.Context {
	return CtxWithValues(parent, values)
}
