// Package binding is the untyped call boundary of powhash. Hosts that hand over
// loosely typed argument lists (a JSON-RPC params array, a scripting runtime)
// call Hash and HashAsync, which check the shape of the call before any work
// is done and fail with ErrInvalidArgument when it is wrong.
package binding

import (
	"reflect"

	"github.com/TecharoHQ/powhash/lib/digest"
	"github.com/TecharoHQ/powhash/lib/dispatch"
)

type Binding struct {
	engine     *digest.Engine
	dispatcher *dispatch.Dispatcher
}

// New binds the synchronous entry point to e and the asynchronous one to d. d
// may be nil when only Hash is used.
func New(e *digest.Engine, d *dispatch.Dispatcher) *Binding {
	return &Binding{
		engine:     e,
		dispatcher: d,
	}
}

// Hash is hash(buffer, fast?). It computes on the caller's goroutine and
// returns the digest. Arguments after the flag are ignored.
func (b *Binding) Hash(args ...any) (digest.Digest, error) {
	if len(args) < 1 {
		return digest.Digest{}, invalid(1, "at least one argument is required")
	}

	v := digest.Full
	if len(args) > 1 {
		fast, ok := args[1].(bool)
		if !ok {
			return digest.Digest{}, invalid(2, "argument 2 should be a boolean")
		}
		v = digest.VariantOf(fast)
	}

	buf, ok := args[0].([]byte)
	if !ok {
		return digest.Digest{}, invalid(1, "argument must be a buffer")
	}

	return b.engine.Compute(buf, v)
}

// HashAsync is hashAsync(buffer, fast?, sink). It queues the computation and
// returns as soon as the job is accepted; the digest arrives through the sink.
// The sink may be a dispatch.Sink, a func(dispatch.Result) error or a
// func(digest.Digest, error). Arguments after the sink are ignored.
func (b *Binding) HashAsync(args ...any) error {
	if len(args) < 2 {
		return invalid(len(args)+1, "at least two arguments are required")
	}

	buf, ok := args[0].([]byte)
	if !ok {
		return invalid(1, "first argument must be a buffer")
	}

	v := digest.Full
	sinkPos := 2
	if len(args) > 2 {
		fast, ok := args[1].(bool)
		if !ok {
			return invalid(2, "argument 2 should be a boolean")
		}
		v = digest.VariantOf(fast)
		sinkPos = 3
	}

	sink, ok := asSink(args[sinkPos-1])
	if !ok {
		return invalid(sinkPos, "callback should be a function")
	}

	if b.dispatcher == nil {
		return ErrNoDispatcher
	}

	j, err := dispatch.NewJob(buf, v, sink)
	if err != nil {
		return err
	}

	return b.dispatcher.Submit(j)
}

func asSink(arg any) (dispatch.Sink, bool) {
	switch s := arg.(type) {
	case *dispatch.Future:
		if s == nil {
			return nil, false
		}
		return s, true
	case dispatch.SinkFunc:
		if s == nil {
			return nil, false
		}
		return s, true
	case dispatch.Callback:
		if s == nil {
			return nil, false
		}
		return s, true
	case func(dispatch.Result) error:
		if s == nil {
			return nil, false
		}
		return dispatch.SinkFunc(s), true
	case func(digest.Digest, error):
		if s == nil {
			return nil, false
		}
		return dispatch.Callback(s), true
	case dispatch.Sink:
		if s == nil || isNil(s) {
			return nil, false
		}
		return s, true
	default:
		return nil, false
	}
}

// isNil catches typed nils such as a nil *T stored in a Sink.
func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Chan, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
