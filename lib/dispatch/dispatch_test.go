package dispatch

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TecharoHQ/powhash/lib/digest"
	"github.com/TecharoHQ/powhash/lib/digest/digesttest"
)

// gatedEngine returns an engine whose Fast transform reports each input on
// started (if not nil) and then blocks until gate is closed.
func gatedEngine(gate <-chan struct{}, started chan<- []byte) *digest.Engine {
	return digest.Default().WithFunc(digest.Fast, "gated", func(data []byte) digest.Digest {
		if started != nil {
			started <- bytes.Clone(data)
		}
		<-gate
		return digest.Keccak256(data)
	})
}

func spawnDispatcher(t *testing.T, opts Options) *Dispatcher {
	t.Helper()

	d := New(opts)
	t.Cleanup(d.Close)
	return d
}

func submit(t *testing.T, d *Dispatcher, data []byte, v digest.Variant, sink Sink) *Job {
	t.Helper()

	j, err := NewJob(data, v, sink)
	if err != nil {
		t.Fatal(err)
	}

	if err := d.Submit(j); err != nil {
		t.Fatal(err)
	}

	return j
}

func captureFaults(t *testing.T) <-chan error {
	t.Helper()

	faults := make(chan error, 16)
	prev := SetFaultHandler(func(err error) { faults <- err })
	t.Cleanup(func() { SetFaultHandler(prev) })
	return faults
}

func TestExactlyOnce(t *testing.T) {
	d := New(Options{Workers: 4})

	const n = 64
	var calls [n]atomic.Int32

	for i := range n {
		submit(t, d, []byte{byte(i)}, digest.Fast, SinkFunc(func(r Result) error {
			if r.Err != nil {
				t.Errorf("job %d failed: %v", i, r.Err)
			}
			calls[i].Add(1)
			return nil
		}))
	}

	d.Close()

	for i := range n {
		if got := calls[i].Load(); got != 1 {
			t.Errorf("sink of job %d called %d times", i, got)
		}
	}
}

func TestSubmitDoesNotBlock(t *testing.T) {
	gate := make(chan struct{})
	d := spawnDispatcher(t, Options{Workers: 1, Engine: gatedEngine(gate, nil)})

	fut := NewFuture()
	j := submit(t, d, []byte("slow"), digest.Fast, fut)

	if _, ok := fut.Result(); ok {
		t.Fatal("future resolved before the computation was allowed to finish")
	}

	if s := j.State(); s != Queued && s != Running {
		t.Errorf("job should be queued or running, it is %s", s)
	}

	close(gate)

	got, err := fut.Wait(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	if want := digest.Keccak256([]byte("slow")); got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	if s := j.State(); s != Completed {
		t.Errorf("job should be completed, it is %s", s)
	}
}

func TestConcurrentJobsMatchSync(t *testing.T) {
	const n = 8
	e := digest.Default()
	d := spawnDispatcher(t, Options{Workers: n, Engine: e})

	inputs := make([][]byte, n)
	futures := make([]*Future, n)
	for i := range n {
		inputs[i] = digesttest.RandomInput(t, 64+i)
		futures[i] = NewFuture()
		v := digest.VariantOf(i%2 == 0)
		submit(t, d, inputs[i], v, futures[i])
	}

	for i := range n {
		got, err := futures[i].Wait(t.Context())
		if err != nil {
			t.Fatalf("job %d: %v", i, err)
		}

		want, err := e.Compute(inputs[i], digest.VariantOf(i%2 == 0))
		if err != nil {
			t.Fatal(err)
		}

		if got != want {
			t.Errorf("job %d: async digest %s does not match sync digest %s", i, got, want)
		}
	}
}

func TestFIFOStartOrder(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan []byte, 16)
	d := spawnDispatcher(t, Options{Workers: 1, Engine: gatedEngine(gate, started)})

	var wg sync.WaitGroup
	for i := range 6 {
		wg.Add(1)
		submit(t, d, []byte{byte(i)}, digest.Fast, Callback(func(_ digest.Digest, err error) {
			defer wg.Done()
			if err != nil {
				t.Error(err)
			}
		}))
	}

	close(gate)
	wg.Wait()
	close(started)

	var order []byte
	for data := range started {
		order = append(order, data[0])
	}

	if !bytes.Equal(order, []byte{0, 1, 2, 3, 4, 5}) {
		t.Errorf("jobs started out of submission order: %v", order)
	}
}

func TestOutOfOrderCompletionAllowed(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan []byte, 1)
	e := digest.Default().WithFunc(digest.Full, "gated", func(data []byte) digest.Digest {
		started <- nil
		<-gate
		return digest.Argon2id(data)
	})
	d := spawnDispatcher(t, Options{Workers: 2, Engine: e})

	full := NewFuture()
	submit(t, d, []byte("a"), digest.Full, full)
	<-started

	fast := NewFuture()
	submit(t, d, []byte("b"), digest.Fast, fast)

	if _, err := fast.Wait(t.Context()); err != nil {
		t.Fatal(err)
	}

	close(gate)

	if _, err := full.Wait(t.Context()); err != nil {
		t.Fatal(err)
	}
}

func TestQueueFull(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan []byte, 1)
	d := spawnDispatcher(t, Options{Workers: 1, MaxPending: 1, Engine: gatedEngine(gate, started)})
	defer close(gate)

	submit(t, d, []byte("running"), digest.Fast, NewFuture())
	<-started
	submit(t, d, []byte("pending"), digest.Fast, NewFuture())

	j, err := NewJob([]byte("rejected"), digest.Fast, NewFuture())
	if err != nil {
		t.Fatal(err)
	}

	if err := d.Submit(j); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("wanted ErrQueueFull, got %v", err)
	}

	if s := j.State(); s != Created {
		t.Errorf("rejected job should still be created, it is %s", s)
	}

	st := d.Stats()
	if st.Busy != 1 || st.Idle != 0 || st.Pending != 1 || st.Workers != 1 {
		t.Errorf("wrong stats: %+v", st)
	}
}

func TestSubmitErrors(t *testing.T) {
	d := New(Options{Workers: 1})

	fut := NewFuture()
	j := submit(t, d, []byte("once"), digest.Fast, fut)

	if err := d.Submit(j); !errors.Is(err, ErrJobReused) {
		t.Errorf("wanted ErrJobReused, got %v", err)
	}

	if err := d.Submit(nil); !errors.Is(err, ErrNilJob) {
		t.Errorf("wanted ErrNilJob, got %v", err)
	}

	if _, err := fut.Wait(t.Context()); err != nil {
		t.Fatal(err)
	}

	d.Close()
	d.Close()

	late, err := NewJob([]byte("late"), digest.Fast, NewFuture())
	if err != nil {
		t.Fatal(err)
	}

	if err := d.Submit(late); !errors.Is(err, ErrClosed) {
		t.Errorf("wanted ErrClosed, got %v", err)
	}
}

func TestNewJob(t *testing.T) {
	if _, err := NewJob([]byte("x"), digest.Fast, nil); !errors.Is(err, ErrNilSink) {
		t.Errorf("wanted ErrNilSink, got %v", err)
	}

	if _, err := NewJob([]byte("x"), digest.Variant(9), NewFuture()); !errors.Is(err, digest.ErrUnknownVariant) {
		t.Errorf("wanted ErrUnknownVariant, got %v", err)
	}

	a, err := NewJob(nil, digest.Full, NewFuture())
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewJob(nil, digest.Full, NewFuture())
	if err != nil {
		t.Fatal(err)
	}

	if a.ID == b.ID {
		t.Error("jobs share an ID")
	}

	if a.State() != Created || a.Len() != 0 || a.Variant != digest.Full {
		t.Errorf("wrong initial job: state=%s len=%d variant=%s", a.State(), a.Len(), a.Variant)
	}
}

func TestJobOwnsInput(t *testing.T) {
	gate := make(chan struct{})
	d := spawnDispatcher(t, Options{Workers: 1, Engine: gatedEngine(gate, nil)})

	buf := []byte("original input")
	want := digest.Keccak256(buf)

	fut := NewFuture()
	submit(t, d, buf, digest.Fast, fut)

	for i := range buf {
		buf[i] = 0
	}
	close(gate)

	got, err := fut.Wait(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	if got != want {
		t.Error("job read the caller's buffer after it was handed over")
	}
}

func TestEngineFaultResolvesSink(t *testing.T) {
	e := digest.Default().WithFunc(digest.Fast, "explodes", func([]byte) digest.Digest {
		panic("boom")
	})
	d := spawnDispatcher(t, Options{Workers: 1, Engine: e})

	fut := NewFuture()
	submit(t, d, []byte("x"), digest.Fast, fut)

	got, err := fut.Wait(t.Context())
	if !errors.Is(err, digest.ErrEngineFault) {
		t.Fatalf("wanted ErrEngineFault, got %v", err)
	}

	if got != (digest.Digest{}) {
		t.Error("failed job delivered a non-zero digest")
	}
}

func TestSinkFaults(t *testing.T) {
	faults := captureFaults(t)
	d := spawnDispatcher(t, Options{Workers: 1})

	sinkErr := errors.New("sink is broken")

	for _, tt := range []struct {
		name string
		sink Sink
		want error
	}{
		{
			name: "sink returns error",
			sink: SinkFunc(func(Result) error { return sinkErr }),
			want: sinkErr,
		},
		{
			name: "sink panics",
			sink: Callback(func(digest.Digest, error) { panic(sinkErr) }),
			want: sinkErr,
		},
		{
			name: "sink panics with a non-error",
			sink: Callback(func(digest.Digest, error) { panic("sink is broken") }),
			want: ErrSinkFault,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			j := submit(t, d, []byte(tt.name), digest.Fast, tt.sink)

			select {
			case err := <-faults:
				if !errors.Is(err, ErrSinkFault) || !errors.Is(err, tt.want) {
					t.Errorf("wrong fault: %v", err)
				}

				var sf *SinkFault
				if !errors.As(err, &sf) || sf.JobID != j.ID {
					t.Errorf("fault does not name job %s: %v", j.ID, err)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("sink fault was never reported")
			}
		})
	}

	// the worker that ran the faulty sinks is still serving jobs
	fut := NewFuture()
	submit(t, d, []byte("after"), digest.Fast, fut)
	if _, err := fut.Wait(t.Context()); err != nil {
		t.Fatal(err)
	}
}

func TestCloseDrains(t *testing.T) {
	d := New(Options{Workers: 1})

	futures := make([]*Future, 8)
	for i := range futures {
		futures[i] = NewFuture()
		submit(t, d, []byte{byte(i)}, digest.Fast, futures[i])
	}

	d.Close()

	for i, fut := range futures {
		res, ok := fut.Result()
		if !ok {
			t.Errorf("job %d was not resolved by Close", i)
			continue
		}
		if want := digest.Keccak256([]byte{byte(i)}); res.Digest != want {
			t.Errorf("job %d: got %s, want %s", i, res.Digest, want)
		}
	}
}

func TestFuture(t *testing.T) {
	fut := NewFuture()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := fut.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("wanted context.Canceled, got %v", err)
	}

	want := digest.Keccak256([]byte("x"))
	if err := fut.Complete(Result{Digest: want}); err != nil {
		t.Fatal(err)
	}

	if err := fut.Complete(Result{Err: errors.New("second")}); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("wanted ErrAlreadyResolved, got %v", err)
	}

	select {
	case <-fut.Done():
	default:
		t.Fatal("Done is not closed after Complete")
	}

	got, err := fut.Wait(t.Context())
	if err != nil || got != want {
		t.Errorf("second Complete overwrote the result: %s, %v", got, err)
	}
}

func TestDefaultWorkers(t *testing.T) {
	d := spawnDispatcher(t, Options{})
	if st := d.Stats(); st.Workers < 1 || st.Idle != st.Workers {
		t.Errorf("wrong default stats: %+v", st)
	}
}
