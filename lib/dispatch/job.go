// Package dispatch runs hash jobs on a pool of background workers and delivers
// each result to the job's completion sink exactly once.
package dispatch

import (
	"bytes"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/TecharoHQ/powhash/lib/digest"
	"github.com/google/uuid"
)

var (
	ErrNilSink   = errors.New("dispatch: job needs a completion sink")
	ErrJobReused = errors.New("dispatch: job was already submitted")
)

//go:generate go tool stringer -type=State

// State is the lifecycle position of a Job. Jobs only move forward:
// Created -> Queued -> Running -> Completed.
type State int32

const (
	Created State = iota
	Queued
	Running
	Completed
)

// Job is one asynchronous hash request. It owns a private copy of its input
// from construction until the engine returns, so the caller is free to reuse
// its buffer as soon as NewJob returns.
type Job struct {
	ID          string
	Variant     digest.Variant
	SubmittedAt time.Time

	data  []byte
	size  int
	sink  Sink
	state atomic.Int32
}

// NewJob packages data, v and sink into a Job in the Created state.
func NewJob(data []byte, v digest.Variant, sink Sink) (*Job, error) {
	if sink == nil {
		return nil, ErrNilSink
	}

	if err := v.Valid(); err != nil {
		return nil, err
	}

	data = bytes.Clone(data)
	if data == nil {
		data = []byte{}
	}

	return &Job{
		ID:      uuid.Must(uuid.NewV7()).String(),
		Variant: v,
		data:    data,
		size:    len(data),
		sink:    sink,
	}, nil
}

// State returns the job's current state. It is safe to call from any
// goroutine.
func (j *Job) State() State {
	return State(j.state.Load())
}

// Len returns the size of the job's input in bytes.
func (j *Job) Len() int {
	return j.size
}

func (j *Job) advance(from, to State) error {
	if !j.state.CompareAndSwap(int32(from), int32(to)) {
		return fmt.Errorf("dispatch: job %s can't move from %s to %s, it is %s", j.ID, from, to, j.State())
	}
	return nil
}

// run computes the job's digest and releases the input buffer.
func (j *Job) run(e *digest.Engine) Result {
	d, err := e.Compute(j.data, j.Variant)
	j.data = nil
	return Result{Digest: d, Err: err}
}
