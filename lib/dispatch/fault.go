package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrSinkFault = errors.New("dispatch: completion sink failed")

	sinkFaults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "powhash_sink_faults_total",
		Help: "Number of completion sinks that returned an error or panicked",
	})

	faultHandler atomic.Pointer[FaultHandler]
)

// SinkFault is a completion sink that errored or panicked while receiving its
// job's result.
type SinkFault struct {
	JobID string
	Err   error
}

func (sf *SinkFault) Error() string {
	return fmt.Sprintf("dispatch: completion sink for job %s failed: %v", sf.JobID, sf.Err)
}

func (sf *SinkFault) Unwrap() []error {
	return []error{ErrSinkFault, sf.Err}
}

// FaultHandler receives failures that have no caller left to return to.
type FaultHandler func(error)

// SetFaultHandler installs the process-wide handler for unhandled failures and
// returns the previous one. A nil handler restores the default, which logs
// the failure at error level.
func SetFaultHandler(h FaultHandler) FaultHandler {
	var prev *FaultHandler
	if h == nil {
		prev = faultHandler.Swap(nil)
	} else {
		prev = faultHandler.Swap(&h)
	}

	if prev == nil {
		return nil
	}
	return *prev
}

func reportFault(err error) {
	sinkFaults.Inc()

	if h := faultHandler.Load(); h != nil {
		(*h)(err)
		return
	}

	slog.Error("unhandled failure", "err", err)
}
