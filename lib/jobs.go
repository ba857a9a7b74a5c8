package lib

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/TecharoHQ/powhash/internal"
	"github.com/TecharoHQ/powhash/lib/binding"
	"github.com/TecharoHQ/powhash/lib/digest"
	"github.com/TecharoHQ/powhash/lib/dispatch"
	"github.com/TecharoHQ/powhash/lib/store"
)

// storeTimeout bounds a single job record write made from a worker.
const storeTimeout = 5 * time.Second

type JobState string

const (
	JobQueued    JobState = "queued"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// JobRecord is what GET /api/jobs/{id} returns. The input itself is never
// stored, only its size and fingerprint.
type JobRecord struct {
	ID          string         `json:"id"`
	State       JobState       `json:"state"`
	Variant     digest.Variant `json:"variant"`
	Algorithm   string         `json:"algorithm"`
	Size        int            `json:"size"`
	Fingerprint string         `json:"fingerprint"`
	Digest      *digest.Digest `json:"digest,omitempty"`
	Error       string         `json:"error,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// recordSink resolves a job by overwriting its queued record with the
// outcome. A failed write is returned to the dispatcher, which reports it as a
// sink fault.
type recordSink struct {
	jobs *store.JSON[JobRecord]
	ttl  time.Duration
	rec  JobRecord
}

func (rs *recordSink) Complete(res dispatch.Result) error {
	rec := rs.rec
	now := time.Now()
	rec.CompletedAt = &now

	if res.OK() {
		d := res.Digest
		rec.State = JobCompleted
		rec.Digest = &d
	} else {
		rec.State = JobFailed
		rec.Error = res.Err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	return rs.jobs.Set(ctx, rec.ID, rec, rs.ttl)
}

// SubmitJob queues the request body for hashing and answers 202 with the job
// ID as soon as the job is accepted.
func (s *Server) SubmitJob(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	fast, err := fastParam(r)
	if err != nil {
		respondWithError(w, lg, err)
		return
	}

	data, err := s.readBody(w, r)
	if err != nil {
		respondWithError(w, lg, err)
		return
	}

	v := digest.VariantOf(fast)
	sink := &recordSink{
		jobs: s.jobs,
		ttl:  s.opts.ResultTTL,
	}

	j, err := dispatch.NewJob(data, v, sink)
	if err != nil {
		respondWithError(w, lg, err)
		return
	}

	sink.rec = JobRecord{
		ID:          j.ID,
		State:       JobQueued,
		Variant:     v,
		Algorithm:   s.engine.Algorithm(v),
		Size:        j.Len(),
		Fingerprint: internal.Fingerprint(data),
		SubmittedAt: time.Now(),
	}
	lg = lg.With("job", j.ID, "variant", v, "size", j.Len(), "fingerprint", sink.rec.Fingerprint)

	// The queued record must exist before a worker can overwrite it.
	if err := s.jobs.Set(r.Context(), j.ID, sink.rec, s.opts.ResultTTL); err != nil {
		respondWithError(w, lg, err)
		return
	}

	if err := s.disp.Submit(j); err != nil {
		if err := s.jobs.Delete(context.WithoutCancel(r.Context()), j.ID); err != nil {
			lg.Debug("can't remove record of rejected job", "err", err)
		}
		respondWithError(w, lg, err)
		return
	}

	hashedBytes.WithLabelValues(v.String()).Add(float64(j.Len()))
	lg.Debug("job queued")

	w.Header().Set("Location", r.URL.Path+"/"+j.ID)
	writeJSON(w, lg, http.StatusAccepted, struct {
		ID    string   `json:"id"`
		State JobState `json:"state"`
	}{
		ID:    j.ID,
		State: JobQueued,
	})
}

// GetJob returns the record of a job submitted through SubmitJob.
func (s *Server) GetJob(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		respondWithError(w, lg, &binding.ArgumentError{Position: 1, Reason: "job id must be a UUID"})
		return
	}

	rec, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		respondWithError(w, lg.With("job", id), err)
		return
	}

	writeJSON(w, lg, http.StatusOK, rec)
}
