// Package job persists batch jobs as JSON records in the key-value store.
package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/kailas-cloud/trustdesk/internal/db"
	"github.com/kailas-cloud/trustdesk/internal/domain"
	domjob "github.com/kailas-cloud/trustdesk/internal/domain/job"
)

// store is the consumer interface for job persistence (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements the job store. Read-modify-write cycles are serialized
// within the process; there is a single orchestrator per job id.
type Repo struct {
	store  store
	prefix string
	now    func() time.Time

	mu sync.Mutex
}

// New creates a job repository. prefix namespaces keys, e.g. "trustdesk:".
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the time source.
func (r *Repo) WithClock(now func() time.Time) *Repo {
	r.now = now
	return r
}

// Create persists a new pending job with a time-ordered unique id.
func (r *Repo) Create(ctx context.Context, questions []domjob.Question, instructions string) (*domjob.Job, error) {
	now := r.now()
	uid, err := ksuid.NewRandomWithTime(now)
	if err != nil {
		return nil, fmt.Errorf("generate job id: %w", err)
	}

	j := domjob.New("job_"+uid.String(), questions, instructions, now)
	if err := r.save(ctx, j); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return j, nil
}

// Get loads a job. Missing jobs return domain.ErrNotFound.
func (r *Repo) Get(ctx context.Context, id string) (*domjob.Job, error) {
	return r.load(ctx, id)
}

// Update applies a patch and refreshes UpdatedAt. Status changes must move forward.
func (r *Repo) Update(ctx context.Context, id string, p domjob.Patch) (*domjob.Job, error) {
	return r.mutate(ctx, id, func(j *domjob.Job, now time.Time) error {
		if p.Status != "" {
			return j.Transition(p.Status, p.Error, now)
		}
		if p.Error != "" {
			j.Error = p.Error
		}
		j.UpdatedAt = now
		return nil
	})
}

// AppendResult appends one question result. It is the only writer of
// progress and of the automatic completion.
func (r *Repo) AppendResult(ctx context.Context, id string, res domjob.Result) (*domjob.Job, error) {
	return r.mutate(ctx, id, func(j *domjob.Job, now time.Time) error {
		return j.AppendResult(res, now)
	})
}

// List returns every stored job. Records that fail to decode are skipped.
func (r *Repo) List(ctx context.Context) ([]*domjob.Job, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"job:*")
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	jobs := make([]*domjob.Job, 0, len(keys))
	for _, key := range keys {
		j, err := r.load(ctx, strings.TrimPrefix(key, r.prefix+"job:"))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				continue
			}
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// Cleanup deletes every job last updated strictly before now-retention and
// returns how many were removed. Each check-and-delete holds the write lock,
// so a job being updated is never collected.
func (r *Repo) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"job:*")
	if err != nil {
		return 0, fmt.Errorf("cleanup scan: %w", err)
	}

	deleted := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		ok, err := r.deleteIfExpired(ctx, key, retention)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted++
		}
	}
	return deleted, nil
}

func (r *Repo) deleteIfExpired(ctx context.Context, key string, retention time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("cleanup get %s: %w", key, err)
	}

	var j domjob.Job
	if err := json.Unmarshal(data, &j); err != nil {
		// undecodable records can never be served, drop them
		return true, r.store.Del(ctx, key)
	}
	if !j.UpdatedAt.Before(r.now().Add(-retention)) {
		return false, nil
	}
	if err := r.store.Del(ctx, key); err != nil {
		return false, fmt.Errorf("cleanup del %s: %w", key, err)
	}
	return true, nil
}

func (r *Repo) mutate(
	ctx context.Context, id string, fn func(j *domjob.Job, now time.Time) error,
) (*domjob.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(j, r.now()); err != nil {
		return nil, fmt.Errorf("job %s: %w", id, err)
	}
	if err := r.save(ctx, j); err != nil {
		return nil, fmt.Errorf("save job %s: %w", id, err)
	}
	return j, nil
}

func (r *Repo) load(ctx context.Context, id string) (*domjob.Job, error) {
	data, err := r.store.Get(ctx, r.key(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	var j domjob.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &j, nil
}

func (r *Repo) save(ctx context.Context, j *domjob.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return r.store.Set(ctx, r.key(j.ID), data)
}

func (r *Repo) key(id string) string {
	return fmt.Sprintf("%sjob:%s", r.prefix, id)
}
