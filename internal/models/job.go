// -----------------------------------------------------------------------
// Job Model - Immutable-ish job envelope persisted across the queue
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobKind identifies which per-kind fetch routine services a job.
type JobKind string

const (
	JobKindProduct  JobKind = "product"
	JobKindStore    JobKind = "store"
	JobKindCategory JobKind = "category"
)

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Result is the payload produced by a fetch routine, either partial
// (emitted via onProgress) or final (the routine's return value).
type Result struct {
	Data      json.RawMessage `json:"data"`
	IsPartial bool            `json:"isPartial"`
	Timestamp time.Time       `json:"timestamp"`
}

// Job is the orchestrator's unit of work. Once enqueued it is mutated
// only by the orchestrator's dispatch loop.
type Job struct {
	ID             string    `json:"id"`
	NormalizedURL  string    `json:"normalizedUrl"`
	Kind           JobKind   `json:"kind"`
	Status         JobStatus `json:"status"`
	Result         *Result   `json:"result,omitempty"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Attempts       int       `json:"attempts"`
	EphemeralProxy string    `json:"ephemeralProxy,omitempty"`
}

// NewJob creates a pending job for a normalized URL.
func NewJob(normalizedURL string, kind JobKind, ephemeralProxy string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:             uuid.New().String(),
		NormalizedURL:  normalizedURL,
		Kind:           kind,
		Status:         JobStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		EphemeralProxy: ephemeralProxy,
	}
}

// IsLive reports whether the job is still pending or processing, i.e.
// a duplicate enqueue for the same URL should be folded into this one.
func (j *Job) IsLive() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusProcessing
}

// IsTerminal reports whether the job reached completed or failed.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// SetPartial records a mid-flight partial result. A final result is
// never overwritten by a later partial (first-writer-wins on completion).
func (j *Job) SetPartial(data json.RawMessage) {
	if j.Result != nil && !j.Result.IsPartial {
		return
	}
	j.Result = &Result{Data: data, IsPartial: true, Timestamp: time.Now().UTC()}
	j.UpdatedAt = time.Now().UTC()
}

// Complete marks the job completed with a final (non-partial) payload.
func (j *Job) Complete(data json.RawMessage) {
	j.Result = &Result{Data: data, IsPartial: false, Timestamp: time.Now().UTC()}
	j.Status = JobStatusCompleted
	j.Error = ""
	j.UpdatedAt = time.Now().UTC()
}

// Fail marks the job terminally failed with the given error code/message.
func (j *Job) Fail(errMsg string) {
	j.Status = JobStatusFailed
	j.Error = errMsg
	j.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep-enough copy suitable for returning as a read-only
// snapshot across the queue/API boundary.
func (j *Job) Clone() *Job {
	clone := *j
	if j.Result != nil {
		r := *j.Result
		clone.Result = &r
	}
	return &clone
}

// ToJSON serializes the job for persistence.
func (j *Job) ToJSON() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	return data, nil
}

// JobFromJSON deserializes a persisted job record.
func JobFromJSON(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &j, nil
}

// allowedQueryKeys is the fixed allow-list retained by NormalizeURL.
// Everything else is dropped so that tracking/session parameters never
// defeat deduplication or cache lookups.
var allowedQueryKeys = map[string]bool{
	"id":      true,
	"sku":     true,
	"variant": true,
}

// NormalizeURL canonicalizes a URL for deduplication and cache keys:
// lower-case host, strip trailing slash, retain only allow-listed query
// parameters sorted by key. NormalizeURL is idempotent.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url missing scheme or host: %s", raw)
	}

	u.Host = strings.ToLower(u.Host)
	u.Scheme = strings.ToLower(u.Scheme)
	u.Fragment = ""

	u.Path = strings.TrimRight(u.Path, "/")

	q := u.Query()
	kept := url.Values{}
	for k, v := range q {
		if allowedQueryKeys[strings.ToLower(k)] {
			kept[k] = v
		}
	}
	if len(kept) > 0 {
		keys := make([]string, 0, len(kept))
		for k := range kept {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		for i, k := range keys {
			if i > 0 {
				b.WriteByte('&')
			}
			for j, v := range kept[k] {
				if j > 0 {
					b.WriteByte('&')
				}
				b.WriteString(url.QueryEscape(k))
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(v))
			}
		}
		u.RawQuery = b.String()
	} else {
		u.RawQuery = ""
	}

	return u.String(), nil
}
