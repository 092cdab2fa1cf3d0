package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a conversion job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusParsing    JobStatus = "parsing"
	StatusRendering  JobStatus = "rendering"
	StatusWriting    JobStatus = "writing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusDupSkipped JobStatus = "duplicate_skipped"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusDupSkipped
}

// Job tracks the state of a single file conversion.
type Job struct {
	mu sync.Mutex

	ID         string `json:"job_id"`
	Filename   string `json:"filename"`
	OutputPath string `json:"output_path,omitempty"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Questions   int    `json:"questions"`
	DuplicateOf string `json:"duplicate_of,omitempty"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	result   []byte
	errors   []string
}

// NewJob creates a queued job for the given file contents. An empty
// outputPath keeps the result in memory.
func NewJob(filename, outputPath string, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:          uuid.NewString(),
		Filename:    filename,
		OutputPath:  outputPath,
		Status:      StatusQueued,
		Phase:       "queued",
		ContentHash: ContentHashHex(data),
		CreatedAt:   now,
		UpdatedAt:   now,
		fileData:    data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction. It
// also remembers which job first claimed each content hash.
type JobStore struct {
	mu     sync.Mutex
	jobs   map[string]*Job
	hashes map[string]string
	ttl    time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs:   make(map[string]*Job),
		hashes: make(map[string]string),
		ttl:    ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// ClaimHash records id as the owner of hash. If another job already owns
// it, that job's ID is returned with false.
func (s *JobStore) ClaimHash(hash, id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.hashes[hash]; ok && owner != id {
		return owner, false
	}
	s.hashes[hash] = id
	return id, true
}

// ReleaseHash drops the claim so a later job with the same content is
// converted again. Failed jobs release their claim.
func (s *JobStore) ReleaseHash(hash, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hashes[hash] == id {
		delete(s.hashes, hash)
	}
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated, hash := job.UpdatedAt, job.ContentHash
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
			if s.hashes[hash] == id {
				delete(s.hashes, hash)
			}
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.UpdatedAt = time.Now()
}

// MarkDuplicate finishes the job as a duplicate of another job.
func (j *Job) MarkDuplicate(ownerID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.DuplicateOf = ownerID
	j.Status = StatusDupSkipped
	j.Phase = "dedup"
	j.fileData = nil
	j.UpdatedAt = time.Now()
}

// SetResult stores the serialized document and the number of questions in it.
func (j *Job) SetResult(data []byte, questions int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = data
	j.Questions = questions
	j.UpdatedAt = time.Now()
}

// Result returns the serialized document, if the job kept one in memory.
func (j *Job) Result() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// releaseInput drops the raw bytes once the job no longer needs them.
func (j *Job) releaseInput() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Filename    string    `json:"filename"`
	OutputPath  string    `json:"output_path,omitempty"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Questions   int       `json:"questions"`
	DuplicateOf string    `json:"duplicate_of,omitempty"`
	ContentHash string    `json:"content_hash"`
	Errors      []string  `json:"errors"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.errors))
	copy(errs, j.errors)
	return JobSnapshot{
		ID:          j.ID,
		Filename:    j.Filename,
		OutputPath:  j.OutputPath,
		Status:      j.Status,
		Phase:       j.Phase,
		Questions:   j.Questions,
		DuplicateOf: j.DuplicateOf,
		ContentHash: j.ContentHash,
		Errors:      errs,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
