package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/hrquiz/internal/quiz"
	"github.com/dgallion1/hrquiz/internal/xmlout"
)

// Worker processes a single conversion job.
type Worker struct {
	conv *Converter
	jobs *JobStore
	log  *slog.Logger
}

func NewWorker(conv *Converter, jobs *JobStore, log *slog.Logger) *Worker {
	return &Worker{conv: conv, jobs: jobs, log: log}
}

// Process runs the full conversion pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	// Phase 0: Dedup check
	if owner, ok := w.jobs.ClaimHash(job.ContentHash, job.ID); !ok {
		log.Info("duplicate input, skipping", "duplicate_of", owner)
		job.MarkDuplicate(owner)
		return
	}
	defer job.releaseInput()

	start := time.Now()
	phase, err := w.run(ctx, job, log)
	w.conv.Stats().Observe(start, err)
	if err != nil {
		log.Error("conversion failed", "phase", phase, "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, phase)
		w.jobs.ReleaseHash(job.ContentHash, job.ID)
		return
	}
	job.SetStatus(StatusCompleted, "done")
}

// run executes the parse, render and write phases. On error it reports
// the phase that failed.
func (w *Worker) run(ctx context.Context, job *Job, log *slog.Logger) (string, error) {
	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	text, err := w.conv.Load(job.FileData(), job.Filename)
	if err != nil {
		return "parsing", fmt.Errorf("load: %w", err)
	}
	root, err := w.conv.Parse(ctx, text)
	if err != nil {
		return "parsing", err
	}
	questions := len(root.Get(quiz.KindItem))
	log.Info("decomposed document", "questions", questions)

	// Phase 2: Render
	job.SetStatus(StatusRendering, "rendering")
	data, err := w.conv.Render(root)
	if err != nil {
		return "rendering", err
	}

	// Phase 3: Write
	job.SetStatus(StatusWriting, "writing")
	if job.OutputPath == "" {
		job.SetResult(data, questions)
	} else {
		if err := xmlout.WriteBytes(job.OutputPath, data); err != nil {
			return "writing", err
		}
		job.SetResult(nil, questions)
	}
	log.Info("conversion complete", "questions", questions, "bytes", len(data))
	return "", nil
}
