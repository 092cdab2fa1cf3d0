package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// OutputPath returns the XML path for an input file inside dir. An empty
// dir places the output next to the input.
func OutputPath(input, dir string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + ".xml"
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, base)
}

// RunBatch converts every input file with at most workers conversions in
// flight. Inputs with identical content are converted once; later copies
// finish as duplicate_skipped. Snapshots are returned in input order.
func RunBatch(ctx context.Context, conv *Converter, inputs []string, outDir string, workers int, log *slog.Logger) []JobSnapshot {
	if workers <= 0 {
		workers = 1
	}
	store := NewJobStore(0)
	w := NewWorker(conv, store, log)

	jobs := make([]*Job, len(inputs))
	for i, in := range inputs {
		data, err := readInputFile(conv, in)
		if err != nil {
			job := NewJob(filepath.Base(in), OutputPath(in, outDir), nil)
			job.AddError(err.Error())
			job.SetStatus(StatusFailed, "reading")
			log.Error("read input failed", "filename", in, "error", err)
			jobs[i] = job
			continue
		}
		job := NewJob(filepath.Base(in), OutputPath(in, outDir), data)
		store.Put(job)
		jobs[i] = job
	}

	// Claims are taken in input order so the first copy of a file wins.
	var pending []*Job
	for _, job := range jobs {
		if job.Snapshot().Status.Done() {
			continue
		}
		if owner, ok := store.ClaimHash(job.ContentHash, job.ID); !ok {
			log.Info("duplicate input, skipping", "filename", job.Filename, "duplicate_of", owner)
			job.MarkDuplicate(owner)
			continue
		}
		pending = append(pending, job)
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for _, job := range pending {
		if ctx.Err() != nil {
			job.AddError(ctx.Err().Error())
			job.SetStatus(StatusFailed, "queued")
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(job *Job) {
			defer wg.Done()
			defer func() { <-sem }()
			w.Process(ctx, job)
		}(job)
	}
	wg.Wait()

	out := make([]JobSnapshot, len(jobs))
	for i, job := range jobs {
		out[i] = job.Snapshot()
	}
	return out
}

func readInputFile(conv *Converter, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := conv.ReadInput(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
