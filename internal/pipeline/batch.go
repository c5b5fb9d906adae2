package pipeline

import (
	"context"
	"fmt"

	"github.com/banshee-data/pothole.report/internal/report"
)

// BatchResult is the outcome of one job in a batch.
type BatchResult struct {
	Job    Job
	Report *report.Report
	Err    error
}

// RunBatch processes jobs in order. A failing job does not stop the batch;
// cancelling ctx marks the remaining jobs as skipped.
func (p *Pipeline) RunBatch(ctx context.Context, jobs []Job) []BatchResult {
	results := make([]BatchResult, 0, len(jobs))
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			results = append(results, BatchResult{Job: job, Err: fmt.Errorf("skipped: %w", err)})
			continue
		}
		diagf("batch %d/%d: %s", i+1, len(jobs), job.Video)
		r, err := p.Run(ctx, job)
		if err != nil {
			opsf("batch job %s failed: %v", job.Video, err)
		}
		results = append(results, BatchResult{Job: job, Report: r, Err: err})
	}
	return results
}

// Failed returns the number of results carrying an error.
func Failed(results []BatchResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
