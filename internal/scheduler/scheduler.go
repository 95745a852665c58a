// Package scheduler runs bounded-concurrency page explanation jobs and
// tracks their progress. It guarantees at most one active run per document.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unitutor/pagetutor/internal/ai"
	"github.com/unitutor/pagetutor/internal/cache"
	"github.com/unitutor/pagetutor/internal/render"
	"github.com/unitutor/pagetutor/internal/repair"
	"github.com/unitutor/pagetutor/pkg/models"
)

var (
	// ErrRunActive is returned when a run is already in flight for the
	// document. Callers retry after it finishes; there is no queue.
	ErrRunActive = errors.New("a processing run is already active for this document")

	ErrInvalidPages = errors.New("invalid page selection")
)

// Config bounds the scheduler's external calls.
type Config struct {
	Workers          int
	RenderTimeout    time.Duration
	InferenceTimeout time.Duration
}

// Scheduler owns all runs. Handlers talk to it through Schedule, Status and
// PageState; nothing else may touch run state.
type Scheduler struct {
	provider models.AIProvider
	renderer render.Renderer
	cache    *cache.ExplanationCache
	cfg      Config

	mu   sync.Mutex
	runs map[string]*run // latest run per document, terminal runs included
}

// New creates a Scheduler.
func New(provider models.AIProvider, renderer render.Renderer, ec *cache.ExplanationCache, cfg Config) *Scheduler {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Scheduler{
		provider: provider,
		renderer: renderer,
		cache:    ec,
		cfg:      cfg,
		runs:     make(map[string]*run),
	}
}

// Schedule starts a run covering the given pages. It returns ErrRunActive if
// a non-terminal run exists for the document; the check and the registration
// happen under one lock so two near-simultaneous calls cannot both win.
func (s *Scheduler) Schedule(ctx context.Context, doc *models.Document, pages []int, mcfg models.ModelConfig) (Snapshot, error) {
	selected, err := normalizePages(pages, doc.TotalPages)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	if existing, ok := s.runs[doc.ID]; ok && !existing.terminal() {
		s.mu.Unlock()
		return Snapshot{}, ErrRunActive
	}
	r := newRun(doc.ID, selected)
	s.runs[doc.ID] = r
	s.mu.Unlock()

	slog.Info("run scheduled",
		"document_id", doc.ID,
		"run_id", r.id,
		"pages", len(selected),
		"workers", s.cfg.Workers,
	)

	// The run outlives the scheduling request.
	go s.execute(context.Background(), r, doc, selected, mcfg)

	return r.snapshot(), nil
}

// Status returns a snapshot of the current or most recently completed run
// for the document. It is a pure read; safe to poll at any interval.
func (s *Scheduler) Status(documentID string) (Snapshot, bool) {
	s.mu.Lock()
	r, ok := s.runs[documentID]
	s.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return r.snapshot(), true
}

// PageState returns the job state for one page of the document's latest run.
func (s *Scheduler) PageState(documentID string, page int) (models.PageJob, bool) {
	snap, ok := s.Status(documentID)
	if !ok {
		return models.PageJob{}, false
	}
	job, ok := snap.Pages[page]
	return job, ok
}

// execute runs the page workers and finalizes the run. It recovers from
// panics so a run can never wedge in a non-terminal state.
func (s *Scheduler) execute(ctx context.Context, r *run, doc *models.Document, pages []int, mcfg models.ModelConfig) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic in run execution", "error", rec, "run_id", r.id)
			r.failRemaining(fmt.Sprintf("panic: %v", rec))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for _, page := range pages {
		g.Go(func() error {
			s.processPage(gctx, r, doc, page, mcfg)
			// Page failures are recorded on the job, never propagated:
			// sibling jobs must keep running.
			return nil
		})
	}
	_ = g.Wait()

	snap := r.snapshot()
	slog.Info("run finished",
		"document_id", doc.ID,
		"run_id", r.id,
		"status", snap.Status,
		"processed", snap.Processed,
	)
}

func (s *Scheduler) processPage(ctx context.Context, r *run, doc *models.Document, page int, mcfg models.ModelConfig) {
	r.markProcessing(page)

	renderCtx, cancel := context.WithTimeout(ctx, s.cfg.RenderTimeout)
	source, err := s.renderer.Render(renderCtx, doc, page)
	cancel()
	if err != nil {
		r.fail(page, fmt.Sprintf("rendering page: %v", err))
		return
	}

	prompt := ai.BuildExplainPrompt(page, s.previousSummaries(ctx, r, doc.ID, page))

	inferCtx, cancel := context.WithTimeout(ctx, s.cfg.InferenceTimeout)
	raw, err := s.provider.Analyze(inferCtx, models.AnalysisRequest{
		Prompt:   prompt,
		Source:   source.Data,
		MIMEType: source.MIMEType,
		Config:   mcfg,
	})
	cancel()
	if err != nil {
		r.fail(page, fmt.Sprintf("model analysis: %v", err))
		return
	}

	content, summary, err := repair.ParseExplanation(raw)
	if err != nil {
		r.fail(page, fmt.Sprintf("parsing model output: %v", err))
		return
	}

	rec := &models.ExplanationRecord{
		DocumentID: doc.ID,
		PageNumber: page,
		Content:    content,
		Summary:    summary,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.cache.Put(ctx, rec); err != nil {
		r.fail(page, fmt.Sprintf("storing explanation: %v", err))
		return
	}

	r.complete(page)
	slog.Debug("page completed", "document_id", doc.ID, "page", page)
}

// previousSummaries collects summaries of lower-numbered pages already
// completed in this run, giving later pages some narrative continuity.
// Pages finish in arbitrary order, so this is best-effort by design of the
// concurrency model.
func (s *Scheduler) previousSummaries(ctx context.Context, r *run, documentID string, page int) []string {
	snap := r.snapshot()
	var done []int
	for p, job := range snap.Pages {
		if p < page && job.Status == models.PageStatusCompleted {
			done = append(done, p)
		}
	}
	sort.Ints(done)

	var summaries []string
	for _, p := range done {
		rec, found, err := s.cache.Get(ctx, documentID, p)
		if err != nil || !found || rec.Summary == "" {
			continue
		}
		summaries = append(summaries, fmt.Sprintf("[page %d] %s", p, rec.Summary))
	}
	return summaries
}

// normalizePages validates, dedups and sorts the requested page numbers.
func normalizePages(pages []int, totalPages int) ([]int, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no pages selected", ErrInvalidPages)
	}

	seen := make(map[int]bool, len(pages))
	var out []int
	for _, p := range pages {
		if p < 1 || p > totalPages {
			return nil, fmt.Errorf("%w: page %d out of range (1-%d)", ErrInvalidPages, p, totalPages)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Ints(out)
	return out, nil
}
