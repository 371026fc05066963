package rag

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"BookWormAI/app/ingest"
	"BookWormAI/app/models"
	"BookWormAI/app/store"
)

const (
	DefaultTopK        = 5
	DefaultTemperature = 0.7
)

// Fixed answers for the degraded paths. FallbackNoMaterial is returned
// without ever calling the generation service, so an ungrounded answer can
// never masquerade as a sourced one.
const (
	FallbackNoMaterial = "I couldn't find any relevant material in the indexed books to answer your question."
	FallbackGeneration = "The answer service is unavailable right now. The most relevant passages are listed as sources."
)

// Stage names the step of the query pipeline an error originated from.
type Stage string

const (
	StageEmbedding  Stage = "embedding"
	StageSearching  Stage = "searching"
	StageAssembling Stage = "assembling_context"
	StageGenerating Stage = "generating"
)

type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Orchestrator sequences the query pipeline (embed → search → assemble →
// generate) and the bulk ingestion pipeline. It owns no retries on the query
// path: each call is single-attempt and side-effect-free on failure.
type Orchestrator struct {
	store     store.Store
	model     models.Interface
	engine    Engine
	index     Index
	assembler *Assembler
	retry     RetryPolicy
	workers   int
}

func NewOrchestrator(st store.Store, model models.Interface, engine Engine, assembler *Assembler, retry RetryPolicy, workers int) *Orchestrator {
	if assembler == nil {
		assembler = NewAssembler(0)
	}
	if workers <= 0 {
		workers = 4
	}
	return &Orchestrator{
		store:     st,
		model:     model,
		engine:    engine,
		assembler: assembler,
		retry:     retry,
		workers:   workers,
	}
}

// SetIndex attaches an external search index; ingestion mirrors upserts into
// it from then on.
func (o *Orchestrator) SetIndex(idx Index) { o.index = idx }

func (o *Orchestrator) Query(ctx context.Context, q Query) (*Answer, error) {
	if q.TopK <= 0 {
		q.TopK = DefaultTopK
	}
	if q.Temperature < 0 || q.Temperature > 1 {
		return nil, fmt.Errorf("temperature %.2f out of range [0,1]", q.Temperature)
	}
	if err := q.Filters.Validate(); err != nil {
		return nil, err
	}

	vector, err := o.model.EmbedQuery(ctx, q.Text)
	if err != nil {
		return nil, &StageError{Stage: StageEmbedding, Err: err}
	}

	results, err := o.engine.Search(ctx, vector, q.Filters, q.TopK)
	if err != nil {
		return nil, &StageError{Stage: StageSearching, Err: err}
	}
	if len(results) == 0 {
		// Valid outcome, not a failure: nothing matched the filters.
		log.Printf("ℹ️ No passages matched query %q with filters %+v", q.Text, q.Filters)
		return &Answer{Text: FallbackNoMaterial, QueryText: q.Text}, nil
	}

	contextText, citations := o.assembler.Assemble(results)
	if contextText == NoContextMarker {
		return &Answer{Text: FallbackNoMaterial, QueryText: q.Text}, nil
	}

	answerText, err := o.model.GenerateAnswer(ctx, q.Text, contextText, q.Temperature)
	if err != nil {
		// Retrieval worked; degrade to the fixed message but keep the
		// sources so the caller can still show what was found.
		log.Printf("⚠️ Generation failed for query %q: %v", q.Text, err)
		return &Answer{Text: FallbackGeneration, Sources: citations, QueryText: q.Text},
			&StageError{Stage: StageGenerating, Err: err}
	}

	return &Answer{Text: answerText, Sources: citations, QueryText: q.Text}, nil
}

type IngestOptions struct {
	SkipExisting bool
	MaxItems     int // 0 means no cap
}

type IngestReport struct {
	RunID    string
	Total    int
	Ingested int
	Skipped  int
	Failed   int
	Elapsed  time.Duration
}

var errIngestCap = errors.New("ingest item cap reached")

// Ingest embeds and upserts every page the source produces, with bounded
// concurrency. One bad page never aborts the run; a broken store always
// does. Because passage ids are deterministic and upserts idempotent, an
// interrupted run can simply be restarted with SkipExisting set.
func (o *Orchestrator) Ingest(ctx context.Context, src ingest.Source, opts IngestOptions) (*IngestReport, error) {
	runID := uuid.New().String()
	start := time.Now()
	log.Printf("📚 Ingestion run %s starting (workers=%d skip_existing=%v max_items=%d)",
		runID, o.workers, opts.SkipExisting, opts.MaxItems)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	report := &IngestReport{RunID: runID}
	pages := make(chan ingest.Page)

	var mu sync.Mutex
	var fatal error
	var fatalOnce sync.Once
	fail := func(err error) {
		fatalOnce.Do(func() {
			fatal = err
			cancel()
		})
	}

	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range pages {
				status, err := o.ingestPage(ctx, page, opts.SkipExisting)
				mu.Lock()
				switch status {
				case statusIngested:
					report.Ingested++
				case statusSkipped:
					report.Skipped++
				case statusFailed:
					report.Failed++
				}
				mu.Unlock()
				if err != nil {
					if errors.Is(err, store.ErrStoreUnavailable) {
						fail(err)
					}
					return
				}
			}
		}()
	}

	produced := 0
	srcErr := src.Pages(ctx, func(page ingest.Page) error {
		if opts.MaxItems > 0 && produced >= opts.MaxItems {
			return errIngestCap
		}
		select {
		case pages <- page:
			produced++
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	close(pages)
	wg.Wait()

	report.Total = produced
	report.Elapsed = time.Since(start)

	if fatal != nil {
		log.Printf("❌ Ingestion run %s aborted: %v", runID, fatal)
		return report, fatal
	}
	if srcErr != nil && !errors.Is(srcErr, errIngestCap) && !errors.Is(srcErr, context.Canceled) {
		return report, fmt.Errorf("read source: %w", srcErr)
	}

	log.Printf("✅ Ingestion run %s done: %d ingested, %d skipped, %d failed of %d (%s)",
		runID, report.Ingested, report.Skipped, report.Failed, report.Total, report.Elapsed.Round(time.Millisecond))
	return report, nil
}

type ingestStatus int

const (
	statusNone ingestStatus = iota
	statusIngested
	statusSkipped
	statusFailed
)

func (o *Orchestrator) ingestPage(ctx context.Context, page ingest.Page, skipExisting bool) (ingestStatus, error) {
	p := store.Passage{
		ID:         store.PassageID(page.BookID, page.Language, page.PageNumber),
		BookID:     page.BookID,
		ClassLabel: page.ClassLabel,
		Subject:    page.Subject,
		Language:   page.Language,
		PageNumber: page.PageNumber,
		Text:       page.Text,
	}

	if skipExisting {
		exists, err := o.store.Has(ctx, p.ID)
		if err != nil {
			return statusFailed, err
		}
		if exists {
			return statusSkipped, nil
		}
	}

	var vecs [][]float32
	err := o.retry.Do(ctx, func() error {
		var embErr error
		vecs, embErr = o.model.EmbedPassages(ctx, []string{page.Text})
		return embErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return statusNone, ctx.Err()
		}
		log.Printf("⚠️ Embedding failed for %s page %d, skipping: %v", page.BookID, page.PageNumber, err)
		return statusFailed, nil
	}

	p.Embedding = vecs[0]
	p.CreatedAt = time.Now().UTC()
	if err = o.store.Upsert(ctx, p); err != nil {
		return statusFailed, err
	}

	if o.index != nil {
		// The external index is rebuildable from the store, so a failed
		// mirror write degrades to a warning.
		if err = o.index.Upsert(ctx, []store.Passage{p}); err != nil {
			log.Printf("⚠️ Index upsert failed for %s: %v", p.ID, err)
		}
	}
	return statusIngested, nil
}

type Stats struct {
	TotalPassages int
	Dimension     int
	CorpusTree    string
}

func (o *Orchestrator) Stats(ctx context.Context) (*Stats, error) {
	total, err := o.store.Count(ctx, store.Filters{})
	if err != nil {
		return nil, err
	}
	tree, err := store.CorpusTree(ctx, o.store)
	if err != nil {
		return nil, err
	}
	return &Stats{TotalPassages: total, Dimension: o.store.Dimension(), CorpusTree: tree}, nil
}
