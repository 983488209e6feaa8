package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clinidocs/fieldmapper/internal/common"
	"github.com/clinidocs/fieldmapper/internal/extract"
	"github.com/clinidocs/fieldmapper/internal/patterns"
	"github.com/clinidocs/fieldmapper/internal/quality"
	"github.com/clinidocs/fieldmapper/internal/recognition"
	"github.com/clinidocs/fieldmapper/internal/reconcile"
	"github.com/clinidocs/fieldmapper/internal/relations"
	"github.com/clinidocs/fieldmapper/internal/template"
	"github.com/clinidocs/fieldmapper/internal/validation"
)

// Structure summarizes how the raw text was obtained.
type Structure struct {
	Method    string
	Score     float64 // extraction quality in [0,100]
	Pages     int
	Escalated bool
	TextBytes int
}

// Metadata carries run bookkeeping.
type Metadata struct {
	RunID       uuid.UUID
	Timestamp   time.Time
	Duration    time.Duration
	ContentHash string
	Template    string
	CacheHit    bool
}

// FinalReport is the single output object consumers read. They never reach
// back into engine internals.
type FinalReport struct {
	Structure  Structure
	Fields     map[string]reconcile.Field
	Unresolved []reconcile.Conflict
	Validation validation.Result
	Quality    quality.Report
	Metadata   Metadata
	Error      *common.ProcessError // set when a stage failed; report is still complete
}

// IsValid reports whether the document processed cleanly and validated.
func (r *FinalReport) IsValid() bool {
	return r.Error == nil && r.Validation.Valid
}

// clone copies the report one level deep: the maps and slices callers are
// given are never shared with the cached entry, so mutating a returned report
// cannot corrupt later cache hits.
func (r *FinalReport) clone() *FinalReport {
	cp := *r
	if r.Fields != nil {
		cp.Fields = make(map[string]reconcile.Field, len(r.Fields))
		for k, v := range r.Fields {
			cp.Fields[k] = v
		}
	}
	cp.Unresolved = append([]reconcile.Conflict(nil), r.Unresolved...)
	cp.Validation.Stages = append([]validation.StageResult(nil), r.Validation.Stages...)
	if r.Validation.PerField != nil {
		cp.Validation.PerField = make(map[string]validation.FieldResult, len(r.Validation.PerField))
		for k, v := range r.Validation.PerField {
			cp.Validation.PerField[k] = v
		}
	}
	if r.Quality.Fields != nil {
		cp.Quality.Fields = make(map[string]quality.FieldQuality, len(r.Quality.Fields))
		for k, v := range r.Quality.Fields {
			cp.Quality.Fields[k] = v
		}
	}
	cp.Quality.Issues = append([]string(nil), r.Quality.Issues...)
	cp.Quality.Recommendations = append([]string(nil), r.Quality.Recommendations...)
	return &cp
}

// Coordinator orchestrates the full chain: extraction selection, pattern
// detection, reconciliation, conflict resolution, validation, and quality
// scoring. Its outward contract is "never raises": every failure comes back
// inside the report so one bad document cannot abort a batch.
type Coordinator struct {
	cfg        *common.Config
	selector   *extract.Selector
	detector   *patterns.Detector
	reconciler *reconcile.Reconciler
	resolver   *reconcile.Resolver
	relMgr     *relations.Manager
	pipeline   *validation.Pipeline
	quality    *quality.Detector
	cache      *resultCache
	stats      *Stats
	logger     *slog.Logger
}

// New wires a Coordinator from configuration. The configuration object is
// explicit and scoped to the batch run; nothing here consults process-wide
// state.
func New(cfg *common.Config, logger *slog.Logger) (*Coordinator, error) {
	if cfg == nil {
		cfg = common.LoadConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	lib := patterns.DefaultLibrary()
	if cfg.Patterns.TablePath != "" {
		loaded, err := patterns.LoadLibrary(cfg.Patterns.TablePath)
		if err != nil {
			return nil, fmt.Errorf("load pattern tables: %w", err)
		}
		lib = loaded
	}

	var recognizer recognition.Service
	if cfg.Recognition.Endpoint != "" {
		recognizer = recognition.NewHTTPService(cfg.Recognition, logger)
	}

	cache, err := newResultCache(cfg.Cache.Size)
	if err != nil {
		return nil, common.WrapError(err, "build result cache")
	}

	relMgr := relations.NewManager(logger)
	return &Coordinator{
		cfg:        cfg,
		selector:   extract.NewSelector(cfg.Extraction, extract.DefaultStrategies(cfg.Extraction, nil), recognizer, logger),
		detector:   patterns.NewDetector(lib, logger),
		reconciler: reconcile.NewReconciler(logger),
		resolver:   reconcile.NewResolver(logger),
		relMgr:     relMgr,
		pipeline:   validation.NewPipeline(relMgr, logger),
		quality:    quality.NewDetector(logger),
		cache:      cache,
		stats:      &Stats{},
		logger:     logger,
	}, nil
}

// NewWithSelector is New with the extraction selector swapped out; tests use
// it to avoid running external binaries.
func NewWithSelector(cfg *common.Config, selector *extract.Selector, logger *slog.Logger) (*Coordinator, error) {
	c, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}
	c.selector = selector
	return c, nil
}

// Stats exposes the accumulated run statistics.
func (c *Coordinator) Stats() Snapshot {
	return c.stats.Snapshot()
}

// Process runs the full pipeline for one document. It always returns a
// report, never an error: unexpected internal faults are recovered and
// surfaced as critical_error entries.
func (c *Coordinator) Process(ctx context.Context, doc extract.Document, schema *template.Schema) (report *FinalReport) {
	start := time.Now()
	runID := uuid.New()
	ctx = common.WithRunID(ctx, runID.String())

	report = &FinalReport{
		Metadata: Metadata{RunID: runID, Timestamp: start.UTC(), Template: schema.Name},
	}
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("coordinator.panic", "run_id", runID, "panic", rec)
			report.Error = common.NewProcessError(common.KindCriticalError, "coordinator",
				fmt.Sprintf("internal fault: %v", rec), nil)
			c.stats.recordFailure()
		}
		report.Metadata.Duration = time.Since(start)
	}()

	hash, err := contentHash(doc)
	if err != nil {
		c.logger.Warn("coordinator.hash_failed", "run_id", runID, "error", err)
	} else {
		report.Metadata.ContentHash = hash
		ctx = common.WithContentHash(ctx, hash)
		if cached, ok := c.cache.get(hash + "|" + schema.Fingerprint()); ok {
			c.stats.recordCacheHit()
			c.logger.Info("coordinator.cache_hit", "run_id", runID, "hash", hash)
			hit := cached.clone()
			hit.Metadata.RunID = runID
			hit.Metadata.Timestamp = start.UTC()
			hit.Metadata.CacheHit = true
			return hit
		}
	}

	// 1) extraction selection
	selected, err := c.selector.Select(ctx, doc)
	if err != nil {
		report.Error = asProcessError(err, "extraction")
		report.Validation = validation.Result{Valid: false}
		c.stats.recordFailure()
		c.logger.Error("coordinator.extraction_failed", "run_id", runID, "error", err)
		return report
	}
	report.Structure = Structure{
		Method:    selected.Method,
		Score:     selected.Score,
		Pages:     selected.Pages,
		Escalated: selected.Escalated,
		TextBytes: len(selected.Text),
	}

	// 2) pattern detection, with declared formats as hints
	cands := c.detector.DetectAll(selected.Text, c.detector.RekeyHints(formatHints(schema)))

	// 3) reconciliation
	outcome := c.reconciler.Reconcile(cands, schema)

	// 4) conflict resolution
	resolution := c.resolver.Resolve(outcome.Conflicts, outcome.Fields, schema)
	report.Unresolved = resolution.Unresolved

	// 5) validation
	relset := c.relMgr.Analyze(schema)
	report.Validation = c.pipeline.Run(resolution.Fields, schema, relset)
	report.Fields = validation.MarkValidated(resolution.Fields, report.Validation)

	// 6) quality scoring
	report.Quality = c.quality.Analyze(report.Fields, schema)

	if hash != "" {
		// duration is settled before the entry is stored; the deferred write
		// only touches the caller's copy
		report.Metadata.Duration = time.Since(start)
		c.cache.put(hash+"|"+schema.Fingerprint(), report.clone())
	}
	c.stats.recordSuccess(report.Quality.Aggregate)

	c.logger.Info("coordinator.done",
		"run_id", runID,
		"method", selected.Method,
		"valid", report.Validation.Valid,
		"quality", fmt.Sprintf("%.3f", report.Quality.Aggregate),
		"unresolved", len(report.Unresolved),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return report
}

// formatHints collects declared formats per field, typed so the detector can
// route each one to the pattern labels able to produce its candidates.
func formatHints(schema *template.Schema) map[string]patterns.FieldHint {
	hints := map[string]patterns.FieldHint{}
	for _, name := range schema.FieldNames() {
		spec, _ := schema.Spec(name)
		if spec.Format != "" {
			hints[name] = patterns.FieldHint{Format: spec.Format, Type: spec.Type}
		}
	}
	if len(hints) == 0 {
		return nil
	}
	return hints
}

func asProcessError(err error, stage string) *common.ProcessError {
	var pe *common.ProcessError
	if errors.As(err, &pe) {
		return pe
	}
	return common.NewProcessError(common.KindOf(err), stage, err.Error(), err)
}
