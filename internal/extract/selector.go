package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/clinidocs/fieldmapper/internal/common"
	"github.com/clinidocs/fieldmapper/internal/recognition"
)

// Selector runs every strategy that supports the document's format, scores
// each non-empty result, and picks the highest. When the best score stays
// below the configured threshold and a recognition service is available, one
// escalation attempt may supersede the selection.
type Selector struct {
	strategies []Strategy
	recognizer recognition.Service // nil disables escalation
	threshold  float64
	timeout    time.Duration
	logger     *slog.Logger
}

func NewSelector(cfg common.ExtractionConfig, strategies []Strategy, recognizer recognition.Service, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.QualityThreshold
	if threshold <= 0 {
		threshold = 80
	}
	timeout := cfg.StrategyTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Selector{
		strategies: strategies,
		recognizer: recognizer,
		threshold:  threshold,
		timeout:    timeout,
		logger:     logger,
	}
}

// DefaultStrategies builds the standard strategy set from configuration.
func DefaultStrategies(cfg common.ExtractionConfig, runner Runner) []Strategy {
	return []Strategy{
		NewPlainTextStrategy(),
		NewPDFTextStrategy(cfg, runner),
		NewPDFRasterStrategy(cfg, runner),
		NewImageOCRStrategy(cfg, runner),
		NewTabularStrategy(),
	}
}

// Select arbitrates between strategies. It returns ErrNoText (wrapped as an
// extraction_failure) when nothing produced text; that is fatal for the
// document, not for the run.
func (s *Selector) Select(ctx context.Context, doc Document) (Selected, error) {
	var best Selected
	ran := 0

	for _, strat := range s.strategies {
		if !strat.Supports(doc.Format) {
			continue
		}
		ran++
		res, err := s.runOne(ctx, strat, doc)
		if err != nil {
			s.logger.Warn("selector.strategy_failed", "strategy", strat.ID(), "error", err)
			continue
		}
		if res.Text == "" {
			s.logger.Debug("selector.strategy_empty", "strategy", strat.ID())
			continue
		}
		score := Score(res.Text, res.BaseQuality)
		s.logger.Debug("selector.scored", "strategy", strat.ID(), "score", score, "bytes", len(res.Text))
		if score > best.Score {
			best = Selected{Extraction: res, Score: score}
		}
	}

	if ran == 0 {
		return Selected{}, common.NewProcessError(common.KindExtractionFailure, "extraction",
			fmt.Sprintf("no strategy supports format %q", doc.Format), common.ErrUnsupported)
	}

	if best.Score < s.threshold && s.recognizer != nil {
		if sup, ok := s.escalate(ctx, doc, best); ok {
			best = sup
		}
	}

	if best.Text == "" {
		return Selected{}, common.NewProcessError(common.KindExtractionFailure, "extraction",
			"all strategies returned empty text", common.ErrNoText)
	}

	s.logger.Info("selector.pick", "method", best.Method, "score", best.Score, "escalated", best.Escalated)
	return best, nil
}

func (s *Selector) runOne(ctx context.Context, strat Strategy, doc Document) (Extraction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return strat.Extract(ctx, doc)
}

// escalate asks the external recognition service for one re-extraction. Any
// error or timeout is treated identically to "no improvement".
func (s *Selector) escalate(ctx context.Context, doc Document, current Selected) (Selected, bool) {
	if doc.Path == "" {
		return current, false
	}
	raw, err := os.ReadFile(doc.Path)
	if err != nil {
		s.logger.Warn("selector.escalate_read_failed", "error", err)
		return current, false
	}

	res, err := s.recognizer.Recognize(ctx, raw)
	if err != nil {
		s.logger.Warn("selector.escalate_failed", "error", err)
		return current, false
	}
	text := Normalize(res.Text)
	if text == "" {
		return current, false
	}

	score := Score(text, res.MeanConfidence()*100)
	if score <= current.Score {
		s.logger.Debug("selector.escalate_no_improvement", "score", score, "current", current.Score)
		return current, false
	}
	s.logger.Info("selector.escalated",
		"score", score,
		"previous", current.Score,
		"hash", common.ContentHashFromContext(ctx),
	)
	return Selected{
		Extraction: Extraction{
			Text:        text,
			Method:      "recognition",
			BaseQuality: res.MeanConfidence() * 100,
			Pages:       current.Pages,
		},
		Score:     score,
		Escalated: true,
	}, true
}
