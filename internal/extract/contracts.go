package extract

import (
	"context"
	"time"
)

// Document is a handle to one source document. Exactly one of Path or Text is
// set: Path points at a PDF/image/tabular file, Text carries inline raw text.
type Document struct {
	Path   string
	Text   string
	Format string // constants.PDF | IMAGE | TXT | TABULAR
}

// Extraction is the output of a single strategy run.
type Extraction struct {
	Text        string
	Method      string  // "pdf-text" | "pdf-ocr" | "image-ocr" | "plain-text" | "tabular" | "recognition"
	BaseQuality float64 // method prior in [0,100]
	Pages       int
	Duration    time.Duration
	Warnings    []string
}

// Strategy runs one independent extraction approach against a document.
type Strategy interface {
	ID() string
	// Supports reports whether the strategy can handle the document format.
	Supports(format string) bool
	Extract(ctx context.Context, doc Document) (Extraction, error)
}

// Selected is the arbitration outcome: the winning extraction and its
// content-derived quality score in [0,100].
type Selected struct {
	Extraction
	Score     float64
	Escalated bool // true when the recognition service superseded a strategy
}
