package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/clinidocs/fieldmapper/constants"
	"github.com/clinidocs/fieldmapper/internal/common"
)

// Method priors in [0,100]. A native text layer is trusted more than a
// rasterized OCR pass; inline text needs no extraction at all.
const (
	basePlainText = 95.0
	basePDFText   = 90.0
	baseTabular   = 85.0
	basePDFOCR    = 70.0
	baseImageOCR  = 65.0
)

// PDFTextStrategy extracts the structural text layer with pdftotext.
type PDFTextStrategy struct {
	cfg    common.ExtractionConfig
	runner Runner
}

func NewPDFTextStrategy(cfg common.ExtractionConfig, runner Runner) *PDFTextStrategy {
	if runner == nil {
		runner = execRunner{}
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	return &PDFTextStrategy{cfg: cfg, runner: runner}
}

func (s *PDFTextStrategy) ID() string                  { return "pdf-text" }
func (s *PDFTextStrategy) Supports(format string) bool { return format == constants.PDF }

func (s *PDFTextStrategy) Extract(ctx context.Context, doc Document) (Extraction, error) {
	start := time.Now()
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := s.runner.Run(ctx, s.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", doc.Path, "-")
	if err != nil {
		return Extraction{Method: s.ID(), Warnings: []string{string(errb)}}, fmt.Errorf("pdftotext: %w", err)
	}
	text := string(out)
	// A form-feed \f is used as page separator by default
	pages := 1 + strings.Count(text, "\f")
	return Extraction{
		Text:        Normalize(text),
		Method:      s.ID(),
		BaseQuality: basePDFText,
		Pages:       pages,
		Duration:    time.Since(start),
	}, nil
}

// PDFRasterStrategy renders PDF pages to images and OCRs each one. The
// fallback for scanned PDFs with no usable text layer.
type PDFRasterStrategy struct {
	cfg    common.ExtractionConfig
	runner Runner
}

func NewPDFRasterStrategy(cfg common.ExtractionConfig, runner Runner) *PDFRasterStrategy {
	if runner == nil {
		runner = execRunner{}
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &PDFRasterStrategy{cfg: cfg, runner: runner}
}

func (s *PDFRasterStrategy) ID() string                  { return "pdf-ocr" }
func (s *PDFRasterStrategy) Supports(format string) bool { return format == constants.PDF }

func (s *PDFRasterStrategy) Extract(ctx context.Context, doc Document) (Extraction, error) {
	start := time.Now()
	tmpDir, err := os.MkdirTemp("", "fm-pp-*")
	if err != nil {
		return Extraction{Method: s.ID()}, err
	}
	defer func() {
		_ = os.RemoveAll(tmpDir)
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := s.runner.Run(ctx, s.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", s.cfg.DPI), "-png", doc.Path, prefix)
	if err != nil {
		return Extraction{Method: s.ID(), Warnings: []string{string(errb)}}, fmt.Errorf("pdftoppm: %w", err)
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if s.cfg.MaxPages > 0 && len(matches) > s.cfg.MaxPages {
		matches = matches[:s.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return Extraction{Method: s.ID(), Warnings: []string{"pdftoppm produced no images"}}, fmt.Errorf("no pages rendered")
	}

	var b strings.Builder
	var warns []string
	for _, img := range matches {
		txt, err := tesseractOCR(ctx, s.runner, s.cfg, img)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(txt)
	}
	return Extraction{
		Text:        Normalize(b.String()),
		Method:      s.ID(),
		BaseQuality: basePDFOCR,
		Pages:       len(matches),
		Duration:    time.Since(start),
		Warnings:    warns,
	}, nil
}

// ImageOCRStrategy OCRs a single image file.
type ImageOCRStrategy struct {
	cfg    common.ExtractionConfig
	runner Runner
}

func NewImageOCRStrategy(cfg common.ExtractionConfig, runner Runner) *ImageOCRStrategy {
	if runner == nil {
		runner = execRunner{}
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	return &ImageOCRStrategy{cfg: cfg, runner: runner}
}

func (s *ImageOCRStrategy) ID() string                  { return "image-ocr" }
func (s *ImageOCRStrategy) Supports(format string) bool { return format == constants.IMAGE }

func (s *ImageOCRStrategy) Extract(ctx context.Context, doc Document) (Extraction, error) {
	start := time.Now()
	txt, err := tesseractOCR(ctx, s.runner, s.cfg, doc.Path)
	if err != nil {
		return Extraction{Method: s.ID()}, err
	}
	return Extraction{
		Text:        Normalize(txt),
		Method:      s.ID(),
		BaseQuality: baseImageOCR,
		Pages:       1,
		Duration:    time.Since(start),
	}, nil
}

func tesseractOCR(ctx context.Context, r Runner, cfg common.ExtractionConfig, path string) (string, error) {
	args := []string{path, "stdout", "-l", cfg.TesseractLang}
	// tesseract <file> stdout -l <lang>
	out, errb, err := r.Run(ctx, cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %s: %w", strings.TrimSpace(string(errb)), err)
	}
	// minor cleanup of obvious line noise
	return reBoxNoise.ReplaceAllString(string(out), ""), nil
}

// PlainTextStrategy handles inline text and .txt files.
type PlainTextStrategy struct{}

func NewPlainTextStrategy() *PlainTextStrategy { return &PlainTextStrategy{} }

func (s *PlainTextStrategy) ID() string                  { return "plain-text" }
func (s *PlainTextStrategy) Supports(format string) bool { return format == constants.TXT }

func (s *PlainTextStrategy) Extract(ctx context.Context, doc Document) (Extraction, error) {
	start := time.Now()
	text := doc.Text
	if text == "" && doc.Path != "" {
		data, err := os.ReadFile(doc.Path)
		if err != nil {
			return Extraction{Method: s.ID()}, fmt.Errorf("read text file: %w", err)
		}
		text = string(data)
	}
	return Extraction{
		Text:        Normalize(text),
		Method:      s.ID(),
		BaseQuality: basePlainText,
		Pages:       1,
		Duration:    time.Since(start),
	}, nil
}
