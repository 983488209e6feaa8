package recognition

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clinidocs/fieldmapper/internal/common"
)

// HTTPService calls a JSON recognition endpoint. Best-effort collaborator:
// one retry, hard per-call timeout, and every failure surfaces as an error the
// selector treats as "no improvement".
type HTTPService struct {
	cfg    common.RecognitionConfig
	client *http.Client
	logger *slog.Logger
}

func NewHTTPService(cfg common.RecognitionConfig, logger *slog.Logger) *HTTPService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPService{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type recognizeRequest struct {
	ImageBase64 string `json:"image_base64"`
}

type recognizeResponse struct {
	Text   string `json:"text"`
	Blocks []struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"blocks"`
}

// Recognize posts the image and decodes the recognized text. A single retry
// covers transient transport failures; context cancellation is not retried.
func (s *HTTPService) Recognize(ctx context.Context, image []byte) (Result, error) {
	if s.cfg.Endpoint == "" {
		return Result{}, fmt.Errorf("recognition endpoint not configured")
	}
	body := recognizeRequest{ImageBase64: base64.StdEncoding.EncodeToString(image)}

	raw, err := s.sendJSON(ctx, body)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		// one retry, then give up
		raw, err = s.sendJSON(ctx, body)
		if err != nil {
			return Result{}, err
		}
	}

	var resp recognizeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Result{}, fmt.Errorf("decode recognition response: %w", err)
	}
	out := Result{Text: resp.Text}
	for _, b := range resp.Blocks {
		out.BlockConfidences = append(out.BlockConfidences, b.Confidence)
	}
	return out, nil
}

func (s *HTTPService) sendJSON(ctx context.Context, body any) ([]byte, error) {
	reqID := uuid.New().String()
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	s.logger.Info("recognition.request",
		"req_id", reqID,
		"run_id", common.RunIDFromContext(ctx),
		"content_length", len(bs),
	)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("recognition.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			s.logger.Warn("recognition.body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)

	s.logger.Info("recognition.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, nil
}
