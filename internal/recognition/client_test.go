package recognition

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinidocs/fieldmapper/internal/common"
)

func newService(endpoint string) *HTTPService {
	return NewHTTPService(common.RecognitionConfig{
		Endpoint: endpoint,
		Timeout:  5 * time.Second,
	}, nil)
}

func TestRecognizeDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req["image_base64"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"text": "Patient: Juan Perez",
			"blocks": []map[string]any{
				{"text": "Patient:", "confidence": 0.95},
				{"text": "Juan Perez", "confidence": 0.85},
			},
		})
	}))
	defer srv.Close()

	res, err := newService(srv.URL).Recognize(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "Patient: Juan Perez", res.Text)
	assert.InDelta(t, 0.9, res.MeanConfidence(), 1e-9)
}

func TestRecognizeRetriesOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"text": "ok"})
	}))
	defer srv.Close()

	res, err := newService(srv.URL).Recognize(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRecognizeGivesUpAfterRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newService(srv.URL).Recognize(context.Background(), []byte("img"))
	assert.Error(t, err)
}

func TestRecognizeCancelledContextNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newService(srv.URL).Recognize(ctx, []byte("img"))
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRecognizeWithoutEndpoint(t *testing.T) {
	svc := NewHTTPService(common.RecognitionConfig{}, nil)
	_, err := svc.Recognize(context.Background(), []byte("img"))
	assert.Error(t, err)
}

func TestMeanConfidenceEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Result{}.MeanConfidence())
}
