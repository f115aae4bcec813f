package vision

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"braingemma/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictionSummary(t *testing.T) {
	p := NewPrediction(map[string]float64{
		"glioma":     94.2,
		"meningioma": 3.1,
		"notumor":    2.0,
		"pituitary":  0.7,
	})

	want := "Primary Diagnosis: GLIOMA (Confidence: 94.20%)\n" +
		"Differential Probabilities:\n" +
		"- GLIOMA: 94.20%\n" +
		"- MENINGIOMA: 3.10%\n" +
		"- NO TUMOR DETECTED: 2.00%\n" +
		"- PITUITARY: 0.70%\n"
	assert.Equal(t, want, p.Summary())
}

func TestPredictionSummary_NoTumorTop(t *testing.T) {
	p := NewPrediction(map[string]float64{"notumor": 88, "glioma": 12})
	assert.Contains(t, p.Summary(), "Primary Diagnosis: NOTUMOR (Confidence: 88.00%)")
	assert.Contains(t, p.Summary(), "- NO TUMOR DETECTED: 88.00%")
}

func TestPredictionTiesAreStable(t *testing.T) {
	p := NewPrediction(map[string]float64{"pituitary": 50, "glioma": 50})
	top, ok := p.Top()
	require.True(t, ok)
	assert.Equal(t, "glioma", top.Class)
}

func TestEmptyPrediction(t *testing.T) {
	_, ok := (&Prediction{}).Top()
	assert.False(t, ok)
	assert.Contains(t, (&Prediction{}).Summary(), "no probabilities")
}

func TestUnavailable(t *testing.T) {
	c := New("  ", time.Second)
	_, err := c.Classify(context.Background(), "x.png")
	assert.True(t, errors.Is(err, types.ErrClassifierUnavailable))
	assert.False(t, c.Ready(context.Background()))
	assert.Equal(t, "unavailable", c.Name())
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.png")
	require.NoError(t, os.WriteFile(path, []byte("fake-png"), 0644))
	return path
}

func TestRemoteClassifier_Classify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/classify", r.URL.Path)
		file, header, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "scan.png", header.Filename)
		assert.Equal(t, "fake-png", string(data))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"probabilities":{"glioma":10,"meningioma":80,"notumor":5,"pituitary":5}}`))
	}))
	defer server.Close()

	c := New(server.URL+"/", 5*time.Second)
	pred, err := c.Classify(context.Background(), writeImage(t))
	require.NoError(t, err)
	top, _ := pred.Top()
	assert.Equal(t, "meningioma", top.Class)
	assert.Equal(t, 80.0, top.Probability)
	assert.Equal(t, "remote:"+server.URL, c.Name())
}

func TestRemoteClassifier_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"service error with message", http.StatusServiceUnavailable, `{"error":"models not loaded"}`, "models not loaded"},
		{"service error without body", http.StatusBadGateway, ``, "HTTP 502"},
		{"empty probabilities", http.StatusOK, `{"probabilities":{}}`, "no probabilities"},
		{"garbage", http.StatusOK, `<html>`, "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewRemoteClassifier(server.URL, time.Second).Classify(context.Background(), writeImage(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRemoteClassifier_MissingFile(t *testing.T) {
	c := NewRemoteClassifier("http://127.0.0.1:1", time.Second)
	_, err := c.Classify(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error opening image")
}

func TestRemoteClassifier_Ready(t *testing.T) {
	var unhealthy atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	c := NewRemoteClassifier(server.URL, time.Second)
	assert.True(t, c.Ready(context.Background()))
	unhealthy.Store(true)
	assert.False(t, c.Ready(context.Background()))
	server.Close()
	assert.False(t, c.Ready(context.Background()))
}
