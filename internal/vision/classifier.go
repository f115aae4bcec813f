// Package vision talks to the external tumour classification service.
// Inference itself happens elsewhere; this package only ships the image
// over HTTP and formats the returned probabilities for the agent.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"braingemma/internal/logging"
	"braingemma/internal/types"
)

// ClassNames are the labels produced by the classification head.
var ClassNames = []string{"glioma", "meningioma", "notumor", "pituitary"}

// Classifier scores a brain scan image.
type Classifier interface {
	Classify(ctx context.Context, imagePath string) (*Prediction, error)
	Ready(ctx context.Context) bool
	Name() string
}

// ClassProbability is one class and its probability in percent.
type ClassProbability struct {
	Class       string
	Probability float64
}

// Prediction holds class probabilities sorted descending.
type Prediction struct {
	Probabilities []ClassProbability
}

// NewPrediction builds a Prediction from a class -> percent map.
// Ties are broken by class name so output is stable.
func NewPrediction(probs map[string]float64) *Prediction {
	p := &Prediction{}
	for class, prob := range probs {
		p.Probabilities = append(p.Probabilities, ClassProbability{Class: strings.ToLower(class), Probability: prob})
	}
	sort.Slice(p.Probabilities, func(i, j int) bool {
		a, b := p.Probabilities[i], p.Probabilities[j]
		if a.Probability != b.Probability {
			return a.Probability > b.Probability
		}
		return a.Class < b.Class
	})
	return p
}

// Top returns the most likely class, or false for an empty prediction.
func (p *Prediction) Top() (ClassProbability, bool) {
	if p == nil || len(p.Probabilities) == 0 {
		return ClassProbability{}, false
	}
	return p.Probabilities[0], true
}

// Summary renders the prediction as the text handed to the LLM.
func (p *Prediction) Summary() string {
	top, ok := p.Top()
	if !ok {
		return "Error: classifier returned no probabilities."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Primary Diagnosis: %s (Confidence: %.2f%%)\nDifferential Probabilities:\n", strings.ToUpper(top.Class), top.Probability)
	for _, cp := range p.Probabilities {
		fmt.Fprintf(&b, "- %s: %.2f%%\n", displayClass(cp.Class), cp.Probability)
	}
	return b.String()
}

func displayClass(class string) string {
	if class == "notumor" {
		return strings.ToUpper(types.NoTumorDiagnosis)
	}
	return strings.ToUpper(class)
}

// Unavailable is used when no classification service is configured.
type Unavailable struct{}

// Classify always fails with types.ErrClassifierUnavailable.
func (Unavailable) Classify(ctx context.Context, imagePath string) (*Prediction, error) {
	return nil, types.ErrClassifierUnavailable
}

// Ready reports false.
func (Unavailable) Ready(ctx context.Context) bool { return false }

// Name identifies the classifier in health output.
func (Unavailable) Name() string { return "unavailable" }

// RemoteClassifier posts images to an HTTP inference service.
//
//	POST <base>/classify  multipart "image"  -> {"probabilities": {"glioma": 94.2, ...}}
//	GET  <base>/health                      -> 2xx when models are loaded
type RemoteClassifier struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemoteClassifier creates a client for the service at baseURL.
func NewRemoteClassifier(baseURL string, timeout time.Duration) *RemoteClassifier {
	return &RemoteClassifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// New returns a RemoteClassifier for baseURL, or Unavailable when it is empty.
func New(baseURL string, timeout time.Duration) Classifier {
	if strings.TrimSpace(baseURL) == "" {
		return Unavailable{}
	}
	return NewRemoteClassifier(baseURL, timeout)
}

type classifyResponse struct {
	Probabilities map[string]float64 `json:"probabilities"`
	Error         string             `json:"error,omitempty"`
}

// Classify uploads the image at imagePath and returns its prediction.
func (c *RemoteClassifier) Classify(ctx context.Context, imagePath string) (*Prediction, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("error opening image at %s: %w", imagePath, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filepath.Base(imagePath))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.VisionWarn("classify request failed: %v", err)
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read classifier response: %w", err)
	}

	var out classifyResponse
	decodeErr := json.Unmarshal(raw, &out)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && out.Error != "" {
			return nil, fmt.Errorf("classifier returned %d: %s", resp.StatusCode, out.Error)
		}
		return nil, fmt.Errorf("classifier returned HTTP %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to parse classifier response: %w", decodeErr)
	}
	if len(out.Probabilities) == 0 {
		return nil, errors.New("classifier returned no probabilities")
	}

	pred := NewPrediction(out.Probabilities)
	top, _ := pred.Top()
	logging.Vision("classified %s as %s (%.2f%%) in %v", filepath.Base(imagePath), top.Class, top.Probability, time.Since(start))
	return pred, nil
}

// Ready checks the service health endpoint.
func (c *RemoteClassifier) Ready(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

// Name identifies the classifier in health output.
func (c *RemoteClassifier) Name() string {
	return "remote:" + c.baseURL
}
