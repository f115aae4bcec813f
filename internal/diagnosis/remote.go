package diagnosis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"braingemma/internal/config"
	"braingemma/internal/logging"
	"braingemma/internal/types"
	"braingemma/internal/upload"
)

// ForwardedHeader marks a diagnose request relayed by a remote-mode server.
const ForwardedHeader = "X-BrainGemma-Forwarded"

// RemoteError is a failure reported by the remote diagnose endpoint.
type RemoteError struct {
	Status int
	Detail string
	Err    error
}

func (e *RemoteError) Error() string { return e.Detail }

func (e *RemoteError) Unwrap() error { return e.Err }

// HTTPStatus implements upload.StatusCoder.
func (e *RemoteError) HTTPStatus() int { return e.Status }

// Remote forwards requests to another BrainGemma-compatible service.
type Remote struct {
	baseURL    string
	httpClient *http.Client
	policy     upload.Policy
}

// NewRemote creates a passthrough diagnoser for baseURL.
func NewRemote(baseURL string, client *http.Client, policy upload.Policy) *Remote {
	if client == nil {
		client = http.DefaultClient
	}
	return &Remote{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		policy:     policy,
	}
}

// Diagnose posts the scans as multipart ct/mri/context and decodes the report.
func (r *Remote) Diagnose(ctx context.Context, req *Request) (*types.DiagnoseResponse, error) {
	if err := req.Validate(r.policy); err != nil {
		return nil, err
	}

	body, contentType, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}

	url := r.baseURL + "/api/v1/diagnose"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set(ForwardedHeader, "1")
	if id := logging.RequestIDFromContext(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}

	log := logging.FromContext(ctx, logging.CategoryDiagnose)
	log.Info("forwarding diagnosis to %s", url)
	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		log.Error("remote diagnose failed: %v", err)
		return nil, &RemoteError{Status: http.StatusBadGateway, Detail: fmt.Sprintf("Inference service unreachable: %v", err), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{Status: resp.StatusCode, Detail: errorDetail(raw, resp.StatusCode)}
	}

	var out types.DiagnoseResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &RemoteError{Status: http.StatusBadGateway, Detail: fmt.Sprintf("Invalid response from inference service: %v", err), Err: err}
	}
	return &out, nil
}

// Mode implements Diagnoser.
func (r *Remote) Mode() string { return config.ModeRemote }

func encodeRequest(req *Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, field := range []struct {
		name  string
		files []upload.File
	}{{"ct", req.CT}, {"mri", req.MRI}} {
		for _, f := range field.files {
			part, err := mw.CreateFormFile(field.name, f.Name)
			if err != nil {
				return nil, "", fmt.Errorf("failed to encode %s: %w", f.Name, err)
			}
			if _, err := part.Write(f.Data); err != nil {
				return nil, "", fmt.Errorf("failed to encode %s: %w", f.Name, err)
			}
		}
	}
	if err := mw.WriteField("context", req.Context); err != nil {
		return nil, "", fmt.Errorf("failed to encode context: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to encode request: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// errorDetail extracts {"detail": "..."} or falls back to "HTTP <code>".
func errorDetail(raw []byte, status int) string {
	var body struct {
		Detail interface{} `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if s, ok := body.Detail.(string); ok && s != "" {
			return s
		}
	}
	return fmt.Sprintf("HTTP %d", status)
}
