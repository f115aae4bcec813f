package diagnosis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"braingemma/internal/agent"
	"braingemma/internal/config"
	"braingemma/internal/logging"
	"braingemma/internal/mock"
	"braingemma/internal/perception"
	"braingemma/internal/types"
	"braingemma/internal/upload"
	"braingemma/internal/vision"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var testPolicy = upload.Policy{AllowedExtensions: config.DefaultAllowedExtensions, MaxFileSizeMB: 1}

func png(name string) upload.File {
	return upload.File{Name: name, Data: []byte("pixels")}
}

func TestRequest_Validate(t *testing.T) {
	t.Run("no files", func(t *testing.T) {
		err := (&Request{Context: "notes"}).Validate(testPolicy)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrNoFiles))
		assert.Equal(t, NoFilesDetail, err.Error())
		assert.Equal(t, http.StatusBadRequest, upload.StatusOf(err, 0))
	})

	t.Run("bad extension in MRI", func(t *testing.T) {
		err := (&Request{CT: []upload.File{png("a.png")}, MRI: []upload.File{png("b.txt")}}).Validate(testPolicy)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrUnsupportedType))
	})

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, (&Request{MRI: []upload.File{png("b.nii.gz")}}).Validate(testPolicy))
	})
}

func TestRequest_Modalities(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want []string
	}{
		{"both", Request{CT: []upload.File{png("a.png")}, MRI: []upload.File{png("b.png")}}, []string{"CT", "MRI"}},
		{"mri only", Request{MRI: []upload.File{png("b.png")}}, []string{"MRI"}},
		{"ct only", Request{CT: []upload.File{png("a.png"), png("c.png")}}, []string{"CT"}},
		{"none", Request{}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.req.ModalityNames()); diff != "" {
				t.Errorf("ModalityNames() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRequest_Query(t *testing.T) {
	assert.Equal(t, "fallback", (&Request{Context: "   "}).Query("fallback"))
	assert.Equal(t, "headache", (&Request{Context: " headache \n"}).Query("fallback"))
}

func TestMock_Diagnose(t *testing.T) {
	gen := mock.NewGenerator(0)
	gen.Pick = func(int) int { return 1 }
	m := NewMock(gen, testPolicy)

	resp, err := m.Diagnose(context.Background(), &Request{MRI: []upload.File{png("b.png")}})
	require.NoError(t, err)
	assert.Equal(t, "Meningioma", resp.Diagnosis)
	assert.Equal(t, []string{"MRI"}, resp.ModalitiesUsed)
	assert.Equal(t, config.ModeMock, m.Mode())

	_, err = m.Diagnose(context.Background(), &Request{})
	assert.True(t, errors.Is(err, types.ErrNoFiles))
}

type scriptedLLM struct {
	reply string
	err   error
}

func (s *scriptedLLM) Complete(ctx context.Context, p string) (string, error) { return s.reply, s.err }
func (s *scriptedLLM) CompleteWithSystem(ctx context.Context, sys, p string) (string, error) {
	return s.reply, s.err
}
func (s *scriptedLLM) CompleteWithImage(ctx context.Context, sys, p string, img *types.Image) (string, error) {
	return s.reply, s.err
}
func (s *scriptedLLM) CompleteWithTools(ctx context.Context, sys, p string, tools []types.ToolDefinition) (*types.LLMToolResponse, error) {
	return &types.LLMToolResponse{Text: s.reply}, s.err
}

type recordingClassifier struct {
	paths []string
}

func (c *recordingClassifier) Classify(ctx context.Context, path string) (*vision.Prediction, error) {
	c.paths = append(c.paths, path)
	return vision.NewPrediction(map[string]float64{"glioma": 94.2}), nil
}
func (c *recordingClassifier) Ready(ctx context.Context) bool { return true }
func (c *recordingClassifier) Name() string                   { return "recording" }

const llmReport = "<unused94>hmm<unused95>```json\n" + `{
  "primary_diagnosis": "glioma",
  "confidence": "94.2%",
  "grade": "Typical: WHO Grade IV",
  "location": "Left Temporal Lobe",
  "differential_diagnosis": [{"condition": "Glioma", "probability": "94.2%"}],
  "recommendations": ["Neurosurgical consult"],
  "triage_urgency": "urgent"
}` + "\n```"

func newPipeline(t *testing.T, llm types.LLMClient, cls vision.Classifier) (*Pipeline, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	a := agent.New(llm, cls, "Analyze this brain scan and provide a diagnostic report.")
	return NewPipeline(a, upload.NewStore(dir, testPolicy), "Analyze this brain scan and provide a diagnostic report."), dir
}

func TestPipeline_Diagnose(t *testing.T) {
	cls := &recordingClassifier{}
	p, dir := newPipeline(t, &scriptedLLM{reply: llmReport}, cls)

	resp, err := p.Diagnose(context.Background(), &Request{
		CT:  []upload.File{png("ct.png")},
		MRI: []upload.File{png("mri1.jpg"), png("mri2.png")},
	})
	require.NoError(t, err)

	assert.Equal(t, "High-Grade Glioma", resp.Diagnosis)
	assert.Equal(t, "WHO Grade IV", resp.Grade)
	assert.Equal(t, 94, resp.Confidence)
	assert.Equal(t, "URGENT", resp.Triage)
	assert.Equal(t, []string{"CT", "MRI"}, resp.ModalitiesUsed)
	assert.GreaterOrEqual(t, resp.InferenceMS, 0)

	// Primary image is the first MRI.
	require.Len(t, cls.paths, 1)
	assert.Equal(t, ".jpg", filepath.Ext(cls.paths[0]))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestPipeline_TimesAgentRun(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logging.SetLogger(zap.New(core), nil)
	t.Cleanup(func() { logging.SetLogger(nil, nil) })

	p, _ := newPipeline(t, &scriptedLLM{reply: llmReport}, &recordingClassifier{})
	_, err := p.Diagnose(context.Background(), &Request{MRI: []upload.File{png("a.png")}})
	require.NoError(t, err)

	timed := logs.FilterLoggerName("diagnose").FilterMessageSnippet("agent run completed in")
	assert.Equal(t, 1, timed.Len())
}

func TestPipeline_FallsBackToCT(t *testing.T) {
	cls := &recordingClassifier{}
	p, _ := newPipeline(t, &scriptedLLM{reply: "{}"}, cls)

	_, err := p.Diagnose(context.Background(), &Request{CT: []upload.File{png("ct.bmp")}})
	require.NoError(t, err)
	require.Len(t, cls.paths, 1)
	assert.Equal(t, ".bmp", filepath.Ext(cls.paths[0]))
}

func TestPipeline_AgentFailure(t *testing.T) {
	p, _ := newPipeline(t, &scriptedLLM{err: errors.New("connection refused")}, &recordingClassifier{})

	_, err := p.Diagnose(context.Background(), &Request{MRI: []upload.File{png("a.png")}})
	require.Error(t, err)
	assert.Equal(t, "Agentic pipeline failed: connection refused", err.Error())
	assert.Equal(t, http.StatusInternalServerError, upload.StatusOf(err, http.StatusInternalServerError))
}

func TestPipeline_RejectsBeforeSaving(t *testing.T) {
	p, dir := newPipeline(t, &scriptedLLM{reply: "{}"}, &recordingClassifier{})

	_, err := p.Diagnose(context.Background(), &Request{
		CT:  []upload.File{png("ok.png")},
		MRI: []upload.File{png("bad.exe")},
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, upload.StatusOf(err, 0))
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRemote_Diagnose(t *testing.T) {
	want := mock.Reports()[0]
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/diagnose", r.URL.Path)
		assert.Equal(t, "req-9", r.Header.Get("X-Request-ID"))
		assert.Equal(t, "1", r.Header.Get(ForwardedHeader))
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Len(t, r.MultipartForm.File["ct"], 1)
		assert.Len(t, r.MultipartForm.File["mri"], 2)
		assert.Equal(t, "notes", r.FormValue("context"))

		f, _ := r.MultipartForm.File["mri"][1].Open()
		data, _ := io.ReadAll(f)
		f.Close()
		assert.Equal(t, "pixels", string(data))

		json.NewEncoder(w).Encode(want)
	}))
	defer server.Close()

	r := NewRemote(server.URL+"/", server.Client(), testPolicy)
	ctx := contextWithRequestID("req-9")
	got, err := r.Diagnose(ctx, &Request{
		CT:      []upload.File{png("a.png")},
		MRI:     []upload.File{png("b.png"), png("c.png")},
		Context: "notes",
	})
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestRemote_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantDetail string
	}{
		{"detail string", http.StatusRequestEntityTooLarge, `{"detail":"File 'x.png' exceeds 50MB limit."}`, 413, "File 'x.png' exceeds 50MB limit."},
		{"detail list", http.StatusUnprocessableEntity, `{"detail":[{"msg":"field required"}]}`, 422, "HTTP 422"},
		{"no body", http.StatusInternalServerError, ``, 500, "HTTP 500"},
		{"bad json on success", http.StatusOK, `not json`, 502, "Invalid response from inference service"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewRemote(server.URL, nil, testPolicy).Diagnose(context.Background(), &Request{MRI: []upload.File{png("a.png")}})
			require.Error(t, err)
			assert.Equal(t, tt.wantStatus, upload.StatusOf(err, 0))
			assert.Contains(t, err.Error(), tt.wantDetail)
		})
	}
}

func TestRemote_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewRemote(url, &http.Client{Timeout: time.Second}, testPolicy).Diagnose(context.Background(), &Request{MRI: []upload.File{png("a.png")}})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, upload.StatusOf(err, 0))
}

func TestNew_SelectsMode(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Upload.Dir = t.TempDir()

	d, err := New(cfg, Deps{})
	require.NoError(t, err)
	assert.IsType(t, &Mock{}, d)

	cfg.Diagnosis.Mode = config.ModePipeline
	d, err = New(cfg, Deps{LLM: &scriptedLLM{}, Traces: perception.NewMemoryTraceStore(5)})
	require.NoError(t, err)
	require.IsType(t, &Pipeline{}, d)
	assert.Equal(t, "unavailable", d.(*Pipeline).Agent().Classifier().Name())

	cfg.Diagnosis.Mode = config.ModeRemote
	_, err = New(cfg, Deps{})
	assert.ErrorContains(t, err, "remote_url")

	cfg.Diagnosis.RemoteURL = "http://inference:8000"
	d, err = New(cfg, Deps{})
	require.NoError(t, err)
	assert.Equal(t, config.ModeRemote, d.Mode())

	cfg.Diagnosis.Mode = "quantum"
	_, err = New(cfg, Deps{})
	assert.Error(t, err)
}

func TestNewAgent_BuildsClientFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Vision.BaseURL = "http://vision.local:9000"

	a, err := NewAgent(cfg, Deps{})
	require.NoError(t, err)
	assert.Equal(t, "remote:http://vision.local:9000", a.Classifier().Name())

	cfg.LLM.Provider = "unknown"
	_, err = NewAgent(cfg, Deps{})
	assert.Error(t, err)
}
