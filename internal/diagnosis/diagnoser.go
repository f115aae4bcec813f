package diagnosis

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"braingemma/internal/adapter"
	"braingemma/internal/agent"
	"braingemma/internal/config"
	"braingemma/internal/logging"
	"braingemma/internal/mock"
	"braingemma/internal/perception"
	"braingemma/internal/types"
	"braingemma/internal/upload"
	"braingemma/internal/vision"
)

// Diagnoser produces a report for a request.
type Diagnoser interface {
	Diagnose(ctx context.Context, req *Request) (*types.DiagnoseResponse, error)
	// Mode is the config mode the diagnoser implements.
	Mode() string
}

// Deps carries optional collaborators. Nil fields are built from config.
type Deps struct {
	LLM        types.LLMClient
	Classifier vision.Classifier
	Traces     perception.TraceStore
	HTTPClient *http.Client
}

// New builds the diagnoser selected by cfg.Diagnosis.Mode.
func New(cfg *config.Config, deps Deps) (Diagnoser, error) {
	policy := PolicyFor(cfg)
	switch cfg.Diagnosis.Mode {
	case config.ModeMock, "":
		return NewMock(mock.NewGenerator(cfg.GetMockDelay()), policy), nil
	case config.ModePipeline:
		a, err := NewAgent(cfg, deps)
		if err != nil {
			return nil, err
		}
		store := upload.NewStore(cfg.Upload.Dir, policy)
		return NewPipeline(a, store, cfg.Diagnosis.DefaultQuery), nil
	case config.ModeRemote:
		if cfg.Diagnosis.RemoteURL == "" {
			return nil, fmt.Errorf("remote mode requires diagnosis.remote_url")
		}
		client := deps.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: cfg.GetRemoteTimeout()}
		}
		return NewRemote(cfg.Diagnosis.RemoteURL, client, policy), nil
	default:
		return nil, fmt.Errorf("unknown diagnosis mode: %s", cfg.Diagnosis.Mode)
	}
}

// NewAgent builds the LLM + classifier agent described by cfg.
func NewAgent(cfg *config.Config, deps Deps) (*agent.Agent, error) {
	llm := deps.LLM
	if llm == nil {
		c, err := perception.NewClient(cfg.LLM, cfg.GetLLMTimeout())
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		llm = c
	}
	if deps.Traces != nil {
		llm = perception.NewTracingLLMClient(llm, deps.Traces)
	}
	classifier := deps.Classifier
	if classifier == nil {
		classifier = vision.New(cfg.Vision.BaseURL, cfg.GetVisionTimeout())
	}
	return agent.New(llm, classifier, cfg.Diagnosis.DefaultQuery), nil
}

// PolicyFor returns the upload policy configured in cfg.
func PolicyFor(cfg *config.Config) upload.Policy {
	return upload.Policy{
		AllowedExtensions: cfg.Upload.AllowedExtensions,
		MaxFileSizeMB:     cfg.Upload.MaxFileSizeMB,
	}
}

// Mock answers with one of the canned reports after a simulated delay.
type Mock struct {
	gen    *mock.Generator
	policy upload.Policy
}

// NewMock wraps a mock generator.
func NewMock(gen *mock.Generator, policy upload.Policy) *Mock {
	return &Mock{gen: gen, policy: policy}
}

// Diagnose validates req and returns a canned report.
func (m *Mock) Diagnose(ctx context.Context, req *Request) (*types.DiagnoseResponse, error) {
	if err := req.Validate(m.policy); err != nil {
		return nil, err
	}
	resp, err := m.gen.Generate(ctx, req.Modalities())
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx, logging.CategoryDiagnose).Info("mock diagnosis: %s", resp.Diagnosis)
	return resp, nil
}

// Mode implements Diagnoser.
func (m *Mock) Mode() string { return config.ModeMock }

// slowAgentRun is the agent run time above which a warning is logged.
const slowAgentRun = 2 * time.Minute

// Pipeline saves the uploads, runs the agent on the primary image and
// adapts its JSON into a report.
type Pipeline struct {
	agent        *agent.Agent
	store        *upload.Store
	defaultQuery string
}

// NewPipeline creates a pipeline diagnoser.
func NewPipeline(a *agent.Agent, store *upload.Store, defaultQuery string) *Pipeline {
	return &Pipeline{agent: a, store: store, defaultQuery: defaultQuery}
}

// Agent returns the pipeline's agent.
func (p *Pipeline) Agent() *agent.Agent { return p.agent }

// Diagnose implements Diagnoser.
func (p *Pipeline) Diagnose(ctx context.Context, req *Request) (*types.DiagnoseResponse, error) {
	if err := req.Validate(p.store.Policy); err != nil {
		return nil, err
	}
	log := logging.FromContext(ctx, logging.CategoryDiagnose)

	files := append(append([]upload.File(nil), req.CT...), req.MRI...)
	paths, err := p.store.SaveAll(ctx, files)
	if err != nil {
		return nil, err
	}
	ctPaths, mriPaths := paths[:len(req.CT)], paths[len(req.CT):]

	primary := ""
	if len(mriPaths) > 0 {
		primary = mriPaths[0]
	} else {
		primary = ctPaths[0]
	}
	query := req.Query(p.defaultQuery)
	log.Info("running pipeline: ct=%d mri=%d primary=%s", len(ctPaths), len(mriPaths), primary)

	timer := logging.StartTimer(logging.CategoryDiagnose, "agent run")
	raw, err := p.agent.Run(ctx, query, primary)
	elapsed := int(timer.StopWithThreshold(slowAgentRun).Milliseconds())
	if err != nil {
		log.Error("pipeline failed: %v", err)
		return nil, fmt.Errorf("Agentic pipeline failed: %w", err)
	}

	resp := adapter.Adapt(raw, req.ModalityNames(), elapsed)
	log.Info("pipeline diagnosis: %s (%d%%) in %dms", resp.Diagnosis, resp.Confidence, elapsed)
	return resp, nil
}

// Mode implements Diagnoser.
func (p *Pipeline) Mode() string { return config.ModePipeline }
