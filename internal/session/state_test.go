package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"braingemma/internal/config"
	"braingemma/internal/diagnosis"
	"braingemma/internal/mock"
	"braingemma/internal/types"
	"braingemma/internal/upload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

var policy = upload.Policy{AllowedExtensions: config.DefaultAllowedExtensions, MaxFileSizeMB: 1}

func scan(name string) upload.File { return upload.File{Name: name, Data: []byte("x")} }

func TestFileSelection(t *testing.T) {
	s := New()
	assert.False(t, s.HasFiles())
	assert.Equal(t, "0 CT · 0 MRI file(s) ready", s.Ready())

	s.AddCT(scan("a.png"), scan("b.png"))
	s.AddMRI(scan("c.png"))
	assert.True(t, s.HasFiles())
	assert.Equal(t, "2 CT · 1 MRI file(s) ready", s.Ready())

	s.RemoveCT(0)
	s.RemoveCT(5)
	s.RemoveMRI(-1)
	snap := s.Snapshot()
	require.Len(t, snap.CT, 1)
	assert.Equal(t, "b.png", snap.CT[0].Name)
	assert.Len(t, snap.MRI, 1)

	s.RemoveMRI(0)
	assert.Equal(t, "1 CT · 0 MRI file(s) ready", s.Ready())
}

func TestRun_StoresResults(t *testing.T) {
	gen := mock.NewGenerator(0)
	gen.Pick = func(int) int { return 2 }
	s := New()
	s.AddMRI(scan("c.png"))
	s.SetContext("routine check")

	resp, err := s.Run(context.Background(), diagnosis.NewMock(gen, policy))
	require.NoError(t, err)
	assert.Equal(t, types.NoTumorDiagnosis, resp.Diagnosis)
	assert.Equal(t, []string{"MRI"}, resp.ModalitiesUsed)
	assert.False(t, s.Loading())

	got := s.Results()
	require.NotNil(t, got)
	assert.Equal(t, resp.Diagnosis, got.Diagnosis)

	// Results are copies.
	got.Recommendations[0] = "changed"
	assert.NotEqual(t, "changed", s.Results().Recommendations[0])
}

func TestRun_ErrorKeepsPreviousResults(t *testing.T) {
	s := New()
	_, err := s.Run(context.Background(), diagnosis.NewMock(mock.NewGenerator(0), policy))
	assert.True(t, errors.Is(err, types.ErrNoFiles))
	assert.Nil(t, s.Results())
	assert.False(t, s.Loading())
}

// blockingDiagnoser waits until released so a second Run can observe loading.
type blockingDiagnoser struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingDiagnoser) Diagnose(ctx context.Context, req *diagnosis.Request) (*types.DiagnoseResponse, error) {
	close(b.started)
	select {
	case <-b.release:
		return mock.Reports()[0], nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *blockingDiagnoser) Mode() string { return "blocking" }

func TestRun_BusyWhileInFlight(t *testing.T) {
	s := New()
	s.AddCT(scan("a.png"))
	d := &blockingDiagnoser{started: make(chan struct{}), release: make(chan struct{})}

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background(), d)
		done <- err
	}()

	select {
	case <-d.started:
	case <-time.After(2 * time.Second):
		t.Fatal("diagnoser never started")
	}
	assert.True(t, s.Loading())

	_, err := s.Run(context.Background(), d)
	assert.ErrorIs(t, err, types.ErrBusy)

	close(d.release)
	require.NoError(t, <-done)
	assert.False(t, s.Loading())
	assert.NotNil(t, s.Results())
}

func TestRun_Cancelled(t *testing.T) {
	s := New()
	s.AddCT(scan("a.png"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Run(ctx, diagnosis.NewMock(mock.NewGenerator(time.Hour), policy))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, s.Loading())
}

func TestReset(t *testing.T) {
	s := New()
	s.AddCT(scan("a.png"))
	s.SetContext("notes")
	_, err := s.Run(context.Background(), diagnosis.NewMock(mock.NewGenerator(0), policy))
	require.NoError(t, err)

	s.Reset()
	snap := s.Snapshot()
	assert.Empty(t, snap.CT)
	assert.Empty(t, snap.MRI)
	assert.Empty(t, snap.Context)
	assert.Nil(t, snap.Results)
	assert.False(t, snap.Loading)
}

func TestReset_DiscardsInFlightRun(t *testing.T) {
	s := New()
	s.AddCT(scan("a.png"))
	stale := &blockingDiagnoser{started: make(chan struct{}), release: make(chan struct{})}

	staleDone := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background(), stale)
		staleDone <- err
	}()
	<-stale.started

	s.Reset()
	assert.False(t, s.Loading())

	s.AddMRI(scan("b.png"))
	fresh := &blockingDiagnoser{started: make(chan struct{}), release: make(chan struct{})}
	freshDone := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background(), fresh)
		freshDone <- err
	}()
	<-fresh.started

	close(stale.release)
	assert.ErrorIs(t, <-staleDone, ErrReset)
	assert.True(t, s.Loading(), "stale run must not clear the new run's flag")
	assert.Nil(t, s.Results())

	close(fresh.release)
	require.NoError(t, <-freshDone)
	assert.False(t, s.Loading())
	assert.NotNil(t, s.Results())
}
