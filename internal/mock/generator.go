// Package mock simulates the diagnose endpoint: after an artificial delay it
// returns one of three canned reports.
package mock

import (
	"context"
	"math/rand/v2"
	"time"

	"braingemma/internal/logging"
	"braingemma/internal/types"
)

// DefaultDelay simulates real inference time.
const DefaultDelay = 2400 * time.Millisecond

// Generator produces canned diagnostic reports.
type Generator struct {
	Delay time.Duration
	// Pick returns an index in [0, n). Defaults to a uniform random pick.
	Pick func(n int) int
}

// NewGenerator creates a generator with the given delay.
func NewGenerator(delay time.Duration) *Generator {
	return &Generator{Delay: delay, Pick: rand.IntN}
}

// Generate waits for the delay, then returns a copy of a random canned report.
// When modalities is non-empty it replaces the report's modalities_used.
func (g *Generator) Generate(ctx context.Context, modalities []types.Modality) (*types.DiagnoseResponse, error) {
	if g.Delay > 0 {
		t := time.NewTimer(g.Delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	pick := g.Pick
	if pick == nil {
		pick = rand.IntN
	}
	idx := pick(len(cannedReports))
	result := cannedReports[idx].Clone()

	if len(modalities) > 0 {
		used := make([]string, len(modalities))
		for i, m := range modalities {
			used[i] = string(m)
		}
		result.ModalitiesUsed = used
	}

	logging.DiagnoseDebug("mock report %d selected: %s", idx, result.Diagnosis)
	return result, nil
}
