// Package session holds the interactive state of one diagnosis session:
// selected scans, clinical context, the loading flag and the last result.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"braingemma/internal/diagnosis"
	"braingemma/internal/logging"
	"braingemma/internal/types"
	"braingemma/internal/upload"
)

// State is safe for concurrent use.
type State struct {
	mu      sync.Mutex
	ct      []upload.File
	mri     []upload.File
	context string
	loading bool
	results *types.DiagnoseResponse
	// gen is bumped by Reset; a run only writes back into its own generation.
	gen uint64
}

// ErrReset is returned by a Run whose session was reset while it was in flight.
var ErrReset = errors.New("session was reset during diagnosis")

// New returns an empty session.
func New() *State {
	return &State{}
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	CT      []upload.File
	MRI     []upload.File
	Context string
	Loading bool
	Results *types.DiagnoseResponse
}

// Snapshot copies the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		CT:      append([]upload.File(nil), s.ct...),
		MRI:     append([]upload.File(nil), s.mri...),
		Context: s.context,
		Loading: s.loading,
		Results: s.results.Clone(),
	}
}

// AddCT appends CT scans.
func (s *State) AddCT(files ...upload.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ct = append(s.ct, files...)
	logging.SessionDebug("added %d CT file(s), total %d", len(files), len(s.ct))
}

// AddMRI appends MRI scans.
func (s *State) AddMRI(files ...upload.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mri = append(s.mri, files...)
	logging.SessionDebug("added %d MRI file(s), total %d", len(files), len(s.mri))
}

// RemoveCT removes the CT scan at index i. Out-of-range indexes are ignored.
func (s *State) RemoveCT(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ct = removeAt(s.ct, i)
}

// RemoveMRI removes the MRI scan at index i. Out-of-range indexes are ignored.
func (s *State) RemoveMRI(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mri = removeAt(s.mri, i)
}

func removeAt(files []upload.File, i int) []upload.File {
	if i < 0 || i >= len(files) {
		return files
	}
	out := make([]upload.File, 0, len(files)-1)
	out = append(out, files[:i]...)
	return append(out, files[i+1:]...)
}

// SetContext replaces the clinical context.
func (s *State) SetContext(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.context = text
}

// HasFiles reports whether any scan is selected.
func (s *State) HasFiles() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ct)+len(s.mri) > 0
}

// Ready summarises the selection, e.g. "2 CT · 1 MRI file(s) ready".
func (s *State) Ready() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%d CT · %d MRI file(s) ready", len(s.ct), len(s.mri))
}

// Loading reports whether a diagnosis is in flight.
func (s *State) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Results returns a copy of the last report, or nil.
func (s *State) Results() *types.DiagnoseResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results.Clone()
}

// Run submits the current selection to d. It returns types.ErrBusy while
// another run is in flight. The loading flag is cleared on return unless
// the session was reset meanwhile, in which case the result is discarded
// and ErrReset is returned.
func (s *State) Run(ctx context.Context, d diagnosis.Diagnoser) (*types.DiagnoseResponse, error) {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil, types.ErrBusy
	}
	s.loading = true
	gen := s.gen
	req := &diagnosis.Request{
		CT:      append([]upload.File(nil), s.ct...),
		MRI:     append([]upload.File(nil), s.mri...),
		Context: s.context,
	}
	s.mu.Unlock()

	logging.Session("running diagnosis via %s: ct=%d mri=%d", d.Mode(), len(req.CT), len(req.MRI))
	resp, err := d.Diagnose(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		logging.SessionDebug("discarding diagnosis from before reset")
		return nil, ErrReset
	}
	s.loading = false
	if err != nil {
		logging.Session("diagnosis failed: %v", err)
		return nil, err
	}
	s.results = resp.Clone()
	return resp, nil
}

// Reset clears files, context, results and the loading flag.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ct = nil
	s.mri = nil
	s.context = ""
	s.results = nil
	s.loading = false
	s.gen++
	logging.SessionDebug("session reset")
}
