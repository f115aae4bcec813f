// Package diagnosis turns an upload request into a diagnostic report using
// one of three backends: canned mock reports, the local agent pipeline, or
// a passthrough to a remote diagnose endpoint.
package diagnosis

import (
	"net/http"
	"strings"

	"braingemma/internal/types"
	"braingemma/internal/upload"
)

// NoFilesDetail is the error detail for a request without scans.
const NoFilesDetail = "At least one CT or MRI file must be provided."

// Request is one diagnosis submission.
type Request struct {
	CT      []upload.File
	MRI     []upload.File
	Context string
}

// HasFiles reports whether any scan was attached.
func (r *Request) HasFiles() bool {
	return len(r.CT) > 0 || len(r.MRI) > 0
}

// Validate rejects empty requests and files the policy does not accept.
func (r *Request) Validate(policy upload.Policy) error {
	if !r.HasFiles() {
		return &upload.ValidationError{
			Status: http.StatusBadRequest,
			Detail: NoFilesDetail,
			Err:    types.ErrNoFiles,
		}
	}
	for _, group := range [][]upload.File{r.CT, r.MRI} {
		for _, f := range group {
			if err := policy.Validate(f); err != nil {
				return err
			}
		}
	}
	return nil
}

// Modalities lists the uploaded modalities, CT before MRI.
func (r *Request) Modalities() []types.Modality {
	var out []types.Modality
	if len(r.CT) > 0 {
		out = append(out, types.ModalityCT)
	}
	if len(r.MRI) > 0 {
		out = append(out, types.ModalityMRI)
	}
	return out
}

// ModalityNames is Modalities as plain strings.
func (r *Request) ModalityNames() []string {
	mods := r.Modalities()
	out := make([]string, len(mods))
	for i, m := range mods {
		out[i] = string(m)
	}
	return out
}

// Query returns the trimmed clinical context, or fallback when it is blank.
func (r *Request) Query(fallback string) string {
	if q := strings.TrimSpace(r.Context); q != "" {
		return q
	}
	return fallback
}
