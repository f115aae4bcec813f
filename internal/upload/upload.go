// Package upload validates scan uploads and stores them under the upload
// directory with collision-free names.
package upload

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"braingemma/internal/types"
)

// File is an uploaded scan held in memory.
type File struct {
	Name string
	Data []byte
}

// Size returns the file size in bytes.
func (f File) Size() int64 { return int64(len(f.Data)) }

// Ext returns the lowercased final extension of the file name.
func (f File) Ext() string {
	return strings.ToLower(filepath.Ext(f.Name))
}

// ValidationError is a rejected upload. Status is the HTTP status the
// API answers with.
type ValidationError struct {
	Status int
	Detail string
	Err    error
}

func (e *ValidationError) Error() string { return e.Detail }

func (e *ValidationError) Unwrap() error { return e.Err }

// HTTPStatus returns the status the API answers with.
func (e *ValidationError) HTTPStatus() int { return e.Status }

// StatusCoder is implemented by errors that map to an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// StatusOf returns the HTTP status carried by the first StatusCoder in
// err's chain, or fallback if there is none.
func StatusOf(err error, fallback int) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	return fallback
}

// Policy holds the accepted extensions and the per-file size limit.
type Policy struct {
	AllowedExtensions []string
	MaxFileSizeMB     int
}

// Validate checks the extension and size of f.
func (p Policy) Validate(f File) error {
	ext := f.Ext()
	if !p.allowed(ext) {
		return &ValidationError{
			Status: http.StatusBadRequest,
			Detail: fmt.Sprintf("Unsupported file type '%s'. Allowed: %s", ext, p.allowedList()),
			Err:    types.ErrUnsupportedType,
		}
	}
	if f.Size() > int64(p.MaxFileSizeMB)*1024*1024 {
		return &ValidationError{
			Status: http.StatusRequestEntityTooLarge,
			Detail: fmt.Sprintf("File '%s' exceeds %dMB limit.", f.Name, p.MaxFileSizeMB),
			Err:    types.ErrFileTooLarge,
		}
	}
	return nil
}

func (p Policy) allowed(ext string) bool {
	if ext == "" {
		return false
	}
	for _, a := range p.AllowedExtensions {
		if strings.EqualFold(a, ext) {
			return true
		}
	}
	return false
}

func (p Policy) allowedList() string {
	exts := make([]string, len(p.AllowedExtensions))
	for i, e := range p.AllowedExtensions {
		exts[i] = "'" + strings.ToLower(e) + "'"
	}
	sort.Strings(exts)
	return "[" + strings.Join(exts, ", ") + "]"
}

// ReadFile loads a scan from disk, for the CLI and the terminal UI.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read scan %s: %w", path, err)
	}
	return File{Name: filepath.Base(path), Data: data}, nil
}
