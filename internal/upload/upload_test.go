package upload

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"braingemma/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPolicy = Policy{
	AllowedExtensions: []string{".jpg", ".jpeg", ".png", ".dcm", ".nii", ".gz", ".bmp", ".tiff", ".tif"},
	MaxFileSizeMB:     1,
}

func TestPolicy_Validate(t *testing.T) {
	t.Run("accepts known extensions case-insensitively", func(t *testing.T) {
		for _, name := range []string{"a.png", "b.JPG", "scan.nii.gz", "slice.DCM"} {
			assert.NoError(t, testPolicy.Validate(File{Name: name, Data: []byte("x")}), name)
		}
	})

	t.Run("rejects unsupported type with 400", func(t *testing.T) {
		err := testPolicy.Validate(File{Name: "notes.pdf", Data: []byte("x")})
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrUnsupportedType))
		assert.Equal(t, http.StatusBadRequest, StatusOf(err, 0))
		assert.Equal(t,
			"Unsupported file type '.pdf'. Allowed: ['.bmp', '.dcm', '.gz', '.jpeg', '.jpg', '.nii', '.png', '.tif', '.tiff']",
			err.Error())
	})

	t.Run("rejects missing extension", func(t *testing.T) {
		err := testPolicy.Validate(File{Name: "scan", Data: []byte("x")})
		assert.True(t, errors.Is(err, types.ErrUnsupportedType))
	})

	t.Run("rejects oversize with 413", func(t *testing.T) {
		big := File{Name: "huge.png", Data: make([]byte, 1024*1024+1)}
		err := testPolicy.Validate(big)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrFileTooLarge))
		assert.Equal(t, http.StatusRequestEntityTooLarge, StatusOf(err, 0))
		assert.Equal(t, "File 'huge.png' exceeds 1MB limit.", err.Error())
	})

	t.Run("exactly at limit is fine", func(t *testing.T) {
		assert.NoError(t, testPolicy.Validate(File{Name: "edge.png", Data: make([]byte, 1024*1024)}))
	})
}

func TestStatusOf_Fallback(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("x"), http.StatusInternalServerError))
}

func TestStatusOf_Wrapped(t *testing.T) {
	err := testPolicy.Validate(File{Name: "scan.exe"})
	wrapped := fmt.Errorf("upload rejected: %w", err)
	assert.Equal(t, http.StatusBadRequest, StatusOf(wrapped, http.StatusInternalServerError))
}

func TestStore_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	s := NewStore(dir, testPolicy)

	path, err := s.Save(File{Name: "Brain.PNG", Data: []byte("pixels")})
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	base := filepath.Base(path)
	assert.True(t, strings.HasSuffix(base, ".png"))
	assert.Len(t, strings.TrimSuffix(base, ".png"), 32)
	assert.NotContains(t, base, "-")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))
}

func TestStore_SaveRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, testPolicy)

	_, err := s.Save(File{Name: "x.exe", Data: []byte("x")})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_SaveAll(t *testing.T) {
	s := NewStore(t.TempDir(), testPolicy)
	files := []File{
		{Name: "1.png", Data: []byte("one")},
		{Name: "2.jpg", Data: []byte("two")},
		{Name: "3.dcm", Data: []byte("three")},
		{Name: "4.nii", Data: []byte("four")},
		{Name: "5.bmp", Data: []byte("five")},
	}

	paths, err := s.SaveAll(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, paths, len(files))
	for i, p := range paths {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, string(files[i].Data), string(data))
	}
}

func TestStore_SaveAllFailsAsAWhole(t *testing.T) {
	s := NewStore(t.TempDir(), testPolicy)
	paths, err := s.SaveAll(context.Background(), []File{
		{Name: "ok.png", Data: []byte("x")},
		{Name: "bad.txt", Data: []byte("x")},
	})
	assert.Nil(t, paths)
	assert.True(t, errors.Is(err, types.ErrUnsupportedType))
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.png")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	f, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "scan.png", f.Name)
	assert.Equal(t, int64(3), f.Size())

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
