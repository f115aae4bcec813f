package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"braingemma/internal/config"
	"braingemma/internal/diagnosis"
	"braingemma/internal/logging"
	"braingemma/internal/report"
	"braingemma/internal/types"
	"braingemma/internal/upload"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before spilling to temp files.
const multipartMemory = 32 << 20

// maxFilesPerRequest bounds the request body to this many max-size files.
const maxFilesPerRequest = 10

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeFailure maps err to a status and a {"detail"} body.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := upload.StatusOf(err, http.StatusInternalServerError)
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, context.Canceled):
		status = 499 // client closed request
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	log := logging.FromContext(r.Context(), logging.CategoryAPI)
	if status >= 500 {
		log.Error("%s %s failed: %v", r.Method, r.URL.Path, err)
	} else {
		log.Warn("%s %s rejected: %v", r.Method, r.URL.Path, err)
	}
	writeError(w, status, err.Error())
}

func parseMultipart(w http.ResponseWriter, r *http.Request, maxFileSize int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFileSize*maxFilesPerRequest+(1<<20))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &upload.ValidationError{Status: http.StatusRequestEntityTooLarge, Detail: "Request body too large.", Err: err}
		}
		return &upload.ValidationError{Status: http.StatusBadRequest, Detail: "Invalid multipart form: " + err.Error(), Err: err}
	}
	return nil
}

func readFiles(headers []*multipart.FileHeader) ([]upload.File, error) {
	files := make([]upload.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open upload %q: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read upload %q: %w", fh.Filename, err)
		}
		files = append(files, upload.File{Name: fh.Filename, Data: data})
	}
	return files, nil
}

func formFiles(r *http.Request, key string) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	return r.MultipartForm.File[key]
}

func (s *Server) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	rt := s.rt()
	// A relayed request must not be relayed again.
	if rt.diagnoser.Mode() == config.ModeRemote && r.Header.Get(diagnosis.ForwardedHeader) != "" {
		logging.FromContext(r.Context(), logging.CategoryAPI).Warn("refusing forwarded diagnose request in remote mode")
		writeError(w, http.StatusLoopDetected, "Diagnosis forwarding loop detected: remote_url points back at a remote-mode server.")
		return
	}
	if err := parseMultipart(w, r, rt.cfg.MaxFileSize()); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeFailure(w, r, err)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	ct, err := readFiles(formFiles(r, "ct"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	mri, err := readFiles(formFiles(r, "mri"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	req := &diagnosis.Request{CT: ct, MRI: mri, Context: r.FormValue("context")}
	logging.FromContext(r.Context(), logging.CategoryUpload).Info("diagnose request: ct=%d mri=%d context_len=%d", len(ct), len(mri), len(req.Context))

	resp, err := rt.diagnoser.Diagnose(r.Context(), req)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	rt := s.rt()
	// Plain urlencoded forms are accepted when no image is sent.
	if err := parseMultipart(w, r, rt.cfg.MaxFileSize()); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeFailure(w, r, err)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	message := r.FormValue("message")
	if strings.TrimSpace(message) == "" {
		writeError(w, http.StatusUnprocessableEntity, "Field 'message' is required.")
		return
	}
	if rt.chatErr != nil {
		writeError(w, http.StatusServiceUnavailable, "Chat unavailable: "+rt.chatErr.Error())
		return
	}

	imagePath := ""
	if images := formFiles(r, "image"); len(images) > 0 {
		files, err := readFiles(images[:1])
		if err == nil {
			imagePath, err = rt.store.Save(files[0])
		}
		if err != nil {
			if upload.StatusOf(err, 0) == 0 {
				err = fmt.Errorf("Failed to process image upload: %w", err)
			}
			writeFailure(w, r, err)
			return
		}
	}

	answer, err := rt.chat.Run(r.Context(), message, imagePath)
	if err != nil {
		writeFailure(w, r, fmt.Errorf("MedGemma Agent Logic Failed: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, types.ChatResponse{
		Status:         "success",
		Response:       answer,
		ImageProcessed: imagePath != "",
	})
}

// healthCheckTimeout bounds the classifier readiness check.
const healthCheckTimeout = 2 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rt := s.rt()
	status := types.HealthStatus{
		Status:     "ok",
		LLM:        rt.cfg.LLM.Model,
		LLMBaseURL: rt.cfg.LLM.BaseURL,
		Mode:       rt.diagnoser.Mode(),
		Classifier: "unavailable",
	}
	if rt.chat != nil {
		cls := rt.chat.Classifier()
		status.Classifier = cls.Name()
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		status.ModelsLoaded = cls.Ready(ctx)
		cancel()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var resp types.DiagnoseResponse
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&resp); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid report JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(resp.Diagnosis) == "" {
		writeError(w, http.StatusUnprocessableEntity, "Field 'diagnosis' is required.")
		return
	}

	now := time.Now()
	name := report.Filename(now)
	logging.Report("exporting report %s (%s)", name, resp.Diagnosis)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, report.Export(&resp, now))
}

type tracesResponse struct {
	Traces any `json:"traces"`
}

// handleTraces lists recent LLM traces. Disabled in production.
func (s *Server) handleTraces(w http.ResponseWriter, r *http.Request) {
	if s.rt().cfg.IsProduction() {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, tracesResponse{Traces: s.traces.Recent(limit)})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}
