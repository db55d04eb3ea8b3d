package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/checkmate/internal/normalizer"
)

var errUploadTooLarge = errors.New("upload too large")

// multipartMemory is the in-memory part of a parsed form; larger uploads
// spill to temporary files.
const multipartMemory = 32 << 20

type upload struct {
	filename string
	data     []byte
}

// handleNormalize extracts the text of an uploaded draft.
func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	s.limitBody(w, r)
	if err := parseForm(r); err != nil {
		jsonError(w, formErrorMessage(err), formErrorStatus(err))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	up, err := s.readUpload(r, "file")
	if err != nil {
		jsonError(w, formErrorMessage(err), formErrorStatus(err))
		return
	}
	if up == nil {
		jsonError(w, "file is required", http.StatusBadRequest)
		return
	}

	declared := normalizer.FormatUnknown
	if v := r.FormValue("format"); v != "" {
		f, err := normalizer.ParseFormat(v)
		if err != nil {
			jsonError(w, err.Error(), http.StatusUnsupportedMediaType)
			return
		}
		declared = f
	}

	res, err := s.normalize(up, declared)
	if err != nil {
		jsonError(w, uploadErrorMessage(up.filename, err), normalizeErrorStatus(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"filename": up.filename,
		"format":   res.Format.String(),
		"text":     res.Text,
		"chars":    utf8.RuneCountInString(res.Text),
	})
}

// normalize runs the normalizer and records the result.
func (s *Server) normalize(up *upload, declared normalizer.Format) (normalizer.Result, error) {
	res, err := normalizer.Normalize(normalizer.Document{
		Filename: up.filename,
		Content:  up.data,
		Format:   declared,
	})
	if err != nil {
		format := declared
		var nerr *normalizer.Error
		if errors.As(err, &nerr) {
			format = nerr.Format
		}
		s.metrics.ObserveNormalize(format.String(), normalizer.KindOf(err).String(), 0)
		s.log.Warn("normalize failed", "filename", up.filename, "bytes", len(up.data), "error", err)
		return normalizer.Result{}, err
	}

	chars := utf8.RuneCountInString(res.Text)
	s.metrics.ObserveNormalize(res.Format.String(), "ok", chars)
	s.log.Debug("normalized upload", "filename", up.filename, "format", res.Format, "chars", chars)
	return res, nil
}

// limitBody caps the request body at the upload limit plus form overhead.
func (s *Server) limitBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)
}

// parseForm accepts both multipart and urlencoded bodies.
func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

// readUpload returns the named file field, or nil when none was sent.
func (s *Server) readUpload(r *http.Request, field string) (*upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: file exceeds max size (%d bytes)", errUploadTooLarge, s.cfg.MaxUploadBytes)
	}
	return &upload{filename: sanitizeFilename(header.Filename), data: data}, nil
}

func formErrorStatus(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || errors.Is(err, errUploadTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func formErrorMessage(err error) string {
	if formErrorStatus(err) == http.StatusRequestEntityTooLarge {
		return "upload exceeds the size limit"
	}
	return "invalid form: " + err.Error()
}

func normalizeErrorStatus(err error) int {
	switch normalizer.KindOf(err) {
	case normalizer.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case normalizer.KindCorruptFile, normalizer.KindEmptyContent:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// uploadErrorMessage explains a normalization failure to the uploader.
func uploadErrorMessage(filename string, err error) string {
	switch normalizer.KindOf(err) {
	case normalizer.KindUnsupportedFormat:
		return fmt.Sprintf("unsupported file type %q: upload a .txt, .pdf or .docx file", filepath.Ext(filename))
	case normalizer.KindCorruptFile:
		return fmt.Sprintf("%s could not be read; the file looks damaged", filename)
	case normalizer.KindEmptyContent:
		return fmt.Sprintf("%s is empty", filename)
	default:
		return "failed to read " + filename
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Browsers on Windows may send the full client path.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == ".." || name == "/" {
		name = "unnamed"
	}
	return name
}
