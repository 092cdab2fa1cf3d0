package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/hrquiz/internal/codeimage"
	"github.com/dgallion1/hrquiz/internal/quiz"
	"github.com/dgallion1/hrquiz/internal/source"
)

const formOverhead = 1 << 20

// handleConvert converts one document synchronously and returns the XML.
// The input is either the raw request body, named by the filename query
// parameter, or a multipart upload in the "file" field.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxInputBytes+formOverhead)

	data, filename, err := s.readUpload(r)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	out, err := s.converter.Convert(r.Context(), bytes.NewReader(data), filename)
	if err != nil {
		s.log.Info("conversion rejected", "filename", filename, "error", err)
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", xmlName(filename)))
	w.Write(out)
}

// readUpload returns the uploaded bytes and a sanitized filename.
func (s *Server) readUpload(r *http.Request) ([]byte, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, "", badRequest("invalid multipart form: " + err.Error())
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", badRequest("file is required: " + err.Error())
		}
		defer file.Close()

		filename := sanitizeFilename(header.Filename)
		if !source.IsSupportedExtension(filename) {
			return nil, "", badRequest(fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)))
		}
		data, err := s.converter.ReadInput(file)
		return data, filename, err
	}

	filename := sanitizeFilename(r.URL.Query().Get("filename"))
	if filename == "unnamed" {
		filename = "quiz.txt"
	}
	if !source.IsSupportedExtension(filename) {
		return nil, "", badRequest(fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)))
	}
	data, err := s.converter.ReadInput(r.Body)
	if err != nil {
		return nil, "", err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, "", badRequest("request body is empty")
	}
	return data, filename, nil
}

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

// statusFor maps conversion errors to HTTP status codes.
func statusFor(err error) int {
	var reqErr *requestError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, quiz.ErrInputTooLarge), errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, quiz.ErrParseTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, quiz.ErrMissingSection),
		errors.Is(err, quiz.ErrDuplicateSection),
		errors.Is(err, quiz.ErrUnconsumedText),
		errors.Is(err, codeimage.ErrTooLarge):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func xmlName(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ".xml"
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
