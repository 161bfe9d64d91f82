// Package httpjson holds the JSON request/response helpers shared by the
// HTTP transports.
package httpjson

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	apperrors "github.com/seproj/chatbackend/internal/platform/errors"
)

const maxBodyBytes = 1_000_000

// Read decodes the request body into dst. An empty body decodes as {}.
func Read(r *http.Request, dst any) error {
	if r == nil || r.Body == nil {
		return fmt.Errorf("empty request body")
	}
	defer r.Body.Close()

	b, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed reading request body: %v", err)
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		b = []byte("{}")
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("invalid json: %v", err)
	}
	return nil
}

func Write(w http.ResponseWriter, status int, v any) {
	if w == nil {
		return
	}
	if w.Header().Get("Cache-Control") == "" {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	b, err := json.Marshal(v)
	if err != nil {
		_, _ = w.Write([]byte(`{"detail":"failed to marshal json"}`))
		return
	}
	_, _ = w.Write(append(b, '\n'))
}

// Detail writes the {"detail": message} error body.
func Detail(w http.ResponseWriter, status int, message string) {
	Write(w, status, map[string]any{"detail": message})
}

// Error maps err's kind to a status and writes its message as detail.
func Error(w http.ResponseWriter, err error) {
	Detail(w, StatusFor(err), apperrors.MessageOf(err))
}

func StatusFor(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.KindInvalidRequest:
		return http.StatusBadRequest
	case apperrors.KindNoTranscripts, apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindGenerationUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.KindPolicy:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// LineWriter writes newline-delimited JSON values, flushing after each one.
type LineWriter struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
}

func NewLineWriter(w http.ResponseWriter) *LineWriter {
	lw := &LineWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		lw.flusher = f
	}
	return lw
}

func (l *LineWriter) WriteLine(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(append(b, '\n')); err != nil {
		return err
	}
	if l.flusher != nil {
		l.flusher.Flush()
	}
	return nil
}
