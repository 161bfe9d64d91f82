package httpjson

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/seproj/chatbackend/internal/platform/errors"
)

func TestStatusFor(t *testing.T) {
	cases := map[int]error{
		http.StatusBadRequest:          apperrors.NewInvalidRequest("x"),
		http.StatusNotFound:            apperrors.NewNoTranscripts("x"),
		http.StatusServiceUnavailable:  apperrors.NewGenerationUnavailable("x", nil),
		http.StatusForbidden:           apperrors.NewPolicy("x"),
		http.StatusInternalServerError: apperrors.NewGeneration("x", nil),
	}
	for status, err := range cases {
		assert.Equal(t, status, StatusFor(err), err.Error())
	}
	assert.Equal(t, http.StatusInternalServerError, StatusFor(assert.AnError))
}

func TestErrorWritesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, apperrors.NewInvalidRequest("At least one message is required."))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"At least one message is required."}`, rec.Body.String())
}

func TestReadEmptyBodyIsObject(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("  "))
	var dst struct {
		Stream *bool `json:"stream"`
	}
	require.NoError(t, Read(req, &dst))
	assert.Nil(t, dst.Stream)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{nope"))
	assert.Error(t, Read(req, &dst))
}

func TestLineWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	lw := NewLineWriter(rec)
	require.NoError(t, lw.WriteLine(map[string]string{"type": "token"}))
	require.NoError(t, lw.WriteLine(map[string]string{"type": "done"}))

	assert.True(t, rec.Flushed)
	sc := bufio.NewScanner(rec.Body)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	assert.Equal(t, []string{`{"type":"token"}`, `{"type":"done"}`}, lines)
}
