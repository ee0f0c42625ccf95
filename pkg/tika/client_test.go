package tika

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-agent-go/internal/config"
)

func TestExtractText_PlainTextSkipsServer(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	text, err := NewClient(config.TikaConfig{ServerURL: srv.URL}).
		ExtractText(context.Background(), strings.NewReader("  line one\r\nline two\n"), "faq.MD")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", text)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestExtractText_UsesServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tika", r.URL.Path)
		assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "%PDF", string(body))
		_, _ = w.Write([]byte("\nPolicy terms\r\n"))
	}))
	defer srv.Close()

	text, err := NewClient(config.TikaConfig{ServerURL: srv.URL + "/"}).
		ExtractText(context.Background(), strings.NewReader("%PDF"), "terms.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Policy terms", text)
}

func TestExtractText_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := NewClient(config.TikaConfig{ServerURL: srv.URL}).
		ExtractText(context.Background(), strings.NewReader("x"), "a.bin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, "application/octet-stream", detectMimeType("noext"))
	assert.Equal(t, "application/pdf", detectMimeType("x.pdf"))
}
