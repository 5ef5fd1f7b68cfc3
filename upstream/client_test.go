package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetResourceDumpSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tenders/U1/dump", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":{"id":"U1"}}`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, UserAgent: "test-agent"})
	require.NoError(t, err)

	data, err := c.GetResourceDump(context.Background(), "tenders", "U1")
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "U1", decoded["id"])
}

func TestGetResourceDumpNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.GetResourceDump(context.Background(), "tenders", "U1")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestGetResourceDumpRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.GetResourceDump(context.Background(), "tenders", "U1")
	var rl *RateLimitedError
	assert.ErrorAs(t, err, &rl)
}

func TestGetResourceDumpRequestFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.GetResourceDump(context.Background(), "tenders", "U1")
	var rf *RequestFailedError
	assert.ErrorAs(t, err, &rf)
	assert.Equal(t, http.StatusInternalServerError, rf.StatusCode)
}

func TestGetResourceDumpInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.GetResourceDump(context.Background(), "tenders", "U1")
	var ir *InvalidResponseError
	assert.ErrorAs(t, err, &ir)
}

func TestDeleteResourceDumpSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	err = c.DeleteResourceDump(context.Background(), "tenders", "U1")
	assert.NoError(t, err)
}

func TestClearCookiesResetsJar(t *testing.T) {
	c, err := New(Config{BaseURL: "http://example.invalid"})
	require.NoError(t, err)

	before := c.http.Jar
	c.ClearCookies()
	assert.NotSame(t, before, c.http.Jar)
}
