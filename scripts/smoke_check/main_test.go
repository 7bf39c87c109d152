package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckSendsTokenAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var payload map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.Header().Set("Content-Type", "application/json")
		if payload["documentPath"] == nil {
			w.WriteHeader(http.StatusBadRequest)
		}
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	res := check(srv.Client(), srv.URL, "tok", target{
		Method:       "POST",
		Path:         "api/v1/content/summaries",
		Body:         json.RawMessage(`{"documentPath":"class10/science/chapter1.pdf","pages":[1]}`),
		ExpectStatus: http.StatusOK,
		Auth:         true,
	})
	require.NoError(t, res.Error)
	assert.True(t, res.ok())

	res = check(srv.Client(), srv.URL, "", target{Method: "GET", Path: "/api/v1/tutors", ExpectStatus: http.StatusOK, Auth: true})
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.False(t, res.ok())
}

func TestValidEnvelope(t *testing.T) {
	assert.True(t, validEnvelope("application/json; charset=utf-8", []byte(`{"data":[]}`)))
	assert.False(t, validEnvelope("application/json", []byte(`[1,2]`)))
	assert.True(t, validEnvelope("text/csv", []byte("a,b")))
	assert.True(t, validEnvelope("application/json", nil))
}

func TestLoadTargetsDefaultsStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"targets":[{"path":"/health"}]}`), 0o644))

	targets, err := loadTargets(path)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, http.StatusOK, targets[0].ExpectStatus)
}
