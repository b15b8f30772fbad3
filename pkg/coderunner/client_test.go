package coderunner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/execute", r.URL.Path)

		var req executeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "python", req.Language)
		require.Equal(t, "5", req.Stdin)

		json.NewEncoder(w).Encode(executeResponse{Stdout: "10\n", ExitCode: 0})
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL})
	require.NoError(t, err)

	result, err := client.Run(context.Background(), RunRequest{
		Language: "python",
		Source:   "print(int(input())*2)",
		Stdin:    "5",
	})
	require.NoError(t, err)
	require.Equal(t, "10\n", result.Stdout)
	require.Zero(t, result.ExitCode)
	require.False(t, result.TimedOut)
	require.Positive(t, result.Duration)
}

func TestClientRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(executeResponse{Stdout: "ok"})
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, MaxRetries: 2})
	require.NoError(t, err)

	result, err := client.Run(context.Background(), RunRequest{Language: "python", Source: "..."})
	require.NoError(t, err)
	require.Equal(t, "ok", result.Stdout)
	require.Equal(t, int32(2), calls.Load())
}

func TestClientSurfacesRunnerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported language", http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Run(context.Background(), RunRequest{Language: "cobol", Source: "..."})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported language")
}

func TestClientReportsTimedOutRuns(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(executeResponse{TimedOut: true, ExitCode: -1})
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL})
	require.NoError(t, err)

	result, err := client.Run(context.Background(), RunRequest{Language: "python", Source: "while True: pass"})
	require.NoError(t, err)
	require.True(t, result.TimedOut)
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}
