package lobstr

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", 5*time.Second, nil), srv
}

func TestCreateSquid(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/squids/create", r.URL.Path)
		require.Equal(t, "Token test-key", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"crawler":"78f5839ee4b97c30e67eec391b907dd0"}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"squid-123"}`))
	}))

	squid, err := client.CreateSquid(context.Background(), "78f5839ee4b97c30e67eec391b907dd0")
	require.NoError(t, err)
	require.Equal(t, "squid-123", squid.ID)
}

func TestCreateSquidMissingID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	_, err := client.CreateSquid(context.Background(), "crawler-hash")
	require.ErrorContains(t, err, "missing squid id")
}

func TestUpdateSquidPayload(t *testing.T) {
	var captured string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/squids/squid-123", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		captured = string(body)
		w.WriteHeader(http.StatusOK)
	}))

	settings := SquidSettings{
		Concurrency:         3,
		ExportUniqueResults: true,
		NoLineBreaks:        true,
		ToComplete:          false,
		Params: SquidParams{
			MaxPages:           5,
			FillResultsDetails: ResultsDetails{AnnonceDetails: true},
		},
		RunNotify: RunNotifyOnSuccess,
	}
	require.NoError(t, client.UpdateSquid(context.Background(), "squid-123", settings))

	require.JSONEq(t, `{
		"concurrency": 3,
		"export_unique_results": true,
		"no_line_breaks": true,
		"to_complete": false,
		"params": {
			"max_pages": 5,
			"fill_results_details": {"annonce_details": true}
		},
		"accounts": null,
		"run_notify": "on_success"
	}`, captured)
}

func TestUploadTasks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "search.csv")
	require.NoError(t, os.WriteFile(path, []byte("city,max_price\nparis,500000\n"), 0o600))

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/squids/squid-123/tasks/upload", r.URL.Path)
		require.Equal(t, "Token test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		require.Equal(t, "search.csv", header.Filename)
		require.Equal(t, MIMETypeCSV, header.Header.Get("Content-Type"))

		content, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, "city,max_price\nparis,500000\n", string(content))

		_, _ = w.Write([]byte(`{"task_id":"upload-42"}`))
	}))

	upload, err := client.UploadTasks(context.Background(), "squid-123", path)
	require.NoError(t, err)
	require.Equal(t, "upload-42", upload.TaskID)
}

func TestUploadTasksRejectsBadExtensionBeforeAnyRequest(t *testing.T) {
	hits := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		hits++
	}))

	_, err := client.UploadTasks(context.Background(), "squid-123", "tasks.xlsx")
	require.ErrorContains(t, err, "invalid task file extension")
	require.Zero(t, hits, "no request may be sent for an invalid extension")
}

func TestUploadTasksMissingTaskID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "search.tsv")
	require.NoError(t, os.WriteFile(path, []byte("city\tparis\n"), 0o600))

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"state":"PENDING"}`))
	}))

	_, err := client.UploadTasks(context.Background(), "squid-123", path)
	require.ErrorContains(t, err, "missing task id")
}

func TestStartRunMissingID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"created"}`))
	}))

	_, err := client.StartRun(context.Background(), "squid-123")
	require.ErrorContains(t, err, "missing run id")
}

func TestNon2xxMapsToAPIError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"invalid token"}`))
	}))

	_, err := client.RunStats(context.Background(), "run-1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	require.Contains(t, apiErr.Body, "invalid token")
}

func TestFetchResultsOmitsAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"), "pre-signed downloads must not carry the API token")
		_, _ = w.Write([]byte("a,b\n1,2\n"))
	}))
	defer srv.Close()

	client := NewClient("http://unused.invalid", "test-key", 5*time.Second, nil)
	body, err := client.FetchResults(context.Background(), srv.URL+"/export.csv")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.Equal(t, "a,b\n1,2\n", string(data))
}

func TestFetchResultsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient("http://unused.invalid", "test-key", 5*time.Second, nil)
	_, err := client.FetchResults(context.Background(), srv.URL+"/export.csv")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}
