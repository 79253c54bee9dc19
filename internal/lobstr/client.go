// Package lobstr implements a typed client for the lobstr.io v1 API.
//
// The client covers exactly the endpoints the squid lifecycle needs;
// it is not a general-purpose binding for the whole API surface.
package lobstr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// APIError reports a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lobstr api: http %d: %s", e.StatusCode, e.Body)
}

// Client talks to the lobstr.io v1 API using bearer-token auth.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	// Result exports live on pre-signed storage URLs and can take
	// longer than the API timeout, so downloads use a client without
	// one and rely on context cancellation instead.
	downloadc *http.Client
	logger    *zap.Logger
}

// NewClient builds a Client. timeout applies to API calls, not result
// downloads.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		httpc:     &http.Client{Timeout: timeout},
		downloadc: &http.Client{},
		logger:    logger,
	}
}

// CreateSquid registers a new squid from the given crawler template.
func (c *Client) CreateSquid(ctx context.Context, crawler string) (Squid, error) {
	payload := map[string]string{"crawler": crawler}
	var squid Squid
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/squids/create", payload, &squid); err != nil {
		return Squid{}, fmt.Errorf("create squid: %w", err)
	}
	if squid.ID == "" {
		return Squid{}, fmt.Errorf("create squid: response missing squid id")
	}
	return squid, nil
}

// UpdateSquid replaces the squid configuration.
func (c *Client) UpdateSquid(ctx context.Context, squidID string, settings SquidSettings) error {
	url := fmt.Sprintf("%s/squids/%s", c.baseURL, squidID)
	if err := c.do(ctx, http.MethodPost, url, settings, nil); err != nil {
		return fmt.Errorf("update squid: %w", err)
	}
	return nil
}

// DeleteSquid removes the squid from the remote service.
func (c *Client) DeleteSquid(ctx context.Context, squidID string) error {
	url := fmt.Sprintf("%s/squids/%s", c.baseURL, squidID)
	if err := c.do(ctx, http.MethodDelete, url, nil, nil); err != nil {
		return fmt.Errorf("delete squid: %w", err)
	}
	return nil
}

// UploadTasks submits a CSV/TSV task file to the squid as a multipart
// upload and returns the handle for the asynchronous ingestion. The
// extension is validated before the file is opened or any request made.
func (c *Client) UploadTasks(ctx context.Context, squidID, path string) (TaskUpload, error) {
	mimeType, err := TaskFileMIME(path)
	if err != nil {
		return TaskUpload{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return TaskUpload{}, fmt.Errorf("open tasks file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := newFilePart(mw, filepath.Base(path), mimeType)
	if err != nil {
		return TaskUpload{}, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return TaskUpload{}, fmt.Errorf("read tasks file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return TaskUpload{}, fmt.Errorf("finalize multipart body: %w", err)
	}

	url := fmt.Sprintf("%s/squids/%s/tasks/upload", c.baseURL, squidID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return TaskUpload{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var upload TaskUpload
	if err := c.send(req, &upload); err != nil {
		return TaskUpload{}, fmt.Errorf("upload tasks file: %w", err)
	}
	if upload.TaskID == "" {
		return TaskUpload{}, fmt.Errorf("upload tasks file: response missing task id")
	}
	return upload, nil
}

// UploadStatus fetches the ingestion state of an uploaded task file.
func (c *Client) UploadStatus(ctx context.Context, taskID string) (UploadStatus, error) {
	url := fmt.Sprintf("%s/tasks/upload/%s", c.baseURL, taskID)
	var status UploadStatus
	if err := c.do(ctx, http.MethodGet, url, nil, &status); err != nil {
		return UploadStatus{}, fmt.Errorf("check upload status: %w", err)
	}
	return status, nil
}

// StartRun launches one execution of the squid.
func (c *Client) StartRun(ctx context.Context, squidID string) (Run, error) {
	payload := map[string]string{"squid": squidID}
	var run Run
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/runs", payload, &run); err != nil {
		return Run{}, fmt.Errorf("start run: %w", err)
	}
	if run.ID == "" {
		return Run{}, fmt.Errorf("start run: response missing run id")
	}
	return run, nil
}

// RunStats fetches the live progress snapshot of a run.
func (c *Client) RunStats(ctx context.Context, runID string) (RunStats, error) {
	url := fmt.Sprintf("%s/runs/%s/stats", c.baseURL, runID)
	var stats RunStats
	if err := c.do(ctx, http.MethodGet, url, nil, &stats); err != nil {
		return RunStats{}, fmt.Errorf("retrieve run stats: %w", err)
	}
	return stats, nil
}

// RunDetails fetches the run resource, including export state and
// terminal metadata.
func (c *Client) RunDetails(ctx context.Context, runID string) (RunDetails, error) {
	url := fmt.Sprintf("%s/runs/%s", c.baseURL, runID)
	var details RunDetails
	if err := c.do(ctx, http.MethodGet, url, nil, &details); err != nil {
		return RunDetails{}, fmt.Errorf("retrieve run details: %w", err)
	}
	return details, nil
}

// DownloadURL resolves the transient location of the exported dataset.
func (c *Client) DownloadURL(ctx context.Context, runID string) (string, error) {
	url := fmt.Sprintf("%s/runs/%s/download", c.baseURL, runID)
	var dl Download
	if err := c.do(ctx, http.MethodGet, url, nil, &dl); err != nil {
		return "", fmt.Errorf("request download url: %w", err)
	}
	if dl.S3 == "" {
		return "", fmt.Errorf("request download url: response missing s3 url")
	}
	return dl.S3, nil
}

// FetchResults streams the exported dataset from its transient
// location. The URL is pre-signed, so no Authorization header is
// attached. The caller owns the returned body.
func (c *Client) FetchResults(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.downloadc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download results: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("download results: %w", &APIError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		})
	}
	return resp.Body, nil
}

// do runs one authenticated JSON round trip against the API.
func (c *Client) do(ctx context.Context, method, url string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

// send attaches auth, executes the request, and decodes the response.
func (c *Client) send(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Token "+c.apiKey)

	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	c.logger.Debug("lobstr api request",
		zap.String("request_id", requestID),
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
	)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("lobstr api response",
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// newFilePart creates the "file" form part carrying the task file with
// its real MIME type; CreateFormFile would hardcode octet-stream.
func newFilePart(mw *multipart.Writer, filename, mimeType string) (io.Writer, error) {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	header.Set("Content-Type", mimeType)
	return mw.CreatePart(header)
}

func escapeQuotes(s string) string {
	return strings.NewReplacer("\\", "\\\\", `"`, "\\\"").Replace(s)
}
