package lobstr

import "strings"

// RunNotifyOnSuccess asks the service to send its run notification only
// when a run finishes successfully.
const RunNotifyOnSuccess = "on_success"

// Squid is a configured, reusable scraping job definition registered
// with the remote service.
type Squid struct {
	ID string `json:"id"`
}

// SquidSettings is the full configuration payload for an existing squid.
// The export and notification flags are fixed by the workflow; only
// Concurrency and Params vary with caller input.
type SquidSettings struct {
	Concurrency         int         `json:"concurrency"`
	ExportUniqueResults bool        `json:"export_unique_results"`
	NoLineBreaks        bool        `json:"no_line_breaks"`
	ToComplete          bool        `json:"to_complete"`
	Params              SquidParams `json:"params"`
	Accounts            any         `json:"accounts"`
	RunNotify           string      `json:"run_notify"`
}

// SquidParams carries the crawler-specific knobs nested under "params".
type SquidParams struct {
	MaxPages           int            `json:"max_pages"`
	FillResultsDetails ResultsDetails `json:"fill_results_details"`
}

// ResultsDetails toggles per-result detail fetching on the remote side.
type ResultsDetails struct {
	AnnonceDetails bool `json:"annonce_details"`
}

// TaskUpload identifies an asynchronous task-file ingestion on the
// remote side.
type TaskUpload struct {
	TaskID string `json:"task_id"`
}

// UploadStatus reports the ingestion state of an uploaded task file.
type UploadStatus struct {
	State string `json:"state"`
}

// Done reports whether the upload reached its terminal success state.
// The comparison is case-insensitive; the service has been seen
// reporting both "SUCCESS" and "success".
func (s UploadStatus) Done() bool {
	return strings.EqualFold(s.State, "SUCCESS")
}

// Run is one execution instance of a squid.
type Run struct {
	ID string `json:"id"`
}

// RunStats is the live progress snapshot of a run.
type RunStats struct {
	PercentDone  string `json:"percent_done"`
	ResultsDone  int    `json:"results_done"`
	ResultsTotal int    `json:"results_total"`
	IsDone       bool   `json:"is_done"`
}

// RunDetails carries the terminal metadata of a run, meaningful once
// ExportDone is true.
type RunDetails struct {
	ExportDone         bool    `json:"export_done"`
	Status             string  `json:"status"`
	DoneReason         string  `json:"done_reason"`
	Duration           string  `json:"duration"`
	CreditUsed         float64 `json:"credit_used"`
	TotalResults       int     `json:"total_results"`
	TotalUniqueResults int     `json:"total_unique_results"`
}

// Download points at the transient, pre-signed location of an exported
// dataset.
type Download struct {
	S3 string `json:"s3"`
}
