package lobstr

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MIME types accepted by the task upload endpoint.
const (
	MIMETypeCSV = "text/csv"
	MIMETypeTSV = "text/tab-separated-values"
)

// TaskFileMIME derives the upload MIME type from the task file
// extension. Only .csv and .tsv files are accepted, any case; anything
// else fails before a byte leaves the machine.
func TaskFileMIME(path string) (string, error) {
	ext := filepath.Ext(path)
	switch strings.ToLower(ext) {
	case ".csv":
		return MIMETypeCSV, nil
	case ".tsv":
		return MIMETypeTSV, nil
	}
	return "", fmt.Errorf("invalid task file extension %q: valid values are csv or tsv", ext)
}
