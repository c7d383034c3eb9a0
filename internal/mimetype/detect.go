// Package mimetype provides best-effort mime detection for attachment and
// upload files. Detection never fails: unreadable or unrecognizable content
// yields "unknown".
package mimetype

import (
	"net/http"
	"os"
	"strings"
)

// Unknown is returned when neither the suffix table nor content sniffing
// produces an answer.
const Unknown = "unknown"

// Detector resolves a file path to a mime type string.
type Detector interface {
	Detect(path string) string
}

// suffixTypes maps the neuroimaging suffixes handled by the store to their
// conventional mime strings. Longest suffix wins, so .nii.gz resolves before .gz.
var suffixTypes = map[string]string{
	".nii":    "application/NIfTI-1",
	".nii.gz": "application/x-gzip",
	".mgh":    "application/MGH",
	".mgz":    "application/x-gzip",
	".mgh.gz": "application/x-gzip",
	".tar":    "application/x-tar",
	".tar.gz": "application/x-gzip",
	".tgz":    "application/x-gzip",
	".gz":     "application/x-gzip",
	".json":   "application/json",
	".txt":    "text/plain",
	".csv":    "text/csv",
	".png":    "image/png",
	".jpg":    "image/jpeg",
	".jpeg":   "image/jpeg",
	".gif":    "image/gif",
	".mat":    "application/octet-stream",
}

// SuffixDetector resolves types from the suffix table first and falls back
// to content sniffing of the leading bytes.
type SuffixDetector struct{}

// Detect implements Detector.
func (SuffixDetector) Detect(path string) string {
	lower := strings.ToLower(path)
	best := ""
	bestLen := 0
	for suffix, mime := range suffixTypes {
		if strings.HasSuffix(lower, suffix) && len(suffix) > bestLen {
			best, bestLen = mime, len(suffix)
		}
	}
	if best != "" {
		return best
	}
	return sniff(path)
}

func sniff(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return Unknown
	}
	defer func() { _ = f.Close() }()
	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return Unknown
	}
	return http.DetectContentType(buf[:n])
}

// Detect resolves path with the default detector.
func Detect(path string) string { return SuffixDetector{}.Detect(path) }
