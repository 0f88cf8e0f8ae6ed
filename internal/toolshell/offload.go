package toolshell

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OffloadThresholdDefault is the serialized-length cutoff above which a
// tool result is written to disk instead of returned inline.
const OffloadThresholdDefault = 20000

// OffloadTTLDefault is how long a tool-results file is kept before the
// pre-write sweep deletes it.
const OffloadTTLDefault = 30 * time.Minute

// OffloadPreviewMaxLines bounds how many meaningful lines make it into a
// preview.
const OffloadPreviewMaxLines = 20

// OffloadPreviewMaxChars bounds the preview's total length.
const OffloadPreviewMaxChars = 1200

// Offloaded describes a tool result that was written to disk because its
// serialized form exceeded the threshold.
type Offloaded struct {
	Offloaded   bool   `json:"offloaded"`
	Tool        string `json:"tool"`
	Path        string `json:"path"`
	ContentType string `json:"contentType"`
	OriginalSize int   `json:"originalSize"`
	Preview     string `json:"preview"`
}

// Offloader writes oversized tool results to ResultsDir and sweeps stale
// entries before every write.
type Offloader struct {
	Threshold int
	TTL       time.Duration
}

// NewOffloader returns an Offloader using the spec-mandated defaults.
func NewOffloader() *Offloader {
	return &Offloader{Threshold: OffloadThresholdDefault, TTL: OffloadTTLDefault}
}

// MaybeOffload serializes data as JSON; if the result is within threshold
// it returns (data, false, nil) unchanged. Otherwise it sweeps stale
// offload files, writes data to a new file under ctx.ResultsDir(), and
// returns an Offloaded descriptor.
func (o *Offloader) MaybeOffload(ctx Context, tool string, data any) (any, bool, error) {
	threshold := o.Threshold
	if threshold <= 0 {
		threshold = OffloadThresholdDefault
	}
	ttl := o.TTL
	if ttl <= 0 {
		ttl = OffloadTTLDefault
	}

	serialized, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, false, fmt.Errorf("toolshell: serialize tool result: %w", err)
	}
	if len(serialized) <= threshold {
		return data, false, nil
	}

	dir := ctx.ResultsDir()
	if err := sweep(dir, ttl); err != nil {
		return nil, false, fmt.Errorf("toolshell: sweep offload directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, false, fmt.Errorf("toolshell: create offload directory: %w", err)
	}

	contentType, ext := "application/json", "json"
	text, isText := data.(string)
	if isText {
		contentType, ext = "text/plain", "txt"
	}

	name := fmt.Sprintf("%s-%d-%s.%s", tool, time.Now().Unix(), uuid.NewString()[:8], ext)
	path := filepath.Join(dir, name)

	payload := serialized
	if isText {
		payload = []byte(text)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return nil, false, fmt.Errorf("toolshell: write offload file: %w", err)
	}

	return Offloaded{
		Offloaded:    true,
		Tool:         tool,
		Path:         path,
		ContentType:  contentType,
		OriginalSize: len(payload),
		Preview:      preview(string(payload)),
	}, true, nil
}

// preview returns up to OffloadPreviewMaxLines non-empty, non-bracket
// lines of s, capped at OffloadPreviewMaxChars total.
func preview(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if trimmed == "{" || trimmed == "}" || trimmed == "[" || trimmed == "]" {
			continue
		}
		lines = append(lines, trimmed)
		if len(lines) >= OffloadPreviewMaxLines {
			break
		}
	}
	out := strings.Join(lines, "\n")
	if len(out) > OffloadPreviewMaxChars {
		out = out[:OffloadPreviewMaxChars] + "…"
	}
	return out
}

// sweep deletes entries under dir older than ttl. Missing dir is not an error.
func sweep(dir string, ttl time.Duration) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-ttl)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, entry.Name()))
		}
	}
	return nil
}
