// Package approvals implements on-disk approval-request storage: atomic
// rename-based JSON writes, snapshot sidecars recording each revision,
// and a wait-for-approval long-poll bridge to a dashboard endpoint.
package approvals

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is an approval request's lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ErrNotFound is returned when an approval ID has no record on disk.
var ErrNotFound = errors.New("approval not found")

// Approval is a single approval request.
type Approval struct {
	ID        string         `json:"id"`
	Category  string         `json:"category"`
	Status    Status         `json:"status"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Store reads and writes approvals under root/{category}/{id}.json, with
// every write additionally appended to root/{category}/.snapshots/{id}/.
type Store struct {
	Root string
}

// NewStore builds a Store rooted at {project}/.spec-context/approvals.
func NewStore(projectPath string) *Store {
	return &Store{Root: filepath.Join(projectPath, ".spec-context", "approvals")}
}

func (s *Store) categoryDir(category string) string {
	return filepath.Join(s.Root, category)
}

func (s *Store) recordPath(category, id string) string {
	return filepath.Join(s.categoryDir(category), id+".json")
}

func (s *Store) snapshotDir(category, id string) string {
	return filepath.Join(s.categoryDir(category), ".snapshots", id)
}

// Create writes a new pending approval and returns it.
func (s *Store) Create(category string, payload map[string]any) (*Approval, error) {
	now := time.Now().UTC()
	a := &Approval{
		ID:        uuid.NewString(),
		Category:  category,
		Status:    StatusPending,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.writeAtomic(a); err != nil {
		return nil, err
	}
	if err := s.writeSnapshot(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Get reads the current record for (category, id).
func (s *Store) Get(category, id string) (*Approval, error) {
	data, err := os.ReadFile(s.recordPath(category, id))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("approvals: read %s/%s: %w", category, id, err)
	}
	var a Approval
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("approvals: decode %s/%s: %w", category, id, err)
	}
	return &a, nil
}

// SetStatus transitions (category, id) to status, writing a new snapshot.
func (s *Store) SetStatus(category, id string, status Status) (*Approval, error) {
	a, err := s.Get(category, id)
	if err != nil {
		return nil, err
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	if err := s.writeAtomic(a); err != nil {
		return nil, err
	}
	if err := s.writeSnapshot(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Delete removes the approval record (snapshots are retained as history).
func (s *Store) Delete(category, id string) error {
	err := os.Remove(s.recordPath(category, id))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}

// writeAtomic writes a to its canonical path via the write-.tmp-then-rename
// pattern, so concurrent readers (e.g. a second MCP server process, or a
// dashboard tailing the file) never observe a partial write.
func (s *Store) writeAtomic(a *Approval) error {
	dir := s.categoryDir(a.Category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("approvals: create category dir: %w", err)
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("approvals: marshal: %w", err)
	}

	final := s.recordPath(a.Category, a.ID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("approvals: write temp file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("approvals: rename temp file: %w", err)
	}
	return nil
}

// snapshotMetadata tracks the next sequence number for a snapshot directory.
type snapshotMetadata struct {
	NextSequence int `json:"nextSequence"`
}

// writeSnapshot appends a numbered, append-only sidecar of a's current
// state to its snapshot directory, for audit/history purposes.
func (s *Store) writeSnapshot(a *Approval) error {
	dir := s.snapshotDir(a.Category, a.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("approvals: create snapshot dir: %w", err)
	}

	metaPath := filepath.Join(dir, "metadata.json")
	meta := snapshotMetadata{}
	if data, err := os.ReadFile(metaPath); err == nil {
		_ = json.Unmarshal(data, &meta)
	}
	meta.NextSequence++

	snapshotPath := filepath.Join(dir, fmt.Sprintf("snapshot-%03d.json", meta.NextSequence))
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("approvals: marshal snapshot: %w", err)
	}
	if err := os.WriteFile(snapshotPath, data, 0o644); err != nil {
		return fmt.Errorf("approvals: write snapshot: %w", err)
	}

	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("approvals: marshal snapshot metadata: %w", err)
	}
	tmp := metaPath + ".tmp"
	if err := os.WriteFile(tmp, metaData, 0o644); err != nil {
		return fmt.Errorf("approvals: write snapshot metadata: %w", err)
	}
	return os.Rename(tmp, metaPath)
}

// Snapshots lists the recorded snapshot filenames for (category, id), in
// sequence order.
func (s *Store) Snapshots(category, id string) ([]string, error) {
	dir := s.snapshotDir(category, id)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("approvals: list snapshots: %w", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "snapshot-") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
