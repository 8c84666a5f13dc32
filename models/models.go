package models

import (
	"time"
)

// Record is the metadata of one candidate leak document as returned by the
// search result listing. It is a read-only handle used to fetch the content.
type Record struct {
	SystemID  string `json:"systemid" yaml:"systemid"`
	DocID     string `json:"did" yaml:"did"`
	StorageID string `json:"storageid" yaml:"storageid"`
	Bucket    string `json:"bucket" yaml:"bucket"`
	Name      string `json:"name" yaml:"name"`
	Date      string `json:"date" yaml:"date"`
	Media     int    `json:"media" yaml:"media"`
	Type      int    `json:"type" yaml:"type"`
	Size      int64  `json:"size" yaml:"size"`
}

const unknown = "Unknown"

// DisplayName returns the record name or "Unknown" when the upstream omitted it.
func (r Record) DisplayName() string {
	if r.Name == "" {
		return unknown
	}
	return r.Name
}

// DisplayDate returns the record date or "Unknown" when the upstream omitted it.
func (r Record) DisplayDate() string {
	if r.Date == "" {
		return unknown
	}
	return r.Date
}

// Credential is one account extracted from a leak by the analysis model.
type Credential struct {
	Email    string `json:"email" yaml:"email"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	HashType string `json:"hash_type,omitempty" yaml:"hash_type,omitempty"`
}

// Secret returns the password, or the hash type when no password was found.
func (c Credential) Secret() string {
	if c.Password != "" {
		return c.Password
	}
	return c.HashType
}

// Finding is the structured assessment of one leak document.
type Finding struct {
	RiskLevel   string       `json:"risk_level" yaml:"risk_level"`
	Summary     string       `json:"summary" yaml:"summary"`
	Credentials []Credential `json:"credentials" yaml:"credentials"`
	// Raw is the decoded object exactly as the model produced it.
	Raw map[string]any `json:"-" yaml:"-"`
}

// RecordStatus is the terminal state of one processed record.
type RecordStatus string

const (
	RecordAnalyzed    RecordStatus = "analyzed"
	RecordPreviewOnly RecordStatus = "preview_only"
	RecordSkipped     RecordStatus = "skipped"
)

// RecordReport is the outcome of processing one record.
type RecordReport struct {
	Index         int          `json:"index" yaml:"index"`
	Record        Record       `json:"record" yaml:"record"`
	Status        RecordStatus `json:"status" yaml:"status"`
	PreviewSource string       `json:"preview_source,omitempty" yaml:"preview_source,omitempty"`
	Snippet       string       `json:"snippet,omitempty" yaml:"snippet,omitempty"`
	Finding       *Finding     `json:"finding,omitempty" yaml:"finding,omitempty"`
	Warning       string       `json:"warning,omitempty" yaml:"warning,omitempty"`
}

// RunReport aggregates a whole run. It is never persisted.
type RunReport struct {
	RunID      string         `json:"run_id" yaml:"run_id"`
	Target     string         `json:"target" yaml:"target"`
	SearchID   string         `json:"search_id,omitempty" yaml:"search_id,omitempty"`
	Aborted    bool           `json:"aborted" yaml:"aborted"`
	Found      int            `json:"found" yaml:"found"`
	Records    []RecordReport `json:"records" yaml:"records"`
	StartedAt  time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time      `json:"finished_at" yaml:"finished_at"`
}

// Message is one chat turn sent to a completion provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
