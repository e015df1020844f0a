package session

import (
	"fmt"
	"time"
)

// Record field names. The on-disk layout is compatibility-sensitive: these
// keys are read by older installs, so renames are additions, not swaps.
const (
	FieldID             = "id"
	FieldProject        = "project"
	FieldRole           = "role"
	FieldStatus         = "status"
	FieldActivity       = "activity"
	FieldBranch         = "branch"
	FieldWorkspace      = "workspace"
	FieldIssue          = "issue"
	FieldIssueURL       = "issue_url"
	FieldPR             = "pr"
	FieldPRURL          = "pr_url"
	FieldRuntime        = "runtime"
	FieldSummary        = "summary"
	FieldCreatedAt      = "created_at"
	FieldLastActivityAt = "last_activity_at"
)

// FieldOrder is the stable write order for session records. Fields not
// listed here are written after, sorted.
var FieldOrder = []string{
	FieldID, FieldProject, FieldRole, FieldStatus, FieldActivity,
	FieldBranch, FieldWorkspace, FieldIssue, FieldIssueURL,
	FieldPR, FieldPRURL, FieldRuntime, FieldSummary,
	FieldCreatedAt, FieldLastActivityAt,
}

// ToRecord converts a session to its flat persisted form. Empty fields are
// omitted, matching the record format's "empty means absent" rule.
func (s *Session) ToRecord() map[string]string {
	rec := map[string]string{
		FieldID:      s.ID,
		FieldProject: s.ProjectID,
		FieldRole:    string(s.Role),
		FieldStatus:  string(s.Status),
	}
	if s.Activity != "" {
		rec[FieldActivity] = string(s.Activity)
	}
	if s.Branch != "" {
		rec[FieldBranch] = s.Branch
	}
	if s.WorkspacePath != "" {
		rec[FieldWorkspace] = s.WorkspacePath
	}
	if ref := s.IssueRef.String(); ref != "" {
		rec[FieldIssue] = ref
	}
	if s.IssueRef.URL != "" {
		rec[FieldIssueURL] = s.IssueRef.URL
	}
	if ref := s.PRRef.String(); ref != "" {
		rec[FieldPR] = ref
	}
	if s.PRRef.URL != "" {
		rec[FieldPRURL] = s.PRRef.URL
	}
	if s.RuntimeHandle != "" {
		rec[FieldRuntime] = s.RuntimeHandle
	}
	if s.Summary != "" {
		rec[FieldSummary] = s.Summary
	}
	if !s.CreatedAt.IsZero() {
		rec[FieldCreatedAt] = s.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !s.LastActivityAt.IsZero() {
		rec[FieldLastActivityAt] = s.LastActivityAt.UTC().Format(time.RFC3339)
	}
	return rec
}

// FromRecord parses a persisted record back into a session. Unknown keys are
// ignored for forward compatibility. An error means the record is stale:
// missing its identity or carrying an out-of-enum status.
func FromRecord(rec map[string]string) (*Session, error) {
	id := rec[FieldID]
	if id == "" {
		return nil, fmt.Errorf("record has no id field")
	}

	s := &Session{
		ID:            id,
		ProjectID:     rec[FieldProject],
		Role:          Role(rec[FieldRole]),
		Status:        Status(rec[FieldStatus]),
		Activity:      Activity(rec[FieldActivity]),
		Branch:        rec[FieldBranch],
		WorkspacePath: rec[FieldWorkspace],
		RuntimeHandle: rec[FieldRuntime],
		Summary:       rec[FieldSummary],
	}

	if s.Role == "" {
		s.Role = RoleWorker
	}
	if s.Status == "" {
		s.Status = StatusSpawning
	}
	if !s.Status.Valid() {
		return nil, fmt.Errorf("record has unknown status %q", s.Status)
	}
	if s.Activity != "" && !s.Activity.Valid() {
		// Activity is advisory; an unknown value degrades to unset rather
		// than poisoning the whole record.
		s.Activity = ""
	}

	s.IssueRef = ParseRef(rec[FieldIssue])
	s.IssueRef.URL = rec[FieldIssueURL]
	s.PRRef = ParseRef(rec[FieldPR])
	s.PRRef.URL = rec[FieldPRURL]

	if v := rec[FieldCreatedAt]; v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			s.CreatedAt = t
		}
	}
	if v := rec[FieldLastActivityAt]; v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			s.LastActivityAt = t
		}
	}

	return s, nil
}
