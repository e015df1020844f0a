package session

import (
	"testing"
	"time"
)

func TestStatusTerminal(t *testing.T) {
	terminal := []Status{StatusMerged, StatusKilled, StatusDone, StatusTerminated, StatusCleanup}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	live := []Status{StatusSpawning, StatusWorking, StatusPROpen, StatusReviewPending,
		StatusCIFailed, StatusChangesRequested, StatusApproved, StatusMergeable,
		StatusNeedsInput, StatusStuck, StatusErrored}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestStatusValid(t *testing.T) {
	if !StatusCIFailed.Valid() {
		t.Error("ci_failed should be valid")
	}
	if Status("exploded").Valid() {
		t.Error("unknown status should be invalid")
	}
}

func TestRefRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ref  Ref
		want string
	}{
		{"source and id", Ref{Source: "github", ID: "42"}, "github:42"},
		{"bare id", Ref{ID: "42"}, "42"},
		{"empty", Ref{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.ref.String()
			if got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			parsed := ParseRef(got)
			if parsed.Source != tt.ref.Source || parsed.ID != tt.ref.ID {
				t.Errorf("ParseRef(%q) = %+v, want %+v", got, parsed, tt.ref)
			}
		})
	}
}

func TestRecordRoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	s := &Session{
		ID:             "myproj-w4",
		ProjectID:      "myproj",
		Role:           RoleWorker,
		Status:         StatusReviewPending,
		Activity:       ActivityIdle,
		Branch:         "drover/myproj-w4",
		WorkspacePath:  "/tmp/worktrees/myproj-w4",
		IssueRef:       Ref{Source: "github", ID: "17", URL: "https://example.com/issues/17"},
		PRRef:          Ref{Source: "github", ID: "99"},
		RuntimeHandle:  "drover-myproj-w4",
		Summary:        "fix flaky watcher test",
		CreatedAt:      created,
		LastActivityAt: created.Add(2 * time.Hour),
	}

	back, err := FromRecord(s.ToRecord())
	if err != nil {
		t.Fatalf("FromRecord failed: %v", err)
	}

	if back.ID != s.ID || back.ProjectID != s.ProjectID || back.Role != s.Role {
		t.Errorf("identity fields lost: %+v", back)
	}
	if back.Status != s.Status || back.Activity != s.Activity {
		t.Errorf("status/activity lost: %s/%s", back.Status, back.Activity)
	}
	if back.IssueRef != s.IssueRef {
		t.Errorf("issue ref = %+v, want %+v", back.IssueRef, s.IssueRef)
	}
	if back.PRRef.ID != "99" {
		t.Errorf("pr ref = %+v", back.PRRef)
	}
	if !back.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", back.CreatedAt, created)
	}
}

func TestToRecordOmitsEmptyFields(t *testing.T) {
	s := &Session{ID: "p-w1", ProjectID: "p", Role: RoleWorker, Status: StatusSpawning}
	rec := s.ToRecord()

	for _, key := range []string{FieldRuntime, FieldPR, FieldIssue, FieldSummary, FieldBranch} {
		if v, ok := rec[key]; ok {
			t.Errorf("empty field %s should be omitted, got %q", key, v)
		}
	}
}

func TestFromRecordStale(t *testing.T) {
	if _, err := FromRecord(map[string]string{FieldStatus: "working"}); err == nil {
		t.Error("record without id should be rejected")
	}
	if _, err := FromRecord(map[string]string{FieldID: "x", FieldStatus: "bogus"}); err == nil {
		t.Error("record with unknown status should be rejected")
	}
}

func TestFromRecordDefaults(t *testing.T) {
	s, err := FromRecord(map[string]string{FieldID: "p-w1"})
	if err != nil {
		t.Fatalf("FromRecord failed: %v", err)
	}
	if s.Role != RoleWorker {
		t.Errorf("role default = %s, want worker", s.Role)
	}
	if s.Status != StatusSpawning {
		t.Errorf("status default = %s, want spawning", s.Status)
	}

	// Unknown activity degrades to unset, not an error.
	s, err = FromRecord(map[string]string{FieldID: "p-w1", FieldActivity: "meditating"})
	if err != nil {
		t.Fatalf("FromRecord failed: %v", err)
	}
	if s.Activity != "" {
		t.Errorf("unknown activity should degrade to unset, got %q", s.Activity)
	}
}

func TestValidateBranchName(t *testing.T) {
	tests := []struct {
		branch  string
		wantErr bool
	}{
		{"", false},
		{"feature/add-login", false},
		{"drover/myproj-w4", false},
		{"-leading-dash", true},
		{"bad..dots", true},
		{"ends.lock", true},
		{"has space", true},
	}
	for _, tt := range tests {
		err := ValidateBranchName(tt.branch)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateBranchName(%q) err = %v, wantErr %v", tt.branch, err, tt.wantErr)
		}
	}
}
