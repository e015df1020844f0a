package github

import (
	"context"
	"strings"
	"testing"

	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/execx"
	"github.com/drover-dev/drover/internal/plugin"
	"github.com/drover-dev/drover/internal/session"
)

func testProject() config.Project {
	return config.Project{ID: "api", Path: "/repo/api"}
}

func prRef(id string) session.Ref {
	return session.Ref{Source: "github", ID: id}
}

func TestIssue(t *testing.T) {
	fake := execx.NewFakeExecutor()
	fake.ScriptOutput("gh issue view 42",
		`{"number":42,"title":"Fix login","body":"Users cannot log in.","url":"https://github.com/o/r/issues/42"}`)
	c := New(fake)

	issue, err := c.Issue(context.Background(), testProject(), session.Ref{ID: "42"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issue.Title != "Fix login" {
		t.Errorf("Title = %q", issue.Title)
	}
	if issue.Ref.URL != "https://github.com/o/r/issues/42" {
		t.Errorf("URL = %q", issue.Ref.URL)
	}
	if issue.Ref.Source != "github" {
		t.Errorf("Source = %q", issue.Ref.Source)
	}
}

func TestGeneratePrompt(t *testing.T) {
	c := New(execx.NewFakeExecutor())
	prompt := c.GeneratePrompt(plugin.Issue{
		Ref:   prRef("42"),
		Title: "Fix login",
		Body:  "Users cannot log in.",
	})
	for _, want := range []string{"#42", "Fix login", "Users cannot log in.", "pull request"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestIsIssueDone(t *testing.T) {
	tests := []struct {
		name     string
		response string
		scripted bool
		fail     bool
		want     plugin.Answer
	}{
		{name: "open issue", response: `{"state":"OPEN","stateReason":""}`, scripted: true, want: plugin.AnswerNo},
		{name: "completed", response: `{"state":"CLOSED","stateReason":"completed"}`, scripted: true, want: plugin.AnswerYes},
		{name: "closed not planned", response: `{"state":"CLOSED","stateReason":"not_planned"}`, scripted: true, want: plugin.AnswerNo},
		{name: "probe failure is unknown", fail: true, want: plugin.AnswerUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := execx.NewFakeExecutor()
			if tt.scripted {
				fake.ScriptOutput("gh issue view 42", tt.response)
			}
			if tt.fail {
				fake.ScriptError("gh issue view 42", "HTTP 500")
			}
			c := New(fake)

			got, err := c.IsIssueDone(context.Background(), testProject(), session.Ref{ID: "42"})
			if err != nil {
				t.Fatalf("IsIssueDone: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsIssueDone = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectPR(t *testing.T) {
	fake := execx.NewFakeExecutor()
	fake.ScriptOutput("gh pr list --head drover/fix-auth",
		`[{"number":7,"url":"https://github.com/o/r/pull/7"}]`)
	c := New(fake)

	ref, found, err := c.DetectPR(context.Background(), testProject(), "drover/fix-auth")
	if err != nil {
		t.Fatalf("DetectPR: %v", err)
	}
	if !found {
		t.Fatal("expected PR to be found")
	}
	if ref.ID != "7" || ref.Source != "github" {
		t.Errorf("ref = %+v", ref)
	}
}

func TestDetectPRNone(t *testing.T) {
	fake := execx.NewFakeExecutor()
	fake.ScriptOutput("gh pr list", `[]`)
	c := New(fake)

	_, found, err := c.DetectPR(context.Background(), testProject(), "drover/nothing")
	if err != nil {
		t.Fatalf("DetectPR: %v", err)
	}
	if found {
		t.Error("no PR should be found for empty list")
	}
}

func TestPRState(t *testing.T) {
	fake := execx.NewFakeExecutor()
	fake.ScriptOutput("gh pr view 7 --json state,isDraft,mergeable,url",
		`{"state":"OPEN","isDraft":true,"mergeable":"CONFLICTING","url":"https://github.com/o/r/pull/7"}`)
	fake.ScriptOutput("gh repo view", `{"owner":{"login":"o"},"name":"r"}`)
	fake.ScriptOutput("gh api graphql",
		`{"data":{"repository":{"pullRequest":{"reviewThreads":{"nodes":[{"isResolved":false},{"isResolved":true},{"isResolved":false}]}}}}}`)
	c := New(fake)

	st, err := c.PRState(context.Background(), testProject(), prRef("7"))
	if err != nil {
		t.Fatalf("PRState: %v", err)
	}
	if st.State != plugin.PRStateOpen {
		t.Errorf("State = %q", st.State)
	}
	if !st.IsDraft {
		t.Error("IsDraft = false, want true")
	}
	if !st.HasConflicts {
		t.Error("HasConflicts = false, want true")
	}
	if st.UnresolvedThreads != 2 {
		t.Errorf("UnresolvedThreads = %d, want 2", st.UnresolvedThreads)
	}
}

func TestPRStateMergedSkipsThreadProbe(t *testing.T) {
	fake := execx.NewFakeExecutor()
	fake.ScriptOutput("gh pr view 7 --json state,isDraft,mergeable,url",
		`{"state":"MERGED","isDraft":false,"mergeable":"UNKNOWN","url":""}`)
	c := New(fake)

	st, err := c.PRState(context.Background(), testProject(), prRef("7"))
	if err != nil {
		t.Fatalf("PRState: %v", err)
	}
	if st.State != plugin.PRStateMerged {
		t.Errorf("State = %q", st.State)
	}
	if fake.CallCount("gh api graphql") != 0 {
		t.Error("merged PR should not probe review threads")
	}
}

func TestCISummary(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     plugin.CIStatus
	}{
		{
			name:     "no checks",
			response: `{"statusCheckRollup":[]}`,
			want:     plugin.CIStatusNone,
		},
		{
			name: "all passing",
			response: `{"statusCheckRollup":[
				{"status":"COMPLETED","conclusion":"SUCCESS"},
				{"state":"SUCCESS"}]}`,
			want: plugin.CIStatusPassing,
		},
		{
			name: "one failure wins",
			response: `{"statusCheckRollup":[
				{"status":"COMPLETED","conclusion":"SUCCESS"},
				{"status":"COMPLETED","conclusion":"FAILURE"}]}`,
			want: plugin.CIStatusFailing,
		},
		{
			name: "in progress is pending",
			response: `{"statusCheckRollup":[
				{"status":"COMPLETED","conclusion":"SUCCESS"},
				{"status":"IN_PROGRESS","conclusion":""}]}`,
			want: plugin.CIStatusPending,
		},
		{
			name: "failure beats pending",
			response: `{"statusCheckRollup":[
				{"status":"IN_PROGRESS","conclusion":""},
				{"state":"FAILURE"}]}`,
			want: plugin.CIStatusFailing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := execx.NewFakeExecutor()
			fake.ScriptOutput("gh pr view 7", tt.response)
			c := New(fake)

			got, err := c.CISummary(context.Background(), testProject(), prRef("7"))
			if err != nil {
				t.Fatalf("CISummary: %v", err)
			}
			if got != tt.want {
				t.Errorf("CISummary = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReviewDecision(t *testing.T) {
	tests := []struct {
		response string
		want     plugin.ReviewDecision
	}{
		{`{"reviewDecision":"APPROVED"}`, plugin.ReviewApproved},
		{`{"reviewDecision":"CHANGES_REQUESTED"}`, plugin.ReviewChangesRequested},
		{`{"reviewDecision":"REVIEW_REQUIRED"}`, plugin.ReviewPending},
		{`{"reviewDecision":""}`, plugin.ReviewNone},
	}

	for _, tt := range tests {
		fake := execx.NewFakeExecutor()
		fake.ScriptOutput("gh pr view 7", tt.response)
		c := New(fake)

		got, err := c.ReviewDecision(context.Background(), testProject(), prRef("7"))
		if err != nil {
			t.Fatalf("ReviewDecision: %v", err)
		}
		if got != tt.want {
			t.Errorf("ReviewDecision(%s) = %q, want %q", tt.response, got, tt.want)
		}
	}
}

func TestMerge(t *testing.T) {
	fake := execx.NewFakeExecutor()
	c := New(fake)

	if err := c.Merge(context.Background(), testProject(), prRef("7")); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if fake.CallCount("gh pr merge 7 --squash --delete-branch") != 1 {
		t.Error("expected squash merge with branch deletion")
	}
}

func TestMergeFailure(t *testing.T) {
	fake := execx.NewFakeExecutor()
	fake.ScriptError("gh pr merge", "merge blocked by branch protection")
	c := New(fake)

	if err := c.Merge(context.Background(), testProject(), prRef("7")); err == nil {
		t.Fatal("expected merge failure to surface")
	}
}
