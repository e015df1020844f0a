package lifecycle

import (
	"github.com/drover-dev/drover/internal/plugin"
	"github.com/drover-dev/drover/internal/session"
)

// Signals is the tuple of observations one reconciliation pass gathers for a
// session. DetermineStatus is a pure function of this tuple.
type Signals struct {
	RuntimeAlive bool
	Activity     session.Activity // "" when no probe succeeded
	HasPR        bool
	PR           plugin.PRState
	CI           plugin.CIStatus
	Review       plugin.ReviewDecision
}

// DetermineStatus derives the authoritative status from raw signals.
// Precedence is fixed, first match wins:
//
//  1. merged / closed-unmerged PR
//  2. dead process with exited agent
//  3. CI failing
//  4. changes requested
//  5. approved + CI passing + no conflicts
//  6. review pending or unresolved threads
//  7. waiting for input / blocked
//  8. working, or spawning when nothing has been observed yet
//
// Rules 3 to 6 never fire for draft PRs.
func DetermineStatus(sig Signals) session.Status {
	if sig.HasPR {
		switch sig.PR.State {
		case plugin.PRStateMerged:
			return session.StatusMerged
		case plugin.PRStateClosed:
			return session.StatusDone
		}
	}

	if !sig.RuntimeAlive && sig.Activity == session.ActivityExited {
		return session.StatusDone
	}

	if sig.HasPR && sig.PR.State == plugin.PRStateOpen && !sig.PR.IsDraft {
		if sig.CI == plugin.CIStatusFailing {
			return session.StatusCIFailed
		}
		if sig.Review == plugin.ReviewChangesRequested {
			return session.StatusChangesRequested
		}
		if sig.Review == plugin.ReviewApproved && sig.CI == plugin.CIStatusPassing && !sig.PR.HasConflicts {
			return session.StatusMergeable
		}
		if sig.Review == plugin.ReviewPending || sig.PR.UnresolvedThreads > 0 {
			return session.StatusReviewPending
		}
	}

	switch sig.Activity {
	case session.ActivityWaitingInput:
		return session.StatusNeedsInput
	case session.ActivityBlocked:
		return session.StatusStuck
	}

	if !sig.HasPR && sig.Activity == "" {
		return session.StatusSpawning
	}
	return session.StatusWorking
}
