package txnmanager

import (
	"testing"

	"repcrep/pkg/primitives"
	"repcrep/pkg/txnerr"
)

func TestCommitAppliesWritesToAllEligibleSites(t *testing.T) {
	tm := New()
	tm.Begin(1, 1, false)
	if err := tm.WriteIntention(1, 2, 200, 2); err != nil {
		t.Fatalf("WriteIntention: %v", err)
	}

	result, err := tm.Commit(1, 3)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !result.Committed {
		t.Fatalf("CommitResult = %+v, want Committed", result)
	}

	for _, s := range primitives.SitesFor(2) {
		val, ok := tm.sites[s].CurrentValue(2)
		if !ok || val != 200 {
			t.Errorf("site %d x2 = (%d, %v), want (200, true)", s, val, ok)
		}
	}
}

func TestCommitNonReplicatedWriteOnlyTouchesHomeSite(t *testing.T) {
	tm := New()
	home := primitives.HomeSite(1)

	tm.Begin(1, 1, false)
	if err := tm.WriteIntention(1, 1, 101, 2); err != nil {
		t.Fatalf("WriteIntention: %v", err)
	}
	if _, err := tm.Commit(1, 3); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	val, ok := tm.sites[home].CurrentValue(1)
	if !ok || val != 101 {
		t.Fatalf("home site x1 = (%d, %v), want (101, true)", val, ok)
	}
}

// TestCommitFirstCommitterWinsAborts covers T2 starting before T1 commits
// its write to the same variable, so T2's commit must abort.
func TestCommitFirstCommitterWinsAborts(t *testing.T) {
	tm := New()
	tm.Begin(1, 1, false)
	tm.Begin(2, 2, false)

	if err := tm.WriteIntention(1, 2, 200, 3); err != nil {
		t.Fatalf("WriteIntention: %v", err)
	}
	if _, err := tm.Commit(1, 4); err != nil {
		t.Fatalf("Commit(1): %v", err)
	}

	if err := tm.WriteIntention(2, 2, 300, 5); err != nil {
		t.Fatalf("WriteIntention: %v", err)
	}
	result, err := tm.Commit(2, 6)
	if !txnerr.Is(err, txnerr.KindAbortFirstCommitter) {
		t.Fatalf("Commit(2) error = %v, want KindAbortFirstCommitter", err)
	}
	if result.Committed {
		t.Fatalf("CommitResult = %+v, want an abort", result)
	}

	txn, _ := tm.Transaction(2)
	if txn.Status != Aborted {
		t.Errorf("Status = %v, want Aborted", txn.Status)
	}
}

// TestCommitWriteBeforeFailureAborts covers any site failing after the
// write's timestamp but before commit, which invalidates the write
// regardless of whether that site hosts the written variable.
func TestCommitWriteBeforeFailureAborts(t *testing.T) {
	tm := New()
	tm.Begin(1, 1, false)
	if err := tm.WriteIntention(1, 2, 999, 2); err != nil {
		t.Fatalf("WriteIntention: %v", err)
	}
	if _, err := tm.Fail(3, 3); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	result, err := tm.Commit(1, 4)
	if !txnerr.Is(err, txnerr.KindAbortWriteBeforeFailure) {
		t.Fatalf("Commit error = %v, want KindAbortWriteBeforeFailure", err)
	}
	if result.Committed {
		t.Fatalf("CommitResult = %+v, want an abort", result)
	}
}

func TestCommitWithEmptyWriteSetLeavesStateUnchanged(t *testing.T) {
	tm := New()
	before := tm.Dump()

	tm.Begin(1, 1, false)
	result, err := tm.Commit(1, 2)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !result.Committed {
		t.Fatalf("CommitResult = %+v, want Committed", result)
	}
	if len(result.Events) != 1 {
		t.Fatalf("Events = %v, want just TransactionCommitted", result.Events)
	}

	after := tm.Dump()
	if before.FormatBlock() != after.FormatBlock() {
		t.Fatalf("state changed from an empty-write-set commit:\nbefore: %s\nafter: %s",
			before.FormatBlock(), after.FormatBlock())
	}
}

func TestCommitSkipsSiteThatRecoveredAfterTheWrite(t *testing.T) {
	tm := New()
	// Site 1 fails at time 1 and recovers at time 2; the write is stamped
	// at time 1. A write stamped before that recovery must not land on
	// site 1 even though it is up again by commit time.
	if _, err := tm.Fail(1, 1); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if _, err := tm.Recover(1, 2); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	tm.Begin(1, 0, false)
	if err := tm.WriteIntention(1, 2, 555, 1); err != nil {
		t.Fatalf("WriteIntention: %v", err)
	}
	result, err := tm.Commit(1, 10)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !result.Committed {
		t.Fatalf("CommitResult = %+v, want Committed", result)
	}

	val, _ := tm.sites[1].CurrentValue(2)
	if val == 555 {
		t.Errorf("site 1 received a write stamped before its own recovery")
	}
	for _, s := range primitives.SitesFor(2) {
		if s == 1 {
			continue
		}
		val, ok := tm.sites[s].CurrentValue(2)
		if !ok || val != 555 {
			t.Errorf("site %d x2 = (%d, %v), want (555, true)", s, val, ok)
		}
	}
}
