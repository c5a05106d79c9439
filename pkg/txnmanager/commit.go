package txnmanager

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"repcrep/pkg/datamanager"
	"repcrep/pkg/primitives"
	"repcrep/pkg/report"
	"repcrep/pkg/txnerr"
)

// CommitResult carries the events produced by a successful or aborted
// commit, in emission order.
type CommitResult struct {
	Committed bool
	Events    []report.Event
}

// Commit validates and, if valid, applies transaction id's write set at
// timestamp t. Validation runs first-committer-wins and write-before-failure
// checks; if either fails the transaction aborts atomically with no writes
// applied. Otherwise every write lands on its eligible target sites and the
// transaction commits.
func (tm *TransactionManager) Commit(id primitives.TransactionID, t primitives.Timestamp) (CommitResult, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	txn, err := tm.lookupActive(id)
	if err != nil {
		return CommitResult{}, err
	}

	if reason, kind, aborts := tm.validateCommit(txn); aborts {
		txn.Status = Aborted
		return CommitResult{Events: []report.Event{report.TransactionAborted{TxnID: id, Reason: reason}}},
			txnerr.New(kind, reason)
	}

	events := tm.applyWrites(txn)
	txn.Status = Committed
	events = append(events, report.TransactionCommitted{TxnID: id})

	return CommitResult{Committed: true, Events: events}, nil
}

// validateCommit runs the first-committer-wins and write-before-failure
// checks and returns the first failing reason and its error kind, if any.
func (tm *TransactionManager) validateCommit(txn *Transaction) (reason string, kind txnerr.Kind, aborts bool) {
	// Deterministic iteration order so the first reported violation is
	// reproducible across runs.
	vars := txn.WriteSet()
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })

	for _, v := range vars {
		intent := txn.writeSet[v]
		if r, violated := tm.firstCommitterWinsViolated(v, txn.StartTime); violated {
			return r, txnerr.KindAbortFirstCommitter, true
		}
		if r, violated := tm.writeBeforeFailureViolated(intent.writeTime); violated {
			return r, txnerr.KindAbortWriteBeforeFailure, true
		}
	}
	return "", "", false
}

// firstCommitterWinsViolated checks, for every up site hosting v, whether
// the latest committed version postdates this transaction's snapshot —
// meaning some other transaction committed a write to v after this one
// began.
func (tm *TransactionManager) firstCommitterWinsViolated(v primitives.VariableID, startTime primitives.Timestamp) (string, bool) {
	for s, dm := range tm.sites {
		if tm.siteStatus[s] != datamanager.Up {
			continue
		}
		if !dm.HasVariable(v) {
			continue
		}
		last, ok := dm.LastCommitTime(v)
		if ok && last > startTime {
			return fmt.Sprintf("%s was committed at %d, after transaction start time %d", v.Name(), last, startTime), true
		}
	}
	return "", false
}

// writeBeforeFailureViolated checks writeTime against every site's failure
// history, not only sites hosting the written variable — see DESIGN.md for
// why this scope is kept as-is.
func (tm *TransactionManager) writeBeforeFailureViolated(writeTime primitives.Timestamp) (string, bool) {
	for s := range tm.sites {
		for _, ev := range tm.failureHistory[s] {
			if ev.status == eventDown && writeTime < ev.at {
				return fmt.Sprintf("write timestamp %d precedes failure timestamp %d on site %s", writeTime, ev.at, s), true
			}
		}
	}
	return "", false
}

// applyWrites pushes every write in txn's write set into its eligible
// target sites and returns the per-variable "wrote to sites" events.
// Replicated-variable writes fan out to their up target sites
// concurrently via errgroup, since each target DataManager owns its state
// exclusively and the resulting written-sites set is order-independent.
func (tm *TransactionManager) applyWrites(txn *Transaction) []report.Event {
	// Deterministic iteration order keeps output reproducible across runs.
	vars := txn.WriteSet()
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })

	events := make([]report.Event, 0, len(vars))
	for _, v := range vars {
		intent := txn.writeSet[v]
		written := tm.applyWrite(v, intent)
		if len(written) > 0 {
			events = append(events, report.WriteApplied{TxnID: txn.ID, Variable: v, Sites: written})
		}
	}
	return events
}

func (tm *TransactionManager) applyWrite(v primitives.VariableID, intent writeIntention) []primitives.SiteID {
	targets := make([]primitives.SiteID, 0, len(primitives.SitesFor(v)))
	for _, s := range primitives.SitesFor(v) {
		if tm.siteStatus[s] != datamanager.Up {
			continue
		}
		if !tm.sites[s].HasVariable(v) {
			continue
		}
		if lastRecovery, ok := tm.lastRecoveryTime(s); ok && intent.writeTime < lastRecovery {
			continue
		}
		targets = append(targets, s)
	}

	written := make([]primitives.SiteID, 0, len(targets))
	var mu sync.Mutex
	var g errgroup.Group
	for _, s := range targets {
		s := s
		g.Go(func() error {
			if err := tm.sites[s].Write(v, intent.value, intent.writeTime); err != nil {
				return err
			}
			mu.Lock()
			written = append(written, s)
			mu.Unlock()
			return nil
		})
	}
	// Every target site was just confirmed up and hosting v under tm.mu,
	// which the caller still holds, so a write can only fail here if a
	// site's status changed concurrently — it cannot, since tm.mu is held
	// for the duration of Commit. The error is therefore always nil.
	_ = g.Wait()

	sort.Slice(written, func(i, j int) bool { return written[i] < written[j] })
	return written
}

// lastRecoveryTime returns the timestamp of site s's most recent up event,
// if any.
func (tm *TransactionManager) lastRecoveryTime(s primitives.SiteID) (primitives.Timestamp, bool) {
	var last primitives.Timestamp
	found := false
	for _, ev := range tm.failureHistory[s] {
		if ev.status == eventUp && (!found || ev.at > last) {
			last = ev.at
			found = true
		}
	}
	return last, found
}
