package txnmanager

import (
	"fmt"

	"repcrep/pkg/datamanager"
	"repcrep/pkg/primitives"
	"repcrep/pkg/report"
	"repcrep/pkg/txnerr"
)

// readOutcome is an explicit result variant for a single-site read
// attempt, used in place of raising and swallowing an exception: each
// per-site attempt returns one of these, and ReadIntention branches on it
// directly.
type readOutcome int

const (
	outcomeOK readOutcome = iota
	outcomeSiteDown
	outcomeDisqualified
	outcomeNoVisible
	outcomeUnknownVariable
)

type readAttempt struct {
	outcome readOutcome
	value   int
}

// ReadResult is what ReadIntention returns: exactly one of a completed
// read, a parked read awaiting recovery, or an abort.
type ReadResult struct {
	// Value and Site are set when a read succeeded immediately.
	Value int
	Site  primitives.SiteID
	// Parked is true when the read was queued against a down site.
	Parked bool
	// Aborted is true when every candidate site was exhausted.
	Aborted bool
}

// ReadIntention attempts to read v on behalf of transaction id. It tries
// every candidate site in topology order and returns the first successful
// read. A candidate that is merely down (and
// not disqualified by a failure interval) is remembered as a fallback
// rather than parked immediately: a replicated variable should still be
// served by a later, healthy replica before the read gives up and waits.
// Only once no candidate succeeds does the read actually park — against
// the first such down candidate — or, if none was parkable either, abort.
func (tm *TransactionManager) ReadIntention(id primitives.TransactionID, v primitives.VariableID) (ReadResult, report.Event, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	txn, err := tm.lookupActive(id)
	if err != nil {
		return ReadResult{}, nil, err
	}

	txn.readSet[v] = true
	candidates := primitives.SitesFor(v)

	var parkSite primitives.SiteID
	parkable := false

	for _, s := range candidates {
		attempt := tm.attemptRead(s, v, txn.StartTime)

		switch attempt.outcome {
		case outcomeOK:
			return ReadResult{Value: attempt.value, Site: s},
				report.ReadSucceeded{TxnID: id, Variable: v, Value: attempt.value, Site: s},
				nil

		case outcomeDisqualified, outcomeUnknownVariable, outcomeNoVisible:
			// Not a candidate for this snapshot; try the next site.
			continue

		case outcomeSiteDown:
			if !parkable {
				parkSite = s
				parkable = true
			}
		}
	}

	if parkable {
		tm.waitingReads = append(tm.waitingReads, waitingRead{txnID: id, variable: v, site: parkSite})
		return ReadResult{Parked: true}, nil, nil
	}

	txn.Status = Aborted
	reason := fmt.Sprintf("no valid site could provide the value for %s", v.Name())
	return ReadResult{Aborted: true}, report.TransactionAborted{TxnID: id, Reason: reason},
		txnerr.New(txnerr.KindNoValidSite, reason)
}

// attemptRead evaluates a single candidate site for a snapshot read,
// without mutating anything: it first checks whether a failure interval
// falsifies the snapshot at this site (the site is "disqualified" for
// this read), then either performs the read (if up) or signals that it
// should be parked (if down and not disqualified).
func (tm *TransactionManager) attemptRead(s primitives.SiteID, v primitives.VariableID, startTime primitives.Timestamp) readAttempt {
	dm := tm.sites[s]

	last, hasLast := dm.LastVisibleCommitTime(v, startTime)
	if hasLast && tm.disqualifiedByFailure(s, last, startTime) {
		return readAttempt{outcome: outcomeDisqualified}
	}

	if tm.siteStatus[s] == datamanager.Up {
		value, err := dm.Read(v, startTime)
		if err != nil {
			if txnerr.Is(err, txnerr.KindUnknownVariable) {
				return readAttempt{outcome: outcomeUnknownVariable}
			}
			return readAttempt{outcome: outcomeNoVisible}
		}
		return readAttempt{outcome: outcomeOK, value: value}
	}

	return readAttempt{outcome: outcomeSiteDown}
}

// disqualifiedByFailure reports whether site s was down for any part of
// the interval (lastCommit, startTime) — i.e. the version at lastCommit
// might be stale because the site failed after it committed but before the
// transaction's snapshot began.
func (tm *TransactionManager) disqualifiedByFailure(s primitives.SiteID, lastCommit, startTime primitives.Timestamp) bool {
	for _, ev := range tm.failureHistory[s] {
		if ev.status == eventDown && lastCommit < ev.at && ev.at < startTime {
			return true
		}
	}
	return false
}

// WriteIntention records a pending write for transaction id. No site is
// touched yet; validity is decided entirely at Commit.
func (tm *TransactionManager) WriteIntention(id primitives.TransactionID, v primitives.VariableID, value int, t primitives.Timestamp) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	txn, err := tm.lookupActive(id)
	if err != nil {
		return err
	}

	txn.writeSet[v] = writeIntention{value: value, writeTime: t}
	return nil
}
