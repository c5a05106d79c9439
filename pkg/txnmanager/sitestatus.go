package txnmanager

import (
	"fmt"

	"repcrep/pkg/datamanager"
	"repcrep/pkg/primitives"
	"repcrep/pkg/report"
)

// Fail marks site s down at timestamp t. The transition is edge-triggered:
// calling Fail on an already-down site is a no-op.
func (tm *TransactionManager) Fail(s primitives.SiteID, t primitives.Timestamp) ([]report.Event, error) {
	return tm.updateSiteStatus(s, datamanager.Down, t)
}

// Recover marks site s up at timestamp t, then drains any reads parked
// against it. Edge-triggered like Fail.
func (tm *TransactionManager) Recover(s primitives.SiteID, t primitives.Timestamp) ([]report.Event, error) {
	return tm.updateSiteStatus(s, datamanager.Up, t)
}

func (tm *TransactionManager) updateSiteStatus(s primitives.SiteID, newStatus datamanager.Status, t primitives.Timestamp) ([]report.Event, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	dm, ok := tm.sites[s]
	if !ok {
		return nil, fmt.Errorf("site %s does not exist", s)
	}

	current := tm.siteStatus[s]
	if current == newStatus {
		return nil, nil // no-op transition
	}

	switch newStatus {
	case datamanager.Down:
		dm.Fail()
		tm.failureHistory[s] = append(tm.failureHistory[s], failureEvent{at: t, status: eventDown})
		tm.siteStatus[s] = datamanager.Down
		return nil, nil

	case datamanager.Up:
		dm.Recover()
		tm.failureHistory[s] = append(tm.failureHistory[s], failureEvent{at: t, status: eventUp})
		tm.siteStatus[s] = datamanager.Up
		events := []report.Event{report.SiteRecovered{Site: s}}
		events = append(events, tm.drainWaitingReads(s)...)
		return events, nil
	}

	return nil, nil
}

// drainWaitingReads retries every read parked against the just-recovered
// site s. A successful retry reports the read and removes the entry; a
// failed retry leaves it parked — it may resolve against a later recovery
// of the same site, or the owning transaction may later be aborted by
// other means. Entries are retained and retried, never dropped on a
// failed retry.
func (tm *TransactionManager) drainWaitingReads(s primitives.SiteID) []report.Event {
	var events []report.Event
	remaining := tm.waitingReads[:0:0]

	for _, entry := range tm.waitingReads {
		if entry.site != s {
			remaining = append(remaining, entry)
			continue
		}

		txn, ok := tm.transactions[entry.txnID]
		if !ok {
			// Shouldn't happen: transactions are never removed from the
			// table. Drop the orphaned entry rather than retry forever.
			continue
		}

		value, err := tm.sites[s].Read(entry.variable, txn.StartTime)
		if err != nil {
			remaining = append(remaining, entry)
			continue
		}

		events = append(events, report.ReadSucceeded{
			TxnID:     entry.txnID,
			Variable:  entry.variable,
			Value:     value,
			Site:      s,
			Recovered: true,
		})
	}

	tm.waitingReads = remaining
	return events
}
