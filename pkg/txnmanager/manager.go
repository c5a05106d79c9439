// Package txnmanager implements the TransactionManager: transaction
// lifecycle, read/write routing across the per-site DataManagers, commit
// validation, site failure/recovery bookkeeping, and the deferred read
// queue.
package txnmanager

import (
	"fmt"
	"sync"

	"repcrep/pkg/datamanager"
	"repcrep/pkg/primitives"
	"repcrep/pkg/report"
	"repcrep/pkg/txnerr"
)

// TransactionManager owns the cluster topology, active transactions,
// per-site status, failure history, and the waiting-read queue.
type TransactionManager struct {
	mu sync.Mutex

	sites          map[primitives.SiteID]*datamanager.DataManager
	siteStatus     map[primitives.SiteID]datamanager.Status
	failureHistory map[primitives.SiteID][]failureEvent
	transactions   map[primitives.TransactionID]*Transaction
	waitingReads   []waitingRead
}

// New builds a TransactionManager with the fixed 10-site, 20-variable
// cluster, bootstrapped so that every variable xi starts at value 10*i
// with commit_time 0 on every site that hosts it.
func New() *TransactionManager {
	tm := &TransactionManager{
		sites:          make(map[primitives.SiteID]*datamanager.DataManager),
		siteStatus:     make(map[primitives.SiteID]datamanager.Status),
		failureHistory: make(map[primitives.SiteID][]failureEvent),
		transactions:   make(map[primitives.TransactionID]*Transaction),
	}

	for _, s := range primitives.AllSites() {
		tm.sites[s] = datamanager.New(s)
		tm.siteStatus[s] = datamanager.Up
		tm.failureHistory[s] = nil
	}

	for _, v := range primitives.AllVariables() {
		initial := primitives.InitialValue(v)
		for _, s := range primitives.SitesFor(v) {
			// Initial bootstrap writes cannot fail: every site starts up.
			_ = tm.sites[s].Write(v, initial, 0)
		}
	}

	return tm
}

// Begin starts a new transaction at timestamp t. The read-only hint is
// accepted and ignored: snapshot isolation governs all transactions
// uniformly, and nothing in this design distinguishes read-only
// transactions, so a write issued by one is simply processed like any
// other write intention.
func (tm *TransactionManager) Begin(id primitives.TransactionID, t primitives.Timestamp, isReadOnly bool) report.Event {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.transactions[id] = newTransaction(id, t, isReadOnly)
	return report.TransactionStarted{TxnID: id, At: t}
}

// Transaction returns the transaction state for id, for inspection by
// callers such as the TUI or tests. The returned pointer must not be
// mutated.
func (tm *TransactionManager) Transaction(id primitives.TransactionID) (*Transaction, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	t, ok := tm.transactions[id]
	return t, ok
}

func (tm *TransactionManager) lookupActive(id primitives.TransactionID) (*Transaction, error) {
	t, ok := tm.transactions[id]
	if !ok {
		return nil, txnerr.New(txnerr.KindUnknownTransaction, fmt.Sprintf("transaction T%d does not exist", id))
	}
	if t.Status != Active {
		return nil, txnerr.New(txnerr.KindUnknownTransaction, fmt.Sprintf("transaction T%d has already %s", id, t.Status))
	}
	return t, nil
}

// SiteStatus reports whether site s is currently up or down.
func (tm *TransactionManager) SiteStatus(s primitives.SiteID) (datamanager.Status, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	st, ok := tm.siteStatus[s]
	return st, ok
}

// FailureRecord is one down/up transition in a site's failure history.
type FailureRecord struct {
	At     primitives.Timestamp
	Status string
}

// FailureHistory returns a copy of site s's recorded down/up transitions
// in order.
func (tm *TransactionManager) FailureHistory(s primitives.SiteID) []FailureRecord {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	events := tm.failureHistory[s]
	out := make([]FailureRecord, len(events))
	for i, e := range events {
		status := "down"
		if e.status == eventUp {
			status = "up"
		}
		out[i] = FailureRecord{At: e.at, Status: status}
	}
	return out
}
