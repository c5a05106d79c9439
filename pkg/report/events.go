// Package report defines the human-readable event vocabulary emitted by the
// transaction manager as plain value types, decoupled from any particular
// sink. A Reporter (reporter.go) renders them to an io.Writer; tests can
// just inspect the values directly.
package report

import (
	"fmt"

	"repcrep/pkg/primitives"
)

// Event is anything that renders to human-readable output: one line, or,
// for DumpBlock, a multi-line block.
type Event interface {
	String() string
}

// TransactionStarted corresponds to "Starting transaction T<id> at
// timestamp <t>."
type TransactionStarted struct {
	TxnID primitives.TransactionID
	At    primitives.Timestamp
}

func (e TransactionStarted) String() string {
	return fmt.Sprintf("Starting transaction T%d at timestamp %d.", e.TxnID, e.At)
}

// ReadSucceeded corresponds to "Transaction T<id> read x<i>:<v> from Site
// <s>." or, when Recovered is set, "...from recovered Site <s>."
type ReadSucceeded struct {
	TxnID     primitives.TransactionID
	Variable  primitives.VariableID
	Value     int
	Site      primitives.SiteID
	Recovered bool
}

func (e ReadSucceeded) String() string {
	qualifier := "Site"
	if e.Recovered {
		qualifier = "recovered Site"
	}
	return fmt.Sprintf("Transaction T%d read %s:%d from %s %s.", e.TxnID, e.Variable.Name(), e.Value, qualifier, e.Site)
}

// TransactionAborted corresponds to "Transaction T<id> aborted: <reason>."
type TransactionAborted struct {
	TxnID  primitives.TransactionID
	Reason string
}

func (e TransactionAborted) String() string {
	return fmt.Sprintf("Transaction T%d aborted: %s.", e.TxnID, e.Reason)
}

// WriteApplied corresponds to "Transaction T<id> wrote x<i> to sites:
// <s1>, <s2>, …"
type WriteApplied struct {
	TxnID    primitives.TransactionID
	Variable primitives.VariableID
	Sites    []primitives.SiteID
}

func (e WriteApplied) String() string {
	return fmt.Sprintf("Transaction T%d wrote %s to sites: %s", e.TxnID, e.Variable.Name(), joinSites(e.Sites))
}

// TransactionCommitted corresponds to "Transaction T<id> has been
// committed."
type TransactionCommitted struct {
	TxnID primitives.TransactionID
}

func (e TransactionCommitted) String() string {
	return fmt.Sprintf("Transaction T%d has been committed.", e.TxnID)
}

// SiteRecovered corresponds to "Site <s> has been recovered."
type SiteRecovered struct {
	Site primitives.SiteID
}

func (e SiteRecovered) String() string {
	return fmt.Sprintf("Site %s has been recovered.", e.Site)
}

// DumpBlock wraps a pre-rendered dump block (see txnmanager.DumpSnapshot)
// so the driver can emit it through the same Reporter as every other event.
type DumpBlock struct {
	Block string
}

func (e DumpBlock) String() string {
	return e.Block
}

func joinSites(sites []primitives.SiteID) string {
	out := ""
	for i, s := range sites {
		if i > 0 {
			out += ", "
		}
		out += s.String()
	}
	return out
}
