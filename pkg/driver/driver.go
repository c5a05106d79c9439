// Package driver assigns monotonically increasing logical timestamps and
// dispatches a parsed command stream against a TransactionManager,
// forwarding every resulting event to a report.Reporter. Timestamp
// assignment, command dispatch, and output are external-collaborator
// concerns kept out of the transaction manager's core, so they live here
// rather than in pkg/txnmanager.
package driver

import (
	"fmt"

	"repcrep/pkg/command"
	"repcrep/pkg/primitives"
	"repcrep/pkg/report"
	"repcrep/pkg/txnmanager"
)

// Driver owns the TransactionManager and the logical clock, and reports
// every event it produces through reporter.
type Driver struct {
	tm       *txnmanager.TransactionManager
	reporter *report.Reporter
	clock    primitives.Timestamp
}

// New builds a Driver around a fresh TransactionManager, reporting through
// reporter.
func New(reporter *report.Reporter) *Driver {
	return &Driver{tm: txnmanager.New(), reporter: reporter}
}

// Manager exposes the underlying TransactionManager, e.g. for a TUI that
// wants to render live state between steps.
func (d *Driver) Manager() *txnmanager.TransactionManager {
	return d.tm
}

// Run dispatches every command in order, assigning each its own logical
// timestamp, and reports every event produced. It stops and returns the
// first error from a malformed command (an operation naming an unknown
// transaction or site); aborts and parked reads are not errors — they are
// reported like any other event and execution continues.
func (d *Driver) Run(cmds []command.Command) error {
	for _, cmd := range cmds {
		if err := d.Step(cmd); err != nil {
			return err
		}
	}
	return nil
}

// Step assigns the next logical timestamp to cmd, dispatches it, and
// reports the resulting events.
func (d *Driver) Step(cmd command.Command) error {
	d.clock++
	t := d.clock

	switch cmd.Kind {
	case command.Begin:
		d.reporter.Emit(d.tm.Begin(cmd.TxnID, t, false))

	case command.Read:
		result, ev, err := d.tm.ReadIntention(cmd.TxnID, cmd.Variable)
		if err != nil {
			if ev != nil {
				d.reporter.Emit(ev)
				return nil
			}
			return fmt.Errorf("R(T%d,%s) at timestamp %d: %w", cmd.TxnID, cmd.Variable.Name(), t, err)
		}
		if ev != nil {
			d.reporter.Emit(ev)
		}
		_ = result // parked reads report nothing until a later recovery

	case command.Write:
		if err := d.tm.WriteIntention(cmd.TxnID, cmd.Variable, cmd.Value, t); err != nil {
			return fmt.Errorf("W(T%d,%s,%d) at timestamp %d: %w", cmd.TxnID, cmd.Variable.Name(), cmd.Value, t, err)
		}

	case command.End:
		result, err := d.tm.Commit(cmd.TxnID, t)
		if err != nil && len(result.Events) == 0 {
			return fmt.Errorf("end(T%d) at timestamp %d: %w", cmd.TxnID, t, err)
		}
		d.reporter.EmitAll(result.Events)

	case command.SiteFail:
		events, err := d.tm.Fail(cmd.Site, t)
		if err != nil {
			return fmt.Errorf("fail(%d) at timestamp %d: %w", cmd.Site, t, err)
		}
		d.reporter.EmitAll(events)

	case command.SiteRecover:
		events, err := d.tm.Recover(cmd.Site, t)
		if err != nil {
			return fmt.Errorf("recover(%d) at timestamp %d: %w", cmd.Site, t, err)
		}
		d.reporter.EmitAll(events)

	case command.Dump:
		d.reporter.Emit(report.DumpBlock{Block: d.tm.Dump().FormatBlock()})

	default:
		return fmt.Errorf("unhandled command kind %v at timestamp %d", cmd.Kind, t)
	}

	return nil
}
