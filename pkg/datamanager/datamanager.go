// Package datamanager implements the per-site store of version chains:
// snapshot reads, append-only writes, and the fail/recover bookkeeping a
// site goes through. Each DataManager owns its history exclusively —
// callers outside this package never reach into the chains directly, they
// go through Read, Write, or LastVisibleCommitTime.
package datamanager

import (
	"fmt"
	"sort"
	"sync"

	"repcrep/pkg/primitives"
	"repcrep/pkg/txnerr"
)

// Status is a site's availability.
type Status int

const (
	Up Status = iota
	Down
)

func (s Status) String() string {
	if s == Down {
		return "down"
	}
	return "up"
}

// VersionRecord is a single committed version of a variable.
type VersionRecord struct {
	Value      int
	CommitTime primitives.Timestamp
}

// DataManager is the per-site store of variable version chains.
type DataManager struct {
	siteID primitives.SiteID

	mu             sync.RWMutex
	status         Status
	history        map[primitives.VariableID][]VersionRecord
	current        map[primitives.VariableID]int
	postRecoveryOK map[primitives.VariableID]bool
}

// New creates a DataManager for the given site, initially up with no
// variables.
func New(siteID primitives.SiteID) *DataManager {
	return &DataManager{
		siteID:         siteID,
		status:         Up,
		history:        make(map[primitives.VariableID][]VersionRecord),
		current:        make(map[primitives.VariableID]int),
		postRecoveryOK: make(map[primitives.VariableID]bool),
	}
}

// SiteID returns the site this manager belongs to.
func (dm *DataManager) SiteID() primitives.SiteID {
	return dm.siteID
}

// Status reports whether the site is currently up or down.
func (dm *DataManager) Status() Status {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.status
}

// Read returns the newest version of v committed at or before startTime.
// Requires the site to be up and v to have history.
func (dm *DataManager) Read(v primitives.VariableID, startTime primitives.Timestamp) (int, error) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	if dm.status != Up {
		return 0, txnerr.New(txnerr.KindSiteDown, dm.siteDownMessage(v))
	}

	chain, ok := dm.history[v]
	if !ok {
		return 0, txnerr.New(txnerr.KindUnknownVariable, dm.unknownVariableMessage(v))
	}

	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].CommitTime <= startTime {
			return chain[i].Value, nil
		}
	}

	return 0, txnerr.New(txnerr.KindNoVisibleVersion, dm.noVisibleVersionMessage(v, startTime))
}

// Write appends a new version to v's history, updates the current-value
// cache, and marks v available post-recovery. Requires the site to be up.
func (dm *DataManager) Write(v primitives.VariableID, value int, commitTime primitives.Timestamp) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.status != Up {
		return txnerr.New(txnerr.KindSiteDown, dm.siteDownMessage(v))
	}

	dm.history[v] = append(dm.history[v], VersionRecord{Value: value, CommitTime: commitTime})
	dm.current[v] = value
	dm.postRecoveryOK[v] = true
	return nil
}

// Fail marks the site down, truncates every chain to its single most
// recent record, and clears post-recovery tracking. Idempotent: calling
// Fail on an already-down site is a no-op.
func (dm *DataManager) Fail() {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.status == Down {
		return
	}
	dm.status = Down
	dm.postRecoveryOK = make(map[primitives.VariableID]bool)

	for v, chain := range dm.history {
		if len(chain) > 0 {
			dm.history[v] = []VersionRecord{chain[len(chain)-1]}
		}
	}
}

// Recover marks the site up. Non-replicated variables become immediately
// readable again; replicated variables stay pending until a fresh write
// lands on this site (tracked here for completeness, though the
// TransactionManager gates replicated reads with failure history rather
// than this set — see DESIGN.md). Idempotent.
func (dm *DataManager) Recover() {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.status == Up {
		return
	}
	dm.status = Up

	for v := range dm.current {
		if !primitives.IsReplicated(v) {
			dm.postRecoveryOK[v] = true
		}
	}
}

// LastVisibleCommitTime returns the commit time of the newest version of v
// visible at startTime, without exposing the chain itself. This is the
// query the TransactionManager uses instead of reaching into history
// directly.
func (dm *DataManager) LastVisibleCommitTime(v primitives.VariableID, startTime primitives.Timestamp) (primitives.Timestamp, bool) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	chain, ok := dm.history[v]
	if !ok {
		return 0, false
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].CommitTime <= startTime {
			return chain[i].CommitTime, true
		}
	}
	return 0, false
}

// LastCommitTime returns the commit time of the newest version in v's
// chain overall, used by commit validation's first-committer-wins check.
func (dm *DataManager) LastCommitTime(v primitives.VariableID) (primitives.Timestamp, bool) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	chain, ok := dm.history[v]
	if !ok || len(chain) == 0 {
		return 0, false
	}
	return chain[len(chain)-1].CommitTime, true
}

// HasVariable reports whether v has any history at this site.
func (dm *DataManager) HasVariable(v primitives.VariableID) bool {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	_, ok := dm.current[v]
	return ok
}

// CurrentValue returns the latest committed value of v, for dump output.
func (dm *DataManager) CurrentValue(v primitives.VariableID) (int, bool) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	val, ok := dm.current[v]
	return val, ok
}

// KnownVariables returns every variable stored at this site, sorted by
// index.
func (dm *DataManager) KnownVariables() []primitives.VariableID {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	vars := make([]primitives.VariableID, 0, len(dm.current))
	for v := range dm.current {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })
	return vars
}

func (dm *DataManager) siteDownMessage(v primitives.VariableID) string {
	return "site " + dm.siteID.String() + " is down, cannot access " + v.Name()
}

func (dm *DataManager) unknownVariableMessage(v primitives.VariableID) string {
	return "variable " + v.Name() + " not found at site " + dm.siteID.String()
}

func (dm *DataManager) noVisibleVersionMessage(v primitives.VariableID, startTime primitives.Timestamp) string {
	return fmt.Sprintf("no version of %s at site %s visible at start_time %d", v.Name(), dm.siteID, startTime)
}
