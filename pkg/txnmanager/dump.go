package txnmanager

import (
	"fmt"
	"strings"

	"repcrep/pkg/datamanager"
	"repcrep/pkg/primitives"
)

// SiteSnapshot is one site's line of a Dump.
type SiteSnapshot struct {
	Site      primitives.SiteID
	Down      bool
	Variables []VariableValue
}

// VariableValue pairs a variable with its current committed value.
type VariableValue struct {
	Variable primitives.VariableID
	Value    int
}

// DumpSnapshot is the structured form of a cluster-wide dump. FormatBlock
// renders it to a human-readable block; callers that want machine-readable
// data (e.g. the TUI) can use the struct directly.
type DumpSnapshot struct {
	Sites []SiteSnapshot
}

// Dump captures the current value of every variable at every site, sorted
// by site then by variable index.
func (tm *TransactionManager) Dump() DumpSnapshot {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := DumpSnapshot{Sites: make([]SiteSnapshot, 0, len(tm.sites))}
	for _, s := range primitives.AllSites() {
		dm := tm.sites[s]
		site := SiteSnapshot{Site: s, Down: tm.siteStatus[s] == datamanager.Down}
		for _, v := range dm.KnownVariables() {
			val, ok := dm.CurrentValue(v)
			if !ok {
				continue
			}
			site.Variables = append(site.Variables, VariableValue{Variable: v, Value: val})
		}
		snapshot.Sites = append(snapshot.Sites, site)
	}
	return snapshot
}

// FormatBlock renders the snapshot as a "--- Dump State ---" block.
func (d DumpSnapshot) FormatBlock() string {
	var b strings.Builder
	b.WriteString("--- Dump State ---\n")
	for _, site := range d.Sites {
		parts := make([]string, len(site.Variables))
		for i, vv := range site.Variables {
			parts[i] = fmt.Sprintf("%s: %d", vv.Variable.Name(), vv.Value)
		}
		statusSuffix := ""
		if site.Down {
			statusSuffix = " (down)"
		}
		b.WriteString(fmt.Sprintf("site %s%s – %s\n", site.Site, statusSuffix, strings.Join(parts, ", ")))
	}
	b.WriteString("--------------------")
	return b.String()
}
