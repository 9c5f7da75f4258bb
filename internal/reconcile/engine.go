// Package reconcile maps snapshot lists onto the rendered view tree. When the
// existing structure for a provider still matches the incoming snapshot it is
// patched in place, keeping node identity and collapse state; otherwise the
// provider subtree is rebuilt from scratch.
package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/janekbaraniewski/usagesync/internal/config"
	"github.com/janekbaraniewski/usagesync/internal/core"
	"github.com/janekbaraniewski/usagesync/internal/view"
)

// Node key construction. Keys are stable across polls so patched nodes keep
// their identity.
func ProviderKey(id string) string { return "provider:" + id }

func RowKey(id string) string { return "row:" + id }

func DetailKey(id, name string) string { return "detail:" + id + ":" + name }

func GroupKey(id, group string) string { return "group:" + id + ":" + group }

type Engine struct {
	now func() time.Time
}

func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// Apply reconciles one snapshot list into the tree under the current
// preferences. Section groups come and go with their members; provider
// subtrees inside a section are patched, rebuilt or pruned per provider.
func (e *Engine) Apply(tree *view.Tree, snaps []core.UsageSnapshot, prefs config.Preferences) {
	byBucket := make(map[core.Bucket][]core.UsageSnapshot)
	for _, snap := range snaps {
		if !shouldShow(snap, prefs) {
			continue
		}
		b := core.BucketFor(snap)
		byBucket[b] = append(byBucket[b], snap)
	}

	// Plans first, pay-as-you-go second; section order is fixed.
	for _, bucket := range []core.Bucket{core.BucketPlans, core.BucketPayGo} {
		list := byBucket[bucket]
		idx := view.IndexOf(tree, string(bucket))
		if len(list) == 0 {
			if idx >= 0 {
				tree.RemoveAt(idx)
			}
			continue
		}
		var section *view.Group
		if idx >= 0 {
			section = tree.At(idx).(*view.Group)
		} else {
			section = view.NewGroup(string(bucket), bucket.Title())
			section.SortKey = strings.ToLower(bucket.Title())
			section.Collapsed = prefs.CollapsedGroups[string(bucket)]
			if bucket == core.BucketPlans {
				tree.InsertAt(0, section)
			} else {
				tree.Append(section)
			}
		}
		e.reconcileSection(section, list, prefs)
	}
}

func (e *Engine) reconcileSection(section *view.Group, list []core.UsageSnapshot, prefs config.Preferences) {
	present := make(map[string]bool, len(list))
	for _, snap := range list {
		present[ProviderKey(snap.ProviderID)] = true
	}
	for i := section.Len() - 1; i >= 0; i-- {
		if !present[section.At(i).Key()] {
			section.RemoveAt(i)
		}
	}

	mode := renderMode(prefs)
	for _, snap := range list {
		key := ProviderKey(snap.ProviderID)
		idx := view.IndexOf(section, key)
		if idx < 0 {
			fresh := e.buildProvider(snap, prefs)
			applyCollapsePrefs(fresh, prefs.CollapsedGroups)
			insertSorted(section, fresh)
			continue
		}

		group, ok := section.At(idx).(*view.Group)
		if ok && canPatch(group, snap, mode) {
			e.patchProvider(group, snap, prefs)
			continue
		}

		// Structure drifted: rebuild the subtree, carrying collapse state over.
		collapsed := map[string]bool{}
		if ok {
			snapshotCollapse(group, collapsed)
		}
		section.RemoveAt(idx)
		fresh := e.buildProvider(snap, prefs)
		applyCollapse(fresh, collapsed)
		insertSorted(section, fresh)
	}
}

// shouldShow hides unavailable providers with nothing to say unless the user
// asked for everything. A pending reset or a live quota figure is worth a row
// even while the provider reports unavailable.
func shouldShow(s core.UsageSnapshot, prefs config.Preferences) bool {
	if prefs.ShowAll || s.IsAvailable {
		return true
	}
	if s.NextResetTime != nil {
		return true
	}
	return s.QuotaSemantics() && s.UsagePercentage > 0
}

func renderMode(prefs config.Preferences) view.RenderMode {
	if prefs.CompactMode {
		return view.ModeCompact
	}
	return view.ModeStandard
}

// canPatch reports whether the existing subtree structurally matches what the
// snapshot would build: same render mode, exactly the expected child set. Any
// mismatch forces a rebuild.
func canPatch(group *view.Group, snap core.UsageSnapshot, mode view.RenderMode) bool {
	row, ok := view.Find[*view.Row](group, RowKey(snap.ProviderID))
	if !ok || row.Mode != mode {
		return false
	}
	if mode == view.ModeCompact {
		return group.Len() == 1
	}

	details := core.SortedDetails(snap.Details)
	ungrouped := 0
	groups := map[string]int{}
	for _, d := range details {
		if d.GroupName == "" {
			ungrouped++
		} else {
			groups[d.GroupName]++
		}
	}
	if group.Len() != 1+ungrouped+len(groups) {
		return false
	}

	for _, d := range details {
		if d.GroupName == "" {
			if view.IndexOf(group, DetailKey(snap.ProviderID, d.Name)) < 0 {
				return false
			}
			continue
		}
		// Member keys matter, not just counts: a renamed detail inside a
		// sub-group must force a rebuild too.
		sub, ok := view.Find[*view.Group](group, GroupKey(snap.ProviderID, d.GroupName))
		if !ok || view.IndexOf(sub, DetailKey(snap.ProviderID, d.Name)) < 0 {
			return false
		}
	}
	for name, count := range groups {
		sub, ok := view.Find[*view.Group](group, GroupKey(snap.ProviderID, name))
		if !ok || sub.Len() != count {
			return false
		}
	}
	return true
}

func (e *Engine) patchProvider(group *view.Group, snap core.UsageSnapshot, prefs config.Preferences) {
	label := core.DisplayName(snap, prefs.PrivacyMode)
	group.Title = label
	group.SortKey = strings.ToLower(label)

	if row, ok := view.Find[*view.Row](group, RowKey(snap.ProviderID)); ok {
		e.fillProviderRow(row, snap, prefs)
	}
	if renderMode(prefs) == view.ModeCompact {
		return
	}
	for _, d := range snap.Details {
		if row, ok := view.Find[*view.Row](group, DetailKey(snap.ProviderID, d.Name)); ok {
			e.fillDetailRow(row, d, prefs)
		}
	}
}

func (e *Engine) buildProvider(snap core.UsageSnapshot, prefs config.Preferences) *view.Group {
	label := core.DisplayName(snap, prefs.PrivacyMode)
	mode := renderMode(prefs)

	group := view.NewGroup(ProviderKey(snap.ProviderID), label)
	group.SortKey = strings.ToLower(label)

	row := view.NewRow(RowKey(snap.ProviderID), mode)
	e.fillProviderRow(row, snap, prefs)
	group.Append(row)

	if mode == view.ModeCompact {
		return group
	}

	// Ungrouped details sort ahead of every named group, so the single pass
	// below appends them directly before opening any sub-group.
	var current *view.Group
	for _, d := range core.SortedDetails(snap.Details) {
		dr := view.NewRow(DetailKey(snap.ProviderID, d.Name), mode)
		e.fillDetailRow(dr, d, prefs)
		if d.GroupName == "" {
			dr.Indent = 1
			group.Append(dr)
			continue
		}
		key := GroupKey(snap.ProviderID, d.GroupName)
		if current == nil || current.Key() != key {
			current = view.NewGroup(key, d.GroupName)
			current.SortKey = strings.ToLower(d.GroupName)
			group.Append(current)
		}
		dr.Indent = 2
		current.Append(dr)
	}
	return group
}

func (e *Engine) fillProviderRow(row *view.Row, snap core.UsageSnapshot, prefs config.Preferences) {
	invert := prefs.InvertProgressBar
	used := core.UsedPercent(snap)

	row.SetLabel(core.DisplayName(snap, prefs.PrivacyMode))
	row.SetStatus(core.StatusText(snap, invert))
	row.SetReset(resetText(snap.NextResetTime, e.now()))
	row.SetFill(core.FillPercent(snap, invert), colorName(core.SeverityFor(used, prefs.Thresholds())))
	row.Available = snap.IsAvailable
}

func (e *Engine) fillDetailRow(row *view.Row, d core.UsageDetail, prefs config.Preferences) {
	used := core.ParseDetailPercent(d.Used)
	fill := used
	if prefs.InvertProgressBar {
		fill = 100 - used
	}

	row.SetLabel(core.DetailLabel(d))
	row.SetStatus(strings.TrimSpace(d.Used))
	row.SetReset(resetText(d.NextResetTime, e.now()))
	row.SetFill(fill, colorName(core.SeverityFor(used, prefs.Thresholds())))
	row.Available = true
}

// insertSorted places a provider group before the first sibling whose sort key
// is strictly greater; equal keys are skipped, so ties land after their peers.
func insertSorted(section *view.Group, g *view.Group) {
	for i := 0; i < section.Len(); i++ {
		sib, ok := section.At(i).(*view.Group)
		if !ok {
			continue
		}
		if sib.SortKey > g.SortKey {
			section.InsertAt(i, g)
			return
		}
	}
	section.Append(g)
}

func colorName(s core.Severity) string {
	switch s {
	case core.SeverityCrit:
		return "red"
	case core.SeverityWarn:
		return "yellow"
	}
	return "green"
}

func resetText(t *time.Time, now time.Time) string {
	if t == nil {
		return ""
	}
	d := t.Sub(now)
	if d < time.Minute {
		return "Resets soon"
	}
	d = d.Round(time.Minute)
	switch {
	case d < time.Hour:
		return fmt.Sprintf("Resets in %dm", int(d.Minutes()))
	case d < 24*time.Hour:
		h := int(d.Hours())
		m := int(d.Minutes()) - h*60
		if m == 0 {
			return fmt.Sprintf("Resets in %dh", h)
		}
		return fmt.Sprintf("Resets in %dh %dm", h, m)
	default:
		days := int(d.Hours()) / 24
		h := int(d.Hours()) - days*24
		if h == 0 {
			return fmt.Sprintf("Resets in %dd", days)
		}
		return fmt.Sprintf("Resets in %dd %dh", days, h)
	}
}

func snapshotCollapse(g *view.Group, into map[string]bool) {
	into[g.Key()] = g.Collapsed
	for i := 0; i < g.Len(); i++ {
		if sub, ok := g.At(i).(*view.Group); ok {
			snapshotCollapse(sub, into)
		}
	}
}

func applyCollapse(g *view.Group, collapsed map[string]bool) {
	if v, ok := collapsed[g.Key()]; ok {
		g.Collapsed = v
	}
	for i := 0; i < g.Len(); i++ {
		if sub, ok := g.At(i).(*view.Group); ok {
			applyCollapse(sub, collapsed)
		}
	}
}

func applyCollapsePrefs(g *view.Group, collapsed map[string]bool) {
	if collapsed == nil {
		return
	}
	applyCollapse(g, collapsed)
}
