// Package definitions owns the configured decision tables: compliance rules,
// regulations, risk factors and models, tiers, workflows, and milestones.
// A Snapshot is loaded once at startup and swapped atomically on reload, so
// request-time readers always see one consistent, immutable table set.
package definitions

import (
	"sort"
	"sync/atomic"
	"time"

	"credence/internal/risk"
	"credence/internal/rules"
	"credence/internal/tier"
	"credence/internal/workflow"
)

// Snapshot is one immutable, consistent set of active definitions. Slices are
// pre-sorted by priority/level/order so evaluators never re-sort.
type Snapshot struct {
	Rules       []rules.Rule
	Regulations []rules.Regulation
	Factors     []risk.Factor
	Models      []risk.Model
	Tiers       []tier.Tier
	Workflows   []workflow.Definition
	Milestones  []workflow.Milestone

	Source   string
	LoadedAt time.Time
}

// Empty reports whether the snapshot carries no definitions at all.
func (s *Snapshot) Empty() bool {
	return len(s.Rules) == 0 && len(s.Regulations) == 0 && len(s.Factors) == 0 &&
		len(s.Models) == 0 && len(s.Tiers) == 0 && len(s.Workflows) == 0 &&
		len(s.Milestones) == 0
}

// Model returns the named risk model, falling back to the first configured
// model and finally to an unweighted one.
func (s *Snapshot) Model(id string) risk.Model {
	for _, m := range s.Models {
		if m.ID == id {
			return m
		}
	}
	if len(s.Models) > 0 {
		return s.Models[0]
	}
	return risk.Model{ID: "unweighted"}
}

// Workflow returns the named workflow definition.
func (s *Snapshot) Workflow(id string) (workflow.Definition, bool) {
	for _, w := range s.Workflows {
		if w.ID == id {
			return w, true
		}
	}
	return workflow.Definition{}, false
}

// normalize sorts every table on its configured ordering field.
func (s *Snapshot) normalize() {
	sort.SliceStable(s.Rules, func(i, j int) bool { return s.Rules[i].Priority < s.Rules[j].Priority })
	sort.SliceStable(s.Regulations, func(i, j int) bool { return s.Regulations[i].Priority < s.Regulations[j].Priority })
	sort.SliceStable(s.Tiers, func(i, j int) bool { return s.Tiers[i].Level > s.Tiers[j].Level })
	sort.SliceStable(s.Workflows, func(i, j int) bool { return s.Workflows[i].Order < s.Workflows[j].Order })
}

// Provider hands out the current snapshot and accepts atomic replacements.
// Readers hold the pointer they were given for the duration of one
// evaluation; replacement never mutates a snapshot in place.
type Provider struct {
	current atomic.Pointer[Snapshot]
}

// NewProvider seeds a provider with an initial snapshot.
func NewProvider(initial *Snapshot) *Provider {
	p := &Provider{}
	initial.normalize()
	p.current.Store(initial)
	return p
}

// Current returns the active snapshot.
func (p *Provider) Current() *Snapshot {
	return p.current.Load()
}

// Replace swaps in a new snapshot. In-flight evaluations keep the snapshot
// they started with.
func (p *Provider) Replace(next *Snapshot) {
	next.normalize()
	p.current.Store(next)
}
