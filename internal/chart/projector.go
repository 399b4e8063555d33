// Package chart turns replica snapshots into donut chart geometry.
//
// A Projector lays records out clockwise from angle 0 in snapshot order,
// never sorted by cost, so slices keep their place as the data changes. It
// also remembers the last angles it emitted for each record id and reports,
// on every projection, which slices are entering, updating or exiting so a
// renderer can tween between frames.
package chart

import (
	"math"

	"spesedonut/internal/core"
)

// FullTurn is one revolution in radians.
const FullTurn = 2 * math.Pi

// Config is the fixed chart geometry.
type Config struct {
	OuterRadius float64
	InnerRadius float64
	PadAngle    float64
}

// DefaultConfig matches a 300px chart with a half-radius hole.
func DefaultConfig() Config {
	return Config{OuterRadius: 150, InnerRadius: 75}
}

// Angles is an arc's angular extent in radians.
type Angles struct {
	Start float64
	End   float64
}

// Span returns the angular width.
func (a Angles) Span() float64 {
	return a.End - a.Start
}

// ArcSegment is one record's slice of the donut.
type ArcSegment struct {
	Record     core.ExpenseRecord
	StartAngle float64
	EndAngle   float64
	PadAngle   float64
	Color      string
}

func (s ArcSegment) ID() string {
	return s.Record.ID
}

func (s ArcSegment) Angles() Angles {
	return Angles{Start: s.StartAngle, End: s.EndAngle}
}

// Phase classifies a segment's change between two projections.
type Phase string

const (
	Enter  Phase = "enter"
	Update Phase = "update"
	Exit   Phase = "exit"
)

// Transition tells a renderer how to tween one slice from its previous
// angles to its new ones. Entering slices start at zero span on their end
// angle; exiting slices collapse to zero span on their end angle.
type Transition struct {
	ID    string
	Phase Phase
	From  Angles
	To    Angles
}

// LegendEntry pairs a record name with its palette colour.
type LegendEntry struct {
	Name  string
	Color string
}

// Projection is the output of one Project call.
type Projection struct {
	Segments    []ArcSegment
	Transitions []Transition
	Legend      []LegendEntry
	Total       core.Money
}

// Projector computes projections and owns the per-id tween state. It is not
// safe for concurrent use; the live session calls it from its single
// consumer goroutine.
type Projector struct {
	cfg     Config
	last    map[string]Angles
	order   []string
	palette *Palette
}

// NewProjector returns a projector with no prior state.
func NewProjector(cfg Config) *Projector {
	if cfg.OuterRadius <= 0 {
		cfg.OuterRadius = DefaultConfig().OuterRadius
	}
	if cfg.InnerRadius < 0 || cfg.InnerRadius >= cfg.OuterRadius {
		cfg.InnerRadius = cfg.OuterRadius / 2
	}
	if cfg.PadAngle < 0 {
		cfg.PadAngle = 0
	}
	return &Projector{
		cfg:     cfg,
		last:    make(map[string]Angles),
		palette: NewPalette(SchemeSet1),
	}
}

// Config returns the geometry the projector was built with.
func (p *Projector) Config() Config {
	return p.cfg
}

// Project lays out snapshot and diffs it against the previous call.
func (p *Projector) Project(snapshot []core.ExpenseRecord) Projection {
	segments := Layout(snapshot, p.cfg.PadAngle)

	var total int64
	legend := make([]LegendEntry, 0, len(snapshot))
	seen := make(map[string]bool, len(snapshot))
	for _, r := range snapshot {
		total += r.Cost.Cents
		if seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		legend = append(legend, LegendEntry{Name: r.Name, Color: p.palette.Color(r.Name)})
	}
	for i := range segments {
		segments[i].Color = p.palette.Color(segments[i].Record.Name)
	}

	transitions := make([]Transition, 0, len(segments)+len(p.order))
	current := make(map[string]Angles, len(segments))
	order := make([]string, 0, len(segments))

	for _, s := range segments {
		to := s.Angles()
		from, existed := p.last[s.ID()]
		if existed {
			transitions = append(transitions, Transition{ID: s.ID(), Phase: Update, From: from, To: to})
		} else {
			transitions = append(transitions, Transition{ID: s.ID(), Phase: Enter, From: Angles{Start: to.End, End: to.End}, To: to})
		}
		current[s.ID()] = to
		order = append(order, s.ID())
	}

	for _, id := range p.order {
		if _, still := current[id]; still {
			continue
		}
		from := p.last[id]
		transitions = append(transitions, Transition{ID: id, Phase: Exit, From: from, To: Angles{Start: from.End, End: from.End}})
	}

	p.last = current
	p.order = order

	return Projection{
		Segments:    segments,
		Transitions: transitions,
		Legend:      legend,
		Total:       core.Money{Cents: total},
	}
}

// LastAngles returns the angles last emitted for id.
func (p *Projector) LastAngles(id string) (Angles, bool) {
	a, ok := p.last[id]
	return a, ok
}

// Layout computes arc angles for records in the order given. Each span is
// cost/sum of a full turn; with a pad angle, the padding is taken out of the
// turn first and added to each slice, as a pie layout does. An empty input or
// a non-positive sum yields no segments.
func Layout(records []core.ExpenseRecord, padAngle float64) []ArcSegment {
	n := len(records)
	if n == 0 {
		return []ArcSegment{}
	}

	var sum int64
	for _, r := range records {
		if r.Cost.Cents > 0 {
			sum += r.Cost.Cents
		}
	}
	if sum <= 0 {
		return []ArcSegment{}
	}

	pad := math.Min(FullTurn/float64(n), padAngle)
	if pad < 0 {
		pad = 0
	}
	k := (FullTurn - float64(n)*pad) / float64(sum)

	out := make([]ArcSegment, n)
	a := 0.0
	for i, r := range records {
		span := pad
		if r.Cost.Cents > 0 {
			span += float64(r.Cost.Cents) * k
		}
		end := a + span
		if i == n-1 {
			end = FullTurn
		}
		out[i] = ArcSegment{Record: r, StartAngle: a, EndAngle: end, PadAngle: pad}
		a = end
	}
	return out
}
