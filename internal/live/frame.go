package live

import (
	"strconv"
	"time"

	"spesedonut/internal/chart"
	"spesedonut/internal/core"
)

// Frame is one projected chart state as sent to browsers.
type Frame struct {
	Version     uint64       `json:"version"`
	Total       Amount       `json:"total"`
	Geometry    Geometry     `json:"geometry"`
	Segments    []Segment    `json:"segments"`
	Transitions []Transition `json:"transitions"`
	Legend      []Legend     `json:"legend"`
	GeneratedAt time.Time    `json:"generated_at"`
}

type Amount struct {
	Cents   int64   `json:"cents"`
	Units   float64 `json:"units"`
	Display string  `json:"display"`
}

type Geometry struct {
	OuterRadius float64 `json:"outer_radius"`
	InnerRadius float64 `json:"inner_radius"`
	PadAngle    float64 `json:"pad_angle"`
}

type Segment struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Cost       Amount  `json:"cost"`
	StartAngle float64 `json:"start_angle"`
	EndAngle   float64 `json:"end_angle"`
	PadAngle   float64 `json:"pad_angle"`
	Color      string  `json:"color"`
}

type Arc struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type Transition struct {
	ID    string `json:"id"`
	Phase string `json:"phase"`
	From  Arc    `json:"from"`
	To    Arc    `json:"to"`
}

type Legend struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// ETag identifies the frame for conditional GETs.
func (f Frame) ETag() string {
	return `"frame-` + strconv.FormatUint(f.Version, 10) + `"`
}

func amount(m core.Money) Amount {
	return Amount{Cents: m.Cents, Units: m.Units(), Display: m.String()}
}

func arc(a chart.Angles) Arc {
	return Arc{Start: a.Start, End: a.End}
}

// NewFrame converts a projection into its wire form.
func NewFrame(version uint64, cfg chart.Config, p chart.Projection, at time.Time) Frame {
	f := Frame{
		Version: version,
		Total:   amount(p.Total),
		Geometry: Geometry{
			OuterRadius: cfg.OuterRadius,
			InnerRadius: cfg.InnerRadius,
			PadAngle:    cfg.PadAngle,
		},
		Segments:    make([]Segment, len(p.Segments)),
		Transitions: make([]Transition, len(p.Transitions)),
		Legend:      make([]Legend, len(p.Legend)),
		GeneratedAt: at.UTC(),
	}
	for i, s := range p.Segments {
		f.Segments[i] = Segment{
			ID:         s.ID(),
			Name:       s.Record.Name,
			Cost:       amount(s.Record.Cost),
			StartAngle: s.StartAngle,
			EndAngle:   s.EndAngle,
			PadAngle:   s.PadAngle,
			Color:      s.Color,
		}
	}
	for i, t := range p.Transitions {
		f.Transitions[i] = Transition{
			ID:    t.ID,
			Phase: string(t.Phase),
			From:  arc(t.From),
			To:    arc(t.To),
		}
	}
	for i, l := range p.Legend {
		f.Legend[i] = Legend{Name: l.Name, Color: l.Color}
	}
	return f
}
