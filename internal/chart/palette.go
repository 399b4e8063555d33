package chart

// SchemeSet1 is the nine-colour qualitative ColorBrewer Set1 scheme.
var SchemeSet1 = []string{
	"#e41a1c", "#377eb8", "#4daf4a", "#984ea3", "#ff7f00",
	"#ffff33", "#a65628", "#f781bf", "#999999",
}

// Palette is an ordinal colour scale: each new key takes the next colour,
// cycling when the scheme runs out, and keeps it for the palette's lifetime.
type Palette struct {
	scheme   []string
	assigned map[string]string
}

func NewPalette(scheme []string) *Palette {
	if len(scheme) == 0 {
		scheme = SchemeSet1
	}
	return &Palette{scheme: scheme, assigned: make(map[string]string)}
}

// Color returns key's colour, assigning one on first use.
func (p *Palette) Color(key string) string {
	if c, ok := p.assigned[key]; ok {
		return c
	}
	c := p.scheme[len(p.assigned)%len(p.scheme)]
	p.assigned[key] = c
	return c
}
