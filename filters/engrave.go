package filters

import (
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/soypat/engrave"
	"github.com/soypat/engrave/kernel"
)

// Config parametrizes the engraving filter.
//
// Every output channel is computed as
//
//	out = -(avg - center)*Mult + Add
//
// where avg is the weighted average of the in-bounds neighbors selected by
// Neighbors. Invert replaces out with 255-out. Gray replaces the three
// channels with a single brightness value computed from the rounded channels
// with negatives taken as 0. Results are rounded and wrapped modulo 256.
type Config struct {
	Neighbors kernel.Neighbors
	Add       float64
	Mult      float64
	Invert    bool
	Gray      bool
}

// DefaultConfig returns the configuration used when no parameters are given.
func DefaultConfig() Config {
	return Config{
		Neighbors: kernel.Default(),
		Add:       127,
		Mult:      0.5,
	}
}

// Apply engraves img into a new grid of the same size using GOMAXPROCS workers.
func Apply(img *engrave.Grid, cfg Config) *engrave.Grid {
	return ApplyWorkers(img, cfg, 0)
}

// ApplyWorkers is like [Apply] with an explicit worker count. Zero or negative
// uses GOMAXPROCS. The result does not depend on the worker count.
func ApplyWorkers(img *engrave.Grid, cfg Config, workers int) *engrave.Grid {
	out := engrave.NewGridZeroed(img.Width(), img.Height())
	if img.Width() == 0 || img.Height() == 0 {
		return out
	}
	wf := WindowFilter{
		In:      engrave.ShapeRGB888,
		Out:     engrave.ShapeRGB888,
		Fn:      engraveRow(cfg),
		Workers: workers,
	}
	if _, err := wf.Process(out.Buffer(), img, nil); err != nil {
		// Grids are buffered and validated on construction.
		panic("filters: engrave over grid failed: " + err.Error())
	}
	return out
}

// tap is a mask slot with a non-zero weight.
type tap struct {
	row  int  // window row index
	dcol uint // column delta with wraparound
	w    float64
}

func engraveTaps(n kernel.Neighbors) []tap {
	weights := n.Weights()
	taps := make([]tap, 0, kernel.Size)
	for i, off := range kernel.Offsets {
		if weights[i] == 0 {
			// Adds nothing to the sums nor to the weight total.
			continue
		}
		dcol := off[1]
		taps = append(taps, tap{row: off[0] + 1, dcol: uint(dcol), w: weights[i]})
	}
	return taps
}

// engraveRow returns the per-row kernel of the engraving filter.
func engraveRow(cfg Config) WindowFunc {
	taps := engraveTaps(cfg.Neighbors)
	return func(dst []byte, win Window) {
		center := win[1]
		width := uint(len(center) / 3)
		for col := uint(0); col < width; col++ {
			var sr, sg, sb, ms float64
			for _, t := range taps {
				row := win[t.row]
				c := col + t.dcol
				if row == nil || c >= width {
					continue
				}
				i := 3 * c
				sr += t.w * float64(row[i])
				sg += t.w * float64(row[i+1])
				sb += t.w * float64(row[i+2])
				ms += t.w
			}
			if ms != 0 {
				sr /= ms
				sg /= ms
				sb /= ms
			}
			i := 3 * col
			sr -= float64(center[i])
			sg -= float64(center[i+1])
			sb -= float64(center[i+2])
			sr = -sr*cfg.Mult + cfg.Add
			sg = -sg*cfg.Mult + cfg.Add
			sb = -sb*cfg.Mult + cfg.Add
			if cfg.Invert {
				sr = 255 - sr
				sg = 255 - sg
				sb = 255 - sb
			}
			if cfg.Gray {
				r, g, b := toUnsigned(math.Round(sr)), toUnsigned(math.Round(sg)), toUnsigned(math.Round(sb))/2
				bright := wrapUint8(math.Round(math.Sqrt(r*r+g*g+b*b)) / 1.5)
				dst[i], dst[i+1], dst[i+2] = bright, bright, bright
			} else {
				dst[i] = wrapUint8(math.Round(sr))
				dst[i+1] = wrapUint8(math.Round(sg))
				dst[i+2] = wrapUint8(math.Round(sb))
			}
		}
	}
}

// maxUnsigned is the largest uint64 as a float64.
const maxUnsigned = float64(math.MaxUint64)

// toUnsigned converts f to an unsigned integer value, saturating at both
// ends. NaN and negative values become 0.
func toUnsigned(f float64) float64 {
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f >= maxUnsigned:
		return maxUnsigned
	}
	return math.Trunc(f)
}

// wrapUint8 truncates f toward zero and wraps it modulo 256.
// NaN and infinities convert to 0.
func wrapUint8(f float64) uint8 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	m := math.Mod(math.Trunc(f), 256)
	if m < 0 {
		m += 256
	}
	return uint8(m)
}

// Engrave is the engraving filter as an [engrave.Filter] with live controls.
// Process takes a snapshot of the configuration so control changes never
// affect a pass in progress. Controls and SetConfig must not be used
// concurrently with each other; Process may run concurrently with both.
type Engrave struct {
	// Workers bounds concurrently processed row bands. See [WindowFilter.Workers].
	Workers int

	mu    sync.Mutex
	cfg   Config
	slots [kernel.Size]*engrave.ControlEnum[kernel.Dist]
	add   *engrave.ControlOrdered[float64]
	mult  *engrave.ControlOrdered[float64]
	inv   *engrave.ControlBool
	gray  *engrave.ControlBool
	wf    WindowFilter
}

var _ engrave.Filter = (*Engrave)(nil)

// NewEngrave returns an engraving filter initialized with cfg.
func NewEngrave(cfg Config) *Engrave {
	e := &Engrave{cfg: cfg, wf: WindowFilter{In: engrave.ShapeRGB888, Out: engrave.ShapeRGB888}}
	for i := range e.slots {
		off := kernel.Offsets[i]
		e.slots[i] = &engrave.ControlEnum[kernel.Dist]{
			Name:        fmt.Sprintf("Neighbor %+d,%+d", off[0], off[1]),
			Description: "Distance class of the neighbor at this row,column offset",
			Value:       cfg.Neighbors[i],
			ValidValues: []kernel.Dist{kernel.DistInf, kernel.DistSqrt2, kernel.DistOne},
			OnChange: func(d kernel.Dist) error {
				e.mu.Lock()
				e.cfg.Neighbors[i] = d
				e.mu.Unlock()
				return nil
			},
		}
		e.wf.Ctrls = append(e.wf.Ctrls, e.slots[i])
	}
	e.add = &engrave.ControlOrdered[float64]{
		Name:        "Brightness",
		Description: "Offset added to every channel",
		Value:       cfg.Add,
		Min:         -1024,
		Max:         1024,
		Step:        1,
		OnChange: func(v float64) error {
			e.mu.Lock()
			e.cfg.Add = v
			e.mu.Unlock()
			return nil
		},
	}
	e.mult = &engrave.ControlOrdered[float64]{
		Name:        "Contrast",
		Description: "Multiplier applied to the local difference",
		Value:       cfg.Mult,
		Min:         -256,
		Max:         256,
		Step:        0.05,
		OnChange: func(v float64) error {
			e.mu.Lock()
			e.cfg.Mult = v
			e.mu.Unlock()
			return nil
		},
	}
	e.inv = &engrave.ControlBool{
		Name:        "Invert",
		Description: "Invert colors",
		Value:       cfg.Invert,
		OnChange: func(v bool) error {
			e.mu.Lock()
			e.cfg.Invert = v
			e.mu.Unlock()
			return nil
		},
	}
	e.gray = &engrave.ControlBool{
		Name:        "Gray",
		Description: "Remove colors",
		Value:       cfg.Gray,
		OnChange: func(v bool) error {
			e.mu.Lock()
			e.cfg.Gray = v
			e.mu.Unlock()
			return nil
		},
	}
	e.wf.Ctrls = append(e.wf.Ctrls, e.add, e.mult, e.inv, e.gray)
	return e
}

// Config returns the current configuration.
func (e *Engrave) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// SetConfig replaces the configuration and updates control values to match.
func (e *Engrave) SetConfig(cfg Config) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	for i, c := range e.slots {
		c.Value = cfg.Neighbors[i]
	}
	e.add.Value = cfg.Add
	e.mult.Value = cfg.Mult
	e.inv.Value = cfg.Invert
	e.gray.Value = cfg.Gray
}

// ShapeIO implements [engrave.Filter].
func (e *Engrave) ShapeIO() (output, input engrave.Shape) {
	return engrave.ShapeRGB888, engrave.ShapeRGB888
}

// Controls implements [engrave.Filter].
func (e *Engrave) Controls() []engrave.Control {
	return e.wf.Controls()
}

// Process implements [engrave.Filter].
func (e *Engrave) Process(dst []byte, src engrave.Image, roi *image.Rectangle) (engrave.Dims, error) {
	wf := e.wf
	wf.Fn = engraveRow(e.Config())
	wf.Workers = e.Workers
	return wf.Process(dst, src, roi)
}
