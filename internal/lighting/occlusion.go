package lighting

import (
	"slices"

	"github.com/Faultbox/brushforge/internal/scene"
	"github.com/Faultbox/brushforge/pkg/geometry"
	"github.com/Faultbox/brushforge/pkg/math"
)

// Occluders is the set of solids that block light.
type Occluders struct {
	kernel  geometry.Kernel
	solids  []*geometry.Solid
	brushes []int // Brush.Global per solid
}

// NewOccluders collects every brush of s that occludes.
func NewOccluders(k geometry.Kernel, s *scene.Scene) *Occluders {
	o := &Occluders{kernel: k}
	for _, b := range s.Brushes() {
		if b.Occludes() {
			o.solids = append(o.solids, b.Solid)
			o.brushes = append(o.brushes, b.Global)
		}
	}
	return o
}

// Len returns the number of occluding solids.
func (o *Occluders) Len() int {
	return len(o.solids)
}

// Visible reports whether the segment from a to b is unobstructed, ignoring
// the brushes listed in skip. Segments that cannot be traced, including
// those with non-finite endpoints, are treated as blocked.
func (o *Occluders) Visible(a, b math.Vec3, skip ...int) bool {
	if !a.IsFinite() || !b.IsFinite() {
		return false
	}
	seg := geometry.Segment{Start: a, End: b}
	for i, s := range o.solids {
		if slices.Contains(skip, o.brushes[i]) {
			continue
		}
		hit, ok := o.kernel.SegmentHits(s, seg)
		if !ok || hit {
			return false
		}
	}
	return true
}
