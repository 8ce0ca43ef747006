package scene

import "sort"

// Built-in attribute names.
const (
	AttrDetail        = "detail"
	AttrClip          = "clip"
	AttrSkip          = "skip"
	AttrNoDraw        = "nodraw"
	AttrNonSolid      = "nonsolid"
	AttrLiquid        = "liquid"
	AttrSmoothShading = "smooth-shading"
	AttrInvertNormal  = "invert-normal"
	AttrEmissive      = "emissive"
)

// BuiltinAttributes lists the attributes the compiler gives meaning to.
var BuiltinAttributes = []string{
	AttrDetail,
	AttrClip,
	AttrSkip,
	AttrNoDraw,
	AttrNonSolid,
	AttrLiquid,
	AttrSmoothShading,
	AttrInvertNormal,
	AttrEmissive,
}

// Attributes is a sorted set of attribute names.
type Attributes []string

// Has reports whether name is in the set.
func (a Attributes) Has(name string) bool {
	i := sort.SearchStrings(a, name)
	return i < len(a) && a[i] == name
}

// With returns a new set containing a and names.
func (a Attributes) With(names ...string) Attributes {
	out := append(Attributes(nil), a...)
	for _, n := range names {
		i := sort.SearchStrings(out, n)
		if i < len(out) && out[i] == n {
			continue
		}
		out = append(out, "")
		copy(out[i+1:], out[i:])
		out[i] = n
	}
	return out
}
