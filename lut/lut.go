// Package lut implements color-lookup-table filters and the pure per-pixel
// transform that applies them to captured frames.
//
// A Filter is an immutable color-transform descriptor. It is shared by
// reference between the UI layer and the processing worker; replacement is
// a single pointer swap, so readers always observe either the old or the
// new filter, never a partial update.
//
// Three kinds exist:
//   - identity: pass-through ("no filter")
//   - matrix: a 3x4 linear map over RGB, built from a gonum matrix
//   - cube: a 3D lookup table with trilinear interpolation (.cube format)
package lut

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Kind discriminates filter representations.
type Kind int

const (
	KindIdentity Kind = iota
	KindMatrix
	KindCube
)

// String returns the kind name for logs.
func (k Kind) String() string {
	switch k {
	case KindIdentity:
		return "identity"
	case KindMatrix:
		return "matrix"
	case KindCube:
		return "cube"
	default:
		return "unknown"
	}
}

// Filter is an immutable color-transform descriptor.
//
// All fields are set at construction and never mutated afterwards, which is
// what makes the atomic pointer-swap replacement safe: a *Filter observed
// by the worker is complete by construction.
type Filter struct {
	name string
	kind Kind

	// Matrix kind: row-major 3x4 coefficients over [0,1] RGB. The fourth
	// column is an additive offset.
	coeffs [12]float32

	// Cube kind: size^3 RGB triples, red index varying fastest.
	size      int
	table     []float32
	domainMin [3]float32
	domainMax [3]float32
}

// Identity returns the pass-through filter ("no filter" semantics with a
// concrete value).
func Identity() *Filter {
	return &Filter{name: "identity", kind: KindIdentity}
}

// NewMatrix builds a matrix filter from a gonum 3x3 or 3x4 matrix. With a
// 3x3 matrix the offset column is zero.
//
// The matrix is flattened into fixed coefficients at construction; the
// per-pixel loop never touches gonum types.
func NewMatrix(name string, m mat.Matrix) (*Filter, error) {
	r, c := m.Dims()
	if r != 3 || (c != 3 && c != 4) {
		return nil, fmt.Errorf("lut: matrix filter %q must be 3x3 or 3x4, got %dx%d", name, r, c)
	}

	f := &Filter{name: name, kind: KindMatrix}
	for i := 0; i < 3; i++ {
		for j := 0; j < c; j++ {
			f.coeffs[i*4+j] = float32(m.At(i, j))
		}
	}
	return f, nil
}

// NewCube builds a 3D LUT filter. table holds size^3 RGB triples with the
// red index varying fastest (the .cube convention). The table is copied.
func NewCube(name string, size int, table []float32) (*Filter, error) {
	if size < 2 {
		return nil, fmt.Errorf("lut: cube filter %q size must be >= 2, got %d", name, size)
	}
	if want := size * size * size * 3; len(table) != want {
		return nil, fmt.Errorf("lut: cube filter %q expects %d values for size %d, got %d",
			name, want, size, len(table))
	}

	f := &Filter{
		name:      name,
		kind:      KindCube,
		size:      size,
		table:     append([]float32(nil), table...),
		domainMin: [3]float32{0, 0, 0},
		domainMax: [3]float32{1, 1, 1},
	}
	return f, nil
}

// Name returns the filter's display name.
func (f *Filter) Name() string { return f.name }

// Kind returns the filter representation.
func (f *Filter) Kind() Kind { return f.kind }

// IsIdentity reports whether applying this filter is a pass-through.
func (f *Filter) IsIdentity() bool { return f == nil || f.kind == KindIdentity }

// mapRGB transforms one normalized RGB triple. Pure; hot path.
func (f *Filter) mapRGB(r, g, b float32) (float32, float32, float32) {
	switch f.kind {
	case KindMatrix:
		cr := f.coeffs[0]*r + f.coeffs[1]*g + f.coeffs[2]*b + f.coeffs[3]
		cg := f.coeffs[4]*r + f.coeffs[5]*g + f.coeffs[6]*b + f.coeffs[7]
		cb := f.coeffs[8]*r + f.coeffs[9]*g + f.coeffs[10]*b + f.coeffs[11]
		return clamp01(cr), clamp01(cg), clamp01(cb)
	case KindCube:
		return f.sampleCube(r, g, b)
	default:
		return r, g, b
	}
}

// sampleCube performs trilinear interpolation over the 3D table.
func (f *Filter) sampleCube(r, g, b float32) (float32, float32, float32) {
	n := f.size

	// Map from the LUT domain to table coordinates.
	rx := normalize(r, f.domainMin[0], f.domainMax[0]) * float32(n-1)
	gy := normalize(g, f.domainMin[1], f.domainMax[1]) * float32(n-1)
	bz := normalize(b, f.domainMin[2], f.domainMax[2]) * float32(n-1)

	x0, xf := splitCoord(rx, n)
	y0, yf := splitCoord(gy, n)
	z0, zf := splitCoord(bz, n)

	x1 := min(x0+1, n-1)
	y1 := min(y0+1, n-1)
	z1 := min(z0+1, n-1)

	// Eight corner lookups, then lerp along r, g, b in turn.
	c000 := f.at(x0, y0, z0)
	c100 := f.at(x1, y0, z0)
	c010 := f.at(x0, y1, z0)
	c110 := f.at(x1, y1, z0)
	c001 := f.at(x0, y0, z1)
	c101 := f.at(x1, y0, z1)
	c011 := f.at(x0, y1, z1)
	c111 := f.at(x1, y1, z1)

	var out [3]float32
	for i := 0; i < 3; i++ {
		c00 := lerp(c000[i], c100[i], xf)
		c10 := lerp(c010[i], c110[i], xf)
		c01 := lerp(c001[i], c101[i], xf)
		c11 := lerp(c011[i], c111[i], xf)

		c0 := lerp(c00, c10, yf)
		c1 := lerp(c01, c11, yf)

		out[i] = clamp01(lerp(c0, c1, zf))
	}
	return out[0], out[1], out[2]
}

// at returns the RGB triple at integer table coordinates (red fastest).
func (f *Filter) at(x, y, z int) [3]float32 {
	idx := ((z*f.size+y)*f.size + x) * 3
	return [3]float32{f.table[idx], f.table[idx+1], f.table[idx+2]}
}

func splitCoord(v float32, n int) (int, float32) {
	if v <= 0 {
		return 0, 0
	}
	if v >= float32(n-1) {
		return n - 1, 0
	}
	i := int(v)
	return i, v - float32(i)
}

func normalize(v, lo, hi float32) float32 {
	if hi <= lo {
		return clamp01(v)
	}
	return clamp01((v - lo) / (hi - lo))
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
