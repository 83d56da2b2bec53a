package convert

import (
	"fmt"

	"github.com/Faultbox/modelpack/pkg/formats"
)

// MaxVertices is the per-mesh vertex limit of 16-bit indices. 0xFFFF is
// kept free as a primitive-restart value.
const MaxVertices = 0xFFFE

// attribSpec is the component shape of one attribute slot.
type attribSpec struct {
	components uint16
	format     formats.AttribFormat
}

// attribSpecs is indexed by attribute slot, in canonical order.
var attribSpecs = [...]attribSpec{
	formats.AttribPosition:     {3, formats.FormatFloat},
	formats.AttribTexcoord0:    {2, formats.FormatFloat},
	formats.AttribNormal:       {3, formats.FormatFloat},
	formats.AttribTangent:      {3, formats.FormatFloat},
	formats.AttribBitangent:    {3, formats.FormatFloat},
	formats.AttribJointIndices: {4, formats.FormatUShort},
	formats.AttribJointWeights: {4, formats.FormatFloat},
}

// Masks of the two layout families.
const (
	staticMask = formats.MaskPosition | formats.MaskTexcoord0 | formats.MaskNormal |
		formats.MaskTangent | formats.MaskBitangent
	skinnedMask = staticMask | formats.MaskJointIndices | formats.MaskJointWeights
	depthMask   = formats.MaskPosition
)

// Layout is one vertex format: enabled slots, their descriptors and the
// resulting stride.
type Layout struct {
	Mask    formats.AttribMask
	Stride  uint32
	Attribs [formats.MaxAttribs]formats.VertexAttrib
}

// NewLayout assigns offsets to the enabled slots in canonical order. Each
// offset is the sum of the sizes of the enabled slots before it.
func NewLayout(mask formats.AttribMask) Layout {
	l := Layout{Mask: mask}
	var offset uint32
	for slot, spec := range attribSpecs {
		if !mask.Has(1 << slot) {
			continue
		}
		l.Attribs[slot] = formats.VertexAttrib{
			Offset:     uint16(offset),
			Components: spec.components,
			Format:     spec.format,
		}
		offset += uint32(spec.components) * uint32(spec.format.Size())
	}
	l.Stride = offset
	return l
}

// PlanLayouts returns the full and depth-only layouts of a mesh. Optional
// channels a mesh lacks are filled with fallbacks, so the full layout only
// depends on whether the mesh carries bone weights.
func PlanLayouts(skinned bool) (full, depth Layout) {
	mask := staticMask
	if skinned {
		mask = skinnedMask
	}
	return NewLayout(mask), NewLayout(depthMask)
}

// Has reports whether slot is enabled.
func (l *Layout) Has(slot int) bool {
	return l.Mask.Has(1 << slot)
}

// Offset returns the byte offset of slot.
func (l *Layout) Offset(slot int) uint32 {
	return uint32(l.Attribs[slot].Offset)
}

// apply copies the layout into the full or depth half of a mesh record.
func (l *Layout) apply(m *formats.Mesh, depth bool) {
	if depth {
		m.AttribsEnabledDepth = l.Mask
		m.VertexStrideDepth = l.Stride
		m.AttribDepth = l.Attribs
		return
	}
	m.AttribsEnabled = l.Mask
	m.VertexStride = l.Stride
	m.Attrib = l.Attribs
}

// checkUniform reports an error when a mesh layout differs from ref, the
// layout planned for the first mesh.
func checkUniform(mesh int, ref, got Layout) error {
	if ref != got {
		return fmt.Errorf("%w: mesh %d has mask %#x stride %d, expected mask %#x stride %d",
			ErrLayoutMismatch, mesh, got.Mask, got.Stride, ref.Mask, ref.Stride)
	}
	return nil
}
