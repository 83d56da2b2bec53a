package convert

import (
	"encoding/binary"
	gomath "math"

	"github.com/Faultbox/modelpack/pkg/formats"
	"github.com/Faultbox/modelpack/pkg/math"
)

// ComputeBounds scans the position attribute at offset in count records of
// stride bytes. No vertices yields a zero box at the origin.
func ComputeBounds(vertices []byte, offset, stride, count uint32) formats.BoundingBox {
	if count == 0 {
		return formats.BoundingBox{}
	}
	box := formats.BoundingBox{
		Min: math.Vec3{X: gomath.MaxFloat32, Y: gomath.MaxFloat32, Z: gomath.MaxFloat32},
		Max: math.Vec3{X: -gomath.MaxFloat32, Y: -gomath.MaxFloat32, Z: -gomath.MaxFloat32},
	}
	for v := uint32(0); v < count; v++ {
		p := readVec3(vertices[v*stride+offset:])
		box.Min = box.Min.Min(p)
		box.Max = box.Max.Max(p)
	}
	return box
}

// UnionBounds returns the smallest box holding every box, or a zero box
// when there are none.
func UnionBounds(boxes []formats.BoundingBox) formats.BoundingBox {
	if len(boxes) == 0 {
		return formats.BoundingBox{}
	}
	out := boxes[0]
	for _, b := range boxes[1:] {
		out.Min = out.Min.Min(b.Min)
		out.Max = out.Max.Max(b.Max)
	}
	return out
}

func readVec3(src []byte) math.Vec3 {
	return math.Vec3{
		X: gomath.Float32frombits(binary.LittleEndian.Uint32(src[0:])),
		Y: gomath.Float32frombits(binary.LittleEndian.Uint32(src[4:])),
		Z: gomath.Float32frombits(binary.LittleEndian.Uint32(src[8:])),
	}
}
