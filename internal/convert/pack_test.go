package convert

import (
	"encoding/binary"
	"errors"
	gomath "math"
	"testing"

	"github.com/Faultbox/modelpack/internal/scene"
	"github.com/Faultbox/modelpack/pkg/formats"
	"github.com/Faultbox/modelpack/pkg/math"
)

func TestPackerFallbacks(t *testing.T) {
	full, depth := PlanLayouts(false)
	p := NewPacker(full, depth)

	mesh := triangleMesh()
	rec, err := p.Add(&mesh, nil)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	vertex, index, vertexDepth, indexDepth := p.Blobs()
	if len(vertex) != 3*56 || len(vertexDepth) != 3*12 || len(index) != 6 {
		t.Fatalf("blob sizes = %d/%d/%d", len(vertex), len(vertexDepth), len(index))
	}
	if string(index) != string(indexDepth) {
		t.Error("depth index blob should equal the index blob")
	}

	v1 := vertex[56:]
	checks := []struct {
		name string
		slot int
		want []float32
	}{
		{"position", formats.AttribPosition, []float32{1, 0, 0}},
		{"texcoord", formats.AttribTexcoord0, []float32{0, 0}},
		{"normal", formats.AttribNormal, []float32{0, 0, 1}},
		{"tangent", formats.AttribTangent, []float32{1, 0, 0}},
		{"bitangent", formats.AttribBitangent, []float32{0, 1, 0}},
	}
	for _, c := range checks {
		got := readFloats(v1[full.Offset(c.slot):], len(c.want))
		for i := range c.want {
			if got[i] != c.want[i] {
				t.Errorf("%s = %v, want %v", c.name, got, c.want)
				break
			}
		}
	}

	if got := readFloats(vertexDepth[12:], 3); got[0] != 1 || got[1] != 0 {
		t.Errorf("depth position = %v", got)
	}
	if binary.LittleEndian.Uint16(index[4:]) != 2 {
		t.Error("third index should be 2")
	}

	if rec.VertexStride != 56 || rec.VertexStrideDepth != 12 || rec.AttribsEnabled != full.Mask {
		t.Errorf("record layout = %d/%d/%#x", rec.VertexStride, rec.VertexStrideDepth, rec.AttribsEnabled)
	}
}

func TestPackerOffsets(t *testing.T) {
	full, depth := PlanLayouts(false)
	p := NewPacker(full, depth)

	first := triangleMesh()
	second := triangleMesh()
	second.Texcoords = [][2]float32{{0.5, 0.5}, {1, 0}, {0, 1}}

	if _, err := p.Add(&first, nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	rec, err := p.Add(&second, nil)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if rec.VertexDataByteOffset != 3*56 || rec.VertexDataByteOffsetDepth != 3*12 || rec.IndexDataByteOffset != 6 {
		t.Errorf("offsets = %d/%d/%d", rec.VertexDataByteOffset, rec.VertexDataByteOffsetDepth, rec.IndexDataByteOffset)
	}

	vertex, _, _, _ := p.Blobs()
	uv := readFloats(vertex[rec.VertexDataByteOffset+full.Offset(formats.AttribTexcoord0):], 2)
	if uv[0] != 0.5 || uv[1] != 0.5 {
		t.Errorf("second mesh uv = %v", uv)
	}
}

func TestPackerSkinned(t *testing.T) {
	full, depth := PlanLayouts(true)
	p := NewPacker(full, depth)
	mesh := triangleMesh()
	bones := []VertexBones{
		{Joints: [4]uint16{1, 2, 0, 0}, Weights: [4]float32{0.3, 0.7, 0, 0}},
	}

	if _, err := p.Add(&mesh, bones); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	vertex, _, _, _ := p.Blobs()

	off := full.Offset(formats.AttribJointIndices)
	if j := binary.LittleEndian.Uint16(vertex[off+2:]); j != 2 {
		t.Errorf("second joint = %d, want 2", j)
	}
	w := readFloats(vertex[full.Offset(formats.AttribJointWeights):], 4)
	if w[0] != 0.3 || w[1] != 0.7 || w[2] != 0 {
		t.Errorf("weights = %v", w)
	}
	// Vertices without a binding stay zero.
	if w := readFloats(vertex[80+full.Offset(formats.AttribJointWeights):], 4); w[0] != 0 {
		t.Errorf("unbound vertex weights = %v", w)
	}
}

func TestPackerErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m *scene.Mesh)
		wantErr error
	}{
		{"quad face", func(m *scene.Mesh) { m.Faces = [][]uint32{{0, 1, 2, 0}} }, ErrNonTriangleFace},
		{"line face", func(m *scene.Mesh) { m.Faces = [][]uint32{{0, 1}} }, ErrNonTriangleFace},
		{"no normals", func(m *scene.Mesh) { m.Normals = nil }, ErrMissingNormals},
		{"index out of range", func(m *scene.Mesh) { m.Faces = [][]uint32{{0, 1, 3}} }, ErrIndexOutOfRange},
		{"too many vertices", func(m *scene.Mesh) {
			m.Positions = make([]math.Vec3, MaxVertices+1)
			m.Normals = make([]math.Vec3, MaxVertices+1)
		}, ErrTooManyVertices},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			full, depth := PlanLayouts(false)
			p := NewPacker(full, depth)
			mesh := triangleMesh()
			tt.mutate(&mesh)

			_, err := p.Add(&mesh, nil)
			if !errors.Is(err, tt.wantErr) || !errors.Is(err, ErrSchema) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if v, i, _, _ := p.Blobs(); len(v) != 0 || len(i) != 0 {
				t.Error("failed Add must not write data")
			}
		})
	}
}

func TestComputeBounds(t *testing.T) {
	full, depth := PlanLayouts(false)
	p := NewPacker(full, depth)
	mesh := triangleMesh()
	mesh.Positions[2] = math.Vec3{X: -1, Y: 4, Z: -2}

	rec, err := p.Add(&mesh, nil)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	want := formats.BoundingBox{Min: math.Vec3{X: -1, Y: 0, Z: -2}, Max: math.Vec3{X: 1, Y: 4, Z: 0}}
	if rec.BoundingBox != want {
		t.Errorf("bounds = %+v, want %+v", rec.BoundingBox, want)
	}

	if got := ComputeBounds(nil, 0, 56, 0); got != (formats.BoundingBox{}) {
		t.Errorf("empty bounds = %+v, want zero box", got)
	}
}

func TestUnionBounds(t *testing.T) {
	a := formats.BoundingBox{Min: math.Vec3{X: -1}, Max: math.Vec3{X: 1, Y: 1, Z: 1}}
	b := formats.BoundingBox{Min: math.Vec3{Y: -3}, Max: math.Vec3{X: 0.5, Y: 0.5, Z: 5}}

	got := UnionBounds([]formats.BoundingBox{a, b})
	want := formats.BoundingBox{Min: math.Vec3{X: -1, Y: -3}, Max: math.Vec3{X: 1, Y: 1, Z: 5}}
	if got != want {
		t.Errorf("union = %+v, want %+v", got, want)
	}
	if !got.ContainsBox(a) || !got.ContainsBox(b) {
		t.Error("union must contain its inputs")
	}
	if UnionBounds(nil) != (formats.BoundingBox{}) {
		t.Error("union of nothing should be the zero box")
	}
}

// Helper functions

func triangleMesh() scene.Mesh {
	return scene.Mesh{
		Name:      "tri",
		Positions: []math.Vec3{{}, {X: 1}, {Y: 1}},
		Normals:   []math.Vec3{{Z: 1}, {Z: 1}, {Z: 1}},
		Faces:     [][]uint32{{0, 1, 2}},
	}
}

func readFloats(src []byte, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = gomath.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return out
}
