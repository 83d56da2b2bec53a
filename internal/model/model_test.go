package model

import (
	"errors"
	"testing"

	"github.com/Faultbox/modelpack/pkg/formats"
	"github.com/Faultbox/modelpack/pkg/math"
)

func TestUploadDescriptors(t *testing.T) {
	m := New(testContainer(), nil)

	u, err := m.UploadDescriptors()
	if err != nil {
		t.Fatalf("UploadDescriptors failed: %v", err)
	}

	tests := []struct {
		name   string
		desc   BufferDescriptor
		count  uint32
		stride uint32
		bytes  int
	}{
		{"vertex", u.Vertex, 3, 12, 36},
		{"index", u.Index, 3, 2, 6},
		{"depth vertex", u.VertexDepth, 3, 12, 36},
		{"depth index", u.IndexDepth, 3, 2, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.desc.ElementCount != tt.count {
				t.Errorf("ElementCount = %d, want %d", tt.desc.ElementCount, tt.count)
			}
			if tt.desc.Stride != tt.stride {
				t.Errorf("Stride = %d, want %d", tt.desc.Stride, tt.stride)
			}
			if len(tt.desc.Data) != tt.bytes {
				t.Errorf("len(Data) = %d, want %d", len(tt.desc.Data), tt.bytes)
			}
		})
	}
}

func TestUploadDescriptors_Empty(t *testing.T) {
	m := New(formats.H3D{}, nil)
	u, err := m.UploadDescriptors()
	if err != nil {
		t.Fatalf("UploadDescriptors failed: %v", err)
	}
	if u.Vertex.ElementCount != 0 || u.Vertex.Stride != 0 || u.Index.ElementCount != 0 {
		t.Errorf("expected empty descriptors, got %+v", u)
	}
}

func TestRelease(t *testing.T) {
	m := New(testContainer(), nil)
	box := m.BoundingBox()

	m.Release()

	if !m.Released() {
		t.Error("Released() = false after Release")
	}
	if m.VertexData != nil || m.IndexData != nil || m.VertexDataDepth != nil || m.IndexDataDepth != nil {
		t.Error("blobs should be dropped")
	}
	if len(m.Meshes) != 1 || len(m.Materials) != 1 {
		t.Error("tables should survive Release")
	}
	if m.BoundingBox() != box {
		t.Error("bounding box should survive Release")
	}
	if _, err := m.UploadDescriptors(); !errors.Is(err, ErrReleased) {
		t.Errorf("expected ErrReleased, got %v", err)
	}
	if _, err := m.Container(); !errors.Is(err, ErrReleased) {
		t.Errorf("expected ErrReleased, got %v", err)
	}

	m.Clear()
	if m.Released() || len(m.Meshes) != 0 || m.IsAnimated() {
		t.Error("Clear should reset the model")
	}
}

func TestBindTextures(t *testing.T) {
	available := map[string]SRU{
		"default":                1,
		"default_specular":       2,
		"default_normal":         3,
		"models/brick":           10,
		"models/brick_normal":    11,
		"models/metal":           20,
		"models/metal_spec":      21,
		"models/metal_specular":  22,
		"models/only_specular_x": 30,
	}
	resolver := TextureResolverFunc(func(key string) (SRU, bool) {
		h, ok := available[key]
		return h, ok
	})

	h := testContainer()
	h.Materials = []formats.Material{
		{Name: "brick", Textures: [formats.TexCount]string{formats.TexDiffuse: "models/brick"}},
		{Name: "metal", Textures: [formats.TexCount]string{
			formats.TexDiffuse:  "models/metal",
			formats.TexSpecular: "models/metal_spec",
		}},
		{Name: "plain"},
		{Name: "missing", Textures: [formats.TexCount]string{formats.TexDiffuse: "models/nowhere"}},
	}
	m := New(h, nil)

	if err := m.BindTextures(resolver); err != nil {
		t.Fatalf("BindTextures failed: %v", err)
	}

	tests := []struct {
		material int
		want     SRUGroup
	}{
		// Normal found through "<diffuse>_normal", specular falls to default.
		{0, SRUGroup{10, 2, 10, 11, 10, 10}},
		// Explicit specular wins over "<diffuse>_specular".
		{1, SRUGroup{20, 21, 20, 3, 20, 20}},
		{2, SRUGroup{1, 2, 1, 3, 1, 1}},
		{3, SRUGroup{1, 2, 1, 3, 1, 1}},
	}
	for _, tt := range tests {
		got, ok := m.SRUs(tt.material)
		if !ok {
			t.Errorf("material %d: no SRU group", tt.material)
			continue
		}
		if got != tt.want {
			t.Errorf("material %d: SRUs = %v, want %v", tt.material, got, tt.want)
		}
	}

	if _, ok := m.SRUs(len(h.Materials)); ok {
		t.Error("SRUs for unknown material should report false")
	}
}

func TestBindTextures_NoDefault(t *testing.T) {
	m := New(testContainer(), nil)
	none := TextureResolverFunc(func(string) (SRU, bool) { return 0, false })

	if err := m.BindTextures(none); !errors.Is(err, ErrTextureUnresolved) {
		t.Errorf("expected ErrTextureUnresolved, got %v", err)
	}
	if _, ok := m.SRUs(0); ok {
		t.Error("failed bind must not leave SRU groups behind")
	}
}

func TestString(t *testing.T) {
	m := New(testContainer(), &Animation{Skeleton: &Skeleton{Joints: make([]Joint, 2)}})
	want := "skinned(2 joints) model: 1 meshes, 1 materials, 36 vertex bytes, 6 index bytes"
	if got := m.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

// Helper functions

func testContainer() formats.H3D {
	mesh := formats.Mesh{
		AttribsEnabled:      formats.MaskPosition,
		AttribsEnabledDepth: formats.MaskPosition,
		VertexStride:        12,
		VertexStrideDepth:   12,
		VertexCount:         3,
		VertexCountDepth:    3,
		IndexCount:          3,
	}
	box := formats.BoundingBox{Max: math.Vec3{X: 1, Y: 1}}
	return formats.H3D{
		Header:          formats.Header{MeshCount: 1, MaterialCount: 1, BoundingBox: box},
		Meshes:          []formats.Mesh{mesh},
		Materials:       []formats.Material{{Name: "m"}},
		VertexData:      make([]byte, 36),
		IndexData:       make([]byte, 6),
		VertexDataDepth: make([]byte, 36),
		IndexDataDepth:  make([]byte, 6),
	}
}
