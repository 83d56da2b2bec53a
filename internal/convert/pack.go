package convert

import (
	"encoding/binary"
	"fmt"
	gomath "math"

	"github.com/Faultbox/modelpack/internal/scene"
	"github.com/Faultbox/modelpack/pkg/formats"
	"github.com/Faultbox/modelpack/pkg/math"
)

// Fallbacks for optional channels.
var (
	defaultTexcoord  = [2]float32{0, 0}
	defaultTangent   = math.Vec3{X: 1}
	defaultBitangent = math.Vec3{Y: 1}
)

// Packer appends meshes to the four shared blobs of a model.
type Packer struct {
	full  Layout
	depth Layout

	vertex      []byte
	index       []byte
	vertexDepth []byte
}

// NewPacker returns a packer writing every mesh with the given layouts.
func NewPacker(full, depth Layout) *Packer {
	return &Packer{full: full, depth: depth}
}

// Add packs one mesh and returns its table record. bones may be nil for
// unskinned meshes; skinned layouts then get all-zero bindings.
func (p *Packer) Add(mesh *scene.Mesh, bones []VertexBones) (formats.Mesh, error) {
	var rec formats.Mesh

	n := len(mesh.Positions)
	if n > MaxVertices {
		return rec, fmt.Errorf("%w: mesh %q has %d vertices, limit %d", ErrTooManyVertices, mesh.Name, n, MaxVertices)
	}
	if len(mesh.Normals) != n {
		return rec, fmt.Errorf("%w: mesh %q has %d normals for %d vertices", ErrMissingNormals, mesh.Name, len(mesh.Normals), n)
	}

	indices, err := triangleIndices(mesh)
	if err != nil {
		return rec, err
	}

	rec.VertexDataByteOffset = uint32(len(p.vertex))
	rec.VertexDataByteOffsetDepth = uint32(len(p.vertexDepth))
	rec.IndexDataByteOffset = uint32(len(p.index))
	rec.VertexCount = uint32(n)
	rec.VertexCountDepth = uint32(n)
	rec.IndexCount = uint32(len(indices))
	p.full.apply(&rec, false)
	p.depth.apply(&rec, true)

	p.vertex = p.packVertices(p.vertex, &p.full, mesh, bones)
	p.vertexDepth = p.packVertices(p.vertexDepth, &p.depth, mesh, nil)
	for _, idx := range indices {
		p.index = binary.LittleEndian.AppendUint16(p.index, idx)
	}

	rec.BoundingBox = ComputeBounds(p.vertex[rec.VertexDataByteOffset:], p.full.Offset(formats.AttribPosition), p.full.Stride, rec.VertexCount)
	return rec, nil
}

// Blobs returns the packed data. The depth index blob is a copy of the full
// index blob.
func (p *Packer) Blobs() (vertex, index, vertexDepth, indexDepth []byte) {
	return p.vertex, p.index, p.vertexDepth, append([]byte(nil), p.index...)
}

// triangleIndices flattens the faces and checks that each is a triangle
// referencing existing vertices.
func triangleIndices(mesh *scene.Mesh) ([]uint16, error) {
	n := uint32(len(mesh.Positions))
	out := make([]uint16, 0, len(mesh.Faces)*3)
	for f, face := range mesh.Faces {
		if len(face) != 3 {
			return nil, fmt.Errorf("%w: mesh %q face %d has %d indices", ErrNonTriangleFace, mesh.Name, f, len(face))
		}
		for _, idx := range face {
			if idx >= n {
				return nil, fmt.Errorf("%w: mesh %q face %d index %d, %d vertices", ErrIndexOutOfRange, mesh.Name, f, idx, n)
			}
			out = append(out, uint16(idx))
		}
	}
	return out, nil
}

// packVertices writes one record per vertex in a single forward pass.
func (p *Packer) packVertices(dst []byte, l *Layout, mesh *scene.Mesh, bones []VertexBones) []byte {
	base := len(dst)
	dst = append(dst, make([]byte, len(mesh.Positions)*int(l.Stride))...)

	for v := range mesh.Positions {
		rec := dst[base+v*int(l.Stride):]

		putVec3(rec[l.Offset(formats.AttribPosition):], mesh.Positions[v])
		if l.Has(formats.AttribTexcoord0) {
			uv := defaultTexcoord
			if v < len(mesh.Texcoords) {
				uv = mesh.Texcoords[v]
			}
			putFloats(rec[l.Offset(formats.AttribTexcoord0):], uv[:]...)
		}
		if l.Has(formats.AttribNormal) {
			putVec3(rec[l.Offset(formats.AttribNormal):], mesh.Normals[v])
		}
		if l.Has(formats.AttribTangent) {
			putVec3(rec[l.Offset(formats.AttribTangent):], channelOr(mesh.Tangents, v, defaultTangent))
		}
		if l.Has(formats.AttribBitangent) {
			putVec3(rec[l.Offset(formats.AttribBitangent):], channelOr(mesh.Bitangents, v, defaultBitangent))
		}
		if l.Has(formats.AttribJointIndices) && v < len(bones) {
			b := bones[v]
			off := l.Offset(formats.AttribJointIndices)
			for i, j := range b.Joints {
				binary.LittleEndian.PutUint16(rec[off+uint32(i)*2:], j)
			}
			putFloats(rec[l.Offset(formats.AttribJointWeights):], b.Weights[:]...)
		}
	}
	return dst
}

func channelOr(ch []math.Vec3, v int, fallback math.Vec3) math.Vec3 {
	if v < len(ch) {
		return ch[v]
	}
	return fallback
}

func putVec3(dst []byte, v math.Vec3) {
	putFloats(dst, v.X, v.Y, v.Z)
}

func putFloats(dst []byte, vals ...float32) {
	for i, f := range vals {
		binary.LittleEndian.PutUint32(dst[i*4:], gomath.Float32bits(f))
	}
}
