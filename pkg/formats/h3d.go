// Package formats provides codecs for the H3D model container.
// H3D is a flat, GPU-ready model file: a header, a mesh table, a material
// table and four raw byte blobs (full and depth-only vertex/index data).
package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Faultbox/modelpack/pkg/encoding"
	"github.com/Faultbox/modelpack/pkg/math"
)

// Table and record limits.
const (
	MaxAttribs       = 16
	MaxTexPath       = 128
	MaxMaterialName  = 128
	TexCount         = 6
	MaxMeshCount     = 1 << 16
	MaxMaterialCount = 1 << 16

	// Packed on-disk sizes.
	HeaderSize         = 44
	MeshRecordSize     = 324
	MaterialRecordSize = 968

	// IndexSize is the width of one index in the index blobs.
	IndexSize = 2
)

// ErrIO is the category of every container read/write failure.
var ErrIO = errors.New("h3d: I/O failure")

// H3D format errors.
var (
	ErrShortRead            = fmt.Errorf("%w: short read", ErrIO)
	ErrShortWrite           = fmt.Errorf("%w: short write", ErrIO)
	ErrInvalidMeshCount     = errors.New("invalid H3D mesh count")
	ErrInvalidMaterialCount = errors.New("invalid H3D material count")
	ErrInconsistentLayout   = errors.New("H3D meshes do not share one vertex layout")
	ErrRangeOutOfBounds     = errors.New("H3D mesh range exceeds blob size")
	ErrIndexBlobMismatch    = errors.New("H3D depth index blob size differs from index blob size")
	ErrBlobTooLarge         = errors.New("H3D blob exceeds 4 GiB")
)

// Attribute slots in the canonical order.
const (
	AttribPosition = iota
	AttribTexcoord0
	AttribNormal
	AttribTangent
	AttribBitangent
	AttribJointIndices
	AttribJointWeights
)

// AttribMask is a bit set of enabled attribute slots.
type AttribMask uint32

// Attribute mask bits.
const (
	MaskPosition     AttribMask = 1 << AttribPosition
	MaskTexcoord0    AttribMask = 1 << AttribTexcoord0
	MaskNormal       AttribMask = 1 << AttribNormal
	MaskTangent      AttribMask = 1 << AttribTangent
	MaskBitangent    AttribMask = 1 << AttribBitangent
	MaskJointIndices AttribMask = 1 << AttribJointIndices
	MaskJointWeights AttribMask = 1 << AttribJointWeights
)

// Has reports whether every bit of other is set.
func (m AttribMask) Has(other AttribMask) bool {
	return m&other == other
}

// AttribFormat is the numeric format of an attribute component.
type AttribFormat uint16

const (
	FormatNone AttribFormat = iota
	FormatUByte
	FormatByte
	FormatUShort
	FormatShort
	FormatFloat
)

// Size returns the byte size of one component.
func (f AttribFormat) Size() int {
	switch f {
	case FormatUByte, FormatByte:
		return 1
	case FormatUShort, FormatShort:
		return 2
	case FormatFloat:
		return 4
	default:
		return 0
	}
}

// String returns a human-readable format name.
func (f AttribFormat) String() string {
	switch f {
	case FormatNone:
		return "none"
	case FormatUByte:
		return "ubyte"
	case FormatByte:
		return "byte"
	case FormatUShort:
		return "ushort"
	case FormatShort:
		return "short"
	case FormatFloat:
		return "float"
	default:
		return fmt.Sprintf("Unknown(%d)", uint16(f))
	}
}

// VertexAttrib describes one attribute inside a vertex record.
type VertexAttrib struct {
	Offset     uint16 // byte offset from the start of the vertex
	Normalized uint16 // integer formats map to [0,1] or [-1,1]
	Components uint16 // 1-4
	Format     AttribFormat
}

// BoundingBox is an axis-aligned box.
type BoundingBox struct {
	Min math.Vec3
	Max math.Vec3
}

// Contains reports whether p lies inside the box, borders included.
func (b BoundingBox) Contains(p math.Vec3) bool {
	return p.X >= b.Min.X && p.Y >= b.Min.Y && p.Z >= b.Min.Z &&
		p.X <= b.Max.X && p.Y <= b.Max.Y && p.Z <= b.Max.Z
}

// ContainsBox reports whether other lies entirely inside the box.
func (b BoundingBox) ContainsBox(other BoundingBox) bool {
	return b.Contains(other.Min) && b.Contains(other.Max)
}

// Header is the fixed-size container header.
type Header struct {
	MeshCount               uint32
	MaterialCount           uint32
	VertexDataByteSize      uint32
	IndexDataByteSize       uint32
	VertexDataByteSizeDepth uint32
	BoundingBox             BoundingBox
}

// Mesh is one drawable submesh record.
type Mesh struct {
	BoundingBox BoundingBox

	MaterialIndex uint32

	AttribsEnabled      AttribMask
	AttribsEnabledDepth AttribMask
	VertexStride        uint32
	VertexStrideDepth   uint32
	Attrib              [MaxAttribs]VertexAttrib
	AttribDepth         [MaxAttribs]VertexAttrib

	VertexDataByteOffset uint32
	VertexCount          uint32
	IndexDataByteOffset  uint32
	IndexCount           uint32

	VertexDataByteOffsetDepth uint32
	VertexCountDepth          uint32
}

// TextureSlot indexes Material.Textures.
type TextureSlot int

const (
	TexDiffuse TextureSlot = iota
	TexSpecular
	TexEmissive
	TexNormal
	TexLightmap
	TexReflection
)

// Material holds surface properties and logical texture keys.
type Material struct {
	Diffuse          math.Vec3
	Specular         math.Vec3
	Ambient          math.Vec3
	Emissive         math.Vec3
	Transparent      math.Vec3 // filter colour for light passing through
	Opacity          float32
	Shininess        float32 // specular exponent
	SpecularStrength float32 // multiplier on top of specular colour

	Textures [TexCount]string
	Name     string
}

// materialRecord is the on-disk form of Material.
type materialRecord struct {
	Diffuse          math.Vec3
	Specular         math.Vec3
	Ambient          math.Vec3
	Emissive         math.Vec3
	Transparent      math.Vec3
	Opacity          float32
	Shininess        float32
	SpecularStrength float32
	Textures         [TexCount][MaxTexPath]byte
	Name             [MaxMaterialName]byte
}

func (m *Material) record() materialRecord {
	rec := materialRecord{
		Diffuse:          m.Diffuse,
		Specular:         m.Specular,
		Ambient:          m.Ambient,
		Emissive:         m.Emissive,
		Transparent:      m.Transparent,
		Opacity:          m.Opacity,
		Shininess:        m.Shininess,
		SpecularStrength: m.SpecularStrength,
	}
	for i := range m.Textures {
		encoding.PutFixedString(rec.Textures[i][:], m.Textures[i])
	}
	encoding.PutFixedString(rec.Name[:], m.Name)
	return rec
}

func (rec *materialRecord) material() Material {
	m := Material{
		Diffuse:          rec.Diffuse,
		Specular:         rec.Specular,
		Ambient:          rec.Ambient,
		Emissive:         rec.Emissive,
		Transparent:      rec.Transparent,
		Opacity:          rec.Opacity,
		Shininess:        rec.Shininess,
		SpecularStrength: rec.SpecularStrength,
		Name:             encoding.FixedString(rec.Name[:]),
	}
	for i := range rec.Textures {
		m.Textures[i] = encoding.FixedString(rec.Textures[i][:])
	}
	return m
}

// H3D is a parsed container.
type H3D struct {
	Header    Header
	Meshes    []Mesh
	Materials []Material

	VertexData      []byte
	IndexData       []byte
	VertexDataDepth []byte
	IndexDataDepth  []byte
}

// ReadH3D reads a container from r. Any short read aborts the whole load.
func ReadH3D(r io.Reader) (*H3D, error) {
	h := &H3D{}

	if err := readStage(r, "header", &h.Header); err != nil {
		return nil, err
	}
	if h.Header.MeshCount > MaxMeshCount {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMeshCount, h.Header.MeshCount)
	}
	if h.Header.MaterialCount > MaxMaterialCount {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaterialCount, h.Header.MaterialCount)
	}

	var err error
	if h.Meshes, err = readTable[Mesh](r, "mesh table", h.Header.MeshCount); err != nil {
		return nil, err
	}

	records, err := readTable[materialRecord](r, "material table", h.Header.MaterialCount)
	if err != nil {
		return nil, err
	}
	h.Materials = make([]Material, len(records))
	for i := range records {
		h.Materials[i] = records[i].material()
	}

	if h.VertexData, err = readBlob(r, "vertex blob", h.Header.VertexDataByteSize); err != nil {
		return nil, err
	}
	if h.IndexData, err = readBlob(r, "index blob", h.Header.IndexDataByteSize); err != nil {
		return nil, err
	}
	if h.VertexDataDepth, err = readBlob(r, "depth vertex blob", h.Header.VertexDataByteSizeDepth); err != nil {
		return nil, err
	}
	if h.IndexDataDepth, err = readBlob(r, "depth index blob", h.Header.IndexDataByteSize); err != nil {
		return nil, err
	}

	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// ParseH3D parses a container held in memory.
func ParseH3D(data []byte) (*H3D, error) {
	return ReadH3D(bytes.NewReader(data))
}

// ParseH3DFile parses a container from disk.
func ParseH3DFile(path string) (*H3D, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrIO, path, err)
	}
	h, err := ReadH3D(f)
	if cerr := f.Close(); cerr != nil && err == nil {
		return nil, fmt.Errorf("%w: closing %s: %w", ErrIO, path, cerr)
	}
	if err != nil {
		return nil, fmt.Errorf("reading H3D file %s: %w", path, err)
	}
	return h, nil
}

// WriteH3D serializes h to w in the fixed container order. Counts and blob
// sizes in the written header are taken from the slices.
func WriteH3D(w io.Writer, h *H3D) error {
	if len(h.IndexDataDepth) != len(h.IndexData) {
		return fmt.Errorf("%w: %d vs %d", ErrIndexBlobMismatch, len(h.IndexDataDepth), len(h.IndexData))
	}
	header, err := h.syncedHeader()
	if err != nil {
		return err
	}

	if err := writeStage(w, "header", &header); err != nil {
		return err
	}
	if err := writeStage(w, "mesh table", h.Meshes); err != nil {
		return err
	}
	records := make([]materialRecord, len(h.Materials))
	for i := range h.Materials {
		records[i] = h.Materials[i].record()
	}
	if err := writeStage(w, "material table", records); err != nil {
		return err
	}

	blobs := []struct {
		name string
		data []byte
	}{
		{"vertex blob", h.VertexData},
		{"index blob", h.IndexData},
		{"depth vertex blob", h.VertexDataDepth},
		{"depth index blob", h.IndexDataDepth},
	}
	for _, b := range blobs {
		n, err := w.Write(b.data)
		if err != nil {
			return fmt.Errorf("writing %s: %w: %w", b.name, ErrShortWrite, err)
		}
		if n != len(b.data) {
			return fmt.Errorf("writing %s: %w", b.name, ErrShortWrite)
		}
	}
	return nil
}

// SaveH3DFile writes h to path. A failing close invalidates the file.
func SaveH3DFile(path string, h *H3D) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrIO, path, err)
	}
	err = WriteH3D(f, h)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("%w: closing %s: %w", ErrIO, path, cerr)
	}
	if err != nil {
		return fmt.Errorf("writing H3D file %s: %w", path, err)
	}
	return nil
}

// Validate checks that every mesh shares the first mesh's vertex layout and
// that every mesh range lies inside the declared blobs.
func (h *H3D) Validate() error {
	if len(h.Meshes) == 0 {
		return nil
	}
	first := &h.Meshes[0]
	for i := range h.Meshes {
		m := &h.Meshes[i]
		if m.VertexStride != first.VertexStride || m.VertexStrideDepth != first.VertexStrideDepth {
			return fmt.Errorf("%w: mesh %d stride %d/%d, mesh 0 stride %d/%d",
				ErrInconsistentLayout, i, m.VertexStride, m.VertexStrideDepth, first.VertexStride, first.VertexStrideDepth)
		}
		if m.AttribsEnabled != first.AttribsEnabled || m.AttribsEnabledDepth != first.AttribsEnabledDepth {
			return fmt.Errorf("%w: mesh %d mask %#x/%#x, mesh 0 mask %#x/%#x",
				ErrInconsistentLayout, i, m.AttribsEnabled, m.AttribsEnabledDepth, first.AttribsEnabled, first.AttribsEnabledDepth)
		}
		if m.Attrib != first.Attrib || m.AttribDepth != first.AttribDepth {
			return fmt.Errorf("%w: mesh %d attribute table differs", ErrInconsistentLayout, i)
		}

		if !inRange(m.VertexDataByteOffset, m.VertexCount, m.VertexStride, len(h.VertexData)) {
			return fmt.Errorf("%w: mesh %d vertex range", ErrRangeOutOfBounds, i)
		}
		if !inRange(m.IndexDataByteOffset, m.IndexCount, IndexSize, len(h.IndexData)) {
			return fmt.Errorf("%w: mesh %d index range", ErrRangeOutOfBounds, i)
		}
		if !inRange(m.VertexDataByteOffsetDepth, m.VertexCountDepth, m.VertexStrideDepth, len(h.VertexDataDepth)) {
			return fmt.Errorf("%w: mesh %d depth vertex range", ErrRangeOutOfBounds, i)
		}
	}
	return nil
}

// VertexStride returns the model-wide vertex stride (0 without meshes).
func (h *H3D) VertexStride() uint32 {
	if len(h.Meshes) == 0 {
		return 0
	}
	return h.Meshes[0].VertexStride
}

// VertexStrideDepth returns the model-wide depth-only vertex stride.
func (h *H3D) VertexStrideDepth() uint32 {
	if len(h.Meshes) == 0 {
		return 0
	}
	return h.Meshes[0].VertexStrideDepth
}

func (h *H3D) syncedHeader() (Header, error) {
	header := h.Header
	if len(h.Meshes) > MaxMeshCount {
		return header, fmt.Errorf("%w: %d", ErrInvalidMeshCount, len(h.Meshes))
	}
	if len(h.Materials) > MaxMaterialCount {
		return header, fmt.Errorf("%w: %d", ErrInvalidMaterialCount, len(h.Materials))
	}
	for _, n := range []int{len(h.VertexData), len(h.IndexData), len(h.VertexDataDepth)} {
		if uint64(n) > 0xFFFFFFFF {
			return header, ErrBlobTooLarge
		}
	}
	header.MeshCount = uint32(len(h.Meshes))
	header.MaterialCount = uint32(len(h.Materials))
	header.VertexDataByteSize = uint32(len(h.VertexData))
	header.IndexDataByteSize = uint32(len(h.IndexData))
	header.VertexDataByteSizeDepth = uint32(len(h.VertexDataDepth))
	return header, nil
}

func inRange(offset, count, stride uint32, size int) bool {
	end := uint64(offset) + uint64(count)*uint64(stride)
	return end <= uint64(size)
}

// readStage decodes a fixed-size value, mapping truncation to ErrShortRead.
func readStage(r io.Reader, stage string, v any) error {
	if err := binary.Read(r, binary.LittleEndian, v); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("reading %s: %w", stage, ErrShortRead)
		}
		return fmt.Errorf("reading %s: %w: %w", stage, ErrIO, err)
	}
	return nil
}

// tableChunk is how many records readTable allocates ahead of the data.
const tableChunk = 64

// readTable reads n fixed-size records a chunk at a time, so a corrupt
// count ends in a short read rather than a large up-front allocation.
func readTable[T any](r io.Reader, stage string, n uint32) ([]T, error) {
	out := make([]T, 0, min(n, tableChunk))
	for uint32(len(out)) < n {
		chunk := make([]T, min(n-uint32(len(out)), tableChunk))
		if err := readStage(r, stage, chunk); err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func writeStage(w io.Writer, stage string, v any) error {
	if err := binary.Write(w, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("writing %s: %w: %w", stage, ErrShortWrite, err)
	}
	return nil
}

// readBlob reads exactly n bytes, growing the buffer as data arrives so a
// corrupt size cannot force a huge up-front allocation.
func readBlob(r io.Reader, stage string, n uint32) ([]byte, error) {
	var buf bytes.Buffer
	copied, err := io.CopyN(&buf, r, int64(n))
	if copied != int64(n) {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading %s: %w: got %d of %d bytes", stage, ErrShortRead, copied, n)
		}
		return nil, fmt.Errorf("reading %s: %w: %w", stage, ErrIO, err)
	}
	return buf.Bytes(), nil
}
