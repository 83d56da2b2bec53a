// Package scene defines the in-memory scene graph consumed by the converter
// and provides importers that produce it.
//
// A Scene stores its node tree as an arena: Nodes[0] is a synthetic root and
// every other node refers to its parent and children by index.
package scene

import (
	"github.com/Faultbox/modelpack/pkg/math"
)

// RootIndex is the index of the synthetic scene root.
const RootIndex = 0

// NoParent marks the synthetic root's parent.
const NoParent = -1

// NodeTree is a read-only view of a node hierarchy.
type NodeTree interface {
	Root() int
	Children(node int) []int
	Name(node int) string
}

// Scene is an imported scene graph.
type Scene struct {
	Nodes      []Node
	Meshes     []Mesh
	Materials  []Material
	Animations []Animation
}

// Node is one node of the scene tree.
type Node struct {
	Name     string
	Parent   int
	Children []int
	Meshes   []int // indices into Scene.Meshes
}

// New returns a scene holding only the synthetic root.
func New() *Scene {
	return &Scene{
		Nodes: []Node{{Name: "", Parent: NoParent}},
	}
}

// AddNode appends a named child of parent and returns its index.
func (s *Scene) AddNode(parent int, name string) int {
	idx := len(s.Nodes)
	s.Nodes = append(s.Nodes, Node{Name: name, Parent: parent})
	s.Nodes[parent].Children = append(s.Nodes[parent].Children, idx)
	return idx
}

// Root implements NodeTree.
func (s *Scene) Root() int { return RootIndex }

// Children implements NodeTree.
func (s *Scene) Children(node int) []int { return s.Nodes[node].Children }

// Name implements NodeTree.
func (s *Scene) Name(node int) string { return s.Nodes[node].Name }

// HasAnimations reports whether the scene carries at least one clip.
func (s *Scene) HasAnimations() bool {
	return len(s.Animations) > 0
}

// HasBones reports whether any mesh carries bone bindings.
func (s *Scene) HasBones() bool {
	for i := range s.Meshes {
		if len(s.Meshes[i].Bones) > 0 {
			return true
		}
	}
	return false
}

// Mesh is one triangle mesh. Optional channels are nil when absent and
// otherwise have one entry per position.
type Mesh struct {
	Name          string
	MaterialIndex int

	Positions  []math.Vec3
	Texcoords  [][2]float32
	Normals    []math.Vec3
	Tangents   []math.Vec3
	Bitangents []math.Vec3

	Faces [][]uint32
	Bones []Bone
}

// Bone binds a named node to the vertices it influences.
type Bone struct {
	Name string
	// Offset maps mesh space to bone space in bind pose (the inverse bind
	// matrix), column-major.
	Offset  math.Mat4
	Weights []VertexWeight
}

// VertexWeight is one bone influence on one vertex.
type VertexWeight struct {
	Vertex uint32
	Weight float32
}

// Material property keys.
const (
	KeyDiffuse          = "diffuse"
	KeySpecular         = "specular"
	KeyAmbient          = "ambient"
	KeyEmissive         = "emissive"
	KeyTransparent      = "transparent"
	KeyOpacity          = "opacity"
	KeyShininess        = "shininess"
	KeySpecularStrength = "specular_strength"
)

// TextureType selects a texture slot of a material.
type TextureType int

const (
	TextureDiffuse TextureType = iota
	TextureSpecular
	TextureEmissive
	TextureNormal
	TextureLightmap
	TextureReflection
)

// Material is a key/value property bag.
type Material struct {
	Name     string
	Colors   map[string]math.Vec3
	Floats   map[string]float32
	Textures map[TextureType]string
}

// NewMaterial returns an empty named material.
func NewMaterial(name string) Material {
	return Material{
		Name:     name,
		Colors:   make(map[string]math.Vec3),
		Floats:   make(map[string]float32),
		Textures: make(map[TextureType]string),
	}
}

// Color looks up a colour property.
func (m *Material) Color(key string) (math.Vec3, bool) {
	c, ok := m.Colors[key]
	return c, ok
}

// Float looks up a scalar property.
func (m *Material) Float(key string) (float32, bool) {
	f, ok := m.Floats[key]
	return f, ok
}

// Texture looks up the source file path of a texture slot.
func (m *Material) Texture(t TextureType) (string, bool) {
	p, ok := m.Textures[t]
	return p, ok && p != ""
}

// Animation is one clip: per-node keyframe tracks in ticks.
type Animation struct {
	Name           string
	TicksPerSecond float64 // 0 when the source does not say
	Duration       float64 // in ticks
	Tracks         []Track
}

// Track holds the keyframes of one node. Channels are independent and may
// have different key counts.
type Track struct {
	NodeName     string
	PositionKeys []VectorKey
	RotationKeys []QuatKey
	ScaleKeys    []VectorKey
}

// VectorKey is a translation or scale keyframe.
type VectorKey struct {
	Time  float64
	Value math.Vec3
}

// QuatKey is a rotation keyframe.
type QuatKey struct {
	Time  float64
	Value math.Quat
}

// KeyCount returns the largest key count over the three channels.
func (t *Track) KeyCount() int {
	return max(len(t.PositionKeys), len(t.RotationKeys), len(t.ScaleKeys))
}
