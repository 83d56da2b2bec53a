// Package model holds a converted or loaded H3D model: its tables, its CPU
// blobs until they are released, and the optional skeleton and clip.
package model

import (
	"errors"
	"fmt"

	"github.com/Faultbox/modelpack/pkg/formats"
)

// ErrReleased is returned when CPU blobs are requested after Release.
var ErrReleased = errors.New("model blobs already released")

// Model is the result of exactly one producer: scene conversion or
// container load.
type Model struct {
	formats.H3D

	// Animation is nil for static models.
	Animation *Animation

	textures []SRUGroup
	released bool
}

// Animation is the payload that makes a model skinned. Clip is nil when the
// source had bones but no animation.
type Animation struct {
	Skeleton *Skeleton
	Clip     *AnimationClip
}

// New wraps a container and an optional animation payload.
func New(h formats.H3D, anim *Animation) *Model {
	return &Model{H3D: h, Animation: anim}
}

// IsAnimated reports whether the model carries a skeleton.
func (m *Model) IsAnimated() bool {
	return m.Animation != nil && m.Animation.Skeleton != nil
}

// BoundingBox returns the model-wide bounding box.
func (m *Model) BoundingBox() formats.BoundingBox {
	return m.Header.BoundingBox
}

// Container returns the serializable view of the model.
func (m *Model) Container() (*formats.H3D, error) {
	if m.released {
		return nil, ErrReleased
	}
	return &m.H3D, nil
}

// BufferDescriptor describes one buffer for GPU upload.
type BufferDescriptor struct {
	ElementCount uint32
	Stride       uint32
	Data         []byte
}

// Upload is the set of buffers the renderer creates for a model.
type Upload struct {
	Vertex      BufferDescriptor
	Index       BufferDescriptor
	VertexDepth BufferDescriptor
	IndexDepth  BufferDescriptor
}

// UploadDescriptors describes the four GPU buffers. The descriptors share
// memory with the model until Release.
func (m *Model) UploadDescriptors() (Upload, error) {
	if m.released {
		return Upload{}, ErrReleased
	}

	var u Upload
	u.Vertex = vertexBuffer(m.VertexData, m.VertexStride())
	u.VertexDepth = vertexBuffer(m.VertexDataDepth, m.VertexStrideDepth())
	u.Index = BufferDescriptor{
		ElementCount: uint32(len(m.IndexData) / formats.IndexSize),
		Stride:       formats.IndexSize,
		Data:         m.IndexData,
	}
	u.IndexDepth = BufferDescriptor{
		ElementCount: uint32(len(m.IndexDataDepth) / formats.IndexSize),
		Stride:       formats.IndexSize,
		Data:         m.IndexDataDepth,
	}
	return u, nil
}

func vertexBuffer(data []byte, stride uint32) BufferDescriptor {
	d := BufferDescriptor{Stride: stride, Data: data}
	if stride > 0 {
		d.ElementCount = uint32(len(data)) / stride
	}
	return d
}

// Release drops the CPU-side blobs once they have been uploaded. Tables,
// bounding boxes and the animation payload are kept.
func (m *Model) Release() {
	m.VertexData = nil
	m.IndexData = nil
	m.VertexDataDepth = nil
	m.IndexDataDepth = nil
	m.released = true
}

// Released reports whether Release has been called.
func (m *Model) Released() bool {
	return m.released
}

// Clear drops everything the model owns.
func (m *Model) Clear() {
	m.H3D = formats.H3D{}
	m.Animation = nil
	m.textures = nil
	m.released = false
}

// String summarises the model for logs.
func (m *Model) String() string {
	kind := "static"
	if m.IsAnimated() {
		kind = fmt.Sprintf("skinned(%d joints)", len(m.Animation.Skeleton.Joints))
	}
	return fmt.Sprintf("%s model: %d meshes, %d materials, %d vertex bytes, %d index bytes",
		kind, len(m.Meshes), len(m.Materials), len(m.VertexData), len(m.IndexData))
}
