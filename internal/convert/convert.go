// Package convert turns an imported scene into an H3D model: it plans the
// vertex layouts, builds the skeleton, resolves bone weights, resamples the
// animation, packs the geometry and computes bounding boxes.
//
// Conversion is all-or-nothing. On error no model is returned.
package convert

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/modelpack/internal/logger"
	"github.com/Faultbox/modelpack/internal/model"
	"github.com/Faultbox/modelpack/internal/scene"
	"github.com/Faultbox/modelpack/pkg/formats"
)

// ConvertFile imports a glTF file and converts it.
func ConvertFile(path string, opts Options) (*model.Model, error) {
	s, err := scene.ImportGLTFFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImport, err)
	}
	return Convert(s, opts)
}

// Convert builds a model from s.
func Convert(s *scene.Scene, opts Options) (*model.Model, error) {
	log := logger.Named("convert")
	if len(s.Meshes) == 0 {
		return nil, ErrNoMeshes
	}
	if len(s.Meshes) > formats.MaxMeshCount {
		return nil, fmt.Errorf("%w: %d meshes", ErrIndexOutOfRange, len(s.Meshes))
	}
	if len(s.Materials) > formats.MaxMaterialCount {
		return nil, fmt.Errorf("%w: %d materials", ErrIndexOutOfRange, len(s.Materials))
	}

	var anim *model.Animation
	var joints JointMap
	if s.HasAnimations() || s.HasBones() {
		skel, jm, err := BuildSkeleton(s)
		if err != nil {
			return nil, err
		}
		anim = &model.Animation{Skeleton: skel}
		joints = jm
	}

	full, depth := PlanLayouts(len(s.Meshes[0].Bones) > 0)
	packer := NewPacker(full, depth)

	h := formats.H3D{
		Meshes:    make([]formats.Mesh, 0, len(s.Meshes)),
		Materials: make([]formats.Material, 0, len(s.Materials)),
	}
	boxes := make([]formats.BoundingBox, 0, len(s.Meshes))

	for i := range s.Meshes {
		mesh := &s.Meshes[i]
		if mesh.MaterialIndex < 0 || mesh.MaterialIndex >= len(s.Materials) {
			return nil, fmt.Errorf("%w: mesh %q material %d of %d",
				ErrIndexOutOfRange, mesh.Name, mesh.MaterialIndex, len(s.Materials))
		}

		meshFull, meshDepth := PlanLayouts(len(mesh.Bones) > 0)
		if err := checkUniform(i, full, meshFull); err != nil {
			return nil, fmt.Errorf("mesh %q: %w", mesh.Name, err)
		}
		if err := checkUniform(i, depth, meshDepth); err != nil {
			return nil, fmt.Errorf("mesh %q: %w", mesh.Name, err)
		}

		var bones []VertexBones
		if len(mesh.Bones) > 0 {
			var err error
			if bones, err = ResolveWeights(mesh, anim.Skeleton, joints, opts); err != nil {
				return nil, fmt.Errorf("mesh %q: %w", mesh.Name, err)
			}
		}

		rec, err := packer.Add(mesh, bones)
		if err != nil {
			return nil, err
		}
		rec.MaterialIndex = uint32(mesh.MaterialIndex)
		h.Meshes = append(h.Meshes, rec)
		boxes = append(boxes, rec.BoundingBox)

		log.Debug("mesh packed",
			zap.String("mesh", mesh.Name),
			zap.Uint32("vertices", rec.VertexCount),
			zap.Uint32("indices", rec.IndexCount),
			zap.Int("bones", len(mesh.Bones)))
	}

	for i := range s.Materials {
		h.Materials = append(h.Materials, ConvertMaterial(&s.Materials[i], opts.TexturePrefix))
	}

	if s.HasAnimations() {
		if opts.AnimationIndex < 0 || opts.AnimationIndex >= len(s.Animations) {
			return nil, fmt.Errorf("%w: %d of %d", ErrNoSuchAnimation, opts.AnimationIndex, len(s.Animations))
		}
		clip, err := ResampleAnimation(&s.Animations[opts.AnimationIndex], anim.Skeleton, joints, opts)
		if err != nil {
			return nil, err
		}
		anim.Clip = clip
	}

	h.VertexData, h.IndexData, h.VertexDataDepth, h.IndexDataDepth = packer.Blobs()
	h.Header = formats.Header{
		MeshCount:               uint32(len(h.Meshes)),
		MaterialCount:           uint32(len(h.Materials)),
		VertexDataByteSize:      uint32(len(h.VertexData)),
		IndexDataByteSize:       uint32(len(h.IndexData)),
		VertexDataByteSizeDepth: uint32(len(h.VertexDataDepth)),
		BoundingBox:             UnionBounds(boxes),
	}

	m := model.New(h, anim)
	log.Info("scene converted", zap.Stringer("model", m))
	return m, nil
}
