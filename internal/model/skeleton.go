package model

import (
	"errors"
	"fmt"

	"github.com/Faultbox/modelpack/pkg/math"
)

// NoParent is the parent index of a root joint.
const NoParent uint8 = 0xFF

// MaxJoints is the largest joint count addressable by a uint8 index with
// NoParent reserved.
const MaxJoints = 255

// Skeleton errors.
var (
	ErrJointOrder   = errors.New("joint parent does not precede joint")
	ErrPoseCount    = errors.New("pose count does not match joint count")
	ErrSampleCount  = errors.New("clip sample count does not match frame count")
	ErrEmptyClip    = errors.New("animation clip has no samples")
	ErrNoSkeleton   = errors.New("animation clip has no skeleton")
	ErrUnknownJoint = errors.New("joint not found")
)

// Joint is one node of a skeleton.
type Joint struct {
	Name            string
	InverseBindPose math.Mat4
	Parent          uint8
}

// IsRoot reports whether the joint has no parent.
func (j *Joint) IsRoot() bool { return j.Parent == NoParent }

// Skeleton is a flat joint array in which every parent precedes its
// children.
type Skeleton struct {
	Joints []Joint
}

// JointIndex looks a joint up by name.
func (s *Skeleton) JointIndex(name string) (int, error) {
	for i := range s.Joints {
		if s.Joints[i].Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownJoint, name)
}

// Validate checks the parent ordering.
func (s *Skeleton) Validate() error {
	for i := range s.Joints {
		p := s.Joints[i].Parent
		if p != NoParent && int(p) >= i {
			return fmt.Errorf("%w: joint %d %q has parent %d", ErrJointOrder, i, s.Joints[i].Name, p)
		}
	}
	return nil
}

// GlobalPoses composes local joint transforms into model space in a single
// forward pass.
func (s *Skeleton) GlobalPoses(local []math.Mat4) ([]math.Mat4, error) {
	if len(local) != len(s.Joints) {
		return nil, fmt.Errorf("%w: %d poses, %d joints", ErrPoseCount, len(local), len(s.Joints))
	}
	global := make([]math.Mat4, len(local))
	for i := range s.Joints {
		if p := s.Joints[i].Parent; p != NoParent {
			global[i] = global[p].Mul(local[i])
		} else {
			global[i] = local[i]
		}
	}
	return global, nil
}

// SkinMatrices returns global × inverse bind pose for every joint.
func (s *Skeleton) SkinMatrices(global []math.Mat4) ([]math.Mat4, error) {
	if len(global) != len(s.Joints) {
		return nil, fmt.Errorf("%w: %d poses, %d joints", ErrPoseCount, len(global), len(s.Joints))
	}
	out := make([]math.Mat4, len(global))
	for i := range s.Joints {
		out[i] = global[i].Mul(s.Joints[i].InverseBindPose)
	}
	return out, nil
}
