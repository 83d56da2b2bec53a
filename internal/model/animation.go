package model

import (
	"fmt"
	gomath "math"

	"github.com/Faultbox/modelpack/pkg/math"
)

// JointPose is a local joint transform with uniform scale.
type JointPose struct {
	Scale       float32
	Rotation    math.Quat
	Translation math.Vec3
}

// IdentityPose returns the rest pose used for joints without keys.
func IdentityPose() JointPose {
	return JointPose{Scale: 1, Rotation: math.QuatIdentity()}
}

// Matrix returns translation × rotation × scale.
func (p JointPose) Matrix() math.Mat4 {
	return math.TRS(p.Translation, p.Rotation, p.Scale)
}

// Lerp blends two poses: slerp for rotation, lerp for the rest.
func (p JointPose) Lerp(other JointPose, t float32) JointPose {
	return JointPose{
		Scale:       p.Scale + t*(other.Scale-p.Scale),
		Rotation:    p.Rotation.Slerp(other.Rotation, t),
		Translation: p.Translation.Lerp(other.Translation, t),
	}
}

// AnimationSample holds one pose per skeleton joint.
type AnimationSample struct {
	JointPoses []JointPose
}

// AnimationClip is a clip sampled on a uniform frame grid.
type AnimationClip struct {
	Name       string
	FPS        float32
	FrameCount uint32
	Duration   float32 // seconds
	Looping    bool

	// Skeleton is shared with the owning Animation.
	Skeleton *Skeleton
	Samples  []AnimationSample
}

// Validate checks sample and pose counts against the frame count and the
// skeleton.
func (c *AnimationClip) Validate() error {
	if c.Skeleton == nil {
		return ErrNoSkeleton
	}
	if uint32(len(c.Samples)) != c.FrameCount {
		return fmt.Errorf("%w: %d samples, %d frames", ErrSampleCount, len(c.Samples), c.FrameCount)
	}
	for i := range c.Samples {
		if n := len(c.Samples[i].JointPoses); n != len(c.Skeleton.Joints) {
			return fmt.Errorf("%w: sample %d has %d poses, %d joints", ErrPoseCount, i, n, len(c.Skeleton.Joints))
		}
	}
	return nil
}

// Sample returns the local joint poses at time t seconds. Looping clips wrap
// around; others clamp to the first and last frame.
func (c *AnimationClip) Sample(t float32) ([]JointPose, error) {
	if len(c.Samples) == 0 {
		return nil, ErrEmptyClip
	}

	frame := t * c.FPS
	last := float32(len(c.Samples) - 1)
	if c.Looping && len(c.Samples) > 1 {
		frame = float32(gomath.Mod(float64(frame), float64(len(c.Samples))))
		if frame < 0 {
			frame += float32(len(c.Samples))
		}
	} else {
		frame = max(0, min(frame, last))
	}

	i0 := int(frame)
	i1 := i0 + 1
	if i1 >= len(c.Samples) {
		// Past the last frame a looping clip blends back to frame 0.
		if c.Looping {
			i1 = 0
		} else {
			i1 = i0
		}
	}
	alpha := frame - float32(i0)

	a := c.Samples[i0].JointPoses
	b := c.Samples[i1].JointPoses
	out := make([]JointPose, len(a))
	for j := range a {
		out[j] = a[j].Lerp(b[j], alpha)
	}
	return out, nil
}

// SkinMatrices evaluates the clip at time t and returns one skinning
// matrix per joint.
func (c *AnimationClip) SkinMatrices(t float32) ([]math.Mat4, error) {
	if c.Skeleton == nil {
		return nil, ErrNoSkeleton
	}
	poses, err := c.Sample(t)
	if err != nil {
		return nil, err
	}
	local := make([]math.Mat4, len(poses))
	for i, p := range poses {
		local[i] = p.Matrix()
	}
	global, err := c.Skeleton.GlobalPoses(local)
	if err != nil {
		return nil, err
	}
	return c.Skeleton.SkinMatrices(global)
}
