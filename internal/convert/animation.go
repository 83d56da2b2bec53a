package convert

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/modelpack/internal/logger"
	"github.com/Faultbox/modelpack/internal/model"
	"github.com/Faultbox/modelpack/internal/scene"
)

// fallbackFPS is the clip rate when neither the source nor the options give one.
const fallbackFPS = 25

// ResampleAnimation builds a clip with one sample per key index.
//
// Sample i takes key i of every channel that has one; channels with fewer
// keys leave the rest of their samples at the identity pose. This assumes
// all channels share one key cadence. Key times are not interpolated.
func ResampleAnimation(anim *scene.Animation, skel *model.Skeleton, joints JointMap, opts Options) (*model.AnimationClip, error) {
	fps := anim.TicksPerSecond
	if fps <= 0 {
		fps = opts.DefaultTicksPerSecond
	}
	if fps <= 0 {
		fps = fallbackFPS
	}

	frames := 0
	for i := range anim.Tracks {
		frames = max(frames, anim.Tracks[i].KeyCount())
	}

	clip := &model.AnimationClip{
		Name:       anim.Name,
		FPS:        float32(fps),
		FrameCount: uint32(frames),
		Looping:    opts.Looping,
		Skeleton:   skel,
		Samples:    make([]model.AnimationSample, frames),
	}
	for i := range clip.Samples {
		poses := make([]model.JointPose, len(skel.Joints))
		for j := range poses {
			poses[j] = model.IdentityPose()
		}
		clip.Samples[i].JointPoses = poses
	}

	slightlySkewed := 0
	for t := range anim.Tracks {
		track := &anim.Tracks[t]
		j, ok := joints[track.NodeName]
		if !ok {
			return nil, fmt.Errorf("%w: animation %q track %q", ErrUnmappedBone, anim.Name, track.NodeName)
		}

		for i, k := range track.PositionKeys {
			clip.Samples[i].JointPoses[j].Translation = k.Value
		}
		for i, k := range track.RotationKeys {
			clip.Samples[i].JointPoses[j].Rotation = k.Value
		}
		for i, k := range track.ScaleKeys {
			s := k.Value
			dy, dz := abs32(s.X-s.Y), abs32(s.X-s.Z)
			if dy > opts.ScaleTolerance || dz > opts.ScaleTolerance {
				return nil, fmt.Errorf("%w: track %q key %d scale (%g, %g, %g)",
					ErrNonUniformScale, track.NodeName, i, s.X, s.Y, s.Z)
			}
			if dy != 0 || dz != 0 {
				slightlySkewed++
			}
			clip.Samples[i].JointPoses[j].Scale = s.X
		}
	}

	if anim.Duration > 0 {
		clip.Duration = float32(anim.Duration / fps)
	} else {
		clip.Duration = float32(float64(frames) / fps)
	}

	if slightlySkewed > 0 {
		logger.Named("convert").Warn("scale keys differ per axis within tolerance; using X",
			zap.String("animation", anim.Name), zap.Int("keys", slightlySkewed))
	}
	logger.Named("convert").Debug("animation resampled",
		zap.String("animation", anim.Name),
		zap.Float64("fps", fps),
		zap.Float32("duration", clip.Duration),
		zap.Int("samples", frames))

	return clip, nil
}
