package convert

import (
	"cmp"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/Faultbox/modelpack/internal/logger"
	"github.com/Faultbox/modelpack/internal/model"
	"github.com/Faultbox/modelpack/internal/scene"
)

// MaxInfluences is the number of (joint, weight) pairs stored per vertex.
const MaxInfluences = 4

// VertexBones is the normalised bone binding of one vertex. Unused slots
// hold joint 0 with weight 0.
type VertexBones struct {
	Joints  [MaxInfluences]uint16
	Weights [MaxInfluences]float32
}

type influence struct {
	joint  uint8
	weight float32
}

// ResolveWeights maps the bone weights of a mesh onto its vertices and
// records each referenced bone's offset as its joint's inverse bind pose.
//
// Vertices with at most four influences keep them in source order. Larger
// sets follow the policy in opts. A vertex whose influences all weigh zero
// is left unbound.
func ResolveWeights(mesh *scene.Mesh, skel *model.Skeleton, joints JointMap, opts Options) ([]VertexBones, error) {
	perVertex := make([][]influence, len(mesh.Positions))

	for _, bone := range mesh.Bones {
		j, ok := joints[bone.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnmappedBone, bone.Name)
		}
		skel.Joints[j].InverseBindPose = bone.Offset

		for _, w := range bone.Weights {
			if int(w.Vertex) >= len(perVertex) {
				return nil, fmt.Errorf("%w: bone %q weights vertex %d of %d",
					ErrIndexOutOfRange, bone.Name, w.Vertex, len(perVertex))
			}
			perVertex[w.Vertex] = append(perVertex[w.Vertex], influence{joint: j, weight: w.Weight})
		}
	}

	out := make([]VertexBones, len(perVertex))
	truncated := 0
	for v, infl := range perVertex {
		if len(infl) > MaxInfluences {
			if opts.InfluencePolicy == PolicyReject {
				return nil, fmt.Errorf("%w: vertex %d has %d", ErrTooManyInfluences, v, len(infl))
			}
			infl = strongest(infl)
			truncated++
		}

		var sum float32
		for i, in := range infl {
			out[v].Joints[i] = uint16(in.joint)
			out[v].Weights[i] = in.weight
			sum += in.weight
		}
		if sum == 0 {
			// Only zero-weight influences: the vertex is unbound.
			out[v] = VertexBones{}
			continue
		}
		if abs32(sum-1) > opts.WeightTolerance {
			return nil, fmt.Errorf("%w: vertex %d sums to %g", ErrWeightSum, v, sum)
		}
	}

	if truncated > 0 {
		logger.Named("convert").Warn("truncated bone influences to 4",
			zap.String("mesh", mesh.Name), zap.Int("vertices", truncated))
	}
	return out, nil
}

// strongest keeps the four largest influences (earlier ones win ties) and
// rescales them to sum to 1.
func strongest(infl []influence) []influence {
	sorted := slices.Clone(infl)
	slices.SortStableFunc(sorted, func(a, b influence) int {
		return cmp.Compare(b.weight, a.weight)
	})
	sorted = sorted[:MaxInfluences]

	var sum float32
	for _, in := range sorted {
		sum += in.weight
	}
	if sum > 0 {
		for i := range sorted {
			sorted[i].weight /= sum
		}
	}
	return sorted
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
