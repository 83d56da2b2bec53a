package convert

import (
	"fmt"

	"github.com/Faultbox/modelpack/internal/model"
	"github.com/Faultbox/modelpack/internal/scene"
	"github.com/Faultbox/modelpack/pkg/math"
)

// JointMap resolves node names to joint indices.
type JointMap map[string]uint8

// BuildSkeleton walks the tree breadth-first below the root and turns every
// named node into a joint, in visiting order. A joint's parent is its
// nearest named ancestor. Inverse bind poses start as identity and are
// filled in by the weight resolver.
func BuildSkeleton(tree scene.NodeTree) (*model.Skeleton, JointMap, error) {
	type entry struct {
		node   int
		parent uint8 // joint of the nearest named ancestor
	}

	skel := &model.Skeleton{}
	joints := make(JointMap)

	var queue []entry
	for _, c := range tree.Children(tree.Root()) {
		queue = append(queue, entry{node: c, parent: model.NoParent})
	}

	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]

		parent := e.parent
		if name := tree.Name(e.node); name != "" {
			if _, dup := joints[name]; dup {
				return nil, nil, fmt.Errorf("%w: %q", ErrDuplicateJoint, name)
			}
			if len(skel.Joints) >= model.MaxJoints {
				return nil, nil, fmt.Errorf("%w: more than %d named nodes", ErrTooManyJoints, model.MaxJoints)
			}
			idx := uint8(len(skel.Joints))
			skel.Joints = append(skel.Joints, model.Joint{
				Name:            name,
				InverseBindPose: math.Identity(),
				Parent:          e.parent,
			})
			joints[name] = idx
			parent = idx
		}

		for _, c := range tree.Children(e.node) {
			queue = append(queue, entry{node: c, parent: parent})
		}
	}

	return skel, joints, nil
}
