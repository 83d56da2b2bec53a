package convert

import (
	"errors"
	"fmt"
)

// Failure categories. Every conversion error matches exactly one of them
// under errors.Is.
var (
	// ErrImport means the source scene could not be read.
	ErrImport = errors.New("scene import failed")
	// ErrSchema means the scene violates a conversion precondition.
	ErrSchema = errors.New("scene schema violation")
)

// Schema violations.
var (
	ErrNoMeshes          = fmt.Errorf("%w: scene has no meshes", ErrSchema)
	ErrNonTriangleFace   = fmt.Errorf("%w: face is not a triangle", ErrSchema)
	ErrLayoutMismatch    = fmt.Errorf("%w: meshes resolve to different vertex layouts", ErrSchema)
	ErrUnmappedBone      = fmt.Errorf("%w: bone name has no joint", ErrSchema)
	ErrDuplicateJoint    = fmt.Errorf("%w: duplicate joint name", ErrSchema)
	ErrTooManyJoints     = fmt.Errorf("%w: too many joints", ErrSchema)
	ErrNonUniformScale   = fmt.Errorf("%w: non-uniform scale key", ErrSchema)
	ErrTooManyInfluences = fmt.Errorf("%w: vertex has more than 4 bone influences", ErrSchema)
	ErrWeightSum         = fmt.Errorf("%w: vertex weights do not sum to 1", ErrSchema)
	ErrMissingNormals    = fmt.Errorf("%w: mesh has no normals", ErrSchema)
	ErrTooManyVertices   = fmt.Errorf("%w: mesh exceeds the 16-bit index range", ErrSchema)
	ErrIndexOutOfRange   = fmt.Errorf("%w: index out of range", ErrSchema)
	ErrNoSuchAnimation   = fmt.Errorf("%w: animation index out of range", ErrSchema)
)
