package convert

import "fmt"

// InfluencePolicy decides what happens to vertices with more than four bone
// influences.
type InfluencePolicy string

const (
	// PolicyTruncate keeps the four largest weights and renormalises them.
	PolicyTruncate InfluencePolicy = "truncate"
	// PolicyReject fails the conversion with ErrTooManyInfluences.
	PolicyReject InfluencePolicy = "reject"
)

// ParseInfluencePolicy validates a policy name.
func ParseInfluencePolicy(s string) (InfluencePolicy, error) {
	switch p := InfluencePolicy(s); p {
	case PolicyTruncate, PolicyReject:
		return p, nil
	default:
		return "", fmt.Errorf("unknown influence policy %q (want %q or %q)", s, PolicyTruncate, PolicyReject)
	}
}

// Options tunes a conversion.
type Options struct {
	// TexturePrefix is prepended to every texture key.
	TexturePrefix   string
	InfluencePolicy InfluencePolicy
	// AnimationIndex selects the clip to resample when the scene has several.
	AnimationIndex int
	// DefaultTicksPerSecond is used when a clip reports a zero rate.
	DefaultTicksPerSecond float64
	WeightTolerance       float32
	ScaleTolerance        float32
	Looping               bool
}

// DefaultOptions returns the stock conversion settings.
func DefaultOptions() Options {
	return Options{
		TexturePrefix:         "models/",
		InfluencePolicy:       PolicyTruncate,
		AnimationIndex:        0,
		DefaultTicksPerSecond: 25,
		WeightTolerance:       1e-5,
		ScaleTolerance:        1e-6,
		Looping:               true,
	}
}
