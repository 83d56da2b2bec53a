package model

import (
	"errors"
	"fmt"

	"github.com/Faultbox/modelpack/pkg/formats"
)

// Fallback texture keys used when a material has no usable texture.
const (
	DefaultDiffuse  = "default"
	DefaultSpecular = "default_specular"
	DefaultNormal   = "default_normal"
)

// ErrTextureUnresolved is returned when even the fallback texture is missing.
var ErrTextureUnresolved = errors.New("texture key could not be resolved")

// SRU is an opaque shader resource handle owned by the renderer.
type SRU uint64

// SRUGroup holds the six shader resources bound for one material, in
// texture slot order.
type SRUGroup [formats.TexCount]SRU

// TextureResolver maps logical texture keys to loaded resources.
type TextureResolver interface {
	Resolve(key string) (SRU, bool)
}

// TextureResolverFunc adapts a function to TextureResolver.
type TextureResolverFunc func(key string) (SRU, bool)

// Resolve implements TextureResolver.
func (f TextureResolverFunc) Resolve(key string) (SRU, bool) { return f(key) }

// BindTextures resolves the textures of every material.
//
// Diffuse falls back to "default". Specular tries its own key, then
// "<diffuse>_specular", then "default_specular"; normal maps follow the same
// chain with "_normal". Emissive, lightmap and reflection slots reuse the
// diffuse resource.
func (m *Model) BindTextures(r TextureResolver) error {
	groups := make([]SRUGroup, len(m.Materials))
	for i := range m.Materials {
		mat := &m.Materials[i]
		diffuseKey := mat.Textures[formats.TexDiffuse]

		diffuse, err := resolveChain(r, diffuseKey, DefaultDiffuse)
		if err != nil {
			return fmt.Errorf("material %d %q diffuse: %w", i, mat.Name, err)
		}
		specular, err := resolveChain(r, mat.Textures[formats.TexSpecular], suffixed(diffuseKey, "_specular"), DefaultSpecular)
		if err != nil {
			return fmt.Errorf("material %d %q specular: %w", i, mat.Name, err)
		}
		normal, err := resolveChain(r, mat.Textures[formats.TexNormal], suffixed(diffuseKey, "_normal"), DefaultNormal)
		if err != nil {
			return fmt.Errorf("material %d %q normal: %w", i, mat.Name, err)
		}

		groups[i] = SRUGroup{
			formats.TexDiffuse:    diffuse,
			formats.TexSpecular:   specular,
			formats.TexEmissive:   diffuse,
			formats.TexNormal:     normal,
			formats.TexLightmap:   diffuse,
			formats.TexReflection: diffuse,
		}
	}
	m.textures = groups
	return nil
}

// SRUs returns the bound resources of a material. ok is false before
// BindTextures or for an unknown material.
func (m *Model) SRUs(material int) (SRUGroup, bool) {
	if material < 0 || material >= len(m.textures) {
		return SRUGroup{}, false
	}
	return m.textures[material], true
}

func suffixed(key, suffix string) string {
	if key == "" {
		return ""
	}
	return key + suffix
}

// resolveChain returns the first key of the chain that resolves. Empty keys
// are skipped.
func resolveChain(r TextureResolver, keys ...string) (SRU, error) {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if h, ok := r.Resolve(k); ok {
			return h, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrTextureUnresolved, keys[len(keys)-1])
}
