package convert

import (
	"github.com/Faultbox/modelpack/internal/scene"
	"github.com/Faultbox/modelpack/pkg/encoding"
	"github.com/Faultbox/modelpack/pkg/formats"
	"github.com/Faultbox/modelpack/pkg/math"
)

var white = math.Vec3{X: 1, Y: 1, Z: 1}

// textureSlots maps scene texture types to container slots.
var textureSlots = [...]struct {
	src scene.TextureType
	dst formats.TextureSlot
}{
	{scene.TextureDiffuse, formats.TexDiffuse},
	{scene.TextureSpecular, formats.TexSpecular},
	{scene.TextureEmissive, formats.TexEmissive},
	{scene.TextureNormal, formats.TexNormal},
	{scene.TextureLightmap, formats.TexLightmap},
	{scene.TextureReflection, formats.TexReflection},
}

// ConvertMaterial copies the material properties, filling absent ones with
// defaults, and turns texture paths into logical keys. Names and keys are
// normalised and cut to what the material table can hold, so the model
// matches its serialized form.
func ConvertMaterial(m *scene.Material, texturePrefix string) formats.Material {
	out := formats.Material{
		Diffuse:          colorOr(m, scene.KeyDiffuse, white),
		Specular:         colorOr(m, scene.KeySpecular, white),
		Ambient:          colorOr(m, scene.KeyAmbient, white),
		Emissive:         colorOr(m, scene.KeyEmissive, math.Vec3{}),
		Transparent:      colorOr(m, scene.KeyTransparent, white),
		Opacity:          floatOr(m, scene.KeyOpacity, 1),
		Shininess:        floatOr(m, scene.KeyShininess, 0),
		SpecularStrength: floatOr(m, scene.KeySpecularStrength, 1),
		Name:             encoding.Truncate(encoding.Canonical(m.Name), formats.MaxMaterialName-1),
	}
	for _, s := range textureSlots {
		if p, ok := m.Texture(s.src); ok {
			out.Textures[s.dst] = encoding.Truncate(encoding.TextureKey(texturePrefix, p), formats.MaxTexPath-1)
		}
	}
	return out
}

func colorOr(m *scene.Material, key string, def math.Vec3) math.Vec3 {
	if c, ok := m.Color(key); ok {
		return c
	}
	return def
}

func floatOr(m *scene.Material, key string, def float32) float32 {
	if f, ok := m.Float(key); ok {
		return f
	}
	return def
}
