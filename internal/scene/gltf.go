package scene

import (
	"errors"
	"fmt"
	gomath "math"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/Faultbox/modelpack/internal/logger"
	"github.com/Faultbox/modelpack/pkg/math"
)

// glTF import errors.
var (
	ErrInvalidReference     = errors.New("glTF index out of range")
	ErrUnsupportedPrimitive = errors.New("unsupported glTF primitive mode")
	ErrMissingPositions     = errors.New("glTF primitive has no POSITION attribute")
	ErrUnsupportedAccessor  = errors.New("unsupported glTF accessor data")
	ErrNodeCycle            = errors.New("glTF node reachable from two parents")
)

// maxShininess caps the specular exponent derived from a zero roughness.
const maxShininess = 1024

// ImportGLTFFile reads a .gltf or .glb file into a Scene.
func ImportGLTFFile(path string) (*Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening glTF %s: %w", path, err)
	}
	s, err := ImportGLTF(doc)
	if err != nil {
		return nil, fmt.Errorf("importing glTF %s: %w", path, err)
	}
	return s, nil
}

// ImportGLTF converts a decoded glTF document into a Scene.
//
// Every glTF primitive becomes one Mesh. Unnamed nodes are given the name
// "node_<index>" so skins and animation channels can always refer to them.
// Animation key times are expressed in ticks of the finest key spacing found
// in the clip.
func ImportGLTF(doc *gltf.Document) (*Scene, error) {
	imp := &gltfImporter{
		doc:             doc,
		scene:           New(),
		meshes:          make(map[meshKey][]int),
		defaultMaterial: -1,
	}
	imp.nameNodes()

	if err := imp.importMaterials(); err != nil {
		return nil, err
	}

	visited := make([]bool, len(doc.Nodes))
	for _, root := range imp.rootNodes() {
		if err := imp.importNode(RootIndex, root, visited); err != nil {
			return nil, err
		}
	}

	if err := imp.importAnimations(); err != nil {
		return nil, err
	}

	logger.Named("scene").Debug("glTF imported",
		zap.Int("nodes", len(imp.scene.Nodes)-1),
		zap.Int("meshes", len(imp.scene.Meshes)),
		zap.Int("materials", len(imp.scene.Materials)),
		zap.Int("animations", len(imp.scene.Animations)))

	return imp.scene, nil
}

type gltfImporter struct {
	doc   *gltf.Document
	scene *Scene

	names           []string
	meshes          map[meshKey][]int // glTF mesh and skin -> scene meshes
	defaultMaterial int
}

// meshKey identifies one import of a glTF mesh. The same mesh bound to a
// different skin yields different bone weights. skin is -1 when unskinned.
type meshKey struct {
	mesh, skin int
}

func (imp *gltfImporter) nameNodes() {
	imp.names = make([]string, len(imp.doc.Nodes))
	for i, n := range imp.doc.Nodes {
		if n != nil && n.Name != "" {
			imp.names[i] = n.Name
		} else {
			imp.names[i] = fmt.Sprintf("node_%d", i)
		}
	}
}

// rootNodes returns the top-level nodes of the default scene, or every
// parentless node when the document declares no scene.
func (imp *gltfImporter) rootNodes() []int {
	doc := imp.doc
	if len(doc.Scenes) > 0 {
		idx := 0
		if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
			idx = *doc.Scene
		}
		if doc.Scenes[idx] != nil {
			return doc.Scenes[idx].Nodes
		}
	}

	isChild := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		if n == nil {
			continue
		}
		for _, c := range n.Children {
			if c >= 0 && c < len(isChild) {
				isChild[c] = true
			}
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !isChild[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

func (imp *gltfImporter) importNode(parent, idx int, visited []bool) error {
	if idx < 0 || idx >= len(imp.doc.Nodes) || imp.doc.Nodes[idx] == nil {
		return fmt.Errorf("%w: node %d", ErrInvalidReference, idx)
	}
	if visited[idx] {
		return fmt.Errorf("%w: node %d", ErrNodeCycle, idx)
	}
	visited[idx] = true

	n := imp.doc.Nodes[idx]
	self := imp.scene.AddNode(parent, imp.names[idx])

	if n.Mesh != nil {
		meshes, err := imp.importMesh(*n.Mesh, n.Skin)
		if err != nil {
			return fmt.Errorf("node %q: %w", imp.names[idx], err)
		}
		imp.scene.Nodes[self].Meshes = append(imp.scene.Nodes[self].Meshes, meshes...)
	}

	for _, c := range n.Children {
		if err := imp.importNode(self, c, visited); err != nil {
			return err
		}
	}
	return nil
}

// importMesh converts a glTF mesh once per skin; later references with the
// same skin reuse the result.
func (imp *gltfImporter) importMesh(meshIdx int, skin *int) ([]int, error) {
	key := meshKey{mesh: meshIdx, skin: -1}
	if skin != nil {
		key.skin = *skin
	}
	if cached, ok := imp.meshes[key]; ok {
		return cached, nil
	}
	if meshIdx < 0 || meshIdx >= len(imp.doc.Meshes) || imp.doc.Meshes[meshIdx] == nil {
		return nil, fmt.Errorf("%w: mesh %d", ErrInvalidReference, meshIdx)
	}

	gm := imp.doc.Meshes[meshIdx]
	var out []int
	for p, prim := range gm.Primitives {
		if prim == nil {
			continue
		}
		m, err := imp.importPrimitive(prim, skin)
		if err != nil {
			return nil, fmt.Errorf("mesh %q primitive %d: %w", gm.Name, p, err)
		}
		m.Name = gm.Name
		if len(gm.Primitives) > 1 {
			m.Name = fmt.Sprintf("%s_%d", gm.Name, p)
		}
		out = append(out, len(imp.scene.Meshes))
		imp.scene.Meshes = append(imp.scene.Meshes, m)
	}
	imp.meshes[key] = out
	return out, nil
}

func (imp *gltfImporter) importPrimitive(prim *gltf.Primitive, skin *int) (Mesh, error) {
	var m Mesh

	faceSize := 0
	switch prim.Mode {
	case gltf.PrimitiveTriangles:
		faceSize = 3
	case gltf.PrimitiveLines:
		faceSize = 2
	case gltf.PrimitivePoints:
		faceSize = 1
	default:
		return m, fmt.Errorf("%w: %d", ErrUnsupportedPrimitive, prim.Mode)
	}

	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return m, ErrMissingPositions
	}
	acc, err := imp.accessor(posIdx)
	if err != nil {
		return m, err
	}
	positions, err := modeler.ReadPosition(imp.doc, acc, nil)
	if err != nil {
		return m, fmt.Errorf("reading positions: %w", err)
	}
	m.Positions = toVec3s(positions)

	if idx, ok := prim.Attributes["NORMAL"]; ok {
		if acc, err = imp.accessor(idx); err != nil {
			return m, err
		}
		normals, err := modeler.ReadNormal(imp.doc, acc, nil)
		if err != nil {
			return m, fmt.Errorf("reading normals: %w", err)
		}
		m.Normals = toVec3s(normals)
	}

	if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
		if acc, err = imp.accessor(idx); err != nil {
			return m, err
		}
		if m.Texcoords, err = modeler.ReadTextureCoord(imp.doc, acc, nil); err != nil {
			return m, fmt.Errorf("reading texcoords: %w", err)
		}
	}

	if idx, ok := prim.Attributes["TANGENT"]; ok && m.Normals != nil {
		if acc, err = imp.accessor(idx); err != nil {
			return m, err
		}
		tangents, err := modeler.ReadTangent(imp.doc, acc, nil)
		if err != nil {
			return m, fmt.Errorf("reading tangents: %w", err)
		}
		m.Tangents, m.Bitangents = tangentFrame(m.Normals, tangents)
	}

	indices, err := imp.readIndices(prim, len(m.Positions))
	if err != nil {
		return m, err
	}
	m.Faces = chunkFaces(indices, faceSize)

	if prim.Material != nil {
		if *prim.Material < 0 || *prim.Material >= len(imp.doc.Materials) {
			return m, fmt.Errorf("%w: material %d", ErrInvalidReference, *prim.Material)
		}
		m.MaterialIndex = *prim.Material
	} else {
		m.MaterialIndex = imp.ensureDefaultMaterial()
	}

	if skin != nil {
		if m.Bones, err = imp.readBones(prim, *skin); err != nil {
			return m, err
		}
	}

	return m, nil
}

func (imp *gltfImporter) readIndices(prim *gltf.Primitive, vertexCount int) ([]uint32, error) {
	if prim.Indices == nil {
		indices := make([]uint32, vertexCount)
		for i := range indices {
			indices[i] = uint32(i)
		}
		return indices, nil
	}
	acc, err := imp.accessor(*prim.Indices)
	if err != nil {
		return nil, err
	}
	indices, err := modeler.ReadIndices(imp.doc, acc, nil)
	if err != nil {
		return nil, fmt.Errorf("reading indices: %w", err)
	}
	return indices, nil
}

// readBones turns JOINTS_0/WEIGHTS_0 into per-bone weight lists. Joints that
// influence no vertex of this primitive are left out.
func (imp *gltfImporter) readBones(prim *gltf.Primitive, skinIdx int) ([]Bone, error) {
	if skinIdx < 0 || skinIdx >= len(imp.doc.Skins) || imp.doc.Skins[skinIdx] == nil {
		return nil, fmt.Errorf("%w: skin %d", ErrInvalidReference, skinIdx)
	}
	jIdx, okJ := prim.Attributes["JOINTS_0"]
	wIdx, okW := prim.Attributes["WEIGHTS_0"]
	if !okJ || !okW {
		return nil, nil
	}

	acc, err := imp.accessor(jIdx)
	if err != nil {
		return nil, err
	}
	joints, err := modeler.ReadJoints(imp.doc, acc, nil)
	if err != nil {
		return nil, fmt.Errorf("reading joints: %w", err)
	}
	if acc, err = imp.accessor(wIdx); err != nil {
		return nil, err
	}
	weights, err := modeler.ReadWeights(imp.doc, acc, nil)
	if err != nil {
		return nil, fmt.Errorf("reading weights: %w", err)
	}

	skin := imp.doc.Skins[skinIdx]
	offsets, err := imp.inverseBindMatrices(skin)
	if err != nil {
		return nil, err
	}

	bones := make([]Bone, len(skin.Joints))
	for k, node := range skin.Joints {
		if node < 0 || node >= len(imp.names) {
			return nil, fmt.Errorf("%w: skin joint node %d", ErrInvalidReference, node)
		}
		bones[k] = Bone{Name: imp.names[node], Offset: math.Identity()}
		if k < len(offsets) {
			bones[k].Offset = offsets[k]
		}
	}

	for v := 0; v < min(len(joints), len(weights)); v++ {
		for s := 0; s < 4; s++ {
			w := weights[v][s]
			if w == 0 {
				continue
			}
			k := int(joints[v][s])
			if k >= len(bones) {
				return nil, fmt.Errorf("%w: vertex %d joint %d", ErrInvalidReference, v, k)
			}
			bones[k].Weights = append(bones[k].Weights, VertexWeight{Vertex: uint32(v), Weight: w})
		}
	}

	used := bones[:0]
	for _, b := range bones {
		if len(b.Weights) > 0 {
			used = append(used, b)
		}
	}
	return used, nil
}

func (imp *gltfImporter) inverseBindMatrices(skin *gltf.Skin) ([]math.Mat4, error) {
	if skin.InverseBindMatrices == nil {
		return nil, nil
	}
	acc, err := imp.accessor(*skin.InverseBindMatrices)
	if err != nil {
		return nil, err
	}
	data, err := modeler.ReadAccessor(imp.doc, acc, nil)
	if err != nil {
		return nil, fmt.Errorf("reading inverse bind matrices: %w", err)
	}
	mats, ok := data.([][4][4]float32)
	if !ok {
		return nil, fmt.Errorf("%w: inverse bind matrices are %T", ErrUnsupportedAccessor, data)
	}
	out := make([]math.Mat4, len(mats))
	for i, m := range mats {
		// glTF matrices are column-major, like Mat4.
		for c := 0; c < 4; c++ {
			for r := 0; r < 4; r++ {
				out[i][c*4+r] = m[c][r]
			}
		}
	}
	return out, nil
}

func (imp *gltfImporter) importMaterials() error {
	for i, gm := range imp.doc.Materials {
		name := fmt.Sprintf("material_%d", i)
		if gm != nil && gm.Name != "" {
			name = gm.Name
		}
		mat := NewMaterial(name)
		mat.Colors[KeyDiffuse] = math.Vec3{X: 1, Y: 1, Z: 1}
		mat.Floats[KeyOpacity] = 1

		if gm == nil {
			imp.scene.Materials = append(imp.scene.Materials, mat)
			continue
		}

		mat.Colors[KeyEmissive] = math.Vec3{
			X: float32(gm.EmissiveFactor[0]),
			Y: float32(gm.EmissiveFactor[1]),
			Z: float32(gm.EmissiveFactor[2]),
		}

		if pbr := gm.PBRMetallicRoughness; pbr != nil {
			if f := pbr.BaseColorFactor; f != nil {
				mat.Colors[KeyDiffuse] = math.Vec3{X: float32(f[0]), Y: float32(f[1]), Z: float32(f[2])}
				mat.Floats[KeyOpacity] = float32(f[3])
			}
			roughness := 1.0
			if pbr.RoughnessFactor != nil {
				roughness = *pbr.RoughnessFactor
			}
			mat.Floats[KeyShininess] = shininessFromRoughness(roughness)
			if pbr.BaseColorTexture != nil {
				imp.setTexture(&mat, TextureDiffuse, pbr.BaseColorTexture.Index)
			}
			if pbr.MetallicRoughnessTexture != nil {
				imp.setTexture(&mat, TextureSpecular, pbr.MetallicRoughnessTexture.Index)
			}
		}
		if gm.NormalTexture != nil && gm.NormalTexture.Index != nil {
			imp.setTexture(&mat, TextureNormal, *gm.NormalTexture.Index)
		}
		if gm.OcclusionTexture != nil && gm.OcclusionTexture.Index != nil {
			imp.setTexture(&mat, TextureLightmap, *gm.OcclusionTexture.Index)
		}
		if gm.EmissiveTexture != nil {
			imp.setTexture(&mat, TextureEmissive, gm.EmissiveTexture.Index)
		}

		imp.scene.Materials = append(imp.scene.Materials, mat)
	}
	return nil
}

func (imp *gltfImporter) ensureDefaultMaterial() int {
	if imp.defaultMaterial >= 0 {
		return imp.defaultMaterial
	}
	mat := NewMaterial("default")
	mat.Colors[KeyDiffuse] = math.Vec3{X: 1, Y: 1, Z: 1}
	imp.defaultMaterial = len(imp.scene.Materials)
	imp.scene.Materials = append(imp.scene.Materials, mat)
	return imp.defaultMaterial
}

// setTexture records the image URI (or name) behind texture texIdx.
func (imp *gltfImporter) setTexture(mat *Material, slot TextureType, texIdx int) {
	doc := imp.doc
	if texIdx < 0 || texIdx >= len(doc.Textures) || doc.Textures[texIdx] == nil {
		logger.Named("scene").Warn("material references missing texture",
			zap.String("material", mat.Name), zap.Int("texture", texIdx))
		return
	}
	src := doc.Textures[texIdx].Source
	if src == nil || *src < 0 || *src >= len(doc.Images) || doc.Images[*src] == nil {
		return
	}
	img := doc.Images[*src]
	switch {
	case img.URI != "" && !strings.HasPrefix(img.URI, "data:"):
		mat.Textures[slot] = img.URI
	case img.Name != "":
		mat.Textures[slot] = img.Name
	default:
		mat.Textures[slot] = fmt.Sprintf("image_%d", *src)
	}
}

func (imp *gltfImporter) importAnimations() error {
	for i, ga := range imp.doc.Animations {
		if ga == nil {
			continue
		}
		anim, err := imp.importAnimation(ga)
		if err != nil {
			return fmt.Errorf("animation %d %q: %w", i, ga.Name, err)
		}
		if anim.Name == "" {
			anim.Name = fmt.Sprintf("animation_%d", i)
		}
		imp.scene.Animations = append(imp.scene.Animations, anim)
	}
	return nil
}

// channelKeys holds the decoded keys of one channel before tick conversion.
type channelKeys struct {
	track  int
	path   gltf.TRSProperty
	times  []float32
	values any
}

func (imp *gltfImporter) importAnimation(ga *gltf.Animation) (Animation, error) {
	anim := Animation{Name: ga.Name}
	trackOf := make(map[int]int) // node -> track

	var channels []channelKeys
	for c, ch := range ga.Channels {
		if ch == nil || ch.Target.Node == nil {
			continue
		}
		if ch.Target.Path != gltf.TRSTranslation && ch.Target.Path != gltf.TRSRotation && ch.Target.Path != gltf.TRSScale {
			continue
		}
		node := *ch.Target.Node
		if node < 0 || node >= len(imp.names) {
			return anim, fmt.Errorf("%w: channel %d node %d", ErrInvalidReference, c, node)
		}
		if ch.Sampler < 0 || ch.Sampler >= len(ga.Samplers) || ga.Samplers[ch.Sampler] == nil {
			return anim, fmt.Errorf("%w: channel %d sampler %d", ErrInvalidReference, c, ch.Sampler)
		}
		sampler := ga.Samplers[ch.Sampler]

		times, values, err := imp.readSampler(sampler)
		if err != nil {
			return anim, fmt.Errorf("channel %d: %w", c, err)
		}

		t, ok := trackOf[node]
		if !ok {
			t = len(anim.Tracks)
			trackOf[node] = t
			anim.Tracks = append(anim.Tracks, Track{NodeName: imp.names[node]})
		}
		channels = append(channels, channelKeys{track: t, path: ch.Target.Path, times: times, values: values})
	}

	tps := ticksPerSecond(channels)
	anim.TicksPerSecond = tps
	scale := tps
	if scale == 0 {
		scale = 1
	}

	var last float32
	for _, ck := range channels {
		tr := &anim.Tracks[ck.track]
		for k, t := range ck.times {
			last = max(last, t)
			tick := gomath.Round(float64(t)*scale*1e6) / 1e6
			switch ck.path {
			case gltf.TRSTranslation:
				v, ok := ck.values.([][3]float32)
				if !ok || k >= len(v) {
					return anim, fmt.Errorf("%w: translation output", ErrUnsupportedAccessor)
				}
				tr.PositionKeys = append(tr.PositionKeys, VectorKey{Time: tick, Value: math.V3(v[k])})
			case gltf.TRSScale:
				v, ok := ck.values.([][3]float32)
				if !ok || k >= len(v) {
					return anim, fmt.Errorf("%w: scale output", ErrUnsupportedAccessor)
				}
				tr.ScaleKeys = append(tr.ScaleKeys, VectorKey{Time: tick, Value: math.V3(v[k])})
			case gltf.TRSRotation:
				v, ok := ck.values.([][4]float32)
				if !ok || k >= len(v) {
					return anim, fmt.Errorf("%w: rotation output", ErrUnsupportedAccessor)
				}
				q := math.QuatFromArray(v[k])
				tr.RotationKeys = append(tr.RotationKeys, QuatKey{Time: tick, Value: q})
			}
		}
	}
	if tps > 0 {
		anim.Duration = float64(last) * tps
	}
	return anim, nil
}

// readSampler decodes input times and output values. Cubic-spline outputs
// keep only the value of each (in-tangent, value, out-tangent) triple.
func (imp *gltfImporter) readSampler(s *gltf.AnimationSampler) ([]float32, any, error) {
	acc, err := imp.accessor(s.Input)
	if err != nil {
		return nil, nil, err
	}
	in, err := modeler.ReadAccessor(imp.doc, acc, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("reading sampler input: %w", err)
	}
	times, ok := in.([]float32)
	if !ok {
		return nil, nil, fmt.Errorf("%w: sampler input is %T", ErrUnsupportedAccessor, in)
	}

	if acc, err = imp.accessor(s.Output); err != nil {
		return nil, nil, err
	}
	out, err := modeler.ReadAccessor(imp.doc, acc, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("reading sampler output: %w", err)
	}

	if s.Interpolation == gltf.InterpolationCubicSpline {
		switch v := out.(type) {
		case [][3]float32:
			out = splineValues(v)
		case [][4]float32:
			out = splineValues(v)
		}
	}
	return times, out, nil
}

func splineValues[T any](v []T) []T {
	out := make([]T, 0, len(v)/3)
	for i := 1; i < len(v); i += 3 {
		out = append(out, v[i])
	}
	return out
}

// ticksPerSecond derives a tick rate from the smallest positive spacing
// between consecutive keys. It returns 0 when no spacing exists.
func ticksPerSecond(channels []channelKeys) float64 {
	step := float32(gomath.MaxFloat32)
	for _, ck := range channels {
		for i := 1; i < len(ck.times); i++ {
			if d := ck.times[i] - ck.times[i-1]; d > 1e-6 && d < step {
				step = d
			}
		}
	}
	if step == gomath.MaxFloat32 {
		return 0
	}
	return max(1, gomath.Round(1/float64(step)))
}

func shininessFromRoughness(r float64) float32 {
	if r <= 0 {
		return maxShininess
	}
	s := 2/(r*r*r*r) - 2
	return float32(min(s, maxShininess))
}

func (imp *gltfImporter) accessor(idx int) (*gltf.Accessor, error) {
	if idx < 0 || idx >= len(imp.doc.Accessors) || imp.doc.Accessors[idx] == nil {
		return nil, fmt.Errorf("%w: accessor %d", ErrInvalidReference, idx)
	}
	return imp.doc.Accessors[idx], nil
}

func toVec3s(src [][3]float32) []math.Vec3 {
	out := make([]math.Vec3, len(src))
	for i, v := range src {
		out[i] = math.V3(v)
	}
	return out
}

// tangentFrame splits glTF tangents (xyz + handedness w) into tangent and
// bitangent streams.
func tangentFrame(normals []math.Vec3, tangents [][4]float32) ([]math.Vec3, []math.Vec3) {
	n := min(len(normals), len(tangents))
	t := make([]math.Vec3, n)
	b := make([]math.Vec3, n)
	for i := 0; i < n; i++ {
		t[i] = math.Vec3{X: tangents[i][0], Y: tangents[i][1], Z: tangents[i][2]}
		w := tangents[i][3]
		if w == 0 {
			w = 1
		}
		b[i] = normals[i].Cross(t[i]).Scale(w)
	}
	return t, b
}

// chunkFaces groups indices into faces of size n. A trailing partial group
// is kept as a short face.
func chunkFaces(indices []uint32, n int) [][]uint32 {
	faces := make([][]uint32, 0, (len(indices)+n-1)/n)
	for i := 0; i < len(indices); i += n {
		end := min(i+n, len(indices))
		faces = append(faces, indices[i:end:end])
	}
	return faces
}
