// Package loader produces models from files. New returns a loader for one
// source kind; there is no global registry.
package loader

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/modelpack/internal/convert"
	"github.com/Faultbox/modelpack/internal/logger"
	"github.com/Faultbox/modelpack/internal/model"
	"github.com/Faultbox/modelpack/pkg/formats"
)

// Kind selects the source a loader reads.
type Kind int

const (
	// KindContainer reads H3D containers.
	KindContainer Kind = iota
	// KindScene imports and converts glTF scenes.
	KindScene
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindScene:
		return "scene"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// KindForPath picks a kind from the file extension.
func KindForPath(path string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".h3d":
		return KindContainer, nil
	case ".gltf", ".glb":
		return KindScene, nil
	default:
		return 0, fmt.Errorf("no loader for %q", filepath.Ext(path))
	}
}

// Capability flags.
type Capability uint8

const (
	CapLoad Capability = 1 << iota
	CapSave
	CapAnimation
)

// Has reports whether every flag in c is set.
func (c Capability) Has(flag Capability) bool {
	return c&flag == flag
}

// Loader reads a model from a file.
type Loader interface {
	Load(path string) (*model.Model, error)
	Capabilities() Capability
}

// Saver writes a model to a file.
type Saver interface {
	Save(path string, m *model.Model) error
}

// New returns the loader for kind. opts only affects KindScene.
func New(kind Kind, opts convert.Options) (Loader, error) {
	switch kind {
	case KindContainer:
		return &ContainerLoader{}, nil
	case KindScene:
		return &SceneLoader{opts: opts}, nil
	default:
		return nil, fmt.Errorf("unknown loader kind %v", kind)
	}
}

// ContainerLoader reads and writes H3D files. Loaded models are static.
type ContainerLoader struct{}

// Load implements Loader.
func (l *ContainerLoader) Load(path string) (*model.Model, error) {
	h, err := formats.ParseH3DFile(path)
	if err != nil {
		return nil, err
	}
	logger.Named("loader").Info("container loaded",
		zap.String("path", path),
		zap.Uint32("meshes", h.Header.MeshCount),
		zap.Uint32("vertexBytes", h.Header.VertexDataByteSize))
	return model.New(*h, nil), nil
}

// Save implements Saver.
func (l *ContainerLoader) Save(path string, m *model.Model) error {
	h, err := m.Container()
	if err != nil {
		return err
	}
	if err := formats.SaveH3DFile(path, h); err != nil {
		return err
	}
	logger.Named("loader").Info("container saved",
		zap.String("path", path),
		zap.Int("vertexBytes", len(h.VertexData)),
		zap.Int("indexBytes", len(h.IndexData)))
	return nil
}

// Capabilities implements Loader.
func (l *ContainerLoader) Capabilities() Capability {
	return CapLoad | CapSave
}

// SceneLoader imports a glTF scene and converts it.
type SceneLoader struct {
	opts convert.Options
}

// Load implements Loader.
func (l *SceneLoader) Load(path string) (*model.Model, error) {
	return convert.ConvertFile(path, l.opts)
}

// Capabilities implements Loader.
func (l *SceneLoader) Capabilities() Capability {
	return CapLoad | CapAnimation
}
