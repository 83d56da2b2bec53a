// h3dtool converts glTF scenes into H3D containers and inspects the result.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/modelpack/internal/assets"
	"github.com/Faultbox/modelpack/internal/config"
	"github.com/Faultbox/modelpack/internal/convert"
	"github.com/Faultbox/modelpack/internal/loader"
	"github.com/Faultbox/modelpack/internal/logger"
	"github.com/Faultbox/modelpack/internal/model"
	"github.com/Faultbox/modelpack/internal/scene"
	"github.com/Faultbox/modelpack/pkg/formats"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File(), true); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	args := config.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command, args := args[0], args[1:]
	switch command {
	case "convert", "c":
		err = cmdConvert(cfg, args)
	case "info":
		err = cmdInfo(cfg, args)
	case "skeleton", "skel":
		err = cmdSkeleton(args)
	case "validate":
		err = cmdValidate(args)
	case "config":
		err = cmdConfig(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		logger.Error(command+" failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`h3dtool - glTF to H3D model converter

Usage:
  h3dtool [flags] <command> [arguments]

Commands:
  convert <in.gltf|in.glb> [out.h3d]  Convert a scene into a container
  info [-textures dir] <file>         Show meshes, materials and animation
  skeleton <in.gltf|in.glb>           Print the joint hierarchy
  validate <file.h3d>                 Check a container's tables and blobs
  config [-save] [-o file]            Show or write the effective config

Flags:
  -config <file>   Config file (default ./h3dtool.yaml)
  -debug           Enable debug logging
  -policy <name>   Bone influence policy: truncate or reject
  -out <dir>       Output directory for converted containers
  -prefix <str>    Texture key prefix

Examples:
  h3dtool convert hero.glb
  h3dtool -policy reject -out build convert props/crate.gltf
  h3dtool info build/crate.h3d`)
}

func cmdConvert(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: h3dtool convert <in.gltf|in.glb> [out.h3d]")
		os.Exit(1)
	}
	in := args[0]

	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	src, err := loader.New(loader.KindScene, opts)
	if err != nil {
		return err
	}
	m, err := src.Load(in)
	if err != nil {
		return err
	}

	out := outputPath(in, cfg.Output.Dir)
	if len(args) > 1 {
		out = args[1]
	}

	dst, err := loader.New(loader.KindContainer, opts)
	if err != nil {
		return err
	}
	if err := dst.(loader.Saver).Save(out, m); err != nil {
		return err
	}

	fmt.Printf("%s -> %s\n", in, out)
	fmt.Printf("  %s\n", m)
	if m.IsAnimated() && m.Animation.Clip != nil {
		c := m.Animation.Clip
		fmt.Printf("  clip %q: %d frames at %.2f fps (%.3fs)\n", c.Name, c.FrameCount, c.FPS, c.Duration)
	}
	return nil
}

// outputPath swaps the extension for .h3d and moves the file into dir when
// one is configured.
func outputPath(in, dir string) string {
	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in)) + ".h3d"
	if dir == "" {
		dir = filepath.Dir(in)
	}
	return filepath.Join(dir, base)
}

func cmdInfo(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	var roots stringList
	fs.Var(&roots, "textures", "Texture root directory (repeatable)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: h3dtool info [-textures dir] <file.h3d|file.gltf>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	kind, err := loader.KindForPath(path)
	if err != nil {
		return err
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	l, err := loader.New(kind, opts)
	if err != nil {
		return err
	}
	m, err := l.Load(path)
	if err != nil {
		return err
	}

	printModel(path, m)
	if len(roots) > 0 {
		return printTextures(m, roots)
	}
	return nil
}

// stringList collects a repeatable string flag.
type stringList []string

func (s *stringList) String() string     { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

// printTextures binds the model's materials against the texture roots and
// shows which file each slot ended up with.
func printTextures(m *model.Model, roots []string) error {
	textures := assets.NewManager()
	defer textures.Close()
	for _, r := range roots {
		if err := textures.AddRoot(r); err != nil {
			return err
		}
	}
	textures.RegisterDefaults("(builtin)")
	if err := m.BindTextures(textures); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Texture bindings:")
	for i, mat := range m.Materials {
		group, _ := m.SRUs(i)
		fmt.Printf("  [%d] %s\n", i, mat.Name)
		for slot, h := range group {
			file, _ := textures.Path(h)
			fmt.Printf("        %-10s #%d %s\n", slotNames[slot], h, file)
		}
	}
	hits, misses := textures.Stats()
	fmt.Printf("Lookups:   %d cached, %d searched\n", hits, misses)
	return nil
}

func printModel(path string, m *model.Model) {
	bb := m.BoundingBox()
	fmt.Printf("File:      %s\n", path)
	fmt.Printf("Model:     %s\n", m)
	fmt.Printf("Bounds:    (%.3f, %.3f, %.3f) - (%.3f, %.3f, %.3f)\n",
		bb.Min.X, bb.Min.Y, bb.Min.Z, bb.Max.X, bb.Max.Y, bb.Max.Z)
	fmt.Printf("Stride:    %d (depth %d)\n", m.VertexStride(), m.VertexStrideDepth())

	if len(m.Meshes) > 0 {
		fmt.Println()
		fmt.Println("Meshes:")
		for i, mesh := range m.Meshes {
			fmt.Printf("  [%d] %5d verts %6d indices  material %d  attribs %s\n",
				i, mesh.VertexCount, mesh.IndexCount, mesh.MaterialIndex, attribNames(mesh))
		}
	}

	if len(m.Materials) > 0 {
		fmt.Println()
		fmt.Println("Materials:")
		for i, mat := range m.Materials {
			fmt.Printf("  [%d] %s  opacity %.2f  shininess %.1f\n", i, mat.Name, mat.Opacity, mat.Shininess)
			for slot, tex := range mat.Textures {
				if tex != "" {
					fmt.Printf("        %-10s %s\n", slotNames[slot], tex)
				}
			}
		}
	}

	if m.IsAnimated() {
		fmt.Println()
		fmt.Printf("Skeleton:  %d joints\n", len(m.Animation.Skeleton.Joints))
		if c := m.Animation.Clip; c != nil {
			fmt.Printf("Clip:      %q %d frames, %.2f fps, %.3fs, looping=%v\n",
				c.Name, c.FrameCount, c.FPS, c.Duration, c.Looping)
		}
	}
}

var slotNames = [formats.TexCount]string{"diffuse", "specular", "emissive", "normal", "lightmap", "reflection"}

var attribLabels = []struct {
	slot int
	name string
}{
	{formats.AttribPosition, "pos"},
	{formats.AttribTexcoord0, "uv"},
	{formats.AttribNormal, "nrm"},
	{formats.AttribTangent, "tan"},
	{formats.AttribBitangent, "btn"},
	{formats.AttribJointIndices, "joints"},
	{formats.AttribJointWeights, "weights"},
}

func attribNames(mesh formats.Mesh) string {
	var names []string
	for _, a := range attribLabels {
		if mesh.AttribsEnabled.Has(1 << a.slot) {
			names = append(names, a.name)
		}
	}
	return strings.Join(names, ",")
}

func cmdSkeleton(args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: h3dtool skeleton <in.gltf|in.glb>")
		os.Exit(1)
	}

	s, err := scene.ImportGLTFFile(args[0])
	if err != nil {
		return err
	}
	skel, _, err := convert.BuildSkeleton(s)
	if err != nil {
		return err
	}

	fmt.Printf("%d joints\n", len(skel.Joints))
	depth := make([]int, len(skel.Joints))
	for i, j := range skel.Joints {
		if !j.IsRoot() {
			depth[i] = depth[j.Parent] + 1
		}
		fmt.Printf("%3d %s%s\n", i, strings.Repeat("  ", depth[i]), j.Name)
	}
	return nil
}

func cmdValidate(args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: h3dtool validate <file.h3d> [file.h3d...]")
		os.Exit(1)
	}

	var failed int
	for _, path := range args {
		h, err := formats.ParseH3DFile(path)
		if err != nil {
			fmt.Printf("FAIL %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("ok   %s (%d meshes, %d materials)\n", path, h.Header.MeshCount, h.Header.MaterialCount)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d containers invalid", failed, len(args))
	}
	return nil
}

func cmdConfig(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	save := fs.Bool("save", false, "Write the config to the user config directory")
	out := fs.String("o", "", "Write the config to this file")
	fs.Parse(args)

	switch {
	case *out != "":
		if err := cfg.SaveTo(*out); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", *out)
	case *save:
		path, err := cfg.Save()
		if err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
	default:
		data, err := cfg.YAML()
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
	}
	return nil
}
