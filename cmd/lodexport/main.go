// lodexport splits OBJ meshes and XYZRGB point clouds into LOD chunks and
// uploads them to a staging store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/cheggaaa/pb.v1"

	"github.com/Faultbox/chimera-importer/internal/config"
	"github.com/Faultbox/chimera-importer/internal/decimate"
	"github.com/Faultbox/chimera-importer/internal/export"
	"github.com/Faultbox/chimera-importer/internal/logger"
	"github.com/Faultbox/chimera-importer/internal/store"
	"github.com/Faultbox/chimera-importer/internal/store/dirstore"
	"github.com/Faultbox/chimera-importer/internal/store/memstore"
	"github.com/Faultbox/chimera-importer/pkg/geom"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	if err := run(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string, out io.Writer) error {
	switch command {
	case "export":
		return cmdExport(args, out)
	case "inspect":
		return cmdInspect(args, out)
	case "config":
		return cmdConfig(args, out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `lodexport - LOD chunk exporter for meshes and point clouds

Usage:
  lodexport <command> [options]

Commands:
  export [options] <file>   Export a mesh (.obj) or point cloud (.xyz) to the store
  inspect <file.obj>        Parse, reindex and split a mesh without uploading
  config [-o file]          Write the effective configuration (default: user config dir)

Export options:
  -layers l0/l1/l2/l3       Layer path of the target (required)
  -name name                Object name (defaults to the file base name)
  -version n                Object version
  -type mesh|pointcloud     Object type (inferred from the extension by default)
  -new                      Fail if the object already exists
  -lods n                   Detail levels to produce (1-8)
  -translate x,y,z          Source coordinate offset
  -local                    Keep positions as they are, only record the offset
  -srs code                 Spatial reference system of the source
  -quiet                    No progress bar

Examples:
  lodexport export -layers city/north/blocks/b12 -version 3 house.obj
  lodexport export -layers scans/2026/site/raw -translate 1000,0,2000 scan.xyz
  lodexport inspect house.obj`)
}

// exportFlags are the export options on top of config.Flags.
type exportFlags struct {
	layers    string
	name      string
	version   int
	kind      string
	isNew     bool
	lods      int
	translate string
	local     bool
	srs       string
	quiet     bool
}

func bindExportFlags(fs *flag.FlagSet) *exportFlags {
	f := &exportFlags{}
	fs.StringVar(&f.layers, "layers", "", "Layer path l0/l1/l2/l3")
	fs.StringVar(&f.name, "name", "", "Object name")
	fs.IntVar(&f.version, "version", 0, "Object version")
	fs.StringVar(&f.kind, "type", "", "Object type (mesh, pointcloud)")
	fs.BoolVar(&f.isNew, "new", false, "Object must not exist yet")
	fs.IntVar(&f.lods, "lods", 0, "Detail levels to produce")
	fs.StringVar(&f.translate, "translate", "", "Source offset x,y,z")
	fs.BoolVar(&f.local, "local", false, "Keep local coordinates")
	fs.StringVar(&f.srs, "srs", "", "Spatial reference system")
	fs.BoolVar(&f.quiet, "quiet", false, "Disable the progress bar")
	return f
}

// target builds the store target for source.
func (f *exportFlags) target(source string) (store.Target, error) {
	t := store.Target{Name: f.name, Version: f.version, IsNew: f.isNew}
	if t.Name == "" {
		t.Name = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}

	layers := strings.Split(strings.Trim(f.layers, "/"), "/")
	if len(layers) != len(t.Layers) {
		return t, fmt.Errorf("-layers needs %d slash-separated names, got %q", len(t.Layers), f.layers)
	}
	copy(t.Layers[:], layers)

	kind := f.kind
	if kind == "" {
		kind = "pointcloud"
		if strings.EqualFold(filepath.Ext(source), ".obj") {
			kind = "mesh"
		}
	}
	typ, err := store.ParseObjectType(kind)
	if err != nil {
		return t, err
	}
	t.Type = typ

	return t, t.Validate()
}

// parseVector parses "x,y,z".
func parseVector(s string) (geom.Vector3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return geom.Vector3{}, fmt.Errorf("expected x,y,z, got %q", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geom.Vector3{}, fmt.Errorf("bad component %q: %w", p, err)
		}
		v[i] = f
	}
	return geom.Vector3{X: v[0], Y: v[1], Z: v[2]}, nil
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Kind {
	case config.StoreMemory:
		return memstore.New(), nil
	case config.StoreDir:
		return dirstore.New(cfg.Root, cfg.User), nil
	}
	return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
}

func cmdExport(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	cfgFlags := config.Bind(fs)
	ef := bindExportFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: lodexport export [options] <file>")
	}
	source := fs.Arg(0)

	cfg, err := config.Load(cfgFlags)
	if err != nil {
		return err
	}
	if ef.lods != 0 {
		cfg.Export.Lods = ef.lods
	}
	if ef.local {
		cfg.Export.LocalCoordinates = true
	}
	if ef.srs != "" {
		cfg.Export.SRS = ef.srs
	}
	translation := geom.Vector3{X: cfg.Export.Translation[0], Y: cfg.Export.Translation[1], Z: cfg.Export.Translation[2]}
	if ef.translate != "" {
		if translation, err = parseVector(ef.translate); err != nil {
			return fmt.Errorf("-translate: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()
	logger.Debug("configuration loaded",
		zap.String("store", cfg.Store.Kind),
		zap.String("store_root", cfg.Store.Root),
		zap.String("temp_dir", cfg.Export.TempDir),
		zap.String("tool", cfg.Decimation.Tool),
		zap.Bool("local_coordinates", cfg.Export.LocalCoordinates))

	target, err := ef.target(source)
	if err != nil {
		return err
	}
	st, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Export.TempDir, 0755); err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}

	exp := &export.Exporter{
		Store: st,
		Options: export.Options{
			TempDir:           cfg.Export.TempDir,
			Lods:              cfg.Export.Lods,
			PartSize:          cfg.Export.MaxPartBytes,
			TextureResolution: cfg.Export.TextureResolution,
			Translation:       translation,
			LocalCoordinates:  cfg.Export.LocalCoordinates,
			SRS:               cfg.Export.SRS,
		},
		Log: logger.Named("export"),
	}
	if cfg.Export.Lods > 1 {
		exp.Decimator = &decimate.Runner{
			Tool:          cfg.Decimation.Tool,
			ScriptDir:     cfg.Decimation.ScriptDir,
			ScriptPattern: cfg.Decimation.ScriptPattern,
			Attributes:    cfg.Decimation.Attributes,
			TempDir:       cfg.Export.TempDir,
			Timeout:       cfg.Decimation.Timeout,
			Log:           logger.Named("decimate"),
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := export.NewSession(target, source)
	logger.Info("starting export",
		zap.String("source", source),
		zap.Stringer("target", target),
		zap.Stringer("type", target.Type),
		zap.Int("lods", cfg.Export.Lods))

	start := time.Now()
	var runErr error
	if ef.quiet {
		runErr = exp.Run(ctx, sess)
	} else {
		runErr = runWithProgress(ctx, exp, sess, out)
	}

	if runErr != nil {
		if ctx.Err() != nil {
			logger.Warn("export interrupted", zap.Float64("progress", sess.Progress()), zap.Int("lod", sess.Lod()))
		}
		for _, e := range sess.Errors() {
			logger.Error("export error", zap.Error(e))
		}
		return runErr
	}

	fmt.Fprintf(out, "Exported %s to %s in %s\n", source, target, time.Since(start).Round(time.Millisecond))
	return nil
}

// runWithProgress runs the export while rendering the session progress.
func runWithProgress(ctx context.Context, exp *export.Exporter, sess *export.Session, out io.Writer) error {
	bar := pb.New(100).Prefix(fmt.Sprintf("  %-24s", sess.Target.Name)).SetMaxWidth(100)
	bar.Output = out
	bar.ShowTimeLeft = false
	bar.ShowSpeed = false
	bar.ShowCounters = false
	bar.Start()

	done := make(chan error, 1)
	go func() { done <- exp.Run(ctx, sess) }()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			bar.Set(int(sess.Progress()))
			bar.Finish()
			return err
		case <-ticker.C:
			bar.Set(int(sess.Progress()))
			bar.Postfix(fmt.Sprintf(" LOD %d", sess.Lod()))
		}
	}
}

func cmdConfig(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	cfgFlags := config.Bind(fs)
	output := fs.String("o", "", "Write to this file instead of the user config dir")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(cfgFlags)
	if err != nil {
		return err
	}

	path := *output
	if path == "" {
		path = filepath.Join(config.ConfigDir(), "config.yaml")
		err = cfg.Save()
	} else {
		err = cfg.SaveTo(path)
	}
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Fprintf(out, "Wrote %s\n", path)
	return nil
}

func cmdInspect(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "Log reindexing warnings")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: lodexport inspect <file.obj>")
	}

	log := zap.NewNop()
	if *verbose {
		if err := logger.Init("debug", ""); err != nil {
			return err
		}
		defer logger.Sync()
		log = logger.Named("inspect")
	}

	r, err := export.Inspect(fs.Arg(0), log)
	if err != nil {
		return err
	}
	printReport(out, r)
	return nil
}

func printReport(w io.Writer, r *export.Report) {
	fmt.Fprintf(w, "Mesh:      %s\n", r.Source)
	fmt.Fprintf(w, "Positions: %d\n", r.Positions)
	fmt.Fprintf(w, "Faces:     %d\n", r.Faces)
	fmt.Fprintf(w, "Vertices:  %d (%d seam mismatches)\n", r.Stats.UnifiedVertices, r.Stats.Mismatches)
	fmt.Fprintf(w, "Sphere:    center (%.3f, %.3f, %.3f) radius %.3f\n",
		r.Sphere.Center.X, r.Sphere.Center.Y, r.Sphere.Center.Z, r.Sphere.Radius)
	fmt.Fprintf(w, "Chunks:    %d\n", r.Stats.Chunks)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Materials:")
	for _, m := range r.Stats.Materials {
		fmt.Fprintf(w, "  %-24s %3d chunks %8d vertices %8d triangles\n", m.Name, m.Chunks, m.Vertices, m.Triangles)
	}

	if len(r.Textures) == 0 {
		return
	}
	names := make([]string, 0, len(r.Textures))
	for name := range r.Textures {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Textures:")
	for _, name := range names {
		fmt.Fprintf(w, "  %-24s %s\n", name, r.Textures[name])
	}
}
