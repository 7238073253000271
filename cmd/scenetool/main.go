// scenetool is a CLI utility for semantic scene PLY files and dry-run
// acoustic sessions.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/acoustic-scene/internal/config"
	"github.com/Faultbox/acoustic-scene/internal/logger"
	"github.com/Faultbox/acoustic-scene/internal/session"
	"github.com/Faultbox/acoustic-scene/internal/solver"
	"github.com/Faultbox/acoustic-scene/pkg/formats"
	"github.com/Faultbox/acoustic-scene/pkg/math"
	"github.com/Faultbox/acoustic-scene/pkg/scene"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "ids":
		cmdIDs(args)
	case "label":
		cmdLabel(args)
	case "export-ids":
		cmdExportIDs(args)
	case "simulate", "sim":
		cmdSimulate(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`scenetool - semantic scene mesh utility

Usage:
  scenetool <command> [options]

Commands:
  info <file.ply>                           Show mesh and object id statistics
  ids <ids.bin>                             Show an object id file
  label <in.ply> <vertex_ids.bin> <out.ply> Resolve per-vertex ids to face ids
  export-ids <file.ply> <ids.bin>           Write the face object ids of a mesh
  simulate [options] <file.ply>             Run a session against the synthetic solver

Examples:
  scenetool info scene.ply
  scenetool label scene.ply vertex_ids.bin labelled.ply
  scenetool simulate -listener 0,1.5,0 -source 2,1.5,0 -write-ir scene.ply
  scenetool simulate -materials materials.json scene.ply`)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: scenetool info <file.ply>")
		os.Exit(1)
	}

	p, err := formats.ParsePLYFile(args[0])
	if err != nil {
		fail("%v", err)
	}

	fmt.Printf("File:     %s\n", args[0])
	fmt.Printf("Vertices: %d\n", p.VertexCount())
	fmt.Printf("Faces:    %d\n", p.FaceCount())
	if p.VertexCount() > 0 {
		lo, hi := bounds(p.Positions)
		fmt.Printf("Bounds:   %s - %s\n", lo, hi)
	}
	fmt.Println()
	fmt.Println("Faces by object id:")
	printHistogram(p.ObjectIDCounts())
}

func cmdIDs(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: scenetool ids <ids.bin>")
		os.Exit(1)
	}

	ids, err := formats.ReadObjectIDsFile(args[0])
	if err != nil {
		fail("%v", err)
	}

	counts := make(map[uint16]int)
	for _, id := range ids {
		counts[id]++
	}
	fmt.Printf("File: %s\n", args[0])
	fmt.Printf("IDs:  %d\n", len(ids))
	fmt.Println()
	printHistogram(counts)
}

func cmdLabel(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: scenetool label <in.ply> <vertex_ids.bin> <out.ply>")
		os.Exit(1)
	}

	p, err := formats.ParsePLYFile(args[0])
	if err != nil {
		fail("%v", err)
	}
	ids, err := formats.ReadObjectIDsFile(args[1])
	if err != nil {
		fail("%v", err)
	}
	if len(ids) != p.VertexCount() {
		fail("%d vertex ids for %d vertices", len(ids), p.VertexCount())
	}

	mesh, err := p.ToMesh()
	if err != nil {
		fail("%v", err)
	}
	// Positions are already in interchange coordinates, so the file is
	// rewritten as-is with new ids rather than re-encoded from the mesh.
	p.ObjectIDs = scene.FaceCategoryIDs(mesh, scene.CategoryMapFromVertexIDs(ids))
	if err := formats.SavePLY(args[2], p); err != nil {
		fail("%v", err)
	}

	fmt.Printf("Labelled: %s (%d faces, %d object ids)\n", args[2], p.FaceCount(), len(p.ObjectIDCounts()))
}

func cmdExportIDs(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: scenetool export-ids <file.ply> <ids.bin>")
		os.Exit(1)
	}

	p, err := formats.ParsePLYFile(args[0])
	if err != nil {
		fail("%v", err)
	}

	f, err := os.Create(args[1])
	if err != nil {
		fail("%v", err)
	}
	if err := formats.WriteObjectIDs(f, p.ObjectIDs); err != nil {
		f.Close()
		fail("writing %s: %v", args[1], err)
	}
	if err := f.Close(); err != nil {
		fail("%v", err)
	}

	fmt.Printf("Exported: %s (%d ids)\n", args[1], len(p.ObjectIDs))
}

func cmdSimulate(args []string) {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	flags := config.BindFlags(fs)
	sourceArg := fs.String("source", "1,0,0", "Source position x,y,z")
	listenerArg := fs.String("listener", "0,0,0", "Listener position x,y,z")
	idsPath := fs.String("ids", "", "Per-vertex object id file")
	samples := fs.Int("samples", 0, "Impulse response length (0 = from ir_time)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: scenetool simulate [options] <file.ply>")
		os.Exit(1)
	}

	source, err := parseVec3(*sourceArg)
	if err != nil {
		fail("-source: %v", err)
	}
	listener, err := parseVec3(*listenerArg)
	if err != nil {
		fail("-listener: %v", err)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fail("config: %v", err)
	}
	if err := logger.InitWithFileConfig(cfg.Logging.Level, cfg.LogFileConfig(), os.Stderr); err != nil {
		fail("logger: %v", err)
	}
	defer logger.Sync()

	p, err := formats.ParsePLYFile(fs.Arg(0))
	if err != nil {
		fail("%v", err)
	}
	mesh, err := p.ToMesh()
	if err != nil {
		fail("%v", err)
	}

	factory := &solver.FakeFactory{Samples: *samples}
	sess := session.New(cfg.SessionOptions(), factory.New, logger.Named("session"))
	defer sess.Close()

	if *idsPath != "" {
		ids, err := formats.ReadObjectIDsFile(*idsPath)
		if err != nil {
			fail("%v", err)
		}
		if len(ids) != mesh.VertexCount() {
			logger.Log.Warn("vertex id count differs from mesh",
				zap.Int("ids", len(ids)),
				zap.Int("vertices", mesh.VertexCount()))
		}
		sess.SetCategoryMap(scene.CategoryMapFromVertexIDs(ids))
	}

	if err := runSession(sess, mesh, listener, source, cfg.Acoustics.MaterialsJSON); err != nil {
		logger.Log.Error("simulation failed", zap.Error(err))
		sess.Close()
		logger.Sync()
		os.Exit(1)
	}

	ir, err := sess.Observation()
	if err != nil {
		fail("%v", err)
	}

	fmt.Printf("Session:  %s\n", sess.ID())
	fmt.Printf("Folder:   %s\n", sess.SimulationFolder())
	fmt.Printf("Channels: %d\n", ir.Channels())
	fmt.Printf("Samples:  %d\n", ir.Samples())
	if eff, err := sess.RayEfficiency(); err == nil {
		fmt.Printf("Rays:     %.1f%% efficient\n", eff*100)
	}
	fmt.Println()
	for ch, data := range ir {
		idx, peak := peakOf(data)
		fmt.Printf("  ch%-3d peak %.6g at sample %d\n", ch, peak, idx)
	}
}

func runSession(sess *session.Session, mesh *scene.Mesh, listener, source math.Vec3, materials string) error {
	if err := sess.Configure(); err != nil {
		return err
	}
	if materials != "" {
		if err := sess.SetAudioMaterialsJSON(materials); err != nil {
			return err
		}
	}
	if err := sess.SetListenerPose(listener, math.QuatIdentity()); err != nil {
		return err
	}
	if err := sess.SetSourcePose(source); err != nil {
		return err
	}
	return sess.Run(mesh)
}

func parseVec3(s string) (math.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return math.Vec3{}, fmt.Errorf("expected x,y,z, got %q", s)
	}
	var v [3]float32
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return math.Vec3{}, err
		}
		v[i] = float32(f)
	}
	return math.V3(v[0], v[1], v[2]), nil
}

func bounds(points []math.Vec3) (lo, hi math.Vec3) {
	lo, hi = points[0], points[0]
	for _, p := range points[1:] {
		lo = math.V3(min(lo.X, p.X), min(lo.Y, p.Y), min(lo.Z, p.Z))
		hi = math.V3(max(hi.X, p.X), max(hi.Y, p.Y), max(hi.Z, p.Z))
	}
	return lo, hi
}

func peakOf(data []float32) (int, float32) {
	idx, peak := 0, float32(0)
	for i, v := range data {
		if v < 0 {
			v = -v
		}
		if v > peak {
			idx, peak = i, v
		}
	}
	return idx, peak
}

func printHistogram(counts map[uint16]int) {
	type idStat struct {
		id    uint16
		count int
	}
	var stats []idStat
	for id, count := range counts {
		stats = append(stats, idStat{id, count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].count != stats[j].count {
			return stats[i].count > stats[j].count
		}
		return stats[i].id < stats[j].id
	})

	for _, s := range stats {
		fmt.Printf("  %-8d %d\n", s.id, s.count)
	}
}
