package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/mldeformer/internal/assets"
	"github.com/Faultbox/mldeformer/internal/assets/synth"
	"github.com/Faultbox/mldeformer/internal/config"
	"github.com/Faultbox/mldeformer/internal/framecache"
	"github.com/Faultbox/mldeformer/internal/logger"
	"github.com/Faultbox/mldeformer/pkg/math"
)

// manifestArgs splits a manifest path from the command's other positional
// arguments, falling back to the configured manifest.
func manifestArgs(cfg *config.Config, args []string, rest int, usage string) (string, []string) {
	switch {
	case len(args) == rest+1:
		return args[0], args[1:]
	case len(args) == rest && cfg.Asset.Manifest != "":
		return cfg.Asset.Manifest, args
	}
	fmt.Fprintln(os.Stderr, "Usage: mldsample "+usage)
	os.Exit(1)
	return "", nil
}

// openCache loads the asset and builds a cache configured by cfg.
func openCache(cfg *config.Config, mgr *assets.Manager, manifest string) (*framecache.Cache, error) {
	a, err := mgr.Load(manifest)
	if err != nil {
		return nil, err
	}
	if cfg.Cache.DeltaMode != config.DeltaModeAsset {
		mode, err := assets.ParseDeltaMode(cfg.Cache.DeltaMode)
		if err != nil {
			return nil, err
		}
		override := *a
		override.DeltaMode = mode
		a = &override
	}
	eviction, err := framecache.ParseEvictionPolicy(cfg.Cache.Eviction)
	if err != nil {
		return nil, err
	}

	c := framecache.New(framecache.Settings{
		Asset:             a,
		MemoryBudgetBytes: cfg.Cache.MemoryBudgetBytes(),
		Eviction:          eviction,
		DebugVectors:      cfg.Sampler.DebugVectors,
		Logger:            logger.Named("framecache"),
	})
	if !c.IsValid() {
		return nil, fmt.Errorf("asset %s is incomplete: %v", manifest, a.Validate())
	}
	return c, nil
}

func mustOpenCache(cfg *config.Config, manifest string) *framecache.Cache {
	c, err := openCache(cfg, assets.NewManager(), manifest)
	if err != nil {
		fatalf("%v", err)
	}
	return c
}

func cmdInfo(cfg *config.Config, args []string) {
	manifest, _ := manifestArgs(cfg, args, 0, "info [manifest]")
	c := mustOpenCache(cfg, manifest)
	defer c.Close()

	s := c.Sampler()
	a := s.Asset()
	fmt.Printf("Asset:       %s\n", a.Name)
	fmt.Printf("Delta mode:  %s\n", s.DeltaMode())
	fmt.Printf("Cutoff:      %g\n", a.DeltaCutoffLength)
	fmt.Printf("Frames:      %d (%.2f fps, %.3fs)\n", c.NumFrames(), a.GeometryCache.FrameRate, a.GeometryCache.Duration())
	fmt.Printf("Vertices:    %d\n", c.NumVertices())
	fmt.Printf("Bones:       %d\n", c.NumBones())
	fmt.Printf("Curves:      %d\n", c.NumCurves())
	fmt.Println()

	fmt.Println("Mesh mappings:")
	for _, m := range s.MeshMappings() {
		fmt.Printf("  %-20s -> %-20s %d/%d vertices\n",
			m.MeshName, m.TrackName, m.NumMappedVertices(), len(m.SourceToTarget))
	}
	for _, name := range s.FailedImportedMeshNames() {
		fmt.Printf("  %-20s -> (no track)\n", name)
	}
	fmt.Println()

	fmt.Printf("Frame size:  %d bytes\n", c.FrameBytes())
	fmt.Printf("Capacity:    %d frames (%s)\n", c.Capacity(), c.Eviction())
	fmt.Printf("Memory:      %.2f KB\n", float64(c.CalcMemUsageInBytes())/1024)
}

func cmdFrame(cfg *config.Config, args []string) {
	manifest, rest := manifestArgs(cfg, args, 1, "frame [manifest] <n>")
	frame, err := strconv.Atoi(rest[0])
	if err != nil {
		fatalf("invalid frame %q", rest[0])
	}

	c := mustOpenCache(cfg, manifest)
	defer c.Close()

	tf := c.GetTrainingFrameForAnimFrame(frame)
	fmt.Printf("Frame:       %d\n", tf.AnimFrameIndex)

	var maxLen, sumLen float32
	nonZero := 0
	for v := 0; v < len(tf.VertexDeltas)/3; v++ {
		d := math.Vec3{X: tf.VertexDeltas[v*3], Y: tf.VertexDeltas[v*3+1], Z: tf.VertexDeltas[v*3+2]}
		l := d.Length()
		if l > 0 {
			nonZero++
		}
		sumLen += l
		maxLen = math32.Max(maxLen, l)
	}
	mean := float32(0)
	if n := len(tf.VertexDeltas) / 3; n > 0 {
		mean = sumLen / float32(n)
	}
	fmt.Printf("Deltas:      %d non-zero, mean %.5f, max %.5f\n", nonZero, mean, maxLen)
	if n := c.Sampler().Data().SingularVertices; n > 0 {
		fmt.Printf("Singular:    %d vertices\n", n)
	}

	fmt.Println("Bone rotations (x y z w):")
	for b := 0; b < len(tf.BoneRotations)/4; b++ {
		r := tf.BoneRotations[b*4 : b*4+4]
		fmt.Printf("  %3d  % .4f % .4f % .4f % .4f\n", b, r[0], r[1], r[2], r[3])
	}
	fmt.Println("Curves:")
	for i, v := range tf.CurveValues {
		fmt.Printf("  %3d  %.4f\n", i, v)
	}
}

func cmdPrefetch(cfg *config.Config, args []string) {
	manifest, rest := manifestArgs(cfg, args, 2, "prefetch [manifest] <start> <end>")
	start, err1 := strconv.Atoi(rest[0])
	end, err2 := strconv.Atoi(rest[1])
	if err1 != nil || err2 != nil {
		fatalf("invalid range %q..%q", rest[0], rest[1])
	}

	c := mustOpenCache(cfg, manifest)
	defer c.Close()

	n := prefetch(c, start, end)
	printStats(c)
	fmt.Printf("Prefetched:  %d frames\n", n)
}

// prefetch fills the cache from [start, end] and then looks every frame of
// the range up once, so the stats show which frames stayed resident. The
// range is clamped to the frames the asset has.
func prefetch(c *framecache.Cache, start, end int) int {
	n := c.Prefetch(start, end)
	for f := max(start, 0); f <= min(end, c.NumFrames()-1); f++ {
		c.GetTrainingFrameForAnimFrame(f)
	}
	return n
}

func printStats(c *framecache.Cache) {
	st := c.Stats()
	fmt.Printf("Capacity:    %d\n", st.Capacity)
	fmt.Printf("Cached:      %d\n", st.Cached)
	fmt.Printf("Hits:        %d\n", st.Hits)
	fmt.Printf("Misses:      %d\n", st.Misses)
	fmt.Printf("Generated:   %d\n", st.Generated)
	fmt.Printf("Evictions:   %d\n", st.Evictions)
	fmt.Printf("Memory:      %.2f KB\n", float64(c.CalcMemUsageInBytes())/1024)
}

func cmdSynth(args []string) {
	o := synth.DefaultOptions()
	fs := flag.NewFlagSet("synth", flag.ExitOnError)
	fs.IntVar(&o.Bones, "bones", o.Bones, "Bones in the chain")
	fs.IntVar(&o.Rings, "rings", o.Rings, "Vertex rings along the chain")
	fs.IntVar(&o.Segments, "segments", o.Segments, "Vertices per ring")
	fs.IntVar(&o.Frames, "frames", o.Frames, "Animation frames")
	var rate, bend, bulge, cutoff, offsetX float64
	fs.Float64Var(&rate, "fps", float64(o.FrameRate), "Frame rate")
	fs.Float64Var(&bend, "bend", float64(o.BendAngle), "Joint bend on the last frame (radians)")
	fs.Float64Var(&bulge, "bulge", float64(o.BulgeAmplitude), "Target bulge amplitude")
	fs.Float64Var(&cutoff, "cutoff", 0, "Delta cutoff length (0 = off)")
	fs.Float64Var(&offsetX, "offset-x", 0, "Target offset along X, undone by the alignment")
	fs.BoolVar(&o.CapMesh, "cap", false, "Add a sub-mesh without a target track")
	mode := fs.String("mode", o.DeltaMode.String(), "Delta mode stored in the manifest")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: mldsample synth [options] <dir>")
		os.Exit(1)
	}

	o.FrameRate = float32(rate)
	o.BendAngle = float32(bend)
	o.BulgeAmplitude = float32(bulge)
	o.DeltaCutoffLength = float32(cutoff)
	o.TargetOffset = math.Vec3{X: float32(offsetX)}
	dm, err := assets.ParseDeltaMode(*mode)
	if err != nil {
		fatalf("%v", err)
	}
	o.DeltaMode = dm

	path, err := synth.Write(fs.Arg(0), o)
	if err != nil {
		fatalf("%v", err)
	}
	logger.Info("wrote synthetic asset",
		zap.String("manifest", path),
		zap.Int("frames", o.Frames),
		zap.Int("vertices", (o.Rings+1)*o.Segments))
	fmt.Println(path)
}
