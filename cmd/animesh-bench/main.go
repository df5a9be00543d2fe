// Command animesh-bench drives many skinned, animated and optionally ragdolled instances through
// the headless engine and reports throughput.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/Carmen-Shannon/oxy-animesh/config"
	"github.com/Carmen-Shannon/oxy-animesh/engine"
	"github.com/Carmen-Shannon/oxy-animesh/engine/animator"
	"github.com/Carmen-Shannon/oxy-animesh/engine/animesh"
	"github.com/Carmen-Shannon/oxy-animesh/engine/game_object"
	"github.com/Carmen-Shannon/oxy-animesh/engine/loader"
	"github.com/Carmen-Shannon/oxy-animesh/engine/physics"
	"github.com/Carmen-Shannon/oxy-animesh/engine/profiler"
	"github.com/Carmen-Shannon/oxy-animesh/engine/ragdoll"
	"github.com/Carmen-Shannon/oxy-animesh/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-animesh/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-animesh/engine/scene"
	"github.com/Carmen-Shannon/oxy-animesh/engine/skeleton"
	"github.com/go-gl/mathgl/mgl32"
)

type options struct {
	configFile string
	asset      string
	clip       string
	chains     string
	instances  int
	frames     int
	dropFrame  int
	segments   int
	realtime   bool
	upload     bool
	gpu        bool
	logJSON    bool
	logLevel   string
}

func main() {
	var opts options
	flag.StringVar(&opts.configFile, "config", "", "Path to a TOML config file")
	flag.StringVar(&opts.asset, "asset", "", "glTF or GLB file to instance (default: procedural tentacle)")
	flag.StringVar(&opts.clip, "clip", "", "Clip to loop (default: the asset's first clip)")
	flag.StringVar(&opts.chains, "chains", "", "YAML ragdoll chain file (overrides the config)")
	flag.IntVar(&opts.instances, "instances", 16, "Number of instances")
	flag.IntVar(&opts.frames, "frames", 600, "Number of frames to run")
	flag.IntVar(&opts.dropFrame, "drop-frame", -1, "Frame at which every ragdoll chain goes dynamic (-1: never)")
	flag.IntVar(&opts.segments, "segments", 12, "Bones in the procedural tentacle")
	flag.BoolVar(&opts.realtime, "realtime", false, "Run at the configured tick rate instead of as fast as possible")
	flag.BoolVar(&opts.upload, "upload", false, "Emit render meshes into an in-memory GPU buffer device")
	flag.BoolVar(&opts.gpu, "gpu", false, "Upload into a real webgpu device instead of host memory (implies -upload)")
	flag.BoolVar(&opts.logJSON, "log-json", false, "Log as JSON")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level (overrides the config)")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "animesh-bench: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg := config.Default()
	if opts.configFile != "" {
		var err error
		if cfg, err = config.Load(opts.configFile); err != nil {
			return err
		}
	}
	// CLI flags override config file
	if opts.chains != "" {
		cfg.Ragdoll.ChainFile = opts.chains
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	cfg.Log.JSON = cfg.Log.JSON || opts.logJSON
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	asset, chains, err := loadAsset(opts, cfg, logger)
	if err != nil {
		return err
	}

	sceneOpts := []scene.SceneBuilderOption{scene.WithLogger(logger)}
	if cfg.Engine.Workers > 0 {
		sceneOpts = append(sceneOpts, scene.WithComputeWorkers(cfg.Engine.Workers))
	}
	var uploader bind_group_provider.MeshUploader
	if opts.upload || opts.gpu {
		var device bind_group_provider.BufferDevice = bind_group_provider.NewMemoryBufferDevice()
		if opts.gpu {
			gpu, release, err := bind_group_provider.OpenWGPUBufferDevice(false)
			if err != nil {
				return err
			}
			defer release()
			device = gpu
		}
		uploader = bind_group_provider.NewMeshUploader(device,
			bind_group_provider.WithLogger(logger),
			bind_group_provider.WithMaterials(material.FromAsset(asset)),
		)
		sceneOpts = append(sceneOpts, scene.WithUploader(uploader))
	}
	s := scene.NewScene("bench", sceneOpts...)
	defer s.Close()

	for i := range opts.instances {
		obj, err := spawn(i, asset, chains, opts.clip, cfg, logger)
		if err != nil {
			return err
		}
		s.Add(obj)
	}
	if uploader != nil {
		// buffers go before the device that owns them
		defer uploader.ReleaseAll()
	}

	e := engine.NewEngine(
		engine.WithScene(0, s),
		engine.WithTickRate(cfg.Engine.TickRate),
		engine.WithFixedDelta(true),
		engine.WithMaxFrames(uint64(opts.frames)),
		engine.WithProfiling(cfg.Profiler.Enabled),
		engine.WithProfiler(profiler.NewProfiler(
			profiler.WithLogger(logger),
			profiler.WithInterval(cfg.Profiler.Interval.Duration),
		)),
	)
	if opts.dropFrame >= 0 {
		e.SetTickCallback(func(float32) {
			if e.Frames() == uint64(opts.dropFrame) {
				dropAll(s, logger)
			}
		})
	}

	logger.Info("bench starting",
		"asset", asset.Name,
		"instances", opts.instances,
		"vertices", asset.Mesh.VertexCount(),
		"bones", skeletonBones(asset),
		"frames", opts.frames,
		"realtime", opts.realtime,
	)

	start := time.Now()
	if opts.realtime {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := e.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	} else {
		dt := float32(e.TickRate().Seconds())
		for range opts.frames {
			e.Step(dt)
		}
	}
	elapsed := time.Since(start)

	frames := e.Frames()
	attrs := []any{
		"frames", frames,
		"elapsed", elapsed.Round(time.Millisecond),
		"fps", float64(frames) / elapsed.Seconds(),
		"skinned_vertices_per_frame", s.LastFrame().SkinnedVertices,
		"failures_last_frame", s.LastFrame().Failures,
	}
	if uploader != nil {
		st := uploader.Stats()
		attrs = append(attrs, "buffers", st.BuffersCreated, "bytes_uploaded", st.BytesWritten, "uploads_skipped", st.Skipped)
	}
	logger.Info("bench finished", attrs...)
	return nil
}

// newLogger builds the text or JSON handler the config asks for.
func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts)), nil
}

// loadAsset imports the asset named on the command line, or builds the procedural tentacle, and
// resolves the ragdoll chains to use with it.
func loadAsset(opts options, cfg config.Config, logger *slog.Logger) (*loader.Asset, []ragdoll.ChainDefinition, error) {
	var (
		asset  *loader.Asset
		chains []ragdoll.ChainDefinition
		err    error
	)
	if opts.asset != "" {
		l := loader.NewLoader(loader.BackendTypeGLTF,
			loader.WithLogger(logger),
			loader.WithInfluencesPerVertex(cfg.Skinning.InfluencesPerVertex),
		)
		if asset, err = l.Load(opts.asset); err != nil {
			return nil, nil, err
		}
	} else {
		if asset, err = tentacle(max(opts.segments, 2), 12); err != nil {
			return nil, nil, fmt.Errorf("procedural asset: %w", err)
		}
		chains = tentacleChains(max(opts.segments, 2))
	}

	if asset.Skeleton == nil {
		// static meshes ride a single root bone; copy so the loader's cached asset stays as imported
		static := *asset
		asset = &static
		if asset.Skeleton, err = skeleton.NewSkeletonFactory([]common.BoneDefinition{
			{Name: "root", Parent: common.NoBone, Bind: common.IdentityTransform()},
		}); err != nil {
			return nil, nil, err
		}
	}

	if cfg.Ragdoll.ChainFile != "" {
		if chains, err = ragdoll.LoadChainsFile(cfg.Ragdoll.ChainFile); err != nil {
			return nil, nil, err
		}
	}
	return asset, chains, nil
}

// spawn creates one instance of asset with its own skeleton, animator, physics world and bridge,
// spaced along X so the crowd does not overlap.
func spawn(i int, asset *loader.Asset, chains []ragdoll.ChainDefinition, clip string, cfg config.Config, logger *slog.Logger) (game_object.GameObject, error) {
	name := fmt.Sprintf("%s_%d", asset.Name, i)
	skel := asset.Skeleton.NewInstance()
	inst, err := animesh.NewAnimatedMeshInstance(asset.Mesh, skel,
		animesh.WithInstanceName(name),
		animesh.WithInstanceLogger(logger.With("object", name)),
	)
	if err != nil {
		return nil, err
	}

	objOpts := []game_object.GameObjectBuilderOption{
		game_object.WithTransform(common.TranslationTransform(float32(i)*1.5, 0, 0)),
	}

	if len(asset.Clips) > 0 {
		anim, err := animator.NewAnimator(skel, animator.WithClips(asset.Clips...))
		if err != nil {
			return nil, err
		}
		idx := 0
		if clip != "" {
			var ok bool
			if idx, ok = anim.ClipIndex(clip); !ok {
				return nil, fmt.Errorf("%w: %q in %s", animator.ErrUnknownClip, clip, asset.Name)
			}
		}
		if err := anim.Play(idx, true); err != nil {
			return nil, err
		}
		anim.SetTime(float32(i) * 0.1)
		objOpts = append(objOpts, game_object.WithAnimator(anim))
	}

	if len(chains) > 0 {
		worldOpts := []physics.WorldBuilderOption{
			physics.WithGravity(mgl32.Vec3(cfg.Physics.Gravity)),
			physics.WithFixedStep(cfg.Physics.FixedStep),
			physics.WithMaxSubsteps(cfg.Physics.MaxSubsteps),
			physics.WithSolverIterations(cfg.Physics.SolverIterations),
		}
		if cfg.Physics.Floor != nil {
			worldOpts = append(worldOpts, physics.WithFloor(*cfg.Physics.Floor))
		}
		bridge, err := ragdoll.NewBridge(skel, physics.NewWorld(worldOpts...),
			ragdoll.WithLogger(logger.With("object", name)),
			ragdoll.WithChains(chains...),
		)
		if err != nil {
			return nil, err
		}
		objOpts = append(objOpts, game_object.WithBridge(bridge))
	}

	if len(asset.Mesh.MorphTargets()) > 0 {
		_ = inst.SetMorphWeight(0, float32(i%4)/4)
	}
	return game_object.NewGameObject(inst, objOpts...)
}

// dropAll switches every ragdoll chain of every object to dynamic simulation.
func dropAll(s scene.Scene, logger *slog.Logger) {
	for _, obj := range s.Objects() {
		b := obj.Bridge()
		if b == nil {
			continue
		}
		for c := range b.ChainCount() {
			if err := b.SetBodyChainState(ragdoll.ChainID(c), ragdoll.StateDynamic); err != nil {
				logger.Warn("chain stays on forward kinematics", "object", obj.Name(), "chain", c, "err", err)
			}
		}
	}
	logger.Info("ragdolls dropped", "objects", s.Count())
}

func skeletonBones(asset *loader.Asset) int {
	return asset.Skeleton.BoneCount()
}
