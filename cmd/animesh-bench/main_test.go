package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-animesh/engine/animesh"
	"github.com/Carmen-Shannon/oxy-animesh/engine/ragdoll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTentacleAsset(t *testing.T) {
	asset, err := tentacle(4, 6)
	require.NoError(t, err)

	assert.Equal(t, 4, asset.Skeleton.BoneCount())
	assert.Equal(t, 5*6, asset.Mesh.VertexCount())
	require.Len(t, asset.Mesh.Submeshes(), 1)
	assert.Len(t, asset.Mesh.Submeshes()[0].Indices, 4*6*6)
	require.Len(t, asset.Clips, 1)
	assert.NoError(t, asset.Clips[0].Validate(4))

	inst, err := animesh.NewAnimatedMeshInstance(asset.Mesh, asset.Skeleton.NewInstance())
	require.NoError(t, err)
	tip, ok := inst.Socket("tip")
	require.True(t, ok)
	inst.Update(animesh.OutputPositions)
	assert.InDelta(t, 2, tip.WorldTransform().Translation.Y(), 1e-5, "four segments of 0.5 up to the tip")
}

func TestTentacleChains(t *testing.T) {
	chains := tentacleChains(6)
	require.Len(t, chains, 1)
	assert.Equal(t, []string{"seg_3", "seg_4", "seg_5"}, chains[0].Bones)
	assert.Len(t, chains[0].Joints, 2)
	assert.NoError(t, chains[0].Validate())
}

func TestRunProcedural(t *testing.T) {
	err := run(options{
		instances: 3,
		frames:    10,
		dropFrame: 4,
		segments:  4,
		upload:    true,
		logLevel:  "error",
	})
	assert.NoError(t, err)
}

func TestRunWithChainFileAndConfig(t *testing.T) {
	dir := t.TempDir()
	chains := filepath.Join(dir, "chains.yaml")
	require.NoError(t, os.WriteFile(chains, []byte(`
chains:
  - name: tip
    bones: [seg_2, seg_3]
    joints:
      - {parent: seg_2, child: seg_3}
`), 0o600))
	cfg := filepath.Join(dir, "bench.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("[engine]\nworkers = 2\n[physics]\nfloor = 0.0\n[log]\nlevel = \"error\"\n"), 0o600))

	assert.NoError(t, run(options{configFile: cfg, chains: chains, instances: 2, frames: 5, dropFrame: 1, segments: 4}))

	err := run(options{chains: filepath.Join(dir, "missing.yaml"), instances: 1, frames: 1, segments: 4})
	assert.Error(t, err)

	err = run(options{clip: "dance", instances: 1, frames: 1, segments: 4, logLevel: "error"})
	assert.ErrorContains(t, err, "dance")

	_, err = ragdoll.LoadChainsFile(chains)
	assert.NoError(t, err)
}
