package tuning

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability"
)

func TestDefaultsValidate(t *testing.T) {
	d := Defaults()
	require.NoError(t, d.Validate())
	require.InDelta(t, 0.05, d.TickSeconds(), 1e-12)
}

func TestLoad_RepoConfig(t *testing.T) {
	tu, err := Load("../../../configs/tuning.yaml")
	require.NoError(t, err)
	require.Equal(t, 20, tu.TickRateHz)
	require.Len(t, tu.Starter.Abilities, 7)
	require.NotNil(t, tu.Starter.Abilities[0].InputID)
	require.Equal(t, 1, *tu.Starter.Abilities[0].InputID)
	require.Nil(t, tu.Starter.Abilities[4].InputID)
	require.Equal(t, ability.DefaultConfig().FailTags, tu.Ability.FailTags)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(p, []byte("tick_rate_hz: 10\nability:\n  ignore_costs: true\n"), 0o644))

	tu, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, 10, tu.TickRateHz)
	require.True(t, tu.Ability.IgnoreCosts)
	require.Equal(t, 8, tu.RateLimits.CommandsPerTick)
	// Fields the file leaves out keep their defaults.
	require.Equal(t, ability.DefaultConfig().FailTags.Cost, tu.Ability.FailTags.Cost)
}

func TestLoad_Rejects(t *testing.T) {
	for name, body := range map[string]string{
		"tick rate":  "tick_rate_hz: 0\n",
		"starter":    "starter:\n  abilities:\n    - {level: 2}\n",
		"fail tags":  "ability:\n  fail_tags:\n    cost: X.Same\n    cooldown: X.Same\n",
		"bad yaml":   "tick_rate_hz: [\n",
		"rate limit": "rate_limits:\n  commands_per_tick: -1\n",
	} {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "tuning.yaml")
			require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
			_, err := Load(p)
			require.Error(t, err)
		})
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(p, []byte("tick_rate_hz: 20\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan Tuning, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, p, 10*time.Millisecond, zap.NewNop(), func(tu Tuning) { got <- tu })
	}()

	var reloaded Tuning
	deadline := time.After(5 * time.Second)
loop:
	for {
		require.NoError(t, os.WriteFile(p, []byte("tick_rate_hz: 30\n"), 0o644))
		select {
		case reloaded = <-got:
			break loop
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("no reload")
		}
	}
	require.Equal(t, 30, reloaded.TickRateHz)

	cancel()
	require.NoError(t, <-done)
}
