package search

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"bunnyvm.org/bunny/asm"
	"bunnyvm.org/bunny/bvm"
	"bunnyvm.org/bunny/clock"
	"bunnyvm.org/bunny/internal/testutil"
	"bunnyvm.org/bunny/isa"
)

// clockSrc emits a-3 and then alternates between 0 and 1 forever.
// It only produces a clock for a = 3 and a = 4.
const clockSrc = `cpy a b
dec b
dec b
dec b
out b
jnz b 3
inc b
jnz 1 -3
dec b
jnz 1 -5
`

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SampleSize = 20
	cfg.MaxSeeds = 100
	cfg.StepLimit = 10_000
	return cfg
}

func TestFindClock(t *testing.T) {
	t.Parallel()
	prog := asm.MustParse(clockSrc)
	for _, workers := range []int{1, 2, 8} {
		cfg := testConfig()
		cfg.Workers = workers
		res, err := FindClock(testutil.Context(t), prog, cfg)
		require.NoError(t, err)
		require.Equal(t, isa.Int(3), res.Seed)
		require.GreaterOrEqual(t, res.Tried, 4)
		if workers == 1 {
			require.Equal(t, 4, res.Tried)
		}
		// 4 steps per value, 21 values, after 4 setup steps
		require.Equal(t, uint64(4+4*20+1), res.Steps)
	}
}

func TestFindClockStart(t *testing.T) {
	prog := asm.MustParse(clockSrc)
	cfg := testConfig()
	cfg.Start = 4
	res, err := FindClock(testutil.Context(t), prog, cfg)
	require.NoError(t, err)
	require.Equal(t, isa.Int(4), res.Seed)

	cfg.Start = 5
	_, err = FindClock(testutil.Context(t), prog, cfg)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindClockRegister(t *testing.T) {
	// the seed goes in d, and a is clobbered
	prog := asm.MustParse("cpy 7 a\ncpy d a\n" + clockSrc)
	cfg := testConfig()
	cfg.Register = isa.D
	res, err := FindClock(testutil.Context(t), prog, cfg)
	require.NoError(t, err)
	require.Equal(t, isa.Int(3), res.Seed)
}

func TestFindClockNotFound(t *testing.T) {
	t.Parallel()
	type testCase struct {
		Name string
		Src  string
	}
	tcs := []testCase{
		{Name: "Halts", Src: "inc a\n"},
		{Name: "Spins", Src: "jnz 1 0\n"},
		{Name: "Constant", Src: "out 1\njnz 1 -1\n"},
	}
	for _, tc := range tcs {
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			cfg.MaxSeeds = 5
			_, err := FindClock(testutil.Context(t), asm.MustParse(tc.Src), cfg)
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFindClockDoesNotModify(t *testing.T) {
	// the first instruction turns the out into an inc.
	// If seeds shared a program, the second seed would turn it into a dec.
	prog := asm.MustParse("tgl 1\nout a\n" + clockSrc)
	orig := prog.Clone()
	cfg := testConfig()
	cfg.Workers = 1
	res, err := FindClock(testutil.Context(t), prog, cfg)
	require.NoError(t, err)
	require.Equal(t, isa.Int(2), res.Seed)
	require.Equal(t, orig, prog)
}

func TestFindClockCancel(t *testing.T) {
	ctx := testutil.Context(t)
	ctx, cf := context.WithCancel(ctx)
	cf()
	cfg := testConfig()
	cfg.StepLimit = 0
	_, err := FindClock(ctx, asm.MustParse("jnz 1 0\n"), cfg)
	require.Error(t, err)
}

func TestTry(t *testing.T) {
	prog := asm.MustParse(clockSrc)
	cfg := testConfig()
	out, err := Try(testutil.Context(t), prog, cfg, 0)
	require.NoError(t, err)
	require.Equal(t, Outcome{Clock: clock.Bad, Status: bvm.Bad, Steps: 5}, out)

	out, err = Try(testutil.Context(t), asm.MustParse("jnz 1 0\n"), cfg, 0)
	require.NoError(t, err)
	require.Equal(t, Outcome{Clock: clock.Latch, Status: bvm.Running, Steps: cfg.StepLimit}, out)
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	for _, fn := range []func(*Config){
		func(c *Config) { c.Register = 4 },
		func(c *Config) { c.MaxSeeds = 0 },
		func(c *Config) { c.SampleSize = 0 },
		func(c *Config) { c.Workers = 0 },
		func(c *Config) { c.Start = math.MaxInt32; c.MaxSeeds = 2 },
		func(c *Config) { c.Start = math.MaxInt32 - 10; c.MaxSeeds = 12 },
	} {
		cfg := DefaultConfig()
		fn(&cfg)
		require.Error(t, cfg.Validate())
	}
	cfg := DefaultConfig()
	cfg.Start, cfg.MaxSeeds = math.MaxInt32, 1
	require.NoError(t, cfg.Validate())
}

func TestSearcher(t *testing.T) {
	ctx := testutil.Context(t)
	s := NewSearcher(10)
	prog := asm.MustParse(clockSrc)
	cfg := testConfig()
	res1, err := s.FindClock(ctx, prog, cfg)
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())

	cfg.Workers = 3
	res2, err := s.FindClock(ctx, prog, cfg)
	require.NoError(t, err)
	require.Equal(t, res1, res2)
	require.Equal(t, 1, s.Len())

	cfg.Start = 4
	res3, err := s.FindClock(ctx, prog, cfg)
	require.NoError(t, err)
	require.Equal(t, isa.Int(4), res3.Seed)
	require.Equal(t, 2, s.Len())

	cfg.Start = 5
	_, err = s.FindClock(ctx, prog, cfg)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 2, s.Len())
}
