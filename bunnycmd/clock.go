package bunnycmd

import (
	"strconv"

	"go.brendoncarroll.net/star"

	"bunnyvm.org/bunny/clock"
	"bunnyvm.org/bunny/isa"
	"bunnyvm.org/bunny/search"
)

var clockCmd = star.Command{
	Metadata: star.Metadata{
		Short: "find the smallest register value which makes a program produce a clock signal",
	},
	Flags: []star.IParam{accelParam, maxStepsParam, registerParam, startParam, maxSeedsParam, sampleSizeParam, workersParam},
	Pos:   []star.IParam{progParam},
	F: func(c star.Context) error {
		ctx := logContext(c)
		cfg := searchConfig(c)
		res, err := search.FindClock(ctx, progParam.Load(c), cfg)
		if err != nil {
			return err
		}
		c.Printf("%v=%d\n", cfg.Register, res.Seed)
		return nil
	},
}

// searchConfig builds a search.Config from the command line.
func searchConfig(c star.Context) search.Config {
	cfg := search.DefaultConfig()
	cfg.Register = registerParam.Load(c)
	cfg.Start = startParam.Load(c)
	cfg.MaxSeeds = maxSeedsParam.Load(c)
	cfg.SampleSize = sampleSizeParam.Load(c)
	if n := workersParam.Load(c); n > 0 {
		cfg.Workers = n
	}
	if n := maxStepsParam.Load(c); n > 0 {
		cfg.StepLimit = n
	}
	cfg.Accelerate = accelParam.Load(c)
	return cfg
}

var registerParam = star.Param[isa.Register]{
	Name:    "reg",
	Default: star.Ptr("a"),
	Parse:   isa.ParseRegister,
}

var startParam = star.Param[isa.Int]{
	Name:    "start",
	Default: star.Ptr("0"),
	Parse: func(x string) (isa.Int, error) {
		n, err := strconv.ParseInt(x, 10, 32)
		return isa.Int(n), err
	},
}

var maxSeedsParam = star.Param[int]{
	Name:    "max-seeds",
	Default: star.Ptr(strconv.Itoa(search.DefaultConfig().MaxSeeds)),
	Parse:   strconv.Atoi,
}

var sampleSizeParam = star.Param[int]{
	Name:    "sample-size",
	Default: star.Ptr(strconv.Itoa(clock.DefaultSampleSize)),
	Parse:   strconv.Atoi,
}

var workersParam = star.Param[int]{
	Name:    "workers",
	Default: star.Ptr("0"),
	Parse:   strconv.Atoi,
}
