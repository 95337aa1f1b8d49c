package bunnyhttp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"bunnyvm.org/bunny"
	"bunnyvm.org/bunny/bvm"
	"bunnyvm.org/bunny/internal/testutil"
	"bunnyvm.org/bunny/isa"
	"bunnyvm.org/bunny/runlog"
	"bunnyvm.org/bunny/search"
)

const toggleSrc = `cpy 2 a
tgl a
tgl a
tgl a
cpy 1 a
dec a
dec a
`

// clockSrc produces a clock when a is 3 or 4.
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

func TestRun(t *testing.T) {
	base := startServing(t)

	var resp RunResp
	code := doJSON(t, "POST", base+"/v1/run", RunReq{Source: toggleSrc}, &resp)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, bvm.Exhausted, resp.Status)
	require.Equal(t, bvm.Registers{3, 0, 0, 0}, resp.Registers)
	require.Equal(t, isa.Int(7), resp.PC)

	var info RunInfo
	code = doJSON(t, "GET", fmt.Sprintf("%s/v1/runs/%d", base, resp.RunID), nil, &info)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, resp.RunID, info.ID)
	require.Equal(t, resp.Program, info.Program)
	require.Equal(t, resp.Steps, info.Steps)
	require.NotZero(t, info.TAI64[0])

	var prog ProgramResp
	code = doJSON(t, "GET", base+"/v1/programs/"+resp.Program.String(), nil, &prog)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, toggleSrc, prog.Source)
}

func TestRunPresets(t *testing.T) {
	base := startServing(t)
	var resp RunResp
	code := doJSON(t, "POST", base+"/v1/run", RunReq{
		Source:  "out a\nout d\ninc d\n",
		Presets: map[string]isa.Int{"a": 7, "d": -1},
	}, &resp)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, []isa.Int{7, -1}, resp.Output)
	require.Equal(t, bvm.Registers{7, 0, 0, 0}, resp.Registers)

	var info RunInfo
	code = doJSON(t, "GET", fmt.Sprintf("%s/v1/runs/%d", base, resp.RunID), nil, &info)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, bvm.Registers{7, 0, 0, -1}, info.Presets)
}

func TestRunStepLimit(t *testing.T) {
	base := startServing(t)
	var resp RunResp
	code := doJSON(t, "POST", base+"/v1/run", RunReq{Source: "jnz 1 0\n", MaxSteps: 100}, &resp)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, bvm.Running, resp.Status)
	require.Equal(t, uint64(100), resp.Steps)
}

func TestListRuns(t *testing.T) {
	base := startServing(t)
	for i := 0; i < 3; i++ {
		code := doJSON(t, "POST", base+"/v1/run", RunReq{
			Source:  "inc a\n",
			Presets: map[string]isa.Int{"a": isa.Int(i)},
		}, nil)
		require.Equal(t, http.StatusOK, code)
	}
	var infos []RunInfo
	code := doJSON(t, "GET", base+"/v1/runs", nil, &infos)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, infos, 3)
	require.Equal(t, bvm.Registers{3, 0, 0, 0}, infos[0].Registers)

	code = doJSON(t, "GET", base+"/v1/runs?limit=1", nil, &infos)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, infos, 1)
}

func TestClock(t *testing.T) {
	base := startServing(t)
	var resp ClockResp
	code := doJSON(t, "POST", base+"/v1/clock", ClockReq{Source: clockSrc, SampleSize: 10}, &resp)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, isa.Int(3), resp.Seed)

	code = doJSON(t, "POST", base+"/v1/clock", ClockReq{Source: clockSrc, SampleSize: 10, Start: 5, MaxSeeds: 10}, nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestErrors(t *testing.T) {
	base := startServing(t)
	type testCase struct {
		Method string
		Path   string
		Body   any
		Code   int
	}
	tcs := []testCase{
		{"POST", "/v1/run", "not a request", http.StatusBadRequest},
		{"POST", "/v1/run", RunReq{Source: "mul a b\n"}, http.StatusBadRequest},
		{"POST", "/v1/run", RunReq{Source: "inc a\n", Presets: map[string]isa.Int{"e": 1}}, http.StatusBadRequest},
		{"POST", "/v1/clock", ClockReq{Source: clockSrc, Register: "z"}, http.StatusBadRequest},
		{"POST", "/v1/clock", ClockReq{Source: clockSrc, SampleSize: -1}, http.StatusBadRequest},
		{"POST", "/v1/clock", ClockReq{Source: clockSrc, Start: math.MaxInt32, MaxSeeds: 2}, http.StatusBadRequest},
		{"POST", "/v1/run", RunReq{Source: "cpy 1a"}, http.StatusBadRequest},
		{"POST", "/v1/run", RunReq{Source: strings.Repeat("#", bunny.MaxProgramSize)}, http.StatusBadRequest},
		{"GET", "/v1/runs/1000", nil, http.StatusNotFound},
		{"GET", "/v1/runs/abc", nil, http.StatusBadRequest},
		{"GET", "/v1/programs/abc", nil, http.StatusBadRequest},
	}
	for _, tc := range tcs {
		t.Run(tc.Method+" "+tc.Path, func(t *testing.T) {
			var out map[string]string
			code := doJSON(t, tc.Method, base+tc.Path, tc.Body, &out)
			require.Equal(t, tc.Code, code)
			require.NotEmpty(t, out["error"])
		})
	}
}

func TestProgramNotFound(t *testing.T) {
	base := startServing(t)
	var resp RunResp
	code := doJSON(t, "POST", base+"/v1/run", RunReq{Source: "inc a\n"}, &resp)
	require.Equal(t, http.StatusOK, code)
	id := resp.Program
	id[0] ^= 0xff
	code = doJSON(t, "GET", base+"/v1/programs/"+id.String(), nil, nil)
	require.Equal(t, http.StatusNotFound, code)
}

func startServing(t testing.TB) string {
	ctx := testutil.Context(t)
	srv := New(runlog.NewMem(), search.NewSearcher(16))
	lis := testutil.Listen(t)
	go srv.Serve(ctx, lis)
	return "http://" + lis.Addr().String()
}

// doJSON sends body as JSON, decodes the response into out if it is not nil, and returns the status code.
func doJSON(t testing.TB, method, u string, body, out any) int {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, u, reqBody)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.Unmarshal(data, out), "%s", data)
	}
	return resp.StatusCode
}
