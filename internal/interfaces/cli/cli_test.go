package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molmatch/internal/config"
	httpapi "github.com/turtacn/molmatch/internal/interfaces/http"
	"github.com/turtacn/molmatch/internal/testutil"
	"github.com/turtacn/molmatch/pkg/errors"
	mtypes "github.com/turtacn/molmatch/pkg/types/molecule"
)

const queryCO = `
id: q
components:
  - atoms: [{symbol: C}, {symbol: O}]
    bonds: [{begin: 0, end: 1}]
`

const targetCOC = `
id: t
components:
  - atoms: [{symbol: C}, {symbol: O}, {symbol: C}]
    bonds: [{begin: 0, end: 1}, {begin: 1, end: 2}]
`

const targetLibrary = `
id: ether
components:
  - atoms: [{symbol: C}, {symbol: O}, {symbol: C}]
    bonds: [{begin: 0, end: 1}, {begin: 1, end: 2}]
---
id: hydrazine
components:
  - atoms: [{symbol: N}, {symbol: N}]
    bonds: [{begin: 0, end: 1}]
---
id: methanol
components:
  - atoms: [{symbol: C}, {symbol: O}]
    bonds: [{begin: 0, end: 1}]
`

const quietConfig = "log:\n  level: error\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

type fixture struct {
	dir, config, query, target, library string
}

func newFixture(t *testing.T) fixture {
	dir := t.TempDir()
	return fixture{
		dir:     dir,
		config:  writeFile(t, dir, "molmatch.yaml", quietConfig),
		query:   writeFile(t, dir, "query.yaml", queryCO),
		target:  writeFile(t, dir, "target.yaml", targetCOC),
		library: writeFile(t, dir, "library.yaml", targetLibrary),
	}
}

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "molmatch", cmd.Use)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"match", "batch", "serve"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	out := cmd.PersistentFlags().Lookup("output")
	require.NotNil(t, out)
	assert.Equal(t, "text", out.DefValue)
	assert.NotNil(t, cmd.PersistentFlags().ShorthandLookup("c"))
}

func TestRoot_RejectsUnknownOutput(t *testing.T) {
	f := newFixture(t)
	_, _, err := runCLI(t, "", "--config", f.config, "-o", "xml", "match", "-q", f.query, "-t", f.target)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestRoot_ConfigErrors(t *testing.T) {
	f := newFixture(t)
	_, _, err := runCLI(t, "", "--config", filepath.Join(f.dir, "absent.yaml"), "match", "-q", f.query, "-t", f.target)
	assert.ErrorIs(t, err, config.ErrConfigFileNotFound)

	_, _, err = runCLI(t, "", "--config", f.config, "--log-level", "loud", "match", "-q", f.query, "-t", f.target)
	assert.ErrorIs(t, err, config.ErrConfigValidation)
}

func TestGetCLIContext_Missing(t *testing.T) {
	cmd := NewMatchCmd()
	_, err := GetCLIContext(cmd)
	assert.Error(t, err)

	cmd.SetContext(context.Background())
	_, err = GetCLIContext(cmd)
	assert.Error(t, err)
}

func TestServiceOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Search.MaxMappings = 7
	cfg.Search.UniqueOnly = true
	cfg.Search.EnabledRoles = []string{"product"}
	cfg.Search.CheckIsotope = false
	cfg.Search.Timeout = time.Second
	cfg.Batch.Workers = 3
	cfg.Batch.FailFast = true

	o := ServiceOptions(cfg)
	assert.Equal(t, 7, o.MaxMappings)
	assert.True(t, o.UniqueOnly)
	assert.True(t, o.ForwardChecking)
	assert.Equal(t, []string{"product"}, o.Roles)
	assert.True(t, o.Match.Charge)
	assert.False(t, o.Match.Isotope)
	assert.Equal(t, time.Second, o.Timeout)
	assert.Equal(t, 3, o.Workers)
	assert.True(t, o.FailFast)
}

func TestMatchCmd_JSON(t *testing.T) {
	f := newFixture(t)
	stdout, _, err := runCLI(t, "", "--config", f.config, "-o", "json", "match", "-q", f.query, "-t", f.target)
	require.NoError(t, err)

	var res mtypes.MatchResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.True(t, res.Matched)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "q", res.QueryID)
	assert.Equal(t, "t", res.TargetID)
}

func TestMatchCmd_TextAndTable(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := runCLI(t, "", "--config", f.config, "--no-color", "match", "-q", f.query, "-t", f.target)
	require.NoError(t, err)
	assert.Contains(t, stdout, "MATCH q in t: 2 mapping(s)")
	assert.Contains(t, stdout, "atoms 0->0 1->1")
	assert.Contains(t, stdout, "atoms 0->2 1->1")

	stdout, _, err = runCLI(t, "", "--config", f.config, "--no-color", "-o", "table", "match", "-q", f.query, "-t", f.target)
	require.NoError(t, err)
	assert.Contains(t, stdout, "ATOMS")
	assert.Contains(t, stdout, "0->2 1->1")

	stdout, _, err = runCLI(t, "", "--config", f.config, "--no-color", "match", "-q", f.target, "-t", f.query)
	require.NoError(t, err)
	assert.Contains(t, stdout, "NO MATCH t in q")
}

func TestMatchCmd_Overrides(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := runCLI(t, "", "--config", f.config, "-o", "yaml", "match", "-q", f.query, "-t", f.target, "--exists")
	require.NoError(t, err)
	assert.Contains(t, stdout, "matched: true")
	assert.Contains(t, stdout, "count: 1")
	assert.NotContains(t, stdout, "mappings:")

	stdout, _, err = runCLI(t, "", "--config", f.config, "-o", "json", "match", "-q", f.query, "-t", f.target, "--max-mappings", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"count": 1`)

	_, _, err = runCLI(t, "", "--config", f.config, "match", "-q", f.query, "-t", f.target, "--roles", "solvent")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestMatchCmd_Errors(t *testing.T) {
	f := newFixture(t)

	_, _, err := runCLI(t, "", "--config", f.config, "match", "-t", f.target)
	assert.Error(t, err, "query is required")

	_, _, err = runCLI(t, "", "--config", f.config, "match", "-q", filepath.Join(f.dir, "nope.yaml"), "-t", f.target)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	bad := writeFile(t, f.dir, "bad.yaml", "id: bad\ncomponents:\n  - atoms: [{symbol: C}]\n    bonds: [{begin: 0, end: 3}]\n")
	_, _, err = runCLI(t, "", "--config", f.config, "match", "-q", bad, "-t", f.target)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMalformedGraph))
}

func decodeBatchLines(t *testing.T, out string) []batchRecord {
	t.Helper()
	var recs []batchRecord
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var r batchRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Index < recs[j].Index })
	return recs
}

func TestBatchCmd_JSONLines(t *testing.T) {
	f := newFixture(t)
	stdout, stderr, err := runCLI(t, "", "--config", f.config, "--no-color", "-o", "json",
		"batch", "-q", f.query, "--targets", f.library, "--workers", "2")
	require.NoError(t, err)

	recs := decodeBatchLines(t, stdout)
	require.Len(t, recs, 3)
	assert.Equal(t, "ether", recs[0].TargetID)
	assert.Equal(t, 2, recs[0].Count)
	assert.False(t, recs[1].Matched)
	assert.Equal(t, 1, recs[2].Count)
	assert.Contains(t, stderr, "targets=3 matched=2 failed=0")
}

func TestBatchCmd_StdinAndTable(t *testing.T) {
	f := newFixture(t)
	stdout, _, err := runCLI(t, targetLibrary, "--config", f.config, "--no-color", "-o", "table",
		"batch", "-q", f.query, "--targets", "-")
	require.NoError(t, err)
	assert.Contains(t, stdout, "hydrazine")
	assert.Less(t, strings.Index(stdout, "ether"), strings.Index(stdout, "methanol"))
}

func TestBatchCmd_InvalidTargets(t *testing.T) {
	f := newFixture(t)
	lib := writeFile(t, f.dir, "mixed.yaml", targetLibrary+"---\nid: odd\ncomponents:\n  - role: solvent\n    atoms: [{symbol: C}]\n")

	stdout, stderr, err := runCLI(t, "", "--config", f.config, "--no-color",
		"batch", "-q", f.query, "--targets", lib)
	require.NoError(t, err)
	assert.Contains(t, stdout, "ERROR odd")
	assert.Contains(t, stderr, "targets=4 matched=2 failed=1")

	_, _, err = runCLI(t, "", "--config", f.config, "batch", "-q", f.query, "--targets", lib, "--fail-fast", "--workers", "1")
	assert.Error(t, err)

	_, _, err = runCLI(t, "", "--config", f.config, "batch", "-q", f.query, "--targets", lib, "--workers", "0")
	assert.Error(t, err)
}

func postMatch(t *testing.T, base string) mtypes.MatchResponse {
	t.Helper()
	body := `{"query":{"id":"q","components":[{"atoms":[{"symbol":"C"},{"symbol":"O"}],"bonds":[{"begin":0,"end":1}]}]},` +
		`"target":{"id":"t","components":[{"atoms":[{"symbol":"C"},{"symbol":"O"},{"symbol":"C"}],"bonds":[{"begin":0,"end":1},{"begin":1,"end":2}]}]}}`
	resp, err := http.Post(base+"/api/v1/match", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res mtypes.MatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return res
}

func TestRunServe(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "molmatch.yaml", quietConfig)
	cfg, err := config.LoadFromFile(cfgPath)
	require.NoError(t, err)

	logger := testutil.NewMockLogger()
	cliCtx := &CLIContext{
		Config:     cfg,
		ConfigFile: cfgPath,
		Logger:     logger,
		Options:    ServiceOptions(cfg),
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := fmt.Sprintf("http://%s", ln.Addr().String())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, cliCtx, func(srv *httpapi.Server) error { return srv.Serve(ln) })
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	assert.Equal(t, 2, postMatch(t, base).Count)

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	var metrics bytes.Buffer
	_, _ = metrics.ReadFrom(resp.Body)
	resp.Body.Close()
	assert.Contains(t, metrics.String(), `molmatch_substruct_searches_total{mode="find",result="matched"} 1`)

	// lowering max_mappings in the watched file applies to new requests
	require.NoError(t, os.WriteFile(cfgPath, []byte(quietConfig+"search:\n  max_mappings: 1\n"), 0o644))
	require.Eventually(t, func() bool {
		return postMatch(t, base).Count == 1
	}, 5*time.Second, 50*time.Millisecond)
	assert.True(t, logger.HasMessage("info", "search configuration reloaded"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
	assert.True(t, logger.HasMessage("info", "shutdown signal received"))
}

func TestRunServe_MetricsDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false
	cliCtx := &CLIContext{Config: cfg, Logger: testutil.NewMockLogger(), Options: ServiceOptions(cfg)}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := fmt.Sprintf("http://%s", ln.Addr().String())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, cliCtx, func(srv *httpapi.Server) error { return srv.Serve(ln) })
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/metrics")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNotFound
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
