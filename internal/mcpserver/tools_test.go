package mcpserver_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedparity/feedparity-go/internal/domain"
	"github.com/feedparity/feedparity-go/internal/mcpserver"
	"github.com/feedparity/feedparity-go/internal/summary"
	"github.com/feedparity/feedparity-go/internal/testutil"
)

const report = `{"notices":[{"code":"missing_id","totalNotices":2,"sampleNotices":[{"filename":"stops.txt"},{"filename":"stops.txt"}]}]}`

func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	server := mcp.NewServer(&mcp.Implementation{Name: "test", Version: "v1"}, nil)
	mcpserver.RegisterTools(server)

	t1, t2 := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, t1, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func call(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (map[string]any, bool) {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	if res.IsError {
		return map[string]any{"error": text.Text}, true
	}
	out := make(map[string]any)
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out, false
}

func TestRegisterTools_ListsTools(t *testing.T) {
	t.Parallel()
	session := connect(t)
	tools, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"compare_outputs", "normalize_report", "classify_failure",
		"list_case_results", "get_case_result", "validate_manifest",
	}, names)
}

func TestCompareOutputs(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	files := map[string]string{"report.json": report, "system_errors.json": `{"notices":[]}`}
	testutil.WriteFiles(t, filepath.Join(root, "expected"), files)
	testutil.WriteFiles(t, filepath.Join(root, "actual"), files)
	session := connect(t)

	out, isErr := call(t, session, "compare_outputs", map[string]any{
		"expected_dir": filepath.Join(root, "expected"),
		"actual_dir":   filepath.Join(root, "actual"),
		"flags":        []string{"--skip-html"},
	})
	require.False(t, isErr)
	assert.Equal(t, true, out["passed"])

	out, isErr = call(t, session, "compare_outputs", map[string]any{
		"expected_dir": filepath.Join(root, "expected"),
		"actual_dir":   filepath.Join(root, "actual"),
	})
	require.False(t, isErr)
	assert.Equal(t, false, out["passed"], "report.html is missing on both sides")

	out, isErr = call(t, session, "compare_outputs", map[string]any{"expected_dir": root, "actual_dir": root, "flags": []string{"--bogus"}})
	assert.True(t, isErr, out)
}

func TestNormalizeReport(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{"report.json": report})
	session := connect(t)

	out, isErr := call(t, session, "normalize_report", map[string]any{"path": filepath.Join(root, "report.json")})
	require.False(t, isErr)
	assert.EqualValues(t, 2, out["total"])
	assert.Equal(t, map[string]any{"stops.txt": map[string]any{"missing_id": float64(2)}}, out["notices"])

	_, isErr = call(t, session, "normalize_report", map[string]any{"path": filepath.Join(root, "nope.json")})
	assert.True(t, isErr)
}

func TestClassifyFailure(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"system_errors.json": `{"notices":[{"code":"runtime_exception_in_validator_error","totalNotices":1,"sampleNotices":[{"message":"Java heap space"}]}]}`,
	})
	session := connect(t)

	out, isErr := call(t, session, "classify_failure", map[string]any{"output_dir": root})
	require.False(t, isErr)
	assert.Equal(t, "resource_exhaustion", out["failure_reason"])

	out, isErr = call(t, session, "classify_failure", map[string]any{"output_dir": t.TempDir(), "return_code": 2})
	require.False(t, isErr)
	assert.Equal(t, "generic_error", out["failure_reason"])
}

func TestCaseResults(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	results := []domain.CaseResult{
		{Name: "a", Reference: domain.ImplResult{FailureReason: domain.FailureNone}, Candidate: domain.ImplResult{FailureReason: domain.FailureNone}},
		{
			Name:      "b",
			Reference: domain.ImplResult{Notices: domain.FileNotices{"stops.txt": {"x": 3}}, FailureReason: domain.FailureNone},
			Candidate: domain.ImplResult{FailureReason: domain.FailureNone},
		},
	}
	for i := range results {
		results[i].Decide(domain.ModeCode)
	}
	require.NoError(t, summary.Write(root, results, domain.ModeCode, "run-1"))
	session := connect(t)

	out, isErr := call(t, session, "list_case_results", map[string]any{"output_root": root, "mismatches_only": true})
	require.False(t, isErr)
	assert.EqualValues(t, 1, out["matched"])
	assert.EqualValues(t, 1, out["mismatched"])
	cases, ok := out["cases"].([]any)
	require.True(t, ok)
	require.Len(t, cases, 1)
	assert.Equal(t, "b", cases[0].(map[string]any)["name"])

	out, isErr = call(t, session, "get_case_result", map[string]any{"output_root": root, "case": "b"})
	require.False(t, isErr)
	assert.Equal(t, false, out["match"])
	assert.EqualValues(t, 3, out["reference"].(map[string]any)["total"])

	out, isErr = call(t, session, "get_case_result", map[string]any{"output_root": root, "case": "zzz"})
	assert.True(t, isErr)
	assert.Contains(t, out["error"], "not found")

	_, isErr = call(t, session, "list_case_results", map[string]any{"output_root": t.TempDir()})
	assert.True(t, isErr)
}

func TestValidateManifest(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"feeds/a.zip":            "zip",
		"expected/a/report.json": "{}",
		"manifest.tsv":           "# comment\n" + filepath.Join(root, "feeds/a.zip") + "\t" + filepath.Join(root, "expected/a") + "\t\t\t\t\t\nmissing.zip\n",
	})
	session := connect(t)

	out, isErr := call(t, session, "validate_manifest", map[string]any{"path": filepath.Join(root, "manifest.tsv")})
	require.False(t, isErr)
	assert.Equal(t, false, out["valid"])
	assert.EqualValues(t, 1, out["errors"])
	assert.EqualValues(t, 1, out["cases"])
	assert.Equal(t, []any{"Line 3: expected at least 2 columns (feed_path, expected_dir)"}, out["problems"])
}
