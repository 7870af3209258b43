// Package mcpserver exposes the comparator, normalizer, classifier and run
// summaries as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/feedparity/feedparity-go/internal/classify"
	"github.com/feedparity/feedparity-go/internal/compare"
	"github.com/feedparity/feedparity-go/internal/domain"
	"github.com/feedparity/feedparity-go/internal/manifest"
	"github.com/feedparity/feedparity-go/internal/notices"
	"github.com/feedparity/feedparity-go/internal/summary"
)

// RegisterTools registers all harness MCP tools on the given server.
func RegisterTools(server *mcp.Server) {
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "compare_outputs",
			Description: "Compare an expected and an actual validator output directory after normalization",
		},
		compareOutputsHandler,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "normalize_report",
			Description: "Reduce a validator report to per-file notice counts",
		},
		normalizeReportHandler,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "classify_failure",
			Description: "Classify why a validator run in an output directory failed",
		},
		classifyFailureHandler,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "list_case_results",
			Description: "List the cases recorded in a parity run summary",
		},
		listCaseResultsHandler,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "get_case_result",
			Description: "Get the full parity result for one case of a run",
		},
		getCaseResultHandler,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "validate_manifest",
			Description: "Check a golden manifest for malformed rows and missing fixtures",
		},
		validateManifestHandler,
	)
}

type compareInput struct {
	ExpectedDir string   `json:"expected_dir"`
	ActualDir   string   `json:"actual_dir"`
	Flags       []string `json:"flags,omitempty" jsonschema:"compare flags such as --ignore-notice-order or --extra-json NAME"`
}

type compareOutput struct {
	Passed  bool            `json:"passed"`
	Outcome compare.Outcome `json:"outcome"`
}

func compareOutputsHandler(_ context.Context, _ *mcp.CallToolRequest, input compareInput) (*mcp.CallToolResult, any, error) {
	if input.ExpectedDir == "" || input.ActualDir == "" {
		return errorResult("expected_dir and actual_dir are required"), nil, nil
	}
	opts, err := compare.ParseFlags(input.Flags)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	outcome := compare.Dirs(input.ExpectedDir, input.ActualDir, opts)
	return textResult(compareOutput{Passed: outcome.Passed(), Outcome: outcome})
}

type pathInput struct {
	Path string `json:"path"`
}

type normalizeOutput struct {
	Total   int                `json:"total"`
	ByCode  map[string]int     `json:"by_code"`
	Notices domain.FileNotices `json:"notices"`
}

func normalizeReportHandler(_ context.Context, _ *mcp.CallToolRequest, input pathInput) (*mcp.CallToolResult, any, error) {
	if input.Path == "" {
		return errorResult("path is required"), nil, nil
	}
	n, err := notices.LoadFile(input.Path)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	return textResult(normalizeOutput{Total: n.Total(), ByCode: n.ByCode(), Notices: n})
}

type classifyInput struct {
	OutputDir  string `json:"output_dir"`
	ReturnCode *int   `json:"return_code,omitempty"`
}

func classifyFailureHandler(_ context.Context, _ *mcp.CallToolRequest, input classifyInput) (*mcp.CallToolResult, any, error) {
	if input.OutputDir == "" {
		return errorResult("output_dir is required"), nil, nil
	}
	reason := classify.Classify(input.OutputDir, classify.Status{ReturnCode: input.ReturnCode})
	return textResult(map[string]any{"failure_reason": reason, "failed": reason.Failed()})
}

type listInput struct {
	OutputRoot     string `json:"output_root"`
	MismatchesOnly bool   `json:"mismatches_only,omitempty"`
}

type caseSummary struct {
	Name           string `json:"name"`
	Match          bool   `json:"match"`
	ReferenceTotal int    `json:"reference_total"`
	CandidateTotal int    `json:"candidate_total"`
}

func listCaseResultsHandler(_ context.Context, _ *mcp.CallToolRequest, input listInput) (*mcp.CallToolResult, any, error) {
	results, errRes := loadSummary(input.OutputRoot)
	if errRes != nil {
		return errRes, nil, nil
	}
	out := make([]caseSummary, 0, len(results))
	for _, r := range results {
		if input.MismatchesOnly && r.Match {
			continue
		}
		out = append(out, caseSummary{
			Name:           r.Name,
			Match:          r.Match,
			ReferenceTotal: r.Reference.Total,
			CandidateTotal: r.Candidate.Total,
		})
	}
	matched, mismatched := summary.Counts(results)
	return textResult(map[string]any{"matched": matched, "mismatched": mismatched, "cases": out})
}

type caseInput struct {
	OutputRoot string `json:"output_root"`
	Case       string `json:"case"`
}

func getCaseResultHandler(_ context.Context, _ *mcp.CallToolRequest, input caseInput) (*mcp.CallToolResult, any, error) {
	if input.Case == "" {
		return errorResult("case is required"), nil, nil
	}
	results, errRes := loadSummary(input.OutputRoot)
	if errRes != nil {
		return errRes, nil, nil
	}
	for _, r := range results {
		if r.Name == input.Case {
			return textResult(r)
		}
	}
	return errorResult(fmt.Sprintf("case %q not found", input.Case)), nil, nil
}

type manifestInput struct {
	Path              string `json:"path"`
	SkipExistence     bool   `json:"skip_existence,omitempty"`
	WarnEmptyExpected bool   `json:"warn_empty_expected,omitempty"`
}

func validateManifestHandler(_ context.Context, _ *mcp.CallToolRequest, input manifestInput) (*mcp.CallToolResult, any, error) {
	if input.Path == "" {
		return errorResult("path is required"), nil, nil
	}
	opts := manifest.ValidateOptions{SkipExistence: input.SkipExistence, WarnEmptyExpected: input.WarnEmptyExpected}
	m, err := manifest.Load(input.Path, opts.ParseOptions())
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	problems := manifest.Validate(m, opts)
	lines := make([]string, 0, len(problems))
	for _, p := range problems {
		lines = append(lines, p.String())
	}
	return textResult(map[string]any{
		"valid":    problems.Errors() == 0,
		"errors":   problems.Errors(),
		"warnings": problems.Warnings(),
		"cases":    len(m.Entries),
		"problems": lines,
	})
}

func loadSummary(root string) ([]domain.CaseResult, *mcp.CallToolResult) {
	if root == "" {
		return nil, errorResult("output_root is required")
	}
	results, err := summary.Load(filepath.Join(root, summary.SummaryFile))
	if err != nil {
		return nil, errorResult(err.Error())
	}
	if results == nil {
		return nil, errorResult("no summary found under " + root)
	}
	return results, nil
}

func textResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshal result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
