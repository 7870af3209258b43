package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileNotices_TotalAndByCode(t *testing.T) {
	t.Parallel()
	f := FileNotices{}
	f.Add("stops.txt", "missing_id", 2)
	f.Add("trips.txt", "missing_id", 1)
	f.Add("trips.txt", "bad_time", 4)

	assert.Equal(t, 7, f.Total())
	assert.Equal(t, map[string]int{"missing_id": 3, "bad_time": 4}, f.ByCode())
	assert.Equal(t, []string{"stops.txt", "trips.txt"}, f.Files())
}

func TestMerge_Additive(t *testing.T) {
	t.Parallel()
	base := FileNotices{"stops.txt": {"a": 1}}
	extra := FileNotices{"stops.txt": {"a": 2, "b": 1}, "unknown": {"i_o_error": 1}}

	got := Merge(base, extra)
	assert.Equal(t, FileNotices{
		"stops.txt": {"a": 3, "b": 1},
		"unknown":   {"i_o_error": 1},
	}, got)

	assert.Equal(t, extra, Merge(nil, extra.Clone()))
	assert.Equal(t, base, Merge(base, nil))
}

func TestMatchByCode_Symmetric(t *testing.T) {
	t.Parallel()
	pairs := []struct {
		name string
		a, b FileNotices
	}{
		{"equal", FileNotices{"a.txt": {"x": 1}}, FileNotices{"a.txt": {"x": 1}}},
		{"moved file", FileNotices{"a.txt": {"x": 1}}, FileNotices{"b.txt": {"x": 1}}},
		{"different count", FileNotices{"a.txt": {"x": 3}}, FileNotices{}},
		{"extra code", FileNotices{"a.txt": {"x": 1}}, FileNotices{"a.txt": {"x": 1, "y": 2}}},
	}
	for _, tt := range pairs {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, MatchByCode(tt.a, tt.b), MatchByCode(tt.b, tt.a))
			assert.Equal(t, MatchByFile(tt.a, tt.b), MatchByFile(tt.b, tt.a))
			if MatchByFile(tt.a, tt.b) {
				assert.True(t, MatchByCode(tt.a, tt.b), "match by file implies match by code")
			}
		})
	}
}

func TestMatchByCode_LooserThanByFile(t *testing.T) {
	t.Parallel()
	a := FileNotices{"a.txt": {"x": 1}}
	b := FileNotices{"b.txt": {"x": 1}}
	assert.True(t, MatchByCode(a, b))
	assert.False(t, MatchByFile(a, b))
}

func TestMatch_EmptyBucketsIgnored(t *testing.T) {
	t.Parallel()
	assert.True(t, MatchByFile(FileNotices{"a.txt": {}}, FileNotices{}))
	assert.True(t, MatchByCode(FileNotices{"a.txt": {"x": 0}}, nil))
}

func TestDecide_ModeSelection(t *testing.T) {
	t.Parallel()
	c := CaseResult{
		Reference: ImplResult{Notices: FileNotices{"a.txt": {"x": 1}}, FailureReason: FailureNone},
		Candidate: ImplResult{Notices: FileNotices{"b.txt": {"x": 1}}, FailureReason: FailureNone},
	}
	c.Decide(ModeCode)
	assert.True(t, c.Match)
	assert.True(t, c.MatchByCode)
	assert.False(t, c.MatchByFile)
	assert.Equal(t, 1, c.Reference.Total)

	c.Decide(ModeFile)
	assert.False(t, c.Match)
}

func TestDecide_CountMismatch(t *testing.T) {
	t.Parallel()
	c := CaseResult{
		Reference: ImplResult{Notices: FileNotices{UnknownFile: {"x": 3}}, FailureReason: FailureNone},
		Candidate: ImplResult{Notices: FileNotices{}, FailureReason: FailureNone},
	}
	c.Decide(ModeCode)
	assert.False(t, c.MatchByCode)
	assert.False(t, c.Match)
	assert.False(t, c.Candidate.Failed)
}

func TestDecide_FailureForcesMismatch(t *testing.T) {
	t.Parallel()
	c := CaseResult{
		Reference: ImplResult{Notices: FileNotices{}, FailureReason: FailureResourceExhaustion},
		Candidate: ImplResult{Notices: FileNotices{}, FailureReason: FailureNone},
	}
	c.Decide(ModeCode)
	assert.True(t, c.MatchByCode)
	assert.True(t, c.Reference.Failed)
	assert.False(t, c.Match)
}

func TestCaseResult_JSONShape(t *testing.T) {
	t.Parallel()
	rc := 0
	c := CaseResult{
		Name:      "feed_zip",
		Path:      "/corpus/feed.zip",
		Reference: ImplResult{Success: true, ReturnCode: &rc, Notices: FileNotices{}, FailureReason: FailureNone},
		Candidate: ImplResult{Notices: FileNotices{}, FailureReason: FailureGenericError, Failed: true},
	}
	data, err := json.Marshal(c)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Contains(t, m, "match_by_code")
	assert.Contains(t, m, "match_by_file")
	ref := m["reference"].(map[string]any)
	assert.Equal(t, float64(0), ref["return_code"])
	assert.Equal(t, "none", ref["failure_reason"])
	cand := m["candidate"].(map[string]any)
	assert.Nil(t, cand["return_code"])
	assert.Equal(t, "generic_error", cand["failure_reason"])
}

func TestParseMatchMode(t *testing.T) {
	t.Parallel()
	m, err := ParseMatchMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeCode, m)

	m, err = ParseMatchMode("file")
	require.NoError(t, err)
	assert.Equal(t, ModeFile, m)

	_, err = ParseMatchMode("sample")
	assert.Error(t, err)
}

func TestValidateCaseResult(t *testing.T) {
	t.Parallel()
	assert.Error(t, ValidateCaseResult(CaseResult{}))
	assert.NoError(t, ValidateCaseResult(CaseResult{Name: "a"}))

	bad := CaseResult{Name: "a", Reference: ImplResult{FailureReason: "oom"}}
	err := ValidateCaseResult(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference")

	neg := CaseResult{Name: "a", Candidate: ImplResult{Notices: FileNotices{"a.txt": {"x": -1}}}}
	assert.Error(t, ValidateCaseResult(neg))
}
