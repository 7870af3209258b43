// Package domain holds the types shared by the parity harness: normalized
// notice counts, per-case results and the equivalence checks between them.
package domain

import "sort"

// UnknownFile is the file key used when a notice group cannot be attributed
// to a single input file.
const UnknownFile = "unknown"

// FileNotices maps an input file to a map of notice code to occurrence count.
type FileNotices map[string]map[string]int

// Add credits count occurrences of code to file.
func (f FileNotices) Add(file, code string, count int) {
	bucket, ok := f[file]
	if !ok {
		bucket = make(map[string]int)
		f[file] = bucket
	}
	bucket[code] += count
}

// Total returns the number of notices across all files and codes.
func (f FileNotices) Total() int {
	total := 0
	for _, codes := range f {
		for _, n := range codes {
			total += n
		}
	}
	return total
}

// ByCode folds the per-file breakdown into per-code totals.
func (f FileNotices) ByCode() map[string]int {
	out := make(map[string]int)
	for _, codes := range f {
		for code, n := range codes {
			out[code] += n
		}
	}
	return out
}

// Files returns the file keys in sorted order.
func (f FileNotices) Files() []string {
	files := make([]string, 0, len(f))
	for name := range f {
		files = append(files, name)
	}
	sort.Strings(files)
	return files
}

// Clone returns a deep copy.
func (f FileNotices) Clone() FileNotices {
	out := make(FileNotices, len(f))
	for file, codes := range f {
		bucket := make(map[string]int, len(codes))
		for code, n := range codes {
			bucket[code] = n
		}
		out[file] = bucket
	}
	return out
}

// Merge adds every count of extra into base and returns base. A nil base is
// allocated.
func Merge(base, extra FileNotices) FileNotices {
	if base == nil {
		base = make(FileNotices)
	}
	for file, codes := range extra {
		for code, n := range codes {
			base.Add(file, code, n)
		}
	}
	return base
}

// MatchByFile reports whether both breakdowns agree file by file.
func MatchByFile(a, b FileNotices) bool {
	return countsEqual(flatten(a), flatten(b))
}

// MatchByCode reports whether both breakdowns agree on per-code totals,
// regardless of file attribution.
func MatchByCode(a, b FileNotices) bool {
	return countsEqual(a.ByCode(), b.ByCode())
}

// flatten drops empty buckets so that {"a.txt": {}} equals {}.
func flatten(f FileNotices) map[string]int {
	out := make(map[string]int)
	for file, codes := range f {
		for code, n := range codes {
			out[file+"\x00"+code] += n
		}
	}
	return out
}

// countsEqual compares two count maps, treating zero counts as absent.
func countsEqual(a, b map[string]int) bool {
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	for k, v := range b {
		if a[k] != v {
			return false
		}
	}
	return true
}

// ImplResult records one implementation's run for a case.
type ImplResult struct {
	Success       bool          `json:"success"`
	ReturnCode    *int          `json:"return_code"`
	Total         int           `json:"total"`
	Duration      float64       `json:"duration"`
	Notices       FileNotices   `json:"notices"`
	Failed        bool          `json:"failed"`
	FailureReason FailureReason `json:"failure_reason"`
}

// CaseResult is one feed's parity verdict.
type CaseResult struct {
	Name        string     `json:"name"`
	Path        string     `json:"path"`
	Reference   ImplResult `json:"reference"`
	Candidate   ImplResult `json:"candidate"`
	Match       bool       `json:"match"`
	MatchByCode bool       `json:"match_by_code"`
	MatchByFile bool       `json:"match_by_file"`
}

// Decide fills the totals and match fields from the notices already set on
// both sides. A classified failure on either side forces Match to false.
func (c *CaseResult) Decide(mode MatchMode) {
	c.Reference.Total = c.Reference.Notices.Total()
	c.Candidate.Total = c.Candidate.Notices.Total()
	c.Reference.Failed = c.Reference.FailureReason.Failed()
	c.Candidate.Failed = c.Candidate.FailureReason.Failed()

	c.MatchByFile = MatchByFile(c.Reference.Notices, c.Candidate.Notices)
	c.MatchByCode = MatchByCode(c.Reference.Notices, c.Candidate.Notices)

	switch {
	case c.Reference.Failed, c.Candidate.Failed:
		c.Match = false
	case mode == ModeFile:
		c.Match = c.MatchByFile
	default:
		c.Match = c.MatchByCode
	}
}

// Side returns the result for impl.
func (c *CaseResult) Side(impl Implementation) *ImplResult {
	if impl == Reference {
		return &c.Reference
	}
	return &c.Candidate
}
