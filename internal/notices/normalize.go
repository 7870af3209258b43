// Package notices reduces validator reports into per-file notice counts.
//
// Two report schemas are accepted. They differ in how the declared total and
// the sample list are spelled, so each field is read through a fixed,
// priority-ordered list of accessors instead of per-schema branching.
package notices

import (
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"github.com/feedparity/feedparity-go/internal/domain"
)

// ErrNoData is returned when a report is absent or cannot be decoded. It is
// distinct from an empty result so callers can fall back to cached counts.
var ErrNoData = errors.New("notices: no data")

// accessor reads one candidate spelling of a field.
type accessor func(gjson.Result) gjson.Result

func key(name string) accessor {
	return func(r gjson.Result) gjson.Result { return r.Get(name) }
}

var (
	codeAccessors         = []accessor{key("code")}
	countAccessors        = []accessor{key("totalNotices"), key("total_notices")}
	sampleAccessors       = []accessor{key("sampleNotices"), key("notices")}
	sampleFileAccessors   = []accessor{key("filename"), key("childFilename"), key("parentFilename")}
	groupFileAccessors    = []accessor{key("filename"), key("file")}
	topLevelListAccessors = []accessor{key("notices")}
)

// present accepts any non-null value.
func present(r gjson.Result) bool {
	return r.Exists() && r.Type != gjson.Null
}

// truthy mirrors how reports signal "set": non-empty strings and arrays.
func truthy(r gjson.Result) bool {
	switch {
	case !present(r):
		return false
	case r.IsArray():
		return len(r.Array()) > 0
	case r.Type == gjson.String:
		return r.Str != ""
	case r.Type == gjson.False:
		return false
	case r.Type == gjson.Number:
		return r.Num != 0
	}
	return true
}

// first returns the first accessor result accepted by ok.
func first(r gjson.Result, accessors []accessor, ok func(gjson.Result) bool) (gjson.Result, bool) {
	for _, get := range accessors {
		if v := get(r); ok(v) {
			return v, true
		}
	}
	return gjson.Result{}, false
}

// Group is one notice group as read from a report.
type Group struct {
	Code    string
	Count   int
	Samples []gjson.Result
	Raw     gjson.Result
}

// Groups decodes the notice groups of a report. Groups without a code are
// skipped; an absent count is inferred from the sample list length.
func Groups(data []byte) ([]Group, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrNoData)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: report is not an object", ErrNoData)
	}

	list, ok := first(doc, topLevelListAccessors, func(r gjson.Result) bool { return r.IsArray() })
	if !ok {
		return nil, nil
	}

	var groups []Group
	for _, item := range list.Array() {
		code, ok := first(item, codeAccessors, truthy)
		if !ok {
			continue
		}
		var samples []gjson.Result
		if s, ok := first(item, sampleAccessors, truthy); ok && s.IsArray() {
			samples = s.Array()
		}
		count := len(samples)
		if c, ok := first(item, countAccessors, present); ok {
			count = int(c.Int())
		}
		groups = append(groups, Group{
			Code:    code.String(),
			Count:   count,
			Samples: samples,
			Raw:     item,
		})
	}
	return groups, nil
}

// Normalize reduces a report into per-file notice counts.
func Normalize(data []byte) (domain.FileNotices, error) {
	groups, err := Groups(data)
	if err != nil {
		return nil, err
	}
	out := make(domain.FileNotices)
	for _, g := range groups {
		credit(out, g)
	}
	return out, nil
}

// credit attributes a group's count. When the samples cover the whole total
// each sample is credited once; when they agree on one file the total goes
// there; otherwise the total is filed under domain.UnknownFile.
func credit(out domain.FileNotices, g Group) {
	if g.Count == 0 {
		return
	}
	if len(g.Samples) == 0 {
		file := domain.UnknownFile
		if v, ok := first(g.Raw, groupFileAccessors, truthy); ok {
			file = v.String()
		}
		out.Add(file, g.Code, g.Count)
		return
	}

	files := make([]string, len(g.Samples))
	distinct := make(map[string]struct{})
	for i, s := range g.Samples {
		files[i] = SampleFile(s)
		distinct[files[i]] = struct{}{}
	}

	switch {
	case g.Count == len(files):
		for _, f := range files {
			out.Add(f, g.Code, 1)
		}
	case len(distinct) == 1:
		out.Add(files[0], g.Code, g.Count)
	default:
		out.Add(domain.UnknownFile, g.Code, g.Count)
	}
}

// SampleFile infers the input file a sample refers to.
func SampleFile(sample gjson.Result) string {
	if !sample.IsObject() {
		return domain.UnknownFile
	}
	if v, ok := first(sample, sampleFileAccessors, truthy); ok {
		return v.String()
	}
	return domain.UnknownFile
}

// LoadFile normalizes the report at path. A missing or unreadable file
// yields ErrNoData.
func LoadFile(path string) (domain.FileNotices, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoData, err)
	}
	out, err := Normalize(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// LoadFirst normalizes the first path that yields data, trying them in order.
func LoadFirst(paths ...string) (domain.FileNotices, error) {
	err := ErrNoData
	for _, p := range paths {
		var out domain.FileNotices
		out, err = LoadFile(p)
		if err == nil {
			return out, nil
		}
	}
	return nil, err
}
