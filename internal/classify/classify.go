// Package classify decides why a validator run failed, separating memory
// exhaustion from ordinary errors.
package classify

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/feedparity/feedparity-go/internal/domain"
	"github.com/feedparity/feedparity-go/internal/notices"
)

// SystemErrorsFile is the artifact validators write internal errors to.
const SystemErrorsFile = "system_errors.json"

// BenignCode is the system error code that does not by itself mark a run as
// failed.
const BenignCode = "i_o_error"

// exhaustionMarkers are matched against a sample's exception and message.
var exhaustionMarkers = []string{"OutOfMemoryError"}

// messageOnlyMarkers are matched against a sample's message only.
var messageOnlyMarkers = []string{"Java heap space"}

// Status is what is known about how the process exited. ReturnCode is nil
// when the process never produced one (timeout, spawn failure) or the value
// was not recorded; Success is nil when unknown.
type Status struct {
	ReturnCode *int
	Success    *bool
}

// Classify inspects outputDir and the exit status of one implementation.
func Classify(outputDir string, status Status) domain.FailureReason {
	data, _ := os.ReadFile(filepath.Join(outputDir, SystemErrorsFile))
	groups := systemErrorGroups(data)

	for _, g := range groups {
		for _, s := range g.Samples {
			exception := s.Get("exception").String()
			message := s.Get("message").String()
			if containsAny(exception, exhaustionMarkers) || containsAny(message, exhaustionMarkers) {
				return domain.FailureResourceExhaustion
			}
			if containsAny(message, messageOnlyMarkers) {
				return domain.FailureResourceExhaustion
			}
		}
	}

	if items := listedNotices(data); len(items) > 0 && allBenign(items) {
		return domain.FailureNone
	}

	if status.ReturnCode != nil {
		if *status.ReturnCode != 0 {
			return domain.FailureGenericError
		}
	} else if status.Success != nil && !*status.Success {
		return domain.FailureGenericError
	}
	return domain.FailureNone
}

// systemErrorGroups returns every coded group in the artifact, including
// groups without samples. A missing or unreadable file yields nothing.
func systemErrorGroups(data []byte) []notices.Group {
	if len(data) == 0 {
		return nil
	}
	groups, err := notices.Groups(data)
	if err != nil {
		return nil
	}
	return groups
}

// listedNotices returns every entry of the top-level notices list, coded or
// not.
func listedNotices(data []byte) []gjson.Result {
	if !gjson.ValidBytes(data) {
		return nil
	}
	list := gjson.GetBytes(data, "notices")
	if !list.IsArray() {
		return nil
	}
	return list.Array()
}

// allBenign reports whether every entry carries BenignCode. An entry without
// a code is not benign.
func allBenign(items []gjson.Result) bool {
	for _, item := range items {
		if item.Get("code").String() != BenignCode {
			return false
		}
	}
	return true
}

func containsAny(s string, markers []string) bool {
	if s == "" {
		return false
	}
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
