package domain

import "fmt"

// ValidateCaseResult checks required fields on a CaseResult loaded from a
// prior summary.
func ValidateCaseResult(c CaseResult) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	for _, impl := range []Implementation{Reference, Candidate} {
		side := c.Side(impl)
		if side.FailureReason != "" && !side.FailureReason.Valid() {
			return fmt.Errorf("%s: invalid failure_reason: %q", impl, side.FailureReason)
		}
		if side.Duration < 0 {
			return fmt.Errorf("%s: duration must be non-negative, got %f", impl, side.Duration)
		}
		for file, codes := range side.Notices {
			for code, n := range codes {
				if n < 0 {
					return fmt.Errorf("%s: negative count for %s/%s", impl, file, code)
				}
			}
		}
	}
	return nil
}
