package protocol

import (
	"fmt"
	"strings"
)

const minExplanationChars = 10

// Report captures the outcome of validating one model response.
type Report struct {
	Valid          bool
	TotalSteps     int
	IncompleteSteps int
	Reason         string
}

// Validate checks a parsed response against the structural contract.
// An empty checklist is a valid outcome and means the source chunk
// carries no relevant procedures. A non-empty checklist must cite its
// source, and a response where more than half of the steps lack a
// usable explanation or citation is rejected so the caller can retry.
func Validate(resp *ModelResponse) Report {
	report := Report{TotalSteps: len(resp.Checklist)}
	if len(resp.Checklist) == 0 {
		report.Valid = true
		return report
	}
	if len(resp.Citations) == 0 {
		report.Reason = "checklist present but citations array is empty"
		return report
	}
	for _, step := range resp.Checklist {
		if len(strings.TrimSpace(step.Explanation)) < minExplanationChars || step.CitationIndex == 0 {
			report.IncompleteSteps++
		}
	}
	if report.IncompleteSteps*2 > report.TotalSteps {
		report.Reason = fmt.Sprintf("%d of %d steps incomplete", report.IncompleteSteps, report.TotalSteps)
		return report
	}
	report.Valid = true
	return report
}
