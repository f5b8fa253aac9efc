// Package intake drives the guided selection phase that precedes free-text
// chat: three ordered steps (who needs coverage, age range, coverage type)
// whose answers are folded into one natural-language utterance for the
// assistant service.
package intake

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// State is a position in the intake flow. States only move forward.
type State int

const (
	StepWhoFor State = iota
	StepAgeRange
	StepCoverageType
	FreeText
)

func (s State) String() string {
	switch s {
	case StepWhoFor:
		return "step1_who_for"
	case StepAgeRange:
		return "step2_age_range"
	case StepCoverageType:
		return "step3_coverage_type"
	case FreeText:
		return "free_text"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Prompt is the question shown for the step, empty in FreeText
func (s State) Prompt() string {
	switch s {
	case StepWhoFor:
		return "Who needs coverage?"
	case StepAgeRange:
		return "What is the age range?"
	case StepCoverageType:
		return "What type of coverage are you looking for?"
	default:
		return ""
	}
}

var (
	// ErrFlowComplete is returned by Advance once FreeText is reached
	ErrFlowComplete = errors.New("intake flow already complete")
	// ErrInvalidSelection is returned when input matches no option of the current step
	ErrInvalidSelection = errors.New("selection does not match any option for this step")
)

// Selections accumulates one answer per step
type Selections struct {
	ForWhom      string    `json:"for_whom,omitempty"`
	Recipient    Recipient `json:"recipient,omitempty"`
	AgeRange     string    `json:"age_range,omitempty"`
	CoverageType string    `json:"coverage_type,omitempty"`
}

// Complete reports whether all three steps have been answered
func (s Selections) Complete() bool {
	return s.ForWhom != "" && s.AgeRange != "" && s.CoverageType != ""
}

// Transition is the result of advancing the flow by one selection
type Transition struct {
	Next       State
	Selections Selections
	// Label is the canonical label of the matched option.
	Label string
	// Reply is the local acknowledgment for steps that do not call the backend.
	Reply string
	// Utterance is the synthesized user sentence sent to the backend.
	Utterance string
	// Summary is shown in place of the backend reply when the call fails.
	Summary         string
	RequiresBackend bool
}

// Advance applies input as the answer to state. From FreeText it is a no-op
// returning the unchanged state with ErrFlowComplete; an input matching no
// option returns the unchanged state with ErrInvalidSelection.
func (c Catalog) Advance(state State, sel Selections, input string) (Transition, error) {
	unchanged := Transition{Next: state, Selections: sel}
	if state >= FreeText {
		return unchanged, ErrFlowComplete
	}

	opt, ok := c.Match(state, input)
	if !ok {
		return unchanged, ErrInvalidSelection
	}

	switch state {
	case StepWhoFor:
		sel.ForWhom = opt.Label
		sel.Recipient = opt.Recipient
		return Transition{
			Next:       StepAgeRange,
			Selections: sel,
			Label:      opt.Label,
			Reply:      fmt.Sprintf("Great choice! Let's plan coverage for %s. %s", opt.Label, StepAgeRange.Prompt()),
		}, nil

	case StepAgeRange:
		sel.AgeRange = opt.Label
		return Transition{
			Next:       StepCoverageType,
			Selections: sel,
			Label:      opt.Label,
			Reply:      fmt.Sprintf("Thanks! Age range %s noted. %s", opt.Label, StepCoverageType.Prompt()),
		}, nil

	default:
		sel.CoverageType = opt.Label
		return Transition{
			Next:            FreeText,
			Selections:      sel,
			Label:           opt.Label,
			Utterance:       Synthesize(sel),
			Summary:         Summarize(sel),
			RequiresBackend: true,
		}, nil
	}
}

var firstNumber = regexp.MustCompile(`\d+`)

// Synthesize turns completed selections into the sentence the assistant's
// language-driven extraction expects.
func Synthesize(sel Selections) string {
	coverage := strings.ToLower(sel.CoverageType)
	span := ageSpan(sel.AgeRange)

	switch sel.Recipient {
	case RecipientFamily:
		return fmt.Sprintf("My family needs %s, age range %s", coverage, span)
	case RecipientParents:
		return fmt.Sprintf("My parents need %s, they are %s years old", coverage, span)
	default:
		age := firstNumber.FindString(sel.AgeRange)
		if age == "" {
			age = span
		}
		return fmt.Sprintf("I'm %s years old and need %s", age, coverage)
	}
}

// Summarize restates the selections locally when the backend is unreachable
func Summarize(sel Selections) string {
	return fmt.Sprintf("Here's what I have so far: coverage for %s, age range %s, %s.",
		sel.ForWhom, ageSpan(sel.AgeRange), strings.ToLower(sel.CoverageType))
}

func ageSpan(label string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(label), "years"))
}
