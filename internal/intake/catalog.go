package intake

import "strings"

// Recipient classifies who the coverage is for; it selects the synthesis template
type Recipient string

const (
	RecipientSelf    Recipient = "self"
	RecipientFamily  Recipient = "family"
	RecipientParents Recipient = "parents"
)

// Option is one selectable answer of a step
type Option struct {
	Label     string
	Recipient Recipient // only set for who-for options
}

// Catalog lists the options offered at each step
type Catalog struct {
	WhoFor   []Option
	AgeRange []Option
	Coverage []Option
}

// DefaultCatalog is the option set offered by the terminal client
var DefaultCatalog = Catalog{
	WhoFor: []Option{
		{Label: "Myself", Recipient: RecipientSelf},
		{Label: "My Family", Recipient: RecipientFamily},
		{Label: "My Parents", Recipient: RecipientParents},
	},
	AgeRange: []Option{
		{Label: "18-30 years"},
		{Label: "31-45 years"},
		{Label: "46-60 years"},
		{Label: "61+ years"},
	},
	Coverage: []Option{
		{Label: "Health Insurance"},
		{Label: "Life Insurance"},
		{Label: "Auto Insurance"},
	},
}

// Options returns the options offered in state, or nil in FreeText
func (c Catalog) Options(state State) []Option {
	switch state {
	case StepWhoFor:
		return c.WhoFor
	case StepAgeRange:
		return c.AgeRange
	case StepCoverageType:
		return c.Coverage
	default:
		return nil
	}
}

// Match finds the option of state whose label equals input, ignoring case
// and surrounding whitespace.
func (c Catalog) Match(state State, input string) (Option, bool) {
	input = strings.TrimSpace(input)
	for _, opt := range c.Options(state) {
		if strings.EqualFold(opt.Label, input) {
			return opt, true
		}
	}
	return Option{}, false
}
