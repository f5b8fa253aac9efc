package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance_WhoForIsLocal(t *testing.T) {
	tr, err := DefaultCatalog.Advance(StepWhoFor, Selections{}, "My Family")
	require.NoError(t, err)

	assert.Equal(t, StepAgeRange, tr.Next)
	assert.False(t, tr.RequiresBackend)
	assert.Equal(t, "My Family", tr.Label)
	assert.Equal(t, "My Family", tr.Selections.ForWhom)
	assert.Equal(t, RecipientFamily, tr.Selections.Recipient)
	assert.Contains(t, tr.Reply, "My Family")
	assert.Empty(t, tr.Utterance)
}

func TestAdvance_MatchIgnoresCaseAndWhitespace(t *testing.T) {
	tr, err := DefaultCatalog.Advance(StepWhoFor, Selections{}, "  myself ")
	require.NoError(t, err)
	assert.Equal(t, "Myself", tr.Label)
	assert.Equal(t, RecipientSelf, tr.Selections.Recipient)
}

func TestAdvance_FullFlowSynthesizesUtterance(t *testing.T) {
	state := StepWhoFor
	var sel Selections

	for _, input := range []string{"Myself", "31-45 years"} {
		tr, err := DefaultCatalog.Advance(state, sel, input)
		require.NoError(t, err)
		require.False(t, tr.RequiresBackend)
		state, sel = tr.Next, tr.Selections
	}
	assert.Equal(t, StepCoverageType, state)

	tr, err := DefaultCatalog.Advance(state, sel, "Health Insurance")
	require.NoError(t, err)

	assert.Equal(t, FreeText, tr.Next)
	assert.True(t, tr.RequiresBackend)
	assert.True(t, tr.Selections.Complete())
	assert.Equal(t, "I'm 31 years old and need health insurance", tr.Utterance)
	assert.Equal(t, "Here's what I have so far: coverage for Myself, age range 31-45, health insurance.", tr.Summary)
}

func TestAdvance_FreeTextIsAbsorbing(t *testing.T) {
	sel := Selections{ForWhom: "Myself", AgeRange: "18-30 years", CoverageType: "Life Insurance"}

	tr, err := DefaultCatalog.Advance(FreeText, sel, "Myself")

	assert.ErrorIs(t, err, ErrFlowComplete)
	assert.Equal(t, FreeText, tr.Next)
	assert.Equal(t, sel, tr.Selections)
}

func TestAdvance_InvalidSelectionLeavesStateUnchanged(t *testing.T) {
	sel := Selections{ForWhom: "My Parents", Recipient: RecipientParents}

	tr, err := DefaultCatalog.Advance(StepAgeRange, sel, "Health Insurance")

	assert.ErrorIs(t, err, ErrInvalidSelection)
	assert.Equal(t, StepAgeRange, tr.Next)
	assert.Equal(t, sel, tr.Selections)
	assert.Empty(t, tr.Label)
}

func TestAdvance_StatesOnlyMoveForward(t *testing.T) {
	inputs := map[State][]string{
		StepWhoFor:       {"Myself", "My Family", "My Parents", "nonsense", ""},
		StepAgeRange:     {"18-30 years", "61+ years", "Myself"},
		StepCoverageType: {"Auto Insurance", "31-45 years"},
		FreeText:         {"anything", "Myself"},
	}
	for state, list := range inputs {
		for _, input := range list {
			tr, _ := DefaultCatalog.Advance(state, Selections{}, input)
			assert.GreaterOrEqual(t, tr.Next, state, "state %s input %q", state, input)
			assert.LessOrEqual(t, tr.Next, state+1, "state %s input %q", state, input)
		}
	}
}

func TestSynthesize(t *testing.T) {
	tests := []struct {
		name string
		sel  Selections
		want string
	}{
		{
			name: "self uses lower bound of range",
			sel:  Selections{Recipient: RecipientSelf, AgeRange: "31-45 years", CoverageType: "Health Insurance"},
			want: "I'm 31 years old and need health insurance",
		},
		{
			name: "self open-ended range",
			sel:  Selections{Recipient: RecipientSelf, AgeRange: "61+ years", CoverageType: "Life Insurance"},
			want: "I'm 61 years old and need life insurance",
		},
		{
			name: "family",
			sel:  Selections{Recipient: RecipientFamily, AgeRange: "18-30 years", CoverageType: "Auto Insurance"},
			want: "My family needs auto insurance, age range 18-30",
		},
		{
			name: "parents",
			sel:  Selections{Recipient: RecipientParents, AgeRange: "46-60 years", CoverageType: "Health Insurance"},
			want: "My parents need health insurance, they are 46-60 years old",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Synthesize(tt.sel))
		})
	}
}

func TestStateStringAndPrompt(t *testing.T) {
	assert.Equal(t, "step1_who_for", StepWhoFor.String())
	assert.Equal(t, "free_text", FreeText.String())
	assert.Equal(t, "state(9)", State(9).String())

	assert.NotEmpty(t, StepCoverageType.Prompt())
	assert.Empty(t, FreeText.Prompt())
}

func TestCatalogOptions(t *testing.T) {
	assert.Len(t, DefaultCatalog.Options(StepWhoFor), 3)
	assert.Len(t, DefaultCatalog.Options(StepAgeRange), 4)
	assert.Len(t, DefaultCatalog.Options(StepCoverageType), 3)
	assert.Nil(t, DefaultCatalog.Options(FreeText))

	_, ok := DefaultCatalog.Match(StepCoverageType, "Pet Insurance")
	assert.False(t, ok)
}
