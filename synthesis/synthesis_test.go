package synthesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petparlor/triage/core"
)

func newSynth(t *testing.T, optFns ...func(o *Options)) *Synthesizer {
	t.Helper()
	s, err := New(optFns...)
	require.NoError(t, err)
	return s
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "what are my bookings today", Normalize("What are my bookings, today?!"))
	assert.Equal(t, "a b c", Normalize("  a\n\tb   c  "))
	assert.Equal(t, "", Normalize("  ...  "))
}

func TestEchoExactIgnoringCase(t *testing.T) {
	s := newSynth(t)
	assert.True(t, s.IsDegenerate("What are my bookings today", "what are my bookings today"))
}

func TestEchoWithinPrefixSlack(t *testing.T) {
	s := newSynth(t)
	assert.True(t, s.IsDegenerate("what are my bookings today, you ask", "what are my bookings today"))
	// Past the slack the extra content counts as substance.
	assert.False(t, s.IsDegenerate(
		"what are my bookings today: you have three, all in the morning, starting at nine",
		"what are my bookings today",
	))
}

func TestClarificationPattern(t *testing.T) {
	s := newSynth(t)
	assert.True(t, s.IsDegenerate("Could you clarify what date range you mean?", "show my bookings"))
}

func TestSubstantiveResponseNotDegenerate(t *testing.T) {
	s := newSynth(t)
	assert.False(t, s.IsDegenerate("You have 3 bookings today: ...", "what are my bookings today"))
}

func TestEmptyResponseDegenerate(t *testing.T) {
	s := newSynth(t)
	assert.True(t, s.IsDegenerate("", "anything"))
	assert.True(t, s.IsDegenerate("   ", "anything"))
}

func TestCustomPatterns(t *testing.T) {
	s := newSynth(t, func(o *Options) {
		o.ClarificationPatterns = []string{`^custom trigger`}
	})
	assert.True(t, s.IsDegenerate("Custom trigger fired", "x"))
	// The defaults are replaced, not extended.
	assert.False(t, s.IsDegenerate("Could you clarify what you mean?", "x"))
}

func TestNewRejectsBadPattern(t *testing.T) {
	_, err := New(func(o *Options) {
		o.ClarificationPatterns = []string{`([`}
	})
	require.Error(t, err)
}

func TestSynthesizeSingleContribution(t *testing.T) {
	s := newSynth(t)
	resp := s.Synthesize([]Contribution{
		{Specialist: "booking_api_agent", Text: "You have 3 bookings today."},
	}, "what are my bookings today")

	assert.False(t, resp.IsDegenerate)
	assert.Equal(t, "You have 3 bookings today.", resp.Text)
}

func TestSynthesizeMergesUnderHeadings(t *testing.T) {
	s := newSynth(t)
	resp := s.Synthesize([]Contribution{
		{Specialist: "pet_api_agent", Text: "Jane has two dogs."},
		{Specialist: "booking_api_agent", Text: "Next booking is Friday."},
	}, "pets and bookings for customer Jane")

	assert.Contains(t, resp.Text, "## Pet Api Agent")
	assert.Contains(t, resp.Text, "Jane has two dogs.")
	assert.Contains(t, resp.Text, "## Booking Api Agent")
	assert.Contains(t, resp.Text, "Next booking is Friday.")
}

func TestHeadingFor(t *testing.T) {
	assert.Equal(t, "Pet Api Agent", headingFor("pet_api_agent"))
	assert.Equal(t, "Über Agent", headingFor("über_agent"))
}

func TestSynthesizeDropsDegenerateKeepsRest(t *testing.T) {
	s := newSynth(t)
	resp := s.Synthesize([]Contribution{
		{Specialist: "pet_api_agent", Text: "Could you clarify what you mean?"},
		{Specialist: "booking_api_agent", Text: "Next booking is Friday."},
	}, "pets and bookings")

	assert.False(t, resp.IsDegenerate)
	assert.Equal(t, "Next booking is Friday.", resp.Text)
	assert.NotContains(t, resp.Text, "clarify")
}

func TestSynthesizeAllDegenerateFallsBack(t *testing.T) {
	s := newSynth(t)
	resp := s.Synthesize([]Contribution{
		{Specialist: "pet_api_agent", Text: ""},
		{Specialist: "booking_api_agent", Text: "pets and bookings"},
	}, "pets and bookings")

	assert.True(t, resp.IsDegenerate)
	assert.Equal(t, FallbackMessage, resp.Text)
}

func TestSynthesizeEmptyInputFallsBack(t *testing.T) {
	s := newSynth(t)
	resp := s.Synthesize(nil, "anything")
	assert.True(t, resp.IsDegenerate)
	assert.Equal(t, FallbackMessage, resp.Text)
}

func TestSynthesizePayloadIsAlwaysSubstantive(t *testing.T) {
	s := newSynth(t)
	sched := &core.Schedule{Bookings: []core.Booking{{ID: "b1", Date: "2024-03-20", Address: "123 Main St"}}}
	resp := s.Synthesize([]Contribution{
		{Specialist: "scheduling", Text: "", Payloads: []*core.Schedule{sched}},
	}, "optimize my schedule")

	assert.False(t, resp.IsDegenerate)
	require.Len(t, resp.Payloads, 1)
	assert.Equal(t, "b1", resp.Payloads[0].Bookings[0].ID)
}

func TestSynthesizeUnionsPayloads(t *testing.T) {
	s := newSynth(t)
	a := &core.Schedule{Bookings: []core.Booking{{ID: "a", Date: "d", Address: "x"}}}
	b := &core.Schedule{Bookings: []core.Booking{{ID: "b", Date: "d", Address: "y"}}}
	resp := s.Synthesize([]Contribution{
		{Specialist: "scheduling", Text: "Route A", Payloads: []*core.Schedule{a}},
		{Specialist: "importer", Text: "Route B", Payloads: []*core.Schedule{b}},
	}, "plan routes")

	require.Len(t, resp.Payloads, 2)
	assert.Equal(t, "a", resp.Payloads[0].Bookings[0].ID)
	assert.Equal(t, "b", resp.Payloads[1].Bookings[0].ID)
}
