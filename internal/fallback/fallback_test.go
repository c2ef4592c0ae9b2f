package fallback

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRespond_Keywords(t *testing.T) {
	r := Default()

	cases := []struct {
		text string
		want string
	}{
		{"Hi!", GreetingResponse},
		{"HELLO there", GreetingResponse},
		{"hey", GreetingResponse},
		{"Thanks a lot", ThanksResponse},
		{"thank you so much", ThanksResponse},
		{"How do I register?", RegisterResponse},
		{"Which course should I take?", GreetingResponse}, // "which" contains "hi"
		{"Tell me about a course", CourseResponse},
		{"What is the price?", PriceResponse},
		{"What's the duration?", DurationResponse},
		{"I need support", SupportResponse},
		{"Can I get a job after?", JobResponse},
		{"random words", GenericResponse},
		{"", GenericResponse},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, r.Respond(tc.text), "text=%q", tc.text)
	}
}

func TestRespond_PriorityOrder(t *testing.T) {
	r := Default()
	require.Equal(t, GreetingResponse, r.Respond("hello, tell me about the course"))
	require.Equal(t, ThanksResponse, r.Respond("thanks, what about the price"))
	require.Equal(t, RegisterResponse, r.Respond("register for a course"))
	require.Equal(t, PriceResponse, r.Respond("price and duration"))
}

func TestMatch_ReturnsRuleName(t *testing.T) {
	rule, ok := Default().Match("what is the DURATION")
	require.True(t, ok)
	require.Equal(t, "duration", rule.Name)

	_, ok = Default().Match("unrelated words")
	require.False(t, ok)
}

func TestRules_DefaultOrder(t *testing.T) {
	var names []string
	for _, r := range Default().Rules() {
		names = append(names, r.Name)
	}
	require.Equal(t, []string{"greeting", "thanks", "register", "course", "price", "duration", "support", "job"}, names)
}

func TestNew_CustomRulesAndGeneric(t *testing.T) {
	r := New([]Rule{
		{Name: "skip-nil", Response: "never"},
		{Name: "skip-empty", Match: func(string) bool { return true }},
		{Name: "bootcamp", Match: func(s string) bool { return s == "bootcamp" }, Response: "Bootcamp info"},
	}, "fallback text")

	require.Len(t, r.Rules(), 1)
	require.Equal(t, "Bootcamp info", r.Respond("BOOTCAMP"))
	require.Equal(t, "fallback text", r.Respond("other"))
	require.Equal(t, "fallback text", r.Generic())
}

func TestNew_DefaultsGeneric(t *testing.T) {
	require.Equal(t, GenericResponse, New(nil, "  ").Generic())
}
