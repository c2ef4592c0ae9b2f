// Package fallback answers chat messages from a fixed table of keyword rules
// when the completion API cannot be reached.
package fallback

import "strings"

// Rule pairs a predicate over lowercased user text with a canned response.
type Rule struct {
	Name     string
	Match    func(lower string) bool
	Response string
}

// Responder evaluates its rules in order; the first match wins.
type Responder struct {
	rules   []Rule
	generic string
}

// Canned responses.
const (
	GreetingResponse = "Hello! Welcome to our tech academy. I can help you with course information, registration, pricing and career support. What would you like to know?"
	ThanksResponse   = "You're welcome! If you have any other questions about our courses or registration, just ask."
	RegisterResponse = "To register, open the Registration page, fill in your details and choose a course. Our team will confirm your enrollment by email within 24 hours."
	CourseResponse   = "We offer courses in Web Development, Data Science, Cloud Computing, Cybersecurity and Mobile Development. Visit the Courses page for the full curriculum of each program."
	PriceResponse    = "Course fees depend on the program and the schedule you choose. Check the Courses page for current prices, or contact our admissions team for installment options."
	DurationResponse = "Most of our programs run between 8 and 16 weeks, with both weekday and weekend schedules available."
	SupportResponse  = "Our support team is available Monday to Saturday. You can reach us from the Contact page or by email, and enrolled students can also use the dashboard help desk."
	JobResponse      = "We provide career support including CV reviews, interview preparation and introductions to our hiring partners once you complete your program."
	GenericResponse  = "Thanks for your message! I'm having trouble reaching our assistant right now. Please ask about our courses, registration, pricing, duration or support, or contact our team directly."
)

// DefaultRules returns the standard rule table in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "greeting", Match: containsAny("hello", "hi", "hey"), Response: GreetingResponse},
		{Name: "thanks", Match: containsAny("thanks", "thank you"), Response: ThanksResponse},
		{Name: "register", Match: containsAny("register"), Response: RegisterResponse},
		{Name: "course", Match: containsAny("course"), Response: CourseResponse},
		{Name: "price", Match: containsAny("price"), Response: PriceResponse},
		{Name: "duration", Match: containsAny("duration"), Response: DurationResponse},
		{Name: "support", Match: containsAny("support"), Response: SupportResponse},
		{Name: "job", Match: containsAny("job"), Response: JobResponse},
	}
}

// New returns a Responder over the given rules. A nil rule list selects
// DefaultRules; an empty generic response selects GenericResponse.
func New(rules []Rule, generic string) *Responder {
	if rules == nil {
		rules = DefaultRules()
	}
	if strings.TrimSpace(generic) == "" {
		generic = GenericResponse
	}
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Match == nil || strings.TrimSpace(r.Response) == "" {
			continue
		}
		out = append(out, r)
	}
	return &Responder{rules: out, generic: generic}
}

// Default returns a Responder over DefaultRules.
func Default() *Responder {
	return New(nil, "")
}

// Match returns the first rule matching text.
func (r *Responder) Match(text string) (Rule, bool) {
	lower := strings.ToLower(text)
	for _, rule := range r.rules {
		if rule.Match(lower) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Respond returns the response of the first matching rule, or the generic
// response when nothing matches. The result is never empty.
func (r *Responder) Respond(text string) string {
	if rule, ok := r.Match(text); ok {
		return rule.Response
	}
	return r.generic
}

// Generic returns the no-match response.
func (r *Responder) Generic() string {
	return r.generic
}

// Rules returns a copy of the rule table in evaluation order.
func (r *Responder) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

func containsAny(keywords ...string) func(string) bool {
	return func(lower string) bool {
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				return true
			}
		}
		return false
	}
}
