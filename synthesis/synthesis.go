// Package synthesis turns raw specialist outputs into one user-facing
// response. It detects degenerate candidates (echoes of the question, bare
// clarifying questions, empty answers), merges multi-specialist
// contributions and guarantees a turn is never left silently unanswered.
package synthesis

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/petparlor/triage/core"
	"github.com/petparlor/triage/logging"
)

// Canned messages for policy outcomes. Every failure path ends in exactly one
// of these instead of silence.
const (
	// FallbackMessage replaces a turn whose every candidate was degenerate.
	FallbackMessage = "I couldn't find a concrete answer to that. Could you narrow the request down, for example with a date range or a customer name?"

	// InsufficientInformationMessage replaces a dependent consultation whose
	// identifier prerequisite could not be resolved.
	InsufficientInformationMessage = "I don't have enough information to complete that request. Please provide more details, such as the exact customer name, and try again."

	// TransientErrorMessage replaces a turn lost to runtime trouble or a
	// timeout. Session state is kept so the user can simply retry.
	TransientErrorMessage = "Something went wrong while contacting the assistant. Please try again in a moment."
)

// DefaultPrefixSlack is how many extra characters beyond the utterance a
// response may add and still count as an echo.
const DefaultPrefixSlack = 20

// defaultClarificationPatterns flag bare clarifying questions. Matching is
// anchored so substantive content before the question clears the candidate.
var defaultClarificationPatterns = []string{
	`^(could|can|would) you (please )?(clarify|specify|rephrase|explain|tell me)`,
	`^what (exactly )?do you mean`,
	`^which (customer|pet|booking|date|time|one) (do|did|are) you`,
	`^(please )?(clarify|specify|rephrase) `,
	`^i('m| am) not sure (what|which) you (mean|want)`,
}

// Contribution is one specialist's output for a turn.
type Contribution struct {
	Specialist string
	Text       string
	Payloads   []*core.Schedule
}

// Response is the synthesized result of a turn.
type Response struct {
	Text         string
	Payloads     []*core.Schedule
	IsDegenerate bool
}

// Options configure the synthesizer.
type Options struct {
	// PrefixSlack overrides DefaultPrefixSlack.
	PrefixSlack int
	// ClarificationPatterns replaces the default pattern set when non-nil.
	// Patterns match against the normalized candidate text.
	ClarificationPatterns []string
	Logger                logging.Logger
}

// Synthesizer applies the degenerate-response policy and merges
// contributions.
type Synthesizer struct {
	slack    int
	patterns []*regexp.Regexp
	logger   logging.Logger
}

// New creates a synthesizer. Invalid clarification patterns fail construction.
func New(optFns ...func(o *Options)) (*Synthesizer, error) {
	opts := Options{
		PrefixSlack: DefaultPrefixSlack,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	raw := opts.ClarificationPatterns
	if raw == nil {
		raw = defaultClarificationPatterns
	}
	patterns := make([]*regexp.Regexp, 0, len(raw))
	for _, p := range raw {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: clarification pattern %q: %v", core.ErrConfiguration, p, err)
		}
		patterns = append(patterns, re)
	}
	return &Synthesizer{slack: opts.PrefixSlack, patterns: patterns, logger: opts.Logger}, nil
}

var (
	punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// Normalize lowercases, strips punctuation and collapses whitespace so echo
// comparison ignores surface formatting.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = punctRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// IsDegenerate reports whether the candidate adds nothing over the utterance:
// empty, an echo (exact or prefix within the slack), or a bare clarifying
// question. Suppressed candidates are logged so the pattern set can be tuned.
func (s *Synthesizer) IsDegenerate(candidate, utterance string) bool {
	normCand := Normalize(candidate)
	if normCand == "" {
		return true
	}
	normUtt := Normalize(utterance)

	if normUtt != "" {
		if normCand == normUtt {
			s.logger.Info("degenerate candidate suppressed", "reason", "echo", "candidate", normCand)
			return true
		}
		if strings.HasPrefix(normCand, normUtt) && len(normCand) <= len(normUtt)+s.slack {
			s.logger.Info("degenerate candidate suppressed", "reason", "echo_prefix", "candidate", normCand)
			return true
		}
	}

	for _, re := range s.patterns {
		if re.MatchString(normCand) {
			s.logger.Info("degenerate candidate suppressed", "reason", "clarification", "pattern", re.String(), "candidate", normCand)
			return true
		}
	}
	return false
}

// Synthesize merges the turn's contributions. A contribution carrying a
// structured payload is always substantive; text-only contributions pass the
// degenerate check first. When nothing survives, the fallback message is
// returned so the turn still gets exactly one answer.
func (s *Synthesizer) Synthesize(contribs []Contribution, utterance string) Response {
	var kept []Contribution
	var payloads []*core.Schedule
	for _, c := range contribs {
		if len(c.Payloads) == 0 && s.IsDegenerate(c.Text, utterance) {
			continue
		}
		payloads = append(payloads, c.Payloads...)
		kept = append(kept, c)
	}

	if len(kept) == 0 {
		return Response{Text: FallbackMessage, IsDegenerate: true}
	}

	if len(kept) == 1 {
		return Response{Text: strings.TrimSpace(kept[0].Text), Payloads: payloads}
	}

	var b strings.Builder
	for i, c := range kept {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("## ")
		b.WriteString(headingFor(c.Specialist))
		if text := strings.TrimSpace(c.Text); text != "" {
			b.WriteString("\n\n")
			b.WriteString(text)
		}
	}
	return Response{Text: b.String(), Payloads: payloads}
}

// headingFor renders an agent name as a section heading
// (pet_api_agent -> "Pet Api Agent").
func headingFor(specialist string) string {
	words := strings.FieldsFunc(specialist, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	if len(words) == 0 {
		return specialist
	}
	return strings.Join(words, " ")
}
