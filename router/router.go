// Package router turns a user utterance plus session state into an ordered
// consultation plan. Matching is deterministic keyword classification against
// a configured intent table; semantic interpretation stays inside the
// specialists themselves.
package router

import (
	"fmt"
	"strings"

	"github.com/petparlor/triage/core"
	"github.com/petparlor/triage/logging"
)

// Dependency declares that an intent's specialist may only run after an
// identifier has been resolved by another specialist.
type Dependency struct {
	// Resolver is the agent that produces the identifier.
	Resolver string `yaml:"resolver"`
	// Key is the session key the identifier is cached under (e.g.
	// "customer_id").
	Key string `yaml:"key"`
	// Triggers are the utterance markers that make the dependency apply.
	// Without a trigger match the specialist runs unscoped.
	Triggers []string `yaml:"triggers"`
}

// Intent maps keywords to a specialist agent.
type Intent struct {
	Agent     string      `yaml:"agent"`
	Keywords  []string    `yaml:"keywords"`
	DependsOn *Dependency `yaml:"depends_on,omitempty"`
}

// Step is one planned specialist consultation. When NeedsKey is set the
// query contains a template placeholder that must be filled from session
// state (or a prior resolver step) before the specialist runs.
type Step struct {
	Agent       string
	Query       string
	ResolvesKey string
	NeedsKey    string
}

// Plan is the ordered consultation sequence for one turn. Direct means no
// specialist matched and the utterance is answered by the coordinator without
// delegation.
type Plan struct {
	Steps  []Step
	Direct bool
}

// Options configure the router.
type Options struct {
	Logger logging.Logger
}

// Router classifies utterances against the intent table.
type Router struct {
	intents []Intent
	logger  logging.Logger
}

// New creates a router over the given intent table.
func New(intents []Intent, optFns ...func(o *Options)) *Router {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Router{intents: intents, logger: opts.Logger}
}

// Route builds the consultation plan for the utterance. Resolver steps are
// always scheduled strictly before the steps that need their identifier; an
// identifier already cached in the session skips the resolver entirely.
func (r *Router) Route(sess *core.Session, utterance string) Plan {
	lowered := strings.ToLower(utterance)

	var steps []Step
	resolved := map[string]bool{} // dependency key -> resolver step already planned
	planned := map[string]int{}   // agent -> index in steps

	for _, intent := range r.intents {
		if !matchesAny(lowered, intent.Keywords) {
			continue
		}
		dep := intent.DependsOn
		if dep == nil || !matchesAny(lowered, dep.Triggers) {
			if _, ok := planned[intent.Agent]; ok {
				continue
			}
			planned[intent.Agent] = len(steps)
			steps = append(steps, Step{Agent: intent.Agent, Query: utterance})
			continue
		}

		_, cached := sess.Auth(dep.Key)
		if !cached && !resolved[dep.Key] {
			if i, ok := planned[dep.Resolver]; ok {
				// The resolver's intent also matched directly; upgrade that
				// step instead of consulting the agent twice.
				steps[i].Query = resolverQuery(dep.Key, utterance)
				steps[i].ResolvesKey = dep.Key
			} else {
				planned[dep.Resolver] = len(steps)
				steps = append(steps, Step{
					Agent:       dep.Resolver,
					Query:       resolverQuery(dep.Key, utterance),
					ResolvesKey: dep.Key,
				})
			}
			resolved[dep.Key] = true
		}
		if _, ok := planned[intent.Agent]; ok {
			continue
		}
		planned[intent.Agent] = len(steps)
		steps = append(steps, Step{
			Agent:    intent.Agent,
			Query:    scopedQuery(dep.Key, utterance),
			NeedsKey: dep.Key,
		})
	}

	if len(steps) == 0 {
		r.logger.Debug("no specialist matched", "utterance", utterance)
		return Plan{Direct: true}
	}

	r.logger.Debug("plan built", "steps", len(steps))
	return Plan{Steps: steps}
}

func matchesAny(lowered string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// resolverQuery asks the resolver agent for the record behind the utterance,
// insisting on the "id" field as the identifier.
func resolverQuery(key, utterance string) string {
	subject := strings.TrimSuffix(key, "_id")
	return fmt.Sprintf(
		"Identify the %s referenced in the following request and return the matching record as JSON. "+
			"Always use the value of the %q field as the identifier, never similar fields like %q or %q.\n\nRequest: %s",
		subject, "id", "userId", "uid", utterance,
	)
}

// scopedQuery appends the identifier filter as a template placeholder; the
// engine substitutes the resolved value before the specialist runs.
func scopedQuery(key, utterance string) string {
	return fmt.Sprintf("%s\n\nScope the query with parameter %q set to {{.%s}}.", utterance, paramName(key), key)
}

// paramName converts a snake_case session key to the camelCase query
// parameter the business APIs expect (customer_id -> customerId).
func paramName(key string) string {
	parts := strings.Split(key, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "" {
			continue
		}
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}
