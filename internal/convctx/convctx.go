// Package convctx adapts the NLU engine's context lists into a per-turn
// lookup/emission set. Contexts are the only cross-turn memory: the service
// never stores dialogue state itself, it only declares context transitions as
// output and expects them echoed back on the next request.
package convctx

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/kikilabs/kiki-reminders/internal/dialogflow"
)

// Set is one turn's view of the conversation contexts: the request's active
// contexts plus everything this turn has decided to emit. Lookups consult
// about-to-be-emitted contexts first because some single-turn confirmations
// read back a context produced earlier in the same turn.
type Set struct {
	session string
	emitted []dialogflow.Context
	request []dialogflow.Context
}

// New builds a Set from a webhook request. The request's output contexts are
// scanned before its input contexts.
func New(req *dialogflow.WebhookRequest) *Set {
	s := &Set{session: req.Session}
	s.request = append(s.request, req.QueryResult.OutputContexts...)
	s.request = append(s.request, req.QueryResult.InputContexts...)
	return s
}

// Has reports whether a live context with the given tag exists.
func (s *Set) Has(tag string) bool {
	return s.find(tag) != nil
}

// Param returns the named parameter of the context tagged tag, if present.
func (s *Set) Param(tag, name string) (string, bool) {
	c := s.find(tag)
	if c == nil {
		return "", false
	}
	v, ok := c.Parameters[name]
	if !ok {
		return "", false
	}
	return paramString(v), true
}

// find locates a live context by tag: exact match first, then substring
// fallback. The substring pass preserves historical behavior; it is fragile
// when two tags share a substring, which is why exact wins.
func (s *Set) find(tag string) *dialogflow.Context {
	pools := [][]dialogflow.Context{s.emitted, s.request}
	for _, pool := range pools {
		for i := range pool {
			c := &pool[i]
			if c.LifespanCount > 0 && dialogflow.ContextTag(c.Name) == tag {
				return c
			}
		}
	}
	for _, pool := range pools {
		for i := range pool {
			c := &pool[i]
			if c.LifespanCount > 0 && strings.Contains(c.Name, tag) {
				return c
			}
		}
	}
	return nil
}

// Emit declares a context transition for this turn's response, replacing any
// earlier emission of the same tag.
func (s *Set) Emit(tag string, lifespan int, params map[string]string) {
	c := dialogflow.Context{
		Name:          dialogflow.ContextName(s.session, tag),
		LifespanCount: lifespan,
	}
	if len(params) > 0 {
		c.Parameters = make(map[string]interface{}, len(params))
		for k, v := range params {
			c.Parameters[k] = v
		}
	}
	for i := range s.emitted {
		if dialogflow.ContextTag(s.emitted[i].Name) == tag {
			s.emitted[i] = c
			return
		}
	}
	s.emitted = append(s.emitted, c)
}

// Clear emits lifespan-0, parameterless transitions for the given tags,
// which the engine treats as removal.
func (s *Set) Clear(tags ...string) {
	for _, tag := range tags {
		s.Emit(tag, 0, nil)
	}
}

// Output returns the context transitions to include in the response.
func (s *Set) Output() []dialogflow.Context {
	if len(s.emitted) == 0 {
		return nil
	}
	out := make([]dialogflow.Context, len(s.emitted))
	copy(out, s.emitted)
	return out
}

// paramString renders a context parameter value as text. Our own emissions
// are always strings; values echoed back by the engine may be numbers.
func paramString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
