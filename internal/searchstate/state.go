// Package searchstate holds the opaque search-view configuration blob and the
// operations the plugin is allowed to perform on it: sanitizing the live
// query, merging remembered state into a fresh view, and fingerprinting for
// drift detection. No field except "query" is ever interpreted.
package searchstate

import "encoding/json"

// State is a schema-less mapping of the search view's configuration
// (query text, toggles, sort order).
type State map[string]any

// QueryKey is the single field the plugin may strip or inject.
const QueryKey = "query"

// Clone returns a copy of s whose top-level keys can be mutated without
// affecting the original. Nested values are shared.
func Clone(s State) State {
	if s == nil {
		return nil
	}
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Sanitize prepares a state for persistence or comparison. With rememberQuery
// set it returns the state unchanged; otherwise it returns a copy with the
// query field removed. Applying it twice yields the same result.
func Sanitize(s State, rememberQuery bool) State {
	if s == nil || rememberQuery {
		return s
	}
	out := Clone(s)
	delete(out, QueryKey)
	return out
}

// Query extracts the query field, or "" when absent or not a string.
func Query(s State) string {
	if s == nil {
		return ""
	}
	q, _ := s[QueryKey].(string)
	return q
}

// WithQuery returns a copy of s with the query field set.
func WithQuery(s State, query string) State {
	out := Clone(s)
	if out == nil {
		out = make(State, 1)
	}
	out[QueryKey] = query
	return out
}

// Merge overlays remembered configuration onto a view's current state.
// Keys from overlay win; base keys absent from overlay survive.
func Merge(base, overlay State) State {
	if base == nil && overlay == nil {
		return nil
	}
	out := Clone(base)
	if out == nil {
		out = make(State, len(overlay))
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// Fingerprint returns the canonical serialization of a state. Map keys are
// emitted in sorted order, so structurally equal states always produce the
// same fingerprint regardless of construction order.
func Fingerprint(s State) string {
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(b)
}

// Equal reports full-structure deep equality, evaluated on the serialized
// form rather than field-by-field.
func Equal(a, b State) bool {
	return Fingerprint(a) == Fingerprint(b)
}
