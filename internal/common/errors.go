package common

import (
	"errors"
	"net/http"
)

// ErrorRule maps errors matching Target (via errors.Is) to an API answer.
type ErrorRule struct {
	Target  error
	Status  int
	Code    string
	Message string // defaults to err.Error()
	Details func(err error) any
}

// ErrorMap renders errors using the first matching rule. Anything unmatched
// is a 500 whose message does not leak the underlying error.
type ErrorMap []ErrorRule

// Write renders err onto w.
func (m ErrorMap) Write(w http.ResponseWriter, err error) {
	for _, rule := range m {
		if rule.Target == nil || !errors.Is(err, rule.Target) {
			continue
		}
		msg := rule.Message
		if msg == "" {
			msg = err.Error()
		}
		var details any
		if rule.Details != nil {
			details = rule.Details(err)
		}
		JSONError(w, rule.Status, rule.Code, msg, details)
		return
	}
	JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}

// With returns a new map with extra rules checked after m's own.
func (m ErrorMap) With(rules ...ErrorRule) ErrorMap {
	out := make(ErrorMap, 0, len(m)+len(rules))
	return append(append(out, m...), rules...)
}
