// Package resilience provides bounded-retry execution with error
// classification and circuit breaking for calls to Azure services.
package resilience

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/sony/gobreaker/v2"
)

// Class is the retry classification of an error.
type Class int

const (
	// ClassUnknown errors are retried like transient ones, but logged with a
	// generic message since we cannot tell what went wrong.
	ClassUnknown Class = iota

	// ClassTransient errors (throttling, 5xx, conflicts) are retried with
	// exponential backoff.
	ClassTransient

	// ClassPermanent errors (authorization, invalid identifiers, policy
	// denials) fail immediately without retrying.
	ClassPermanent
)

// String returns the class name for logging.
func (c Class) String() string {
	switch c {
	case ClassPermanent:
		return "permanent"
	case ClassTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Permanent service error codes that retrying cannot fix.
var permanentErrorCodes = map[string]struct{}{
	"AuthorizationFailed":        {},
	"InvalidAuthenticationToken": {},
	"InvalidSubscriptionId":      {},
	"SubscriptionNotFound":       {},
	"InvalidQuery":               {},
	"RequestDisallowedByPolicy":  {},
}

// Classify inspects an error and decides whether it is worth retrying.
// Structured Azure responses are classified by status and error code;
// anything else falls back to message sniffing.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}

	// An open breaker means the upstream is already known to be failing;
	// burning the retry budget on it helps nobody.
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ClassPermanent
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		if _, ok := permanentErrorCodes[respErr.ErrorCode]; ok {
			return ClassPermanent
		}
		switch respErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusBadRequest:
			return ClassPermanent
		case http.StatusTooManyRequests, http.StatusConflict,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return ClassTransient
		}
		return ClassUnknown
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg,
		"forbidden", "unauthorized", "authorization failed",
		"invalid subscription", "disallowed by policy", "invalid query"):
		return ClassPermanent
	case containsAny(msg,
		"429", "too many requests", "throttl",
		"500", "internal server error",
		"503", "service unavailable",
		"504", "gateway timeout",
		"409", "conflict",
		"connection reset", "connection refused", "i/o timeout"):
		return ClassTransient
	default:
		return ClassUnknown
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
