package resilience_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"

	"github.com/stuartshay/pwsh-azure-health-sub000/internal/resilience"
)

func respErr(code string, status int) error {
	return &azcore.ResponseError{ErrorCode: code, StatusCode: status}
}

func TestClassify_Nil(t *testing.T) {
	assert.Equal(t, resilience.ClassUnknown, resilience.Classify(nil))
}

func TestClassify_PermanentErrorCodes(t *testing.T) {
	codes := []string{
		"AuthorizationFailed",
		"InvalidAuthenticationToken",
		"InvalidSubscriptionId",
		"SubscriptionNotFound",
		"InvalidQuery",
		"RequestDisallowedByPolicy",
	}

	for _, code := range codes {
		t.Run(code, func(t *testing.T) {
			assert.Equal(t, resilience.ClassPermanent, resilience.Classify(respErr(code, http.StatusOK)))
		})
	}
}

func TestClassify_ByStatusCode(t *testing.T) {
	tests := []struct {
		status int
		want   resilience.Class
	}{
		{http.StatusUnauthorized, resilience.ClassPermanent},
		{http.StatusForbidden, resilience.ClassPermanent},
		{http.StatusBadRequest, resilience.ClassPermanent},
		{http.StatusTooManyRequests, resilience.ClassTransient},
		{http.StatusConflict, resilience.ClassTransient},
		{http.StatusInternalServerError, resilience.ClassTransient},
		{http.StatusBadGateway, resilience.ClassTransient},
		{http.StatusServiceUnavailable, resilience.ClassTransient},
		{http.StatusGatewayTimeout, resilience.ClassTransient},
		{http.StatusTeapot, resilience.ClassUnknown},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("status_%d", tc.status), func(t *testing.T) {
			assert.Equal(t, tc.want, resilience.Classify(respErr("SomeCode", tc.status)))
		})
	}
}

func TestClassify_WrappedResponseError(t *testing.T) {
	err := fmt.Errorf("querying health events: %w", respErr("AuthorizationFailed", http.StatusForbidden))

	assert.Equal(t, resilience.ClassPermanent, resilience.Classify(err))
}

func TestClassify_OpenBreakerIsPermanent(t *testing.T) {
	assert.Equal(t, resilience.ClassPermanent, resilience.Classify(gobreaker.ErrOpenState))
	assert.Equal(t, resilience.ClassPermanent, resilience.Classify(gobreaker.ErrTooManyRequests))
}

func TestClassify_MessageSniffing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want resilience.Class
	}{
		{"forbidden", errors.New("request forbidden"), resilience.ClassPermanent},
		{"invalid subscription", errors.New("invalid subscription identifier"), resilience.ClassPermanent},
		{"policy", errors.New("request was disallowed by policy"), resilience.ClassPermanent},
		{"throttled", errors.New("request throttled, slow down"), resilience.ClassTransient},
		{"server error", errors.New("500 internal server error"), resilience.ClassTransient},
		{"timeout", errors.New("read tcp: i/o timeout"), resilience.ClassTransient},
		{"conn refused", errors.New("dial tcp: connection refused"), resilience.ClassTransient},
		{"opaque", errors.New("something odd happened"), resilience.ClassUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, resilience.Classify(tc.err))
		})
	}
}

func TestClass_String(t *testing.T) {
	assert.Equal(t, "permanent", resilience.ClassPermanent.String())
	assert.Equal(t, "transient", resilience.ClassTransient.String())
	assert.Equal(t, "unknown", resilience.ClassUnknown.String())
}
