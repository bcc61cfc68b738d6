package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestToDomainErrorMapsDeadlineToRetryableUpstream(t *testing.T) {
	err := fmt.Errorf("query tickets: %w", context.DeadlineExceeded)

	de := ToDomainError(err)
	if de.Code != CodeUpstreamUnavailable {
		t.Fatalf("expected %s, got %s", CodeUpstreamUnavailable, de.Code)
	}
	if !de.Retryable {
		t.Fatalf("expected timeout to be retryable")
	}
	if de.HTTPStatus != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", de.HTTPStatus)
	}
}

func TestToDomainErrorHidesInternalDetails(t *testing.T) {
	de := ToDomainError(errors.New("pq: relation tickets_0xdeadbeef does not exist"))
	if de.Code != CodeInternal {
		t.Fatalf("expected internal error, got %s", de.Code)
	}
	if de.Message != "internal server error" {
		t.Fatalf("expected generic message, got %q", de.Message)
	}
}

func TestTransitionDeniedCarriesTransitionAndRole(t *testing.T) {
	err := NewTransitionDenied("open", "resolved", "tenant", "tenants cannot resolve tickets")
	if !HasCode(err, CodeTransitionDenied) {
		t.Fatalf("expected transition denied code")
	}
	de := ToDomainError(err)
	if de.Details["from"] != "open" || de.Details["to"] != "resolved" || de.Details["role"] != "tenant" {
		t.Fatalf("unexpected details: %v", de.Details)
	}
}

func TestHasCodeSeesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("claim: %w", NewConcurrentModification("ticket", nil))
	if !HasCode(err, CodeConcurrentModification) {
		t.Fatalf("expected wrapped concurrent modification to be detected")
	}
	if HasCode(err, CodeNotFound) {
		t.Fatalf("did not expect not found code")
	}
}
