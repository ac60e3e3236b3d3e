package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestGetServiceErrorUnwrapsChain(t *testing.T) {
	base := NotFound("User not found")
	wrapped := fmt.Errorf("load profile: %w", base)

	got := GetServiceError(wrapped)
	if got == nil {
		t.Fatal("expected service error in chain")
	}
	if got.HTTPStatus != http.StatusNotFound {
		t.Errorf("status = %d", got.HTTPStatus)
	}
	if !Is(wrapped, CodeNotFound) {
		t.Error("Is(CodeNotFound) = false")
	}
}

func TestHTTPStatusDefaultsToInternal(t *testing.T) {
	if got := HTTPStatus(stderrors.New("boom")); got != http.StatusInternalServerError {
		t.Fatalf("status = %d", got)
	}
	if got := HTTPStatus(InsufficientFunds()); got != http.StatusBadRequest {
		t.Fatalf("insufficient funds status = %d", got)
	}
}

func TestWithDetailsAndUnwrap(t *testing.T) {
	cause := stderrors.New("dial tcp: timeout")
	err := Upstream("LLR API request failed", cause).WithDetails("operation", "submit")

	if !stderrors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	if err.Details["operation"] != "submit" {
		t.Errorf("details = %v", err.Details)
	}
	if err.Error() != "LLR API request failed: dial tcp: timeout" {
		t.Errorf("Error() = %q", err.Error())
	}
}
