package common

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

type urlRequest struct {
	URL string `validate:"required"`
}

func TestGenericEchoValidator_Valid(t *testing.T) {
	v := &GenericEchoValidator{}
	if err := v.Validate(&urlRequest{URL: "example.com"}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
}

func TestGenericEchoValidator_MissingField(t *testing.T) {
	v := &GenericEchoValidator{}
	err := v.Validate(&urlRequest{})
	if err == nil {
		t.Fatal("Expected error for missing URL")
	}

	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Expected *echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", httpErr.Code)
	}
	msg, _ := httpErr.Message.(string)
	if !strings.Contains(msg, "URL (required)") {
		t.Errorf("Expected message to name the failing field, got %q", msg)
	}
}
