package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestNewError(t *testing.T) {
	err := New(ErrCodeMissingContent, "dataset has no content block")

	if err.Code != ErrCodeMissingContent {
		t.Errorf("Expected code %s, got %s", ErrCodeMissingContent, err.Code)
	}
	if !strings.Contains(err.Error(), "MISSING_CONTENT") {
		t.Errorf("Error string should contain code: %s", err.Error())
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, ErrCodePageFetch, "ignored") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestWrapPreservesUnderlying(t *testing.T) {
	base := stderrors.New("connection refused")
	err := Wrap(base, ErrCodePageFetch, "fetch failed")

	if !stderrors.Is(err, base) {
		t.Error("wrapped error should match underlying via errors.Is")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Error string should include underlying: %s", err.Error())
	}
}

func TestWithContext(t *testing.T) {
	err := New(ErrCodePageNotFound, "page missing").WithContext("page_id", "12345")

	if err.Context["page_id"] != "12345" {
		t.Error("context value not stored")
	}
	if !strings.Contains(err.Error(), "page_id") {
		t.Errorf("Error string should include context: %s", err.Error())
	}
}

func TestIsCode(t *testing.T) {
	err := New(ErrCodeNoLanguageData, "empty content")

	if !IsCode(err, ErrCodeNoLanguageData) {
		t.Error("IsCode should match")
	}
	if IsCode(err, ErrCodeMissingContent) {
		t.Error("IsCode should not match a different code")
	}
	if IsCode(nil, ErrCodeNoLanguageData) {
		t.Error("IsCode(nil) should be false")
	}
	if IsCode(stderrors.New("plain"), ErrCodeNoLanguageData) {
		t.Error("IsCode on non-lockey error should be false")
	}
}

func TestGetCode(t *testing.T) {
	if GetCode(nil) != "" {
		t.Error("GetCode(nil) should be empty")
	}
	if GetCode(stderrors.New("plain")) != ErrCodeInternal {
		t.Error("GetCode on plain error should be INTERNAL")
	}
	if GetCode(New(ErrCodeAuthFailed, "bad PAT")) != ErrCodeAuthFailed {
		t.Error("GetCode should return the error's code")
	}
}

func TestUserFacing(t *testing.T) {
	err := New(ErrCodeAuthFailed, "401 from confluence").
		WithUserMessage("Authentication failed: check your PAT in settings")

	if UserFacing(err) != "Authentication failed: check your PAT in settings" {
		t.Errorf("unexpected user message: %s", UserFacing(err))
	}
	if UserFacing(stderrors.New("boom")) != "boom" {
		t.Error("plain errors fall back to Error()")
	}
}
