package app

import (
	"testing"

	_ "github.com/meridian-crm/meridian-crm/internal/testing/guard"
)

func TestGuardEnablesTestMode(t *testing.T) {
	RefreshTestMode()
	if !InTestMode() {
		t.Fatal("expected MERIDIAN_TEST_MODE to be set by the guard package")
	}
}

func TestRefreshTestModeTracksEnvironment(t *testing.T) {
	t.Setenv("MERIDIAN_TEST_MODE", "0")
	RefreshTestMode()
	if InTestMode() {
		t.Fatal("expected test mode off after unsetting the flag")
	}

	t.Setenv("MERIDIAN_TEST_MODE", "1")
	RefreshTestMode()
	if !InTestMode() {
		t.Fatal("expected test mode on after setting the flag")
	}
}
