// Package testing is blank-imported by test files so the binaries and config
// loader see a safe environment before any test runs.
package testing

import (
	"os"
	stdtesting "testing"
)

var defaults = map[string]string{
	"SCHOLARIS_TEST_MODE": "1",
	"JWT_SECRET":          "scholaris-test-secret",
}

func init() {
	applyDefaults()
}

// applyDefaults never overrides a value the caller exported.
func applyDefaults() {
	for key, value := range defaults {
		if _, ok := os.LookupEnv(key); !ok {
			_ = os.Setenv(key, value)
		}
	}
}

// TestMain can be reused by packages that declare no TestMain of their own.
func TestMain(m *stdtesting.M) {
	applyDefaults()
	os.Exit(m.Run())
}
