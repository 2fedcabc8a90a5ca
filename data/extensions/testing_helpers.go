package extensions

import (
	"errors"
	"testing"
)

func AssertAreEqual[T comparable](t *testing.T, name string, expected T, actual T) {
	t.Helper()
	if expected != actual {
		t.Fatalf("value mismatch for %s, expected %v, got %v", name, expected, actual)
	}
}

func AssertNillability[T comparable](t *testing.T, name string, expected bool, actual *T) {
	t.Helper()
	if (actual == nil) != expected {
		t.Fatalf("value mismatch for %s, expected %v, got %v", name, expected, (actual == nil))
	}
}

func AssertErrorIs(t *testing.T, name string, expected error, actual error) {
	t.Helper()
	if !errors.Is(actual, expected) {
		t.Fatalf("error mismatch for %s, expected %v, got %v", name, expected, actual)
	}
}
