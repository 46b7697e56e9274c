package config

import (
	"reflect"
	"testing"
	"time"
)

func TestPort(t *testing.T) {
	t.Setenv("TEST_PORT", "8085")
	if p, err := Port("TEST_PORT", "1"); err != nil || p != "8085" {
		t.Fatalf("expected 8085, got %q (%v)", p, err)
	}
	t.Setenv("TEST_PORT", "70000")
	if _, err := Port("TEST_PORT", "1"); err == nil {
		t.Fatal("expected error for out of range port")
	}
	if p, err := Port("TEST_PORT_UNSET", "9095"); err != nil || p != "9095" {
		t.Fatalf("expected fallback, got %q (%v)", p, err)
	}
}

func TestIntAndSeconds(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if got := Int("TEST_INT", 7); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	t.Setenv("TEST_INT", "-3")
	if got := Int("TEST_INT", 7); got != 7 {
		t.Fatalf("expected fallback for negative, got %d", got)
	}
	t.Setenv("TEST_SECONDS", "3")
	if got := Seconds("TEST_SECONDS", time.Minute); got != 3*time.Second {
		t.Fatalf("expected 3s, got %s", got)
	}
	t.Setenv("TEST_SECONDS", "soon")
	if got := Seconds("TEST_SECONDS", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %s", got)
	}
}

func TestBool(t *testing.T) {
	tests := map[string]bool{"true": true, "YES": true, " on ": true, "0": false, "off": false}
	for raw, want := range tests {
		t.Setenv("TEST_BOOL", raw)
		if got := Bool("TEST_BOOL", !want); got != want {
			t.Fatalf("Bool(%q) = %v, want %v", raw, got, want)
		}
	}
	t.Setenv("TEST_BOOL", "maybe")
	if !Bool("TEST_BOOL", true) {
		t.Fatal("expected fallback for unrecognised value")
	}
}

func TestList(t *testing.T) {
	t.Setenv("TEST_LIST", " a, ,b ,c")
	if got := List("TEST_LIST", ""); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected list: %v", got)
	}
	if got := List("TEST_LIST_UNSET", "GET,POST"); !reflect.DeepEqual(got, []string{"GET", "POST"}) {
		t.Fatalf("unexpected fallback list: %v", got)
	}
}

func TestLocation(t *testing.T) {
	if loc, err := Location("TEST_TZ_UNSET", "UTC"); err != nil || loc != time.UTC {
		t.Fatalf("expected UTC, got %v (%v)", loc, err)
	}
	t.Setenv("TEST_TZ", "Not/AZone")
	if _, err := Location("TEST_TZ", "UTC"); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}
