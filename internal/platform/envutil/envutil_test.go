package envutil

import "testing"

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("GUILDOPS_TEST_INT", "abc")
	if got := Int("GUILDOPS_TEST_INT", 7, nil); got != 7 {
		t.Fatalf("expected default, got %d", got)
	}
	t.Setenv("GUILDOPS_TEST_INT", " 42 ")
	if got := Int("GUILDOPS_TEST_INT", 7, nil); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestStringAndBool(t *testing.T) {
	t.Setenv("GUILDOPS_TEST_STR", "  ")
	if got := String("GUILDOPS_TEST_STR", "def", nil); got != "def" {
		t.Fatalf("blank value should use default, got %q", got)
	}
	t.Setenv("GUILDOPS_TEST_BOOL", "on")
	if !Bool("GUILDOPS_TEST_BOOL", false) {
		t.Fatalf("expected true")
	}
	t.Setenv("GUILDOPS_TEST_BOOL", "maybe")
	if Bool("GUILDOPS_TEST_BOOL", false) {
		t.Fatalf("unparseable value should use default")
	}
}
