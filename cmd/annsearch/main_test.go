package main

import "testing"

func TestParseArgsRequiresExactlyOneMethod(t *testing.T) {
	_, err := parseArgs([]string{"-d", "base.fvecs", "-q", "q.fvecs", "-type", "sift"})
	if err == nil {
		t.Fatal("expected error when no method flag is given")
	}

	_, err = parseArgs([]string{"-d", "base.fvecs", "-q", "q.fvecs", "-type", "sift", "-lsh", "-ivfflat"})
	if err == nil {
		t.Fatal("expected error when two method flags are given")
	}
}

func TestParseArgsRequiresCoreFlags(t *testing.T) {
	if _, err := parseArgs([]string{"-lsh"}); err == nil {
		t.Fatal("expected error when -d/-q/-type are missing")
	}
}

func TestParseArgsRejectsUnknownType(t *testing.T) {
	_, err := parseArgs([]string{"-d", "b", "-q", "q", "-type", "bogus", "-lsh"})
	if err == nil {
		t.Fatal("expected error for unsupported -type value")
	}
}

func TestParseArgsSiftDefaultRadius(t *testing.T) {
	cfg, err := parseArgs([]string{"-d", "b", "-q", "q", "-type", "sift", "-ivfflat"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.r != 2.0 {
		t.Fatalf("sift default R = %v, want 2.0", cfg.r)
	}
}

func TestParseArgsMnistDefaultRadius(t *testing.T) {
	cfg, err := parseArgs([]string{"-d", "b", "-q", "q", "-type", "mnist", "-ivfflat"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.r != 2000.0 {
		t.Fatalf("mnist default R = %v, want 2000.0", cfg.r)
	}
}

func TestParseArgsExplicitRadiusOverridesDefault(t *testing.T) {
	cfg, err := parseArgs([]string{"-d", "b", "-q", "q", "-type", "sift", "-ivfflat", "-R", "5.5"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.r != 5.5 {
		t.Fatalf("explicit -R should not be overridden by the sift default, got %v", cfg.r)
	}
}

func TestIequals(t *testing.T) {
	if !iequals("SIFT", "sift") {
		t.Fatal("iequals should be case-insensitive")
	}
	if iequals("sift", "mnist") {
		t.Fatal("iequals should not match different strings")
	}
}
