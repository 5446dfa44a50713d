package config

import "testing"

func TestBootstrap_ScanFlags(t *testing.T) {
	b := Bootstrap{ScanUpgrade: true, ScanRestartActive: true}
	flags := b.ScanFlags()
	if !flags.Has(1 << 0) {
		t.Error("ScanUpgrade bit should be set")
	}
	if !flags.Has(1 << 3) {
		t.Error("ScanRestartActive bit should be set")
	}
	if flags.Has(1 << 1) {
		t.Error("ScanStopAllOnUpgrade bit should be clear")
	}
}

func TestBootstrap_ValidateRequiresDirectories(t *testing.T) {
	b := Bootstrap{ScanConcurrency: 1}
	if err := b.Validate(); err == nil {
		t.Fatal("expected an error for an empty directory list")
	}

	b.Directories = []string{"/plugins"}
	if err := b.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBootstrap_ValidateRequiresPositiveConcurrency(t *testing.T) {
	b := Bootstrap{Directories: []string{"/plugins"}, ScanConcurrency: 0}
	if err := b.Validate(); err == nil {
		t.Fatal("expected an error for non-positive scan concurrency")
	}
}
