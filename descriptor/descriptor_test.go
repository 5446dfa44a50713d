package descriptor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gopluginhost/pluginhost/plugin"
)

func writeManifest(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

func TestParse_MinimalManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "identifier: sample\n")

	d, err := New().Parse(dir)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Identifier != "sample" {
		t.Errorf("Identifier = %q, want sample", d.Identifier)
	}
	if d.InstallPath != dir {
		t.Errorf("InstallPath = %q, want %q", d.InstallPath, dir)
	}
}

func TestParse_FullManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
identifier: consumer
version: "1.2.3"
provider_name: Acme
imports:
  - target_id: provider
    version: "1.0"
    rule: compatible
    optional: false
lib:
  path: provider.so
  start_symbol: plugin_start
  stop_symbol: plugin_stop
extension_points:
  - local_id: slot
    display_name: Slot
extensions:
  - local_id: contribution
    extension_point: other.slot
`)

	d, err := New().Parse(dir)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Version == nil || d.Version.String() != "1.2.3" {
		t.Errorf("Version = %v, want 1.2.3", d.Version)
	}
	if len(d.Imports) != 1 || d.Imports[0].TargetID != "provider" || d.Imports[0].Rule != plugin.MatchCompatible {
		t.Errorf("Imports = %+v", d.Imports)
	}
	if d.Lib == nil || d.Lib.Path != "provider.so" {
		t.Errorf("Lib = %+v", d.Lib)
	}
	if len(d.ExtensionPoints) != 1 || d.ExtensionPoints[0].LocalID != "slot" {
		t.Errorf("ExtensionPoints = %+v", d.ExtensionPoints)
	}
	if len(d.Extensions) != 1 || d.Extensions[0].ExtensionPoint != "other.slot" {
		t.Errorf("Extensions = %+v", d.Extensions)
	}
}

func TestParse_ExtensionConfiguration(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
identifier: consumer
extensions:
  - local_id: contribution
    extension_point: other.slot
    configuration:
      name: root
      attrs:
        kind: widget
      children:
        - name: label
          text: "hello"
`)

	d, err := New().Parse(dir)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(d.Extensions) != 1 {
		t.Fatalf("Extensions = %+v", d.Extensions)
	}
	cfg := d.Extensions[0].Configuration
	if cfg.Name != "root" || cfg.Attrs["kind"] != "widget" {
		t.Errorf("Configuration = %+v", cfg)
	}
	if len(cfg.Children) != 1 || cfg.Children[0].Name != "label" {
		t.Fatalf("Children = %+v", cfg.Children)
	}
	if !cfg.Children[0].HasText || cfg.Children[0].Text != "hello" {
		t.Errorf("Children[0] = %+v, want HasText=true Text=hello", cfg.Children[0])
	}
}

func TestParse_ExtensionWithoutConfiguration_IsZeroValue(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
identifier: consumer
extensions:
  - local_id: contribution
    extension_point: other.slot
`)

	d, err := New().Parse(dir)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg := d.Extensions[0].Configuration; cfg.Name != "" || cfg.HasText || len(cfg.Children) != 0 {
		t.Errorf("Configuration = %+v, want zero value", cfg)
	}
}

func TestParse_MissingIdentifier(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "provider_name: Acme\n")

	if _, err := New().Parse(dir); err == nil {
		t.Fatal("expected an error for a manifest with no identifier")
	}
}

func TestParse_MissingManifest(t *testing.T) {
	dir := t.TempDir()
	if _, err := New().Parse(dir); err == nil {
		t.Fatal("expected an error when plugin.yaml does not exist")
	}
}

func TestParse_UnknownMatchRule(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
identifier: consumer
imports:
  - target_id: provider
    rule: bogus
`)
	if _, err := New().Parse(dir); err == nil {
		t.Fatal("expected an error for an unknown match rule")
	}
}
