package wasmengine

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigAppliesDefaultsAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	const yamlDoc = "metering_limit: 42\ncanonicalize_nans: true\n"
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MeteringLimit != 42 {
		t.Fatalf("MeteringLimit = %d, want 42", cfg.MeteringLimit)
	}
	if cfg.StaticMemoryBoundPages != DefaultStaticMemoryBoundPages {
		t.Fatalf("StaticMemoryBoundPages = %d, want default %d", cfg.StaticMemoryBoundPages, DefaultStaticMemoryBoundPages)
	}
}

func TestLoadConfigRejectsMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("expected an error loading a missing config file")
	}
}
