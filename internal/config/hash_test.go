package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateChecksumsDryRun(t *testing.T) {
	tmpDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(tmpDir, "verigate.yaml"), []byte("base_url: http://localhost:8001\n"), 0600); err != nil {
		t.Fatal(err)
	}

	report, err := GenerateChecksums(tmpDir, []string{"verigate.yaml", "extra.yaml"}, true)
	if err != nil {
		t.Fatalf("GenerateChecksums() failed: %v", err)
	}

	if report.Written {
		t.Fatal("report.Written = true, want false in dry-run")
	}

	if len(report.Files) != 2 {
		t.Fatalf("len(report.Files) = %d, want 2", len(report.Files))
	}

	if !report.Files[0].Exists || report.Files[0].Hash == "" {
		t.Fatal("verigate.yaml should exist with computed hash")
	}
	if report.Files[1].Exists || report.Files[1].Hash != "" {
		t.Fatal("extra.yaml should be reported as missing without hash")
	}

	if _, err := os.Stat(filepath.Join(tmpDir, ".checksums")); !os.IsNotExist(err) {
		t.Fatal(".checksums should not be written in dry-run mode")
	}
}

func TestGenerateChecksumsWritesManifest(t *testing.T) {
	tmpDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(tmpDir, "verigate.yaml"), []byte("base_url: http://localhost:8001\n"), 0600); err != nil {
		t.Fatal(err)
	}

	report, err := GenerateChecksums(tmpDir, []string{"verigate.yaml"}, false)
	if err != nil {
		t.Fatalf("GenerateChecksums() failed: %v", err)
	}
	if !report.Written {
		t.Fatal("report.Written = false, want true")
	}

	manifest, err := LoadChecksums(tmpDir)
	if err != nil {
		t.Fatalf("LoadChecksums() failed: %v", err)
	}
	if manifest.Version != 1 {
		t.Fatalf("manifest.Version = %d, want 1", manifest.Version)
	}
	hash, ok := manifest.Hashes["verigate.yaml"]
	if !ok || hash == "" {
		t.Fatal("manifest missing hash for verigate.yaml")
	}

	if err := VerifyFileHash(filepath.Join(tmpDir, "verigate.yaml"), hash); err != nil {
		t.Fatalf("VerifyFileHash() failed on unmodified file: %v", err)
	}
}

func TestVerifyFileHashDetectsTampering(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "verigate.yaml")

	if err := os.WriteFile(path, []byte("base_url: http://localhost:8001\n"), 0600); err != nil {
		t.Fatal(err)
	}

	hash, err := ComputeBlake3Hash(path)
	if err != nil {
		t.Fatalf("ComputeBlake3Hash() failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("base_url: http://evil.example\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := VerifyFileHash(path, hash); err == nil {
		t.Fatal("VerifyFileHash() passed on a modified file")
	}
}

func TestLoadChecksumsMissingFile(t *testing.T) {
	if _, err := LoadChecksums(t.TempDir()); err == nil {
		t.Fatal("LoadChecksums() should fail when .checksums is absent")
	}
}
