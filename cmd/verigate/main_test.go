package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes, _ := io.ReadAll(stdoutR)
	stderrBytes, _ := io.ReadAll(stderrR)

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func writeTestConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()

	scriptsDir := filepath.Join(dir, "scripts")
	if err := os.Mkdir(scriptsDir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{
		"acceptance_check.py",
		"sso_isolation_check.py",
		"rls_smoke.py",
		"export_verify.py",
		"verify_odoo_p95.py",
	} {
		if err := os.WriteFile(filepath.Join(scriptsDir, name), []byte("#!/usr/bin/env python3\n"), 0755); err != nil {
			t.Fatal(err)
		}
	}

	configPath := filepath.Join(dir, "verigate.yaml")
	content := "scripts_dir: " + scriptsDir + "\n" + extra
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return configPath
}

func TestRunTargetUnknown(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runTarget("does-not-exist", nil)
	})

	if code == 0 {
		t.Fatal("unknown target should exit non-zero")
	}
	if !strings.Contains(stderr, "Unknown target: does-not-exist") {
		t.Fatalf("stderr missing unknown-target message, got: %q", stderr)
	}
}

func TestRunTargetMissingTenant(t *testing.T) {
	configPath := writeTestConfig(t, "")

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runTarget("accept-tenant", []string{"--config", configPath})
	})

	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if !strings.Contains(stderr, "Usage: verigate accept-tenant --tenant VALUE") {
		t.Fatalf("stderr missing usage line, got: %q", stderr)
	}
}

func TestRunTargetMissingRLSParam(t *testing.T) {
	configPath := writeTestConfig(t, "")

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runTarget("rls", []string{"--config", configPath, "--a", "t1"})
	})

	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if !strings.Contains(stderr, `required parameter "b"`) {
		t.Fatalf("stderr missing parameter message, got: %q", stderr)
	}
}

func TestRunList(t *testing.T) {
	configPath := writeTestConfig(t, "")

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runList([]string{"--config", configPath})
	})

	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	for _, name := range []string{"accept", "accept-tenant", "sso", "rls", "export-verify", "odoo-p95"} {
		if !strings.Contains(stdout, name) {
			t.Fatalf("list output missing target %q: %q", name, stdout)
		}
	}
}

func TestRunConfigCheckPasses(t *testing.T) {
	configPath := writeTestConfig(t, "")

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runConfigCheck([]string{"--config", configPath})
	})

	if code != 0 {
		t.Fatalf("exit code = %d, want 0 (output: %q)", code, stdout)
	}
	if !strings.Contains(stdout, "PASSED") {
		t.Fatalf("expected PASSED in output, got: %q", stdout)
	}
}

func TestRunConfigCheckStrictWarnsOnMissingChecksums(t *testing.T) {
	configPath := writeTestConfig(t, "")

	code, _, _ := captureOutputWithExitCode(t, func() int {
		return runConfigCheck([]string{"--config", configPath, "--strict"})
	})

	// No .checksums manifest yet: valid but warned, strict turns that into 2
	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
}

func TestRunConfigCheckMissingScripts(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "verigate.yaml")
	if err := os.WriteFile(configPath, []byte("scripts_dir: "+filepath.Join(dir, "nope")+"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runConfigCheck([]string{"--config", configPath})
	})

	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stdout, "FAILED") {
		t.Fatalf("expected FAILED in output, got: %q", stdout)
	}
}

func TestRunConfigLockThenCheck(t *testing.T) {
	configPath := writeTestConfig(t, "")

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigLock([]string{"--config", configPath, "-v"})
	})
	if code != 0 {
		t.Fatalf("lock exit code = %d (stderr: %q)", code, stderr)
	}
	if !strings.Contains(stdout, "HASH verigate.yaml") {
		t.Fatalf("verbose lock output missing hash line: %q", stdout)
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(configPath), ".checksums")); err != nil {
		t.Fatalf(".checksums not written: %v", err)
	}

	code, _, _ = captureOutputWithExitCode(t, func() int {
		return runConfigCheck([]string{"--config", configPath, "--strict"})
	})
	if code != 0 {
		t.Fatalf("strict check after lock = %d, want 0", code)
	}

	// Tampering after lock must fail the next load
	if err := os.WriteFile(configPath, []byte("base_url: http://evil.example\n"), 0600); err != nil {
		t.Fatal(err)
	}
	code, _, stderr = captureOutputWithExitCode(t, func() int {
		return runConfigCheck([]string{"--config", configPath})
	})
	if code != 1 {
		t.Fatalf("check on tampered config = %d, want 1", code)
	}
	if !strings.Contains(stderr, "config verification failed") {
		t.Fatalf("stderr missing verification failure: %q", stderr)
	}
}

func TestRunConfigLockDryRun(t *testing.T) {
	configPath := writeTestConfig(t, "")

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runConfigLock([]string{"--config", configPath, "--dry-run"})
	})
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(stdout, "Dry run completed") {
		t.Fatalf("expected dry-run message, got: %q", stdout)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(configPath), ".checksums")); !os.IsNotExist(err) {
		t.Fatal(".checksums should not be written in dry-run mode")
	}
}

func TestRunConfigShow(t *testing.T) {
	configPath := writeTestConfig(t, "base_url: http://localhost:9000\n")

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runConfigShow([]string{"--config", configPath})
	})
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(stdout, "http://localhost:9000") {
		t.Fatalf("show output missing base_url, got: %q", stdout)
	}
}
