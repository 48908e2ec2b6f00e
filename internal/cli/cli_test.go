package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateInputs_RequiresGroundTruthUnlessCMDB(t *testing.T) {
	a := &Args{OutputDir: t.TempDir()}
	if err := validateInputs(a); err == nil {
		t.Fatal("expected error when neither ground truth nor cm-db is given")
	}

	a.CMDB = "cm-store-dsn"
	if err := validateInputs(a); err != nil {
		t.Fatalf("unexpected error with cm-db set: %v", err)
	}
}

func TestValidateInputs_RejectsBothGroundTruthFlags(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "conn.log")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	a := &Args{GroundTruthDir: dir, GroundTruthFile: file, OutputDir: t.TempDir()}
	if err := validateInputs(a); err == nil {
		t.Fatal("expected error when both ground-truth-dir and ground-truth-file are set")
	}
}

func TestValidateInputs_RejectsMissingPath(t *testing.T) {
	a := &Args{GroundTruthDir: "/no/such/dir", OutputDir: t.TempDir()}
	if err := validateInputs(a); err == nil {
		t.Fatal("expected error for a nonexistent ground truth dir")
	}
}

func TestValidateInputs_AcceptsValidDirAndCreatesOutputDir(t *testing.T) {
	gtDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "nested", "output")

	a := &Args{GroundTruthDir: gtDir, OutputDir: outDir}
	if err := validateInputs(a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info, err := os.Stat(outDir); err != nil || !info.IsDir() {
		t.Fatalf("expected output dir %s to be created", outDir)
	}
}

func TestDefaultOutputDir_UnderOutputRoot(t *testing.T) {
	dir := defaultOutputDir()
	if filepath.Dir(dir) != "output" {
		t.Errorf("got %q, want a child of output/", dir)
	}
}
