package pacconf

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mirrorlist")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestValidateMirrorList(t *testing.T) {
	path := writeTemp(t, "# Arch mirrors\nServer = https://mirror.example.org/$repo/os/$arch\n")
	if err := ValidateMirrorList(path); err != nil {
		t.Errorf("valid mirror list rejected: %v", err)
	}
}

func TestValidateMirrorListEmpty(t *testing.T) {
	path := writeTemp(t, "# comments only\n\n")
	if err := ValidateMirrorList(path); err == nil {
		t.Error("expected error for mirror list without entries")
	}
}

func TestValidateMirrorListSectionMarker(t *testing.T) {
	path := writeTemp(t, "[core]\nServer = https://mirror.example.org\n")
	if err := ValidateMirrorList(path); err == nil {
		t.Error("expected error for section marker")
	}
}

func TestValidateMirrorListMissingFile(t *testing.T) {
	if err := ValidateMirrorList(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("expected error for missing file")
	}
}
