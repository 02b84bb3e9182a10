package pacconf

import (
	"bytes"
	"testing"
)

const stockConf = `# Stock configuration
[options]
HoldPkg     = pacman glibc
Architecture = auto
Color

[core]
Include = /etc/pacman.d/mirrorlist

[extra]
Include = /etc/pacman.d/mirrorlist

#[multilib]
#Include = /etc/pacman.d/mirrorlist
`

func TestParseRenderRoundTrip(t *testing.T) {
	doc, err := Parse([]byte(stockConf))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := doc.Render(); !bytes.Equal(got, []byte(stockConf)) {
		t.Errorf("round trip mismatch:\n%s", got)
	}
}

func TestParseRejectsDuplicateSection(t *testing.T) {
	_, err := Parse([]byte("[core]\nInclude = a\n[core]\nInclude = b\n"))
	if err == nil {
		t.Fatal("expected duplicate section error")
	}
}

func TestParseRejectsMalformedHeader(t *testing.T) {
	if _, err := Parse([]byte("[core\n")); err == nil {
		t.Fatal("expected malformed header error")
	}
	if _, err := Parse([]byte("[]\n")); err == nil {
		t.Fatal("expected empty header error")
	}
}

func TestSectionsAndDirectives(t *testing.T) {
	doc, err := Parse([]byte(stockConf))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := []string{"options", "core", "extra"}
	got := doc.Sections()
	if len(got) != len(want) {
		t.Fatalf("expected sections %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("section %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	if doc.HasSection("multilib") {
		t.Error("commented-out multilib should not count as a section")
	}

	dir, ok := doc.Directive("core", "Include")
	if !ok || dir.Value != "/etc/pacman.d/mirrorlist" {
		t.Errorf("unexpected core Include: %+v (ok=%v)", dir, ok)
	}

	dir, ok = doc.Directive("options", "Color")
	if !ok || dir.HasValue {
		t.Errorf("Color should be a bare directive: %+v (ok=%v)", dir, ok)
	}

	if _, ok := doc.Directive("options", "NoProgressBar"); ok {
		t.Error("unexpected directive match")
	}
}

func TestDirectiveLastOccurrenceWins(t *testing.T) {
	doc, err := Parse([]byte("[options]\nSigLevel = Never\nSigLevel = Required\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	dir, ok := doc.Directive("options", "SigLevel")
	if !ok || dir.Value != "Required" {
		t.Errorf("expected last occurrence Required, got %+v", dir)
	}
}

func TestAppendSection(t *testing.T) {
	doc, err := Parse([]byte(stockConf))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := doc.AppendSection("chaotic-aur", KV("Include", "/etc/pacman.d/chaotic-mirrorlist")); err != nil {
		t.Fatalf("AppendSection failed: %v", err)
	}
	if !doc.HasSection("chaotic-aur") {
		t.Fatal("section not recorded")
	}
	dir, ok := doc.Directive("chaotic-aur", "Include")
	if !ok || dir.Value != "/etc/pacman.d/chaotic-mirrorlist" {
		t.Errorf("unexpected Include: %+v (ok=%v)", dir, ok)
	}

	// A second append of the same section must fail.
	if err := doc.AppendSection("chaotic-aur"); err == nil {
		t.Error("expected error on duplicate append")
	}

	// The rendered file must parse cleanly again.
	if _, err := Parse(doc.Render()); err != nil {
		t.Errorf("re-parse of rendered document failed: %v", err)
	}
}

func TestAppendSectionToEmptyDocument(t *testing.T) {
	doc, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := doc.AppendSection("custom", KV("Include", "/tmp/mirrors")); err != nil {
		t.Fatalf("AppendSection failed: %v", err)
	}
	want := "[custom]\nInclude = /tmp/mirrors\n"
	if got := string(doc.Render()); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestAppendDirective(t *testing.T) {
	doc, err := Parse([]byte(stockConf))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := doc.AppendDirective("options", KV("ParallelDownloads", "5")); err != nil {
		t.Fatalf("AppendDirective failed: %v", err)
	}
	dir, ok := doc.Directive("options", "ParallelDownloads")
	if !ok || dir.Value != "5" {
		t.Errorf("unexpected directive: %+v (ok=%v)", dir, ok)
	}
	// Directives of the following section must be untouched.
	dir, ok = doc.Directive("core", "Include")
	if !ok || dir.Value != "/etc/pacman.d/mirrorlist" {
		t.Errorf("core section corrupted: %+v (ok=%v)", dir, ok)
	}
	if err := doc.AppendDirective("missing", KV("k", "v")); err == nil {
		t.Error("expected error for missing section")
	}
}

func TestSetDirective(t *testing.T) {
	doc, err := Parse([]byte("[options]\nSigLevel = Never\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := doc.SetDirective("options", KV("SigLevel", "Required DatabaseOptional")); err != nil {
		t.Fatalf("SetDirective failed: %v", err)
	}
	dir, _ := doc.Directive("options", "SigLevel")
	if dir.Value != "Required DatabaseOptional" {
		t.Errorf("unexpected value %q", dir.Value)
	}

	// Absent key appends.
	if err := doc.SetDirective("options", KV("CheckSpace", "")); err != nil {
		t.Fatalf("SetDirective append failed: %v", err)
	}
	if _, ok := doc.Directive("options", "CheckSpace"); !ok {
		t.Error("appended directive not found")
	}
}

func TestUncommentSection(t *testing.T) {
	doc, err := Parse([]byte(stockConf))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	changed, err := doc.UncommentSection("multilib")
	if err != nil {
		t.Fatalf("UncommentSection failed: %v", err)
	}
	if !changed {
		t.Fatal("expected block to be uncommented")
	}
	if !doc.HasSection("multilib") {
		t.Fatal("multilib not active after uncomment")
	}
	dir, ok := doc.Directive("multilib", "Include")
	if !ok || dir.Value != "/etc/pacman.d/mirrorlist" {
		t.Errorf("unexpected Include: %+v (ok=%v)", dir, ok)
	}

	// Uncommenting an already-active section is an error.
	if _, err := doc.UncommentSection("multilib"); err == nil {
		t.Error("expected error for active section")
	}
}

func TestUncommentSectionMissing(t *testing.T) {
	doc, err := Parse([]byte(stockConf))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	changed, err := doc.UncommentSection("testing")
	if err != nil {
		t.Fatalf("UncommentSection failed: %v", err)
	}
	if changed {
		t.Error("expected no change for missing block")
	}
}

func TestUncommentSectionStopsAtProse(t *testing.T) {
	conf := "#[multilib]\n#Include = /etc/pacman.d/mirrorlist\n# just a comment\n"
	doc, err := Parse([]byte(conf))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, err := doc.UncommentSection("multilib"); err != nil {
		t.Fatalf("UncommentSection failed: %v", err)
	}
	want := "[multilib]\nInclude = /etc/pacman.d/mirrorlist\n# just a comment\n"
	if got := string(doc.Render()); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
