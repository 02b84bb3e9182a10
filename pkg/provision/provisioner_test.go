package provision

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pacprep/pacprep/pkg/backup"
	"github.com/pacprep/pacprep/pkg/confedit"
	"github.com/pacprep/pacprep/pkg/pacconf"
	"github.com/pacprep/pacprep/pkg/retry"
)

type okValidator struct{}

func (okValidator) Validate(context.Context, string) error { return nil }

type fakeKeyring struct {
	receives int
	signs    int
	fail     bool
}

func (f *fakeKeyring) Receive(context.Context, string, string) error {
	f.receives++
	if f.fail {
		return errors.New("keyserver timeout")
	}
	return nil
}

func (f *fakeKeyring) LocallySign(context.Context, string) error {
	f.signs++
	if f.fail {
		return errors.New("sign failed")
	}
	return nil
}

type fakeInstaller struct {
	sets [][]string
	fail bool
}

func (f *fakeInstaller) InstallSet(_ context.Context, pkgs []string) error {
	f.sets = append(f.sets, pkgs)
	if f.fail {
		return errors.New("download failed")
	}
	return nil
}

type fakeRefresher struct {
	calls int
	fail  bool
}

func (f *fakeRefresher) Refresh(context.Context) error {
	f.calls++
	if f.fail {
		return errors.New("sync failed")
	}
	return nil
}

type harness struct {
	prov      *Provisioner
	conf      string
	keyring   *fakeKeyring
	installer *fakeInstaller
	refresher *fakeRefresher
}

func newHarness(t *testing.T, initialConf string) *harness {
	t.Helper()
	conf := filepath.Join(t.TempDir(), "pacman.conf")
	if err := os.WriteFile(conf, []byte(initialConf), 0o644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	mut := &confedit.Mutator{
		Backups:   backup.NewStore(""),
		Validator: okValidator{},
		Log:       zerolog.Nop(),
	}
	keyring := &fakeKeyring{}
	installer := &fakeInstaller{}
	refresher := &fakeRefresher{}
	runner := &retry.Runner{MaxAttempts: 2, Delay: time.Millisecond, Log: zerolog.Nop()}

	return &harness{
		prov:      NewProvisioner(conf, mut, keyring, installer, refresher, runner, zerolog.Nop()),
		conf:      conf,
		keyring:   keyring,
		installer: installer,
		refresher: refresher,
	}
}

func TestEnableAppendsSection(t *testing.T) {
	h := newHarness(t, "")
	spec := Spec{Name: "custom", Include: "/tmp/does-not-exist-mirrorlist"}

	if err := h.prov.Enable(context.Background(), spec); err != nil {
		t.Fatalf("Enable failed: %v", err)
	}

	data, _ := os.ReadFile(h.conf)
	doc, err := pacconf.Parse(data)
	if err != nil {
		t.Fatalf("result does not parse: %v", err)
	}
	dir, ok := doc.Directive("custom", "Include")
	if !ok || dir.Value != "/tmp/does-not-exist-mirrorlist" {
		t.Errorf("section not written correctly: %+v (ok=%v)", dir, ok)
	}
	if strings.Count(string(data), "[custom]") != 1 {
		t.Errorf("expected exactly one [custom] section:\n%s", data)
	}
	if h.refresher.calls != 1 {
		t.Errorf("expected one index refresh, got %d", h.refresher.calls)
	}
	if h.keyring.receives != 0 {
		t.Error("official repository must not touch the keyring")
	}
}

func TestEnableIsIdempotent(t *testing.T) {
	h := newHarness(t, "")
	spec := Spec{Name: "custom", Include: "/tmp/does-not-exist-mirrorlist"}

	if err := h.prov.Enable(context.Background(), spec); err != nil {
		t.Fatalf("first Enable failed: %v", err)
	}
	after, _ := os.ReadFile(h.conf)
	backups, _ := backup.NewStore("").List(h.conf)
	if len(backups) != 1 {
		t.Fatalf("expected one backup after first enable, got %d", len(backups))
	}

	if err := h.prov.Enable(context.Background(), spec); err != nil {
		t.Fatalf("second Enable failed: %v", err)
	}
	final, _ := os.ReadFile(h.conf)

	if string(after) != string(final) {
		t.Error("second Enable changed the configuration file")
	}
	backups, _ = backup.NewStore("").List(h.conf)
	if len(backups) != 1 {
		t.Errorf("second Enable created a backup, total %d", len(backups))
	}
	if h.refresher.calls != 1 {
		t.Errorf("second Enable refreshed indexes, total %d", h.refresher.calls)
	}
}

func TestEnableThirdPartyProvisionsTrustFirst(t *testing.T) {
	h := newHarness(t, "")
	spec := Spec{
		Name:            "chaotic-aur",
		Include:         "/tmp/does-not-exist-chaotic-mirrorlist",
		KeyID:           "3056513887B78AEB",
		KeyServer:       "keyserver.ubuntu.com",
		KeyringPackages: []string{"chaotic-keyring", "chaotic-mirrorlist"},
	}

	if err := h.prov.Enable(context.Background(), spec); err != nil {
		t.Fatalf("Enable failed: %v", err)
	}
	if h.keyring.receives != 1 || h.keyring.signs != 1 {
		t.Errorf("expected key receive+sign once, got %d/%d", h.keyring.receives, h.keyring.signs)
	}
	if len(h.installer.sets) != 1 || len(h.installer.sets[0]) != 2 {
		t.Errorf("keyring packages not installed: %v", h.installer.sets)
	}
}

func TestEnableTrustFailureAfterRetries(t *testing.T) {
	h := newHarness(t, "")
	h.keyring.fail = true
	spec := Spec{
		Name:      "chaotic-aur",
		Include:   "/tmp/does-not-exist-chaotic-mirrorlist",
		KeyID:     "3056513887B78AEB",
		KeyServer: "keyserver.ubuntu.com",
	}

	err := h.prov.Enable(context.Background(), spec)
	if !IsTrustFailure(err) {
		t.Fatalf("expected trust failure, got %v", err)
	}
	if h.keyring.receives != 2 {
		t.Errorf("expected 2 attempts, got %d", h.keyring.receives)
	}
	// The configuration must be untouched.
	data, _ := os.ReadFile(h.conf)
	if len(data) != 0 {
		t.Errorf("trust failure must not edit the configuration: %q", data)
	}
}

func TestEnableSyncFailureKeepsSection(t *testing.T) {
	h := newHarness(t, "")
	h.refresher.fail = true
	spec := Spec{Name: "custom", Include: "/tmp/does-not-exist-mirrorlist"}

	err := h.prov.Enable(context.Background(), spec)
	if !IsSyncFailure(err) {
		t.Fatalf("expected sync failure, got %v", err)
	}
	// Refresh failure does not roll back the edit.
	data, _ := os.ReadFile(h.conf)
	doc, _ := pacconf.Parse(data)
	if !doc.HasSection("custom") {
		t.Error("section rolled back on refresh failure")
	}
}

func TestEnableUncommentsStockBlock(t *testing.T) {
	stock := "[core]\nInclude = /etc/pacman.d/mirrorlist\n\n#[multilib]\n#Include = /etc/pacman.d/mirrorlist\n"
	h := newHarness(t, stock)
	spec := Spec{Name: "multilib", Include: "/etc/pacman.d/mirrorlist", Uncomment: true}

	if err := h.prov.Enable(context.Background(), spec); err != nil {
		t.Fatalf("Enable failed: %v", err)
	}
	data, _ := os.ReadFile(h.conf)
	if strings.Contains(string(data), "#[multilib]") {
		t.Error("block still commented")
	}
	if strings.Count(string(data), "[multilib]") != 1 {
		t.Errorf("expected exactly one active [multilib] section:\n%s", data)
	}
}

func TestEnableRejectsInvalidSpec(t *testing.T) {
	h := newHarness(t, "")
	err := h.prov.Enable(context.Background(), Spec{Name: "", Include: ""})
	if err == nil {
		t.Fatal("expected validation error")
	}
	// KeyID without KeyServer is invalid.
	err = h.prov.Enable(context.Background(), Spec{Name: "x", Include: "/tmp/m", KeyID: "ABCD1234"})
	if err == nil {
		t.Fatal("expected key server requirement error")
	}
}

func TestEnableRejectsCorruptMirrorList(t *testing.T) {
	dir := t.TempDir()
	mirror := filepath.Join(dir, "mirrorlist")
	if err := os.WriteFile(mirror, []byte("[oops]\n"), 0o644); err != nil {
		t.Fatalf("write mirror list: %v", err)
	}

	h := newHarness(t, "")
	err := h.prov.Enable(context.Background(), Spec{Name: "custom", Include: mirror})
	if err == nil {
		t.Fatal("expected mirror list rejection")
	}
	data, _ := os.ReadFile(h.conf)
	if len(data) != 0 {
		t.Errorf("corrupt mirror list must not edit the configuration: %q", data)
	}
}
