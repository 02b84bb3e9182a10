package catalog

import (
	"strings"
	"testing"
)

const sampleCatalog = `
repositories:
  - name: multilib
    include: /etc/pacman.d/mirrorlist
    uncomment: true
  - name: chaotic-aur
    include: /etc/pacman.d/chaotic-mirrorlist
    key_id: 3056513887B78AEB
    key_server: keyserver.ubuntu.com
    keyring_packages: [chaotic-keyring, chaotic-mirrorlist]

components:
  - name: base-tools
    description: shell baseline
    packages:
      - names: [git, vim]
  - name: chaotic-extras
    requires_repo: chaotic-aur
    packages:
      - names: [paru]
        review: true
  - name: orphan-cleanup
    action: cleanup
`

func TestParseSampleCatalog(t *testing.T) {
	cat, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(cat.Repositories) != 2 || len(cat.Components) != 3 {
		t.Fatalf("unexpected shape: %d repos, %d components", len(cat.Repositories), len(cat.Components))
	}

	repo, ok := cat.Repository("chaotic-aur")
	if !ok || repo.KeyID != "3056513887B78AEB" {
		t.Errorf("chaotic-aur not loaded correctly: %+v", repo)
	}
	if !repo.ThirdParty() {
		t.Error("chaotic-aur must need trust provisioning")
	}

	if cat.Components[2].Action != ActionCleanup || !cat.Components[2].IsAction() {
		t.Errorf("cleanup component misparsed: %+v", cat.Components[2])
	}
	if !cat.Components[1].Packages[0].ReviewRequired {
		t.Error("review flag lost")
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "duplicate component",
			doc: `components:
  - name: a
    action: cleanup
  - name: a
    action: cache-clear`,
			want: "duplicate component",
		},
		{
			name: "duplicate repository",
			doc: `repositories:
  - name: r
    include: /tmp/m
  - name: r
    include: /tmp/m
components:
  - name: a
    action: cleanup`,
			want: "duplicate repository",
		},
		{
			name: "packages and action",
			doc: `components:
  - name: a
    action: cleanup
    packages:
      - names: [vim]`,
			want: "both packages and an action",
		},
		{
			name: "neither packages nor action",
			doc: `components:
  - name: a
    description: empty`,
			want: "neither packages nor an action",
		},
		{
			name: "unknown action",
			doc: `components:
  - name: a
    action: reboot`,
			want: "invalid catalog",
		},
		{
			name: "unknown required repo",
			doc: `components:
  - name: a
    requires_repo: nope
    packages:
      - names: [vim]`,
			want: "unknown repository",
		},
		{
			name: "no components",
			doc:  `repositories: []`,
			want: "invalid catalog",
		},
		{
			name: "component named like a repository",
			doc: `repositories:
  - name: multilib
    include: /tmp/m
components:
  - name: multilib
    action: cleanup`,
			want: "collides with a repository name",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	cat, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	all, err := cat.Select(nil)
	if err != nil || len(all) != 3 {
		t.Fatalf("empty selection must return all components: %v, %d", err, len(all))
	}

	// Catalog order wins over selection order.
	picked, err := cat.Select([]string{"orphan-cleanup", "base-tools"})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(picked) != 2 || picked[0].Name != "base-tools" || picked[1].Name != "orphan-cleanup" {
		t.Errorf("unexpected selection: %+v", picked)
	}

	if _, err := cat.Select([]string{"nope"}); err == nil {
		t.Error("unknown component name must be rejected")
	}
}

func TestDefaultCatalogIsValid(t *testing.T) {
	cat := Default()
	if err := cat.validate(); err != nil {
		t.Fatalf("default catalog invalid: %v", err)
	}
	if _, ok := cat.Repository("multilib"); !ok {
		t.Error("default catalog missing multilib")
	}
}
