package catalog

import (
	"github.com/pacprep/pacprep/pkg/provision"
	"github.com/pacprep/pacprep/pkg/resolve"
)

// Default is the built-in catalog used when no file is given: multilib and
// chaotic-aur repositories plus a baseline set of components ending in the
// cleanup actions.
func Default() *Catalog {
	return &Catalog{
		Repositories: []provision.Spec{
			{
				Name:      "multilib",
				Include:   "/etc/pacman.d/mirrorlist",
				Uncomment: true,
			},
			{
				Name:      "chaotic-aur",
				Include:   "/etc/pacman.d/chaotic-mirrorlist",
				KeyID:     "3056513887B78AEB",
				KeyServer: "keyserver.ubuntu.com",
				KeyringPackages: []string{
					"chaotic-keyring",
					"chaotic-mirrorlist",
				},
			},
		},
		Components: []Component{
			{
				Name:        "base-tools",
				Description: "shell and editor baseline",
				Packages: []resolve.PackageRequest{
					{Names: []string{"git", "vim", "htop", "ripgrep"}},
				},
			},
			{
				Name:         "chaotic-extras",
				Description:  "prebuilt community packages",
				RequiresRepo: "chaotic-aur",
				Packages: []resolve.PackageRequest{
					{Names: []string{"paru"}},
				},
			},
			{
				Name:        "community-tools",
				Description: "community packages needing build review",
				Packages: []resolve.PackageRequest{
					{
						Names:          []string{"informant"},
						Preferred:      resolve.SourceSecondary,
						ReviewRequired: true,
					},
				},
			},
			{
				Name:        "orphan-cleanup",
				Description: "remove packages nothing depends on",
				Action:      ActionCleanup,
			},
			{
				Name:        "cache-clear",
				Description: "drop superseded packages from the cache",
				Action:      ActionCacheClear,
			},
		},
	}
}
