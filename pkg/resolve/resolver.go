// Package resolve classifies requested packages across the primary and
// secondary package sources. The primary source is authoritative: a
// package available in both sources always lands in the primary bucket.
package resolve

import (
	"context"

	"github.com/rs/zerolog"
)

// Source names a package source.
type Source string

const (
	// SourcePrimary is the official, authoritative source.
	SourcePrimary Source = "primary"

	// SourceSecondary is the community source whose build definitions may
	// require human review.
	SourceSecondary Source = "secondary"
)

// PackageRequest asks for a set of packages with a declared preference.
// The preference is advisory: availability and the primary-wins tie-break
// decide the actual bucket.
type PackageRequest struct {
	// Names are the requested package names.
	Names []string `yaml:"names" validate:"required,min=1,dive,required"`

	// Preferred is the source the request expects the packages in.
	Preferred Source `yaml:"source,omitempty" validate:"omitempty,oneof=primary secondary"`

	// ReviewRequired marks secondary-source packages whose build
	// definition a human must approve before install.
	ReviewRequired bool `yaml:"review,omitempty"`
}

// Querier answers availability questions for one source.
type Querier interface {
	Available(ctx context.Context, pkg string) (bool, error)
}

// ResolvedSet partitions the requested packages into three disjoint
// buckets. Every requested package appears in exactly one of them.
type ResolvedSet struct {
	// Primary are packages installable from the primary source.
	Primary []string

	// Secondary are packages only available in the secondary source.
	Secondary []string

	// Unavailable are packages absent from both sources.
	Unavailable []string

	review map[string]bool
}

// ReviewRequired reports whether a secondary-bucket package needs human
// approval before install.
func (r *ResolvedSet) ReviewRequired(pkg string) bool {
	return r.review[pkg]
}

// Total is the number of packages across all buckets.
func (r *ResolvedSet) Total() int {
	return len(r.Primary) + len(r.Secondary) + len(r.Unavailable)
}

// Resolver reclassifies requested packages by querying both sources.
type Resolver struct {
	// Primary answers for the authoritative source.
	Primary Querier

	// Secondary answers for the community source. May be nil when no
	// secondary tooling is installed; secondary-only packages then
	// resolve as unavailable.
	Secondary Querier

	// Log receives per-package resolution diagnostics.
	Log zerolog.Logger
}

// Resolve classifies every package named by the requests. Duplicate names
// across requests are resolved once, first occurrence wins for order. A
// query error against a source is logged and treated as unavailability in
// that source, so a flaky source degrades to reclassification rather than
// aborting resolution.
func (r *Resolver) Resolve(ctx context.Context, requests []PackageRequest) (*ResolvedSet, error) {
	set := &ResolvedSet{review: make(map[string]bool)}
	seen := make(map[string]bool)

	for _, req := range requests {
		for _, pkg := range req.Names {
			if pkg == "" || seen[pkg] {
				continue
			}
			seen[pkg] = true

			if r.availableIn(ctx, r.Primary, pkg, SourcePrimary) {
				set.Primary = append(set.Primary, pkg)
				continue
			}
			if r.availableIn(ctx, r.Secondary, pkg, SourceSecondary) {
				set.Secondary = append(set.Secondary, pkg)
				set.review[pkg] = req.ReviewRequired
				r.Log.Debug().Str("package", pkg).Msg("reclassified to secondary source")
				continue
			}
			set.Unavailable = append(set.Unavailable, pkg)
			r.Log.Warn().Str("package", pkg).Msg("package unavailable in all sources")
		}
	}

	return set, nil
}

func (r *Resolver) availableIn(ctx context.Context, q Querier, pkg string, src Source) bool {
	if q == nil {
		return false
	}
	ok, err := q.Available(ctx, pkg)
	if err != nil {
		r.Log.Warn().Err(err).Str("package", pkg).Str("source", string(src)).Msg("availability query failed")
		return false
	}
	return ok
}
