// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package selection

import (
	"testing"

	"github.com/sapcc/go-bits/assert"
	"github.com/sapcc/go-bits/regexpext"

	"github.com/sapcc/ghcr-prune/internal/forest"
	"github.com/sapcc/ghcr-prune/internal/manifest"
	"github.com/sapcc/ghcr-prune/internal/ociref"
	"github.com/sapcc/ghcr-prune/internal/version"
)

func singleArch(id int32, digest string, tags []string, updatedAt string) version.Version {
	return version.Version{
		ID:        id,
		Name:      ociref.Digest(digest),
		Tags:      tags,
		UpdatedAt: updatedAt,
		Manifest: manifest.Manifest{
			MediaType: "application/vnd.oci.image.manifest.v1+json",
			Layers:    []ociref.ManifestRef{{MediaType: "application/vnd.oci.image.layer.v1.tar+gzip", Digest: "sha256:layerlayerlayerlayerlayerlayerlayerlayerlayerlayerlayerlayerlay"}},
		},
	}
}

func multiArch(id int32, digest string, tags []string, updatedAt string, children ...string) version.Version {
	var refs []ociref.ManifestRef
	for _, c := range children {
		refs = append(refs, ociref.ManifestRef{MediaType: "application/vnd.oci.image.manifest.v1+json", Digest: ociref.Digest(c)})
	}
	return version.Version{
		ID:        id,
		Name:      ociref.Digest(digest),
		Tags:      tags,
		UpdatedAt: updatedAt,
		Manifest: manifest.Manifest{
			MediaType: "application/vnd.oci.image.index.v1+json",
			Manifests: refs,
		},
	}
}

func ptrInt(n int) *int { return &n }

// Every knob unset: the plan must be empty, since A_tag and D_tag are empty,
// every tag lands in C_tag (kept), and with keep-n-untagged unset E_dig keeps
// every remaining untagged root.
func TestComputeEverythingUnsetYieldsEmptyPlan(t *testing.T) {
	v1 := singleArch(1, "sha256:1111111111111111111111111111111111111111111111111111111111111111", []string{"v1"}, "2026-01-01T00:00:00Z")
	f, err := forest.Build([]version.Version{v1})
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	plan := Compute(f, Config{})
	assert.DeepEqual(t, "len(TagsDelete)", len(plan.TagsDelete), 0)
	assert.DeepEqual(t, "len(VersionsDelete)", len(plan.VersionsDelete), 0)
}

// A tag matching both include and exclude must survive: A_tag \ B_tag drops
// it from tags_delete, and its digest closure lands in both aDig and bDig,
// so the integrity-rule subtraction keeps its version too.
func TestComputeTagMatchingBothIncludeAndExcludeSurvives(t *testing.T) {
	v1 := singleArch(1, "sha256:2222222222222222222222222222222222222222222222222222222222222222", []string{"keep-me"}, "2026-01-01T00:00:00Z")
	f, err := forest.Build([]version.Version{v1})
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	include := regexpext.PlainRegexp("^keep-me$")
	exclude := regexpext.PlainRegexp("^keep-me$")
	plan := Compute(f, Config{IncludeTags: &include, ExcludeTags: &exclude})
	assert.DeepEqual(t, "len(TagsDelete)", len(plan.TagsDelete), 0)
	assert.DeepEqual(t, "len(VersionsDelete)", len(plan.VersionsDelete), 0)
}

// Scenario 2: a single included tag is detached and its version deleted,
// untouched versions are left alone.
func TestComputeIncludeSingleTag(t *testing.T) {
	doomed := singleArch(1, "sha256:3333333333333333333333333333333333333333333333333333333333333333", []string{"stale"}, "2026-01-01T00:00:00Z")
	survivor := singleArch(2, "sha256:4444444444444444444444444444444444444444444444444444444444444444", []string{"latest"}, "2026-01-02T00:00:00Z")

	f, err := forest.Build([]version.Version{doomed, survivor})
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	include := regexpext.PlainRegexp("^stale$")
	plan := Compute(f, Config{IncludeTags: &include})

	assert.DeepEqual(t, "TagsDelete", plan.TagsDelete, []string{"stale"})
	assert.DeepEqual(t, "VersionsDelete", plan.VersionsDelete, []ociref.Digest{doomed.Name})
}

// Scenario 3: two multi-arch roots share one child manifest. Including X's
// tag but not Y's must delete X and its exclusive child c2, while c1 (shared with Y,
// which is untouched) and Y's exclusive child c3 both survive.
func TestComputeMultiArchSharedChildIntegrityRule(t *testing.T) {
	x := multiArch(1, "sha256:5555555555555555555555555555555555555555555555555555555555555555", []string{"old"}, "2026-01-01T00:00:00Z",
		"sha256:c111111111111111111111111111111111111111111111111111111111111111",
		"sha256:c222222222222222222222222222222222222222222222222222222222222222")
	y := multiArch(2, "sha256:6666666666666666666666666666666666666666666666666666666666666666", []string{"stable"}, "2026-01-02T00:00:00Z",
		"sha256:c111111111111111111111111111111111111111111111111111111111111111",
		"sha256:c333333333333333333333333333333333333333333333333333333333333333")
	c1 := singleArch(3, "sha256:c111111111111111111111111111111111111111111111111111111111111111", nil, "")
	c2 := singleArch(4, "sha256:c222222222222222222222222222222222222222222222222222222222222222", nil, "")
	c3 := singleArch(5, "sha256:c333333333333333333333333333333333333333333333333333333333333333", nil, "")

	f, err := forest.Build([]version.Version{x, y, c1, c2, c3})
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}

	include := regexpext.PlainRegexp("^old$")
	plan := Compute(f, Config{IncludeTags: &include})

	assert.DeepEqual(t, "TagsDelete", plan.TagsDelete, []string{"old"})
	assert.DeepEqual(t, "VersionsDelete", plan.VersionsDelete, []ociref.Digest{x.Name, c2.Name})
}

// Scenario 4: keep-n-tagged keeps the N most recently updated tagged
// versions outside A_tag/B_tag, deleting the rest as D_tag.
func TestComputeKeepNTaggedOrdering(t *testing.T) {
	newest := singleArch(1, "sha256:7777777777777777777777777777777777777777777777777777777777777777", []string{"v3"}, "2026-01-03T00:00:00Z")
	middle := singleArch(2, "sha256:8888888888888888888888888888888888888888888888888888888888888888", []string{"v2"}, "2026-01-02T00:00:00Z")
	oldest := singleArch(3, "sha256:9999999999999999999999999999999999999999999999999999999999999999", []string{"v1"}, "2026-01-01T00:00:00Z")

	f, err := forest.Build([]version.Version{newest, middle, oldest})
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}

	plan := Compute(f, Config{KeepNTagged: ptrInt(1)})

	assert.DeepEqual(t, "TagsDelete", plan.TagsDelete, []string{"v2", "v1"})
	assert.DeepEqual(t, "VersionsDelete", plan.VersionsDelete, []ociref.Digest{middle.Name, oldest.Name})
}

// Scenario 5: root A (tag v1) has an attestation B carrying only its own OCI
// 1.0 referrers-tag fallback ("sha256-<A's digest>"), linked as A's child by
// the resolver's Pass 3. Including A's tag v1 must delete both A and B: B is only
// reachable through A's closure, its own fallback tag must not independently
// protect it (see the referrers-tag self-protection decision in the design
// notes).
func TestComputeReferrerTagAttestationDeletesWithSubject(t *testing.T) {
	a := singleArch(1, "sha256:1111111111111111111111111111111111111111111111111111111111111111", []string{"v1"}, "2026-01-01T00:00:00Z")
	b := version.Version{
		ID:        2,
		Name:      "sha256:2222222222222222222222222222222222222222222222222222222222222222",
		Tags:      []string{"sha256-1111111111111111111111111111111111111111111111111111111111111111"},
		UpdatedAt: "2026-01-01T00:00:00Z",
		Manifest: manifest.Manifest{
			MediaType: "application/vnd.oci.image.manifest.v1+json",
			Layers:    []ociref.ManifestRef{{MediaType: "application/vnd.in-toto+json"}},
		},
	}

	f, err := forest.Build([]version.Version{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}

	include := regexpext.PlainRegexp("^v1$")
	plan := Compute(f, Config{IncludeTags: &include})

	assert.DeepEqual(t, "TagsDelete", plan.TagsDelete, []string{"v1"})
	assert.DeepEqual(t, "VersionsDelete", plan.VersionsDelete, []ociref.Digest{a.Name, b.Name})
}

// Scenario 6: P is an untagged root, Q is linked as P's child via the OCI
// 1.1 "subject" field, so Q is not itself a member of imagesRest. With
// keep-n-untagged=1, imagesRest = {P}, P is kept, and Q survives through
// P's closure: versions_delete must be empty.
func TestComputeSubjectLinkageAttestationFollowsItsSubject(t *testing.T) {
	p := singleArch(1, "sha256:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", nil, "2026-01-01T00:00:00Z")
	subj := ociref.ManifestRef{MediaType: "application/vnd.oci.image.manifest.v1+json", Digest: p.Name}
	q := version.Version{
		ID:        2,
		Name:      "sha256:bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		UpdatedAt: "2026-01-01T00:00:00Z",
		Manifest: manifest.Manifest{
			MediaType: "application/vnd.oci.image.manifest.v1+json",
			Layers:    []ociref.ManifestRef{{MediaType: "application/vnd.in-toto+json"}},
			Subject:   &subj,
		},
	}

	f, err := forest.Build([]version.Version{p, q})
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}

	plan := Compute(f, Config{KeepNUntagged: ptrInt(1)})

	assert.DeepEqual(t, "len(TagsDelete)", len(plan.TagsDelete), 0)
	assert.DeepEqual(t, "len(VersionsDelete)", len(plan.VersionsDelete), 0)
}
