// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package selection computes the deterministic, set-algebraic deletion plan
// described by the A_tag..F_dig notation: which tags to detach via the
// ghost-manifest protocol, and which versions to delete outright.
package selection

import (
	"sort"
	"time"

	"github.com/sapcc/go-bits/regexpext"

	"github.com/sapcc/ghcr-prune/internal/forest"
	"github.com/sapcc/ghcr-prune/internal/graph"
	"github.com/sapcc/ghcr-prune/internal/ociref"
)

// Config is the four configuration knobs the selection engine consumes. A
// nil regex/int pointer means that knob is unset, distinct from the zero
// value (e.g. KeepNTagged = 0 means "keep none", not "this knob doesn't
// apply").
type Config struct {
	IncludeTags   *regexpext.PlainRegexp
	ExcludeTags   *regexpext.PlainRegexp
	KeepNTagged   *int
	KeepNUntagged *int
}

// Plan is the final output: the tags to detach and the versions to delete
// outright, both expressed as plain digest/tag sets.
type Plan struct {
	TagsDelete     []string
	VersionsDelete []ociref.Digest
}

type taggedEntry struct {
	Tag  string
	Node *graph.Node
}

// Compute derives the deletion plan for f under cfg. It is pure: the same
// forest and config always yield the same plan.
func Compute(f *forest.Forest, cfg Config) Plan {
	allTags := collectAllTags(f)

	aTag, bTag, rest := partitionTags(allTags, cfg)
	sortTaggedEntriesDesc(rest)

	cTag, dTag := splitKeepN(rest, cfg.KeepNTagged)

	aDig := closureDigestsOfNodes(tagNodes(aTag))
	bDig := closureDigestsOfNodes(tagNodes(bTag))
	cDig := closureDigestsOfNodes(tagNodes(cTag))
	dDig := closureDigestsOfNodes(tagNodes(dTag))

	claimed := unionDigests(aDig, bDig, cDig, dDig)

	imagesRest := rootsNotIn(f.RootSet, claimed)
	sortNodesDesc(imagesRest)

	eRoots, fRoots := splitKeepN2(imagesRest, cfg.KeepNUntagged)
	eDig := closureDigestsOfNodes(eRoots)
	fDig := digestsOfNodes(fRoots) // deliberately no closure, see the F_dig closure decision in DESIGN.md

	tagsDelete := subtractTagSets(aTag, bTag)
	tagsDelete = append(tagsDelete, tagNames(dTag)...)

	kept := unionDigests(bDig, cDig, eDig)
	versionsDeleteSet := unionDigests(aDig, dDig, fDig)
	for d := range kept {
		delete(versionsDeleteSet, d)
	}

	return Plan{
		TagsDelete:     dedupStrings(tagsDelete),
		VersionsDelete: digestSetToSortedSlice(versionsDeleteSet),
	}
}

// collectAllTags gathers every tag across the forest, except OCI 1.0
// referrers-tag fallback encodings ("sha256-<hex>"). That form of tag is the
// linkage mechanism Pass 3 of the resolver uses to find an attestation's
// subject, not a name an operator or CI pipeline assigned; letting it
// participate in the tag partition would let an attestation protect itself
// from deletion independent of whatever root it actually attests, which
// contradicts the closure-based integrity rule this engine otherwise
// enforces. An attestation still survives, correctly, whenever its subject's
// closure does.
func collectAllTags(f *forest.Forest) []taggedEntry {
	var out []taggedEntry
	for _, n := range f.Nodes {
		for _, t := range n.Version.Tags {
			if graph.IsReferrersTag(t) {
				continue
			}
			out = append(out, taggedEntry{Tag: t, Node: n})
		}
	}
	return out
}

// partitionTags splits allTags into A_tag (include matches), B_tag (exclude
// matches), and the remainder. A tag matching both include and exclude ends
// up in both A_tag and B_tag, never just one: the later tags_delete formula
// (A_tag \ B_tag) ∪ D_tag then correctly excludes it from deletion.
func partitionTags(allTags []taggedEntry, cfg Config) (a, b, rest []taggedEntry) {
	for _, e := range allTags {
		inA := cfg.IncludeTags != nil && cfg.IncludeTags.MatchString(e.Tag)
		inB := cfg.ExcludeTags != nil && cfg.ExcludeTags.MatchString(e.Tag)
		if inA {
			a = append(a, e)
		}
		if inB {
			b = append(b, e)
		}
		if !inA && !inB {
			rest = append(rest, e)
		}
	}
	return a, b, rest
}

func sortTaggedEntriesDesc(entries []taggedEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return parseUpdatedAt(entries[i].Node).After(parseUpdatedAt(entries[j].Node))
	})
}

func sortNodesDesc(nodes []*graph.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return parseUpdatedAt(nodes[i]).After(parseUpdatedAt(nodes[j]))
	})
}

// parseUpdatedAt parses a node's UpdatedAt as RFC3339, substituting the Unix
// epoch for unparseable values, per the documented fallback.
func parseUpdatedAt(n *graph.Node) time.Time {
	t, err := time.Parse(time.RFC3339, n.Version.UpdatedAt)
	if err != nil {
		return time.Unix(0, 0).UTC()
	}
	return t
}

// splitKeepN splits rest (already sorted newest-first) into C_tag (the first
// n entries, or all of rest if n is unset) and D_tag (the remainder, empty
// if n is unset).
func splitKeepN(rest []taggedEntry, n *int) (c, d []taggedEntry) {
	if n == nil {
		return rest, nil
	}
	keep := *n
	if keep < 0 {
		keep = 0
	}
	if keep >= len(rest) {
		return rest, nil
	}
	return rest[:keep], rest[keep:]
}

func splitKeepN2(rest []*graph.Node, n *int) (kept, dropped []*graph.Node) {
	if n == nil {
		return rest, nil
	}
	keep := *n
	if keep < 0 {
		keep = 0
	}
	if keep >= len(rest) {
		return rest, nil
	}
	return rest[:keep], rest[keep:]
}

func tagNodes(entries []taggedEntry) []*graph.Node {
	out := make([]*graph.Node, len(entries))
	for i, e := range entries {
		out[i] = e.Node
	}
	return out
}

func tagNames(entries []taggedEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Tag
	}
	return out
}

func closureDigestsOfNodes(roots []*graph.Node) map[ociref.Digest]bool {
	out := make(map[ociref.Digest]bool)
	for _, r := range roots {
		for _, n := range forest.Closure(r) {
			out[n.Digest()] = true
		}
	}
	return out
}

func digestsOfNodes(nodes []*graph.Node) map[ociref.Digest]bool {
	out := make(map[ociref.Digest]bool, len(nodes))
	for _, n := range nodes {
		out[n.Digest()] = true
	}
	return out
}

func unionDigests(sets ...map[ociref.Digest]bool) map[ociref.Digest]bool {
	out := make(map[ociref.Digest]bool)
	for _, s := range sets {
		for d := range s {
			out[d] = true
		}
	}
	return out
}

// rootsNotIn returns roots excluding those whose digest is in claimed, and
// excluding attestations (imagesRest never contains attestation roots).
func rootsNotIn(roots []*graph.Node, claimed map[ociref.Digest]bool) []*graph.Node {
	var out []*graph.Node
	for _, r := range roots {
		if claimed[r.Digest()] {
			continue
		}
		if r.Type == graph.ArtifactAttestation {
			continue
		}
		out = append(out, r)
	}
	return out
}

func subtractTagSets(a, b []taggedEntry) []string {
	excluded := make(map[string]bool, len(b))
	for _, e := range b {
		excluded[e.Tag] = true
	}
	out := make([]string, 0, len(a))
	for _, e := range a {
		if !excluded[e.Tag] {
			out = append(out, e.Tag)
		}
	}
	return out
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func digestSetToSortedSlice(set map[ociref.Digest]bool) []ociref.Digest {
	out := make([]ociref.Digest, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
