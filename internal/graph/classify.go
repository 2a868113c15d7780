// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"regexp"

	"github.com/sapcc/ghcr-prune/internal/ociref"
)

const inTotoLayerMediaType = "application/vnd.in-toto+json"

var referrersTagPattern = regexp.MustCompile(`^sha256-[a-f0-9]{64}$`)

// Classify determines n's ArtifactType. It must run after all three resolver
// passes (it inspects n's already-linked Subject/tag state indirectly via
// n.Version, which the resolver passes never mutate). Order matters: the
// attestation checks precede the single/multi-arch checks, so that an
// attestation which happens to carry layers is never mis-classified as a
// single-arch image.
func Classify(n *Node) ArtifactType {
	m := n.Version.Manifest

	if len(m.Layers) > 0 && allInToto(m.Layers) {
		return ArtifactAttestation
	}
	if m.Subject != nil {
		return ArtifactAttestation
	}
	for _, t := range n.Version.Tags {
		if referrersTagPattern.MatchString(t) {
			return ArtifactAttestation
		}
	}
	if len(m.Layers) > 0 {
		return ArtifactSingleArch
	}
	if len(m.Manifests) > 0 {
		return ArtifactMultiArch
	}
	return ArtifactUnknown
}

// IsReferrersTag reports whether t is the OCI 1.0 referrers-tag fallback
// encoding of a subject digest ("sha256-<hex>"), rather than a tag a user or
// CI pipeline assigned. Used by the selection engine to keep such tags out of
// the retention accounting: they are a linkage mechanism, not a retainable
// name.
func IsReferrersTag(t string) bool {
	return referrersTagPattern.MatchString(t)
}

func allInToto(layers []ociref.ManifestRef) bool {
	for _, l := range layers {
		if l.MediaType != inTotoLayerMediaType {
			return false
		}
	}
	return true
}
