// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package forest

import (
	"strings"

	"github.com/sapcc/go-bits/errext"

	"github.com/sapcc/ghcr-prune/internal/graph"
	"github.com/sapcc/ghcr-prune/internal/ociref"
)

// resolve runs the three linkage passes over nodes in order: manifest
// children, referrer subject, referrer tag. idx must already be built over
// exactly the same working set. It returns the first GraphInconsistencyError
// encountered, if any.
func resolve(nodes []*graph.Node, idx *KeyIndex) error {
	if err := linkManifestChildren(nodes, idx); err != nil {
		return err
	}
	if err := linkReferrerSubject(nodes, idx); err != nil {
		return err
	}
	if err := linkReferrerTag(nodes, idx); err != nil {
		return err
	}
	return nil
}

// linkManifestChildren is Pass 1: for every version whose manifest lists
// child manifests (an image index or manifest list), link each resolvable
// child as a child of that version. Children absent from the working set
// are silently dropped, per the documented policy for references to
// manifests that never made it into the package repository listing.
//
// Two different index roots legitimately listing the same child digest is
// normal (a shared base-image manifest referenced by two multi-arch tags),
// not a graph inconsistency: this is the precise scenario the selection
// engine's integrity-rule subtraction exists to handle, so linking here uses
// graph.LinkShared rather than the strict graph.Link. The child's Parent
// still names whichever root claimed it first (used for root-determination
// and single-tree rendering); it is additionally recorded as a Children
// member of every other claiming root, so Closure over any of them reaches
// it.
func linkManifestChildren(nodes []*graph.Node, idx *KeyIndex) error {
	for _, v := range nodes {
		for _, c := range v.Version.Manifest.Manifests {
			u := idx.LookupDigest(c.Digest)
			if u == nil {
				continue
			}
			if _, err := graph.LinkShared(v, u); err != nil {
				if errext.IsOfType[graph.SelfLinkError](err) {
					continue
				}
				return err
			}
		}
	}
	return nil
}

// linkReferrerSubject is Pass 2: for every version carrying an OCI 1.1
// "subject" field, link it as a child of the version its subject points at.
func linkReferrerSubject(nodes []*graph.Node, idx *KeyIndex) error {
	for _, v := range nodes {
		subj := v.Version.Manifest.Subject
		if subj == nil || subj.Digest == "" {
			continue
		}
		u := idx.LookupDigest(subj.Digest)
		if u == nil {
			continue
		}
		if err := tryLink(u, v); err != nil {
			return err
		}
	}
	return nil
}

// linkReferrerTag is Pass 3: the OCI 1.0 referrers-tag fallback. A tag of the
// form "sha256-<hex>" encodes the digest of the subject by replacing the
// first "-" with ":". Every tag on every version is tried independently;
// a version can pick up several such edges if it carries several such tags
// (unusual, but not forbidden).
func linkReferrerTag(nodes []*graph.Node, idx *KeyIndex) error {
	for _, v := range nodes {
		for _, t := range v.Version.Tags {
			transformed := replaceFirstDash(t)
			u := idx.LookupDigest(ociref.Digest(transformed))
			if u == nil || u == v {
				continue
			}
			if err := tryLink(u, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// replaceFirstDash replaces the first occurrence of "-" with ":", turning
// "sha256-<hex>" into "sha256:<hex>". Tags without a dash are returned
// unchanged (and will simply fail to resolve as a digest).
func replaceFirstDash(t string) string {
	i := strings.Index(t, "-")
	if i < 0 {
		return t
	}
	return t[:i] + ":" + t[i+1:]
}

// tryLink attempts to link parent/child, treating a self-link as a silent
// no-op (per the documented edge-case policy) and escalating a conflicting
// parent to GraphInconsistencyError.
func tryLink(parent, child *graph.Node) error {
	_, err := graph.Link(parent, child)
	if err == nil {
		return nil
	}
	if errext.IsOfType[graph.SelfLinkError](err) {
		return nil
	}
	if cpe, ok := errext.As[graph.ConflictingParentError](err); ok {
		return graph.GraphInconsistencyError{Inner: cpe}
	}
	return err
}
