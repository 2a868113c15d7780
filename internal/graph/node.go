// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package graph provides the generic parent/children tree primitives that
// the relationship resolver and forest builder link versions through: a Link
// operation (which does not detect cycles), a cycle-safe generic Visit
// traversal, and a Render function that pretty-prints a tree for the
// operator-facing plan log.
package graph

import (
	"fmt"
	"strings"

	"github.com/sapcc/ghcr-prune/internal/ociref"
	"github.com/sapcc/ghcr-prune/internal/version"
)

// ArtifactType classifies a Node after all three resolver passes have run.
type ArtifactType string

const (
	ArtifactMultiArch   ArtifactType = "multi-arch image"
	ArtifactSingleArch  ArtifactType = "single-arch image"
	ArtifactAttestation ArtifactType = "attestation"
	ArtifactUnknown     ArtifactType = "unknown"
)

// Node is a Version together with its position in the forest. Node
// abstraction collapses onto Version itself (per the design note on the
// in-memory model): there is no separate identity, just these two extra
// fields plus the type classification.
type Node struct {
	Version  version.Version
	Parent   *Node
	Children []*Node
	Type     ArtifactType
}

// Digest is a convenience accessor, used pervasively by the resolver and
// selection engine as a map key.
func (n *Node) Digest() ociref.Digest {
	return n.Version.Name
}

// Reset clears all linkage and classification, restoring a Node to the state
// the forest builder expects before running the resolver passes.
func (n *Node) Reset() {
	n.Parent = nil
	n.Children = nil
	n.Type = ArtifactUnknown
}

// Link sets child.Parent = parent and appends child to parent.Children
// unless it is already present. Re-linking the same pair is a no-op. Linking
// a node to itself fails with SelfLinkError. Linking a child that already has
// a different parent fails with ConflictingParentError.
func Link(parent, child *Node) (*Node, error) {
	if parent == child {
		return nil, SelfLinkError{Digest: string(child.Digest())}
	}
	if child.Parent != nil && child.Parent != parent {
		return nil, ConflictingParentError{
			ChildDigest:    string(child.Digest()),
			ExistingParent: string(child.Parent.Digest()),
			NewParent:      string(parent.Digest()),
		}
	}

	child.Parent = parent
	for _, c := range parent.Children {
		if c == child {
			return child, nil
		}
	}
	parent.Children = append(parent.Children, child)
	return child, nil
}

// LinkShared is like Link, but tolerates a child that already has a
// different parent: two distinct multi-arch indices legitimately listing
// the same child digest (a shared base-layer manifest) is normal, not a
// graph inconsistency. The child's canonical Parent is whichever root
// claimed it first; every other claiming parent still records it in their
// own Children, so that Closure over any of its owners reaches it. Used
// exclusively by the index-manifest-children resolver pass; the other two
// passes use the strict Link, since a conflict there reflects a genuine
// cross-mechanism contradiction.
func LinkShared(parent, child *Node) (*Node, error) {
	if parent == child {
		return nil, SelfLinkError{Digest: string(child.Digest())}
	}
	if child.Parent == nil {
		child.Parent = parent
	}
	for _, c := range parent.Children {
		if c == child {
			return child, nil
		}
	}
	parent.Children = append(parent.Children, child)
	return child, nil
}

// Visit performs a pre-order traversal of root via childrenOf, applying fn to
// every node reached. It tracks visited nodes so that cyclic input (possible
// in malformed repositories; Link itself does not detect cycles) terminates
// instead of looping forever.
func Visit[T comparable](root T, childrenOf func(T) []T, fn func(T)) {
	visited := make(map[T]bool)
	var walk func(T)
	walk = func(n T) {
		if visited[n] {
			return
		}
		visited[n] = true
		fn(n)
		for _, c := range childrenOf(n) {
			walk(c)
		}
	}
	walk(root)
}

// Closure returns root together with every proper descendant transitively
// reachable through childrenOf, in pre-order discovery order. It traverses
// child edges only (not parent edges) and is cycle-safe for the same reason
// Visit is.
func Closure[T comparable](root T, childrenOf func(T) []T) []T {
	var out []T
	Visit(root, childrenOf, func(n T) {
		out = append(out, n)
	})
	return out
}

// Render produces the human-readable ASCII tree used in the plan log, using
// the exact prefixes " ├─", " └─", " │ ", "   " (continuation for
// non-last/last children respectively). label formats a single node; root is
// always printed as "- <label>" with no indentation.
func Render[T comparable](root T, childrenOf func(T) []T, label func(T) string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "- %s\n", label(root))

	visited := map[T]bool{root: true}
	var rec func(n T, prefix string)
	rec = func(n T, prefix string) {
		children := childrenOf(n)
		for i, c := range children {
			if visited[c] {
				continue // cycle guard: do not re-render an already-visited node
			}
			visited[c] = true
			last := i == len(children)-1
			branch := " ├─"
			childPrefix := prefix + " │ "
			if last {
				branch = " └─"
				childPrefix = prefix + "   "
			}
			fmt.Fprintf(&sb, "%s%s %s\n", prefix, branch, label(c))
			rec(c, childPrefix)
		}
	}
	rec(root, "")
	return sb.String()
}

// ChildrenOf is the standard children accessor used with Visit/Closure/Render
// over *Node.
func ChildrenOf(n *Node) []*Node {
	return n.Children
}
