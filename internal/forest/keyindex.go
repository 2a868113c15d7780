// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package forest composes the relationship resolver's three passes into the
// pure Build function, and maintains the KeyIndex that resolves a version by
// digest, numeric id, or tag.
package forest

import (
	"github.com/sapcc/ghcr-prune/internal/graph"
	"github.com/sapcc/ghcr-prune/internal/ociref"
)

// KeyIndex resolves {digest, numeric id, tag} to the Node that owns it.
// Within one Forest, each key maps to at most one Node.
type KeyIndex struct {
	byDigest map[ociref.Digest]*graph.Node
	byID     map[int32]*graph.Node
	byTag    map[string]*graph.Node
}

// BuildKeyIndex indexes every node in nodes. It is rebuilt from scratch on
// every call, which is what lets the forest builder stay pure: there is no
// incremental index update, only a full rebuild over the (possibly reduced)
// working set.
func BuildKeyIndex(nodes []*graph.Node) *KeyIndex {
	idx := &KeyIndex{
		byDigest: make(map[ociref.Digest]*graph.Node, len(nodes)),
		byID:     make(map[int32]*graph.Node, len(nodes)),
		byTag:    make(map[string]*graph.Node),
	}
	for _, n := range nodes {
		idx.byDigest[n.Digest()] = n
		idx.byID[n.Version.ID] = n
		for _, t := range n.Version.Tags {
			idx.byTag[t] = n
		}
	}
	return idx
}

// LookupDigest resolves a digest to its owning node, or nil if absent from
// the working set this index was built over.
func (k *KeyIndex) LookupDigest(d ociref.Digest) *graph.Node {
	if d == "" {
		return nil
	}
	return k.byDigest[d]
}

// LookupID resolves a numeric package-version id to its owning node.
func (k *KeyIndex) LookupID(id int32) *graph.Node {
	return k.byID[id]
}

// LookupTag resolves a tag to its owning node.
func (k *KeyIndex) LookupTag(tag string) *graph.Node {
	return k.byTag[tag]
}

// ForgetTag removes a tag from the index, used by the tag-deletion protocol
// once the tag has been detached from its owning version in the registry.
func (k *KeyIndex) ForgetTag(tag string) {
	delete(k.byTag, tag)
}
