// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package forest

import (
	"github.com/sapcc/ghcr-prune/internal/graph"
	"github.com/sapcc/ghcr-prune/internal/version"
)

// Forest is the set of all nodes plus the derived RootSet and KeyIndex.
type Forest struct {
	Nodes    []*graph.Node
	RootSet  []*graph.Node
	KeyIndex *KeyIndex
}

// Build is the forest builder: given a set of versions, it resets any
// existing linkage, runs the three resolver passes in order, computes the
// root set, and classifies every node's ArtifactType. Build is pure: the
// same input always produces the same output. It is invoked at initial load;
// after deletions, the executor rebuilds the forest over the reduced version
// set once, when its whole batch of version deletions has finished, not after
// each individual deletion.
func Build(versions []version.Version) (*Forest, error) {
	nodes := make([]*graph.Node, len(versions))
	for i, v := range versions {
		nodes[i] = &graph.Node{Version: v, Type: graph.ArtifactUnknown}
	}
	return BuildFromNodes(nodes)
}

// BuildFromNodes is like Build, but takes nodes that may already exist
// (e.g. carried over from a previous Forest after a deletion) and resets
// their linkage before re-resolving. This preserves object identity for
// nodes that survive a deletion round, which matters for callers holding
// pointers into the previous Forest's RootSet.
func BuildFromNodes(nodes []*graph.Node) (*Forest, error) {
	for _, n := range nodes {
		n.Reset()
	}

	idx := BuildKeyIndex(nodes)

	if err := resolve(nodes, idx); err != nil {
		return nil, err
	}

	var roots []*graph.Node
	for _, n := range nodes {
		if n.Parent == nil {
			roots = append(roots, n)
		}
		n.Type = graph.Classify(n)
	}

	return &Forest{Nodes: nodes, RootSet: roots, KeyIndex: idx}, nil
}

// Closure returns root together with every proper descendant reachable
// through child edges, in pre-order discovery order.
func Closure(root *graph.Node) []*graph.Node {
	return graph.Closure(root, graph.ChildrenOf)
}

// Render produces the ASCII tree for root using the node's digest as label.
func Render(root *graph.Node) string {
	return graph.Render(root, graph.ChildrenOf, func(n *graph.Node) string {
		return string(n.Digest())
	})
}
