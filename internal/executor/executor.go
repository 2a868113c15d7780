// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package executor applies a selection.Plan: tags are detached sequentially
// via the ghost-manifest rewrite protocol (ghcr.io has no DELETE-tag API),
// and versions are deleted with a bounded worker pool of size 3, chosen
// empirically to stay below the GitHub API rate limit with headroom.
package executor

import (
	"context"
	"fmt"

	"github.com/sapcc/ghcr-prune/internal/forest"
	"github.com/sapcc/ghcr-prune/internal/graph"
	"github.com/sapcc/ghcr-prune/internal/metrics"
	"github.com/sapcc/ghcr-prune/internal/ociref"
	"github.com/sapcc/ghcr-prune/internal/registry"
	"github.com/sapcc/ghcr-prune/internal/runlog"
	"github.com/sapcc/ghcr-prune/internal/selection"
	"github.com/sapcc/ghcr-prune/internal/version"
)

// concurrency is the fixed worker count for version deletions.
const concurrency = 3

// VersionLister is the subset of githubapi.Client the tag-deletion protocol
// needs to re-list package versions after a ghost-manifest PUT creates a new
// one carrying the detached tag.
type VersionLister interface {
	ListVersions(ctx context.Context, visit func(payload []byte) error) error
}

// Executor applies a Plan against a Forest.
type Executor struct {
	gateway registry.Gateway
	lister  VersionLister
	metrics *metrics.Counters
	dryRun  bool
}

// New builds an Executor.
func New(gateway registry.Gateway, lister VersionLister, m *metrics.Counters, dryRun bool) *Executor {
	return &Executor{gateway: gateway, lister: lister, metrics: m, dryRun: dryRun}
}

// Run applies plan against f, returning the rebuilt Forest over the
// surviving versions. Tag deletions run first (sequentially, each one is
// fatal on failure since it leaves the model diverged from the registry if
// only partially applied); version deletions run afterwards with bounded
// concurrency and are individually non-fatal.
func (e *Executor) Run(ctx context.Context, f *forest.Forest, plan selection.Plan) (*forest.Forest, error) {
	for _, tag := range plan.TagsDelete {
		if err := e.deleteTag(ctx, f, tag); err != nil {
			return nil, TagDeleteFailureError{Tag: tag, Inner: err}
		}
	}

	deleted := e.deleteVersions(ctx, f, plan.VersionsDelete)

	survivors := make([]*graph.Node, 0, len(f.Nodes))
	for _, n := range f.Nodes {
		if !deleted[n.Digest()] {
			survivors = append(survivors, n)
		}
	}

	return forest.BuildFromNodes(survivors)
}

// deleteTag performs the ghost-manifest protocol for a single tag:
//  1. clone the owner's manifest
//  2. empty out its manifests (if non-empty) else its layers, so the clone
//     points at nothing
//  3. PUT the clone under the tag, creating a new disposable version
//  4. re-list versions to find that new version
//  5. delete it, which detaches the tag from the original version
//  6. remove the tag from the original version's in-memory state
//
// In dry-run mode, steps 1-5 are skipped; only the in-memory state is
// mutated, for logging purposes.
func (e *Executor) deleteTag(ctx context.Context, f *forest.Forest, tag string) error {
	owner := f.KeyIndex.LookupTag(tag)
	if owner == nil {
		runlog.Warn("tag %q no longer present, skipping", tag)
		return nil
	}

	if !e.dryRun {
		clone := owner.Version.Manifest.Clone()
		if len(clone.Manifests) > 0 {
			clone.Manifests = []ociref.ManifestRef{}
		} else {
			clone.Layers = []ociref.ManifestRef{}
		}

		if err := e.gateway.PutManifest(ctx, tag, clone); err != nil {
			e.metrics.TagsDeleteFailed.Inc()
			return fmt.Errorf("putting ghost manifest: %w", err)
		}

		newID, err := e.findVersionCarryingTag(ctx, owner.Version.ID, tag)
		if err != nil {
			e.metrics.TagsDeleteFailed.Inc()
			return err
		}

		if err := e.gateway.DeleteVersion(ctx, newID); err != nil {
			e.metrics.TagsDeleteFailed.Inc()
			return fmt.Errorf("deleting ghost version %d: %w", newID, err)
		}
	}

	owner.Version.Tags = removeString(owner.Version.Tags, tag)
	f.KeyIndex.ForgetTag(tag)
	e.metrics.TagsDeleted.Inc()
	return nil
}

// findVersionCarryingTag re-lists package versions to find the new version
// the ghost-manifest PUT created, identified as the version carrying tag
// whose id is not the original owner's.
func (e *Executor) findVersionCarryingTag(ctx context.Context, originalID int32, tag string) (int32, error) {
	found := int32(-1)
	sentinel := fmt.Errorf("found")

	err := e.lister.ListVersions(ctx, func(payload []byte) error {
		v, err := version.Decode(payload)
		if err != nil {
			runlog.Warn("skipping unparseable version during re-list: %s", err.Error())
			return nil
		}
		if v.ID == originalID {
			return nil
		}
		for _, t := range v.Tags {
			if t == tag {
				found = v.ID
				return sentinel
			}
		}
		return nil
	})
	if err != nil && err != sentinel {
		return 0, fmt.Errorf("re-listing versions to find ghost version for tag %q: %w", tag, err)
	}
	if found < 0 {
		return 0, fmt.Errorf("could not find new version carrying tag %q after ghost-manifest PUT", tag)
	}
	return found, nil
}

// deleteVersions deletes every digest in digests with bounded concurrency,
// returning the set that was actually deleted. Workers share no mutable
// state: they only read the KeyIndex and call the gateway. The metrics
// counters and the returned set are updated by the single coordinating
// goroutine, so no locking is needed on the forest itself.
func (e *Executor) deleteVersions(ctx context.Context, f *forest.Forest, digests []ociref.Digest) map[ociref.Digest]bool {
	type result struct {
		digest ociref.Digest
		err    error
	}

	jobs := make(chan ociref.Digest)
	results := make(chan result)

	for w := 0; w < concurrency; w++ {
		go func() {
			for d := range jobs {
				n := f.KeyIndex.LookupDigest(d)
				if n == nil {
					results <- result{digest: d, err: fmt.Errorf("digest not found in working set")}
					continue
				}
				var err error
				if !e.dryRun {
					err = e.gateway.DeleteVersion(ctx, n.Version.ID)
				}
				results <- result{digest: d, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, d := range digests {
			jobs <- d
		}
	}()

	deleted := make(map[ociref.Digest]bool, len(digests))
	for range digests {
		r := <-results
		if r.err != nil {
			e.metrics.VersionsDeleteFailed.Inc()
			runlog.Error("%s", PlanApplyFailureError{Digest: string(r.digest), Inner: r.err}.Error())
			continue
		}
		e.metrics.VersionsDeleted.Inc()
		deleted[r.digest] = true
	}

	return deleted
}

func removeString(in []string, target string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
