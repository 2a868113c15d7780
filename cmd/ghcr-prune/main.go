// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Command ghcr-prune reconstructs the artifact graph for one ghcr.io
// container package and deletes whatever the selection rules say should go.
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sapcc/go-bits/errext"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/must"
	"github.com/sapcc/go-bits/osext"
	"github.com/sapcc/go-bits/regexpext"
	"github.com/spf13/cobra"

	"github.com/sapcc/ghcr-prune/internal/config"
	"github.com/sapcc/ghcr-prune/internal/executor"
	"github.com/sapcc/ghcr-prune/internal/forest"
	"github.com/sapcc/ghcr-prune/internal/githubapi"
	"github.com/sapcc/ghcr-prune/internal/manifest"
	"github.com/sapcc/ghcr-prune/internal/metrics"
	"github.com/sapcc/ghcr-prune/internal/registry"
	"github.com/sapcc/ghcr-prune/internal/runlog"
	"github.com/sapcc/ghcr-prune/internal/selection"
	"github.com/sapcc/ghcr-prune/internal/version"
)

var flags struct {
	token         string
	owner         string
	ownerType     string
	visibility    string
	pkg           string
	includeTags   string
	excludeTags   string
	keepNTagged   int
	hasKeepTagged bool
	keepNUntagged int
	hasKeepUntag  bool
	dryRun        bool
	logLevel      string
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "ghcr-prune",
		Short: "Prune ghcr.io container package versions and tags.",
		Long:  "ghcr-prune reconstructs the OCI artifact graph for one ghcr.io container package from the GitHub Packages API and the registry's manifest API, then deletes tags and versions according to the configured retention rules.",
		Args:  cobra.NoArgs,
		Run:   run,
	}

	rootCmd.Flags().StringVar(&flags.token, "token", osext.GetenvOrDefault("GHCR_PRUNE_TOKEN", ""), "GitHub token with packages:read/write scope (env GHCR_PRUNE_TOKEN)")
	rootCmd.Flags().StringVar(&flags.owner, "owner", osext.GetenvOrDefault("GHCR_PRUNE_OWNER", ""), "package owner login (env GHCR_PRUNE_OWNER)")
	rootCmd.Flags().StringVar(&flags.ownerType, "owner-type", osext.GetenvOrDefault("GHCR_PRUNE_OWNER_TYPE", "organization"), `"user" or "organization"`)
	rootCmd.Flags().StringVar(&flags.visibility, "visibility", osext.GetenvOrDefault("GHCR_PRUNE_VISIBILITY", "private"), `for owner-type=user, package "public" or "private" visibility`)
	rootCmd.Flags().StringVar(&flags.pkg, "package", osext.GetenvOrDefault("GHCR_PRUNE_PACKAGE", ""), "container package name (env GHCR_PRUNE_PACKAGE)")
	rootCmd.Flags().StringVar(&flags.includeTags, "include-tags", "", "only tags matching this regex are eligible for deletion")
	rootCmd.Flags().StringVar(&flags.excludeTags, "exclude-tags", "", "tags matching this regex are always kept")
	rootCmd.Flags().IntVar(&flags.keepNTagged, "keep-n-tagged", 0, "keep the N most recently updated tagged versions not already covered by include/exclude")
	rootCmd.Flags().IntVar(&flags.keepNUntagged, "keep-n-untagged", 0, "keep the N most recently updated untagged root versions")
	rootCmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "compute and log the plan, but do not delete or rewrite any tag or version")
	rootCmd.Flags().StringVar(&flags.logLevel, "log-level", osext.GetenvOrDefault("GHCR_PRUNE_LOG_LEVEL", "warn"), "error|warn|info|debug")

	rootCmd.PreRun = func(cmd *cobra.Command, args []string) {
		flags.hasKeepTagged = cmd.Flags().Changed("keep-n-tagged")
		flags.hasKeepUntag = cmd.Flags().Changed("keep-n-untagged")
	}

	must.Succeed(rootCmd.Execute())
}

func run(cmd *cobra.Command, args []string) {
	cfg := buildConfig()
	must.Succeed(cfg.Validate())
	runlog.Current = runlog.ParseLevel(cfg.LogLevel)

	ctx := context.Background()
	m := metrics.New()

	gh := githubapi.New(http.DefaultClient, cfg.Token, cfg.Owner,
		githubapi.OwnerType(cfg.OwnerType), githubapi.Visibility(flags.visibility), cfg.Package)
	gw := registry.NewHTTPGateway(gh, cfg.Owner, cfg.Package, cfg.Token)

	start := time.Now()
	f := must.Return(loadForest(ctx, gh, gw))
	runlog.Info("loaded %d versions in %s", len(f.Nodes), time.Since(start).Round(time.Millisecond))

	for _, root := range f.RootSet {
		runlog.Debug("%s", forest.Render(root))
	}

	selCfg := selection.Config{
		IncludeTags:   cfg.IncludeTags,
		ExcludeTags:   cfg.ExcludeTags,
		KeepNTagged:   cfg.KeepNTagged,
		KeepNUntagged: cfg.KeepNUntagged,
	}

	plan := selection.Compute(f, selCfg)
	runlog.Info("plan: delete %d tags, %d versions", len(plan.TagsDelete), len(plan.VersionsDelete))

	if flags.dryRun {
		for _, t := range plan.TagsDelete {
			logg.Info("DRY RUN: would delete tag %s", t)
		}
		for _, d := range plan.VersionsDelete {
			logg.Info("DRY RUN: would delete version %s", d)
		}
	}

	exec := executor.New(gw, gh, m, flags.dryRun)
	_ = must.Return(exec.Run(ctx, f, plan))

	logg.Info("done: %d tags deleted (%d failed), %d versions deleted (%d failed), elapsed %s",
		int(metrics.CounterValue(m.TagsDeleted)), int(metrics.CounterValue(m.TagsDeleteFailed)),
		int(metrics.CounterValue(m.VersionsDeleted)), int(metrics.CounterValue(m.VersionsDeleteFailed)),
		time.Since(start).Round(time.Millisecond))
}

func buildConfig() config.Config {
	cfg := config.Config{
		Token:      flags.token,
		Owner:      flags.owner,
		OwnerType:  config.OwnerType(flags.ownerType),
		Repository: flags.owner + "/" + flags.pkg,
		Package:    flags.pkg,
		DryRun:     flags.dryRun,
		LogLevel:   flags.logLevel,
	}
	if flags.includeTags != "" {
		r := regexpext.PlainRegexp(flags.includeTags)
		cfg.IncludeTags = &r
	}
	if flags.excludeTags != "" {
		r := regexpext.PlainRegexp(flags.excludeTags)
		cfg.ExcludeTags = &r
	}
	cfg.KeepNTagged = optionalInt(flags.hasKeepTagged, flags.keepNTagged)
	cfg.KeepNUntagged = optionalInt(flags.hasKeepUntag, flags.keepNUntagged)
	return cfg
}

func optionalInt(set bool, val int) *int {
	if !set {
		return nil
	}
	v := val
	return &v
}

// loadForest fetches every active version from the GitHub Packages API,
// attaches its manifest from the registry, and builds the initial forest. A
// version whose manifest has gone missing from the registry (observed with
// stale pagination) is kept with a zero-value, unknown-typed manifest rather
// than dropped, so the selection engine can still see it and the executor can
// still delete it if the plan selects it. Any other failure to decode a
// version or fetch its manifest aborts the load.
func loadForest(ctx context.Context, gh *githubapi.Client, gw *registry.HTTPGateway) (*forest.Forest, error) {
	var versions []version.Version

	err := gh.ListVersions(ctx, func(payload []byte) error {
		v, err := version.Decode(payload)
		if err != nil {
			return err
		}
		m, err := gw.FetchManifest(ctx, v.Name)
		switch {
		case err == nil:
			v.Manifest = m
		case errext.IsOfType[registry.ManifestNotFoundError](err):
			runlog.Warn("manifest for version %s not found, keeping it as an unknown artifact: %s", v.Name, err.Error())
			v.Manifest = manifest.Manifest{}
		default:
			return fmt.Errorf("fetching manifest for version %s: %w", v.Name, err)
		}
		versions = append(versions, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing package versions: %w", err)
	}

	return forest.Build(versions)
}
