// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package githubapi is a hand-rolled client for the two GitHub Packages
// REST operations the core needs: owner-type-aware version listing
// (paginated), and version deletion. No GitHub API client library appears
// anywhere in the retrieved example pack, so this is a deliberate stdlib
// fallback grounded on the pagination and request-building idiom of
// other_examples/headframe-io-workflow-ghcr-cleaner__action.go, the one
// reference file in the pack that talks to this exact API.
package githubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Visibility distinguishes a user-owned package repository's visibility,
// which (together with OwnerType) selects which of the three GitHub
// Packages REST endpoint families to call.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// OwnerType mirrors config.OwnerType; duplicated here (rather than imported)
// to keep this package free of a dependency on internal/config.
type OwnerType string

const (
	OwnerTypeUser OwnerType = "user"
	OwnerTypeOrg  OwnerType = "organization"
)

// Client is a GitHub Packages REST API client scoped to one owner/package.
type Client struct {
	httpClient *http.Client
	token      string
	owner      string
	ownerType  OwnerType
	visibility Visibility
	packageKind string
	packageName string
}

// New builds a Client. packageKind is the GitHub "package_type" value,
// always "container" for this tool.
func New(httpClient *http.Client, token, owner string, ownerType OwnerType, visibility Visibility, packageName string) *Client {
	return &Client{
		httpClient:  httpClient,
		token:       token,
		owner:       owner,
		ownerType:   ownerType,
		visibility:  visibility,
		packageKind: "container",
		packageName: packageName,
	}
}

// versionsBaseURL selects among the three endpoint families documented in
// GitHub's Packages API: organization-owned packages, a user's own private
// packages (authenticated as that user), or a user's public packages.
func (c *Client) versionsBaseURL() string {
	switch {
	case c.ownerType == OwnerTypeOrg:
		return fmt.Sprintf("https://api.github.com/orgs/%s/packages/%s/%s/versions", c.owner, c.packageKind, c.packageName)
	case c.visibility == VisibilityPrivate:
		return fmt.Sprintf("https://api.github.com/user/packages/%s/%s/versions", c.packageKind, c.packageName)
	default:
		return fmt.Sprintf("https://api.github.com/users/%s/packages/%s/%s/versions", c.owner, c.packageKind, c.packageName)
	}
}

func (c *Client) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	return req, nil
}

// ListVersions enumerates every active container version in the package,
// paginated at 100 per page, calling visit for each raw JSON version payload
// in the order the API returned it (ingest order is required to be the
// paginated API order, for the selection engine's sort determinism).
func (c *Client) ListVersions(ctx context.Context, visit func(payload []byte) error) error {
	url := c.versionsBaseURL() + "?per_page=100&state=active"
	for url != "" {
		req, err := c.newRequest(ctx, http.MethodGet, url)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("listing package versions: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("listing package versions: HTTP %d: %s", resp.StatusCode, string(body))
		}

		var rawVersions []json.RawMessage
		err = json.NewDecoder(resp.Body).Decode(&rawVersions)
		next := parseNextLink(resp.Header.Get("Link"))
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decoding package versions page: %w", err)
		}

		for _, raw := range rawVersions {
			if err := visit(raw); err != nil {
				return err
			}
		}

		url = next
	}
	return nil
}

// DeleteVersion deletes a single package version by its numeric id.
func (c *Client) DeleteVersion(ctx context.Context, id int32) error {
	url := fmt.Sprintf("%s/%d", c.versionsBaseURL(), id)
	req, err := c.newRequest(ctx, http.MethodDelete, url)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deleting package version %d: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("deleting package version %d: HTTP %d: %s", id, resp.StatusCode, string(body))
	}
	return nil
}

// parseNextLink extracts the rel="next" URL from an RFC 5988 Link header, or
// returns "" if there is no next page.
func parseNextLink(header string) string {
	if header == "" {
		return ""
	}
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		url := strings.TrimSpace(segments[0])
		url = strings.TrimPrefix(url, "<")
		url = strings.TrimSuffix(url, ">")
		for _, seg := range segments[1:] {
			seg = strings.TrimSpace(seg)
			if seg == `rel="next"` {
				return url
			}
		}
	}
	return ""
}
