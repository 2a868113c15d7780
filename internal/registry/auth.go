// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// challenge is a parsed Bearer WWW-Authenticate header.
type challenge struct {
	Realm   string
	Service string
	Scope   string
}

// parseChallenge parses a "WWW-Authenticate: Bearer realm="…",service="…",scope="…""
// header. Values may be quoted or bare, comma-separated, tolerant of extra
// whitespace. All three of realm/service/scope must be present; otherwise
// the challenge is considered invalid.
func parseChallenge(header string) (challenge, error) {
	const prefix = "Bearer "
	trimmed := strings.TrimSpace(header)
	if !strings.HasPrefix(trimmed, prefix) {
		return challenge{}, AuthChallengeInvalidError{Header: header}
	}
	body := strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))

	var c challenge
	for _, field := range strings.Split(body, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		val := strings.TrimSpace(kv[1])
		val = strings.Trim(val, `"`)
		switch key {
		case "realm":
			c.Realm = val
		case "service":
			c.Service = val
		case "scope":
			c.Scope = val
		}
	}

	if c.Realm == "" || c.Service == "" || c.Scope == "" {
		return challenge{}, AuthChallengeInvalidError{Header: header}
	}
	return c, nil
}

type tokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
}

// exchangeToken performs the Basic-auth token exchange described by a
// challenge, using username "token" and the configured GitHub token as the
// password, per the ghcr.io documented authentication flow.
func (g *HTTPGateway) exchangeToken(ctx context.Context, c challenge) (string, error) {
	url := fmt.Sprintf("%s?service=%s&scope=%s", c.Realm, c.Service, c.Scope)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", AuthFailedError{Reason: err.Error()}
	}
	req.SetBasicAuth("token", g.githubToken)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", AuthFailedError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", AuthFailedError{Reason: fmt.Sprintf("token endpoint returned HTTP %d", resp.StatusCode)}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", AuthFailedError{Reason: err.Error()}
	}
	token := tr.Token
	if token == "" {
		token = tr.AccessToken
	}
	if token == "" {
		return "", AuthFailedError{Reason: "token endpoint response had no usable token"}
	}
	return token, nil
}
