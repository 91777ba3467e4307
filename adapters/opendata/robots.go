package opendata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// robotsGate caches the portal's robots.txt and answers path checks for
// plain HTTP fetches that bypass the colly collector. An unreachable or
// malformed robots.txt allows everything, matching crawler convention.
type robotsGate struct {
	userAgent  string
	httpClient *http.Client

	once  sync.Once
	group *robotstxt.Group
}

func newRobotsGate(userAgent string, client *http.Client) *robotsGate {
	return &robotsGate{userAgent: userAgent, httpClient: client}
}

// Allowed reports whether the gate permits fetching target.
func (g *robotsGate) Allowed(ctx context.Context, target string) bool {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return false
	}

	g.once.Do(func() { g.load(ctx, u) })

	if g.group == nil {
		return true
	}
	return g.group.Test(u.Path)
}

func (g *robotsGate) load(ctx context.Context, u *url.URL) {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return
	}
	g.group = data.FindGroup(g.userAgent)
}
