package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"stack-keeper/internal/models"
	"stack-keeper/internal/render"
)

// maxBody bounds how much of a response is searched for expected content.
const maxBody = 64 << 10

type httpProbe struct {
	url    string
	status int
	expect []string
	client *http.Client
}

func newHTTPProbe(spec models.ProbeSpecification) *httpProbe {
	return &httpProbe{
		url:    spec.URL,
		status: spec.Status,
		expect: spec.Expect,
		client: &http.Client{Timeout: DefaultTimeout},
	}
}

// Check issues a GET; any 2xx passes unless an exact status is configured.
// With expect set, the body must also contain one of the expected strings.
func (p *httpProbe) Check(ctx context.Context, vars render.Source) error {
	url := render.Render(p.url, vars)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", url, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("GET %s: read body: %w", url, err)
	}

	if p.status != 0 {
		if resp.StatusCode != p.status {
			return fmt.Errorf("GET %s: status %d, want %d", url, resp.StatusCode, p.status)
		}
	} else if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return p.matchBody(url, string(body))
}

func (p *httpProbe) matchBody(url, body string) error {
	if len(p.expect) == 0 {
		return nil
	}
	for _, want := range p.expect {
		if strings.Contains(body, want) {
			return nil
		}
	}
	return fmt.Errorf("GET %s: body has none of %q", url, p.expect)
}
