// Package stub provides the location-transparent remote handle for one
// object. A Stub rewrites requests onto the owning node's endpoint and
// passes the response back unmodified; it performs no retries, so a write
// forwarded through it happens at most once.
package stub

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/warrenhq/warren/internal/identity"
	"github.com/warrenhq/warren/internal/warrenerr"
)

// DefaultRequestTimeout caps forwarded calls when the namespace does not
// configure its own limit.
const DefaultRequestTimeout = 30 * time.Second

// locationHintHeader carries the advisory placement hint. The receiving
// control plane may use or ignore it; the stub only forwards it.
const locationHintHeader = "Warren-Location-Hint"

// Stub forwards HTTP requests to whichever node currently owns an
// identity.
type Stub struct {
	id           identity.Identity
	backendURL   string
	timeout      time.Duration
	client       *http.Client
	locationHint string
}

// Config carries the forwarding parameters a namespace binds stubs with.
type Config struct {
	// BackendURL is the owning-node endpoint prefix, e.g.
	// "http://127.0.0.1:8787".
	BackendURL string
	// Timeout is the hard cap per forwarded call; zero means
	// DefaultRequestTimeout.
	Timeout time.Duration
	// Client is the HTTP client to forward with; nil means
	// http.DefaultClient.
	Client *http.Client
	// LocationHint is advisory and forwarded verbatim when non-empty.
	LocationHint string
}

// New binds a stub to a resolved identity.
func New(id identity.Identity, cfg Config) *Stub {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &Stub{
		id:           id,
		backendURL:   strings.TrimSuffix(cfg.BackendURL, "/"),
		timeout:      timeout,
		client:       client,
		locationHint: cfg.LocationHint,
	}
}

// ID returns the bound identity.
func (s *Stub) ID() identity.Identity {
	return s.id
}

// Name returns the object name when the bound identity carries one.
func (s *Stub) Name() (string, bool) {
	return s.id.Name()
}

// Fetch forwards req to the object's owning node.
//
// Only the path and query of req's URL are kept; its scheme and host are
// placeholders and are ignored. The forwarded URL is
//
//	{backendURL}/do/{namespace}/{id}{path}{?query}
//
// Method, headers, and body pass through verbatim, and the remote response
// comes back unmodified. The call is capped at the configured timeout and
// fails with CodeRemoteTimeout past it.
func (s *Stub) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	target := s.ForwardURL(req.URL)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	out, err := http.NewRequestWithContext(ctx, req.Method, target, req.Body)
	if err != nil {
		cancel()
		return nil, err
	}
	out.Header = req.Header.Clone()
	if out.Header == nil {
		out.Header = http.Header{}
	}
	if s.locationHint != "" {
		out.Header.Set(locationHintHeader, s.locationHint)
	}
	out.ContentLength = req.ContentLength

	resp, err := s.client.Do(out)
	if err != nil {
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, warrenerr.Newf(warrenerr.CodeRemoteTimeout,
				"request to object %s exceeded %s", s.id.String(), s.timeout)
		}
		return nil, err
	}
	// The body must stay readable after Fetch returns; tie the timeout's
	// cancel to body close instead of this frame.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// FetchURL is Fetch for callers that have a URL rather than a prebuilt
// request.
func (s *Stub) FetchURL(ctx context.Context, method, rawURL string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, rawURL, body)
	if err != nil {
		return nil, err
	}
	return s.Fetch(ctx, req)
}

// ForwardURL computes the rewritten target for an input URL. Root and
// empty paths both land on ".../{id}/".
func (s *Stub) ForwardURL(in *url.URL) string {
	path := "/"
	query := ""
	if in != nil {
		if p := in.EscapedPath(); p != "" {
			path = p
		}
		query = in.RawQuery
	}
	target := s.backendURL + "/do/" + url.PathEscape(s.id.Namespace()) + "/" + s.id.String() + path
	if query != "" {
		target += "?" + query
	}
	return target
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	c.cancel()
	return c.ReadCloser.Close()
}
