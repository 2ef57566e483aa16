// Package audiosource loads webhook audio either from an HTTP(S) URL or from
// an allow-listed local inbox directory.
package audiosource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	// ErrNotAllowed means a local path is outside the inbox or matches no pattern.
	ErrNotAllowed = errors.New("audiosource: path not allowed")
	// ErrUnsupportedScheme means the URL is not http or https.
	ErrUnsupportedScheme = errors.New("audiosource: unsupported URL scheme")
	// ErrFetch covers network failures and non-2xx upstream answers.
	ErrFetch = errors.New("audiosource: fetch failed")
	// ErrTooLarge means the audio exceeds the configured cap.
	ErrTooLarge = errors.New("audiosource: audio too large")
	// ErrBlockedAddress means the URL resolved to a loopback, private,
	// link-local or otherwise non-public address.
	ErrBlockedAddress = errors.New("audiosource: address not allowed")
)

// maxRedirects bounds how many hops Fetch follows.
const maxRedirects = 3

// Inbox resolves client-supplied paths inside a root directory, admitting only
// files whose root-relative path matches one of the glob patterns.
type Inbox struct {
	root     string
	patterns []string
}

// NewInbox checks every pattern up front. Patterns use doublestar syntax
// ("**/*.ogg") against slash-separated paths relative to root.
func NewInbox(root string, patterns []string) (*Inbox, error) {
	if len(patterns) == 0 {
		return nil, errors.New("audiosource: at least one pattern required")
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("audiosource: invalid pattern %q", p)
		}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("audiosource: resolve root: %w", err)
	}
	return &Inbox{root: abs, patterns: patterns}, nil
}

// Root returns the absolute inbox directory.
func (b *Inbox) Root() string { return b.root }

// Resolve maps p (absolute or root-relative) to a file inside the inbox.
// Symlinks are followed and the target must still be inside the inbox.
func (b *Inbox) Resolve(p string) (string, error) {
	if strings.TrimSpace(p) == "" || strings.ContainsRune(p, 0) {
		return "", ErrNotAllowed
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(b.root, p)
	}
	p = filepath.Clean(p)

	rel, ok := within(b.root, p)
	if !ok || !b.matches(rel) {
		return "", ErrNotAllowed
	}

	realRoot, err := filepath.EvalSymlinks(b.root)
	if err != nil {
		return "", fmt.Errorf("audiosource: resolve inbox: %w", err)
	}
	real, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", fmt.Errorf("audiosource: %w", err)
	}
	if _, ok := within(realRoot, real); !ok {
		return "", ErrNotAllowed
	}
	return real, nil
}

// Read resolves p and returns its contents, refusing files over max bytes.
func (b *Inbox) Read(p string, max int64) ([]byte, string, error) {
	real, err := b.Resolve(p)
	if err != nil {
		return nil, "", err
	}
	info, err := os.Stat(real)
	if err != nil {
		return nil, "", fmt.Errorf("audiosource: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, "", ErrNotAllowed
	}
	if max > 0 && info.Size() > max {
		return nil, "", ErrTooLarge
	}
	data, err := os.ReadFile(real)
	if err != nil {
		return nil, "", fmt.Errorf("audiosource: %w", err)
	}
	return data, filepath.Base(real), nil
}

func (b *Inbox) matches(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, p := range b.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// within reports whether target is strictly inside root, returning the relative path.
func within(root, target string) (string, bool) {
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// Fetcher downloads audio over HTTP(S) with a timeout and a size cap.
type Fetcher struct {
	client *http.Client
	max    int64
}

// FetcherOption customizes a Fetcher built by NewFetcher.
type FetcherOption func(*fetcherConfig)

type fetcherConfig struct {
	allowPrivate bool
}

// AllowPrivateNetworks lets the fetcher reach loopback and private addresses.
func AllowPrivateNetworks(allow bool) FetcherOption {
	return func(c *fetcherConfig) { c.allowPrivate = allow }
}

// NewFetcher builds a Fetcher. A nil client gets one with the given timeout
// that dials only public addresses, ignores proxy settings and re-checks the
// scheme of every redirect. A non-nil client is used as is.
func NewFetcher(client *http.Client, timeout time.Duration, max int64, opts ...FetcherOption) *Fetcher {
	if client == nil {
		var cfg fetcherConfig
		for _, opt := range opts {
			opt(&cfg)
		}
		dialer := &net.Dialer{Timeout: timeout}
		if !cfg.allowPrivate {
			dialer.Control = publicOnly
		}
		client = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               nil,
				DialContext:         dialer.DialContext,
				TLSHandshakeTimeout: timeout,
			},
			CheckRedirect: checkRedirect,
		}
	}
	return &Fetcher{client: client, max: max}
}

// publicOnly runs after DNS resolution, so every hop and every resolved
// address is checked, including redirect targets.
func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip, err := netip.ParseAddr(host)
	if err != nil || !publicAddr(ip.Unmap()) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}

var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

func publicAddr(ip netip.Addr) bool {
	switch {
	case !ip.IsValid(),
		ip.IsUnspecified(),
		ip.IsLoopback(),
		ip.IsPrivate(),
		ip.IsLinkLocalUnicast(),
		ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(),
		ip.IsMulticast(),
		sharedAddressSpace.Contains(ip):
		return false
	}
	return true
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return ErrUnsupportedScheme
	}
	return nil
}

// Fetch downloads rawURL and returns the body and a filename taken from the URL path.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, "", ErrUnsupportedScheme
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", ErrUnsupportedScheme
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrFetch, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: upstream status %d", ErrFetch, resp.StatusCode)
	}
	if f.max > 0 && resp.ContentLength > f.max {
		return nil, "", ErrTooLarge
	}

	var body io.Reader = resp.Body
	if f.max > 0 {
		body = io.LimitReader(resp.Body, f.max+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if f.max > 0 && int64(len(data)) > f.max {
		return nil, "", ErrTooLarge
	}

	name := path.Base(u.Path)
	if name == "/" || name == "." {
		name = "audio"
	}
	return data, name, nil
}
