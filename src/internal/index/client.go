// Package index implements the Package Index Client of spec.md §4.1: a
// caching, revalidating metadata fetcher with singleflight coalescing and
// bounded retry, grounded on the teacher's internal/resolver/pypi.go
// (same PyPI JSON shape, generalized behind a metadata(name) seam per
// spec.md §9's "plug-points that must not be baked in").
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pybun/src/internal/telemetry"
)

const defaultBaseURL = "https://pypi.org/pypi"

// Client fetches and caches package metadata. The zero value is not usable;
// construct with New.
type Client struct {
	BaseURL    string
	CacheDir   string
	Offline    bool
	HTTPClient *http.Client
	Fixture    string // path to a local JSON fixture; overrides network entirely

	sf *singleflight
}

type Option func(*Client)

func WithOffline(offline bool) Option { return func(c *Client) { c.Offline = offline } }
func WithFixture(path string) Option  { return func(c *Client) { c.Fixture = path } }
func WithBaseURL(url string) Option   { return func(c *Client) { c.BaseURL = url } }

func New(cacheDir string, opts ...Option) *Client {
	c := &Client{
		BaseURL:    defaultBaseURL,
		CacheDir:   cacheDir,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		sf:         newSingleflight(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// pypiVersionResponse mirrors the teacher's PypiResponse shape
// (internal/resolver/pypi.go), kept for the per-version "requires_dist"
// lookup and the top-level listing.
type pypiVersionResponse struct {
	Info struct {
		Name         string   `json:"name"`
		Version      string   `json:"version"`
		RequiresDist []string `json:"requires_dist"`
		Yanked       bool     `json:"yanked"`
	} `json:"info"`
	Releases map[string][]struct {
		Filename string `json:"filename"`
		URL      string `json:"url"`
		Hashes   struct {
			Sha256 string `json:"sha256"`
		} `json:"hashes"`
		Packagetype string `json:"packagetype"`
		Yanked      bool   `json:"yanked"`
	} `json:"releases"`
}

// Metadata returns the package's known version set. Per-version
// requirements are populated lazily: the top-level fetch only lists
// versions and their distributions; call Requirements for the specific
// versions the resolver actually considers (spec.md §4.1 "must not
// eagerly download every version").
func (c *Client) Metadata(ctx context.Context, name string) (PackageMetadata, error) {
	if c.Fixture != "" {
		return c.loadFixture(name)
	}

	result, err := c.sf.Do("meta:"+name, func() (any, error) {
		return c.fetchMetadata(ctx, name)
	})
	if err != nil {
		return PackageMetadata{}, err
	}
	return result.(PackageMetadata), nil
}

func (c *Client) fetchMetadata(ctx context.Context, name string) (PackageMetadata, error) {
	done := telemetry.StartSpan("index.metadata", "package", name)

	cachePath := c.cachePath(name, "")
	etagPath := cachePath + ".etag"
	cachedBytes, cacheErr := os.ReadFile(cachePath)
	hasCache := cacheErr == nil

	if c.Offline {
		if !hasCache {
			done("status", "error", "error", "offline_miss")
			return PackageMetadata{}, offlineMiss(name)
		}
		done("status", "ok", "source", "cache_offline")
		return c.parsePyPI(name, cachedBytes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s/json", c.BaseURL, name), nil)
	if err != nil {
		done("status", "error", "error", err.Error())
		return PackageMetadata{}, networkErr(name, err)
	}
	if etag, err := os.ReadFile(etagPath); err == nil {
		req.Header.Set("If-None-Match", strings.TrimSpace(string(etag)))
	}

	resp, err := c.doWithRetry(req)
	if err != nil {
		if hasCache {
			done("status", "ok", "source", "cache_fallback", "error", err.Error())
			return c.parsePyPI(name, cachedBytes)
		}
		done("status", "error", "error", err.Error())
		return PackageMetadata{}, networkErr(name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && hasCache {
		done("status", "ok", "source", "revalidated")
		return c.parsePyPI(name, cachedBytes)
	}
	if resp.StatusCode != http.StatusOK {
		if hasCache {
			done("status", "ok", "source", "cache_fallback", "http_status", resp.StatusCode)
			return c.parsePyPI(name, cachedBytes)
		}
		done("status", "error", "http_status", resp.StatusCode)
		return PackageMetadata{}, networkErr(name, fmt.Errorf("http %d", resp.StatusCode))
	}

	body, err := readAll(resp)
	if err != nil {
		done("status", "error", "error", err.Error())
		return PackageMetadata{}, networkErr(name, err)
	}

	if etag := resp.Header.Get("ETag"); etag != "" {
		_ = os.MkdirAll(filepath.Dir(etagPath), 0755)
		_ = os.WriteFile(etagPath, []byte(etag), 0644)
	}
	_ = os.MkdirAll(filepath.Dir(cachePath), 0755)
	_ = os.WriteFile(cachePath, body, 0644)

	done("status", "ok", "source", "network")
	return c.parsePyPI(name, body)
}

func (c *Client) parsePyPI(name string, body []byte) (PackageMetadata, error) {
	var resp pypiVersionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return PackageMetadata{}, malformed(name, err)
	}
	meta := PackageMetadata{Name: name, Versions: map[string]VersionMetadata{}}
	for version, files := range resp.Releases {
		if len(files) == 0 {
			continue
		}
		var dists []Distribution
		var yanked bool
		var hash string
		for _, f := range files {
			kind := "source"
			if f.Packagetype == "bdist_wheel" {
				kind = "prebuilt"
			}
			dists = append(dists, Distribution{
				Platform: platformTagFromFilename(f.Filename),
				Kind:     kind,
				URL:      f.URL,
				SHA256:   f.Hashes.Sha256,
			})
			if f.Yanked {
				yanked = true
			}
			if hash == "" {
				hash = f.Hashes.Sha256
			}
		}
		requires := []string{}
		if version == resp.Info.Version {
			requires = resp.Info.RequiresDist
		}
		meta.Versions[version] = VersionMetadata{
			Requires:      requires,
			Distributions: dists,
			Yanked:        yanked,
			Hash:          hash,
		}
	}
	return meta, nil
}

// Requirements lazily fetches the requires_dist list for one specific
// version, coalescing concurrent callers for the same (name, version).
func (c *Client) Requirements(ctx context.Context, name, version string) ([]string, error) {
	if c.Fixture != "" {
		meta, err := c.loadFixture(name)
		if err != nil {
			return nil, err
		}
		return meta.Versions[version].Requires, nil
	}

	key := "ver:" + name + "@" + version
	result, err := c.sf.Do(key, func() (any, error) {
		return c.fetchVersionRequires(ctx, name, version)
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func (c *Client) fetchVersionRequires(ctx context.Context, name, version string) ([]string, error) {
	done := telemetry.StartSpan("index.requirements", "package", name, "version", version)
	cachePath := c.cachePath(name, version)
	cached, cacheErr := os.ReadFile(cachePath)
	if c.Offline {
		if cacheErr != nil {
			done("status", "error", "error", "offline_miss")
			return nil, offlineMiss(name + "@" + version)
		}
		done("status", "ok", "source", "cache_offline")
		var resp pypiVersionResponse
		if err := json.Unmarshal(cached, &resp); err != nil {
			return nil, malformed(name, err)
		}
		return resp.Info.RequiresDist, nil
	}

	url := fmt.Sprintf("%s/%s/%s/json", c.BaseURL, name, version)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		done("status", "error", "error", err.Error())
		return nil, networkErr(name, err)
	}
	resp, err := c.doWithRetry(req)
	if err != nil {
		done("status", "error", "error", err.Error())
		return nil, networkErr(name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		done("status", "error", "http_status", resp.StatusCode)
		return nil, networkErr(name, fmt.Errorf("http %d", resp.StatusCode))
	}
	body, err := readAll(resp)
	if err != nil {
		done("status", "error", "error", err.Error())
		return nil, networkErr(name, err)
	}
	_ = os.MkdirAll(filepath.Dir(cachePath), 0755)
	_ = os.WriteFile(cachePath, body, 0644)

	var parsed pypiVersionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		done("status", "error", "error", err.Error())
		return nil, malformed(name, err)
	}
	done("status", "ok", "requires", len(parsed.Info.RequiresDist))
	return parsed.Info.RequiresDist, nil
}

// doWithRetry implements the bounded exponential retry of spec.md §4.1:
// 3 attempts, 200ms base, 2x backoff.
func (c *Client) doWithRetry(req *http.Request) (*http.Response, error) {
	const attempts = 3
	const base = 200 * time.Millisecond
	var lastErr error
	for i := 0; i < attempts; i++ {
		resp, err := c.HTTPClient.Do(req.Clone(req.Context()))
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if i < attempts-1 {
			time.Sleep(base * time.Duration(1<<uint(i)))
		}
	}
	return nil, lastErr
}

func (c *Client) cachePath(name, version string) string {
	if version == "" {
		return filepath.Join(c.CacheDir, "index", name, "index.json")
	}
	return filepath.Join(c.CacheDir, "index", name, version+".json")
}

func (c *Client) loadFixture(name string) (PackageMetadata, error) {
	body, err := os.ReadFile(c.Fixture)
	if err != nil {
		return PackageMetadata{}, offlineMiss(name)
	}
	var all map[string]PackageMetadata
	if err := json.Unmarshal(body, &all); err != nil {
		return PackageMetadata{}, malformed(name, err)
	}
	meta, ok := all[name]
	if !ok {
		return PackageMetadata{Name: name, Versions: map[string]VersionMetadata{}}, nil
	}
	meta.Name = name
	return meta, nil
}

func readAll(resp *http.Response) ([]byte, error) {
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if err != nil {
			if err.Error() == "EOF" {
				return buf, nil
			}
			return buf, err
		}
	}
}

func platformTagFromFilename(filename string) string {
	if strings.HasSuffix(filename, ".whl") {
		parts := strings.Split(strings.TrimSuffix(filename, ".whl"), "-")
		if len(parts) > 0 {
			return parts[len(parts)-1]
		}
	}
	return "any"
}
