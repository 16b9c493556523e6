// Package mirror refreshes a local CPAN-style mirror from an upstream over
// HTTP. It is a collaborator of the ETL pipeline: retries live here and only
// here.
package mirror

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenk/backoff"
	"go.uber.org/zap"
)

const indexPath = "modules/02packages.details.txt.gz"

// Client refreshes a local mirror root from an upstream CPAN mirror.
type Client struct {
	upstream string
	root     string
	http     *http.Client
	log      *zap.Logger
}

// New creates a mirror client for the given upstream URL and local root.
func New(upstream, root string, log *zap.Logger) *Client {
	return &Client{
		upstream: strings.TrimSuffix(upstream, "/"),
		root:     root,
		http:     &http.Client{Timeout: 5 * time.Minute},
		log:      log,
	}
}

// Root returns the local mirror root directory.
func (c *Client) Root() string {
	return c.root
}

// Refresh downloads the package index and any release archives it lists that
// are missing locally, then returns the mirror root.
func (c *Client) Refresh() (string, error) {
	if err := os.MkdirAll(filepath.Join(c.root, "modules"), 0755); err != nil {
		return "", fmt.Errorf("creating mirror directory: %w", err)
	}

	indexFile := filepath.Join(c.root, filepath.FromSlash(indexPath))
	if err := c.fetch(c.upstream+"/"+indexPath, indexFile); err != nil {
		return "", fmt.Errorf("refreshing package index: %w", err)
	}

	releases, err := parseIndex(indexFile)
	if err != nil {
		return "", err
	}
	c.log.Info("loaded package index", zap.Int("releases", len(releases)))

	fetched := 0
	for _, release := range releases {
		local := filepath.Join(c.root, "authors", "id", filepath.FromSlash(release))
		if _, err := os.Stat(local); err == nil {
			continue
		}
		url := c.upstream + "/authors/id/" + release
		if err := c.fetch(url, local); err != nil {
			return "", fmt.Errorf("mirroring %s: %w", release, err)
		}
		fetched++
	}

	c.log.Info("mirror refreshed", zap.Int("fetched", fetched))
	return c.root, nil
}

// fetch downloads url to dest, retrying transient failures with exponential
// backoff. A 404 is permanent and fails immediately.
func (c *Client) fetch(url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	op := func() error {
		resp, err := c.http.Get(url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("HTTP 404 for %s", url))
		default:
			return fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
		}

		out, err := os.Create(dest)
		if err != nil {
			return backoff.Permanent(err)
		}
		defer out.Close()

		if _, err := io.Copy(out, resp.Body); err != nil {
			return fmt.Errorf("writing %s: %w", dest, err)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = 2 * time.Minute
	return backoff.Retry(op, policy)
}

// parseIndex reads the distinct release paths out of a gzipped
// 02packages.details.txt index. Lines look like:
//
//	Module::Name    1.23    A/AD/ADAMK/Module-Name-1.23.tar.gz
//
// preceded by a header terminated by a blank line.
func parseIndex(indexFile string) ([]string, error) {
	file, err := os.Open(indexFile)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("decompressing index: %w", err)
	}
	defer gzReader.Close()

	seen := make(map[string]struct{})
	var releases []string

	scanner := bufio.NewScanner(gzReader)
	inHeader := true
	for scanner.Scan() {
		line := scanner.Text()
		if inHeader {
			if line == "" {
				inHeader = false
			}
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		release := fields[2]
		if _, ok := seen[release]; ok {
			continue
		}
		seen[release] = struct{}{}
		releases = append(releases, release)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	return releases, nil
}
