// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve

import (
	"archive/zip"
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"

	shutil "github.com/termie/go-shutil"

	"github.com/rupesrecta/corebuild/internal/corecfg"
	"github.com/rupesrecta/corebuild/internal/corepkg"
)

// indexRecord is one line of $MOON_HOME/registry/index/user/<user>/<pkg>.index,
// a JSONL file where each line describes one published version.
type indexRecord struct {
	Version  string `json:"version"`
	Checksum string `json:"checksum"`
	URL      string `json:"url"`
}

// RegistryClient is the C1 "registry client" collaborator: it
// enumerates available versions of a module and fetches a module's
// source tree into the local cache, grounded on
// internal/gps/registry.go's tarball-over-HTTP shape (there: .tar.gz;
// here the module's distribution format is a zip, per spec §6's
// "$MOON_HOME/cache/<user>/<pkg>/<version>.zip").
type RegistryClient struct {
	cfg    *corecfg.Config
	httpc  *http.Client
	frozen bool
}

// NewRegistryClient builds a RegistryClient. When frozen is true, any
// operation that would need the network fails with RegistryUnavailableError
// per spec §4.1.
func NewRegistryClient(cfg *corecfg.Config, frozen bool) *RegistryClient {
	return &RegistryClient{cfg: cfg, httpc: http.DefaultClient, frozen: frozen}
}

func (r *RegistryClient) baseURL() string {
	if r.cfg.Registry != "" {
		return r.cfg.Registry
	}
	return "https://mooncakes.io"
}

// ListVersions reads (and, unless frozen, refreshes) the index shard
// for name, returning every published version in ascending order.
func (r *RegistryClient) ListVersions(ctx context.Context, name corepkg.ModuleName) ([]string, error) {
	indexPath := r.cfg.RegistryIndexPath(name.User, name.Pkg)

	if !r.frozen {
		if err := r.refreshIndex(ctx, name, indexPath); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat(indexPath); err != nil {
		return nil, &corepkg.RegistryUnavailableError{Module: name, Cause: err}
	}

	records, err := readIndexFile(indexPath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading index for %s", name)
	}

	versions := make([]string, 0, len(records))
	for _, rec := range records {
		versions = append(versions, rec.Version)
	}
	sort.Slice(versions, func(i, j int) bool {
		vi, erri := semver.NewVersion(versions[i])
		vj, errj := semver.NewVersion(versions[j])
		if erri != nil || errj != nil {
			return versions[i] < versions[j]
		}
		return vi.LessThan(vj)
	})
	return versions, nil
}

func (r *RegistryClient) refreshIndex(ctx context.Context, name corepkg.ModuleName, indexPath string) error {
	url := r.baseURL() + "/index/user/" + name.User + "/" + name.Pkg + ".index"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "building index request")
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		// A stale local index is acceptable if the network is merely
		// unreachable and we already have one cached.
		if _, statErr := os.Stat(indexPath); statErr == nil {
			return nil
		}
		return &corepkg.NetworkError{URL: url, Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return &corepkg.ManifestMissingError{Module: corepkg.ModuleSource{Name: name}}
	}
	if resp.StatusCode != http.StatusOK {
		return &corepkg.NetworkError{URL: url, Cause: errors.Errorf("status %d", resp.StatusCode)}
	}

	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return errors.Wrap(err, "creating index cache dir")
	}
	f, err := os.Create(indexPath)
	if err != nil {
		return errors.Wrap(err, "creating index cache file")
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return errors.Wrap(err, "writing index cache file")
	}
	return nil
}

func readIndexFile(path string) ([]indexRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []indexRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec indexRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, errors.Wrap(err, "parsing index line")
		}
		out = append(out, rec)
	}
	return out, scanner.Err()
}

// Fetch downloads and unpacks the cached zip for (name, version), then
// copies the resulting tree into the registry's module cache directory
// using go-shutil.CopyTree the same way the teacher moves fetched
// source trees into place.
func (r *RegistryClient) Fetch(ctx context.Context, name corepkg.ModuleName, version string) (string, error) {
	cacheZip := r.cfg.CachePath(name.User, name.Pkg, version)
	extractDir := filepath.Join(r.cfg.MoonHome, "mod-cache", name.User, name.Pkg, version)

	if _, err := os.Stat(extractDir); err == nil {
		return extractDir, nil
	}

	if _, err := os.Stat(cacheZip); err != nil {
		if r.frozen {
			return "", &corepkg.RegistryUnavailableError{Module: name, Cause: err}
		}
		if err := r.download(ctx, name, version, cacheZip); err != nil {
			return "", err
		}
	}

	tmpDir := extractDir + ".tmp"
	os.RemoveAll(tmpDir)
	if err := unzip(cacheZip, tmpDir); err != nil {
		return "", errors.Wrapf(err, "unpacking %s", cacheZip)
	}
	defer os.RemoveAll(tmpDir)

	if err := os.MkdirAll(filepath.Dir(extractDir), 0o755); err != nil {
		return "", errors.Wrap(err, "preparing module cache dir")
	}
	if err := shutil.CopyTree(tmpDir, extractDir, nil); err != nil {
		return "", errors.Wrapf(err, "copying %s into module cache", name)
	}

	return extractDir, nil
}

func (r *RegistryClient) download(ctx context.Context, name corepkg.ModuleName, version, dest string) error {
	url := r.baseURL() + "/registry/" + name.User + "/" + name.Pkg + "/" + version + ".zip"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "building module download request")
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return &corepkg.NetworkError{URL: url, Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &corepkg.ManifestMissingError{Module: corepkg.ModuleSource{Name: name, Version: version}}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrap(err, "creating module cache dir")
	}
	f, err := os.Create(dest)
	if err != nil {
		return errors.Wrap(err, "creating module cache file")
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

func unzip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		path := filepath.Join(dest, f.Name)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, f.Mode()); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(out, rc)
		rc.Close()
		out.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
