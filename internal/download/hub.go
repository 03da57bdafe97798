package download

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"captiond/internal/config"
)

const defaultRevision = "main"

// hubFetcher downloads from a Hugging Face Hub compatible endpoint. Transfers
// are staged in <cache>/downloads/<repo>--<file>.incomplete and resumed with
// Range requests, then moved into place.
type hubFetcher struct {
	client   *http.Client
	endpoint string
	repo     string
	revision string
	token    string
	cacheDir string
}

func newHubFetcher(cfg config.FetchConfig, repo, revision, token string) *hubFetcher {
	if revision == "" {
		revision = defaultRevision
	}
	return &hubFetcher{
		client:   &http.Client{},
		endpoint: strings.TrimRight(cfg.HFEndpoint, "/"),
		repo:     repo,
		revision: revision,
		token:    token,
		cacheDir: cfg.HFHome,
	}
}

func (h *hubFetcher) resolveURL(file string) string {
	return fmt.Sprintf("%s/%s/resolve/%s/%s", h.endpoint, h.repo, url.PathEscape(h.revision), escapePath(file))
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

func (h *hubFetcher) newRequest(ctx context.Context, method, u string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	req.Header.Set("User-Agent", "modelfetch")
	return req, nil
}

// FileSize issues a HEAD on the resolve URL without following redirects.
// LFS files report their real size in X-Linked-Size.
func (h *hubFetcher) FileSize(ctx context.Context, file string) (int64, error) {
	req, err := h.newRequest(ctx, http.MethodHead, h.resolveURL(file))
	if err != nil {
		return 0, err
	}
	c := *h.client
	c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err := c.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("HEAD %s: %s", file, resp.Status)
	}
	if v := resp.Header.Get("X-Linked-Size"); v != "" {
		return strconv.ParseInt(v, 10, 64)
	}
	if resp.ContentLength < 0 {
		return 0, fmt.Errorf("HEAD %s: no size reported", file)
	}
	return resp.ContentLength, nil
}

func (h *hubFetcher) stagingPath(file string) string {
	name := strings.ReplaceAll(h.repo, "/", "--") + "--" + strings.ReplaceAll(file, "/", "--") + ".incomplete"
	return filepath.Join(h.cacheDir, "downloads", name)
}

// Fetch streams file into the staging area, resuming a previous partial
// transfer when one exists, and renames it to dest.
func (h *hubFetcher) Fetch(ctx context.Context, file, dest string) error {
	staging := h.stagingPath(file)
	if err := os.MkdirAll(filepath.Dir(staging), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(staging, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}

	req, err := h.newRequest(ctx, http.MethodGet, h.resolveURL(file))
	if err != nil {
		return err
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && offset > 0:
		// staging file already holds the whole object
	case resp.StatusCode == http.StatusOK:
		if offset > 0 {
			if err := f.Truncate(0); err != nil {
				return err
			}
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return err
			}
		}
		fallthrough
	case resp.StatusCode == http.StatusPartialContent:
		if _, err := io.Copy(f, resp.Body); err != nil {
			return fmt.Errorf("transfer %s: %w", file, err)
		}
	default:
		return fmt.Errorf("GET %s: %s", file, resp.Status)
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return moveFile(staging, dest)
}

// moveFile renames src to dst, copying when they sit on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

type hubModelInfo struct {
	Siblings []struct {
		RFilename string `json:"rfilename"`
	} `json:"siblings"`
}

// ListFiles reads the repository file list from the model info endpoint.
func (h *hubFetcher) ListFiles(ctx context.Context) ([]string, error) {
	u := fmt.Sprintf("%s/api/models/%s/revision/%s", h.endpoint, h.repo, url.PathEscape(h.revision))
	req, err := h.newRequest(ctx, http.MethodGet, u)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list %s: %s", h.repo, resp.Status)
	}
	var info hubModelInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("list %s: %w", h.repo, err)
	}
	files := make([]string, 0, len(info.Siblings))
	for _, s := range info.Siblings {
		if s.RFilename != "" && !strings.HasPrefix(path.Base(s.RFilename), ".") {
			files = append(files, s.RFilename)
		}
	}
	return files, nil
}
