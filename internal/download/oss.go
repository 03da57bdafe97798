package download

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"captiond/internal/config"
)

// ossFetcher downloads objects below a prefix of an Aliyun OSS bucket. The
// SDK stages each object in <dest>.temp before renaming it. SDK calls take no
// context, so cancellation is only checked between calls.
type ossFetcher struct {
	bucket *oss.Bucket
	prefix string
}

// parseOSSRepo splits oss://bucket/some/prefix into bucket and prefix.
func parseOSSRepo(repo string) (string, string, error) {
	rest := strings.TrimPrefix(repo, ossScheme)
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("invalid oss repository %q", repo)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

func newOSSFetcher(cfg config.FetchConfig, repo, token string) (*ossFetcher, error) {
	bucketName, prefix, err := parseOSSRepo(repo)
	if err != nil {
		return nil, err
	}
	if cfg.OSSEndpoint == "" {
		return nil, fmt.Errorf("OSS_ENDPOINT is required for %s", repo)
	}
	var opts []oss.ClientOption
	if token != "" {
		opts = append(opts, oss.SecurityToken(token))
	}
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKeyID, cfg.OSSAccessKeySecret, opts...)
	if err != nil {
		return nil, err
	}
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, err
	}
	return &ossFetcher{bucket: bucket, prefix: prefix}, nil
}

func (o *ossFetcher) key(file string) string {
	if o.prefix == "" {
		return file
	}
	return path.Join(o.prefix, file)
}

func (o *ossFetcher) FileSize(ctx context.Context, file string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	meta, err := o.bucket.GetObjectDetailedMeta(o.key(file))
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(meta.Get("Content-Length"), 10, 64)
}

func (o *ossFetcher) Fetch(ctx context.Context, file, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return o.bucket.GetObjectToFile(o.key(file), dest)
}

func (o *ossFetcher) ListFiles(ctx context.Context) ([]string, error) {
	prefix := o.prefix
	if prefix != "" {
		prefix += "/"
	}
	var files []string
	marker := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := o.bucket.ListObjects(oss.Prefix(prefix), oss.Marker(marker))
		if err != nil {
			return nil, err
		}
		for _, obj := range res.Objects {
			name := strings.TrimPrefix(obj.Key, prefix)
			if name == "" || strings.HasSuffix(name, "/") {
				continue
			}
			files = append(files, name)
		}
		if !res.IsTruncated {
			return files, nil
		}
		marker = res.NextMarker
	}
}
