// Package remote downloads schema documents from the shared schema
// repository on GitHub.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/tbl"
	"github.com/wippyai/tbl/errors"
	"github.com/wippyai/tbl/schema"
)

const (
	DefaultBaseURL = "https://api.github.com"
	DefaultOrg     = "Trails-Research-Group"
	DefaultRepo    = "FalcomSchema"

	defaultTimeout = 30 * time.Second

	// maxDocumentSize bounds a single schema download.
	maxDocumentSize = 8 << 20
)

// Fetcher lists a repository directory through the GitHub contents API and
// downloads every schema document in it.
type Fetcher struct {
	BaseURL string
	Org     string
	Repo    string
	// Token, when set, is sent as a bearer token to raise the API rate limit.
	Token  string
	Client *retryablehttp.Client
}

// New returns a Fetcher for the default schema repository.
func New() *Fetcher {
	client := retryablehttp.NewClient()
	client.Logger = leveledLogger{s: Logger().Sugar()}
	client.RetryMax = 4
	client.HTTPClient.Timeout = defaultTimeout
	return &Fetcher{
		BaseURL: DefaultBaseURL,
		Org:     DefaultOrg,
		Repo:    DefaultRepo,
		Client:  client,
	}
}

// UpdateGame fetches the shared reference schemas and the game's table
// schemas. dst returns the destination for a namespace. A failure in one
// namespace does not stop the other; the errors are combined.
func (f *Fetcher) UpdateGame(ctx context.Context, game string, dst func(namespace string) tbl.Putter) (int, error) {
	total := 0
	var errs error
	for _, ns := range []string{tbl.CommonNamespace, game} {
		if err := ctx.Err(); err != nil {
			return total, multierr.Append(errs, err)
		}
		n, err := f.Fetch(ctx, ns, dst(ns))
		total += n
		errs = multierr.Append(errs, err)
	}
	return total, errs
}

// Fetch downloads every *.json file in dir and stores it in dst under its
// base name. Each document must parse as a schema before it is stored;
// documents that do not are skipped and reported in the returned error
// after the rest of the directory has been stored. Transport and storage
// failures stop the fetch.
func (f *Fetcher) Fetch(ctx context.Context, dir string, dst tbl.Putter) (int, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s", strings.TrimRight(f.BaseURL, "/"), f.Org, f.Repo, dir)
	listing, err := f.get(ctx, url, "application/vnd.github+json")
	if err != nil {
		return 0, err
	}
	root := gjson.ParseBytes(listing)
	if !gjson.ValidBytes(listing) || !root.IsArray() {
		return 0, errors.New(errors.PhaseFetch, errors.KindInvalidData).
			Detail("%s: directory listing is not a JSON array", url).
			Build()
	}

	count := 0
	var fetchErr, invalid error
	root.ForEach(func(_, item gjson.Result) bool {
		if item.Get("type").Str != "file" {
			return true
		}
		name, ok := strings.CutSuffix(item.Get("name").Str, ".json")
		if !ok {
			return true
		}
		raw, err := f.get(ctx, item.Get("download_url").Str, "")
		if err != nil {
			fetchErr = err
			return false
		}
		if _, err := schema.ParseDocument(name, raw); err != nil {
			Logger().Warn("skipping invalid schema",
				zap.String("dir", dir),
				zap.String("name", name),
				zap.Error(err))
			invalid = multierr.Append(invalid, errors.Wrap(errors.PhaseFetch, errors.KindInvalidData, err, "downloaded schema "+dir+"/"+name+" is invalid"))
			return true
		}
		if err := dst.Put(name, raw); err != nil {
			fetchErr = err
			return false
		}
		count++
		return true
	})

	fetchErr = multierr.Append(fetchErr, invalid)
	Logger().Info("schemas fetched",
		zap.String("dir", dir),
		zap.Int("count", count),
		zap.Error(fetchErr))
	return count, fetchErr
}

func (f *Fetcher) get(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := retryablehttp.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseFetch, errors.KindInvalidInput, err, "build request for "+url)
	}
	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", "tbltool")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseFetch, errors.KindInvalidData, err, "GET "+url)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.New(errors.PhaseFetch, errors.KindNotFound).
			Detail("GET %s: %s", url, resp.Status).
			Build()
	case resp.StatusCode != http.StatusOK:
		return nil, errors.New(errors.PhaseFetch, errors.KindInvalidData).
			Detail("GET %s: %s", url, resp.Status).
			Build()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseFetch, errors.KindInvalidData, err, "read "+url)
	}
	if len(body) > maxDocumentSize {
		return nil, errors.New(errors.PhaseFetch, errors.KindInvalidData).
			Detail("GET %s: response exceeds %d bytes", url, maxDocumentSize).
			Build()
	}
	return body, nil
}
