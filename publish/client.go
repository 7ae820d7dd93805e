// Package publish talks to the release-publishing service: retrieving
// previously published manifests and announcing new releases.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/evergreen-ci/bomtool"
	"github.com/evergreen-ci/bomtool/model"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// ReleaseInfo announces one published release to the publish service.
type ReleaseInfo struct {
	// Version is the released manifest version.
	Version string `json:"version"`

	// Alias is the human-facing release name.
	Alias string `json:"alias"`

	// ChangelogURI points at the release's changelog.
	ChangelogURI string `json:"changelog_uri,omitempty"`

	// MinimumDependencyVersion, when set, is the oldest tooling version
	// able to consume this release.
	MinimumDependencyVersion string `json:"minimum_dependency_version,omitempty"`
}

// Publisher is the client surface commands use to reach the publish
// service.
type Publisher interface {
	// RetrieveBOMVersion fetches the manifest published under version.
	RetrieveBOMVersion(ctx context.Context, version string) (*model.Document, error)

	// PublishBOM uploads a manifest under its own version.
	PublishBOM(ctx context.Context, doc *model.Document) error

	// PublishRelease announces a release built from an already published
	// manifest.
	PublishRelease(ctx context.Context, info ReleaseInfo) error
}

type serviceClient struct {
	baseURL string
}

// NewServiceClient constructs a Publisher against the service URL from
// the settings.
func NewServiceClient(settings *bomtool.Settings) (Publisher, error) {
	if settings.PublishServiceURL == "" {
		return nil, bomtool.NewConfigError("no publish service URL is configured")
	}
	return &serviceClient{baseURL: strings.TrimRight(settings.PublishServiceURL, "/")}, nil
}

func (c *serviceClient) RetrieveBOMVersion(ctx context.Context, version string) (*model.Document, error) {
	if version == "" {
		return nil, bomtool.NewConfigError("no manifest version to retrieve")
	}

	client := utility.GetDefaultHTTPRetryableClient()
	defer utility.PutHTTPClient(client)

	url := fmt.Sprintf("%s/bom/%s", c.baseURL, version)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building manifest retrieval request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "retrieving manifest version '%s'", version)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest version '%s'", version)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, bomtool.NewConfigError("manifest version '%s' is not published", version)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, bomtool.NewUnexpectedError("retrieving manifest version '%s': status %d", version, resp.StatusCode)
	}

	doc, err := model.ParseDocument(body)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing manifest version '%s'", version)
	}
	grip.Info(message.Fields{
		"message": "retrieved manifest",
		"version": version,
		"url":     url,
	})
	return doc, nil
}

func (c *serviceClient) PublishBOM(ctx context.Context, doc *model.Document) error {
	if doc == nil || doc.Version == "" {
		return bomtool.NewConfigError("no versioned manifest to publish")
	}

	data, err := doc.Marshal()
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bom/%s", c.baseURL, doc.Version)
	return c.post(ctx, url, "application/x-yaml", data, "publishing manifest version '%s'", doc.Version)
}

func (c *serviceClient) PublishRelease(ctx context.Context, info ReleaseInfo) error {
	if info.Version == "" {
		return bomtool.NewConfigError("no release version to publish")
	}

	data, err := json.Marshal(info)
	if err != nil {
		return errors.Wrap(err, "marshalling release info")
	}
	return c.post(ctx, c.baseURL+"/releases", "application/json", data, "publishing release '%s'", info.Version)
}

func (c *serviceClient) post(ctx context.Context, url, contentType string, body []byte, what string, args ...interface{}) error {
	client := utility.GetDefaultHTTPRetryableClient()
	defer utility.PutHTTPClient(client)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, what, args...)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, what, args...)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return bomtool.NewUnexpectedError(what+": status %d", append(args, resp.StatusCode)...)
	}
	grip.Info(message.Fields{
		"message": "published to release service",
		"url":     url,
		"status":  resp.StatusCode,
	})
	return nil
}
