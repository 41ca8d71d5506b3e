package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/relforge/relforge/internal/models"
)

// HTTPReleaseHost talks to a release-hosting API over HTTP. The endpoint is
// treated as opaque: GET lists assets, POST ?name= uploads, DELETE /<name>
// removes. The bearer token never appears in errors or logs.
type HTTPReleaseHost struct {
	Client   *http.Client
	Endpoint string

	token string
}

// NewHTTPReleaseHost builds a host client for the given release endpoint.
func NewHTTPReleaseHost(endpoint, token string) (*HTTPReleaseHost, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("release endpoint is required")
	}
	if token == "" {
		return nil, fmt.Errorf("release token is required")
	}
	return &HTTPReleaseHost{
		Client:   &http.Client{Timeout: 5 * time.Minute},
		Endpoint: endpoint,
		token:    token,
	}, nil
}

type assetListing struct {
	Assets []struct {
		Name string `json:"name"`
	} `json:"assets"`
}

// ExistingAssets lists the names already attached to the release.
func (h *HTTPReleaseHost) ExistingAssets(ctx context.Context) (map[string]struct{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError("list assets", resp)
	}

	var listing assetListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode asset listing: %w", err)
	}

	names := make(map[string]struct{}, len(listing.Assets))
	for _, asset := range listing.Assets {
		names[asset.Name] = struct{}{}
	}
	return names, nil
}

// Upload streams one artifact to the release target.
func (h *HTTPReleaseHost) Upload(ctx context.Context, artifact models.Artifact) error {
	file, err := os.Open(artifact.Path)
	if err != nil {
		return fmt.Errorf("open artifact %s: %w", artifact.Path, err)
	}
	defer file.Close()

	uploadURL := fmt.Sprintf("%s?name=%s", h.Endpoint, url.QueryEscape(artifact.Name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, file)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = artifact.Size

	resp, err := h.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return responseError(fmt.Sprintf("upload %q", artifact.Name), resp)
	}
	return nil
}

// Delete removes an existing asset by name.
func (h *HTTPReleaseHost) Delete(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, h.Endpoint+"/"+url.PathEscape(name), nil)
	if err != nil {
		return err
	}

	resp, err := h.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return responseError(fmt.Sprintf("delete %q", name), resp)
	}
	return nil
}

func (h *HTTPReleaseHost) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+h.token)
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}

func responseError(action string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	snippet := strings.TrimSpace(string(body))
	if snippet == "" {
		return fmt.Errorf("%s: release target responded %s", action, resp.Status)
	}
	return fmt.Errorf("%s: release target responded %s: %s", action, resp.Status, snippet)
}
