// Package graph is the remote listing client: it enumerates the items of a
// SharePoint document library through Microsoft Graph and downloads item
// content. Authentication is delegated to the *http.Client it is given.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/drivesync/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/logger"
)

const defaultScope = "https://graph.microsoft.com/.default"

// Content is a downloaded item body and the media type the server declared.
type Content struct {
	Body      []byte
	MediaType string
}

// Client talks to the Graph drive API for one site and drive.
type Client struct {
	http      *http.Client
	baseURL   string
	siteHost  string
	sitePath  string
	driveName string
	logger    *slog.Logger

	mu      sync.Mutex
	driveID string
}

// New creates a Client. httpClient must attach credentials to requests; see
// NewHTTPClient.
func New(httpClient *http.Client, cfg config.RemoteConfig) *Client {
	return &Client{
		http:      httpClient,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		siteHost:  cfg.SiteHost,
		sitePath:  "/" + strings.TrimLeft(cfg.SitePath, "/"),
		driveName: cfg.DriveName,
		logger:    logger.WithComponent("graph-client"),
	}
}

// NewHTTPClient returns an *http.Client that obtains app-only tokens with the
// client-credentials grant.
func NewHTTPClient(ctx context.Context, cfg config.RemoteConfig) *http.Client {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID)
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{defaultScope},
	}
	client := cc.Client(ctx)
	client.Timeout = cfg.Timeout
	return client
}

type driveItemPage struct {
	Value    []map[string]any `json:"value"`
	NextLink string           `json:"@odata.nextLink"`
}

// ListItems returns the raw metadata records of every item in the drive
// root, following pagination links.
func (c *Client) ListItems(ctx context.Context) ([]map[string]any, error) {
	driveID, err := c.resolveDrive(ctx)
	if err != nil {
		return nil, err
	}
	var items []map[string]any
	next := fmt.Sprintf("%s/drives/%s/root/children", c.baseURL, url.PathEscape(driveID))
	for next != "" {
		var page driveItemPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("%w: listing drive items: %v", apperrors.ErrListing, err)
		}
		items = append(items, page.Value...)
		next = page.NextLink
	}
	c.logger.Info("drive listed", "drive_id", driveID, "items", len(items))
	return items, nil
}

// FetchContent downloads the content of the item with the given id.
func (c *Client) FetchContent(ctx context.Context, itemID string) (*Content, error) {
	driveID, err := c.resolveDrive(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/drives/%s/items/%s/content", c.baseURL, url.PathEscape(driveID), url.PathEscape(itemID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building content request: %w", err)
	}
	req.Header.Set("User-Agent", "drivesync/1.0")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: item %s: %v", apperrors.ErrFetch, itemID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: item %s: status %s", apperrors.ErrFetch, itemID, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading item %s: %v", apperrors.ErrFetch, itemID, err)
	}
	return &Content{
		Body:      body,
		MediaType: resp.Header.Get("Content-Type"),
	}, nil
}

// escapePath escapes each segment of a server-relative path, keeping the
// separators.
func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}

// resolveDrive looks up the drive id of the configured site once and caches
// it for the lifetime of the client.
func (c *Client) resolveDrive(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.driveID != "" {
		return c.driveID, nil
	}

	var site struct {
		ID string `json:"id"`
	}
	siteURL := fmt.Sprintf("%s/sites/%s:%s", c.baseURL, url.PathEscape(c.siteHost), escapePath(c.sitePath))
	if err := c.getJSON(ctx, siteURL, &site); err != nil {
		return "", fmt.Errorf("%w: resolving site: %v", apperrors.ErrListing, err)
	}
	if site.ID == "" {
		return "", apperrors.Newf(apperrors.ErrListing, "site %s:%s has no id", c.siteHost, c.sitePath)
	}

	var drives struct {
		Value []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"value"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/sites/%s/drives", c.baseURL, url.PathEscape(site.ID)), &drives); err != nil {
		return "", fmt.Errorf("%w: listing drives: %v", apperrors.ErrListing, err)
	}
	for _, d := range drives.Value {
		if d.Name == c.driveName {
			c.driveID = d.ID
			c.logger.Info("drive resolved", "site_id", site.ID, "drive", d.Name, "drive_id", d.ID)
			return d.ID, nil
		}
	}
	return "", apperrors.Newf(apperrors.ErrListing, "drive %q not found", c.driveName)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %s: %s", endpoint, resp.Status, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", endpoint, err)
	}
	return nil
}
