// Package crm pulls contacts, companies and deals from the HubSpot CRM API and
// normalizes them into integration items.
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-hubspot-connector/credentials"
	"github.com/jrsteele09/go-hubspot-connector/integration"
	apperrors "github.com/jrsteele09/go-hubspot-connector/internal/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBaseURL   = "https://api.hubapi.com"
	defaultTimeout   = 10 * time.Second
	defaultPageLimit = 100

	maxResponseBytes = 10 << 20
)

// Collection is one CRM object endpoint and the item type its records map to.
type Collection struct {
	Path string
	Type integration.ItemType
}

// Collections are fetched in this order and their results concatenated in it.
var Collections = []Collection{
	{Path: "/crm/v3/objects/contacts", Type: integration.ItemTypeContact},
	{Path: "/crm/v3/objects/companies", Type: integration.ItemTypeCompany},
	{Path: "/crm/v3/objects/deals", Type: integration.ItemTypeDeal},
}

// Options configures a Client. Zero values use the HubSpot defaults.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	PageLimit  int
	HTTPClient *http.Client
	Logger     *zerolog.Logger

	// Strict fails the whole fetch with PartialFetchFailure when any collection
	// answers with a non-success status, instead of skipping that collection.
	Strict bool
}

// Client fetches records on behalf of an authorized user.
type Client struct {
	baseURL    string
	timeout    time.Duration
	pageLimit  int
	httpClient *http.Client
	logger     zerolog.Logger
	strict     bool
}

// NewClient creates a CRM client.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		timeout:    opts.Timeout,
		pageLimit:  opts.PageLimit,
		httpClient: opts.HTTPClient,
		logger:     zerolog.Nop(),
		strict:     opts.Strict,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.pageLimit <= 0 {
		c.pageLimit = defaultPageLimit
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	if opts.Logger != nil {
		c.logger = *opts.Logger
	}
	return c
}

// FetchRecords parses the credential payload and loads every collection
// concurrently. A collection answering with a non-success status contributes
// no records unless the client is strict.
func (c *Client) FetchRecords(ctx context.Context, credentialPayload []byte) ([]integration.Item, error) {
	cred, err := credentials.Parse(credentialPayload)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// The oauth2 transport adds "Authorization: Bearer <access_token>" to each request.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cred.AccessToken,
		TokenType:   "Bearer",
	}))

	results := make([][]integration.Item, len(Collections))
	g, gctx := errgroup.WithContext(ctx)
	for i, col := range Collections {
		g.Go(func() error {
			items, err := c.fetchCollection(gctx, client, col)
			if err != nil {
				return err
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var items []integration.Item
	for _, r := range results {
		items = append(items, r...)
	}
	if items == nil {
		items = []integration.Item{}
	}
	return items, nil
}

type collectionResponse struct {
	Results []remoteObject `json:"results"`
}

type remoteObject struct {
	ID         json.RawMessage `json:"id"`
	Name       string          `json:"name"`
	Properties struct {
		Name *string `json:"name"`
	} `json:"properties"`
}

func (c *Client) fetchCollection(ctx context.Context, client *http.Client, col Collection) ([]integration.Item, error) {
	endpoint := c.baseURL + col.Path + "?" + url.Values{"limit": {strconv.Itoa(c.pageLimit)}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "build request").WithCause(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrRemoteUnavailable, fmt.Sprintf("could not reach HubSpot %s endpoint", col.Type)).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		if c.strict {
			return nil, apperrors.New(apperrors.ErrPartialFetchFailure, fmt.Sprintf("%s collection unavailable", col.Type)).
				WithStatus(resp.StatusCode)
		}
		c.logger.Warn().Str("collection", string(col.Type)).Int("upstream_status", resp.StatusCode).Msg("skipping collection")
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperrors.New(apperrors.ErrRemoteUnavailable, fmt.Sprintf("read %s response", col.Type)).WithCause(err)
	}
	var parsed collectionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apperrors.New(apperrors.ErrRemoteUnavailable, fmt.Sprintf("unparseable %s response", col.Type)).WithCause(err)
	}

	items := make([]integration.Item, 0, len(parsed.Results))
	for _, obj := range parsed.Results {
		items = append(items, toItem(obj, col.Type))
	}
	return items, nil
}

func toItem(obj remoteObject, itemType integration.ItemType) integration.Item {
	name := obj.Name
	if obj.Properties.Name != nil {
		name = *obj.Properties.Name
	}
	return integration.Item{
		ID:   integration.ItemID(rawID(obj.ID), itemType),
		Name: name,
		Type: itemType,
	}
}

// rawID accepts both string and numeric ids.
func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	return string(raw)
}
