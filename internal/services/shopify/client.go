package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shopmirror/internal/logger"
	"shopmirror/internal/pager"
	apperrors "shopmirror/pkg/errors"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

type ClientConfig struct {
	ShopDomain      string
	AccessToken     string
	StorefrontToken string
	APIVersion      string

	// AdminURL and StorefrontURL override the URLs derived from ShopDomain.
	AdminURL      string
	StorefrontURL string
	Timeout       time.Duration
}

type Client struct {
	admin         *resty.Client
	storefront    *resty.Client
	storefrontURL string
	images        *resty.Client
	logger        *logger.Logger
}

func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	domain := shopHost(cfg.ShopDomain)
	adminURL := cfg.AdminURL
	if adminURL == "" {
		adminURL = fmt.Sprintf("https://%s/admin/api/%s", domain, cfg.APIVersion)
	}
	storefrontURL := cfg.StorefrontURL
	if storefrontURL == "" {
		storefrontURL = fmt.Sprintf("https://%s/api/%s/graphql.json", domain, cfg.APIVersion)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	admin := resty.New().
		SetBaseURL(adminURL).
		SetTimeout(timeout).
		SetHeader("X-Shopify-Access-Token", cfg.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(3).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// REST Admin answers 429 when the leaky bucket is full
			return r != nil && r.StatusCode() == http.StatusTooManyRequests
		})

	storefront := resty.New().
		SetTimeout(timeout).
		SetHeader("X-Shopify-Storefront-Access-Token", cfg.StorefrontToken).
		SetHeader("Content-Type", "application/json")

	return &Client{
		admin:         admin,
		storefront:    storefront,
		storefrontURL: storefrontURL,
		images:        resty.New().SetTimeout(timeout),
		logger:        log.Named("shopify"),
	}
}

func shopHost(domain string) string {
	domain = strings.TrimSpace(domain)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimSuffix(domain, "/")
	if !strings.Contains(domain, ".") {
		domain += ".myshopify.com"
	}
	return domain
}

// ListProducts fetches one page of products.
func (c *Client) ListProducts(ctx context.Context, params url.Values) ([]Product, url.Values, error) {
	var env productsEnvelope
	next, err := c.list(ctx, "list products", "/products.json", params, &env)
	if err != nil {
		return nil, nil, err
	}
	return env.Products, next, nil
}

// ListCollectionProducts fetches one page of a collection's products in the collection's sort order.
func (c *Client) ListCollectionProducts(ctx context.Context, collectionID int64, params url.Values) ([]Product, url.Values, error) {
	var env productsEnvelope
	path := fmt.Sprintf("/collections/%d/products.json", collectionID)
	next, err := c.list(ctx, "list collection products", path, params, &env)
	if err != nil {
		return nil, nil, err
	}
	return env.Products, next, nil
}

func (c *Client) ListCustomCollections(ctx context.Context, params url.Values) ([]Collection, url.Values, error) {
	var env customCollectionsEnvelope
	next, err := c.list(ctx, "list custom collections", "/custom_collections.json", params, &env)
	if err != nil {
		return nil, nil, err
	}
	return env.CustomCollections, next, nil
}

func (c *Client) ListSmartCollections(ctx context.Context, params url.Values) ([]Collection, url.Values, error) {
	var env smartCollectionsEnvelope
	next, err := c.list(ctx, "list smart collections", "/smart_collections.json", params, &env)
	if err != nil {
		return nil, nil, err
	}
	for i := range env.SmartCollections {
		env.SmartCollections[i].Smart = true
	}
	return env.SmartCollections, next, nil
}

var errMissingCollection = errors.New("response has no collection")

// GetCollection looks the id up as a smart collection first, then as a custom one.
func (c *Client) GetCollection(ctx context.Context, id int64) (*Collection, error) {
	var smart struct {
		SmartCollection *Collection `json:"smart_collection"`
	}
	status, err := c.get(ctx, "get smart collection", fmt.Sprintf("/smart_collections/%d.json", id), &smart)
	switch {
	case err == nil && smart.SmartCollection == nil:
		return nil, &apperrors.ErrRemoteUnavailable{Op: "get smart collection", Err: errMissingCollection}
	case err == nil:
		smart.SmartCollection.Smart = true
		return smart.SmartCollection, nil
	case status != http.StatusNotFound:
		return nil, err
	}

	var custom struct {
		CustomCollection *Collection `json:"custom_collection"`
	}
	status, err = c.get(ctx, "get custom collection", fmt.Sprintf("/custom_collections/%d.json", id), &custom)
	if status == http.StatusNotFound {
		return nil, &apperrors.ErrNotFound{Resource: "collection", ID: fmt.Sprint(id)}
	}
	if err != nil {
		return nil, err
	}
	if custom.CustomCollection == nil {
		return nil, &apperrors.ErrRemoteUnavailable{Op: "get custom collection", Err: errMissingCollection}
	}
	return custom.CustomCollection, nil
}

func (c *Client) ListCustomers(ctx context.Context, params url.Values) ([]Customer, url.Values, error) {
	var env customersEnvelope
	next, err := c.list(ctx, "list customers", "/customers.json", params, &env)
	if err != nil {
		return nil, nil, err
	}
	return env.Customers, next, nil
}

func (c *Client) ListWebhooks(ctx context.Context, params url.Values) ([]Webhook, url.Values, error) {
	var env webhooksEnvelope
	next, err := c.list(ctx, "list webhooks", "/webhooks.json", params, &env)
	if err != nil {
		return nil, nil, err
	}
	return env.Webhooks, next, nil
}

func (c *Client) CreateWebhook(ctx context.Context, topic, address string) (*Webhook, error) {
	payload := struct {
		Webhook Webhook `json:"webhook"`
	}{Webhook: Webhook{Topic: topic, Address: address, Format: "json"}}

	resp, err := c.admin.R().SetContext(ctx).SetBody(payload).Post("/webhooks.json")
	if err != nil {
		return nil, &apperrors.ErrRemoteUnavailable{Op: "create webhook", Err: err}
	}
	if resp.StatusCode() == http.StatusUnprocessableEntity {
		return nil, &apperrors.ErrRemoteValidation{Messages: []string{strings.TrimSpace(resp.String())}}
	}
	if resp.IsError() {
		return nil, statusError("create webhook", resp)
	}

	var created struct {
		Webhook Webhook `json:"webhook"`
	}
	if err := json.Unmarshal(resp.Body(), &created); err != nil {
		return nil, fmt.Errorf("failed to decode webhook: %w", err)
	}
	return &created.Webhook, nil
}

// DownloadImage fetches an image from the CDN.
func (c *Client) DownloadImage(ctx context.Context, src string) ([]byte, string, error) {
	resp, err := c.images.R().SetContext(ctx).Get(src)
	if err != nil {
		return nil, "", &apperrors.ErrRemoteUnavailable{Op: "download image", Err: err}
	}
	if resp.IsError() {
		return nil, "", statusError("download image", resp)
	}
	return resp.Body(), resp.Header().Get("Content-Type"), nil
}

func (c *Client) list(ctx context.Context, op, path string, params url.Values, out interface{}) (url.Values, error) {
	resp, err := c.admin.R().SetContext(ctx).SetQueryParamsFromValues(params).Get(path)
	if err != nil {
		return nil, &apperrors.ErrRemoteUnavailable{Op: op, Err: err}
	}
	if resp.IsError() {
		return nil, statusError(op, resp)
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return nil, &apperrors.ErrRemoteUnavailable{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	c.logger.Debug("fetched page", zap.String("op", op), zap.String("path", path))
	return pager.NextParams(resp.Header().Get("Link")), nil
}

// get returns the HTTP status alongside the error so callers can tell 404s apart.
func (c *Client) get(ctx context.Context, op, path string, out interface{}) (int, error) {
	resp, err := c.admin.R().SetContext(ctx).Get(path)
	if err != nil {
		return 0, &apperrors.ErrRemoteUnavailable{Op: op, Err: err}
	}
	if resp.IsError() {
		return resp.StatusCode(), statusError(op, resp)
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return resp.StatusCode(), &apperrors.ErrRemoteUnavailable{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return resp.StatusCode(), nil
}

func statusError(op string, resp *resty.Response) error {
	body := resp.String()
	if len(body) > 512 {
		body = body[:512]
	}
	return &apperrors.ErrRemoteUnavailable{
		Op:  op,
		Err: fmt.Errorf("API request failed: %d - %s", resp.StatusCode(), body),
	}
}
