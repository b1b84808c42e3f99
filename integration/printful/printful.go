// Package printful is the print-on-demand fulfillment collaborator. It
// uploads a design file and creates a sync product with a small fixed
// variant set (Bella+Canvas 3001, white S/M/L), mirroring the storefront's
// listing flow.
package printful

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.printful.com"

// Options configure the client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Client talks to the Printful REST API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// New constructs a client. An empty apiKey is allowed; calls will then fail
// with the API's auth error, which the capability layer folds into a tool
// result.
func New(apiKey string, optFns ...func(o *Options)) *Client {
	opts := Options{
		BaseURL:    defaultBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{apiKey: apiKey, baseURL: strings.TrimSuffix(opts.BaseURL, "/"), http: opts.HTTPClient}
}

// Listing describes the created sync product.
type Listing struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CreateListing uploads the design at imageURL and creates a sync product
// around it, returning the external product identity.
func (c *Client) CreateListing(ctx context.Context, name, description, imageURL string) (Listing, error) {
	fileID, err := c.uploadFile(ctx, name, imageURL)
	if err != nil {
		return Listing{}, err
	}

	// White S/M/L of the catalog t-shirt; variant ids are Printful's.
	variants := make([]map[string]any, 0, 3)
	for _, variantID := range []int{4012, 4013, 4014} {
		variants = append(variants, map[string]any{
			"retail_price": "24.99",
			"variant_id":   variantID,
			"files":        []map[string]any{{"id": fileID, "type": "default"}},
		})
	}
	body := map[string]any{
		"sync_product": map[string]any{
			"name":      name,
			"thumbnail": imageURL,
		},
		"sync_variants": variants,
	}

	var resp struct {
		Result struct {
			ID          int64 `json:"id"`
			SyncProduct struct {
				Name string `json:"name"`
			} `json:"sync_product"`
		} `json:"result"`
	}
	if err := c.post(ctx, "/store/products", body, &resp); err != nil {
		return Listing{}, fmt.Errorf("create sync product: %w", err)
	}
	return Listing{ID: resp.Result.ID, Name: resp.Result.SyncProduct.Name}, nil
}

func (c *Client) uploadFile(ctx context.Context, name, imageURL string) (int64, error) {
	body := map[string]any{
		"url":      imageURL,
		"filename": strings.ReplaceAll(name, " ", "_") + ".png",
	}
	var resp struct {
		Result struct {
			ID int64 `json:"id"`
		} `json:"result"`
	}
	if err := c.post(ctx, "/files", body, &resp); err != nil {
		return 0, fmt.Errorf("upload design file: %w", err)
	}
	return resp.Result.ID, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("printful %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
