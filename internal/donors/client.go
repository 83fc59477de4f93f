// Package donors talks to the external donor datastore. All reads are
// signed and rate limited so a busy monitoring pass cannot starve the
// upstream API.
package donors

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"donorsense/internal/common"
	"donorsense/internal/model"
)

// Client wraps the donor datastore's REST API.
type Client struct {
	key    string
	secret string
	base   string

	rest    *resty.Client
	limiter *rate.Limiter
}

// NewClient builds a datastore client. A non-positive timeout falls back
// to the shared REST default, a non-positive rps to the shared API rate.
func NewClient(key, secret, base string, timeout time.Duration, rps float64) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(common.DefaultRESTTimeout)
	}
	if rps <= 0 {
		rps = common.DefaultDonorAPIRPS
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		key:     key,
		secret:  secret,
		base:    base,
		rest:    r,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// GetDonor fetches one donor record with its donation history. A missing
// donor returns a LookupError so callers can tell absence from transport
// failures.
func (c *Client) GetDonor(ctx context.Context, id string) (*model.Donor, error) {
	if id == "" {
		return nil, model.Validationf("donorId", "donor id must not be empty")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var donor model.Donor
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeaders(c.signedHeaders()).
		SetResult(&donor).
		Get(c.base + "/api/v1/donors/" + url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("donor request failed: %w", err)
	}
	if resp.StatusCode() == 404 {
		return nil, &model.LookupError{Kind: "donor", ID: id}
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("donor API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	return &donor, nil
}

// ListRecentDonors returns donors with activity since the cutoff, capped
// at limit.
func (c *Client) ListRecentDonors(ctx context.Context, since time.Time, limit int) ([]model.Donor, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var out []model.Donor
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeaders(c.signedHeaders()).
		SetQueryParams(map[string]string{
			"since": strconv.FormatInt(since.UnixMilli(), 10),
			"limit": strconv.Itoa(limit),
		}).
		SetResult(&out).
		Get(c.base + "/api/v1/donors")
	if err != nil {
		return nil, fmt.Errorf("donor list request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("donor API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	return out, nil
}

func (c *Client) signedHeaders() map[string]string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	nonce := ts
	return map[string]string{
		"api-key":   c.key,
		"nonce":     nonce,
		"timestamp": ts,
		"sign":      Sign(c.secret, nonce, c.key, ts),
	}
}
