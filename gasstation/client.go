package gasstation

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	gresty "github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

var errGasStationHTTPError = errors.New("gas station http error")

const defaultTimeout = 5 * time.Second

// Client queries fee-estimation services that speak the Polygon gas station
// v2 format. The endpoint is chosen per call since each chain has its own.
type Client struct {
	client *gresty.Client
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := gresty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	client.OnAfterResponse(func(client *gresty.Client, response *gresty.Response) error {
		statusCode := response.StatusCode()
		if statusCode >= http.StatusBadRequest {
			method := response.Request.Method
			url := response.Request.URL
			return fmt.Errorf("%d cannot %s %s: %w", statusCode, method, url, errGasStationHTTPError)
		}
		return nil
	})
	return &Client{client: client}
}

// Suggest fetches the tiered fee suggestion from url.
func (c *Client) Suggest(ctx context.Context, url string) (*Suggestion, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetResult(&Suggestion{}).
		Get(url)
	if err != nil {
		log.Debug("gas station request failed", "url", url, "err", err)
		return nil, err
	}
	suggestion, ok := res.Result().(*Suggestion)
	if !ok || suggestion == nil {
		return nil, fmt.Errorf("gas station response is not of type *Suggestion")
	}
	return suggestion, nil
}
