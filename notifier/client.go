package notifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	gresty "github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

var (
	errNotifyHTTPError = errors.New("notify http error")
	errNotifyRefused   = errors.New("notify endpoint refused batch")
)

type NotifyClient struct {
	client *gresty.Client
	url    string
}

func NewNotifyClient(url string, timeout time.Duration) (*NotifyClient, error) {
	if url == "" {
		return nil, fmt.Errorf("notify url cannot be empty")
	}

	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := gresty.New()
	client.SetTimeout(timeout)
	client.OnAfterResponse(func(client *gresty.Client, response *gresty.Response) error {
		statusCode := response.StatusCode()
		if statusCode >= http.StatusBadRequest {
			method := response.Request.Method
			url := response.Request.URL
			return fmt.Errorf("%d cannot %s %s: %w", statusCode, method, url, errNotifyHTTPError)
		}
		return nil
	})

	return &NotifyClient{client: client, url: url}, nil
}

// Notify posts one batch. A response without success is an error so the
// caller can retry it.
func (nc *NotifyClient) Notify(ctx context.Context, notifyData *NotifyRequest) error {
	res, err := nc.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(notifyData).
		SetResult(&NotifyResponse{}).
		Post(nc.url)
	if err != nil {
		log.Debug("notify http request failed", "err", err)
		return err
	}
	spt, ok := res.Result().(*NotifyResponse)
	if !ok {
		return fmt.Errorf("notify response is not of type *NotifyResponse")
	}
	if !spt.Success {
		return errNotifyRefused
	}
	return nil
}
