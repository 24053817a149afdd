// Package client implements a Gateway for submitting and tracking orders at
// the external fulfillment provider.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/avreline/panelcore/internal/config"
	providerErrors "github.com/avreline/panelcore/internal/provider/v1/errors"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Client defines attributes of a struct available to its methods.
type Client struct {
	client         *resty.Client
	providerConfig *config.ProviderConfig
	log            *zerolog.Logger
}

type submitResponse struct {
	Order int64  `json:"order"`
	Error string `json:"error"`
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// InitClient initializes a resty client with a bounded per-call timeout.
func InitClient(providerConfig *config.ProviderConfig, log *zerolog.Logger) *Client {
	providerClient := resty.New().SetTimeout(providerConfig.Timeout)
	log.Info().Msg("fulfillment provider client initialized")
	return &Client{client: providerClient, providerConfig: providerConfig, log: log}
}

// Submit places an order with the provider and returns the provider order
// identifier. Any outcome without a confirmed identifier is a GatewayError.
func (c *Client) Submit(ctx context.Context, serviceID int64, link string, quantity int) (int64, error) {
	response, err := c.post(ctx, map[string]string{
		"action":   "add",
		"service":  strconv.FormatInt(serviceID, 10),
		"link":     link,
		"quantity": strconv.Itoa(quantity),
	})
	if err != nil {
		c.log.Error().Err(err).Msg(fmt.Sprintf("order submission failed for service %v", serviceID))
		return 0, &providerErrors.GatewayError{Err: err}
	}
	var parsed submitResponse
	err = json.Unmarshal(response.Body(), &parsed)
	if err != nil {
		// raw-body fallback: an unparseable body is a failure, never a crash
		return 0, &providerErrors.GatewayError{Err: err, Payload: string(response.Body())}
	}
	if parsed.Order == 0 {
		return 0, &providerErrors.GatewayError{Payload: string(response.Body())}
	}
	return parsed.Order, nil
}

// Status queries the provider-reported status of a submitted order.
func (c *Client) Status(ctx context.Context, providerOrderID int64) (string, error) {
	response, err := c.post(ctx, map[string]string{
		"action": "status",
		"order":  strconv.FormatInt(providerOrderID, 10),
	})
	if err != nil {
		c.log.Error().Err(err).Msg(fmt.Sprintf("status retrieval failed for provider order %v", providerOrderID))
		return "", &providerErrors.GatewayError{Err: err}
	}
	var parsed statusResponse
	err = json.Unmarshal(response.Body(), &parsed)
	if err != nil {
		return "", &providerErrors.GatewayError{Err: err, Payload: string(response.Body())}
	}
	if parsed.Status == "" {
		return "", &providerErrors.GatewayError{Payload: string(response.Body())}
	}
	return parsed.Status, nil
}

// Services retrieves the provider's service listing as an opaque payload.
func (c *Client) Services(ctx context.Context) (json.RawMessage, error) {
	response, err := c.post(ctx, map[string]string{"action": "services"})
	if err != nil {
		c.log.Error().Err(err).Msg("service listing retrieval failed")
		return nil, &providerErrors.GatewayError{Err: err}
	}
	if !json.Valid(response.Body()) {
		return nil, &providerErrors.GatewayError{Payload: string(response.Body())}
	}
	return json.RawMessage(response.Body()), nil
}

func (c *Client) post(ctx context.Context, form map[string]string) (*resty.Response, error) {
	form["key"] = c.providerConfig.APIKey
	return c.client.R().SetContext(ctx).SetFormData(form).Post(c.providerConfig.Address)
}
