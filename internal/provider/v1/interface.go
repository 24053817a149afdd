package provider

import (
	"context"
	"encoding/json"
)

// Gateway is the narrow contract against the external fulfillment provider.
// Implementations must bound every call with a timeout and must never report
// success for a response they could not parse.
type Gateway interface {
	Submit(ctx context.Context, serviceID int64, link string, quantity int) (int64, error)
	Status(ctx context.Context, providerOrderID int64) (string, error)
	Services(ctx context.Context) (json.RawMessage, error)
}
