// Package functions holds the built-in function catalog registered at
// startup.
package functions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/robit-man/gemma3-evaluation-app/pkg/fnreg"
)

const defaultIPEndpoint = "https://ipconfig.io/json"

// IPLocationOptions tune the get_ip_location handler; zero values use
// the public ipconfig.io service with a 5 second budget.
type IPLocationOptions struct {
	Endpoint string
	Client   *http.Client
}

// NewIPLocation looks up the caller's public IP location. The optional
// "ip" parameter is accepted for compatibility but ignored: the service
// always resolves the requesting address.
func NewIPLocation(opts IPLocationOptions) fnreg.FunctionSpec {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = defaultIPEndpoint
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return fnreg.FunctionSpec{
		Name:        "get_ip_location",
		Description: "Get the location details of your public IP address (city, region, country).",
		Params: map[string]fnreg.ParamSpec{
			"ip": {Type: "string", Description: "Ignored; the public IP is detected automatically."},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return nil, err
			}
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("ip location service returned %s", resp.Status)
			}
			var location map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&location); err != nil {
				return nil, fmt.Errorf("decode location: %w", err)
			}
			return location, nil
		},
	}
}

// NewCurrentDatetime returns the current date and time as a formatted
// string.
func NewCurrentDatetime() fnreg.FunctionSpec {
	return NewCurrentDatetimeAt(time.Now)
}

// NewCurrentDatetimeAt is NewCurrentDatetime with an injectable clock.
func NewCurrentDatetimeAt(now func() time.Time) fnreg.FunctionSpec {
	return fnreg.FunctionSpec{
		Name:        "get_current_datetime",
		Description: "Return the current date and time as a formatted string.",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return now().Format("2006-01-02 15:04:05"), nil
		},
	}
}

// RegisterBuiltins installs the default catalog into a registry.
func RegisterBuiltins(reg *fnreg.Registry) error {
	for _, spec := range []fnreg.FunctionSpec{
		NewIPLocation(IPLocationOptions{}),
		NewCurrentDatetime(),
	} {
		if err := reg.Register(spec); err != nil {
			return err
		}
	}
	return nil
}
