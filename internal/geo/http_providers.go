package geo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkghttp "github.com/BradenHooton/adminguard/pkg/http"
	"github.com/tidwall/gjson"
)

const maxProviderBody = 64 << 10

// Endpoints are the provider URLs. Geolocation URLs take the IP through a %s verb.
type Endpoints struct {
	IPify     string
	ICanHazIP string
	IPAPICo   string
	IPAPICom  string
	IPWhoIs   string
}

// DefaultEndpoints returns the public provider URLs
func DefaultEndpoints() Endpoints {
	return Endpoints{
		IPify:     "https://api.ipify.org?format=json",
		ICanHazIP: "https://icanhazip.com",
		IPAPICo:   "https://ipapi.co/%s/json/",
		IPAPICom:  "http://ip-api.com/json/%s",
		IPWhoIs:   "https://ipwho.is/%s",
	}
}

type clientIPKey struct{}

// WithClientIP carries the caller's IP, as seen by the HTTP layer, to the IP tier
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFrom returns the IP stored by WithClientIP
func ClientIPFrom(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// NewHTTPResolver wires the standard provider chains
func NewHTTPResolver(client *http.Client, endpoints Endpoints, ipTimeout, geoTimeout time.Duration, observer FailureObserver, logger *slog.Logger) *Resolver {
	if client == nil {
		client = &http.Client{}
	}

	ipProviders := []Provider[struct{}, string]{
		ClientHintProvider(ipTimeout),
		EgressOnly(IPifyProvider(client, endpoints.IPify, ipTimeout)),
		EgressOnly(ICanHazIPProvider(client, endpoints.ICanHazIP, ipTimeout)),
	}
	geoProviders := []Provider[string, Location]{
		IPAPICoProvider(client, endpoints.IPAPICo, geoTimeout),
		IPAPIComProvider(client, endpoints.IPAPICom, geoTimeout),
		IPWhoIsProvider(client, endpoints.IPWhoIs, geoTimeout),
	}
	return NewResolver(ipProviders, geoProviders, observer, logger)
}

// ClientHintProvider succeeds with the request's client IP when it is publicly routable
func ClientHintProvider(timeout time.Duration) Provider[struct{}, string] {
	return Provider[struct{}, string]{
		Name:    "client-hint",
		Timeout: timeout,
		Fetch: func(ctx context.Context, _ struct{}) (string, error) {
			ip := ClientIPFrom(ctx)
			if !pkghttp.IsPublicIP(ip) {
				return "", fmt.Errorf("client ip %q is not public", ip)
			}
			return ip, nil
		},
	}
}

var errClientIPKnown = errors.New("request has a client ip; egress lookup would report this server")

// EgressOnly limits a "what is my IP" provider to calls with no client IP on
// the context. Run server side such a provider reports the server's own
// egress address, so a known but non-public client IP must not fall through
// to it.
func EgressOnly(p Provider[struct{}, string]) Provider[struct{}, string] {
	fetch := p.Fetch
	p.Fetch = func(ctx context.Context, in struct{}) (string, error) {
		if ClientIPFrom(ctx) != "" {
			return "", errClientIPKnown
		}
		return fetch(ctx, in)
	}
	return p
}

// IPifyProvider reads {"ip": "..."} from a JSON endpoint
func IPifyProvider(client *http.Client, endpoint string, timeout time.Duration) Provider[struct{}, string] {
	return Provider[struct{}, string]{
		Name:    "ipify",
		Timeout: timeout,
		Fetch: func(ctx context.Context, _ struct{}) (string, error) {
			body, err := get(ctx, client, endpoint)
			if err != nil {
				return "", err
			}
			return parseIP(gjson.GetBytes(body, "ip").String())
		},
	}
}

// ICanHazIPProvider reads a plain-text IP body
func ICanHazIPProvider(client *http.Client, endpoint string, timeout time.Duration) Provider[struct{}, string] {
	return Provider[struct{}, string]{
		Name:    "icanhazip",
		Timeout: timeout,
		Fetch: func(ctx context.Context, _ struct{}) (string, error) {
			body, err := get(ctx, client, endpoint)
			if err != nil {
				return "", err
			}
			return parseIP(string(body))
		},
	}
}

// IPAPICoProvider understands {"error": bool, "country_name", "city"}
func IPAPICoProvider(client *http.Client, endpoint string, timeout time.Duration) Provider[string, Location] {
	return geoProvider("ipapi.co", client, endpoint, timeout, func(doc gjson.Result) (Location, error) {
		if doc.Get("error").Bool() {
			return Location{}, fmt.Errorf("provider error: %s", doc.Get("reason").String())
		}
		return Location{Country: doc.Get("country_name").String(), City: doc.Get("city").String()}, nil
	})
}

// IPAPIComProvider understands {"status": "success", "country", "city"}
func IPAPIComProvider(client *http.Client, endpoint string, timeout time.Duration) Provider[string, Location] {
	return geoProvider("ip-api.com", client, endpoint, timeout, func(doc gjson.Result) (Location, error) {
		if status := doc.Get("status").String(); status != "success" {
			return Location{}, fmt.Errorf("provider status %q: %s", status, doc.Get("message").String())
		}
		return Location{Country: doc.Get("country").String(), City: doc.Get("city").String()}, nil
	})
}

// IPWhoIsProvider understands {"success": bool, "country", "city"}
func IPWhoIsProvider(client *http.Client, endpoint string, timeout time.Duration) Provider[string, Location] {
	return geoProvider("ipwho.is", client, endpoint, timeout, func(doc gjson.Result) (Location, error) {
		if !doc.Get("success").Bool() {
			return Location{}, fmt.Errorf("provider error: %s", doc.Get("message").String())
		}
		return Location{Country: doc.Get("country").String(), City: doc.Get("city").String()}, nil
	})
}

func geoProvider(name string, client *http.Client, endpoint string, timeout time.Duration, decode func(gjson.Result) (Location, error)) Provider[string, Location] {
	return Provider[string, Location]{
		Name:    name,
		Timeout: timeout,
		Fetch: func(ctx context.Context, ip string) (Location, error) {
			body, err := get(ctx, client, fmt.Sprintf(endpoint, url.PathEscape(ip)))
			if err != nil {
				return Location{}, err
			}
			if !gjson.ValidBytes(body) {
				return Location{}, errors.New("malformed json body")
			}
			loc, err := decode(gjson.ParseBytes(body))
			if err != nil {
				return Location{}, err
			}
			loc.Country = strings.TrimSpace(loc.Country)
			loc.City = strings.TrimSpace(loc.City)
			if loc.Country == "" {
				return Location{}, errors.New("no country in response")
			}
			return loc, nil
		},
	}
}

func get(ctx context.Context, client *http.Client, endpoint string) ([]byte, error) {
	if endpoint == "" {
		return nil, errors.New("provider endpoint not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func parseIP(raw string) (string, error) {
	ip := strings.TrimSpace(raw)
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("invalid ip %q", ip)
	}
	return ip, nil
}
