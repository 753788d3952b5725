package geo

import (
	"context"
	"log/slog"
	"net"

	"github.com/BradenHooton/adminguard/internal/models"
)

// Sentinel field values for degraded lookups
const (
	Unknown     = "Unknown"
	Unavailable = "Unavailable"
)

const (
	TierIP  = "ip"
	TierGeo = "geo"
)

// Location is what a geolocation provider reports for an IP
type Location struct {
	Country string
	City    string
}

// FailureObserver is notified of every failed provider call
type FailureObserver interface {
	GeoProviderFailed(tier, provider string)
}

// Resolver runs the IP tier then the geolocation tier. Resolve is total.
type Resolver struct {
	ipProviders  []Provider[struct{}, string]
	geoProviders []Provider[string, Location]
	observer     FailureObserver
	logger       *slog.Logger
}

// NewResolver creates a resolver over explicit provider chains
func NewResolver(ipProviders []Provider[struct{}, string], geoProviders []Provider[string, Location], observer FailureObserver, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		ipProviders:  ipProviders,
		geoProviders: geoProviders,
		observer:     observer,
		logger:       logger,
	}
}

// Resolve never fails. IP discovery exhaustion yields Unknown for every field;
// geolocation exhaustion keeps the IP and reports Unavailable country and city.
func (r *Resolver) Resolve(ctx context.Context) models.GeoLocation {
	ip, _, err := FirstSuccess(ctx, r.ipProviders, struct{}{}, r.failure(TierIP))
	if err != nil || net.ParseIP(ip) == nil {
		return models.GeoLocation{IP: Unknown, Country: Unknown, City: Unknown}
	}

	loc, _, err := FirstSuccess(ctx, r.geoProviders, ip, r.failure(TierGeo))
	if err != nil {
		return models.GeoLocation{IP: ip, Country: Unavailable, City: Unavailable}
	}

	city := loc.City
	if city == "" {
		city = Unknown
	}
	return models.GeoLocation{IP: ip, Country: loc.Country, City: city}
}

// Disabled returns a resolver whose tiers are empty, so every session is
// annotated with the Unknown sentinels
func Disabled() *Resolver {
	return NewResolver(nil, nil, nil, nil)
}

func (r *Resolver) failure(tier string) FailureFunc {
	return func(provider string, err error) {
		r.logger.Debug("geo provider failed", "tier", tier, "provider", provider, "error", err)
		if r.observer != nil {
			r.observer.GeoProviderFailed(tier, provider)
		}
	}
}
