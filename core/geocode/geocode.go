// Package geocode defines the typed results consumed from external
// geocoding and places providers. Provider wire formats never cross this
// boundary.
package geocode

import "context"

// Result is a resolved address for a coordinate or free-form query.
type Result struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	FormattedAddress string  `json:"formatted_address"`
}

// Place is a point of interest near a coordinate.
type Place struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Address  string  `json:"address"`
	Distance float64 `json:"distance_meters"`
}

// Provider resolves addresses and nearby places. Implementations live under
// infra and must respect the context deadline.
type Provider interface {
	Geocode(ctx context.Context, address string) (Result, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) (Result, error)
	NearbyPlaces(ctx context.Context, lat, lon, radiusMeters float64, placeType string) ([]Place, error)
}
