// Package geocode implements the geocode.Provider contract against the
// Google Maps web APIs.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	coregeocode "github.com/mindcare/guardian/core/geocode"
	"github.com/mindcare/guardian/core/geo"
	"github.com/mindcare/guardian/infra/logger"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api"

// Config defines the Google Maps API access parameters.
type Config struct {
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// GoogleProvider calls the Geocoding and Places APIs.
type GoogleProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	log     logger.Logger
}

// NewGoogleProvider creates a provider. BaseURL is overridable for tests.
func NewGoogleProvider(cfg Config) *GoogleProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 10
	}
	return &GoogleProvider{
		client:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		log:     logger.New("geocode"),
	}
}

// geocodeResponse is the provider wire format shared by forward and
// reverse geocoding.
type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves a free-form address to a coordinate.
func (p *GoogleProvider) Geocode(ctx context.Context, address string) (coregeocode.Result, error) {
	q := url.Values{"address": {address}}
	var resp geocodeResponse
	if err := p.get(ctx, "/geocode/json", q, &resp); err != nil {
		return coregeocode.Result{}, err
	}
	return firstResult(resp)
}

// ReverseGeocode resolves a coordinate to a formatted address.
func (p *GoogleProvider) ReverseGeocode(ctx context.Context, lat, lon float64) (coregeocode.Result, error) {
	q := url.Values{"latlng": {formatLatLng(lat, lon)}}
	var resp geocodeResponse
	if err := p.get(ctx, "/geocode/json", q, &resp); err != nil {
		return coregeocode.Result{}, err
	}
	return firstResult(resp)
}

// placesResponse is the Places Nearby Search wire format.
type placesResponse struct {
	Status  string `json:"status"`
	Results []struct {
		PlaceID  string   `json:"place_id"`
		Name     string   `json:"name"`
		Vicinity string   `json:"vicinity"`
		Types    []string `json:"types"`
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// NearbyPlaces lists points of interest around the coordinate, closest
// first.
func (p *GoogleProvider) NearbyPlaces(ctx context.Context, lat, lon, radiusMeters float64, placeType string) ([]coregeocode.Place, error) {
	q := url.Values{
		"location": {formatLatLng(lat, lon)},
		"radius":   {strconv.FormatFloat(radiusMeters, 'f', 0, 64)},
	}
	if placeType != "" {
		q.Set("type", placeType)
	}
	var resp placesResponse
	if err := p.get(ctx, "/place/nearbysearch/json", q, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "OK" && resp.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("geocode: places status %s", resp.Status)
	}
	places := make([]coregeocode.Place, 0, len(resp.Results))
	for _, r := range resp.Results {
		typ := ""
		if len(r.Types) > 0 {
			typ = r.Types[0]
		}
		places = append(places, coregeocode.Place{
			ID:       r.PlaceID,
			Name:     r.Name,
			Type:     typ,
			Address:  r.Vicinity,
			Distance: geo.Haversine(lat, lon, r.Geometry.Location.Lat, r.Geometry.Location.Lng),
		})
	}
	return places, nil
}

func (p *GoogleProvider) get(ctx context.Context, path string, q url.Values, out any) error {
	q.Set("key", p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("geocode: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocode: provider returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("geocode: decode response: %w", err)
	}
	return nil
}

func firstResult(resp geocodeResponse) (coregeocode.Result, error) {
	if resp.Status != "OK" || len(resp.Results) == 0 {
		return coregeocode.Result{}, fmt.Errorf("geocode: status %s", resp.Status)
	}
	r := resp.Results[0]
	return coregeocode.Result{
		Latitude:         r.Geometry.Location.Lat,
		Longitude:        r.Geometry.Location.Lng,
		FormattedAddress: r.FormattedAddress,
	}, nil
}

func formatLatLng(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
}
