// Package geo resolves coordinates and free-text place names through a
// Nominatim-compatible geocoding service.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/edgard/matchbot/internal/domain"
	"github.com/edgard/matchbot/internal/metrics"
	"github.com/edgard/matchbot/internal/resilience"
)

// Resolver turns user input into places.
type Resolver interface {
	// Reverse returns the city and country at the coordinates. Either may be
	// empty when the service knows nothing about the spot.
	Reverse(ctx context.Context, lat, lon float64) (city, country string, err error)
	// Search returns at most MaxResults places that carry both a city and a country.
	Search(ctx context.Context, text string, lang domain.Language) ([]domain.Place, error)
}

// Config configures the Nominatim client.
type Config struct {
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxResults        int
	// ReverseLanguage is sent as accept-language on reverse lookups.
	ReverseLanguage domain.Language
	MaxAttempts     int
	RetryInterval   time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
}

// Nominatim is a Resolver backed by the Nominatim HTTP API.
type Nominatim struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	guard   *resilience.Guard
	logger  *slog.Logger
}

// NewNominatim builds a client. Zero values in cfg fall back to the public
// service limits.
func NewNominatim(cfg Config, logger *slog.Logger) *Nominatim {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.ReverseLanguage == "" {
		cfg.ReverseLanguage = domain.LangFrench
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "geocoder")

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxAttempts
	retry.InitialInterval = cfg.RetryInterval

	return &Nominatim{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		guard: resilience.NewGuard(resilience.GuardConfig{
			Name:        "nominatim",
			MaxFailures: cfg.BreakerFailures,
			Cooldown:    cfg.BreakerCooldown,
			Retry:       retry,
		}, log),
		logger: log,
	}
}

type address struct {
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Municipality string `json:"municipality"`
	State        string `json:"state"`
	Country      string `json:"country"`
}

// locality picks the most specific settlement name available.
func (a address) locality() string {
	for _, name := range []string{a.City, a.Town, a.Village, a.Municipality, a.State} {
		if name != "" {
			return name
		}
	}
	return ""
}

type reverseResponse struct {
	Address address `json:"address"`
}

type searchResult struct {
	DisplayName string  `json:"display_name"`
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	Address     address `json:"address"`
}

func (n *Nominatim) Reverse(ctx context.Context, lat, lon float64) (string, string, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("format", "jsonv2")
	params.Set("accept-language", string(n.cfg.ReverseLanguage))

	var resp reverseResponse
	if err := n.get(ctx, "/reverse", params, &resp); err != nil {
		return "", "", err
	}
	return resp.Address.locality(), resp.Address.Country, nil
}

func (n *Nominatim) Search(ctx context.Context, text string, lang domain.Language) ([]domain.Place, error) {
	params := url.Values{}
	params.Set("q", text)
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("limit", strconv.Itoa(n.cfg.MaxResults))
	params.Set("accept-language", string(lang))

	var results []searchResult
	if err := n.get(ctx, "/search", params, &results); err != nil {
		return nil, err
	}

	places := make([]domain.Place, 0, len(results))
	for _, r := range results {
		city := r.Address.locality()
		if city == "" || r.Address.Country == "" {
			continue
		}
		lat, _ := strconv.ParseFloat(r.Lat, 64)
		lon, _ := strconv.ParseFloat(r.Lon, 64)
		places = append(places, domain.Place{
			City:        city,
			Country:     r.Address.Country,
			DisplayName: r.DisplayName,
			Latitude:    lat,
			Longitude:   lon,
		})
		if len(places) == n.cfg.MaxResults {
			break
		}
	}
	return places, nil
}

// get performs one lookup. Rate limit waits, transport failures and 5xx or
// 429 replies are retried; other statuses and bad bodies are not.
func (n *Nominatim) get(ctx context.Context, path string, params url.Values, out any) (err error) {
	defer func(start time.Time) { metrics.ObserveGeocoder(strings.TrimPrefix(path, "/"), start, err) }(time.Now())

	err = n.guard.Do(ctx, func(ctx context.Context) error {
		return n.attempt(ctx, path, params, out)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		n.logger.WarnContext(ctx, "Geocoder circuit open, skipping request", "path", path)
	}
	return err
}

func (n *Nominatim) attempt(ctx context.Context, path string, params url.Values, out any) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("geocoder rate limit wait: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.cfg.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return resilience.Permanent(fmt.Errorf("failed to build geocoder request: %w", err))
	}
	if n.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", n.cfg.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.WarnContext(ctx, "Geocoder request failed", "path", path, "error", err)
		return fmt.Errorf("geocoder request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		n.logger.WarnContext(ctx, "Geocoder returned an error status", "path", path, "status", resp.StatusCode)
		err := fmt.Errorf("geocoder returned HTTP %d", resp.StatusCode)
		if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			return resilience.Permanent(err)
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resilience.Permanent(fmt.Errorf("failed to decode geocoder response: %w", err))
	}
	n.logger.DebugContext(ctx, "Geocoder request completed", "path", path, "duration", time.Since(start))
	return nil
}
