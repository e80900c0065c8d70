package geocode

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

var ErrNotFound = errors.New("geocode not found")

type Result struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name"`
	Confidence  float64 `json:"confidence"`
	Query       string  `json:"query"`
}

type Geocoder interface {
	Geocode(ctx context.Context, query string) (Result, error)
}

// Candidates returns the lookup queries for a free-text location: the full
// string, then comma-separated prefixes with the most specific trailing
// component dropped each time.
func Candidates(location string) []string {
	var parts []string
	for _, p := range strings.Split(location, ",") {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			parts = append(parts, p)
		}
	}
	seen := map[string]struct{}{}
	var out []string
	for n := len(parts); n > 0; n-- {
		q := strings.Join(parts[:n], ", ")
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}

// BuildQuery joins address components, broadest first.
func BuildQuery(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

// Resolver walks the candidates of a location and stops at the first hit.
type Resolver struct {
	geocoder Geocoder
	logger   zerolog.Logger
}

func NewResolver(g Geocoder, logger zerolog.Logger) *Resolver {
	return &Resolver{geocoder: g, logger: logger.With().Str("component", "geocode").Logger()}
}

// Resolve returns ErrNotFound when no candidate resolves. Transport errors on
// one candidate do not stop the walk; the last one is returned if nothing hits.
func (r *Resolver) Resolve(ctx context.Context, location string) (Result, error) {
	if r == nil || r.geocoder == nil {
		return Result{}, ErrNotFound
	}
	var lastErr error
	for _, q := range Candidates(location) {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		res, err := r.geocoder.Geocode(ctx, q)
		if err == nil {
			res.Query = q
			return res, nil
		}
		if !errors.Is(err, ErrNotFound) {
			lastErr = err
		}
		r.logger.Warn().Err(err).Str("query", q).Msg("geocoding candidate failed")
	}
	if lastErr != nil {
		return Result{}, lastErr
	}
	return Result{}, ErrNotFound
}
