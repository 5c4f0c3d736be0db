package domain

import "context"

// Geocoder resolves a postal address to a coordinate.
type Geocoder interface {
	// Geocode returns the provider's best match for the address, or
	// ErrAddressNotFound when the provider has no candidates. A single
	// call, no retries.
	Geocode(ctx context.Context, addr Address) (Geo, error)
}
