package domain

import "time"

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Earthquake is a single seismic event as reported by the feed and stored.
// Records are written once by ingestion and never mutated or deleted.
type Earthquake struct {
	ID           string    `json:"id"` // upstream feed event id, storage primary key
	Title        string    `json:"title"`
	Time         time.Time `json:"time"`
	Magnitude    float64   `json:"magnitude"`
	MagType      string    `json:"mag_type,omitempty"`
	Alert        string    `json:"alert,omitempty"`
	Tsunami      bool      `json:"tsunami"`
	MinDistance  float64   `json:"min_distance"`  // minimum station distance, degrees
	AzimuthalGap float64   `json:"azimuthal_gap"` // degrees
	Significance int       `json:"significance"`
	Geo          Geo       `json:"geo"`
	Depth        float64   `json:"depth"` // km
}

// Address is a user's stored postal address. It is owned by the profile
// subsystem and consumed read-only here; fields are free text.
type Address struct {
	Street     string `json:"street"`
	Number     string `json:"number"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
	Province   string `json:"province"`
	Country    string `json:"country"`
}

// NearbyEarthquake is one entry of the resolver's presentation list: a
// stored event with the great-circle distance from the user's coordinate
// attached, rounded to two decimals.
type NearbyEarthquake struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Time       time.Time `json:"time"`
	Magnitude  float64   `json:"magnitude"`
	Geo        Geo       `json:"geo"`
	DistanceKm float64   `json:"distance_km"`
}

// RiskAssessment is the resolver's result. Magnitude and Count are nil when
// the user's coordinate falls inside no grid cell, or the matched cell has
// no cluster id; the nearby list is populated either way.
type RiskAssessment struct {
	Magnitude *float64           `json:"magnitude"`
	Count     *int               `json:"earthquake_count,omitempty"`
	Nearby    []NearbyEarthquake `json:"nearby"`
}
