// Package domain models earthquake event data and the risk-resolution types
// built on top of it.
//
// # Data Source
//
// Earthquake events originate from the USGS FDSN event web service
// (https://earthquake.usgs.gov/fdsnws/event/1/), queried in GeoJSON format
// over a sliding date window by the ingestion job. Each feature carries the
// upstream event id, which is globally unique and serves as the storage
// primary key: re-ingesting an already-seen id is a no-op, which makes the
// ingestion job idempotent and replay-safe.
//
// # Coordinates
//
// All coordinates are WGS-84. The feed reports a 3D epicenter
// (longitude, latitude, depth in km); storage additionally keeps a derived
// 2D point used for planar distance ordering. Distances shown to users are
// great-circle distances on a spherical Earth (mean radius 6371 km),
// computed with the haversine formula and rounded to two decimals.
//
// # Risk estimates
//
// A separate modelling pipeline exports three CSV snapshots: a grid of
// rectangular geographic cells each tagged with a cluster id, and two
// date-indexed forecast tables (mean magnitude and earthquake count) with
// one column per cluster. Resolution maps a geocoded address to a cell,
// then reads that cell's cluster column from the latest forecast row. A
// coordinate outside every cell is a valid "no estimate" outcome, not an
// error.
package domain
