package domain

import "errors"

// Sentinel errors for the risk-resolution pipeline. The HTTP layer maps
// the first two to 404-class responses; ErrPredictionMissing is a server
// error: a cluster matched by the grid but absent from the forecast header
// means the exported snapshots are torn.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrAddressNotFound   = errors.New("address could not be resolved")
	ErrPredictionMissing = errors.New("no prediction value for matched cluster")
)
