package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrEntityExists) {
//	    // choose another entity ID
//	}
var (
	// ErrInvalidConfig is returned by New when the device identity is unusable.
	ErrInvalidConfig = errors.New("device: invalid config")

	// ErrInvalidEntityID is returned when an entity ID is empty or contains
	// topic separator or wildcard characters.
	ErrInvalidEntityID = errors.New("device: invalid entity id")

	// ErrEntityExists is returned when creating an entity with an ID that already exists.
	ErrEntityExists = errors.New("device: entity already exists")

	// ErrCapacityExceeded is returned when the registry has no free slot.
	ErrCapacityExceeded = errors.New("device: entity capacity exceeded")

	// ErrDeviceStarted is returned when creating an entity after Run has
	// been called for the first time.
	ErrDeviceStarted = errors.New("device: entities cannot be added after run")

	// ErrEntityNotFound is returned when looking up an unknown entity ID.
	ErrEntityNotFound = errors.New("device: entity not found")

	// ErrAlreadyRunning is returned when Run is called while another Run
	// on the same device has not returned.
	ErrAlreadyRunning = errors.New("device: already running")

	// ErrTransportClosed is returned by Run when the remote end closed the stream.
	ErrTransportClosed = errors.New("device: transport closed")

	// ErrTransportWrite is returned by Run when a write to the transport fails.
	ErrTransportWrite = errors.New("device: transport write failed")

	// ErrTransportRead is returned by Run when reading or decoding from the
	// transport fails for a reason other than remote closure.
	ErrTransportRead = errors.New("device: transport read failed")
)
