// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

package plugin

import "errors"

// Errors returned by backends. Hosts match them with errors.Is and translate
// them to the error codes of their protocol.
var (
	// Malformed configuration value.
	ErrInvalidArgument = errors.New("plugin: invalid argument")

	// Configuration key the backend does not know.
	ErrUnknownParameter = errors.New("plugin: unknown parameter")

	// Request reaching outside of the device.
	ErrOutOfRange = errors.New("plugin: out of range")

	// Call made in the wrong phase, e.g. Open before GetReady.
	ErrBadState = errors.New("plugin: bad state")

	// Write through a connection opened read only.
	ErrReadOnly = errors.New("plugin: read only connection")
)
