package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoController is returned when no controller address is configured.
	ErrNoController = errors.New("no controller address: set ndi_ip, NDI_IP or --ndi-ip")

	// ErrNoUsername is returned when no username is configured.
	ErrNoUsername = errors.New("no username: set username, NDI_USERNAME or --username")

	// ErrNoPassword is returned when no password is configured.
	ErrNoPassword = errors.New("no password: set password or NDI_PASSWORD")

	// ErrInvalidTimeout is returned when a connect or read timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidPageSize is returned when the page size is negative.
	ErrInvalidPageSize = errors.New("invalid page size: must be zero (single request) or positive")

	// ErrUnknownFormat is returned when the report format is not xlsx, markdown or json.
	ErrUnknownFormat = errors.New("unknown report format: expected xlsx, markdown or json")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
