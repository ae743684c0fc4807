package model

// Shared defaults used by the store and the CLI.
const (
	DefaultPageSize  = 50
	DefaultMountPath = "/vislog"
)
