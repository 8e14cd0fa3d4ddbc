// Package config defines and loads the gateway's YAML configuration.
//
// Loading applies defaults, then optional VEIL_* environment variable
// overrides, then validation. The resulting Config is assembled once at
// startup and consumed by gateway.Init; nothing in this package mutates a
// Config after it has been returned to the caller.
package config
