// Package config loads and validates process configuration for the
// blenderops protection layer.
//
// Configuration is read once from a YAML file at construction time; there is
// no hot reload. Environment variables referenced as ${VAR} inside the file
// are expanded strictly before parsing: a reference to an unset variable is a
// load error rather than an empty string.
//
// Fields absent from the file keep their defaults, so a minimal file only
// needs the values it wants to change:
//
//	bridge:
//	  port: 9876
//	cache:
//	  max_entries: 500
//	ratelimit:
//	  max_requests_per_minute: 120
package config
