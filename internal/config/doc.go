// Package config loads, normalizes, and validates oshimaint configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads .env files, and honours environment
// values such as SUPABASE_URL and TMDB_API_KEY. The Config type centralizes the
// credentials and heuristics every maintenance command needs so they are
// resolved once and passed explicitly instead of being repeated per command.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
