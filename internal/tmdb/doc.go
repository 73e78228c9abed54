// Package tmdb provides the minimal TMDB API client used to ingest a
// celebrity's film and television appearances.
//
// It searches people by name and fetches their combined movie and TV
// credits. Options allow tests to supply custom HTTP clients.
package tmdb
