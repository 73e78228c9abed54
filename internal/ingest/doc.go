// Package ingest maps YouTube videos and TMDB credits to episode rows and
// upserts them by video URL.
//
// Existing episodes get their statistics refreshed; new ones are inserted
// with a fresh UUID. A failed page or row is logged and counted, and the
// loop moves on. Only a missing celebrity stops a run.
package ingest
