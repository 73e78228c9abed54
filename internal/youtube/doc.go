// Package youtube provides the minimal YouTube Data API v3 client used by
// episode ingestion.
//
// It lists a channel's videos through search.list, fetches snippet,
// statistics and content details through videos.list, and converts ISO-8601
// durations to whole minutes. Options let tests point the client at an
// httptest server.
package youtube
