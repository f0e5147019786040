// Package nasa is a client for the NASA public APIs proxied by the
// explorer backend: Astronomy Picture of the Day, Curiosity rover photos,
// Landsat Earth imagery and DSCOVR EPIC.
//
// The API key stays on the server. Requests go through an otelhttp
// transport, results are cached in pkg/cache, and concurrent identical
// requests are collapsed with singleflight.
package nasa
