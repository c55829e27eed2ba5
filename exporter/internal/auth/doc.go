// Package auth provides authentication middleware for the exporter's status
// endpoints.
//
// APIKey(mode, header, key) wraps an http.Handler and validates the API key
// carried in the named header, or in the api_key query parameter for
// websocket clients that cannot set headers.
//
// When mode != "apikey" or key == "", all requests pass through (useful for
// local development with auth disabled). When the key is incorrect or absent
// the middleware answers 401 immediately. The /metrics endpoint is never
// wrapped so Prometheus can scrape without credentials.
package auth
