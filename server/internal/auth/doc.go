// Package auth provides authentication middleware for healthboard-server.
//
// APIKey(mode, header, key) returns HTTP middleware that validates the API key
// in the named request header. When mode != "apikey" or key == "", all
// requests pass through (local development with auth disabled). When the key
// is incorrect or absent the middleware answers 401 immediately.
package auth
