// Package connection talks to the FeedAuth auth server.
//
//   - http.go: HTTPClient, a paced JSON-over-HTTP client
//   - auth.go: AuthClient, the session.Authenticator backed by
//     POST /auth/login and PUT /auth/signup
//
// Every outbound request first waits on a token-bucket limiter, so a
// scripted loop of logins cannot hammer the server.
package connection
