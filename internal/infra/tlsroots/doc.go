// Package tlsroots builds the client TLS configuration used to reach the
// auth server.
//
// Trust starts from the system roots. A custom CA, given as a PEM file or a
// directory of .pem/.crt/.cer files, is added on top, so private
// deployments work without touching the system store. A client certificate
// and key may be supplied for servers that require mutual TLS.
package tlsroots
