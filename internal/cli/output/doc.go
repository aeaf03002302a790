// Package output renders feedauth-cli results.
//
// Every command result goes through a Formatter chosen by --output:
// table (human readable, the default), json, or yaml. Spinner shows that a
// request to the auth server is in flight.
package output
