// Package buildinfo reports the version of feedauth-cli.
//
// Release builds inject values via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/feedauth-go/internal/infra/buildinfo.Version=v1.0.0"
//
// Development builds fall back to the VCS stamp the Go toolchain embeds.
package buildinfo
