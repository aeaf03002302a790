// Package config defines the feedauth-cli configuration.
//
// Configuration is read from ~/.feedauth/cli.yaml (or --config), then
// FEEDAUTH_* environment variables, then command-line flags. Example:
//
//	server:
//	  url: http://localhost:8080
//	  timeout: 30s
//	  rate_limit: 2
//	  burst: 4
//	session:
//	  default_ttl: 60m
//	store:
//	  engine: badger
//	  dir: ~/.feedauth/data
//	  encryption_key: ""
//	log:
//	  level: warn
//	  format: text
//	metrics:
//	  address: ""
package config
