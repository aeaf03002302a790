// Package confloader loads layered configuration with koanf.
//
// Priority (highest to lowest):
//
//  1. Overrides (command-line flags)
//  2. Environment variables (FEEDAUTH_SECTION_KEY)
//  3. The YAML configuration file
//  4. Whatever the target struct already holds (defaults)
//
// Watcher reports edits to the configuration file so long-running commands
// can apply them without a restart.
package confloader
