// Package config defines the crawl configuration and the YAML policy file.
//
// Configuration comes from two places:
//   - CLI flags, collected into Config by the command layer
//   - an optional YAML policy file (see Policy) supplying scope limits,
//     politeness settings, request headers, and traversal scripts
//
// The rest of the application receives an already-validated *Config and
// never parses flags or files itself.
package config
