// Package main provides the entry point for the webarc CLI.
//
// webarc crawls websites and stores every fetched page in a single
// append-only compressed archive, with byte-identical content stored once.
// An archive directory can later be packed into a portable, indexed bundle.
//
// Usage:
//
//	webarc archive https://example.com/
//	webarc export -i ./archive -o site.wacz
//
// See --help for all available options.
package main

// main is the entry point for webarc.
func main() {
	Execute()
}
