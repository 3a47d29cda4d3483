// Package database provides the SQLite catalog that sits beside the archive
// file. The catalog maps each archived URL to its record's byte position in
// the archive and remembers crawl sessions, so exports and warm starts never
// have to scan the whole archive.
package database
