// Package export packs a finished archive into a portable, indexed bundle:
// a zip file holding the archive, a sorted CDXJ index mapping canonicalized
// URLs to record offsets, a page list, and a datapackage manifest with the
// hash and size of every bundled file. The archive is stored uncompressed in
// the zip since its records are already gzip members, which keeps them
// directly addressable by offset inside the bundle.
package export
