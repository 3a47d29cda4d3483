// Package report renders the crawl summary written next to the archive
// after each session. The summary is Markdown so it reads well in a
// terminal, an editor, or a forge.
package report
