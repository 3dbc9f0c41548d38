// Package organizer places enriched audiobooks into the output library.
//
// The Organizer walks ai_returned items, hands each source folder and its
// stored metadata to a Placer, and marks the item organized once placement
// succeeds. A failed placement leaves the item ai_returned with last_error
// set so the next run retries it. LibraryPlacer is the default Placer: it
// derives an Author/Series/Title folder from the metadata and copies the
// item's files there without touching the source.
package organizer
