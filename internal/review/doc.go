// Package review routes records between the response queue and the
// manual-review queue.
//
// Failed responses wait in the manual queue with manual_status "pending"
// until a human corrects the metadata and sets manual_status to "ready". The
// Router then moves the record back to the response queue with the review
// fields stripped and returns the item to ready_for_ai, so the next ingest
// pass re-evaluates it.
package review
