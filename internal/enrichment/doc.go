// Package enrichment implements the queue-file hand-off with the external
// metadata agent.
//
// The Builder projects accepted and ready_for_ai items into the request
// queue and writes the instruction document beside it. The Ingestor reads the
// agent's response queue, applies the confidence Policy, and moves items to
// ai_returned or ai_failed; failed records are moved into the manual-review
// queue. Record schemas are validated at the parse boundary: a line that does
// not decode into a ResponseRecord is counted and left untouched, never
// propagated.
package enrichment
