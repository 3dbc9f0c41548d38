// Package textutil provides filename sanitizing and token-based text
// similarity.
//
// Sanitizing keeps generated library folder names safe on common
// filesystems. Fingerprints are term-frequency vectors over lowercase
// alphanumeric tokens of three or more characters; ClosestMatch uses them to
// suggest the tracked path an unmatched queue record most likely meant.
package textutil
