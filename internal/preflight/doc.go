// Package preflight provides readiness checks for the filesystem paths that
// shelver depends on.
//
// These checks run in two contexts:
//   - The workflow runner calls RunAll before the first stage. If any check
//     fails the run stops before touching the store or queues.
//   - The CLI "shelver status" command shows the same results as a health
//     table.
//
// In dry-run mode only read access is required.
package preflight
