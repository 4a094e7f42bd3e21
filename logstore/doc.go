// Package logstore keeps one append-only JSON-lines log file per record under
// <data>/LOG/<record_id>.log.
//
// Entries are written through zerolog, one write per line on a file opened
// with O_APPEND. Writers for the same file inside one process are serialized
// by a shared per-path mutex. Readers skip lines that do not parse.
//
// Concurrent runs of the same step in different processes may interleave
// their entries; status resolution always takes the newest status entry.
package logstore
