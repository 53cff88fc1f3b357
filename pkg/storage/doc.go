// Package storage manages the output directory of a run.
//
// Downloads are written in two steps. Stage streams a response body into a
// hidden temp file and counts its bytes; the caller then either Discards
// it (wrong type, too small) or Commits it, which picks the next free
// sequence number and renames the file into place. Commit never replaces
// a file that already exists, so repeated runs into the same folder keep
// earlier results.
//
//	staged, err := manager.Stage(resp.Body)
//	if staged.Size < minSize {
//		manager.Discard(staged)
//	}
//	path, err := manager.Commit(staged, "reddit", "initial d", "jpg")
package storage
