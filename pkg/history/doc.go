// Package history keeps a durable record of every image wallgrab has saved.
//
// Entries are keyed by image URL in a Pebble database so later runs can skip
// images that were already downloaded. The default location follows the
// platform data directory:
//   - Linux: $XDG_DATA_HOME/wallgrab/history or ~/.local/share/wallgrab/history
//   - macOS: ~/Library/Application Support/wallgrab/history
//   - Windows: %APPDATA%/wallgrab/history
package history
