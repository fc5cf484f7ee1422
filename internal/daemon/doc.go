// Package daemon wires the inbox watcher, workflow manager, and document
// store into a single-instance background process guarded by a file lock.
package daemon
