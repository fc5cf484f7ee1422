// Package notifications pushes pipeline events to an ntfy topic when one is
// configured, and degrades to a noop service otherwise. Per-event toggles in
// the configuration silence ingest, completion, or error pushes individually.
package notifications
