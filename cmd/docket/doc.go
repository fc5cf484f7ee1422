// Command docket is the CLI for the docket document pipeline. It manages the
// daemon over its Unix control socket and falls back to direct database access
// for queue inspection when the daemon is not running.
package main
