// Package watch re-runs tasks when the files they subscribe to change.
//
// Events from an EventSource are matched against subscription globs. Matching
// tasks collect until the source has been quiet for the configured window,
// then run through the Scheduler with dag.Only, one run at a time. Events that
// arrive during a run are kept for the next one.
package watch
