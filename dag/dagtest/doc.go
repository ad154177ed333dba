// Package dagtest provides test doubles for the dag package: configurable
// mock work, a fluent graph builder and an event recorder.
package dagtest
