// Package sink contains concrete implementations of core.RunSink.
//
// The RunSink interface lives in the core package to keep domain contracts
// central. Implementations here (in-memory, NDJSON files, SQLite) persist
// sealed runs and can be swapped without touching the engine. Multi fans a
// run out to several sinks.
package sink
