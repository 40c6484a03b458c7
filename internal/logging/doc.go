// Package logging builds the slog loggers used throughout vinobench.
//
// Two output formats are supported: a compact console format intended for
// interactive runs ("TIMESTAMP LEVEL component: message k=v") and plain
// JSON lines for machine consumption. Components receive child loggers via
// NewComponentLogger so every line carries a component attribute.
package logging
