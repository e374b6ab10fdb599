// Package infra contains technical adapters: snapshot readers, the GTFS
// feed adapter, the report store and the zerolog logger. These packages
// depend only on the types and interfaces defined in the core packages.
package infra
