// Package activitysink holds the activity.Recorder implementations the engine
// ships with: the audit table, the Redis bus, the Neo4j lineage projection and
// a fan-out that combines them. The relay consumes the bus and applies events
// to downstream sinks out of band.
package activitysink
