/*
Package storage implements the worker's object-store client: batched concurrent get/put against an S3-compatible bucket,
keyed by the fixed "<TypeTag><id>" object name every scene object is
dumped under. FetchToDir additionally materializes a batch of objects
as files in a local working directory for the intersection engine to
memory-map.
*/
package storage
