/*
Package invoke starts ephemeral worker processes by POSTing
fire-and-forget EVENT-style invocation requests to a function-service
endpoint. It does not wait for a worker to connect back, and does not
retry a failed invocation -- a worker that never starts simply never
shows up in the coordinator's topology.
*/
package invoke
