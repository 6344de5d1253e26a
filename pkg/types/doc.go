/*
Package types defines the core data structures shared by the coordinator
and the worker runtime.

It has no behavior of its own: every type here is a plain value or
identifier-indexed record, serializable with encoding/json, so that it can
cross the wire (pkg/wire), sit in a queue (pkg/rayengine), or be persisted
(pkg/storage) without any package needing to know about the others.

# Core Types

Ray lifecycle:
  - RayState: the full continuation of an in-flight path sample
  - Sample: stable per-pixel-sample identity, carried for the lifetime of a ray
  - TraversalFrame: one entry of a ray's toVisit stack (treelet + BVH node)
  - Hit: a deferred shading record naming the treelet that owns an intersection
  - FinishedSample: the film contribution produced once a ray is done

Scene and placement:
  - Treelet: the atomic schedulable unit of scene geometry
  - ObjectKey / ObjectRecord: scene object metadata and its holder set
  - WorkerRecord: the coordinator's view of one connected worker
  - ConnState: the peer connection FSM's state

Geometry stand-ins (Point2i, Point2f, Point3f, Vector3f, Bounds2i,
Spectrum) are intentionally minimal: the intersection kernel that actually
interprets them is an external collaborator (see pkg/rayengine's Tracer
and Shader interfaces); this package only needs their shape to be stable
enough to route and serialize.

# Ownership

A RayState is never shared: it lives in exactly one queue at a time, and
forwarding it moves it into a datagram rather than copying a live
reference. Treelet holdings, once assigned, are never revoked -- workers
are immutable post-init.
*/
package types
