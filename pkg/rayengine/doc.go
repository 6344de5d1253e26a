/*
Package rayengine implements a worker's ray-processing loop: Step drains
the local work queue, calling Tracer.Trace on rays still traversing the
BVH and Shader.Shade on rays that found a hit, routing every resulting
ray to the local queue, a peer's outbound queue, or the pending queue
for treelets with no known holder yet. FlushOutbound packs a worker's
outbound queues into MTU-sized SendRays datagrams.
*/
package rayengine
