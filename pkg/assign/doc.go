/*
Package assign computes the two placement decisions the coordinator
makes at worker-registration time: which rectangle of the sample bounds
a worker renders, and which treelets of scene geometry it holds.

GetTile recursively halves the sample bounds, alternating the split
axis at each level of recursion, to hand out contiguous,
non-overlapping tiles to an arbitrary worker count; tiles are equal in
size only when the worker count is a power of two that divides the
bounds evenly. Uniform,
StaticPlacement, and DynamicNext implement the three treelet
assignment modes: a fixed modulo assignment, a one-round
weight-ordered placement, and a demand-driven placement consulting
pkg/demand.
*/
package assign
