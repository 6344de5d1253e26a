/*
Package eventloop implements the cooperative dispatcher used by both
the coordinator and worker main loops.

The original single-threaded poll()/select() loop registered
(fd, direction, handler, guard) actions and invoked every ready one on
each wake. This implementation keeps the same discipline -- one
goroutine owns all mutable process state, and nothing runs concurrently
with it -- but expresses it with channels instead of a poll syscall:
I/O goroutines (a transport's receive loop, a TCP connection reader, a
ticker) call Post to hand the dispatcher a closure, and Loop.Run drains
those closures one at a time on its own goroutine.

AddTimer represents what used to be a timer-FD: a ticker goroutine that
posts a fixed action on every tick. Terminate replicates the loop's
termination flag -- set from within any posted action or any other
goroutine, taking effect once the currently dispatching action returns.
*/
package eventloop
