/*
Package schedule implements the per-executor scheduler described in §4.7:
a priority queue of due-time-ordered entries driving promise timeouts,
retry delays, idle-eviction deadlines, and scheduled invocations.

Unlike the teacher's fixed-interval ticker loop, Scheduler wakes exactly
at the next due entry (or sooner, if a new earlier entry is scheduled),
using container/heap to keep the queue ordered.
*/
package schedule
