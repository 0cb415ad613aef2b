// Package transfer is the bounded batch-passing buffer between
// frontends and a size class's central.List: a short critical section
// that, on a hit, avoids taking the central lock at all.
package transfer
