// Package heaperrors declares the allocator's sentinel error values and
// its precondition-violation abort path, the same split the teacher
// draws in errors.go and in malloc's liberal use of panic(fmt.Errorf(...))
// for programmer-error conditions: a returned error is something the
// caller can recover from, a panic is something the caller got wrong.
package heaperrors
