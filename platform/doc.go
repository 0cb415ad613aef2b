// Package platform is the adapter boundary between the allocator core
// and the operating system: reserving and decommitting aligned page
// runs, and giving the frontend layer a way to identify "who is
// calling" without Go's missing thread-local storage.
//
// The core never imports this package's concrete types directly except
// through the Adapter interface; everything above the page heap talks
// to whatever Adapter was supplied at construction.
package platform
