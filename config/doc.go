// Package config parses and validates the allocator's initialization
// structure: page size, the thread-cache byte budget, transfer-cache
// depth, page-heap bucket count, and the size-class table entries.
//
// Settings is a direct alias of github.com/bnclabs/gosettings.Settings,
// the same map[string]interface{} with typed accessors (Int64, Section,
// Trim, Mixin) that bogn.New/bogn.readsettings/llrb.Defaultsettings
// thread through their own initialization, panicking on a missing or
// mistyped key (a programmer error). Validate turns a bad *value*
// (as opposed to a caller typo) into a returned ConfigurationInvalid
// error instead of a panic, since bad values can come from the outside
// world (a config file, a command-line flag) rather than from code.
package config
