package platform

// PageOf returns the global page number of an address, given pageSize.
func PageOf(addr uintptr, pageSize int64) int64 {
	return int64(addr) / pageSize
}

// AddrOf returns the base address of a page number, given pageSize.
func AddrOf(page int64, pageSize int64) uintptr {
	return uintptr(page * pageSize)
}

// PagesFor returns the number of whole pages needed to cover n bytes.
func PagesFor(n, pageSize int64) int64 {
	return (n + pageSize - 1) / pageSize
}
