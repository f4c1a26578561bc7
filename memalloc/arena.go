package memalloc

import "unsafe"

// NewValue allocates a zero-valued T from a and returns a pointer to
// it: an opt-in trait for a type that wants its allocations routed
// through the shard-local allocator instead of the Go heap.
//
// The returned *T must be released with Delete using the same
// allocator before the allocator is closed; it must not be retained
// past that point, and T must not contain any pointer the Go garbage
// collector needs to trace accurately across a block being dropped —
// this trait is for plain, self-contained value types, not for types
// holding references into other GC-managed structures.
func NewValue[T any](a *Allocator) (*T, error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	ptr, err := a.Alloc(size)
	if err != nil {
		return nil, err
	}
	p := (*T)(ptr)
	*p = zero
	return p, nil
}

// Delete releases a value previously obtained from NewValue on the same
// allocator.
func Delete[T any](a *Allocator, p *T) {
	var zero T
	a.FreeSized(unsafe.Pointer(p), int(unsafe.Sizeof(zero)))
}
