package installer

// InFlight is the immutable set of package names whose installation is in
// progress further up the call chain. A name found here is treated as
// already satisfied, which breaks dependency cycles.
type InFlight struct {
	names map[string]struct{}
}

// Has reports whether name is in the set
func (f InFlight) Has(name string) bool {
	_, ok := f.names[name]
	return ok
}

// With returns a new set holding the receiver's names plus name.
// The receiver is not modified.
func (f InFlight) With(name string) InFlight {
	names := make(map[string]struct{}, len(f.names)+1)
	for n := range f.names {
		names[n] = struct{}{}
	}
	names[name] = struct{}{}
	return InFlight{names: names}
}
