package framework

// Capabilities is a type alias for a list of strings representing features of the device
// under test. The meanings of these strings are defined by the device-side test firmware.
type Capabilities []string

// Has returns true if the specified string appears in the list.
func (cs Capabilities) Has(name string) bool {
	for _, c := range cs {
		if c == name {
			return true
		}
	}
	return false
}

// HasAny returns true if any of the specified strings appear in the list.
func (cs Capabilities) HasAny(names ...string) bool {
	for _, name := range names {
		if cs.Has(name) {
			return true
		}
	}
	return false
}
