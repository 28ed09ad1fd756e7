package contracts

// SourceInfo describes a MIDI source that a Capture can listen to.
type SourceInfo struct {
	Name         string // Source endpoint name.
	Manufacturer string // Manufacturer of the owning entity.
	EntityName   string // Name of the entity to which the source belongs.
}
