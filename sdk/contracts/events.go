package contracts

// GraphEventKind tells collaborators what changed in the device graph.
type GraphEventKind int

const (
	// ObjectListChanged means objects were added to or removed from a list.
	ObjectListChanged GraphEventKind = iota + 1
	// ObjectPropertyChanged means a tracked object's property changed.
	ObjectPropertyChanged
)

// GraphEvent is published to subscribers after the device graph has been updated.
// Parent is the parent reported by the notification that caused the change, if any.
type GraphEvent struct {
	Kind       GraphEventKind
	ObjectType ObjectType
	Added      []ObjectRef
	Removed    []ObjectRef
	Parent     ObjectRef
	ParentType ObjectType
	Object     ObjectRef
	Property   Property
}
