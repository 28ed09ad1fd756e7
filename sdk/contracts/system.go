package contracts

import "errors"

// ErrPropertyUnavailable is returned by a MIDISystem when an object has no value for a property.
var ErrPropertyUnavailable = errors.New("property unavailable")

// ObjectRef is an opaque handle to an object in the native MIDI device graph.
// The zero value never refers to a live object.
type ObjectRef uint32

// ClientRef is an opaque handle to a client connection to the native MIDI subsystem.
type ClientRef uint32

// UniqueID is the persistent identifier the MIDI subsystem assigns to an object.
// Zero means "no unique id".
type UniqueID int32

// ObjectType tags the kind of a device-graph object. The values match CoreMIDI's MIDIObjectType.
type ObjectType int32

const (
	ObjectTypeOther               ObjectType = -1
	ObjectTypeDevice              ObjectType = 0
	ObjectTypeEntity              ObjectType = 1
	ObjectTypeSource              ObjectType = 2
	ObjectTypeDestination         ObjectType = 3
	ObjectTypeExternalDevice      ObjectType = 0x10
	ObjectTypeExternalEntity      ObjectType = 0x11
	ObjectTypeExternalSource      ObjectType = 0x12
	ObjectTypeExternalDestination ObjectType = 0x13
)

// String returns a short name for the object type.
func (t ObjectType) String() string {
	switch t {
	case ObjectTypeDevice:
		return "device"
	case ObjectTypeEntity:
		return "entity"
	case ObjectTypeSource:
		return "source"
	case ObjectTypeDestination:
		return "destination"
	case ObjectTypeExternalDevice:
		return "external-device"
	case ObjectTypeExternalEntity:
		return "external-entity"
	case ObjectTypeExternalSource:
		return "external-source"
	case ObjectTypeExternalDestination:
		return "external-destination"
	}
	return "other"
}

// Property names an object property. The values are the CoreMIDI property keys.
type Property string

const (
	PropertyName          Property = "name"
	PropertyUniqueID      Property = "uniqueID"
	PropertyMaxSysExSpeed Property = "maxSysExSpeed"
	PropertyManufacturer  Property = "manufacturer"
	PropertyModel         Property = "model"
	PropertyOffline       Property = "offline"
	PropertyPrivate       Property = "private"
	// PropertyOwnerPID records which process created a virtual endpoint.
	PropertyOwnerPID Property = "SMEndpointPropertyOwnerPID"
)

// NotificationKind enumerates the device-graph notifications the core consumes.
type NotificationKind int

const (
	NotificationOther NotificationKind = iota
	NotificationObjectAdded
	NotificationObjectRemoved
	NotificationPropertyChanged
)

// Notification is a process-owned copy of a native device-graph notification.
// Parent and ParentType are set for add/remove; Property for property changes.
type Notification struct {
	Kind       NotificationKind
	Object     ObjectRef
	ObjectType ObjectType
	Parent     ObjectRef
	ParentType ObjectType
	Property   Property
}

// NotifyFunc receives notifications on a goroutine owned by the MIDI subsystem.
// Implementations must copy what they need and return quickly.
type NotifyFunc func(Notification)

// MIDISystem is the native MIDI subsystem as seen by the MIDI context.
// Only the notification callback may be invoked from a foreign goroutine.
type MIDISystem interface {
	// CreateClient opens a client connection whose notifications are delivered to notify.
	CreateClient(name string, notify NotifyFunc) (ClientRef, error)
	// DisposeClient closes a client connection.
	DisposeClient(client ClientRef) error

	NumberOfDevices() int
	Device(index int) ObjectRef
	NumberOfExternalDevices() int
	ExternalDevice(index int) ObjectRef
	NumberOfSources() int
	Source(index int) ObjectRef
	NumberOfDestinations() int
	Destination(index int) ObjectRef

	NumberOfEntities(device ObjectRef) int
	Entity(device ObjectRef, index int) ObjectRef
	NumberOfEntitySources(entity ObjectRef) int
	EntitySource(entity ObjectRef, index int) ObjectRef

	IntegerProperty(ref ObjectRef, property Property) (int32, error)
	SetIntegerProperty(ref ObjectRef, property Property, value int32) error
	StringProperty(ref ObjectRef, property Property) (string, error)
	SetStringProperty(ref ObjectRef, property Property, value string) error

	// FindObjectByUniqueID returns the object carrying id, or an error if none does.
	FindObjectByUniqueID(id UniqueID) (ObjectRef, ObjectType, error)

	// CreateSource creates a virtual source endpoint owned by client.
	CreateSource(client ClientRef, name string) (ObjectRef, error)
	// CreateDestination creates a virtual destination endpoint; receive gets every incoming packet.
	CreateDestination(client ClientRef, name string, receive func([]byte)) (ObjectRef, error)
	// DisposeEndpoint removes a virtual endpoint created by this process.
	DisposeEndpoint(endpoint ObjectRef) error
	// Received distributes data as if it had arrived at the virtual source.
	Received(source ObjectRef, data []byte) error
}
