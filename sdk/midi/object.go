package midi

import (
	"os"

	"github.com/leandrodaf/midisuite/sdk/contracts"
)

// DefaultMaxSysExSpeed is the MIDI 1.0 wire throughput in bytes per second,
// used when a device does not report a speed.
const DefaultMaxSysExSpeed int32 = 3125

// graphObject is what an ObjectList needs from the objects it tracks.
type graphObject interface {
	Ref() contracts.ObjectRef
	UniqueID() contracts.UniqueID
	midiPropertyChanged(property contracts.Property)
}

// Object wraps one object of the native device graph.
// Objects are created and discarded by their ObjectList and must only be used
// on the goroutine that owns the Context.
type Object struct {
	context    *Context
	ref        contracts.ObjectRef
	objectType contracts.ObjectType

	uniqueID CachedProperty[contracts.UniqueID]
	name     CachedProperty[string]
}

func (o *Object) init(c *Context, ref contracts.ObjectRef, objectType contracts.ObjectType) {
	if ref == 0 {
		panic("midi: device-graph object created with a zero reference")
	}
	o.context = c
	o.ref = ref
	o.objectType = objectType

	o.uniqueID = NewCachedProperty(
		func() (contracts.UniqueID, bool) {
			v, ok := c.integerProperty(ref, contracts.PropertyUniqueID)
			return contracts.UniqueID(v), ok
		},
		func(v contracts.UniqueID) { c.setIntegerProperty(ref, contracts.PropertyUniqueID, int32(v)) },
	)
	o.name = c.stringCache(ref, contracts.PropertyName)

	// The unique id is read now: once the object is removed from the
	// subsystem it can no longer be fetched, and lists are keyed by it.
	o.uniqueID.Value()
}

// Ref returns the native reference of the object.
func (o *Object) Ref() contracts.ObjectRef {
	return o.ref
}

// Type returns the kind of the object.
func (o *Object) Type() contracts.ObjectType {
	return o.objectType
}

// Context returns the context that created the object.
func (o *Object) Context() *Context {
	return o.context
}

// UniqueID returns the object's unique id, or 0 if it has none.
func (o *Object) UniqueID() contracts.UniqueID {
	v, _ := o.uniqueID.Value()
	return v
}

// SetUniqueID asks the subsystem to change the object's unique id.
func (o *Object) SetUniqueID(id contracts.UniqueID) {
	o.uniqueID.Set(id)
}

// Name returns the object's name; false if it has none.
func (o *Object) Name() (string, bool) {
	return o.name.Value()
}

// SetName renames the object.
func (o *Object) SetName(name string) {
	o.name.Set(name)
}

func (o *Object) midiPropertyChanged(property contracts.Property) {
	switch property {
	case contracts.PropertyName:
		o.name.Invalidate()
	case contracts.PropertyUniqueID:
		o.uniqueID.Invalidate()
		// Refetch right away; lookups by unique id must never see an empty cache.
		o.uniqueID.Value()
	}
}

// Device is a MIDI device, such as an interface or a synthesizer driven by a driver.
type Device struct {
	Object
	maxSysExSpeed CachedProperty[int32]
}

func newDevice(c *Context, ref contracts.ObjectRef) *Device {
	d := &Device{}
	d.initDevice(c, ref, contracts.ObjectTypeDevice)
	return d
}

func (d *Device) initDevice(c *Context, ref contracts.ObjectRef, objectType contracts.ObjectType) {
	d.Object.init(c, ref, objectType)
	d.maxSysExSpeed = c.integerCache(ref, contracts.PropertyMaxSysExSpeed)
}

// MaxSysExSpeed returns the sysex transmit speed in bytes per second.
func (d *Device) MaxSysExSpeed() int32 {
	if v, ok := d.maxSysExSpeed.Value(); ok {
		return v
	}
	return DefaultMaxSysExSpeed
}

// SetMaxSysExSpeed changes the sysex transmit speed.
func (d *Device) SetMaxSysExSpeed(speed int32) {
	d.maxSysExSpeed.Set(speed)
}

func (d *Device) midiPropertyChanged(property contracts.Property) {
	if property == contracts.PropertyMaxSysExSpeed {
		d.maxSysExSpeed.Invalidate()
		return
	}
	d.Object.midiPropertyChanged(property)
}

// ExternalDevice is a device the user declared in the MIDI setup, connected
// through the endpoints of a Device.
type ExternalDevice struct {
	Device
}

func newExternalDevice(c *Context, ref contracts.ObjectRef) *ExternalDevice {
	d := &ExternalDevice{}
	d.initDevice(c, ref, contracts.ObjectTypeExternalDevice)
	return d
}

// SetMaxSysExSpeed changes the speed of the external device and of every
// source endpoint of its entities, which is where the subsystem looks it up
// when sending sysex. Failures on the endpoints are ignored.
func (d *ExternalDevice) SetMaxSysExSpeed(speed int32) {
	d.Device.SetMaxSysExSpeed(speed)

	system := d.context.system
	for i := 0; i < system.NumberOfEntities(d.ref); i++ {
		entity := system.Entity(d.ref, i)
		for j := 0; j < system.NumberOfEntitySources(entity); j++ {
			source := system.EntitySource(entity, j)
			if err := system.SetIntegerProperty(source, contracts.PropertyMaxSysExSpeed, speed); err != nil {
				d.context.logger.Debug("cannot propagate sysex speed",
					d.context.logger.Field().Uint32("source", uint32(source)),
					d.context.logger.Field().Error("error", err))
			}
		}
	}
}

// Endpoint is a source or destination of MIDI data.
type Endpoint struct {
	Object
	manufacturer CachedProperty[string]
	model        CachedProperty[string]
}

func (e *Endpoint) initEndpoint(c *Context, ref contracts.ObjectRef, objectType contracts.ObjectType) {
	e.Object.init(c, ref, objectType)
	e.manufacturer = c.stringCache(ref, contracts.PropertyManufacturer)
	e.model = c.stringCache(ref, contracts.PropertyModel)
}

// Manufacturer returns the endpoint's manufacturer name; false if it has none.
func (e *Endpoint) Manufacturer() (string, bool) {
	return e.manufacturer.Value()
}

// SetManufacturer changes the endpoint's manufacturer name.
func (e *Endpoint) SetManufacturer(name string) {
	e.manufacturer.Set(name)
}

// Model returns the endpoint's model name; false if it has none.
func (e *Endpoint) Model() (string, bool) {
	return e.model.Value()
}

// SetModel changes the endpoint's model name.
func (e *Endpoint) SetModel(name string) {
	e.model.Set(name)
}

// IsOwnedByThisProcess reports whether this process created the endpoint.
func (e *Endpoint) IsOwnedByThisProcess() bool {
	pid, ok := e.context.integerProperty(e.ref, contracts.PropertyOwnerPID)
	return ok && int(pid) == os.Getpid()
}

func (e *Endpoint) setOwnedByThisProcess() {
	e.context.setIntegerProperty(e.ref, contracts.PropertyOwnerPID, int32(os.Getpid()))
}

func (e *Endpoint) midiPropertyChanged(property contracts.Property) {
	switch property {
	case contracts.PropertyManufacturer:
		e.manufacturer.Invalidate()
	case contracts.PropertyModel:
		e.model.Invalidate()
	default:
		e.Object.midiPropertyChanged(property)
	}
}

// Source is an endpoint that produces MIDI data.
type Source struct {
	Endpoint
}

func newSource(c *Context, ref contracts.ObjectRef) *Source {
	s := &Source{}
	s.initEndpoint(c, ref, contracts.ObjectTypeSource)
	return s
}

// Destination is an endpoint that consumes MIDI data.
type Destination struct {
	Endpoint
}

func newDestination(c *Context, ref contracts.ObjectRef) *Destination {
	d := &Destination{}
	d.initEndpoint(c, ref, contracts.ObjectTypeDestination)
	return d
}

// objectKind describes how to enumerate and construct one kind of object.
type objectKind[T graphObject] struct {
	objectType contracts.ObjectType
	count      func(contracts.MIDISystem) int
	at         func(contracts.MIDISystem, int) contracts.ObjectRef
	construct  func(*Context, contracts.ObjectRef) T
}

var (
	deviceKind = objectKind[*Device]{
		objectType: contracts.ObjectTypeDevice,
		count:      contracts.MIDISystem.NumberOfDevices,
		at:         contracts.MIDISystem.Device,
		construct:  newDevice,
	}
	externalDeviceKind = objectKind[*ExternalDevice]{
		objectType: contracts.ObjectTypeExternalDevice,
		count:      contracts.MIDISystem.NumberOfExternalDevices,
		at:         contracts.MIDISystem.ExternalDevice,
		construct:  newExternalDevice,
	}
	sourceKind = objectKind[*Source]{
		objectType: contracts.ObjectTypeSource,
		count:      contracts.MIDISystem.NumberOfSources,
		at:         contracts.MIDISystem.Source,
		construct:  newSource,
	}
	destinationKind = objectKind[*Destination]{
		objectType: contracts.ObjectTypeDestination,
		count:      contracts.MIDISystem.NumberOfDestinations,
		at:         contracts.MIDISystem.Destination,
		construct:  newDestination,
	}
)
