// Package midimem is an in-memory MIDI subsystem. It stands in for CoreMIDI
// in tests and in simulation mode, and can be mutated behind the back of its
// clients to reproduce external device-graph changes.
package midimem

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/midisuite/sdk/contracts"
)

var (
	ErrUnknownObject = errors.New("unknown MIDI object")
	ErrUnknownClient = errors.New("unknown MIDI client")
	ErrNotFound      = errors.New("no object with that unique id")
	ErrNotVirtual    = errors.New("endpoint was not created by a client")
)

// firstAutoUniqueID is where automatically assigned unique ids start.
const firstAutoUniqueID contracts.UniqueID = 0x10000

type object struct {
	ref        contracts.ObjectRef
	objectType contracts.ObjectType
	parent     contracts.ObjectRef
	children   []contracts.ObjectRef
	integers   map[contracts.Property]int32
	strings    map[contracts.Property]string
	client     contracts.ClientRef
	receive    func([]byte)
}

// System is a thread-safe in-memory contracts.MIDISystem.
type System struct {
	mu sync.Mutex

	nextRef      contracts.ObjectRef
	nextClient   contracts.ClientRef
	nextUniqueID contracts.UniqueID
	objects      map[contracts.ObjectRef]*object
	order        map[contracts.ObjectType][]contracts.ObjectRef
	clients      map[contracts.ClientRef]contracts.NotifyFunc
	reserved     map[contracts.UniqueID]bool
	sent         map[contracts.ObjectRef][][]byte

	autoUniqueIDs bool
	muted         bool
	clientErr     error
	readErrs      map[contracts.Property]error
	writeErrs     map[contracts.Property]error
}

// New returns an empty subsystem that assigns unique ids to new objects.
func New() *System {
	return &System{
		nextUniqueID:  firstAutoUniqueID,
		objects:       make(map[contracts.ObjectRef]*object),
		order:         make(map[contracts.ObjectType][]contracts.ObjectRef),
		clients:       make(map[contracts.ClientRef]contracts.NotifyFunc),
		reserved:      make(map[contracts.UniqueID]bool),
		sent:          make(map[contracts.ObjectRef][][]byte),
		readErrs:      make(map[contracts.Property]error),
		writeErrs:     make(map[contracts.Property]error),
		autoUniqueIDs: true,
	}
}

// SetAutoUniqueIDs controls whether objects created with id 0 get one assigned.
func (s *System) SetAutoUniqueIDs(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoUniqueIDs = enabled
}

// SetMuted suppresses notifications, as if changes happened while nobody listened.
func (s *System) SetMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = muted
}

// FailClientCreation makes CreateClient return err; nil restores normal behaviour.
func (s *System) FailClientCreation(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientErr = err
}

// FailReads makes every read of property return err; nil restores normal behaviour.
func (s *System) FailReads(property contracts.Property, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.readErrs, property)
		return
	}
	s.readErrs[property] = err
}

// FailWrites makes every write of property return err; nil restores normal behaviour.
func (s *System) FailWrites(property contracts.Property, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.writeErrs, property)
		return
	}
	s.writeErrs[property] = err
}

// ReserveUniqueID marks id as used by an object outside this subsystem's lists.
func (s *System) ReserveUniqueID(id contracts.UniqueID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reserved[id] = true
}

// AddDevice adds a device and notifies clients.
func (s *System) AddDevice(name string, uniqueID contracts.UniqueID) contracts.ObjectRef {
	return s.add(contracts.ObjectTypeDevice, 0, name, uniqueID)
}

// AddExternalDevice adds an external device and notifies clients.
func (s *System) AddExternalDevice(name string, uniqueID contracts.UniqueID) contracts.ObjectRef {
	return s.add(contracts.ObjectTypeExternalDevice, 0, name, uniqueID)
}

// AddEntity adds an entity to device.
func (s *System) AddEntity(device contracts.ObjectRef, name string) contracts.ObjectRef {
	entityType := contracts.ObjectTypeEntity
	s.mu.Lock()
	if d, ok := s.objects[device]; ok && d.objectType == contracts.ObjectTypeExternalDevice {
		entityType = contracts.ObjectTypeExternalEntity
	}
	s.mu.Unlock()
	return s.add(entityType, device, name, 0)
}

// AddSource adds a source, to entity unless it is 0, and notifies clients.
func (s *System) AddSource(entity contracts.ObjectRef, name string, uniqueID contracts.UniqueID) contracts.ObjectRef {
	return s.add(s.endpointType(entity, contracts.ObjectTypeSource), entity, name, uniqueID)
}

// AddDestination adds a destination, to entity unless it is 0, and notifies clients.
func (s *System) AddDestination(entity contracts.ObjectRef, name string, uniqueID contracts.UniqueID) contracts.ObjectRef {
	return s.add(s.endpointType(entity, contracts.ObjectTypeDestination), entity, name, uniqueID)
}

func (s *System) endpointType(entity contracts.ObjectRef, base contracts.ObjectType) contracts.ObjectType {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Endpoints of external entities are listed apart from real endpoints.
	if e, ok := s.objects[entity]; ok && e.objectType == contracts.ObjectTypeExternalEntity {
		return base | contracts.ObjectTypeExternalDevice
	}
	return base
}

// Remove deletes an object and everything below it, notifying clients.
func (s *System) Remove(ref contracts.ObjectRef) {
	s.mu.Lock()
	pending := s.removeLocked(ref)
	s.mu.Unlock()
	s.deliver(pending)
}

// Sent returns the data emitted through Received for source.
func (s *System) Sent(source contracts.ObjectRef) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.sent[source]...)
}

// Deliver hands data to a virtual destination's receive function.
func (s *System) Deliver(destination contracts.ObjectRef, data []byte) error {
	s.mu.Lock()
	o, ok := s.objects[destination]
	var receive func([]byte)
	if ok {
		receive = o.receive
	}
	s.mu.Unlock()

	if !ok {
		return ErrUnknownObject
	}
	if receive == nil {
		return ErrNotVirtual
	}
	receive(append([]byte(nil), data...))
	return nil
}

// CreateClient implements contracts.MIDISystem.
func (s *System) CreateClient(name string, notify contracts.NotifyFunc) (contracts.ClientRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clientErr != nil {
		return 0, s.clientErr
	}
	s.nextClient++
	s.clients[s.nextClient] = notify
	return s.nextClient, nil
}

// DisposeClient implements contracts.MIDISystem.
func (s *System) DisposeClient(client contracts.ClientRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client]; !ok {
		return ErrUnknownClient
	}
	delete(s.clients, client)
	return nil
}

func (s *System) NumberOfDevices() int { return s.count(contracts.ObjectTypeDevice) }

func (s *System) Device(index int) contracts.ObjectRef { return s.at(contracts.ObjectTypeDevice, index) }

func (s *System) NumberOfExternalDevices() int { return s.count(contracts.ObjectTypeExternalDevice) }

func (s *System) ExternalDevice(index int) contracts.ObjectRef {
	return s.at(contracts.ObjectTypeExternalDevice, index)
}

func (s *System) NumberOfSources() int { return s.count(contracts.ObjectTypeSource) }

func (s *System) Source(index int) contracts.ObjectRef { return s.at(contracts.ObjectTypeSource, index) }

func (s *System) NumberOfDestinations() int { return s.count(contracts.ObjectTypeDestination) }

func (s *System) Destination(index int) contracts.ObjectRef {
	return s.at(contracts.ObjectTypeDestination, index)
}

func (s *System) count(t contracts.ObjectType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order[t])
}

func (s *System) at(t contracts.ObjectType, index int) contracts.ObjectRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	refs := s.order[t]
	if index < 0 || index >= len(refs) {
		return 0
	}
	return refs[index]
}

// NumberOfEntities implements contracts.MIDISystem.
func (s *System) NumberOfEntities(device contracts.ObjectRef) int {
	return len(s.children(device))
}

// Entity implements contracts.MIDISystem.
func (s *System) Entity(device contracts.ObjectRef, index int) contracts.ObjectRef {
	return childAt(s.children(device), index)
}

// NumberOfEntitySources implements contracts.MIDISystem.
func (s *System) NumberOfEntitySources(entity contracts.ObjectRef) int {
	return len(s.entitySources(entity))
}

// EntitySource implements contracts.MIDISystem.
func (s *System) EntitySource(entity contracts.ObjectRef, index int) contracts.ObjectRef {
	return childAt(s.entitySources(entity), index)
}

func (s *System) children(ref contracts.ObjectRef) []contracts.ObjectRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.objects[ref]; ok {
		return append([]contracts.ObjectRef(nil), o.children...)
	}
	return nil
}

func (s *System) entitySources(entity contracts.ObjectRef) []contracts.ObjectRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[entity]
	if !ok {
		return nil
	}
	var sources []contracts.ObjectRef
	for _, child := range o.children {
		switch s.objects[child].objectType {
		case contracts.ObjectTypeSource, contracts.ObjectTypeExternalSource:
			sources = append(sources, child)
		}
	}
	return sources
}

func childAt(refs []contracts.ObjectRef, index int) contracts.ObjectRef {
	if index < 0 || index >= len(refs) {
		return 0
	}
	return refs[index]
}

// IntegerProperty implements contracts.MIDISystem.
func (s *System) IntegerProperty(ref contracts.ObjectRef, property contracts.Property) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readErrs[property]; err != nil {
		return 0, err
	}
	o, ok := s.objects[ref]
	if !ok {
		return 0, ErrUnknownObject
	}
	v, ok := o.integers[property]
	if !ok {
		return 0, contracts.ErrPropertyUnavailable
	}
	return v, nil
}

// SetIntegerProperty implements contracts.MIDISystem and notifies clients.
func (s *System) SetIntegerProperty(ref contracts.ObjectRef, property contracts.Property, value int32) error {
	s.mu.Lock()
	if err := s.writeErrs[property]; err != nil {
		s.mu.Unlock()
		return err
	}
	o, ok := s.objects[ref]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownObject
	}
	o.integers[property] = value
	pending := s.notificationsLocked(propertyChanged(o, property))
	s.mu.Unlock()

	s.deliver(pending)
	return nil
}

// StringProperty implements contracts.MIDISystem.
func (s *System) StringProperty(ref contracts.ObjectRef, property contracts.Property) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readErrs[property]; err != nil {
		return "", err
	}
	o, ok := s.objects[ref]
	if !ok {
		return "", ErrUnknownObject
	}
	v, ok := o.strings[property]
	if !ok {
		return "", contracts.ErrPropertyUnavailable
	}
	return v, nil
}

// SetStringProperty implements contracts.MIDISystem and notifies clients.
func (s *System) SetStringProperty(ref contracts.ObjectRef, property contracts.Property, value string) error {
	s.mu.Lock()
	if err := s.writeErrs[property]; err != nil {
		s.mu.Unlock()
		return err
	}
	o, ok := s.objects[ref]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownObject
	}
	o.strings[property] = value
	pending := s.notificationsLocked(propertyChanged(o, property))
	s.mu.Unlock()

	s.deliver(pending)
	return nil
}

// FindObjectByUniqueID implements contracts.MIDISystem.
// Reserved ids resolve to an object of type Other that is not otherwise listed.
func (s *System) FindObjectByUniqueID(id contracts.UniqueID) (contracts.ObjectRef, contracts.ObjectType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, o := s.findLocked(id); o != nil {
		return ref, o.objectType, nil
	}
	if s.reserved[id] {
		return ^contracts.ObjectRef(0), contracts.ObjectTypeOther, nil
	}
	return 0, contracts.ObjectTypeOther, ErrNotFound
}

func (s *System) findLocked(id contracts.UniqueID) (contracts.ObjectRef, *object) {
	for ref, o := range s.objects {
		if v, ok := o.integers[contracts.PropertyUniqueID]; ok && contracts.UniqueID(v) == id {
			return ref, o
		}
	}
	return 0, nil
}

// CreateSource implements contracts.MIDISystem.
func (s *System) CreateSource(client contracts.ClientRef, name string) (contracts.ObjectRef, error) {
	return s.createEndpoint(client, contracts.ObjectTypeSource, name, nil)
}

// CreateDestination implements contracts.MIDISystem.
func (s *System) CreateDestination(client contracts.ClientRef, name string, receive func([]byte)) (contracts.ObjectRef, error) {
	return s.createEndpoint(client, contracts.ObjectTypeDestination, name, receive)
}

func (s *System) createEndpoint(client contracts.ClientRef, t contracts.ObjectType, name string, receive func([]byte)) (contracts.ObjectRef, error) {
	s.mu.Lock()
	if _, ok := s.clients[client]; !ok {
		s.mu.Unlock()
		return 0, ErrUnknownClient
	}
	o := s.addLocked(t, 0, name, 0)
	o.client = client
	o.receive = receive
	pending := s.notificationsLocked(addedOrRemoved(contracts.NotificationObjectAdded, o, nil))
	s.mu.Unlock()

	s.deliver(pending)
	return o.ref, nil
}

// DisposeEndpoint implements contracts.MIDISystem.
func (s *System) DisposeEndpoint(endpoint contracts.ObjectRef) error {
	s.mu.Lock()
	o, ok := s.objects[endpoint]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownObject
	}
	if o.client == 0 {
		s.mu.Unlock()
		return ErrNotVirtual
	}
	pending := s.removeLocked(endpoint)
	s.mu.Unlock()

	s.deliver(pending)
	return nil
}

// Received implements contracts.MIDISystem.
func (s *System) Received(source contracts.ObjectRef, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[source]
	if !ok {
		return ErrUnknownObject
	}
	if o.client == 0 || o.objectType != contracts.ObjectTypeSource {
		return ErrNotVirtual
	}
	s.sent[source] = append(s.sent[source], append([]byte(nil), data...))
	return nil
}

func (s *System) add(t contracts.ObjectType, parent contracts.ObjectRef, name string, uniqueID contracts.UniqueID) contracts.ObjectRef {
	s.mu.Lock()
	if parent != 0 {
		if _, ok := s.objects[parent]; !ok {
			s.mu.Unlock()
			panic(fmt.Sprintf("midimem: parent %d does not exist", parent))
		}
	}
	o := s.addLocked(t, parent, name, uniqueID)
	var parentObject *object
	if parent != 0 {
		parentObject = s.objects[parent]
	}
	pending := s.notificationsLocked(addedOrRemoved(contracts.NotificationObjectAdded, o, parentObject))
	s.mu.Unlock()

	s.deliver(pending)
	return o.ref
}

func (s *System) addLocked(t contracts.ObjectType, parent contracts.ObjectRef, name string, uniqueID contracts.UniqueID) *object {
	s.nextRef++
	o := &object{
		ref:        s.nextRef,
		objectType: t,
		parent:     parent,
		integers:   make(map[contracts.Property]int32),
		strings:    map[contracts.Property]string{contracts.PropertyName: name},
	}
	if uniqueID == 0 && s.autoUniqueIDs {
		uniqueID = s.freeUniqueIDLocked()
	}
	if uniqueID != 0 {
		o.integers[contracts.PropertyUniqueID] = int32(uniqueID)
	}

	s.objects[o.ref] = o
	s.order[t] = append(s.order[t], o.ref)
	if p, ok := s.objects[parent]; ok {
		p.children = append(p.children, o.ref)
	}
	return o
}

func (s *System) freeUniqueIDLocked() contracts.UniqueID {
	for {
		id := s.nextUniqueID
		s.nextUniqueID++
		if _, o := s.findLocked(id); o == nil && !s.reserved[id] {
			return id
		}
	}
}

func (s *System) removeLocked(ref contracts.ObjectRef) []contracts.Notification {
	o, ok := s.objects[ref]
	if !ok {
		return nil
	}

	var pending []contracts.Notification
	for _, child := range o.children {
		pending = append(pending, s.removeLocked(child)...)
	}

	delete(s.objects, ref)
	refs := s.order[o.objectType]
	for i, r := range refs {
		if r == ref {
			s.order[o.objectType] = append(refs[:i:i], refs[i+1:]...)
			break
		}
	}

	parent := s.objects[o.parent]
	if parent != nil {
		for i, r := range parent.children {
			if r == ref {
				parent.children = append(parent.children[:i:i], parent.children[i+1:]...)
				break
			}
		}
	}
	return append(pending, s.notificationsLocked(addedOrRemoved(contracts.NotificationObjectRemoved, o, parent))...)
}

func addedOrRemoved(kind contracts.NotificationKind, o, parent *object) contracts.Notification {
	n := contracts.Notification{
		Kind:       kind,
		Object:     o.ref,
		ObjectType: o.objectType,
		ParentType: contracts.ObjectTypeOther,
	}
	if parent != nil {
		n.Parent = parent.ref
		n.ParentType = parent.objectType
	}
	return n
}

func propertyChanged(o *object, property contracts.Property) contracts.Notification {
	return contracts.Notification{
		Kind:       contracts.NotificationPropertyChanged,
		Object:     o.ref,
		ObjectType: o.objectType,
		Property:   property,
	}
}

type delivery struct {
	notify       contracts.NotifyFunc
	notification contracts.Notification
}

func (s *System) notificationsLocked(n ...contracts.Notification) []contracts.Notification {
	if s.muted {
		return nil
	}
	return n
}

// deliver calls every client's callback outside the lock, the way a
// subsystem thread would.
func (s *System) deliver(pending []contracts.Notification) {
	if len(pending) == 0 {
		return
	}
	s.mu.Lock()
	deliveries := make([]delivery, 0, len(pending)*len(s.clients))
	for _, n := range pending {
		for _, notify := range s.clients {
			deliveries = append(deliveries, delivery{notify: notify, notification: n})
		}
	}
	s.mu.Unlock()

	for _, d := range deliveries {
		d.notify(d.notification)
	}
}
