//go:build darwin
// +build darwin

package mididarwin

/*
#cgo LDFLAGS: -framework CoreMIDI
#cgo LDFLAGS: -framework CoreFoundation
#include <CoreMIDI/CoreMIDI.h>
#include <CoreFoundation/CoreFoundation.h>
#include <stdint.h>
#include <stdlib.h>

extern void goNotify(uintptr_t handle, int kind, MIDIObjectRef object, MIDIObjectType objectType, MIDIObjectRef parent, MIDIObjectType parentType, char *property);
extern void goDestinationRead(uintptr_t handle, Byte *data, int length);

// kind values match contracts.NotificationKind.
static void dispatch_notification(uintptr_t handle, const MIDINotification *n) {
	switch (n->messageID) {
	case kMIDIMsgObjectAdded:
	case kMIDIMsgObjectRemoved: {
		const MIDIObjectAddRemoveNotification *ar = (const MIDIObjectAddRemoveNotification *)n;
		int kind = n->messageID == kMIDIMsgObjectAdded ? 1 : 2;
		goNotify(handle, kind, ar->child, ar->childType, ar->parent, ar->parentType, NULL);
		break;
	}
	case kMIDIMsgPropertyChanged: {
		const MIDIObjectPropertyChangeNotification *pc = (const MIDIObjectPropertyChangeNotification *)n;
		char name[256];
		name[0] = 0;
		if (pc->propertyName != NULL) {
			CFStringGetCString(pc->propertyName, name, sizeof(name), kCFStringEncodingUTF8);
		}
		goNotify(handle, 3, pc->object, pc->objectType, 0, kMIDIObjectType_Other, name);
		break;
	}
	default:
		break;
	}
}

static inline OSStatus client_create(CFStringRef name, uintptr_t handle, MIDIClientRef *out) {
	return MIDIClientCreateWithBlock(name, out, ^(const MIDINotification *n) {
		dispatch_notification(handle, n);
	});
}

static inline OSStatus destination_create(MIDIClientRef client, CFStringRef name, uintptr_t handle, MIDIEndpointRef *out) {
	return MIDIDestinationCreateWithBlock(client, name, out, ^(const MIDIPacketList *list, void *srcConnRefCon) {
		const MIDIPacket *p = &list->packet[0];
		for (UInt32 i = 0; i < list->numPackets; i++) {
			goDestinationRead(handle, (Byte *)p->data, (int)p->length);
			p = MIDIPacketNext(p);
		}
	});
}

// received splits data into packets of at most 256 bytes.
static inline OSStatus received(MIDIEndpointRef source, const Byte *data, int length) {
	ByteCount size = (ByteCount)length * 2 + 1024;
	MIDIPacketList *list = (MIDIPacketList *)malloc(size);
	if (list == NULL) {
		return -1;
	}
	MIDIPacket *p = MIDIPacketListInit(list);
	int offset = 0;
	while (offset < length && p != NULL) {
		int chunk = length - offset;
		if (chunk > 256) {
			chunk = 256;
		}
		p = MIDIPacketListAdd(list, size, p, 0, (ByteCount)chunk, data + offset);
		offset += chunk;
	}
	OSStatus status = p == NULL ? -1 : MIDIReceived(source, list);
	free(list);
	return status;
}

static inline char *cfstring_copy_utf8(CFStringRef s) {
	CFIndex max = CFStringGetMaximumSizeForEncoding(CFStringGetLength(s), kCFStringEncodingUTF8) + 1;
	char *buf = (char *)malloc(max);
	if (buf == NULL) {
		return NULL;
	}
	if (!CFStringGetCString(s, buf, max, kCFStringEncodingUTF8)) {
		free(buf);
		return NULL;
	}
	return buf;
}
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime/cgo"
	"sync"
	"unsafe"

	"github.com/leandrodaf/midisuite/sdk/contracts"
)

// OSStatus values CoreMIDI returns for missing data.
const (
	statusUnknownProperty = -10835
	statusObjectNotFound  = -10837
)

var ErrObjectNotFound = errors.New("CoreMIDI object not found")

// System is the CoreMIDI device graph.
type System struct {
	mu           sync.Mutex
	clients      map[contracts.ClientRef]cgo.Handle
	destinations map[contracts.ObjectRef]cgo.Handle
}

// NewSystem returns the CoreMIDI subsystem of this machine.
func NewSystem() (contracts.MIDISystem, error) {
	return &System{
		clients:      make(map[contracts.ClientRef]cgo.Handle),
		destinations: make(map[contracts.ObjectRef]cgo.Handle),
	}, nil
}

func statusError(call string, status C.OSStatus) error {
	switch status {
	case statusUnknownProperty:
		return contracts.ErrPropertyUnavailable
	case statusObjectNotFound:
		return ErrObjectNotFound
	}
	return fmt.Errorf("%s: OSStatus %d", call, int(status))
}

// CreateClient implements contracts.MIDISystem.
func (s *System) CreateClient(name string, notify contracts.NotifyFunc) (contracts.ClientRef, error) {
	cfname, free := cfstr(name)
	defer free()

	handle := cgo.NewHandle(notify)
	var ref C.MIDIClientRef
	if status := C.client_create(cfname, C.uintptr_t(handle), &ref); status != C.noErr {
		handle.Delete()
		return 0, statusError("MIDIClientCreateWithBlock", status)
	}

	s.mu.Lock()
	s.clients[contracts.ClientRef(ref)] = handle
	s.mu.Unlock()
	return contracts.ClientRef(ref), nil
}

// DisposeClient implements contracts.MIDISystem.
func (s *System) DisposeClient(client contracts.ClientRef) error {
	if status := C.MIDIClientDispose(C.MIDIClientRef(client)); status != C.noErr {
		return statusError("MIDIClientDispose", status)
	}

	s.mu.Lock()
	if handle, ok := s.clients[client]; ok {
		delete(s.clients, client)
		handle.Delete()
	}
	s.mu.Unlock()
	return nil
}

//export goNotify
func goNotify(handle C.uintptr_t, kind C.int, object C.MIDIObjectRef, objectType C.MIDIObjectType, parent C.MIDIObjectRef, parentType C.MIDIObjectType, property *C.char) {
	notify, ok := cgo.Handle(handle).Value().(contracts.NotifyFunc)
	if !ok {
		return
	}
	n := contracts.Notification{
		Kind:       contracts.NotificationKind(kind),
		Object:     contracts.ObjectRef(object),
		ObjectType: contracts.ObjectType(objectType),
		Parent:     contracts.ObjectRef(parent),
		ParentType: contracts.ObjectType(parentType),
	}
	if property != nil {
		n.Property = contracts.Property(C.GoString(property))
	}
	notify(n)
}

//export goDestinationRead
func goDestinationRead(handle C.uintptr_t, data *C.Byte, length C.int) {
	receive, ok := cgo.Handle(handle).Value().(func([]byte))
	if !ok || receive == nil || length <= 0 {
		return
	}
	receive(C.GoBytes(unsafe.Pointer(data), length))
}

func (s *System) NumberOfDevices() int { return int(C.MIDIGetNumberOfDevices()) }

func (s *System) Device(index int) contracts.ObjectRef {
	return contracts.ObjectRef(C.MIDIGetDevice(C.ItemCount(index)))
}

func (s *System) NumberOfExternalDevices() int { return int(C.MIDIGetNumberOfExternalDevices()) }

func (s *System) ExternalDevice(index int) contracts.ObjectRef {
	return contracts.ObjectRef(C.MIDIGetExternalDevice(C.ItemCount(index)))
}

func (s *System) NumberOfSources() int { return int(C.MIDIGetNumberOfSources()) }

func (s *System) Source(index int) contracts.ObjectRef {
	return contracts.ObjectRef(C.MIDIGetSource(C.ItemCount(index)))
}

func (s *System) NumberOfDestinations() int { return int(C.MIDIGetNumberOfDestinations()) }

func (s *System) Destination(index int) contracts.ObjectRef {
	return contracts.ObjectRef(C.MIDIGetDestination(C.ItemCount(index)))
}

func (s *System) NumberOfEntities(device contracts.ObjectRef) int {
	return int(C.MIDIDeviceGetNumberOfEntities(C.MIDIDeviceRef(device)))
}

func (s *System) Entity(device contracts.ObjectRef, index int) contracts.ObjectRef {
	return contracts.ObjectRef(C.MIDIDeviceGetEntity(C.MIDIDeviceRef(device), C.ItemCount(index)))
}

func (s *System) NumberOfEntitySources(entity contracts.ObjectRef) int {
	return int(C.MIDIEntityGetNumberOfSources(C.MIDIEntityRef(entity)))
}

func (s *System) EntitySource(entity contracts.ObjectRef, index int) contracts.ObjectRef {
	return contracts.ObjectRef(C.MIDIEntityGetSource(C.MIDIEntityRef(entity), C.ItemCount(index)))
}

// IntegerProperty implements contracts.MIDISystem.
func (s *System) IntegerProperty(ref contracts.ObjectRef, property contracts.Property) (int32, error) {
	key, free := cfstr(string(property))
	defer free()

	var v C.SInt32
	if status := C.MIDIObjectGetIntegerProperty(C.MIDIObjectRef(ref), key, &v); status != C.noErr {
		return 0, statusError("MIDIObjectGetIntegerProperty", status)
	}
	return int32(v), nil
}

// SetIntegerProperty implements contracts.MIDISystem.
func (s *System) SetIntegerProperty(ref contracts.ObjectRef, property contracts.Property, value int32) error {
	key, free := cfstr(string(property))
	defer free()

	if status := C.MIDIObjectSetIntegerProperty(C.MIDIObjectRef(ref), key, C.SInt32(value)); status != C.noErr {
		return statusError("MIDIObjectSetIntegerProperty", status)
	}
	return nil
}

// StringProperty implements contracts.MIDISystem.
func (s *System) StringProperty(ref contracts.ObjectRef, property contracts.Property) (string, error) {
	key, free := cfstr(string(property))
	defer free()

	var cfs C.CFStringRef
	if status := C.MIDIObjectGetStringProperty(C.MIDIObjectRef(ref), key, &cfs); status != C.noErr {
		return "", statusError("MIDIObjectGetStringProperty", status)
	}
	defer C.CFRelease(C.CFTypeRef(cfs))

	buf := C.cfstring_copy_utf8(cfs)
	if buf == nil {
		return "", fmt.Errorf("property %q is not valid UTF-8", property)
	}
	defer C.free(unsafe.Pointer(buf))
	return C.GoString(buf), nil
}

// SetStringProperty implements contracts.MIDISystem.
func (s *System) SetStringProperty(ref contracts.ObjectRef, property contracts.Property, value string) error {
	key, freeKey := cfstr(string(property))
	defer freeKey()
	cfv, freeValue := cfstr(value)
	defer freeValue()

	if status := C.MIDIObjectSetStringProperty(C.MIDIObjectRef(ref), key, cfv); status != C.noErr {
		return statusError("MIDIObjectSetStringProperty", status)
	}
	return nil
}

// FindObjectByUniqueID implements contracts.MIDISystem.
func (s *System) FindObjectByUniqueID(id contracts.UniqueID) (contracts.ObjectRef, contracts.ObjectType, error) {
	var (
		ref        C.MIDIObjectRef
		objectType C.MIDIObjectType
	)
	if status := C.MIDIObjectFindByUniqueID(C.MIDIUniqueID(id), &ref, &objectType); status != C.noErr {
		return 0, contracts.ObjectTypeOther, statusError("MIDIObjectFindByUniqueID", status)
	}
	return contracts.ObjectRef(ref), contracts.ObjectType(objectType), nil
}

// CreateSource implements contracts.MIDISystem.
func (s *System) CreateSource(client contracts.ClientRef, name string) (contracts.ObjectRef, error) {
	cfname, free := cfstr(name)
	defer free()

	var ref C.MIDIEndpointRef
	if status := C.MIDISourceCreate(C.MIDIClientRef(client), cfname, &ref); status != C.noErr {
		return 0, statusError("MIDISourceCreate", status)
	}
	return contracts.ObjectRef(ref), nil
}

// CreateDestination implements contracts.MIDISystem.
func (s *System) CreateDestination(client contracts.ClientRef, name string, receive func([]byte)) (contracts.ObjectRef, error) {
	cfname, free := cfstr(name)
	defer free()

	handle := cgo.NewHandle(receive)
	var ref C.MIDIEndpointRef
	if status := C.destination_create(C.MIDIClientRef(client), cfname, C.uintptr_t(handle), &ref); status != C.noErr {
		handle.Delete()
		return 0, statusError("MIDIDestinationCreateWithBlock", status)
	}

	s.mu.Lock()
	s.destinations[contracts.ObjectRef(ref)] = handle
	s.mu.Unlock()
	return contracts.ObjectRef(ref), nil
}

// DisposeEndpoint implements contracts.MIDISystem.
func (s *System) DisposeEndpoint(endpoint contracts.ObjectRef) error {
	if status := C.MIDIEndpointDispose(C.MIDIEndpointRef(endpoint)); status != C.noErr {
		return statusError("MIDIEndpointDispose", status)
	}

	s.mu.Lock()
	if handle, ok := s.destinations[endpoint]; ok {
		delete(s.destinations, endpoint)
		handle.Delete()
	}
	s.mu.Unlock()
	return nil
}

// Received implements contracts.MIDISystem.
func (s *System) Received(source contracts.ObjectRef, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	buf := C.CBytes(data)
	defer C.free(buf)

	if status := C.received(C.MIDIEndpointRef(source), (*C.Byte)(buf), C.int(len(data))); status != C.noErr {
		return statusError("MIDIReceived", status)
	}
	return nil
}

func cfstr(str string) (C.CFStringRef, func()) {
	c := C.CString(str)
	defer C.free(unsafe.Pointer(c))
	cf := C.CFStringCreateWithCString(
		C.kCFAllocatorDefault,
		c,
		C.kCFStringEncodingUTF8,
	)
	return cf, func() { C.CFRelease(C.CFTypeRef(cf)) }
}
