package midi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leandrodaf/midisuite/internal/events"
	"github.com/leandrodaf/midisuite/internal/mainqueue"
	"github.com/leandrodaf/midisuite/sdk/contracts"
)

var (
	ErrClientCreate  = errors.New("error connecting to the MIDI subsystem")
	ErrDisconnected  = errors.New("MIDI context disconnected")
	ErrEndpointAdd   = errors.New("created endpoint could not be tracked")
	ErrNotOwned      = errors.New("endpoint is not owned by this process")
	ErrSourceCreate  = errors.New("error creating virtual source")
	ErrDestCreate    = errors.New("error creating virtual destination")
	ErrNotVirtualSrc = errors.New("source is not a virtual source of this process")
)

// Context mirrors the native MIDI device graph into typed objects.
//
// The subsystem reports changes on its own threads; the context only copies
// each notification onto its main queue. The goroutine running Run (or
// calling ProcessPending) owns every list, object and cached property, and
// all other methods must be called from that goroutine, or through Do.
type Context struct {
	system       contracts.MIDISystem
	client       contracts.ClientRef
	logger       contracts.Logger
	manufacturer string
	now          func() time.Time

	queue     *mainqueue.Queue
	bus       *events.Bus
	connected bool

	uniqueIDSequence int32

	deviceList         *ObjectList[*Device]
	externalDeviceList *ObjectList[*ExternalDevice]
	sourceList         *ObjectList[*Source]
	destinationList    *ObjectList[*Destination]
	listsByType        map[contracts.ObjectType]objectList
}

// NewContextWithSystem connects to system and loads the current device graph.
// It fails when the client connection cannot be created.
func NewContextWithSystem(system contracts.MIDISystem, opts ...contracts.Option) (*Context, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	c := &Context{
		system:       system,
		logger:       options.Logger,
		manufacturer: options.Manufacturer,
		now:          options.Clock,
		queue:        mainqueue.New(),
		bus:          events.NewBus(),
	}

	c.deviceList = newObjectList(c, deviceKind)
	c.externalDeviceList = newObjectList(c, externalDeviceKind)
	c.sourceList = newObjectList(c, sourceKind)
	c.destinationList = newObjectList(c, destinationKind)

	lists := []objectList{c.deviceList, c.externalDeviceList, c.sourceList, c.destinationList}
	c.listsByType = make(map[contracts.ObjectType]objectList, len(lists))
	for _, list := range lists {
		c.listsByType[list.ObjectType()] = list
	}

	client, err := system.CreateClient(options.ClientName, c.notify)
	if err != nil {
		c.queue.Close()
		c.bus.Close()
		return nil, fmt.Errorf("%w: %v", ErrClientCreate, err)
	}
	c.client = client
	c.connected = true
	c.logger.Info("MIDI client successfully created", c.logger.Field().String("client", options.ClientName))

	for _, list := range lists {
		list.RefreshAllObjects()
	}
	return c, nil
}

// notify runs on a subsystem thread. It must not touch the graph.
func (c *Context) notify(n contracts.Notification) {
	switch n.Kind {
	case contracts.NotificationObjectAdded, contracts.NotificationObjectRemoved, contracts.NotificationPropertyChanged:
		c.queue.Async(func() { c.handle(n) })
	}
}

func (c *Context) handle(n contracts.Notification) {
	list, ok := c.listsByType[n.ObjectType]
	if !ok {
		c.logger.Debug("notification for untracked object type dropped",
			c.logger.Field().String("type", n.ObjectType.String()))
		return
	}

	switch n.Kind {
	case contracts.NotificationObjectAdded:
		list.objectWasAdded(n.Object, n.Parent, n.ParentType)
	case contracts.NotificationObjectRemoved:
		list.objectWasRemoved(n.Object, n.Parent, n.ParentType)
	case contracts.NotificationPropertyChanged:
		list.objectPropertyChanged(n.Object, n.Property)
	default:
		panic(fmt.Sprintf("midi: unroutable notification kind %d", n.Kind))
	}
}

// Run processes device-graph notifications on the calling goroutine until
// ctx is cancelled or the context is disconnected.
func (c *Context) Run(ctx context.Context) error {
	return c.queue.Run(ctx)
}

// ProcessPending handles every queued notification on the calling goroutine
// and returns how many tasks ran.
func (c *Context) ProcessPending() int {
	return c.queue.Drain()
}

// Do runs fn on the goroutine executing Run and waits for it to finish.
// It must not be called from that goroutine.
func (c *Context) Do(ctx context.Context, fn func()) error {
	if err := c.queue.Sync(ctx, fn); err != nil {
		if errors.Is(err, mainqueue.ErrClosed) {
			return ErrDisconnected
		}
		return err
	}
	return nil
}

// Subscribe returns a channel of graph changes, published after the lists are updated.
func (c *Context) Subscribe(id string) <-chan contracts.GraphEvent {
	return c.bus.Subscribe(id)
}

// Unsubscribe stops delivery to the subscription id.
func (c *Context) Unsubscribe(id string) {
	c.bus.Unsubscribe(id)
}

// Connected reports whether the client connection is open.
func (c *Context) Connected() bool {
	return c.connected
}

// System returns the subsystem the context is connected to.
func (c *Context) System() contracts.MIDISystem {
	return c.system
}

// Devices returns the list of devices.
func (c *Context) Devices() *ObjectList[*Device] {
	return c.deviceList
}

// ExternalDevices returns the list of external devices.
func (c *Context) ExternalDevices() *ObjectList[*ExternalDevice] {
	return c.externalDeviceList
}

// Sources returns the list of source endpoints.
func (c *Context) Sources() *ObjectList[*Source] {
	return c.sourceList
}

// Destinations returns the list of destination endpoints.
func (c *Context) Destinations() *ObjectList[*Destination] {
	return c.destinationList
}

// RefreshEndpointsForDevice reloads the source and destination lists after a
// device changed. The subsystem offers no finer-grained invalidation, so both
// lists are refreshed entirely.
func (c *Context) RefreshEndpointsForDevice(_ *Device) {
	c.sourceList.RefreshAllObjects()
	c.destinationList.RefreshAllObjects()
}

// AddVirtualSource starts tracking a source this process just created, ahead
// of the subsystem's asynchronous "added" notification.
func (c *Context) AddVirtualSource(ref contracts.ObjectRef) (*Source, bool) {
	c.sourceList.objectWasAdded(ref, 0, contracts.ObjectTypeOther)
	return c.sourceList.FindObject(ref)
}

// AddVirtualDestination is AddVirtualSource for destinations.
func (c *Context) AddVirtualDestination(ref contracts.ObjectRef) (*Destination, bool) {
	c.destinationList.objectWasAdded(ref, 0, contracts.ObjectTypeOther)
	return c.destinationList.FindObject(ref)
}

// Disconnect drops every tracked object and closes the client connection.
// The context cannot be used afterwards.
func (c *Context) Disconnect() error {
	if !c.connected {
		return nil
	}
	c.connected = false

	for _, list := range c.listsByType {
		list.invalidate()
	}
	c.queue.Close()
	c.bus.Close()

	if err := c.system.DisposeClient(c.client); err != nil {
		c.logger.Warn("error disposing MIDI client", c.logger.Field().Error("error", err))
		return err
	}
	c.client = 0
	c.logger.Info("MIDI client disconnected")
	return nil
}

func (c *Context) integerProperty(ref contracts.ObjectRef, property contracts.Property) (int32, bool) {
	v, err := c.system.IntegerProperty(ref, property)
	if err != nil {
		if !errors.Is(err, contracts.ErrPropertyUnavailable) {
			c.logger.Debug("cannot read property",
				c.logger.Field().String("property", string(property)),
				c.logger.Field().Error("error", err))
		}
		return 0, false
	}
	return v, true
}

func (c *Context) setIntegerProperty(ref contracts.ObjectRef, property contracts.Property, value int32) {
	if err := c.system.SetIntegerProperty(ref, property, value); err != nil {
		c.logger.Warn("cannot write property",
			c.logger.Field().String("property", string(property)),
			c.logger.Field().Error("error", err))
	}
}

func (c *Context) stringProperty(ref contracts.ObjectRef, property contracts.Property) (string, bool) {
	v, err := c.system.StringProperty(ref, property)
	if err != nil {
		if !errors.Is(err, contracts.ErrPropertyUnavailable) {
			c.logger.Debug("cannot read property",
				c.logger.Field().String("property", string(property)),
				c.logger.Field().Error("error", err))
		}
		return "", false
	}
	return v, true
}

func (c *Context) setStringProperty(ref contracts.ObjectRef, property contracts.Property, value string) {
	if err := c.system.SetStringProperty(ref, property, value); err != nil {
		c.logger.Warn("cannot write property",
			c.logger.Field().String("property", string(property)),
			c.logger.Field().Error("error", err))
	}
}

func (c *Context) integerCache(ref contracts.ObjectRef, property contracts.Property) CachedProperty[int32] {
	return NewCachedProperty(
		func() (int32, bool) { return c.integerProperty(ref, property) },
		func(v int32) { c.setIntegerProperty(ref, property, v) },
	)
}

func (c *Context) stringCache(ref contracts.ObjectRef, property contracts.Property) CachedProperty[string] {
	return NewCachedProperty(
		func() (string, bool) { return c.stringProperty(ref, property) },
		func(v string) { c.setStringProperty(ref, property, v) },
	)
}
