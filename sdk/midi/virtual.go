package midi

import (
	"fmt"

	"github.com/leandrodaf/midisuite/sdk/contracts"
	"github.com/leandrodaf/midisuite/sdk/sysex"
)

// GenerateNewUniqueID returns an id that no object currently uses.
//
// Candidates are the current time in seconds plus a sequence number that
// grows on every attempt, so repeated calls within one second differ. Each
// candidate is checked against the subsystem until a free one is found.
func (c *Context) GenerateNewUniqueID() contracts.UniqueID {
	for {
		proposed := contracts.UniqueID(int32(c.now().Unix()) + c.uniqueIDSequence)
		c.uniqueIDSequence++

		if proposed != 0 && !c.isUniqueIDUsed(proposed) {
			return proposed
		}
	}
}

func (c *Context) isUniqueIDUsed(id contracts.UniqueID) bool {
	ref, _, err := c.system.FindObjectByUniqueID(id)
	return err == nil && ref != 0
}

// CreateVirtualSource creates a source endpoint owned by this process.
// A non-zero uniqueID is assigned to it; otherwise the subsystem's id is kept,
// or a fresh one is generated if the subsystem did not assign any.
func (c *Context) CreateVirtualSource(name string, uniqueID contracts.UniqueID) (*Source, error) {
	if !c.connected {
		return nil, ErrDisconnected
	}

	ref, err := c.system.CreateSource(c.client, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceCreate, err)
	}

	// The "added" notification arrives later; track the source right away so it can be configured.
	source, ok := c.AddVirtualSource(ref)
	if !ok {
		c.disposeUntracked(ref)
		return nil, ErrEndpointAdd
	}
	c.configureVirtualEndpoint(&source.Endpoint, name, uniqueID)

	c.logger.Info("virtual source created",
		c.logger.Field().String("name", name),
		c.logger.Field().Int32("uniqueID", int32(source.UniqueID())))
	return source, nil
}

// CreateVirtualDestination creates a destination endpoint owned by this
// process. receive is called, on a subsystem thread, with every packet sent to it.
func (c *Context) CreateVirtualDestination(name string, uniqueID contracts.UniqueID, receive func([]byte)) (*Destination, error) {
	if !c.connected {
		return nil, ErrDisconnected
	}

	ref, err := c.system.CreateDestination(c.client, name, receive)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDestCreate, err)
	}

	destination, ok := c.AddVirtualDestination(ref)
	if !ok {
		c.disposeUntracked(ref)
		return nil, ErrEndpointAdd
	}
	c.configureVirtualEndpoint(&destination.Endpoint, name, uniqueID)

	c.logger.Info("virtual destination created",
		c.logger.Field().String("name", name),
		c.logger.Field().Int32("uniqueID", int32(destination.UniqueID())))
	return destination, nil
}

// disposeUntracked releases an endpoint that was created but could not be tracked.
func (c *Context) disposeUntracked(ref contracts.ObjectRef) {
	if err := c.system.DisposeEndpoint(ref); err != nil {
		c.logger.Warn("cannot dispose untracked endpoint",
			c.logger.Field().Uint32("ref", uint32(ref)),
			c.logger.Field().Error("error", err))
	}
}

func (c *Context) configureVirtualEndpoint(e *Endpoint, name string, uniqueID contracts.UniqueID) {
	e.setOwnedByThisProcess()

	if uniqueID != 0 {
		e.SetUniqueID(uniqueID)
	}
	for e.UniqueID() == 0 {
		e.SetUniqueID(c.GenerateNewUniqueID())
	}

	e.SetManufacturer(c.manufacturer)
	e.SetModel(name)
}

// RemoveVirtualEndpoint disposes of a source or destination created by this
// process and stops tracking it immediately.
func (c *Context) RemoveVirtualEndpoint(e *Endpoint) error {
	if !c.connected {
		return ErrDisconnected
	}
	if !e.IsOwnedByThisProcess() {
		return ErrNotOwned
	}

	if err := c.system.DisposeEndpoint(e.ref); err != nil {
		return err
	}

	list, ok := c.listsByType[e.objectType]
	if !ok {
		panic("midi: endpoint of untracked type " + e.objectType.String())
	}
	list.objectWasRemoved(e.ref, 0, contracts.ObjectTypeOther)
	return nil
}

// SendFromVirtualSource emits messages from a virtual source of this process
// to every client listening to it.
func (c *Context) SendFromVirtualSource(source *Source, messages []*sysex.Message) error {
	if !c.connected {
		return ErrDisconnected
	}
	if !source.IsOwnedByThisProcess() {
		return ErrNotVirtualSrc
	}
	for _, m := range messages {
		if err := c.system.Received(source.ref, m.FullMessageData()); err != nil {
			return fmt.Errorf("sending sysex from %q: %w", source.displayName(), err)
		}
	}
	return nil
}

func (o *Object) displayName() string {
	if name, ok := o.Name(); ok {
		return name
	}
	return fmt.Sprintf("object %d", o.ref)
}
