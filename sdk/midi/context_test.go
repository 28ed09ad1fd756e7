package midi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leandrodaf/midisuite/internal/logger"
	"github.com/leandrodaf/midisuite/internal/midi/midimem"
	"github.com/leandrodaf/midisuite/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, system *midimem.System, opts ...contracts.Option) *Context {
	t.Helper()
	opts = append([]contracts.Option{
		contracts.WithLogger(logger.NewNopLogger()),
		contracts.WithClientName("midisuite-test"),
	}, opts...)
	c, err := NewContextWithSystem(system, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Disconnect() })
	return c
}

func pendingEvents(ch <-chan contracts.GraphEvent) []contracts.GraphEvent {
	var got []contracts.GraphEvent
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, e)
		default:
			return got
		}
	}
}

// studio builds a small graph: one interface with an in/out port pair and an
// external synth wired to it.
func studio() *midimem.System {
	s := midimem.New()
	dev := s.AddDevice("USB Interface", 1)
	port := s.AddEntity(dev, "Port 1")
	s.AddSource(port, "Port 1 In", 11)
	s.AddDestination(port, "Port 1 Out", 12)
	s.AddSource(0, "IAC Bus", 13)

	synth := s.AddExternalDevice("Synth", 2)
	synthEntity := s.AddEntity(synth, "Synth")
	s.AddSource(synthEntity, "Synth Out", 21)
	s.AddSource(synthEntity, "Synth Out 2", 22)
	return s
}

func TestNewContextLoadsGraph(t *testing.T) {
	c := newTestContext(t, studio())

	assert.True(t, c.Connected())
	require.Equal(t, 1, c.Devices().Len())
	assert.Equal(t, 1, c.ExternalDevices().Len())
	assert.Equal(t, 2, c.Sources().Len())
	assert.Equal(t, 1, c.Destinations().Len())

	var names []string
	for _, src := range c.Sources().Objects() {
		name, ok := src.Name()
		require.True(t, ok)
		names = append(names, name)
	}
	assert.Equal(t, []string{"Port 1 In", "IAC Bus"}, names)

	dev := c.Devices().Objects()[0]
	assert.Equal(t, contracts.ObjectTypeDevice, dev.Type())
	assert.Equal(t, contracts.UniqueID(1), dev.UniqueID())
	assert.Same(t, c, dev.Context())

	found, ok := c.Sources().FindByUniqueID(13)
	require.True(t, ok)
	name, _ := found.Name()
	assert.Equal(t, "IAC Bus", name)
	_, ok = c.Sources().FindByUniqueID(99)
	assert.False(t, ok)
}

func TestNewContextClientFailure(t *testing.T) {
	s := midimem.New()
	s.FailClientCreation(errors.New("server not running"))

	_, err := NewContextWithSystem(s, contracts.WithLogger(logger.NewNopLogger()))
	assert.ErrorIs(t, err, ErrClientCreate)
}

func TestRefreshKeepsIdentity(t *testing.T) {
	c := newTestContext(t, studio())
	events := c.Subscribe("test")

	before := c.Sources().Objects()
	c.Sources().RefreshAllObjects()
	after := c.Sources().Objects()

	require.Len(t, after, len(before))
	for i := range before {
		assert.Same(t, before[i], after[i])
	}
	assert.Empty(t, pendingEvents(events), "an unchanged refresh publishes nothing")
}

func TestRefreshPicksUpSilentChanges(t *testing.T) {
	s := studio()
	c := newTestContext(t, s)
	events := c.Subscribe("test")
	iac, ok := c.Sources().FindByUniqueID(13)
	require.True(t, ok)
	port, ok := c.Sources().FindByUniqueID(11)
	require.True(t, ok)

	s.SetMuted(true)
	added := s.AddSource(0, "Network Session", 14)
	s.Remove(port.Ref())
	s.SetMuted(false)
	assert.Zero(t, c.ProcessPending())

	c.Sources().RefreshAllObjects()

	require.Equal(t, 2, c.Sources().Len())
	kept, ok := c.Sources().FindObject(iac.Ref())
	require.True(t, ok)
	assert.Same(t, iac, kept)
	_, ok = c.Sources().FindObject(port.Ref())
	assert.False(t, ok)

	got := pendingEvents(events)
	require.Len(t, got, 1)
	assert.Equal(t, contracts.ObjectListChanged, got[0].Kind)
	assert.Equal(t, contracts.ObjectTypeSource, got[0].ObjectType)
	assert.Equal(t, []contracts.ObjectRef{added}, got[0].Added)
	assert.Equal(t, []contracts.ObjectRef{port.Ref()}, got[0].Removed)
}

func TestRefreshEndpointsForDevice(t *testing.T) {
	s := studio()
	c := newTestContext(t, s)
	dev := c.Devices().Objects()[0]

	s.SetMuted(true)
	entity := s.AddEntity(dev.Ref(), "Port 2")
	s.AddSource(entity, "Port 2 In", 15)
	s.AddDestination(entity, "Port 2 Out", 16)
	s.SetMuted(false)

	c.RefreshEndpointsForDevice(dev)
	assert.Equal(t, 3, c.Sources().Len())
	assert.Equal(t, 2, c.Destinations().Len())
}

func TestNotificationsAreQueued(t *testing.T) {
	s := studio()
	c := newTestContext(t, s)
	events := c.Subscribe("test")

	dev := c.Devices().Objects()[0]
	ref := s.AddSource(0, "Late Source", 30)
	assert.Equal(t, 2, c.Sources().Len(), "nothing changes before the queue runs")

	assert.Equal(t, 1, c.ProcessPending())
	src, ok := c.Sources().FindObject(ref)
	require.True(t, ok)
	assert.Equal(t, contracts.UniqueID(30), src.UniqueID())

	got := pendingEvents(events)
	require.Len(t, got, 1)
	assert.Equal(t, []contracts.ObjectRef{ref}, got[0].Added)
	assert.Equal(t, contracts.ObjectTypeOther, got[0].ParentType)

	entity := s.AddEntity(dev.Ref(), "Port 3")
	inner := s.AddDestination(entity, "Port 3 Out", 31)
	c.ProcessPending()
	got = pendingEvents(events)
	require.Len(t, got, 1, "entity notifications are not tracked")
	assert.Equal(t, contracts.ObjectTypeDestination, got[0].ObjectType)
	assert.Equal(t, inner, got[0].Added[0])
	assert.Equal(t, entity, got[0].Parent)
	assert.Equal(t, contracts.ObjectTypeEntity, got[0].ParentType)
}

func TestDuplicateAddIsIgnored(t *testing.T) {
	c := newTestContext(t, studio())
	src := c.Sources().Objects()[0]

	c.Sources().objectWasAdded(src.Ref(), 0, contracts.ObjectTypeOther)
	assert.Equal(t, 2, c.Sources().Len())
	again, _ := c.Sources().FindObject(src.Ref())
	assert.Same(t, src, again)

	c.Sources().objectWasRemoved(999, 0, contracts.ObjectTypeOther)
	assert.Equal(t, 2, c.Sources().Len())
}

func TestRemoveThenAddCreatesNewObject(t *testing.T) {
	c := newTestContext(t, studio())
	src := c.Sources().Objects()[0]

	c.Sources().objectWasRemoved(src.Ref(), 0, contracts.ObjectTypeOther)
	_, ok := c.Sources().FindObject(src.Ref())
	assert.False(t, ok)

	c.Sources().objectWasAdded(src.Ref(), 0, contracts.ObjectTypeOther)
	again, ok := c.Sources().FindObject(src.Ref())
	require.True(t, ok)
	assert.NotSame(t, src, again)

	count := 0
	for _, o := range c.Sources().Objects() {
		if o.Ref() == src.Ref() {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRemovalNotification(t *testing.T) {
	s := studio()
	c := newTestContext(t, s)
	src, ok := c.Sources().FindByUniqueID(13)
	require.True(t, ok)

	s.Remove(src.Ref())
	c.ProcessPending()

	_, ok = c.Sources().FindObject(src.Ref())
	assert.False(t, ok)
	assert.Equal(t, contracts.UniqueID(13), src.UniqueID(), "the id survives removal")
}

func TestPropertyChangeInvalidatesCache(t *testing.T) {
	s := studio()
	c := newTestContext(t, s)
	events := c.Subscribe("test")
	src, ok := c.Sources().FindByUniqueID(13)
	require.True(t, ok)
	name, _ := src.Name()
	require.Equal(t, "IAC Bus", name)

	require.NoError(t, s.SetStringProperty(src.Ref(), contracts.PropertyName, "IAC Bus 2"))
	name, _ = src.Name()
	assert.Equal(t, "IAC Bus", name, "cached until the notification is handled")

	c.ProcessPending()
	name, _ = src.Name()
	assert.Equal(t, "IAC Bus 2", name)

	got := pendingEvents(events)
	require.Len(t, got, 1)
	assert.Equal(t, contracts.ObjectPropertyChanged, got[0].Kind)
	assert.Equal(t, src.Ref(), got[0].Object)
	assert.Equal(t, contracts.PropertyName, got[0].Property)
}

func TestUniqueIDChangeIsReadImmediately(t *testing.T) {
	s := studio()
	c := newTestContext(t, s)
	src, ok := c.Sources().FindByUniqueID(13)
	require.True(t, ok)

	require.NoError(t, s.SetIntegerProperty(src.Ref(), contracts.PropertyUniqueID, 77))
	c.ProcessPending()

	// Reads fail from now on; the new id must already be cached.
	s.FailReads(contracts.PropertyUniqueID, errors.New("gone"))
	assert.Equal(t, contracts.UniqueID(77), src.UniqueID())
	found, ok := c.Sources().FindByUniqueID(77)
	require.True(t, ok)
	assert.Same(t, src, found)
}

func TestObjectSetters(t *testing.T) {
	s := studio()
	c := newTestContext(t, s)
	src := c.Sources().Objects()[0]

	src.SetName("Renamed")
	name, _ := src.Name()
	assert.Equal(t, "Renamed", name)

	src.SetUniqueID(500)
	assert.Equal(t, contracts.UniqueID(500), src.UniqueID())

	_, ok := src.Manufacturer()
	assert.False(t, ok)
	src.SetManufacturer("Acme")
	src.SetModel("Box")
	manufacturer, _ := src.Manufacturer()
	model, _ := src.Model()
	assert.Equal(t, "Acme", manufacturer)
	assert.Equal(t, "Box", model)
	assert.False(t, src.IsOwnedByThisProcess())
}

func TestDeviceSysExSpeed(t *testing.T) {
	c := newTestContext(t, studio())
	dev := c.Devices().Objects()[0]

	assert.Equal(t, DefaultMaxSysExSpeed, dev.MaxSysExSpeed())
	dev.SetMaxSysExSpeed(6250)
	assert.Equal(t, int32(6250), dev.MaxSysExSpeed())
}

func TestExternalDeviceSpeedReachesEntitySources(t *testing.T) {
	s := studio()
	c := newTestContext(t, s)
	synth := c.ExternalDevices().Objects()[0]

	synth.SetMaxSysExSpeed(1000)
	assert.Equal(t, int32(1000), synth.MaxSysExSpeed())

	entity := s.Entity(synth.Ref(), 0)
	require.Equal(t, 2, s.NumberOfEntitySources(entity))
	for i := 0; i < 2; i++ {
		speed, err := s.IntegerProperty(s.EntitySource(entity, i), contracts.PropertyMaxSysExSpeed)
		require.NoError(t, err)
		assert.Equal(t, int32(1000), speed)
	}
}

// lockedSource rejects sysex speed writes to one endpoint and records every attempt.
type lockedSource struct {
	*midimem.System
	locked   contracts.ObjectRef
	attempts []contracts.ObjectRef
}

func (s *lockedSource) SetIntegerProperty(ref contracts.ObjectRef, property contracts.Property, value int32) error {
	if property == contracts.PropertyMaxSysExSpeed {
		s.attempts = append(s.attempts, ref)
	}
	if ref == s.locked {
		return errors.New("endpoint is locked")
	}
	return s.System.SetIntegerProperty(ref, property, value)
}

func TestExternalDeviceSpeedSkipsFailingSources(t *testing.T) {
	mem := studio()
	synthRef, _, err := mem.FindObjectByUniqueID(2)
	require.NoError(t, err)
	entity := mem.Entity(synthRef, 0)
	first, second := mem.EntitySource(entity, 0), mem.EntitySource(entity, 1)

	system := &lockedSource{System: mem, locked: first}
	c, err := NewContextWithSystem(system, contracts.WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)
	defer c.Disconnect()
	synth := c.ExternalDevices().Objects()[0]

	assert.NotPanics(t, func() { synth.SetMaxSysExSpeed(1000) })
	assert.Equal(t, []contracts.ObjectRef{synthRef, first, second}, system.attempts)
	assert.Equal(t, int32(1000), synth.MaxSysExSpeed())

	speed, err := mem.IntegerProperty(second, contracts.PropertyMaxSysExSpeed)
	require.NoError(t, err)
	assert.Equal(t, int32(1000), speed)
	_, err = mem.IntegerProperty(first, contracts.PropertyMaxSysExSpeed)
	assert.ErrorIs(t, err, contracts.ErrPropertyUnavailable)
}

func TestExternalDeviceSpeedWriteFailure(t *testing.T) {
	s := studio()
	c := newTestContext(t, s)
	synth := c.ExternalDevices().Objects()[0]
	synth.SetMaxSysExSpeed(2000)
	require.Equal(t, int32(2000), synth.MaxSysExSpeed())

	s.FailWrites(contracts.PropertyMaxSysExSpeed, errors.New("setup is read-only"))
	assert.NotPanics(t, func() { synth.SetMaxSysExSpeed(1000) })
	assert.Equal(t, int32(2000), synth.MaxSysExSpeed(), "a rejected write leaves the stored speed")

	entity := s.Entity(synth.Ref(), 0)
	for i := 0; i < s.NumberOfEntitySources(entity); i++ {
		speed, err := s.IntegerProperty(s.EntitySource(entity, i), contracts.PropertyMaxSysExSpeed)
		require.NoError(t, err)
		assert.Equal(t, int32(2000), speed)
	}
}

func TestDisconnect(t *testing.T) {
	s := studio()
	c := newTestContext(t, s)
	events := c.Subscribe("test")

	require.NoError(t, c.Disconnect())
	assert.False(t, c.Connected())
	assert.Zero(t, c.Devices().Len())
	assert.Zero(t, c.Sources().Len())

	_, open := <-events
	assert.False(t, open, "subscriptions are closed")

	s.AddSource(0, "After", 40)
	assert.Zero(t, c.ProcessPending(), "notifications stop once disconnected")
	assert.ErrorIs(t, c.Do(context.Background(), func() {}), ErrDisconnected)
	assert.NoError(t, c.Disconnect())
}

func TestRunAndDo(t *testing.T) {
	s := studio()
	c := newTestContext(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	ref := s.AddSource(0, "From Another Thread", 50)

	require.Eventually(t, func() bool {
		var found bool
		err := c.Do(ctx, func() {
			_, found = c.Sources().FindObject(ref)
		})
		return err == nil && found
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
