package midi

import "github.com/leandrodaf/midisuite/sdk/contracts"

// objectList is the kind-independent view the context routes notifications through.
type objectList interface {
	ObjectType() contracts.ObjectType
	RefreshAllObjects()
	objectWasAdded(ref, parent contracts.ObjectRef, parentType contracts.ObjectType)
	objectWasRemoved(ref, parent contracts.ObjectRef, parentType contracts.ObjectType)
	objectPropertyChanged(ref contracts.ObjectRef, property contracts.Property)
	invalidate()
}

// ObjectList tracks the live objects of one kind, in subsystem order, with
// exactly one instance per native reference.
type ObjectList[T graphObject] struct {
	context *Context
	kind    objectKind[T]
	objects []T
	byRef   map[contracts.ObjectRef]T
}

func newObjectList[T graphObject](c *Context, kind objectKind[T]) *ObjectList[T] {
	return &ObjectList[T]{
		context: c,
		kind:    kind,
		byRef:   make(map[contracts.ObjectRef]T),
	}
}

// ObjectType returns the kind of object held by the list.
func (l *ObjectList[T]) ObjectType() contracts.ObjectType {
	return l.kind.objectType
}

// Objects returns a snapshot of the tracked objects.
func (l *ObjectList[T]) Objects() []T {
	return append([]T(nil), l.objects...)
}

// Len returns the number of tracked objects.
func (l *ObjectList[T]) Len() int {
	return len(l.objects)
}

// FindObject returns the tracked object for ref.
func (l *ObjectList[T]) FindObject(ref contracts.ObjectRef) (T, bool) {
	obj, ok := l.byRef[ref]
	return obj, ok
}

// FindByUniqueID returns the first tracked object carrying id.
func (l *ObjectList[T]) FindByUniqueID(id contracts.UniqueID) (T, bool) {
	for _, obj := range l.objects {
		if obj.UniqueID() == id {
			return obj, true
		}
	}
	var zero T
	return zero, false
}

// RefreshAllObjects re-enumerates the subsystem. Objects still present keep
// their identity, new references get new objects, and vanished ones are dropped.
func (l *ObjectList[T]) RefreshAllObjects() {
	system := l.context.system
	count := l.kind.count(system)

	refreshed := make([]T, 0, count)
	byRef := make(map[contracts.ObjectRef]T, count)
	var added []contracts.ObjectRef

	for i := 0; i < count; i++ {
		ref := l.kind.at(system, i)
		if ref == 0 {
			continue
		}
		if _, dup := byRef[ref]; dup {
			continue
		}
		obj, ok := l.byRef[ref]
		if !ok {
			obj = l.kind.construct(l.context, ref)
			added = append(added, ref)
		}
		refreshed = append(refreshed, obj)
		byRef[ref] = obj
	}

	var removed []contracts.ObjectRef
	for _, obj := range l.objects {
		if _, ok := byRef[obj.Ref()]; !ok {
			removed = append(removed, obj.Ref())
		}
	}

	l.objects = refreshed
	l.byRef = byRef

	if len(added) > 0 || len(removed) > 0 {
		l.context.logger.Debug("object list refreshed",
			l.context.logger.Field().String("type", l.kind.objectType.String()),
			l.context.logger.Field().Int("added", len(added)),
			l.context.logger.Field().Int("removed", len(removed)))
		l.context.bus.Publish(contracts.GraphEvent{
			Kind:       contracts.ObjectListChanged,
			ObjectType: l.kind.objectType,
			Added:      added,
			Removed:    removed,
		})
	}
}

// The parent reference is passed along to subscribers but does not affect membership.
func (l *ObjectList[T]) objectWasAdded(ref, parent contracts.ObjectRef, parentType contracts.ObjectType) {
	if ref == 0 {
		return
	}
	if _, ok := l.byRef[ref]; ok {
		return
	}

	obj := l.kind.construct(l.context, ref)
	l.objects = append(l.objects, obj)
	l.byRef[ref] = obj

	l.context.logger.Debug("object added",
		l.context.logger.Field().String("type", l.kind.objectType.String()),
		l.context.logger.Field().Uint32("ref", uint32(ref)),
		l.context.logger.Field().Int32("uniqueID", int32(obj.UniqueID())))
	l.context.bus.Publish(contracts.GraphEvent{
		Kind:       contracts.ObjectListChanged,
		ObjectType: l.kind.objectType,
		Added:      []contracts.ObjectRef{ref},
		Parent:     parent,
		ParentType: parentType,
	})
}

func (l *ObjectList[T]) objectWasRemoved(ref, parent contracts.ObjectRef, parentType contracts.ObjectType) {
	if _, ok := l.byRef[ref]; !ok {
		return
	}

	delete(l.byRef, ref)
	for i, obj := range l.objects {
		if obj.Ref() == ref {
			l.objects = append(l.objects[:i], l.objects[i+1:]...)
			break
		}
	}

	l.context.logger.Debug("object removed",
		l.context.logger.Field().String("type", l.kind.objectType.String()),
		l.context.logger.Field().Uint32("ref", uint32(ref)))
	l.context.bus.Publish(contracts.GraphEvent{
		Kind:       contracts.ObjectListChanged,
		ObjectType: l.kind.objectType,
		Removed:    []contracts.ObjectRef{ref},
		Parent:     parent,
		ParentType: parentType,
	})
}

func (l *ObjectList[T]) objectPropertyChanged(ref contracts.ObjectRef, property contracts.Property) {
	obj, ok := l.byRef[ref]
	if !ok {
		return
	}
	obj.midiPropertyChanged(property)

	l.context.bus.Publish(contracts.GraphEvent{
		Kind:       contracts.ObjectPropertyChanged,
		ObjectType: l.kind.objectType,
		Object:     ref,
		Property:   property,
	})
}

func (l *ObjectList[T]) invalidate() {
	l.objects = nil
	l.byRef = make(map[contracts.ObjectRef]T)
}
