package parser

import (
	"context"

	"go.uber.org/zap"

	"github.com/xmlwasm/expat"
	"github.com/xmlwasm/expat/handle"
)

// dispatchMethod is the exported method every registered object serves
// events through; the slot table is built from it once, parameterized
// per event name, so a fixed number of foreign-callable slots covers any
// number of parser instances.
const dispatchMethod = "HandleEvent"

// Dispatcher translates the raw slot invocations coming out of the
// guest into host values and forwards them through the handle table.
// One Dispatcher serves every parser of its Runtime; expat invokes it
// synchronously and reentrantly from inside Parse.
type Dispatcher struct {
	table  *handle.Table
	slots  map[string]handle.BoundFunc
	logger *zap.Logger
}

func newDispatcher(table *handle.Table, logger *zap.Logger) *Dispatcher {
	events := []string{
		EventXMLDecl,
		EventStartDoctypeDecl,
		EventEndDoctypeDecl,
		EventElementDecl,
		EventAttlistDecl,
		EventEntityDecl,
		EventStartElement,
		EventEndElement,
		EventCharacterData,
		EventComment,
		EventProcessingInstruction,
		EventStartCdataSection,
		EventEndCdataSection,
		EventStartNamespaceDecl,
		EventEndNamespaceDecl,
		EventNotationDecl,
		EventSkippedEntity,
		EventDefault,
		eventExternalEntityRef,
	}
	slots := make(map[string]handle.BoundFunc, len(events))
	for _, ev := range events {
		slots[ev] = table.Bind(dispatchMethod, ev)
	}
	return &Dispatcher{table: table, slots: slots, logger: logger}
}

// forward dispatches one decoded event. Slot errors cannot propagate
// back into the guest's void callbacks, so they are logged and dropped.
func (d *Dispatcher) forward(ev string, ud int32, args ...any) (any, error) {
	res, err := d.slots[ev](handle.ID(ud), args...)
	if err != nil {
		d.logger.Error("event dispatch failed",
			zap.String("event", ev),
			zap.Int32("handle", ud),
			zap.Error(err))
	}
	return res, err
}

// str decodes a NUL-terminated string argument, "" for NULL. A decode
// failure drops the whole event.
func (d *Dispatcher) str(mem expat.Memory, ev string, ptr uint32) (string, bool) {
	s, _, err := expat.CString(mem, ptr)
	if err != nil {
		d.logger.Error("string argument decode failed",
			zap.String("event", ev),
			zap.Uint32("ptr", ptr),
			zap.Error(err))
		return "", false
	}
	return s, true
}

// decodeAttributes walks the flat alternating name/value pointer array,
// NULL-terminated, into document order. Expat de-duplicates names; if a
// duplicate slips through anyway the later value replaces the earlier
// one in place.
func decodeAttributes(mem expat.Memory, atts uint32) (Attributes, error) {
	var out Attributes
	if atts == 0 {
		return out, nil
	}
	for off := atts; ; off += 8 {
		namePtr, err := mem.ReadU32(off)
		if err != nil {
			return nil, err
		}
		if namePtr == 0 {
			return out, nil
		}
		valPtr, err := mem.ReadU32(off + 4)
		if err != nil {
			return nil, err
		}
		name, _, err := expat.CString(mem, namePtr)
		if err != nil {
			return nil, err
		}
		val, _, err := expat.CString(mem, valPtr)
		if err != nil {
			return nil, err
		}
		replaced := false
		for i := range out {
			if out[i].Name == name {
				out[i].Value = val
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, Attr{Name: name, Value: val})
		}
	}
}

func (d *Dispatcher) parserAt(ud int32) (*Parser, bool) {
	obj, ok := d.table.Get(handle.ID(ud))
	if !ok {
		return nil, false
	}
	p, ok := obj.(*Parser)
	return p, ok
}

func (d *Dispatcher) XMLDecl(ctx context.Context, mem expat.Memory, ud int32, version, encoding uint32, standalone int32) {
	v, ok := d.str(mem, EventXMLDecl, version)
	if !ok {
		return
	}
	enc, ok := d.str(mem, EventXMLDecl, encoding)
	if !ok {
		return
	}
	d.forward(EventXMLDecl, ud, v, enc, standalone > 0)
}

func (d *Dispatcher) StartDoctypeDecl(ctx context.Context, mem expat.Memory, ud int32, name, sysid, pubid uint32, hasInternal int32) {
	n, ok := d.str(mem, EventStartDoctypeDecl, name)
	if !ok {
		return
	}
	s, ok := d.str(mem, EventStartDoctypeDecl, sysid)
	if !ok {
		return
	}
	p, ok := d.str(mem, EventStartDoctypeDecl, pubid)
	if !ok {
		return
	}
	d.forward(EventStartDoctypeDecl, ud, n, s, p, hasInternal != 0)
}

func (d *Dispatcher) EndDoctypeDecl(ctx context.Context, mem expat.Memory, ud int32) {
	d.forward(EventEndDoctypeDecl, ud)
}

// ElementDecl decodes the content model tree eagerly and releases the
// foreign allocation on every path; the guest side has no reclamation
// for it.
func (d *Dispatcher) ElementDecl(ctx context.Context, mem expat.Memory, ud int32, name, model uint32) {
	defer func() {
		p, ok := d.parserAt(ud)
		if !ok {
			d.logger.Error("content model leaked, no parser at handle",
				zap.Int32("handle", ud), zap.Uint32("model", model))
			return
		}
		if err := p.eng.FreeContentModel(ctx, p.ptr, model); err != nil {
			d.logger.Error("content model free failed",
				zap.Int32("handle", ud), zap.Error(err))
		}
	}()

	n, ok := d.str(mem, EventElementDecl, name)
	if !ok {
		return
	}
	m, err := DecodeModel(mem, model)
	if err != nil {
		d.logger.Error("content model decode failed",
			zap.Int32("handle", ud), zap.Error(err))
		return
	}
	d.forward(EventElementDecl, ud, n, m)
}

func (d *Dispatcher) AttlistDecl(ctx context.Context, mem expat.Memory, ud int32, elname, attname, attType, dflt uint32, isRequired int32) {
	el, ok := d.str(mem, EventAttlistDecl, elname)
	if !ok {
		return
	}
	an, ok := d.str(mem, EventAttlistDecl, attname)
	if !ok {
		return
	}
	at, ok := d.str(mem, EventAttlistDecl, attType)
	if !ok {
		return
	}
	df, ok := d.str(mem, EventAttlistDecl, dflt)
	if !ok {
		return
	}
	d.forward(EventAttlistDecl, ud, el, an, at, df, isRequired != 0)
}

// EntityDecl forwards value as nil for external entities; internal ones
// carry their replacement text, which is length-delimited rather than
// NUL-terminated.
func (d *Dispatcher) EntityDecl(ctx context.Context, mem expat.Memory, ud int32, name uint32, isParam int32, value, valueLen, base, sysid, pubid, notation uint32) {
	n, ok := d.str(mem, EventEntityDecl, name)
	if !ok {
		return
	}
	var val any
	if value != 0 {
		raw, err := mem.Read(value, valueLen)
		if err != nil {
			d.logger.Error("entity value decode failed",
				zap.Int32("handle", ud), zap.Error(err))
			return
		}
		val = string(raw)
	}
	b, ok := d.str(mem, EventEntityDecl, base)
	if !ok {
		return
	}
	s, ok := d.str(mem, EventEntityDecl, sysid)
	if !ok {
		return
	}
	p, ok := d.str(mem, EventEntityDecl, pubid)
	if !ok {
		return
	}
	nt, ok := d.str(mem, EventEntityDecl, notation)
	if !ok {
		return
	}
	d.forward(EventEntityDecl, ud, n, isParam != 0, val, b, s, p, nt)
}

func (d *Dispatcher) StartElement(ctx context.Context, mem expat.Memory, ud int32, name, atts uint32) {
	n, ok := d.str(mem, EventStartElement, name)
	if !ok {
		return
	}
	attrs, err := decodeAttributes(mem, atts)
	if err != nil {
		d.logger.Error("attribute array decode failed",
			zap.Int32("handle", ud), zap.Error(err))
		return
	}
	d.forward(EventStartElement, ud, n, attrs)
}

func (d *Dispatcher) EndElement(ctx context.Context, mem expat.Memory, ud int32, name uint32) {
	n, ok := d.str(mem, EventEndElement, name)
	if !ok {
		return
	}
	d.forward(EventEndElement, ud, n)
}

func (d *Dispatcher) CharacterData(ctx context.Context, mem expat.Memory, ud int32, s, n uint32) {
	raw, err := mem.Read(s, n)
	if err != nil {
		d.logger.Error("character data decode failed",
			zap.Int32("handle", ud), zap.Error(err))
		return
	}
	d.forward(EventCharacterData, ud, string(raw))
}

func (d *Dispatcher) Comment(ctx context.Context, mem expat.Memory, ud int32, s uint32) {
	text, ok := d.str(mem, EventComment, s)
	if !ok {
		return
	}
	d.forward(EventComment, ud, text)
}

func (d *Dispatcher) ProcessingInstruction(ctx context.Context, mem expat.Memory, ud int32, target, data uint32) {
	t, ok := d.str(mem, EventProcessingInstruction, target)
	if !ok {
		return
	}
	dt, ok := d.str(mem, EventProcessingInstruction, data)
	if !ok {
		return
	}
	d.forward(EventProcessingInstruction, ud, t, dt)
}

func (d *Dispatcher) StartCdataSection(ctx context.Context, mem expat.Memory, ud int32) {
	d.forward(EventStartCdataSection, ud)
}

func (d *Dispatcher) EndCdataSection(ctx context.Context, mem expat.Memory, ud int32) {
	d.forward(EventEndCdataSection, ud)
}

func (d *Dispatcher) StartNamespaceDecl(ctx context.Context, mem expat.Memory, ud int32, prefix, uri uint32) {
	pf, ok := d.str(mem, EventStartNamespaceDecl, prefix)
	if !ok {
		return
	}
	u, ok := d.str(mem, EventStartNamespaceDecl, uri)
	if !ok {
		return
	}
	d.forward(EventStartNamespaceDecl, ud, pf, u)
}

func (d *Dispatcher) EndNamespaceDecl(ctx context.Context, mem expat.Memory, ud int32, prefix uint32) {
	pf, ok := d.str(mem, EventEndNamespaceDecl, prefix)
	if !ok {
		return
	}
	d.forward(EventEndNamespaceDecl, ud, pf)
}

func (d *Dispatcher) NotationDecl(ctx context.Context, mem expat.Memory, ud int32, name, base, sysid, pubid uint32) {
	n, ok := d.str(mem, EventNotationDecl, name)
	if !ok {
		return
	}
	b, ok := d.str(mem, EventNotationDecl, base)
	if !ok {
		return
	}
	s, ok := d.str(mem, EventNotationDecl, sysid)
	if !ok {
		return
	}
	p, ok := d.str(mem, EventNotationDecl, pubid)
	if !ok {
		return
	}
	d.forward(EventNotationDecl, ud, n, b, s, p)
}

func (d *Dispatcher) SkippedEntity(ctx context.Context, mem expat.Memory, ud int32, name uint32, isParam int32) {
	n, ok := d.str(mem, EventSkippedEntity, name)
	if !ok {
		return
	}
	d.forward(EventSkippedEntity, ud, n, isParam != 0)
}

func (d *Dispatcher) DefaultData(ctx context.Context, mem expat.Memory, ud int32, s, n uint32) {
	raw, err := mem.Read(s, n)
	if err != nil {
		d.logger.Error("default data decode failed",
			zap.Int32("handle", ud), zap.Error(err))
		return
	}
	d.forward(EventDefault, ud, string(raw))
}

// ExternalEntityRef is the one slot keyed by the foreign parser pointer
// instead of the user-data handle; the handle is recovered from the
// first word of the parser struct before generic dispatch. The return
// value tells the engine whether resolution succeeded.
func (d *Dispatcher) ExternalEntityRef(ctx context.Context, mem expat.Memory, parser expat.Ptr, context_, base, sysid, pubid uint32) int32 {
	ud, err := mem.ReadU32(parser)
	if err != nil {
		d.logger.Error("user data readback failed",
			zap.Uint32("parser", parser), zap.Error(err))
		return 0
	}

	b, ok := d.str(mem, eventExternalEntityRef, base)
	if !ok {
		return 0
	}
	s, ok := d.str(mem, eventExternalEntityRef, sysid)
	if !ok {
		return 0
	}
	p, ok := d.str(mem, eventExternalEntityRef, pubid)
	if !ok {
		return 0
	}

	res, err := d.forward(eventExternalEntityRef, int32(ud), ctx, context_, b, s, p)
	if err != nil {
		return 0
	}
	st, _ := res.(int32)
	return st
}
