package parser

import (
	"github.com/xmlwasm/expat"
	"github.com/xmlwasm/expat/errors"
)

// Model is one node of a DTD element content model, decoded from the
// engine's XML_Content tree. The tree is owned by the host; the foreign
// allocation is released immediately after decoding.
type Model struct {
	Name     string
	Type     expat.ContentType
	Quant    expat.Quantifier
	Children []*Model
}

// XML_Content layout: type and quant u32s, a name pointer, a child
// count, and a pointer to a contiguous array of child nodes.
const modelStride = 20

// DecodeModel walks the fixed-stride content model record at ptr into a
// host tree. Children live in one contiguous foreign array, recursed in
// declaration order.
func DecodeModel(mem expat.Memory, ptr uint32) (*Model, error) {
	if ptr == 0 {
		return nil, errors.InvalidInput(errors.PhaseDecode, "NULL content model")
	}

	typ, err := mem.ReadU32(ptr)
	if err != nil {
		return nil, err
	}
	quant, err := mem.ReadU32(ptr + 4)
	if err != nil {
		return nil, err
	}
	namePtr, err := mem.ReadU32(ptr + 8)
	if err != nil {
		return nil, err
	}
	numChildren, err := mem.ReadU32(ptr + 12)
	if err != nil {
		return nil, err
	}
	childBase, err := mem.ReadU32(ptr + 16)
	if err != nil {
		return nil, err
	}

	name, _, err := expat.CString(mem, namePtr)
	if err != nil {
		return nil, err
	}

	m := &Model{
		Name:  name,
		Type:  expat.ContentType(typ),
		Quant: expat.Quantifier(quant),
	}
	if numChildren == 0 {
		return m, nil
	}
	if childBase == 0 {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("content model claims %d children with NULL child array", numChildren).
			Build()
	}

	m.Children = make([]*Model, 0, numChildren)
	for i := uint32(0); i < numChildren; i++ {
		child, err := DecodeModel(mem, childBase+i*modelStride)
		if err != nil {
			return nil, err
		}
		m.Children = append(m.Children, child)
	}
	return m, nil
}
