package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/xmlwasm/expat"
)

// Callbacks receives every event the guest's trampolines forward across
// the boundary. Arguments are raw: ud is the user-data handle stored on
// the parser, pointer arguments are offsets into mem (0 for NULL), and
// booleans arrive as C ints.
//
// ExternalEntityRef is the one slot whose first argument is the foreign
// parser pointer rather than the user-data handle; expat reuses the
// parser argument there, so the implementation must recover the handle
// from the parser struct itself.
type Callbacks interface {
	XMLDecl(ctx context.Context, mem expat.Memory, ud int32, version, encoding uint32, standalone int32)
	StartDoctypeDecl(ctx context.Context, mem expat.Memory, ud int32, name, sysid, pubid uint32, hasInternal int32)
	EndDoctypeDecl(ctx context.Context, mem expat.Memory, ud int32)
	ElementDecl(ctx context.Context, mem expat.Memory, ud int32, name, model uint32)
	AttlistDecl(ctx context.Context, mem expat.Memory, ud int32, elname, attname, attType, dflt uint32, isRequired int32)
	EntityDecl(ctx context.Context, mem expat.Memory, ud int32, name uint32, isParam int32, value, valueLen, base, sysid, pubid, notation uint32)
	StartElement(ctx context.Context, mem expat.Memory, ud int32, name, atts uint32)
	EndElement(ctx context.Context, mem expat.Memory, ud int32, name uint32)
	CharacterData(ctx context.Context, mem expat.Memory, ud int32, s, n uint32)
	Comment(ctx context.Context, mem expat.Memory, ud int32, s uint32)
	ProcessingInstruction(ctx context.Context, mem expat.Memory, ud int32, target, data uint32)
	StartCdataSection(ctx context.Context, mem expat.Memory, ud int32)
	EndCdataSection(ctx context.Context, mem expat.Memory, ud int32)
	StartNamespaceDecl(ctx context.Context, mem expat.Memory, ud int32, prefix, uri uint32)
	EndNamespaceDecl(ctx context.Context, mem expat.Memory, ud int32, prefix uint32)
	NotationDecl(ctx context.Context, mem expat.Memory, ud int32, name, base, sysid, pubid uint32)
	SkippedEntity(ctx context.Context, mem expat.Memory, ud int32, name uint32, isParam int32)
	DefaultData(ctx context.Context, mem expat.Memory, ud int32, s, n uint32)
	ExternalEntityRef(ctx context.Context, mem expat.Memory, parser expat.Ptr, context_, base, sysid, pubid uint32) int32
}

// CallbackBinder is implemented by engines (real or test fakes) that take
// a Callbacks implementation before first use.
type CallbackBinder interface {
	BindCallbacks(ctx context.Context, cb Callbacks) error
}

// registerCallbackModule instantiates the fixed slot table as a wazero
// host module. This happens once per runtime; the guest's C trampolines
// link against it by import.
func registerCallbackModule(ctx context.Context, r wazero.Runtime, cb Callbacks) error {
	mem := func(mod api.Module) expat.Memory { return WrapMemory(mod.Memory()) }

	b := r.NewHostModuleBuilder(CallbackModule)

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, ud int32, version, encoding uint32, standalone int32) {
		cb.XMLDecl(ctx, mem(mod), ud, version, encoding, standalone)
	}).Export(impXMLDecl)

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, ud int32, name, sysid, pubid uint32, hasInternal int32) {
		cb.StartDoctypeDecl(ctx, mem(mod), ud, name, sysid, pubid, hasInternal)
	}).Export(impStartDoctypeDecl)

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, ud int32) {
		cb.EndDoctypeDecl(ctx, mem(mod), ud)
	}).Export(impEndDoctypeDecl)

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, ud int32, name, model uint32) {
		cb.ElementDecl(ctx, mem(mod), ud, name, model)
	}).Export(impElementDecl)

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, ud int32, elname, attname, attType, dflt uint32, isRequired int32) {
		cb.AttlistDecl(ctx, mem(mod), ud, elname, attname, attType, dflt, isRequired)
	}).Export(impAttlistDecl)

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, ud int32, name uint32, isParam int32, value, valueLen, base, sysid, pubid, notation uint32) {
		cb.EntityDecl(ctx, mem(mod), ud, name, isParam, value, valueLen, base, sysid, pubid, notation)
	}).Export(impEntityDecl)

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, ud int32, name, atts uint32) {
		cb.StartElement(ctx, mem(mod), ud, name, atts)
	}).Export(impStartElement)

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, ud int32, name uint32) {
		cb.EndElement(ctx, mem(mod), ud, name)
	}).Export(impEndElement)

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, ud int32, s, n uint32) {
		cb.CharacterData(ctx, mem(mod), ud, s, n)
	}).Export(impCharacterData)

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, ud int32, s uint32) {
		cb.Comment(ctx, mem(mod), ud, s)
	}).Export(impComment)

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, ud int32, target, data uint32) {
		cb.ProcessingInstruction(ctx, mem(mod), ud, target, data)
	}).Export(impProcessingInstruction)

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, ud int32) {
		cb.StartCdataSection(ctx, mem(mod), ud)
	}).Export(impStartCdataSection)

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, ud int32) {
		cb.EndCdataSection(ctx, mem(mod), ud)
	}).Export(impEndCdataSection)

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, ud int32, prefix, uri uint32) {
		cb.StartNamespaceDecl(ctx, mem(mod), ud, prefix, uri)
	}).Export(impStartNamespaceDecl)

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, ud int32, prefix uint32) {
		cb.EndNamespaceDecl(ctx, mem(mod), ud, prefix)
	}).Export(impEndNamespaceDecl)

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, ud int32, name, base, sysid, pubid uint32) {
		cb.NotationDecl(ctx, mem(mod), ud, name, base, sysid, pubid)
	}).Export(impNotationDecl)

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, ud int32, name uint32, isParam int32) {
		cb.SkippedEntity(ctx, mem(mod), ud, name, isParam)
	}).Export(impSkippedEntity)

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, ud int32, s, n uint32) {
		cb.DefaultData(ctx, mem(mod), ud, s, n)
	}).Export(impDefaultData)

	b.NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module, parser, context_, base, sysid, pubid uint32) int32 {
		return cb.ExternalEntityRef(ctx, mem(mod), parser, context_, base, sysid, pubid)
	}).Export(impExternalEntityRef)

	_, err := b.Instantiate(ctx)
	return err
}
