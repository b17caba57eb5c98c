package engine

// Guest export names: expat proper, the registration shim, and the
// allocator. The shim is part of the host-embedding WASM build; each
// xw_set_* export installs the fixed C trampoline for one event kind on
// the given parser.
const (
	fnParserCreate   = "XML_ParserCreate"
	fnParserCreateNS = "XML_ParserCreateNS"
	fnParserReset    = "XML_ParserReset"
	fnParserFree     = "XML_ParserFree"

	fnGetBuffer   = "XML_GetBuffer"
	fnParseBuffer = "XML_ParseBuffer"
	fnStopParser  = "XML_StopParser"
	fnResume      = "XML_ResumeParser"

	fnGetErrorCode     = "XML_GetErrorCode"
	fnErrorString      = "XML_ErrorString"
	fnGetCurrentLine   = "XML_GetCurrentLineNumber"
	fnGetCurrentColumn = "XML_GetCurrentColumnNumber"
	fnGetByteIndex     = "XML_GetCurrentByteIndex"

	fnSetUserData           = "XML_SetUserData"
	fnSetReturnNSTriplet    = "XML_SetReturnNSTriplet"
	fnSetParamEntityParsing = "XML_SetParamEntityParsing"
	fnSetBase               = "XML_SetBase"
	fnGetBase               = "XML_GetBase"

	fnExternalEntityParserCreate = "XML_ExternalEntityParserCreate"
	fnFreeContentModel           = "XML_FreeContentModel"

	fnMalloc     = "malloc"
	fnFree       = "free"
	fnInitialize = "_initialize"
)

// Shim registration exports, one per event kind.
const (
	setXMLDecl               = "xw_set_xml_decl_handler"
	setStartDoctypeDecl      = "xw_set_start_doctype_decl_handler"
	setEndDoctypeDecl        = "xw_set_end_doctype_decl_handler"
	setElementDecl           = "xw_set_element_decl_handler"
	setAttlistDecl           = "xw_set_attlist_decl_handler"
	setEntityDecl            = "xw_set_entity_decl_handler"
	setStartElement          = "xw_set_start_element_handler"
	setEndElement            = "xw_set_end_element_handler"
	setCharacterData         = "xw_set_character_data_handler"
	setComment               = "xw_set_comment_handler"
	setProcessingInstruction = "xw_set_processing_instruction_handler"
	setStartCdataSection     = "xw_set_start_cdata_section_handler"
	setEndCdataSection       = "xw_set_end_cdata_section_handler"
	setStartNamespaceDecl    = "xw_set_start_namespace_decl_handler"
	setEndNamespaceDecl      = "xw_set_end_namespace_decl_handler"
	setNotationDecl          = "xw_set_notation_decl_handler"
	setSkippedEntity         = "xw_set_skipped_entity_handler"
	setExternalEntityRef     = "xw_set_external_entity_ref_handler"
	setDefault               = "xw_set_default_handler"
	setDefaultExpand         = "xw_set_default_handler_expand"
)

// handlerSetters is every unconditional registration export. The default
// handler is installed separately because its expanding and non-expanding
// variants are mutually exclusive.
var handlerSetters = []string{
	setXMLDecl,
	setStartDoctypeDecl,
	setEndDoctypeDecl,
	setElementDecl,
	setAttlistDecl,
	setEntityDecl,
	setStartElement,
	setEndElement,
	setCharacterData,
	setComment,
	setProcessingInstruction,
	setStartCdataSection,
	setEndCdataSection,
	setStartNamespaceDecl,
	setEndNamespaceDecl,
	setNotationDecl,
	setSkippedEntity,
	setExternalEntityRef,
}

// CallbackModule is the host module name the guest's trampolines import.
const CallbackModule = "expat"

// Import names within CallbackModule, one fixed slot per event kind.
const (
	impXMLDecl               = "xml_decl"
	impStartDoctypeDecl      = "start_doctype_decl"
	impEndDoctypeDecl        = "end_doctype_decl"
	impElementDecl           = "element_decl"
	impAttlistDecl           = "attlist_decl"
	impEntityDecl            = "entity_decl"
	impStartElement          = "start_element"
	impEndElement            = "end_element"
	impCharacterData         = "character_data"
	impComment               = "comment"
	impProcessingInstruction = "processing_instruction"
	impStartCdataSection     = "start_cdata_section"
	impEndCdataSection       = "end_cdata_section"
	impStartNamespaceDecl    = "start_namespace_decl"
	impEndNamespaceDecl      = "end_namespace_decl"
	impNotationDecl          = "notation_decl"
	impSkippedEntity         = "skipped_entity"
	impDefaultData           = "default_data"
	impExternalEntityRef     = "external_entity_ref"
)
