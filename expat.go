package expat

// Ptr is a pointer into the foreign module's 32-bit linear memory.
// Parser handles returned by the engine are Ptrs to native structs.
type Ptr = uint32

// Status is expat's tri-state result for a feed operation.
type Status int32

const (
	StatusError     Status = 0
	StatusOK        Status = 1
	StatusSuspended Status = 2
)

// Parameter entity parsing modes (XML_ParamEntityParsing).
const (
	ParamEntityNever            uint32 = 0
	ParamEntityUnlessStandalone uint32 = 1
	ParamEntityAlways           uint32 = 2
)

// ContentType tags a node of a DTD element content model (XML_Content_Type).
type ContentType uint32

const (
	ContentEmpty ContentType = iota + 1
	ContentAny
	ContentMixed
	ContentName
	ContentChoice
	ContentSeq
)

func (t ContentType) String() string {
	switch t {
	case ContentEmpty:
		return "EMPTY"
	case ContentAny:
		return "ANY"
	case ContentMixed:
		return "MIXED"
	case ContentName:
		return "NAME"
	case ContentChoice:
		return "CHOICE"
	case ContentSeq:
		return "SEQ"
	}
	return "UNKNOWN"
}

// Quantifier tags the repetition of a content model node (XML_Content_Quant).
type Quantifier uint32

const (
	QuantNone     Quantifier = iota // exactly one
	QuantOptional                   // ?
	QuantRepeat                     // *
	QuantPlus                       // +
)

func (q Quantifier) String() string {
	switch q {
	case QuantNone:
		return ""
	case QuantOptional:
		return "?"
	case QuantRepeat:
		return "*"
	case QuantPlus:
		return "+"
	}
	return "UNKNOWN"
}

// Memory is read/write access to the foreign module's linear memory.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU32(offset uint32) (uint32, error)
	WriteU32(offset uint32, value uint32) error
}

// MemorySizer provides the current size of linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// cstringStep bounds each scan while searching for a terminating NUL.
const cstringStep = 256

// CString decodes a NUL-terminated byte string at ptr. A zero ptr decodes
// to ("", false). Expat hands the host UTF-8 regardless of input encoding,
// so no transcoding happens here.
func CString(mem Memory, ptr uint32) (string, bool, error) {
	if ptr == 0 {
		return "", false, nil
	}
	var buf []byte
	for off := ptr; ; off += cstringStep {
		step := uint32(cstringStep)
		if sz, ok := mem.(MemorySizer); ok {
			if off >= sz.Size() {
				break
			}
			if rem := sz.Size() - off; rem < step {
				step = rem
			}
		}
		chunk, err := mem.Read(off, step)
		if err != nil {
			return "", false, err
		}
		for i, b := range chunk {
			if b == 0 {
				buf = append(buf, chunk[:i]...)
				return string(buf), true, nil
			}
		}
		buf = append(buf, chunk...)
		if uint32(len(chunk)) < step {
			break
		}
	}
	return "", false, errUnterminated
}

type unterminatedError struct{}

func (unterminatedError) Error() string { return "unterminated C string in linear memory" }

var errUnterminated error = unterminatedError{}
