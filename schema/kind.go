package schema

type Kind uint8

const (
	KindU8 Kind = iota
	KindS8
	KindU16
	KindS16
	KindU32
	KindS32
	KindU64
	KindS64
	KindF32
	KindF64
	KindBlob
	KindString
	KindPointer
	KindArray
	KindRef
	KindStruct
	KindRepeat
)

var kindNames = [...]string{
	KindU8:      "u8",
	KindS8:      "s8",
	KindU16:     "u16",
	KindS16:     "s16",
	KindU32:     "u32",
	KindS32:     "s32",
	KindU64:     "u64",
	KindS64:     "s64",
	KindF32:     "f32",
	KindF64:     "f64",
	KindBlob:    "blob",
	KindString:  "string",
	KindPointer: "pointer",
	KindArray:   "array",
	KindRef:     "ref",
	KindStruct:  "struct",
	KindRepeat:  "repeat",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsPrimitive reports whether k is a fixed-width number.
func (k Kind) IsPrimitive() bool {
	return k <= KindF64
}

func (k Kind) IsSigned() bool {
	switch k {
	case KindS8, KindS16, KindS32, KindS64:
		return true
	}
	return false
}

func (k Kind) IsFloat() bool {
	return k == KindF32 || k == KindF64
}

func primitiveKind(class byte, width int) (Kind, bool) {
	switch class {
	case 'u':
		switch width {
		case 1:
			return KindU8, true
		case 2:
			return KindU16, true
		case 4:
			return KindU32, true
		case 8:
			return KindU64, true
		}
	case 's':
		switch width {
		case 1:
			return KindS8, true
		case 2:
			return KindS16, true
		case 4:
			return KindS32, true
		case 8:
			return KindS64, true
		}
	case 'f':
		switch width {
		case 4:
			return KindF32, true
		case 8:
			return KindF64, true
		}
	}
	return 0, false
}
