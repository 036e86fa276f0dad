package llvmgen

import "strings"

// primitive is the set of ZULON primitive type names that never need a
// struct definition emitted for them.
var primitive = map[string]bool{
	"i8": true, "i16": true, "i32": true, "i64": true,
	"u8": true, "u16": true, "u32": true, "u64": true,
	"f32": true, "f64": true, "bool": true, "char": true,
	"str": true, "string": true, "()": true, "!": true, "": true,
}

// llvmType maps a ZULON type string (as carried on lir.Function.ParamTy/
// ResultTy, teacher-style "class hints, not a full type system") to its
// LLVM textual type. Nominal struct/enum names fall through to a named
// struct reference, stripped of generic arguments (spec.md section 4.9
// only details the Outcome<T,E> case; other nominal types fall back to
// an opaque declaration — see DESIGN.md).
func llvmType(ty string) string {
	switch ty {
	case "i8", "u8":
		return "i8"
	case "i16", "u16":
		return "i16"
	case "i32", "u32", "char":
		return "i32"
	case "i64", "u64":
		return "i64"
	case "f32":
		return "float"
	case "f64":
		return "double"
	case "bool":
		return "i1"
	case "str", "string":
		return "i8*"
	case "", "()", "!":
		return "void"
	default:
		return "%" + structBase(ty)
	}
}

// structBase strips generic arguments from a nominal type name:
// "Outcome<i32, ParseError>" -> "Outcome".
func structBase(ty string) string {
	if i := strings.IndexByte(ty, '<'); i >= 0 {
		return strings.TrimSpace(ty[:i])
	}

	return ty
}

func isOutcome(ty string) bool {
	return structBase(ty) == "Outcome"
}

func pointeeType(ptrTy string) string {
	return strings.TrimSuffix(ptrTy, "*")
}

// typeSize returns a (size, align) in bytes for ty, used to feed
// internal/layout's Calculator when computing a struct or enum field's
// place in its owning type. Nominal types (structs, enums, str, and any
// other non-primitive) are sized as a single pointer-wide slot, the same
// width emitReturn already widens scalar payloads to for Outcome.
func typeSize(ty string) (size, align int64) {
	switch ty {
	case "i8", "u8", "bool":
		return 1, 1
	case "i16", "u16":
		return 2, 2
	case "i32", "u32", "char", "f32":
		return 4, 4
	case "i64", "u64", "f64":
		return 8, 8
	case "", "()", "!":
		return 1, 1
	default:
		return 8, 8
	}
}

// llvmIntType maps a byte width computed by internal/layout back to the
// LLVM integer type that fills it, for rendering a discriminant or a
// pointer-sized payload slot.
func llvmIntType(byteSize int64) string {
	switch byteSize {
	case 1:
		return "i8"
	case 2:
		return "i16"
	case 4:
		return "i32"
	default:
		return "i64"
	}
}
