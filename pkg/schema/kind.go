package schema

// RawValueSize is the capacity of a raw channel value in bytes.
// Longer payloads are silently clamped by the proxy layer.
const RawValueSize = 16

// ValueKind identifies the representation of a channel value.
type ValueKind uint8

const (
	KindUnknown ValueKind = iota
	KindBool
	KindInt32
	KindFloat32
	KindRaw
)

// String returns the value kind name.
func (k ValueKind) String() string {
	names := []string{"unknown", "bool", "int32", "float32", "raw"}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// IsNumeric returns true for kinds that support threshold comparison.
func (k ValueKind) IsNumeric() bool {
	return k == KindInt32 || k == KindFloat32
}

// FixedSize returns the wire size in bytes for fixed-size kinds.
// Raw and unknown kinds have no fixed size and return 0.
func (k ValueKind) FixedSize() int {
	switch k {
	case KindBool:
		return 1
	case KindInt32, KindFloat32:
		return 4
	default:
		return 0
	}
}
