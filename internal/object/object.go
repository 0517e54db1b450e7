package object

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// Type is the four-way git object type tag. The numeric values match
// the on-disk type_num column and git's own pack type numbers.
type Type int

const (
	TypeCommit Type = 1
	TypeTree   Type = 2
	TypeBlob   Type = 3
	TypeTag    Type = 4
)

// String returns the canonical git type name.
func (t Type) String() string {
	switch t {
	case TypeCommit:
		return "commit"
	case TypeTree:
		return "tree"
	case TypeBlob:
		return "blob"
	case TypeTag:
		return "tag"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Valid reports whether t is one of the four git object types.
func (t Type) Valid() bool {
	return t >= TypeCommit && t <= TypeTag
}

// ParseType parses a canonical git type name.
func ParseType(name string) (Type, error) {
	switch name {
	case "commit":
		return TypeCommit, nil
	case "tree":
		return TypeTree, nil
	case "blob":
		return TypeBlob, nil
	case "tag":
		return TypeTag, nil
	default:
		return 0, fmt.Errorf("unknown object type %q", name)
	}
}

// IDLen is the byte length of an object ID (SHA-1).
const IDLen = 20

// ID is a 20-byte SHA-1 object identifier.
type ID [IDLen]byte

// ZeroID is the all-zero object ID. By convention it marks a ref that
// should not exist in compare-and-swap operations.
var ZeroID ID

// Hex returns the lowercase hex representation of the ID.
func (id ID) Hex() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether the ID is all zero bytes.
func (id ID) IsZero() bool {
	return id == ZeroID
}

// ParseID parses a 40-character hex object ID.
func ParseID(s string) (ID, error) {
	var id ID
	if len(s) != IDLen*2 {
		return id, fmt.Errorf("invalid object ID %q: want %d hex chars", s, IDLen*2)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid object ID %q: %w", s, err)
	}
	copy(id[:], b)
	return id, nil
}

// IDFromBytes converts a raw 20-byte slice into an ID.
func IDFromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != IDLen {
		return id, fmt.Errorf("invalid object ID length %d: want %d", len(b), IDLen)
	}
	copy(id[:], b)
	return id, nil
}

// Object is a parsed-free git object: a type tag and the raw payload
// bytes (the content after the "<type> <len>\0" header).
type Object struct {
	Type Type
	Data []byte
}

// NewBlob wraps raw bytes as a blob object.
func NewBlob(data []byte) *Object {
	return &Object{Type: TypeBlob, Data: data}
}

// ID computes the object's SHA-1 over the canonical git framing
// "<type> <len>\0" followed by the payload.
func (o *Object) ID() ID {
	h := sha1.New()
	fmt.Fprintf(h, "%s %d\x00", o.Type, len(o.Data))
	h.Write(o.Data)
	var id ID
	copy(id[:], h.Sum(nil))
	return id
}

// Size returns the raw payload length.
func (o *Object) Size() int {
	return len(o.Data)
}
