package book

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Key is per-book symmetric key. Vendor API and old persisted settings carry
// it as signed bytes, we always keep it unsigned.
type Key []byte

// legacy key used by older API generation for every book.
var legacy = []int{115, -36, 110, -93, 78, -22, 63, -71, 97, -126, 86, 66, -36, 46, 13, -96}

// LegacyKey returns copy of the fixed key used when book has no header.
func LegacyKey() Key {
	return KeyFromSigned(legacy)
}

// KeyFromSigned masks every value to the low 8 bits.
func KeyFromSigned(values []int) Key {
	k := make(Key, len(values))
	for i, v := range values {
		k[i] = byte(v & 0xff)
	}
	return k
}

// ParseKey accepts hex representation.
func ParseKey(s string) (Key, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("unable to parse key: %w", err)
	}
	return Key(data), nil
}

// Hex returns lower-case two digits per byte representation.
func (k Key) Hex() string {
	return hex.EncodeToString(k)
}

func (k Key) String() string {
	return k.Hex()
}

// MarshalJSON writes key as array of unsigned integers.
func (k Key) MarshalJSON() ([]byte, error) {
	if k == nil {
		return []byte("null"), nil
	}
	values := make([]int, len(k))
	for i, b := range k {
		values[i] = int(b)
	}
	return json.Marshal(values)
}

// UnmarshalJSON accepts array of signed or unsigned integers.
func (k *Key) UnmarshalJSON(data []byte) error {
	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("unable to decode key: %w", err)
	}
	if values == nil {
		*k = nil
		return nil
	}
	for _, v := range values {
		if v < -128 || v > 255 {
			return fmt.Errorf("key byte value out of range: %d", v)
		}
	}
	*k = KeyFromSigned(values)
	return nil
}
