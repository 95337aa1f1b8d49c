// package cadata provides content addressed identifiers for programs.
package cadata

import (
	"bytes"
	"crypto/subtle"
	"database/sql/driver"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

var _ driver.Valuer = ID{}

const (
	IDSize = 32
	// Base64Alphabet is used when encoding IDs as base64 strings.
	// It is a URL and filepath safe encoding, which maintains ordering.
	Base64Alphabet = "-0123456789" + "ABCDEFGHIJKLMNOPQRSTUVWXYZ" + "_" + "abcdefghijklmnopqrstuvwxyz"
)

// ID identifies a particular piece of data
type ID [IDSize]byte

// HashFunc computes the ID of data
type HashFunc = func(data []byte) ID

var enc = base64.NewEncoding(Base64Alphabet).WithPadding(base64.NoPadding)

func IDFromBytes(x []byte) ID {
	id := ID{}
	copy(id[:], x)
	return id
}

// ParseID parses the base64 form produced by String
func ParseID(x string) (ID, error) {
	var id ID
	if err := id.UnmarshalBase64([]byte(x)); err != nil {
		return ID{}, err
	}
	return id, nil
}

func (id ID) String() string {
	return enc.EncodeToString(id[:])
}

// UnmarshalBase64 decodes data into the ID using Base64Alphabet
func (id *ID) UnmarshalBase64(data []byte) error {
	if enc.DecodedLen(len(data)) != IDSize {
		return fmt.Errorf("wrong length for base64 ID: %d", len(data))
	}
	n, err := enc.Decode(id[:], data)
	if err != nil {
		return err
	}
	if n != IDSize {
		return errors.New("base64 string is too short")
	}
	return nil
}

func (a ID) Compare(b ID) int {
	return bytes.Compare(a[:], b[:])
}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(enc.EncodeToString(id[:]))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return id.UnmarshalBase64([]byte(s))
}

func (id *ID) Scan(x any) error {
	switch x := x.(type) {
	case []byte:
		if len(x) != IDSize {
			return fmt.Errorf("wrong length for cadata.ID HAVE: %d WANT: %d", len(x), IDSize)
		}
		*id = IDFromBytes(x)
		return nil
	default:
		return fmt.Errorf("cannot scan type %T", x)
	}
}

func (id ID) Value() (driver.Value, error) {
	return id[:], nil
}

type ErrBadData struct {
	Have ID
	Want ID
}

func (e ErrBadData) Error() string {
	return fmt.Sprintf("bad data. HAVE: %v WANT: %v", e.Have, e.Want)
}

// Check returns ErrBadData if data does not hash to expected
func Check(hf HashFunc, expected ID, data []byte) error {
	actual := hf(data)
	if subtle.ConstantTimeCompare(actual[:], expected[:]) != 1 {
		return ErrBadData{Have: actual, Want: expected}
	}
	return nil
}
