// Package stringid wraps google/uuid in a string type that is convenient
// to embed in JSON payloads and redis keys.
package stringid

import (
	"github.com/google/uuid"
)

type ID string

func New() ID {
	return ID(uuid.New().String())
}

func (id ID) String() string {
	return string(id)
}

func (id ID) UUID() uuid.UUID {
	if id == "" {
		return uuid.Nil
	}
	return uuid.MustParse(string(id))
}

func (id ID) MarshalBinary() (data []byte, err error) {
	return []byte(id), nil
}
