package types

import (
	"encoding/json"
	"fmt"
)

// Side is a market outcome side.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

func (s Side) String() string {
	return string(s)
}

func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

func (s *Side) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	side := Side(raw)
	if !side.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSide, raw)
	}
	*s = side
	return nil
}
