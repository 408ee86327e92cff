package models

import "fmt"

// Role identifies the kind of custodian that recorded a stage.
type Role string

const (
	RoleProducer    Role = "PRODUCER"
	RoleTransporter Role = "TRANSPORTER"
	RoleSeller      Role = "SELLER"
)

// ParseRole converts s into a Role or returns an error for unknown roles.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleProducer, RoleTransporter, RoleSeller:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// String returns the underlying string value.
func (r Role) String() string {
	return string(r)
}

// State is the lifecycle state of a batch, derived from its last stage.
type State string

const (
	StateCreated   State = "CREATED"
	StateInTransit State = "IN_TRANSIT"
	StateAtSeller  State = "AT_SELLER"
	StateSold      State = "SOLD"
)

// String returns the underlying string value.
func (s State) String() string {
	return string(s)
}

// Terminal reports whether no further stage may be appended.
func (s State) Terminal() bool {
	return s == StateSold
}

// StateAfter returns the state a batch is in when rec is its most recent stage.
func StateAfter(rec StageRecord) State {
	switch d := rec.Details.(type) {
	case TransportDetails:
		return StateInTransit
	case SellerDetails:
		if d.Sold {
			return StateSold
		}
		return StateAtSeller
	default:
		return StateCreated
	}
}
