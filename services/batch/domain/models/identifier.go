package models

// IdentifierPrefix starts every batch identifier.
const IdentifierPrefix = "BTC"

// Identifier is the compact external identifier of a batch. It is minted once
// by the identifier codec and never changes.
type Identifier string

// String returns the underlying string value.
func (id Identifier) String() string {
	return string(id)
}
