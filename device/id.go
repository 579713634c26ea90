package device

import "github.com/google/uuid"

// ID is a process-unique, locally generated identifier for a managed
// device. It carries no meaning to the Tasmota device itself - that's what
// Config's device topic is for.
type ID uuid.UUID

// NewID allocates a fresh device identifier.
func NewID() ID { return ID(uuid.New()) }

func (id ID) String() string { return uuid.UUID(id).String() }
