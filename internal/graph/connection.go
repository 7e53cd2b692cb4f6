package graph

// ConnectionID identifies a connection within a Diagram, monotonically
// assigned.
type ConnectionID int

// Connection links one block's output port to another block's input port.
type Connection struct {
	id       ConnectionID
	SrcBlock BlockID
	SrcPort  int
	DstBlock BlockID
	DstPort  int
}

// ID returns the connection's diagram-assigned identifier.
func (c *Connection) ID() ConnectionID { return c.id }
