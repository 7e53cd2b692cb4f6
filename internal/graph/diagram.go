package graph

import "github.com/libetude/libetude/internal/errs"

// DiagramConfig bounds a Diagram's capacity, matching spec §4.D's "bounded
// array" block storage.
type DiagramConfig struct {
	MaxBlocks      int
	MaxConnections int
}

// DefaultDiagramConfig returns generous bounds suitable for a single
// synthesis pipeline.
func DefaultDiagramConfig() DiagramConfig {
	return DiagramConfig{MaxBlocks: 256, MaxConnections: 1024}
}

// Diagram is a DSP block graph: a bounded set of blocks connected by typed
// ports, executed in topological order once per frame.
type Diagram struct {
	cfg         DiagramConfig
	blocks      []Block
	blockByID   map[BlockID]int // id -> index in blocks; removal deletes the entry and shifts later indices down
	connections []Connection
	nextBlockID BlockID
	nextConnID  ConnectionID
	validated   bool
}

// NewDiagram creates an empty diagram under cfg.
func NewDiagram(cfg DiagramConfig) *Diagram {
	return &Diagram{cfg: cfg, blockByID: make(map[BlockID]int)}
}

// AddBlock copies b into the diagram's bounded storage and assigns it an
// id. The diagram's topology is considered unvalidated after this call.
func (d *Diagram) AddBlock(b Block) (BlockID, error) {
	if len(d.blocks) >= d.cfg.MaxBlocks {
		return 0, errs.New(errs.InvalidDiagram, "diagram is full")
	}
	id := d.nextBlockID
	d.nextBlockID++
	b.id = id
	d.blocks = append(d.blocks, b)
	d.blockByID[id] = len(d.blocks) - 1
	d.validated = false
	return id, nil
}

// RemoveBlock deletes the block and disconnects every connection
// referencing it.
func (d *Diagram) RemoveBlock(id BlockID) error {
	idx, ok := d.blockByID[id]
	if !ok {
		return errs.Newf(errs.NotFound, "unknown block id %d", id)
	}

	kept := d.connections[:0]
	for _, c := range d.connections {
		if c.SrcBlock == id || c.DstBlock == id {
			continue
		}
		kept = append(kept, c)
	}
	d.connections = kept

	d.blocks = append(d.blocks[:idx], d.blocks[idx+1:]...)
	delete(d.blockByID, id)
	for bid, i := range d.blockByID {
		if i > idx {
			d.blockByID[bid] = i - 1
		}
	}
	d.validated = false
	return nil
}

// Block returns a pointer to the live block with the given id, or nil.
func (d *Diagram) Block(id BlockID) *Block {
	idx, ok := d.blockByID[id]
	if !ok {
		return nil
	}
	return &d.blocks[idx]
}

// Connect links srcBlock's output port srcPort to dstBlock's input port
// dstPort, per spec §4.D's failure conditions: unknown block ids,
// out-of-range port indices, mismatched port kinds, or a full diagram.
func (d *Diagram) Connect(srcBlock BlockID, srcPort int, dstBlock BlockID, dstPort int) (ConnectionID, error) {
	if len(d.connections) >= d.cfg.MaxConnections {
		return 0, errs.New(errs.InvalidDiagram, "diagram connection table is full")
	}

	src := d.Block(srcBlock)
	if src == nil {
		return 0, errs.Newf(errs.NotFound, "unknown source block id %d", srcBlock)
	}
	dst := d.Block(dstBlock)
	if dst == nil {
		return 0, errs.Newf(errs.NotFound, "unknown destination block id %d", dstBlock)
	}
	if srcPort < 0 || srcPort >= len(src.Ports) {
		return 0, errs.Newf(errs.InvalidArgument, "source port index %d out of range", srcPort)
	}
	if dstPort < 0 || dstPort >= len(dst.Ports) {
		return 0, errs.Newf(errs.InvalidArgument, "destination port index %d out of range", dstPort)
	}
	if src.Ports[srcPort].Kind != dst.Ports[dstPort].Kind {
		return 0, errs.Newf(errs.InvalidArgument, "port kind mismatch: %s vs %s", src.Ports[srcPort].Kind, dst.Ports[dstPort].Kind)
	}

	id := d.nextConnID
	d.nextConnID++
	d.connections = append(d.connections, Connection{id: id, SrcBlock: srcBlock, SrcPort: srcPort, DstBlock: dstBlock, DstPort: dstPort})
	d.validated = false
	return id, nil
}

// Validate confirms every block has a processing callback, every
// connection's endpoints exist with matching port kinds, and the
// connection graph contains no cycle.
func (d *Diagram) Validate() error {
	for _, b := range d.blocks {
		if b.Process == nil {
			return errs.Newf(errs.InvalidDiagram, "block %d (%s) has no processing callback", b.id, b.Name)
		}
	}

	for _, c := range d.connections {
		src := d.Block(c.SrcBlock)
		dst := d.Block(c.DstBlock)
		if src == nil || dst == nil {
			return errs.Newf(errs.InvalidDiagram, "connection %d references a removed block", c.id)
		}
		if c.SrcPort < 0 || c.SrcPort >= len(src.Ports) || c.DstPort < 0 || c.DstPort >= len(dst.Ports) {
			return errs.Newf(errs.InvalidDiagram, "connection %d references an out-of-range port", c.id)
		}
		if src.Ports[c.SrcPort].Kind != dst.Ports[c.DstPort].Kind {
			return errs.Newf(errs.InvalidDiagram, "connection %d has mismatched port kinds", c.id)
		}
	}

	if _, err := d.topoOrder(); err != nil {
		return err
	}

	d.validated = true
	return nil
}

// topoOrder computes Kahn's-algorithm topological order over the block
// graph induced by connections. It fails with InvalidDiagram if the
// in-degree vector does not fully drain, meaning the graph has a cycle.
func (d *Diagram) topoOrder() ([]BlockID, error) {
	inDegree := make(map[BlockID]int, len(d.blocks))
	adj := make(map[BlockID][]BlockID, len(d.blocks))
	for _, b := range d.blocks {
		inDegree[b.id] = 0
	}
	for _, c := range d.connections {
		adj[c.SrcBlock] = append(adj[c.SrcBlock], c.DstBlock)
		inDegree[c.DstBlock]++
	}

	queue := make([]BlockID, 0, len(d.blocks))
	for _, b := range d.blocks {
		if inDegree[b.id] == 0 {
			queue = append(queue, b.id)
		}
	}

	order := make([]BlockID, 0, len(d.blocks))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range adj[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(d.blocks) {
		return nil, errs.New(errs.InvalidDiagram, "diagram contains a cycle")
	}
	return order, nil
}

// Initialize runs every block's Init hook, in no particular order.
func (d *Diagram) Initialize() error {
	for i := range d.blocks {
		if d.blocks[i].Init == nil {
			continue
		}
		if err := d.blocks[i].Init(); err != nil {
			return errs.Wrap(errs.Internal, "block init failed", err)
		}
	}
	return nil
}

// Process runs the diagram once for frameCount frames: each block in
// topological order has its Process callback invoked, then every outgoing
// connection copies frameCount*elementSize bytes from the source port's
// buffer into the destination port's buffer.
func (d *Diagram) Process(frameCount int) error {
	if !d.validated {
		if err := d.Validate(); err != nil {
			return err
		}
	}

	order, err := d.topoOrder()
	if err != nil {
		return err
	}

	outgoing := make(map[BlockID][]Connection, len(d.blocks))
	for _, c := range d.connections {
		outgoing[c.SrcBlock] = append(outgoing[c.SrcBlock], c)
	}

	for _, id := range order {
		b := d.Block(id)
		if err := b.Process(frameCount); err != nil {
			return errs.Wrap(errs.Internal, "block process failed", err)
		}
		for _, c := range outgoing[id] {
			if err := d.transfer(c, frameCount); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Diagram) transfer(c Connection, frameCount int) error {
	src := d.Block(c.SrcBlock)
	dst := d.Block(c.DstBlock)
	srcPort := &src.Ports[c.SrcPort]
	dstPort := &dst.Ports[c.DstPort]

	n := frameCount * srcPort.Kind.ElementSize()
	if n > len(srcPort.Buffer) || n > len(dstPort.Buffer) {
		return errs.Newf(errs.BufferSizeMismatch, "connection %d: need %d bytes, src has %d, dst has %d", c.id, n, len(srcPort.Buffer), len(dstPort.Buffer))
	}
	copy(dstPort.Buffer[:n], srcPort.Buffer[:n])
	return nil
}

// Cleanup runs every block's Cleanup hook, in no particular order.
func (d *Diagram) Cleanup() error {
	for i := range d.blocks {
		if d.blocks[i].Cleanup == nil {
			continue
		}
		if err := d.blocks[i].Cleanup(); err != nil {
			return errs.Wrap(errs.Internal, "block cleanup failed", err)
		}
	}
	return nil
}

// ExecutionOrder returns the block ids in the order Process would visit
// them for the diagram's current topology.
func (d *Diagram) ExecutionOrder() ([]BlockID, error) {
	return d.topoOrder()
}
