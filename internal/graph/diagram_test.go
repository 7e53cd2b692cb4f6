package graph

import "testing"

func audioPort(name string, dir PortDirection, frames int) Port {
	return Port{Name: name, Kind: PortAudio, Direction: dir, Buffer: make([]byte, frames*PortAudio.ElementSize())}
}

func TestDiagramTopoOrderLinearChain(t *testing.T) {
	d := NewDiagram(DefaultDiagramConfig())

	a, err := d.AddBlock(Block{Name: "source", Ports: []Port{audioPort("out", DirOut, 16)}, Process: func(int) error { return nil }})
	if err != nil {
		t.Fatalf("AddBlock a: %v", err)
	}
	b, err := d.AddBlock(Block{Name: "filter", Ports: []Port{audioPort("in", DirIn, 16), audioPort("out", DirOut, 16)}, Process: func(int) error { return nil }})
	if err != nil {
		t.Fatalf("AddBlock b: %v", err)
	}
	c, err := d.AddBlock(Block{Name: "sink", Ports: []Port{audioPort("in", DirIn, 16)}, Process: func(int) error { return nil }})
	if err != nil {
		t.Fatalf("AddBlock c: %v", err)
	}

	if _, err := d.Connect(a, 0, b, 0); err != nil {
		t.Fatalf("Connect a->b: %v", err)
	}
	if _, err := d.Connect(b, 1, c, 0); err != nil {
		t.Fatalf("Connect b->c: %v", err)
	}

	if err := d.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	order, err := d.ExecutionOrder()
	if err != nil {
		t.Fatalf("ExecutionOrder: %v", err)
	}
	want := []BlockID{a, b, c}
	if len(order) != len(want) {
		t.Fatalf("order length = %d, want %d", len(order), len(want))
	}
	for i, id := range want {
		if order[i] != id {
			t.Errorf("order[%d] = %d, want %d", i, order[i], id)
		}
	}
}

func TestDiagramRejectsCycle(t *testing.T) {
	d := NewDiagram(DefaultDiagramConfig())
	a, _ := d.AddBlock(Block{Name: "a", Ports: []Port{audioPort("in", DirIn, 8), audioPort("out", DirOut, 8)}, Process: func(int) error { return nil }})
	b, _ := d.AddBlock(Block{Name: "b", Ports: []Port{audioPort("in", DirIn, 8), audioPort("out", DirOut, 8)}, Process: func(int) error { return nil }})

	if _, err := d.Connect(a, 1, b, 0); err != nil {
		t.Fatalf("Connect a->b: %v", err)
	}
	if _, err := d.Connect(b, 1, a, 0); err != nil {
		t.Fatalf("Connect b->a: %v", err)
	}

	if err := d.Validate(); err == nil {
		t.Fatal("expected Validate to reject a cycle")
	}
}

func TestDiagramConnectRejectsPortKindMismatch(t *testing.T) {
	d := NewDiagram(DefaultDiagramConfig())
	a, _ := d.AddBlock(Block{Name: "a", Ports: []Port{{Name: "out", Kind: PortAudio, Direction: DirOut, Buffer: make([]byte, 64)}}, Process: func(int) error { return nil }})
	b, _ := d.AddBlock(Block{Name: "b", Ports: []Port{{Name: "in", Kind: PortF0, Direction: DirIn, Buffer: make([]byte, 64)}}, Process: func(int) error { return nil }})

	if _, err := d.Connect(a, 0, b, 0); err == nil {
		t.Fatal("expected Connect to reject mismatched port kinds")
	}
}

func TestDiagramRemoveBlockDisconnectsEdges(t *testing.T) {
	d := NewDiagram(DefaultDiagramConfig())
	a, _ := d.AddBlock(Block{Name: "a", Ports: []Port{audioPort("out", DirOut, 8)}, Process: func(int) error { return nil }})
	b, _ := d.AddBlock(Block{Name: "b", Ports: []Port{audioPort("in", DirIn, 8)}, Process: func(int) error { return nil }})
	if _, err := d.Connect(a, 0, b, 0); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := d.RemoveBlock(a); err != nil {
		t.Fatalf("RemoveBlock: %v", err)
	}
	if len(d.connections) != 0 {
		t.Errorf("connections after removing endpoint = %d, want 0", len(d.connections))
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate after removal: %v", err)
	}
}

func TestDiagramProcessTransfersFrames(t *testing.T) {
	d := NewDiagram(DefaultDiagramConfig())

	a, _ := d.AddBlock(Block{
		Name:  "source",
		Ports: []Port{audioPort("out", DirOut, 4)},
		Process: func(int) error {
			return nil
		},
	})
	src := d.Block(a)
	for i := range src.Ports[0].Buffer {
		src.Ports[0].Buffer[i] = byte(i + 1)
	}

	var gotSum byte
	b, _ := d.AddBlock(Block{
		Name:  "sink",
		Ports: []Port{audioPort("in", DirIn, 4)},
		Process: func(int) error {
			return nil
		},
	})
	if _, err := d.Connect(a, 0, b, 0); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := d.Process(4); err != nil {
		t.Fatalf("Process: %v", err)
	}

	dst := d.Block(b)
	for _, v := range dst.Ports[0].Buffer {
		gotSum += v
	}
	var wantSum byte
	for _, v := range src.Ports[0].Buffer {
		wantSum += v
	}
	if gotSum != wantSum {
		t.Errorf("transferred buffer sum = %d, want %d", gotSum, wantSum)
	}
}

func TestDiagramProcessBufferSizeMismatch(t *testing.T) {
	d := NewDiagram(DefaultDiagramConfig())
	a, _ := d.AddBlock(Block{Name: "a", Ports: []Port{audioPort("out", DirOut, 4)}, Process: func(int) error { return nil }})
	b, _ := d.AddBlock(Block{Name: "b", Ports: []Port{audioPort("in", DirIn, 2)}, Process: func(int) error { return nil }})
	if _, err := d.Connect(a, 0, b, 0); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := d.Process(4); err == nil {
		t.Fatal("expected Process to fail with a buffer size mismatch")
	}
}
