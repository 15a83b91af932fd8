//go:build unit

package ohci

import (
	"reflect"
	"strings"
	"testing"
)

func pairs(qs ...uint32) []uint32 {
	out := make([]uint32, 0, 2*len(qs))
	for _, q := range qs {
		out = append(out, q, ^q)
	}
	return out
}

func TestSelfIDQuadlet(t *testing.T) {
	s := SelfID{
		PhyID:      1,
		LinkActive: true,
		GapCount:   0x3F,
		Speed:      S400,
		Contender:  true,
		PowerClass: 4,
		Ports:      []PortState{PortParent, PortChild, PortNotConnected},
		Initiated:  true,
	}
	if got := s.Quadlet(); got != 0x817F8CB6 {
		t.Errorf("Quadlet() = %#08x, expected 0x817f8cb6", got)
	}
}

func TestDecodeSelfIDsRoundTrip(t *testing.T) {
	want := []SelfID{
		{PhyID: 0, LinkActive: true, GapCount: 63, Speed: S400, PowerClass: 4,
			Ports: []PortState{PortParent}},
		{PhyID: 1, LinkActive: true, GapCount: 63, Speed: S400, Contender: true,
			Ports: []PortState{PortChild, PortNotConnected, PortChild}, Initiated: true},
		{PhyID: 2, GapCount: 63, Speed: S100, Ports: []PortState{PortChild}},
	}

	var qs []uint32
	for _, s := range want {
		qs = append(qs, s.Quadlet())
	}
	nodes, invalid := DecodeSelfIDs(pairs(qs...))

	if invalid != 0 {
		t.Errorf("invalid = %d, expected 0", invalid)
	}
	if !reflect.DeepEqual(nodes, want) {
		t.Errorf("decoded %+v\nexpected %+v", nodes, want)
	}
}

func TestDecodeSelfIDsExtended(t *testing.T) {
	first := SelfID{PhyID: 2, Ports: []PortState{PortChild, PortParent, PortChild}}.Quadlet() | selfIDMore
	ext := selfIDTag | 2<<selfIDPhyIDShift | selfIDExtended | 0<<selfIDSeqShift |
		uint32(PortNotConnected)<<16 | uint32(PortChild)<<14

	nodes, invalid := DecodeSelfIDs(pairs(first, ext))
	if invalid != 0 || len(nodes) != 1 {
		t.Fatalf("got %d nodes, %d invalid", len(nodes), invalid)
	}
	want := []PortState{PortChild, PortParent, PortChild, PortNotConnected, PortChild}
	if !reflect.DeepEqual(nodes[0].Ports, want) {
		t.Errorf("ports = %v, expected %v", nodes[0].Ports, want)
	}
}

func TestDecodeSelfIDsInvalid(t *testing.T) {
	good := SelfID{PhyID: 0, Ports: []PortState{PortParent}}.Quadlet()
	outOfSeq := selfIDTag | 0<<selfIDPhyIDShift | selfIDExtended | 1<<selfIDSeqShift
	otherPhy := selfIDTag | 5<<selfIDPhyIDShift | selfIDExtended

	tests := []struct {
		name    string
		words   []uint32
		nodes   int
		invalid int
	}{
		{"empty", nil, 0, 0},
		{"bad inverse", []uint32{good, good}, 0, 1},
		{"wrong tag", pairs(0x00000000), 0, 1},
		{"extended before any node", pairs(otherPhy), 0, 1},
		{"extended out of sequence", pairs(good, outOfSeq), 1, 1},
		{"extended for another phy", pairs(good, otherPhy), 1, 1},
		{"trailing half pair", append(pairs(good), good), 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, invalid := DecodeSelfIDs(tt.words)
			if len(nodes) != tt.nodes || invalid != tt.invalid {
				t.Errorf("got %d nodes %d invalid, expected %d nodes %d invalid",
					len(nodes), invalid, tt.nodes, tt.invalid)
			}
		})
	}
}

func TestTopologyRoot(t *testing.T) {
	if _, ok := (Topology{}).Root(); ok {
		t.Error("empty topology has a root")
	}
	top := Topology{Nodes: []SelfID{{PhyID: 0}, {PhyID: 1}}}
	root, ok := top.Root()
	if !ok || root.PhyID != 1 {
		t.Errorf("Root() = %v, %v", root, ok)
	}
}

func TestSelfIDString(t *testing.T) {
	s := SelfID{PhyID: 3, Speed: S200, Ports: []PortState{PortParent, PortChild, PortNotPresent, PortNotConnected}}
	got := s.String()
	for _, part := range []string{"phy 3", "S200", "ports [pc-.]"} {
		if !strings.Contains(got, part) {
			t.Errorf("String() = %q, missing %q", got, part)
		}
	}
	if SBeta.String() != "S800+" {
		t.Errorf("SBeta = %q", SBeta.String())
	}
}
