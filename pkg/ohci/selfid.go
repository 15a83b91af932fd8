package ohci

import "fmt"

// SelfID packet layout (IEEE 1394a-2000 table 4-20)
const (
	selfIDTag          uint32 = 2 << 30
	selfIDTagMask      uint32 = 3 << 30
	selfIDPhyIDShift          = 24
	selfIDExtended     uint32 = 1 << 23
	selfIDLinkActive   uint32 = 1 << 22
	selfIDGapShift            = 16
	selfIDSpeedShift          = 14
	selfIDContender    uint32 = 1 << 11
	selfIDPowerShift          = 8
	selfIDInitiated    uint32 = 1 << 1
	selfIDMore         uint32 = 1 << 0
	selfIDSeqShift            = 20
	extendedPortsFirst        = 3
	extendedPortsEach         = 8
)

// Speed is a PHY speed code
type Speed uint8

const (
	S100 Speed = iota
	S200
	S400
	SBeta
)

func (s Speed) String() string {
	switch s {
	case S100:
		return "S100"
	case S200:
		return "S200"
	case S400:
		return "S400"
	}
	return "S800+"
}

// PortState is the two-bit port field of a SelfID packet
type PortState uint8

const (
	PortNotPresent PortState = iota
	PortNotConnected
	PortParent
	PortChild
)

func (p PortState) String() string {
	return [...]string{"-", ".", "p", "c"}[p&3]
}

// SelfID is the decoded SelfID packet sequence of one node
type SelfID struct {
	PhyID      uint8
	LinkActive bool
	GapCount   uint8
	Speed      Speed
	Contender  bool
	PowerClass uint8
	Ports      []PortState
	Initiated  bool
}

func (s SelfID) String() string {
	ports := ""
	for _, p := range s.Ports {
		ports += p.String()
	}
	return fmt.Sprintf("phy %d link %v gap %d %v contender %v power %d ports [%s]",
		s.PhyID, s.LinkActive, s.GapCount, s.Speed, s.Contender, s.PowerClass, ports)
}

// Quadlet encodes the first SelfID packet of the node, with up to three
// ports and the more-packets bit clear.
func (s SelfID) Quadlet() uint32 {
	q := selfIDTag | uint32(s.PhyID&0x3F)<<selfIDPhyIDShift |
		uint32(s.GapCount&0x3F)<<selfIDGapShift | uint32(s.Speed&3)<<selfIDSpeedShift |
		uint32(s.PowerClass&7)<<selfIDPowerShift
	if s.LinkActive {
		q |= selfIDLinkActive
	}
	if s.Contender {
		q |= selfIDContender
	}
	if s.Initiated {
		q |= selfIDInitiated
	}
	for i := 0; i < len(s.Ports) && i < extendedPortsFirst; i++ {
		q |= uint32(s.Ports[i]&3) << (6 - 2*i)
	}
	return q
}

// Topology is the result of the SelfID phase of one bus generation
type Topology struct {
	Generation uint8
	Nodes      []SelfID
	Invalid    int // packets dropped by the inverse check or out of sequence
}

// Root returns the root node, the one with the highest PHY id
func (t Topology) Root() (SelfID, bool) {
	if len(t.Nodes) == 0 {
		return SelfID{}, false
	}
	return t.Nodes[len(t.Nodes)-1], true
}

// DecodeSelfIDs decodes packet/inverse pairs as stored after the header
// quadlet of the SelfID buffer. Pairs whose inverse does not match, and
// extended packets that do not continue the current node, are counted as
// invalid and skipped.
func DecodeSelfIDs(words []uint32) (nodes []SelfID, invalid int) {
	var cur *SelfID
	var seq uint32

	for i := 0; i+1 < len(words); i += 2 {
		q := words[i]
		if words[i+1] != ^q || q&selfIDTagMask != selfIDTag {
			invalid++
			continue
		}
		phy := uint8(q >> selfIDPhyIDShift & 0x3F)

		if q&selfIDExtended == 0 {
			nodes = append(nodes, SelfID{
				PhyID:      phy,
				LinkActive: q&selfIDLinkActive != 0,
				GapCount:   uint8(q >> selfIDGapShift & 0x3F),
				Speed:      Speed(q >> selfIDSpeedShift & 3),
				Contender:  q&selfIDContender != 0,
				PowerClass: uint8(q >> selfIDPowerShift & 7),
				Initiated:  q&selfIDInitiated != 0,
				Ports: []PortState{
					PortState(q >> 6 & 3), PortState(q >> 4 & 3), PortState(q >> 2 & 3),
				},
			})
			cur = &nodes[len(nodes)-1]
			seq = 0
			continue
		}

		n := q >> selfIDSeqShift & 7
		if cur == nil || cur.PhyID != phy || n != seq {
			invalid++
			continue
		}
		seq++
		for p := 0; p < extendedPortsEach; p++ {
			cur.Ports = append(cur.Ports, PortState(q>>(16-2*p)&3))
		}
	}

	for i := range nodes {
		trimPorts(&nodes[i])
	}
	return nodes, invalid
}

// trimPorts drops trailing not-present ports
func trimPorts(s *SelfID) {
	n := len(s.Ports)
	for n > 0 && s.Ports[n-1] == PortNotPresent {
		n--
	}
	s.Ports = s.Ports[:n]
}
