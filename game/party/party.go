package party

import (
	"sync"

	"github.com/kasuganosora/worldsrv/game/packet"
)

// MaxMembers is the number of member slots in a party.
const MaxMembers = 6

// RemoteUser is the snapshot of an online character that channel servers send
// to the central server. It is copied by value; the central server never holds
// a live session.
type RemoteUser struct {
	CharID    int32  `cbor:"1,keyasint"`
	Name      string `cbor:"2,keyasint"`
	Level     int16  `cbor:"3,keyasint"`
	Job       int16  `cbor:"4,keyasint"`
	ChannelID int32  `cbor:"5,keyasint"`
	FieldID   int32  `cbor:"6,keyasint"`
	PartyID   int32  `cbor:"7,keyasint"`
}

// Party is a small group of characters. Members keep their slot until they
// leave; a leaving member frees the slot for the next join.
type Party struct {
	ID int32

	mu      sync.Mutex
	bossID  int32
	members [MaxMembers]*RemoteUser
}

// New creates a party led by boss, who takes the first slot.
func New(id int32, boss RemoteUser) *Party {
	p := &Party{ID: id, bossID: boss.CharID}
	if boss.CharID != 0 {
		boss.PartyID = id
		p.members[0] = &boss
	}
	return p
}

// BossID returns the character id of the party leader, 0 when empty.
func (p *Party) BossID() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bossID
}

func (p *Party) slotOf(charID int32) int {
	for i, m := range p.members {
		if m != nil && m.CharID == charID {
			return i
		}
	}
	return -1
}

func (p *Party) freeSlot() int {
	for i, m := range p.members {
		if m == nil {
			return i
		}
	}
	return -1
}

// CanAddMember reports whether u could join: not already a member and a
// slot is free.
func (p *Party) CanAddMember(u RemoteUser) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slotOf(u.CharID) < 0 && p.freeSlot() >= 0
}

// AddMember puts u into the first free slot. An empty party gets u as boss.
func (p *Party) AddMember(u RemoteUser) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.slotOf(u.CharID) >= 0 {
		return false
	}
	i := p.freeSlot()
	if i < 0 {
		return false
	}
	u.PartyID = p.ID
	p.members[i] = &u
	if p.bossID == 0 {
		p.bossID = u.CharID
	}
	return true
}

// RemoveMember frees the member's slot. When the boss leaves, leadership
// passes to the member in the lowest occupied slot.
func (p *Party) RemoveMember(charID int32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.slotOf(charID)
	if i < 0 {
		return false
	}
	p.members[i] = nil
	if p.bossID == charID {
		p.bossID = 0
		for _, m := range p.members {
			if m != nil {
				p.bossID = m.CharID
				break
			}
		}
	}
	return true
}

// HasMember reports whether charID occupies a slot.
func (p *Party) HasMember(charID int32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slotOf(charID) >= 0
}

// Member returns a copy of the member snapshot.
func (p *Party) Member(charID int32) (RemoteUser, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.slotOf(charID)
	if i < 0 {
		return RemoteUser{}, false
	}
	return *p.members[i], true
}

// MemberIndex returns the 1-based slot of charID, or 0 if absent.
func (p *Party) MemberIndex(charID int32) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slotOf(charID) + 1
}

// Members returns copies of the occupied slots in slot order.
func (p *Party) Members() []RemoteUser {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]RemoteUser, 0, MaxMembers)
	for _, m := range p.members {
		if m != nil {
			out = append(out, *m)
		}
	}
	return out
}

// Size returns the number of members.
func (p *Party) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, m := range p.members {
		if m != nil {
			n++
		}
	}
	return n
}

// IsEmpty reports whether no slot is occupied.
func (p *Party) IsEmpty() bool { return p.Size() == 0 }

// SetBoss hands leadership to an existing member.
func (p *Party) SetBoss(charID int32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.slotOf(charID) < 0 {
		return false
	}
	p.bossID = charID
	return true
}

// UpdateMember replaces the stored snapshot of an existing member, keeping
// its slot and party id.
func (p *Party) UpdateMember(u RemoteUser) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.slotOf(u.CharID)
	if i < 0 {
		return false
	}
	u.PartyID = p.ID
	p.members[i] = &u
	return true
}

// EncodeForExped writes the party block used inside expedition views: six
// member ids, six names, six jobs, six levels, six channels, six fields, then
// the boss id.
func (p *Party) EncodeForExped(out *packet.OutPacket) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var empty RemoteUser
	slot := func(i int) *RemoteUser {
		if p.members[i] == nil {
			return &empty
		}
		return p.members[i]
	}
	for i := range p.members {
		out.EncodeInt(slot(i).CharID)
	}
	for i := range p.members {
		out.EncodeString(slot(i).Name)
	}
	for i := range p.members {
		out.EncodeInt(int32(slot(i).Job))
	}
	for i := range p.members {
		out.EncodeInt(int32(slot(i).Level))
	}
	for i := range p.members {
		if p.members[i] == nil {
			out.EncodeInt(-2)
		} else {
			out.EncodeInt(slot(i).ChannelID)
		}
	}
	for i := range p.members {
		out.EncodeInt(slot(i).FieldID)
	}
	out.EncodeInt(p.bossID)
}
