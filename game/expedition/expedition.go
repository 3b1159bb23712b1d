package expedition

import (
	"context"
	"sync"

	"github.com/kasuganosora/worldsrv/game/packet"
	"github.com/kasuganosora/worldsrv/game/party"
)

const (
	// MaxParties is the number of sub-groups one expedition can hold.
	MaxParties = 5
	// NoParty is returned by FreeParty when no sub-group can take the member.
	NoParty int32 = -1
	// DefaultMaxMembers applies when a quest definition carries no user count.
	DefaultMaxMembers = MaxParties * party.MaxMembers
)

// PartyAllocator creates a new sub-group when every existing one is full.
// *party.Manager satisfies it.
type PartyAllocator interface {
	Create(ctx context.Context, boss party.RemoteUser) (*party.Party, error)
}

var emptyParty = party.New(0, party.RemoteUser{})

// Expedition is the authoritative state of one raid group.
//
// Callers hold the aggregate lock (Lock/Unlock) for the whole
// validate-then-mutate sequence; the methods themselves do not lock.
type Expedition struct {
	mu sync.Mutex

	id      int32
	questID int32

	parties          []*party.Party
	masterID         int32
	masterPartyIndex int32
	minLevel         int16
	maxLevel         int16
	maxMembers       int
	invites          map[int32]int32 // target → inviter

	alloc PartyAllocator
}

// New creates an empty expedition. The master is recorded but not yet
// placed; callers add the master's party with AddParty.
func New(id, questID int32, alloc PartyAllocator) *Expedition {
	return &Expedition{
		id:         id,
		questID:    questID,
		parties:    make([]*party.Party, 0, MaxParties),
		maxLevel:   200,
		maxMembers: DefaultMaxMembers,
		invites:    make(map[int32]int32),
		alloc:      alloc,
	}
}

// Lock acquires the aggregate lock.
func (e *Expedition) Lock() { e.mu.Lock() }

// Unlock releases the aggregate lock.
func (e *Expedition) Unlock() { e.mu.Unlock() }

func (e *Expedition) ID() int32               { return e.id }
func (e *Expedition) QuestID() int32          { return e.questID }
func (e *Expedition) MasterID() int32         { return e.masterID }
func (e *Expedition) MasterPartyIndex() int32 { return e.masterPartyIndex }
func (e *Expedition) MinLevel() int16         { return e.minLevel }
func (e *Expedition) MaxLevel() int16         { return e.maxLevel }
func (e *Expedition) MaxMembers() int         { return e.maxMembers }

// SetLimits sets the level window and the member cap.
func (e *Expedition) SetLimits(minLevel, maxLevel int16, maxMembers int) {
	e.minLevel = minLevel
	e.maxLevel = maxLevel
	if maxMembers <= 0 {
		maxMembers = DefaultMaxMembers
	}
	e.maxMembers = maxMembers
}

// LevelAllowed reports whether level is inside the expedition's window.
func (e *Expedition) LevelAllowed(level int16) bool {
	return level >= e.minLevel && level <= e.maxLevel
}

// Parties returns the sub-groups in insertion order.
func (e *Expedition) Parties() []*party.Party {
	out := make([]*party.Party, len(e.parties))
	copy(out, e.parties)
	return out
}

// PartyByID returns the sub-group with the given id, or nil.
func (e *Expedition) PartyByID(partyID int32) *party.Party {
	for _, p := range e.parties {
		if p.ID == partyID {
			return p
		}
	}
	return nil
}

// PartyOf returns the sub-group containing charID, or nil.
func (e *Expedition) PartyOf(charID int32) *party.Party {
	for _, p := range e.parties {
		if p.HasMember(charID) {
			return p
		}
	}
	return nil
}

// FreeParty returns the id of the sub-group u can join: the one u leads, or
// the first with a free slot. NoParty when none fits.
func (e *Expedition) FreeParty(u party.RemoteUser) int32 {
	for _, p := range e.parties {
		if p.BossID() == u.CharID || p.CanAddMember(u) {
			return p.ID
		}
	}
	return NoParty
}

// MemberCount returns the number of members across all sub-groups.
func (e *Expedition) MemberCount() int {
	n := 0
	for _, p := range e.parties {
		n += p.Size()
	}
	return n
}

// CanAddMember reports whether AddMember would succeed for u.
func (e *Expedition) CanAddMember(u party.RemoteUser) bool {
	if e.HasMember(u.CharID) || e.MemberCount() >= e.maxMembers {
		return false
	}
	for _, p := range e.parties {
		if p.CanAddMember(u) {
			return true
		}
	}
	return len(e.parties) < MaxParties && e.alloc != nil
}

// AddMember places u in the first sub-group with room, or in a freshly
// allocated sub-group when all are full and the cap is not reached. It
// returns the sub-group id, and false without mutating anything on failure.
func (e *Expedition) AddMember(ctx context.Context, u party.RemoteUser) (int32, bool) {
	if !e.CanAddMember(u) {
		return NoParty, false
	}
	for _, p := range e.parties {
		if p.CanAddMember(u) && p.AddMember(u) {
			return p.ID, true
		}
	}
	p, err := e.alloc.Create(ctx, u)
	if err != nil {
		return NoParty, false
	}
	e.parties = append(e.parties, p)
	return p.ID, true
}

// RemoveMember removes charID from its sub-group. The emptied sub-group stays
// in the list; callers decide whether to drop it with RemoveParty.
func (e *Expedition) RemoveMember(charID int32) bool {
	p := e.PartyOf(charID)
	if p == nil {
		return false
	}
	return p.RemoveMember(charID)
}

// CanAddParty reports whether p can be appended: below the cap and not a
// duplicate id.
func (e *Expedition) CanAddParty(p *party.Party) bool {
	if len(e.parties) >= MaxParties {
		return false
	}
	return e.PartyByID(p.ID) == nil
}

// AddParty appends p. The list is unchanged on failure.
func (e *Expedition) AddParty(p *party.Party) bool {
	if !e.CanAddParty(p) {
		return false
	}
	e.parties = append(e.parties, p)
	return true
}

// RemoveParty drops p by identity and re-derives the master's party index.
func (e *Expedition) RemoveParty(p *party.Party) bool {
	for i, cur := range e.parties {
		if cur == p {
			e.parties = append(e.parties[:i], e.parties[i+1:]...)
			if idx := e.PartyIndex(e.masterID); idx >= 0 {
				e.masterPartyIndex = int32(idx)
			}
			return true
		}
	}
	return false
}

// SetMasterID reassigns the master. It fails when a master is stored and
// current does not match it, or when newMaster is not a member.
func (e *Expedition) SetMasterID(current, newMaster int32) bool {
	if e.masterID != 0 && e.masterID != current {
		return false
	}
	idx := e.PartyIndex(newMaster)
	if idx < 0 {
		return false
	}
	e.masterID = newMaster
	e.masterPartyIndex = int32(idx)
	return true
}

// RegisterInvite records that inviter invited target, replacing any earlier
// invite for target.
func (e *Expedition) RegisterInvite(inviter, target int32) {
	e.invites[target] = inviter
}

// UnregisterInvite consumes target's invite only if it was issued by inviter.
func (e *Expedition) UnregisterInvite(inviter, target int32) bool {
	cur, ok := e.invites[target]
	if !ok || cur != inviter {
		return false
	}
	delete(e.invites, target)
	return true
}

// InviterOf returns who invited target.
func (e *Expedition) InviterOf(target int32) (int32, bool) {
	v, ok := e.invites[target]
	return v, ok
}

// PendingInvites returns the number of outstanding invites.
func (e *Expedition) PendingInvites() int { return len(e.invites) }

// Member returns the stored snapshot of charID.
func (e *Expedition) Member(charID int32) (party.RemoteUser, bool) {
	if p := e.PartyOf(charID); p != nil {
		return p.Member(charID)
	}
	return party.RemoteUser{}, false
}

// HasMember reports whether charID is in any sub-group.
func (e *Expedition) HasMember(charID int32) bool {
	return e.PartyOf(charID) != nil
}

// Members returns every member, sub-group by sub-group, in slot order.
func (e *Expedition) Members() []party.RemoteUser {
	out := make([]party.RemoteUser, 0, e.MemberCount())
	for _, p := range e.parties {
		out = append(out, p.Members()...)
	}
	return out
}

// IsEmpty reports whether the expedition has no members left.
func (e *Expedition) IsEmpty() bool { return e.MemberCount() == 0 }

// UpdateMember refreshes the stored snapshot of an existing member.
func (e *Expedition) UpdateMember(u party.RemoteUser) bool {
	if p := e.PartyOf(u.CharID); p != nil {
		return p.UpdateMember(u)
	}
	return false
}

// MemberIndex returns the 1-based slot of charID within its sub-group,
// scanning sub-groups in insertion order; 0 if absent.
func (e *Expedition) MemberIndex(charID int32) int {
	for i := 0; i < len(e.parties) && i < MaxParties; i++ {
		if idx := e.parties[i].MemberIndex(charID); idx != 0 {
			return idx
		}
	}
	return 0
}

// PartyIndex returns the position of charID's sub-group, -1 if absent.
func (e *Expedition) PartyIndex(charID int32) int {
	for i := 0; i < len(e.parties) && i < MaxParties; i++ {
		if e.parties[i].MemberIndex(charID) != 0 {
			return i
		}
	}
	return -1
}

// AffectedMemberBit returns the bit that addresses charID in member bitmaps,
// -1 if absent.
func (e *Expedition) AffectedMemberBit(charID int32) int {
	pi := e.PartyIndex(charID)
	if pi < 0 {
		return -1
	}
	return pi*party.MaxMembers + e.MemberIndex(charID) - 1
}

// Info returns charID's membership snapshot.
func (e *Expedition) Info(charID int32) Info {
	return Info{
		ExpeditionID: e.id,
		MemberIndex:  int8(e.MemberIndex(charID)),
		Master:       charID == e.masterID,
	}
}

// Encode writes the fixed-shape view: quest id, master party index, exactly
// MaxParties sub-group blocks, and two reserved bytes.
func (e *Expedition) Encode(out *packet.OutPacket) {
	out.EncodeInt(e.questID)
	out.EncodeInt(e.masterPartyIndex)
	for i := 0; i < MaxParties; i++ {
		if i < len(e.parties) {
			e.parties[i].EncodeForExped(out)
		} else {
			emptyParty.EncodeForExped(out)
		}
	}
	out.EncodeByte(0)
	out.EncodeByte(0)
}
