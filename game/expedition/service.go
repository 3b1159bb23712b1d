package expedition

import (
	"context"
	"fmt"
	"sync"

	"github.com/kasuganosora/worldsrv/audit"
	"github.com/kasuganosora/worldsrv/game/packet"
	"github.com/kasuganosora/worldsrv/game/party"
	"github.com/kasuganosora/worldsrv/resource"
	"go.uber.org/zap"
)

// Notifier delivers results to characters wherever they are connected.
type Notifier interface {
	Notify(ctx context.Context, target party.RemoteUser, out *packet.OutPacket)
	UpdateInfo(ctx context.Context, target party.RemoteUser, info Info)
}

// UserDirectory resolves online characters known to the central server.
type UserDirectory interface {
	ByName(ctx context.Context, name string) (party.RemoteUser, bool)
}

// QuestSource resolves expedition definitions. *resource.Loader satisfies it.
type QuestSource interface {
	QuestExpedition(questID int32) (*resource.QuestExpedition, bool)
}

// IDAllocator hands out expedition ids. *cache.Sequence satisfies it.
type IDAllocator interface {
	Next(ctx context.Context) (int64, error)
}

// PartyDirectory owns sub-group lifecycles. *party.Manager satisfies it.
type PartyDirectory interface {
	PartyAllocator
	ByMember(charID int32) *party.Party
	Remove(p *party.Party) bool
}

// Service applies expedition requests at the central server.
type Service struct {
	registry *Registry
	parties  PartyDirectory
	ids      IDAllocator
	quests   QuestSource
	users    UserDirectory
	notify   Notifier
	audit    *audit.Service
	logger   *zap.Logger

	membership sync.Map // charID int32 → expedition id int32
}

// NewService wires a Service.
func NewService(registry *Registry, parties PartyDirectory, ids IDAllocator,
	quests QuestSource, users UserDirectory, notify Notifier, logger *zap.Logger) *Service {
	return &Service{
		registry: registry,
		parties:  parties,
		ids:      ids,
		quests:   quests,
		users:    users,
		notify:   notify,
		logger:   logger,
	}
}

// WithAudit records expedition lifecycle events to a.
func (s *Service) WithAudit(a *audit.Service) *Service {
	s.audit = a
	return s
}

// Registry returns the registry the service writes to.
func (s *Service) Registry() *Registry { return s.registry }

// ExpeditionOf returns the expedition charID belongs to.
func (s *Service) ExpeditionOf(charID int32) (*Expedition, bool) {
	v, ok := s.membership.Load(charID)
	if !ok {
		return nil, false
	}
	return s.registry.Get(v.(int32))
}

// Handle applies one request on behalf of user. Rejections are answered to
// the user; only internal faults are returned.
func (s *Service) Handle(ctx context.Context, user party.RemoteUser, req Request) error {
	switch r := req.(type) {
	case LoadRequest:
		s.load(ctx, user, r)
	case CreateNewRequest:
		return s.createNew(ctx, user, r)
	case InviteRequest:
		s.invite(ctx, user, r)
	case ResponseRequest:
		s.respond(ctx, user, r)
	case WithdrawRequest:
		s.withdraw(ctx, user)
	case KickRequest:
		s.kick(ctx, user, r)
	case ChangeMasterRequest:
		s.changeMaster(ctx, user, r)
	case ChangePartyBossRequest:
		s.changePartyBoss(ctx, user, r)
	case RelocateMemberRequest:
		s.relocate(ctx, user, r)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownRequest, req)
	}
	return nil
}

// lockMember returns user's expedition, locked, if user is still a member.
func (s *Service) lockMember(charID int32) (*Expedition, bool) {
	e, ok := s.ExpeditionOf(charID)
	if !ok {
		return nil, false
	}
	e.Lock()
	if !e.HasMember(charID) {
		e.Unlock()
		return nil, false
	}
	return e, true
}

func (s *Service) broadcast(ctx context.Context, e *Expedition, out *packet.OutPacket, except int32) {
	for _, m := range e.Members() {
		if m.CharID != except {
			s.notify.Notify(ctx, m, out)
		}
	}
}

func (s *Service) pushInfo(ctx context.Context, e *Expedition, charID int32) {
	if m, ok := e.Member(charID); ok {
		s.notify.UpdateInfo(ctx, m, e.Info(charID))
	}
}

func (s *Service) load(ctx context.Context, user party.RemoteUser, r LoadRequest) {
	e, ok := s.registry.Get(r.ExpeditionID)
	if !ok {
		s.notify.Notify(ctx, user, LoadFailPacket())
		return
	}
	e.Lock()
	defer e.Unlock()
	if !e.HasMember(user.CharID) {
		s.notify.Notify(ctx, user, LoadFailPacket())
		return
	}
	s.notify.Notify(ctx, user, LoadDonePacket(e))
}

func (s *Service) createNew(ctx context.Context, user party.RemoteUser, r CreateNewRequest) error {
	if _, ok := s.ExpeditionOf(user.CharID); ok {
		s.notify.Notify(ctx, user, JoinFailPacket())
		return nil
	}
	quest, ok := s.quests.QuestExpedition(r.QuestID)
	if !ok || user.Level < quest.LevelMin || user.Level > quest.LevelMax {
		s.notify.Notify(ctx, user, JoinFailPacket())
		return nil
	}

	id64, err := s.ids.Next(ctx)
	if err != nil {
		s.notify.Notify(ctx, user, JoinFailPacket())
		return fmt.Errorf("allocate expedition id: %w", err)
	}
	id := int32(id64)
	if _, loaded := s.membership.LoadOrStore(user.CharID, id); loaded {
		s.notify.Notify(ctx, user, JoinFailPacket())
		return nil
	}

	e := New(id, r.QuestID, s.parties)
	e.SetLimits(quest.LevelMin, quest.LevelMax, quest.UserCount)
	e.Lock()
	defer e.Unlock()

	p := s.parties.ByMember(user.CharID)
	if p != nil && p.BossID() != user.CharID {
		s.membership.CompareAndDelete(user.CharID, id)
		s.notify.Notify(ctx, user, JoinFailPacket())
		return nil
	}
	if p == nil {
		if p, err = s.parties.Create(ctx, user); err != nil {
			s.membership.CompareAndDelete(user.CharID, id)
			s.notify.Notify(ctx, user, JoinFailPacket())
			return fmt.Errorf("allocate party: %w", err)
		}
	}
	e.AddParty(p)
	e.SetMasterID(0, user.CharID)
	s.registry.Add(e)

	s.logger.Info("expedition created",
		zap.Int32("expedition_id", id),
		zap.Int32("quest_id", r.QuestID),
		zap.Int32("master_id", user.CharID))
	charID := user.CharID
	s.audit.Log(audit.AuditEntry{
		CharID:    &charID,
		CharName:  user.Name,
		Action:    audit.ActionExpeditionCreate,
		Detail:    map[string]any{"expedition_id": id, "quest_id": r.QuestID, "party_id": p.ID},
		ChannelID: user.ChannelID,
		FieldID:   user.FieldID,
	})
	s.notify.Notify(ctx, user, CreateNewDonePacket(e))
	s.pushInfo(ctx, e, user.CharID)
	return nil
}

func (s *Service) invite(ctx context.Context, user party.RemoteUser, r InviteRequest) {
	e, ok := s.lockMember(user.CharID)
	if !ok {
		return
	}
	defer e.Unlock()
	if e.MasterID() != user.CharID {
		s.logger.Debug("non-master expedition invite",
			zap.Int32("char_id", user.CharID),
			zap.Int32("expedition_id", e.ID()))
		return
	}

	target, ok := s.users.ByName(ctx, r.Name)
	switch {
	case !ok:
		s.notify.Notify(ctx, user, ResponseInvitePacket(InviteNotFound, r.Name))
	case s.hasExpedition(target.CharID):
		s.notify.Notify(ctx, user, ResponseInvitePacket(InviteAlreadyJoined, target.Name))
	case !e.LevelAllowed(target.Level):
		s.notify.Notify(ctx, user, ResponseInvitePacket(InviteLevelMismatch, target.Name))
	case !e.CanAddMember(target):
		s.notify.Notify(ctx, user, ResponseInvitePacket(InviteFull, target.Name))
	default:
		e.RegisterInvite(user.CharID, target.CharID)
		s.notify.Notify(ctx, target, InvitePacket(user, e.QuestID()))
	}
}

func (s *Service) hasExpedition(charID int32) bool {
	_, ok := s.ExpeditionOf(charID)
	return ok
}

func (s *Service) respond(ctx context.Context, user party.RemoteUser, r ResponseRequest) {
	inviter, ok := s.users.ByName(ctx, r.Name)
	if !ok {
		s.notify.Notify(ctx, user, JoinFailPacket())
		return
	}
	e, ok := s.lockMember(inviter.CharID)
	if !ok {
		s.notify.Notify(ctx, user, JoinFailPacket())
		return
	}
	defer e.Unlock()

	if r.Code != ResponseAccept {
		if e.UnregisterInvite(inviter.CharID, user.CharID) {
			s.notify.Notify(ctx, inviter, ResponseInvitePacket(r.Code, user.Name))
		}
		return
	}

	if !e.LevelAllowed(user.Level) || !e.UnregisterInvite(inviter.CharID, user.CharID) {
		s.notify.Notify(ctx, user, JoinFailPacket())
		return
	}
	if _, loaded := s.membership.LoadOrStore(user.CharID, e.ID()); loaded {
		s.notify.Notify(ctx, user, JoinFailPacket())
		return
	}
	partyID, ok := e.AddMember(ctx, user)
	if !ok {
		s.membership.CompareAndDelete(user.CharID, e.ID())
		s.notify.Notify(ctx, user, JoinFailPacket())
		return
	}

	s.logger.Info("expedition joined",
		zap.Int32("expedition_id", e.ID()),
		zap.Int32("char_id", user.CharID),
		zap.Int32("party_id", partyID))
	s.notify.Notify(ctx, user, YouJoinedPacket(e))
	joined := JoinDonePacket(user.Name)
	modified := ModifiedPacket(e, e.PartyByID(partyID))
	for _, m := range e.Members() {
		if m.CharID == user.CharID {
			continue
		}
		s.notify.Notify(ctx, m, joined)
		s.notify.Notify(ctx, m, modified)
	}
	s.pushInfo(ctx, e, user.CharID)
}

func (s *Service) withdraw(ctx context.Context, user party.RemoteUser) {
	e, ok := s.lockMember(user.CharID)
	if !ok {
		return
	}
	defer e.Unlock()
	m, _ := e.Member(user.CharID)
	s.leave(ctx, e, m, YouWithdrewPacket(m.Name), WithdrawDonePacket(m.Name))
}

func (s *Service) kick(ctx context.Context, user party.RemoteUser, r KickRequest) {
	e, ok := s.lockMember(user.CharID)
	if !ok {
		return
	}
	defer e.Unlock()
	if e.MasterID() != user.CharID || r.CharID == user.CharID {
		return
	}
	target, ok := e.Member(r.CharID)
	if !ok {
		return
	}
	s.leave(ctx, e, target, YouKickedPacket(target.Name), KickDonePacket(target.Name))
}

// leave removes member from e and notifies everyone. The caller holds e's lock.
func (s *Service) leave(ctx context.Context, e *Expedition, member party.RemoteUser, self, others *packet.OutPacket) {
	p := e.PartyOf(member.CharID)
	wasMaster := e.MasterID() == member.CharID
	e.RemoveMember(member.CharID)
	s.membership.CompareAndDelete(member.CharID, e.ID())

	s.notify.Notify(ctx, member, self)
	s.notify.UpdateInfo(ctx, member, Info{})

	shifted := false
	if p != nil && p.IsEmpty() {
		e.RemoveParty(p)
		s.parties.Remove(p)
		shifted = true
	}

	if e.IsEmpty() {
		s.registry.Remove(e)
		s.logger.Info("expedition disbanded", zap.Int32("expedition_id", e.ID()))
		charID := member.CharID
		s.audit.Log(audit.AuditEntry{
			CharID:   &charID,
			CharName: member.Name,
			Action:   audit.ActionExpeditionDisband,
			Detail:   map[string]any{"expedition_id": e.ID(), "quest_id": e.QuestID()},
		})
		return
	}

	s.broadcast(ctx, e, others, 0)
	if p != nil && !p.IsEmpty() {
		s.broadcast(ctx, e, ModifiedPacket(e, p), 0)
	}
	if wasMaster {
		next := e.Members()[0]
		if e.SetMasterID(member.CharID, next.CharID) {
			s.broadcast(ctx, e, MasterChangedPacket(next.CharID), 0)
			s.pushInfo(ctx, e, next.CharID)
		}
	}
	if shifted {
		// the sub-groups after the removed one moved up a slot
		s.broadcast(ctx, e, LoadDonePacket(e), 0)
	}
}

func (s *Service) changeMaster(ctx context.Context, user party.RemoteUser, r ChangeMasterRequest) {
	e, ok := s.lockMember(user.CharID)
	if !ok {
		return
	}
	defer e.Unlock()
	if !e.SetMasterID(user.CharID, r.TargetID) {
		s.logger.Debug("expedition master change rejected",
			zap.Int32("char_id", user.CharID),
			zap.Int32("target_id", r.TargetID))
		return
	}
	s.broadcast(ctx, e, MasterChangedPacket(r.TargetID), 0)
	s.pushInfo(ctx, e, user.CharID)
	s.pushInfo(ctx, e, r.TargetID)
}

func (s *Service) changePartyBoss(ctx context.Context, user party.RemoteUser, r ChangePartyBossRequest) {
	e, ok := s.lockMember(user.CharID)
	if !ok {
		return
	}
	defer e.Unlock()
	p := e.PartyOf(user.CharID)
	if p.BossID() != user.CharID || !p.SetBoss(r.TargetID) {
		return
	}
	s.broadcast(ctx, e, ModifiedPacket(e, p), 0)
}

func (s *Service) relocate(ctx context.Context, user party.RemoteUser, r RelocateMemberRequest) {
	e, ok := s.lockMember(user.CharID)
	if !ok {
		return
	}
	defer e.Unlock()
	if e.MasterID() != user.CharID {
		return
	}
	target, ok := e.Member(r.CharID)
	if !ok {
		return
	}
	src := e.PartyOf(r.CharID)
	dst := e.PartyByID(r.PartyID)
	if dst == nil || dst == src || !dst.CanAddMember(target) {
		return
	}
	src.RemoveMember(r.CharID)
	dst.AddMember(target)
	if e.MasterID() == r.CharID {
		e.SetMasterID(r.CharID, r.CharID)
	}
	if src.IsEmpty() {
		e.RemoveParty(src)
		s.parties.Remove(src)
		s.broadcast(ctx, e, LoadDonePacket(e), 0)
	} else {
		s.broadcast(ctx, e, ModifiedPacket(e, src), 0)
		s.broadcast(ctx, e, ModifiedPacket(e, dst), 0)
	}
	s.pushInfo(ctx, e, r.CharID)
}

// UpdateUser refreshes the stored snapshot of user (level, job, location)
// and redraws their sub-group for everyone.
func (s *Service) UpdateUser(ctx context.Context, user party.RemoteUser) {
	e, ok := s.lockMember(user.CharID)
	if !ok {
		return
	}
	defer e.Unlock()
	if !e.UpdateMember(user) {
		return
	}
	s.broadcast(ctx, e, ModifiedPacket(e, e.PartyOf(user.CharID)), 0)
}
