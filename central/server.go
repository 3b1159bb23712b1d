package central

import (
	"context"
	"fmt"

	"github.com/kasuganosora/worldsrv/cache"
	"github.com/kasuganosora/worldsrv/game/expedition"
	"github.com/kasuganosora/worldsrv/game/packet"
	"github.com/kasuganosora/worldsrv/game/party"
	"go.uber.org/zap"
)

// OfflineChannel marks a member snapshot whose character is not connected.
const OfflineChannel int32 = -1

// Relay sends expedition output to the channel each member is connected to.
// It implements expedition.Notifier.
type Relay struct {
	ps     cache.PubSub
	prefix string
	logger *zap.Logger
}

// NewRelay creates a Relay publishing under prefix.
func NewRelay(ps cache.PubSub, prefix string, logger *zap.Logger) *Relay {
	return &Relay{ps: ps, prefix: prefix, logger: logger}
}

func (r *Relay) send(ctx context.Context, env *Envelope) {
	if env.User.ChannelID == OfflineChannel {
		return
	}
	payload, err := env.Marshal()
	if err != nil {
		r.logger.Error("relay encode failed", zap.Error(err))
		return
	}
	if err := r.ps.Publish(ctx, ChannelTopic(r.prefix, env.User.ChannelID), payload); err != nil {
		r.logger.Warn("relay publish failed",
			zap.Int32("char_id", env.User.CharID),
			zap.Int32("channel_id", env.User.ChannelID),
			zap.Stringer("kind", env.Kind),
			zap.Error(err))
	}
}

// Notify delivers a client frame to target.
func (r *Relay) Notify(ctx context.Context, target party.RemoteUser, out *packet.OutPacket) {
	r.send(ctx, &Envelope{Kind: KindDeliver, User: target, Body: out.Bytes()})
}

// UpdateInfo tells target's channel about target's membership.
func (r *Relay) UpdateInfo(ctx context.Context, target party.RemoteUser, info expedition.Info) {
	r.send(ctx, &Envelope{Kind: KindInfo, User: target, Info: info})
}

// Server is the central end: it owns the expedition service and the online
// user directory and applies what channels publish.
type Server struct {
	ps     cache.PubSub
	prefix string
	svc    *expedition.Service
	users  *UserStorage
	logger *zap.Logger
}

// NewServer creates a Server.
func NewServer(ps cache.PubSub, prefix string, svc *expedition.Service, users *UserStorage, logger *zap.Logger) *Server {
	return &Server{ps: ps, prefix: prefix, svc: svc, users: users, logger: logger}
}

// Start subscribes to the central topic and serves it until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	msgs, unsub, err := s.ps.Subscribe(ctx, CentralTopic(s.prefix))
	if err != nil {
		return fmt.Errorf("central: subscribe: %w", err)
	}
	go serve(ctx, msgs, unsub, s.logger, s.dispatch)
	s.logger.Info("central server listening", zap.String("topic", CentralTopic(s.prefix)))
	return nil
}

func (s *Server) dispatch(ctx context.Context, env *Envelope) {
	switch env.Kind {
	case KindExpeditionRequest:
		req, err := expedition.UnmarshalRequest(env.Body)
		if err != nil {
			s.logger.Warn("dropping expedition request",
				zap.Int32("char_id", env.User.CharID), zap.Error(err))
			return
		}
		if err := s.svc.Handle(ctx, env.User, req); err != nil {
			s.logger.Error("expedition request failed",
				zap.Int32("char_id", env.User.CharID),
				zap.Stringer("type", req.Type()),
				zap.Error(err))
		}
	case KindUserOnline, KindUserUpdate:
		if err := s.users.Put(ctx, env.User); err != nil {
			s.logger.Warn("user directory write failed", zap.Error(err))
		}
		s.svc.UpdateUser(ctx, env.User)
	case KindUserOffline:
		if err := s.users.Remove(ctx, env.User); err != nil {
			s.logger.Warn("user directory write failed", zap.Error(err))
		}
		env.User.ChannelID = OfflineChannel
		s.svc.UpdateUser(ctx, env.User)
	default:
		s.logger.Warn("unexpected envelope on central topic", zap.Stringer("kind", env.Kind))
	}
}

// serve decodes messages and hands them to fn one at a time. A panic in fn
// is logged and the loop carries on.
func serve(ctx context.Context, msgs <-chan *cache.Message, unsub func(), logger *zap.Logger, fn func(context.Context, *Envelope)) {
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			env, err := Unmarshal(msg.Payload)
			if err != nil {
				logger.Warn("dropping envelope", zap.String("topic", msg.Channel), zap.Error(err))
				continue
			}
			handle(ctx, env, logger, fn)
		}
	}
}

func handle(ctx context.Context, env *Envelope, logger *zap.Logger, fn func(context.Context, *Envelope)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("envelope handler panic",
				zap.Stringer("kind", env.Kind),
				zap.Int32("char_id", env.User.CharID),
				zap.Any("panic", r))
		}
	}()
	fn(ctx, env)
}
