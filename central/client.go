package central

import (
	"context"
	"fmt"
	"time"

	"github.com/kasuganosora/worldsrv/cache"
	"github.com/kasuganosora/worldsrv/config"
	"github.com/kasuganosora/worldsrv/game/expedition"
	"github.com/kasuganosora/worldsrv/game/party"
	"github.com/kasuganosora/worldsrv/game/player"
	"go.uber.org/zap"
)

// Sessions looks up characters connected to this channel.
type Sessions interface {
	Get(charID int32) *player.PlayerSession
}

// Client is the channel end: it forwards requests and presence to the central
// server and hands the answers to local sessions.
type Client struct {
	ps        cache.PubSub
	prefix    string
	channelID int32
	timeout   time.Duration
	sessions  Sessions
	logger    *zap.Logger
}

// NewClient creates a Client for channel channelID.
func NewClient(ps cache.PubSub, cfg config.CentralConfig, channelID int32, sessions Sessions, logger *zap.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		ps:        ps,
		prefix:    cfg.TopicPrefix,
		channelID: channelID,
		timeout:   timeout,
		sessions:  sessions,
		logger:    logger,
	}
}

// Snapshot copies what the central server needs to know about u.
func (c *Client) Snapshot(u *player.PlayerSession) party.RemoteUser {
	level, job := u.Profile()
	partyID, _ := u.Party()
	return party.RemoteUser{
		CharID:    u.CharID,
		Name:      u.CharName,
		Level:     level,
		Job:       job,
		ChannelID: c.channelID,
		FieldID:   u.FieldID(),
		PartyID:   partyID,
	}
}

func (c *Client) publish(ctx context.Context, env *Envelope) error {
	payload, err := env.Marshal()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.ps.Publish(ctx, CentralTopic(c.prefix), payload); err != nil {
		return fmt.Errorf("central: publish %s: %w", env.Kind, err)
	}
	return nil
}

// SubmitExpeditionRequest forwards req on behalf of u. The answer arrives
// asynchronously through Start's subscription.
func (c *Client) SubmitExpeditionRequest(ctx context.Context, u *player.PlayerSession, req expedition.Request) error {
	return c.publish(ctx, &Envelope{
		Kind: KindExpeditionRequest,
		User: c.Snapshot(u),
		Body: expedition.MarshalRequest(req),
	})
}

// Online announces u to the central user directory.
func (c *Client) Online(ctx context.Context, u *player.PlayerSession) error {
	return c.publish(ctx, &Envelope{Kind: KindUserOnline, User: c.Snapshot(u)})
}

// Update sends u's current level, job and location.
func (c *Client) Update(ctx context.Context, u *player.PlayerSession) error {
	return c.publish(ctx, &Envelope{Kind: KindUserUpdate, User: c.Snapshot(u)})
}

// Offline withdraws u from the central user directory.
func (c *Client) Offline(ctx context.Context, u *player.PlayerSession) error {
	return c.publish(ctx, &Envelope{Kind: KindUserOffline, User: c.Snapshot(u)})
}

// Start subscribes to this channel's topic and serves it until ctx is done.
func (c *Client) Start(ctx context.Context) error {
	topic := ChannelTopic(c.prefix, c.channelID)
	msgs, unsub, err := c.ps.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("central: subscribe: %w", err)
	}
	go serve(ctx, msgs, unsub, c.logger, c.dispatch)
	c.logger.Info("central client listening", zap.String("topic", topic))
	return nil
}

func (c *Client) dispatch(_ context.Context, env *Envelope) {
	s := c.sessions.Get(env.User.CharID)
	if s == nil {
		c.logger.Debug("recipient left the channel",
			zap.Int32("char_id", env.User.CharID), zap.Stringer("kind", env.Kind))
		return
	}
	switch env.Kind {
	case KindDeliver:
		s.SendRaw(env.Body)
	case KindInfo:
		s.SetExpedition(player.ExpeditionState{
			ID:          env.Info.ExpeditionID,
			MemberIndex: env.Info.MemberIndex,
			Master:      env.Info.Master,
		})
		s.Write(expedition.InfoPacket(env.Info))
	default:
		c.logger.Warn("unexpected envelope on channel topic", zap.Stringer("kind", env.Kind))
	}
}
