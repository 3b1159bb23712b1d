// Package central carries expedition traffic between channel servers and the
// central server over the cache pub/sub.
//
// Channels publish to the central topic; the central server answers on one
// topic per channel. Every message is a CBOR-encoded Envelope.
package central

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"github.com/kasuganosora/worldsrv/game/expedition"
	"github.com/kasuganosora/worldsrv/game/party"
)

// Kind tags what an Envelope carries.
type Kind uint8

const (
	// channel → central
	KindExpeditionRequest Kind = iota + 1
	KindUserOnline
	KindUserUpdate
	KindUserOffline

	// central → channel
	KindDeliver
	KindInfo
)

func (k Kind) String() string {
	switch k {
	case KindExpeditionRequest:
		return "expedition_request"
	case KindUserOnline:
		return "user_online"
	case KindUserUpdate:
		return "user_update"
	case KindUserOffline:
		return "user_offline"
	case KindDeliver:
		return "deliver"
	case KindInfo:
		return "info"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Envelope is one message on a central topic. User is the sender snapshot on
// the way in and the recipient on the way out. Body holds an encoded
// expedition request or an encoded client frame, depending on Kind.
type Envelope struct {
	Kind Kind             `cbor:"1,keyasint"`
	User party.RemoteUser `cbor:"2,keyasint"`
	Body []byte           `cbor:"3,keyasint,omitempty"`
	Info expedition.Info  `cbor:"4,keyasint,omitempty"`
}

var ErrMalformed = errors.New("central: malformed envelope")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("central: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("central: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes env for publishing.
func (env *Envelope) Marshal() (string, error) {
	b, err := encMode.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("central: encode %s: %w", env.Kind, err)
	}
	return string(b), nil
}

// Unmarshal decodes a published payload.
func Unmarshal(payload string) (*Envelope, error) {
	var env Envelope
	if err := decMode.Unmarshal([]byte(payload), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Kind == 0 {
		return nil, fmt.Errorf("%w: missing kind", ErrMalformed)
	}
	return &env, nil
}

// CentralTopic is where channel servers publish.
func CentralTopic(prefix string) string {
	return prefix + ":central:expedition"
}

// ChannelTopic is where the central server answers channel channelID.
func ChannelTopic(prefix string, channelID int32) string {
	return prefix + ":channel:" + strconv.Itoa(int(channelID))
}
