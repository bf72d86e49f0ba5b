package ws

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"team-chat/domain"
	"team-chat/domain/chat"
	"team-chat/domain/event"
)

func TestDecodeEnvelope(t *testing.T) {
	req := require.New(t)

	env, err := DecodeEnvelope([]byte(`{"event":"send-message","data":{"chatId":"general","content":"hi"}}`))
	req.NoError(err)
	req.Equal(InSendMessage, env.Event)
	req.JSONEq(`{"chatId":"general","content":"hi"}`, string(env.Data))

	_, err = DecodeEnvelope([]byte(`not json at all`))
	req.Error(err)

	_, err = DecodeEnvelope([]byte(`{"data":{}}`))
	req.Error(err)
}

func TestEncodeEvent_RoundTrip(t *testing.T) {
	req := require.New(t)
	posted := event.MessagePosted{Message: chat.Message{
		ID:      uuid.New(),
		ChatID:  "general",
		Content: "hello",
	}}

	frame, err := EncodeEvent(posted)
	req.NoError(err)

	env, err := DecodeEnvelope(frame)
	req.NoError(err)
	req.Equal(event.WireNewMessage, env.Event)

	var decoded event.MessagePosted
	req.NoError(json.Unmarshal(env.Data, &decoded))
	req.Equal(posted.Message.ID, decoded.Message.ID)
	req.Equal("hello", decoded.Message.Content)
}

func TestDecode_ValidatesPayloads(t *testing.T) {
	validate := validator.New()

	envelope := func(data string) Envelope {
		return Envelope{Event: "test", Data: json.RawMessage(data)}
	}

	t.Run("send-message requires chat and content", func(t *testing.T) {
		req := require.New(t)
		p, err := decode[SendMessagePayload](envelope(`{"chatId":"general","content":"hi"}`), validate)
		req.NoError(err)
		req.Equal(chat.ChatID("general"), p.ChatID)

		_, err = decode[SendMessagePayload](envelope(`{"chatId":"general"}`), validate)
		req.Error(err)

		_, err = decode[SendMessagePayload](envelope(`{"content":"hi"}`), validate)
		req.Error(err)
	})

	t.Run("mark-read requires at least one id", func(t *testing.T) {
		req := require.New(t)
		_, err := decode[MarkReadPayload](envelope(`{"chatId":"general","messageIds":[]}`), validate)
		req.Error(err)

		p, err := decode[MarkReadPayload](envelope(`{"chatId":"general","messageIds":["m1"]}`), validate)
		req.NoError(err)
		req.Equal([]string{"m1"}, p.MessageIDs)
	})

	t.Run("set-status accepts known statuses only", func(t *testing.T) {
		req := require.New(t)
		_, err := decode[SetStatusPayload](envelope(`{"status":"sleeping"}`), validate)
		req.Error(err)

		p, err := decode[SetStatusPayload](envelope(`{"status":"away"}`), validate)
		req.NoError(err)
		req.Equal("away", p.Status)
	})

	t.Run("malformed json is rejected", func(t *testing.T) {
		req := require.New(t)
		_, err := decode[JoinChatPayload](envelope(`{"chatId":42}`), validate)
		req.Error(err)
	})
}

func TestPrimaryRole(t *testing.T) {
	req := require.New(t)

	req.Equal(domain.RoleUser, primaryRole(nil))
	req.Equal(domain.RoleUser, primaryRole([]string{"user"}))
	req.Equal(domain.RoleManager, primaryRole([]string{"user", "manager"}))
	// Admin wins regardless of ordering.
	req.Equal(domain.RoleAdmin, primaryRole([]string{"manager", "admin", "user"}))
	// Unknown roles never grant anything.
	req.Equal(domain.RoleUser, primaryRole([]string{"superuser", "root"}))
}
