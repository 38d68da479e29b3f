package ws

import (
	"encoding/json"

	"chat-core/internal/bus"
	"chat-core/internal/models"
)

// Wire frames. Chat broadcasts intentionally carry no type field; clients
// tell them apart from the typed frames by shape.

type previousMessagesFrame struct {
	Type     string                  `json:"type"`
	Messages []models.HistoryMessage `json:"messages"`
}

type onlineUsersFrame struct {
	Type        string   `json:"type"`
	OnlineUsers []string `json:"online_users"`
}

type chatMessageFrame struct {
	Message  string  `json:"message"`
	Username string  `json:"username"`
	File     *string `json:"file"`
}

type notifyFrame struct {
	Message   string `json:"message"`
	Recipient string `json:"recipient"`
	Sender    string `json:"sender"`
}

// encodeChatEvent renders a bus event for a chat session. Events that have no
// business on a conversation group are dropped.
func encodeChatEvent(evt bus.Event) ([]byte, bool) {
	switch evt.Kind {
	case bus.KindChatMessage:
		if evt.ChatMessage == nil {
			return nil, false
		}
		return marshalFrame(chatMessageFrame{
			Message:  evt.ChatMessage.Message,
			Username: evt.ChatMessage.Username,
			File:     evt.ChatMessage.File,
		})
	case bus.KindOnlineUsers:
		users := evt.OnlineUsers
		if users == nil {
			users = []string{}
		}
		return marshalFrame(onlineUsersFrame{Type: "online_users", OnlineUsers: users})
	case bus.KindNotify:
		return nil, false
	}
	return nil, false
}

// encodeNotifyEvent renders a bus event for a notification session. Only
// notify events with a known sender go out; everything else is dropped.
func encodeNotifyEvent(evt bus.Event) ([]byte, bool) {
	switch evt.Kind {
	case bus.KindNotify:
		if evt.Notify == nil || evt.Notify.Sender == "" {
			return nil, false
		}
		return marshalFrame(notifyFrame{
			Message:   evt.Notify.Message,
			Recipient: evt.Notify.Recipient,
			Sender:    evt.Notify.Sender,
		})
	case bus.KindChatMessage, bus.KindOnlineUsers:
		return nil, false
	}
	return nil, false
}

func marshalFrame(frame any) ([]byte, bool) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return nil, false
	}
	return payload, true
}
