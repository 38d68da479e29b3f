package bus

import "fmt"

// Kind discriminates the closed set of event variants carried by the bus.
// Adding a kind means extending every exhaustive switch over it, which is
// exactly the point: new event types are a compile-time-checked change.
type Kind int

const (
	// KindChatMessage is a message broadcast to a conversation group.
	KindChatMessage Kind = iota
	// KindOnlineUsers is a presence update broadcast to a conversation group.
	KindOnlineUsers
	// KindNotify is an out-of-band push to a user's personal group.
	KindNotify
)

func (k Kind) String() string {
	switch k {
	case KindChatMessage:
		return "chat_message"
	case KindOnlineUsers:
		return "online_users"
	case KindNotify:
		return "notify"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ChatMessage is the payload of a KindChatMessage event.
type ChatMessage struct {
	Message  string  `json:"message"`
	Username string  `json:"username"`
	File     *string `json:"file"`
}

// Notify is the payload of a KindNotify event.
type Notify struct {
	Message   string `json:"message"`
	Recipient string `json:"recipient"`
	Sender    string `json:"sender"`
}

// Event is a tagged union: exactly the payload matching Kind is set.
type Event struct {
	Kind        Kind
	ChatMessage *ChatMessage
	OnlineUsers []string
	Notify      *Notify
}

// ChatGroup names the broadcast group for one conversation.
func ChatGroup(conversationID int) string {
	return fmt.Sprintf("chat_%d", conversationID)
}

// NotificationsGroup names a user's personal notification group.
func NotificationsGroup(userID int) string {
	return fmt.Sprintf("user_%d_notifications", userID)
}

// RequestNotificationsGroup names a user's friend-request notification group.
func RequestNotificationsGroup(userID int) string {
	return fmt.Sprintf("user_%d_request_notifications", userID)
}
