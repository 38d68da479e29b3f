package dispatch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"chat-core/internal/bus"
	"chat-core/internal/models"
	"chat-core/internal/observability"
	"chat-core/internal/repositories"
)

const (
	defaultWorkers = 4
	queueSize      = 256
)

// Dispatcher turns persisted messages and friend requests into pushes on the
// recipients' personal groups. It consumes the message repository's created
// feed and accepts direct friend-request triggers; all work is fire-and-forget
// and undeliverable pushes are dropped.
type Dispatcher struct {
	bus           *bus.Bus
	conversations repositories.ConversationRepository
	users         repositories.UserRepository
	messages      repositories.MessageRepository
	logger        *zap.Logger
	workers       int

	mu     sync.Mutex
	jobs   chan func(context.Context)
	closed bool
}

// New constructs a Dispatcher. Run must be called before notifications flow.
func New(
	b *bus.Bus,
	conversations repositories.ConversationRepository,
	users repositories.UserRepository,
	messages repositories.MessageRepository,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		bus:           b,
		conversations: conversations,
		users:         users,
		messages:      messages,
		logger:        logger,
		workers:       defaultWorkers,
		jobs:          make(chan func(context.Context), queueSize),
	}
}

// Run processes notification work until ctx is canceled. It owns the
// subscription to the message-created feed; sessions never talk to the
// dispatcher for regular messages.
func (d *Dispatcher) Run(ctx context.Context) {
	feed, cancel := d.messages.SubscribeCreated(queueSize)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range d.jobs {
				job(ctx)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			d.mu.Lock()
			d.closed = true
			close(d.jobs)
			d.mu.Unlock()
			wg.Wait()
			return
		case created := <-feed:
			msg := created.Message
			d.enqueue(func(ctx context.Context) {
				d.notifyMessage(ctx, msg)
			})
		}
	}
}

// NotifyFriendRequest queues a "New Friend Request" push for the recipient's
// request group. Safe to call from any goroutine.
func (d *Dispatcher) NotifyFriendRequest(_ context.Context, recipient models.User, sender string) {
	d.enqueue(func(_ context.Context) {
		delivered := d.bus.Publish(bus.RequestNotificationsGroup(recipient.ID), bus.Event{
			Kind: bus.KindNotify,
			Notify: &bus.Notify{
				Message:   "New Friend Request",
				Recipient: recipient.Username,
				Sender:    sender,
			},
		})
		observability.IncNotificationDispatched("friend_request")
		observability.IncBusEvent(bus.KindNotify.String())
		d.logger.Debug("friend request dispatched",
			zap.String("recipient", recipient.Username), zap.Int("delivered", delivered))
	})
}

func (d *Dispatcher) enqueue(job func(context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.jobs <- job:
	default:
		d.logger.Warn("dispatch queue full, dropping job")
	}
}

// notifyMessage pushes "New Message!" to every conversation member except the
// author. Recipients without an open notification socket simply miss the push.
func (d *Dispatcher) notifyMessage(ctx context.Context, msg models.Message) {
	author, err := d.users.GetByID(ctx, msg.AuthorID)
	if err != nil {
		d.logger.Error("resolve message author",
			zap.Int("author_id", msg.AuthorID), zap.Error(err))
		return
	}

	members, err := d.conversations.ListMembers(ctx, msg.ConversationID)
	if err != nil {
		d.logger.Error("list members for notification",
			zap.Int("conversation_id", msg.ConversationID), zap.Error(err))
		return
	}

	for _, member := range members {
		if member.ID == msg.AuthorID {
			continue
		}
		d.bus.Publish(bus.NotificationsGroup(member.ID), bus.Event{
			Kind: bus.KindNotify,
			Notify: &bus.Notify{
				Message:   "New Message!",
				Recipient: member.Username,
				Sender:    author.Username,
			},
		})
		observability.IncNotificationDispatched("new_message")
		observability.IncBusEvent(bus.KindNotify.String())
	}
}
