package application

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"minecraft-ai/internal/domain"
)

type ConversationEventType string

const (
	EventMessage    ConversationEventType = "message"
	EventTranscript ConversationEventType = "transcript"
	EventLiveState  ConversationEventType = "live_state"
)

type ConversationEvent struct {
	Type       ConversationEventType `json:"type"`
	Message    *domain.Message       `json:"message,omitempty"`
	Transcript string                `json:"transcript,omitempty"`
	State      domain.SessionState   `json:"state,omitempty"`
}

// Conversation holds the message list and the running input transcript and
// fans changes out to subscribers. Slow subscribers miss events.
type Conversation struct {
	mu         sync.Mutex
	messages   []domain.Message
	transcript string
	state      domain.SessionState
	subs       map[int]chan ConversationEvent
	nextSub    int
	now        func() time.Time
}

// NewConversation returns an empty conversation with the live state Idle.
func NewConversation() *Conversation {
	return &Conversation{
		state: domain.SessionIdle,
		subs:  make(map[int]chan ConversationEvent),
		now:   time.Now,
	}
}

// Add records a message with a fresh ID and publishes it.
func (c *Conversation) Add(role domain.Role, content string) domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := domain.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: c.now(),
	}
	c.messages = append(c.messages, msg)
	c.publishLocked(ConversationEvent{Type: EventMessage, Message: &msg})
	return msg
}

// Messages returns a copy of all messages in order.
func (c *Conversation) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Message(nil), c.messages...)
}

// Recent returns at most n of the latest messages, oldest first.
func (c *Conversation) Recent(n int) []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := max(len(c.messages)-n, 0)
	return append([]domain.Message(nil), c.messages[start:]...)
}

// AppendTranscript adds text to the running transcript, space separated.
func (c *Conversation) AppendTranscript(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcript = strings.TrimSpace(c.transcript + " " + text)
	c.publishLocked(ConversationEvent{Type: EventTranscript, Transcript: c.transcript})
}

// ClearTranscript empties the running transcript at the end of a turn.
func (c *Conversation) ClearTranscript() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transcript == "" {
		return
	}
	c.transcript = ""
	c.publishLocked(ConversationEvent{Type: EventTranscript})
}

// Transcript returns the running input transcript.
func (c *Conversation) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

// SetLiveState publishes a live state change; repeating the current state is a no-op.
func (c *Conversation) SetLiveState(state domain.SessionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == state {
		return
	}
	c.state = state
	c.publishLocked(ConversationEvent{Type: EventLiveState, State: state})
}

func (c *Conversation) LiveState() domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel of future events and a function that ends the
// subscription and closes the channel.
func (c *Conversation) Subscribe(buffer int) (<-chan ConversationEvent, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan ConversationEvent, buffer)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
}

func (c *Conversation) publishLocked(ev ConversationEvent) {
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
