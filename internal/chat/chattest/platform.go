// Package chattest provides an in-memory chat.Platform for tests.
package chattest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vaidashi/hire-a-tutor/internal/chat"
)

// ErrDMClosed simulates a user who does not accept direct messages
var ErrDMClosed = errors.New("cannot send messages to this user")

// Sent is a message posted by the bot
type Sent struct {
	ChannelID string
	MessageID string
	Message   chat.Message
}

// Channel is a channel created through the fake
type Channel struct {
	Spec    chat.ChannelSpec
	Members map[string]bool
	Deleted bool
}

// Platform records every call and serves scripted replies
type Platform struct {
	mu sync.Mutex

	nextID     int
	channels   map[string]*Channel
	byName     map[string]string
	categories map[string]string
	sent       []Sent
	edits      map[string][]chat.Button
	roles      map[string]map[string]bool // roleID -> userIDs
	dmClosed   map[string]bool
	userQueues map[string]chan chat.Incoming
	// CreateErr, when set, fails CreatePrivateChannel
	CreateErr error
	// SendErr, when set, fails Send to the named channel
	SendErr map[string]error
}

// New returns an empty fake platform
func New() *Platform {
	return &Platform{
		channels:   make(map[string]*Channel),
		byName:     make(map[string]string),
		categories: make(map[string]string),
		edits:      make(map[string][]chat.Button),
		roles:      make(map[string]map[string]bool),
		dmClosed:   make(map[string]bool),
		userQueues: make(map[string]chan chat.Incoming),
		SendErr:    make(map[string]error),
	}
}

func (p *Platform) id(prefix string) string {
	p.nextID++
	return fmt.Sprintf("%s-%d", prefix, p.nextID)
}

// AddTextChannel registers a named public channel and returns its id
func (p *Platform) AddTextChannel(name string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.id("chan")
	p.channels[id] = &Channel{Spec: chat.ChannelSpec{Name: name}}
	p.byName[name] = id
	return id
}

// AddCategory registers a category and returns its id
func (p *Platform) AddCategory(name string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.id("cat")
	p.categories[id] = name
	return id
}

// GiveRole assigns roleID to users
func (p *Platform) GiveRole(roleID string, users ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.roles[roleID] == nil {
		p.roles[roleID] = make(map[string]bool)
	}
	for _, u := range users {
		p.roles[roleID][u] = true
	}
}

// CloseDMs makes SendDirect to userID fail
func (p *Platform) CloseDMs(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dmClosed[userID] = true
}

func (p *Platform) queue(userID string) chan chat.Incoming {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.userQueues[userID]
	if !ok {
		q = make(chan chat.Incoming, 64)
		p.userQueues[userID] = q
	}
	return q
}

// Script queues text replies from userID, consumed in order by AwaitMessage
func (p *Platform) Script(userID string, replies ...string) {
	q := p.queue(userID)
	for _, r := range replies {
		q <- chat.Incoming{AuthorID: userID, Content: r}
	}
}

// ScriptAttachment queues a reply carrying one attachment
func (p *Platform) ScriptAttachment(userID, content, url string) {
	p.queue(userID) <- chat.Incoming{AuthorID: userID, Content: content, Attachments: []string{url}}
}

func (p *Platform) CreatePrivateChannel(ctx context.Context, spec chat.ChannelSpec) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.CreateErr != nil {
		return "", p.CreateErr
	}

	id := p.id("ticket")
	members := make(map[string]bool)
	for _, m := range spec.Members {
		members[m] = true
	}
	p.channels[id] = &Channel{Spec: spec, Members: members}
	p.byName[spec.Name] = id

	return id, nil
}

func (p *Platform) DeleteChannel(ctx context.Context, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, ok := p.channels[channelID]
	if !ok || ch.Deleted {
		return errors.New("unknown channel")
	}
	ch.Deleted = true
	return nil
}

func (p *Platform) GrantAccess(ctx context.Context, channelID, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, ok := p.channels[channelID]
	if !ok || ch.Deleted {
		return errors.New("unknown channel")
	}
	if ch.Members == nil {
		ch.Members = make(map[string]bool)
	}
	ch.Members[userID] = true
	return nil
}

func (p *Platform) Send(ctx context.Context, channelID string, msg chat.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.SendErr[channelID]; err != nil {
		return "", err
	}

	id := p.id("msg")
	p.sent = append(p.sent, Sent{ChannelID: channelID, MessageID: id, Message: msg})
	return id, nil
}

func (p *Platform) SendDirect(ctx context.Context, userID string, msg chat.Message) (string, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dmClosed[userID] {
		return "", "", ErrDMClosed
	}

	channelID := "dm-" + userID
	id := p.id("msg")
	p.sent = append(p.sent, Sent{ChannelID: channelID, MessageID: id, Message: msg})
	return channelID, id, nil
}

func (p *Platform) EditButtons(ctx context.Context, channelID, messageID string, buttons []chat.Button) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.edits[messageID] = append([]chat.Button(nil), buttons...)
	return nil
}

func (p *Platform) AwaitMessage(ctx context.Context, channelID, userID string) (chat.Incoming, error) {
	q := p.queue(userID)

	select {
	case msg := <-q:
		msg.ChannelID = channelID
		return msg, nil
	case <-ctx.Done():
		return chat.Incoming{}, ctx.Err()
	}
}

func (p *Platform) MembersWithRole(ctx context.Context, guildID, roleID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []string
	for u := range p.roles[roleID] {
		out = append(out, u)
	}
	return out, nil
}

func (p *Platform) HasRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.roles[roleID][userID], nil
}

func (p *Platform) ChannelByName(ctx context.Context, guildID, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.byName[name]
	if !ok {
		return "", fmt.Errorf("channel %q not found", name)
	}
	return id, nil
}

func (p *Platform) CategoryExists(ctx context.Context, guildID, categoryID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.categories[categoryID]
	return ok, nil
}

func (p *Platform) EnsureCategory(ctx context.Context, guildID, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, n := range p.categories {
		if n == name {
			return id, nil
		}
	}
	id := p.id("cat")
	p.categories[id] = name
	return id, nil
}

// SentTo returns every message posted to channelID
func (p *Platform) SentTo(channelID string) []Sent {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []Sent
	for _, s := range p.sent {
		if s.ChannelID == channelID {
			out = append(out, s)
		}
	}
	return out
}

// AllSent returns every message posted
func (p *Platform) AllSent() []Sent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Sent(nil), p.sent...)
}

// Channel returns a created channel
func (p *Platform) Channel(channelID string) (Channel, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, ok := p.channels[channelID]
	if !ok {
		return Channel{}, false
	}
	members := make(map[string]bool, len(ch.Members))
	for k, v := range ch.Members {
		members[k] = v
	}
	return Channel{Spec: ch.Spec, Members: members, Deleted: ch.Deleted}, true
}

// Edits returns the last buttons set on messageID
func (p *Platform) Edits(messageID string) ([]chat.Button, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.edits[messageID]
	return b, ok
}

// Responder records interaction replies
type Responder struct {
	mu      sync.Mutex
	Replies []string
	Modals  []chat.Modal
}

func (r *Responder) Reply(ctx context.Context, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Replies = append(r.Replies, content)
	return nil
}

func (r *Responder) ShowModal(ctx context.Context, modal chat.Modal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Modals = append(r.Modals, modal)
	return nil
}

// Last returns the most recent reply
func (r *Responder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.Replies) == 0 {
		return ""
	}
	return r.Replies[len(r.Replies)-1]
}
