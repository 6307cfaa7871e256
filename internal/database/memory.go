package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory implements Database entirely in process. It mirrors the SQL
// implementations' semantics and backs the handler tests as well as the
// "memory" database type for running without an external server.
type Memory struct {
	mu sync.RWMutex

	nextID       int64
	users        map[int64]*User
	friendReqs   map[int64]*FriendRequest
	friendships  map[[2]int64]bool
	events       map[int64]*Event
	participants map[[2]int64]bool // [eventID, userID]
	invitations  map[int64]*EventInvitation
	joinReqs     map[int64]*EventJoinRequest
	activities   []*ActivityEntry
}

var _ Database = (*Memory)(nil)

// NewMemory creates an empty in-memory database.
func NewMemory() *Memory {
	return &Memory{
		nextID:       1,
		users:        make(map[int64]*User),
		friendReqs:   make(map[int64]*FriendRequest),
		friendships:  make(map[[2]int64]bool),
		events:       make(map[int64]*Event),
		participants: make(map[[2]int64]bool),
		invitations:  make(map[int64]*EventInvitation),
		joinReqs:     make(map[int64]*EventJoinRequest),
	}
}

// Close implements Database.Close.
func (m *Memory) Close() error { return nil }

func (m *Memory) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *Memory) CreateUser(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == user.Username {
			return ErrUsernameTaken
		}
	}
	user.ID = m.id()
	user.CreatedAt = time.Now()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *Memory) GetUserByID(_ context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) CreateFriendRequest(_ context.Context, senderID, receiverID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.friendships[[2]int64{senderID, receiverID}] {
		return 0, ErrAlreadyFriends
	}
	for _, r := range m.friendReqs {
		if r.SenderID == senderID && r.ReceiverID == receiverID && r.Status == StatusPending {
			return 0, ErrRequestPending
		}
	}

	req := &FriendRequest{
		ID:         m.id(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}
	m.friendReqs[req.ID] = req
	return req.ID, nil
}

func (m *Memory) GetFriendRequest(_ context.Context, id int64) (*FriendRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, ok := m.friendReqs[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	cp := *req
	return &cp, nil
}

func (m *Memory) AcceptFriendRequest(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.friendReqs[id]
	if !ok || req.Status != StatusPending {
		return ErrRequestNotFound
	}
	req.Status = StatusAccepted
	m.friendships[[2]int64{req.SenderID, req.ReceiverID}] = true
	m.friendships[[2]int64{req.ReceiverID, req.SenderID}] = true
	return nil
}

func (m *Memory) DeclineFriendRequest(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.friendReqs[id]
	if !ok || req.Status != StatusPending {
		return ErrRequestNotFound
	}
	req.Status = StatusDeclined
	return nil
}

func (m *Memory) RemoveFriendship(_ context.Context, userID, friendID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.friendships[[2]int64{userID, friendID}] {
		return ErrNotFriends
	}
	delete(m.friendships, [2]int64{userID, friendID})
	delete(m.friendships, [2]int64{friendID, userID})
	return nil
}

func (m *Memory) ListFriends(_ context.Context, userID int64) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var friends []*User
	for pair := range m.friendships {
		if pair[0] == userID {
			if u, ok := m.users[pair[1]]; ok {
				cp := *u
				friends = append(friends, &cp)
			}
		}
	}
	sort.Slice(friends, func(i, j int) bool { return friends[i].Username < friends[j].Username })
	return friends, nil
}

func (m *Memory) ListFriendRequests(_ context.Context, userID int64) ([]*FriendRequestInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var infos []*FriendRequestInfo
	for _, r := range m.friendReqs {
		if r.ReceiverID == userID && r.Status == StatusPending {
			info := &FriendRequestInfo{
				RequestID: r.ID,
				SenderID:  r.SenderID,
				CreatedAt: r.CreatedAt,
			}
			if u, ok := m.users[r.SenderID]; ok {
				info.SenderUsername = u.Username
			}
			infos = append(infos, info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].RequestID < infos[j].RequestID })
	return infos, nil
}

func (m *Memory) AreFriends(_ context.Context, userID, friendID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.friendships[[2]int64{userID, friendID}], nil
}

func (m *Memory) CreateEvent(_ context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	event.ID = m.id()
	event.CreatedAt = time.Now()
	cp := *event
	m.events[event.ID] = &cp
	m.participants[[2]int64{event.ID, event.CreatorID}] = true
	return nil
}

func (m *Memory) UpdateEvent(_ context.Context, creatorID int64, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.events[event.ID]
	if !ok || existing.CreatorID != creatorID {
		return ErrEventNotFound
	}
	existing.Title = event.Title
	existing.Description = event.Description
	existing.Location = event.Location
	existing.EventTime = event.EventTime
	existing.EventType = event.EventType
	return nil
}

func (m *Memory) DeleteEvent(_ context.Context, creatorID, eventID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	event, ok := m.events[eventID]
	if !ok || event.CreatorID != creatorID {
		return ErrEventNotFound
	}
	delete(m.events, eventID)
	for pair := range m.participants {
		if pair[0] == eventID {
			delete(m.participants, pair)
		}
	}
	for id, inv := range m.invitations {
		if inv.EventID == eventID {
			delete(m.invitations, id)
		}
	}
	for id, req := range m.joinReqs {
		if req.EventID == eventID {
			delete(m.joinReqs, id)
		}
	}
	return nil
}

func (m *Memory) GetEvent(_ context.Context, eventID int64) (*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	event, ok := m.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	cp := *event
	return &cp, nil
}

func (m *Memory) ListEvents(_ context.Context) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collectEvents(func(*Event) bool { return true }), nil
}

func (m *Memory) ListUserEvents(_ context.Context, userID int64) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collectEvents(func(e *Event) bool {
		return m.participants[[2]int64{e.ID, userID}]
	}), nil
}

func (m *Memory) SearchEvents(_ context.Context, keyword string) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kw := strings.ToLower(keyword)
	return m.collectEvents(func(e *Event) bool {
		return strings.Contains(strings.ToLower(e.Title), kw) ||
			strings.Contains(strings.ToLower(e.Location), kw)
	}), nil
}

func (m *Memory) collectEvents(match func(*Event) bool) []*Event {
	var events []*Event
	for _, e := range m.events {
		if match(e) {
			cp := *e
			events = append(events, &cp)
		}
	}
	// newest first, matching the SQL implementations
	sort.Slice(events, func(i, j int) bool { return events[i].ID > events[j].ID })
	return events
}

func (m *Memory) JoinEvent(_ context.Context, userID, eventID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[eventID]; !ok {
		return ErrEventNotFound
	}
	key := [2]int64{eventID, userID}
	if m.participants[key] {
		return ErrAlreadyJoined
	}
	m.participants[key] = true
	return nil
}

func (m *Memory) LeaveEvent(_ context.Context, userID, eventID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := [2]int64{eventID, userID}
	if !m.participants[key] {
		return ErrNotParticipant
	}
	delete(m.participants, key)
	return nil
}

func (m *Memory) ListParticipants(_ context.Context, eventID int64) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var users []*User
	for pair := range m.participants {
		if pair[0] == eventID {
			if u, ok := m.users[pair[1]]; ok {
				cp := *u
				users = append(users, &cp)
			}
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (m *Memory) IsParticipant(_ context.Context, userID, eventID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.participants[[2]int64{eventID, userID}], nil
}

func (m *Memory) CreateInvitation(_ context.Context, eventID, senderID, receiverID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[eventID]; !ok {
		return 0, ErrEventNotFound
	}
	if m.participants[[2]int64{eventID, receiverID}] {
		return 0, ErrAlreadyJoined
	}
	for _, inv := range m.invitations {
		if inv.EventID == eventID && inv.ReceiverID == receiverID && inv.Status == StatusPending {
			return 0, ErrAlreadyInvited
		}
	}

	inv := &EventInvitation{
		ID:         m.id(),
		EventID:    eventID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}
	m.invitations[inv.ID] = inv
	return inv.ID, nil
}

func (m *Memory) RespondInvitation(_ context.Context, receiverID, invitationID int64, accept bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invitations[invitationID]
	if !ok || inv.ReceiverID != receiverID || inv.Status != StatusPending {
		return ErrRequestNotFound
	}
	if accept {
		inv.Status = StatusAccepted
		m.participants[[2]int64{inv.EventID, receiverID}] = true
	} else {
		inv.Status = StatusDeclined
	}
	return nil
}

func (m *Memory) ListInvitations(_ context.Context, receiverID int64) ([]*InvitationInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var infos []*InvitationInfo
	for _, inv := range m.invitations {
		if inv.ReceiverID == receiverID && inv.Status == StatusPending {
			info := &InvitationInfo{InvitationID: inv.ID, EventID: inv.EventID}
			if e, ok := m.events[inv.EventID]; ok {
				info.EventTitle = e.Title
			}
			if u, ok := m.users[inv.SenderID]; ok {
				info.SenderUsername = u.Username
			}
			infos = append(infos, info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].InvitationID < infos[j].InvitationID })
	return infos, nil
}

func (m *Memory) CreateJoinRequest(_ context.Context, userID, eventID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[eventID]; !ok {
		return 0, ErrEventNotFound
	}
	if m.participants[[2]int64{eventID, userID}] {
		return 0, ErrAlreadyJoined
	}
	for _, r := range m.joinReqs {
		if r.EventID == eventID && r.UserID == userID && r.Status == StatusPending {
			return 0, ErrRequestPending
		}
	}

	req := &EventJoinRequest{
		ID:        m.id(),
		EventID:   eventID,
		UserID:    userID,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	m.joinReqs[req.ID] = req
	return req.ID, nil
}

func (m *Memory) ResolveJoinRequest(_ context.Context, creatorID, eventID int64, username string, approve bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	event, ok := m.events[eventID]
	if !ok || event.CreatorID != creatorID {
		return ErrEventNotFound
	}

	var user *User
	for _, u := range m.users {
		if u.Username == username {
			user = u
			break
		}
	}
	if user == nil {
		return ErrUserNotFound
	}

	for _, req := range m.joinReqs {
		if req.EventID == eventID && req.UserID == user.ID && req.Status == StatusPending {
			if approve {
				req.Status = StatusAccepted
				m.participants[[2]int64{eventID, user.ID}] = true
			} else {
				req.Status = StatusDeclined
			}
			return nil
		}
	}
	return ErrRequestNotFound
}

func (m *Memory) ListJoinRequests(_ context.Context, creatorID, eventID int64) ([]*JoinRequestInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	event, ok := m.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	if event.CreatorID != creatorID {
		return nil, ErrNotEventOwner
	}

	var infos []*JoinRequestInfo
	for _, req := range m.joinReqs {
		if req.EventID == eventID && req.Status == StatusPending {
			info := &JoinRequestInfo{RequestID: req.ID, UserID: req.UserID}
			if u, ok := m.users[req.UserID]; ok {
				info.Username = u.Username
			}
			infos = append(infos, info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].RequestID < infos[j].RequestID })
	return infos, nil
}

func (m *Memory) LogActivity(_ context.Context, userID int64, kind, details string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.activities = append(m.activities, &ActivityEntry{
		ID:        m.id(),
		UserID:    userID,
		Kind:      kind,
		Details:   details,
		CreatedAt: time.Now(),
	})
	return nil
}

func (m *Memory) ListActivities(_ context.Context, userID int64, limit int) ([]*ActivityEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []*ActivityEntry
	for i := len(m.activities) - 1; i >= 0 && len(entries) < limit; i-- {
		if m.activities[i].UserID == userID {
			cp := *m.activities[i]
			entries = append(entries, &cp)
		}
	}
	return entries, nil
}
