package database

import (
	"context"
	"testing"

	"github.com/gatherlab/gatherd/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, db Database, username string) *User {
	t.Helper()
	u := &User{Username: username, Password: "hash", Email: username + "@example.com"}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}

func TestMemory_Users(t *testing.T) {
	db := NewMemory()
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	assert.NotZero(t, alice.ID)

	err := db.CreateUser(ctx, &User{Username: "alice"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	got, err := db.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	got, err = db.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = db.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemory_FriendRequestLifecycle(t *testing.T) {
	db := NewMemory()
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	reqID, err := db.CreateFriendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	// duplicate pending request
	_, err = db.CreateFriendRequest(ctx, alice.ID, bob.ID)
	assert.ErrorIs(t, err, ErrRequestPending)

	// bob sees the incoming request with alice's name
	reqs, err := db.ListFriendRequests(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "alice", reqs[0].SenderUsername)

	require.NoError(t, db.AcceptFriendRequest(ctx, reqID))

	// accepting is symmetric
	ok, _ := db.AreFriends(ctx, alice.ID, bob.ID)
	assert.True(t, ok)
	ok, _ = db.AreFriends(ctx, bob.ID, alice.ID)
	assert.True(t, ok)

	// already-accepted request cannot be accepted again
	assert.ErrorIs(t, db.AcceptFriendRequest(ctx, reqID), ErrRequestNotFound)

	// a new request between friends is rejected
	_, err = db.CreateFriendRequest(ctx, bob.ID, alice.ID)
	assert.ErrorIs(t, err, ErrAlreadyFriends)

	friends, err := db.ListFriends(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0].Username)

	require.NoError(t, db.RemoveFriendship(ctx, alice.ID, bob.ID))
	assert.ErrorIs(t, db.RemoveFriendship(ctx, alice.ID, bob.ID), ErrNotFriends)
}

func TestMemory_DeclineFriendRequest(t *testing.T) {
	db := NewMemory()
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	reqID, err := db.CreateFriendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, db.DeclineFriendRequest(ctx, reqID))

	ok, _ := db.AreFriends(ctx, alice.ID, bob.ID)
	assert.False(t, ok)

	// declined request no longer pending
	reqs, err := db.ListFriendRequests(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestMemory_EventLifecycle(t *testing.T) {
	db := NewMemory()
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	event := &Event{CreatorID: alice.ID, Title: "Go meetup", Location: "Hanoi", EventTime: "2026-10-01 18:00:00", EventType: "public"}
	require.NoError(t, db.CreateEvent(ctx, event))
	require.NotZero(t, event.ID)

	// the creator joins automatically
	joined, _ := db.IsParticipant(ctx, alice.ID, event.ID)
	assert.True(t, joined)

	require.NoError(t, db.JoinEvent(ctx, bob.ID, event.ID))
	assert.ErrorIs(t, db.JoinEvent(ctx, bob.ID, event.ID), ErrAlreadyJoined)

	members, err := db.ListParticipants(ctx, event.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	// update enforces ownership
	event.Title = "Go meetup vol.2"
	assert.ErrorIs(t, db.UpdateEvent(ctx, bob.ID, event), ErrEventNotFound)
	require.NoError(t, db.UpdateEvent(ctx, alice.ID, event))

	got, err := db.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go meetup vol.2", got.Title)

	found, err := db.SearchEvents(ctx, "meetup")
	require.NoError(t, err)
	assert.Len(t, found, 1)
	found, err = db.SearchEvents(ctx, "concert")
	require.NoError(t, err)
	assert.Empty(t, found)

	mine, err := db.ListUserEvents(ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	require.NoError(t, db.LeaveEvent(ctx, bob.ID, event.ID))
	assert.ErrorIs(t, db.LeaveEvent(ctx, bob.ID, event.ID), ErrNotParticipant)

	assert.ErrorIs(t, db.DeleteEvent(ctx, bob.ID, event.ID), ErrEventNotFound)
	require.NoError(t, db.DeleteEvent(ctx, alice.ID, event.ID))
	_, err = db.GetEvent(ctx, event.ID)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestMemory_Invitations(t *testing.T) {
	db := NewMemory()
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	event := &Event{CreatorID: alice.ID, Title: "Dinner", EventType: "private"}
	require.NoError(t, db.CreateEvent(ctx, event))

	invID, err := db.CreateInvitation(ctx, event.ID, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = db.CreateInvitation(ctx, event.ID, alice.ID, bob.ID)
	assert.ErrorIs(t, err, ErrAlreadyInvited)

	invs, err := db.ListInvitations(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, invs, 1)
	assert.Equal(t, "Dinner", invs[0].EventTitle)
	assert.Equal(t, "alice", invs[0].SenderUsername)

	// only the receiver may respond
	assert.ErrorIs(t, db.RespondInvitation(ctx, alice.ID, invID, true), ErrRequestNotFound)

	require.NoError(t, db.RespondInvitation(ctx, bob.ID, invID, true))
	joined, _ := db.IsParticipant(ctx, bob.ID, event.ID)
	assert.True(t, joined)

	// inviting a participant fails
	_, err = db.CreateInvitation(ctx, event.ID, alice.ID, bob.ID)
	assert.ErrorIs(t, err, ErrAlreadyJoined)
}

func TestMemory_JoinRequests(t *testing.T) {
	db := NewMemory()
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	carol := seedUser(t, db, "carol")

	event := &Event{CreatorID: alice.ID, Title: "Hike", EventType: "private"}
	require.NoError(t, db.CreateEvent(ctx, event))

	_, err := db.CreateJoinRequest(ctx, bob.ID, event.ID)
	require.NoError(t, err)
	_, err = db.CreateJoinRequest(ctx, bob.ID, event.ID)
	assert.ErrorIs(t, err, ErrRequestPending)
	_, err = db.CreateJoinRequest(ctx, carol.ID, event.ID)
	require.NoError(t, err)

	// only the creator can list
	_, err = db.ListJoinRequests(ctx, bob.ID, event.ID)
	assert.ErrorIs(t, err, ErrNotEventOwner)

	reqs, err := db.ListJoinRequests(ctx, alice.ID, event.ID)
	require.NoError(t, err)
	assert.Len(t, reqs, 2)

	require.NoError(t, db.ResolveJoinRequest(ctx, alice.ID, event.ID, "bob", true))
	joined, _ := db.IsParticipant(ctx, bob.ID, event.ID)
	assert.True(t, joined)

	require.NoError(t, db.ResolveJoinRequest(ctx, alice.ID, event.ID, "carol", false))
	joined, _ = db.IsParticipant(ctx, carol.ID, event.ID)
	assert.False(t, joined)

	// nothing pending anymore
	reqs, err = db.ListJoinRequests(ctx, alice.ID, event.ID)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestMemory_ActivityLog(t *testing.T) {
	db := NewMemory()
	ctx := context.Background()
	alice := seedUser(t, db, "alice")

	for _, kind := range []string{"LOGIN", "EVENT_CREATE", "LOGOUT"} {
		require.NoError(t, db.LogActivity(ctx, alice.ID, kind, "details"))
	}

	entries, err := db.ListActivities(ctx, alice.ID, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// newest first
	assert.Equal(t, "LOGOUT", entries[0].Kind)
	assert.Equal(t, "EVENT_CREATE", entries[1].Kind)
}

func TestNewDatabase_Factory(t *testing.T) {
	db, err := NewDatabase(&config.DatabaseConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, db)

	_, err = NewDatabase(&config.DatabaseConfig{Type: "oracle"})
	assert.Error(t, err)
}
