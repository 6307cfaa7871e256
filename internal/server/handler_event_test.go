package server

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/gatherlab/gatherd/internal/protocol"
	"github.com/gatherlab/gatherd/pkg/client"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLifecycle(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()
	alice, aliceTok := env.newUser(t, "alice")
	bob, bobTok := env.newUser(t, "bob")

	eventID, err := alice.EventCreate(ctx, aliceTok,
		"Board games", "Bring snacks", "Community hall", "2026-10-01 19:00:00", "public")
	require.NoError(t, err)

	// The creator is already a participant.
	resp, err := alice.Do(ctx, protocol.CmdEventMembers, aliceTok, strconv.FormatInt(eventID, 10))
	require.NoError(t, err)
	assert.Contains(t, resp.Extra, "alice")

	require.NoError(t, bob.EventJoin(ctx, bobTok, eventID))
	resp, err = bob.Do(ctx, protocol.CmdEventMembers, bobTok, strconv.FormatInt(eventID, 10))
	require.NoError(t, err)
	assert.Contains(t, resp.Extra, "alice")
	assert.Contains(t, resp.Extra, "bob")

	// Joining twice conflicts.
	var srvErr *client.ServerError
	err = bob.EventJoin(ctx, bobTok, eventID)
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, protocol.StatusConflict, srvErr.Code)

	// Detail carries the full record.
	resp, err = bob.Do(ctx, protocol.CmdEventDetail, bobTok, strconv.FormatInt(eventID, 10))
	require.NoError(t, err)
	parts := strings.Split(resp.Extra, "|")
	require.Len(t, parts, 8)
	assert.Equal(t, "Board games", parts[1])
	assert.Equal(t, "alice", parts[6])
	assert.Equal(t, "2", parts[7])

	// Only the creator may update or delete.
	resp, err = bob.Do(ctx, protocol.CmdEventUpdate, bobTok, strconv.FormatInt(eventID, 10),
		"Hijacked", "", "Elsewhere", "2026-10-01 19:00:00", "public")
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusUnauthorized, resp.Code)

	resp, err = alice.Do(ctx, protocol.CmdEventUpdate, aliceTok, strconv.FormatInt(eventID, 10),
		"Board games night", "Bring snacks", "Community hall", "2026-10-01 20:00:00", "public")
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusOK, resp.Code)

	require.NoError(t, bob.EventLeave(ctx, bobTok, eventID))
	err = bob.EventLeave(ctx, bobTok, eventID)
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, protocol.StatusNotFound, srvErr.Code)

	resp, err = alice.Do(ctx, protocol.CmdEventDelete, aliceTok, strconv.FormatInt(eventID, 10))
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusOK, resp.Code)

	resp, err = alice.Do(ctx, protocol.CmdEventDetail, aliceTok, strconv.FormatInt(eventID, 10))
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusNotFound, resp.Code)
}

func TestEventCreateValidation(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()
	alice, aliceTok := env.newUser(t, "alice")

	var srvErr *client.ServerError

	_, err := alice.EventCreate(ctx, aliceTok, "", "", "Hall", "2026-10-01 19:00:00", "public")
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, protocol.StatusUnprocessable, srvErr.Code)

	_, err = alice.EventCreate(ctx, aliceTok, "Party", "", "Hall", "next friday", "public")
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, protocol.StatusUnprocessable, srvErr.Code)

	_, err = alice.EventCreate(ctx, aliceTok, "Party", "", "Hall", "2026-10-01 19:00:00", "secret")
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, protocol.StatusUnprocessable, srvErr.Code)
}

func TestEventListAndSearch(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()
	alice, aliceTok := env.newUser(t, "alice")
	bob, bobTok := env.newUser(t, "bob")

	_, err := alice.EventCreate(ctx, aliceTok, "Chess club", "", "Library", "2026-10-01 18:00:00", "public")
	require.NoError(t, err)
	_, err = bob.EventCreate(ctx, bobTok, "Hiking trip", "", "North trail", "2026-10-02 08:00:00", "public")
	require.NoError(t, err)

	resp, err := alice.Do(ctx, protocol.CmdEventList, aliceTok)
	require.NoError(t, err)
	assert.Equal(t, "2 events", resp.Message)
	assert.Contains(t, resp.Extra, "Chess club")
	assert.Contains(t, resp.Extra, "Hiking trip")

	// EVENT_MINE only returns events the caller created or joined.
	resp, err = alice.Do(ctx, protocol.CmdEventMine, aliceTok)
	require.NoError(t, err)
	assert.Contains(t, resp.Extra, "Chess club")
	assert.NotContains(t, resp.Extra, "Hiking trip")

	resp, err = bob.Do(ctx, protocol.CmdEventSearch, bobTok, "chess")
	require.NoError(t, err)
	assert.Contains(t, resp.Extra, "Chess club")
	assert.NotContains(t, resp.Extra, "Hiking trip")

	// Location matches too.
	resp, err = bob.Do(ctx, protocol.CmdEventSearch, bobTok, "trail")
	require.NoError(t, err)
	assert.Contains(t, resp.Extra, "Hiking trip")

	resp, err = bob.Do(ctx, protocol.CmdEventSearch, bobTok, "")
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusBadRequest, resp.Code)
}

func TestPrivateEventJoinRequiresApproval(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()
	alice, aliceTok := env.newUser(t, "alice")
	bob, bobTok := env.newUser(t, "bob")

	eventID, err := alice.EventCreate(ctx, aliceTok,
		"Book club", "Members only", "Alice's place", "2026-10-05 19:00:00", "private")
	require.NoError(t, err)

	// Direct join is refused.
	var srvErr *client.ServerError
	err = bob.EventJoin(ctx, bobTok, eventID)
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, protocol.StatusUnauthorized, srvErr.Code)

	// Request, then the creator approves.
	resp, err := bob.Do(ctx, protocol.CmdEventReqJoin, bobTok, strconv.FormatInt(eventID, 10))
	require.NoError(t, err)
	require.Equal(t, protocol.StatusOK, resp.Code)

	resp, err = alice.Do(ctx, protocol.CmdEventJoinReqs, aliceTok, strconv.FormatInt(eventID, 10))
	require.NoError(t, err)
	assert.Contains(t, resp.Extra, "bob")

	// Only the creator may list or resolve requests.
	resp, err = bob.Do(ctx, protocol.CmdEventJoinReqs, bobTok, strconv.FormatInt(eventID, 10))
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusUnauthorized, resp.Code)

	resp, err = alice.Do(ctx, protocol.CmdEventApprove, aliceTok,
		strconv.FormatInt(eventID, 10), "bob", "true")
	require.NoError(t, err)
	require.Equal(t, protocol.StatusOK, resp.Code)

	resp, err = alice.Do(ctx, protocol.CmdEventMembers, aliceTok, strconv.FormatInt(eventID, 10))
	require.NoError(t, err)
	assert.Contains(t, resp.Extra, "bob")
}

func TestEventInvitationFlow(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()
	alice, aliceTok := env.newUser(t, "alice")
	bob, bobTok := env.newUser(t, "bob")

	eventID, err := alice.EventCreate(ctx, aliceTok,
		"Movie night", "", "Cinema", "2026-10-03 21:00:00", "private")
	require.NoError(t, err)

	invitationID, err := alice.EventInvite(ctx, aliceTok, eventID, "bob")
	require.NoError(t, err)

	n := waitNotification(t, bob, protocol.NotifyEventInvite)
	require.Len(t, n.Fields, 3)
	assert.Equal(t, "alice", n.Fields[0])
	assert.Equal(t, "Movie night", n.Fields[1])
	assert.Equal(t, fmt.Sprintf("%d", invitationID), n.Fields[2])

	resp, err := bob.Do(ctx, protocol.CmdInvitationList, bobTok)
	require.NoError(t, err)
	assert.Contains(t, resp.Extra, "Movie night")

	resp, err = bob.Do(ctx, protocol.CmdEventInviteResp, bobTok,
		strconv.FormatInt(invitationID, 10), "true")
	require.NoError(t, err)
	require.Equal(t, protocol.StatusOK, resp.Code)

	// Accepting joined the event; the invitation is gone.
	resp, err = bob.Do(ctx, protocol.CmdEventMembers, bobTok, strconv.FormatInt(eventID, 10))
	require.NoError(t, err)
	assert.Contains(t, resp.Extra, "bob")
	resp, err = bob.Do(ctx, protocol.CmdInvitationList, bobTok)
	require.NoError(t, err)
	assert.Empty(t, resp.Extra)
}

func TestEventInviteRequiresParticipation(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()
	alice, aliceTok := env.newUser(t, "alice")
	bob, bobTok := env.newUser(t, "bob")
	_, _ = env.newUser(t, "carol")

	eventID, err := alice.EventCreate(ctx, aliceTok,
		"Dinner", "", "Restaurant", "2026-10-04 20:00:00", "public")
	require.NoError(t, err)

	// bob is not a participant, so he may not invite carol.
	var srvErr *client.ServerError
	_, err = bob.EventInvite(ctx, bobTok, eventID, "carol")
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, protocol.StatusUnauthorized, srvErr.Code)

	_, err = alice.EventInvite(ctx, aliceTok, eventID, "alice")
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, protocol.StatusBadRequest, srvErr.Code)
}

func TestActivityList(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()
	alice, aliceTok := env.newUser(t, "alice")

	eventID, err := alice.EventCreate(ctx, aliceTok,
		"Run", "", "Park", "2026-10-06 07:00:00", "public")
	require.NoError(t, err)
	resp, err := alice.Do(ctx, protocol.CmdEventDelete, aliceTok, strconv.FormatInt(eventID, 10))
	require.NoError(t, err)
	require.Equal(t, protocol.StatusOK, resp.Code)

	resp, err = alice.Do(ctx, protocol.CmdActivityList, aliceTok)
	require.NoError(t, err)
	require.Equal(t, protocol.StatusOK, resp.Code)
	assert.Contains(t, resp.Extra, "event_create")
	assert.Contains(t, resp.Extra, "event_delete")

	// An explicit limit truncates the history.
	resp, err = alice.Do(ctx, protocol.CmdActivityList, aliceTok, "1")
	require.NoError(t, err)
	assert.Len(t, strings.Split(resp.Extra, "\n"), 1)

	resp, err = alice.Do(ctx, protocol.CmdActivityList, aliceTok, "zero")
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusBadRequest, resp.Code)
}
