package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gatherlab/gatherd/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedServer answers every request with the given frames, in order.
func scriptedServer(t *testing.T, replies ...[]string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		defer nc.Close()
		framer := protocol.NewFramer(nc, 4096)
		for _, frames := range replies {
			if _, err := framer.ReadFrame(); err != nil {
				return
			}
			for _, frame := range frames {
				if err := protocol.WriteFrame(nc, frame); err != nil {
					return
				}
			}
		}
	}()
	return ln.Addr().String()
}

func TestDoReturnsResponse(t *testing.T) {
	addr := scriptedServer(t, []string{"200|Login successful|abc123"})
	c, err := Dial(addr, 0)
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.Do(context.Background(), "LOGIN", "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Code)
	assert.Equal(t, "Login successful", resp.Message)
	assert.Equal(t, "abc123", resp.Extra)
}

func TestNotificationBeforeResponseIsDemultiplexed(t *testing.T) {
	addr := scriptedServer(t, []string{
		"FRIEND_INVITE_NOTIFICATION|bob|7",
		"200|OK",
	})
	c, err := Dial(addr, 0)
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.Do(context.Background(), "FRIEND_LIST", "tok")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Code)

	select {
	case n := <-c.Notifications():
		assert.Equal(t, "FRIEND_INVITE_NOTIFICATION", n.Command)
		assert.Equal(t, []string{"bob", "7"}, n.Fields)
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestCallMapsErrorCodes(t *testing.T) {
	addr := scriptedServer(t, []string{"409|User already logged in"})
	c, err := Dial(addr, 0)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Login(context.Background(), "alice", "secret")
	var srvErr *ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, 409, srvErr.Code)
	assert.Equal(t, "User already logged in", srvErr.Message)
}

func TestDoAfterServerClose(t *testing.T) {
	addr := scriptedServer(t) // accepts, then serves nothing
	c, err := Dial(addr, 0)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Close())
	_, err = c.Do(context.Background(), "LOGIN", "a", "b")
	assert.Error(t, err)
}

func TestDoRejectsReservedBytes(t *testing.T) {
	addr := scriptedServer(t)
	c, err := Dial(addr, 0)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Do(context.Background(), "LOGIN", "alice", "pass|word")
	assert.ErrorIs(t, err, protocol.ErrInvalidField)
}
