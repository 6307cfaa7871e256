package client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gatherlab/gatherd/internal/protocol"
)

// ServerError carries a non-success response code and message.
type ServerError struct {
	Code    int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server responded %d: %s", e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, command string, fields ...string) (*protocol.Response, error) {
	resp, err := c.Do(ctx, command, fields...)
	if err != nil {
		return nil, err
	}
	if resp.Code >= 400 {
		return nil, &ServerError{Code: resp.Code, Message: resp.Message}
	}
	return resp, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, username, password, email string) error {
	_, err := c.call(ctx, protocol.CmdRegister, username, password, email)
	return err
}

// Login authenticates and returns the session token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	resp, err := c.call(ctx, protocol.CmdLogin, username, password)
	if err != nil {
		return "", err
	}
	return resp.Extra, nil
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.call(ctx, protocol.CmdLogout, token)
	return err
}

// FriendInvite sends a friend request and returns its ID.
func (c *Client) FriendInvite(ctx context.Context, token, username string) (int64, error) {
	resp, err := c.call(ctx, protocol.CmdFriendInvite, token, username)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(resp.Extra, 10, 64)
}

// FriendRespond accepts or declines a pending friend request.
func (c *Client) FriendRespond(ctx context.Context, token string, requestID int64, accept bool) error {
	_, err := c.call(ctx, protocol.CmdFriendRespond, token,
		strconv.FormatInt(requestID, 10), strconv.FormatBool(accept))
	return err
}

// FriendRemove ends a friendship.
func (c *Client) FriendRemove(ctx context.Context, token, username string) error {
	_, err := c.call(ctx, protocol.CmdFriendRemove, token, username)
	return err
}

// EventCreate stores a new event and returns its ID.
func (c *Client) EventCreate(ctx context.Context, token, title, description, location, eventTime, eventType string) (int64, error) {
	resp, err := c.call(ctx, protocol.CmdEventCreate, token, title, description, location, eventTime, eventType)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(resp.Extra, 10, 64)
}

// EventJoin adds the caller to an event.
func (c *Client) EventJoin(ctx context.Context, token string, eventID int64) error {
	_, err := c.call(ctx, protocol.CmdEventJoin, token, strconv.FormatInt(eventID, 10))
	return err
}

// EventLeave removes the caller from an event.
func (c *Client) EventLeave(ctx context.Context, token string, eventID int64) error {
	_, err := c.call(ctx, protocol.CmdEventLeave, token, strconv.FormatInt(eventID, 10))
	return err
}

// EventInvite invites a user to an event and returns the invitation ID.
func (c *Client) EventInvite(ctx context.Context, token string, eventID int64, username string) (int64, error) {
	resp, err := c.call(ctx, protocol.CmdEventInvite, token,
		strconv.FormatInt(eventID, 10), username)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(resp.Extra, 10, 64)
}
