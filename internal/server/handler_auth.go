package server

import (
	"context"
	"errors"
	"regexp"

	"github.com/gatherlab/gatherd/internal/database"
	"github.com/gatherlab/gatherd/internal/protocol"
	"github.com/gatherlab/gatherd/internal/session"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,50}$`)
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// HandleRegister creates an account: REGISTER|username|password|email.
func (h *Handlers) HandleRegister(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 3 {
		return badFields()
	}
	username, password, email := req.Fields[0], req.Fields[1], req.Fields[2]

	if !usernameRe.MatchString(username) {
		return protocol.NewResponse(protocol.StatusUnprocessable, "Invalid username: 3-50 letters, digits or underscores", "")
	}
	if len(password) < 6 {
		return protocol.NewResponse(protocol.StatusUnprocessable, "Password must be at least 6 characters", "")
	}
	if !emailRe.MatchString(email) {
		return protocol.NewResponse(protocol.StatusUnprocessable, "Invalid email address", "")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("password hash failed", zap.Error(err))
		return protocol.NewResponse(protocol.StatusServerError, "Internal server error", "")
	}

	user := &database.User{Username: username, Password: string(hash), Email: email}
	if err := h.db.CreateUser(ctx, user); err != nil {
		return h.errResponse(err)
	}

	h.logger.Info("user registered",
		zap.String("username", username),
		zap.Int64("user_id", user.ID))
	return protocol.NewResponse(protocol.StatusCreated, "Account created", "")
}

// HandleLogin authenticates and issues a session token: LOGIN|username|password.
// The token travels back in the EXTRA position.
func (h *Handlers) HandleLogin(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 2 {
		return badFields()
	}
	username, password := req.Fields[0], req.Fields[1]

	user, err := h.db.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			// Same answer as a bad password, so probes cannot
			// enumerate accounts.
			return protocol.NewResponse(protocol.StatusUnauthorized, "Invalid username or password", "")
		}
		return h.errResponse(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return protocol.NewResponse(protocol.StatusUnauthorized, "Invalid username or password", "")
	}

	token, err := h.sessions.Create(ctx, user.ID, conn.ID())
	if err != nil {
		switch {
		case errors.Is(err, session.ErrUserActive):
			return protocol.NewResponse(protocol.StatusConflict, "User already logged in", "")
		case errors.Is(err, session.ErrStoreFull):
			return protocol.NewResponse(protocol.StatusServerError, "Server is full, try again later", "")
		default:
			h.logger.Error("session create failed", zap.Error(err))
			return protocol.NewResponse(protocol.StatusServerError, "Internal server error", "")
		}
	}

	h.metrics.SessionCreated()
	h.logger.Info("user logged in",
		zap.String("username", username),
		zap.Int64("user_id", user.ID),
		zap.String("conn_id", conn.ID()))
	return protocol.NewResponse(protocol.StatusOK, "Login successful", token)
}

// HandleLogout destroys the caller's session: LOGOUT|token.
func (h *Handlers) HandleLogout(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 1 {
		return badFields()
	}
	sess, resp := h.authenticate(ctx, req.Fields[0])
	if resp != nil {
		return resp
	}

	if err := h.sessions.Destroy(ctx, sess.Token); err != nil {
		h.logger.Error("session destroy failed", zap.Error(err))
		return protocol.NewResponse(protocol.StatusServerError, "Internal server error", "")
	}
	h.metrics.SessionDestroyed()
	h.logger.Info("user logged out", zap.Int64("user_id", sess.UserID))
	return protocol.NewResponse(protocol.StatusOK, "Logout successful", "")
}
