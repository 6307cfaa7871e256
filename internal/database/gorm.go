package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// gormDB implements Database on top of a gorm dialector. The postgres, mysql
// and sqlite constructors differ only in how they open the connection.
type gormDB struct {
	db *gorm.DB
}

var _ Database = (*gormDB)(nil)

func newGormDB(db *gorm.DB) (*gormDB, error) {
	if err := db.AutoMigrate(
		&User{},
		&FriendRequest{},
		&Friendship{},
		&Event{},
		&EventParticipant{},
		&EventInvitation{},
		&EventJoinRequest{},
		&ActivityEntry{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &gormDB{db: db}, nil
}

// Close closes the database connection.
func (d *gormDB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *gormDB) CreateUser(ctx context.Context, user *User) error {
	err := d.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUsernameTaken
	}
	return err
}

func (d *gormDB) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := d.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *gormDB) GetUserByID(ctx context.Context, id int64) (*User, error) {
	var user User
	err := d.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *gormDB) CreateFriendRequest(ctx context.Context, senderID, receiverID int64) (int64, error) {
	friends, err := d.AreFriends(ctx, senderID, receiverID)
	if err != nil {
		return 0, err
	}
	if friends {
		return 0, ErrAlreadyFriends
	}

	var pending int64
	err = d.db.WithContext(ctx).Model(&FriendRequest{}).
		Where("sender_id = ? AND receiver_id = ? AND status = ?", senderID, receiverID, StatusPending).
		Count(&pending).Error
	if err != nil {
		return 0, err
	}
	if pending > 0 {
		return 0, ErrRequestPending
	}

	req := &FriendRequest{SenderID: senderID, ReceiverID: receiverID, Status: StatusPending}
	err = d.db.WithContext(ctx).Create(req).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return 0, ErrRequestPending
	}
	if err != nil {
		return 0, err
	}
	return req.ID, nil
}

func (d *gormDB) GetFriendRequest(ctx context.Context, id int64) (*FriendRequest, error) {
	var req FriendRequest
	err := d.db.WithContext(ctx).First(&req, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// AcceptFriendRequest flips the request to accepted and writes both
// friendship rows in one transaction.
func (d *gormDB) AcceptFriendRequest(ctx context.Context, id int64) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req FriendRequest
		err := tx.Where("id = ? AND status = ?", id, StatusPending).First(&req).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRequestNotFound
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&req).Update("status", StatusAccepted).Error; err != nil {
			return err
		}
		if err := tx.Create(&Friendship{UserID: req.SenderID, FriendID: req.ReceiverID}).Error; err != nil {
			return err
		}
		return tx.Create(&Friendship{UserID: req.ReceiverID, FriendID: req.SenderID}).Error
	})
}

func (d *gormDB) DeclineFriendRequest(ctx context.Context, id int64) error {
	res := d.db.WithContext(ctx).Model(&FriendRequest{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Update("status", StatusDeclined)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (d *gormDB) RemoveFriendship(ctx context.Context, userID, friendID int64) error {
	res := d.db.WithContext(ctx).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
			userID, friendID, friendID, userID).
		Delete(&Friendship{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFriends
	}
	return nil
}

func (d *gormDB) ListFriends(ctx context.Context, userID int64) ([]*User, error) {
	var users []*User
	err := d.db.WithContext(ctx).
		Joins("JOIN friendships ON friendships.friend_id = users.id").
		Where("friendships.user_id = ?", userID).
		Order("users.username asc").
		Find(&users).Error
	return users, err
}

func (d *gormDB) ListFriendRequests(ctx context.Context, userID int64) ([]*FriendRequestInfo, error) {
	var infos []*FriendRequestInfo
	err := d.db.WithContext(ctx).Model(&FriendRequest{}).
		Select("friend_requests.id AS request_id, friend_requests.sender_id, users.username AS sender_username, friend_requests.created_at").
		Joins("JOIN users ON users.id = friend_requests.sender_id").
		Where("friend_requests.receiver_id = ? AND friend_requests.status = ?", userID, StatusPending).
		Order("friend_requests.created_at asc").
		Scan(&infos).Error
	return infos, err
}

func (d *gormDB) AreFriends(ctx context.Context, userID, friendID int64) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&Friendship{}).
		Where("user_id = ? AND friend_id = ?", userID, friendID).
		Count(&count).Error
	return count > 0, err
}

func (d *gormDB) CreateEvent(ctx context.Context, event *Event) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		return tx.Create(&EventParticipant{EventID: event.ID, UserID: event.CreatorID}).Error
	})
}

func (d *gormDB) UpdateEvent(ctx context.Context, creatorID int64, event *Event) error {
	res := d.db.WithContext(ctx).Model(&Event{}).
		Where("id = ? AND creator_id = ?", event.ID, creatorID).
		Updates(map[string]any{
			"title":       event.Title,
			"description": event.Description,
			"location":    event.Location,
			"event_time":  event.EventTime,
			"event_type":  event.EventType,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (d *gormDB) DeleteEvent(ctx context.Context, creatorID, eventID int64) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND creator_id = ?", eventID, creatorID).Delete(&Event{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrEventNotFound
		}
		if err := tx.Where("event_id = ?", eventID).Delete(&EventParticipant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("event_id = ?", eventID).Delete(&EventInvitation{}).Error; err != nil {
			return err
		}
		return tx.Where("event_id = ?", eventID).Delete(&EventJoinRequest{}).Error
	})
}

func (d *gormDB) GetEvent(ctx context.Context, eventID int64) (*Event, error) {
	var event Event
	err := d.db.WithContext(ctx).First(&event, "id = ?", eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (d *gormDB) ListEvents(ctx context.Context) ([]*Event, error) {
	var events []*Event
	err := d.db.WithContext(ctx).Order("created_at desc").Find(&events).Error
	return events, err
}

func (d *gormDB) ListUserEvents(ctx context.Context, userID int64) ([]*Event, error) {
	var events []*Event
	err := d.db.WithContext(ctx).
		Joins("JOIN event_participants ON event_participants.event_id = events.id").
		Where("event_participants.user_id = ?", userID).
		Order("events.created_at desc").
		Find(&events).Error
	return events, err
}

func (d *gormDB) SearchEvents(ctx context.Context, keyword string) ([]*Event, error) {
	var events []*Event
	pattern := "%" + keyword + "%"
	err := d.db.WithContext(ctx).
		Where("title LIKE ? OR location LIKE ?", pattern, pattern).
		Order("created_at desc").
		Find(&events).Error
	return events, err
}

func (d *gormDB) JoinEvent(ctx context.Context, userID, eventID int64) error {
	if _, err := d.GetEvent(ctx, eventID); err != nil {
		return err
	}
	err := d.db.WithContext(ctx).Create(&EventParticipant{EventID: eventID, UserID: userID}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyJoined
	}
	return err
}

func (d *gormDB) LeaveEvent(ctx context.Context, userID, eventID int64) error {
	res := d.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Delete(&EventParticipant{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotParticipant
	}
	return nil
}

func (d *gormDB) ListParticipants(ctx context.Context, eventID int64) ([]*User, error) {
	var users []*User
	err := d.db.WithContext(ctx).
		Joins("JOIN event_participants ON event_participants.user_id = users.id").
		Where("event_participants.event_id = ?", eventID).
		Order("users.username asc").
		Find(&users).Error
	return users, err
}

func (d *gormDB) IsParticipant(ctx context.Context, userID, eventID int64) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&EventParticipant{}).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Count(&count).Error
	return count > 0, err
}

func (d *gormDB) CreateInvitation(ctx context.Context, eventID, senderID, receiverID int64) (int64, error) {
	joined, err := d.IsParticipant(ctx, receiverID, eventID)
	if err != nil {
		return 0, err
	}
	if joined {
		return 0, ErrAlreadyJoined
	}

	inv := &EventInvitation{EventID: eventID, SenderID: senderID, ReceiverID: receiverID, Status: StatusPending}
	err = d.db.WithContext(ctx).Create(inv).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return 0, ErrAlreadyInvited
	}
	if err != nil {
		return 0, err
	}
	return inv.ID, nil
}

func (d *gormDB) RespondInvitation(ctx context.Context, receiverID, invitationID int64, accept bool) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv EventInvitation
		err := tx.Where("id = ? AND receiver_id = ? AND status = ?", invitationID, receiverID, StatusPending).
			First(&inv).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRequestNotFound
		}
		if err != nil {
			return err
		}

		status := StatusDeclined
		if accept {
			status = StatusAccepted
		}
		if err := tx.Model(&inv).Update("status", status).Error; err != nil {
			return err
		}
		if !accept {
			return nil
		}
		err = tx.Create(&EventParticipant{EventID: inv.EventID, UserID: receiverID}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadyJoined
		}
		return err
	})
}

func (d *gormDB) ListInvitations(ctx context.Context, receiverID int64) ([]*InvitationInfo, error) {
	var infos []*InvitationInfo
	err := d.db.WithContext(ctx).Model(&EventInvitation{}).
		Select("event_invitations.id AS invitation_id, event_invitations.event_id, events.title AS event_title, users.username AS sender_username").
		Joins("JOIN events ON events.id = event_invitations.event_id").
		Joins("JOIN users ON users.id = event_invitations.sender_id").
		Where("event_invitations.receiver_id = ? AND event_invitations.status = ?", receiverID, StatusPending).
		Order("event_invitations.created_at asc").
		Scan(&infos).Error
	return infos, err
}

func (d *gormDB) CreateJoinRequest(ctx context.Context, userID, eventID int64) (int64, error) {
	if _, err := d.GetEvent(ctx, eventID); err != nil {
		return 0, err
	}
	joined, err := d.IsParticipant(ctx, userID, eventID)
	if err != nil {
		return 0, err
	}
	if joined {
		return 0, ErrAlreadyJoined
	}

	req := &EventJoinRequest{EventID: eventID, UserID: userID, Status: StatusPending}
	err = d.db.WithContext(ctx).Create(req).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return 0, ErrRequestPending
	}
	if err != nil {
		return 0, err
	}
	return req.ID, nil
}

func (d *gormDB) ResolveJoinRequest(ctx context.Context, creatorID, eventID int64, username string, approve bool) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event Event
		err := tx.Where("id = ? AND creator_id = ?", eventID, creatorID).First(&event).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEventNotFound
		}
		if err != nil {
			return err
		}

		var user User
		err = tx.Where("username = ?", username).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}

		var req EventJoinRequest
		err = tx.Where("event_id = ? AND user_id = ? AND status = ?", eventID, user.ID, StatusPending).
			First(&req).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRequestNotFound
		}
		if err != nil {
			return err
		}

		status := StatusDeclined
		if approve {
			status = StatusAccepted
		}
		if err := tx.Model(&req).Update("status", status).Error; err != nil {
			return err
		}
		if !approve {
			return nil
		}
		err = tx.Create(&EventParticipant{EventID: eventID, UserID: user.ID}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadyJoined
		}
		return err
	})
}

func (d *gormDB) ListJoinRequests(ctx context.Context, creatorID, eventID int64) ([]*JoinRequestInfo, error) {
	event, err := d.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.CreatorID != creatorID {
		return nil, ErrNotEventOwner
	}

	var infos []*JoinRequestInfo
	err = d.db.WithContext(ctx).Model(&EventJoinRequest{}).
		Select("event_join_requests.id AS request_id, event_join_requests.user_id, users.username").
		Joins("JOIN users ON users.id = event_join_requests.user_id").
		Where("event_join_requests.event_id = ? AND event_join_requests.status = ?", eventID, StatusPending).
		Order("event_join_requests.created_at asc").
		Scan(&infos).Error
	return infos, err
}

func (d *gormDB) LogActivity(ctx context.Context, userID int64, kind, details string) error {
	return d.db.WithContext(ctx).Create(&ActivityEntry{UserID: userID, Kind: kind, Details: details}).Error
}

func (d *gormDB) ListActivities(ctx context.Context, userID int64, limit int) ([]*ActivityEntry, error) {
	var entries []*ActivityEntry
	err := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
