package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"backend/internal/notify"
	"backend/internal/permission"
	"backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventPusher delivers freshly produced events to a user's live
// connections. Satisfied by the websocket hub.
type EventPusher interface {
	SendToUser(userID string, message []byte)
}

// NotificationService drives the per-session diff engines against the
// authoritative document list and serves the session buffers over HTTP.
type NotificationService interface {
	// RunDiffTick executes one diff cycle for every live session. Wired
	// into the scheduler as the document-refresh task.
	RunDiffTick(ctx context.Context)
	// OpenSession ensures a session exists for the user (called on login
	// and on websocket attach).
	OpenSession(userID uuid.UUID)
	CloseSession(userID uuid.UUID)
	Pending(userID uuid.UUID) []notify.Event
	Ack(userID uuid.UUID, ids []string)
	Checkpoint(userID uuid.UUID) time.Time
	RestoreCheckpoint(userID uuid.UUID, ts time.Time)
	MarkChannelRead(userID uuid.UUID, channel string, ts time.Time)
	ReadState(userID uuid.UUID) map[string]time.Time
}

type notificationService struct {
	db       *gorm.DB
	docs     repository.DocumentRepository
	users    repository.UserRepository
	registry *notify.Registry
	pusher   EventPusher
}

func NewNotificationService(db *gorm.DB, docs repository.DocumentRepository, users repository.UserRepository, registry *notify.Registry, pusher EventPusher) NotificationService {
	return &notificationService{db: db, docs: docs, users: users, registry: registry, pusher: pusher}
}

func (s *notificationService) RunDiffTick(ctx context.Context) {
	// One fetch serves every session; each engine diffs its own window.
	docs, err := s.docs.ListAll(ctx)
	if err != nil {
		log.Printf("notify: document refresh failed, tick skipped: %v", err)
		return
	}

	overrides, err := LoadOverrides(ctx, s.db)
	if err != nil {
		log.Printf("notify: override load failed, tick skipped: %v", err)
		return
	}

	now := time.Now()
	s.registry.Range(func(sess *notify.Session) bool {
		user, userErr := s.users.GetByID(ctx, sess.UserID.String())
		if userErr != nil {
			// User deleted mid-session; drop the session.
			s.registry.Drop(sess.UserID)
			return true
		}

		caps := permission.Resolve(user.Role, overrides, user)
		events := sess.Run(docs, user, caps, now)
		if len(events) > 0 && s.pusher != nil {
			if payload, marshalErr := json.Marshal(events); marshalErr == nil {
				s.pusher.SendToUser(user.ID.String(), payload)
			}
		}
		return true
	})
}

func (s *notificationService) OpenSession(userID uuid.UUID) {
	s.registry.Get(userID)
}

func (s *notificationService) CloseSession(userID uuid.UUID) {
	s.registry.Drop(userID)
}

func (s *notificationService) Pending(userID uuid.UUID) []notify.Event {
	return s.registry.Get(userID).Pending()
}

func (s *notificationService) Ack(userID uuid.UUID, ids []string) {
	s.registry.Get(userID).Ack(ids)
}

func (s *notificationService) Checkpoint(userID uuid.UUID) time.Time {
	return s.registry.Get(userID).Checkpoint()
}

func (s *notificationService) RestoreCheckpoint(userID uuid.UUID, ts time.Time) {
	s.registry.Get(userID).RestoreCheckpoint(ts)
}

func (s *notificationService) MarkChannelRead(userID uuid.UUID, channel string, ts time.Time) {
	s.registry.Get(userID).MarkRead(channel, ts)
}

func (s *notificationService) ReadState(userID uuid.UUID) map[string]time.Time {
	return s.registry.Get(userID).ReadState()
}
