// Package store is the MongoDB persistence layer behind the marketplace and the go-live pipeline.
package store

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"shipshape-api-server/internal/models"
)

const (
	ShipmentsCollection     = "shipments"
	BidsCollection          = "bids"
	RegistrationsCollection = "registrations"
	NotificationsCollection = "notifications"
	UsersCollection         = "users"
)

type Store struct {
	db *mongo.Database
}

func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *mongo.Database {
	return s.db
}

func (s *Store) shipments() *mongo.Collection     { return s.db.Collection(ShipmentsCollection) }
func (s *Store) bids() *mongo.Collection          { return s.db.Collection(BidsCollection) }
func (s *Store) registrations() *mongo.Collection { return s.db.Collection(RegistrationsCollection) }
func (s *Store) notifications() *mongo.Collection { return s.db.Collection(NotificationsCollection) }
func (s *Store) users() *mongo.Collection         { return s.db.Collection(UsersCollection) }

// notFound maps the driver's no-document error onto models.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ErrNotFound
	}
	return err
}
