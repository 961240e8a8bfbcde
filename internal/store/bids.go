package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shipshape-api-server/internal/models"
)

func (s *Store) InsertBid(ctx context.Context, bid *models.Bid) error {
	if _, err := s.bids().InsertOne(ctx, bid); err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}
	return nil
}

func (s *Store) GetBid(ctx context.Context, id string) (*models.Bid, error) {
	var bid models.Bid
	if err := s.bids().FindOne(ctx, bson.M{"_id": id}).Decode(&bid); err != nil {
		return nil, notFound(err)
	}
	return &bid, nil
}

// ListBids returns the bids on a shipment, lowest amount first.
func (s *Store) ListBids(ctx context.Context, shipmentID string) ([]models.Bid, error) {
	opts := options.Find().SetSort(bson.D{{Key: "bidAmount", Value: 1}, {Key: "createdAt", Value: 1}})
	cursor, err := s.bids().Find(ctx, bson.M{"shipmentId": shipmentID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find bids: %w", err)
	}
	defer cursor.Close(ctx)

	bids := []models.Bid{}
	if err := cursor.All(ctx, &bids); err != nil {
		return nil, fmt.Errorf("decode bids: %w", err)
	}
	return bids, nil
}

// Register records a carrier's interest. It reports false when the carrier was already registered.
func (s *Store) Register(ctx context.Context, shipmentID, carrierID string, now time.Time) (bool, error) {
	id := models.RegistrationID(shipmentID, carrierID)
	update := bson.M{"$setOnInsert": models.Registration{
		ID:           id,
		ShipmentID:   shipmentID,
		CarrierID:    carrierID,
		RegisteredAt: now,
	}}
	res, err := s.registrations().UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("register carrier: %w", err)
	}
	return res.UpsertedCount == 1, nil
}

func (s *Store) ListRegistrations(ctx context.Context, shipmentID string) ([]models.Registration, error) {
	cursor, err := s.registrations().Find(ctx, bson.M{"shipmentId": shipmentID})
	if err != nil {
		return nil, fmt.Errorf("find registrations: %w", err)
	}
	defer cursor.Close(ctx)

	regs := []models.Registration{}
	if err := cursor.All(ctx, &regs); err != nil {
		return nil, fmt.Errorf("decode registrations: %w", err)
	}
	return regs, nil
}
