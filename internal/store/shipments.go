package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shipshape-api-server/internal/models"
)

func (s *Store) GetShipment(ctx context.Context, id string) (*models.Shipment, error) {
	var sh models.Shipment
	if err := s.shipments().FindOne(ctx, bson.M{"_id": id}).Decode(&sh); err != nil {
		return nil, notFound(err)
	}
	return &sh, nil
}

func (s *Store) CreateShipment(ctx context.Context, sh *models.Shipment) error {
	if _, err := s.shipments().InsertOne(ctx, sh); err != nil {
		return fmt.Errorf("insert shipment: %w", err)
	}
	return nil
}

// ReplaceShipment writes sh over the stored document if the stored revision is still
// expectedRevision, and returns the document as it was before the write.
func (s *Store) ReplaceShipment(ctx context.Context, sh *models.Shipment, expectedRevision int64) (*models.Shipment, error) {
	filter := bson.M{"_id": sh.ID, "revision": expectedRevision}
	opts := options.FindOneAndReplace().SetReturnDocument(options.Before)

	var before models.Shipment
	err := s.shipments().FindOneAndReplace(ctx, filter, sh, opts).Decode(&before)
	if err == nil {
		return &before, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("replace shipment: %w", err)
	}
	return nil, s.conflictOrMissing(ctx, sh.ID)
}

// AwardShipment sets the winning fields on a live shipment and returns the document
// as it was before the write.
func (s *Store) AwardShipment(ctx context.Context, id string, bid models.Bid, now time.Time) (*models.Shipment, error) {
	filter := bson.M{"_id": id, "status": models.ShipmentLive}
	update := bson.M{
		"$set": bson.M{
			"status":             models.ShipmentAwarded,
			"winningCarrierId":   bid.CarrierID,
			"winningCarrierName": bid.CarrierName,
			"winningBidId":       bid.ID,
			"winningBidAmount":   bid.BidAmount,
			"updatedAt":          now,
		},
		"$inc": bson.M{"revision": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var before models.Shipment
	err := s.shipments().FindOneAndUpdate(ctx, filter, update, opts).Decode(&before)
	if err == nil {
		return &before, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("award shipment: %w", err)
	}
	if _, getErr := s.GetShipment(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("%w: shipment %s is not live", models.ErrInvalidState, id)
}

// SetGoLiveTask records the task name without bumping the revision.
func (s *Store) SetGoLiveTask(ctx context.Context, id string, revision int64, taskName string) error {
	res, err := s.shipments().UpdateOne(ctx,
		bson.M{"_id": id, "revision": revision},
		bson.M{"$set": bson.M{"goLiveTaskName": taskName}},
	)
	if err != nil {
		return fmt.Errorf("set go-live task: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrRevisionConflict
	}
	return nil
}

func liveUpdate(now time.Time) bson.M {
	return bson.M{
		"$set":   bson.M{"status": models.ShipmentLive, "updatedAt": now},
		"$unset": bson.M{"goLiveTaskName": ""},
		"$inc":   bson.M{"revision": 1},
	}
}

func (s *Store) MarkLive(ctx context.Context, id string, revision int64) (bool, error) {
	filter := bson.M{"_id": id, "status": models.ShipmentScheduled, "revision": revision}
	res, err := s.shipments().UpdateOne(ctx, filter, liveUpdate(time.Now().UTC()))
	if err != nil {
		return false, fmt.Errorf("mark shipment live: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (s *Store) FindDueScheduled(ctx context.Context, now time.Time) ([]models.Shipment, error) {
	filter := bson.M{"status": models.ShipmentScheduled, "goLiveAt": bson.M{"$lte": now}}
	opts := options.Find().SetSort(bson.D{{Key: "goLiveAt", Value: 1}})

	cursor, err := s.shipments().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find due shipments: %w", err)
	}
	defer cursor.Close(ctx)

	var due []models.Shipment
	if err := cursor.All(ctx, &due); err != nil {
		return nil, fmt.Errorf("decode due shipments: %w", err)
	}
	return due, nil
}

// MarkLiveBatch flips the given shipments to live in one transaction and returns the ids it
// flipped. Shipments that are no longer scheduled or no longer due are left alone.
func (s *Store) MarkLiveBatch(ctx context.Context, ids []string, now time.Time) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	session, err := s.db.Client().StartSession()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	callback := func(sessCtx mongo.SessionContext) (interface{}, error) {
		filter := bson.M{
			"_id":      bson.M{"$in": ids},
			"status":   models.ShipmentScheduled,
			"goLiveAt": bson.M{"$lte": now},
		}
		// Đọc trong cùng transaction: nếu executor ghi chen vào, transaction bị abort và chạy lại.
		cursor, err := s.shipments().Find(sessCtx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
		if err != nil {
			return nil, err
		}
		var docs []struct {
			ID string `bson:"_id"`
		}
		if err := cursor.All(sessCtx, &docs); err != nil {
			return nil, err
		}
		flipped := make([]string, 0, len(docs))
		for _, d := range docs {
			flipped = append(flipped, d.ID)
		}
		if len(flipped) == 0 {
			return flipped, nil
		}

		filter["_id"] = bson.M{"$in": flipped}
		if _, err := s.shipments().UpdateMany(sessCtx, filter, liveUpdate(now)); err != nil {
			return nil, err
		}
		return flipped, nil
	}

	result, err := session.WithTransaction(ctx, callback)
	if err != nil {
		return nil, fmt.Errorf("sweep batch: %w", err)
	}
	return result.([]string), nil
}

func (s *Store) ListShipmentsByExporter(ctx context.Context, exporterID string) ([]models.Shipment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.shipments().Find(ctx, bson.M{"exporterId": exporterID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find shipments: %w", err)
	}
	defer cursor.Close(ctx)

	shipments := []models.Shipment{}
	if err := cursor.All(ctx, &shipments); err != nil {
		return nil, fmt.Errorf("decode shipments: %w", err)
	}
	return shipments, nil
}

func (s *Store) conflictOrMissing(ctx context.Context, id string) error {
	if _, err := s.GetShipment(ctx, id); err != nil {
		return err
	}
	return models.ErrRevisionConflict
}
