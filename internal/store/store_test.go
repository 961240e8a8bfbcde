package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"shipshape-api-server/internal/models"
)

const shipmentsNS = "test.shipments"

func TestGetShipment(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes document", func(mt *mtest.T) {
		goLive := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, shipmentsNS, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "SHP-1"},
			{Key: "exporterId", Value: "exp-1"},
			{Key: "productName", Value: "Coffee Beans"},
			{Key: "status", Value: "scheduled"},
			{Key: "goLiveAt", Value: primitive.NewDateTimeFromTime(goLive)},
			{Key: "goLiveTaskName", Value: "golive-SHP-1-abc"},
			{Key: "revision", Value: int64(3)},
		}))

		sh, err := New(mt.DB).GetShipment(context.Background(), "SHP-1")
		require.NoError(mt, err)
		assert.Equal(mt, models.ShipmentScheduled, sh.Status)
		assert.Equal(mt, "golive-SHP-1-abc", sh.GoLiveTaskName)
		assert.Equal(mt, int64(3), sh.Revision)
		require.NotNil(mt, sh.GoLiveAt)
		assert.True(mt, goLive.Equal(*sh.GoLiveAt))
	})

	mt.Run("maps missing document to ErrNotFound", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, shipmentsNS, mtest.FirstBatch))

		_, err := New(mt.DB).GetShipment(context.Background(), "SHP-404")
		assert.ErrorIs(mt, err, models.ErrNotFound)
	})
}

func TestSetGoLiveTask(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("matching revision", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		err := New(mt.DB).SetGoLiveTask(context.Background(), "SHP-1", 3, "golive-SHP-1-abc")
		assert.NoError(mt, err)
	})

	mt.Run("stale revision", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		err := New(mt.DB).SetGoLiveTask(context.Background(), "SHP-1", 2, "golive-SHP-1-abc")
		assert.ErrorIs(mt, err, models.ErrRevisionConflict)
	})
}

func TestMarkLive(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("transitions", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		ok, err := New(mt.DB).MarkLive(context.Background(), "SHP-1", 3)
		require.NoError(mt, err)
		assert.True(mt, ok)
	})

	mt.Run("guard miss", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		ok, err := New(mt.DB).MarkLive(context.Background(), "SHP-1", 3)
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("write error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 11600, Message: "interrupted at shutdown"}))
		_, err := New(mt.DB).MarkLive(context.Background(), "SHP-1", 3)
		assert.Error(mt, err)
	})
}

func TestNotifications(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("insert assigns id and time", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		n := &models.Notification{RecipientID: "carrier-1", Message: "hi", Link: "/x"}

		require.NoError(mt, New(mt.DB).InsertNotification(context.Background(), n))
		assert.False(mt, n.ID.IsZero())
		assert.WithinDuration(mt, time.Now(), n.CreatedAt, 5*time.Second)
		assert.False(mt, n.IsRead)
	})

	mt.Run("mark read rejects bad id", func(mt *mtest.T) {
		err := New(mt.DB).MarkNotificationRead(context.Background(), "not-an-object-id")
		assert.ErrorIs(mt, err, models.ErrValidation)
	})

	mt.Run("mark read unknown id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		err := New(mt.DB).MarkNotificationRead(context.Background(), primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, models.ErrNotFound)
	})
}

func TestRegisterIsIdempotent(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("first registration upserts", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
			bson.E{Key: "upserted", Value: bson.A{bson.D{{Key: "index", Value: 0}, {Key: "_id", Value: "SHP-1:carrier-1"}}}},
		))
		created, err := New(mt.DB).Register(context.Background(), "SHP-1", "carrier-1", time.Now())
		require.NoError(mt, err)
		assert.True(mt, created)
	})

	mt.Run("repeat registration matches", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 0}))
		created, err := New(mt.DB).Register(context.Background(), "SHP-1", "carrier-1", time.Now())
		require.NoError(mt, err)
		assert.False(mt, created)
	})
}

func TestMarkLiveBatchWithNoIDs(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("skips the transaction", func(mt *mtest.T) {
		flipped, err := New(mt.DB).MarkLiveBatch(context.Background(), nil, time.Now())
		require.NoError(mt, err)
		assert.Empty(mt, flipped)
	})
}
