// Package triggers drives the go-live reactors from MongoDB change streams, for deployments
// where shipments and bids are written by something other than the marketplace API.
package triggers

import (
	"context"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shipshape-api-server/internal/golive"
	"shipshape-api-server/internal/models"
)

type ShipmentReactor interface {
	OnShipmentWritten(ctx context.Context, before, after *models.Shipment) golive.WriteReport
}

type BidReactor interface {
	OnBidCreated(ctx context.Context, bid *models.Bid) golive.StepResult
}

type updateDescription struct {
	UpdatedFields bson.M   `bson:"updatedFields"`
	RemovedFields []string `bson:"removedFields"`
}

type shipmentChange struct {
	OperationType            string             `bson:"operationType"`
	FullDocument             *models.Shipment   `bson:"fullDocument"`
	FullDocumentBeforeChange *models.Shipment   `bson:"fullDocumentBeforeChange"`
	UpdateDescription        *updateDescription `bson:"updateDescription"`
}

type bidChange struct {
	OperationType string      `bson:"operationType"`
	FullDocument  *models.Bid `bson:"fullDocument"`
}

// bookkeepingOnly reports whether the change only recorded a go-live task name,
// which is the reactor's own write.
func (c shipmentChange) bookkeepingOnly() bool {
	if c.OperationType != "update" || c.UpdateDescription == nil {
		return false
	}
	if len(c.UpdateDescription.RemovedFields) > 0 || len(c.UpdateDescription.UpdatedFields) != 1 {
		return false
	}
	_, ok := c.UpdateDescription.UpdatedFields["goLiveTaskName"]
	return ok
}

type Watcher struct {
	shipments  *mongo.Collection
	bids       *mongo.Collection
	onShipment ShipmentReactor
	onBid      BidReactor
	retryDelay time.Duration
}

func NewWatcher(db *mongo.Database, onShipment ShipmentReactor, onBid BidReactor) *Watcher {
	return &Watcher{
		shipments:  db.Collection("shipments"),
		bids:       db.Collection("bids"),
		onShipment: onShipment,
		onBid:      onBid,
		retryDelay: 2 * time.Second,
	}
}

// Start blocks until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.M{
			"operationType": bson.M{"$in": bson.A{"insert", "update", "replace"}},
		}}}}
		opts := options.ChangeStream().
			SetFullDocument(options.UpdateLookup).
			SetFullDocumentBeforeChange(options.WhenAvailable)
		w.watch(ctx, "shipments", w.shipments, pipeline, opts, w.handleShipment)
	}()
	go func() {
		defer wg.Done()
		pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.M{"operationType": "insert"}}}}
		w.watch(ctx, "bids", w.bids, pipeline, options.ChangeStream(), w.handleBid)
	}()
	wg.Wait()
}

// watch reopens the stream from the last resume token after every failure.
func (w *Watcher) watch(ctx context.Context, name string, coll *mongo.Collection, pipeline mongo.Pipeline, opts *options.ChangeStreamOptions, handle func(context.Context, bson.Raw)) {
	var token bson.Raw
	for {
		if token != nil {
			opts.SetResumeAfter(token)
		}
		stream, err := coll.Watch(ctx, pipeline, opts)
		if err != nil {
			log.Printf("[triggers] could not open %s change stream: %v", name, err)
		} else {
			log.Printf("[triggers] watching %s", name)
			for stream.Next(ctx) {
				handle(ctx, stream.Current)
				token = stream.ResumeToken()
			}
			if err := stream.Err(); err != nil && ctx.Err() == nil {
				log.Printf("[triggers] %s change stream interrupted: %v", name, err)
			}
			stream.Close(context.Background())
		}

		select {
		case <-ctx.Done():
			log.Printf("[triggers] %s watcher stopped", name)
			return
		case <-time.After(w.retryDelay):
		}
	}
}

func (w *Watcher) handleShipment(ctx context.Context, raw bson.Raw) {
	var ev shipmentChange
	if err := bson.Unmarshal(raw, &ev); err != nil {
		log.Printf("[triggers] undecodable shipment event: %v", err)
		return
	}
	if ev.bookkeepingOnly() {
		return
	}
	before := ev.FullDocumentBeforeChange
	if ev.OperationType == "insert" {
		before = nil
	}
	if before == nil && ev.FullDocument == nil {
		return
	}
	w.onShipment.OnShipmentWritten(ctx, before, ev.FullDocument)
}

func (w *Watcher) handleBid(ctx context.Context, raw bson.Raw) {
	var ev bidChange
	if err := bson.Unmarshal(raw, &ev); err != nil {
		log.Printf("[triggers] undecodable bid event: %v", err)
		return
	}
	if ev.FullDocument == nil {
		return
	}
	w.onBid.OnBidCreated(ctx, ev.FullDocument)
}
