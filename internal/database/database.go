// server/internal/database/database.go
package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"shipshape-api-server/config"
)

// Connect mở kết nối tới MongoDB và kiểm tra bằng ping.
func Connect(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	log.Printf("Connected to MongoDB database %q", cfg.DBName)
	return client, client.Database(cfg.DBName), nil
}

// indexes cho các truy vấn của sweeper, bảng bid và danh sách thông báo
var indexes = map[string][]mongo.IndexModel{
	"shipments": {
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "goLiveAt", Value: 1}}},
		{Keys: bson.D{{Key: "exporterId", Value: 1}}},
	},
	"bids": {
		{Keys: bson.D{{Key: "shipmentId", Value: 1}, {Key: "createdAt", Value: 1}}},
	},
	"registrations": {
		{Keys: bson.D{{Key: "shipmentId", Value: 1}}},
	},
	"notifications": {
		{Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "createdAt", Value: -1}}},
	},
}

// EnsureIndexes tạo các index cần thiết; chạy lại nhiều lần không sao.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for coll, idx := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// EnablePreImages bật pre-image cho change stream của shipments để trigger có snapshot trước khi ghi.
// Cần MongoDB 6.0+; nếu server không hỗ trợ thì chỉ log lại.
func EnablePreImages(ctx context.Context, db *mongo.Database) {
	if err := db.CreateCollection(ctx, "shipments"); err != nil {
		var cmdErr mongo.CommandError
		// 48 = NamespaceExists
		if !errors.As(err, &cmdErr) || cmdErr.Code != 48 {
			log.Printf("Could not create shipments collection: %v", err)
		}
	}
	cmd := bson.D{
		{Key: "collMod", Value: "shipments"},
		{Key: "changeStreamPreAndPostImages", Value: bson.D{{Key: "enabled", Value: true}}},
	}
	if err := db.RunCommand(ctx, cmd).Err(); err != nil {
		log.Printf("Change stream pre-images not enabled on shipments: %v", err)
		return
	}
	log.Println("Change stream pre-images enabled on shipments.")
}
