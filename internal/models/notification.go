package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Notification struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RecipientID string             `bson:"recipientId" json:"recipientId"`
	Message     string             `bson:"message" json:"message"`
	Link        string             `bson:"link" json:"link"`
	IsRead      bool               `bson:"isRead" json:"isRead"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}
