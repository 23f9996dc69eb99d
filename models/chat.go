package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// ChatMessage holds the structure for the supportchat collection in mongo.
// Messages are immutable once inserted; Seq is assigned by the store and is
// strictly increasing, so (CreatedAt, Seq) is the ordering of record even
// when two writers collide on the same millisecond.
type ChatMessage struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id"`
	Seq         int64              `json:"seq" bson:"seq"`
	SenderID    string             `json:"senderID" bson:"senderID"`
	RecipientID string             `json:"recipientID" bson:"recipientID"`
	Text        string             `json:"text" bson:"text"`
	CreatedAt   primitive.DateTime `json:"createdAt" bson:"createdAt"`
}

// Thread is the derived per-user conversation summary shown on the admin
// inbox. It is never persisted; the thread index rebuilds it from the
// message log.
type Thread struct {
	Participant   string             `json:"participant"`
	LastMessageAt primitive.DateTime `json:"lastMessageAt"`
	LastSeq       int64              `json:"lastSeq"`
	LastText      string             `json:"lastText"`
}
