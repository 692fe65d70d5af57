package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// userCollection follows the pluralised collection naming used for ExempleUser.
const userCollection = "exempleusers"

type userDocument struct {
	ID   primitive.ObjectID `bson:"_id,omitempty"`
	Name string             `bson:"name"`
	Age  int                `bson:"age"`
}

func (d userDocument) toUser() User {
	return User{ID: d.ID.Hex(), Name: d.Name, Age: d.Age}
}

type mongoUserModel struct {
	coll *mongo.Collection
}

func newMongoUserModel(coll *mongo.Collection) *mongoUserModel {
	return &mongoUserModel{coll: coll}
}

func (m *mongoUserModel) List(ctx context.Context) ([]User, error) {
	cur, err := m.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}

	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	users := make([]User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, doc.toUser())
	}
	return users, nil
}

// CreateMany validates every candidate before issuing a single InsertMany.
func (m *mongoUserModel) CreateMany(ctx context.Context, inputs []UserInput) ([]User, error) {
	staged, err := prepare(inputs)
	if err != nil {
		return nil, err
	}
	if len(staged) == 0 {
		return []User{}, nil
	}

	docs := make([]any, 0, len(staged))
	created := make([]User, 0, len(staged))
	for _, in := range staged {
		doc := userDocument{ID: primitive.NewObjectID(), Name: in.Name, Age: in.Age}
		docs = append(docs, doc)
		created = append(created, doc.toUser())
	}

	if _, err := m.coll.InsertMany(ctx, docs); err != nil {
		return nil, fmt.Errorf("insert users: %w", err)
	}
	return created, nil
}

func (m *mongoUserModel) Update(ctx context.Context, id string, input UserInput) (User, error) {
	staged, err := prepare([]UserInput{input})
	if err != nil {
		return User{}, err
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return User{}, ErrNotFound
	}

	update := bson.M{"$set": bson.M{"name": staged[0].Name, "age": staged[0].Age}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc userDocument
	err = m.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("update user %s: %w", id, err)
	}
	return doc.toUser(), nil
}

func (m *mongoUserModel) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	res, err := m.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
