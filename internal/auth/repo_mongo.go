package auth

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/scholaris/scholaris/internal/shared"
)

// IdentityCollection is the MongoDB collection holding identities.
const IdentityCollection = "users"

type identityDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"passwordHash"`
	Role         string             `bson:"role"`
	IsVerified   bool               `bson:"isVerified"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

func (d identityDocument) identity() Identity {
	role, _ := ParseRole(d.Role)
	return Identity{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         role,
		Verified:     d.IsVerified,
		CreatedAt:    d.CreatedAt,
	}
}

// MongoRepository implements Repository on a MongoDB collection.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository binds the repository to db and ensures the unique
// email index exists.
func NewMongoRepository(ctx context.Context, db *mongo.Database) (*MongoRepository, error) {
	coll := db.Collection(IdentityCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}
	return &MongoRepository{coll: coll}, nil
}

func (r *MongoRepository) Create(ctx context.Context, identity Identity) (Identity, error) {
	doc := identityDocument{
		ID:           primitive.NewObjectID(),
		Email:        NormalizeEmail(identity.Email),
		PasswordHash: identity.PasswordHash,
		Role:         identity.Role.String(),
		IsVerified:   identity.Verified,
		CreatedAt:    identity.CreatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Identity{}, shared.ErrConflict
		}
		return Identity{}, err
	}
	return doc.identity(), nil
}

func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (Identity, error) {
	return r.findOne(ctx, bson.M{"email": NormalizeEmail(email)})
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (Identity, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Identity{}, shared.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoRepository) Update(ctx context.Context, identity Identity) (Identity, error) {
	oid, err := primitive.ObjectIDFromHex(identity.ID)
	if err != nil {
		return Identity{}, shared.ErrNotFound
	}
	var doc identityDocument
	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{
			"email":        NormalizeEmail(identity.Email),
			"passwordHash": identity.PasswordHash,
			"role":         identity.Role.String(),
			"isVerified":   identity.Verified,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return Identity{}, shared.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return Identity{}, shared.ErrConflict
	case err != nil:
		return Identity{}, err
	}
	return doc.identity(), nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return shared.ErrNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *MongoRepository) ListByRole(ctx context.Context, role Role) ([]Identity, error) {
	cur, err := r.coll.Find(ctx, bson.M{"role": role.String()}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []identityDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]Identity, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.identity())
	}
	return out, nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (Identity, error) {
	var doc identityDocument
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Identity{}, shared.ErrNotFound
	}
	if err != nil {
		return Identity{}, err
	}
	return doc.identity(), nil
}

var _ Repository = (*MongoRepository)(nil)
