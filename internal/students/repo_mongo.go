package students

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/scholaris/scholaris/internal/shared"
)

// ProfileCollection is the MongoDB collection holding student profiles.
const ProfileCollection = "students"

type profileDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Name       string             `bson:"name"`
	Email      string             `bson:"email"`
	Course     string             `bson:"course"`
	EnrolledAt time.Time          `bson:"enrolledAt"`
	User       primitive.ObjectID `bson:"user"`
}

func (d profileDocument) profile() Profile {
	return Profile{
		ID:         d.ID.Hex(),
		Name:       d.Name,
		Email:      d.Email,
		Course:     d.Course,
		EnrolledAt: d.EnrolledAt.UTC(),
		IdentityID: d.User.Hex(),
	}
}

// MongoRepository implements Repository on a MongoDB collection.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository binds the repository to db and indexes the identity
// reference and enrolment date.
func NewMongoRepository(ctx context.Context, db *mongo.Database) (*MongoRepository, error) {
	coll := db.Collection(ProfileCollection)
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user", Value: 1}}},
		{Keys: bson.D{{Key: "enrolledAt", Value: -1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("create student indexes: %w", err)
	}
	return &MongoRepository{coll: coll}, nil
}

func identityRef(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("identity reference %q: %w", id, shared.ErrValidation)
	}
	return oid, nil
}

func (r *MongoRepository) Create(ctx context.Context, p Profile) (Profile, error) {
	user, err := identityRef(p.IdentityID)
	if err != nil {
		return Profile{}, err
	}
	doc := profileDocument{
		ID:         primitive.NewObjectID(),
		Name:       p.Name,
		Email:      p.Email,
		Course:     p.Course,
		EnrolledAt: p.EnrolledAt,
		User:       user,
	}
	if doc.EnrolledAt.IsZero() {
		doc.EnrolledAt = time.Now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return Profile{}, fmt.Errorf("insert student profile: %w", err)
	}
	return doc.profile(), nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (Profile, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Profile{}, shared.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoRepository) FindByIdentity(ctx context.Context, identityID string) (Profile, error) {
	oid, err := primitive.ObjectIDFromHex(identityID)
	if err != nil {
		return Profile{}, shared.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"user": oid})
}

func (r *MongoRepository) List(ctx context.Context) ([]Profile, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{
		{Key: "enrolledAt", Value: -1},
		{Key: "_id", Value: -1},
	}))
	if err != nil {
		return nil, fmt.Errorf("list student profiles: %w", err)
	}
	var docs []profileDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode student profiles: %w", err)
	}
	out := make([]Profile, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.profile())
	}
	return out, nil
}

func (r *MongoRepository) Update(ctx context.Context, id string, changes Changes) (Profile, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Profile{}, shared.ErrNotFound
	}
	set := bson.M{}
	if changes.Name != nil {
		set["name"] = *changes.Name
	}
	if changes.Email != nil {
		set["email"] = *changes.Email
	}
	if changes.Course != nil {
		set["course"] = *changes.Course
	}
	if changes.EnrolledAt != nil {
		set["enrolledAt"] = changes.EnrolledAt.UTC()
	}
	if changes.IdentityID != nil {
		user, err := identityRef(*changes.IdentityID)
		if err != nil {
			return Profile{}, err
		}
		set["user"] = user
	}
	if len(set) == 0 {
		return r.FindByID(ctx, id)
	}

	var doc profileDocument
	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Profile{}, shared.ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("update student profile: %w", err)
	}
	return doc.profile(), nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return shared.ErrNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete student profile: %w", err)
	}
	if res.DeletedCount == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (Profile, error) {
	var doc profileDocument
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Profile{}, shared.ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	return doc.profile(), nil
}

var _ Repository = (*MongoRepository)(nil)
