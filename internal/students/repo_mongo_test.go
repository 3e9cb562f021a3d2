package students

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/scholaris/scholaris/internal/shared"
)

func profileDoc(id, user primitive.ObjectID, name string, enrolled time.Time) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "name", Value: name},
		{Key: "email", Value: "student@x.com"},
		{Key: "course", Value: "CS"},
		{Key: "enrolledAt", Value: enrolled},
		{Key: "user", Value: user},
	}
}

func TestMongoRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	enrolled := time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)
	ns := "scholaris." + ProfileCollection

	mt.Run("create maps object ids", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		repo, err := NewMongoRepository(ctx, mt.DB)
		require.NoError(mt, err)
		mt.ClearEvents()

		user := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		profile, err := repo.Create(ctx, Profile{Name: "Ada", Email: "ada@x.com", Course: "CS", IdentityID: user.Hex()})
		require.NoError(mt, err)

		_, err = primitive.ObjectIDFromHex(profile.ID)
		require.NoError(mt, err)
		assert.Equal(mt, user.Hex(), profile.IdentityID)
		assert.False(mt, profile.EnrolledAt.IsZero())

		insert := mt.GetStartedEvent()
		require.NotNil(mt, insert)
		assert.Equal(mt, "insert", insert.CommandName)
	})

	mt.Run("create rejects a malformed identity reference", func(mt *mtest.T) {
		repo := &MongoRepository{coll: mt.Coll}
		_, err := repo.Create(ctx, Profile{Name: "Ada", IdentityID: "nope"})
		assert.ErrorIs(mt, err, shared.ErrValidation)
		assert.Nil(mt, mt.GetStartedEvent())
	})

	mt.Run("list sorts newest enrolment first with id tiebreak", func(mt *mtest.T) {
		repo := &MongoRepository{coll: mt.Coll}
		newer, older := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			profileDoc(newer, primitive.NewObjectID(), "Newer", enrolled.Add(24*time.Hour)),
			profileDoc(older, primitive.NewObjectID(), "Older", enrolled),
		))

		profiles, err := repo.List(ctx)
		require.NoError(mt, err)
		require.Len(mt, profiles, 2)
		assert.Equal(mt, newer.Hex(), profiles[0].ID)
		assert.Equal(mt, "Older", profiles[1].Name)

		find := mt.GetStartedEvent()
		require.NotNil(mt, find)
		elems, err := find.Command.Lookup("sort").Document().Elements()
		require.NoError(mt, err)
		require.Len(mt, elems, 2)
		assert.Equal(mt, "enrolledAt", elems[0].Key())
		assert.Equal(mt, "_id", elems[1].Key())
		for _, elem := range elems {
			direction, ok := elem.Value().AsInt64OK()
			require.True(mt, ok)
			assert.EqualValues(mt, -1, direction)
		}
	})

	mt.Run("find by identity", func(mt *mtest.T) {
		repo := &MongoRepository{coll: mt.Coll}
		id, user := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, profileDoc(id, user, "Ada", enrolled)))

		profile, err := repo.FindByIdentity(ctx, user.Hex())
		require.NoError(mt, err)
		assert.Equal(mt, id.Hex(), profile.ID)
		assert.True(mt, enrolled.Equal(profile.EnrolledAt))

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		_, err = repo.FindByID(ctx, primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, shared.ErrNotFound)

		_, err = repo.FindByID(ctx, "bad-hex")
		assert.ErrorIs(mt, err, shared.ErrNotFound)
	})

	mt.Run("update returns the document after the write", func(mt *mtest.T) {
		repo := &MongoRepository{coll: mt.Coll}
		id, user := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "value", Value: profileDoc(id, user, "Ada Lovelace", enrolled)},
		))

		name := "Ada Lovelace"
		profile, err := repo.Update(ctx, id.Hex(), Changes{Name: &name})
		require.NoError(mt, err)
		assert.Equal(mt, "Ada Lovelace", profile.Name)
		assert.Equal(mt, user.Hex(), profile.IdentityID)

		cmd := mt.GetStartedEvent()
		require.NotNil(mt, cmd)
		assert.Equal(mt, "findAndModify", cmd.CommandName)
		assert.True(mt, cmd.Command.Lookup("new").Boolean())
		set := cmd.Command.Lookup("update", "$set").Document()
		assert.Equal(mt, "Ada Lovelace", set.Lookup("name").StringValue())
		_, err = set.LookupErr("course")
		assert.Error(mt, err, "unset fields stay out of $set")
	})

	mt.Run("update misses and bad references", func(mt *mtest.T) {
		repo := &MongoRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))
		course := "Math"
		_, err := repo.Update(ctx, primitive.NewObjectID().Hex(), Changes{Course: &course})
		assert.ErrorIs(mt, err, shared.ErrNotFound)

		bad := "xyz"
		_, err = repo.Update(ctx, primitive.NewObjectID().Hex(), Changes{IdentityID: &bad})
		assert.ErrorIs(mt, err, shared.ErrValidation)
	})

	mt.Run("delete", func(mt *mtest.T) {
		repo := &MongoRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		require.NoError(mt, repo.Delete(ctx, primitive.NewObjectID().Hex()))

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		assert.ErrorIs(mt, repo.Delete(ctx, primitive.NewObjectID().Hex()), shared.ErrNotFound)
	})
}
