package auth

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

func identityDoc(id primitive.ObjectID, email string, role Role, created time.Time) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "email", Value: email},
		{Key: "passwordHash", Value: "$2a$10$hash"},
		{Key: "role", Value: role.String()},
		{Key: "isVerified", Value: true},
		{Key: "createdAt", Value: created},
	}
}

func TestMongoRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	ns := "scholaris." + IdentityCollection

	mt.Run("create indexes email and maps object id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		repo, err := NewMongoRepository(ctx, mt.DB)
		require.NoError(mt, err)
		index := mt.GetStartedEvent()
		require.NotNil(mt, index)
		assert.Equal(mt, "createIndexes", index.CommandName)
		mt.ClearEvents()

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		identity, err := repo.Create(ctx, Identity{Email: " Ada@X.com", Role: RoleStudent})
		require.NoError(mt, err)

		oid, err := primitive.ObjectIDFromHex(identity.ID)
		require.NoError(mt, err)
		assert.False(mt, oid.IsZero())
		assert.Equal(mt, "ada@x.com", identity.Email)

		insert := mt.GetStartedEvent()
		require.NotNil(mt, insert)
		assert.Equal(mt, "insert", insert.CommandName)
	})

	mt.Run("duplicate email is a conflict", func(mt *mtest.T) {
		repo := &MongoRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "E11000 duplicate key error collection: scholaris.users index: email_1",
		}))
		_, err := repo.Create(ctx, Identity{Email: "ada@x.com", Role: RoleStudent})
		assert.ErrorIs(mt, err, shared.ErrConflict)
	})

	mt.Run("find by id", func(mt *mtest.T) {
		repo := &MongoRepository{coll: mt.Coll}
		oid := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, identityDoc(oid, "ada@x.com", RoleAdmin, created)))

		identity, err := repo.FindByID(ctx, oid.Hex())
		require.NoError(mt, err)
		assert.Equal(mt, oid.Hex(), identity.ID)
		assert.Equal(mt, RoleAdmin, identity.Role)
		assert.True(mt, identity.Verified)
		assert.True(mt, created.Equal(identity.CreatedAt))

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		_, err = repo.FindByID(ctx, primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, shared.ErrNotFound)

		_, err = repo.FindByID(ctx, "not-an-object-id")
		assert.ErrorIs(mt, err, shared.ErrNotFound)
	})

	mt.Run("update returns the stored document", func(mt *mtest.T) {
		repo := &MongoRepository{coll: mt.Coll}
		oid := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "value", Value: identityDoc(oid, "ada.l@x.com", RoleStudent, created)},
		))

		updated, err := repo.Update(ctx, Identity{ID: oid.Hex(), Email: "Ada.L@x.com", Role: RoleStudent})
		require.NoError(mt, err)
		assert.Equal(mt, "ada.l@x.com", updated.Email)
		assert.Equal(mt, oid.Hex(), updated.ID)

		cmd := mt.GetStartedEvent()
		require.NotNil(mt, cmd)
		assert.Equal(mt, "findAndModify", cmd.CommandName)
		assert.True(mt, cmd.Command.Lookup("new").Boolean())
	})

	mt.Run("update conflicts and misses", func(mt *mtest.T) {
		repo := &MongoRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 11000, Name: "DuplicateKey", Message: "E11000 duplicate key error",
		}))
		_, err := repo.Update(ctx, Identity{ID: primitive.NewObjectID().Hex(), Email: "bob@x.com", Role: RoleStudent})
		assert.ErrorIs(mt, err, shared.ErrConflict)

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))
		_, err = repo.Update(ctx, Identity{ID: primitive.NewObjectID().Hex(), Email: "x@x.com", Role: RoleStudent})
		assert.ErrorIs(mt, err, shared.ErrNotFound)
	})

	mt.Run("delete", func(mt *mtest.T) {
		repo := &MongoRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		require.NoError(mt, repo.Delete(ctx, primitive.NewObjectID().Hex()))

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		assert.ErrorIs(mt, repo.Delete(ctx, primitive.NewObjectID().Hex()), shared.ErrNotFound)
	})

	mt.Run("list by role", func(mt *mtest.T) {
		repo := &MongoRepository{coll: mt.Coll}
		first, second := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			identityDoc(first, "a@x.com", RoleStudent, created),
			identityDoc(second, "b@x.com", RoleStudent, created.Add(time.Hour)),
		))

		identities, err := repo.ListByRole(ctx, RoleStudent)
		require.NoError(mt, err)
		require.Len(mt, identities, 2)
		assert.Equal(mt, first.Hex(), identities[0].ID)
		assert.Equal(mt, second.Hex(), identities[1].ID)

		find := mt.GetStartedEvent()
		require.NotNil(mt, find)
		assert.Equal(mt, "student", find.Command.Lookup("filter", "role").StringValue())
	})
}
