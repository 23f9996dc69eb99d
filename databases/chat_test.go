package databases_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/casafind/casafind-chat-api/config"
	"github.com/casafind/casafind-chat-api/databases"
	"github.com/casafind/casafind-chat-api/databases/mocks"
	"github.com/casafind/casafind-chat-api/models"
)

func TestNewChatDatabase(t *testing.T) {
	os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	os.Setenv("DB_NAME", "test")
	conf := config.New()

	dbClient, err := databases.NewClient(conf)
	assert.NoError(t, err)

	db := databases.NewDatabase(conf, dbClient)

	chatDB := databases.NewChatDatabase(db)

	assert.NotEmpty(t, chatDB)
}

func TestChatDatabase_FindOne(t *testing.T) {

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var srHelperErr databases.SingleResultHelper
	var srHelperCorrect databases.SingleResultHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	srHelperErr = &mocks.SingleResultHelper{}
	srHelperCorrect = &mocks.SingleResultHelper{}

	srHelperErr.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(errors.New("mocked-error"))

	srHelperCorrect.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.ChatMessage)
		(*arg).Seq = 7
		(*arg).Text = "mocked-message"
	})

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": true}).
		Return(srHelperErr)

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": false}).
		Return(srHelperCorrect)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "supportchat").
		Return(collectionHelper)

	chatDB := databases.NewChatDatabase(dbHelper)

	msg, err := chatDB.FindOne(context.Background(), bson.M{"error": true})
	assert.Empty(t, msg)
	assert.EqualError(t, err, "mocked-error")

	msg, err = chatDB.FindOne(context.Background(), bson.M{"error": false})
	assert.Equal(t, &models.ChatMessage{Seq: 7, Text: "mocked-message"}, msg)
	assert.NoError(t, err)
}

func TestChatDatabase_Find(t *testing.T) {

	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var cursorHelperCorrect databases.CursorHelper

	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	cursorHelperCorrect = &mocks.CursorHelper{}

	cursorHelperCorrect.(*mocks.CursorHelper).
		On("All", mock.Anything, mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(1).(*[]models.ChatMessage)
		*arg = append(*arg, models.ChatMessage{Seq: 1, Text: "mocked-message"})
	})
	cursorHelperCorrect.(*mocks.CursorHelper).
		On("Close", mock.Anything).
		Return(nil)

	collectionHelper.(*mocks.CollectionHelper).
		On("Find", context.Background(), bson.M{"error": true}).
		Return(nil, errors.New("mocked-error"))

	collectionHelper.(*mocks.CollectionHelper).
		On("Find", context.Background(), bson.M{"error": false}).
		Return(cursorHelperCorrect, nil)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "supportchat").
		Return(collectionHelper)

	chatDB := databases.NewChatDatabase(dbHelper)

	msgs, err := chatDB.Find(context.Background(), bson.M{"error": true})
	assert.Empty(t, msgs)
	assert.EqualError(t, err, "mocked-error")

	msgs, err = chatDB.Find(context.Background(), bson.M{"error": false})
	assert.Equal(t, []models.ChatMessage{{Seq: 1, Text: "mocked-message"}}, msgs)
	assert.NoError(t, err)
}

func TestChatDatabase_InsertOne(t *testing.T) {

	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var iorHelper databases.InsertOneResultHelper

	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	iorHelper = &mocks.InsertOneResultHelper{}

	doc := models.ChatMessage{Seq: 1, SenderID: "u1", RecipientID: "a1", Text: "hi"}

	collectionHelper.(*mocks.CollectionHelper).
		On("InsertOne", context.Background(), doc).
		Return(iorHelper, nil)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "supportchat").
		Return(collectionHelper)

	chatDB := databases.NewChatDatabase(dbHelper)

	res, err := chatDB.InsertOne(context.Background(), doc)
	assert.Equal(t, iorHelper, res)
	assert.NoError(t, err)
}
