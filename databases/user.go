package databases

// go generate: mockery --name UserDatabase

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"github.com/casafind/casafind-chat-api/models"
)

const userCollectionName = "users"

// UserDatabase contains the methods to use with the user database
type UserDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.User, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.User, error)
	InsertOne(ctx context.Context, user models.User, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	FindAdmin(ctx context.Context) (string, error)
}

type userDatabase struct {
	db DatabaseHelper
}

// NewUserDatabase initializes a new instance of user database with the provided db connection
func NewUserDatabase(db DatabaseHelper) UserDatabase {
	return &userDatabase{
		db: db,
	}
}

func (u *userDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.User, error) {
	user := &models.User{}
	err := u.db.Collection(userCollectionName).FindOne(ctx, filter, opts...).Decode(&user)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (u *userDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.User, error) {
	var users []models.User
	curr, err := u.db.Collection(userCollectionName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer curr.Close(ctx)
	err = curr.All(ctx, &users)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (u *userDatabase) InsertOne(ctx context.Context, user models.User, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return u.db.Collection(userCollectionName).InsertOne(ctx, user, opts...)
}

// FindAdmin returns the identity of the single configured admin account,
// or an empty string when no admin exists.
func (u *userDatabase) FindAdmin(ctx context.Context) (string, error) {
	admin, err := u.FindOne(ctx, bson.M{"role": models.RoleAdmin})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil
		}
		return "", err
	}
	return admin.ID.Hex(), nil
}

// EnsureAdmin bootstraps the support admin account from env vars if not already present
// Env vars: ADMIN_EMAIL, ADMIN_PASSWORD
func EnsureAdmin(db DatabaseHelper) error {
	adminEmail := strings.TrimSpace(strings.ToLower(os.Getenv("ADMIN_EMAIL")))
	if adminEmail == "" {
		return nil
	}
	ctx := context.Background()
	err := db.Collection(userCollectionName).FindOne(ctx, bson.M{"role": models.RoleAdmin}).Decode(&struct{}{})
	if err == nil {
		return nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" {
		return errors.New("ADMIN_PASSWORD must be set to bootstrap the support admin")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	now := primitive.NewDateTimeFromTime(time.Now())
	admin := models.User{
		ID:        primitive.NewObjectID(),
		Email:     adminEmail,
		Name:      "Support",
		Password:  string(hash),
		Role:      models.RoleAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = db.Collection(userCollectionName).InsertOne(ctx, admin)
	return err
}
