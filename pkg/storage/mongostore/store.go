package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/nasa-explorer/explorer/pkg/observability"
	"github.com/nasa-explorer/explorer/pkg/storage"
)

const (
	// CollectionUsers holds one document per registered user
	CollectionUsers = "users"
	// EmailIndexName is the unique index that rejects duplicate emails
	EmailIndexName = "email_unique"

	codeQueryFailed = "STORE_QUERY_FAILED"
	backend         = storage.TypeMongo
)

// userDocument is the stored shape of a user
type userDocument struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	FirstName string        `bson:"firstName"`
	LastName  string        `bson:"lastName"`
	Email     string        `bson:"email"`
	Password  string        `bson:"password"`
	CreatedAt time.Time     `bson:"createdAt"`
	UpdatedAt time.Time     `bson:"updatedAt"`
}

func toDocument(u *storage.User) (userDocument, error) {
	doc := userDocument{
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     strings.ToLower(strings.TrimSpace(u.Email)),
		Password:  u.PasswordHash,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.ID == "" {
		doc.ID = bson.NewObjectID()
		return doc, nil
	}
	id, err := bson.ObjectIDFromHex(u.ID)
	if err != nil {
		return doc, fmt.Errorf("invalid user id %q: %w", u.ID, err)
	}
	doc.ID = id
	return doc, nil
}

func (d *userDocument) toUser() *storage.User {
	return &storage.User{
		ID:           d.ID.Hex(),
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Email:        d.Email,
		PasswordHash: d.Password,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// Store implements storage.UserStore on MongoDB
type Store struct {
	client  *mongo.Client
	users   *mongo.Collection
	metrics *observability.Metrics
}

var _ storage.UserStore = (*Store)(nil)

// Open connects to cfg.MongoURL and pings the primary
func Open(ctx context.Context, cfg storage.Config, metrics *observability.Metrics) (*Store, error) {
	opts := options.Client().ApplyURI(cfg.MongoURL)
	if cfg.Timeout > 0 {
		opts.SetTimeout(cfg.Timeout)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout(cfg.Timeout))
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	database := cfg.MongoDatabase
	if database == "" {
		database = storage.DefaultConfig().MongoDatabase
	}

	return &Store{
		client:  client,
		users:   client.Database(database).Collection(CollectionUsers),
		metrics: metrics,
	}, nil
}

func pingTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 5 * time.Second
	}
	return d
}

// EnsureIndexes creates the unique email index. It is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName(EmailIndexName),
	})
	if err != nil {
		return wrap(err, "create email index")
	}
	return nil
}

// FindByEmail returns the user with the given email
func (s *Store) FindByEmail(ctx context.Context, email string) (u *storage.User, err error) {
	defer s.observe("find_by_email", time.Now(), &err)
	return s.findOne(ctx, bson.D{{Key: "email", Value: strings.ToLower(strings.TrimSpace(email))}})
}

// FindByID returns the user with the given hex ObjectID
func (s *Store) FindByID(ctx context.Context, id string) (u *storage.User, err error) {
	defer s.observe("find_by_id", time.Now(), &err)

	oid, convErr := bson.ObjectIDFromHex(id)
	if convErr != nil {
		return nil, storage.ErrNotFound
	}
	return s.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (s *Store) findOne(ctx context.Context, filter bson.D) (*storage.User, error) {
	var doc userDocument
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, wrap(err, "find user")
	}
	return doc.toUser(), nil
}

// Create inserts u. The unique email index turns a collision into
// storage.ErrDuplicateKey.
func (s *Store) Create(ctx context.Context, u *storage.User) (err error) {
	defer s.observe("create", time.Now(), &err)

	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	doc, err := toDocument(u)
	if err != nil {
		return err
	}

	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return wrap(err, "insert user")
	}

	u.ID = doc.ID.Hex()
	u.Email = doc.Email
	return nil
}

// ListAll returns every user ordered by creation time
func (s *Store) ListAll(ctx context.Context) (users []*storage.User, err error) {
	defer s.observe("list_all", time.Now(), &err)

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.users.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, wrap(err, "list users")
	}

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, wrap(err, "decode users")
	}

	users = make([]*storage.User, 0, len(docs))
	for i := range docs {
		users = append(users, docs[i].toUser())
	}
	return users, nil
}

// Count returns the number of users
func (s *Store) Count(ctx context.Context) (n int64, err error) {
	defer s.observe("count", time.Now(), &err)

	n, err = s.users.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, wrap(err, "count users")
	}
	return n, nil
}

// Ping checks the primary
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) observe(op string, start time.Time, err *error) {
	var e error
	if err != nil && !errors.Is(*err, storage.ErrNotFound) && !errors.Is(*err, storage.ErrDuplicateKey) {
		e = *err
	}
	s.metrics.ObserveStorage(op, backend, start, e)
}

func wrap(err error, op string) error {
	return oops.In("mongostore").
		Code(codeQueryFailed).
		With("backend", backend).
		With("op", op).
		Wrapf(err, "failed to %s", op)
}
