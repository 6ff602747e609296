package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/travelblog/internal/config"
	"github.com/travelblog/internal/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	postsCollection       = "posts"
	subscribersCollection = "newsletters"
	submissionsCollection = "submissions"
)

type mongoStore struct {
	client      *mongo.Client
	timeout     time.Duration
	posts       *mongoPosts
	subscribers *mongoSubscribers
	submissions *mongoSubmissions
}

// OpenMongo connects to cfg.MongoURI and ensures the collection indexes.
func OpenMongo(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	if strings.TrimSpace(cfg.MongoURI) == "" {
		return nil, errors.New("mongodb store requires MONGODB_URI")
	}

	opts := options.Client().ApplyURI(cfg.MongoURI)
	if cfg.QueryTimeout > 0 {
		opts.SetServerSelectionTimeout(cfg.QueryTimeout)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", translateMongoError(err, ""))
	}

	database := client.Database(cfg.MongoDB)
	s := &mongoStore{
		client:      client,
		timeout:     cfg.QueryTimeout,
		posts:       &mongoPosts{coll: database.Collection(postsCollection), timeout: cfg.QueryTimeout},
		subscribers: &mongoSubscribers{coll: database.Collection(subscribersCollection), timeout: cfg.QueryTimeout},
		submissions: &mongoSubmissions{coll: database.Collection(submissionsCollection), timeout: cfg.QueryTimeout},
	}

	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure mongodb indexes: %w", err)
	}

	log.Printf("[STORE] connected to mongodb database %s", cfg.MongoDB)
	return s, nil
}

func (s *mongoStore) Posts() PostRepository             { return s.posts }
func (s *mongoStore) Subscribers() SubscriberRepository { return s.subscribers }
func (s *mongoStore) Submissions() SubmissionRepository { return s.submissions }
func (s *mongoStore) Driver() string                    { return "mongodb" }

func (s *mongoStore) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *mongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *mongoStore) ensureIndexes(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.posts.coll: {
			{Keys: bson.D{{Key: "title", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "isPublished", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "category", Value: 1}}},
			{Keys: bson.D{{Key: "updatedAt", Value: -1}}},
		},
		s.subscribers.coll: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "subscribedAt", Value: -1}}},
			{Keys: bson.D{{Key: "isActive", Value: 1}}},
		},
		s.submissions.coll: {
			{Keys: bson.D{{Key: "email", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "isReadByAdmin", Value: 1}}},
			{Keys: bson.D{{Key: "isReadByUser", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return translateMongoError(err, "")
		}
	}
	return nil
}

func translateMongoError(err error, uniqueField string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return &DuplicateError{Field: uniqueField}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return err
	case mongo.IsTimeout(err):
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	case mongo.IsNetworkError(err), errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return fmt.Errorf("mongodb: %w", err)
}

func containsRegex(value string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(value), Options: "i"}
}

func postFilterDocument(filter PostFilter) bson.M {
	doc := bson.M{}
	if search := strings.TrimSpace(filter.Search); search != "" {
		re := containsRegex(search)
		doc["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"summary": re},
			bson.M{"content": re},
			bson.M{"tags": re},
		}
	}
	if filter.Category != "" {
		doc["category"] = filter.Category
	}
	if filter.IsPublished != nil {
		doc["isPublished"] = *filter.IsPublished
	}
	return doc
}

// postProjection maps Post JSON names onto document keys.
func postProjection(fields []string) bson.D {
	if len(fields) == 0 {
		return nil
	}
	projection := bson.D{}
	for _, field := range fields {
		if _, ok := postColumns[field]; !ok {
			continue
		}
		key := field
		if field == "id" {
			key = "_id"
		}
		projection = append(projection, bson.E{Key: key, Value: 1})
	}
	return projection
}

func postSortDocument(sort Sort) bson.D {
	if sort.Field == "" {
		sort = RecentFirst
	}
	if _, ok := postColumns[sort.Field]; !ok {
		sort = RecentFirst
	}
	key := sort.Field
	if key == "id" {
		key = "_id"
	}
	direction := 1
	if sort.Descending {
		direction = -1
	}
	return bson.D{{Key: key, Value: direction}, {Key: "_id", Value: direction}}
}

func subscriberFilterDocument(filter SubscriberFilter) bson.M {
	doc := bson.M{}
	if search := strings.TrimSpace(filter.Search); search != "" {
		re := containsRegex(search)
		doc["$or"] = bson.A{bson.M{"name": re}, bson.M{"email": re}}
	}
	if filter.Active != nil {
		doc["isActive"] = *filter.Active
	}
	if filter.SubscribedSince != nil {
		doc["subscribedAt"] = bson.M{"$gte": *filter.SubscribedSince}
	}
	return doc
}

func submissionFilterDocument(filter SubmissionFilter) bson.M {
	doc := bson.M{}
	if filter.Email != "" {
		doc["email"] = filter.Email
	}
	if filter.Status != "" {
		doc["status"] = string(filter.Status)
	}
	if filter.UnreadByAdmin {
		doc["isReadByAdmin"] = false
	}
	if filter.UnreadByUser {
		doc["isReadByUser"] = false
	}
	return doc
}

func findOptions(skip, limit int) *options.FindOptions {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
		if skip > 0 {
			opts.SetSkip(int64(skip))
		}
	}
	return opts
}

type mongoPosts struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func (r *mongoPosts) Create(ctx context.Context, post *db.Post) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if post.ID == "" {
		post.ID = db.NewID()
	}
	now := time.Now().UTC()
	post.CreatedAt, post.UpdatedAt = now, now
	_, err := r.coll.InsertOne(ctx, post)
	return translateMongoError(err, "title")
}

func (r *mongoPosts) Get(ctx context.Context, id string, filter PostFilter) (*db.Post, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	doc := postFilterDocument(filter)
	doc["_id"] = id

	var post db.Post
	if err := r.coll.FindOne(ctx, doc).Decode(&post); err != nil {
		return nil, translateMongoError(err, "title")
	}
	return &post, nil
}

func (r *mongoPosts) Update(ctx context.Context, post *db.Post) error {
	if err := validID(post.ID); err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	post.UpdatedAt = time.Now().UTC()
	result, err := r.coll.ReplaceOne(ctx, bson.M{"_id": post.ID}, post)
	if err != nil {
		return translateMongoError(err, "title")
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoPosts) Delete(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translateMongoError(err, "title")
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoPosts) List(ctx context.Context, q PostQuery) ([]db.Post, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	opts := findOptions(q.Skip, q.Limit).SetSort(postSortDocument(q.Sort))
	if projection := postProjection(q.Fields); projection != nil {
		opts.SetProjection(projection)
	}

	cursor, err := r.coll.Find(ctx, postFilterDocument(q.Filter), opts)
	if err != nil {
		return nil, translateMongoError(err, "title")
	}
	posts := []db.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, translateMongoError(err, "title")
	}
	return posts, nil
}

func (r *mongoPosts) Count(ctx context.Context, filter PostFilter) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	total, err := r.coll.CountDocuments(ctx, postFilterDocument(filter))
	return total, translateMongoError(err, "title")
}

func (r *mongoPosts) IncrementViews(ctx context.Context, id string, delta int64) error {
	if err := validID(id); err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"views": delta}})
	if err != nil {
		return translateMongoError(err, "title")
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoPosts) Categories(ctx context.Context, filter PostFilter) ([]string, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	values, err := r.coll.Distinct(ctx, "category", postFilterDocument(filter))
	if err != nil {
		return nil, translateMongoError(err, "title")
	}
	categories := make([]string, 0, len(values))
	for _, value := range values {
		if category, ok := value.(string); ok && category != "" {
			categories = append(categories, category)
		}
	}
	sort.Strings(categories)
	return categories, nil
}

type mongoSubscribers struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func (r *mongoSubscribers) Create(ctx context.Context, subscriber *db.Subscriber) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if subscriber.ID == "" {
		subscriber.ID = db.NewID()
	}
	now := time.Now().UTC()
	subscriber.CreatedAt, subscriber.UpdatedAt = now, now
	_, err := r.coll.InsertOne(ctx, subscriber)
	return translateMongoError(err, "email")
}

func (r *mongoSubscribers) FindByEmail(ctx context.Context, email string) (*db.Subscriber, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var subscriber db.Subscriber
	if err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&subscriber); err != nil {
		return nil, translateMongoError(err, "email")
	}
	return &subscriber, nil
}

func (r *mongoSubscribers) Update(ctx context.Context, subscriber *db.Subscriber) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	subscriber.UpdatedAt = time.Now().UTC()
	result, err := r.coll.ReplaceOne(ctx, bson.M{"_id": subscriber.ID}, subscriber)
	if err != nil {
		return translateMongoError(err, "email")
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoSubscribers) List(ctx context.Context, q SubscriberQuery) ([]db.Subscriber, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	opts := findOptions(q.Skip, q.Limit).
		SetSort(bson.D{{Key: "subscribedAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.coll.Find(ctx, subscriberFilterDocument(q.Filter), opts)
	if err != nil {
		return nil, translateMongoError(err, "email")
	}
	subscribers := []db.Subscriber{}
	if err := cursor.All(ctx, &subscribers); err != nil {
		return nil, translateMongoError(err, "email")
	}
	return subscribers, nil
}

func (r *mongoSubscribers) Count(ctx context.Context, filter SubscriberFilter) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	total, err := r.coll.CountDocuments(ctx, subscriberFilterDocument(filter))
	return total, translateMongoError(err, "email")
}

type mongoSubmissions struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func (r *mongoSubmissions) Create(ctx context.Context, submission *db.Submission) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if submission.ID == "" {
		submission.ID = db.NewID()
	}
	now := time.Now().UTC()
	submission.CreatedAt, submission.UpdatedAt = now, now
	_, err := r.coll.InsertOne(ctx, submission)
	return translateMongoError(err, "id")
}

func (r *mongoSubmissions) Get(ctx context.Context, id string) (*db.Submission, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var submission db.Submission
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&submission); err != nil {
		return nil, translateMongoError(err, "id")
	}
	return &submission, nil
}

func (r *mongoSubmissions) Update(ctx context.Context, submission *db.Submission) error {
	if err := validID(submission.ID); err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	submission.UpdatedAt = time.Now().UTC()
	result, err := r.coll.ReplaceOne(ctx, bson.M{"_id": submission.ID}, submission)
	if err != nil {
		return translateMongoError(err, "id")
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoSubmissions) Delete(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translateMongoError(err, "id")
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoSubmissions) List(ctx context.Context, filter SubmissionFilter, limit int) ([]db.Submission, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	opts := findOptions(0, limit).
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.coll.Find(ctx, submissionFilterDocument(filter), opts)
	if err != nil {
		return nil, translateMongoError(err, "id")
	}
	submissions := []db.Submission{}
	if err := cursor.All(ctx, &submissions); err != nil {
		return nil, translateMongoError(err, "id")
	}
	return submissions, nil
}

func (r *mongoSubmissions) Count(ctx context.Context, filter SubmissionFilter) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	total, err := r.coll.CountDocuments(ctx, submissionFilterDocument(filter))
	return total, translateMongoError(err, "id")
}
