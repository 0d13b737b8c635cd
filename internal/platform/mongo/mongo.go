// Package mongo stores reviews as documents and computes aggregations with
// server-side pipelines.
package mongo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"perfreview/internal/domain/performance"
)

const collectionName = "performance_reviews"

type reviewDocument struct {
	ID           string    `bson:"_id"`
	EmployeeID   string    `bson:"employeeId"`
	ReviewerID   string    `bson:"reviewerId"`
	ReviewDate   time.Time `bson:"reviewDate"`
	Metrics      metrics   `bson:"metrics"`
	EmployeeInfo info      `bson:"employeeInfo"`
	Comments     string    `bson:"comments,omitempty"`
	OverallScore float64   `bson:"overallScore"`
	CreatedAt    time.Time `bson:"createdAt"`
	// Seq orders reviews by insertion; createdAt alone ties within a millisecond.
	Seq          int64     `bson:"seq"`
}

type metrics struct {
	GoalAchievement float64 `bson:"goalAchievement"`
	SkillLevel      float64 `bson:"skillLevel"`
	Teamwork        float64 `bson:"teamwork"`
}

type info struct {
	DepartmentID string `bson:"departmentId"`
	Role         string `bson:"role"`
}

type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	now        func() time.Time

	seqMu   sync.Mutex
	lastSeq int64
}

var _ performance.StoreAPI = (*Store)(nil)

// Connect dials uri, verifies the connection and ensures the query indexes exist.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	store := &Store{
		client:     client,
		collection: client.Database(database).Collection(collectionName),
		now:        time.Now,
	}
	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "employeeId", Value: 1}, {Key: "reviewDate", Value: 1}}},
		{Keys: bson.D{{Key: "employeeInfo.departmentId", Value: 1}, {Key: "employeeInfo.role", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) SaveReview(ctx context.Context, review performance.Review) (performance.Review, error) {
	review.ID = uuid.NewString()
	doc := reviewDocument{
		ID:         review.ID,
		EmployeeID: review.EmployeeID,
		ReviewerID: review.ReviewerID,
		ReviewDate: review.ReviewDate.UTC(),
		Metrics: metrics{
			GoalAchievement: review.Metrics.GoalAchievement,
			SkillLevel:      review.Metrics.SkillLevel,
			Teamwork:        review.Metrics.Teamwork,
		},
		EmployeeInfo: info{DepartmentID: review.EmployeeInfo.DepartmentID, Role: review.EmployeeInfo.Role},
		Comments:     review.Comments,
		OverallScore: review.OverallScore,
		CreatedAt:    s.now().UTC(),
		Seq:          s.nextSeq(),
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return performance.Review{}, fmt.Errorf("insert review: %w", err)
	}
	return review, nil
}

// nextSeq is the insert clock in nanoseconds, forced strictly increasing within the
// process.
func (s *Store) nextSeq() int64 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	seq := s.now().UnixNano()
	if seq <= s.lastSeq {
		seq = s.lastSeq + 1
	}
	s.lastSeq = seq
	return seq
}

func (s *Store) ListReviewsByEmployee(ctx context.Context, employeeID string) ([]performance.Review, error) {
	return s.findReviews(ctx, bson.M{"employeeId": employeeID})
}

func (s *Store) ListReviewsByEmployeeBetween(ctx context.Context, employeeID string, start, end time.Time) ([]performance.Review, error) {
	return s.findReviews(ctx, bson.M{
		"employeeId": employeeID,
		"reviewDate": bson.M{"$gte": start.UTC(), "$lte": end.UTC()},
	})
}

func (s *Store) findReviews(ctx context.Context, filter bson.M) ([]performance.Review, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find reviews: %w", err)
	}
	var docs []reviewDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}

	reviews := make([]performance.Review, 0, len(docs))
	for _, doc := range docs {
		reviews = append(reviews, performance.Review{
			ID:         doc.ID,
			EmployeeID: doc.EmployeeID,
			ReviewerID: doc.ReviewerID,
			ReviewDate: doc.ReviewDate.UTC(),
			Metrics: performance.Metrics{
				GoalAchievement: doc.Metrics.GoalAchievement,
				SkillLevel:      doc.Metrics.SkillLevel,
				Teamwork:        doc.Metrics.Teamwork,
			},
			EmployeeInfo: performance.EmployeeInfo{DepartmentID: doc.EmployeeInfo.DepartmentID, Role: doc.EmployeeInfo.Role},
			Comments:     doc.Comments,
			OverallScore: doc.OverallScore,
		})
	}
	return reviews, nil
}

func (s *Store) PeerAggregates(ctx context.Context, departmentID, role string) ([]performance.PeerAggregate, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"employeeInfo.departmentId": departmentID, "employeeInfo.role": role}}},
		{{Key: "$group", Value: bson.M{"_id": "$employeeId", "averageScore": bson.M{"$avg": "$overallScore"}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate peers: %w", err)
	}
	var rows []struct {
		EmployeeID   string  `bson:"_id"`
		AverageScore float64 `bson:"averageScore"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode peer aggregates: %w", err)
	}

	out := make([]performance.PeerAggregate, 0, len(rows))
	for _, row := range rows {
		out = append(out, performance.PeerAggregate{EmployeeID: row.EmployeeID, AverageScore: row.AverageScore})
	}
	return out, nil
}

// DepartmentAggregates sorts newest first before grouping so $first picks the role
// of each employee's most recent review.
func (s *Store) DepartmentAggregates(ctx context.Context, departmentID string) ([]performance.DepartmentAggregate, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"employeeInfo.departmentId": departmentID}}},
		{{Key: "$sort", Value: bson.D{{Key: "reviewDate", Value: -1}, {Key: "seq", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":          "$employeeId",
			"averageScore": bson.M{"$avg": "$overallScore"},
			"latestRole":   bson.M{"$first": "$employeeInfo.role"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate department: %w", err)
	}
	var rows []struct {
		EmployeeID   string  `bson:"_id"`
		AverageScore float64 `bson:"averageScore"`
		LatestRole   string  `bson:"latestRole"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode department aggregates: %w", err)
	}

	out := make([]performance.DepartmentAggregate, 0, len(rows))
	for _, row := range rows {
		out = append(out, performance.DepartmentAggregate{
			EmployeeID:   row.EmployeeID,
			AverageScore: row.AverageScore,
			LatestRole:   row.LatestRole,
		})
	}
	return out, nil
}
