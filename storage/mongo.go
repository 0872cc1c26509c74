package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/eddielth/signal-monitor/config"
	"github.com/eddielth/signal-monitor/logger"
	"github.com/eddielth/signal-monitor/telemetry"
)

// MongoStorage keeps device samples in the mqtt_db collection and decoded
// status rows in a second collection.
type MongoStorage struct {
	client   *mongo.Client
	samples  *mongo.Collection
	statuses *mongo.Collection
}

// statusDocument is the stored form of a StatusEntry
type statusDocument struct {
	RecordID      int64                  `bson:"record_id"`
	EquipmentID   string                 `bson:"equipment_id"`
	EquipmentType string                 `bson:"equipment_type"`
	State         string                 `bson:"state"`
	Abnormal      bool                   `bson:"abnormal"`
	RawData       string                 `bson:"raw_data"`
	ReceiveDate   time.Time              `bson:"receive_date"`
	Fields        map[string]interface{} `bson:"fields"`
}

// NewMongoStorage connects, pings and creates the indexes.
func NewMongoStorage(ctx context.Context, cfg config.DocumentStorageConfig) (*MongoStorage, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errors.Wrap(err, "connect to MongoDB")
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "ping MongoDB")
	}

	db := client.Database(cfg.Database)
	ms := &MongoStorage{
		client:   client,
		samples:  db.Collection(cfg.Collection),
		statuses: db.Collection(cfg.StatusCollection),
	}

	if err := ms.createIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "create MongoDB indexes")
	}

	logger.Info("MongoDB storage ready: %s.%s", cfg.Database, cfg.Collection)
	return ms, nil
}

func (ms *MongoStorage) createIndexes(ctx context.Context) error {
	_, err := ms.samples.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "equipment_id", Value: 1}, {Key: "updated_at", Value: 1}}},
		{Keys: bson.D{{Key: "deviceid", Value: 1}}},
	})
	if err != nil {
		return err
	}
	_, err = ms.statuses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "equipment_id", Value: 1}, {Key: "receive_date", Value: 1}},
	})
	return err
}

// StoreStatus inserts one status document
func (ms *MongoStorage) StoreStatus(ctx context.Context, entry StatusEntry) error {
	var fields map[string]interface{}
	raw, err := json.Marshal(entry.Row)
	if err != nil {
		return errors.Wrap(err, "serialize decoded row")
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return errors.Wrap(err, "serialize decoded row")
	}

	doc := statusDocument{
		RecordID:      entry.Record.ID,
		EquipmentID:   entry.EquipmentID,
		EquipmentType: string(entry.Row.Type()),
		State:         string(entry.Record.State),
		Abnormal:      entry.Record.Abnormal,
		RawData:       entry.Record.RawData,
		ReceiveDate:   entry.Row.ReceivedAt().UTC(),
		Fields:        fields,
	}
	if _, err := ms.statuses.InsertOne(ctx, doc); err != nil {
		return errors.Wrap(err, "insert status document")
	}
	return nil
}

// StoreSample inserts one mqtt_db document
func (ms *MongoStorage) StoreSample(ctx context.Context, sample telemetry.DeviceSample) error {
	if _, err := ms.samples.InsertOne(ctx, sample); err != nil {
		return errors.Wrap(err, "insert sample document")
	}
	return nil
}

func sampleFilter(q SampleQuery) bson.M {
	filter := bson.M{
		"equipment_id": q.EquipmentID,
		"updated_at":   bson.M{"$gte": q.From, "$lte": q.To},
	}
	if q.DeviceID != nil {
		filter["deviceid"] = *q.DeviceID
	}
	return filter
}

// Samples queries the mqtt_db collection
func (ms *MongoStorage) Samples(ctx context.Context, q SampleQuery) ([]telemetry.DeviceSample, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}})
	cur, err := ms.samples.Find(ctx, sampleFilter(q), opts)
	if err != nil {
		return nil, errors.Wrap(err, "find samples")
	}
	defer cur.Close(ctx)

	var out []telemetry.DeviceSample
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode samples")
	}
	return out, nil
}

// Records queries the status collection
func (ms *MongoStorage) Records(ctx context.Context, q RecordQuery) ([]telemetry.RawTelemetryRecord, error) {
	filter := bson.M{
		"equipment_id": q.EquipmentID,
		"receive_date": bson.M{"$gte": q.From, "$lte": q.To},
	}
	opts := options.Find().SetSort(bson.D{{Key: "receive_date", Value: 1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := ms.statuses.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find status documents")
	}
	defer cur.Close(ctx)

	var docs []statusDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode status documents")
	}

	out := make([]telemetry.RawTelemetryRecord, len(docs))
	for i, d := range docs {
		out[i] = telemetry.RawTelemetryRecord{
			ID:          d.RecordID,
			RawData:     d.RawData,
			State:       telemetry.State(d.State),
			Abnormal:    d.Abnormal,
			ReceiveDate: d.ReceiveDate.UTC().Format(time.RFC3339Nano),
		}
	}
	return out, nil
}

// Close disconnects the client
func (ms *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ms.client.Disconnect(ctx); err != nil {
		return errors.Wrap(err, "disconnect MongoDB")
	}
	logger.Info("MongoDB connection closed")
	return nil
}
