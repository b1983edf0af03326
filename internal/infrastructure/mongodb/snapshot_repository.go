// Package mongodb guarda las fotos periódicas de métricas del pipeline.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lapublica/pipeline-api/internal/domain/entity"
	"github.com/lapublica/pipeline-api/internal/domain/repository"
)

const snapshotCollection = "pipeline_stats_snapshots"

var _ repository.StatsSnapshotRepository = (*SnapshotRepository)(nil)

// SnapshotRepository implementa StatsSnapshotRepository sobre MongoDB.
type SnapshotRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewSnapshotRepository conecta, verifica con ping y asegura el índice (company_id, taken_at).
func NewSnapshotRepository(ctx context.Context, uri, dbName string) (*SnapshotRepository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("conectar mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	coll := client.Database(dbName).Collection(snapshotCollection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "company_id", Value: 1}, {Key: "taken_at", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("índice de snapshots: %w", err)
	}
	return &SnapshotRepository{client: client, coll: coll}, nil
}

// Save inserta una foto.
func (r *SnapshotRepository) Save(ctx context.Context, s *entity.PipelineStatsSnapshot) error {
	doc, err := toDocument(s)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insertar snapshot: %w", err)
	}
	return nil
}

// ListByCompany devuelve las últimas limit fotos, de la más reciente a la más antigua.
func (r *SnapshotRepository) ListByCompany(ctx context.Context, companyID string, limit int) ([]*entity.PipelineStatsSnapshot, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "taken_at", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, bson.M{"company_id": companyID}, opts)
	if err != nil {
		return nil, fmt.Errorf("buscar snapshots: %w", err)
	}
	defer cur.Close(ctx)

	var docs []snapshotDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("leer snapshots: %w", err)
	}
	out := make([]*entity.PipelineStatsSnapshot, 0, len(docs))
	for i := range docs {
		s, err := fromDocument(docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Close cierra la conexión.
func (r *SnapshotRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// snapshotDocument forma persistida; los importes van como Decimal128.
type snapshotDocument struct {
	ID             string                          `bson:"_id"`
	CompanyID      string                          `bson:"company_id"`
	TakenAt        time.Time                       `bson:"taken_at"`
	Counts         map[string]int                  `bson:"counts"`
	Amounts        map[string]primitive.Decimal128 `bson:"amounts"`
	OverdueCount   int                             `bson:"overdue_count"`
	OverdueAmount  primitive.Decimal128            `bson:"overdue_amount"`
	ConversionRate primitive.Decimal128            `bson:"conversion_rate"`
}

func toDocument(s *entity.PipelineStatsSnapshot) (snapshotDocument, error) {
	doc := snapshotDocument{
		ID:           s.ID,
		CompanyID:    s.CompanyID,
		TakenAt:      s.TakenAt.UTC(),
		Counts:       s.Counts,
		Amounts:      make(map[string]primitive.Decimal128, len(s.Amounts)),
		OverdueCount: s.OverdueCount,
	}
	var err error
	for k, v := range s.Amounts {
		if doc.Amounts[k], err = toDecimal128(v); err != nil {
			return snapshotDocument{}, fmt.Errorf("snapshot %s: importe %s: %w", s.ID, k, err)
		}
	}
	if doc.OverdueAmount, err = toDecimal128(s.OverdueAmount); err != nil {
		return snapshotDocument{}, fmt.Errorf("snapshot %s: vencido: %w", s.ID, err)
	}
	if doc.ConversionRate, err = toDecimal128(s.ConversionRate); err != nil {
		return snapshotDocument{}, fmt.Errorf("snapshot %s: conversión: %w", s.ID, err)
	}
	return doc, nil
}

func fromDocument(doc snapshotDocument) (*entity.PipelineStatsSnapshot, error) {
	s := &entity.PipelineStatsSnapshot{
		ID:           doc.ID,
		CompanyID:    doc.CompanyID,
		TakenAt:      doc.TakenAt,
		Counts:       doc.Counts,
		Amounts:      make(map[string]decimal.Decimal, len(doc.Amounts)),
		OverdueCount: doc.OverdueCount,
	}
	if s.Counts == nil {
		s.Counts = make(map[string]int)
	}
	var err error
	for k, v := range doc.Amounts {
		if s.Amounts[k], err = fromDecimal128(v); err != nil {
			return nil, fmt.Errorf("snapshot %s: importe %s: %w", doc.ID, k, err)
		}
	}
	if s.OverdueAmount, err = fromDecimal128(doc.OverdueAmount); err != nil {
		return nil, err
	}
	if s.ConversionRate, err = fromDecimal128(doc.ConversionRate); err != nil {
		return nil, err
	}
	return s, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	return primitive.ParseDecimal128(d.String())
}

func fromDecimal128(d primitive.Decimal128) (decimal.Decimal, error) {
	return decimal.NewFromString(d.String())
}
