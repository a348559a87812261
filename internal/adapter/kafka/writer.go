package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/couchcryptid/storm-data-windloss/internal/config"
	"github.com/couchcryptid/storm-data-windloss/internal/domain"
	"github.com/couchcryptid/storm-data-windloss/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes per-building loss records to a Kafka topic.
// It implements pipeline.LossSink.
type Writer struct {
	writer    messageWriter
	batchSize int
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewWriter creates a Kafka producer for the configured loss topic.
func NewWriter(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaLossTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return newWriter(w, cfg.BatchSize, logger, metrics)
}

func newWriter(w messageWriter, batchSize int, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Writer{writer: w, batchSize: batchSize, logger: logger, metrics: metrics}
}

// PublishLosses serializes a scenario's loss records and writes them in
// batches. Records are keyed by building ID so one building's records land
// on one partition across scenarios.
func (w *Writer) PublishLosses(ctx context.Context, scenario string, records []domain.LossRecord) error {
	for start := 0; start < len(records); start += w.batchSize {
		end := min(start+w.batchSize, len(records))
		msgs := make([]kafkago.Message, 0, end-start)
		for _, r := range records[start:end] {
			msg, err := serializeToMessage(scenario, r)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			w.metrics.PublishErrors.Inc()
			return fmt.Errorf("publish %s losses [%d:%d]: %w", scenario, start, end, err)
		}
		w.metrics.RecordsPublished.Add(float64(len(msgs)))
	}
	w.logger.Info("loss records published", "scenario", scenario, "records", len(records))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// lossMessage is the JSON value of a published loss record.
type lossMessage struct {
	Scenario      string  `json:"scenario"`
	BuildingID    string  `json:"building_id"`
	CountyFIPS    string  `json:"county_fips"`
	WBID          string  `json:"wbid"`
	TerrainID     int     `json:"terrain_id"`
	GustSpeedMPH  float64 `json:"gust_speed_mph"`
	BuildingLoss  float64 `json:"building_loss"`
	ContentsLoss  float64 `json:"contents_loss"`
	BuildingRatio float64 `json:"building_loss_ratio"`
	ContentsRatio float64 `json:"contents_loss_ratio"`
}

// serializeToMessage marshals a LossRecord into a Kafka message.
func serializeToMessage(scenario string, r domain.LossRecord) (kafkago.Message, error) {
	data, err := json.Marshal(lossMessage{
		Scenario:      scenario,
		BuildingID:    r.BuildingID,
		CountyFIPS:    r.CountyFIPS,
		WBID:          r.WBID,
		TerrainID:     r.TerrainID,
		GustSpeedMPH:  r.WindSpeed,
		BuildingLoss:  r.StructureLoss,
		ContentsLoss:  r.ContentsLoss,
		BuildingRatio: r.StructureRatio,
		ContentsRatio: r.ContentsRatio,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize loss record %s: %w", r.BuildingID, err)
	}
	return kafkago.Message{
		Key:   []byte(r.BuildingID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "scenario", Value: []byte(scenario)},
			{Key: "wbid", Value: []byte(r.WBID)},
			{Key: "terrain_id", Value: []byte(strconv.Itoa(r.TerrainID))},
		},
	}, nil
}
