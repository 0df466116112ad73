package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/couchcryptid/era5-sounding/internal/config"
	"github.com/couchcryptid/era5-sounding/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// batchSize bounds how many rows go into a single WriteMessages call.
const batchSize = 1000

// Writer produces sounding table rows to a Kafka topic.
// It implements pipeline.ProfileSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured profile topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaProfileTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes rows of one collection and writes them in table order.
// Rows of one profile share a key and therefore a partition.
func (w *Writer) Publish(ctx context.Context, collection string, rows []domain.ProfileRow) error {
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		msgs := make([]kafkago.Message, 0, end-start)
		for i := start; i < end; i++ {
			msg, err := serializeToMessage(collection, rows[i])
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("publish %s rows: %w", collection, err)
		}
	}
	w.logger.Info("profile rows published", "collection", collection, "rows", len(rows), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// profileKey identifies the profile a row belongs to.
func profileKey(collection string, row domain.ProfileRow) string {
	return collection + "/" + row.ValidTime.Time().UTC().Format(time.RFC3339) + "/" +
		strconv.FormatFloat(row.Latitude, 'f', 4, 64) + "," +
		strconv.FormatFloat(row.Longitude, 'f', 4, 64)
}

// nullableFloat encodes NaN as JSON null.
type nullableFloat float64

func (f nullableFloat) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(f)) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(f))
}

// profileMessage is the wire form of a ProfileRow.
type profileMessage struct {
	ValidTime     domain.Timestamp `json:"valid_time"`
	PressureLevel float64          `json:"pressure_level"`
	Latitude      float64          `json:"latitude"`
	Longitude     float64          `json:"longitude"`
	Temperature   nullableFloat    `json:"temperature"`
	GptHeight     nullableFloat    `json:"gpt_height"`
	UWind         nullableFloat    `json:"u_wind"`
	VWind         nullableFloat    `json:"v_wind"`
	SpHumidity    nullableFloat    `json:"sp_humidity"`
	Altitude      nullableFloat    `json:"altitude"`
	DewPoint      nullableFloat    `json:"dew_point"`
	WindSpeed     nullableFloat    `json:"wind_speed"`
	WindDirection nullableFloat    `json:"wind_direction"`
}

func newProfileMessage(row domain.ProfileRow) profileMessage {
	return profileMessage{
		ValidTime:     row.ValidTime,
		PressureLevel: row.PressureLevel,
		Latitude:      row.Latitude,
		Longitude:     row.Longitude,
		Temperature:   nullableFloat(row.Temperature),
		GptHeight:     nullableFloat(row.GptHeight),
		UWind:         nullableFloat(row.UWind),
		VWind:         nullableFloat(row.VWind),
		SpHumidity:    nullableFloat(row.SpHumidity),
		Altitude:      nullableFloat(row.Altitude),
		DewPoint:      nullableFloat(row.DewPoint),
		WindSpeed:     nullableFloat(row.WindSpeed),
		WindDirection: nullableFloat(row.WindDirection),
	}
}

// serializeToMessage marshals a ProfileRow into a Kafka message.
func serializeToMessage(collection string, row domain.ProfileRow) (kafkago.Message, error) {
	data, err := json.Marshal(newProfileMessage(row))
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize profile row: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(profileKey(collection, row)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "collection", Value: []byte(collection)},
			{Key: "pressure_level", Value: []byte(strconv.FormatFloat(row.PressureLevel, 'f', -1, 64))},
		},
	}, nil
}
