package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/enplerp/backoffice/pkg/logger"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

const eventMeasurement = "backup_event"

// EventData is a generic event structure that doesn't depend on internal/events
type EventData struct {
	ID        string
	Type      string
	Timestamp time.Time
	Source    string
	Archive   string
	UserID    string
	Data      map[string]interface{}
}

// EventFilters for querying events
type EventFilters struct {
	Types     []string
	Archive   string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

// InfluxDBClient writes backup events as time-series points
type InfluxDBClient struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	queryAPI api.QueryAPI
	org      string
	bucket   string
}

// InfluxDBConfig holds InfluxDB connection configuration
type InfluxDBConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// NewInfluxDBClient creates a new InfluxDB client and checks its health
func NewInfluxDBClient(config InfluxDBConfig) (*InfluxDBClient, error) {
	client := influxdb2.NewClient(config.URL, config.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}

	if health.Status != "pass" {
		client.Close()
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return nil, fmt.Errorf("InfluxDB health check failed: %s", msg)
	}

	logger.Info("InfluxDB connection established", map[string]interface{}{
		"url":    config.URL,
		"org":    config.Org,
		"bucket": config.Bucket,
	})

	writeAPI := client.WriteAPI(config.Org, config.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			logger.Warn("InfluxDB write failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	return &InfluxDBClient{
		client:   client,
		writeAPI: writeAPI,
		queryAPI: client.QueryAPI(config.Org),
		org:      config.Org,
		bucket:   config.Bucket,
	}, nil
}

// WriteEvent writes an event as a point (non-blocking, batched by the client)
func (c *InfluxDBClient) WriteEvent(event EventData) error {
	fields := make(map[string]interface{}, len(event.Data)+1)
	for k, v := range event.Data {
		fields[k] = v
	}
	// A point needs at least one field
	fields["count"] = 1

	p := influxdb2.NewPoint(
		eventMeasurement,
		map[string]string{
			"event_id":   event.ID,
			"event_type": event.Type,
			"source":     event.Source,
			"archive":    event.Archive,
			"user_id":    event.UserID,
		},
		fields,
		event.Timestamp,
	)

	c.writeAPI.WritePoint(p)
	return nil
}

// QueryEvents returns events matching filters, newest first. Fields of one
// event arrive as separate records and are folded back together by event_id.
func (c *InfluxDBClient) QueryEvents(ctx context.Context, filters EventFilters) ([]EventData, error) {
	result, err := c.queryAPI.Query(ctx, buildFluxQuery(c.bucket, filters))
	if err != nil {
		return nil, fmt.Errorf("failed to query InfluxDB: %w", err)
	}

	byID := make(map[string]*EventData)
	var order []string
	for result.Next() {
		record := result.Record()
		id := tagValue(record.ValueByKey("event_id"))

		event, ok := byID[id]
		if !ok {
			event = &EventData{
				ID:        id,
				Type:      tagValue(record.ValueByKey("event_type")),
				Timestamp: record.Time(),
				Source:    tagValue(record.ValueByKey("source")),
				Archive:   tagValue(record.ValueByKey("archive")),
				UserID:    tagValue(record.ValueByKey("user_id")),
				Data:      make(map[string]interface{}),
			}
			byID[id] = event
			order = append(order, id)
		}
		if field := record.Field(); field != "count" {
			event.Data[field] = record.Value()
		}
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("query parsing failed: %w", result.Err())
	}

	events := make([]EventData, 0, len(order))
	for _, id := range order {
		events = append(events, *byID[id])
		if filters.Limit > 0 && len(events) >= filters.Limit {
			break
		}
	}
	return events, nil
}

func tagValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

// buildFluxQuery builds a Flux query from filters. String values are quoted
// with strconv.Quote so they cannot break out of the literal.
func buildFluxQuery(bucket string, filters EventFilters) string {
	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %s)", strconv.Quote(bucket))

	if !filters.StartTime.IsZero() {
		fmt.Fprintf(&b, "\n  |> range(start: %s", filters.StartTime.UTC().Format(time.RFC3339))
		if !filters.EndTime.IsZero() {
			fmt.Fprintf(&b, ", stop: %s", filters.EndTime.UTC().Format(time.RFC3339))
		}
		b.WriteString(")")
	} else {
		b.WriteString("\n  |> range(start: -30d)")
	}

	fmt.Fprintf(&b, "\n  |> filter(fn: (r) => r._measurement == %s)", strconv.Quote(eventMeasurement))

	if len(filters.Types) > 0 {
		clauses := make([]string, len(filters.Types))
		for i, t := range filters.Types {
			clauses[i] = "r.event_type == " + strconv.Quote(t)
		}
		fmt.Fprintf(&b, "\n  |> filter(fn: (r) => %s)", strings.Join(clauses, " or "))
	}

	if filters.Archive != "" {
		fmt.Fprintf(&b, "\n  |> filter(fn: (r) => r.archive == %s)", strconv.Quote(filters.Archive))
	}

	b.WriteString("\n  |> group()")
	b.WriteString("\n  |> sort(columns: [\"_time\"], desc: true)")

	return b.String()
}

// Close flushes pending writes and closes the client
func (c *InfluxDBClient) Close() {
	c.writeAPI.Flush()
	c.client.Close()
	logger.Info("InfluxDB client closed", nil)
}
