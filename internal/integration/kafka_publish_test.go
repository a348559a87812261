//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/storm-data-windloss/internal/adapter/kafka"
	"github.com/couchcryptid/storm-data-windloss/internal/config"
	"github.com/couchcryptid/storm-data-windloss/internal/domain"
	"github.com/couchcryptid/storm-data-windloss/internal/hazus"
	"github.com/couchcryptid/storm-data-windloss/internal/observability"
	"github.com/couchcryptid/storm-data-windloss/internal/pipeline"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("windloss-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

type published struct {
	Key     string
	Headers map[string]string
	Value   map[string]any
}

func readPublished(ctx context.Context, t *testing.T, broker, topic string, n int) []published {
	t.Helper()
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       topic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = reader.Close() })

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	out := make([]published, 0, n)
	for len(out) < n {
		msg, err := reader.ReadMessage(readCtx)
		require.NoError(t, err, "read loss topic")
		p := published{Key: string(msg.Key), Headers: map[string]string{}}
		for _, h := range msg.Headers {
			p.Headers[h.Key] = string(h.Value)
		}
		require.NoError(t, json.Unmarshal(msg.Value, &p.Value))
		out = append(out, p)
	}
	return out
}

// TestWriterPublishesLosses round-trips loss records through a real broker.
func TestWriterPublishesLosses(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, "test-losses")

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaLossTopic: "test-losses", BatchSize: 2}
	writer := kafka.NewWriter(cfg, discardLogger(), observability.NewMetricsForTesting())
	t.Cleanup(func() { _ = writer.Close() })

	records := []domain.LossRecord{
		{BuildingID: "501", CountyFIPS: "22071", WBID: "WSF1_1", TerrainID: 2, WindSpeed: 110, StructureLoss: 42000, ContentsLoss: 9000},
		{BuildingID: "502", CountyFIPS: "22051", WBID: "MSF1_3", TerrainID: 4, WindSpeed: 95, StructureLoss: 12000},
		{BuildingID: "503", CountyFIPS: "22051", WBID: "WSF2_2", TerrainID: 3, WindSpeed: 101, StructureLoss: 18000, ContentsLoss: 4000},
	}
	require.NoError(t, writer.PublishLosses(ctx, "ida_2021", records))

	got := readPublished(ctx, t, broker, "test-losses", len(records))
	for i, p := range got {
		assert.Equal(t, records[i].BuildingID, p.Key)
		assert.Equal(t, "ida_2021", p.Headers["scenario"])
		assert.Equal(t, records[i].WBID, p.Headers["wbid"])
		assert.Equal(t, records[i].CountyFIPS, p.Value["county_fips"])
		assert.InDelta(t, records[i].StructureLoss, p.Value["building_loss"], 1e-9)
	}
}

// TestPipelinePublishesScenarioLosses runs the loss step with Kafka as the sink.
func TestPipelinePublishesScenarioLosses(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, "test-pipeline-losses")

	root := t.TempDir()
	hazusDir := filepath.Join(root, "hazus")
	outDir := filepath.Join(root, "out")
	require.NoError(t, os.MkdirAll(hazusDir, 0o755))
	require.NoError(t, hazus.WriteWorkbook(filepath.Join(hazusDir, "Mapping.xlsx"), []hazus.Sheet{
		{Name: "huMappingSchemesByCountyFips", Rows: [][]any{{"CountyFIPS", "huBldgSchemeName"}, {22071, "LASCH"}}},
		{Name: "huGbsOccMapping", Rows: [][]any{{"huOccMapSchemeName", "Occupancy", "WSF1"}, {"LASCH", "RES1", 100}}},
		{Name: "huListofBldgChar", Rows: [][]any{{"BldgCharID", "CharType", "BldgChar"}, {1, "Shutters", "shtys"}, {2, "Shutters", "shtno"}}},
		{Name: "huBldgMapping", Rows: [][]any{{"huBldgSchemeName", "sbtName", "BLDGCHARID", "PercentDist"}, {"LASCH", "WSF1", 1, 50}, {"LASCH", "WSF1", 2, 50}}},
		{Name: "huListOfWindBldgTypes", Rows: [][]any{{"wbID", "sbtName", "charDescription"}, {1, "WSF1", "shtys"}, {2, "WSF1", "shtno"}}},
	}))
	var damage strings.Builder
	damage.WriteString("wbID,TERRAINID,DamLossDescID,WS50,WS150\n")
	for wb := 1; wb <= 2; wb++ {
		for terrain := 1; terrain <= 5; terrain++ {
			fmt.Fprintf(&damage, "%d,%d,5,0,1\n%d,%d,6,0,0.5\n", wb, terrain, wb, terrain)
		}
	}
	require.NoError(t, os.WriteFile(filepath.Join(hazusDir, "huDamLossFunc.csv"), []byte(damage.String()), 0o600))

	inventory := filepath.Join(root, "nsi.csv")
	windDir := filepath.Join(root, "wind")
	require.NoError(t, os.MkdirAll(windDir, 0o755))
	var nsi strings.Builder
	nsi.WriteString("fd_id,cbfips,occtype,bldgtype,x,y,nsi_val.SURFACEROU,val_struct,val_cont\n")
	for i := range 25 {
		fmt.Fprintf(&nsi, "%d,220710017001000,RES1,W,%.3f,29.9,0.2,150000,75000\n", 1000+i, -90.2+float64(i)*0.01)
	}
	require.NoError(t, os.WriteFile(inventory, []byte(nsi.String()), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(windDir, "ida_2021.csv"),
		[]byte("lon,lat,wind\n269.8,29.9,35\n270.0,29.9,42\n"), 0o600))

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaLossTopic: "test-pipeline-losses", BatchSize: 10}
	metrics := observability.NewMetricsForTesting()
	writer := kafka.NewWriter(cfg, discardLogger(), metrics)
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(pipeline.Options{
		Scenarios: []string{"ida_2021"},
		Steps:     []int{1, 2, 3},
		WindDir:   windDir,
		Buildings: inventory,
		HazusDir:  hazusDir,
		OutputDir: outDir,
		Seed:      121,
		Workers:   4,
	}, config.DefaultMethodology(), writer, clockwork.NewRealClock(), discardLogger(), metrics)

	manifest, err := p.Run(ctx)
	require.NoError(t, err)
	require.Len(t, manifest.Results, 1)
	assert.Equal(t, 25, manifest.Results[0].Total.Buildings)

	got := readPublished(ctx, t, broker, "test-pipeline-losses", 25)
	var total float64
	for _, msg := range got {
		assert.Equal(t, "ida_2021", msg.Headers["scenario"])
		total += msg.Value["building_loss"].(float64)
	}
	assert.InDelta(t, manifest.Results[0].Total.StructureLoss, total, 0.01)
}
