package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGame() *Game {
	created := time.Date(2025, 3, 1, 18, 30, 0, 123_456_000, time.UTC)
	g := NewGameWithDefaults("uid-host", created)
	g.Name = "Friday Tambola"
	g.Description = "Weekly family game"
	g.CalledNumbers = []int{7, 42, 89}
	g.Players = append(g.Players, "uid-guest")
	g.WinnersByType[WinEarlyFive] = []string{"uid-guest"}
	g.PlayerStrikes["uid-guest"] = 1
	g.PlayerTicketCount["uid-host"] = 2
	g.TicketCount = 3
	g.TicketPrice = 2.5
	g.TicketCurrency = "₹"
	g.TicketLimit = 20
	g.PrizeDistribution = PrizeDistribution{
		PlatformChargePercentage:   10,
		FullHousePrizePercentage:   40,
		FourCornersPrizePercentage: 20,
		RowPrizePercentage:         20,
		EarlyFivePrizePercentage:   10,
	}
	return g
}

// assertSameGame compares timestamps with Equal and everything else structurally.
func assertSameGame(t *testing.T, want, got *Game) {
	t.Helper()
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "createdAt: want %v got %v", want.CreatedAt, got.CreatedAt)
	assert.True(t, want.StartTime.Equal(got.StartTime), "startTime: want %v got %v", want.StartTime, got.StartTime)

	w, g := *want, *got
	w.CreatedAt, g.CreatedAt = time.Time{}, time.Time{}
	w.StartTime, g.StartTime = time.Time{}, time.Time{}
	assert.Equal(t, w, g)
}

func TestToPortableUsesStoreTimestamps(t *testing.T) {
	g := sampleGame()
	g.CreatedAt = g.CreatedAt.Add(789 * time.Nanosecond)
	doc := g.ToPortable()

	assert.Equal(t, SchemaVersion, doc[FieldSchemaVersion])
	created, ok := doc[FieldCreatedAt].(pgtype.Timestamptz)
	require.True(t, ok, "createdAt should be a pgtype.Timestamptz, got %T", doc[FieldCreatedAt])
	assert.True(t, created.Valid)
	assert.Equal(t, 0, created.Time.Nanosecond()%1000, "sub-microsecond precision should be dropped")

	_, ok = doc[FieldStartTime].(pgtype.Timestamptz)
	assert.True(t, ok)

	pd, ok := doc[FieldPrizeDistribution].(Document)
	require.True(t, ok)
	assert.Equal(t, 40.0, pd[FieldFullHouse])

	expectKeys := []string{
		FieldSchemaVersion, FieldID, FieldHostID, FieldName, FieldDescription, FieldStatus,
		FieldCalledNumbers, FieldPlayers, FieldWinners, FieldCreatedAt, FieldWinnersByType,
		FieldPlayerStrikes, FieldPlayerTicketCount, FieldTicketCount, FieldTicketPrice,
		FieldTicketCurrency, FieldStartTime, FieldTicketLimit, FieldPrizeDistribution,
	}
	assert.Len(t, doc, len(expectKeys))
	for _, k := range expectKeys {
		assert.Contains(t, doc, k)
	}
}

func TestPortableRoundTrip(t *testing.T) {
	for name, g := range map[string]*Game{
		"defaults":  NewGameWithDefaults("uid-1", time.Date(2024, 12, 31, 23, 59, 59, 999_000_000, time.UTC)),
		"populated": sampleGame(),
	} {
		t.Run(name, func(t *testing.T) {
			got, err := GameFromPortable(g.ToPortable())
			require.NoError(t, err)
			assertSameGame(t, g, got)
		})
	}
}

func TestToPortableDoesNotAlias(t *testing.T) {
	g := sampleGame()
	doc := g.ToPortable()

	g.Players[0] = "mutated"
	g.WinnersByType[WinEarlyFive][0] = "mutated"
	g.PlayerStrikes["uid-guest"] = 99

	assert.Equal(t, "uid-host", doc[FieldPlayers].([]string)[0])
	assert.Equal(t, "uid-guest", doc[FieldWinnersByType].(map[string][]string)["earlyFive"][0])
	assert.Equal(t, 1, doc[FieldPlayerStrikes].(map[string]int)["uid-guest"])
}

func TestGameFromPortableJSONFixture(t *testing.T) {
	raw, err := os.ReadFile("testdata/game_v1.json")
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(raw, &doc))

	g, err := GameFromPortable(doc)
	require.NoError(t, err)

	assert.Equal(t, "0195531c-6a4e-7c2e-9d1f-3b7a2c9e4f10", g.ID)
	assert.Equal(t, StatusWaiting, g.Status)
	assert.Equal(t, []int{7, 42, 89}, g.CalledNumbers)
	assert.Equal(t, []string{"uid-host", "uid-guest"}, g.Players)
	assert.Equal(t, []string{"uid-guest"}, g.WinnersByType[WinEarlyFive])
	assert.Equal(t, map[string]int{"uid-host": 2, "uid-guest": 1}, g.PlayerTicketCount)
	assert.Equal(t, "₹", g.TicketCurrency)
	assert.Equal(t, 20, g.TicketLimit)
	assert.True(t, g.CreatedAt.Equal(time.Date(2025, 3, 1, 18, 30, 0, 123_000_000, time.UTC)))
	assert.True(t, g.StartTime.Equal(time.Date(2025, 3, 1, 20, 30, 0, 0, time.UTC)), "epoch millis start time, got %v", g.StartTime)
	assert.NoError(t, g.PrizeDistribution.Validate())
}

func TestGameFromPortableAcceptsUseNumber(t *testing.T) {
	raw, err := os.ReadFile("testdata/game_v1.json")
	require.NoError(t, err)

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc Document
	require.NoError(t, dec.Decode(&doc))

	g, err := GameFromPortable(doc)
	require.NoError(t, err)
	assert.Equal(t, 2.5, g.TicketPrice)
	assert.Equal(t, 3, g.TicketCount)
}

func TestGameFromPortableOptionalDefaults(t *testing.T) {
	doc := sampleGame().ToPortable()
	for _, k := range []string{FieldPlayerTicketCount, FieldTicketCount, FieldTicketPrice, FieldTicketCurrency, FieldSchemaVersion} {
		delete(doc, k)
	}
	delete(doc[FieldWinnersByType].(map[string][]string), "fullHouse")

	g, err := GameFromPortable(doc)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{}, g.PlayerTicketCount)
	assert.Equal(t, 0, g.TicketCount)
	assert.Equal(t, 0.0, g.TicketPrice)
	assert.Equal(t, "$", g.TicketCurrency)
	assert.Contains(t, g.WinnersByType, WinFullHouse)
	assert.Empty(t, g.WinnersByType[WinFullHouse])
}

func TestGameFromPortableRejectsMalformed(t *testing.T) {
	cases := map[string]struct {
		mutate func(Document)
		field  string
	}{
		"missing id":           {func(d Document) { delete(d, FieldID) }, FieldID},
		"empty host":           {func(d Document) { d[FieldHostID] = "" }, FieldHostID},
		"unknown status":       {func(d Document) { d[FieldStatus] = "finished" }, FieldStatus},
		"missing createdAt":    {func(d Document) { delete(d, FieldCreatedAt) }, FieldCreatedAt},
		"garbage createdAt":    {func(d Document) { d[FieldCreatedAt] = "yesterday" }, FieldCreatedAt},
		"players not a list":   {func(d Document) { d[FieldPlayers] = "uid-host" }, FieldPlayers},
		"fractional limit":     {func(d Document) { d[FieldTicketLimit] = 10.5 }, FieldTicketLimit},
		"called numbers mixed": {func(d Document) { d[FieldCalledNumbers] = []any{1.0, "two"} }, FieldCalledNumbers},
		"missing prizes":       {func(d Document) { delete(d, FieldPrizeDistribution) }, FieldPrizeDistribution},
		"prizes not an object": {func(d Document) { d[FieldPrizeDistribution] = []any{} }, FieldPrizeDistribution},
		"prize share missing": {func(d Document) {
			pd := d[FieldPrizeDistribution].(Document)
			delete(pd, FieldRow)
		}, FieldPrizeDistribution},
		"future schema":     {func(d Document) { d[FieldSchemaVersion] = SchemaVersion + 1 }, FieldSchemaVersion},
		"huge limit":        {func(d Document) { d[FieldTicketLimit] = 1e300 }, FieldTicketLimit},
		"infinite count":    {func(d Document) { d[FieldTicketCount] = math.Inf(1) }, FieldTicketCount},
		"NaN limit":         {func(d Document) { d[FieldTicketLimit] = math.NaN() }, FieldTicketLimit},
		"json number huge":  {func(d Document) { d[FieldTicketLimit] = json.Number("1e300") }, FieldTicketLimit},
		"json number frac":  {func(d Document) { d[FieldTicketLimit] = json.Number("10.5") }, FieldTicketLimit},
		"huge epoch millis": {func(d Document) { d[FieldStartTime] = 1e300 }, FieldStartTime},
		"unknown win type": {func(d Document) {
			d[FieldWinnersByType] = map[string]any{"earlyFive": []any{}, "bonusRow": []any{"uid-1"}}
		}, FieldWinnersByType},
		"unknown typed win type": {func(d Document) {
			d[FieldWinnersByType] = map[string][]string{"bonusRow": {"uid-1"}}
		}, FieldWinnersByType},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			doc := sampleGame().ToPortable()
			tc.mutate(doc)

			g, err := GameFromPortable(doc)
			require.Error(t, err)
			assert.Nil(t, g, "no partial record on failure")

			var dErr *DeserializationError
			require.True(t, errors.As(err, &dErr), "want DeserializationError, got %T", err)
			assert.Equal(t, tc.field, dErr.Field)
		})
	}
}

func TestToTimeVariants(t *testing.T) {
	want := time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC)
	local := want.In(time.FixedZone("IST", 5*3600+1800))

	for name, v := range map[string]any{
		"timestamptz":  pgtype.Timestamptz{Time: local, Valid: true},
		"*timestamptz": &pgtype.Timestamptz{Time: want, Valid: true},
		"time":         local,
		"rfc3339":      "2025-03-01T18:30:00Z",
		"epoch millis": float64(want.UnixMilli()),
		"json number":  json.Number("1740853800000"),
	} {
		t.Run(name, func(t *testing.T) {
			got, err := toTime(v)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %v", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	got, err := toTime(pgtype.Timestamptz{})
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = toTime(true)
	assert.Error(t, err)
}

func TestToIntBounds(t *testing.T) {
	for v, want := range map[any]int{
		json.Number("1e3"):   1000,
		json.Number("42"):    42,
		float64(-7):          -7,
		float32(12):          12,
		int64(math.MaxInt32): math.MaxInt32,
		float64(1 << 52):     1 << 52,
	} {
		got, err := toInt(v)
		require.NoError(t, err, "%v", v)
		assert.Equal(t, want, got)
	}

	for _, v := range []any{math.Inf(-1), 9.3e18, -9.3e18, json.Number("9223372036854775808"), "12"} {
		_, err := toInt(v)
		assert.ErrorIs(t, err, errWrongType, "%v", v)
	}
}
