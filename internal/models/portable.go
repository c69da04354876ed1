// internal/models/portable.go
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Document is the flat, primitive-typed form of a record handed to and from the store.
type Document map[string]any

// SchemaVersion is written into every Document. Readers accept any version up to this
// one; newer fields must be additive so that older documents still decode.
const SchemaVersion = 1

// Document keys. These are the column names of the "games" collection and must not
// be renamed without bumping SchemaVersion.
const (
	FieldSchemaVersion     = "schemaVersion"
	FieldID                = "id"
	FieldHostID            = "hostId"
	FieldName              = "name"
	FieldDescription       = "description"
	FieldStatus            = "status"
	FieldCalledNumbers     = "calledNumbers"
	FieldPlayers           = "players"
	FieldWinners           = "winners"
	FieldCreatedAt         = "createdAt"
	FieldWinnersByType     = "winnersByType"
	FieldPlayerStrikes     = "playerStrikes"
	FieldPlayerTicketCount = "playerTicketCount"
	FieldTicketCount       = "ticketCount"
	FieldTicketPrice       = "ticketPrice"
	FieldTicketCurrency    = "ticketCurrency"
	FieldStartTime         = "startTime"
	FieldTicketLimit       = "ticketLimit"
	FieldPrizeDistribution = "prizeDistribution"

	FieldPlatformCharge = "platformChargePercentage"
	FieldFullHouse      = "fullHousePrizePercentage"
	FieldFourCorners    = "fourCornersPrizePercentage"
	FieldRow            = "rowPrizePercentage"
	FieldEarlyFive      = "earlyFivePrizePercentage"
)

// TimestampPrecision is the resolution kept by the store. Anything finer is dropped
// by ToPortable.
const TimestampPrecision = time.Microsecond

// DeserializationError reports a stored record that could not be turned back into a Game.
type DeserializationError struct {
	ID    string
	Field string
	Err   error
}

func (e *DeserializationError) Error() string {
	id := e.ID
	if id == "" {
		id = "<unknown>"
	}
	return fmt.Sprintf("malformed game record %s: field %q: %v", id, e.Field, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

var (
	errMissing   = errors.New("missing required value")
	errWrongType = errors.New("unexpected value type")
)

// ToPortable converts the game to its store representation. Timestamps become
// pgtype.Timestamptz truncated to TimestampPrecision.
func (g *Game) ToPortable() Document {
	winners := make(map[string][]string, len(g.WinnersByType))
	for wt, ids := range g.WinnersByType {
		winners[string(wt)] = cloneStrings(ids)
	}

	return Document{
		FieldSchemaVersion:     SchemaVersion,
		FieldID:                g.ID,
		FieldHostID:            g.HostID,
		FieldName:              g.Name,
		FieldDescription:       g.Description,
		FieldStatus:            string(g.Status),
		FieldCalledNumbers:     append([]int{}, g.CalledNumbers...),
		FieldPlayers:           cloneStrings(g.Players),
		FieldWinners:           cloneStrings(g.Winners),
		FieldCreatedAt:         toTimestamptz(g.CreatedAt),
		FieldWinnersByType:     winners,
		FieldPlayerStrikes:     cloneCounts(g.PlayerStrikes),
		FieldPlayerTicketCount: cloneCounts(g.PlayerTicketCount),
		FieldTicketCount:       g.TicketCount,
		FieldTicketPrice:       g.TicketPrice,
		FieldTicketCurrency:    g.TicketCurrency,
		FieldStartTime:         toTimestamptz(g.StartTime),
		FieldTicketLimit:       g.TicketLimit,
		FieldPrizeDistribution: g.PrizeDistribution.ToPortable(),
	}
}

// ToPortable converts the distribution to its nested store representation.
func (p PrizeDistribution) ToPortable() Document {
	return Document{
		FieldPlatformCharge: p.PlatformChargePercentage,
		FieldFullHouse:      p.FullHousePrizePercentage,
		FieldFourCorners:    p.FourCornersPrizePercentage,
		FieldRow:            p.RowPrizePercentage,
		FieldEarlyFive:      p.EarlyFivePrizePercentage,
	}
}

// GameFromPortable rebuilds a Game from a stored Document. It tolerates the value
// shapes produced by the store driver and by JSON decoding (float64 numbers, []any
// slices, RFC3339 or epoch-millisecond timestamps).
func GameFromPortable(doc Document) (*Game, error) {
	d := decoder{doc: doc}
	d.id, _ = doc[FieldID].(string)

	if v, ok := doc[FieldSchemaVersion]; ok && v != nil {
		ver, err := toInt(v)
		if err != nil {
			return nil, d.fail(FieldSchemaVersion, err)
		}
		if ver > SchemaVersion {
			return nil, d.fail(FieldSchemaVersion, fmt.Errorf("version %d is newer than supported %d", ver, SchemaVersion))
		}
	}

	g := &Game{
		ID:             d.requiredString(FieldID),
		HostID:         d.requiredString(FieldHostID),
		Name:           d.optionalString(FieldName, ""),
		Description:    d.optionalString(FieldDescription, ""),
		CalledNumbers:  d.ints(FieldCalledNumbers),
		Players:        d.strings(FieldPlayers),
		Winners:        d.strings(FieldWinners),
		CreatedAt:      d.requiredTime(FieldCreatedAt),
		TicketCount:    d.optionalInt(FieldTicketCount, 0),
		TicketPrice:    d.optionalFloat(FieldTicketPrice, 0),
		TicketCurrency: d.optionalString(FieldTicketCurrency, "$"),
		StartTime:      d.optionalTime(FieldStartTime),
		TicketLimit:    d.optionalInt(FieldTicketLimit, 0),
	}
	g.WinnersByType = d.winnersByType(FieldWinnersByType)
	g.PlayerStrikes = d.counts(FieldPlayerStrikes)
	g.PlayerTicketCount = d.counts(FieldPlayerTicketCount)

	if d.err == nil {
		st, err := ParseGameStatus(d.requiredString(FieldStatus))
		if err != nil && d.err == nil {
			d.err = d.fail(FieldStatus, err)
		}
		g.Status = st
	}

	if d.err == nil {
		raw, ok := doc[FieldPrizeDistribution]
		if !ok || raw == nil {
			d.err = d.fail(FieldPrizeDistribution, errMissing)
		} else {
			m, err := toMap(raw)
			if err != nil {
				d.err = d.fail(FieldPrizeDistribution, err)
			} else if pd, err := PrizeDistributionFromPortable(Document(m)); err != nil {
				d.err = d.fail(FieldPrizeDistribution, err)
			} else {
				g.PrizeDistribution = pd
			}
		}
	}

	if d.err != nil {
		return nil, d.err
	}
	return g, nil
}

// PrizeDistributionFromPortable is the inverse of PrizeDistribution.ToPortable.
func PrizeDistributionFromPortable(doc Document) (PrizeDistribution, error) {
	var p PrizeDistribution
	targets := []struct {
		key string
		dst *float64
	}{
		{FieldPlatformCharge, &p.PlatformChargePercentage},
		{FieldFullHouse, &p.FullHousePrizePercentage},
		{FieldFourCorners, &p.FourCornersPrizePercentage},
		{FieldRow, &p.RowPrizePercentage},
		{FieldEarlyFive, &p.EarlyFivePrizePercentage},
	}
	for _, t := range targets {
		v, ok := doc[t.key]
		if !ok || v == nil {
			return PrizeDistribution{}, fmt.Errorf("%s: %w", t.key, errMissing)
		}
		f, err := toFloat(v)
		if err != nil {
			return PrizeDistribution{}, fmt.Errorf("%s: %w", t.key, err)
		}
		*t.dst = f
	}
	return p, nil
}

// decoder keeps the first error seen so field extraction reads top to bottom.
type decoder struct {
	doc Document
	id  string
	err error
}

func (d *decoder) fail(field string, err error) error {
	return &DeserializationError{ID: d.id, Field: field, Err: err}
}

func (d *decoder) record(field string, err error) {
	if d.err == nil {
		d.err = d.fail(field, err)
	}
}

func (d *decoder) requiredString(key string) string {
	v, ok := d.doc[key]
	if !ok || v == nil {
		d.record(key, errMissing)
		return ""
	}
	s, ok := v.(string)
	if !ok || s == "" {
		d.record(key, fmt.Errorf("%w: want non-empty string, got %T", errWrongType, v))
		return ""
	}
	return s
}

func (d *decoder) optionalString(key, def string) string {
	v, ok := d.doc[key]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		d.record(key, fmt.Errorf("%w: want string, got %T", errWrongType, v))
		return def
	}
	return s
}

func (d *decoder) optionalInt(key string, def int) int {
	v, ok := d.doc[key]
	if !ok || v == nil {
		return def
	}
	n, err := toInt(v)
	if err != nil {
		d.record(key, err)
		return def
	}
	return n
}

func (d *decoder) optionalFloat(key string, def float64) float64 {
	v, ok := d.doc[key]
	if !ok || v == nil {
		return def
	}
	f, err := toFloat(v)
	if err != nil {
		d.record(key, err)
		return def
	}
	return f
}

func (d *decoder) requiredTime(key string) time.Time {
	v, ok := d.doc[key]
	if !ok || v == nil {
		d.record(key, errMissing)
		return time.Time{}
	}
	t, err := toTime(v)
	if err != nil {
		d.record(key, err)
		return time.Time{}
	}
	if t.IsZero() {
		d.record(key, errMissing)
	}
	return t
}

func (d *decoder) optionalTime(key string) time.Time {
	v, ok := d.doc[key]
	if !ok || v == nil {
		return time.Time{}
	}
	t, err := toTime(v)
	if err != nil {
		d.record(key, err)
	}
	return t
}

func (d *decoder) ints(key string) []int {
	out := []int{}
	switch v := d.doc[key].(type) {
	case nil:
	case []int:
		out = append(out, v...)
	case []int64:
		for _, n := range v {
			out = append(out, int(n))
		}
	case []any:
		for _, item := range v {
			n, err := toInt(item)
			if err != nil {
				d.record(key, err)
				return []int{}
			}
			out = append(out, n)
		}
	default:
		d.record(key, fmt.Errorf("%w: want number list, got %T", errWrongType, v))
	}
	return out
}

func (d *decoder) strings(key string) []string {
	out, err := toStrings(d.doc[key])
	if err != nil {
		d.record(key, err)
		return []string{}
	}
	return out
}

func (d *decoder) counts(key string) map[string]int {
	out := map[string]int{}
	switch v := d.doc[key].(type) {
	case nil:
	case map[string]int:
		for k, n := range v {
			out[k] = n
		}
	case map[string]any:
		for k, item := range v {
			n, err := toInt(item)
			if err != nil {
				d.record(key, fmt.Errorf("%s: %w", k, err))
				return map[string]int{}
			}
			out[k] = n
		}
	default:
		d.record(key, fmt.Errorf("%w: want counter map, got %T", errWrongType, v))
	}
	return out
}

// winnersByType always returns every category, filling absent ones with empty lists.
func (d *decoder) winnersByType(key string) map[WinType][]string {
	out := emptyWinners()
	var raw map[string]any
	switch v := d.doc[key].(type) {
	case nil:
		return out
	case map[WinType][]string:
		for wt, ids := range v {
			if !wt.Valid() {
				d.record(key, fmt.Errorf("%w: unknown win type %q", errWrongType, wt))
				return emptyWinners()
			}
			out[wt] = cloneStrings(ids)
		}
		return out
	case map[string][]string:
		for wt, ids := range v {
			if !WinType(wt).Valid() {
				d.record(key, fmt.Errorf("%w: unknown win type %q", errWrongType, wt))
				return emptyWinners()
			}
			out[WinType(wt)] = cloneStrings(ids)
		}
		return out
	case map[string]any:
		raw = v
	case Document:
		raw = v
	default:
		d.record(key, fmt.Errorf("%w: want winner map, got %T", errWrongType, v))
		return out
	}
	for wt, item := range raw {
		if !WinType(wt).Valid() {
			d.record(key, fmt.Errorf("%w: unknown win type %q", errWrongType, wt))
			return emptyWinners()
		}
		ids, err := toStrings(item)
		if err != nil {
			d.record(key, fmt.Errorf("%s: %w", wt, err))
			return emptyWinners()
		}
		out[WinType(wt)] = ids
	}
	return out
}

func toTimestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t.UTC().Truncate(TimestampPrecision), Valid: true}
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case pgtype.Timestamptz:
		if !t.Valid {
			return time.Time{}, nil
		}
		return t.Time.UTC(), nil
	case *pgtype.Timestamptz:
		if t == nil || !t.Valid {
			return time.Time{}, nil
		}
		return t.Time.UTC(), nil
	case time.Time:
		return t.UTC(), nil
	case *time.Time:
		if t == nil {
			return time.Time{}, nil
		}
		return t.UTC(), nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, err
		}
		return parsed.UTC(), nil
	}

	// bare numbers are epoch milliseconds
	ms, err := toInt(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: want timestamp, got %T", errWrongType, v)
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	}
	return 0, fmt.Errorf("%w: want number, got %T", errWrongType, v)
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case json.Number:
		if i, err := n.Int64(); err == nil && i >= math.MinInt && i <= math.MaxInt {
			return int(i), nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: want integer, got %q", errWrongType, n.String())
		}
		return floatToInt(f)
	case float32, float64:
		f, _ := toFloat(n)
		return floatToInt(f)
	}
	return 0, fmt.Errorf("%w: want integer, got %T", errWrongType, v)
}

// floatToInt accepts only whole values that fit in an int.
func floatToInt(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) ||
		f < math.MinInt || f >= math.MaxInt {
		return 0, fmt.Errorf("%w: want integer, got %v", errWrongType, f)
	}
	return int(f), nil
}

func toStrings(v any) ([]string, error) {
	switch s := v.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return cloneStrings(s), nil
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: want string, got %T", errWrongType, item)
			}
			out = append(out, str)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: want string list, got %T", errWrongType, v)
}

func toMap(v any) (map[string]any, error) {
	switch m := v.(type) {
	case Document:
		return m, nil
	case map[string]any:
		return m, nil
	}
	return nil, fmt.Errorf("%w: want object, got %T", errWrongType, v)
}

func cloneStrings(s []string) []string {
	return append([]string{}, s...)
}

func cloneCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
