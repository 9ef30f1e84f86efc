package morph

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PrimitiveKind discriminates the scalar payload carried by a Primitive.
type PrimitiveKind int

const (
	KindUnit PrimitiveKind = iota
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindChar
	KindString
	KindBigInt
	KindBigDecimal
	KindInstant
	KindDuration
	KindLocalDate
	KindLocalDateTime
	KindLocalTime
	KindMonth
	KindMonthDay
	KindYear
	KindYearMonth
	KindPeriod
	KindDayOfWeek
	KindZoneID
	KindZoneOffset
	KindOffsetDateTime
	KindOffsetTime
	KindZonedDateTime
	KindCurrency
	KindUUID
)

var primitiveKindNames = map[PrimitiveKind]string{
	KindUnit:           "unit",
	KindBool:           "bool",
	KindInt8:           "int8",
	KindInt16:          "int16",
	KindInt32:          "int32",
	KindInt64:          "int64",
	KindFloat32:        "float32",
	KindFloat64:        "float64",
	KindChar:           "char",
	KindString:         "string",
	KindBigInt:         "bigint",
	KindBigDecimal:     "bigdecimal",
	KindInstant:        "instant",
	KindDuration:       "duration",
	KindLocalDate:      "localDate",
	KindLocalDateTime:  "localDateTime",
	KindLocalTime:      "localTime",
	KindMonth:          "month",
	KindMonthDay:       "monthDay",
	KindYear:           "year",
	KindYearMonth:      "yearMonth",
	KindPeriod:         "period",
	KindDayOfWeek:      "dayOfWeek",
	KindZoneID:         "zoneId",
	KindZoneOffset:     "zoneOffset",
	KindOffsetDateTime: "offsetDateTime",
	KindOffsetTime:     "offsetTime",
	KindZonedDateTime:  "zonedDateTime",
	KindCurrency:       "currency",
	KindUUID:           "uuid",
}

var primitiveKindsByName = func() map[string]PrimitiveKind {
	m := make(map[string]PrimitiveKind, len(primitiveKindNames))
	for k, n := range primitiveKindNames {
		m[n] = k
	}
	return m
}()

// String returns the canonical lexical name of the kind. These names are the
// currency of the path syntax (`#int32`), the Convert expression, and the
// structural search patterns.
func (k PrimitiveKind) String() string {
	if n, ok := primitiveKindNames[k]; ok {
		return n
	}
	return "invalid"
}

// ParsePrimitiveKind resolves a lexical kind name.
func ParsePrimitiveKind(name string) (PrimitiveKind, bool) {
	k, ok := primitiveKindsByName[name]
	return k, ok
}

// Period is a calendar-based amount of time, the date-walking counterpart of
// time.Duration.
type Period struct {
	Years  int
	Months int
	Days   int
}

// IsZero reports whether the period moves no time at all.
func (p Period) IsZero() bool {
	return p.Years == 0 && p.Months == 0 && p.Days == 0
}

// Add sums two periods component-wise.
func (p Period) Add(o Period) Period {
	return Period{Years: p.Years + o.Years, Months: p.Months + o.Months, Days: p.Days + o.Days}
}

// Negate flips the sign of every component.
func (p Period) Negate() Period {
	return Period{Years: -p.Years, Months: -p.Months, Days: -p.Days}
}

// String renders the ISO-8601 form (P1Y2M3D, P0D for zero).
func (p Period) String() string {
	if p.IsZero() {
		return "P0D"
	}
	s := "P"
	if p.Years != 0 {
		s += strconv.Itoa(p.Years) + "Y"
	}
	if p.Months != 0 {
		s += strconv.Itoa(p.Months) + "M"
	}
	if p.Days != 0 {
		s += strconv.Itoa(p.Days) + "D"
	}
	return s
}

// Primitive is a scalar dynamic value. The Kind discriminant selects which
// payload field is meaningful; the rest stay at their zero values. Aux is a
// secondary integer for the two-component calendar kinds (monthDay stores
// month in Int / day in Aux, yearMonth stores year in Int / month in Aux).
type Primitive struct {
	Kind PrimitiveKind
	Bool bool
	Int  int64
	Aux  int64
	Flt  float64
	Str  string
	Big  *big.Int
	Dec  decimal.Decimal
	Time time.Time
	Dur  time.Duration
	Per  Period
	UUID uuid.UUID
}

func (p *Primitive) isDynamicValue() {}

// ValueKind implements DynamicValue.
func (p *Primitive) ValueKind() ValueKind { return ValuePrimitive }

// Unit returns the unit primitive.
func Unit() *Primitive { return &Primitive{Kind: KindUnit} }

// Bool wraps a boolean.
func Bool(b bool) *Primitive { return &Primitive{Kind: KindBool, Bool: b} }

// Int8 wraps an 8-bit integer.
func Int8(i int8) *Primitive { return &Primitive{Kind: KindInt8, Int: int64(i)} }

// Int16 wraps a 16-bit integer.
func Int16(i int16) *Primitive { return &Primitive{Kind: KindInt16, Int: int64(i)} }

// Int32 wraps a 32-bit integer.
func Int32(i int32) *Primitive { return &Primitive{Kind: KindInt32, Int: int64(i)} }

// Int64 wraps a 64-bit integer.
func Int64(i int64) *Primitive { return &Primitive{Kind: KindInt64, Int: i} }

// Float32 wraps a 32-bit float.
func Float32(f float32) *Primitive { return &Primitive{Kind: KindFloat32, Flt: float64(f)} }

// Float64 wraps a 64-bit float.
func Float64(f float64) *Primitive { return &Primitive{Kind: KindFloat64, Flt: f} }

// Char wraps a single rune.
func Char(r rune) *Primitive { return &Primitive{Kind: KindChar, Int: int64(r)} }

// String wraps a string.
func String(s string) *Primitive { return &Primitive{Kind: KindString, Str: s} }

// BigInt wraps an arbitrary-precision integer. The argument is copied so the
// value stays immutable.
func BigInt(i *big.Int) *Primitive {
	return &Primitive{Kind: KindBigInt, Big: new(big.Int).Set(i)}
}

// BigDecimal wraps an arbitrary-precision decimal.
func BigDecimal(d decimal.Decimal) *Primitive { return &Primitive{Kind: KindBigDecimal, Dec: d} }

// Instant wraps a point on the UTC timeline.
func Instant(t time.Time) *Primitive { return &Primitive{Kind: KindInstant, Time: t.UTC()} }

// Duration wraps an elapsed time.
func Duration(d time.Duration) *Primitive { return &Primitive{Kind: KindDuration, Dur: d} }

// LocalDate wraps a calendar date without zone.
func LocalDate(year int, month time.Month, day int) *Primitive {
	return &Primitive{Kind: KindLocalDate, Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// LocalDateTime wraps a date-time without zone; any location on t is discarded.
func LocalDateTime(t time.Time) *Primitive {
	return &Primitive{Kind: KindLocalDateTime, Time: time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)}
}

// LocalTime wraps a time of day.
func LocalTime(hour, min, sec, nsec int) *Primitive {
	return &Primitive{Kind: KindLocalTime, Time: time.Date(1, time.January, 1, hour, min, sec, nsec, time.UTC)}
}

// Month wraps a calendar month (1..12).
func Month(m time.Month) *Primitive { return &Primitive{Kind: KindMonth, Int: int64(m)} }

// MonthDay wraps a recurring month-day.
func MonthDay(m time.Month, day int) *Primitive {
	return &Primitive{Kind: KindMonthDay, Int: int64(m), Aux: int64(day)}
}

// Year wraps a calendar year.
func Year(y int) *Primitive { return &Primitive{Kind: KindYear, Int: int64(y)} }

// YearMonth wraps a year-month.
func YearMonth(y int, m time.Month) *Primitive {
	return &Primitive{Kind: KindYearMonth, Int: int64(y), Aux: int64(m)}
}

// NewPeriod wraps a calendar period.
func NewPeriod(years, months, days int) *Primitive {
	return &Primitive{Kind: KindPeriod, Per: Period{Years: years, Months: months, Days: days}}
}

// DayOfWeek wraps a weekday (time.Sunday..time.Saturday).
func DayOfWeek(d time.Weekday) *Primitive { return &Primitive{Kind: KindDayOfWeek, Int: int64(d)} }

// ZoneID wraps an IANA zone name.
func ZoneID(name string) *Primitive { return &Primitive{Kind: KindZoneID, Str: name} }

// ZoneOffset wraps a fixed offset in seconds east of UTC.
func ZoneOffset(seconds int) *Primitive { return &Primitive{Kind: KindZoneOffset, Int: int64(seconds)} }

// OffsetDateTime wraps a date-time with a fixed offset.
func OffsetDateTime(t time.Time) *Primitive { return &Primitive{Kind: KindOffsetDateTime, Time: t} }

// OffsetTime wraps a time of day with a fixed offset.
func OffsetTime(t time.Time) *Primitive { return &Primitive{Kind: KindOffsetTime, Time: t} }

// ZonedDateTime wraps a date-time in a named zone.
func ZonedDateTime(t time.Time) *Primitive { return &Primitive{Kind: KindZonedDateTime, Time: t} }

// Currency wraps an ISO-4217 currency code.
func Currency(code string) *Primitive { return &Primitive{Kind: KindCurrency, Str: code} }

// UUIDValue wraps a UUID.
func UUIDValue(u uuid.UUID) *Primitive { return &Primitive{Kind: KindUUID, UUID: u} }

// EqualPrimitive compares two primitives structurally. Floats compare with
// ordinary Go ==, so NaN != NaN and 0 == -0.
func (p *Primitive) EqualPrimitive(o *Primitive) bool {
	if p.Kind != o.Kind {
		return false
	}
	switch p.Kind {
	case KindUnit:
		return true
	case KindBool:
		return p.Bool == o.Bool
	case KindInt8, KindInt16, KindInt32, KindInt64, KindChar, KindMonth, KindYear, KindDayOfWeek, KindZoneOffset:
		return p.Int == o.Int
	case KindMonthDay, KindYearMonth:
		return p.Int == o.Int && p.Aux == o.Aux
	case KindFloat32, KindFloat64:
		return p.Flt == o.Flt
	case KindString, KindZoneID, KindCurrency:
		return p.Str == o.Str
	case KindBigInt:
		return p.Big.Cmp(o.Big) == 0
	case KindBigDecimal:
		return p.Dec.Equal(o.Dec)
	case KindInstant, KindLocalDate, KindLocalDateTime, KindLocalTime, KindOffsetDateTime, KindOffsetTime, KindZonedDateTime:
		return p.Time.Equal(o.Time)
	case KindDuration:
		return p.Dur == o.Dur
	case KindPeriod:
		return p.Per == o.Per
	case KindUUID:
		return p.UUID == o.UUID
	}
	return false
}

// Text renders the canonical string form used by Concat and the debug
// renderer. It is deterministic but not a wire format.
func (p *Primitive) Text() string {
	switch p.Kind {
	case KindUnit:
		return ""
	case KindBool:
		return strconv.FormatBool(p.Bool)
	case KindInt8, KindInt16, KindInt32, KindInt64, KindYear:
		return strconv.FormatInt(p.Int, 10)
	case KindFloat32:
		return strconv.FormatFloat(p.Flt, 'g', -1, 32)
	case KindFloat64:
		return strconv.FormatFloat(p.Flt, 'g', -1, 64)
	case KindChar:
		return string(rune(p.Int))
	case KindString, KindZoneID, KindCurrency:
		return p.Str
	case KindBigInt:
		return p.Big.String()
	case KindBigDecimal:
		return p.Dec.String()
	case KindInstant:
		return p.Time.Format(time.RFC3339Nano)
	case KindDuration:
		return p.Dur.String()
	case KindLocalDate:
		return p.Time.Format("2006-01-02")
	case KindLocalDateTime:
		return p.Time.Format("2006-01-02T15:04:05.999999999")
	case KindLocalTime:
		return p.Time.Format("15:04:05.999999999")
	case KindMonth:
		return strconv.FormatInt(p.Int, 10)
	case KindMonthDay:
		return fmt.Sprintf("--%02d-%02d", p.Int, p.Aux)
	case KindYearMonth:
		return fmt.Sprintf("%04d-%02d", p.Int, p.Aux)
	case KindPeriod:
		return p.Per.String()
	case KindDayOfWeek:
		return strconv.FormatInt(p.Int, 10)
	case KindZoneOffset:
		return formatZoneOffset(int(p.Int))
	case KindOffsetDateTime, KindZonedDateTime:
		return p.Time.Format(time.RFC3339Nano)
	case KindOffsetTime:
		return p.Time.Format("15:04:05.999999999Z07:00")
	case KindUUID:
		return p.UUID.String()
	}
	return "<invalid>"
}

func formatZoneOffset(seconds int) string {
	if seconds == 0 {
		return "Z"
	}
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%02d:%02d", sign, seconds/3600, (seconds%3600)/60)
}

// IsNaN reports whether the primitive is a floating-point NaN.
func (p *Primitive) IsNaN() bool {
	return (p.Kind == KindFloat32 || p.Kind == KindFloat64) && math.IsNaN(p.Flt)
}

// convertible kinds for the Convert expression, keyed by lexical name.
var convertibleKinds = map[PrimitiveKind]bool{
	KindInt8: true, KindInt16: true, KindInt32: true, KindInt64: true,
	KindFloat32: true, KindFloat64: true, KindString: true,
	KindBigInt: true, KindBigDecimal: true, KindBool: true,
}

// ConvertPrimitive reinterprets p as the kind named by `to`, following the
// numeric/string/bool conversion table. `from` must name p's actual kind.
func ConvertPrimitive(from, to string, p *Primitive) (*Primitive, error) {
	fromKind, ok := ParsePrimitiveKind(from)
	if !ok {
		return nil, newConversionError(nil, from, to, fmt.Sprintf("unknown source type '%s'", from))
	}
	toKind, ok := ParsePrimitiveKind(to)
	if !ok {
		return nil, newConversionError(nil, from, to, fmt.Sprintf("unknown target type '%s'", to))
	}
	if p.Kind != fromKind {
		return nil, newConversionError(nil, from, to, fmt.Sprintf("value is %s, not %s", p.Kind, from))
	}
	if !convertibleKinds[fromKind] || !convertibleKinds[toKind] {
		return nil, newConversionError(nil, from, to, "no conversion between these types")
	}
	if fromKind == toKind {
		return p, nil
	}

	fail := func(reason string) (*Primitive, error) {
		return nil, newConversionError(nil, from, to, reason)
	}

	switch toKind {
	case KindString:
		return String(p.Text()), nil
	case KindBool:
		switch fromKind {
		case KindString:
			b, err := strconv.ParseBool(p.Str)
			if err != nil {
				return fail(fmt.Sprintf("'%s' is not a boolean", p.Str))
			}
			return Bool(b), nil
		case KindInt8, KindInt16, KindInt32, KindInt64:
			return Bool(p.Int != 0), nil
		}
		return fail("no boolean conversion from " + from)
	}

	// Numeric targets: funnel through decimal so precision loss stays
	// explicit at the final narrowing.
	var d decimal.Decimal
	switch fromKind {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		d = decimal.NewFromInt(p.Int)
	case KindFloat32, KindFloat64:
		if math.IsNaN(p.Flt) || math.IsInf(p.Flt, 0) {
			return fail("cannot convert NaN or Inf")
		}
		d = decimal.NewFromFloat(p.Flt)
	case KindBigInt:
		d = decimal.NewFromBigInt(p.Big, 0)
	case KindBigDecimal:
		d = p.Dec
	case KindBool:
		if p.Bool {
			d = decimal.NewFromInt(1)
		}
	case KindString:
		var err error
		d, err = decimal.NewFromString(p.Str)
		if err != nil {
			return fail(fmt.Sprintf("'%s' is not numeric", p.Str))
		}
	}

	switch toKind {
	case KindInt8:
		i := d.IntPart()
		if !d.IsInteger() || i < math.MinInt8 || i > math.MaxInt8 {
			return fail(d.String() + " does not fit in int8")
		}
		return Int8(int8(i)), nil
	case KindInt16:
		i := d.IntPart()
		if !d.IsInteger() || i < math.MinInt16 || i > math.MaxInt16 {
			return fail(d.String() + " does not fit in int16")
		}
		return Int16(int16(i)), nil
	case KindInt32:
		i := d.IntPart()
		if !d.IsInteger() || i < math.MinInt32 || i > math.MaxInt32 {
			return fail(d.String() + " does not fit in int32")
		}
		return Int32(int32(i)), nil
	case KindInt64:
		if !d.IsInteger() {
			return fail(d.String() + " is not an integer")
		}
		return Int64(d.IntPart()), nil
	case KindFloat32:
		f, _ := d.Float64()
		return Float32(float32(f)), nil
	case KindFloat64:
		f, _ := d.Float64()
		return Float64(f), nil
	case KindBigInt:
		if !d.IsInteger() {
			return fail(d.String() + " is not an integer")
		}
		return BigInt(d.BigInt()), nil
	case KindBigDecimal:
		return BigDecimal(d), nil
	}
	return fail("no conversion to " + to)
}
