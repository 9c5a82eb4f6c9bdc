package models

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"OmniSpectrum/pkg/util"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("lohi", func(fl validator.FieldLevel) bool {
		r, ok := fl.Field().Interface().(Range)
		if !ok {
			return false
		}
		return r.Valid()
	})
}

// OHLC is a single session candle.
type OHLC struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high" validate:"gtefield=Low"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// Quote is the spot / volatility index block.
type Quote struct {
	Current       float64 `json:"current"`
	ChangePercent float64 `json:"change_percent"`
	OHLC          OHLC    `json:"ohlc"`
}

// Range is a (low, high) pair of signed point offsets from the reference close.
type Range [2]float64

func (r Range) Low() float64  { return r[0] }
func (r Range) High() float64 { return r[1] }

// Valid reports whether low <= high.
func (r Range) Valid() bool { return r[0] <= r[1] }

// Absolute converts the offsets into price levels around close.
func (r Range) Absolute(close float64) (float64, float64) {
	return ImpliedPrice(close, r[0]), ImpliedPrice(close, r[1])
}

// ImpliedPrice adds a point move to close, rounded to 2 decimals.
func ImpliedPrice(close, pts float64) float64 {
	return decimal.NewFromFloat(close).Add(decimal.NewFromFloat(pts)).Round(2).InexactFloat64()
}

type SellerStatus string

const (
	SellerFavorable SellerStatus = "FAVORABLE"
	SellerNeutral   SellerStatus = "NEUTRAL"
	SellerAvoid     SellerStatus = "AVOID"
)

type BuyerStatus string

const (
	BuyerFavorable BuyerStatus = "FAVORABLE"
	BuyerNeutral   BuyerStatus = "NEUTRAL"
	BuyerCaution   BuyerStatus = "CAUTION"
	BuyerAvoid     BuyerStatus = "AVOID"
)

// Tiles holds the named forecast metrics.
type Tiles struct {
	TomorrowExpectedMovePts float64          `json:"tomorrow_expected_move_pts"`
	TwoDayExpectedMovePts   float64          `json:"twoday_expected_move_pts"`
	ThreeDayExpectedMovePts float64          `json:"threeday_expected_move_pts"`
	WeeklyRangePts          Range            `json:"weekly_range_pts" validate:"lohi"`
	MonthlyRangePts         Range            `json:"monthly_range_pts" validate:"lohi"`
	DirectionalTilt         DirectionalTilt  `json:"directional_tilt"`
	ShortTermEnvelope       Range            `json:"short_term_envelope" validate:"lohi"`
	MediumTermEnvelope      Range            `json:"medium_term_envelope" validate:"lohi"`
	VolatilityExpansionProb *float64         `json:"volatility_expansion_prob,omitempty" validate:"omitempty,gte=0,lte=1"`
	OptionSellersStatus     SellerStatus     `json:"option_sellers_status,omitempty" validate:"omitempty,oneof=FAVORABLE NEUTRAL AVOID"`
	OptionBuyersStatus      BuyerStatus      `json:"option_buyers_status,omitempty" validate:"omitempty,oneof=FAVORABLE NEUTRAL CAUTION AVOID"`
	PatternMatchIndex       float64          `json:"pattern_match_index" validate:"gte=0,lte=100"`
	RegimeFreeTrendStrength *float64         `json:"regime_free_trend_strength,omitempty"`
	CompositeSummary        CompositeSummary `json:"composite_summary"`
}

// TomorrowForecast is the quantile forecast for the next session.
type TomorrowForecast struct {
	Median float64 `json:"median"`
	P10    float64 `json:"p10" validate:"ltefield=Median"`
	P90    float64 `json:"p90" validate:"gtefield=Median"`
}

type Forecasts struct {
	Tomorrow *TomorrowForecast `json:"tomorrow,omitempty"`
}

// Snapshot is the forecast document served to clients.
type Snapshot struct {
	Close                  float64    `json:"close" validate:"gt=0"`
	LastUpdate             string     `json:"lastUpdate" validate:"required"`
	Timestamp              string     `json:"timestamp,omitempty"`
	ModelVersion           string     `json:"modelVersion,omitempty"`
	ModelDate              string     `json:"modelDate,omitempty"`
	MAE                    *float64   `json:"mae,omitempty" validate:"omitempty,gte=0"`
	CurrentSpot            *float64   `json:"currentSpot,omitempty"`
	CurrentVIX             *float64   `json:"currentVIX,omitempty"`
	SpotPrice              *Quote     `json:"spotPrice,omitempty"`
	IndiaVIX               *Quote     `json:"indiaVIX,omitempty"`
	Tiles                  Tiles      `json:"tiles"`
	Forecasts              *Forecasts `json:"forecasts,omitempty"`
	HistoricalClose        []float64  `json:"historicalClose" validate:"required"`
	HistoricalPatternMatch []float64  `json:"historicalPatternMatch,omitempty"`
}

// Validate checks the snapshot against the data contract.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalidSnapshot)
	}
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if err := s.Tiles.DirectionalTilt.Validate(); err != nil {
		return fmt.Errorf("%w: directional_tilt: %v", ErrInvalidSnapshot, err)
	}
	if s.Tiles.CompositeSummary.IsZero() {
		return fmt.Errorf("%w: composite_summary is required", ErrInvalidSnapshot)
	}
	return nil
}

// GeneratedAt parses the generator timestamp.
func (s *Snapshot) GeneratedAt() (time.Time, bool) {
	return util.ParseTime(s.Timestamp)
}

// Ranges returns every range tile keyed by its wire name.
func (s *Snapshot) Ranges() map[string]Range {
	return map[string]Range{
		"weekly_range_pts":     s.Tiles.WeeklyRangePts,
		"monthly_range_pts":    s.Tiles.MonthlyRangePts,
		"short_term_envelope":  s.Tiles.ShortTermEnvelope,
		"medium_term_envelope": s.Tiles.MediumTermEnvelope,
	}
}
