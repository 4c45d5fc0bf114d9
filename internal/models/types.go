package models

import "time"

type Direction string
type OrderSide string
type OrderType string
type MarketStatus string
type DealStatus string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"

	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"

	OrderTypeLimit OrderType = "LIMIT"
	OrderTypeStop  OrderType = "STOP"

	MarketTradeable MarketStatus = "TRADEABLE"
	MarketClosed    MarketStatus = "CLOSED"

	DealAccepted DealStatus = "ACCEPTED"
	DealRejected DealStatus = "REJECTED"
)

type Quote struct {
	Epic          string       `json:"epic"`
	Bid           float64      `json:"bid"`
	Offer         float64      `json:"offer"`
	Mid           float64      `json:"mid_price"`
	Status        MarketStatus `json:"market_status"`
	DecimalPlaces int          `json:"decimal_places"`
	MinDistance   float64      `json:"min_distance"`
	Currency      string       `json:"currency"`
	Timestamp     time.Time    `json:"timestamp"`
}

type LimitOrder struct {
	Epic          string    `json:"epic"`
	Side          OrderSide `json:"direction"`
	Size          float64   `json:"size"`
	Level         float64   `json:"level"`
	StopDistance  float64   `json:"stop_distance"`
	LimitDistance float64   `json:"limit_distance"`
	DecimalPlaces int       `json:"decimal_places"`
	CurrentPrice  float64   `json:"current_price"`
}

type OrderResult struct {
	Status        DealStatus `json:"deal_status"`
	DealID        string     `json:"deal_id,omitempty"`
	DealReference string     `json:"deal_reference,omitempty"`
	OrderType     OrderType  `json:"order_type,omitempty"`
	Reason        string     `json:"reason,omitempty"`
}

func (r OrderResult) Accepted() bool {
	return r.Status == DealAccepted
}

type DealConfirmation struct {
	DealID        string     `json:"deal_id"`
	DealReference string     `json:"deal_reference"`
	Status        DealStatus `json:"deal_status"`
	Reason        string     `json:"reason"`
	Epic          string     `json:"epic"`
	Direction     OrderSide  `json:"direction"`
	Size          float64    `json:"size"`
	Level         float64    `json:"level"`
	Date          string     `json:"date"`
}

type Position struct {
	DealID         string    `json:"deal_id"`
	DealReference  string    `json:"deal_reference"`
	Epic           string    `json:"epic"`
	InstrumentName string    `json:"instrument_name"`
	Direction      OrderSide `json:"direction"`
	Size           float64   `json:"size"`
	Level          float64   `json:"open_level"`
	StopLevel      float64   `json:"stop_level,omitempty"`
	LimitLevel     float64   `json:"limit_level,omitempty"`
	Bid            float64   `json:"bid"`
	Offer          float64   `json:"offer"`
	CreatedDate    string    `json:"created_date"`
}

type WorkingOrder struct {
	DealID         string    `json:"deal_id"`
	Epic           string    `json:"epic"`
	InstrumentName string    `json:"instrument_name"`
	Direction      OrderSide `json:"direction"`
	Size           float64   `json:"size"`
	Level          float64   `json:"order_level"`
	Type           OrderType `json:"order_type"`
	StopDistance   float64   `json:"stop_distance,omitempty"`
	LimitDistance  float64   `json:"limit_distance,omitempty"`
	CreatedDate    string    `json:"created_date"`
}

type Transaction struct {
	Date            string `json:"date"`
	TransactionType string `json:"transaction_type"`
	InstrumentName  string `json:"instrument_name"`
	Reference       string `json:"reference"`
	OpenLevel       string `json:"opening_level"`
	CloseLevel      string `json:"closing_level"`
	Size            string `json:"size"`
	Currency        string `json:"currency"`
	ProfitAndLoss   string `json:"profit"`
	Cash            bool   `json:"cash_transaction"`
}

type Activity struct {
	Date          string    `json:"date"`
	Type          string    `json:"activity_type"`
	Status        string    `json:"status"`
	Description   string    `json:"description"`
	DealID        string    `json:"deal_id"`
	DealReference string    `json:"deal_reference"`
	Epic          string    `json:"epic"`
	MarketName    string    `json:"market_name"`
	Direction     OrderSide `json:"direction"`
	Size          float64   `json:"size"`
	Level         float64   `json:"level"`
	StopLevel     float64   `json:"stop_level"`
	LimitLevel    float64   `json:"limit_level"`
}

type Market struct {
	Epic           string `json:"epic"`
	InstrumentName string `json:"instrument_name"`
	InstrumentType string `json:"instrument_type"`
	Expiry         string `json:"expiry"`
	MarketID       string `json:"market_id"`
}
