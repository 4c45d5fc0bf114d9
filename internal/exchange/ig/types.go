package ig

import (
	"alertbot/internal/logger"
	"fmt"
	"net/http"
	"time"
)

type Client struct {
	baseURL      string
	apiKey       string
	session      *Session
	opts         Options
	httpClient   *http.Client
	log          *logger.Logger
	retries      int
	retryBackoff time.Duration
}

// APIError - ответ IG со статусом >= 400, Code берётся из errorCode тела.
type APIError struct {
	Status int
	Code   string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("Ошибка IG: статус %d", e.Status)
	}
	return fmt.Sprintf("Ошибка IG: %s (status=%d)", e.Code, e.Status)
}

type errorBody struct {
	ErrorCode string `json:"errorCode"`
}

type marketResponse struct {
	Instrument struct {
		Epic       string `json:"epic"`
		Name       string `json:"name"`
		Currencies []struct {
			Code      string `json:"code"`
			IsDefault bool   `json:"isDefault"`
		} `json:"currencies"`
	} `json:"instrument"`
	DealingRules struct {
		MinNormalStopOrLimitDistance *struct {
			Unit  string  `json:"unit"`
			Value float64 `json:"value"`
		} `json:"minNormalStopOrLimitDistance"`
	} `json:"dealingRules"`
	Snapshot struct {
		MarketStatus        string   `json:"marketStatus"`
		Bid                 *float64 `json:"bid"`
		Offer               *float64 `json:"offer"`
		DecimalPlacesFactor int      `json:"decimalPlacesFactor"`
		ScalingFactor       int      `json:"scalingFactor"`
		UpdateTime          string   `json:"updateTime"`
	} `json:"snapshot"`
}

type searchResponse struct {
	Markets []struct {
		Epic           string `json:"epic"`
		InstrumentName string `json:"instrumentName"`
		InstrumentType string `json:"instrumentType"`
		Expiry         string `json:"expiry"`
		MarketID       string `json:"marketId"`
	} `json:"markets"`
}

type dealReferenceResponse struct {
	DealReference string `json:"dealReference"`
}

type confirmResponse struct {
	DealID        string   `json:"dealId"`
	DealReference string   `json:"dealReference"`
	DealStatus    string   `json:"dealStatus"`
	Reason        string   `json:"reason"`
	Status        string   `json:"status"`
	Epic          string   `json:"epic"`
	Direction     string   `json:"direction"`
	Size          *float64 `json:"size"`
	Level         *float64 `json:"level"`
	Date          string   `json:"date"`
}

type positionItem struct {
	Position struct {
		DealID        string   `json:"dealId"`
		DealReference string   `json:"dealReference"`
		Direction     string   `json:"direction"`
		Size          float64  `json:"size"`
		Level         float64  `json:"level"`
		StopLevel     *float64 `json:"stopLevel"`
		LimitLevel    *float64 `json:"limitLevel"`
		CreatedDate   string   `json:"createdDateUTC"`
	} `json:"position"`
	Market struct {
		Epic           string   `json:"epic"`
		InstrumentName string   `json:"instrumentName"`
		Bid            *float64 `json:"bid"`
		Offer          *float64 `json:"offer"`
	} `json:"market"`
}

type positionsResponse struct {
	Positions []positionItem `json:"positions"`
}

type workingOrdersResponse struct {
	WorkingOrders []struct {
		WorkingOrderData struct {
			DealID         string   `json:"dealId"`
			Direction      string   `json:"direction"`
			Epic           string   `json:"epic"`
			OrderSize      float64  `json:"orderSize"`
			OrderLevel     float64  `json:"orderLevel"`
			OrderType      string   `json:"orderType"`
			StopDistance   *float64 `json:"stopDistance"`
			LimitDistance  *float64 `json:"limitDistance"`
			CreatedDateUTC string   `json:"createdDateUTC"`
		} `json:"workingOrderData"`
		MarketData struct {
			InstrumentName string `json:"instrumentName"`
		} `json:"marketData"`
	} `json:"workingOrders"`
}

type transactionsResponse struct {
	Transactions []struct {
		Date            string `json:"date"`
		DateUTC         string `json:"dateUtc"`
		InstrumentName  string `json:"instrumentName"`
		TransactionType string `json:"transactionType"`
		Reference       string `json:"reference"`
		OpenLevel       string `json:"openLevel"`
		CloseLevel      string `json:"closeLevel"`
		Size            string `json:"size"`
		Currency        string `json:"currency"`
		ProfitAndLoss   string `json:"profitAndLoss"`
		CashTransaction bool   `json:"cashTransaction"`
	} `json:"transactions"`
}

type activitiesResponse struct {
	Activities []struct {
		Date        string `json:"date"`
		Epic        string `json:"epic"`
		DealID      string `json:"dealId"`
		Description string `json:"description"`
		Type        string `json:"type"`
		Status      string `json:"status"`
		Details     *struct {
			DealReference string   `json:"dealReference"`
			MarketName    string   `json:"marketName"`
			Direction     string   `json:"direction"`
			Size          *float64 `json:"size"`
			Level         *float64 `json:"level"`
			StopLevel     *float64 `json:"stopLevel"`
			LimitLevel    *float64 `json:"limitLevel"`
		} `json:"details"`
	} `json:"activities"`
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
