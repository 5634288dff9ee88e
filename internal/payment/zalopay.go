// Package payment talks to the ZaloPay order API. Orders are signed with
// key1 and gateway callbacks are verified with key2.
package payment

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zpmep/hmacutil"
)

var (
	ErrInvalidMAC     = errors.New("payment: mac mismatch")
	ErrOrderRejected  = errors.New("payment: order rejected by gateway")
	ErrInvalidTransID = errors.New("payment: malformed app_trans_id")
)

type Config struct {
	AppID       string
	Key1        string
	Key2        string
	Endpoint    string
	CallbackURL string
}

type Gateway struct {
	cfg    Config
	client *http.Client
	now    func() time.Time
}

func New(cfg Config) *Gateway {
	return &Gateway{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		now:    time.Now,
	}
}

type Order struct {
	Reference   string
	AppUser     string
	Amount      decimal.Decimal
	Description string
}

type OrderResult struct {
	Code       int    `json:"return_code"`
	Message    string `json:"return_message"`
	OrderURL   string `json:"order_url"`
	OrderToken string `json:"order_token,omitempty"`
	TransID    string `json:"app_trans_id"`
}

// CreateOrder registers the order with the gateway and returns the URL the
// customer pays at. The gateway only accepts whole amounts.
func (g *Gateway) CreateOrder(ctx context.Context, o Order) (*OrderResult, error) {
	now := g.now()

	embedData, err := json.Marshal(map[string]string{"reference": o.Reference})
	if err != nil {
		return nil, err
	}

	params := make(url.Values)
	params.Set("app_id", g.cfg.AppID)
	params.Set("app_trans_id", TransID(now, o.Reference))
	params.Set("app_user", o.AppUser)
	params.Set("amount", o.Amount.Round(0).String())
	params.Set("app_time", strconv.FormatInt(now.UnixMilli(), 10))
	params.Set("embed_data", string(embedData))
	params.Set("item", "[]")
	params.Set("description", o.Description)
	params.Set("bank_code", "zalopayapp")
	if g.cfg.CallbackURL != "" {
		params.Set("callback_url", g.cfg.CallbackURL)
	}

	// app_id|app_trans_id|app_user|amount|app_time|embed_data|item
	data := strings.Join([]string{
		params.Get("app_id"),
		params.Get("app_trans_id"),
		params.Get("app_user"),
		params.Get("amount"),
		params.Get("app_time"),
		params.Get("embed_data"),
		params.Get("item"),
	}, "|")
	params.Set("mac", hmacutil.HexStringEncode(hmacutil.SHA256, g.cfg.Key1, data))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment: create order: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("payment: create order: unexpected status %d", res.StatusCode)
	}

	var result OrderResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("payment: decode order response: %w", err)
	}

	if result.Code != 1 {
		return nil, fmt.Errorf("%w: %s", ErrOrderRejected, result.Message)
	}

	result.TransID = params.Get("app_trans_id")
	return &result, nil
}

// Callback is the body the gateway posts once an order is paid.
type Callback struct {
	Data string `json:"data"`
	MAC  string `json:"mac"`
	Type int    `json:"type"`
}

type CallbackData struct {
	AppID      int64  `json:"app_id"`
	AppTransID string `json:"app_trans_id"`
	AppTime    int64  `json:"app_time"`
	Amount     int64  `json:"amount"`
	ZpTransID  int64  `json:"zp_trans_id"`
}

// VerifyCallback checks the callback MAC and returns the booking reference
// the payment belongs to.
func (g *Gateway) VerifyCallback(cb Callback) (string, *CallbackData, error) {
	mac := hmacutil.HexStringEncode(hmacutil.SHA256, g.cfg.Key2, cb.Data)
	if !hmacEqual(mac, cb.MAC) {
		return "", nil, ErrInvalidMAC
	}

	var data CallbackData
	if err := json.Unmarshal([]byte(cb.Data), &data); err != nil {
		return "", nil, fmt.Errorf("payment: decode callback data: %w", err)
	}

	reference, err := ReferenceFromTransID(data.AppTransID)
	if err != nil {
		return "", nil, err
	}

	return reference, &data, nil
}

// TransID builds the gateway's yymmdd_<id> transaction id.
func TransID(now time.Time, reference string) string {
	return fmt.Sprintf("%02d%02d%02d_%s", now.Year()%100, int(now.Month()), now.Day(), reference)
}

func ReferenceFromTransID(transID string) (string, error) {
	date, reference, ok := strings.Cut(transID, "_")
	if !ok || len(date) != 6 || reference == "" {
		return "", ErrInvalidTransID
	}
	return reference, nil
}

func hmacEqual(a, b string) bool {
	return hmac.Equal([]byte(strings.ToLower(a)), []byte(strings.ToLower(b)))
}
