// Package mpesa talks to the Safaricom Daraja STK push API.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fitflow/billing/internal/billing"
	"github.com/fitflow/billing/internal/config"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	tokenPath         = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath       = "/mpesa/stkpush/v1/processrequest"
	transactionType   = "CustomerPayBillOnline"
	timestampLayout   = "20060102150405"
	tokenRefreshSlack = time.Minute
)

// eat is East Africa Time, the zone Daraja expects request timestamps in.
var eat = time.FixedZone("EAT", 3*60*60)

// Client initiates STK push payments and caches the OAuth access token.
type Client struct {
	cfg    config.MpesaConfig
	client *http.Client
	now    func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient constructs a Daraja client.
func NewClient(cfg config.MpesaConfig) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
}

// tokenResponse is the OAuth client-credentials response.
type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
}

// stkPushRequest is the STK push request body.
type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// stkPushResponse is the synchronous STK push acknowledgement.
type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// Initiate sends an STK push prompt to phone for amount, rounded up to whole shillings.
func (c *Client) Initiate(ctx context.Context, phone string, amount decimal.Decimal) (billing.GatewayResponse, error) {
	if strings.TrimSpace(c.cfg.Shortcode) == "" || strings.TrimSpace(c.cfg.Passkey) == "" {
		return billing.GatewayResponse{}, fmt.Errorf("%w: mpesa shortcode or passkey not configured", billing.ErrExternalService)
	}
	token, errToken := c.accessToken(ctx)
	if errToken != nil {
		return billing.GatewayResponse{}, errToken
	}

	timestamp := c.now().In(eat).Format(timestampLayout)
	payload := stkPushRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          Password(c.cfg.Shortcode, c.cfg.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   transactionType,
		Amount:            amount.Ceil().IntPart(),
		PartyA:            phone,
		PartyB:            c.cfg.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  c.cfg.AccountReference,
		TransactionDesc:   c.cfg.Description,
	}
	body, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return billing.GatewayResponse{}, fmt.Errorf("mpesa: encode stk push: %w", errMarshal)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+stkPushPath, bytes.NewReader(body))
	if errReq != nil {
		return billing.GatewayResponse{}, fmt.Errorf("mpesa: build stk push request: %w", errReq)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	var out stkPushResponse
	status, errDo := c.doJSON(req, &out)
	if errDo != nil {
		return billing.GatewayResponse{}, errDo
	}
	if status == http.StatusUnauthorized {
		c.resetToken()
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return billing.GatewayResponse{}, fmt.Errorf("%w: stk push status %d: %s", billing.ErrExternalService, status, firstNonEmpty(out.ErrorMessage, out.ResponseDescription))
	}
	if strings.TrimSpace(out.ResponseCode) != "0" || strings.TrimSpace(out.CheckoutRequestID) == "" {
		return billing.GatewayResponse{}, fmt.Errorf("%w: stk push rejected: code=%q %s", billing.ErrExternalService, out.ResponseCode, out.ResponseDescription)
	}

	log.WithFields(log.Fields{
		"checkout_request_id": out.CheckoutRequestID,
		"merchant_request_id": out.MerchantRequestID,
	}).Debug("mpesa: stk push accepted")

	return billing.GatewayResponse{
		ProviderRequestID: out.CheckoutRequestID,
		MerchantRequestID: out.MerchantRequestID,
		Description:       out.ResponseDescription,
		CustomerMessage:   out.CustomerMessage,
	}, nil
}

// Password is base64(shortcode + passkey + timestamp).
func Password(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}

// accessToken returns the cached token, fetching a new one when it is about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token != "" && now.Before(c.tokenExpiry) {
		return c.token, nil
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+tokenPath, nil)
	if errReq != nil {
		return "", fmt.Errorf("mpesa: build token request: %w", errReq)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	var out tokenResponse
	status, errDo := c.doJSON(req, &out)
	if errDo != nil {
		return "", errDo
	}
	if status != http.StatusOK || strings.TrimSpace(out.AccessToken) == "" {
		return "", fmt.Errorf("%w: token request status %d", billing.ErrExternalService, status)
	}

	ttl := time.Hour
	if seconds, errParse := strconv.ParseInt(out.ExpiresIn.String(), 10, 64); errParse == nil && seconds > 0 {
		ttl = time.Duration(seconds) * time.Second
	}
	if ttl > tokenRefreshSlack {
		ttl -= tokenRefreshSlack
	}
	c.token = out.AccessToken
	c.tokenExpiry = now.Add(ttl)
	return c.token, nil
}

func (c *Client) resetToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
}

// doJSON performs req and decodes a JSON body into out when present.
func (c *Client) doJSON(req *http.Request, out any) (int, error) {
	resp, errDo := c.client.Do(req)
	if errDo != nil {
		return 0, fmt.Errorf("%w: %v", billing.ErrExternalService, errDo)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("mpesa: close response body failed")
		}
	}()

	body, errRead := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if errRead != nil {
		return resp.StatusCode, fmt.Errorf("%w: read response: %v", billing.ErrExternalService, errRead)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return resp.StatusCode, nil
	}
	if errUnmarshal := json.Unmarshal(body, out); errUnmarshal != nil {
		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			return resp.StatusCode, fmt.Errorf("%w: decode response: %v", billing.ErrExternalService, errUnmarshal)
		}
	}
	return resp.StatusCode, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
