package maxipago

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/util"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Saga step names for the tokenized card flow.
const (
	StepRegisterConsumer = "register_consumer"
	StepTokenizeCard     = "tokenize_card"
	StepCharge           = "charge"
)

// Per-step sentinel errors. Callers can tell which round-trip failed with
// errors.Is.
var (
	ErrRegisterConsumer = errors.New("maxipago: could not register buyer")
	ErrTokenizeCard     = errors.New("maxipago: could not tokenize card")
	ErrCharge           = errors.New("maxipago: charge declined")
)

const (
	pathTransaction = "/UniversalAPI/postXML"
	pathAPI         = "/UniversalAPI/postAPI"
	pathReports     = "/ReportsAPI/servlet/ReportsAPI"

	healthCheckTimeout = 10 * time.Second
)

// Buyer is the contact block embedded into sale envelopes. Fields are
// normalized (digit-only documents, formatted phone/zip) before marshalling.
type Buyer struct {
	Name    string
	CPF     string
	Email   string
	Phone   string
	Address string
	City    string
	State   string
	ZipCode string
}

// CardData is the raw card captured on the synchronous checkout. It is only
// ever sent on the tokenization round-trip.
type CardData struct {
	Number     string
	ExpMonth   string
	ExpYear    string
	HolderName string
	CVV        string
}

// PixChargeRequest is the direct one-shot sale for instant transfers.
type PixChargeRequest struct {
	ReferenceNum      string
	AmountInCents     int64
	Buyer             Buyer
	ExpirationSeconds int
}

// CardChargeRequest drives the three-step tokenized card flow.
type CardChargeRequest struct {
	ReferenceNum  string
	AmountInCents int64
	Installments  int
	Buyer         Buyer
	Card          CardData
}

// ChargeResult is the parsed flat transaction response.
type ChargeResult struct {
	Approved      bool
	TransactionID string
	AuthCode      string
	ResponseCode  string
	DeclineReason string
	PixEMV        string
	PixImage      string
	PixURL        string
}

type Client struct {
	http        *resty.Client
	merchantID  string
	merchantKey string
	processorID string
	logger      *zap.Logger
}

// NewClient creates a tokenized gateway client. Every call carries the
// configured bounded timeout.
func NewClient(baseURL, merchantID, merchantKey, processorID string, timeout time.Duration) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "text/xml; charset=UTF-8")

	return &Client{
		http:        http,
		merchantID:  merchantID,
		merchantKey: merchantKey,
		processorID: processorID,
		logger:      util.GetLogger(),
	}
}

func (c *Client) verification() Verification {
	return Verification{MerchantID: c.merchantID, MerchantKey: c.merchantKey}
}

// DirectPixCharge submits a one-shot PIX sale and parses the flat response.
// A non-zero response code returns the parsed result together with an error
// wrapping ErrCharge.
func (c *Client) DirectPixCharge(ctx context.Context, req *PixChargeRequest) (*ChargeResult, error) {
	expiration := req.ExpirationSeconds
	if expiration == 0 {
		expiration = 86400
	}

	envelope := transactionRequest{
		Version:      apiVersion,
		Verification: c.verification(),
		Order: saleOrder{
			Sale: sale{
				ProcessorID:       c.processorID,
				ReferenceNum:      req.ReferenceNum,
				CustomerIDExt:     DigitsOnly(req.Buyer.CPF),
				Billing:           buildBilling(req.Buyer),
				TransactionDetail: transactionDetail{PayType: payType{Pix: &pixPayType{ExpirationTime: expiration}}},
				Payment: payment{
					ChargeTotal:  FormatAmount(req.AmountInCents),
					CurrencyCode: "BRL",
				},
			},
		},
	}

	return c.postSale(ctx, "pix_sale", &envelope)
}

// ChargeTokenizedCard runs the three sequential round-trips of the card
// flow. Each step must succeed before the next is attempted; there is no
// automatic rollback of earlier steps.
func (c *Client) ChargeTokenizedCard(ctx context.Context, req *CardChargeRequest) (*ChargeResult, error) {
	consumerID, err := c.RegisterConsumer(ctx, req.Buyer)
	if err != nil {
		return nil, err
	}

	token, err := c.TokenizeCard(ctx, consumerID, req.Card)
	if err != nil {
		return nil, err
	}

	result, err := c.chargeToken(ctx, req, consumerID, token)
	if err != nil {
		// Steps 1-2 left a registered consumer and token behind at the
		// provider. Flag for manual reconciliation.
		util.ManualReconciliationTotal.Inc()
		c.logger.Error("charge failed after consumer registration and tokenization",
			zap.String("marker", "manual_reconciliation"),
			zap.String("reference_num", req.ReferenceNum),
			zap.String("consumer_id", consumerID),
			zap.Error(err))
		return result, err
	}

	return result, nil
}

// RegisterConsumer registers a remote consumer keyed by the buyer's tax id.
func (c *Client) RegisterConsumer(ctx context.Context, buyer Buyer) (string, error) {
	first, last := SplitName(buyer.Name)
	envelope := apiRequest{
		Verification: c.verification(),
		Command:      "add-consumer",
		Request: apiPayload{
			CustomerIDExt: DigitsOnly(buyer.CPF),
			FirstName:     first,
			LastName:      last,
			Phone:         FormatPhone(buyer.Phone),
			Email:         buyer.Email,
		},
	}

	resp, err := c.postAPI(ctx, StepRegisterConsumer, &envelope)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRegisterConsumer, err)
	}
	if resp.ErrorCode != "0" {
		return "", fmt.Errorf("%w: provider code %s (%s)", ErrRegisterConsumer, resp.ErrorCode, resp.ErrorMessage)
	}
	if resp.Result.CustomerID == "" {
		return "", fmt.Errorf("%w: empty consumer id in response", ErrRegisterConsumer)
	}

	return resp.Result.CustomerID, nil
}

// TokenizeCard stores the card against a registered consumer and returns the
// provider-issued token.
func (c *Client) TokenizeCard(ctx context.Context, consumerID string, card CardData) (string, error) {
	envelope := apiRequest{
		Verification: c.verification(),
		Command:      "add-card-onfile",
		Request: apiPayload{
			CustomerID:       consumerID,
			CreditCardNumber: DigitsOnly(card.Number),
			ExpirationMonth:  card.ExpMonth,
			ExpirationYear:   card.ExpYear,
			BillingName:      card.HolderName,
		},
	}

	resp, err := c.postAPI(ctx, StepTokenizeCard, &envelope)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenizeCard, err)
	}
	if resp.ErrorCode != "0" {
		return "", fmt.Errorf("%w: provider code %s (%s)", ErrTokenizeCard, resp.ErrorCode, resp.ErrorMessage)
	}
	if resp.Result.Token == "" {
		return "", fmt.Errorf("%w: empty token in response", ErrTokenizeCard)
	}

	return resp.Result.Token, nil
}

// chargeToken submits the sale referencing consumer id, token and CVV.
func (c *Client) chargeToken(ctx context.Context, req *CardChargeRequest, consumerID, token string) (*ChargeResult, error) {
	installments := req.Installments
	if installments < 1 {
		installments = 1
	}

	envelope := transactionRequest{
		Version:      apiVersion,
		Verification: c.verification(),
		Order: saleOrder{
			Sale: sale{
				ProcessorID:  c.processorID,
				ReferenceNum: req.ReferenceNum,
				Billing:      buildBilling(req.Buyer),
				TransactionDetail: transactionDetail{
					PayType: payType{OnFile: &onFilePayType{
						CustomerID: consumerID,
						Token:      token,
						CVVNumber:  req.Card.CVV,
					}},
				},
				Payment: payment{
					ChargeTotal:  FormatAmount(req.AmountInCents),
					CurrencyCode: "BRL",
					CreditInstallment: &creditInstallment{
						NumberOfInstallments: installments,
						ChargeInterest:       "N",
					},
				},
			},
		},
	}

	return c.postSale(ctx, "token_sale", &envelope)
}

// HealthCheck validates the configured credentials against the reports
// endpoint without creating a transaction.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	envelope := rapiRequest{
		Verification: c.verification(),
		Command:      "transactionDetailReport",
		Request:      rapiFilter{FilterOptions: rapiFilterOptions{Period: "today"}},
	}

	body, err := xml.Marshal(&envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal report request: %w", err)
	}

	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post(pathReports)
	if err != nil {
		return fmt.Errorf("reports endpoint unreachable: %w", err)
	}

	var parsed rapiResponse
	if err := xml.Unmarshal(resp.Body(), &parsed); err != nil {
		return fmt.Errorf("failed to parse report response: %w", err)
	}
	if parsed.ErrorCode != "0" {
		return fmt.Errorf("invalid credentials: provider code %s (%s)", parsed.ErrorCode, parsed.ErrorMsg)
	}

	return nil
}

func (c *Client) postSale(ctx context.Context, operation string, envelope *transactionRequest) (*ChargeResult, error) {
	start := time.Now()
	defer func() {
		util.GatewayRequestLatency.WithLabelValues("maxipago", operation).Observe(time.Since(start).Seconds())
	}()

	body, err := xml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal sale request: %v", ErrCharge, err)
	}

	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post(pathTransaction)
	if err != nil {
		return nil, fmt.Errorf("%w: gateway unreachable: %v", ErrCharge, err)
	}

	var parsed transactionResponse
	if err := xml.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse sale response: %v", ErrCharge, err)
	}

	result := &ChargeResult{
		Approved:      parsed.ResponseCode == "0",
		TransactionID: parsed.TransactionID,
		AuthCode:      parsed.AuthCode,
		ResponseCode:  parsed.ResponseCode,
		PixEMV:        parsed.PixEMV,
		PixImage:      parsed.PixImage,
		PixURL:        parsed.PixURL,
	}

	if !result.Approved {
		reason := parsed.ProcessorMessage
		if reason == "" {
			reason = parsed.ErrorMessage
		}
		if reason == "" {
			reason = parsed.ResponseMessage
		}
		result.DeclineReason = fmt.Sprintf("payment declined: %s (provider code %s)", reason, parsed.ResponseCode)
		return result, fmt.Errorf("%w: %s", ErrCharge, result.DeclineReason)
	}

	return result, nil
}

func (c *Client) postAPI(ctx context.Context, operation string, envelope *apiRequest) (*apiResponse, error) {
	start := time.Now()
	defer func() {
		util.GatewayRequestLatency.WithLabelValues("maxipago", operation).Observe(time.Since(start).Seconds())
	}()

	body, err := xml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal api request: %v", err)
	}

	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post(pathAPI)
	if err != nil {
		return nil, fmt.Errorf("gateway unreachable: %v", err)
	}

	var parsed apiResponse
	if err := xml.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse api response: %v", err)
	}

	return &parsed, nil
}

func buildBilling(b Buyer) *billing {
	return &billing{
		Name:       b.Name,
		Address:    b.Address,
		City:       b.City,
		State:      b.State,
		PostalCode: FormatZipCode(b.ZipCode),
		Country:    "BR",
		Phone:      FormatPhone(b.Phone),
		Email:      b.Email,
	}
}
