package maxipago

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway replays canned XML responses and records every request body.
type fakeGateway struct {
	mu     sync.Mutex
	bodies []string

	consumerResponse string
	cardResponse     string
	saleResponse     string
	reportResponse   string
}

func (g *fakeGateway) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		g.mu.Lock()
		g.bodies = append(g.bodies, string(body))
		g.mu.Unlock()

		switch r.URL.Path {
		case pathAPI:
			if strings.Contains(string(body), "add-consumer") {
				io.WriteString(w, g.consumerResponse)
			} else {
				io.WriteString(w, g.cardResponse)
			}
		case pathTransaction:
			io.WriteString(w, g.saleResponse)
		case pathReports:
			io.WriteString(w, g.reportResponse)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (g *fakeGateway) requestCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.bodies)
}

func (g *fakeGateway) lastBody() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.bodies) == 0 {
		return ""
	}
	return g.bodies[len(g.bodies)-1]
}

const approvedSale = `<transaction-response>
	<responseCode>0</responseCode>
	<transactionID>tx-555</transactionID>
	<authCode>AUTH42</authCode>
</transaction-response>`

const declinedSale = `<transaction-response>
	<responseCode>1</responseCode>
	<transactionID>tx-556</transactionID>
	<processorMessage>INSUFFICIENT FUNDS</processorMessage>
</transaction-response>`

const consumerOK = `<api-response>
	<errorCode>0</errorCode>
	<command>add-consumer</command>
	<result><customerId>cons-9</customerId></result>
</api-response>`

const cardOK = `<api-response>
	<errorCode>0</errorCode>
	<command>add-card-onfile</command>
	<result><token>tok-abc</token></result>
</api-response>`

const cardFail = `<api-response>
	<errorCode>1</errorCode>
	<errorMessage>invalid card number</errorMessage>
	<command>add-card-onfile</command>
</api-response>`

const consumerFail = `<api-response>
	<errorCode>1</errorCode>
	<errorMessage>customer already exists</errorMessage>
	<command>add-consumer</command>
</api-response>`

func newTestClient(t *testing.T, g *fakeGateway) *Client {
	t.Helper()
	srv := httptest.NewServer(g.handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "merchant-1", "key-1", "5", 5*time.Second)
}

func testCardRequest() *CardChargeRequest {
	return &CardChargeRequest{
		ReferenceNum:  "order-1",
		AmountInCents: 16000,
		Installments:  1,
		Buyer: Buyer{
			Name:  "Maria Souza",
			CPF:   "529.982.247-25",
			Phone: "35999990000",
		},
		Card: CardData{
			Number:     "4111 1111 1111 1111",
			ExpMonth:   "12",
			ExpYear:    "2030",
			HolderName: "MARIA SOUZA",
			CVV:        "123",
		},
	}
}

func TestDirectPixChargeApproved(t *testing.T) {
	g := &fakeGateway{saleResponse: `<transaction-response>
		<responseCode>0</responseCode>
		<transactionID>tx-pix</transactionID>
		<emv>00020126BR...</emv>
		<imageBase64>iVBOR</imageBase64>
	</transaction-response>`}
	c := newTestClient(t, g)

	result, err := c.DirectPixCharge(context.Background(), &PixChargeRequest{
		ReferenceNum:  "order-1",
		AmountInCents: 16000,
		Buyer:         Buyer{Name: "Maria Souza", CPF: "52998224725"},
	})
	require.NoError(t, err)

	assert.True(t, result.Approved)
	assert.Equal(t, "tx-pix", result.TransactionID)
	assert.Equal(t, "00020126BR...", result.PixEMV)

	body := g.lastBody()
	assert.Contains(t, body, "<chargeTotal>160.00</chargeTotal>")
	assert.Contains(t, body, "<pix>")
	assert.Contains(t, body, "<referenceNum>order-1</referenceNum>")
}

func TestChargeTokenizedCardRunsThreeSteps(t *testing.T) {
	g := &fakeGateway{
		consumerResponse: consumerOK,
		cardResponse:     cardOK,
		saleResponse:     approvedSale,
	}
	c := newTestClient(t, g)

	result, err := c.ChargeTokenizedCard(context.Background(), testCardRequest())
	require.NoError(t, err)

	assert.True(t, result.Approved)
	assert.Equal(t, "tx-555", result.TransactionID)
	assert.Equal(t, "AUTH42", result.AuthCode)
	assert.Equal(t, 3, g.requestCount())

	// The sale references consumer and token; the raw card number only
	// travels on the tokenization round-trip.
	saleBody := g.lastBody()
	assert.Contains(t, saleBody, "<customerId>cons-9</customerId>")
	assert.Contains(t, saleBody, "<token>tok-abc</token>")
	assert.NotContains(t, saleBody, "4111111111111111")
}

func TestChargeTokenizedCardStopsOnRegisterFailure(t *testing.T) {
	g := &fakeGateway{consumerResponse: consumerFail}
	c := newTestClient(t, g)

	_, err := c.ChargeTokenizedCard(context.Background(), testCardRequest())
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrRegisterConsumer)
	assert.NotErrorIs(t, err, ErrTokenizeCard)
	assert.NotErrorIs(t, err, ErrCharge)
	assert.Contains(t, err.Error(), "customer already exists")
	// The first step failed; nothing else was attempted.
	assert.Equal(t, 1, g.requestCount())
}

func TestChargeTokenizedCardStopsOnTokenizeFailure(t *testing.T) {
	g := &fakeGateway{
		consumerResponse: consumerOK,
		cardResponse:     cardFail,
	}
	c := newTestClient(t, g)

	_, err := c.ChargeTokenizedCard(context.Background(), testCardRequest())
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrTokenizeCard)
	assert.NotErrorIs(t, err, ErrCharge)
	assert.Contains(t, err.Error(), "invalid card number")
	// No sale was attempted after the failed step.
	assert.Equal(t, 2, g.requestCount())
}

func TestChargeTokenizedCardDecline(t *testing.T) {
	g := &fakeGateway{
		consumerResponse: consumerOK,
		cardResponse:     cardOK,
		saleResponse:     declinedSale,
	}
	c := newTestClient(t, g)

	result, err := c.ChargeTokenizedCard(context.Background(), testCardRequest())
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrCharge)
	require.NotNil(t, result)
	assert.False(t, result.Approved)
	assert.Contains(t, result.DeclineReason, "INSUFFICIENT FUNDS")
	assert.Contains(t, result.DeclineReason, "provider code 1")
}

func TestSaleEscapesBuyerFields(t *testing.T) {
	g := &fakeGateway{saleResponse: approvedSale}
	c := newTestClient(t, g)

	_, err := c.DirectPixCharge(context.Background(), &PixChargeRequest{
		ReferenceNum:  "order-1",
		AmountInCents: 1000,
		Buyer:         Buyer{Name: `Maria <& "Souza"`, CPF: "52998224725"},
	})
	require.NoError(t, err)

	body := g.lastBody()
	assert.Contains(t, body, "Maria &lt;&amp;")
	assert.NotContains(t, body, `<& "Souza"`)
}

func TestHealthCheck(t *testing.T) {
	g := &fakeGateway{reportResponse: `<rapi-response><header><errorCode>0</errorCode></header></rapi-response>`}
	c := newTestClient(t, g)
	assert.NoError(t, c.HealthCheck(context.Background()))

	g.reportResponse = `<rapi-response><header><errorCode>1024</errorCode><errorMsg>INVALID CREDENTIALS</errorMsg></header></rapi-response>`
	err := c.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1024")
}
