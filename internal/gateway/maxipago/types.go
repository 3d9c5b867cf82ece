package maxipago

import "encoding/xml"

// Every request shape is a typed document so buyer-supplied fields are
// escaped by the XML encoder instead of being spliced into templates.

const apiVersion = "3.1.1.15"

// Verification carries the merchant credentials on every envelope.
type Verification struct {
	MerchantID  string `xml:"merchantId"`
	MerchantKey string `xml:"merchantKey"`
}

// transactionRequest is the envelope for direct and tokenized sales.
type transactionRequest struct {
	XMLName      xml.Name     `xml:"transaction-request"`
	Version      string       `xml:"version"`
	Verification Verification `xml:"verification"`
	Order        saleOrder    `xml:"order"`
}

type saleOrder struct {
	Sale sale `xml:"sale"`
}

type sale struct {
	ProcessorID       string            `xml:"processorID"`
	ReferenceNum      string            `xml:"referenceNum"`
	CustomerIDExt     string            `xml:"customerIdExt,omitempty"`
	Billing           *billing          `xml:"billing,omitempty"`
	TransactionDetail transactionDetail `xml:"transactionDetail"`
	Payment           payment           `xml:"payment"`
}

type billing struct {
	Name       string `xml:"name"`
	Address    string `xml:"address,omitempty"`
	City       string `xml:"city,omitempty"`
	State      string `xml:"state,omitempty"`
	PostalCode string `xml:"postalcode,omitempty"`
	Country    string `xml:"country"`
	Phone      string `xml:"phone,omitempty"`
	Email      string `xml:"email,omitempty"`
}

type transactionDetail struct {
	PayType payType `xml:"payType"`
}

type payType struct {
	Pix    *pixPayType    `xml:"pix,omitempty"`
	OnFile *onFilePayType `xml:"onFile,omitempty"`
}

type pixPayType struct {
	ExpirationTime int `xml:"expirationTime"`
}

// onFilePayType references a registered consumer and card token instead of
// the raw card number.
type onFilePayType struct {
	CustomerID string `xml:"customerId"`
	Token      string `xml:"token"`
	CVVNumber  string `xml:"cvvNumber"`
}

type payment struct {
	ChargeTotal       string             `xml:"chargeTotal"`
	CurrencyCode      string             `xml:"currencyCode"`
	CreditInstallment *creditInstallment `xml:"creditInstallment,omitempty"`
}

type creditInstallment struct {
	NumberOfInstallments int    `xml:"numberOfInstallments"`
	ChargeInterest       string `xml:"chargeInterest"`
}

// transactionResponse is the flat response shared by the direct and
// tokenized sale paths. ResponseCode 0 means approved.
type transactionResponse struct {
	XMLName          xml.Name `xml:"transaction-response"`
	AuthCode         string   `xml:"authCode"`
	OrderID          string   `xml:"orderID"`
	ReferenceNum     string   `xml:"referenceNum"`
	TransactionID    string   `xml:"transactionID"`
	ResponseCode     string   `xml:"responseCode"`
	ResponseMessage  string   `xml:"responseMessage"`
	ProcessorCode    string   `xml:"processorCode"`
	ProcessorMessage string   `xml:"processorMessage"`
	ErrorMessage     string   `xml:"errorMessage"`
	PixEMV           string   `xml:"emv"`
	PixImage         string   `xml:"imageBase64"`
	PixURL           string   `xml:"onlineDebitUrl"`
}

// apiRequest is the envelope for consumer registration and card
// tokenization commands.
type apiRequest struct {
	XMLName      xml.Name     `xml:"api-request"`
	Verification Verification `xml:"verification"`
	Command      string       `xml:"command"`
	Request      apiPayload   `xml:"request"`
}

type apiPayload struct {
	// add-consumer
	CustomerIDExt string `xml:"customerIdExt,omitempty"`
	FirstName     string `xml:"firstName,omitempty"`
	LastName      string `xml:"lastName,omitempty"`
	Phone         string `xml:"phone,omitempty"`
	Email         string `xml:"email,omitempty"`

	// add-card-onfile
	CustomerID       string `xml:"customerId,omitempty"`
	CreditCardNumber string `xml:"creditCardNumber,omitempty"`
	ExpirationMonth  string `xml:"expirationMonth,omitempty"`
	ExpirationYear   string `xml:"expirationYear,omitempty"`
	BillingName      string `xml:"billingName,omitempty"`
}

type apiResponse struct {
	XMLName      xml.Name  `xml:"api-response"`
	ErrorCode    string    `xml:"errorCode"`
	ErrorMessage string    `xml:"errorMessage"`
	Command      string    `xml:"command"`
	Result       apiResult `xml:"result"`
}

type apiResult struct {
	CustomerID string `xml:"customerId"`
	Token      string `xml:"token"`
}

// rapiRequest is the reports envelope used only by the health check.
type rapiRequest struct {
	XMLName      xml.Name     `xml:"rapi-request"`
	Verification Verification `xml:"verification"`
	Command      string       `xml:"command"`
	Request      rapiFilter   `xml:"request"`
}

type rapiFilter struct {
	FilterOptions rapiFilterOptions `xml:"filterOptions"`
}

type rapiFilterOptions struct {
	TransactionID string `xml:"transactionId,omitempty"`
	Period        string `xml:"period,omitempty"`
}

type rapiResponse struct {
	XMLName   xml.Name `xml:"rapi-response"`
	ErrorCode string   `xml:"header>errorCode"`
	ErrorMsg  string   `xml:"header>errorMsg"`
}
