package service

import (
	"math"
	"strings"

	"checkout-service/internal/models"
)

// localDeliveryRate is the flat shipping charged for deliveries inside the
// pharmacy's own region, overriding whatever base value the order carries.
const localDeliveryRate = 7.00

// localDeliveryCities are the municipalities served by the pharmacy's own
// couriers. Matched case-insensitively, with and without accents.
var localDeliveryCities = map[string]bool{
	"POÇOS DE CALDAS":  true,
	"POCOS DE CALDAS":  true,
	"ÁGUAS DA PRATA":   true,
	"AGUAS DA PRATA":   true,
	"ANDRADAS":         true,
	"BANDEIRA DO SUL":  true,
	"BOTELHOS":         true,
	"CALDAS":           true,
	"CAMPESTRE":        true,
}

// ChargeInput carries everything the charge computation needs. DeliveryCity
// is empty when no address with a city is known yet.
type ChargeInput struct {
	TotalValue     float64
	ShippingValue  float64
	ShippingType   string
	DeliveryMethod string
	DiscountType   string
	DiscountValue  float64
	DeliveryCity   string
}

// ComputeCharge returns the final amount to charge for an order. Pure and
// deterministic; negative results are clamped to zero.
func ComputeCharge(in ChargeInput) float64 {
	shipping := ResolveShipping(in.DeliveryMethod, in.ShippingType, in.ShippingValue, in.DeliveryCity)
	discount := DiscountAmount(in.TotalValue, in.DiscountType, in.DiscountValue)

	amount := Round2(in.TotalValue - discount + shipping)
	if amount < 0 {
		amount = 0
	}
	return amount
}

// ResolveShipping resolves the effective shipping value. The local-city flat
// rate takes precedence over the stored base value whenever an address with
// a city is known.
func ResolveShipping(deliveryMethod, shippingType string, baseShipping float64, deliveryCity string) float64 {
	if deliveryMethod == models.DeliveryMethodPickup {
		return 0
	}
	if shippingType == models.ShippingTypeFree {
		return 0
	}
	if deliveryCity != "" && localDeliveryCities[strings.ToUpper(strings.TrimSpace(deliveryCity))] {
		return localDeliveryRate
	}
	return baseShipping
}

// DiscountAmount converts a discount into an absolute value. PERCENTAGE
// applies to the item subtotal only, never to shipping.
func DiscountAmount(totalValue float64, discountType string, discountValue float64) float64 {
	switch discountType {
	case models.DiscountTypePercentage:
		return Round2(totalValue * discountValue / 100)
	case models.DiscountTypeFixed:
		return discountValue
	default:
		return 0
	}
}

// Round2 rounds to 2 decimal places using standard rounding.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// AmountInCents converts a charge into the integer cents the synchronous
// gateway expects, rounding the amount up to the next whole unit first.
func AmountInCents(amount float64) int64 {
	return int64(math.Ceil(amount)) * 100
}
