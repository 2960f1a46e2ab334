package models

import (
	"strings"
	"testing"
)

// =============================================================================
// MerchantInput validation
// =============================================================================

func validInput() MerchantInput {
	return MerchantInput{
		MerchantLegalName:        "Acme Trading Private Limited",
		RegisteredAddress:        "42 Commercial Street, Bangalore, KA 560001",
		DeclaredBusinessType:     "Retail - Apparel",
		DeclaredProductsServices: []string{"clothing", "accessories"},
		WebsiteURL:               "https://acme.example.com",
		MerchantDisplayName:      "Acme",
	}
}

func TestMerchantInputValid(t *testing.T) {
	in := validInput()
	if err := in.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestMerchantInputInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MerchantInput)
	}{
		{"empty legal name", func(m *MerchantInput) { m.MerchantLegalName = "" }},
		{"legal name too long", func(m *MerchantInput) { m.MerchantLegalName = strings.Repeat("x", 501) }},
		{"short address", func(m *MerchantInput) { m.RegisteredAddress = "short" }},
		{"empty business type", func(m *MerchantInput) { m.DeclaredBusinessType = "" }},
		{"no products", func(m *MerchantInput) { m.DeclaredProductsServices = nil }},
		{"no website", func(m *MerchantInput) { m.WebsiteURL = "  " }},
		{"empty display name", func(m *MerchantInput) { m.MerchantDisplayName = "" }},
		{"bad country code", func(m *MerchantInput) {
			m.OptionalData = &OptionalData{CountryOfIncorporation: "IND"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			if err := in.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
