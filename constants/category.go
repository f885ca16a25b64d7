package constants

import (
	"strings"
)

// PrimaryCategory is the first-level classification of a record.
type PrimaryCategory string

const (
	PrimaryEssential     PrimaryCategory = "Essential"
	PrimaryLuxury        PrimaryCategory = "Luxury"
	PrimaryNotApplicable PrimaryCategory = "N/A"
	PrimaryUnclassified  PrimaryCategory = "Unclassified"
)

// DetailedCategory is the second-level classification of a record.
type DetailedCategory string

const (
	FamilySupport       DetailedCategory = "Family Support"
	Groceries           DetailedCategory = "Groceries"
	Rent                DetailedCategory = "Rent"
	Utilities           DetailedCategory = "Utilities"
	Immigration         DetailedCategory = "Immigration"
	Health              DetailedCategory = "Health"
	Home                DetailedCategory = "Home"
	PersonalDevelopment DetailedCategory = "Personal Development"
	PersonalCare        DetailedCategory = "Personal Care"
	Transportation      DetailedCategory = "Transportation"
	Stationary          DetailedCategory = "Stationary"
	DineOut             DetailedCategory = "Dine out"
	Travel              DetailedCategory = "Travel"
	Shopping            DetailedCategory = "Shopping"
	HomePlus            DetailedCategory = "Home+"
	Subscriptions       DetailedCategory = "Subscriptions"
	Gifts               DetailedCategory = "Gifts"
	Recreational        DetailedCategory = "Recreational"
	Investment          DetailedCategory = "Investment"
	Liabilities         DetailedCategory = "Liabilities"
	Miscellaneous       DetailedCategory = "Miscellaneous"
	Income              DetailedCategory = "Income"
	Transfers           DetailedCategory = "Transfers"
	Unclassified        DetailedCategory = "Unclassified"
)

// Confidence is how sure the extraction service is about a classification.
type Confidence string

const (
	ConfidenceLow      Confidence = "LOW"
	ConfidenceMedium   Confidence = "MEDIUM"
	ConfidenceHigh     Confidence = "HIGH"
	ConfidenceVeryHigh Confidence = "VERY_HIGH"
)

var allPrimary = []PrimaryCategory{PrimaryEssential, PrimaryLuxury, PrimaryNotApplicable, PrimaryUnclassified}

var allDetailed = []DetailedCategory{
	FamilySupport, Groceries, Rent, Utilities, Immigration, Health, Home,
	PersonalDevelopment, PersonalCare, Transportation, Stationary, DineOut,
	Travel, Shopping, HomePlus, Subscriptions, Gifts, Recreational, Investment,
	Liabilities, Miscellaneous, Income, Transfers, Unclassified,
}

var allConfidence = []Confidence{ConfidenceLow, ConfidenceMedium, ConfidenceHigh, ConfidenceVeryHigh}

func PrimaryStrings() []string {
	result := make([]string, len(allPrimary))
	for i, c := range allPrimary {
		result[i] = string(c)
	}
	return result
}

func DetailedStrings() []string {
	result := make([]string, len(allDetailed))
	for i, c := range allDetailed {
		result[i] = string(c)
	}
	return result
}

func ConfidenceStrings() []string {
	result := make([]string, len(allConfidence))
	for i, c := range allConfidence {
		result[i] = string(c)
	}
	return result
}

// CanonicalDetailed matches input case-insensitively against the detailed vocabulary.
func CanonicalDetailed(input string) (DetailedCategory, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return Unclassified, false
	}
	for _, c := range allDetailed {
		if normalized == strings.ToLower(string(c)) {
			return c, true
		}
	}
	return Unclassified, false
}
