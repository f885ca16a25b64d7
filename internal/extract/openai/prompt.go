package openai

import (
	"strings"

	"github.com/joseph-ayodele/parivyaya/constants"
)

const userInstruction = "Extract all transactions from this PDF document. Pay close attention to tables, columns, and formatting."

func buildSystemPrompt(defaultCurrency string) string {
	quote := func(vals []string) string {
		q := make([]string, len(vals))
		for i, v := range vals {
			q[i] = `"` + v + `"`
		}
		return strings.Join(q, ", ")
	}

	parts := []string{
		"You are a financial transaction extraction expert.",
		"Analyze the attached bank statement, receipt, or invoice and extract ALL transactions, keeping the original order.",
		`Return ONLY JSON of the form {"transactions": [...]} matching the JSON Schema provided.`,
		"For each transaction give: date (YYYY-MM-DD, a past date), title, amount (positive for expenses and debits, negative for income and credits),",
		"currency (3-letter ISO 4217 code; default to " + defaultCurrency + " if uncertain),",
		"category_primary, category_detailed and category_confidence_level.",
		"category_primary must be one of: " + quote(constants.PrimaryStrings()) + ".",
		"category_detailed must be one of: " + quote(constants.DetailedStrings()) + ".",
		`Dine out, Travel, Shopping, Home+, Subscriptions, Gifts and Recreational are "Luxury". Transfers is "N/A". Unclassified is "Unclassified". Everything else is "Essential".`,
		"category_confidence_level must be one of: " + quote(constants.ConfidenceStrings()) + ", reflecting how clear the categorization is.",
		"Never output null. Handle multi-column layouts and complex tables.",
	}
	return strings.Join(parts, " ")
}
