package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/parivyaya/constants"
)

var itemKeys = map[string]bool{
	"date": true, "title": true, "amount": true, "currency": true,
	"category_primary": true, "category_detailed": true, "category_confidence_level": true,
}

// SanitizeRecordsJSON repairs the cosmetic mistakes services tend to make
// before strict validation: vocabulary casing, missing currency and
// confidence, numeric strings, unknown keys. It returns the cleaned document
// and a list of what it touched.
func SanitizeRecordsJSON(raw []byte, defaultCurrency string) ([]byte, []string, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}
	items, ok := doc["transactions"].([]any)
	if !ok {
		if doc["transactions"] == nil {
			doc["transactions"] = []any{}
			items = nil
		} else {
			return nil, nil, fmt.Errorf("sanitize: transactions is %T, not a list", doc["transactions"])
		}
	}
	for k := range doc {
		if k != "transactions" {
			delete(doc, k)
		}
	}

	var touched []string
	note := func(i int, what string) { touched = append(touched, fmt.Sprintf("[%d].%s", i, what)) }

	for i, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		for k := range m {
			if !itemKeys[k] {
				delete(m, k)
				note(i, k+"(unknown)")
			}
		}

		if s, ok := m["title"].(string); ok {
			m["title"] = strings.TrimSpace(s)
		}
		if s, ok := m["date"].(string); ok {
			m["date"] = strings.TrimSpace(s)
		}

		if s, ok := m["amount"].(string); ok {
			if f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64); err == nil {
				m["amount"] = f
				note(i, "amount(string)")
			}
		}

		cur, _ := m["currency"].(string)
		cur = strings.ToUpper(strings.TrimSpace(cur))
		if cur == "" {
			cur = defaultCurrency
			note(i, "currency(default)")
		}
		m["currency"] = cur

		detailed, _ := m["category_detailed"].(string)
		canon, matched := constants.CanonicalDetailed(detailed)
		if string(canon) != detailed {
			note(i, "category_detailed")
		}
		m["category_detailed"] = string(canon)

		primary, _ := m["category_primary"].(string)
		p := canonicalFrom(primary, constants.PrimaryStrings(), string(constants.PrimaryUnclassified))
		if !matched {
			p = string(constants.PrimaryUnclassified)
		}
		if p != primary {
			note(i, "category_primary")
		}
		m["category_primary"] = p

		conf, _ := m["category_confidence_level"].(string)
		c := canonicalFrom(strings.ReplaceAll(strings.TrimSpace(conf), " ", "_"), constants.ConfidenceStrings(), string(constants.ConfidenceLow))
		if c != conf {
			note(i, "category_confidence_level")
		}
		m["category_confidence_level"] = c
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, touched, nil
}

func canonicalFrom(v string, allowed []string, fallback string) string {
	v = strings.TrimSpace(v)
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return a
		}
	}
	return fallback
}
