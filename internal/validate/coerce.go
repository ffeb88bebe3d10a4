package validate

import (
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"sheetpilot/internal/schema"
)

// coerce converts a raw field value to the column's inferred type. A failure
// drops the field with a warning; it never fails the whole intent.
func coerce(raw any, t schema.Type, opts Options) (any, error) {
	switch t {
	case schema.TypeNumber:
		return coerceNumber(raw, opts.DecimalComma)
	case schema.TypeDate:
		return coerceDate(raw)
	case schema.TypeEmail:
		return coerceEmail(raw)
	case schema.TypeURL:
		return coerceURL(raw)
	case schema.TypeBoolean, schema.TypeText:
		return raw, nil
	}
	return raw, nil
}

func coerceNumber(raw any, decimalComma bool) (any, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		n, err := parseNumeric(v, decimalComma)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
	return nil, fmt.Errorf("cannot coerce %T to number", raw)
}

// parseNumeric strips currency symbols and thousands separators before
// parsing. Which separator means "decimal" is configuration, not guesswork.
func parseNumeric(raw string, decimalComma bool) (float64, error) {
	var sb strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9', r == '-', r == '+', r == '.', r == ',':
			sb.WriteRune(r)
		}
	}
	cleaned := sb.String()
	if decimalComma {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}
	if cleaned == "" || cleaned == "-" || cleaned == "+" {
		return 0, fmt.Errorf("cannot coerce %q to number", raw)
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot coerce %q to number", raw)
	}
	return n, nil
}

// coerceDate normalizes calendar dates to ISO 8601 (yyyy-mm-dd).
func coerceDate(raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("cannot coerce %T to date", raw)
	}
	t, err := schema.ParseDate(s)
	if err != nil {
		return nil, fmt.Errorf("cannot coerce %q to date", s)
	}
	return t.Format("2006-01-02"), nil
}

func coerceEmail(raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("cannot coerce %T to email", raw)
	}
	s = strings.TrimSpace(s)
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return nil, fmt.Errorf("%q is not a valid email address", s)
	}
	local, domain, found := strings.Cut(addr.Address, "@")
	if !found || local == "" || domain == "" {
		return nil, fmt.Errorf("%q is not a valid email address", s)
	}
	return addr.Address, nil
}

func coerceURL(raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("cannot coerce %T to url", raw)
	}
	s = strings.TrimSpace(s)
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute URL", s)
	}
	return s, nil
}
