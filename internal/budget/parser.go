// Package budget turns free-text budget answers into a normalized amount.
package budget

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed rates.yaml
var defaultRates []byte

// ErrParse is returned when the text holds no amount at all
var ErrParse = errors.New("no budget amount found")

// ReferenceUnit tags amounts typed without any currency
const ReferenceUnit = "$"

var thousands = regexp.MustCompile(`(\d),(\d{3})(\D|$)`)

// Budget is a parsed budget answer
type Budget struct {
	Raw        string          `json:"raw"`
	Amount     decimal.Decimal `json:"amount"`
	Unit       string          `json:"unit"`
	Normalized decimal.Decimal `json:"normalized"`
}

// BelowMinimum reports whether the normalized amount is under min
func (b Budget) BelowMinimum(min decimal.Decimal) bool {
	return b.Normalized.LessThan(min)
}

// String renders the amount as the user wrote it, e.g. "€20.00" or "25.00 USD"
func (b Budget) String() string {
	if isCode(b.Unit) {
		return b.Amount.StringFixed(2) + " " + b.Unit
	}
	return b.Unit + b.Amount.StringFixed(2)
}

func isCode(unit string) bool {
	return len(unit) == 3 && isLetters(unit)
}

func isLetters(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}

// alternation quotes tokens longest first so "C$" wins over "$". An empty
// set yields a pattern that never matches.
func alternation(tokens []string) string {
	if len(tokens) == 0 {
		return `\b\B`
	}

	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = regexp.QuoteMeta(tok)
	}

	sort.Slice(quoted, func(i, j int) bool {
		if len(quoted[i]) != len(quoted[j]) {
			return len(quoted[i]) > len(quoted[j])
		}
		return quoted[i] < quoted[j]
	})
	return strings.Join(quoted, "|")
}

type rateFile struct {
	Reference  string `yaml:"reference"`
	Currencies []struct {
		Code    string   `yaml:"code"`
		Symbols []string `yaml:"symbols"`
		Rate    string   `yaml:"rate"`
	} `yaml:"currencies"`
}

// Parser recognises the currencies of one rate table
type Parser struct {
	rates   map[string]decimal.Decimal
	pattern *regexp.Regexp
}

// NewParser builds a parser from a YAML rate table
func NewParser(data []byte) (*Parser, error) {
	var rf rateFile

	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("decode rate table: %w", err)
	}

	rates := make(map[string]decimal.Decimal)

	for _, c := range rf.Currencies {
		rate, err := decimal.NewFromString(c.Rate)

		if err != nil {
			return nil, fmt.Errorf("currency %s: invalid rate %q: %w", c.Code, c.Rate, err)
		}

		if !rate.IsPositive() {
			return nil, fmt.Errorf("currency %s: rate must be positive", c.Code)
		}

		rates[strings.ToUpper(c.Code)] = rate
		for _, sym := range c.Symbols {
			rates[strings.ToUpper(sym)] = rate
		}
	}

	if _, ok := rates[ReferenceUnit]; !ok {
		rates[ReferenceUnit] = decimal.NewFromInt(1)
	}

	var codes, symbols []string
	for tok := range rates {
		if tok == "" {
			continue
		}
		if isLetters(tok) {
			codes = append(codes, tok)
		} else {
			symbols = append(symbols, tok)
		}
	}

	// Codes must stand alone so "30 audience" is not read as AUD. RE2 has
	// no lookaround, so the neighbouring non-letter is consumed instead.
	codeAlt, symAlt := alternation(codes), alternation(symbols)
	prefix := `(?:(?:^|[^a-z])(` + codeAlt + `)|(` + symAlt + `))\s*`
	suffix := `\s*(?:(` + codeAlt + `)(?:[^a-z]|$)|(` + symAlt + `))`
	pattern, err := regexp.Compile(`(?i)(?:` + prefix + `)?(\d+)(?:[.,](\d+))?(?:` + suffix + `)?`)

	if err != nil {
		return nil, fmt.Errorf("compile budget pattern: %w", err)
	}

	return &Parser{rates: rates, pattern: pattern}, nil
}

// DefaultParser uses the embedded rate table
func DefaultParser() *Parser {
	p, err := NewParser(defaultRates)

	if err != nil {
		panic(fmt.Sprintf("embedded rate table: %v", err))
	}
	return p
}

// LoadParser reads the rate table at path, or the embedded one when path is empty
func LoadParser(path string) (*Parser, error) {
	if path == "" {
		return DefaultParser(), nil
	}

	data, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("read rate table: %w", err)
	}
	return NewParser(data)
}

// Parse extracts the first amount in text. A comma followed by one or two
// digits is a decimal separator; amounts with more than two decimals are
// rounded to cents. Amounts below any minimum are returned as-is; callers
// decide what to do with them.
func (p *Parser) Parse(text string) (Budget, error) {
	clean := collapseThousands(strings.TrimSpace(text))
	m := p.pattern.FindStringSubmatch(clean)

	if m == nil {
		return Budget{}, fmt.Errorf("%w in %q", ErrParse, text)
	}

	digits := m[3]
	if m[4] != "" {
		digits += "." + m[4]
	}

	amount, err := decimal.NewFromString(digits)

	if err != nil {
		return Budget{}, fmt.Errorf("%w in %q", ErrParse, text)
	}
	amount = amount.Round(2)

	unit := ReferenceUnit
	for _, g := range []string{m[1], m[2], m[5], m[6]} {
		if g != "" {
			unit = strings.ToUpper(g)
			break
		}
	}

	return Budget{
		Raw:        text,
		Amount:     amount,
		Unit:       unit,
		Normalized: amount.Mul(p.rates[unit]).Round(2),
	}, nil
}

// collapseThousands drops grouping commas: "1,500,000" becomes "1500000"
func collapseThousands(s string) string {
	for {
		next := thousands.ReplaceAllString(s, "$1$2$3")
		if next == s {
			return s
		}
		s = next
	}
}

// Parse uses the embedded rate table
func Parse(text string) (Budget, error) {
	return defaultParser.Parse(text)
}

var defaultParser = DefaultParser()
