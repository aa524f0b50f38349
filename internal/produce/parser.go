package produce

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/harborlight/townfeed/internal/support/exception"
	"github.com/harborlight/townfeed/internal/support/logger"
)

var (
	reWhitespace = regexp.MustCompile(`\s+`)
	reDecimal    = regexp.MustCompile(`\d+(?:\.\d+)?`)
	// reIPMAbbrev matches the bare abbreviation only when delimited by
	// whitespace or string boundaries, so "shipment" never matches.
	reIPMAbbrev = regexp.MustCompile(`(?i)(?:^|\s)ipm(?:\s|$)`)
)

// Parser converts one day's raw price-list HTML into ItemRecords.
type Parser struct{}

// NewParser creates a new Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse extracts every valid price-list row from the page for the given
// date. Rows missing a name or a price cell are skipped; a price cell with
// no numeric token yields price 0 with PriceUnparsed set. When two rows on
// the same date slug to the same id, the first row wins.
func (p *Parser) Parse(html string, date string) ([]ItemRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, exception.New("parser", fmt.Sprintf("failed to parse HTML document for date %s", date), err, false, false)
	}

	var records []ItemRecord
	seen := make(map[string]struct{})

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		rawName := normalizeText(cells.Eq(0).Text())
		priceText := normalizeText(cells.Eq(1).Text())
		if rawName == "" || priceText == "" {
			return
		}

		attrText := ""
		if cells.Length() > 2 {
			attrText = normalizeText(cells.Eq(2).Text())
		}
		originText := ""
		if cells.Length() > 3 {
			originText = normalizeText(cells.Eq(3).Text())
		}

		price, unparsed := parsePrice(priceText)

		// Attribute flags scan the attributes cell and the name cell
		// together; some markers only appear in the name text.
		flagText := attrText + " " + rawName

		id := RecordID(date, rawName)
		if _, dup := seen[id]; dup {
			logger.Warnf("Duplicate slug '%s' on date %s; keeping first row, dropping '%s'.", id, date, rawName)
			return
		}
		seen[id] = struct{}{}

		records = append(records, ItemRecord{
			ID:            id,
			Date:          date,
			RawName:       rawName,
			Price:         price,
			PriceUnparsed: unparsed,
			Unit:          string(classifyUnit(priceText)),
			Organic:       isOrganic(flagText),
			IPM:           isIPM(flagText),
			Waxed:         isWaxed(flagText),
			LocalOrigin:   isLocalOrigin(originText + " " + attrText),
			Hydroponic:    isHydroponic(flagText),
			Origin:        originText,
		})
	})

	logger.Debugf("Parsed %d item records for date %s.", len(records), date)
	return records, nil
}

func normalizeText(text string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

// parsePrice extracts the first decimal number in the price cell. A cell
// with no numeric token yields 0 with the unparsed flag set, never an
// error.
func parsePrice(priceText string) (float64, bool) {
	token := reDecimal.FindString(priceText)
	if token == "" {
		return 0, true
	}
	price, err := strconv.ParseFloat(token, 64)
	if err != nil || price < 0 {
		return 0, true
	}
	return price, false
}

// classifyUnit infers the pricing unit from the price cell text.
// Priority: weight markers, then bunch, then per-item as the default.
func classifyUnit(priceText string) Unit {
	lower := strings.ToLower(priceText)
	switch {
	case strings.Contains(lower, "pound") || strings.Contains(lower, "lb"):
		return UnitPerWeight
	case strings.Contains(lower, "bunch"):
		return UnitPerBunch
	default:
		return UnitPerItem
	}
}

func isOrganic(text string) bool {
	return strings.Contains(strings.ToLower(text), "organic")
}

// isIPM accepts the full phrase or the bare abbreviation delimited by
// whitespace. Substring matching alone would hit unrelated words.
func isIPM(text string) bool {
	if strings.Contains(strings.ToLower(text), "integrated pest management") {
		return true
	}
	return reIPMAbbrev.MatchString(text)
}

func isWaxed(text string) bool {
	return strings.Contains(strings.ToLower(text), "wax")
}

func isHydroponic(text string) bool {
	return strings.Contains(strings.ToLower(text), "hydroponic")
}

// isLocalOrigin is a substring heuristic, not a numeric parse. Origin text
// expressing distance any other way is misclassified.
func isLocalOrigin(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "locally grown") ||
		strings.Contains(lower, "within 500 miles")
}
