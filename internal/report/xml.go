package report

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/Dan9191/rent-ledger/internal/models"
	"github.com/Dan9191/rent-ledger/internal/utils"
)

// ErrBadSignature is returned when an exported document was altered or signed with
// another secret
var ErrBadSignature = errors.New("report signature mismatch")

const signatureAlgorithm = "HMAC-SHA256"

// Document is the content of a yearly ledger export
type Document struct {
	TeamID        string
	Year          int
	GeneratedAt   time.Time
	Months        []models.MonthlyResult
	Summary       models.YearSummary
	Profitability models.ProfitabilityReport
}

// Exporter writes signed XML ledger reports
type Exporter struct {
	secret string
}

// NewExporter creates an exporter signing with secret
func NewExporter(secret string) *Exporter {
	return &Exporter{secret: secret}
}

// Build creates the signed XML document
func (e *Exporter) Build(d Document) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("rentLedger")
	root.CreateAttr("version", "1")

	body := root.CreateElement("body")
	body.CreateAttr("team", d.TeamID)
	body.CreateAttr("year", strconv.Itoa(d.Year))
	body.CreateAttr("generatedAt", d.GeneratedAt.Format(time.RFC3339))

	months := body.CreateElement("months")
	for _, m := range d.Months {
		el := months.CreateElement("month")
		el.CreateAttr("number", strconv.Itoa(m.Month))
		el.CreateAttr("activeLeases", strconv.Itoa(m.ActiveLeases))
		amount(el, "expected", m.TotalExpected)
		amount(el, "collected", m.TotalCollected)
		amount(el, "pending", m.PendingAmount)
		amount(el, "future", m.Future)
		amount(el, "overdue", m.OverdueAmount).CreateAttr("count", strconv.Itoa(m.OverdueCount))
		amount(el, "variance", m.PaymentVariance)
		el.CreateElement("collectionRate").SetText(strconv.Itoa(m.CollectionRate))
		el.CreateElement("avgDelayDays").SetText(strconv.Itoa(m.AvgDelayDays))
	}

	s := d.Summary
	summary := body.CreateElement("summary")
	amount(summary, "expected", s.TotalExpected)
	amount(summary, "collected", s.TotalCollected)
	amount(summary, "pending", s.PendingAmount)
	amount(summary, "future", s.Future)
	amount(summary, "overdue", s.OverdueAmount).CreateAttr("count", strconv.Itoa(s.OverdueCount))
	amount(summary, "expenses", s.TotalExpenses)
	amount(summary, "netIncome", s.NetIncome)
	summary.CreateElement("collectionRate").SetText(strconv.Itoa(s.CollectionRate))
	summary.CreateElement("avgDelayDays").SetText(strconv.Itoa(s.AvgDelayDays))

	profit := body.CreateElement("profitability")
	for _, p := range d.Profitability.Properties {
		el := profit.CreateElement("property")
		el.CreateAttr("id", p.PropertyID)
		el.CreateAttr("address", p.PropertyAddress)
		profitability(el, p)
	}
	profitability(profit.CreateElement("unattributed"), d.Profitability.Unattributed)

	sig := root.CreateElement("signature")
	sig.CreateAttr("algorithm", signatureAlgorithm)
	sig.SetText(utils.GenerateHMAC(canonical(body), e.secret))
	return doc
}

func amount(parent *etree.Element, tag string, d decimal.Decimal) *etree.Element {
	el := parent.CreateElement(tag)
	el.SetText(d.StringFixed(2))
	return el
}

func profitability(el *etree.Element, p models.PropertyProfitability) {
	amount(el, "revenue", p.TotalRevenue)
	amount(el, "expenses", p.TotalExpenses)
	amount(el, "netProfit", p.NetProfit)
	amount(el, "margin", p.ProfitMargin)
}

// WriteTo writes the indented, signed document to w
func (e *Exporter) WriteTo(w io.Writer, d Document) (int64, error) {
	doc := e.Build(d)
	doc.Indent(2)
	n, err := doc.WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("failed to write report: %w", err)
	}
	return n, nil
}

// canonical flattens an element into a whitespace independent form for signing
func canonical(el *etree.Element) string {
	var b strings.Builder
	writeCanonical(&b, el, "")
	return b.String()
}

func writeCanonical(b *strings.Builder, el *etree.Element, path string) {
	path = path + "/" + el.Tag
	attrs := make([]string, 0, len(el.Attr))
	for _, a := range el.Attr {
		attrs = append(attrs, a.Key+"="+a.Value)
	}
	sort.Strings(attrs)
	fmt.Fprintf(b, "%s[%s]=%s\n", path, strings.Join(attrs, ","), strings.TrimSpace(el.Text()))
	for _, child := range el.ChildElements() {
		writeCanonical(b, child, path)
	}
}

// Verify checks the signature of an exported document
func (e *Exporter) Verify(raw []byte) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return fmt.Errorf("failed to parse report: %w", err)
	}
	body := doc.FindElement("/rentLedger/body")
	sig := doc.FindElement("/rentLedger/signature")
	if body == nil || sig == nil {
		return fmt.Errorf("report is missing body or signature: %w", ErrBadSignature)
	}
	if sig.SelectAttrValue("algorithm", "") != signatureAlgorithm {
		return fmt.Errorf("unsupported algorithm %q: %w", sig.SelectAttrValue("algorithm", ""), ErrBadSignature)
	}
	if !utils.VerifyHMAC(canonical(body), strings.TrimSpace(sig.Text()), e.secret) {
		return ErrBadSignature
	}
	return nil
}

// Decode reads the monthly rows and profitability back from an exported document
func Decode(raw []byte) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	body := doc.FindElement("/rentLedger/body")
	if body == nil {
		return nil, fmt.Errorf("report body not found")
	}

	d := &Document{TeamID: body.SelectAttrValue("team", "")}
	var err error
	if d.Year, err = strconv.Atoi(body.SelectAttrValue("year", "")); err != nil {
		return nil, fmt.Errorf("failed to parse year: %w", err)
	}
	if d.GeneratedAt, err = time.Parse(time.RFC3339, body.SelectAttrValue("generatedAt", "")); err != nil {
		return nil, fmt.Errorf("failed to parse generatedAt: %w", err)
	}

	r := reader{}
	for _, el := range body.FindElements("./months/month") {
		m := models.MonthlyResult{
			Month:           r.intAttr(el, "number"),
			ActiveLeases:    r.intAttr(el, "activeLeases"),
			TotalExpected:   r.amount(el, "expected"),
			TotalCollected:  r.amount(el, "collected"),
			PendingAmount:   r.amount(el, "pending"),
			Future:          r.amount(el, "future"),
			OverdueAmount:   r.amount(el, "overdue"),
			PaymentVariance: r.amount(el, "variance"),
			CollectionRate:  r.intText(el, "collectionRate"),
			AvgDelayDays:    r.intText(el, "avgDelayDays"),
		}
		if o := el.SelectElement("overdue"); o != nil {
			m.OverdueCount = r.intAttr(o, "count")
		}
		d.Months = append(d.Months, m)
	}

	if s := body.SelectElement("summary"); s != nil {
		d.Summary = models.YearSummary{
			Year:           d.Year,
			TotalExpected:  r.amount(s, "expected"),
			TotalCollected: r.amount(s, "collected"),
			PendingAmount:  r.amount(s, "pending"),
			Future:         r.amount(s, "future"),
			OverdueAmount:  r.amount(s, "overdue"),
			TotalExpenses:  r.amount(s, "expenses"),
			NetIncome:      r.amount(s, "netIncome"),
			CollectionRate: r.intText(s, "collectionRate"),
			AvgDelayDays:   r.intText(s, "avgDelayDays"),
		}
		if o := s.SelectElement("overdue"); o != nil {
			d.Summary.OverdueCount = r.intAttr(o, "count")
		}
	}

	d.Profitability = models.ProfitabilityReport{Year: d.Year, Properties: []models.PropertyProfitability{}}
	for _, el := range body.FindElements("./profitability/property") {
		p := r.profitability(el)
		p.PropertyID = el.SelectAttrValue("id", "")
		p.PropertyAddress = el.SelectAttrValue("address", "")
		d.Profitability.Properties = append(d.Profitability.Properties, p)
	}
	if u := body.FindElement("./profitability/unattributed"); u != nil {
		d.Profitability.Unattributed = r.profitability(u)
	}

	if r.err != nil {
		return nil, r.err
	}
	return d, nil
}

// reader keeps the first conversion error so Decode can read fields without checks
type reader struct {
	err error
}

func (r *reader) amount(parent *etree.Element, tag string) decimal.Decimal {
	el := parent.SelectElement(tag)
	if el == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimSpace(el.Text()))
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("failed to parse %s: %w", tag, err)
	}
	return d
}

func (r *reader) intText(parent *etree.Element, tag string) int {
	el := parent.SelectElement(tag)
	if el == nil {
		return 0
	}
	return r.atoi(tag, el.Text())
}

func (r *reader) intAttr(el *etree.Element, key string) int {
	return r.atoi(key, el.SelectAttrValue(key, "0"))
}

func (r *reader) atoi(name, s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return n
}

func (r *reader) profitability(el *etree.Element) models.PropertyProfitability {
	return models.PropertyProfitability{
		TotalRevenue:  r.amount(el, "revenue"),
		TotalExpenses: r.amount(el, "expenses"),
		NetProfit:     r.amount(el, "netProfit"),
		ProfitMargin:  r.amount(el, "margin"),
	}
}
