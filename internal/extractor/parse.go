package extractor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// Layout names the markup features the extractor keys on.
type Layout struct {
	Shape Shape
	// TableTitle matches the table's title attribute. When empty, or when no
	// table carries the title, TableLabel is searched for in cell text.
	TableTitle string
	TableLabel string
	// PriceClass flags right-aligned price cells.
	PriceClass   string
	ProductLabel string
	SellingLabel string
	BuyingLabel  string
}

// Parse decodes an HTML document and extracts the raw fields described by
// layout. contentType is the response Content-Type, used for charset detection.
func Parse(r io.Reader, contentType string, layout Layout) (Raw, error) {
	doc, err := decodeDocument(r, contentType)
	if err != nil {
		return Raw{}, err
	}
	return layout.extract(doc)
}

// decodeDocument converts the body to UTF-8 and parses it. The charset comes
// from a BOM, the Content-Type header or a <meta> declaration; a body with
// none of these is read as UTF-8 rather than the sniffer's windows-1252 guess.
func decodeDocument(r io.Reader, contentType string) (*html.Node, error) {
	br := bufio.NewReader(r)
	peek, err := br.Peek(1024)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, &ParseError{Element: "document", Err: err}
	}

	var body io.Reader = br
	enc, name, certain := charset.DetermineEncoding(peek, contentType)
	if name != "utf-8" && (certain || name != "windows-1252") {
		body = transform.NewReader(br, enc.NewDecoder())
	}

	doc, err := html.Parse(body)
	if err != nil {
		return nil, &ParseError{Element: "document", Err: err}
	}
	return doc, nil
}

func (l Layout) extract(doc *html.Node) (Raw, error) {
	table := l.findTable(doc)
	if table == nil {
		return Raw{}, &ParseError{Element: l.tableDescription()}
	}

	switch l.Shape {
	case ShapeSingle:
		return l.extractSingle(table)
	case ShapeDual:
		return l.extractDual(table), nil
	default:
		return Raw{}, fmt.Errorf("unknown extraction shape %q", l.Shape)
	}
}

func (l Layout) tableDescription() string {
	if l.TableTitle != "" {
		return fmt.Sprintf("table with title %q", l.TableTitle)
	}
	return fmt.Sprintf("table containing %q", l.TableLabel)
}

func (l Layout) findTable(doc *html.Node) *html.Node {
	tables := findAll(doc, atom.Table)
	if l.TableTitle != "" {
		for _, t := range tables {
			if attr(t, "title") == l.TableTitle {
				return t
			}
		}
	}
	if l.TableLabel != "" {
		for _, t := range tables {
			for _, cell := range append(findAll(t, atom.Td), findAll(t, atom.Th)...) {
				if strings.Contains(textContent(cell), l.TableLabel) {
					return t
				}
			}
		}
	}
	return nil
}

// extractSingle reads the rightmost price cell of the product row. The row
// lists weight-denominated prices in ascending order; the last one is wanted.
func (l Layout) extractSingle(table *html.Node) (Raw, error) {
	raw := Raw{Shape: ShapeSingle}

	var row *html.Node
	for _, tr := range findAll(table, atom.Tr) {
		cs := cells(tr)
		if len(cs) > 0 && strings.Contains(textContent(cs[0]), l.ProductLabel) {
			row = tr
			break
		}
	}
	if row == nil {
		return raw, &ParseError{Element: fmt.Sprintf("row labelled %q", l.ProductLabel)}
	}

	prices := l.priceCells(row)
	if len(prices) == 0 {
		return raw, &ParseError{Element: fmt.Sprintf("%q cell in row %q", l.PriceClass, l.ProductLabel)}
	}

	text := strings.TrimSpace(textContent(prices[len(prices)-1]))
	raw.Price = strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	return raw, nil
}

// extractDual scans every row for the selling and buying labels. The price
// cell also holds a button label as a separate text node, so only its first
// fragment is kept. Missing fields stay empty for the normalizer to reject.
func (l Layout) extractDual(table *html.Node) Raw {
	raw := Raw{Shape: ShapeDual}
	var sellingHits, buyingHits int

	for _, tr := range findAll(table, atom.Tr) {
		rowText := strings.Join(strippedStrings(tr), "")

		if strings.Contains(rowText, l.SellingLabel) {
			if v, ok := l.firstPrice(tr); ok {
				raw.Selling = v
				sellingHits++
			}
		}
		if strings.Contains(rowText, l.BuyingLabel) {
			if v, ok := l.firstPrice(tr); ok {
				raw.Buying = v
				buyingHits++
			}
		}
	}

	if sellingHits > 1 {
		raw.Duplicates = append(raw.Duplicates, l.SellingLabel)
	}
	if buyingHits > 1 {
		raw.Duplicates = append(raw.Duplicates, l.BuyingLabel)
	}
	return raw
}

func (l Layout) firstPrice(row *html.Node) (string, bool) {
	prices := l.priceCells(row)
	if len(prices) == 0 {
		return "", false
	}
	fragments := strippedStrings(prices[0])
	if len(fragments) == 0 {
		return "", true
	}
	return fragments[0], true
}

func (l Layout) priceCells(row *html.Node) []*html.Node {
	var out []*html.Node
	for _, c := range cells(row) {
		if c.DataAtom == atom.Td && hasClass(c, l.PriceClass) {
			out = append(out, c)
		}
	}
	return out
}

func findAll(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == a {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// cells returns the td/th children of a row.
func cells(tr *html.Node) []*html.Node {
	var out []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
			out = append(out, c)
		}
	}
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// strippedStrings returns every non-blank text node under n, trimmed, in
// document order.
func strippedStrings(n *html.Node) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				out = append(out, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}
