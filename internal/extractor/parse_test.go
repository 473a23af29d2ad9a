package extractor

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

func dualLayout() Layout {
	return Layout{
		Shape:        ShapeDual,
		TableTitle:   "新臺幣黃金牌價",
		PriceClass:   "text-right",
		SellingLabel: "本行賣出",
		BuyingLabel:  "本行買進",
	}
}

func singleLayout() Layout {
	return Layout{
		Shape:        ShapeSingle,
		TableTitle:   "新臺幣黃金牌價",
		PriceClass:   "text-right",
		ProductLabel: "黃金存摺",
	}
}

func openFixture(t *testing.T, name string) *os.File {
	t.Helper()
	f, err := os.Open("testdata/" + name)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestParseDual(t *testing.T) {
	raw, err := Parse(openFixture(t, "gold_dual.html"), "text/html; charset=utf-8", dualLayout())
	if err != nil {
		t.Fatalf("解析不应报错: %v", err)
	}
	if raw.Shape != ShapeDual {
		t.Fatalf("shape = %q", raw.Shape)
	}
	if raw.Selling != "4,200" {
		t.Fatalf("selling = %q, want 4,200", raw.Selling)
	}
	if raw.Buying != "4,150" {
		t.Fatalf("buying = %q, want 4,150", raw.Buying)
	}
	if len(raw.Duplicates) != 0 {
		t.Fatalf("unexpected duplicates %v", raw.Duplicates)
	}
}

func TestParseSingleTakesRightmostPriceCell(t *testing.T) {
	raw, err := Parse(openFixture(t, "gold_single.html"), "text/html", singleLayout())
	if err != nil {
		t.Fatalf("解析不应报错: %v", err)
	}
	if raw.Price != "4200000" {
		t.Fatalf("price = %q, want 4200000", raw.Price)
	}
}

func TestParseMissingTable(t *testing.T) {
	page := `<html><body><table title="其他"><tr><td>本行賣出</td><td class="text-right">1</td></tr></table></body></html>`
	_, err := Parse(strings.NewReader(page), "text/html", dualLayout())

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("缺少表格应返回 ParseError, got %v", err)
	}
	if !strings.Contains(perr.Element, "新臺幣黃金牌價") {
		t.Fatalf("error should name the table, got %q", perr.Element)
	}
}

func TestParseTableByLabelFallback(t *testing.T) {
	page := `<table><tr><td>匯率</td></tr></table>
<table><tr><td>黃金存摺</td><td class="text-right">3,999</td></tr></table>`
	layout := singleLayout()
	layout.TableTitle = ""
	layout.TableLabel = "黃金存摺"

	raw, err := Parse(strings.NewReader(page), "text/html", layout)
	if err != nil {
		t.Fatalf("label lookup should find the table: %v", err)
	}
	if raw.Price != "3999" {
		t.Fatalf("price = %q", raw.Price)
	}
}

func TestParseSingleMissingRowOrCell(t *testing.T) {
	cases := map[string]string{
		"row":  `<table title="新臺幣黃金牌價"><tr><td>黃金條塊</td><td class="text-right">1</td></tr></table>`,
		"cell": `<table title="新臺幣黃金牌價"><tr><td>黃金存摺</td><td>4,200</td></tr></table>`,
	}
	for name, page := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(page), "text/html", singleLayout())
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
		})
	}
}

func TestParseDualMissingFieldIsEmpty(t *testing.T) {
	page := `<table title="新臺幣黃金牌價">
<tr><td>本行賣出</td><td class="text-right">4,200<a>買進</a></td></tr>
<tr><td>其他</td><td class="text-right">1</td></tr>
</table>`
	raw, err := Parse(strings.NewReader(page), "text/html", dualLayout())
	if err != nil {
		t.Fatalf("missing field is not a parse error: %v", err)
	}
	if raw.Selling != "4,200" || raw.Buying != "" {
		t.Fatalf("unexpected raw %+v", raw)
	}
}

func TestParseDualDuplicateLastMatchWins(t *testing.T) {
	page := `<table title="新臺幣黃金牌價">
<tr><td>本行賣出</td><td class="text-right">4,100</td></tr>
<tr><td>本行賣出</td><td class="text-right">4,200</td></tr>
<tr><td>本行買進</td><td class="text-right">4,150</td></tr>
</table>`
	raw, err := Parse(strings.NewReader(page), "text/html", dualLayout())
	if err != nil {
		t.Fatal(err)
	}
	if raw.Selling != "4,200" {
		t.Fatalf("last selling row should win, got %q", raw.Selling)
	}
	if len(raw.Duplicates) != 1 || raw.Duplicates[0] != "本行賣出" {
		t.Fatalf("duplicates = %v", raw.Duplicates)
	}
}

func big5Page(t *testing.T, head string) *bytes.Buffer {
	t.Helper()
	page := `<html><head>` + head + `</head><body><table title="新臺幣黃金牌價">
<tr><td>本行賣出</td><td class="text-right">4,200</td></tr>
<tr><td>本行買進</td><td class="text-right">4,150</td></tr>
</table></body></html>`

	var buf bytes.Buffer
	w := transform.NewWriter(&buf, traditionalchinese.Big5.NewEncoder())
	if _, err := w.Write([]byte(page)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func TestParseBig5Body(t *testing.T) {
	raw, err := Parse(big5Page(t, ""), "text/html; charset=big5", dualLayout())
	if err != nil {
		t.Fatalf("big5 body should decode: %v", err)
	}
	if raw.Selling != "4,200" || raw.Buying != "4,150" {
		t.Fatalf("unexpected raw %+v", raw)
	}
}

func TestParseBig5DeclaredByMetaOnly(t *testing.T) {
	raw, err := Parse(big5Page(t, `<meta charset="big5">`), "text/html", dualLayout())
	if err != nil {
		t.Fatalf("meta charset 应被采用: %v", err)
	}
	if raw.Selling != "4,200" || raw.Buying != "4,150" {
		t.Fatalf("unexpected raw %+v", raw)
	}

	raw, err = Parse(big5Page(t, `<meta http-equiv="Content-Type" content="text/html; charset=big5">`), "", dualLayout())
	if err != nil {
		t.Fatalf("http-equiv charset 应被采用: %v", err)
	}
	if raw.Selling != "4,200" {
		t.Fatalf("unexpected raw %+v", raw)
	}
}

func TestParseUndeclaredUTF8IsNotReadAsWindows1252(t *testing.T) {
	page := `<html><body><table title="新臺幣黃金牌價">
<tr><td>本行賣出</td><td class="text-right">4,200</td></tr>
<tr><td>本行買進</td><td class="text-right">4,150</td></tr>
</table></body></html>`

	raw, err := Parse(strings.NewReader(page), "", dualLayout())
	if err != nil {
		t.Fatalf("utf-8 body without declaration should parse: %v", err)
	}
	if raw.Selling != "4,200" || raw.Buying != "4,150" {
		t.Fatalf("unexpected raw %+v", raw)
	}
}
