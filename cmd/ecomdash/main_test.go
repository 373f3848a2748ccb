package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/ecomdash/dashboard"
	"github.com/spektr-org/ecomdash/schema"
)

const cliCSV = `order_id,customer_id,order_purchase_timestamp,order_delivered_customer_date,product_category_name,payment_type,payment_value
o1,c1,2018-01-01 09:00:00,2018-01-06 09:00:00,beleza_saude,credit_card,100.00
o2,c2,2018-01-02 10:30:00,2018-01-12 10:30:00,esporte_lazer,boleto,50.00
o3,c1,2018-01-15 21:00:00,,beleza_saude,credit_card,30.00
o4,c3,2018-02-03 14:00:00,2018-02-05 14:00:00,moveis_decoracao,credit_card,200.00
o5,c4,2018-02-10 08:15:00,2018-02-18 08:15:00,,voucher,10.00
o6,c2,2018-02-20 23:59:00,2018-02-27 23:59:00,beleza_saude,credit_card,75.50
`

func writeData(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte(cliCSV), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append(args, "--data", writeData(t), "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func TestPagesCommand(t *testing.T) {
	out, err := run(t, "pages", "--format", "json")
	require.NoError(t, err)

	var pages []dashboard.PageInfo
	require.NoError(t, json.Unmarshal([]byte(out), &pages))
	require.Len(t, pages, 5)
	assert.Equal(t, dashboard.PagePurchasePatterns, pages[0].Key)

	out, err = run(t, "pages")
	require.NoError(t, err)
	assert.Contains(t, out, "category-share")
}

func TestPageCommand(t *testing.T) {
	out, err := run(t, "page", "delivery", "--format", "json")
	require.NoError(t, err)
	var page dashboard.Page
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Equal(t, 6, page.Records)

	out, err = run(t, "page", "delivery", "--panel", "avg-delivery", "--format", "csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Summary,Value,Unit\n"), out)

	out, err = run(t, "page", "payments", "--format", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "Payment types")
	assert.Contains(t, out, "credit_card")

	out, err = run(t, "page", "purchase-patterns", "--start", "2018-01-02", "--end", "2018-02-03", "--format", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Equal(t, 3, page.Records)
}

func TestPageCommandErrors(t *testing.T) {
	_, err := run(t, "page", "categories", "--format", "csv")
	assert.ErrorContains(t, err, "--panel")

	_, err = run(t, "page", "nope")
	assert.ErrorIs(t, err, dashboard.ErrUnknownPage)

	_, err = run(t, "page", "delivery", "--panel", "nope")
	assert.ErrorIs(t, err, dashboard.ErrUnknownPanel)

	_, err = run(t, "page", "delivery", "--start", "2018-03-01", "--end", "2018-01-01")
	assert.ErrorIs(t, err, dashboard.ErrInvalidRange)
}

func TestRFMCommand(t *testing.T) {
	out, err := run(t, "rfm", "--format", "csv", "--limit", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "c2,0,2,125.50"), lines[1])

	out, err = run(t, "rfm")
	require.NoError(t, err)
	assert.Contains(t, out, "RFM analysis")
	assert.Contains(t, out, "c3")

	out, err = run(t, "rfm", "--format", "json", "--reference", "2018-03-01", "--distinct")
	require.NoError(t, err)
	var res dashboard.RFMResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 9, res.Customers[0].Recency)
}

func TestRFMCommandXLSX(t *testing.T) {
	_, err := run(t, "rfm", "--format", "xlsx")
	assert.ErrorContains(t, err, "--out")

	path := filepath.Join(t.TempDir(), "rfm.xlsx")
	_, err = run(t, "rfm", "--format", "xlsx", "--out", path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")))

	_, err = run(t, "rfm", "--segment", "vip")
	assert.ErrorIs(t, err, dashboard.ErrInvalidSegment)
}

func TestRenderCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	out, err := run(t, "render", "categories", "--dir", dir, "--width", "320", "--height", "200")
	require.NoError(t, err)

	for _, name := range []string{"categories-top-categories.png", "categories-category-share.png"} {
		path := filepath.Join(dir, name)
		assert.FileExists(t, path)
		assert.Contains(t, out, path)
	}
}

func TestSchemaCommand(t *testing.T) {
	out, err := run(t, "schema", "--format", "json")
	require.NoError(t, err)

	var cfg schema.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 6, cfg.Rows)
	assert.True(t, cfg.Loadable())
	assert.Contains(t, cfg.MeasureKeys(), "payment_value")

	out, err = run(t, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "payment_type")
}

func TestMissingDataFile(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"rfm", "--data", filepath.Join(t.TempDir(), "missing.csv"), "--log-level", "error"})
	assert.ErrorContains(t, root.Execute(), "open dataset")
}
