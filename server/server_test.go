package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spektr-org/ecomdash/dashboard"
	"github.com/spektr-org/ecomdash/orders"
	"github.com/spektr-org/ecomdash/schema"
)

var serverCSV = `order_id,customer_id,order_purchase_timestamp,order_delivered_customer_date,product_category_name,payment_type,payment_value
o1,c1,2018-01-01 09:00:00,2018-01-06 09:00:00,beleza_saude,credit_card,100.00
o2,c2,2018-01-02 10:30:00,2018-01-12 10:30:00,esporte_lazer,boleto,50.00
o3,c1,2018-01-15 21:00:00,,beleza_saude,credit_card,30.00
o4,c3,2018-02-03 14:00:00,2018-02-05 14:00:00,moveis_decoracao,credit_card,200.00
o5,c4,2018-02-10 08:15:00,2018-02-18 08:15:00,,voucher,10.00
o6,c2,2018-02-20 23:59:00,2018-02-27 23:59:00,beleza_saude,credit_card,75.50
`

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	ds, err := orders.Load(context.Background(), strings.NewReader(serverCSV), orders.LoadOptions{Logger: logger})
	require.NoError(t, err)
	opts.Logger = logger
	if opts.Width == 0 {
		opts.Width, opts.Height = 320, 200
	}
	return New(dashboard.NewService(ds, dashboard.DefaultConfig(), logger), opts)
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	var body errorBody
	decode(t, rec, &body)
	assert.False(t, body.Success)
	assert.NotEmpty(t, body.Error)
}

func TestHealthAndRequestID(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := get(t, s, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 6.0, body["rows"])

	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestIndex(t *testing.T) {
	rec := get(t, newTestServer(t, Options{}), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "Purchase patterns")
	assert.Contains(t, body, "/api/pages/delivery/panels/avg-delivery.png")
	assert.Contains(t, body, "from 2018-01-01 to 2018-02-20")
}

func TestPages(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := get(t, s, "/api/pages")
	require.Equal(t, http.StatusOK, rec.Code)
	var pages []dashboard.PageInfo
	decode(t, rec, &pages)
	assert.Len(t, pages, 5)

	rec = get(t, s, "/api/pages/delivery")
	require.Equal(t, http.StatusOK, rec.Code)
	var page dashboard.Page
	decode(t, rec, &page)
	assert.Equal(t, dashboard.PageDelivery, page.Key)
	assert.Equal(t, 6, page.Records)
	require.Len(t, page.Panels, 2)
	assert.Equal(t, "6.40 days", page.Panels[0].Result.TextData.Value)

	rec = get(t, s, "/api/pages/purchase-patterns?start=2018-01-02&end=2018-02-03")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &page)
	assert.Equal(t, 3, page.Records)
}

func TestPageErrors(t *testing.T) {
	s := newTestServer(t, Options{})
	assertError(t, get(t, s, "/api/pages/nope"), http.StatusNotFound)
	assertError(t, get(t, s, "/api/pages/delivery?start=2018-03-01&end=2018-01-01"), http.StatusBadRequest)
	assertError(t, get(t, s, "/api/pages/delivery?start=01/03/2018"), http.StatusBadRequest)
	assertError(t, get(t, s, "/api/pages/delivery/panels/nope.png"), http.StatusNotFound)
	assertError(t, get(t, s, "/api/pages/delivery/panels/avg-delivery.png"), http.StatusUnprocessableEntity)
	assertError(t, get(t, s, "/nowhere"), http.StatusNotFound)
}

func TestPanelPNG(t *testing.T) {
	s := newTestServer(t, Options{})
	for _, target := range []string{
		"/api/pages/categories/panels/top-categories.png",
		"/api/pages/categories/panels/category-share.png",
		"/api/pages/purchase-patterns/panels/order-hour.png",
		"/api/pages/rfm/panels/recency-vs-monetary.png",
		"/api/pages/purchase-patterns/panels/orders-per-month.png?start=2018-01-01&end=2018-01-31",
		"/api/pages/purchase-patterns/panels/daily-orders.png?start=2018-01-01&end=2018-01-01",
	} {
		rec := get(t, s, target)
		require.Equal(t, http.StatusOK, rec.Code, target+": "+rec.Body.String())
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")), target)
	}
}

func TestPanelCSV(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := get(t, s, "/api/pages/payments/panels/payment-types.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "payments-payment-types.csv")
	assert.Contains(t, rec.Body.String(), "credit_card")

	rec = get(t, s, "/api/pages/delivery/panels/avg-delivery.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Summary,Value,Unit\n"))
}

func TestRFMEndpoints(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := get(t, s, "/api/rfm?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var res dashboard.RFMResult
	decode(t, rec, &res)
	assert.Equal(t, 4, res.Total)
	assert.Len(t, res.Customers, 2)
	assert.Len(t, res.Summary, 4)

	rec = get(t, s, "/api/rfm/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary struct {
		Total    int               `json:"total"`
		Segments []json.RawMessage `json:"segments"`
	}
	decode(t, rec, &summary)
	assert.Equal(t, 4, summary.Total)
	assert.Len(t, summary.Segments, 4)

	rec = get(t, s, "/api/rfm/export.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "customer_id,recency,frequency,monetary"))
	assert.True(t, strings.HasPrefix(lines[1], "c2,0,2,125.50"))

	rec = get(t, s, "/api/rfm/export.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypeXLSX, rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestRFMErrors(t *testing.T) {
	s := newTestServer(t, Options{})
	assertError(t, get(t, s, "/api/rfm?segment=vip"), http.StatusBadRequest)
	assertError(t, get(t, s, "/api/rfm?limit=-1"), http.StatusBadRequest)
	assertError(t, get(t, s, "/api/rfm?limit=ten"), http.StatusBadRequest)
	assertError(t, get(t, s, "/api/rfm?distinct=maybe"), http.StatusBadRequest)
	assertError(t, get(t, s, "/api/rfm?reference=2018-01-01"), http.StatusBadRequest)
}

func TestRFMReferenceAndDistinct(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := get(t, s, "/api/rfm?reference=2018-03-01&distinct=true")
	require.Equal(t, http.StatusOK, rec.Code)
	var res dashboard.RFMResult
	decode(t, rec, &res)
	assert.Equal(t, time.Date(2018, 3, 1, 23, 59, 59, 0, time.UTC), res.Reference.UTC())
	assert.Equal(t, "c2", res.Customers[0].CustomerID)
	assert.Equal(t, 9, res.Customers[0].Recency)
}

func TestSchema(t *testing.T) {
	assertError(t, get(t, newTestServer(t, Options{}), "/api/schema"), http.StatusNotFound)

	cfg, err := schema.Discover(strings.NewReader(serverCSV), schema.DiscoverOptions{})
	require.NoError(t, err)
	rec := get(t, newTestServer(t, Options{Schema: cfg}), "/api/schema")
	require.Equal(t, http.StatusOK, rec.Code)
	var got schema.Config
	decode(t, rec, &got)
	assert.Equal(t, 6, got.Rows)
	assert.Contains(t, got.MeasureKeys(), "payment_value")
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t, Options{})
	get(t, s, "/healthz")
	get(t, s, "/api/pages/nope")

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "ecomdash_dataset_rows 6")
	assert.Contains(t, body, `ecomdash_http_requests_total{code="200",route="/healthz"} 1`)
	assert.Contains(t, body, `ecomdash_http_requests_total{code="404",route="/api/pages/{key}"} 1`)
	assert.Contains(t, body, "ecomdash_http_request_duration_seconds_bucket")
}

func TestUnroutedRequestsAreInstrumented(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := get(t, s, "/nowhere")
	assertError(t, rec, http.StatusNotFound)
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "post-1")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "post-1", rec.Header().Get(RequestIDHeader))

	body := get(t, s, "/metrics").Body.String()
	assert.Contains(t, body, `ecomdash_http_requests_total{code="404",route="unmatched"} 1`)
	assert.Contains(t, body, `code="405"`)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t, Options{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunServesHTTP(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t, Options{}).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/pages")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), dashboard.PageRFM)
}
