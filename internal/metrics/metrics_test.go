package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("采集指标失败: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("未找到指标 %s", name)
	return nil
}

func TestRecordSync(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSync("auto", true, 2*time.Second)
	c.RecordSync("auto", false, time.Second)
	c.RecordSync("auto", true, time.Second)

	mf := findMetric(t, reg, "shopee_sync_runs_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "result" {
				got[l.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	if got["success"] != 2 || got["failure"] != 1 {
		t.Errorf("sync_runs = %v, want success=2 failure=1", got)
	}
}

func TestRecordOrdersAndRefresh(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOrdersUpserted(5)
	c.RecordOrderFailures(2)
	c.RecordTokenRefresh(RefreshRevoked)

	if v := findMetric(t, reg, "shopee_orders_upserted_total").GetMetric()[0].GetCounter().GetValue(); v != 5 {
		t.Errorf("orders_upserted = %v, want 5", v)
	}
	if v := findMetric(t, reg, "shopee_order_failures_total").GetMetric()[0].GetCounter().GetValue(); v != 2 {
		t.Errorf("order_failures = %v, want 2", v)
	}
	if n := len(findMetric(t, reg, "shopee_token_refresh_total").GetMetric()); n != 1 {
		t.Errorf("token_refresh 标签组数 = %d, want 1", n)
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.ObserveRequest("/api/v2/order/get_order_list", 200, 120*time.Millisecond)
	c.SetSSEClients(3)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("请求 /metrics 失败: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{"shopee_api_requests_total", "shopee_sse_clients 3"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("响应中缺少 %q", want)
		}
	}
}
