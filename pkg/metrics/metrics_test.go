package metrics

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestCounter(t *testing.T) {
	c := NewCounter("test_total", "A test counter")
	if c.Value() != 0 {
		t.Errorf("fresh counter value %d, want 0", c.Value())
	}

	c.Inc()
	c.Add(41)
	if c.Value() != 42 {
		t.Errorf("counter value %d, want 42", c.Value())
	}
}

func TestCounter_Concurrent(t *testing.T) {
	c := NewCounter("test_total", "A test counter")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()

	if c.Value() != 10_000 {
		t.Errorf("counter value %d after concurrent increments, want 10000", c.Value())
	}
}

func TestGauge(t *testing.T) {
	g := NewGauge("test_gauge", "A test gauge")
	g.Set(-5)
	if g.Value() != -5 {
		t.Errorf("gauge value %d, want -5", g.Value())
	}
	g.SetUint64(123)
	if g.Value() != 123 {
		t.Errorf("gauge value %d, want 123", g.Value())
	}
}

func TestCollector_Render(t *testing.T) {
	c := NewCollector()
	c.RecordExchange(100, 100_000, 900_000)
	c.RecordFailure("escrow_exhausted")
	c.RecordFailure("escrow_exhausted")
	c.RecordProvision()

	out := c.Render()
	for _, want := range []string{
		"token_upgrade_exchanges_total 1",
		"token_upgrade_tokens_burned_total 100",
		"token_upgrade_tokens_released_total 100000",
		"token_upgrade_escrows_provisioned_total 1",
		"token_upgrade_escrow_balance 900000",
		`token_upgrade_exchange_failures_total{reason="escrow_exhausted"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered output missing %q:\n%s", want, out)
		}
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.RecordExchange(1, 1, 1)
	c.RecordFailure("whatever")
	c.RecordProvision()
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.RecordExchange(7, 7, 0)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "token_upgrade_exchanges_total 1") {
		t.Errorf("handler output missing exchange counter:\n%s", rec.Body.String())
	}
}
