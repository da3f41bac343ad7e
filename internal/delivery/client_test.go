package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"leadrelay_backend/internal/inventory"
	"leadrelay_backend/internal/rules/domain"
	"leadrelay_backend/platform/logger"

	"github.com/google/uuid"
)

type testDeliveryConfig struct {
	url string
}

func (c testDeliveryConfig) GetDeliveryURL() string            { return c.url }
func (c testDeliveryConfig) GetDeliveryAPIKey() string         { return "test-key" }
func (c testDeliveryConfig) GetDeliveryTimeout() time.Duration { return time.Second }

func testClient(url string) *Client {
	return NewClient(testDeliveryConfig{url: url}, logger.New("development"))
}

func testRule() domain.Rule {
	return domain.Rule{
		ID:                uuid.New(),
		Name:              "overflow",
		TargetProductID:   "prod-9",
		TargetProductName: "Solar DE",
		TargetVertical:    "solar",
		TargetCountry:     "DE",
		TargetAffiliate:   "aff-7",
	}
}

func testLead() inventory.Lead {
	return inventory.Lead{
		Subid:     "s1",
		ProductID: "prod-1",
		Name:      "Jane",
		Phone:     "+31612345678",
		Email:     "jane@example.com",
		Country:   "NL",
	}
}

func TestDeliverSucceedsAfterTransientFailures(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`accepted`))
	}))
	defer server.Close()

	result, err := testClient(server.URL).Deliver(context.Background(), testLead(), testRule())
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if requests.Load() != 3 {
		t.Errorf("requests = %d, want 3", requests.Load())
	}
	if result.StatusCode != http.StatusOK || result.Body != "accepted" {
		t.Errorf("result = %+v", result)
	}
}

func TestDeliverFailsAfterExhaustedRetries(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Deliver(context.Background(), testLead(), testRule())
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if requests.Load() != 3 {
		t.Errorf("requests = %d, want 3", requests.Load())
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("err = %v, want StatusError 503", err)
	}
}

func TestDeliverTerminalOnClientError(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`duplicate lead`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).Deliver(context.Background(), testLead(), testRule())
	if err == nil {
		t.Fatal("expected error on 422")
	}
	if requests.Load() != 1 {
		t.Errorf("requests = %d, want 1 (no retry on 4xx)", requests.Load())
	}
}

func TestDeliverPayloadCarriesTargetProduct(t *testing.T) {
	var captured payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("api key header = %q", r.Header.Get("X-Api-Key"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rule := testRule()
	lead := testLead()
	if _, err := testClient(server.URL).Deliver(context.Background(), lead, rule); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if captured.Subid != lead.Subid || captured.Name != lead.Name || captured.Phone != lead.Phone {
		t.Errorf("lead identity not carried: %+v", captured)
	}
	// The payload advertises the rule's destination product, never the
	// product the lead came from.
	if captured.ProductID != rule.TargetProductID || captured.ProductID == lead.ProductID {
		t.Errorf("product id = %s, want target %s", captured.ProductID, rule.TargetProductID)
	}
	if captured.Vertical != rule.TargetVertical || captured.Geo != rule.TargetCountry {
		t.Errorf("target fields not carried: %+v", captured)
	}
}
