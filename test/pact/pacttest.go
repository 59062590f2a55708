//go:build pact
// +build pact

package pacttest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

const (
	ProviderName = "order-engine-api"
	ConsumerName = "delivery-app"

	GatewayProviderName = "payment-gateway"
	GatewayConsumerName = "order-engine"

	StateCatalogBaseline = "store store-pact sells product prod-pact"
	StateOrderExists     = "order ord-pact placed by customer-pact exists"
	StateOrderMissing    = "no order with id ord-missing"

	StateGatewayApproves = "payment key pk-pact is approvable"
	StateGatewayDeclines = "payment key pk-declined is declined"
)

const (
	ExistingOrderID = "ord-pact"
	MissingOrderID  = "ord-missing"
	CustomerID      = "customer-pact"
	OwnerID         = "owner-pact"
	StoreID         = "store-pact"
	ProductID       = "prod-pact"
	ProductName     = "Pact Tteokbokki"
	ProductPrice    = int64(12000)

	ApprovedPaymentKey = "pk-pact"
	DeclinedPaymentKey = "pk-declined"
)

// PactDir returns the workspace-level directory for generated pact files.
func PactDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "pacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact dir: %v", err)
	}
	return dir
}

// PactFile returns the pact file path for the delivery app consumer.
func PactFile(t testing.TB) string {
	t.Helper()
	return filepath.Join(PactDir(t), ConsumerName+"-"+ProviderName+".json")
}

// LogDir returns the log output directory for pact-go.
func LogDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "bin", "pact-logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact log dir: %v", err)
	}
	return dir
}

// ExamplePlaceOrderPayload is the request body the delivery app sends on checkout.
func ExamplePlaceOrderPayload() map[string]any {
	return map[string]any{
		"storeId": StoreID,
		"items": []map[string]any{
			{"productId": ProductID, "quantity": 2},
		},
		"address": "Seoul, Mapo-gu",
	}
}

func projectRoot(t testing.TB) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine caller for pact paths")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}
