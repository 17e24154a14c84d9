package vtu

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zippy-pay/zippy_mobile/internal/api"
	"github.com/zippy-pay/zippy_mobile/internal/logging"
	"github.com/zippy-pay/zippy_mobile/internal/securestore"
	"github.com/zippy-pay/zippy_mobile/internal/session"
	"github.com/zippy-pay/zippy_mobile/internal/wallet"
)

func newTestService(t *testing.T, handler http.Handler) (*Service, *wallet.Cache) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/wallet/balance", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"balance":5000}`)
	})
	mux.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"transactions":[]}`)
	})
	mux.Handle("/vtu/", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	store := securestore.NewMemoryStore()
	client, err := api.New(srv.URL, 5*time.Second, store, logging.Discard())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	sessions := session.NewService(client, store, nil, logging.Discard())
	if _, err := sessions.LoginWithToken(context.Background(), "tok-1", session.User{ID: 1}); err != nil {
		t.Fatalf("login: %v", err)
	}
	cache := wallet.NewCache(client, sessions, logging.Discard())
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return NewService(client, cache, logging.Discard()), cache
}

func TestBuyAirtimeAppliesOptimisticNudge(t *testing.T) {
	svc, cache := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vtu/airtime" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"message":"Purchase successful","transaction":{"id":11,"type":"airtime","amount":200,"status":"success"}}`)
	}))

	res, err := svc.BuyAirtime(context.Background(), AirtimeInput{Network: "mtn", Phone: "08012345678", Amount: 200})
	if err != nil {
		t.Fatalf("buy airtime: %v", err)
	}
	if res.Transaction.ID != 11 {
		t.Fatalf("unexpected transaction %+v", res.Transaction)
	}
	if cache.Balance() != 4800 {
		t.Fatalf("expected optimistic debit to 4800, got %d", cache.Balance())
	}
	txs := cache.Transactions()
	if len(txs) != 1 || txs[0].ID != 11 {
		t.Fatalf("expected transaction prepended, got %+v", txs)
	}
}

func TestBuyDataFailureLeavesCacheUntouched(t *testing.T) {
	svc, cache := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"Insufficient wallet balance"}`)
	}))

	_, err := svc.BuyData(context.Background(), DataInput{Network: "glo", Phone: "08012345678", VariationCode: "glo-1gb", Amount: 9000})
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Message != "Insufficient wallet balance" {
		t.Fatalf("expected server rejection, got %v", err)
	}
	if cache.Balance() != 5000 {
		t.Fatalf("failed purchase must not touch the cache, got %d", cache.Balance())
	}
	if len(cache.Transactions()) != 0 {
		t.Fatalf("failed purchase must not prepend, got %+v", cache.Transactions())
	}
}

func TestPayBillCarriesPrepaidToken(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message":"Purchase successful","transaction":{"id":12,"type":"bill","amount":3000,"status":"success"},"token":"1234-5678-9012"}`)
	}))

	res, err := svc.PayBill(context.Background(), BillInput{ServiceID: "ikeja-electric", CustomerID: "45028", VariationCode: "prepaid", Amount: 3000})
	if err != nil {
		t.Fatalf("pay bill: %v", err)
	}
	if res.Token != "1234-5678-9012" {
		t.Fatalf("expected prepaid token, got %q", res.Token)
	}
}
