package acme

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckOrderStatus(t *testing.T) {
	tests := []struct {
		name    string
		order   Order
		done    bool
		wantErr bool
	}{
		{name: "pending after finalize is a terminal error", order: Order{Status: "pending"}, done: true, wantErr: true},
		{name: "processing keeps polling", order: Order{Status: "processing"}, done: false, wantErr: false},
		{name: "ready after finalize is an immediate distinct error, not a poll", order: Order{Status: "ready"}, done: true, wantErr: true},
		{name: "valid is terminal success", order: Order{Status: "valid"}, done: true, wantErr: false},
		{name: "invalid with a problem surfaces it", order: Order{Status: "invalid", Error: Problem{Type: "urn:ietf:params:acme:error:malformed", Detail: "bad csr"}}, done: true, wantErr: true},
		{name: "invalid without a problem still errors", order: Order{Status: "invalid"}, done: true, wantErr: true},
		{name: "unknown status errors", order: Order{Status: "weird"}, done: true, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			done, err := checkOrderStatus(tc.order)
			assert.Equal(t, tc.done, done)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckOrderStatus_ReadyDistinctFromProcessing(t *testing.T) {
	readyDone, readyErr := checkOrderStatus(Order{Status: "ready"})
	processingDone, processingErr := checkOrderStatus(Order{Status: "processing"})

	assert.True(t, readyDone, "ready after finalize must be terminal, not polled")
	assert.Error(t, readyErr)
	assert.False(t, processingDone)
	assert.NoError(t, processingErr)
}

func TestClient_FetchOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/order/1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(`{"status":"valid","identifiers":[{"type":"dns","value":"example.test"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := &Client{httpClient: srv.Client(), log: noopLogger()}

	order, err := c.FetchOrder(context.Background(), srv.URL+"/order/1")
	require.NoError(t, err)
	assert.Equal(t, "valid", order.Status)
	assert.Equal(t, srv.URL+"/order/1", order.URL)
	assert.Equal(t, "example.test", order.Identifiers[0].Value)
}

func TestClient_ListOrders_FollowsNextLink(t *testing.T) {
	mux := http.NewServeMux()
	var serverURL string

	mux.HandleFunc("/acct/1/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.Write([]byte(`{"orders":["` + serverURL + `/order/2"]}`))
			return
		}
		w.Header().Set("Link", `<`+serverURL+`/acct/1/orders?page=2>; rel="next"`)
		w.Write([]byte(`{"orders":["` + serverURL + `/order/1"]}`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()
	serverURL = srv.URL

	c := &Client{httpClient: srv.Client(), log: noopLogger()}

	list, err := c.ListOrders(context.Background(), srv.URL+"/acct/1/orders")
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/order/1"}, list.Orders)
	assert.Equal(t, srv.URL+"/acct/1/orders?page=2", list.Next)
}

func TestClient_ListOrders_EmptyURL(t *testing.T) {
	c := &Client{log: noopLogger()}
	_, err := c.ListOrders(context.Background(), "")
	assert.Error(t, err)
}
