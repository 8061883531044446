package acme

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Order represents an ACME order resource.
// https://www.rfc-editor.org/rfc/rfc8555#section-7.1.3
type Order struct {
	Status         string       `json:"status"`
	Expires        time.Time    `json:"expires,omitempty"`
	Identifiers    []Identifier `json:"identifiers"`
	NotBefore      time.Time    `json:"notBefore,omitempty"`
	NotAfter       time.Time    `json:"notAfter,omitempty"`
	Error          Problem      `json:"error,omitempty"`
	Authorizations []string     `json:"authorizations"`
	Finalize       string       `json:"finalize"`
	Certificate    string       `json:"certificate"`

	URL string `json:"-"`
}

// OrderList is a paginated account orders collection.
// https://www.rfc-editor.org/rfc/rfc8555#section-7.1.2.1
type OrderList struct {
	Orders []string `json:"orders"`

	// Next is the rel="next" Link target, empty once fully paginated.
	Next string `json:"-"`
}

// NewOrder creates a new order for identifiers.
// https://www.rfc-editor.org/rfc/rfc8555#section-7.4
func (c *Client) NewOrder(ctx context.Context, account Account, identifiers []Identifier) (Order, error) {
	req := struct {
		Identifiers []Identifier `json:"identifiers"`
	}{Identifiers: identifiers}

	var order Order
	resp, err := c.post(ctx, c.dir.NewOrder, account.URL, account.PrivateKey, req, &order, http.StatusCreated)
	if err != nil {
		return order, err
	}

	order.URL = resp.Header.Get("Location")
	return order, nil
}

// FetchOrder fetches an existing order by URL.
func (c *Client) FetchOrder(ctx context.Context, orderURL string) (Order, error) {
	order := Order{URL: orderURL}
	if _, err := c.get(ctx, orderURL, &order, http.StatusOK); err != nil {
		return order, err
	}
	return order, nil
}

// checkOrderStatus reports whether order has reached a terminal state, and if
// so, the error (if any) that terminal state represents.
func checkOrderStatus(order Order) (bool, error) {
	switch order.Status {
	case "invalid":
		if order.Error.Type != "" {
			return true, order.Error
		}
		return true, fmt.Errorf("acme: %w", ErrFinalizeFailed)
	case "pending":
		return true, fmt.Errorf("acme: %w: order still pending after finalize", ErrFinalizeFailed)
	case "ready":
		return true, fmt.Errorf("acme: %w: order still ready after finalize, expected processing", ErrFinalizeFailed)
	case "processing":
		return false, nil
	case "valid":
		return true, nil
	default:
		return true, fmt.Errorf("acme: %w: unknown order status: %s", ErrFinalizeFailed, order.Status)
	}
}

// FinalizeOrder submits csr and polls the order to a terminal state.
// https://www.rfc-editor.org/rfc/rfc8555#section-7.4
func (c *Client) FinalizeOrder(ctx context.Context, account Account, order Order, csr *x509.CertificateRequest) (Order, error) {
	req := struct {
		CSR string `json:"csr"`
	}{CSR: base64.RawURLEncoding.EncodeToString(csr.Raw)}

	var finalized Order
	resp, err := c.post(ctx, order.Finalize, account.URL, account.PrivateKey, req, &finalized, http.StatusOK)
	if err != nil {
		return finalized, err
	}
	finalized.URL = resp.Header.Get("Location")
	if finalized.URL == "" {
		finalized.URL = order.URL
	}

	if done, err := checkOrderStatus(finalized); done {
		return finalized, err
	}

	end := time.Now().Add(c.pollTimeout)
	for {
		if time.Now().After(end) {
			return finalized, fmt.Errorf("acme: %w", ErrPollExceeded)
		}

		select {
		case <-ctx.Done():
			return finalized, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		if _, err := c.get(ctx, finalized.URL, &finalized, http.StatusOK); err != nil {
			// transient connectivity errors are not worth aborting the poll loop for;
			// the timeout above is the backstop.
			continue
		}

		if done, err := checkOrderStatus(finalized); done {
			return finalized, err
		}
	}
}

// ListOrders fetches a page of an account's orders. Pass Account.Orders to
// start, then OrderList.Next (until it is empty) to paginate.
// https://www.rfc-editor.org/rfc/rfc8555#section-7.1.2.1
func (c *Client) ListOrders(ctx context.Context, ordersURL string) (OrderList, error) {
	if ordersURL == "" {
		return OrderList{}, errors.New("acme: account has no orders url")
	}

	var list OrderList
	resp, err := c.get(ctx, ordersURL, &list, http.StatusOK)
	if err != nil {
		return list, err
	}

	list.Next = fetchLink(resp, "next")
	return list, nil
}
