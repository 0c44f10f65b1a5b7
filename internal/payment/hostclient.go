package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HostClient resolves payables and user profiles from the host application
// over its internal HTTP API. Both lookups are read-only.
type HostClient struct {
	BaseURL string
	Client  *http.Client
}

type hostPayable struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
}

// Payable implements PayableResolver.
func (c *HostClient) Payable(ctx context.Context, pc PurchaseContext) (Payable, error) {
	q := url.Values{
		"component":   {pc.Component},
		"paymentarea": {pc.PaymentArea},
		"itemid":      {strconv.FormatInt(pc.ItemID, 10)},
	}
	var body hostPayable
	if err := c.getJSON(ctx, "/api/internal/payable?"+q.Encode(), &body); err != nil {
		return Payable{}, err
	}
	return Payable{
		Amount:      body.Amount,
		Currency:    strings.ToUpper(strings.TrimSpace(body.Currency)),
		Description: body.Description,
	}, nil
}

// Profile implements ProfileDirectory.
func (c *HostClient) Profile(ctx context.Context, userID uuid.UUID) (UserProfile, error) {
	var body UserProfile
	if err := c.getJSON(ctx, "/api/internal/users/"+userID.String(), &body); err != nil {
		return UserProfile{}, err
	}
	return body, nil
}

func (c *HostClient) getJSON(ctx context.Context, path string, out any) error {
	if c == nil || c.BaseURL == "" {
		return errors.New("payment: host client not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.BaseURL, "/")+path, nil)
	if err != nil {
		return err
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("payment: host answered %d for %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
