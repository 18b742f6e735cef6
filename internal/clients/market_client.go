// Package clients implements the transport boundary to the remote market
// service. Every call is an authenticated form-encoded POST answered with
// JSON; the token identifies the calling group and is assigned by the
// experiment administrator.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hagglerbot/haggler/internal/domain"
	"github.com/hagglerbot/haggler/pkg/retrier"
)

const defaultTimeout = 60 * time.Second

// service endpoints, relative to the configured root URL
const (
	querySettingService    = "querySetting"
	queryMyProductsService = "queryMyProductInfo"
	queryClockService      = "queryClock"
	queryOutTxService      = "queryOutTransactions"
	queryInTxService       = "queryInTransactions"
	offerProductService    = "offerProduct"
	referProductService    = "referProduct"
	acceptOfferService     = "acceptOfferOrReferral"
)

// MarketClient talks to the market server on behalf of one group.
type MarketClient struct {
	rootURL    string
	token      string
	httpClient *http.Client
	settings   domain.Settings
	logger     *zap.Logger
}

// NewMarketClient verifies the token against the market and loads the static
// session settings (group id, rate limits, market size). Bootstrap is
// retried with backoff; a market that stays unreachable fails construction.
func NewMarketClient(ctx context.Context, rootURL, token string, logger *zap.Logger) (*MarketClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if token == "" {
		return nil, errors.New("market token is required")
	}
	c := &MarketClient{
		rootURL: strings.TrimSuffix(rootURL, "/") + "/",
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}

	// transport hiccups during bootstrap are retried; a status=fail answer
	// (bad token) is definitive and aborts immediately
	var resp settingsResponse
	var rejected error
	r := retrier.New()
	err := r.Do(ctx, func(ctx context.Context) error {
		callErr := c.call(ctx, querySettingService, nil, &resp)
		if callErr != nil && IsRejected(callErr) {
			rejected = callErr
			return nil
		}
		return callErr
	})
	if err == nil {
		err = rejected
	}
	if err != nil {
		return nil, errors.Wrap(err, "session bootstrap")
	}

	c.settings = domain.Settings{
		GroupID:      resp.GroupID,
		NumGroups:    resp.NumGroups,
		NumProducts:  resp.NumProducts,
		MaxOfferSend: resp.MaxOfferSend,
		MaxRefSend:   resp.MaxRefSend,
		MaxOfferRecv: resp.MaxOfferRecv,
		Profit:       resp.Profit,
	}
	return c, nil
}

// Settings returns the static session configuration loaded at bootstrap.
func (c *MarketClient) Settings() domain.Settings {
	return c.settings
}

// Clock fetches the market's trading clock.
func (c *MarketClient) Clock(ctx context.Context) (domain.Clock, error) {
	var resp clockResponse
	if err := c.call(ctx, queryClockService, nil, &resp); err != nil {
		return domain.Clock{}, err
	}
	phase := domain.PhaseAccept
	if bool(resp.RoundA) {
		phase = domain.PhaseOffer
	}
	return domain.Clock{Phase: phase, Period: resp.Period}, nil
}

// Portfolio fetches the sellable, produced and consumed product sets.
func (c *MarketClient) Portfolio(ctx context.Context) (domain.Portfolio, error) {
	var portfolio domain.Portfolio
	if err := c.call(ctx, queryMyProductsService, nil, &portfolio); err != nil {
		return domain.Portfolio{}, err
	}
	return portfolio, nil
}

// OutTransactions fetches transactions made by us.
func (c *MarketClient) OutTransactions(ctx context.Context) (domain.TransactionBook, error) {
	return c.transactions(ctx, queryOutTxService)
}

// InTransactions fetches transactions that target us as the recipient.
func (c *MarketClient) InTransactions(ctx context.Context) (domain.TransactionBook, error) {
	return c.transactions(ctx, queryInTxService)
}

func (c *MarketClient) transactions(ctx context.Context, service string) (domain.TransactionBook, error) {
	var book domain.TransactionBook
	if err := c.call(ctx, service, nil, &book); err != nil {
		return domain.TransactionBook{}, err
	}
	book.Normalize()
	return book, nil
}

// SubmitOffer posts a sell offer. A *RejectedError means the market refused
// the offer (for example, the product is no longer sellable).
func (c *MarketClient) SubmitOffer(ctx context.Context, offer domain.OfferAction) error {
	fields := url.Values{}
	fields.Set("recipient", strconv.Itoa(int(offer.Recipient)))
	fields.Set("product", strconv.Itoa(offer.ProductID))
	fields.Set("price", offer.Price.String())
	fields.Set("firstRefFee", offer.FirstRefFee.String())
	fields.Set("secondRefFee", offer.SecondRefFee.String())
	return c.call(ctx, offerProductService, fields, nil)
}

// SubmitReferral forwards a pending transaction to another group.
func (c *MarketClient) SubmitReferral(ctx context.Context, referral domain.ReferralAction) error {
	fields := url.Values{}
	fields.Set("recipient", strconv.Itoa(int(referral.Recipient)))
	fields.Set("transactionId", strconv.FormatInt(referral.TransactionID, 10))
	return c.call(ctx, referProductService, fields, nil)
}

// SubmitAcceptance accepts a pending inbound offer or referral.
func (c *MarketClient) SubmitAcceptance(ctx context.Context, accept domain.AcceptAction) error {
	fields := url.Values{}
	fields.Set("transactionId", strconv.FormatInt(accept.TransactionID, 10))
	return c.call(ctx, acceptOfferService, fields, nil)
}

// Profit re-reads the session settings and returns the current profit.
func (c *MarketClient) Profit(ctx context.Context) (decimal.Decimal, error) {
	var resp settingsResponse
	if err := c.call(ctx, querySettingService, nil, &resp); err != nil {
		return decimal.Decimal{}, err
	}
	return resp.Profit, nil
}

// call posts the form fields (plus the token) to the service endpoint and
// decodes the JSON response into out. A status=fail response surfaces as
// *RejectedError; every other failure is a transport error.
func (c *MarketClient) call(ctx context.Context, service string, fields url.Values, out any) error {
	if fields == nil {
		fields = url.Values{}
	}
	fields.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rootURL+service,
		strings.NewReader(fields.Encode()))
	if err != nil {
		return errors.Wrapf(err, "%s: build request", service)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s: request failed", service)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "%s: read response", service)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("%s: unexpected HTTP status %d", service, resp.StatusCode)
	}

	var envelope statusEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return errors.Wrapf(err, "%s: malformed response %q", service, truncate(body))
	}
	if envelope.Status == "fail" {
		return &RejectedError{Service: service, Message: envelope.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "%s: decode response %q", service, truncate(body))
	}
	return nil
}

func truncate(body []byte) string {
	const limit = 256
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}

type statusEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type settingsResponse struct {
	NumGroups    int             `json:"num_groups"`
	NumProducts  int             `json:"num_products"`
	GroupID      domain.PartyID  `json:"group_id"`
	MaxOfferSend int             `json:"max.offer.send"`
	MaxRefSend   int             `json:"max.ref.send"`
	MaxOfferRecv int             `json:"max.offer.recv"`
	Profit       decimal.Decimal `json:"profit"`
}

type clockResponse struct {
	RoundA flexBool `json:"rnd.a"`
	Period int      `json:"period.idx"`
}

// flexBool tolerates the loose typing of the clock endpoint, which has been
// observed returning JSON booleans as well as 0/1 numbers and strings.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	switch string(data) {
	case "true", "1":
		*b = true
	case "false", "0", "", "null":
		*b = false
	default:
		return errors.Errorf("cannot parse %q as bool", data)
	}
	return nil
}
