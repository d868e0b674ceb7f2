package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"

	appent "github.com/govcon/backend/internal/application/entitlement"
	"github.com/govcon/backend/internal/domain/catalog"
	"github.com/govcon/backend/internal/domain/entitlement"
	"github.com/govcon/backend/internal/domain/shared"
	"github.com/govcon/backend/internal/infrastructure/cache"
	"github.com/govcon/backend/internal/infrastructure/email"
	"github.com/govcon/backend/internal/interfaces/http/dto"
)

type stubGateway struct {
	event     stripe.Event
	verifyErr error
	productID string
}

func (g *stubGateway) VerifySignature(_ []byte, _ string) (stripe.Event, bool, error) {
	if g.verifyErr != nil {
		return stripe.Event{}, false, g.verifyErr
	}
	return g.event, false, nil
}

func (g *stubGateway) SessionProductID(_ context.Context, _ string, _ bool) (string, error) {
	return g.productID, nil
}

type stubWebhookLedger struct {
	entitlement.PurchaseRepository
	inserted []*entitlement.Purchase
}

func (s *stubWebhookLedger) FindByOrderID(_ context.Context, orderID string) (*entitlement.Purchase, error) {
	for _, p := range s.inserted {
		if p.OrderID == orderID {
			return p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubWebhookLedger) Insert(_ context.Context, p *entitlement.Purchase) error {
	s.inserted = append(s.inserted, p)
	return nil
}

type stubWebhookProfiles struct {
	entitlement.ProfileRepository
	flags map[string]entitlement.FlagSet
}

func (s *stubWebhookProfiles) GetOrCreate(_ context.Context, emailAddr, _ string) (*entitlement.UserProfile, error) {
	key := entitlement.NormalizeEmail(emailAddr)
	if _, ok := s.flags[key]; !ok {
		s.flags[key] = entitlement.FlagSet{}
	}
	return &entitlement.UserProfile{Email: key, Flags: s.flags[key]}, nil
}

func (s *stubWebhookProfiles) SetFlags(_ context.Context, emailAddr string, flags entitlement.FlagSet) (entitlement.FlagSet, error) {
	s.flags[entitlement.NormalizeEmail(emailAddr)].Add(flags)
	return flags, nil
}

func newWebhookRouter(t *testing.T, gateway *stubGateway) (*gin.Engine, *stubWebhookLedger) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cat := catalog.Default()
	ledger := &stubWebhookLedger{}
	profiles := &stubWebhookProfiles{flags: map[string]entitlement.FlagSet{}}
	grants := appent.NewGrantService(cat, profiles, cache.NewInMemoryAccessCache(),
		&email.RecorderMailer{}, "https://govcongiants.example", zap.NewNop())
	svc := appent.NewWebhookService(gateway, cache.NewRecentEventSet(100), ledger, grants, cat, zap.NewNop())

	engine := gin.New()
	api := engine.Group("/api/v1")
	NewWebhookHandler(svc).RegisterRoutes(api)
	return engine, ledger
}

func webhookRequest(body []byte, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	return req
}

func TestWebhookHandler_ProcessesEvent(t *testing.T) {
	session := map[string]any{
		"id":               "cs_test_1",
		"amount_total":     9700,
		"customer_details": map[string]any{"email": "buyer@example.com"},
	}
	raw, err := json.Marshal(session)
	require.NoError(t, err)
	gateway := &stubGateway{
		event:     stripe.Event{ID: "evt_1", Type: "checkout.session.completed", Data: &stripe.EventData{Raw: raw}},
		productID: "prod_TlVBTsPCtgmKuY",
	}
	engine, ledger := newWebhookRouter(t, gateway)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, webhookRequest([]byte("{}"), "t=1,v1=sig"))
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]any)
	assert.Equal(t, "processed", data["status"])
	require.Len(t, ledger.inserted, 1)
	assert.Equal(t, catalog.ProductHunterPro, ledger.inserted[0].ProductID)
}

func TestWebhookHandler_MissingSignature(t *testing.T) {
	engine, _ := newWebhookRouter(t, &stubGateway{})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, webhookRequest([]byte("{}"), ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandler_MissingEmailAnswers400(t *testing.T) {
	session := map[string]any{"id": "cs_test_1", "amount_total": 9700}
	raw, err := json.Marshal(session)
	require.NoError(t, err)
	gateway := &stubGateway{
		event:     stripe.Event{ID: "evt_1", Type: "checkout.session.completed", Data: &stripe.EventData{Raw: raw}},
		productID: "prod_TlVBTsPCtgmKuY",
	}
	engine, ledger := newWebhookRouter(t, gateway)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, webhookRequest([]byte("{}"), "t=1,v1=sig"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, ledger.inserted)
}

func TestWebhookHandler_BadSignature(t *testing.T) {
	engine, _ := newWebhookRouter(t, &stubGateway{verifyErr: fmt.Errorf("bad signature")})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, webhookRequest([]byte("{}"), "t=1,v1=bad"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookHandler_OversizedPayload(t *testing.T) {
	engine, _ := newWebhookRouter(t, &stubGateway{})

	big := []byte(strings.Repeat("x", maxWebhookPayloadSize+1))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, webhookRequest(big, "t=1,v1=sig"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
