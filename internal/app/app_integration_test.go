//go:build integration

package app

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v81"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/greencart/internal/domain/order"
	"github.com/xenking/greencart/internal/domain/product"
	"github.com/xenking/greencart/internal/storage/mongodb"
	"github.com/xenking/greencart/internal/stripe"
	"github.com/xenking/greencart/pkg/cart"
	"github.com/xenking/greencart/pkg/health"
	"github.com/xenking/greencart/pkg/storefront"
)

const webhookSecret = "whsec_integration"

// fakeStripe serves the two Checkout endpoints the gateway uses and
// remembers the metadata of every session it created.
type fakeStripe struct {
	mu       sync.Mutex
	sessions map[string]map[string]string // payment intent -> metadata
}

func (f *fakeStripe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/checkout/sessions":
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		orderID := r.PostForm.Get("metadata[orderId]")
		userID := r.PostForm.Get("metadata[userId]")
		f.mu.Lock()
		f.sessions["pi_"+orderID] = map[string]string{"orderId": orderID, "userId": userID}
		f.mu.Unlock()
		_, _ = fmt.Fprintf(w, `{"id":"cs_%s","object":"checkout.session","url":"https://checkout.stripe.test/%s","metadata":{"orderId":%q,"userId":%q}}`,
			orderID, orderID, orderID, userID)
	case r.Method == http.MethodGet && r.URL.Path == "/v1/checkout/sessions":
		pi := r.URL.Query().Get("payment_intent")
		f.mu.Lock()
		md, ok := f.sessions[pi]
		f.mu.Unlock()
		data := "[]"
		if ok {
			data = fmt.Sprintf(`[{"id":"cs_%s","object":"checkout.session","metadata":{"orderId":%q,"userId":%q}}]`,
				md["orderId"], md["orderId"], md["userId"])
		}
		_, _ = fmt.Fprintf(w, `{"object":"list","url":"/v1/checkout/sessions","has_more":false,"data":%s}`, data)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"message":"not found"}}`)
	}
}

type env struct {
	url      string
	products []product.Product
}

func setupEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	container, err := tcmongo.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})
	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	h := health.New()
	cfg := &Config{
		PublicURL: "http://shop.test",
		Storage:   StorageConfig{Driver: DriverMongo, MongoURI: uri, MongoDatabase: "greencart_e2e"},
		Stripe:    StripeConfig{SecretKey: "sk_test_e2e", WebhookSecret: webhookSecret, Currency: "usd"},
		Auth: AuthConfig{
			JWTSecret:      "e2e-secret",
			TokenTTL:       time.Hour,
			SellerEmail:    "seller@greencart.test",
			SellerPassword: "seller-pass",
		},
	}
	st, err := openStorage(ctx, cfg.Storage, h)
	require.NoError(t, err)
	t.Cleanup(st.close)

	db, err := mongodb.Connect(ctx, uri, cfg.Storage.MongoDatabase)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Client().Disconnect(context.Background()) })
	writer := mongodb.NewProductRepository(db)
	seeded := []product.Product{
		{Name: "Potato 500g", Category: "Vegetables", Price: decimal.RequireFromString("2.50"), OfferPrice: decimal.RequireFromString("2.25"), Images: []string{"potato.png"}, InStock: true},
		{Name: "Apple 1kg", Category: "Fruits", Price: decimal.RequireFromString("6"), OfferPrice: decimal.RequireFromString("5.10"), Images: []string{"apple.png"}, InStock: true},
	}
	for i := range seeded {
		require.NoError(t, writer.Upsert(ctx, &seeded[i]))
	}

	stripeSrv := httptest.NewServer(&fakeStripe{sessions: map[string]map[string]string{}})
	t.Cleanup(stripeSrv.Close)
	backend := stripego.GetBackendWithConfig(stripego.APIBackend, &stripego.BackendConfig{
		URL:               stripego.String(stripeSrv.URL),
		HTTPClient:        stripeSrv.Client(),
		MaxNetworkRetries: stripego.Int64(0),
		LeveledLogger:     &stripego.LeveledLogger{Level: stripego.LevelNull},
	})
	gateway := stripe.NewGateway(stripe.Config{
		SecretKey: cfg.Stripe.SecretKey,
		Currency:  cfg.Stripe.Currency,
		Backends:  &stripego.Backends{API: backend, Connect: backend, Uploads: backend},
	}, nil)

	router, err := newRouter(ctx, zaptest.NewLogger(t), api{
		cfg:      cfg,
		storage:  st,
		products: st.products,
		events:   order.NopRecorder{},
		gateway:  gateway,
		meter:    noop.NewMeterProvider().Meter("test"),
		health:   h,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &env{url: srv.URL, products: seeded}
}

// session is a browser-like client: one cookie jar shared by the typed
// storefront client and raw calls.
type session struct {
	t    *testing.T
	base string
	http *http.Client
	api  *storefront.Client
}

func (e *env) newSession(t *testing.T) *session {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	hc := &http.Client{Jar: jar, Timeout: 10 * time.Second}
	return &session{t: t, base: e.url, http: hc, api: storefront.NewClient(e.url, hc)}
}

func (s *session) call(method, path, body string, headers ...string) (int, []byte) {
	s.t.Helper()
	req, err := http.NewRequest(method, s.base+path, strings.NewReader(body))
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := s.http.Do(req)
	require.NoError(s.t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp.StatusCode, data
}

// lookup follows path through objects (string keys) and arrays (int
// indexes) and returns the leaf as text.
func lookup(t *testing.T, data []byte, path ...any) string {
	t.Helper()
	d := jx.DecodeBytes(data)
	for _, step := range path {
		found := false
		switch key := step.(type) {
		case string:
			require.NoError(t, d.ObjBytes(func(d *jx.Decoder, k []byte) error {
				if found || string(k) != key {
					return d.Skip()
				}
				found = true
				raw, err := d.Raw()
				if err != nil {
					return err
				}
				data = append([]byte(nil), raw...)
				return nil
			}))
		case int:
			i := 0
			require.NoError(t, d.Arr(func(d *jx.Decoder) error {
				defer func() { i++ }()
				if found || i != key {
					return d.Skip()
				}
				found = true
				raw, err := d.Raw()
				if err != nil {
					return err
				}
				data = append([]byte(nil), raw...)
				return nil
			}))
		}
		require.True(t, found, "path %v not found", path)
		d = jx.DecodeBytes(data)
	}
	if d.Next() == jx.String {
		s, err := d.Str()
		require.NoError(t, err)
		return s
	}
	return string(data)
}

func signWebhook(payload []byte, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	_, _ = fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestCheckoutFlow(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	potato, apple := e.products[0], e.products[1]

	shopper := e.newSession(t)

	code, body := shopper.call(http.MethodPost, "/api/user/register",
		`{"name":"Ann","email":"ann@greencart.test","password":"secret1"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "true", lookup(t, body, "success"), string(body))

	_, err := shopper.api.Me(ctx)
	require.NoError(t, err)

	u, err := shopper.api.Login(ctx, "ann@greencart.test", "secret1")
	require.NoError(t, err)
	userID := u.ID

	products, err := shopper.api.Products(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)

	// The session store mirrors cart changes to the server.
	store := storefront.NewStore(storefront.Options{Syncer: shopper.api, Logger: zaptest.NewLogger(t)})
	t.Cleanup(store.Close)
	store.SignIn(u)
	store.SetCatalog(products)
	store.Add(potato.ID)
	store.Add(potato.ID)
	require.NoError(t, store.SetQuantity(apple.ID, 1))
	require.NoError(t, store.Flush(ctx))

	total, missing := store.Amount()
	assert.Empty(t, missing)
	assert.Equal(t, "9.60", total.StringFixed(2))

	me, err := shopper.api.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, cart.Cart{potato.ID: 2, apple.ID: 1}, me.CartItems)

	code, body = shopper.call(http.MethodPost, "/api/address/add", `{"address":{
		"firstName":"Ann","lastName":"Lee","email":"ann@greencart.test",
		"street":"1 Main","city":"Springfield","state":"IL",
		"zipcode":62701,"country":"US","phone":"555-0100"}}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "true", lookup(t, body, "success"), string(body))

	_, body = shopper.call(http.MethodGet, "/api/address/get", "")
	addressID := lookup(t, body, "addresses", 0, "_id")
	require.NotEmpty(t, addressID)

	t.Run("cash on delivery", func(t *testing.T) {
		_, body := shopper.call(http.MethodPost, "/api/order/cod", fmt.Sprintf(
			`{"userId":%q,"address":%q,"items":[{"product":%q,"quantity":2}]}`, userID, addressID, potato.ID))
		assert.JSONEq(t, `{"success":true,"message":"Order Placed Successfully"}`, string(body))
	})

	t.Run("online payment", func(t *testing.T) {
		_, body := shopper.call(http.MethodPost, "/api/order/stripe", fmt.Sprintf(
			`{"address":%q,"items":[{"product":%q,"quantity":1}]}`, addressID, apple.ID),
			"Origin", "http://shop.test")
		require.Equal(t, "true", lookup(t, body, "success"), string(body))
		checkoutURL := lookup(t, body, "url")
		require.True(t, strings.HasPrefix(checkoutURL, "https://checkout.stripe.test/"), checkoutURL)
		orderID := strings.TrimPrefix(checkoutURL, "https://checkout.stripe.test/")

		// Unpaid online orders stay hidden from the customer.
		_, body = shopper.call(http.MethodGet, "/api/order/user", "")
		assert.Equal(t, "COD", lookup(t, body, "orders", 0, "paymentType"))
		assert.Equal(t, "2", lookup(t, body, "orders", 0, "items", 0, "quantity"))

		payload := []byte(fmt.Sprintf(`{
			"id": "evt_paid_1",
			"object": "event",
			"api_version": "2020-08-27",
			"type": "payment_intent.succeeded",
			"data": {"object": {"id": "pi_%s", "object": "payment_intent", "metadata": {}}}
		}`, orderID))

		code, body := shopper.call(http.MethodPost, "/stripe", string(payload),
			"Stripe-Signature", signWebhook(payload, time.Now()))
		require.Equal(t, http.StatusOK, code, string(body))
		assert.JSONEq(t, `{"received":true}`, string(body))

		// A redelivery is acknowledged without effect.
		code, _ = shopper.call(http.MethodPost, "/stripe", string(payload),
			"Stripe-Signature", signWebhook(payload, time.Now()))
		assert.Equal(t, http.StatusOK, code)

		code, body = shopper.call(http.MethodPost, "/stripe", string(payload), "Stripe-Signature", "t=1,v1=bad")
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Webhook Error: invalid webhook signature", string(body))

		me, err := shopper.api.Me(ctx)
		require.NoError(t, err)
		assert.Empty(t, me.CartItems)

		_, body = shopper.call(http.MethodGet, "/api/order/user", "")
		var paid bool
		for i := range 2 {
			if lookup(t, body, "orders", i, "_id") == orderID {
				assert.Equal(t, "true", lookup(t, body, "orders", i, "isPaid"))
				assert.Equal(t, "5.10", lookup(t, body, "orders", i, "amount"))
				paid = true
			}
		}
		assert.True(t, paid, string(body))
	})

	t.Run("seller", func(t *testing.T) {
		seller := e.newSession(t)

		code, _ := seller.call(http.MethodGet, "/api/order/seller", "")
		assert.Equal(t, http.StatusUnauthorized, code)

		_, body := seller.call(http.MethodPost, "/api/seller/login",
			`{"email":"seller@greencart.test","password":"seller-pass"}`)
		assert.JSONEq(t, `{"success":true,"message":"Logged In"}`, string(body))

		code, body = seller.call(http.MethodGet, "/api/order/seller", "")
		require.Equal(t, http.StatusOK, code)
		assert.NotEmpty(t, lookup(t, body, "orders", 1, "_id"))
		assert.Equal(t, "62701", lookup(t, body, "orders", 0, "address", "zipcode"))

		// The seller token is not a customer session.
		code, _ = seller.call(http.MethodGet, "/api/user/is-auth", "")
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("logout", func(t *testing.T) {
		_, body := shopper.call(http.MethodGet, "/api/user/logout", "")
		assert.JSONEq(t, `{"success":true,"message":"Logged Out"}`, string(body))
		_, err := shopper.api.Me(ctx)
		assert.ErrorIs(t, err, storefront.ErrUnauthorized)
	})
}
