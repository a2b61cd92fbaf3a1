package transporthttp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/uteshop/uteshop-api/internal/app"
	"github.com/uteshop/uteshop-api/internal/core"
	transporthttp "github.com/uteshop/uteshop-api/internal/http"
	"github.com/uteshop/uteshop-api/internal/platform/logging"
	"github.com/uteshop/uteshop-api/internal/platform/token"
	"github.com/uteshop/uteshop-api/internal/store/memory"
)

// inbox captures OTP mails instead of sending them.
type inbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (i *inbox) SendOTP(_ context.Context, to string, _ core.OTPPurpose, code string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.codes[to] = code
	return nil
}

func (i *inbox) code(email string) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.codes[email]
}

type cdn struct{}

func (cdn) Upload(_ context.Context, key string, _ io.Reader, _ int64, _ string) (string, error) {
	return "https://cdn.test/" + key, nil
}

type apiTest struct {
	t    *testing.T
	srv  *httptest.Server
	mail *inbox
	svc  app.Services
}

func newAPI(t *testing.T) *apiTest {
	t.Helper()
	log := logging.Discard()
	mail := &inbox{codes: map[string]string{}}
	adapters := app.Adapters{
		Tokens:   token.NewJWTService("access", "refresh", time.Hour, 24*time.Hour),
		Revoker:  token.NewMemoryRevoker(),
		Throttle: memory.NewThrottle(),
		Mailer:   mail,
		Cache:    memory.NewCache(),
		Media:    cdn{},
	}
	svc := app.NewServices(app.MemoryRepos(memory.New()), adapters, app.Settings{
		ShippingFee:        30_000,
		ReviewRewardPoints: 100,
		CacheTTL:           time.Minute,
		Options:            []core.Option{core.WithBcryptCost(bcrypt.MinCost)},
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	deps := svc.RouterDeps(adapters, app.RouteOptions{
		InternalAPIKey: "internal-key",
		RequestTimeout: 5 * time.Second,
	}, log)
	srv := httptest.NewServer(transporthttp.NewRouter(ctx, deps))
	t.Cleanup(srv.Close)

	return &apiTest{t: t, srv: srv, mail: mail, svc: svc}
}

func (a *apiTest) do(method, path, tok string, body any, out any) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer res.Body.Close()
	if out != nil && res.StatusCode < 300 && res.StatusCode != http.StatusNoContent {
		require.NoError(a.t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func (a *apiTest) login(email, password string) string {
	a.t.Helper()
	var res core.AuthResult
	require.Equal(a.t, http.StatusOK, a.do(http.MethodPost, "/api/auth/login", "", core.LoginInput{Email: email, Password: password}, &res))
	return res.Token
}

func (a *apiTest) admin() string {
	a.t.Helper()
	_, err := a.svc.Auth.CreateAdmin(context.Background(), "Quản trị", "admin@uteshop.vn", "admin123")
	require.NoError(a.t, err)
	return a.login("admin@uteshop.vn", "admin123")
}

func (a *apiTest) customer(email string) string {
	a.t.Helper()
	require.Equal(a.t, http.StatusAccepted, a.do(http.MethodPost, "/api/auth/register/otp", "", map[string]string{"email": email}, nil))
	code := a.mail.code(email)
	require.Len(a.t, code, 6)
	require.Equal(a.t, http.StatusCreated, a.do(http.MethodPost, "/api/auth/register", "", core.RegisterInput{
		Name: "Khách " + email, Email: email, Password: "secret1", Code: code,
	}, nil))
	return a.login(email, "secret1")
}

// catalog creates one brand, one category and a product through the admin API.
func (a *apiTest) catalog(adminTok string, price int64, stock int) core.Product {
	a.t.Helper()
	var b core.Brand
	require.Equal(a.t, http.StatusCreated, a.do(http.MethodPost, "/api/admin/brands", adminTok, core.BrandInput{Name: "Coolmate"}, &b))
	var c core.Category
	require.Equal(a.t, http.StatusCreated, a.do(http.MethodPost, "/api/admin/categories", adminTok, core.CategoryInput{Name: "Áo thun"}, &c))
	var p core.Product
	require.Equal(a.t, http.StatusCreated, a.do(http.MethodPost, "/api/admin/products", adminTok, core.ProductInput{
		Name: "Áo thun basic", Price: price, Stock: stock, BrandID: b.ID, CategoryID: c.ID,
	}, &p))
	return p
}

func TestAuthFlow(t *testing.T) {
	a := newAPI(t)
	tok := a.customer("an@example.vn")

	var me core.User
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/auth/me", tok, nil, &me))
	assert.Equal(t, "an@example.vn", me.Email)
	assert.Equal(t, core.RoleCustomer, me.Role)

	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/api/auth/register/otp", "", map[string]string{"email": "an@example.vn"}, nil))
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/api/auth/login", "", core.LoginInput{Email: "an@example.vn", Password: "wrong!"}, nil))

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodPost, "/api/auth/logout", tok, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/auth/me", tok, nil, nil), "revoked token")
}

func TestOTPResendIsThrottled(t *testing.T) {
	a := newAPI(t)
	body := map[string]string{"email": "binh@example.vn"}
	require.Equal(t, http.StatusAccepted, a.do(http.MethodPost, "/api/auth/register/otp", "", body, nil))
	assert.Equal(t, http.StatusTooManyRequests, a.do(http.MethodPost, "/api/auth/register/otp", "", body, nil))
}

func TestRoleGates(t *testing.T) {
	a := newAPI(t)
	tok := a.customer("chi@example.vn")

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/cart", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/admin/orders", "", nil, nil))
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/api/admin/orders", tok, nil, nil))
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/admin/orders", a.admin(), nil, nil))
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/auth/me", "not-a-token", nil, nil))
}

func TestOrderLifecycle(t *testing.T) {
	a := newAPI(t)
	adminTok := a.admin()
	p := a.catalog(adminTok, 200_000, 5)
	tok := a.customer("dung@example.vn")

	var list core.PageResult[core.Product]
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/products?sort=newest", "", nil, &list))
	require.Equal(t, int64(1), list.Total)
	assert.Equal(t, 12, list.Limit)

	var cart core.CartView
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/cart/items", tok, core.AddCartItemInput{ProductID: p.ID, Quantity: 2}, &cart))
	assert.Equal(t, 2, cart.ItemCount)
	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/api/cart/items", tok, core.AddCartItemInput{ProductID: p.ID, Quantity: 4}, nil))

	var o core.Order
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/orders", tok, core.CreateOrderInput{
		Items:           []core.OrderItemInput{{ProductID: p.ID, Quantity: 2}},
		ShippingAddress: "1 Võ Văn Ngân, Thủ Đức",
		Phone:           "0900000000",
	}, &o))
	assert.Equal(t, core.OrderPending, o.Status)
	assert.Equal(t, int64(430_000), o.TotalPrice)
	assert.Regexp(t, `^ORD-\d{4}-\d{6}$`, o.Number)

	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/cart", tok, nil, &cart))
	assert.Zero(t, cart.ItemCount, "ordered lines leave the cart")

	var admins core.PageResult[core.Notification]
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/admin/notifications", adminTok, nil, &admins))
	assert.NotZero(t, admins.Total)

	for _, s := range []core.OrderStatus{core.OrderProcessing, core.OrderPrepared, core.OrderShipped} {
		require.Equal(t, http.StatusOK, a.do(http.MethodPatch, "/api/admin/orders/"+o.ID+"/status", adminTok, map[string]any{"status": s}, &o))
	}
	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/api/orders/"+o.ID+"/cancel", tok, nil, nil))

	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/orders/"+o.ID+"/confirm-received", tok, nil, &o))
	assert.Equal(t, core.OrderDelivered, o.Status)
	assert.Equal(t, core.PaymentPaid, o.PaymentStatus)

	var mine core.PageResult[core.Order]
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/orders?status=delivered", tok, nil, &mine))
	assert.Equal(t, int64(1), mine.Total)

	other := a.customer("em@example.vn")
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/orders/"+o.ID, other, nil, nil))
}

func TestProductValidationAndNotFound(t *testing.T) {
	a := newAPI(t)
	adminTok := a.admin()

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/api/admin/products", adminTok, core.ProductInput{Name: "x", Price: 0}, nil))
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/products/missing", "", nil, nil))
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/products?sort=cheapest", "", nil, nil))

	p := a.catalog(adminTok, 100_000, 1)
	require.Equal(t, http.StatusOK, a.do(http.MethodPatch, "/api/admin/products/"+p.ID+"/visibility", adminTok, map[string]bool{"is_visible": false}, nil))
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/products/"+p.ID, "", nil, nil), "hidden from the storefront")
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/admin/products/"+p.ID, adminTok, nil, nil))
}

func TestProductImageUpload(t *testing.T) {
	a := newAPI(t)
	adminTok := a.admin()
	p := a.catalog(adminTok, 100_000, 1)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="image"; filename="front.png"`)
	hdr.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG fake"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, a.srv.URL+"/api/admin/products/"+p.ID+"/images", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+adminTok)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var got core.Product
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	require.NotEmpty(t, got.Images)
	assert.Contains(t, got.Images[len(got.Images)-1], "https://cdn.test/uteshop/products/"+p.ID+"/")
}

func TestSearchFallsBackToDatabase(t *testing.T) {
	a := newAPI(t)
	a.catalog(a.admin(), 150_000, 3)

	var res core.SearchResult
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/search?q=ao%20thun", "", nil, &res))
	assert.Equal(t, "database", res.Source)
	assert.Equal(t, int64(1), res.Total)
}

func TestInternalRoutes(t *testing.T) {
	a := newAPI(t)
	tok := a.customer("giang@example.vn")
	var me core.User
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/auth/me", tok, nil, &me))

	send := func(key string) int {
		b, _ := json.Marshal(core.NotificationInput{Recipient: me.ID, Title: "Xin chào", Message: "Chào mừng bạn"})
		req, _ := http.NewRequest(http.MethodPost, a.srv.URL+"/internal/notifications", bytes.NewReader(b))
		req.Header.Set("X-API-Key", key)
		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		res.Body.Close()
		return res.StatusCode
	}
	assert.Equal(t, http.StatusUnauthorized, send("nope"))
	assert.Equal(t, http.StatusCreated, send("internal-key"))

	var count struct {
		Count int64 `json:"count"`
	}
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/notifications/unread-count", tok, nil, &count))
	assert.Equal(t, int64(1), count.Count)
	require.Equal(t, http.StatusOK, a.do(http.MethodPatch, "/api/notifications/read-all", tok, nil, &count))
	assert.Equal(t, int64(1), count.Count)
}

func TestAnalyticsRejectsUnknownGranularity(t *testing.T) {
	a := newAPI(t)
	adminTok := a.admin()
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/admin/analytics/revenue?type=weekly", adminTok, nil, nil))

	var pts []core.RevenuePoint
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/admin/analytics/revenue?year=2026", adminTok, nil, &pts))
	assert.Len(t, pts, 12)
}
