package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"motorent/internal/auth"
	"motorent/internal/db"
	"motorent/internal/entities"
	apperr "motorent/internal/errors"
	"motorent/internal/metrics"
	"motorent/internal/reqid"
	"motorent/internal/service"
	"motorent/internal/storage"
)

// The mocks embed the interface so a test only implements what it calls.

type usersMock struct {
	UserService
	registerFn func(ctx context.Context, req entities.RegisterRequest, doc storage.Upload) (*db.PendingUser, error)
	loginFn    func(ctx context.Context, req entities.LoginRequest) (*entities.LoginResponse, error)
}

func (m *usersMock) Register(ctx context.Context, req entities.RegisterRequest, doc storage.Upload) (*db.PendingUser, error) {
	return m.registerFn(ctx, req, doc)
}

func (m *usersMock) Login(ctx context.Context, req entities.LoginRequest) (*entities.LoginResponse, error) {
	return m.loginFn(ctx, req)
}

type motorsMock struct {
	MotorService
	listFn   func(ctx context.Context, f entities.MotorFilter) ([]db.Motor, error)
	deleteFn func(ctx context.Context, id int64) error
	createFn func(ctx context.Context, req entities.MotorRequest, image *storage.Upload) (*db.Motor, error)
}

func (m *motorsMock) List(ctx context.Context, f entities.MotorFilter) ([]db.Motor, error) {
	return m.listFn(ctx, f)
}

func (m *motorsMock) Delete(ctx context.Context, id int64) error { return m.deleteFn(ctx, id) }

func (m *motorsMock) Create(ctx context.Context, req entities.MotorRequest, image *storage.Upload) (*db.Motor, error) {
	return m.createFn(ctx, req, image)
}

type reservationsMock struct {
	ReservationService
	createFn func(ctx context.Context, userID int64, req entities.CreateReservationRequest) (*db.Reservation, error)
	getFn    func(ctx context.Context, v service.Viewer, id int64) (*entities.ReservationDetail, error)
}

func (m *reservationsMock) Create(ctx context.Context, userID int64, req entities.CreateReservationRequest) (*db.Reservation, error) {
	return m.createFn(ctx, userID, req)
}

func (m *reservationsMock) Get(ctx context.Context, v service.Viewer, id int64) (*entities.ReservationDetail, error) {
	return m.getFn(ctx, v, id)
}

type paymentsMock struct {
	PaymentService
	submitFn func(ctx context.Context, userID, resID int64, proof storage.Upload, note string) (*db.Payment, error)
}

func (m *paymentsMock) SubmitProof(ctx context.Context, userID, resID int64, proof storage.Upload, note string) (*db.Payment, error) {
	return m.submitFn(ctx, userID, resID, proof, note)
}

type filesMock struct {
	storage.Files
	openFn func(ctx context.Context, ref string) (io.ReadCloser, string, error)
}

func (m *filesMock) Open(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	return m.openFn(ctx, ref)
}

var testTokens = auth.NewTokens("router-test-secret", time.Hour)

func token(t *testing.T, id int64, role db.Role) string {
	t.Helper()
	raw, err := testTokens.Issue(db.User{ID: id, Role: role, Email: "u@example.com"})
	require.NoError(t, err)
	return "Bearer " + raw
}

func newTestRouter(d Deps) http.Handler {
	d.Tokens = testTokens
	if d.MaxUpload == 0 {
		d.MaxUpload = 1 << 20
	}
	return NewRouter(d)
}

type response struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Kind      string          `json:"kind"`
	Details   json.RawMessage `json:"details"`
	Retryable bool            `json:"retryable"`
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestPublicMotorList(t *testing.T) {
	var got entities.MotorFilter
	h := newTestRouter(Deps{Motors: &motorsMock{listFn: func(_ context.Context, f entities.MotorFilter) ([]db.Motor, error) {
		got = f
		return []db.Motor{{ID: 1, Brand: "Honda", Type: "Beat", Status: db.MotorAvailable}}, nil
	}}})

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/api/motors?search=honda&status=available", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, body.Success)
	require.Contains(t, rec.Body.String(), `"message":"OK"`)
	require.Equal(t, entities.MotorFilter{Search: "honda", Status: "available"}, got)

	var motors []db.Motor
	require.NoError(t, json.Unmarshal(body.Data, &motors))
	require.Len(t, motors, 1)
	require.NotEmpty(t, rec.Header().Get(reqid.Header))
}

func TestAuthenticationAndAdminGuards(t *testing.T) {
	h := newTestRouter(Deps{Reservations: &reservationsMock{}, Motors: &motorsMock{deleteFn: func(context.Context, int64) error { return nil }}})

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/api/reservations/mine", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, body.Success)
	require.Equal(t, "auth", body.Kind)

	req := httptest.NewRequest(http.MethodDelete, "/admin/motors/3", nil)
	req.Header.Set("Authorization", token(t, 7, db.RoleUser))
	rec, body = do(t, h, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "forbidden", body.Kind)

	req = httptest.NewRequest(http.MethodDelete, "/admin/motors/3", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec, _ = do(t, h, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/admin/motors/3", nil)
	req.Header.Set("Authorization", token(t, 1, db.RoleAdmin))
	rec, body = do(t, h, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, body.Success)
}

func TestConflictCarriesDetails(t *testing.T) {
	blocks := []entities.DeleteBlock{{MotorID: 3, Count: 2, ReservationIDs: []int64{10, 11}}}
	h := newTestRouter(Deps{Motors: &motorsMock{deleteFn: func(context.Context, int64) error {
		return apperr.ErrConflict("motor 3 has 2 active reservations").WithDetail(blocks)
	}}})

	req := httptest.NewRequest(http.MethodDelete, "/admin/motors/3", nil)
	req.Header.Set("Authorization", token(t, 1, db.RoleAdmin))
	rec, body := do(t, h, req)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "conflict", body.Kind)

	var got []entities.DeleteBlock
	require.NoError(t, json.Unmarshal(body.Details, &got))
	require.Equal(t, blocks, got)
}

func TestCreateReservationUsesCallerID(t *testing.T) {
	var gotUser int64
	h := newTestRouter(Deps{Reservations: &reservationsMock{createFn: func(_ context.Context, userID int64, req entities.CreateReservationRequest) (*db.Reservation, error) {
		gotUser = userID
		return &db.Reservation{ID: 5, UserID: userID, MotorID: req.MotorID, Status: db.ReservationPending}, nil
	}}})

	req := httptest.NewRequest(http.MethodPost, "/api/reservations", strings.NewReader(`{"motor_id":2,"start_date":"2025-07-01","duration_days":3}`))
	req.Header.Set("Authorization", token(t, 42, db.RoleUser))
	rec, body := do(t, h, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, body.Success)
	require.Equal(t, int64(42), gotUser)

	req = httptest.NewRequest(http.MethodPost, "/api/reservations", strings.NewReader(`{"motor_id":2,"user_id":1}`))
	req.Header.Set("Authorization", token(t, 42, db.RoleUser))
	rec, body = do(t, h, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "validation", body.Kind)
}

func TestReservationViewerIsPassedThrough(t *testing.T) {
	var got service.Viewer
	h := newTestRouter(Deps{Reservations: &reservationsMock{getFn: func(_ context.Context, v service.Viewer, id int64) (*entities.ReservationDetail, error) {
		got = v
		return nil, apperr.ErrNotFound("reservation not found")
	}}})

	req := httptest.NewRequest(http.MethodGet, "/api/reservations/9", nil)
	req.Header.Set("Authorization", token(t, 1, db.RoleAdmin))
	rec, body := do(t, h, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "reservation not found", body.Message)
	require.Equal(t, service.Viewer{UserID: 1, Admin: true}, got)
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestRegisterMultipart(t *testing.T) {
	var (
		got     entities.RegisterRequest
		gotFile []byte
	)
	h := newTestRouter(Deps{Users: &usersMock{registerFn: func(_ context.Context, req entities.RegisterRequest, doc storage.Upload) (*db.PendingUser, error) {
		got = req
		gotFile, _ = io.ReadAll(doc.Body)
		return &db.PendingUser{ID: 1, Email: req.Email}, nil
	}}})

	fields := map[string]string{"name": " Budi ", "email": "budi@example.com", "phone": "+628123456789", "password": " pass with spaces "}
	body, ct := multipartBody(t, fields, "document", "ktp.png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", body)
	req.Header.Set("Content-Type", ct)
	rec, resp := do(t, h, req)
	require.Equal(t, http.StatusCreated, rec.Code, resp.Message)
	require.Equal(t, "Budi", got.Name)
	require.Equal(t, " pass with spaces ", got.Password)
	require.Equal(t, []byte("png-bytes"), gotFile)

	body, ct = multipartBody(t, fields, "", "", nil)
	req = httptest.NewRequest(http.MethodPost, "/api/auth/register", body)
	req.Header.Set("Content-Type", ct)
	rec, resp = do(t, h, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "document file is required", resp.Message)
}

func TestPaymentUploadTooLarge(t *testing.T) {
	h := newTestRouter(Deps{MaxUpload: 1024, Payments: &paymentsMock{submitFn: func(context.Context, int64, int64, storage.Upload, string) (*db.Payment, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}})

	body, ct := multipartBody(t, nil, "proof", "proof.png", bytes.Repeat([]byte("x"), 3<<20))
	req := httptest.NewRequest(http.MethodPost, "/api/reservations/1/payment", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", token(t, 42, db.RoleUser))
	rec, _ := do(t, h, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMotorCreateParsesForm(t *testing.T) {
	var got entities.MotorRequest
	var hadImage bool
	h := newTestRouter(Deps{Motors: &motorsMock{createFn: func(_ context.Context, req entities.MotorRequest, image *storage.Upload) (*db.Motor, error) {
		got, hadImage = req, image != nil
		return &db.Motor{ID: 1}, nil
	}}})

	body, ct := multipartBody(t, map[string]string{"brand": "Yamaha", "type": "NMAX", "price_per_day": "120000"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/admin/motors", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", token(t, 1, db.RoleAdmin))
	rec, _ := do(t, h, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, int64(120000), got.PricePerDay)
	require.False(t, hadImage)

	body, ct = multipartBody(t, map[string]string{"brand": "Yamaha", "type": "NMAX", "price_per_day": "cheap"}, "", "", nil)
	req = httptest.NewRequest(http.MethodPost, "/admin/motors", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", token(t, 1, db.RoleAdmin))
	rec, _ = do(t, h, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFileAccess(t *testing.T) {
	files := &filesMock{openFn: func(_ context.Context, ref string) (io.ReadCloser, string, error) {
		if !storage.ValidRef(ref) {
			return nil, "", storage.ErrInvalidRef
		}
		return io.NopCloser(strings.NewReader("img")), "image/png", nil
	}}
	h := newTestRouter(Deps{Files: files})
	name := "0b7a3c1e-4d5f-4a6b-8c7d-9e0f1a2b3c4d.png"

	rec, _ := do(t, h, httptest.NewRequest(http.MethodGet, "/files/motors/"+name, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.Equal(t, "img", rec.Body.String())

	rec, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/files/proofs/"+name, nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/files/proofs/"+name, nil)
	req.Header.Set("Authorization", token(t, 1, db.RoleAdmin))
	rec, _ = do(t, h, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/files/motors/not-a-ref.png", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	m := metrics.New()
	down := errors.New("connection refused")
	var ping error
	h := newTestRouter(Deps{Metrics: m, Ping: func(context.Context) error { return ping }})

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, body.Success)

	ping = down
	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.True(t, body.Retryable)
	require.Equal(t, "5", rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `motorent_http_requests_total{method="GET",route="/healthz",status="503"} 1`)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	h := newTestRouter(Deps{})

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", body.Kind)

	for _, c := range []struct{ method, path string }{
		{http.MethodDelete, "/api/auth/login"},
		{http.MethodPost, "/api/motors/1"},
		{http.MethodGet, "/api/reservations"},
		{http.MethodDelete, "/api/testimonials"},
	} {
		rec, body = do(t, h, httptest.NewRequest(c.method, c.path, nil))
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", c.method, c.path)
		require.False(t, body.Success)
	}
}

func TestPanicsBecomeInternalErrors(t *testing.T) {
	h := newTestRouter(Deps{Motors: &motorsMock{listFn: func(context.Context, entities.MotorFilter) ([]db.Motor, error) {
		panic("nil map")
	}}})

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/api/motors", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "internal server error", body.Message)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(Deps{CORSOrigins: []string{"https://motorent.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/motors", nil)
	req.Header.Set("Origin", "https://motorent.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "https://motorent.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
