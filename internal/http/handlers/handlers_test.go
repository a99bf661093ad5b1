package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MozzammelRidoy/car-doctor-server/internal/domain"
	"github.com/MozzammelRidoy/car-doctor-server/internal/http/handlers"
	appmw "github.com/MozzammelRidoy/car-doctor-server/internal/http/middleware"
	"github.com/MozzammelRidoy/car-doctor-server/internal/platform/token"
)

const testSecret = "test-secret"

// ---------- Mocks ----------

type mockServicesRepo struct {
	services []domain.Service
	listErr  error
}

func (m *mockServicesRepo) List(_ context.Context, filter domain.ServiceFilter) ([]domain.Service, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}

	var out []domain.Service
	for _, s := range m.services {
		if strings.Contains(strings.ToLower(s.Title), strings.ToLower(filter.Search)) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.Sort == domain.SortAsc {
			return out[i].Price < out[j].Price
		}
		return out[i].Price > out[j].Price
	})
	return out, nil
}

func (m *mockServicesRepo) Get(_ context.Context, id int64) (*domain.ServiceDetail, error) {
	for _, s := range m.services {
		if s.ID == id {
			return &domain.ServiceDetail{
				Title: s.Title, ServiceCode: s.ServiceCode, Price: s.Price, ImageURL: s.ImageURL,
			}, nil
		}
	}
	return nil, nil
}

type mockBookingsRepo struct {
	nextID   int64
	bookings map[int64]*domain.Booking
}

func newMockBookingsRepo() *mockBookingsRepo {
	return &mockBookingsRepo{nextID: 1, bookings: make(map[int64]*domain.Booking)}
}

func (m *mockBookingsRepo) Create(_ context.Context, req *domain.BookingCreateReq) (int64, error) {
	id := m.nextID
	m.nextID++
	m.bookings[id] = &domain.Booking{
		ID:            id,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		ServiceID:     req.ServiceID,
		ServiceTitle:  req.ServiceTitle,
		Price:         req.Price,
		ServiceDate:   req.ServiceDate,
		Status:        domain.BookingPending,
		Details:       req.Details,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	return id, nil
}

func (m *mockBookingsRepo) ListByEmail(_ context.Context, email string) ([]domain.Booking, error) {
	var out []domain.Booking
	for _, b := range m.bookings {
		if b.CustomerEmail == email {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *mockBookingsRepo) ListAll(_ context.Context) ([]domain.Booking, error) {
	var out []domain.Booking
	for _, b := range m.bookings {
		out = append(out, *b)
	}
	return out, nil
}

func (m *mockBookingsRepo) UpdateStatus(_ context.Context, id int64, status string) (*domain.Booking, error) {
	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	b.Status = domain.BookingStatus(status)
	b.UpdatedAt = time.Now()
	return b, nil
}

func (m *mockBookingsRepo) Delete(_ context.Context, id int64) (int64, error) {
	if _, ok := m.bookings[id]; !ok {
		return 0, nil
	}
	delete(m.bookings, id)
	return 1, nil
}

type mockPublisher struct {
	subjects []string
}

func (m *mockPublisher) Publish(_ context.Context, subject string, _ interface{}) error {
	m.subjects = append(m.subjects, subject)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

// ---------- Test Setup ----------

func setupTestServer(servicesRepo *mockServicesRepo, bookingsRepo *mockBookingsRepo, bus *mockPublisher) *httptest.Server {
	authHandler := handlers.NewAuthHandler(testSecret, time.Hour)
	servicesHandler := handlers.NewServicesHandler(servicesRepo)
	bookingsHandler := handlers.NewBookingsHandler(bookingsRepo, bus)
	session := appmw.NewSession(testSecret)

	r := chi.NewRouter()
	r.Post("/jwt", authHandler.IssueToken)
	r.Post("/logout", authHandler.Logout)
	r.Get("/services", servicesHandler.List)
	r.Get("/services/{id}", servicesHandler.Get)
	r.Post("/bookings", bookingsHandler.Create)
	r.Group(func(pr chi.Router) {
		pr.Use(session.Require)
		pr.Get("/bookings", bookingsHandler.List)
		pr.Patch("/bookings/{id}", bookingsHandler.UpdateStatus)
		pr.Delete("/bookings/{id}", bookingsHandler.Delete)
	})
	r.With(session.RequireAdmin).Get("/admin/bookings", bookingsHandler.ListAll)

	return httptest.NewServer(r)
}

func catalog() *mockServicesRepo {
	return &mockServicesRepo{services: []domain.Service{
		{ID: 1, Title: "Full Engine Oil Change", Price: 30, ServiceCode: "eng-01", ImageURL: "oil.jpg"},
		{ID: 2, Title: "Brake Inspection", Price: 50, ServiceCode: "brk-01", ImageURL: "brake.jpg"},
		{ID: 3, Title: "Oil Filter Replacement", Price: 20, ServiceCode: "eng-02", ImageURL: "filter.jpg"},
	}}
}

func sessionCookie(t *testing.T, email, role string) *http.Cookie {
	t.Helper()
	tok, err := token.Issue(token.Identity{Email: email, Role: role}, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return &http.Cookie{Name: appmw.SessionCookie, Value: tok}
}

func doJSON(t *testing.T, method, url string, body interface{}, cookies ...*http.Cookie) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
}

// ---------- Auth ----------

func TestIssueToken_SetsCookie(t *testing.T) {
	server := setupTestServer(catalog(), newMockBookingsRepo(), &mockPublisher{})
	defer server.Close()

	resp := doJSON(t, "POST", server.URL+"/jwt", map[string]string{"email": "a@x.com"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var out map[string]bool
	decodeBody(t, resp, &out)
	if !out["success"] {
		t.Fatal("Expected success:true")
	}

	var found *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == appmw.SessionCookie {
			found = c
		}
	}
	if found == nil {
		t.Fatal("Expected token cookie to be set")
	}
	if !found.HttpOnly || !found.Secure || found.SameSite != http.SameSiteNoneMode {
		t.Fatalf("Cookie attributes wrong: %+v", found)
	}

	claims, err := token.Verify(found.Value, testSecret)
	if err != nil {
		t.Fatalf("Cookie does not verify: %v", err)
	}
	if claims.Email != "a@x.com" {
		t.Fatalf("Expected identity a@x.com, got %s", claims.Email)
	}
}

func TestIssueToken_RejectsBadIdentity(t *testing.T) {
	server := setupTestServer(catalog(), newMockBookingsRepo(), &mockPublisher{})
	defer server.Close()

	for name, body := range map[string]interface{}{
		"missing email": map[string]string{"name": "no email"},
		"bad email":     map[string]string{"email": "nope"},
	} {
		t.Run(name, func(t *testing.T) {
			resp := doJSON(t, "POST", server.URL+"/jwt", body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestIssueToken_IgnoresClientRole(t *testing.T) {
	server := setupTestServer(catalog(), newMockBookingsRepo(), &mockPublisher{})
	defer server.Close()

	resp := doJSON(t, "POST", server.URL+"/jwt", map[string]string{"email": "a@x.com", "role": "admin"})
	defer resp.Body.Close()

	for _, c := range resp.Cookies() {
		if c.Name == appmw.SessionCookie {
			claims, err := token.Verify(c.Value, testSecret)
			if err != nil {
				t.Fatalf("Verify failed: %v", err)
			}
			if claims.Role == "admin" {
				t.Fatal("Client-supplied role must not be signed into the credential")
			}
			return
		}
	}
	t.Fatal("Expected token cookie")
}

func TestLogout_ClearsCookie(t *testing.T) {
	server := setupTestServer(catalog(), newMockBookingsRepo(), &mockPublisher{})
	defer server.Close()

	resp := doJSON(t, "POST", server.URL+"/logout", nil)
	defer resp.Body.Close()

	for _, c := range resp.Cookies() {
		if c.Name == appmw.SessionCookie {
			if c.MaxAge >= 0 {
				t.Fatalf("Expected expired cookie, got MaxAge=%d", c.MaxAge)
			}
			return
		}
	}
	t.Fatal("Expected clearing cookie in response")
}

// ---------- Services ----------

func TestListServices_SearchIsCaseInsensitiveSubstring(t *testing.T) {
	server := setupTestServer(catalog(), newMockBookingsRepo(), &mockPublisher{})
	defer server.Close()

	resp := doJSON(t, "GET", server.URL+"/services?search=oil", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var out []domain.Service
	decodeBody(t, resp, &out)

	if len(out) != 2 {
		t.Fatalf("Expected 2 oil services, got %d", len(out))
	}
	for _, s := range out {
		if !strings.Contains(strings.ToLower(s.Title), "oil") {
			t.Fatalf("Service %q does not match filter", s.Title)
		}
	}
}

func TestListServices_SortByPrice(t *testing.T) {
	server := setupTestServer(catalog(), newMockBookingsRepo(), &mockPublisher{})
	defer server.Close()

	// ascending
	resp := doJSON(t, "GET", server.URL+"/services?sort=asc", nil)
	var asc []domain.Service
	decodeBody(t, resp, &asc)
	for i := 1; i < len(asc); i++ {
		if asc[i].Price < asc[i-1].Price {
			t.Fatalf("Expected non-decreasing prices, got %v", asc)
		}
	}

	// default is descending
	resp = doJSON(t, "GET", server.URL+"/services", nil)
	var desc []domain.Service
	decodeBody(t, resp, &desc)
	if len(desc) != 3 {
		t.Fatalf("Expected full catalog, got %d", len(desc))
	}
	for i := 1; i < len(desc); i++ {
		if desc[i].Price > desc[i-1].Price {
			t.Fatalf("Expected non-increasing prices, got %v", desc)
		}
	}
}

func TestGetService_ProjectionAndMisses(t *testing.T) {
	server := setupTestServer(catalog(), newMockBookingsRepo(), &mockPublisher{})
	defer server.Close()

	resp := doJSON(t, "GET", server.URL+"/services/1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var detail domain.ServiceDetail
	decodeBody(t, resp, &detail)
	if detail.Title != "Full Engine Oil Change" || detail.ServiceCode != "eng-01" {
		t.Fatalf("Unexpected projection: %+v", detail)
	}

	// absent id
	resp = doJSON(t, "GET", server.URL+"/services/99", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404 for missing service, got %d", resp.StatusCode)
	}

	// structurally invalid id stays a recoverable empty result
	resp = doJSON(t, "GET", server.URL+"/services/not-an-id", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for malformed id, got %d", resp.StatusCode)
	}
	var empty interface{}
	decodeBody(t, resp, &empty)
	if empty != nil {
		t.Fatalf("Expected null body, got %v", empty)
	}
}

// ---------- Bookings ----------

func TestCreateBooking_ReturnsInsertedIDAndPublishes(t *testing.T) {
	bus := &mockPublisher{}
	repo := newMockBookingsRepo()
	server := setupTestServer(catalog(), repo, bus)
	defer server.Close()

	resp := doJSON(t, "POST", server.URL+"/bookings", map[string]interface{}{
		"email":         "a@x.com",
		"name":          "Aman",
		"service_id":    1,
		"service_title": "Full Engine Oil Change",
		"price":         30,
		"date":          "2026-09-15",
		"phone":         "+8801711111111",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}

	var out map[string]int64
	decodeBody(t, resp, &out)
	if out["insertedId"] == 0 {
		t.Fatal("Expected insertedId")
	}

	b := repo.bookings[out["insertedId"]]
	if b == nil {
		t.Fatal("Booking not stored")
	}
	if b.Details["phone"] != "+8801711111111" {
		t.Fatalf("Extra field not kept: %v", b.Details)
	}

	if len(bus.subjects) != 1 || bus.subjects[0] != "booking.created" {
		t.Fatalf("Expected booking.created event, got %v", bus.subjects)
	}
}

func TestCreateBooking_RejectsInvalidPayload(t *testing.T) {
	server := setupTestServer(catalog(), newMockBookingsRepo(), &mockPublisher{})
	defer server.Close()

	for name, body := range map[string]interface{}{
		"missing email":      map[string]interface{}{"service_id": 1},
		"missing service_id": map[string]interface{}{"email": "a@x.com"},
		"bad email":          map[string]interface{}{"email": "nope", "service_id": 1},
	} {
		t.Run(name, func(t *testing.T) {
			resp := doJSON(t, "POST", server.URL+"/bookings", body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestListBookings_RequiresSession(t *testing.T) {
	server := setupTestServer(catalog(), newMockBookingsRepo(), &mockPublisher{})
	defer server.Close()

	resp := doJSON(t, "GET", server.URL+"/bookings?email=a@x.com", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without cookie, got %d", resp.StatusCode)
	}

	var out map[string]string
	json.NewDecoder(resp.Body).Decode(&out)
	if out["message"] != "unauthorized access" {
		t.Fatalf("Unexpected message: %q", out["message"])
	}
}

func TestListBookings_ScopeGate(t *testing.T) {
	repo := newMockBookingsRepo()
	seed := func(email string, n int) {
		for i := 0; i < n; i++ {
			repo.Create(context.Background(), &domain.BookingCreateReq{
				CustomerEmail: email, ServiceID: 1,
			})
		}
	}
	seed("a@x.com", 2)
	seed("b@x.com", 1)

	server := setupTestServer(catalog(), repo, &mockPublisher{})
	defer server.Close()

	cookie := sessionCookie(t, "a@x.com", "")

	// matching email: only own bookings
	resp := doJSON(t, "GET", server.URL+"/bookings?email=a@x.com", nil, cookie)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var own []domain.Booking
	decodeBody(t, resp, &own)
	if len(own) != 2 {
		t.Fatalf("Expected 2 bookings, got %d", len(own))
	}
	for _, b := range own {
		if b.CustomerEmail != "a@x.com" {
			t.Fatalf("Foreign booking leaked: %+v", b)
		}
	}

	// mismatched email: forbidden
	resp = doJSON(t, "GET", server.URL+"/bookings?email=b@x.com", nil, cookie)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", resp.StatusCode)
	}
	var out map[string]string
	json.NewDecoder(resp.Body).Decode(&out)
	if out["message"] != "forbidden" {
		t.Fatalf("Unexpected message: %q", out["message"])
	}

	// no filter: defaults to the session identity
	resp = doJSON(t, "GET", server.URL+"/bookings", nil, cookie)
	var scoped []domain.Booking
	decodeBody(t, resp, &scoped)
	if len(scoped) != 2 {
		t.Fatalf("Expected own bookings without filter, got %d", len(scoped))
	}
}

func TestListBookings_CaseSensitiveEmailCompare(t *testing.T) {
	server := setupTestServer(catalog(), newMockBookingsRepo(), &mockPublisher{})
	defer server.Close()

	cookie := sessionCookie(t, "a@x.com", "")
	resp := doJSON(t, "GET", server.URL+"/bookings?email=A@x.com", nil, cookie)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403 for case-mismatched email, got %d", resp.StatusCode)
	}
}

func TestDeleteBooking_Idempotent(t *testing.T) {
	repo := newMockBookingsRepo()
	id, _ := repo.Create(context.Background(), &domain.BookingCreateReq{CustomerEmail: "a@x.com", ServiceID: 1})

	server := setupTestServer(catalog(), repo, &mockPublisher{})
	defer server.Close()

	cookie := sessionCookie(t, "a@x.com", "")
	url := fmt.Sprintf("%s/bookings/%d", server.URL, id)

	resp := doJSON(t, "DELETE", url, nil, cookie)
	var first map[string]int64
	decodeBody(t, resp, &first)
	if first["deletedCount"] != 1 {
		t.Fatalf("Expected deletedCount 1, got %d", first["deletedCount"])
	}

	resp = doJSON(t, "DELETE", url, nil, cookie)
	var second map[string]int64
	decodeBody(t, resp, &second)
	if second["deletedCount"] != 0 {
		t.Fatalf("Expected deletedCount 0 on repeat, got %d", second["deletedCount"])
	}
}

func TestDeleteBooking_RequiresSession(t *testing.T) {
	server := setupTestServer(catalog(), newMockBookingsRepo(), &mockPublisher{})
	defer server.Close()

	resp := doJSON(t, "DELETE", server.URL+"/bookings/1", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", resp.StatusCode)
	}
}

func TestUpdateBookingStatus_SetsOnlyStatus(t *testing.T) {
	repo := newMockBookingsRepo()
	id, _ := repo.Create(context.Background(), &domain.BookingCreateReq{
		CustomerEmail: "a@x.com", CustomerName: "Aman", ServiceID: 1,
	})

	bus := &mockPublisher{}
	server := setupTestServer(catalog(), repo, bus)
	defer server.Close()

	cookie := sessionCookie(t, "a@x.com", "")
	url := fmt.Sprintf("%s/bookings/%d", server.URL, id)

	resp := doJSON(t, "PATCH", url, map[string]interface{}{
		"status": "confirmed",
		"email":  "evil@x.com", // must be ignored
	}, cookie)
	var out map[string]int64
	decodeBody(t, resp, &out)
	if out["modifiedCount"] != 1 {
		t.Fatalf("Expected modifiedCount 1, got %d", out["modifiedCount"])
	}

	b := repo.bookings[id]
	if b.Status != "confirmed" {
		t.Fatalf("Status not updated: %s", b.Status)
	}
	if b.CustomerEmail != "a@x.com" {
		t.Fatal("Non-status field was modified")
	}

	if len(bus.subjects) == 0 || bus.subjects[len(bus.subjects)-1] != "booking.status_changed" {
		t.Fatalf("Expected status_changed event, got %v", bus.subjects)
	}

	// missing booking: zero count, no error
	resp = doJSON(t, "PATCH", server.URL+"/bookings/999", map[string]string{"status": "confirmed"}, cookie)
	var miss map[string]int64
	decodeBody(t, resp, &miss)
	if miss["modifiedCount"] != 0 {
		t.Fatalf("Expected modifiedCount 0, got %d", miss["modifiedCount"])
	}
}

func TestAdminListAll_Gated(t *testing.T) {
	repo := newMockBookingsRepo()
	repo.Create(context.Background(), &domain.BookingCreateReq{CustomerEmail: "a@x.com", ServiceID: 1})
	repo.Create(context.Background(), &domain.BookingCreateReq{CustomerEmail: "b@x.com", ServiceID: 2})

	server := setupTestServer(catalog(), repo, &mockPublisher{})
	defer server.Close()

	// non-admin session
	resp := doJSON(t, "GET", server.URL+"/admin/bookings", nil, sessionCookie(t, "a@x.com", ""))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403 for non-admin, got %d", resp.StatusCode)
	}

	// admin session
	resp = doJSON(t, "GET", server.URL+"/admin/bookings", nil, sessionCookie(t, "ops@x.com", "admin"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for admin, got %d", resp.StatusCode)
	}
	var all []domain.Booking
	decodeBody(t, resp, &all)
	if len(all) != 2 {
		t.Fatalf("Expected every booking, got %d", len(all))
	}
}

// ---------- End-to-end scenario ----------

func TestScenario_LoginThenScopedListing(t *testing.T) {
	repo := newMockBookingsRepo()
	repo.Create(context.Background(), &domain.BookingCreateReq{CustomerEmail: "a@x.com", ServiceID: 1})

	server := setupTestServer(catalog(), repo, &mockPublisher{})
	defer server.Close()

	// login
	resp := doJSON(t, "POST", server.URL+"/jwt", map[string]string{"email": "a@x.com"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 on login, got %d", resp.StatusCode)
	}
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == appmw.SessionCookie {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("Expected session cookie")
	}

	// own bookings with that cookie
	listResp := doJSON(t, "GET", server.URL+"/bookings?email=a@x.com", nil, cookie)
	if listResp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", listResp.StatusCode)
	}
	var own []domain.Booking
	decodeBody(t, listResp, &own)
	if len(own) != 1 || own[0].CustomerEmail != "a@x.com" {
		t.Fatalf("Unexpected bookings: %v", own)
	}

	// someone else's bookings with the same cookie
	otherResp := doJSON(t, "GET", server.URL+"/bookings?email=b@x.com", nil, cookie)
	otherResp.Body.Close()
	if otherResp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", otherResp.StatusCode)
	}
}
