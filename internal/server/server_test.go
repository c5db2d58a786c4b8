package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"booklend/internal/app"
	"booklend/internal/usertoken"
	"booklend/pkg/clock"
	"booklend/pkg/domain"
	"booklend/pkg/metadata"
	"booklend/pkg/storage"
	"booklend/pkg/store"
)

const testSecret = "server-test-secret"

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type stubProvider struct {
	result metadata.Result
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Fetch(context.Context, string) (metadata.Result, error) {
	return s.result, nil
}

type testEnv struct {
	srv   *httptest.Server
	store *store.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s := store.NewMemoryStore()
	resolver := metadata.NewResolver([]metadata.Provider{
		&stubProvider{result: metadata.Result{Title: "Dune", Author: "Frank Herbert", Source: "stub"}},
	}, nil, nil)
	a, err := app.New(app.Config{
		Store:    s,
		Objects:  storage.NewMemoryObjectStore(),
		Resolver: resolver,
		Clock:    clock.Fixed{At: testNow},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	verifier, err := usertoken.NewVerifier(usertoken.Config{Secret: testSecret})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	httpServer, err := New(Config{App: a, TokenVerifier: verifier})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv := httptest.NewServer(httpServer.Router())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: s}
}

func (e *testEnv) user(t *testing.T, name string, role domain.UserRole) (domain.User, string) {
	t.Helper()
	u, err := e.store.SaveUser(domain.User{Name: name, Email: name + "@example.com", Role: role, Active: true})
	if err != nil {
		t.Fatalf("save user: %v", err)
	}
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(u.ID, 10),
		Issuer:    "booklend-auth",
		Audience:  jwt.ClaimStrings{"booklend-api"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return u, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func decodeInto(t *testing.T, raw []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
}

func errorCode(t *testing.T, raw []byte) string {
	t.Helper()
	var e struct {
		Code string `json:"code"`
	}
	decodeInto(t, raw, &e)
	return e.Code
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.do(t, http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestRequiresAuth(t *testing.T) {
	e := newTestEnv(t)
	resp, raw := e.do(t, http.MethodGet, "/books", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if code := errorCode(t, raw); code != "AUTH_INVALID_TOKEN" {
		t.Fatalf("code = %q", code)
	}
}

func TestBookLifecycle(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.user(t, "ada", domain.RoleUser)

	resp, raw := e.do(t, http.MethodPost, "/books", token, map[string]any{"title": "Hyperion", "author": "Dan Simmons"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %s", resp.StatusCode, raw)
	}
	var book domain.Book
	decodeInto(t, raw, &book)

	resp, raw = e.do(t, http.MethodPost, "/books", token, map[string]any{"title": "Hyperion"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status = %d", resp.StatusCode)
	}
	if code := errorCode(t, raw); code != "BOOK_DUPLICATE" {
		t.Fatalf("code = %q", code)
	}

	resp, raw = e.do(t, http.MethodGet, fmt.Sprintf("/books/%d", book.ID), token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}

	resp, raw = e.do(t, http.MethodPut, fmt.Sprintf("/books/%d", book.ID), token, map[string]any{"publisher": "Doubleday"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d: %s", resp.StatusCode, raw)
	}
	decodeInto(t, raw, &book)
	if book.Publisher != "Doubleday" {
		t.Fatalf("publisher = %q", book.Publisher)
	}

	resp, _ = e.do(t, http.MethodDelete, fmt.Sprintf("/books/%d", book.ID), token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp, raw = e.do(t, http.MethodGet, fmt.Sprintf("/books/%d", book.ID), token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted status = %d", resp.StatusCode)
	}
	if code := errorCode(t, raw); code != "BOOK_NOT_FOUND" {
		t.Fatalf("code = %q", code)
	}
}

func TestAddByISBN(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.user(t, "ada", domain.RoleUser)

	resp, raw := e.do(t, http.MethodPost, "/books/isbn", token, map[string]string{"isbn": "978-0-441-17271-9"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d: %s", resp.StatusCode, raw)
	}
	var book domain.Book
	decodeInto(t, raw, &book)
	if book.Title != "Dune" || book.ISBN != "9780441172719" {
		t.Fatalf("book = %+v", book)
	}
}

func TestUpdateForeignBookForbidden(t *testing.T) {
	e := newTestEnv(t)
	_, ownerToken := e.user(t, "ada", domain.RoleUser)
	_, otherToken := e.user(t, "bob", domain.RoleUser)

	_, raw := e.do(t, http.MethodPost, "/books", ownerToken, map[string]any{"title": "Hyperion"})
	var book domain.Book
	decodeInto(t, raw, &book)

	resp, raw := e.do(t, http.MethodPut, fmt.Sprintf("/books/%d", book.ID), otherToken, map[string]any{"title": "Stolen"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	if code := errorCode(t, raw); code != "FORBIDDEN" {
		t.Fatalf("code = %q", code)
	}
}

func TestLoanFlow(t *testing.T) {
	e := newTestEnv(t)
	owner, token := e.user(t, "ada", domain.RoleUser)

	_, raw := e.do(t, http.MethodPost, "/books", token, map[string]any{"title": "Dune"})
	var book domain.Book
	decodeInto(t, raw, &book)

	// Availability before lending.
	resp, raw := e.do(t, http.MethodGet, fmt.Sprintf("/books/%d/availability", book.ID), token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("availability status = %d", resp.StatusCode)
	}
	var avail struct {
		Available bool `json:"available"`
	}
	decodeInto(t, raw, &avail)
	if !avail.Available {
		t.Fatalf("expected available before lending")
	}

	resp, raw = e.do(t, http.MethodPost, "/loans", token, map[string]any{"bookId": book.ID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("lend status = %d: %s", resp.StatusCode, raw)
	}
	var loan domain.Loan
	decodeInto(t, raw, &loan)
	if loan.UserID != owner.ID {
		t.Fatalf("borrower = %d, want the requesting user %d", loan.UserID, owner.ID)
	}

	// Second lend conflicts.
	resp, raw = e.do(t, http.MethodPost, "/loans", token, map[string]any{"bookId": book.ID})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second lend status = %d", resp.StatusCode)
	}
	if code := errorCode(t, raw); code != "BOOK_ON_LOAN" {
		t.Fatalf("code = %q", code)
	}

	// Deleting a book on loan conflicts too.
	resp, raw = e.do(t, http.MethodDelete, fmt.Sprintf("/books/%d", book.ID), token, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	// Return with an explicit past instant, then lend again.
	resp, raw = e.do(t, http.MethodPost, fmt.Sprintf("/loans/%d/return", loan.ID), token, map[string]string{"returnDate": "2026-03-01 11:00:00"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("return status = %d: %s", resp.StatusCode, raw)
	}
	resp, _ = e.do(t, http.MethodPost, "/loans", token, map[string]any{"bookId": book.ID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("relend status = %d", resp.StatusCode)
	}
}

func TestLoanVisibility(t *testing.T) {
	e := newTestEnv(t)
	_, ownerToken := e.user(t, "ada", domain.RoleUser)
	borrower, borrowerToken := e.user(t, "bob", domain.RoleUser)
	_, adminToken := e.user(t, "root", domain.RoleAdmin)

	_, raw := e.do(t, http.MethodPost, "/books", ownerToken, map[string]any{"title": "Dune"})
	var book domain.Book
	decodeInto(t, raw, &book)
	resp, raw := e.do(t, http.MethodPost, "/loans", ownerToken, map[string]any{"bookId": book.ID, "userId": borrower.ID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("lend status = %d: %s", resp.StatusCode, raw)
	}
	var loan domain.Loan
	decodeInto(t, raw, &loan)

	// The borrower and an admin may read the loan; the lender may not.
	resp, _ = e.do(t, http.MethodGet, fmt.Sprintf("/loans/%d", loan.ID), borrowerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("borrower get status = %d", resp.StatusCode)
	}
	resp, _ = e.do(t, http.MethodGet, fmt.Sprintf("/loans/%d", loan.ID), adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin get status = %d", resp.StatusCode)
	}
	resp, _ = e.do(t, http.MethodGet, fmt.Sprintf("/loans/%d", loan.ID), ownerToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("owner get status = %d, want 403", resp.StatusCode)
	}

	// Loan deletion is admin only.
	resp, _ = e.do(t, http.MethodDelete, fmt.Sprintf("/loans/%d", loan.ID), borrowerToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("borrower delete status = %d, want 403", resp.StatusCode)
	}
	resp, _ = e.do(t, http.MethodDelete, fmt.Sprintf("/loans/%d", loan.ID), adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin delete status = %d", resp.StatusCode)
	}
}

func TestRegisterAndListUsers(t *testing.T) {
	e := newTestEnv(t)

	resp, raw := e.do(t, http.MethodPost, "/users", "", map[string]string{
		"name": "Ada", "email": "ada2@example.com", "password": "longenough",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d: %s", resp.StatusCode, raw)
	}
	var created domain.User
	decodeInto(t, raw, &created)
	if created.ID == 0 {
		t.Fatalf("user id missing: %+v", created)
	}

	// Registration must not accept a self-granted admin role.
	resp, raw = e.do(t, http.MethodPost, "/users", "", map[string]string{
		"name": "Evil", "email": "evil@example.com", "password": "longenough", "role": "admin",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("admin self-grant status = %d, want 403", resp.StatusCode)
	}

	_, token := e.user(t, "bob", domain.RoleUser)
	resp, raw = e.do(t, http.MethodGet, "/users", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var list struct {
		Count int `json:"count"`
	}
	decodeInto(t, raw, &list)
	if list.Count != 2 {
		t.Fatalf("count = %d, want 2", list.Count)
	}
}

func TestVisibleBooksQuery(t *testing.T) {
	e := newTestEnv(t)
	_, ownerToken := e.user(t, "ada", domain.RoleUser)
	borrower, borrowerToken := e.user(t, "bob", domain.RoleUser)

	_, raw := e.do(t, http.MethodPost, "/books", ownerToken, map[string]any{"title": "Dune"})
	var book domain.Book
	decodeInto(t, raw, &book)
	e.do(t, http.MethodPost, "/books", ownerToken, map[string]any{"title": "Hyperion"})
	resp, _ := e.do(t, http.MethodPost, "/loans", ownerToken, map[string]any{"bookId": book.ID, "userId": borrower.ID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("lend status = %d", resp.StatusCode)
	}

	resp, raw = e.do(t, http.MethodGet, "/books?visible=true", borrowerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("visible status = %d", resp.StatusCode)
	}
	var list struct {
		Items []domain.Book `json:"items"`
		Count int           `json:"count"`
	}
	decodeInto(t, raw, &list)
	if list.Count != 1 || list.Items[0].ID != book.ID {
		t.Fatalf("visible = %+v, want only the borrowed book", list)
	}
}

func TestSearchEndpoint(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.user(t, "ada", domain.RoleUser)
	e.do(t, http.MethodPost, "/books", token, map[string]any{"title": "Dune", "author": "Frank Herbert"})
	e.do(t, http.MethodPost, "/books", token, map[string]any{"title": "Hyperion", "author": "Dan Simmons"})

	resp, raw := e.do(t, http.MethodGet, "/books/search?q=dune", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d", resp.StatusCode)
	}
	var list struct {
		Count int `json:"count"`
	}
	decodeInto(t, raw, &list)
	if list.Count != 1 {
		t.Fatalf("count = %d, want 1", list.Count)
	}

	resp, _ = e.do(t, http.MethodGet, "/books/search?year=banana", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad year status = %d, want 400", resp.StatusCode)
	}
}

func TestBulkDeleteEndpoint(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.user(t, "ada", domain.RoleUser)
	_, raw := e.do(t, http.MethodPost, "/books", token, map[string]any{"title": "One"})
	var one domain.Book
	decodeInto(t, raw, &one)
	_, raw = e.do(t, http.MethodPost, "/books", token, map[string]any{"title": "Two"})
	var two domain.Book
	decodeInto(t, raw, &two)

	resp, raw := e.do(t, http.MethodPost, "/books/bulk-delete", token, map[string]any{"ids": []int64{one.ID, two.ID}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bulk delete status = %d: %s", resp.StatusCode, raw)
	}
	var result struct {
		Deleted int `json:"deleted"`
	}
	decodeInto(t, raw, &result)
	if result.Deleted != 2 {
		t.Fatalf("deleted = %d, want 2", result.Deleted)
	}
}

func TestRequestIDHeader(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.do(t, http.MethodGet, "/healthz", "", nil)
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("missing X-Request-Id header")
	}
}
