package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/procurehub/marketplace-api/internal/model"
	"github.com/procurehub/marketplace-api/internal/repository"
)

type fakeUsers struct {
	byID   map[uint64]model.User
	nextID uint64
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: make(map[uint64]model.User)} }

func (f *fakeUsers) Create(_ context.Context, u model.User) (uint64, error) {
	u.Email = strings.ToLower(u.Email)
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return 0, repository.ErrEmailExists
		}
	}
	f.nextID++
	u.ID = f.nextID
	f.byID[u.ID] = u
	return u.ID, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	email = strings.ToLower(email)
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

type fakeVendors struct {
	byID   map[uint64]model.Vendor
	nextID uint64
}

func newFakeVendors() *fakeVendors { return &fakeVendors{byID: make(map[uint64]model.Vendor)} }

func (f *fakeVendors) Create(_ context.Context, v model.Vendor) (uint64, error) {
	v.Email = strings.ToLower(v.Email)
	for _, existing := range f.byID {
		if existing.Email == v.Email {
			return 0, repository.ErrEmailExists
		}
	}
	f.nextID++
	v.ID = f.nextID
	f.byID[v.ID] = v
	return v.ID, nil
}

func (f *fakeVendors) GetByEmail(_ context.Context, email string) (model.Vendor, error) {
	email = strings.ToLower(email)
	for _, v := range f.byID {
		if v.Email == email {
			return v, nil
		}
	}
	return model.Vendor{}, repository.ErrNotFound
}

func (f *fakeVendors) GetByID(_ context.Context, id uint64) (model.Vendor, error) {
	v, ok := f.byID[id]
	if !ok {
		return model.Vendor{}, repository.ErrNotFound
	}
	return v, nil
}

func (f *fakeVendors) SetResetToken(_ context.Context, vendorID uint64, hash string, expires *time.Time) error {
	v, ok := f.byID[vendorID]
	if !ok {
		return repository.ErrNotFound
	}
	v.ResetHash = hash
	v.ResetExpires = expires
	f.byID[vendorID] = v
	return nil
}

func (f *fakeVendors) GetByResetHash(_ context.Context, hash string) (model.Vendor, error) {
	now := time.Now().UTC()
	for _, v := range f.byID {
		if v.ResetHash != "" && v.ResetHash == hash && v.ResetExpires != nil && v.ResetExpires.After(now) {
			return v, nil
		}
	}
	return model.Vendor{}, repository.ErrNotFound
}

func (f *fakeVendors) UpdatePassword(_ context.Context, vendorID uint64, passwordHash string) error {
	v, ok := f.byID[vendorID]
	if !ok {
		return repository.ErrNotFound
	}
	v.PasswordHash = passwordHash
	v.ResetHash = ""
	v.ResetExpires = nil
	f.byID[vendorID] = v
	return nil
}

type fakeTokens struct {
	byHash map[string]*model.RefreshToken
}

func newFakeTokens() *fakeTokens { return &fakeTokens{byHash: make(map[string]*model.RefreshToken)} }

func (f *fakeTokens) Store(_ context.Context, t model.RefreshToken) error {
	cp := t
	f.byHash[t.TokenHash] = &cp
	return nil
}

func (f *fakeTokens) GetByHash(_ context.Context, hash string) (model.RefreshToken, error) {
	t, ok := f.byHash[hash]
	if !ok {
		return model.RefreshToken{}, repository.ErrNotFound
	}
	return *t, nil
}

func (f *fakeTokens) Rotate(_ context.Context, oldHash string, next model.RefreshToken, ip string) error {
	old, ok := f.byHash[oldHash]
	if !ok || old.Revoked {
		return repository.ErrRevoked
	}
	old.Revoked = true
	old.RevokedByIP = ip
	old.RevokedReason = "Replaced by rotation"
	old.ReplacedByToken = next.TokenHash
	cp := next
	f.byHash[next.TokenHash] = &cp
	return nil
}

func (f *fakeTokens) Revoke(_ context.Context, hash, ip, reason string) error {
	if t, ok := f.byHash[hash]; ok && !t.Revoked {
		t.Revoked = true
		t.RevokedByIP = ip
		t.RevokedReason = reason
	}
	return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID uint64, ip, reason string) error {
	for _, t := range f.byHash {
		if t.UserID != nil && *t.UserID == userID && !t.Revoked {
			t.Revoked = true
			t.RevokedByIP = ip
			t.RevokedReason = reason
		}
	}
	return nil
}

func (f *fakeTokens) RevokeAllForVendor(_ context.Context, vendorID uint64, ip, reason string) error {
	for _, t := range f.byHash {
		if t.VendorID != nil && *t.VendorID == vendorID && !t.Revoked {
			t.Revoked = true
			t.RevokedByIP = ip
			t.RevokedReason = reason
		}
	}
	return nil
}

type fakeMailer struct {
	sent []struct{ to, token string }
	fail bool
}

func (f *fakeMailer) SendPasswordReset(_ context.Context, email, rawToken string) error {
	if f.fail {
		return errors.New("smtp down")
	}
	f.sent = append(f.sent, struct{ to, token string }{email, rawToken})
	return nil
}

func newTestService() (*Service, *fakeUsers, *fakeVendors, *fakeTokens, *fakeMailer) {
	users := newFakeUsers()
	vendors := newFakeVendors()
	tokens := newFakeTokens()
	mailer := &fakeMailer{}
	svc := &Service{
		Users: users, Vendors: vendors, Tokens: tokens, Mail: mailer,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		JWTSecret:  "test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
		BcryptCost: 4,
	}
	return svc, users, vendors, tokens, mailer
}

func registerBuyer(t *testing.T, svc *Service, email string) uint64 {
	t.Helper()
	id, err := svc.RegisterUser(context.Background(), model.User{
		Email: email, Name: "Test Buyer", Role: model.RoleBuyer,
	}, "Sup3rSecret")
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	_, err := svc.RegisterUser(context.Background(), model.User{
		Email: "a@b.com", Name: "A", Role: model.RoleBuyer,
	}, "weak")
	if !errors.Is(err, ErrWeakPassword) {
		t.Errorf("expected ErrWeakPassword, got %v", err)
	}
}

func TestLoginNormalizesEmail(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	registerBuyer(t, svc, "A@B.com")

	u, pair, err := svc.LoginUser(context.Background(), "a@b.COM", "Sup3rSecret", "1.2.3.4")
	if err != nil {
		t.Fatalf("login after mixed-case register failed: %v", err)
	}
	if u.Email != "a@b.com" {
		t.Errorf("stored email = %q", u.Email)
	}
	if pair.Access.Token == "" || pair.Refresh.Raw == "" {
		t.Error("incomplete token pair")
	}
}

func TestLoginUnknownAndWrongPasswordIndistinguishable(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	registerBuyer(t, svc, "a@b.com")

	_, _, errUnknown := svc.LoginUser(context.Background(), "nobody@b.com", "Sup3rSecret", "ip")
	_, _, errWrong := svc.LoginUser(context.Background(), "a@b.com", "WrongPass1", "ip")
	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Errorf("errors differ: unknown=%v wrong=%v", errUnknown, errWrong)
	}
}

func TestLoginTwiceYieldsIndependentSessions(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	registerBuyer(t, svc, "a@b.com")

	_, p1, err := svc.LoginUser(context.Background(), "a@b.com", "Sup3rSecret", "ip")
	if err != nil {
		t.Fatal(err)
	}
	_, p2, err := svc.LoginUser(context.Background(), "a@b.com", "Sup3rSecret", "ip")
	if err != nil {
		t.Fatal(err)
	}
	if p1.Refresh.Raw == p2.Refresh.Raw {
		t.Fatal("two logins share a refresh token")
	}
	// Both remain exchangeable.
	if _, err := svc.Refresh(context.Background(), p1.Refresh.Raw, "ip"); err != nil {
		t.Errorf("first session refresh failed: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), p2.Refresh.Raw, "ip"); err != nil {
		t.Errorf("second session refresh failed: %v", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	svc, _, _, tokens, _ := newTestService()
	registerBuyer(t, svc, "a@b.com")
	_, pair, err := svc.LoginUser(context.Background(), "a@b.com", "Sup3rSecret", "ip")
	if err != nil {
		t.Fatal(err)
	}

	next, err := svc.Refresh(context.Background(), pair.Refresh.Raw, "ip")
	if err != nil {
		t.Fatal(err)
	}
	if next.Refresh.Raw == pair.Refresh.Raw {
		t.Fatal("rotation returned the same refresh token")
	}
	if _, err := VerifyAccessToken(svc.JWTSecret, next.Access.Token); err != nil {
		t.Errorf("rotated access token invalid: %v", err)
	}

	old := tokens.byHash[HashToken(pair.Refresh.Raw)]
	if !old.Revoked || old.RevokedReason != "Replaced by rotation" {
		t.Errorf("old token state = %+v", old)
	}
	if old.ReplacedByToken != HashToken(next.Refresh.Raw) {
		t.Error("replaced_by does not point at the successor")
	}
}

func TestRefreshReuseRevokesFamily(t *testing.T) {
	svc, _, _, tokens, _ := newTestService()
	registerBuyer(t, svc, "a@b.com")
	_, pair, err := svc.LoginUser(context.Background(), "a@b.com", "Sup3rSecret", "ip")
	if err != nil {
		t.Fatal(err)
	}

	r1 := pair.Refresh.Raw
	p2, err := svc.Refresh(context.Background(), r1, "ip")
	if err != nil {
		t.Fatal(err)
	}
	p3, err := svc.Refresh(context.Background(), p2.Refresh.Raw, "ip")
	if err != nil {
		t.Fatal(err)
	}

	// Replaying the first token is reuse: every token of the principal is
	// revoked and the call fails.
	if _, err := svc.Refresh(context.Background(), r1, "ip"); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("expected ErrInvalidRefresh, got %v", err)
	}
	latest := tokens.byHash[HashToken(p3.Refresh.Raw)]
	if !latest.Revoked || latest.RevokedReason != "Reuse detected" {
		t.Errorf("latest token not revoked for reuse: %+v", latest)
	}
	if _, err := svc.Refresh(context.Background(), p3.Refresh.Raw, "ip"); !errors.Is(err, ErrInvalidRefresh) {
		t.Errorf("refresh with revoked family member should fail, got %v", err)
	}
}

func TestRefreshExpiredToken(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	svc.RefreshTTL = -time.Minute
	registerBuyer(t, svc, "a@b.com")
	_, pair, err := svc.LoginUser(context.Background(), "a@b.com", "Sup3rSecret", "ip")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Refresh(context.Background(), pair.Refresh.Raw, "ip"); !errors.Is(err, ErrInvalidRefresh) {
		t.Errorf("expected ErrInvalidRefresh for expired token, got %v", err)
	}
}

func TestRevokeIdempotent(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	registerBuyer(t, svc, "a@b.com")
	_, pair, err := svc.LoginUser(context.Background(), "a@b.com", "Sup3rSecret", "ip")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := svc.Revoke(context.Background(), pair.Refresh.Raw, "ip"); err != nil {
			t.Fatalf("revoke %d failed: %v", i+1, err)
		}
	}
	// Unknown token is also silently accepted.
	if err := svc.Revoke(context.Background(), "unknown-token", "ip"); err != nil {
		t.Errorf("revoking unknown token errored: %v", err)
	}
}

func registerVendor(t *testing.T, svc *Service, email string) uint64 {
	t.Helper()
	id, err := svc.RegisterVendor(context.Background(), model.Vendor{
		Email: email, Company: "Copiers Ltd", Tier: model.TierBasic, Status: model.VendorActive,
	}, "Sup3rSecret")
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestPasswordResetFlow(t *testing.T) {
	svc, _, vendors, tokens, mailer := newTestService()
	id := registerVendor(t, svc, "v@copiers.example")
	_, pair, err := svc.LoginVendor(context.Background(), "v@copiers.example", "Sup3rSecret", "ip")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.RequestVendorPasswordReset(context.Background(), "v@copiers.example"); err != nil {
		t.Fatal(err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected one mail, got %d", len(mailer.sent))
	}
	raw := mailer.sent[0].token
	if vendors.byID[id].ResetHash != HashToken(raw) {
		t.Error("stored reset hash does not match mailed token")
	}

	if err := svc.VerifyResetToken(context.Background(), raw); err != nil {
		t.Fatalf("fresh reset token rejected: %v", err)
	}

	v, newPair, err := svc.ResetVendorPassword(context.Background(), raw, "N3wSecret!", "ip")
	if err != nil {
		t.Fatal(err)
	}
	if v.ID != id {
		t.Errorf("reset returned vendor %d", v.ID)
	}
	// Old sessions are terminated, the fresh pair works.
	old := tokens.byHash[HashToken(pair.Refresh.Raw)]
	if !old.Revoked || old.RevokedReason != "Password reset" {
		t.Errorf("pre-reset session not revoked: %+v", old)
	}
	if _, err := svc.Refresh(context.Background(), newPair.Refresh.Raw, "ip"); err != nil {
		t.Errorf("post-reset refresh failed: %v", err)
	}
	// New password in effect; token is single-use.
	if _, _, err := svc.LoginVendor(context.Background(), "v@copiers.example", "N3wSecret!", "ip"); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}
	if _, _, err := svc.ResetVendorPassword(context.Background(), raw, "An0therPass", "ip"); !errors.Is(err, ErrInvalidReset) {
		t.Errorf("reset token should be single-use, got %v", err)
	}
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	svc, _, _, _, mailer := newTestService()
	if err := svc.RequestVendorPasswordReset(context.Background(), "nobody@x.com"); err != nil {
		t.Fatalf("unknown email must not error: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Error("mail sent for unknown account")
	}
}

func TestPasswordResetMailFailureClearsHash(t *testing.T) {
	svc, _, vendors, _, mailer := newTestService()
	id := registerVendor(t, svc, "v@copiers.example")
	mailer.fail = true

	err := svc.RequestVendorPasswordReset(context.Background(), "v@copiers.example")
	if err == nil {
		t.Fatal("expected error when mail delivery fails")
	}
	if vendors.byID[id].ResetHash != "" {
		t.Error("reset hash not cleared after mail failure")
	}
}

func TestVerifyResetTokenExpired(t *testing.T) {
	svc, _, vendors, _, _ := newTestService()
	id := registerVendor(t, svc, "v@copiers.example")

	expired := time.Now().UTC().Add(-time.Minute)
	raw, hash, err := NewResetToken()
	if err != nil {
		t.Fatal(err)
	}
	if err := vendors.SetResetToken(context.Background(), id, hash, &expired); err != nil {
		t.Fatal(err)
	}
	if err := svc.VerifyResetToken(context.Background(), raw); !errors.Is(err, ErrInvalidReset) {
		t.Errorf("expected ErrInvalidReset, got %v", err)
	}
}
