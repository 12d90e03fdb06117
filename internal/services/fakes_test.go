package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sharebook/sharebook/internal/db/models"
)

var errFake = errors.New("fake failure")

func strPtr(s string) *string { return &s }

// fakeCipher reverses strings and counts calls.
type fakeCipher struct {
	encryptCalls int
	decryptCalls int
	encryptErr   error
	decryptErr   error
}

func (c *fakeCipher) Encrypt(p string) (string, error) {
	c.encryptCalls++
	if c.encryptErr != nil {
		return "", c.encryptErr
	}
	return "enc:" + reverse(p), nil
}

func (c *fakeCipher) Decrypt(s string) (string, error) {
	c.decryptCalls++
	if c.decryptErr != nil {
		return "", c.decryptErr
	}
	if !strings.HasPrefix(s, "enc:") {
		return "", errors.New("corrupted")
	}
	return reverse(strings.TrimPrefix(s, "enc:")), nil
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// fakeCredentialRecords is an in-memory CredentialRecords.
type fakeCredentialRecords struct {
	mu      sync.Mutex
	rows    map[string]*models.ProviderCredential
	calls   int
	getErr  error
	saveErr error
}

func newFakeCredentialRecords() *fakeCredentialRecords {
	return &fakeCredentialRecords{rows: map[string]*models.ProviderCredential{}}
}

func (f *fakeCredentialRecords) Upsert(_ context.Context, userID, provider, key string, model *string) (*models.ProviderCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	c := &models.ProviderCredential{
		ID: "cred-" + provider, UserID: userID, Provider: provider,
		APIKey: &key, Model: model, UpdatedAt: time.Now(),
	}
	f.rows[userID+"/"+provider] = c
	return c, nil
}

func (f *fakeCredentialRecords) Get(_ context.Context, userID, provider string) (*models.ProviderCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.rows[userID+"/"+provider], nil
}

func (f *fakeCredentialRecords) List(_ context.Context, userID string) ([]*models.ProviderCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := []*models.ProviderCredential{}
	for k, v := range f.rows {
		if strings.HasPrefix(k, userID+"/") {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeCredentialRecords) Delete(_ context.Context, userID, provider string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	delete(f.rows, userID+"/"+provider)
	return nil
}

// fakeProjects is an in-memory ProjectStore.
type fakeProjects struct {
	mu        sync.Mutex
	rows      map[string]*models.Project
	coverErr  error
	searchArg [3]interface{}
}

func newFakeProjects(projects ...*models.Project) *fakeProjects {
	f := &fakeProjects{rows: map[string]*models.Project{}}
	for _, p := range projects {
		f.rows[p.ID] = p
	}
	return f
}

func (f *fakeProjects) Create(_ context.Context, p *models.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		p.ID = projectID
	}
	p.CreatedAt, p.UpdatedAt = time.Now(), time.Now()
	cp := *p
	f.rows[p.ID] = &cp
	return nil
}

func (f *fakeProjects) GetByID(_ context.Context, id string) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProjects) ListByUser(_ context.Context, userID string) ([]*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Project
	for _, p := range f.rows {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProjects) ListPublicByUser(_ context.Context, userID string, limit int) ([]*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Project
	for _, p := range f.rows {
		if p.UserID == userID && p.IsPublic() && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProjects) SearchPublic(_ context.Context, search string, limit, offset int) ([]*models.Project, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchArg = [3]interface{}{search, limit, offset}
	var all []*models.Project
	for _, p := range f.rows {
		if p.IsPublic() {
			all = append(all, p)
		}
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f *fakeProjects) Update(_ context.Context, p *models.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.rows[p.ID] = &cp
	return nil
}

func (f *fakeProjects) UpdateVisibility(_ context.Context, id, visibility string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[id].Visibility = visibility
	return nil
}

func (f *fakeProjects) UpdateCover(_ context.Context, id, coverURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.coverErr != nil {
		return f.coverErr
	}
	f.rows[id].CoverImage = &coverURL
	return nil
}

func (f *fakeProjects) Touch(context.Context, string) error { return nil }

func (f *fakeProjects) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

// fakeUsers is an in-memory UserStore keyed by id.
type fakeUsers struct {
	mu              sync.Mutex
	rows            map[string]*models.User
	next            int
	passwordUpdates int
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{rows: map[string]*models.User{}}
	for _, u := range users {
		f.rows[u.ID] = u
	}
	return f
}

func (f *fakeUsers) CreateUser(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	u.ID = strings.Repeat(string(rune('0'+f.next%10)), 8) + "-0000-0000-0000-000000000000"
	u.CreatedAt = time.Now()
	f.rows[u.ID] = u
	return nil
}

func (f *fakeUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id], nil
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.rows {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[u.ID] = u
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[id]
	if !ok {
		return errFake
	}
	u.PasswordHash = &hash
	f.passwordUpdates++
	return nil
}

func (f *fakeUsers) GetOrCreateUserFromOIDC(ctx context.Context, sub, email, name string) (*models.User, error) {
	f.mu.Lock()
	for _, u := range f.rows {
		if u.OIDCSub != nil && *u.OIDCSub == sub {
			f.mu.Unlock()
			return u, nil
		}
	}
	f.mu.Unlock()
	if u, _ := f.GetUserByEmail(ctx, email); u != nil {
		u.OIDCSub = &sub
		return u, nil
	}
	u := &models.User{Email: email, DisplayName: name, OIDCSub: &sub}
	return u, f.CreateUser(ctx, u)
}

// fakeSettings is an in-memory SettingsStore.
type fakeSettings struct {
	rows    map[string]*models.UserSettings
	upserts int
}

func (f *fakeSettings) Get(_ context.Context, userID string) (*models.UserSettings, error) {
	if s, ok := f.rows[userID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeSettings) Upsert(_ context.Context, s *models.UserSettings) error {
	if f.rows == nil {
		f.rows = map[string]*models.UserSettings{}
	}
	f.upserts++
	cp := *s
	f.rows[s.UserID] = &cp
	return nil
}

// fakeAudit is an in-memory AuditStore that records the requested limit.
type fakeAudit struct {
	logs      []*models.AuditLog
	err       error
	lastLimit int
}

func (f *fakeAudit) ListByUser(_ context.Context, userID string, limit int) ([]*models.AuditLog, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.AuditLog
	for _, l := range f.logs {
		if l.UserID != nil && *l.UserID == userID && len(out) < limit {
			out = append(out, l)
		}
	}
	return out, nil
}
