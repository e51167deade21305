// Package testutil holds in-memory repository fakes shared by service and
// handler tests.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"nutricoach/internal/adapters/persistence/models"
	"nutricoach/internal/adapters/persistence/repositories"
	"nutricoach/internal/core/domain"
	"nutricoach/internal/pkg/password"

	"gorm.io/gorm"
)

var (
	_ repositories.UserRepository         = (*Users)(nil)
	_ repositories.RefreshTokenRepository = (*Ledger)(nil)
	_ repositories.AssignmentRepository   = (*Assignments)(nil)
)

// Users is a mutex-protected UserRepository
type Users struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*models.User

	// GetErr, when set, is returned by GetByID
	GetErr error
}

// NewUsers creates an empty user store
func NewUsers() *Users {
	return &Users{byID: make(map[uint]*models.User)}
}

func (s *Users) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = strings.ToLower(user.Email)
	for _, u := range s.byID {
		if u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	s.nextID++
	user.ID = s.nextID
	if user.Role == "" {
		user.Role = string(domain.RoleClient)
	}
	user.CreatedAt = time.Now()
	cp := *user
	s.byID[user.ID] = &cp
	return nil
}

func (s *Users) GetByID(_ context.Context, id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.GetErr != nil {
		return nil, s.GetErr
	}
	u, ok := s.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Users) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *user
	s.byID[user.ID] = &cp
	return nil
}

func (s *Users) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.ToLower(email)
	for _, u := range s.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *Users) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.GetByEmail(ctx, email)
	return err == nil, nil
}

func (s *Users) List(_ context.Context, offset, limit int) ([]*models.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.sorted()
	return page(all, offset, limit), int64(len(all)), nil
}

func (s *Users) ListByRole(_ context.Context, role string, offset, limit int) ([]*models.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*models.User
	for _, u := range s.sorted() {
		if u.Role == role {
			matched = append(matched, u)
		}
	}
	return page(matched, offset, limit), int64(len(matched)), nil
}

func page(users []*models.User, offset, limit int) []*models.User {
	if offset >= len(users) {
		return []*models.User{}
	}
	end := offset + limit
	if end > len(users) {
		end = len(users)
	}
	return users[offset:end]
}

func (s *Users) ListByIDs(_ context.Context, ids []uint) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[uint]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	users := []*models.User{}
	for _, u := range s.sorted() {
		if want[u.ID] {
			users = append(users, u)
		}
	}
	return users, nil
}

// Remove deletes a user outright
func (s *Users) Remove(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

// sorted returns copies ordered by id; caller holds the lock
func (s *Users) sorted() []*models.User {
	out := make([]*models.User, 0, len(s.byID))
	for _, u := range s.byID {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Ledger is a mutex-protected RefreshTokenRepository keyed by token hash
type Ledger struct {
	mu      sync.Mutex
	nextID  uint
	records map[string]*models.RefreshToken

	// Storage failures returned by Create, Lookup and CountActiveByUserID
	CreateErr error
	LookupErr error
	CountErr  error

	// ConsumeErr fails the next Consume only
	ConsumeErr error

	// BeforeConsume runs, unlocked, at the start of every Consume
	BeforeConsume func()
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{records: make(map[string]*models.RefreshToken)}
}

func (l *Ledger) Create(_ context.Context, userID uint, token string, expiresAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.CreateErr != nil {
		return l.CreateErr
	}
	key := password.HashToken(token)
	if _, ok := l.records[key]; ok {
		return gorm.ErrDuplicatedKey
	}
	l.nextID++
	l.records[key] = &models.RefreshToken{
		ID:        l.nextID,
		UserID:    userID,
		TokenHash: key,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	return nil
}

func (l *Ledger) Lookup(_ context.Context, token string) (*models.RefreshToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.LookupErr != nil {
		return nil, l.LookupErr
	}
	rec, ok := l.records[password.HashToken(token)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (l *Ledger) Delete(ctx context.Context, token string) error {
	_, err := l.Consume(ctx, token)
	return err
}

func (l *Ledger) Consume(_ context.Context, token string) (bool, error) {
	if l.BeforeConsume != nil {
		l.BeforeConsume()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ConsumeErr; err != nil {
		l.ConsumeErr = nil
		return false, err
	}
	key := password.HashToken(token)
	if _, ok := l.records[key]; !ok {
		return false, nil
	}
	delete(l.records, key)
	return true, nil
}

func (l *Ledger) DeleteAllByUserID(_ context.Context, userID uint) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, rec := range l.records {
		if rec.UserID == userID {
			delete(l.records, key)
		}
	}
	return nil
}

func (l *Ledger) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int64
	for key, rec := range l.records {
		if rec.IsExpiredAt(now) {
			delete(l.records, key)
			n++
		}
	}
	return n, nil
}

func (l *Ledger) CountActiveByUserID(_ context.Context, userID uint, now time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.CountErr != nil {
		return 0, l.CountErr
	}
	var n int64
	for _, rec := range l.records {
		if rec.UserID == userID && !rec.IsExpiredAt(now) {
			n++
		}
	}
	return n, nil
}

// Has reports whether a live or expired record exists for the raw token
func (l *Ledger) Has(token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.records[password.HashToken(token)]
	return ok
}

// Len returns the number of stored records
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Put stores a record directly, bypassing CreateErr
func (l *Ledger) Put(userID uint, token string, expiresAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	key := password.HashToken(token)
	l.records[key] = &models.RefreshToken{ID: l.nextID, UserID: userID, TokenHash: key, ExpiresAt: expiresAt}
}

type assignmentKey struct {
	coach, client uint
}

// Assignments is a mutex-protected AssignmentRepository
type Assignments struct {
	mu    sync.Mutex
	links map[assignmentKey]bool

	// ExistsErr, when set, is returned by Exists
	ExistsErr error
}

// NewAssignments creates an empty assignment store
func NewAssignments() *Assignments {
	return &Assignments{links: make(map[assignmentKey]bool)}
}

func (a *Assignments) Create(_ context.Context, coachID, clientID uint) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.links[assignmentKey{coachID, clientID}] = true
	return nil
}

func (a *Assignments) Delete(_ context.Context, coachID, clientID uint) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.links, assignmentKey{coachID, clientID})
	return nil
}

func (a *Assignments) Exists(_ context.Context, coachID, clientID uint) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ExistsErr != nil {
		return false, a.ExistsErr
	}
	return a.links[assignmentKey{coachID, clientID}], nil
}

func (a *Assignments) ListClientIDs(_ context.Context, coachID uint) ([]uint, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := []uint{}
	for k := range a.links {
		if k.coach == coachID {
			ids = append(ids, k.client)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (a *Assignments) ListCoachIDs(_ context.Context, clientID uint) ([]uint, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := []uint{}
	for k := range a.links {
		if k.client == clientID {
			ids = append(ids, k.coach)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
