package apitest

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Account is a user known to the fake backend.
type Account struct {
	ID          string
	Email       string
	Password    string
	FullName    string
	AvatarURL   string
	Status      int
	MFA         bool
	Permissions map[string][]string
	UpdatedAt   time.Time
}

type accountJSON struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
	Status    int    `json:"status"`
	UpdatedAt string `json:"updated_at"`
}

func (a *Account) json() accountJSON {
	return accountJSON{
		ID:        a.ID,
		Email:     a.Email,
		FullName:  a.FullName,
		AvatarURL: a.AvatarURL,
		Status:    a.Status,
		UpdatedAt: a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// accounts is an in-memory user repository keyed by ID with an email index.
type accounts struct {
	lock     sync.RWMutex
	byID     map[string]*Account
	emailIDs map[string]string
}

func newAccounts() *accounts {
	return &accounts{
		byID:     make(map[string]*Account),
		emailIDs: make(map[string]string),
	}
}

func (r *accounts) upsert(a *Account) (created bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	email := strings.ToLower(a.Email)
	if a.ID == "" {
		if id, ok := r.emailIDs[email]; ok {
			a.ID = id
		} else {
			a.ID = uuid.New().String()
			created = true
		}
	} else if _, ok := r.byID[a.ID]; !ok {
		created = true
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now()
	}
	if prev, ok := r.byID[a.ID]; ok && !strings.EqualFold(prev.Email, a.Email) {
		delete(r.emailIDs, strings.ToLower(prev.Email))
	}
	r.byID[a.ID] = a
	r.emailIDs[email] = a.ID
	return created
}

func (r *accounts) get(id string) (*Account, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	cp := *a
	return &cp, true
}

func (r *accounts) byEmail(email string) (*Account, bool) {
	r.lock.RLock()
	id, ok := r.emailIDs[strings.ToLower(email)]
	r.lock.RUnlock()
	if !ok {
		return nil, false
	}
	return r.get(id)
}

func (r *accounts) delete(id string) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return false
	}
	delete(r.byID, id)
	delete(r.emailIDs, strings.ToLower(a.Email))
	return true
}

type listFilter struct {
	statuses map[int]bool
	search   string
}

func (r *accounts) list(f listFilter) []*Account {
	r.lock.RLock()
	defer r.lock.RUnlock()

	out := make([]*Account, 0, len(r.byID))
	for _, a := range r.byID {
		if len(f.statuses) > 0 && !f.statuses[a.Status] {
			continue
		}
		if f.search != "" &&
			!strings.Contains(strings.ToLower(a.Email), f.search) &&
			!strings.Contains(strings.ToLower(a.FullName), f.search) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Email < out[j].Email
	})
	return out
}
