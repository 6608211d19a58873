package test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yourorg/fleetops/internal/domain"
)

// memStore backs the HTTP flow tests. The repository views below share one
// store so sessions see the trucks and employees seeded next to them.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	users     map[int64]*domain.User
	companies map[int64]*domain.Company
	trucks    map[int64]*domain.Truck
	employees map[int64]*domain.Employee
	sessions  map[int64]*domain.WorkSession
}

func newMemStore() *memStore {
	return &memStore{
		nextID:    1,
		users:     map[int64]*domain.User{},
		companies: map[int64]*domain.Company{},
		trucks:    map[int64]*domain.Truck{},
		employees: map[int64]*domain.Employee{},
		sessions:  map[int64]*domain.WorkSession{},
	}
}

func (s *memStore) id() int64 {
	v := s.nextID
	s.nextID++
	return v
}

func (s *memStore) addTruck(companyID int64, number string) *domain.Truck {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &domain.Truck{
		ID:           s.id(),
		CompanyID:    companyID,
		TruckNumber:  number,
		LicensePlate: "PL-" + number,
		Status:       domain.TruckActive,
	}
	s.trucks[t.ID] = t
	return t
}

func (s *memStore) addEmployee(companyID int64, no, first, last string) *domain.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &domain.Employee{
		ID:         s.id(),
		CompanyID:  companyID,
		EmployeeNo: no,
		FirstName:  first,
		LastName:   last,
		Status:     domain.EmployeeActive,
	}
	s.employees[e.ID] = e
	return e
}

type memUsers struct{ *memStore }

func (m memUsers) CreateWithCompany(ctx context.Context, company *domain.Company, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return domain.Conflict("username or email already exists")
		}
	}
	company.ID = m.id()
	m.companies[company.ID] = company
	user.ID = m.id()
	user.CompanyID = company.ID
	user.CompanyName = company.Name
	user.IsActive = true
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m memUsers) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.NotFound("user not found")
}

func (m memUsers) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if (u.Username == login || u.Email == login) && u.IsActive {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.NotFound("user not found")
}

func (m memUsers) TouchLastLogin(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		now := time.Now()
		u.LastLogin = &now
		return nil
	}
	return domain.NotFound("user not found")
}

func (m memUsers) UpdatePassword(ctx context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.PasswordHash = hash
		return nil
	}
	return domain.NotFound("user not found")
}

func (m memUsers) Deactivate(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.IsActive = false
		return nil
	}
	return domain.NotFound("user not found")
}

type memCompanies struct{ *memStore }

func (m memCompanies) GetByID(ctx context.Context, id int64) (*domain.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.companies[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, domain.NotFound("company not found")
}

type memTrucks struct{ *memStore }

func (m memTrucks) GetByID(ctx context.Context, companyID, id int64) (*domain.Truck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.trucks[id]; ok && t.CompanyID == companyID {
		cp := *t
		return &cp, nil
	}
	return nil, domain.NotFound("truck not found")
}

func (m memTrucks) ListByCompany(ctx context.Context, companyID int64, status string) ([]*domain.Truck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Truck
	for _, t := range m.trucks {
		if t.CompanyID == companyID && (status == "" || string(t.Status) == status) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memEmployees struct{ *memStore }

func (m memEmployees) GetByID(ctx context.Context, companyID, id int64) (*domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.employees[id]; ok && e.CompanyID == companyID {
		cp := *e
		return &cp, nil
	}
	return nil, domain.NotFound("employee not found")
}

func (m memEmployees) ListByCompany(ctx context.Context, companyID int64, status string) ([]*domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Employee
	for _, e := range m.employees {
		if e.CompanyID == companyID && (status == "" || string(e.Status) == status) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memSessions struct{ *memStore }

func (m memSessions) companyOf(ws *domain.WorkSession) int64 {
	if t, ok := m.trucks[ws.TruckID]; ok {
		return t.CompanyID
	}
	return 0
}

func (m memSessions) annotate(ws *domain.WorkSession) *domain.WorkSession {
	cp := *ws
	if t, ok := m.trucks[ws.TruckID]; ok {
		cp.TruckNumber = t.TruckNumber
		cp.LicensePlate = t.LicensePlate
	}
	if e, ok := m.employees[ws.EmployeeID]; ok {
		cp.EmployeeNo = e.EmployeeNo
		cp.EmployeeName = e.FullName()
	}
	if ws.EndTime != nil {
		cp.Hours = ws.EndTime.Sub(ws.StartTime).Hours()
	} else {
		cp.Hours = time.Since(ws.StartTime).Hours()
	}
	return &cp
}

func (m memSessions) Start(ctx context.Context, session *domain.WorkSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ws := range m.sessions {
		if ws.EmployeeID == session.EmployeeID && ws.Status == domain.SessionActive {
			return domain.Conflict("employee already has an active truck session")
		}
	}
	session.ID = m.id()
	session.StartTime = time.Now()
	session.Status = domain.SessionActive
	cp := *session
	m.sessions[session.ID] = &cp
	return nil
}

func (m memSessions) End(ctx context.Context, companyID, id int64, notes *string) (*domain.WorkSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.sessions[id]
	if !ok || ws.Status != domain.SessionActive || m.companyOf(ws) != companyID {
		return nil, domain.NotFound("active session not found")
	}
	now := time.Now()
	ws.EndTime = &now
	ws.Status = domain.SessionCompleted
	if notes != nil {
		ws.Notes = *notes
	}
	return m.annotate(ws), nil
}

func (m memSessions) ActiveByEmployee(ctx context.Context, companyID, employeeID int64) (*domain.WorkSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ws := range m.sessions {
		if ws.EmployeeID == employeeID && ws.Status == domain.SessionActive && m.companyOf(ws) == companyID {
			return m.annotate(ws), nil
		}
	}
	return nil, domain.NotFound("no active session for employee")
}

func (m memSessions) ListActive(ctx context.Context, companyID int64) ([]*domain.WorkSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.WorkSession
	for _, ws := range m.sessions {
		if ws.Status == domain.SessionActive && m.companyOf(ws) == companyID {
			out = append(out, m.annotate(ws))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (m memSessions) History(ctx context.Context, companyID int64, filter domain.SessionFilter, limit, offset int) ([]*domain.WorkSession, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*domain.WorkSession
	for _, ws := range m.sessions {
		if m.companyOf(ws) != companyID {
			continue
		}
		if filter.TruckID != nil && ws.TruckID != *filter.TruckID {
			continue
		}
		if filter.EmployeeID != nil && ws.EmployeeID != *filter.EmployeeID {
			continue
		}
		all = append(all, m.annotate(ws))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartTime.After(all[j].StartTime) })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (m memSessions) Analytics(ctx context.Context, companyID int64, from, to *time.Time) (*domain.SessionAnalytics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &domain.SessionAnalytics{}
	for _, ws := range m.sessions {
		if m.companyOf(ws) != companyID {
			continue
		}
		a.TotalSessions++
		if ws.Status == domain.SessionActive {
			a.ActiveSessions++
		} else {
			a.CompletedSessions++
		}
	}
	return a, nil
}

func (m memSessions) TruckUsage(ctx context.Context, companyID int64, from, to *time.Time) ([]*domain.TruckUsage, error) {
	return nil, nil
}

func (m memSessions) ActivitySeries(ctx context.Context, companyID int64, granularity string, from, to *time.Time) ([]*domain.ActivityBucket, error) {
	return nil, nil
}

func (m memSessions) Overdue(ctx context.Context, cutoff time.Time) ([]*domain.OverdueSession, error) {
	return nil, nil
}

func (m memSessions) CountActive(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, ws := range m.sessions {
		if ws.Status == domain.SessionActive {
			n++
		}
	}
	return n, nil
}
