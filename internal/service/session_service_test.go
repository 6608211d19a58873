package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/yourorg/fleetops/internal/domain"
	"github.com/yourorg/fleetops/internal/query"
)

type memTruckRepo struct {
	trucks map[int64]*domain.Truck
}

func (m *memTruckRepo) GetByID(ctx context.Context, companyID, id int64) (*domain.Truck, error) {
	if t, ok := m.trucks[id]; ok && t.CompanyID == companyID {
		cp := *t
		return &cp, nil
	}
	return nil, domain.NotFound("truck not found")
}

func (m *memTruckRepo) ListByCompany(ctx context.Context, companyID int64, status string) ([]*domain.Truck, error) {
	var out []*domain.Truck
	for _, t := range m.trucks {
		if t.CompanyID == companyID && (status == "" || string(t.Status) == status) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memEmployeeRepo struct {
	employees map[int64]*domain.Employee
}

func (m *memEmployeeRepo) GetByID(ctx context.Context, companyID, id int64) (*domain.Employee, error) {
	if e, ok := m.employees[id]; ok && e.CompanyID == companyID {
		cp := *e
		return &cp, nil
	}
	return nil, domain.NotFound("employee not found")
}

func (m *memEmployeeRepo) ListByCompany(ctx context.Context, companyID int64, status string) ([]*domain.Employee, error) {
	var out []*domain.Employee
	for _, e := range m.employees {
		if e.CompanyID == companyID && (status == "" || string(e.Status) == status) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// memSessionRepo enforces the one-active-session rule under a mutex the
// same way the partial unique index does in PostgreSQL.
type memSessionRepo struct {
	mu       sync.Mutex
	nextID   int64
	sessions map[int64]*domain.WorkSession
	company  map[int64]int64 // session id -> company id via truck
	trucks   *memTruckRepo
}

func newMemSessionRepo(trucks *memTruckRepo) *memSessionRepo {
	return &memSessionRepo{
		nextID:   1,
		sessions: map[int64]*domain.WorkSession{},
		company:  map[int64]int64{},
		trucks:   trucks,
	}
}

func (m *memSessionRepo) Start(ctx context.Context, session *domain.WorkSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.EmployeeID == session.EmployeeID && s.Status == domain.SessionActive {
			return domain.Conflict("employee already has an active truck session")
		}
	}
	session.ID = m.nextID
	m.nextID++
	session.StartTime = time.Now()
	session.Status = domain.SessionActive
	cp := *session
	m.sessions[session.ID] = &cp
	m.company[session.ID] = m.trucks.trucks[session.TruckID].CompanyID
	return nil
}

func (m *memSessionRepo) End(ctx context.Context, companyID, id int64, notes *string) (*domain.WorkSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || m.company[id] != companyID || s.Status != domain.SessionActive {
		return nil, domain.NotFound("active session not found")
	}
	now := time.Now()
	s.EndTime = &now
	s.Status = domain.SessionCompleted
	if notes != nil {
		s.Notes = *notes
	}
	s.Hours = now.Sub(s.StartTime).Hours()
	cp := *s
	return &cp, nil
}

func (m *memSessionRepo) ActiveByEmployee(ctx context.Context, companyID, employeeID int64) (*domain.WorkSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.EmployeeID == employeeID && s.Status == domain.SessionActive && m.company[id] == companyID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.NotFound("no active session for employee")
}

func (m *memSessionRepo) ListActive(ctx context.Context, companyID int64) ([]*domain.WorkSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.WorkSession
	for id, s := range m.sessions {
		if s.Status == domain.SessionActive && m.company[id] == companyID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSessionRepo) History(ctx context.Context, companyID int64, filter domain.SessionFilter, limit, offset int) ([]*domain.WorkSession, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*domain.WorkSession
	for id, s := range m.sessions {
		if m.company[id] != companyID {
			continue
		}
		if filter.TruckID != nil && s.TruckID != *filter.TruckID {
			continue
		}
		if filter.EmployeeID != nil && s.EmployeeID != *filter.EmployeeID {
			continue
		}
		cp := *s
		matched = append(matched, &cp)
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (m *memSessionRepo) Analytics(ctx context.Context, companyID int64, from, to *time.Time) (*domain.SessionAnalytics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &domain.SessionAnalytics{}
	for id, s := range m.sessions {
		if m.company[id] != companyID {
			continue
		}
		a.TotalSessions++
		if s.Status == domain.SessionActive {
			a.ActiveSessions++
		} else {
			a.CompletedSessions++
		}
	}
	return a, nil
}

func (m *memSessionRepo) TruckUsage(ctx context.Context, companyID int64, from, to *time.Time) ([]*domain.TruckUsage, error) {
	return nil, nil
}

func (m *memSessionRepo) ActivitySeries(ctx context.Context, companyID int64, granularity string, from, to *time.Time) ([]*domain.ActivityBucket, error) {
	if _, err := query.ParseGranularity(granularity); err != nil {
		return nil, domain.Invalid("%v", err)
	}
	return nil, nil
}

func (m *memSessionRepo) Overdue(ctx context.Context, cutoff time.Time) ([]*domain.OverdueSession, error) {
	return nil, nil
}

func (m *memSessionRepo) CountActive(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.sessions {
		if s.Status == domain.SessionActive {
			n++
		}
	}
	return n, nil
}

func newTestSessionService() (*SessionService, *memSessionRepo) {
	trucks := &memTruckRepo{trucks: map[int64]*domain.Truck{
		1: {ID: 1, CompanyID: 1, TruckNumber: "T-001", LicensePlate: "ABC-123", Status: domain.TruckActive},
		2: {ID: 2, CompanyID: 1, TruckNumber: "T-002", LicensePlate: "DEF-456", Status: domain.TruckMaintenance},
		3: {ID: 3, CompanyID: 2, TruckNumber: "T-900", LicensePlate: "ZZZ-999", Status: domain.TruckActive},
	}}
	employees := &memEmployeeRepo{employees: map[int64]*domain.Employee{
		10: {ID: 10, CompanyID: 1, EmployeeNo: "E-10", FirstName: "Dana", LastName: "Ray", Status: domain.EmployeeActive},
		11: {ID: 11, CompanyID: 1, EmployeeNo: "E-11", FirstName: "Lee", LastName: "Kim", Status: domain.EmployeeInactive},
		20: {ID: 20, CompanyID: 2, EmployeeNo: "E-20", FirstName: "Sam", LastName: "Fox", Status: domain.EmployeeActive},
	}}
	sessions := newMemSessionRepo(trucks)
	svc := NewSessionService(sessions, trucks, employees, testAudit(), testLogger(), 20, 100)
	return svc, sessions
}

func TestSessionLifecycle(t *testing.T) {
	svc, _ := newTestSessionService()
	ctx := context.Background()

	// Start
	s, err := svc.Start(ctx, 1, 100, StartInput{TruckID: 1, EmployeeID: 10})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if s.Status != domain.SessionActive || s.TruckNumber != "T-001" {
		t.Fatalf("unexpected session %+v", s)
	}

	// Second start for the same employee conflicts
	if _, err := svc.Start(ctx, 1, 100, StartInput{TruckID: 1, EmployeeID: 10}); domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	// End
	notes := "done"
	ended, err := svc.End(ctx, 1, 100, s.ID, &notes)
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if ended.Status != domain.SessionCompleted || ended.EndTime == nil || ended.Notes != "done" {
		t.Fatalf("unexpected ended session %+v", ended)
	}

	// Ending again reports not found
	if _, err := svc.End(ctx, 1, 100, s.ID, nil); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not found on double end, got %v", err)
	}

	// Employee is free again
	if _, err := svc.Start(ctx, 1, 100, StartInput{TruckID: 1, EmployeeID: 10}); err != nil {
		t.Fatalf("restart after end failed: %v", err)
	}
}

func TestStartRejectsUnavailableResources(t *testing.T) {
	svc, _ := newTestSessionService()
	ctx := context.Background()

	cases := []struct {
		name string
		in   StartInput
		kind domain.Kind
	}{
		{"missing ids", StartInput{}, domain.KindValidation},
		{"unknown truck", StartInput{TruckID: 99, EmployeeID: 10}, domain.KindNotFound},
		{"truck in maintenance", StartInput{TruckID: 2, EmployeeID: 10}, domain.KindValidation},
		{"unknown employee", StartInput{TruckID: 1, EmployeeID: 99}, domain.KindNotFound},
		{"inactive employee", StartInput{TruckID: 1, EmployeeID: 11}, domain.KindValidation},
		{"cross-company truck", StartInput{TruckID: 3, EmployeeID: 10}, domain.KindNotFound},
		{"cross-company employee", StartInput{TruckID: 1, EmployeeID: 20}, domain.KindNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Start(ctx, 1, 100, tc.in)
			if domain.KindOf(err) != tc.kind {
				t.Fatalf("expected kind %v, got %v", tc.kind, err)
			}
		})
	}
}

func TestEndIsTenantScoped(t *testing.T) {
	svc, _ := newTestSessionService()
	ctx := context.Background()

	s, err := svc.Start(ctx, 1, 100, StartInput{TruckID: 1, EmployeeID: 10})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// Company 2 cannot see or end company 1's session.
	if _, err := svc.End(ctx, 2, 200, s.ID, nil); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not found across companies, got %v", err)
	}

	// The session is still active for its owner.
	active, err := svc.ListActive(ctx, 1)
	if err != nil {
		t.Fatalf("list active failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != s.ID {
		t.Fatalf("expected the session to remain active, got %+v", active)
	}
}

func TestConcurrentStartsAdmitExactlyOne(t *testing.T) {
	svc, repo := newTestSessionService()
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Start(ctx, 1, 100, StartInput{TruckID: 1, EmployeeID: 10})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes, conflicts := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case domain.KindOf(err) == domain.KindConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly 1 success, got %d (%d conflicts)", successes, conflicts)
	}
	count, _ := repo.CountActive(ctx)
	if count != 1 {
		t.Fatalf("expected 1 active session, got %d", count)
	}
}

func TestHistoryPagination(t *testing.T) {
	svc, _ := newTestSessionService()
	ctx := context.Background()

	// 5 completed sessions for one employee.
	for i := 0; i < 5; i++ {
		s, err := svc.Start(ctx, 1, 100, StartInput{TruckID: 1, EmployeeID: 10})
		if err != nil {
			t.Fatalf("start %d failed: %v", i, err)
		}
		if _, err := svc.End(ctx, 1, 100, s.ID, nil); err != nil {
			t.Fatalf("end %d failed: %v", i, err)
		}
	}

	page, err := svc.History(ctx, 1, domain.SessionFilter{}, 1, 2)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if page.Pagination.TotalSessions != 5 || page.Pagination.TotalPages != 3 {
		t.Fatalf("unexpected pagination %+v", page.Pagination)
	}
	if !page.Pagination.HasNextPage || page.Pagination.HasPrevPage {
		t.Fatalf("unexpected page flags %+v", page.Pagination)
	}
	if len(page.Sessions) != 2 {
		t.Fatalf("expected 2 sessions on page, got %d", len(page.Sessions))
	}

	last, err := svc.History(ctx, 1, domain.SessionFilter{}, 3, 2)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(last.Sessions) != 1 || last.Pagination.HasNextPage || !last.Pagination.HasPrevPage {
		t.Fatalf("unexpected last page %+v", last.Pagination)
	}

	// Out-of-range limit is clamped, not rejected.
	big, err := svc.History(ctx, 1, domain.SessionFilter{}, 1, 100000)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(big.Sessions) != 5 {
		t.Fatalf("expected all sessions, got %d", len(big.Sessions))
	}
}

func TestHistoryRejectsInvertedDateRange(t *testing.T) {
	svc, _ := newTestSessionService()
	from := time.Now()
	to := from.Add(-time.Hour)
	_, err := svc.History(context.Background(), 1, domain.SessionFilter{DateFrom: &from, DateTo: &to}, 1, 10)
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAnalyticsGranularity(t *testing.T) {
	svc, _ := newTestSessionService()
	ctx := context.Background()

	for _, g := range []string{"", "hour", "day", "week", "month"} {
		if _, err := svc.Analytics(ctx, 1, g, nil, nil); err != nil {
			t.Fatalf("analytics with granularity %q failed: %v", g, err)
		}
	}
	if _, err := svc.Analytics(ctx, 1, "fortnight", nil, nil); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error for unknown granularity, got %v", err)
	}
}
