package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sis-enrollment/internal/models"
	"github.com/noah-isme/sis-enrollment/internal/repository"
)

// fakeCampus is an in-memory stand-in for the sis database shared by the fakes below.
type fakeCampus struct {
	mu        sync.Mutex
	persons   map[string]models.Person
	parallels map[string]models.ParallelDetail
	members   map[string]map[string]bool
	outbox    []models.OutboxEntry
}

func newFakeCampus() *fakeCampus {
	return &fakeCampus{
		persons:   map[string]models.Person{},
		parallels: map[string]models.ParallelDetail{},
		members:   map[string]map[string]bool{},
	}
}

func (f *fakeCampus) addPerson(id, username, first, last string, role models.Role) models.Person {
	p := models.Person{ID: id, Username: username, FirstName: first, LastName: last, Role: role}
	f.persons[id] = p
	return p
}

func (f *fakeCampus) addParallel(d models.ParallelDetail) {
	f.parallels[d.ID] = d
}

func (f *fakeCampus) enrollDirect(parallelID, studentID string) {
	if f.members[parallelID] == nil {
		f.members[parallelID] = map[string]bool{}
	}
	f.members[parallelID][studentID] = true
}

func (f *fakeCampus) isMember(parallelID, studentID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[parallelID][studentID]
}

func (f *fakeCampus) memberCount(parallelID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.members[parallelID])
}

func (f *fakeCampus) outboxKinds() []models.OutboxKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]models.OutboxKind, 0, len(f.outbox))
	for _, e := range f.outbox {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// persons

func (f *fakeCampus) FindByID(ctx context.Context, id string) (*models.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.persons[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCampus) FindByUsername(ctx context.Context, username string) (*models.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.persons {
		if p.Username == username {
			p := p
			return &p, nil
		}
	}
	return nil, sql.ErrNoRows
}

// parallels, exposed through a separate type since FindByID is taken by persons.
type fakeParallels struct{ *fakeCampus }

func (f fakeParallels) FindDetailByID(ctx context.Context, id string) (*models.ParallelDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.parallels[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	d.EnrolledCount = len(f.members[id])
	return &d, nil
}

func (f fakeParallels) List(ctx context.Context, filter models.ParallelFilter) ([]models.ParallelDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ParallelDetail
	for id, d := range f.parallels {
		if filter.SemesterID != "" && d.SemesterID != filter.SemesterID {
			continue
		}
		if filter.StudentUsername != "" {
			found := false
			for sid := range f.members[id] {
				if f.persons[sid].Username == filter.StudentUsername {
					found = true
				}
			}
			if !found {
				continue
			}
		}
		d.EnrolledCount = len(f.members[id])
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeParallels) IsMember(ctx context.Context, parallelID, studentID string) (bool, error) {
	return f.isMember(parallelID, studentID), nil
}

func (f fakeParallels) FindOccupants(ctx context.Context, classroomID, semesterID string, day models.DayOfWeek, slot models.TimeSlot) ([]models.Parallel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Parallel
	for _, d := range f.parallels {
		if d.ClassroomID == classroomID && d.SemesterID == semesterID && d.DayOfWeek == day && d.TimeSlot == slot {
			out = append(out, d.Parallel)
		}
	}
	return out, nil
}

func (f fakeParallels) Create(ctx context.Context, p *models.Parallel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	f.parallels[p.ID] = models.ParallelDetail{Parallel: *p}
	return nil
}

func (f fakeParallels) Update(ctx context.Context, p *models.Parallel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.parallels[p.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if len(f.members[p.ID]) > p.Capacity {
		return repository.ErrCapacityBelowEnrollment
	}
	d.Parallel = *p
	f.parallels[p.ID] = d
	return nil
}

func (f fakeParallels) ListStudents(ctx context.Context, parallelID string) ([]models.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Person
	for sid := range f.members[parallelID] {
		out = append(out, f.persons[sid])
	}
	return out, nil
}

// InTx runs fn under the campus lock and restores membership and outbox if fn fails.
func (f *fakeCampus) InTx(ctx context.Context, fn func(repository.MembershipTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	saved := map[string]map[string]bool{}
	for pid, m := range f.members {
		saved[pid] = map[string]bool{}
		for sid := range m {
			saved[pid][sid] = true
		}
	}
	savedOutbox := append([]models.OutboxEntry(nil), f.outbox...)

	if err := fn(fakeTx{f}); err != nil {
		f.members = saved
		f.outbox = savedOutbox
		return err
	}
	return nil
}

type fakeTx struct{ f *fakeCampus }

func (t fakeTx) LockStudent(ctx context.Context, studentID string) error {
	if _, ok := t.f.persons[studentID]; !ok {
		return sql.ErrNoRows
	}
	return nil
}

func (t fakeTx) LockParallel(ctx context.Context, parallelID string) (*models.Parallel, error) {
	d, ok := t.f.parallels[parallelID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	p := d.Parallel
	p.EnrolledCount = len(t.f.members[parallelID])
	return &p, nil
}

func (t fakeTx) ListHeldForCourse(ctx context.Context, studentID, courseID string, from time.Time) ([]models.Parallel, error) {
	var out []models.Parallel
	for pid, m := range t.f.members {
		d := t.f.parallels[pid]
		if m[studentID] && d.CourseID == courseID && !d.SemesterStartDate.Before(from) {
			out = append(out, d.Parallel)
		}
	}
	return out, nil
}

func (t fakeTx) IsMember(ctx context.Context, parallelID, studentID string) (bool, error) {
	return t.f.members[parallelID][studentID], nil
}

func (t fakeTx) AddStudent(ctx context.Context, parallelID, studentID string) error {
	t.f.enrollDirect(parallelID, studentID)
	return nil
}

func (t fakeTx) RemoveStudent(ctx context.Context, parallelID, studentID string) (bool, error) {
	if !t.f.members[parallelID][studentID] {
		return false, nil
	}
	delete(t.f.members[parallelID], studentID)
	return true, nil
}

func (t fakeTx) InsertOutbox(ctx context.Context, entry *models.OutboxEntry) error {
	entry.ID = uuid.NewString()
	entry.Status = models.OutboxPending
	entry.CreatedAt = time.Now()
	t.f.outbox = append(t.f.outbox, *entry)
	return nil
}

type fakeClock struct {
	active *models.Semester
	next   *models.Semester
}

func (c fakeClock) GetActive(ctx context.Context) (*models.Semester, error) {
	if c.active == nil {
		return nil, sql.ErrNoRows
	}
	return c.active, nil
}

func (c fakeClock) GetNext(ctx context.Context) (*models.Semester, error) {
	if c.next == nil {
		return nil, sql.ErrNoRows
	}
	return c.next, nil
}

type fakeDeliverer struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (d *fakeDeliverer) DeliverNow(ctx context.Context, ids ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, ids)
	return d.err
}

type fakeRecordClient struct {
	mu      sync.Mutex
	created []models.EnrollmentRequest
	graded  []models.EnrollmentRequest
	deleted []string
	records []models.EnrollmentRecord
	err     error
}

func (c *fakeRecordClient) List(ctx context.Context, username string) ([]models.EnrollmentRecord, error) {
	return c.records, c.err
}

func (c *fakeRecordClient) Create(ctx context.Context, username string, req models.EnrollmentRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.created = append(c.created, req)
	return nil
}

func (c *fakeRecordClient) Grade(ctx context.Context, username string, req models.EnrollmentRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.graded = append(c.graded, req)
	return nil
}

func (c *fakeRecordClient) Delete(ctx context.Context, username, parallelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.deleted = append(c.deleted, parallelID)
	return nil
}

func semesterAt(id string, t models.SemesterType, year int, active bool) *models.Semester {
	s := models.NewSemester(year, t)
	s.ID = id
	s.IsActive = active
	return &s
}
