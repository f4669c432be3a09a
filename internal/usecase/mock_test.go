package usecase

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/cityflow/cityflow/internal/domain"
	"github.com/cityflow/cityflow/internal/policy"
)

type txKey struct{}

type supportKey struct {
	complaintID int64
	userID      int64
}

// memStore is an in-memory entity store. A transaction holds the store
// lock for its whole duration and restores a snapshot when fn fails.
type memStore struct {
	mu          sync.Mutex
	nextID      int64
	complaints  map[int64]domain.Complaint
	assignments map[int64]domain.Assignment
	categories  map[int64]domain.Category
	users       map[int64]domain.User
	supports    map[supportKey]time.Time
	ratings     []domain.Rating
	audits      []domain.AuditLog
	failAudit   bool
}

func newMemStore() *memStore {
	return &memStore{
		complaints:  map[int64]domain.Complaint{},
		assignments: map[int64]domain.Assignment{},
		categories:  map[int64]domain.Category{},
		users:       map[int64]domain.User{},
		supports:    map[supportKey]time.Time{},
	}
}

func (s *memStore) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	complaints := make(map[int64]domain.Complaint, len(s.complaints))
	for k, v := range s.complaints {
		v.Photos = slices.Clone(v.Photos)
		complaints[k] = v
	}
	assignments := make(map[int64]domain.Assignment, len(s.assignments))
	for k, v := range s.assignments {
		v.SolutionPhotoURLs = slices.Clone(v.SolutionPhotoURLs)
		assignments[k] = v
	}
	categories := maps.Clone(s.categories)
	supports := maps.Clone(s.supports)
	ratings := slices.Clone(s.ratings)
	nextID := s.nextID

	err := fn(context.WithValue(ctx, txKey{}, true))
	if err != nil {
		s.complaints = complaints
		s.assignments = assignments
		s.categories = categories
		s.supports = supports
		s.ratings = ratings
		s.nextID = nextID
	}
	return err
}

func (s *memStore) addUser(u domain.User) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.id()
	}
	s.users[u.ID] = u
	return u
}

func (s *memStore) putComplaint(c domain.Complaint) domain.Complaint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.id()
	}
	if c.Priority == "" {
		c.Priority = domain.PriorityMedium
	}
	s.complaints[c.ID] = c
	return c
}

func (s *memStore) complaint(id int64) domain.Complaint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.complaints[id]
}

func (s *memStore) assignment(id int64) domain.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assignments[id]
}

func (s *memStore) supportEntries(complaintID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.supports {
		if k.complaintID == complaintID {
			n++
		}
	}
	return n
}

func (s *memStore) activeAssignments(complaintID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.assignments {
		if a.ComplaintID == complaintID && a.Status.IsActive() {
			n++
		}
	}
	return n
}

// complaints

type memComplaints struct{ s *memStore }

func (r memComplaints) Create(ctx context.Context, c domain.Complaint) (domain.Complaint, error) {
	defer r.s.lock(ctx)()
	c.ID = r.s.id()
	if c.Photos == nil {
		c.Photos = []domain.ComplaintPhoto{}
	}
	r.s.complaints[c.ID] = c
	return c, nil
}

func (r memComplaints) Get(ctx context.Context, id int64) (domain.Complaint, error) {
	defer r.s.lock(ctx)()
	c, ok := r.s.complaints[id]
	if !ok {
		return domain.Complaint{}, domain.NotFoundError{Resource: "complaint"}
	}
	c.Photos = slices.Clone(c.Photos)
	return c, nil
}

func (r memComplaints) GetForUpdate(ctx context.Context, id int64) (domain.Complaint, error) {
	return r.Get(ctx, id)
}

func (r memComplaints) Update(ctx context.Context, c domain.Complaint) (domain.Complaint, error) {
	defer r.s.lock(ctx)()
	current, ok := r.s.complaints[c.ID]
	if !ok {
		return domain.Complaint{}, domain.NotFoundError{Resource: "complaint"}
	}
	c.Photos = current.Photos
	c.SupportCount = current.SupportCount
	r.s.complaints[c.ID] = c
	return c, nil
}

func (r memComplaints) Delete(ctx context.Context, id int64) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.complaints[id]; !ok {
		return domain.NotFoundError{Resource: "complaint"}
	}
	delete(r.s.complaints, id)
	return nil
}

func (r memComplaints) ListByUser(ctx context.Context, userID int64) ([]domain.Complaint, error) {
	defer r.s.lock(ctx)()
	result := []domain.Complaint{}
	for _, c := range r.s.complaints {
		if c.UserID == userID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r memComplaints) Feed(ctx context.Context, q FeedQuery) ([]domain.Complaint, error) {
	defer r.s.lock(ctx)()
	result := []domain.Complaint{}
	for _, c := range r.s.complaints {
		if q.Sort == domain.FeedNearby && (c.Latitude == nil || c.Longitude == nil) {
			continue
		}
		result = append(result, c)
	}
	distance := func(c domain.Complaint) float64 {
		return math.Pow(*c.Latitude-*q.Latitude, 2) + math.Pow(*c.Longitude-*q.Longitude, 2)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		switch q.Sort {
		case domain.FeedPopular:
			if a.SupportCount != b.SupportCount {
				return a.SupportCount > b.SupportCount
			}
		case domain.FeedNearby:
			if da, db := distance(a), distance(b); da != db {
				return da < db
			}
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	if len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

func (r memComplaints) AddPhoto(ctx context.Context, complaintID int64, url string) (domain.ComplaintPhoto, error) {
	defer r.s.lock(ctx)()
	c, ok := r.s.complaints[complaintID]
	if !ok {
		return domain.ComplaintPhoto{}, domain.NotFoundError{Resource: "complaint"}
	}
	photo := domain.ComplaintPhoto{ID: r.s.id(), ComplaintID: complaintID, PhotoURL: url, CreatedAt: time.Now()}
	c.Photos = append(slices.Clone(c.Photos), photo)
	r.s.complaints[complaintID] = c
	return photo, nil
}

func (r memComplaints) AdjustSupportCount(ctx context.Context, id int64, delta int) (int, error) {
	defer r.s.lock(ctx)()
	c, ok := r.s.complaints[id]
	if !ok {
		return 0, domain.NotFoundError{Resource: "complaint"}
	}
	c.SupportCount += delta
	if c.SupportCount < 0 {
		return 0, errors.New("support count below zero")
	}
	r.s.complaints[id] = c
	return c.SupportCount, nil
}

// assignments

type memAssignments struct{ s *memStore }

func (r memAssignments) Create(ctx context.Context, a domain.Assignment) (domain.Assignment, error) {
	defer r.s.lock(ctx)()
	if a.Status.IsActive() {
		for _, other := range r.s.assignments {
			if other.ComplaintID == a.ComplaintID && other.Status.IsActive() {
				return domain.Assignment{}, domain.ConflictError{Message: "duplicate active assignment"}
			}
		}
	}
	a.ID = r.s.id()
	a.SolutionPhotoURLs = slices.Clone(a.SolutionPhotoURLs)
	r.s.assignments[a.ID] = a
	return a, nil
}

func (r memAssignments) Get(ctx context.Context, id int64) (domain.Assignment, error) {
	defer r.s.lock(ctx)()
	a, ok := r.s.assignments[id]
	if !ok {
		return domain.Assignment{}, domain.NotFoundError{Resource: "assignment"}
	}
	a.SolutionPhotoURLs = slices.Clone(a.SolutionPhotoURLs)
	return a, nil
}

func (r memAssignments) GetForUpdate(ctx context.Context, id int64) (domain.Assignment, error) {
	return r.Get(ctx, id)
}

func (r memAssignments) Update(ctx context.Context, a domain.Assignment) (domain.Assignment, error) {
	defer r.s.lock(ctx)()
	if _, ok := r.s.assignments[a.ID]; !ok {
		return domain.Assignment{}, domain.NotFoundError{Resource: "assignment"}
	}
	a.SolutionPhotoURLs = slices.Clone(a.SolutionPhotoURLs)
	r.s.assignments[a.ID] = a
	return a, nil
}

func (r memAssignments) FindActiveByComplaint(ctx context.Context, complaintID int64) (*domain.Assignment, error) {
	defer r.s.lock(ctx)()
	for _, a := range r.s.assignments {
		if a.ComplaintID == complaintID && a.Status.IsActive() {
			return &a, nil
		}
	}
	return nil, nil
}

func (r memAssignments) ListByEmployee(ctx context.Context, employeeID int64, statuses []domain.AssignmentStatus) ([]domain.Assignment, error) {
	defer r.s.lock(ctx)()
	result := []domain.Assignment{}
	for _, a := range r.s.assignments {
		if a.EmployeeID != employeeID {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, a.Status) {
			continue
		}
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// categories

type memCategories struct{ s *memStore }

func (r memCategories) Create(ctx context.Context, c domain.Category) (domain.Category, error) {
	defer r.s.lock(ctx)()
	for _, other := range r.s.categories {
		if other.Name == c.Name {
			return domain.Category{}, domain.ConflictError{Message: "duplicate category"}
		}
	}
	c.ID = r.s.id()
	r.s.categories[c.ID] = c
	return c, nil
}

func (r memCategories) Get(ctx context.Context, id int64) (domain.Category, error) {
	defer r.s.lock(ctx)()
	c, ok := r.s.categories[id]
	if !ok {
		return domain.Category{}, domain.NotFoundError{Resource: "category"}
	}
	return c, nil
}

func (r memCategories) GetByName(ctx context.Context, name string) (domain.Category, error) {
	defer r.s.lock(ctx)()
	for _, c := range r.s.categories {
		if c.Name == name {
			return c, nil
		}
	}
	return domain.Category{}, domain.NotFoundError{Resource: "category"}
}

func (r memCategories) Update(ctx context.Context, c domain.Category) (domain.Category, error) {
	defer r.s.lock(ctx)()
	if _, ok := r.s.categories[c.ID]; !ok {
		return domain.Category{}, domain.NotFoundError{Resource: "category"}
	}
	r.s.categories[c.ID] = c
	return c, nil
}

func (r memCategories) Delete(ctx context.Context, id int64) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.categories[id]; !ok {
		return domain.NotFoundError{Resource: "category"}
	}
	delete(r.s.categories, id)
	return nil
}

func (r memCategories) List(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	defer r.s.lock(ctx)()
	result := []domain.Category{}
	for _, c := range r.s.categories {
		if activeOnly && !c.IsActive {
			continue
		}
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// users, supports, ratings, audit

type memUsers struct{ s *memStore }

func (r memUsers) Get(ctx context.Context, id int64) (domain.User, error) {
	defer r.s.lock(ctx)()
	u, ok := r.s.users[id]
	if !ok {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	return u, nil
}

type memSupports struct{ s *memStore }

func (r memSupports) Exists(ctx context.Context, complaintID, userID int64) (bool, error) {
	defer r.s.lock(ctx)()
	_, ok := r.s.supports[supportKey{complaintID, userID}]
	return ok, nil
}

func (r memSupports) Create(ctx context.Context, complaintID, userID int64) error {
	defer r.s.lock(ctx)()
	key := supportKey{complaintID, userID}
	if _, ok := r.s.supports[key]; ok {
		return domain.ConflictError{Message: "duplicate support"}
	}
	r.s.supports[key] = time.Now()
	return nil
}

func (r memSupports) Delete(ctx context.Context, complaintID, userID int64) error {
	defer r.s.lock(ctx)()
	delete(r.s.supports, supportKey{complaintID, userID})
	return nil
}

func (r memSupports) List(ctx context.Context, complaintID int64) ([]domain.Support, error) {
	defer r.s.lock(ctx)()
	result := []domain.Support{}
	for k, at := range r.s.supports {
		if k.complaintID == complaintID {
			result = append(result, domain.Support{ComplaintID: k.complaintID, UserID: k.userID, CreatedAt: at})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

type memRatings struct{ s *memStore }

func (r memRatings) Create(ctx context.Context, rating domain.Rating) (domain.Rating, error) {
	defer r.s.lock(ctx)()
	rating.ID = r.s.id()
	r.s.ratings = append(r.s.ratings, rating)
	return rating, nil
}

func (r memRatings) List(ctx context.Context, complaintID int64) ([]domain.Rating, error) {
	defer r.s.lock(ctx)()
	result := []domain.Rating{}
	for _, rating := range r.s.ratings {
		if rating.ComplaintID == complaintID {
			result = append(result, rating)
		}
	}
	return result, nil
}

type memAudit struct{ s *memStore }

func (r memAudit) Create(ctx context.Context, log domain.AuditLog) error {
	defer r.s.lock(ctx)()
	if r.s.failAudit {
		return errors.New("audit store unavailable")
	}
	r.s.audits = append(r.s.audits, log)
	return nil
}

// collaborators

type mockClassifier struct {
	label string
	err   error
	calls int
}

func (m *mockClassifier) Classify(ctx context.Context, text string) (string, error) {
	m.calls++
	return m.label, m.err
}

type mockPhotoStorage struct {
	mu      sync.Mutex
	saved   []string
	deleted []string
	err     error
	// failAfter makes Save fail once that many files are stored.
	failAfter int
	// onSave runs once, before the first file is stored.
	onSave func()
}

func (m *mockPhotoStorage) Save(ctx context.Context, prefix, filename string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if hook := m.onSave; hook != nil {
		m.onSave = nil
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAfter > 0 && len(m.saved) >= m.failAfter {
		return "", errors.New("disk full")
	}
	url := fmt.Sprintf("/media/%s/%d-%s", prefix, len(m.saved)+1, filename)
	m.saved = append(m.saved, url)
	return url, nil
}

func (m *mockPhotoStorage) Delete(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, url)
	return nil
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (m *mockNotifier) Notify(ctx context.Context, n domain.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
}

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (m *mockPublisher) Publish(ctx context.Context, e domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// fixture wires every usecase to one memStore.
type fixture struct {
	store       *memStore
	classifier  *mockClassifier
	photos      *mockPhotoStorage
	notifier    *mockNotifier
	publisher   *mockPublisher
	complaints  *ComplaintUsecase
	assignments *AssignmentUsecase
	ledger      *LedgerUsecase
	categories  *CategoryUsecase
}

func newFixture() *fixture {
	store := newMemStore()
	f := &fixture{
		store:      store,
		classifier: &mockClassifier{label: "Yol"},
		photos:     &mockPhotoStorage{},
		notifier:   &mockNotifier{},
		publisher:  &mockPublisher{},
	}
	gate := policy.NewDefaultGate()
	effects := NewEffects(memAudit{store}, f.publisher, f.notifier, memUsers{store})

	f.complaints = NewComplaintUsecase(store, memComplaints{store}, memAssignments{store}, memCategories{store}, memUsers{store}, f.classifier, f.photos, gate, effects)
	f.assignments = NewAssignmentUsecase(store, memAssignments{store}, memComplaints{store}, memUsers{store}, f.photos, gate, effects)
	f.ledger = NewLedgerUsecase(store, memComplaints{store}, memSupports{store}, memRatings{store}, gate, effects)
	f.categories = NewCategoryUsecase(memCategories{store}, gate, effects)
	return f
}

func (f *fixture) user(role domain.Role, profileCompleted bool) domain.Actor {
	u := f.store.addUser(domain.User{
		Name:             string(role),
		Email:            fmt.Sprintf("%s-%d@example.com", role, f.store.nextID+1),
		Role:             role,
		ProfileCompleted: profileCompleted,
		IsActive:         true,
	})
	return domain.Actor{ID: u.ID, Role: u.Role}
}

func (f *fixture) complaint(reporter domain.Actor, status domain.ComplaintStatus) domain.Complaint {
	return f.store.putComplaint(domain.Complaint{
		UserID:      reporter.ID,
		Description: "çukur",
		Status:      status,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	})
}
