package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"motorent/internal/auth"
	"motorent/internal/availability"
	"motorent/internal/config"
	"motorent/internal/db"
	"motorent/internal/entities"
	"motorent/internal/repository"
	"motorent/internal/storage"
)

// memDB is an in-memory stand-in for PostgreSQL. WithinTx serialises
// transactions and restores a snapshot when fn fails, which is what the
// services rely on from the real database.
type memDB struct {
	mu  sync.Mutex
	seq int64
	now func() time.Time

	users        map[int64]db.User
	pending      map[int64]db.PendingUser
	motors       map[int64]db.Motor
	reservations map[int64]db.Reservation
	payments     map[int64]db.Payment
	testimonials map[int64]db.Testimonial

	// motorStatusErr, when set, fails every motor status update.
	motorStatusErr error
}

type snapshot struct {
	seq          int64
	users        map[int64]db.User
	pending      map[int64]db.PendingUser
	motors       map[int64]db.Motor
	reservations map[int64]db.Reservation
	payments     map[int64]db.Payment
	testimonials map[int64]db.Testimonial
}

func newMemDB(now func() time.Time) *memDB {
	return &memDB{
		now:          now,
		users:        map[int64]db.User{},
		pending:      map[int64]db.PendingUser{},
		motors:       map[int64]db.Motor{},
		reservations: map[int64]db.Reservation{},
		payments:     map[int64]db.Payment{},
		testimonials: map[int64]db.Testimonial{},
	}
}

func (m *memDB) snapshot() snapshot {
	return snapshot{
		seq:          m.seq,
		users:        maps.Clone(m.users),
		pending:      maps.Clone(m.pending),
		motors:       maps.Clone(m.motors),
		reservations: maps.Clone(m.reservations),
		payments:     maps.Clone(m.payments),
		testimonials: maps.Clone(m.testimonials),
	}
}

func (m *memDB) restore(s snapshot) {
	m.seq = s.seq
	m.users, m.pending, m.motors = s.users, s.pending, s.motors
	m.reservations, m.payments, m.testimonials = s.reservations, s.payments, s.testimonials
}

func (m *memDB) nextID() int64 {
	m.seq++
	return m.seq
}

func (m *memDB) Reader() repository.Querier { return nil }

func (m *memDB) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithCancel(ctx)
}

func (m *memDB) WithinTx(ctx context.Context, fn func(ctx context.Context, q repository.Querier) error) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshot()
	defer func() {
		if p := recover(); p != nil {
			m.restore(snap)
			panic(p)
		}
		if err != nil {
			m.restore(snap)
		}
	}()
	return fn(ctx, nil)
}

func (m *memDB) stores() Stores {
	return Stores{
		Motors:       memMotors{m},
		Reservations: memReservations{m},
		Payments:     memPayments{m},
		Users:        memUsers{m},
		Testimonials: memTestimonials{m},
		Jobs:         memJobs{m},
	}
}

func sortedValues[T any](src map[int64]T) []T {
	keys := slices.Sorted(maps.Keys(src))
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, src[k])
	}
	return out
}

type memMotors struct{ *memDB }

func (s memMotors) Get(_ context.Context, _ repository.Querier, id int64) (*db.Motor, error) {
	mt, ok := s.motors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &mt, nil
}

func (s memMotors) GetForUpdate(ctx context.Context, q repository.Querier, id int64) (*db.Motor, error) {
	return s.Get(ctx, q, id)
}

func (s memMotors) List(_ context.Context, _ repository.Querier, f entities.MotorFilter) ([]db.Motor, error) {
	out := []db.Motor{}
	for _, mt := range sortedValues(s.motors) {
		if f.Status != "" && string(mt.Status) != f.Status {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(mt.Brand+" "+mt.Type), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, mt)
	}
	return out, nil
}

func (s memMotors) Create(_ context.Context, _ repository.Querier, mt *db.Motor) error {
	mt.ID = s.nextID()
	mt.CreatedAt, mt.UpdatedAt = s.now(), s.now()
	s.motors[mt.ID] = *mt
	return nil
}

func (s memMotors) Update(_ context.Context, _ repository.Querier, mt *db.Motor) error {
	cur, ok := s.motors[mt.ID]
	if !ok {
		return repository.ErrNotFound
	}
	mt.Status = cur.Status
	mt.UpdatedAt = s.now()
	s.motors[mt.ID] = *mt
	return nil
}

func (s memMotors) UpdateStatus(_ context.Context, _ repository.Querier, id int64, status db.MotorStatus) error {
	if s.motorStatusErr != nil {
		return s.motorStatusErr
	}
	mt, ok := s.motors[id]
	if !ok {
		return repository.ErrNotFound
	}
	mt.Status = status
	s.motors[id] = mt
	return nil
}

func (s memMotors) Delete(_ context.Context, _ repository.Querier, id int64) error {
	if _, ok := s.motors[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.motors, id)
	for rid, r := range s.reservations {
		if r.MotorID == id {
			r.MotorID = 0
			s.reservations[rid] = r
		}
	}
	return nil
}

type memReservations struct{ *memDB }

func (s memReservations) Get(_ context.Context, _ repository.Querier, id int64) (*db.Reservation, error) {
	r, ok := s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (s memReservations) GetForUpdate(ctx context.Context, q repository.Querier, id int64) (*db.Reservation, error) {
	return s.Get(ctx, q, id)
}

func (s memReservations) detail(r db.Reservation) entities.ReservationDetail {
	u := s.users[r.UserID]
	mt := s.motors[r.MotorID]
	d := entities.ReservationDetail{
		Reservation: r,
		EndDate:     r.EndDate(),
		UserName:    u.Name,
		UserEmail:   u.Email,
		UserPhone:   u.Phone,
		MotorBrand:  mt.Brand,
		MotorType:   mt.Type,
	}
	for _, p := range s.payments {
		if p.ReservationID == r.ID {
			id, st := p.ID, p.Status
			d.PaymentID, d.PaymentStatus = &id, &st
		}
	}
	return d
}

func (s memReservations) GetDetail(_ context.Context, _ repository.Querier, id int64) (*entities.ReservationDetail, error) {
	r, ok := s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	d := s.detail(r)
	return &d, nil
}

func (s memReservations) Create(_ context.Context, _ repository.Querier, r *db.Reservation) error {
	r.ID = s.nextID()
	r.CreatedAt, r.UpdatedAt = s.now(), s.now()
	s.reservations[r.ID] = *r
	return nil
}

func (s memReservations) UpdateStatus(_ context.Context, _ repository.Querier, id int64, status db.ReservationStatus) error {
	r, ok := s.reservations[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Status = status
	s.reservations[id] = r
	return nil
}

func (s memReservations) ListBlocking(_ context.Context, _ repository.Querier, motorID int64, p availability.Period, excludeID int64) ([]db.Reservation, error) {
	var out []db.Reservation
	for _, r := range sortedValues(s.reservations) {
		if !r.Status.Blocks() || r.MotorID == 0 || r.ID == excludeID {
			continue
		}
		if motorID != 0 && r.MotorID != motorID {
			continue
		}
		if availability.Of(r).Overlaps(p) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s memReservations) ActiveIDsForMotor(_ context.Context, _ repository.Querier, motorID int64) ([]int64, error) {
	var ids []int64
	for _, r := range sortedValues(s.reservations) {
		if r.MotorID == motorID && r.Status.Active() {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

func (s memReservations) CountForUser(_ context.Context, _ repository.Querier, userID int64) (int, error) {
	n := 0
	for _, r := range s.reservations {
		if r.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s memReservations) List(_ context.Context, _ repository.Querier, f entities.ReservationFilter) ([]entities.ReservationDetail, error) {
	out := []entities.ReservationDetail{}
	for _, r := range sortedValues(s.reservations) {
		if f.Status != "" && string(r.Status) != f.Status {
			continue
		}
		d := s.detail(r)
		if f.Search != "" && !strings.Contains(strings.ToLower(d.UserName+" "+d.UserEmail+" "+d.MotorBrand), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (s memReservations) ListForUser(_ context.Context, _ repository.Querier, userID int64) ([]entities.ReservationDetail, error) {
	out := []entities.ReservationDetail{}
	for _, r := range sortedValues(s.reservations) {
		if r.UserID == userID {
			out = append(out, s.detail(r))
		}
	}
	return out, nil
}

type memPayments struct{ *memDB }

func (s memPayments) Get(_ context.Context, _ repository.Querier, id int64) (*db.Payment, error) {
	p, ok := s.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (s memPayments) GetForUpdate(ctx context.Context, q repository.Querier, id int64) (*db.Payment, error) {
	return s.Get(ctx, q, id)
}

func (s memPayments) GetByReservation(_ context.Context, _ repository.Querier, reservationID int64) (*db.Payment, error) {
	for _, p := range s.payments {
		if p.ReservationID == reservationID {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s memPayments) detail(p db.Payment) entities.PaymentDetail {
	r := s.reservations[p.ReservationID]
	u := s.users[r.UserID]
	mt := s.motors[r.MotorID]
	return entities.PaymentDetail{
		Payment:           p,
		ReservationStatus: r.Status,
		StartDate:         r.StartDate,
		DurationDays:      r.DurationDays,
		UserID:            u.ID,
		UserName:          u.Name,
		UserEmail:         u.Email,
		UserPhone:         u.Phone,
		MotorID:           r.MotorID,
		MotorBrand:        mt.Brand,
		MotorType:         mt.Type,
	}
}

func (s memPayments) GetDetail(_ context.Context, _ repository.Querier, id int64) (*entities.PaymentDetail, error) {
	p, ok := s.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	d := s.detail(p)
	return &d, nil
}

func (s memPayments) Create(ctx context.Context, q repository.Querier, p *db.Payment) error {
	if _, err := s.GetByReservation(ctx, q, p.ReservationID); err == nil {
		return repository.ErrDuplicate
	}
	p.ID = s.nextID()
	p.CreatedAt, p.UpdatedAt = s.now(), s.now()
	s.payments[p.ID] = *p
	return nil
}

func (s memPayments) ReplaceProof(_ context.Context, _ repository.Querier, id int64, proofRef, note string) error {
	p, ok := s.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.ProofRef, p.Note, p.Status, p.AdminNote = proofRef, note, db.PaymentPending, ""
	s.payments[id] = p
	return nil
}

func (s memPayments) Decide(_ context.Context, _ repository.Querier, id int64, status db.PaymentStatus, adminNote string) error {
	p, ok := s.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Status, p.AdminNote = status, adminNote
	s.payments[id] = p
	return nil
}

func (s memPayments) List(_ context.Context, _ repository.Querier, f entities.PaymentFilter) ([]entities.PaymentDetail, error) {
	out := []entities.PaymentDetail{}
	for _, p := range sortedValues(s.payments) {
		if f.Status != "" && string(p.Status) != f.Status {
			continue
		}
		out = append(out, s.detail(p))
	}
	return out, nil
}

type memUsers struct{ *memDB }

func (s memUsers) Get(_ context.Context, _ repository.Querier, id int64) (*db.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (s memUsers) GetByEmail(_ context.Context, _ repository.Querier, email string) (*db.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s memUsers) List(_ context.Context, _ repository.Querier) ([]db.User, error) {
	return sortedValues(s.users), nil
}

func (s memUsers) Create(ctx context.Context, q repository.Querier, u *db.User) error {
	if _, err := s.GetByEmail(ctx, q, u.Email); err == nil {
		return repository.ErrDuplicate
	}
	u.ID = s.nextID()
	u.CreatedAt = s.now()
	s.users[u.ID] = *u
	return nil
}

func (s memUsers) SetVerified(_ context.Context, _ repository.Querier, id int64, verified bool) error {
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsVerified = verified
	s.users[id] = u
	return nil
}

func (s memUsers) Delete(_ context.Context, _ repository.Querier, id int64) error {
	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s memUsers) EmailTaken(ctx context.Context, q repository.Querier, email string) (bool, error) {
	if _, err := s.GetByEmail(ctx, q, email); err == nil {
		return true, nil
	}
	_, err := s.GetPendingByEmail(ctx, q, email)
	return err == nil, nil
}

func (s memUsers) CreatePending(ctx context.Context, q repository.Querier, p *db.PendingUser) error {
	if _, err := s.GetPendingByEmail(ctx, q, p.Email); err == nil {
		return repository.ErrDuplicate
	}
	p.ID = s.nextID()
	p.CreatedAt = s.now()
	s.pending[p.ID] = *p
	return nil
}

func (s memUsers) GetPending(_ context.Context, _ repository.Querier, id int64) (*db.PendingUser, error) {
	p, ok := s.pending[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (s memUsers) GetPendingForUpdate(ctx context.Context, q repository.Querier, id int64) (*db.PendingUser, error) {
	return s.GetPending(ctx, q, id)
}

func (s memUsers) GetPendingByEmail(_ context.Context, _ repository.Querier, email string) (*db.PendingUser, error) {
	for _, p := range s.pending {
		if p.Email == email {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s memUsers) ListPending(_ context.Context, _ repository.Querier) ([]db.PendingUser, error) {
	return sortedValues(s.pending), nil
}

func (s memUsers) DeletePending(_ context.Context, _ repository.Querier, id int64) error {
	if _, ok := s.pending[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.pending, id)
	return nil
}

type memTestimonials struct{ *memDB }

func (s memTestimonials) Get(_ context.Context, _ repository.Querier, id int64) (*db.Testimonial, error) {
	t, ok := s.testimonials[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (s memTestimonials) Create(_ context.Context, _ repository.Querier, t *db.Testimonial) error {
	t.ID = s.nextID()
	t.CreatedAt = s.now()
	s.testimonials[t.ID] = *t
	return nil
}

func (s memTestimonials) List(_ context.Context, _ repository.Querier, status db.TestimonialStatus) ([]entities.TestimonialDetail, error) {
	out := []entities.TestimonialDetail{}
	for _, t := range sortedValues(s.testimonials) {
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, entities.TestimonialDetail{Testimonial: t, UserName: s.users[t.UserID].Name})
	}
	return out, nil
}

func (s memTestimonials) UpdateStatus(_ context.Context, _ repository.Querier, id int64, status db.TestimonialStatus) error {
	t, ok := s.testimonials[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.Status = status
	s.testimonials[id] = t
	return nil
}

func (s memTestimonials) Delete(_ context.Context, _ repository.Querier, id int64) error {
	if _, ok := s.testimonials[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.testimonials, id)
	return nil
}

type memJobs struct{ *memDB }

func (s memJobs) StalePendingReservationIDs(_ context.Context, _ repository.Querier, cutoff time.Time) ([]int64, error) {
	var ids []int64
	for _, r := range sortedValues(s.reservations) {
		if r.Status != db.ReservationPending || !r.CreatedAt.Before(cutoff) {
			continue
		}
		paid := false
		for _, p := range s.payments {
			paid = paid || p.ReservationID == r.ID
		}
		if !paid {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

// memDisk is a storage.Disk kept in memory.
type memDisk struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemDisk() *memDisk { return &memDisk{files: map[string][]byte{}} }

func (d *memDisk) Put(_ context.Context, path string, content []byte, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[path] = content
	return nil
}

func (d *memDisk) Open(_ context.Context, path string) (io.ReadCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.files[path]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (d *memDisk) Exists(_ context.Context, path string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.files[path]
	return ok, nil
}

func (d *memDisk) Delete(_ context.Context, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.files, path)
	return nil
}

func (d *memDisk) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.files)
}

// pngBytes is enough of a PNG for content sniffing.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func pngUpload(name string) storage.Upload {
	return storage.Upload{Name: name, Body: bytes.NewReader(pngBytes)}
}

type recordingNotifier struct {
	mu       sync.Mutex
	payments []entities.PaymentNotice
	accounts []entities.AccountNotice
}

func (n *recordingNotifier) PaymentDecided(_ context.Context, p entities.PaymentNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payments = append(n.payments, p)
}

func (n *recordingNotifier) AccountReviewed(_ context.Context, a entities.AccountNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accounts = append(n.accounts, a)
}

// fixture wires every service on one memDB with a fixed clock.
type fixture struct {
	db           *memDB
	disk         *memDisk
	notifier     *recordingNotifier
	reservations *ReservationService
	payments     *PaymentService
	users        *UserService
	motors       *MotorService
	testimonials *TestimonialService
	jobs         *JobService
}

var fixedNow = time.Date(2025, 6, 20, 10, 0, 0, 0, time.UTC)

func newFixture(hold config.HoldPolicy) *fixture {
	clock := func() time.Time { return fixedNow }
	mdb := newMemDB(clock)
	st := mdb.stores()
	disk := newMemDisk()
	files := storage.New(disk, 1<<20)
	notifier := &recordingNotifier{}

	res := NewReservationService(mdb, st, hold, time.UTC, nil)
	res.now = clock
	return &fixture{
		db:           mdb,
		disk:         disk,
		notifier:     notifier,
		reservations: res,
		payments:     NewPaymentService(mdb, st, files, notifier, res, nil),
		users:        NewUserService(mdb, st, files, auth.NewTokens("test-secret", time.Hour), notifier),
		motors:       NewMotorService(mdb, st, files, nil),
		testimonials: NewTestimonialService(mdb, st),
		jobs:         NewJobService(mdb, st, res, 48*time.Hour, nil),
	}
}

func (f *fixture) addUser(email string, verified bool) db.User {
	u := db.User{Name: "Rider " + email, Email: email, Phone: "+6281200000", Role: db.RoleUser, IsVerified: verified}
	_ = f.db.stores().Users.Create(context.Background(), nil, &u)
	return u
}

func (f *fixture) addMotor(price int64) db.Motor {
	m := db.Motor{Brand: "Honda", Type: "Vario 160", PricePerDay: price, Status: db.MotorAvailable}
	_ = f.db.stores().Motors.Create(context.Background(), nil, &m)
	return m
}

func (f *fixture) motor(id int64) db.Motor { return f.db.motors[id] }

func (f *fixture) reservation(id int64) db.Reservation { return f.db.reservations[id] }

func (f *fixture) payment(id int64) db.Payment { return f.db.payments[id] }

var errInjected = errors.New("injected failure")
