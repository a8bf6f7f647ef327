package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ptcoach/pt-manager/internal/domain"
	"ptcoach/pt-manager/internal/lifecycle"
	"ptcoach/pt-manager/internal/repository"
)

// In-memory repositories. They mirror the Mongo implementations closely
// enough for service tests: ids and timestamps are assigned the same way and
// the same sentinel errors are returned.

type fakeClientRepo struct {
	mu       sync.Mutex
	clients  map[primitive.ObjectID]*domain.Client
	payments *fakePaymentRepo
	// cascade is what DeleteCascade reports as removed photo keys.
	cascade []string
}

func newFakeClientRepo() *fakeClientRepo {
	r := &fakeClientRepo{clients: make(map[primitive.ObjectID]*domain.Client)}
	r.payments = &fakePaymentRepo{clients: r}
	return r
}

func (r *fakeClientRepo) add(c domain.Client) *domain.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	r.clients[c.ID] = &c
	return &c
}

func (r *fakeClientRepo) Create(_ context.Context, client *domain.Client, initial *domain.Payment) (primitive.ObjectID, error) {
	r.mu.Lock()
	for _, c := range r.clients {
		if c.Email == client.Email {
			r.mu.Unlock()
			return primitive.NilObjectID, repository.ErrConflict
		}
	}
	client.ID = primitive.NewObjectID()
	client.CreatedAt = time.Now().UTC()
	client.UpdatedAt = client.CreatedAt
	cp := *client
	r.clients[client.ID] = &cp
	r.mu.Unlock()

	if initial != nil {
		initial.ID = primitive.NewObjectID()
		initial.ClientID = client.ID
		r.payments.mu.Lock()
		r.payments.payments = append(r.payments.payments, *initial)
		r.payments.mu.Unlock()
	}
	return client.ID, nil
}

func (r *fakeClientRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeClientRepo) GetByEmail(_ context.Context, email string) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.Email == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeClientRepo) List(context.Context) ([]domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Client{}
	for _, c := range r.clients {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeClientRepo) SearchByNamePrefix(ctx context.Context, prefix string, limit int) ([]domain.Client, error) {
	all, _ := r.List(ctx)
	out := []domain.Client{}
	for _, c := range all {
		if strings.HasPrefix(c.NameLowercase, prefix) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NameLowercase < out[j].NameLowercase })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeClientRepo) Update(_ context.Context, client *domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[client.ID]; !ok {
		return repository.ErrNotFound
	}
	for id, c := range r.clients {
		if id != client.ID && c.Email == client.Email {
			return repository.ErrConflict
		}
	}
	cp := *client
	r.clients[client.ID] = &cp
	return nil
}

func (r *fakeClientRepo) SetPassword(_ context.Context, id primitive.ObjectID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.PasswordHash = hash
	c.FirstLogin = false
	c.TempPassword = ""
	return nil
}

func (r *fakeClientRepo) SetNextCheckIn(_ context.Context, id primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.NextCheckIn = &at
	return nil
}

func (r *fakeClientRepo) DeleteCascade(_ context.Context, id primitive.ObjectID) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return nil, repository.ErrNotFound
	}
	delete(r.clients, id)
	return r.cascade, nil
}

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments []domain.Payment
	clients  *fakeClientRepo
}

func (r *fakePaymentRepo) Record(_ context.Context, payment *domain.Payment, next repository.ExpiryFunc) error {
	r.clients.mu.Lock()
	defer r.clients.mu.Unlock()
	c, ok := r.clients.clients[payment.ClientID]
	if !ok {
		return repository.ErrNotFound
	}
	expiry, err := next(c.ExpiresAt)
	if err != nil {
		return err
	}
	payment.ID = primitive.NewObjectID()
	payment.ExpiresAt = expiry
	c.ExpiresAt = &expiry
	c.Status = domain.ClientStatusActive

	r.mu.Lock()
	r.payments = append(r.payments, *payment)
	r.mu.Unlock()
	return nil
}

func (r *fakePaymentRepo) ListByClient(_ context.Context, clientID primitive.ObjectID) ([]domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Payment{}
	for _, p := range r.payments {
		if p.ClientID == clientID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.After(out[j].PaidAt) })
	return out, nil
}

func (r *fakePaymentRepo) ListPaidBetween(_ context.Context, from, to time.Time) ([]domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Payment{}
	for _, p := range r.payments {
		if !p.PaidAt.Before(from) && p.PaidAt.Before(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) Delete(_ context.Context, clientID, paymentID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.payments {
		if p.ID == paymentID && p.ClientID == clientID {
			r.payments = append(r.payments[:i], r.payments[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type fakeCheckRepo struct {
	mu     sync.Mutex
	checks map[primitive.ObjectID]*domain.Check
}

func newFakeCheckRepo() *fakeCheckRepo {
	return &fakeCheckRepo{checks: make(map[primitive.ObjectID]*domain.Check)}
}

func (r *fakeCheckRepo) Create(_ context.Context, check *domain.Check) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	check.ID = primitive.NewObjectID()
	if check.CreatedAt.IsZero() {
		check.CreatedAt = time.Now().UTC()
	}
	cp := *check
	r.checks[check.ID] = &cp
	return check.ID, nil
}

func (r *fakeCheckRepo) GetByID(_ context.Context, clientID, id primitive.ObjectID) (*domain.Check, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.checks[id]
	if !ok || c.ClientID != clientID {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCheckRepo) ListByClient(_ context.Context, clientID primitive.ObjectID) ([]domain.Check, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Check{}
	for _, c := range r.checks {
		if c.ClientID == clientID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeCheckRepo) Latest(ctx context.Context, clientID primitive.ObjectID) (*domain.Check, error) {
	all, _ := r.ListByClient(ctx, clientID)
	if len(all) == 0 {
		return nil, repository.ErrNotFound
	}
	return &all[0], nil
}

func (r *fakeCheckRepo) UpdateContent(_ context.Context, check *domain.Check, notBefore time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.checks[check.ID]
	if !ok || c.ClientID != check.ClientID || c.CreatedAt.Before(notBefore) {
		return repository.ErrConflict
	}
	c.Weight = check.Weight
	c.Notes = check.Notes
	c.Photos = check.Photos
	return nil
}

func (r *fakeCheckRepo) SetFeedback(_ context.Context, clientID, id primitive.ObjectID, feedback string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.checks[id]
	if !ok || c.ClientID != clientID {
		return repository.ErrNotFound
	}
	c.CoachFeedback = &feedback
	c.FeedbackUpdatedAt = &at
	return nil
}

func (r *fakeCheckRepo) Delete(_ context.Context, clientID, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.checks[id]
	if !ok || c.ClientID != clientID {
		return repository.ErrNotFound
	}
	delete(r.checks, id)
	return nil
}

type fakeAnamnesiRepo struct {
	mu   sync.Mutex
	docs map[primitive.ObjectID]domain.Anamnesi
}

func newFakeAnamnesiRepo() *fakeAnamnesiRepo {
	return &fakeAnamnesiRepo{docs: make(map[primitive.ObjectID]domain.Anamnesi)}
}

func (r *fakeAnamnesiRepo) Get(_ context.Context, clientID primitive.ObjectID) (*domain.Anamnesi, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.docs[clientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

// Upsert merges non-empty string answers, like the $set of the Mongo
// implementation with omitempty fields.
func (r *fakeAnamnesiRepo) Upsert(_ context.Context, a *domain.Anamnesi) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, exists := r.docs[a.ClientID]
	if !exists {
		r.docs[a.ClientID] = *a
		return true, nil
	}
	merged := *a
	merged.SubmittedAt = old.SubmittedAt
	if merged.MainGoal == "" {
		merged.MainGoal = old.MainGoal
	}
	if merged.Job == "" {
		merged.Job = old.Job
	}
	if len(merged.Photos) == 0 {
		merged.Photos = old.Photos
	}
	r.docs[a.ClientID] = merged
	return false, nil
}

type fakeCoachRepo struct {
	mu      sync.Mutex
	coaches []*domain.Coach
}

func (r *fakeCoachRepo) add(c domain.Coach) *domain.Coach {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	r.coaches = append(r.coaches, &c)
	return &c
}

func (r *fakeCoachRepo) Create(_ context.Context, coach *domain.Coach) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.coaches {
		if c.Email == coach.Email {
			return primitive.NilObjectID, repository.ErrConflict
		}
	}
	coach.ID = primitive.NewObjectID()
	cp := *coach
	r.coaches = append(r.coaches, &cp)
	return coach.ID, nil
}

func (r *fakeCoachRepo) find(match func(*domain.Coach) bool) (*domain.Coach, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.coaches {
		if match(c) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeCoachRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Coach, error) {
	return r.find(func(c *domain.Coach) bool { return c.ID == id })
}

func (r *fakeCoachRepo) GetByEmail(_ context.Context, email string) (*domain.Coach, error) {
	return r.find(func(c *domain.Coach) bool { return c.Email == email })
}

func (r *fakeCoachRepo) Primary(context.Context) (*domain.Coach, error) {
	return r.find(func(*domain.Coach) bool { return true })
}

func (r *fakeCoachRepo) SetPassword(_ context.Context, id primitive.ObjectID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.coaches {
		if c.ID == id {
			c.PasswordHash = hash
			return nil
		}
	}
	return repository.ErrNotFound
}

type fakeResetRepo struct {
	mu     sync.Mutex
	resets []domain.PasswordReset
}

func (r *fakeResetRepo) Create(_ context.Context, reset *domain.PasswordReset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reset.ID = primitive.NewObjectID()
	r.resets = append(r.resets, *reset)
	return nil
}

func (r *fakeResetRepo) Consume(_ context.Context, tokenHash string, now time.Time) (*domain.PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rs := range r.resets {
		if rs.TokenHash == tokenHash && rs.ExpiresAt.After(now) {
			r.resets = append(r.resets[:i], r.resets[i+1:]...)
			return &rs, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeChatRepo struct {
	mu       sync.Mutex
	threads  map[string]*domain.Thread
	messages []domain.Message
	watchers map[string][]chan domain.Message
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		threads:  make(map[string]*domain.Thread),
		watchers: make(map[string][]chan domain.Message),
	}
}

func (r *fakeChatRepo) EnsureThread(_ context.Context, thread *domain.Thread) (*domain.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.threads[thread.ID]; ok {
		cp := *t
		return &cp, nil
	}
	cp := *thread
	r.threads[thread.ID] = &cp
	out := cp
	return &out, nil
}

func (r *fakeChatRepo) GetThread(_ context.Context, id string) (*domain.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeChatRepo) ListThreads(_ context.Context, participant string) ([]domain.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Thread{}
	for _, t := range r.threads {
		if t.HasParticipant(participant) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUpdate.After(out[j].LastUpdate) })
	return out, nil
}

func (r *fakeChatRepo) ListMessages(_ context.Context, threadID string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Message{}
	for _, m := range r.messages {
		if m.ThreadID == threadID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeChatRepo) AddMessage(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[msg.ThreadID]
	if !ok {
		return repository.ErrNotFound
	}
	msg.ID = primitive.NewObjectID()
	t.LastMessage = msg.Text
	t.LastUpdate = msg.CreatedAt
	r.messages = append(r.messages, *msg)
	for _, w := range r.watchers[msg.ThreadID] {
		select {
		case w <- *msg:
		default:
		}
	}
	return nil
}

func (r *fakeChatRepo) WatchMessages(ctx context.Context, threadID string) (<-chan domain.Message, error) {
	ch := make(chan domain.Message, 8)
	r.mu.Lock()
	r.watchers[threadID] = append(r.watchers[threadID], ch)
	r.mu.Unlock()

	out := make(chan domain.Message)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-ch:
				select {
				case out <- m:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

type fakeActivityRepo struct {
	checks   []lifecycle.Event
	anamnesi []lifecycle.Event
	err      error
}

func (r *fakeActivityRepo) RecentChecks(context.Context, int) ([]lifecycle.Event, error) {
	return r.checks, r.err
}

func (r *fakeActivityRepo) RecentAnamnesi(context.Context, int) ([]lifecycle.Event, error) {
	return r.anamnesi, r.err
}

type fakeStorage struct {
	mu        sync.Mutex
	deleted   []string
	failOn    map[string]bool
	presignOK bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{failOn: map[string]bool{}, presignOK: true}
}

func (s *fakeStorage) GeneratePresignedUploadURL(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	if !s.presignOK {
		return "", errors.New("presign failed")
	}
	return "https://s3.test/put/" + key, nil
}

func (s *fakeStorage) GeneratePresignedDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if !s.presignOK {
		return "", errors.New("presign failed")
	}
	return "https://s3.test/get/" + key, nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn[key] {
		return errors.New("delete failed")
	}
	s.deleted = append(s.deleted, key)
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
