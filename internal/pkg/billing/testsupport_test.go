package billing

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nikhilsawlani/SnapLink/app/models"
)

// fakeRepo is an in-memory Repository for handler tests.
type fakeRepo struct {
	mu sync.Mutex

	events      map[string]*models.WebhookEvent // keyed by EventID
	subs        map[string]*models.Subscription // keyed by local ID
	users       map[uint]*models.User
	plans       []models.Plan
	remotePlans map[string]*models.RazorpaySubscriptionPlan // keyed by RazorpayPlanID
	histories   []*models.SubscriptionHistory
	billing     []*models.BillingInfo

	saveSubCalls  int
	saveUserCalls int

	createEventErr error
	saveSubErr     error
	historyErr     error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		events:      make(map[string]*models.WebhookEvent),
		subs:        make(map[string]*models.Subscription),
		users:       make(map[uint]*models.User),
		remotePlans: make(map[string]*models.RazorpaySubscriptionPlan),
	}
}

func (f *fakeRepo) addSubscription(sub *models.Subscription) *models.Subscription {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	f.subs[sub.ID] = sub
	return sub
}

func (f *fakeRepo) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createEventErr != nil {
		return false, nil, f.createEventErr
	}
	if existing, ok := f.events[event.EventID]; ok {
		return false, existing, nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	stored := *event
	f.events[event.EventID] = &stored
	return true, &stored, nil
}

func (f *fakeRepo) MarkWebhookProcessed(eventID string, processingError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.events {
		if ev.ID == eventID {
			ev.Processed = true
			ev.ErrorMessage = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindSubscriptionIDByPaymentID(paymentID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.events {
		if ev.PaymentID == paymentID && ev.SubscriptionID != "" {
			return ev.SubscriptionID, nil
		}
	}
	return "", gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindSubscriptionByRemoteID(remoteSubscriptionID string) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		if sub.RazorpaySubscriptionID == remoteSubscriptionID {
			return sub, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) SaveSubscription(sub *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveSubErr != nil {
		return f.saveSubErr
	}
	f.saveSubCalls++
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if existing, ok := f.subs[sub.ID]; ok && existing != sub {
		*existing = *sub
		return nil
	}
	f.subs[sub.ID] = sub
	return nil
}

func (f *fakeRepo) ListOtherEntitledSubscriptions(userID uint, excludeLocalID string) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Subscription
	for _, sub := range f.subs {
		if sub.UserID != userID || sub.ID == excludeLocalID {
			continue
		}
		if sub.Entitles() {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateSubscriptionHistory(history *models.SubscriptionHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return f.historyErr
	}
	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	f.histories = append(f.histories, history)
	return nil
}

func (f *fakeRepo) FindRemotePlanByRemoteID(remotePlanID string) (*models.RazorpaySubscriptionPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if plan, ok := f.remotePlans[remotePlanID]; ok {
		return plan, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) ListPlans() ([]models.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plans, nil
}

func (f *fakeRepo) FindPlanByName(name string) (*models.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.plans {
		if f.plans[i].Name == name {
			return &f.plans[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) GetUser(userID uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, ok := f.users[userID]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) SaveUser(user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveUserCalls++
	f.users[user.ID] = user
	return nil
}

func (f *fakeRepo) LatestBillingInfo(userID uint) (*models.BillingInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.billing) - 1; i >= 0; i-- {
		if f.billing[i].UserID == userID {
			return f.billing[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) SaveBillingInfo(info *models.BillingInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.billing {
		if f.billing[i].ID == info.ID && info.ID != 0 {
			f.billing[i] = info
			return nil
		}
	}
	f.billing = append(f.billing, info)
	return nil
}

// fakeGateway records outbound calls; CancelSubscription can be forced to fail.
type fakeGateway struct {
	mu          sync.Mutex
	cancelled   []string
	cancelErr   error
	planCalls   int
	subCalls    int
	nextPlanID  string
	nextSub     RemoteSubscription
	createError error
}

func (g *fakeGateway) CreatePlan(ctx context.Context, in CreatePlanInput) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.planCalls++
	if g.createError != nil {
		return "", g.createError
	}
	if g.nextPlanID == "" {
		return "plan_fake", nil
	}
	return g.nextPlanID, nil
}

func (g *fakeGateway) CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (*RemoteSubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subCalls++
	if g.createError != nil {
		return nil, g.createError
	}
	sub := g.nextSub
	if sub.ID == "" {
		sub.ID = "sub_fake"
	}
	return &sub, nil
}

func (g *fakeGateway) CancelSubscription(ctx context.Context, remoteSubscriptionID string, cancelAtCycleEnd bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, remoteSubscriptionID)
	return g.cancelErr
}

// memoryPlanCache tracks the last plan name written per user.
type memoryPlanCache struct {
	mu    sync.Mutex
	plans map[uint]string
}

func newMemoryPlanCache() *memoryPlanCache {
	return &memoryPlanCache{plans: make(map[uint]string)}
}

func (m *memoryPlanCache) SetUserPlan(userID uint, planName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[userID] = planName
	return nil
}

func (m *memoryPlanCache) InvalidateUserPlan(userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.plans, userID)
	return nil
}
