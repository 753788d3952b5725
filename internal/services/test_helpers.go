package services

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/adminguard/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
)

// MockUserRepository implements UserLookup for testing
type MockUserRepository struct {
	GetByEmailFunc func(ctx context.Context, email string) (*models.User, error)

	mu    sync.Mutex
	calls int
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

// Calls returns how many lookups were made
func (m *MockUserRepository) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockValidator implements Validator for testing
type MockValidator struct {
	ValidateFunc func(ctx context.Context, username, password string) (*CredentialResult, error)

	mu    sync.Mutex
	calls int
}

func (m *MockValidator) Validate(ctx context.Context, username, password string) (*CredentialResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, username, password)
	}
	return nil, nil
}

// Calls returns how many validations were made
func (m *MockValidator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockGeoResolver implements GeoResolver for testing
type MockGeoResolver struct {
	ResolveFunc func(ctx context.Context) models.GeoLocation
}

func (m *MockGeoResolver) Resolve(ctx context.Context) models.GeoLocation {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx)
	}
	return models.GeoLocation{IP: "203.0.113.10", Country: "Norway", City: "Oslo"}
}

// MockLockoutNotifier implements LockoutNotifier for testing
type MockLockoutNotifier struct {
	NotifyLockoutFunc func(ctx context.Context, alert LockoutAlert) error
	Alerts            chan LockoutAlert
}

func NewMockLockoutNotifier() *MockLockoutNotifier {
	return &MockLockoutNotifier{Alerts: make(chan LockoutAlert, 8)}
}

func (m *MockLockoutNotifier) NotifyLockout(ctx context.Context, alert LockoutAlert) error {
	if m.Alerts != nil {
		m.Alerts <- alert
	}
	if m.NotifyLockoutFunc != nil {
		return m.NotifyLockoutFunc(ctx, alert)
	}
	return nil
}

// MockSESClient implements SESAPI for testing
type MockSESClient struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
	Inputs        []*ses.SendEmailInput
}

func (m *MockSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.Inputs = append(m.Inputs, params)
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, params, optFns...)
	}
	return &ses.SendEmailOutput{MessageId: aws.String("mock-message-id")}, nil
}

// MockConsoleMetrics implements ConsoleMetrics for testing
type MockConsoleMetrics struct {
	mu       sync.Mutex
	Outcomes []string
	Lockouts int
	Expiries []string
}

func (m *MockConsoleMetrics) LoginOutcome(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Outcomes = append(m.Outcomes, outcome)
}

func (m *MockConsoleMetrics) Lockout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lockouts++
}

func (m *MockConsoleMetrics) SessionExpired(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Expiries = append(m.Expiries, reason)
}

// FakeClock is a manually advanced clock
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
