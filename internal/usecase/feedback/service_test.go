package feedback

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedback-gateway/internal/domain"
)

type fakeTracker struct {
	repos        map[string]bool
	labels       map[string]domain.Label
	repoErr      error
	getLabelErr  error
	createLblErr error
	issueErr     error

	createdLabels []domain.Label
	getLabelCalls []string
	issues        []domain.NewIssue
	owners        []string
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		repos:  map[string]bool{"MyApp": true},
		labels: map[string]domain.Label{},
	}
}

func (f *fakeTracker) RepositoryExists(_ context.Context, owner, repo string) (bool, error) {
	f.owners = append(f.owners, owner)
	if f.repoErr != nil {
		return false, f.repoErr
	}
	return f.repos[repo], nil
}

func (f *fakeTracker) GetLabel(_ context.Context, _, _, name string) (domain.Label, error) {
	f.getLabelCalls = append(f.getLabelCalls, name)
	if f.getLabelErr != nil {
		return domain.Label{}, f.getLabelErr
	}
	label, ok := f.labels[name]
	if !ok {
		return domain.Label{}, &domain.UpstreamError{Status: http.StatusNotFound, Message: "Not Found"}
	}
	return label, nil
}

func (f *fakeTracker) CreateLabel(_ context.Context, _, _ string, label domain.Label) (domain.Label, error) {
	if f.createLblErr != nil {
		return domain.Label{}, f.createLblErr
	}
	f.createdLabels = append(f.createdLabels, label)
	f.labels[label.Name] = label
	return label, nil
}

func (f *fakeTracker) CreateIssue(_ context.Context, owner, repo string, issue domain.NewIssue) (domain.Issue, error) {
	if f.issueErr != nil {
		return domain.Issue{}, f.issueErr
	}
	f.issues = append(f.issues, issue)
	n := len(f.issues)
	return domain.Issue{Number: n, URL: fmt.Sprintf("https://github.com/%s/%s/issues/%d", owner, repo, n), Title: issue.Title}, nil
}

type memCache struct {
	values map[string][]byte
	ttl    time.Duration
	getErr error
}

func (m *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.values[key] = value
	m.ttl = ttl
	return nil
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return v, nil
}

type recordingNotifier struct {
	issues []domain.Issue
	err    error
}

func (r *recordingNotifier) NotifyIssueCreated(_ context.Context, _ domain.FeedbackRequest, issue domain.Issue) error {
	r.issues = append(r.issues, issue)
	return r.err
}

func validRequest() domain.FeedbackRequest {
	return domain.FeedbackRequest{AppName: "MyApp", Title: "Crash on launch", Body: "Steps...", Version: "1.2.0"}
}

func newTestService(tracker *fakeTracker, token string, opts ...Option) *Service {
	factory := func(string) (domain.IssueTracker, error) { return tracker, nil }
	return NewService(factory, token, "PawFighters", zerolog.Nop(), opts...)
}

func TestSubmitCreatesLabelsAndIssue(t *testing.T) {
	tracker := newFakeTracker()
	svc := newTestService(tracker, "ghp_test")

	res, err := svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, res.IssueNumber)
	assert.NotEmpty(t, res.IssueURL)
	assert.False(t, res.Duplicate)
	assert.Equal(t, []string{"PawFighters"}, tracker.owners)

	require.Len(t, tracker.createdLabels, 2)
	assert.Equal(t, domain.Label{Name: "feedback", Color: "0052CC", Description: "User feedback from mobile app"}, tracker.createdLabels[0])
	assert.Equal(t, domain.Label{Name: "1.2.0", Color: "28A745", Description: "Version 1.2.0"}, tracker.createdLabels[1])

	require.Len(t, tracker.issues, 1)
	issue := tracker.issues[0]
	assert.Equal(t, "Crash on launch", issue.Title)
	assert.Equal(t, "Steps...\n\n---\n**App:** MyApp\n**Version:** 1.2.0", issue.Body)
	assert.Equal(t, []string{"feedback", "1.2.0"}, issue.Labels)
}

func TestSubmitSkipsExistingLabels(t *testing.T) {
	tracker := newFakeTracker()
	svc := newTestService(tracker, "ghp_test")

	_, err := svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Len(t, tracker.createdLabels, 2, "labels must be created only once")
	assert.Equal(t, []string{"feedback", "1.2.0", "feedback", "1.2.0"}, tracker.getLabelCalls)
	assert.Len(t, tracker.issues, 2, "without dedup every submission creates an issue")
}

func TestSubmitMissingParameters(t *testing.T) {
	tracker := newFakeTracker()
	svc := newTestService(tracker, "ghp_test")

	cases := map[string]domain.FeedbackRequest{
		"no app":     {Title: "t", Body: "b", Version: "v"},
		"no title":   {AppName: "a", Body: "b", Version: "v"},
		"no body":    {AppName: "a", Title: "t", Version: "v"},
		"no version": {AppName: "a", Title: "t", Body: "b"},
		"empty":      {},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrMissingParameters)
		})
	}
	assert.Empty(t, tracker.owners)
}

func TestSubmitWithoutToken(t *testing.T) {
	tracker := newFakeTracker()
	svc := newTestService(tracker, "")

	_, err := svc.Submit(context.Background(), validRequest())
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
	assert.Empty(t, tracker.owners)
}

func TestSubmitValidatesBeforeToken(t *testing.T) {
	svc := newTestService(newFakeTracker(), "")

	_, err := svc.Submit(context.Background(), domain.FeedbackRequest{AppName: "MyApp"})
	assert.ErrorIs(t, err, domain.ErrMissingParameters)
}

func TestSubmitRepositoryNotFound(t *testing.T) {
	tracker := newFakeTracker()
	svc := newTestService(tracker, "ghp_test")
	req := validRequest()
	req.AppName = "Unknown"

	_, err := svc.Submit(context.Background(), req)
	var notFound *domain.RepoNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "PawFighters", notFound.Owner)
	assert.Equal(t, "Unknown", notFound.Repo)
	assert.Empty(t, tracker.issues)
	assert.Empty(t, tracker.getLabelCalls)
}

func TestSubmitRepositoryLookupFails(t *testing.T) {
	tracker := newFakeTracker()
	tracker.repoErr = &domain.UpstreamError{Status: http.StatusUnauthorized, Message: "Bad credentials"}
	svc := newTestService(tracker, "ghp_test")

	_, err := svc.Submit(context.Background(), validRequest())
	var upstream *domain.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusUnauthorized, upstream.Status)
}

func TestSubmitLabelErrorsAreNotFatal(t *testing.T) {
	t.Run("lookup fails", func(t *testing.T) {
		tracker := newFakeTracker()
		tracker.getLabelErr = &domain.UpstreamError{Status: http.StatusForbidden, Message: "Forbidden"}
		svc := newTestService(tracker, "ghp_test")

		_, err := svc.Submit(context.Background(), validRequest())
		require.NoError(t, err)
		assert.Empty(t, tracker.createdLabels, "non-404 lookup errors must skip creation")
		assert.Len(t, tracker.issues, 1)
	})

	t.Run("create fails", func(t *testing.T) {
		tracker := newFakeTracker()
		tracker.createLblErr = errors.New("boom")
		svc := newTestService(tracker, "ghp_test")

		_, err := svc.Submit(context.Background(), validRequest())
		require.NoError(t, err)
		assert.Len(t, tracker.issues, 1)
	})
}

func TestSubmitIssueCreationFails(t *testing.T) {
	tracker := newFakeTracker()
	tracker.issueErr = &domain.UpstreamError{Status: http.StatusUnprocessableEntity, Message: "Validation Failed"}
	notifier := &recordingNotifier{}
	svc := newTestService(tracker, "ghp_test", WithNotifier(notifier))

	_, err := svc.Submit(context.Background(), validRequest())
	var upstream *domain.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusUnprocessableEntity, upstream.Status)
	assert.Empty(t, notifier.issues)
}

func TestSubmitTrackerFactoryError(t *testing.T) {
	factory := func(string) (domain.IssueTracker, error) { return nil, errors.New("bad url") }
	svc := NewService(factory, "ghp_test", "PawFighters", zerolog.Nop())

	_, err := svc.Submit(context.Background(), validRequest())
	require.Error(t, err)
	var upstream *domain.UpstreamError
	assert.False(t, errors.As(err, &upstream))
}

func TestSubmitDedup(t *testing.T) {
	tracker := newFakeTracker()
	cache := &memCache{values: map[string][]byte{}}
	svc := newTestService(tracker, "ghp_test", WithDedup(cache, time.Hour))

	first, err := svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.Equal(t, time.Hour, cache.ttl)

	second, err := svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.IssueURL, second.IssueURL)
	assert.Equal(t, first.IssueNumber, second.IssueNumber)
	assert.Len(t, tracker.issues, 1)

	other := validRequest()
	other.Title = "Another crash"
	third, err := svc.Submit(context.Background(), other)
	require.NoError(t, err)
	assert.False(t, third.Duplicate)
	assert.Len(t, tracker.issues, 2)
}

func TestSubmitDedupCacheErrorFallsThrough(t *testing.T) {
	tracker := newFakeTracker()
	cache := &memCache{values: map[string][]byte{}, getErr: errors.New("redis down")}
	svc := newTestService(tracker, "ghp_test", WithDedup(cache, time.Hour))

	res, err := svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Len(t, tracker.issues, 1)
}

func TestSubmitNotifies(t *testing.T) {
	tracker := newFakeTracker()
	notifier := &recordingNotifier{err: errors.New("telegram down")}
	svc := newTestService(tracker, "ghp_test", WithNotifier(notifier))

	res, err := svc.Submit(context.Background(), validRequest())
	require.NoError(t, err, "notification failures must not fail submission")
	require.Len(t, notifier.issues, 1)
	assert.Equal(t, res.IssueNumber, notifier.issues[0].Number)
}

func TestLabelFor(t *testing.T) {
	assert.Equal(t, "0052CC", LabelFor("feedback").Color)
	assert.Equal(t, "28A745", LabelFor("2.0.0").Color)
	assert.Equal(t, "Version 2.0.0", LabelFor("2.0.0").Description)
}

func TestFingerprintDistinguishesFields(t *testing.T) {
	a := domain.FeedbackRequest{AppName: "ab", Title: "c", Body: "d", Version: "1"}
	b := domain.FeedbackRequest{AppName: "a", Title: "bc", Body: "d", Version: "1"}
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
	assert.Equal(t, Fingerprint(a), Fingerprint(a))
}
