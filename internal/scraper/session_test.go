package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SofiaChang/shopping-agent/internal/models"
)

type scriptedAttempt struct {
	navigateErr error
	waitMatched string
	waitErr     error
	elements    []Element
	queryErr    error
}

type fakeDriver struct {
	attempts    []scriptedAttempt
	current     scriptedAttempt
	navigations []string
	identities  []string
	closed      bool
	closeErr    error
}

func (d *fakeDriver) Navigate(url string) error {
	d.current = d.attempts[len(d.navigations)]
	d.navigations = append(d.navigations, url)
	return d.current.navigateErr
}

func (d *fakeDriver) WaitForAny(selectors []string, timeout time.Duration) (string, error) {
	return d.current.waitMatched, d.current.waitErr
}

func (d *fakeDriver) QueryAll(selector string) ([]Element, error) {
	return d.current.elements, d.current.queryErr
}

func (d *fakeDriver) SetIdentity(userAgent string) error {
	d.identities = append(d.identities, userAgent)
	return nil
}

func (d *fakeDriver) Close() error {
	d.closed = true
	return d.closeErr
}

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

type fakeStrategy struct {
	delay     time.Duration
	identity  string
	rotations int
}

func (s *fakeStrategy) HumanDelay(min, max time.Duration) time.Duration { return s.delay }

func (s *fakeStrategy) NextIdentity() string {
	s.rotations++
	return s.identity
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://shop.example"
	return cfg
}

func newTestSession(driver *fakeDriver, clock *fakeClock, strategy *fakeStrategy, cfg Config) *Session {
	return NewSession(driver, strategy, clock, testLogger(), cfg)
}

func successAttempt() scriptedAttempt {
	return scriptedAttempt{
		waitMatched: ResultContainerSelector,
		elements:    []Element{fakeElement{html: fullProductHTML}},
	}
}

func TestFetchFirstAttemptSucceeds(t *testing.T) {
	driver := &fakeDriver{attempts: []scriptedAttempt{successAttempt()}}
	strategy := &fakeStrategy{identity: "ua-1"}
	s := newTestSession(driver, newFakeClock(), strategy, testConfig())

	products, err := s.Fetch(context.Background(), "coffee maker", models.Constraints{}, 10)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Deluxe Coffee Maker 12-Cup", products[0].Title)

	// No rotation before the first attempt.
	assert.Zero(t, strategy.rotations)
	assert.Empty(t, driver.identities)
	assert.Len(t, driver.navigations, 1)
}

func TestFetchBuildsSearchURL(t *testing.T) {
	tests := []struct {
		name        string
		term        string
		constraints models.Constraints
		expected    string
	}{
		{
			name:     "term only",
			term:     "coffee maker",
			expected: "https://shop.example/s?k=coffee+maker",
		},
		{
			name:        "price range in cents",
			term:        "coffee maker",
			constraints: models.Constraints{MinPrice: models.Float64(25), MaxPrice: models.Float64(99.50)},
			expected:    "https://shop.example/s?k=coffee+maker&rh=p_36%3A2500-9950",
		},
		{
			name:        "open-ended maximum",
			term:        "headphones",
			constraints: models.Constraints{MaxPrice: models.Float64(100)},
			expected:    "https://shop.example/s?k=headphones&rh=p_36%3A-10000",
		},
		{
			name:        "open-ended minimum with prime",
			term:        "headphones",
			constraints: models.Constraints{MinPrice: models.Float64(50), PrimeRequired: true},
			expected:    "https://shop.example/s?k=headphones&rh=p_36%3A5000-&rh=p_85%3A2470955011",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver := &fakeDriver{attempts: []scriptedAttempt{successAttempt()}}
			s := newTestSession(driver, newFakeClock(), &fakeStrategy{}, testConfig())

			_, err := s.Fetch(context.Background(), tt.term, tt.constraints, 10)
			require.NoError(t, err)
			require.Len(t, driver.navigations, 1)
			assert.Equal(t, tt.expected, driver.navigations[0])
		})
	}
}

func TestFetchNoResultsIsEmptySuccess(t *testing.T) {
	driver := &fakeDriver{attempts: []scriptedAttempt{{waitMatched: NoResultsSelector}}}
	strategy := &fakeStrategy{}
	s := newTestSession(driver, newFakeClock(), strategy, testConfig())

	products, err := s.Fetch(context.Background(), "asdfghjkl", models.Constraints{}, 10)
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
	assert.Len(t, driver.navigations, 1)
	assert.Zero(t, strategy.rotations)
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	driver := &fakeDriver{attempts: []scriptedAttempt{
		{waitErr: ErrWaitTimeout},
		{waitErr: ErrWaitTimeout},
		successAttempt(),
	}}
	clock := newFakeClock()
	strategy := &fakeStrategy{identity: "ua-rotated"}
	s := newTestSession(driver, clock, strategy, testConfig())

	products, err := s.Fetch(context.Background(), "coffee maker", models.Constraints{}, 10)
	require.NoError(t, err)
	assert.Len(t, products, 1)

	// Identity rotates before attempts two and three only.
	assert.Len(t, driver.navigations, 3)
	assert.Equal(t, 2, strategy.rotations)
	assert.Equal(t, []string{"ua-rotated", "ua-rotated"}, driver.identities)
	assert.Contains(t, clock.sleeps, s.cfg.RetryDelay)
}

func TestFetchExhaustsRetryBudget(t *testing.T) {
	driver := &fakeDriver{attempts: []scriptedAttempt{
		{waitErr: ErrWaitTimeout},
		{waitErr: ErrWaitTimeout},
		{waitErr: ErrWaitTimeout},
	}}
	s := newTestSession(driver, newFakeClock(), &fakeStrategy{}, testConfig())

	_, err := s.Fetch(context.Background(), "coffee maker", models.Constraints{}, 10)
	var scrapeErr *ScrapeError
	require.ErrorAs(t, err, &scrapeErr)
	assert.Equal(t, 3, scrapeErr.Attempts)
	assert.ErrorIs(t, err, ErrPageTimeout)
	assert.Len(t, driver.navigations, 3)
}

func TestFetchRetriesEmptyExtraction(t *testing.T) {
	driver := &fakeDriver{attempts: []scriptedAttempt{
		{waitMatched: ResultContainerSelector, elements: []Element{fakeElement{html: "<div></div>"}}},
		successAttempt(),
	}}
	s := newTestSession(driver, newFakeClock(), &fakeStrategy{}, testConfig())

	products, err := s.Fetch(context.Background(), "coffee maker", models.Constraints{}, 10)
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Len(t, driver.navigations, 2)
}

func TestFetchSkipsUnparseableContainers(t *testing.T) {
	driver := &fakeDriver{attempts: []scriptedAttempt{{
		waitMatched: ResultContainerSelector,
		elements: []Element{
			fakeElement{html: "<div></div>"},
			fakeElement{html: fullProductHTML},
		},
	}}}
	s := newTestSession(driver, newFakeClock(), &fakeStrategy{}, testConfig())

	products, err := s.Fetch(context.Background(), "coffee maker", models.Constraints{}, 10)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Deluxe Coffee Maker 12-Cup", products[0].Title)
}

func TestFetchTruncatesToLimit(t *testing.T) {
	elements := make([]Element, 5)
	for i := range elements {
		elements[i] = fakeElement{html: fullProductHTML}
	}
	driver := &fakeDriver{attempts: []scriptedAttempt{{
		waitMatched: ResultContainerSelector,
		elements:    elements,
	}}}
	s := newTestSession(driver, newFakeClock(), &fakeStrategy{}, testConfig())

	products, err := s.Fetch(context.Background(), "coffee maker", models.Constraints{}, 2)
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestFetchPacesConsecutiveRequests(t *testing.T) {
	driver := &fakeDriver{attempts: []scriptedAttempt{successAttempt(), successAttempt()}}
	clock := newFakeClock()
	cfg := testConfig()
	cfg.RequestsPerMinute = 15
	s := newTestSession(driver, clock, &fakeStrategy{}, cfg)

	_, err := s.Fetch(context.Background(), "coffee maker", models.Constraints{}, 10)
	require.NoError(t, err)
	firstSleeps := len(clock.sleeps)

	_, err = s.Fetch(context.Background(), "coffee maker", models.Constraints{}, 10)
	require.NoError(t, err)

	// 15 requests per minute means a 4s minimum gap. The humanizing delay was
	// zero, so the pacing window must supply the full gap.
	require.Greater(t, len(clock.sleeps), firstSleeps)
	assert.Equal(t, 4*time.Second, clock.sleeps[firstSleeps])
}

func TestFetchHonorsCancelledContext(t *testing.T) {
	driver := &fakeDriver{attempts: []scriptedAttempt{successAttempt()}}
	s := newTestSession(driver, newFakeClock(), &fakeStrategy{}, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Fetch(ctx, "coffee maker", models.Constraints{}, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, driver.navigations)
}

func TestCloseReleasesDriver(t *testing.T) {
	driver := &fakeDriver{}
	s := newTestSession(driver, newFakeClock(), &fakeStrategy{}, testConfig())

	require.NoError(t, s.Close())
	assert.True(t, driver.closed)
}
