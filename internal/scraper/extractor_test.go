package scraper

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SofiaChang/shopping-agent/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeElement struct {
	html string
	err  error
}

func (f fakeElement) HTML() (string, error) { return f.html, f.err }

const fullProductHTML = `
<div>
	<h2><span>Deluxe Coffee Maker 12-Cup</span></h2>
	<span class="a-price"><span class="a-price-whole">79.</span><span class="a-price-fraction">99</span></span>
	<span class="a-icon-alt">4.6 out of 5 stars</span>
	<a aria-label="12,345 ratings"><span class="a-size-base s-underline-text">12,345</span></a>
	<i aria-label="Amazon Prime"></i>
	<a class="a-link-normal s-line-clamp-4 s-link-style a-text-normal" href="/dp/B000TEST"></a>
	<img class="s-image" src="https://img.example/coffee.jpg"/>
</div>`

func TestExtractFullProduct(t *testing.T) {
	e := NewProductExtractor(testLogger())

	p, err := e.Extract(fakeElement{html: fullProductHTML})
	require.NoError(t, err)

	assert.Equal(t, "Deluxe Coffee Maker 12-Cup", p.Title)
	require.NotNil(t, p.Price)
	assert.Equal(t, 79.99, *p.Price)
	require.NotNil(t, p.Rating)
	assert.Equal(t, 4.6, *p.Rating)
	require.NotNil(t, p.ReviewCount)
	assert.Equal(t, 12345, *p.ReviewCount)
	assert.True(t, p.Prime)
	require.NotNil(t, p.URL)
	assert.Equal(t, "/dp/B000TEST", *p.URL)
	require.NotNil(t, p.Thumbnail)
	assert.Equal(t, "https://img.example/coffee.jpg", *p.Thumbnail)
	assert.True(t, p.Eligible())
}

func TestExtractMissingTitle(t *testing.T) {
	e := NewProductExtractor(testLogger())

	_, err := e.Extract(fakeElement{html: `<div><span class="a-price-whole">10.</span></div>`})
	assert.ErrorIs(t, err, ErrNoTitle)
}

func TestExtractPartialFields(t *testing.T) {
	e := NewProductExtractor(testLogger())

	tests := []struct {
		name  string
		html  string
		check func(t *testing.T, p models.Product)
	}{
		{
			name: "missing fraction yields nil price",
			html: `<div><h2><span>Widget</span></h2><span class="a-price-whole">79.</span></div>`,
			check: func(t *testing.T, p models.Product) {
				assert.Nil(t, p.Price)
			},
		},
		{
			name: "thousands separator in price",
			html: `<div><h2><span>Laptop</span></h2>
				<span class="a-price-whole">1,299.</span><span class="a-price-fraction">00</span></div>`,
			check: func(t *testing.T, p models.Product) {
				require.NotNil(t, p.Price)
				assert.Equal(t, 1299.00, *p.Price)
			},
		},
		{
			name: "unexpected rating phrasing yields nil",
			html: `<div><h2><span>Widget</span></h2><span class="a-icon-alt">Top rated</span></div>`,
			check: func(t *testing.T, p models.Product) {
				assert.Nil(t, p.Rating)
			},
		},
		{
			name: "rating not out of five yields nil",
			html: `<div><h2><span>Widget</span></h2><span class="a-icon-alt">8.5 out of 10</span></div>`,
			check: func(t *testing.T, p models.Product) {
				assert.Nil(t, p.Rating)
			},
		},
		{
			name: "no prime badge",
			html: `<div><h2><span>Widget</span></h2></div>`,
			check: func(t *testing.T, p models.Product) {
				assert.False(t, p.Prime)
			},
		},
		{
			name: "review label stripped to digits",
			html: `<div><h2><span>Widget</span></h2>
				<a aria-label="2,001 ratings"><span class="a-size-base s-underline-text">2,001</span></a></div>`,
			check: func(t *testing.T, p models.Product) {
				require.NotNil(t, p.ReviewCount)
				assert.Equal(t, 2001, *p.ReviewCount)
			},
		},
		{
			name: "empty href yields nil url",
			html: `<div><h2><span>Widget</span></h2>
				<a class="a-link-normal s-line-clamp-4 s-link-style a-text-normal" href=""></a></div>`,
			check: func(t *testing.T, p models.Product) {
				assert.Nil(t, p.URL)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := e.Extract(fakeElement{html: tt.html})
			require.NoError(t, err)
			tt.check(t, p)
		})
	}
}

func TestExtractPartialProductIneligible(t *testing.T) {
	e := NewProductExtractor(testLogger())

	// Title and price only: the record exists but cannot enter the matching set.
	p, err := e.Extract(fakeElement{html: `<div><h2><span>Widget</span></h2>
		<span class="a-price-whole">9.</span><span class="a-price-fraction">99</span></div>`})
	require.NoError(t, err)
	assert.False(t, p.Eligible())
}

func TestExtractUnreadableContainer(t *testing.T) {
	e := NewProductExtractor(testLogger())

	_, err := e.Extract(fakeElement{err: assert.AnError})
	assert.Error(t, err)
}
