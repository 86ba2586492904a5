package browser

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/mangasrc/internal/errs"
)

var content = Snapshot{
	URL:   "https://site.test/work/abc",
	Title: "ABC | Site",
	Text:  strings.Repeat("A long synopsis and a long chapter list. ", 10),
	HTML:  "<html><body><h1>ABC</h1></body></html>",
}

var challenge = Snapshot{
	URL:   "https://site.test/work/abc",
	Title: "Just a moment...",
	Text:  "Checking if the site connection is secure",
	HTML:  "<html><body>cf</body></html>",
}

// fakePage replays scripted snapshots; the last one repeats.
type fakePage struct {
	conditionGuard

	mu          sync.Mutex
	snaps       []Snapshot
	afterReload []Snapshot
	reloaded    bool
	navigations int
	reloads     int
	conditions  int
	navErr      error
}

func (p *fakePage) Condition(context.Context, Conditioning) error {
	if err := p.claim(); err != nil {
		return err
	}
	p.mu.Lock()
	p.conditions++
	p.mu.Unlock()
	return nil
}

func (p *fakePage) Navigate(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigations++
	return p.navErr
}

func (p *fakePage) Reload(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reloads++
	p.reloaded = true
	return nil
}

func (p *fakePage) Snapshot(context.Context) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	q := &p.snaps
	if p.reloaded && len(p.afterReload) > 0 {
		q = &p.afterReload
	}
	if len(*q) == 0 {
		return Snapshot{}, errors.New("no page")
	}

	s := (*q)[0]
	if len(*q) > 1 {
		*q = (*q)[1:]
	}
	return s, nil
}

var fast = Budget{Navigate: time.Second, Settle: 60 * time.Millisecond, Poll: 5 * time.Millisecond}

func TestNavigateCleanPage(t *testing.T) {
	p := &fakePage{snaps: []Snapshot{content}}
	n := NewNavigator(p, fast, Conditioning{}, nil)

	doc, err := n.Navigate(context.Background(), "https://site.test/work/abc", fast)
	require.NoError(t, err)
	assert.Equal(t, "ABC | Site", doc.Title)
	assert.Equal(t, 0, p.reloads)
	assert.Equal(t, 1, p.conditions)
}

func TestNavigateSettlesWithoutReload(t *testing.T) {
	p := &fakePage{snaps: []Snapshot{challenge, challenge, content}}
	n := NewNavigator(p, fast, Conditioning{}, nil)

	doc, err := n.Navigate(context.Background(), "https://site.test/work/abc", fast)
	require.NoError(t, err)
	assert.Equal(t, content.HTML, doc.HTML)
	assert.Equal(t, 0, p.reloads)
}

func TestNavigateReloadsExactlyOnce(t *testing.T) {
	p := &fakePage{snaps: []Snapshot{challenge}, afterReload: []Snapshot{challenge, content}}
	n := NewNavigator(p, fast, Conditioning{}, nil)

	doc, err := n.Navigate(context.Background(), "https://site.test/work/abc", fast)
	require.NoError(t, err)
	assert.Equal(t, content.HTML, doc.HTML)
	assert.Equal(t, 1, p.reloads)
}

func TestNavigateUnresolvedReturnsBestDocument(t *testing.T) {
	richer := challenge
	richer.Text = challenge.Text + " and a bit more"
	p := &fakePage{snaps: []Snapshot{challenge, richer, challenge}}
	n := NewNavigator(p, fast, Conditioning{}, nil)

	start := time.Now()
	doc, err := n.Navigate(context.Background(), "https://site.test/work/abc", fast)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrChallengeUnresolved)
	require.NotNil(t, doc)
	assert.Equal(t, 1, p.reloads)
	assert.Less(t, time.Since(start), time.Second)
}

// stuckPage never finishes a load and only answers snapshots once its
// context is gone.
type stuckPage struct{}

func (stuckPage) Navigate(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stuckPage) Reload(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stuckPage) Snapshot(ctx context.Context) (Snapshot, error) {
	<-ctx.Done()
	return Snapshot{}, ctx.Err()
}

func TestNavigateHonoursTotalBudget(t *testing.T) {
	slow := Budget{Navigate: 5 * time.Second, Settle: 5 * time.Second, Poll: 5 * time.Millisecond, Total: 100 * time.Millisecond}
	n := NewNavigator(stuckPage{}, slow, Conditioning{}, nil)

	start := time.Now()
	doc, err := n.Navigate(context.Background(), "https://site.test/work/abc", slow)
	assert.Nil(t, doc)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestBudgetDerivesTotal(t *testing.T) {
	b := Budget{Navigate: time.Second, Settle: 2 * time.Second}.normalized()
	assert.Equal(t, 6*time.Second, b.Total)
}

func TestNavigateWithoutSnapshotFails(t *testing.T) {
	p := &fakePage{navErr: errors.New("net::ERR_CONNECTION_RESET")}
	n := NewNavigator(p, fast, Conditioning{}, nil)

	doc, err := n.Navigate(context.Background(), "https://site.test", fast)
	assert.Nil(t, doc)
	assert.ErrorContains(t, err, "ERR_CONNECTION_RESET")
}

func TestConditioningIsOneShot(t *testing.T) {
	p := &fakePage{snaps: []Snapshot{content}}
	n := NewNavigator(p, fast, Conditioning{}, nil)

	_, err := n.Fetch(context.Background(), "https://site.test/a")
	require.NoError(t, err)
	_, err = n.Fetch(context.Background(), "https://site.test/b")
	require.NoError(t, err)

	assert.Equal(t, 1, p.conditions)
	assert.ErrorIs(t, p.Condition(context.Background(), Conditioning{}), ErrAlreadyConditioned)
	assert.Equal(t, 2, p.navigations)
}

func TestIsChallenge(t *testing.T) {
	assert.False(t, IsChallenge(content))
	assert.True(t, IsChallenge(challenge))

	short := content
	short.Text = "Loading"
	assert.True(t, IsChallenge(short), "near-empty body")

	denied := content
	denied.Title = "Oops"
	denied.Text = strings.Repeat("x", 250) + " Error 1020 Access denied"
	assert.True(t, IsChallenge(denied))

	ddos := content
	ddos.Title = "DDoS-Guard"
	assert.True(t, IsChallenge(ddos))
}

func TestRequestFilterPolicy(t *testing.T) {
	p := RequestFilterPolicy{Blocklist: DefaultBlocklist()}

	assert.True(t, p.Blocks("https://securepubads.g.doubleclick.net/tag/js/gpt.js", network.ResourceTypeScript))
	assert.True(t, p.Blocks("https://www.GoogleTagManager.com/gtm.js?id=1", network.ResourceTypeScript))
	assert.False(t, p.Blocks("https://site.test/work/abc", network.ResourceTypeDocument))
	assert.False(t, p.Blocks("https://cdn.site.test/cover.jpg", network.ResourceTypeImage))

	p.BlockImages = true
	assert.True(t, p.Blocks("https://cdn.site.test/cover.jpg", network.ResourceTypeImage))
	assert.False(t, p.Blocks("https://site.test/app.js", network.ResourceTypeScript))
}
