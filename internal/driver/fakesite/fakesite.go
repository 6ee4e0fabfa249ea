// Package fakesite is an in-memory driver.Session backed by static HTML.
// Pages are parsed with goquery; clicks and key presses run scripted
// handlers that rewrite the current document.
package fakesite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/example/slotchaser/internal/driver"
)

// ErrDetached is returned when an element handle no longer matches anything
// in the current document.
var ErrDetached = errors.New("fakesite: element detached")

// Handler mutates the site in response to an interaction. It runs with the
// site lock held and must use the Doc helpers, not Site methods.
type Handler func(d *Doc)

type pressKey struct{ css, key string }

// Site is one fake browser page. It implements driver.Session.
type Site struct {
	mu sync.Mutex

	pages   map[string]string
	doc     *goquery.Document
	current string

	onClick map[string]Handler
	onPress map[pressKey]Handler
	onLoad  map[string]Handler

	typed       map[string]string
	clicks      []string
	navigations []string
	timers      []*time.Timer

	closed bool
	lost   bool
}

func New() *Site {
	return &Site{
		pages:   map[string]string{},
		onClick: map[string]Handler{},
		onPress: map[pressKey]Handler{},
		onLoad:  map[string]Handler{},
		typed:   map[string]string{},
	}
}

// Page registers the HTML served for url.
func (s *Site) Page(url, html string) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = html
	return s
}

// OnLoad runs h every time url is navigated to.
func (s *Site) OnLoad(url string, h Handler) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLoad[url] = h
	return s
}

// OnClick runs h when an element found with css is clicked.
func (s *Site) OnClick(css string, h Handler) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClick[css] = h
	return s
}

// OnPress runs h when key is pressed on an element found with css.
func (s *Site) OnPress(css, key string, h Handler) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPress[pressKey{css, key}] = h
	return s
}

// Lose makes every later call fail with driver.ErrSessionLost.
func (s *Site) Lose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lost = true
}

func (s *Site) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigations...)
}

func (s *Site) Clicks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.clicks...)
}

// Typed returns everything sent to elements found with css since the last
// navigation.
func (s *Site) Typed(css string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typed[css]
}

func (s *Site) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// HTML renders the current document.
func (s *Site) HTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return ""
	}
	h, _ := s.doc.Html()
	return h
}

func (s *Site) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}

	html, ok := s.pages[url]
	if !ok {
		return fmt.Errorf("fakesite: no page for %s", url)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("fakesite: parse %s: %w", url, err)
	}
	s.doc = doc
	s.current = url
	s.navigations = append(s.navigations, url)
	s.typed = map[string]string{}

	if h := s.onLoad[url]; h != nil {
		h(s.docHelper())
	}
	return nil
}

func (s *Site) Find(ctx context.Context, sel driver.Selector) (driver.Element, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return nil, false, err
	}
	if s.doc == nil || s.lookup(sel).Length() == 0 {
		return nil, false, nil
	}
	return &element{site: s, sel: sel}, true, nil
}

func (s *Site) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers {
		t.Stop()
	}
	s.closed = true
	return nil
}

func (s *Site) usable() error {
	if s.lost {
		return fmt.Errorf("fakesite: %w", driver.ErrSessionLost)
	}
	if s.closed {
		return fmt.Errorf("fakesite: closed: %w", driver.ErrSessionLost)
	}
	return nil
}

func (s *Site) lookup(sel driver.Selector) *goquery.Selection {
	found := s.doc.Find(sel.CSS)
	if sel.Text != "" {
		found = found.FilterFunction(func(_ int, el *goquery.Selection) bool {
			return strings.Contains(el.Text(), sel.Text)
		})
	}
	return found.First()
}

func (s *Site) docHelper() *Doc { return &Doc{site: s} }

type element struct {
	site *Site
	sel  driver.Selector
}

// resolve must be called with the site lock held.
func (e *element) resolve(ctx context.Context) (*goquery.Selection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.site.usable(); err != nil {
		return nil, err
	}
	if e.site.doc == nil {
		return nil, ErrDetached
	}
	found := e.site.lookup(e.sel)
	if found.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDetached, e.sel)
	}
	return found, nil
}

func (e *element) Click(ctx context.Context) error {
	e.site.mu.Lock()
	defer e.site.mu.Unlock()
	if _, err := e.resolve(ctx); err != nil {
		return err
	}
	e.site.clicks = append(e.site.clicks, e.sel.CSS)
	if h := e.site.onClick[e.sel.CSS]; h != nil {
		h(e.site.docHelper())
	}
	return nil
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	e.site.mu.Lock()
	defer e.site.mu.Unlock()
	if _, err := e.resolve(ctx); err != nil {
		return err
	}
	e.site.typed[e.sel.CSS] += text
	return nil
}

func (e *element) Press(ctx context.Context, key string) error {
	e.site.mu.Lock()
	defer e.site.mu.Unlock()
	if _, err := e.resolve(ctx); err != nil {
		return err
	}
	if h := e.site.onPress[pressKey{e.sel.CSS, key}]; h != nil {
		h(e.site.docHelper())
	}
	return nil
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	e.site.mu.Lock()
	defer e.site.mu.Unlock()
	found, err := e.resolve(ctx)
	if err != nil {
		return "", false, err
	}
	v, ok := found.Attr(name)
	return v, ok, nil
}

func (e *element) Disabled(ctx context.Context) (bool, error) {
	e.site.mu.Lock()
	defer e.site.mu.Unlock()
	found, err := e.resolve(ctx)
	if err != nil {
		return false, err
	}
	if v, ok := found.Attr("disabled"); ok && v != "false" {
		return true, nil
	}
	return found.AttrOr("aria-disabled", "") == "true", nil
}

// Doc is handed to handlers to rewrite the live document.
type Doc struct{ site *Site }

// Append adds html to the end of body.
func (d *Doc) Append(html string) { d.AppendTo("body", html) }

// AppendTo adds html inside every element matching css.
func (d *Doc) AppendTo(css, html string) {
	if d.site.doc == nil {
		return
	}
	d.site.doc.Find(css).AppendHtml(html)
}

// Replace swaps the current document for html without recording a
// navigation.
func (d *Doc) Replace(html string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return
	}
	d.site.doc = doc
}

func (d *Doc) Remove(css string) {
	if d.site.doc == nil {
		return
	}
	d.site.doc.Find(css).Remove()
}

func (d *Doc) SetAttr(css, name, value string) {
	if d.site.doc == nil {
		return
	}
	d.site.doc.Find(css).SetAttr(name, value)
}

func (d *Doc) RemoveAttr(css, name string) {
	if d.site.doc == nil {
		return
	}
	d.site.doc.Find(css).RemoveAttr(name)
}

// Typed is Site.Typed for use inside a handler.
func (d *Doc) Typed(css string) string { return d.site.typed[css] }

// After runs h once delay has passed, unless the site is closed first.
func (d *Doc) After(delay time.Duration, h Handler) {
	s := d.site
	t := time.AfterFunc(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		h(s.docHelper())
	})
	s.timers = append(s.timers, t)
}

// Launcher hands out a fresh Site per session, built by Build.
type Launcher struct {
	Build func(n int) *Site

	mu    sync.Mutex
	sites []*Site
	fail  error
}

func (l *Launcher) NewSession(ctx context.Context) (driver.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return nil, l.fail
	}
	s := l.Build(len(l.sites))
	l.sites = append(l.sites, s)
	return s, nil
}

// FailWith makes later NewSession calls return err.
func (l *Launcher) FailWith(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fail = err
}

func (l *Launcher) Sites() []*Site {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Site(nil), l.sites...)
}
