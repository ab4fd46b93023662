// Package mapembed fills the map container of a page with the third-party
// iframe, or with the consent-required control when the map is denied.
package mapembed

import (
	"bytes"
	"context"
	"html/template"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"autoscuola/internal/consent/models"
)

const (
	ContainerSelector   = "#google-maps-container"
	PlaceholderSelector = "#maps-placeholder"
	contentSelector     = ".maps-placeholder__content"
	messageClass        = "maps-consent-message"
)

var iframeTmpl = template.Must(template.New("iframe").Parse(
	`<iframe src="{{.}}" width="100%" height="400" style="border:0;" allowfullscreen="" loading="lazy" referrerpolicy="no-referrer-when-downgrade"></iframe>`))

var messageTmpl = template.Must(template.New("message").Parse(`<div class="maps-consent-message">
<div class="maps-consent-message__box">
<p class="maps-consent-message__text">Google Maps utilizza cookies<br>per fornire il servizio di mappe.</p>
<form method="post" action="{{.Action}}">
<input type="hidden" name="return_to" value="{{.ReturnTo}}">
<input type="hidden" name="capability" value="{{.Capability}}">
<button type="submit" class="maps-consent-message__btn">Gestisci Consenso</button>
</form>
</div>
</div>`))

// Embed is bound to the map elements of one parsed page.
type Embed struct {
	container   *goquery.Selection
	placeholder *goquery.Selection
	src         string
	reopen      string
	returnTo    string
}

// Bind locates the map container in doc. It reports false when the page has
// no map, in which case the caller registers no loader.
func Bind(doc *goquery.Document, src, reopenAction, returnTo string) (*Embed, bool) {
	container := doc.Find(ContainerSelector).First()
	if container.Length() == 0 {
		return nil, false
	}
	return &Embed{
		container:   container,
		placeholder: doc.Find(PlaceholderSelector).First(),
		src:         src,
		reopen:      reopenAction,
		returnTo:    returnTo,
	}, true
}

// Load inserts the iframe once and swaps the placeholder out.
func (e *Embed) Load(_ context.Context) error {
	if e.Loaded() {
		return nil
	}
	var buf bytes.Buffer
	if err := iframeTmpl.Execute(&buf, e.src); err != nil {
		return err
	}
	e.container.AppendHtml(buf.String())
	setDisplay(e.container, "block")
	if e.placeholder.Length() > 0 {
		setDisplay(e.placeholder, "none")
		e.placeholder.Find("." + messageClass).Remove()
	}
	return nil
}

// Loaded reports whether the container already holds the iframe.
func (e *Embed) Loaded() bool {
	return e.container.Find("iframe").Length() > 0
}

// ShowConsentRequired adds the control that reopens the consent decision.
// Nothing is shown when the page has no placeholder.
func (e *Embed) ShowConsentRequired(_ context.Context, c models.Capability) {
	if e.placeholder.Length() == 0 || e.placeholder.Find("."+messageClass).Length() > 0 {
		return
	}
	target := e.placeholder.Find(contentSelector).First()
	if target.Length() == 0 {
		target = e.placeholder
	}
	var buf bytes.Buffer
	err := messageTmpl.Execute(&buf, struct {
		Action, ReturnTo string
		Capability       models.Capability
	}{e.reopen, e.returnTo, c})
	if err != nil {
		return
	}
	target.AppendHtml(buf.String())
}

// setDisplay replaces the display declaration of an inline style.
func setDisplay(s *goquery.Selection, value string) {
	style, _ := s.Attr("style")
	var decls []string
	for decl := range strings.SplitSeq(style, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		if prop, _, _ := strings.Cut(decl, ":"); strings.EqualFold(strings.TrimSpace(prop), "display") {
			continue
		}
		decls = append(decls, decl)
	}
	decls = append(decls, "display: "+value)
	s.SetAttr("style", strings.Join(decls, "; ")+";")
}
