// Package banner renders the cookie consent prompt into a page.
package banner

import (
	"bytes"
	"context"
	"html/template"

	"github.com/PuerkitoBio/goquery"
)

const ID = "cookieBanner"

// Actions are the consent endpoints the banner forms post to.
type Actions struct {
	Accept      string
	Decline     string
	Preferences string
}

// DefaultActions matches the routes registered by the consent handler.
var DefaultActions = Actions{
	Accept:      "/consent/accept",
	Decline:     "/consent/decline",
	Preferences: "/consent/preferences",
}

var bannerTmpl = template.Must(template.New("banner").Parse(`<div class="cookie-banner show" id="cookieBanner" role="dialog" aria-labelledby="cookieBannerTitle">
<div class="cookie-banner__container">
<div class="cookie-banner__content">
<h3 class="cookie-banner__title" id="cookieBannerTitle">Utilizzo dei Cookies</h3>
<p class="cookie-banner__text">Questo sito utilizza cookies tecnici e di terze parti (Google Maps) per migliorare la tua esperienza di navigazione.
<a href="{{.PrivacyHref}}" class="cookie-banner__link" target="_blank" rel="noopener">Maggiori informazioni</a></p>
<details class="cookie-banner__customize">
<summary>Personalizza</summary>
<form method="post" action="{{.Actions.Preferences}}">
<input type="hidden" name="return_to" value="{{.ReturnTo}}">
<label><input type="checkbox" name="maps" value="on"> Google Maps</label>
<button type="submit" class="cookie-banner__btn cookie-banner__btn--save">Salva preferenze</button>
</form>
</details>
</div>
<div class="cookie-banner__actions">
<form method="post" action="{{.Actions.Decline}}">
<input type="hidden" name="return_to" value="{{.ReturnTo}}">
<button type="submit" class="cookie-banner__btn cookie-banner__btn--decline">Rifiuta</button>
</form>
<form method="post" action="{{.Actions.Accept}}">
<input type="hidden" name="return_to" value="{{.ReturnTo}}">
<button type="submit" class="cookie-banner__btn cookie-banner__btn--accept">Accetta tutti</button>
</form>
</div>
</div>
</div>`))

// Banner shows and hides the prompt on one parsed page.
type Banner struct {
	doc         *goquery.Document
	actions     Actions
	privacyHref string
	returnTo    string
}

func New(doc *goquery.Document, actions Actions, privacyHref, returnTo string) *Banner {
	return &Banner{doc: doc, actions: actions, privacyHref: privacyHref, returnTo: returnTo}
}

// Visible reports whether the banner is in the document.
func (b *Banner) Visible() bool {
	return b.doc.Find("#" + ID).Length() > 0
}

// ShowPrompt appends the banner to the body once.
func (b *Banner) ShowPrompt(_ context.Context) {
	if b.Visible() {
		return
	}
	var buf bytes.Buffer
	err := bannerTmpl.Execute(&buf, struct {
		Actions     Actions
		PrivacyHref string
		ReturnTo    string
	}{b.actions, b.privacyHref, b.returnTo})
	if err != nil {
		return
	}
	b.doc.Find("body").AppendHtml(buf.String())
}

func (b *Banner) HidePrompt(_ context.Context) {
	b.doc.Find("#" + ID).Remove()
}
