// Package i18n renders error keys and their named parameters as localized text.
// It is only used at the HTTP boundary.
package i18n

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

type entry struct {
	// params lists the named parameters in the positional order used by the texts.
	params []string
	text   map[language.Tag]string
}

var entries = map[string]entry{
	"user_not_found": {text: map[language.Tag]string{
		language.English: "User not found.",
		language.German:  "Benutzer nicht gefunden.",
	}},
	"account_not_found": {text: map[language.Tag]string{
		language.English: "Account not found.",
		language.German:  "Konto nicht gefunden.",
	}},
	"transaction_not_found": {text: map[language.Tag]string{
		language.English: "Transaction not found.",
		language.German:  "Transaktion nicht gefunden.",
	}},
	"not_found": {text: map[language.Tag]string{
		language.English: "Not found.",
		language.German:  "Nicht gefunden.",
	}},
	"name_required": {text: map[language.Tag]string{
		language.English: "Name must not be empty.",
		language.German:  "Der Name darf nicht leer sein.",
	}},
	"name_too_long": {params: []string{"max"}, text: map[language.Tag]string{
		language.English: "Name must be at most %[1]s characters long.",
		language.German:  "Der Name darf höchstens %[1]s Zeichen lang sein.",
	}},
	"min_balance_error": {params: []string{"min_balance", "currency"}, text: map[language.Tag]string{
		language.English: "The initial balance must be greater than zero and at least %[1]s %[2]s.",
		language.German:  "Der Anfangssaldo muss größer als null und mindestens %[1]s %[2]s sein.",
	}},
	"invalid_account_from": {text: map[language.Tag]string{
		language.English: "The source account does not exist.",
		language.German:  "Das Quellkonto existiert nicht.",
	}},
	"invalid_account_to": {text: map[language.Tag]string{
		language.English: "The destination account does not exist.",
		language.German:  "Das Zielkonto existiert nicht.",
	}},
	"invalid_amount": {text: map[language.Tag]string{
		language.English: "The amount must be greater than zero.",
		language.German:  "Der Betrag muss größer als null sein.",
	}},
	"amount_precision": {text: map[language.Tag]string{
		language.English: "The amount has more decimal places than the currency allows.",
		language.German:  "Der Betrag hat mehr Nachkommastellen als die Währung erlaubt.",
	}},
	"same_account": {text: map[language.Tag]string{
		language.English: "Source and destination account must differ.",
		language.German:  "Quell- und Zielkonto müssen verschieden sein.",
	}},
	"transfer_not_possible_min_bal": {params: []string{"min_balance", "currency"}, text: map[language.Tag]string{
		language.English: "Transfer not possible: the source account must keep a minimum balance of %[1]s %[2]s.",
		language.German:  "Überweisung nicht möglich: Das Quellkonto muss einen Mindestsaldo von %[1]s %[2]s behalten.",
	}},
	"validation_error": {text: map[language.Tag]string{
		language.English: "The request is invalid.",
		language.German:  "Die Anfrage ist ungültig.",
	}},
	"store_unavailable": {text: map[language.Tag]string{
		language.English: "The ledger is temporarily unavailable, please retry.",
		language.German:  "Das Hauptbuch ist vorübergehend nicht verfügbar, bitte erneut versuchen.",
	}},
	"idempotency_key_in_progress": {text: map[language.Tag]string{
		language.English: "A request with this Idempotency-Key is still being processed, please retry.",
		language.German:  "Eine Anfrage mit diesem Idempotency-Key wird noch bearbeitet, bitte erneut versuchen.",
	}},
	"idempotency_key_reuse": {text: map[language.Tag]string{
		language.English: "The Idempotency-Key was already used with a different request.",
		language.German:  "Der Idempotency-Key wurde bereits mit einer anderen Anfrage verwendet.",
	}},
}

// Catalog renders messages in the supported languages.
type Catalog struct {
	cat      *catalog.Builder
	tags     []language.Tag
	matcher  language.Matcher
	currency string
}

// New builds the catalog. fallback is the locale used when the request names
// none we support; currency is injected as the "currency" parameter.
func New(fallback, currency string) (*Catalog, error) {
	def, err := language.Parse(fallback)
	if err != nil {
		return nil, fmt.Errorf("default locale %q: %w", fallback, err)
	}
	tags := []language.Tag{language.English, language.German}
	base, _ := def.Base()
	switch base.String() {
	case "de":
		tags = []language.Tag{language.German, language.English}
	case "en":
	default:
		return nil, fmt.Errorf("default locale %q is not supported", fallback)
	}

	b := catalog.NewBuilder(catalog.Fallback(tags[0]))
	for key, e := range entries {
		for tag, text := range e.text {
			if err := b.SetString(tag, key, text); err != nil {
				return nil, err
			}
		}
	}
	return &Catalog{cat: b, tags: tags, matcher: language.NewMatcher(tags), currency: currency}, nil
}

// Currency returns the label injected into messages.
func (c *Catalog) Currency() string { return c.currency }

// Message renders key for the best match of acceptLanguage (an Accept-Language
// header value). Unknown keys are returned unchanged.
func (c *Catalog) Message(acceptLanguage, key string, params map[string]string) string {
	e, ok := entries[key]
	if !ok {
		return key
	}
	_, idx := language.MatchStrings(c.matcher, acceptLanguage)
	p := message.NewPrinter(c.tags[idx], message.Catalog(c.cat))
	args := make([]any, 0, len(e.params))
	for _, name := range e.params {
		v := params[name]
		if name == "currency" && v == "" {
			v = c.currency
		}
		args = append(args, v)
	}
	return p.Sprintf(key, args...)
}
