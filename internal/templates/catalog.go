// Package templates holds the localized push copy for every canonical event.
package templates

import (
	"fmt"
	"strings"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
)

type Locale string

const (
	LocaleEnglish Locale = "en"
	LocaleMarathi Locale = "mr"

	DefaultLocale = LocaleEnglish
)

// Locales lists every supported locale.
var Locales = []Locale{LocaleEnglish, LocaleMarathi}

// NormalizeLocale maps a client locale tag to a supported locale.
// "mr", "mr-IN" and "mr_IN" all resolve to Marathi; anything else is English.
func NormalizeLocale(tag string) Locale {
	t := strings.ToLower(strings.TrimSpace(tag))
	switch t {
	case "", "null", "undefined":
		return DefaultLocale
	}
	if strings.HasPrefix(t, string(LocaleMarathi)) {
		return LocaleMarathi
	}
	return DefaultLocale
}

type Template struct {
	Title string
	Body  string
}

type key struct {
	Type   model.EventType
	Role   model.Role
	Locale Locale
}

// Catalog is a read-only lookup built once at startup.
type Catalog struct {
	entries map[key]Template
}

// New builds the catalog and fails if any (type, role, locale) is missing.
func New() (*Catalog, error) {
	c := &Catalog{entries: table}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustNew is New that panics; the table is static so a hole is a programming error.
func MustNew() *Catalog {
	c, err := New()
	if err != nil {
		panic(err)
	}
	return c
}

// RolesFor returns the roles an event type is keyed by.
func RolesFor(t model.EventType) []model.Role {
	if t.RoleKeyed() {
		return []model.Role{model.RolePayer, model.RolePayee}
	}
	return []model.Role{model.RoleAny}
}

// Validate checks the table covers every event type, role and locale.
func (c *Catalog) Validate() error {
	var missing []string
	for _, t := range model.EventTypes {
		for _, r := range RolesFor(t) {
			for _, l := range Locales {
				tpl, ok := c.entries[key{t, r, l}]
				if !ok || tpl.Title == "" || tpl.Body == "" {
					missing = append(missing, fmt.Sprintf("%s/%s/%s", t, r, l))
				}
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("templates: missing entries: %s", strings.Join(missing, ", "))
	}
	return nil
}

// TemplateFor returns the title and body for an event, recipient role and
// locale tag. Role is ignored for event types that are not role-keyed.
func (c *Catalog) TemplateFor(t model.EventType, role model.Role, localeTag string) (Template, bool) {
	if !t.RoleKeyed() {
		role = model.RoleAny
	}
	tpl, ok := c.entries[key{t, role, NormalizeLocale(localeTag)}]
	return tpl, ok
}

var table = map[key]Template{
	{model.EventCreated, model.RoleAny, LocaleEnglish}: {
		Title: "New help request nearby",
		Body:  "Someone near you needs help. Tap to view the request.",
	},
	{model.EventCreated, model.RoleAny, LocaleMarathi}: {
		Title: "जवळपास नवीन मदत विनंती",
		Body:  "तुमच्या जवळ कोणालातरी मदतीची गरज आहे. विनंती पाहण्यासाठी टॅप करा.",
	},

	{model.EventRadiusExpanded, model.RoleAny, LocaleEnglish}: {
		Title: "Help still needed nearby",
		Body:  "A request near you is still open. Can you help?",
	},
	{model.EventRadiusExpanded, model.RoleAny, LocaleMarathi}: {
		Title: "जवळपास अजूनही मदतीची गरज",
		Body:  "तुमच्या जवळची एक विनंती अजूनही खुली आहे. तुम्ही मदत करू शकता का?",
	},

	{model.EventAuthRequested, model.RoleAny, LocaleEnglish}: {
		Title: "A helper wants to assist",
		Body:  "A helper has offered to take your request. Review and approve.",
	},
	{model.EventAuthRequested, model.RoleAny, LocaleMarathi}: {
		Title: "मदतनीस मदत करू इच्छितो",
		Body:  "एका मदतनीसाने तुमची विनंती स्वीकारण्याची तयारी दाखवली आहे. तपासा आणि मंजूर करा.",
	},

	{model.EventAuthApproved, model.RoleAny, LocaleEnglish}: {
		Title: "You're approved",
		Body:  "The requester approved you. You can start helping now.",
	},
	{model.EventAuthApproved, model.RoleAny, LocaleMarathi}: {
		Title: "तुम्हाला मंजुरी मिळाली",
		Body:  "विनंतीकर्त्याने तुम्हाला मंजुरी दिली आहे. आता तुम्ही मदत सुरू करू शकता.",
	},

	{model.EventAuthRejected, model.RoleAny, LocaleEnglish}: {
		Title: "Request not approved",
		Body:  "The requester chose someone else this time.",
	},
	{model.EventAuthRejected, model.RoleAny, LocaleMarathi}: {
		Title: "विनंती मंजूर झाली नाही",
		Body:  "विनंतीकर्त्याने या वेळी दुसऱ्या कोणाची निवड केली.",
	},

	{model.EventAuthTimeout, model.RoleAny, LocaleEnglish}: {
		Title: "Approval timed out",
		Body:  "The approval window expired and the request is open again.",
	},
	{model.EventAuthTimeout, model.RoleAny, LocaleMarathi}: {
		Title: "मंजुरीची वेळ संपली",
		Body:  "मंजुरीची मुदत संपली असून विनंती पुन्हा खुली झाली आहे.",
	},

	{model.EventCancelled, model.RoleAny, LocaleEnglish}: {
		Title: "Request cancelled",
		Body:  "This request was cancelled by the requester.",
	},
	{model.EventCancelled, model.RoleAny, LocaleMarathi}: {
		Title: "विनंती रद्द झाली",
		Body:  "विनंतीकर्त्याने ही विनंती रद्द केली आहे.",
	},

	{model.EventReleased, model.RoleAny, LocaleEnglish}: {
		Title: "Helper released your request",
		Body:  "Your helper stepped away. We're finding someone else.",
	},
	{model.EventReleased, model.RoleAny, LocaleMarathi}: {
		Title: "मदतनीसाने विनंती सोडली",
		Body:  "तुमच्या मदतनीसाने माघार घेतली आहे. आम्ही दुसरा मदतनीस शोधत आहोत.",
	},

	{model.EventReassigned, model.RoleAny, LocaleEnglish}: {
		Title: "Request reassigned",
		Body:  "This request now has a new helper.",
	},
	{model.EventReassigned, model.RoleAny, LocaleMarathi}: {
		Title: "विनंती पुन्हा सोपवली",
		Body:  "या विनंतीसाठी आता नवीन मदतनीस आहे.",
	},

	{model.EventTimeout, model.RoleAny, LocaleEnglish}: {
		Title: "Request timed out",
		Body:  "The request was not completed in time.",
	},
	{model.EventTimeout, model.RoleAny, LocaleMarathi}: {
		Title: "विनंतीची वेळ संपली",
		Body:  "विनंती वेळेत पूर्ण झाली नाही.",
	},

	{model.EventOfferUpdated, model.RoleAny, LocaleEnglish}: {
		Title: "Amount updated",
		Body:  "A request you were invited to has a new amount.",
	},
	{model.EventOfferUpdated, model.RoleAny, LocaleMarathi}: {
		Title: "रक्कम बदलली",
		Body:  "तुम्हाला आमंत्रित केलेल्या विनंतीची रक्कम बदलली आहे.",
	},

	{model.EventPaymentRequested, model.RolePayer, LocaleEnglish}: {
		Title: "Payment requested",
		Body:  "Your helper requested payment. Tap to pay.",
	},
	{model.EventPaymentRequested, model.RolePayee, LocaleEnglish}: {
		Title: "Payment request sent",
		Body:  "We've asked the requester to pay you.",
	},
	{model.EventPaymentRequested, model.RolePayer, LocaleMarathi}: {
		Title: "पेमेंटची विनंती",
		Body:  "तुमच्या मदतनीसाने पेमेंटची विनंती केली आहे. पैसे भरण्यासाठी टॅप करा.",
	},
	{model.EventPaymentRequested, model.RolePayee, LocaleMarathi}: {
		Title: "पेमेंट विनंती पाठवली",
		Body:  "आम्ही विनंतीकर्त्याला तुम्हाला पैसे देण्यास सांगितले आहे.",
	},

	{model.EventPaymentCompleted, model.RolePayer, LocaleEnglish}: {
		Title: "Payment complete",
		Body:  "Your payment went through. Thank you!",
	},
	{model.EventPaymentCompleted, model.RolePayee, LocaleEnglish}: {
		Title: "Payment received",
		Body:  "You've been paid for your help.",
	},
	{model.EventPaymentCompleted, model.RolePayer, LocaleMarathi}: {
		Title: "पेमेंट पूर्ण",
		Body:  "तुमचे पेमेंट यशस्वी झाले. धन्यवाद!",
	},
	{model.EventPaymentCompleted, model.RolePayee, LocaleMarathi}: {
		Title: "पेमेंट मिळाले",
		Body:  "तुमच्या मदतीसाठी तुम्हाला पैसे मिळाले आहेत.",
	},
}
