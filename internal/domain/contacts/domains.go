package contacts

// disposableDomains are throwaway mailbox providers.
var disposableDomains = map[string]struct{}{
	"mailinator.com": {}, "guerrillamail.com": {}, "tempmail.com": {}, "throwaway.email": {},
	"10minutemail.com": {}, "temp-mail.org": {}, "fakeinbox.com": {}, "trashmail.com": {},
	"mailnesia.com": {}, "tempail.com": {}, "dispostable.com": {}, "mailcatch.com": {},
	"yopmail.com": {}, "sharklasers.com": {}, "guerrillamail.info": {}, "grr.la": {},
	"guerrillamail.biz": {}, "guerrillamail.de": {}, "guerrillamail.net": {},
	"guerrillamail.org": {}, "spam4.me": {}, "getairmail.com": {}, "throwawaymail.com": {},
	"getnada.com": {}, "tempinbox.com": {}, "emailondeck.com": {}, "fakemailgenerator.com": {},
	"mailforspam.com": {}, "tempr.email": {}, "discard.email": {}, "discardmail.com": {},
	"spamgourmet.com": {}, "mytrashmail.com": {}, "mt2009.com": {}, "thankyou2010.com": {},
	"spam.la": {}, "speed.1s.fr": {}, "spamfree24.org": {}, "spamfree24.de": {},
	"spamfree24.eu": {}, "spamfree24.info": {}, "spamfree24.net": {}, "wegwerfmail.de": {},
	"wegwerfmail.net": {}, "wegwerfmail.org": {}, "meltmail.com": {}, "mintemail.com": {},
	"tempmailaddress.com": {}, "burnermail.io": {}, "maildrop.cc": {}, "inboxalias.com": {},
}

// domainTypos maps common misspellings to the intended provider.
var domainTypos = map[string]string{
	"gamil.com":     "gmail.com",
	"gmial.com":     "gmail.com",
	"gmal.com":      "gmail.com",
	"gmail.co":      "gmail.com",
	"gmaill.com":    "gmail.com",
	"gnail.com":     "gmail.com",
	"gmail.cm":      "gmail.com",
	"gmail.om":      "gmail.com",
	"hotmal.com":    "hotmail.com",
	"hotmai.com":    "hotmail.com",
	"hotmil.com":    "hotmail.com",
	"hotmail.co":    "hotmail.com",
	"outlok.com":    "outlook.com",
	"outloo.com":    "outlook.com",
	"outlook.co":    "outlook.com",
	"yaho.com":      "yahoo.com",
	"yahooo.com":    "yahoo.com",
	"yahoo.co":      "yahoo.com",
	"yahoomail.com": "yahoo.com",
	"iclud.com":     "icloud.com",
	"icoud.com":     "icloud.com",
	"icloud.co":     "icloud.com",
}
