package telephony

import (
	"net/http"

	twclient "github.com/twilio/twilio-go/client"
)

// SignatureHeader carries the provider's HMAC over the webhook URL and form.
const SignatureHeader = "X-Twilio-Signature"

// SignatureValidator checks webhook request signatures.
type SignatureValidator struct {
	validator twclient.RequestValidator
}

// NewSignatureValidator returns a validator keyed by the account auth token.
func NewSignatureValidator(authToken string) *SignatureValidator {
	return &SignatureValidator{validator: twclient.NewRequestValidator(authToken)}
}

// Valid reports whether r was signed for publicURL. The request form must
// already be parsed.
func (v *SignatureValidator) Valid(r *http.Request, publicURL string) bool {
	sig := r.Header.Get(SignatureHeader)
	if sig == "" {
		return false
	}

	params := make(map[string]string, len(r.PostForm))
	for k, vals := range r.PostForm {
		if len(vals) > 0 {
			params[k] = vals[0]
		}
	}
	return v.validator.Validate(publicURL, params, sig)
}
