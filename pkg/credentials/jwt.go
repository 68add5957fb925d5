package credentials

import (
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Claims are advisory hints decoded from a JWT payload. Signatures are not
// checked; nothing security-relevant is derived from these values.
type Claims struct {
	// Email is the account email, if present.
	Email string

	// ExpiresAt is the exp claim in Unix milliseconds, 0 if absent.
	ExpiresAt int64

	// AccountID is the ChatGPT account id from the OpenAI auth claim.
	AccountID string

	// Plan is the subscription tier from the OpenAI auth claim.
	Plan string
}

// openaiAuthClaim is the namespaced claim OpenAI embeds in its tokens.
const openaiAuthClaim = "https://api.openai.com/auth"

// DecodeClaims decodes the payload segment of a JWT without verifying the
// signature. It returns nil when the string is not parseable as a JWT.
func DecodeClaims(raw string) *Claims {
	if raw == "" {
		return nil
	}
	tok, err := jwt.Parse([]byte(raw), jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return nil
	}

	claims := &Claims{}
	if email, ok := tok.Get("email"); ok {
		if s, ok := email.(string); ok {
			claims.Email = s
		}
	}
	if exp := tok.Expiration(); !exp.IsZero() {
		claims.ExpiresAt = exp.UnixMilli()
	}
	if auth, ok := tok.Get(openaiAuthClaim); ok {
		if m, ok := auth.(map[string]interface{}); ok {
			if v, ok := m["chatgpt_account_id"].(string); ok {
				claims.AccountID = v
			}
			if v, ok := m["chatgpt_plan_type"].(string); ok {
				claims.Plan = v
			}
		}
	}
	return claims
}
