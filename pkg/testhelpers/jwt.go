// Package testhelpers provides fixtures for testing ekaya-canvas components.
package testhelpers

import (
	"encoding/base64"
	"fmt"
)

// GenerateTestJWT creates an unsigned (alg: none) token for use when
// verification is disabled. It carries aud "canvas", which validation requires.
func GenerateTestJWT(sub, email string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))

	payload := fmt.Sprintf(`{"sub":"%s","aud":"canvas"`, sub)
	if email != "" {
		payload += fmt.Sprintf(`,"email":"%s"`, email)
	}
	payload += "}"

	encodedPayload := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return fmt.Sprintf("%s.%s.", header, encodedPayload)
}

// GenerateTestJWTWithBearer returns token with "Bearer " prefix for Authorization header.
func GenerateTestJWTWithBearer(sub, email string) string {
	return "Bearer " + GenerateTestJWT(sub, email)
}
