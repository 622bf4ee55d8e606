package auth_test

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/locator/auth"
)

func ExampleJWTAuthenticator_Authenticate() {
	key := []byte("my-secret-key")
	config := auth.JWTConfig{Issuer: "https://example.com", Audience: "locatord"}
	authenticator := auth.NewJWTAuthenticator(config, auth.NewStaticKeyProvider(key))

	token, _ := auth.SignToken(key, config, "device-42", []string{auth.ScopeCoarse}, time.Hour)

	id, err := authenticator.Authenticate(context.Background(), "Bearer "+token)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("Principal:", id.Principal)
	fmt.Println("Coarse:", id.HasScope(auth.ScopeCoarse))
	fmt.Println("Fine:", id.HasScope(auth.ScopeFine))
	// Output:
	// Principal: device-42
	// Coarse: true
	// Fine: false
}
