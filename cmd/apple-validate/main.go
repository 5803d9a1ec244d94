package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/bionicotaku/lingo-utils-appleid"
)

func main() {
	envPath := defaultEnvPath()
	if err := loadEnvFile(envPath); err != nil {
		log.Warnf("load %s: %v", envPath, err)
	}

	var (
		defaultAccessToken  = os.Getenv("APPLE_ACCESS_TOKEN")
		defaultRefreshToken = os.Getenv("APPLE_REFRESH_TOKEN")
		defaultIDToken      = os.Getenv("APPLE_ID_TOKEN")
		defaultKeysURL      = os.Getenv("APPLE_KEYS_URL")
		defaultAudience     = os.Getenv("APPLE_AUDIENCE")
	)

	accessToken := flag.String("access-token", defaultAccessToken, "Access token from the Apple token endpoint (env APPLE_ACCESS_TOKEN)")
	refreshToken := flag.String("refresh-token", defaultRefreshToken, "Refresh token; when set the id token is verified (env APPLE_REFRESH_TOKEN)")
	idToken := flag.String("id-token", defaultIDToken, "Identity token to verify (env APPLE_ID_TOKEN)")
	keysURL := flag.String("keys-url", defaultKeysURL, "Apple JWKS URL (env APPLE_KEYS_URL)")
	audience := flag.String("audience", defaultAudience, "Expected audience, your Services ID (env APPLE_AUDIENCE)")
	timeout := flag.Duration("timeout", 5*time.Second, "HTTP timeout for the key set fetch")
	verbose := flag.Bool("v", false, "Log key set and key attempts")
	envFlag := flag.String("env", envPath, "Path to .env file")
	flag.Parse()

	if *envFlag != "" && *envFlag != envPath {
		if err := loadEnvFile(*envFlag); err != nil {
			log.Warnf("load %s: %v", *envFlag, err)
		}
		reloadDefaults(accessToken, refreshToken, idToken, keysURL, audience)
	}
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	if *accessToken == "" && *idToken == "" {
		flag.Usage()
		log.Fatal("access-token or id-token is required (via flag, .env, or environment variables)")
	}

	verifier, err := appleid.New(appleid.Config{
		KeysURL:     *keysURL,
		Audience:    *audience,
		HTTPTimeout: *timeout,
		Cache:       appleid.SharedCache(),
		Logger:      log.StandardLogger(),
	})
	if err != nil {
		log.Fatalf("create verifier: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := verifier.Warmup(ctx); err != nil {
		log.Warnf("warmup: %v", err)
	}

	if *accessToken == "" {
		claims, err := verifier.VerifyIdentityToken(ctx, *idToken)
		if err != nil {
			log.Fatalf("verification failed: %v", err)
		}
		printClaims(claims)
		return
	}

	options := appleid.Options{"access_token": *accessToken}
	if *refreshToken != "" {
		options["refresh_token"] = *refreshToken
	}
	if *idToken != "" {
		options["id_token"] = *idToken
	}
	token, err := verifier.NewAccessToken(ctx, options)
	if err != nil {
		log.Fatalf("build access token: %v", err)
	}
	printToken(token)
}

func printClaims(claims *appleid.IdentityClaims) {
	fmt.Println("== Apple Identity Token Verified ==")
	fmt.Printf("subject      : %s\n", claims.Subject)
	fmt.Printf("issuer       : %s\n", claims.Issuer)
	fmt.Printf("audience     : %s\n", claims.Audience)
	if email, ok := claims.TrustedEmail(); ok {
		fmt.Printf("email        : %s\n", email)
	}
	if claims.IsPrivateEmail != nil {
		fmt.Printf("private email: %t\n", *claims.IsPrivateEmail)
	}
	if !claims.ExpiresAt.IsZero() {
		fmt.Printf("expires_at   : %s\n", claims.ExpiresAt.Format(time.RFC3339))
	}
}

func printToken(token *appleid.AccessToken) {
	fmt.Println("== Apple Access Token ==")
	fmt.Printf("owner        : %s\n", token.ResourceOwnerID())
	fmt.Printf("email        : %s\n", token.Email())
	if private, known := token.PrivateEmail(); known {
		fmt.Printf("private email: %t\n", private)
	}
	b, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		log.Fatalf("encode token: %v", err)
	}
	fmt.Println(string(b))
}

func defaultEnvPath() string {
	if path := os.Getenv("APPLEID_ENV_FILE"); path != "" {
		return path
	}
	return ".env"
}

// loadEnvFile never overrides variables that are already set.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

func reloadDefaults(accessToken, refreshToken, idToken, keysURL, audience *string) {
	if accessToken != nil && *accessToken == "" {
		*accessToken = os.Getenv("APPLE_ACCESS_TOKEN")
	}
	if refreshToken != nil && *refreshToken == "" {
		*refreshToken = os.Getenv("APPLE_REFRESH_TOKEN")
	}
	if idToken != nil && *idToken == "" {
		*idToken = os.Getenv("APPLE_ID_TOKEN")
	}
	if keysURL != nil && *keysURL == "" {
		*keysURL = os.Getenv("APPLE_KEYS_URL")
	}
	if audience != nil && *audience == "" {
		*audience = os.Getenv("APPLE_AUDIENCE")
	}
}
