package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleUser is the portion of Google's userinfo response we care about.
// Google returns a larger object — we only unmarshal the fields we need.
type GoogleUser struct {
	ID      string `json:"id"`      // Google's account ID — stable, never changes
	Email   string `json:"email"`   // Primary email (may be empty if withheld)
	Name    string `json:"name"`    // Display name
	Picture string `json:"picture"` // Avatar URL
}

// GoogleProvider wraps golang.org/x/oauth2 for the Google Authorization
// Code flow.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
// 1. Our server redirects the user to Google's authorization endpoint.
// 2. The user approves (or denies) the request on Google.
// 3. Google redirects back to our CallbackURL with a short-lived code.
// 4. Our server exchanges the code for an access token (server-to-server,
//    using the ClientSecret — the token never touches the browser).
// 5. Our server fetches the userinfo endpoint with that token.
type GoogleProvider struct {
	config *oauth2.Config

	// userInfoURL is overridable in tests so Exchange can be pointed at a
	// local httptest server.
	userInfoURL string
}

// NewGoogleProvider creates a GoogleProvider with the given credentials.
//
// callbackURL must exactly match the authorized redirect URI configured in
// the Google Cloud console, e.g. "http://localhost:8080/api/auth/google/callback".
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	}
}

// AuthURL returns the URL to redirect the user to for authorization.
//
// The state is a random string stored in a cookie before redirecting; the
// callback handler verifies Google echoed the same value back. This
// prevents CSRF attacks completing an OAuth flow the user never started.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the OAuth flow: trades the authorization code for a
// Google user profile.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*GoogleUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// oauth2.Config.Client returns an *http.Client that automatically adds
	// the "Authorization: Bearer <token>" header to every request.
	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get(p.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("auth: calling Google userinfo API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Google userinfo API returned status %d", resp.StatusCode)
	}

	var gUser GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&gUser); err != nil {
		return nil, fmt.Errorf("auth: decoding Google userinfo response: %w", err)
	}

	if gUser.ID == "" {
		return nil, fmt.Errorf("auth: Google returned a user with no ID")
	}

	return &gUser, nil
}
