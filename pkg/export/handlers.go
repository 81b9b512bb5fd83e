package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// HandleAuthStart redirects to Google's consent page.
func (g *GoogleDocs) HandleAuthStart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, g.AuthURL(), http.StatusTemporaryRedirect)
	}
}

// HandleAuthCallback completes the OAuth flow.
func (g *GoogleDocs) HandleAuthCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "Missing authorization code", http.StatusBadRequest)
			return
		}

		if err := g.Exchange(r.Context(), r.URL.Query().Get("state"), code); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ErrBadState) {
				status = http.StatusBadRequest
			}
			http.Error(w, fmt.Sprintf("Authentication failed: %v", err), status)
			return
		}

		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, connectedPage)
	}
}

// HandleStatus reports the connection status as JSON.
func (g *GoogleDocs) HandleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(g.GetStatus())
	}
}

// HandleDisconnect forgets the Google account.
func (g *GoogleDocs) HandleDisconnect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := g.Disconnect(); err != nil {
			http.Error(w, fmt.Sprintf("Failed to disconnect: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}
}

const connectedPage = `<!DOCTYPE html>
<html>
<head><title>Transcript export connected</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 20vh">
  <h1>Google Docs connected</h1>
  <p>Finished interviews will be exported automatically. You can close this window.</p>
  <script>setTimeout(function() { window.close(); }, 3000);</script>
</body>
</html>
`
