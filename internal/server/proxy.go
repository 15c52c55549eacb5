package server

import (
	"io"
	"net/http"
	"net/url"

	"github.com/MrWong99/vocalis/internal/observe"
)

// Default provider endpoints for the browser-facing proxies.
const (
	defaultSessionsURL = "https://api.openai.com/v1/realtime/sessions"
	defaultSDPURL      = "https://api.openai.com/v1/realtime"
)

// handleSession mints a short-lived client token by forwarding the request to
// the provider's sessions endpoint with the server-held API key attached.
// The browser never sees the real key.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	target := s.realtime.SessionsURL
	if target == "" {
		target = defaultSessionsURL
	}
	s.proxy(w, r, target, "application/json")
}

// handleSDP forwards the browser's SDP offer to the provider and relays the
// SDP answer back.
func (s *Server) handleSDP(w http.ResponseWriter, r *http.Request) {
	target := s.realtime.SDPURL
	if target == "" {
		target = defaultSDPURL
	}
	if s.realtime.Model != "" {
		u, err := url.Parse(target)
		if err != nil {
			http.Error(w, "bad sdp url", http.StatusInternalServerError)
			return
		}
		q := u.Query()
		q.Set("model", s.realtime.Model)
		u.RawQuery = q.Encode()
		target = u.String()
	}
	s.proxy(w, r, target, "application/sdp")
}

// proxy forwards the request body to target with the API key attached and
// copies the upstream response back verbatim.
func (s *Server) proxy(w http.ResponseWriter, r *http.Request, target, contentType string) {
	log := observe.Logger(r.Context())

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, target, r.Body)
	if err != nil {
		http.Error(w, "failed to build upstream request", http.StatusInternalServerError)
		return
	}
	req.Header.Set("Authorization", "Bearer "+s.realtime.APIKey)
	if ct := r.Header.Get("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	} else {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Error("upstream request failed", "target", target, "err", err)
		http.Error(w, "upstream request failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Warn("copying upstream response failed", "err", err)
	}
}
