package httpapi

import (
	"net/http"

	"weltgrid/sync"
)

// handleSync upgrades an authenticated agent's connection into the
// broadcast fabric; it blocks for the connection's lifetime, same as the
// teacher's /ws handler blocked for each fastview client's lifetime.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	agentID := agentIDFrom(r)
	client, err := sync.NewClient(s.hub, agentID, w, r)
	if err != nil {
		return
	}
	s.metrics.BroadcastClients.Set(float64(s.hub.SubscriberCount()))
	defer s.metrics.BroadcastClients.Set(float64(s.hub.SubscriberCount()))

	_ = client.Sync()
}
