package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/chartscan/breakoutscan/internal/domain/breakout"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == "http://localhost" || origin == "http://127.0.0.1"
	},
}

// inboundBar is the newline-delimited JSON shape accepted on /ws/{symbol}.
type inboundBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

func (b inboundBar) toBar() breakout.Bar {
	return breakout.Bar{
		Date:   b.Date,
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,
	}
}

// handleWebsocket upgrades the connection and feeds every inbound bar to
// the symbol's worker goroutine (Registry.AddBar), streaming back any
// emitted breakout as JSON. One goroutine reads, the same goroutine
// writes, so no locking is needed on the connection itself.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("symbol", symbol).Msg("websocket read error")
			}
			return
		}

		var in inboundBar
		if err := json.Unmarshal(payload, &in); err != nil {
			s.writeWSError(conn, "invalid bar payload: "+err.Error())
			continue
		}

		info, err := s.registry.AddBar(symbol, in.toBar())
		if err != nil {
			s.writeWSError(conn, err.Error())
			continue
		}
		if info == nil {
			continue
		}
		if err := conn.WriteJSON(info); err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("websocket write failed")
			return
		}
	}
}

func (s *Server) writeWSError(conn *websocket.Conn, message string) {
	_ = conn.WriteJSON(map[string]string{"error": message})
}
